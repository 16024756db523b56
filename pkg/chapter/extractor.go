// Package chapter splits a parsed document into a flat, ordered list of
// chapters, preferring the document's own outline and falling back to
// heading heuristics.
package chapter

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"docflash-be/pkg/parser"
)

const DefaultFallbackTitle = "Document Content"

// Chapter is one extracted section. Blocks and Images are the content between
// this heading and the next; the heading line itself is not repeated.
type Chapter struct {
	Title      string
	Level      int
	OrderIndex int
	PageStart  *int
	PageEnd    *int
	Blocks     []parser.TextBlock
	Images     []parser.ImageData
	Source     string
	Confidence float64
}

// Text joins the chapter's blocks with blank lines.
func (c Chapter) Text() string {
	parts := make([]string, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

type Options struct {
	Threshold        float64
	FontSizeBoost    float64
	MaxHeadingLength int
	FallbackTitle    string
	Patterns         []HeadingPattern
}

func DefaultOptions() Options {
	return Options{
		Threshold:        0.6,
		FontSizeBoost:    0.3,
		MaxHeadingLength: 120,
		FallbackTitle:    DefaultFallbackTitle,
		Patterns:         DefaultPatterns,
	}
}

type Extractor struct {
	opts Options
}

func NewExtractor(opts Options) *Extractor {
	def := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.FontSizeBoost < 0 {
		opts.FontSizeBoost = 0
	}
	if opts.MaxHeadingLength <= 0 {
		opts.MaxHeadingLength = def.MaxHeadingLength
	}
	if opts.FallbackTitle == "" {
		opts.FallbackTitle = def.FallbackTitle
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = def.Patterns
	}
	return &Extractor{opts: opts}
}

type heading struct {
	blockIndex int
	title      string
	level      int
	page       int
	source     string
	confidence float64
}

// Extract never returns an empty list for a document with text.
func (e *Extractor) Extract(content *parser.ParsedContent) []Chapter {
	if content == nil || len(content.TextBlocks) == 0 {
		return nil
	}
	blocks := content.TextBlocks

	headings := e.fromOutline(blocks, content.Outline)
	if len(headings) == 0 {
		headings = e.detectHeadings(blocks)
	}

	var chapters []Chapter
	if len(headings) == 0 {
		chapters = []Chapter{e.fallback(blocks)}
	} else {
		chapters = buildChapters(blocks, headings)
	}

	assignImages(chapters, blocks, headings, content.Images)
	for i := range chapters {
		chapters[i].OrderIndex = i
	}
	return chapters
}

// fromOutline resolves each outline entry to the block it titles, walking
// forward so repeated titles bind in document order. Entries that cannot be
// placed are dropped.
func (e *Extractor) fromOutline(blocks []parser.TextBlock, outline []parser.OutlineEntry) []heading {
	var out []heading
	cursor := 0
	for _, entry := range outline {
		title := cleanTitle(entry.Title)
		if title == "" {
			continue
		}
		idx := -1
		switch {
		case entry.BlockIndex >= cursor && entry.BlockIndex < len(blocks):
			idx = entry.BlockIndex
		default:
			idx = findTitleBlock(blocks, title, cursor)
			if idx < 0 && entry.Page > 0 {
				idx = firstBlockOnPage(blocks, entry.Page, cursor)
			}
		}
		if idx < 0 {
			continue
		}
		level := entry.Level
		if level <= 0 {
			level = 1
		}
		out = append(out, heading{
			blockIndex: idx,
			title:      title,
			level:      level,
			page:       blocks[idx].Page,
			source:     "outline",
			confidence: 1,
		})
		cursor = idx + 1
	}
	return out
}

func findTitleBlock(blocks []parser.TextBlock, title string, from int) int {
	want := normalize(title)
	for i := from; i < len(blocks); i++ {
		got := normalize(blocks[i].Text)
		if got == want || (len(got) <= len(want)*2 && strings.Contains(got, want)) {
			return i
		}
	}
	return -1
}

func firstBlockOnPage(blocks []parser.TextBlock, page, from int) int {
	for i := from; i < len(blocks); i++ {
		if blocks[i].Page == page {
			return i
		}
		if blocks[i].Page > page {
			return -1
		}
	}
	return -1
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (e *Extractor) detectHeadings(blocks []parser.TextBlock) []heading {
	body := bodyFontSize(blocks)
	ranks := headingFontRanks(blocks, body)

	var out []heading
	for i, b := range blocks {
		if h, ok := e.classify(b, body, ranks); ok {
			h.blockIndex = i
			h.page = b.Page
			out = append(out, h)
		}
	}
	return out
}

// classify scores one block against every pattern and keeps the most confident
// match; ties go to the earlier pattern.
func (e *Extractor) classify(b parser.TextBlock, body float64, ranks map[float64]int) (heading, bool) {
	text := strings.TrimSpace(b.Text)
	if strings.Contains(text, "\n") || !plausibleHeading(text, e.opts.MaxHeadingLength) {
		return heading{}, false
	}

	boost := e.fontBoost(b, body)
	best := heading{confidence: -1}

	for _, p := range e.opts.Patterns {
		m := p.Regexp.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		conf := math.Min(1, p.Confidence+boost)
		if conf > best.confidence {
			best = heading{
				title:      cleanTitle(p.Title(m)),
				level:      p.Level(m),
				source:     p.Name,
				confidence: conf,
			}
		}
	}

	if b.Style != nil && b.Style.HeadingLevel > 0 {
		conf := math.Min(1, 0.9+boost)
		if conf > best.confidence {
			best = heading{
				title:      cleanTitle(text),
				level:      b.Style.HeadingLevel,
				source:     PatternStyle,
				confidence: conf,
			}
		}
	}

	if best.confidence < 0 && boost >= e.opts.FontSizeBoost*0.99 && boost > 0 {
		if rank, ok := ranks[b.Style.FontSize]; ok {
			best = heading{
				title:      cleanTitle(text),
				level:      rank,
				source:     PatternFont,
				confidence: 0.35 + boost,
			}
		}
	}

	if best.confidence < e.opts.Threshold || best.title == "" {
		return heading{}, false
	}
	if best.level <= 0 {
		best.level = 1
	}
	return best, true
}

// fontBoost grows with how much larger the block is than body text, reaching
// FontSizeBoost at 1.6x.
func (e *Extractor) fontBoost(b parser.TextBlock, body float64) float64 {
	if b.Style == nil || b.Style.FontSize <= 0 || body <= 0 {
		return 0
	}
	ratio := b.Style.FontSize / body
	if ratio < 1.15 {
		return 0
	}
	return e.opts.FontSizeBoost * math.Min(1, (ratio-1)/0.6)
}

// bodyFontSize is the font size covering the most characters.
func bodyFontSize(blocks []parser.TextBlock) float64 {
	weights := map[float64]int{}
	for _, b := range blocks {
		if b.Style != nil && b.Style.FontSize > 0 {
			weights[b.Style.FontSize] += len(b.Text)
		}
	}
	best, bestWeight := 0.0, -1
	for size, w := range weights {
		if w > bestWeight || (w == bestWeight && size < best) {
			best, bestWeight = size, w
		}
	}
	return best
}

// headingFontRanks maps each font size noticeably above body text to a
// heading level, largest first, capped at three levels.
func headingFontRanks(blocks []parser.TextBlock, body float64) map[float64]int {
	if body <= 0 {
		return nil
	}
	seen := map[float64]bool{}
	var sizes []float64
	for _, b := range blocks {
		if b.Style == nil || b.Style.FontSize < body*1.15 || seen[b.Style.FontSize] {
			continue
		}
		seen[b.Style.FontSize] = true
		sizes = append(sizes, b.Style.FontSize)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))
	ranks := make(map[float64]int, len(sizes))
	for i, s := range sizes {
		ranks[s] = int(math.Min(float64(i+1), 3))
	}
	return ranks
}

// buildChapters slices blocks between consecutive headings. Anything before
// the first heading is kept with the first chapter.
func buildChapters(blocks []parser.TextBlock, headings []heading) []Chapter {
	chapters := make([]Chapter, 0, len(headings))
	for i, h := range headings {
		start := h.blockIndex + 1
		if i == 0 {
			start = 0
		}
		end := len(blocks)
		if i+1 < len(headings) {
			end = headings[i+1].blockIndex
		}

		var content []parser.TextBlock
		for j := start; j < end; j++ {
			if j == h.blockIndex {
				continue
			}
			content = append(content, blocks[j])
		}

		pageStart := h.page
		pageEnd := h.page
		for _, b := range content {
			if b.Page > pageEnd {
				pageEnd = b.Page
			}
			if b.Page < pageStart {
				pageStart = b.Page
			}
		}

		chapters = append(chapters, Chapter{
			Title:      h.title,
			Level:      h.level,
			PageStart:  intPtr(pageStart),
			PageEnd:    intPtr(pageEnd),
			Blocks:     content,
			Source:     h.source,
			Confidence: h.confidence,
		})
	}
	return chapters
}

func (e *Extractor) fallback(blocks []parser.TextBlock) Chapter {
	pageStart, pageEnd := blocks[0].Page, blocks[0].Page
	for _, b := range blocks {
		if b.Page < pageStart {
			pageStart = b.Page
		}
		if b.Page > pageEnd {
			pageEnd = b.Page
		}
	}
	return Chapter{
		Title:      e.opts.FallbackTitle,
		Level:      1,
		PageStart:  intPtr(pageStart),
		PageEnd:    intPtr(pageEnd),
		Blocks:     append([]parser.TextBlock(nil), blocks...),
		Source:     "fallback",
		Confidence: 0,
	}
}

type position struct {
	page int
	y    float64
}

func (p position) before(o position) bool {
	if p.page != o.page {
		return p.page < o.page
	}
	return p.y < o.y
}

// assignImages gives each image to the last chapter whose heading precedes it.
func assignImages(chapters []Chapter, blocks []parser.TextBlock, headings []heading, images []parser.ImageData) {
	if len(chapters) == 0 {
		return
	}
	starts := make([]position, len(chapters))
	for i := range chapters {
		if i < len(headings) {
			b := blocks[headings[i].blockIndex]
			starts[i] = position{page: b.Page, y: b.BBox.Y}
		}
	}
	for _, img := range images {
		pos := position{page: img.Page, y: img.BBox.Y}
		if !img.Positioned {
			pos.y = math.MaxFloat64
		}
		target := 0
		for i := 1; i < len(chapters) && i < len(headings); i++ {
			if starts[i].before(pos) {
				target = i
			}
		}
		chapters[target].Images = append(chapters[target].Images, img)
	}
}

// ValidateOrder checks that order indexes are unique and dense.
func ValidateOrder(chapters []Chapter) error {
	seen := make(map[int]bool, len(chapters))
	for _, c := range chapters {
		if seen[c.OrderIndex] {
			return fmt.Errorf("duplicate chapter order index %d", c.OrderIndex)
		}
		seen[c.OrderIndex] = true
	}
	for i := range chapters {
		if !seen[i] {
			return fmt.Errorf("missing chapter order index %d", i)
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }
