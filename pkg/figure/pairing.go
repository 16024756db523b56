// Package figure pairs embedded images with their captions.
package figure

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"docflash-be/pkg/parser"
)

const (
	SourceProximity = "proximity"
	SourceFallback  = "fallback"
	SourceNone      = "none"
)

type CaptionPattern struct {
	Name   string
	Regexp *regexp.Regexp
}

// DefaultCaptionPatterns recognise explicit captions. Emphasis markers are
// allowed in front so Markdown captions such as "*Figure 2: x*" match.
var DefaultCaptionPatterns = []CaptionPattern{
	{"figure", regexp.MustCompile(`(?i)^[*_\s]*figure\s*\d+(?:[.\-]\d+)*\s*[:.\-–—]?\s*\S`)},
	{"fig", regexp.MustCompile(`(?i)^[*_\s]*fig\.?\s*\d+(?:[.\-]\d+)*\s*[:.\-–—]?\s*\S`)},
	{"zh_figure", regexp.MustCompile(`^[*_\s]*图\s*[0-9一二三四五六七八九十]+(?:[.\-][0-9]+)*\s*[:：.\s]?\s*\S`)},
	{"zh_illustration", regexp.MustCompile(`^[*_\s]*插图\s*[0-9一二三四五六七八九十]*\s*[:：.\s]?\s*\S`)},
}

type Pair struct {
	Image      parser.ImageData
	Caption    string
	Confidence float64
	Source     string
	// BlockIndex is the caption's index in the blocks slice, -1 when none.
	BlockIndex int
}

type Options struct {
	MaxDistance        float64
	MinParagraphLength int
	MaxCaptionLength   int
	Patterns           []CaptionPattern
}

func DefaultOptions() Options {
	return Options{
		MaxDistance:        120,
		MinParagraphLength: 30,
		MaxCaptionLength:   300,
		Patterns:           DefaultCaptionPatterns,
	}
}

const (
	confidencePatternSamePage = 0.9
	confidencePatternAdjacent = 0.75
	confidenceProximity       = 0.6
	confidenceParagraph       = 0.3
	confidenceNone            = 0.1
)

type Pairer struct {
	opts Options
}

func NewPairer(opts Options) *Pairer {
	def := DefaultOptions()
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = def.MaxDistance
	}
	if opts.MinParagraphLength <= 0 {
		opts.MinParagraphLength = def.MinParagraphLength
	}
	if opts.MaxCaptionLength <= 0 {
		opts.MaxCaptionLength = def.MaxCaptionLength
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = def.Patterns
	}
	return &Pairer{opts: opts}
}

// Pair returns exactly one Pair per image, in image order. Strategies are
// tried from most to least reliable: an explicit caption pattern on the same
// or an adjacent page, the nearest text below the image, the closest
// substantial paragraph, and finally an empty caption. An explicit caption
// is never given to two images.
func (p *Pairer) Pair(images []parser.ImageData, blocks []parser.TextBlock) []Pair {
	pairs := make([]Pair, 0, len(images))
	used := make(map[int]bool)

	for _, img := range images {
		if pair, ok := p.byPattern(img, blocks, used); ok {
			pairs = append(pairs, pair)
			continue
		}
		if pair, ok := p.byProximity(img, blocks, used); ok {
			pairs = append(pairs, pair)
			continue
		}
		if pair, ok := p.byParagraph(img, blocks); ok {
			pairs = append(pairs, pair)
			continue
		}
		pairs = append(pairs, Pair{Image: img, Caption: "", Confidence: confidenceNone, Source: SourceNone, BlockIndex: -1})
	}
	return pairs
}

func (p *Pairer) matchPattern(text string) (string, bool) {
	for _, cp := range p.opts.Patterns {
		if cp.Regexp.MatchString(text) {
			return cp.Name, true
		}
	}
	return "", false
}

func (p *Pairer) byPattern(img parser.ImageData, blocks []parser.TextBlock, used map[int]bool) (Pair, bool) {
	best := -1
	bestName := ""
	bestDist := math.MaxFloat64

	for i, b := range blocks {
		if used[i] {
			continue
		}
		pageDiff := b.Page - img.Page
		if pageDiff < -1 || pageDiff > 1 {
			continue
		}
		name, ok := p.matchPattern(strings.TrimSpace(b.Text))
		if !ok {
			continue
		}
		dist := patternDistance(img, b)
		if dist < bestDist {
			best, bestName, bestDist = i, name, dist
		}
	}
	if best < 0 {
		return Pair{}, false
	}

	used[best] = true
	conf := confidencePatternSamePage
	if blocks[best].Page != img.Page {
		conf = confidencePatternAdjacent
	}
	return Pair{
		Image:      img,
		Caption:    p.trim(blocks[best].Text),
		Confidence: conf,
		Source:     "pattern_" + bestName,
		BlockIndex: best,
	}, true
}

// patternDistance orders candidate captions: same page before adjacent
// pages, then by vertical distance when the image has a position.
func patternDistance(img parser.ImageData, b parser.TextBlock) float64 {
	const pagePenalty = 1e6
	d := 0.0
	if b.Page != img.Page {
		d += pagePenalty
	}
	if img.Positioned {
		below := b.BBox.Y - img.BBox.Bottom()
		above := img.BBox.Y - b.BBox.Bottom()
		switch {
		case below >= 0:
			d += below
		case above >= 0:
			// captions above the image are less common
			d += above * 1.5
		}
	} else {
		d += b.BBox.Y
	}
	return d
}

func (p *Pairer) byProximity(img parser.ImageData, blocks []parser.TextBlock, used map[int]bool) (Pair, bool) {
	if !img.Positioned {
		return Pair{}, false
	}
	best := -1
	bestGap := math.MaxFloat64
	for i, b := range blocks {
		if used[i] || b.Page != img.Page || utf8.RuneCountInString(strings.TrimSpace(b.Text)) < 3 {
			continue
		}
		gap := b.BBox.Y - img.BBox.Bottom()
		if gap < -1 || gap > p.opts.MaxDistance {
			continue
		}
		if gap < bestGap {
			best, bestGap = i, gap
		}
	}
	if best < 0 {
		return Pair{}, false
	}
	return Pair{
		Image:      img,
		Caption:    p.trim(blocks[best].Text),
		Confidence: confidenceProximity,
		Source:     SourceProximity,
		BlockIndex: best,
	}, true
}

func (p *Pairer) byParagraph(img parser.ImageData, blocks []parser.TextBlock) (Pair, bool) {
	best := -1
	bestDist := math.MaxFloat64
	center := img.BBox.Y + img.BBox.Height/2
	for i, b := range blocks {
		if b.Page != img.Page || utf8.RuneCountInString(strings.TrimSpace(b.Text)) < p.opts.MinParagraphLength {
			continue
		}
		dist := b.BBox.Y
		if img.Positioned {
			dist = math.Abs(b.BBox.Y + b.BBox.Height/2 - center)
		}
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return Pair{}, false
	}
	return Pair{
		Image:      img,
		Caption:    p.trim(blocks[best].Text),
		Confidence: confidenceParagraph,
		Source:     SourceFallback,
		BlockIndex: best,
	}, true
}

// trim shortens a caption to MaxCaptionLength runes at a word boundary.
func (p *Pairer) trim(text string) string {
	text = strings.Trim(strings.TrimSpace(text), "*_")
	runes := []rune(text)
	if len(runes) <= p.opts.MaxCaptionLength {
		return text
	}
	cut := string(runes[:p.opts.MaxCaptionLength])
	if i := strings.LastIndexAny(cut, " \t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}

type Validation struct {
	Total       int            `json:"total"`
	WithCaption int            `json:"with_caption"`
	Coverage    float64        `json:"coverage"`
	BySource    map[string]int `json:"by_source"`
	MeanScore   float64        `json:"mean_confidence"`
}

// Validate summarises how well a set of pairs is captioned. Coverage of an
// empty set is 1.
func Validate(pairs []Pair) Validation {
	v := Validation{Total: len(pairs), BySource: map[string]int{}}
	if len(pairs) == 0 {
		v.Coverage = 1
		return v
	}
	sum := 0.0
	for _, pr := range pairs {
		v.BySource[pr.Source]++
		if pr.Caption != "" {
			v.WithCaption++
		}
		sum += pr.Confidence
	}
	v.Coverage = float64(v.WithCaption) / float64(v.Total)
	v.MeanScore = sum / float64(v.Total)
	return v
}
