package knowledge

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"docflash-be/pkg/parser"
)

// Segment is a run of adjacent text blocks that reads as one paragraph.
type Segment struct {
	Text     string
	Page     int
	Position int
	BBox     parser.BoundingBox
}

type SegmentOptions struct {
	// MaxGapRatio is the largest vertical gap, relative to line height, that
	// still joins two blocks.
	MaxGapRatio float64
	MaxLength   int
}

func DefaultSegmentOptions() SegmentOptions {
	return SegmentOptions{MaxGapRatio: 0.5, MaxLength: 800}
}

var sentenceEndRe = regexp.MustCompile(`([.!?。！？])\s+`)

// BuildSegments groups blocks on the same page separated by a small vertical
// gap, then splits anything longer than MaxLength at sentence boundaries.
func BuildSegments(blocks []parser.TextBlock, opts SegmentOptions) []Segment {
	if opts.MaxGapRatio <= 0 {
		opts.MaxGapRatio = DefaultSegmentOptions().MaxGapRatio
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultSegmentOptions().MaxLength
	}

	var groups []Segment
	var current *Segment
	var lastBottom, lastHeight float64

	for _, b := range blocks {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		if current != nil && b.Page == current.Page && joins(b, lastBottom, lastHeight, opts.MaxGapRatio) {
			current.Text = joinText(current.Text, text)
			current.BBox = union(current.BBox, b.BBox)
		} else {
			if current != nil {
				groups = append(groups, *current)
			}
			current = &Segment{Text: text, Page: b.Page, BBox: b.BBox}
		}
		lastBottom = b.BBox.Bottom()
		lastHeight = b.BBox.Height
	}
	if current != nil {
		groups = append(groups, *current)
	}

	var out []Segment
	for _, g := range groups {
		for _, part := range splitLong(g.Text, opts.MaxLength) {
			out = append(out, Segment{Text: part, Page: g.Page, BBox: g.BBox, Position: len(out)})
		}
	}
	return out
}

func joins(b parser.TextBlock, lastBottom, lastHeight, ratio float64) bool {
	h := math.Max(b.BBox.Height, lastHeight)
	if h <= 0 {
		return false
	}
	gap := b.BBox.Y - lastBottom
	return gap >= -h && gap <= h*ratio
}

// joinText mends words hyphenated across a line break.
func joinText(a, b string) string {
	if strings.HasSuffix(a, "-") && !strings.HasSuffix(a, " -") {
		return strings.TrimSuffix(a, "-") + b
	}
	if isCJK(lastRune(a)) && isCJK(firstRune(b)) {
		return a + b
	}
	return a + " " + b
}

func union(a, b parser.BoundingBox) parser.BoundingBox {
	x := math.Min(a.X, b.X)
	y := math.Min(a.Y, b.Y)
	right := math.Max(a.X+a.Width, b.X+b.Width)
	bottom := math.Max(a.Bottom(), b.Bottom())
	return parser.BoundingBox{X: x, Y: y, Width: right - x, Height: bottom - y}
}

func splitLong(text string, max int) []string {
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var sentences []string
	last := 0
	for _, loc := range sentenceEndRe.FindAllStringSubmatchIndex(text, -1) {
		sentences = append(sentences, strings.TrimSpace(text[last:loc[3]]))
		last = loc[1]
	}
	if last < len(text) {
		sentences = append(sentences, strings.TrimSpace(text[last:]))
	}

	var out []string
	var sb strings.Builder
	for _, s := range sentences {
		if s == "" {
			continue
		}
		if sb.Len() > 0 && utf8.RuneCountInString(sb.String())+1+utf8.RuneCountInString(s) > max {
			out = append(out, sb.String())
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
	}
	if sb.Len() > 0 {
		out = append(out, sb.String())
	}
	return out
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
