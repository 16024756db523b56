package chapter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// HeadingPattern recognises one heading convention. Title and Level receive
// the full submatch slice.
type HeadingPattern struct {
	Name       string
	Regexp     *regexp.Regexp
	Confidence float64
	Level      func(m []string) int
	Title      func(m []string) string
}

const (
	PatternMarkdown   = "markdown"
	PatternChapterEN  = "chapter_en"
	PatternChapterZH  = "chapter_zh"
	PatternSectionZH  = "section_zh"
	PatternAppendix   = "appendix"
	PatternNumbered   = "numbered"
	PatternNumberedL1 = "numbered_single"
	PatternStyle      = "style"
	PatternFont       = "font"
)

// DefaultPatterns is ordered: when two patterns match with the same
// confidence the earlier one wins.
var DefaultPatterns = []HeadingPattern{
	{
		Name:       PatternMarkdown,
		Regexp:     regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`),
		Confidence: 0.95,
		Level:      func(m []string) int { return len(m[1]) },
		Title:      func(m []string) string { return m[2] },
	},
	{
		Name:       PatternChapterEN,
		Regexp:     regexp.MustCompile(`(?i)^chapter\s+(\d+|[ivxlcdm]+)\b\s*[:.\-–—]?\s*(.*)$`),
		Confidence: 0.9,
		Level:      func(m []string) int { return 1 },
		Title:      titleOr(2, "Chapter", 1),
	},
	{
		Name:       PatternChapterZH,
		Regexp:     regexp.MustCompile(`^第\s*([0-9一二三四五六七八九十百零〇]+)\s*[章篇部]\s*[:：、.]?\s*(.*)$`),
		Confidence: 0.9,
		Level:      func(m []string) int { return 1 },
		Title:      titleOrRaw(2),
	},
	{
		Name:       PatternSectionZH,
		Regexp:     regexp.MustCompile(`^第\s*([0-9一二三四五六七八九十百零〇]+)\s*节\s*[:：、.]?\s*(.*)$`),
		Confidence: 0.85,
		Level:      func(m []string) int { return 2 },
		Title:      titleOrRaw(2),
	},
	{
		Name:       PatternAppendix,
		Regexp:     regexp.MustCompile(`(?i)^(appendix|附录)\s*([A-Z0-9]{0,3})\b\s*[:：.\-]?\s*(.*)$`),
		Confidence: 0.8,
		Level:      func(m []string) int { return 1 },
		Title:      titleOrRaw(3),
	},
	{
		// The title must open like a heading and not close like a sentence,
		// so "2.5 million people live here." stays prose.
		Name:       PatternNumbered,
		Regexp:     regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){1,4})\.?\s+([\p{Lu}\p{Lt}\p{Han}\p{Hangul}\p{Hiragana}\p{Katakana}\d"“(（](?:.*[^.。!！])?)$`),
		Confidence: 0.7,
		Level:      func(m []string) int { return strings.Count(m[1], ".") + 1 },
		Title:      func(m []string) string { return m[2] },
	},
	{
		// "1. Something" is as often a list item as a heading and needs a
		// typographic hint to clear the default threshold.
		Name:       PatternNumberedL1,
		Regexp:     regexp.MustCompile(`^(\d{1,3})[.、)]\s*(\S.*)$`),
		Confidence: 0.5,
		Level:      func(m []string) int { return 1 },
		Title:      func(m []string) string { return m[2] },
	},
}

func titleOr(group int, prefix string, numberGroup int) func(m []string) string {
	return func(m []string) string {
		if t := strings.TrimSpace(m[group]); t != "" {
			return t
		}
		return prefix + " " + m[numberGroup]
	}
}

func titleOrRaw(group int) func(m []string) string {
	return func(m []string) string {
		if t := strings.TrimSpace(m[group]); t != "" {
			return t
		}
		return strings.TrimSpace(m[0])
	}
}

// plausibleHeading rejects lines that read like prose.
func plausibleHeading(text string, maxLen int) bool {
	if text == "" || utf8.RuneCountInString(text) > maxLen {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	switch last {
	case ',', ';', '，', '；':
		return false
	}
	return true
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.TrimRight(title, ":：.-–— ")
	return strings.Join(strings.Fields(title), " ")
}
