package chapter

import (
	"testing"

	"docflash-be/pkg/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(page int, texts ...string) []parser.TextBlock {
	out := make([]parser.TextBlock, 0, len(texts))
	for i, t := range texts {
		out = append(out, parser.TextBlock{
			Text: t,
			Page: page,
			BBox: parser.BoundingBox{Y: float64(i) * 12, Height: 12},
		})
	}
	return out
}

func titles(chapters []Chapter) []string {
	out := make([]string, 0, len(chapters))
	for _, c := range chapters {
		out = append(out, c.Title)
	}
	return out
}

func TestExtract_ChapterWordHeadings(t *testing.T) {
	content := &parser.ParsedContent{TextBlocks: lines(1,
		"Chapter 1: A",
		"Text about the first topic.",
		"Chapter 2: B",
		"Text about the second topic.",
	)}

	chapters := NewExtractor(DefaultOptions()).Extract(content)

	require.Len(t, chapters, 2)
	assert.Equal(t, []string{"A", "B"}, titles(chapters))
	assert.Equal(t, 0, chapters[0].OrderIndex)
	assert.Equal(t, 1, chapters[1].OrderIndex)
	assert.Equal(t, 1, chapters[0].Level)
	assert.Equal(t, PatternChapterEN, chapters[0].Source)
	require.Len(t, chapters[0].Blocks, 1)
	assert.Equal(t, "Text about the first topic.", chapters[0].Blocks[0].Text)
	assert.NoError(t, ValidateOrder(chapters))
}

func TestExtract_NoHeadingsFallsBackToSingleChapter(t *testing.T) {
	content := &parser.ParsedContent{TextBlocks: lines(1,
		"just some prose without any structure,",
		"and more of it here.",
	)}

	chapters := NewExtractor(DefaultOptions()).Extract(content)

	require.Len(t, chapters, 1)
	assert.Equal(t, DefaultFallbackTitle, chapters[0].Title)
	assert.Len(t, chapters[0].Blocks, 2)
	assert.Equal(t, 1, *chapters[0].PageStart)
}

func TestExtract_EmptyInput(t *testing.T) {
	assert.Empty(t, NewExtractor(DefaultOptions()).Extract(&parser.ParsedContent{}))
	assert.Empty(t, NewExtractor(DefaultOptions()).Extract(nil))
}

func TestExtract_NumberedLevels(t *testing.T) {
	content := &parser.ParsedContent{TextBlocks: lines(1,
		"1.1 Background",
		"body",
		"1.1.2 Details",
		"body",
	)}

	chapters := NewExtractor(DefaultOptions()).Extract(content)

	require.Len(t, chapters, 2)
	assert.Equal(t, "Background", chapters[0].Title)
	assert.Equal(t, 2, chapters[0].Level)
	assert.Equal(t, 3, chapters[1].Level)
}

func TestExtract_NumberedProseIsNotAHeading(t *testing.T) {
	content := &parser.ParsedContent{TextBlocks: lines(1,
		"1.1 Population",
		"2.5 million people live here.",
		"3.14 is close enough to pi for most uses",
		"1.2 Climate",
		"4.5 Degrees Warmer Than Last Year!",
		"2.1 气候",
	)}

	chapters := NewExtractor(DefaultOptions()).Extract(content)

	assert.Equal(t, []string{"Population", "Climate", "气候"}, titles(chapters))
	require.Len(t, chapters[0].Blocks, 2)
	assert.Equal(t, "2.5 million people live here.", chapters[0].Blocks[0].Text)
}

func TestExtract_SingleNumberNeedsFontHint(t *testing.T) {
	plain := &parser.ParsedContent{TextBlocks: lines(1,
		"1. Mix the flour",
		"2. Add water",
	)}
	chapters := NewExtractor(DefaultOptions()).Extract(plain)
	require.Len(t, chapters, 1)
	assert.Equal(t, DefaultFallbackTitle, chapters[0].Title)

	styled := &parser.ParsedContent{TextBlocks: []parser.TextBlock{
		{Text: "1. Introduction", Page: 1, Style: &parser.TextStyle{FontSize: 18}},
		{Text: "Body text that is long enough to dominate the font statistics.", Page: 1, BBox: parser.BoundingBox{Y: 30}, Style: &parser.TextStyle{FontSize: 10}},
	}}
	chapters = NewExtractor(DefaultOptions()).Extract(styled)
	require.Len(t, chapters, 1)
	assert.Equal(t, "Introduction", chapters[0].Title)
	assert.Equal(t, PatternNumberedL1, chapters[0].Source)
}

func TestExtract_ChineseHeadings(t *testing.T) {
	content := &parser.ParsedContent{TextBlocks: lines(1,
		"第一章 绪论",
		"本章介绍基本概念。",
		"第1节 背景",
		"内容。",
		"第二章 方法",
		"内容。",
	)}

	chapters := NewExtractor(DefaultOptions()).Extract(content)

	require.Len(t, chapters, 3)
	assert.Equal(t, []string{"绪论", "背景", "方法"}, titles(chapters))
	assert.Equal(t, []int{1, 2, 1}, []int{chapters[0].Level, chapters[1].Level, chapters[2].Level})
}

func TestExtract_FontOnlyHeading(t *testing.T) {
	content := &parser.ParsedContent{TextBlocks: []parser.TextBlock{
		{Text: "Getting Started", Page: 1, Style: &parser.TextStyle{FontSize: 20}},
		{Text: "A long paragraph of body text in the regular size used by the document.", Page: 1, BBox: parser.BoundingBox{Y: 30}, Style: &parser.TextStyle{FontSize: 11}},
		{Text: "Next Steps", Page: 2, Style: &parser.TextStyle{FontSize: 20}},
		{Text: "Another long paragraph of body text in the same regular size as before.", Page: 2, BBox: parser.BoundingBox{Y: 30}, Style: &parser.TextStyle{FontSize: 11}},
	}}

	chapters := NewExtractor(DefaultOptions()).Extract(content)

	require.Len(t, chapters, 2)
	assert.Equal(t, []string{"Getting Started", "Next Steps"}, titles(chapters))
	assert.Equal(t, PatternFont, chapters[0].Source)
	assert.Equal(t, 2, *chapters[1].PageStart)
}

func TestExtract_OutlineTakesPrecedence(t *testing.T) {
	blocks := append(lines(1, "Overview", "intro text"), lines(2, "Chapter 9: Ignored heuristics", "Deep Dive", "details")...)
	content := &parser.ParsedContent{
		TextBlocks: blocks,
		Outline: []parser.OutlineEntry{
			{Title: "Overview", Level: 1, BlockIndex: -1},
			{Title: "Deep Dive", Level: 2, BlockIndex: -1},
			{Title: "Not in the text", Level: 1, BlockIndex: -1},
		},
	}

	chapters := NewExtractor(DefaultOptions()).Extract(content)

	require.Len(t, chapters, 2)
	assert.Equal(t, []string{"Overview", "Deep Dive"}, titles(chapters))
	assert.Equal(t, "outline", chapters[0].Source)
	assert.Equal(t, 1, *chapters[0].PageStart)
	assert.Equal(t, 2, *chapters[0].PageEnd)
	assert.Equal(t, 2, chapters[1].Level)
	assert.Equal(t, "details", chapters[1].Blocks[0].Text)
}

func TestExtract_TieGoesToEarlierPattern(t *testing.T) {
	tie := []HeadingPattern{
		{Name: "first", Regexp: DefaultPatterns[1].Regexp, Confidence: 0.9, Level: func([]string) int { return 1 }, Title: func(m []string) string { return "first" }},
		{Name: "second", Regexp: DefaultPatterns[1].Regexp, Confidence: 0.9, Level: func([]string) int { return 2 }, Title: func(m []string) string { return "second" }},
	}
	opts := DefaultOptions()
	opts.Patterns = tie

	chapters := NewExtractor(opts).Extract(&parser.ParsedContent{TextBlocks: lines(1, "Chapter 3", "body")})

	require.Len(t, chapters, 1)
	assert.Equal(t, "first", chapters[0].Source)
}

func TestExtract_AssignsImagesByPosition(t *testing.T) {
	content := &parser.ParsedContent{
		TextBlocks: lines(1, "Chapter 1: A", "one", "Chapter 2: B", "two"),
		Images: []parser.ImageData{
			{Name: "a.png", Page: 1, BBox: parser.BoundingBox{Y: 13}, Positioned: true},
			{Name: "b.png", Page: 1, BBox: parser.BoundingBox{Y: 40}, Positioned: true},
			{Name: "c.png", Page: 1},
		},
	}

	chapters := NewExtractor(DefaultOptions()).Extract(content)

	require.Len(t, chapters, 2)
	require.Len(t, chapters[0].Images, 1)
	assert.Equal(t, "a.png", chapters[0].Images[0].Name)
	require.Len(t, chapters[1].Images, 2)
}

func TestValidateOrder(t *testing.T) {
	assert.NoError(t, ValidateOrder([]Chapter{{OrderIndex: 0}, {OrderIndex: 1}}))
	assert.Error(t, ValidateOrder([]Chapter{{OrderIndex: 0}, {OrderIndex: 0}}))
	assert.Error(t, ValidateOrder([]Chapter{{OrderIndex: 0}, {OrderIndex: 2}}))
}
