package parser

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"docflash-be/internal/pkg/apperr"
)

var (
	mdHeadingRe      = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	mdSetextH1Re     = regexp.MustCompile(`^=+\s*$`)
	mdSetextH2Re     = regexp.MustCompile(`^-+\s*$`)
	mdFenceRe        = regexp.MustCompile("^\\s*(```|~~~)")
	mdImageRe        = regexp.MustCompile(`!\[([^\]]*)\]\(\s*<?([^)\s>]+)>?(?:\s+"([^"]*)")?\s*\)`)
	mdListItemRe     = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s+`)
	mdHorizontalRule = regexp.MustCompile(`^\s*([-*_])(\s*([-*_])){2,}\s*$`)
)

type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser { return &MarkdownParser{} }

func (p *MarkdownParser) FileType() FileType { return FileTypeMarkdown }

// Parse keeps heading markers in the block text, records headings as outline
// entries, collapses fenced code into a single block and lifts image
// references out of the text.
func (p *MarkdownParser) Parse(ctx context.Context, path string) (*ParsedContent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperr.ParseError{Path: path, Kind: apperr.ParseUnreadable, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(path)
	lines := strings.Split(decodeText(raw), "\n")
	content := &ParsedContent{Metadata: map[string]interface{}{}}

	var fence []string
	fenceStart := 0
	inFence := false

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t\r")

		if mdFenceRe.MatchString(line) {
			if inFence {
				fence = append(fence, line)
				block := lineBlock(strings.Join(fence, "\n"), 1, fenceStart, nil)
				block.BBox.Height = float64(len(fence)) * lineHeight
				content.TextBlocks = append(content.TextBlocks, block)
				fence = nil
				inFence = false
			} else {
				inFence = true
				fenceStart = i
				fence = []string{line}
			}
			continue
		}
		if inFence {
			fence = append(fence, line)
			continue
		}

		if strings.TrimSpace(line) == "" || mdHorizontalRule.MatchString(line) && !isSetextUnderline(lines, i) {
			continue
		}

		if m := mdHeadingRe.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			content.Outline = append(content.Outline, OutlineEntry{
				Title:      m[2],
				Level:      level,
				Page:       1,
				BlockIndex: len(content.TextBlocks),
			})
			content.TextBlocks = append(content.TextBlocks, lineBlock(line, 1, i, &TextStyle{HeadingLevel: level}))
			continue
		}

		if i+1 < len(lines) && !mdListItemRe.MatchString(line) {
			next := strings.TrimSpace(lines[i+1])
			level := 0
			switch {
			case mdSetextH1Re.MatchString(next):
				level = 1
			case mdSetextH2Re.MatchString(next):
				level = 2
			}
			if level > 0 {
				title := strings.TrimSpace(line)
				content.Outline = append(content.Outline, OutlineEntry{
					Title:      title,
					Level:      level,
					Page:       1,
					BlockIndex: len(content.TextBlocks),
				})
				content.TextBlocks = append(content.TextBlocks, lineBlock(title, 1, i, &TextStyle{HeadingLevel: level}))
				i++
				continue
			}
		}

		for _, m := range mdImageRe.FindAllStringSubmatch(line, -1) {
			content.Images = append(content.Images, markdownImage(baseDir, m, i))
		}
		text := strings.TrimSpace(mdImageRe.ReplaceAllString(line, ""))
		if text == "" {
			continue
		}
		content.TextBlocks = append(content.TextBlocks, lineBlock(text, 1, i, nil))
	}

	// An unterminated fence still holds content.
	if inFence && len(fence) > 0 {
		block := lineBlock(strings.Join(fence, "\n"), 1, fenceStart, nil)
		block.BBox.Height = float64(len(fence)) * lineHeight
		content.TextBlocks = append(content.TextBlocks, block)
	}

	return content, nil
}

func isSetextUnderline(lines []string, i int) bool {
	return i > 0 && strings.TrimSpace(lines[i-1]) != "" && mdSetextH2Re.MatchString(strings.TrimSpace(lines[i]))
}

func markdownImage(baseDir string, m []string, line int) ImageData {
	src := m[2]
	img := ImageData{
		Name:       filepath.Base(src),
		Source:     src,
		Page:       1,
		BBox:       BoundingBox{Y: float64(line) * lineHeight, Height: lineHeight},
		Format:     strings.TrimPrefix(strings.ToLower(filepath.Ext(src)), "."),
		AltText:    m[1],
		Positioned: true,
	}
	if m[3] != "" && img.AltText == "" {
		img.AltText = m[3]
	}

	if strings.Contains(src, "://") || strings.HasPrefix(src, "data:") {
		return img
	}
	local := src
	if !filepath.IsAbs(local) {
		local = filepath.Join(baseDir, filepath.FromSlash(src))
	}
	if data, err := os.ReadFile(local); err == nil {
		img.Data = data
	}
	return img
}
