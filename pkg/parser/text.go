package parser

import (
	"bytes"
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"docflash-be/internal/pkg/apperr"

	"golang.org/x/text/encoding/charmap"
)

// Layout used for formats without geometry: one line per lineHeight, a fixed
// advance per character. Only the relative order and gaps matter downstream.
const (
	lineHeight = 12.0
	charWidth  = 6.0
)

type TextParser struct{}

func NewTextParser() *TextParser { return &TextParser{} }

func (p *TextParser) FileType() FileType { return FileTypeText }

// Parse emits one block per non-empty line. Form feeds start a new page and
// blank lines survive as vertical gaps.
func (p *TextParser) Parse(ctx context.Context, path string) (*ParsedContent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperr.ParseError{Path: path, Kind: apperr.ParseUnreadable, Err: err}
	}

	text := decodeText(raw)
	content := &ParsedContent{Metadata: map[string]interface{}{}}

	for pageIdx, page := range strings.Split(text, "\f") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for lineIdx, line := range strings.Split(page, "\n") {
			line = strings.TrimRight(line, " \t\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			content.TextBlocks = append(content.TextBlocks, lineBlock(line, pageIdx+1, lineIdx, nil))
		}
	}

	return content, nil
}

func lineBlock(text string, page, line int, style *TextStyle) TextBlock {
	return TextBlock{
		Text: strings.TrimSpace(text),
		Page: page,
		BBox: BoundingBox{
			X:      0,
			Y:      float64(line) * lineHeight,
			Width:  float64(utf8.RuneCountInString(text)) * charWidth,
			Height: lineHeight,
		},
		Style: style,
	}
}

// decodeText strips a UTF-8 BOM and falls back to Windows-1252 for files that
// are not valid UTF-8.
func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return strings.ReplaceAll(string(raw), "\r\n", "\n")
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "")
	}
	return strings.ReplaceAll(string(decoded), "\r\n", "\n")
}
