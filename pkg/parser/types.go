// Package parser turns source documents into a uniform list of positioned
// text blocks, embedded images and an optional outline.
package parser

import (
	"context"
	"path/filepath"
	"strings"
)

type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeDOCX     FileType = "docx"
	FileTypeMarkdown FileType = "markdown"
	FileTypeText     FileType = "txt"
)

// DetectFileType maps a filename extension to a FileType. The second return
// value is false for anything the parsers cannot handle.
func DetectFileType(filename string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileTypePDF, true
	case ".docx":
		return FileTypeDOCX, true
	case ".md", ".markdown":
		return FileTypeMarkdown, true
	case ".txt", ".text":
		return FileTypeText, true
	}
	return "", false
}

// BoundingBox is expressed in page units with Y growing downward from the top
// of the page, whatever the native coordinate system of the source format.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b BoundingBox) Bottom() float64 { return b.Y + b.Height }

type TextStyle struct {
	FontSize     float64 `json:"font_size,omitempty"`
	FontName     string  `json:"font_name,omitempty"`
	Bold         bool    `json:"bold,omitempty"`
	HeadingLevel int     `json:"heading_level,omitempty"`
}

type TextBlock struct {
	Text  string      `json:"text"`
	Page  int         `json:"page"`
	BBox  BoundingBox `json:"bbox"`
	Style *TextStyle  `json:"style,omitempty"`
}

type ImageData struct {
	Name    string      `json:"name"`
	Source  string      `json:"source,omitempty"`
	Page    int         `json:"page"`
	BBox    BoundingBox `json:"bbox"`
	Format  string      `json:"format"`
	AltText string      `json:"alt_text,omitempty"`
	Data    []byte      `json:"-"`
	// Positioned is false when BBox holds the intrinsic image size rather than its placement on the page.
	Positioned bool `json:"positioned"`
}

// OutlineEntry is one bookmark or heading from the document's own table of
// contents. Page and BlockIndex are zero/negative when the format cannot tell.
type OutlineEntry struct {
	Title      string `json:"title"`
	Level      int    `json:"level"`
	Page       int    `json:"page,omitempty"`
	BlockIndex int    `json:"block_index"`
}

type ParsedContent struct {
	TextBlocks []TextBlock            `json:"text_blocks"`
	Images     []ImageData            `json:"images"`
	Outline    []OutlineEntry         `json:"outline,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// PageCount is the highest page number seen in blocks or images.
func (c *ParsedContent) PageCount() int {
	max := 0
	for _, b := range c.TextBlocks {
		if b.Page > max {
			max = b.Page
		}
	}
	for _, img := range c.Images {
		if img.Page > max {
			max = img.Page
		}
	}
	return max
}

type Parser interface {
	Parse(ctx context.Context, path string) (*ParsedContent, error)
	FileType() FileType
}
