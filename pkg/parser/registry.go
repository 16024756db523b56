package parser

import (
	"context"
	"errors"
	"os"
	"strings"

	"docflash-be/internal/pkg/apperr"
)

// Registry dispatches to the parser registered for a FileType and enforces
// the checks common to every format.
type Registry struct {
	parsers map[FileType]Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[FileType]Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// NewDefaultRegistry knows every format the service accepts.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		NewPDFParser(),
		NewDOCXParser(),
		NewMarkdownParser(),
		NewTextParser(),
	)
}

func (r *Registry) Register(p Parser) {
	r.parsers[p.FileType()] = p
}

func (r *Registry) Supports(fileType FileType) bool {
	_, ok := r.parsers[fileType]
	return ok
}

func (r *Registry) Parse(ctx context.Context, path string, fileType FileType) (*ParsedContent, error) {
	p, ok := r.parsers[fileType]
	if !ok {
		return nil, &apperr.UnsupportedFormatError{Format: string(fileType)}
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &apperr.ParseError{Path: path, Kind: apperr.ParseNotFound, Err: err}
		}
		return nil, &apperr.ParseError{Path: path, Kind: apperr.ParseUnreadable, Err: err}
	}
	if info.IsDir() {
		return nil, &apperr.ParseError{Path: path, Kind: apperr.ParseUnreadable, Err: errors.New("path is a directory")}
	}
	if info.Size() == 0 {
		return nil, &apperr.ParseError{Path: path, Kind: apperr.ParseEmpty, Err: errors.New("file is empty")}
	}

	content, err := p.Parse(ctx, path)
	if err != nil {
		return nil, err
	}

	if !hasText(content) && len(content.Images) == 0 {
		return nil, &apperr.ParseError{Path: path, Kind: apperr.ParseEmpty, Err: errors.New("no extractable content")}
	}
	if content.Metadata == nil {
		content.Metadata = map[string]interface{}{}
	}
	content.Metadata["format"] = string(fileType)
	content.Metadata["page_count"] = content.PageCount()
	content.Metadata["block_count"] = len(content.TextBlocks)
	content.Metadata["image_count"] = len(content.Images)

	return content, nil
}

func hasText(c *ParsedContent) bool {
	for _, b := range c.TextBlocks {
		if strings.TrimSpace(b.Text) != "" {
			return true
		}
	}
	return false
}
