package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"docflash-be/internal/pkg/apperr"
)

// DOCX paragraphs are laid out two lines apart so each one reads as its own
// segment downstream.
const docxParagraphSpacing = 2 * lineHeight

type DOCXParser struct{}

func NewDOCXParser() *DOCXParser { return &DOCXParser{} }

func (p *DOCXParser) FileType() FileType { return FileTypeDOCX }

type docxParagraph struct {
	style  string
	text   string
	bold   bool
	page   int
	images []docxImage
}

type docxImage struct {
	relID string
	name  string
	alt   string
}

func (p *DOCXParser) Parse(ctx context.Context, filePath string) (*ParsedContent, error) {
	rc, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, &apperr.ParseError{Path: filePath, Kind: apperr.ParseCorrupt, Err: err}
	}
	defer rc.Close()

	body, err := readZipFile(rc.File, "word/document.xml")
	if err != nil {
		return nil, &apperr.ParseError{Path: filePath, Kind: apperr.ParseCorrupt, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paras, err := extractDocxParagraphs(body)
	if err != nil {
		return nil, &apperr.ParseError{Path: filePath, Kind: apperr.ParseCorrupt, Err: err}
	}

	rels := map[string]string{}
	if raw, err := readZipFile(rc.File, "word/_rels/document.xml.rels"); err == nil {
		rels = extractRelationships(raw)
	}

	content := &ParsedContent{Metadata: map[string]interface{}{}}
	if raw, err := readZipFile(rc.File, "docProps/core.xml"); err == nil {
		if title := extractCoreTitle(raw); title != "" {
			content.Metadata["title"] = title
		}
	}

	for i, para := range paras {
		y := float64(i) * docxParagraphSpacing

		for _, ref := range para.images {
			target, ok := rels[ref.relID]
			if !ok {
				continue
			}
			zipPath := path.Join("word", target)
			img := ImageData{
				Name:       path.Base(target),
				Source:     zipPath,
				Page:       para.page,
				BBox:       BoundingBox{Y: y, Height: lineHeight},
				Format:     strings.TrimPrefix(strings.ToLower(path.Ext(target)), "."),
				AltText:    ref.alt,
				Positioned: true,
			}
			if data, err := readZipFile(rc.File, zipPath); err == nil {
				img.Data = data
			}
			content.Images = append(content.Images, img)
		}

		if para.text == "" {
			continue
		}

		var style *TextStyle
		level := headingLevel(para.style)
		if level > 0 || para.bold {
			style = &TextStyle{HeadingLevel: level, Bold: para.bold}
		}
		if level > 0 {
			content.Outline = append(content.Outline, OutlineEntry{
				Title:      para.text,
				Level:      level,
				Page:       para.page,
				BlockIndex: len(content.TextBlocks),
			})
		}

		block := TextBlock{
			Text:  para.text,
			Page:  para.page,
			BBox:  BoundingBox{Y: y, Width: float64(len([]rune(para.text))) * charWidth, Height: lineHeight},
			Style: style,
		}
		content.TextBlocks = append(content.TextBlocks, block)
	}

	return content, nil
}

func readZipFile(files []*zip.File, target string) ([]byte, error) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(f.Name), strings.TrimSpace(target)) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("file not found: %s", target)
}

func extractDocxParagraphs(body []byte) ([]docxParagraph, error) {
	dec := xml.NewDecoder(strings.NewReader(string(body)))
	var (
		depth      int
		inText     bool
		inRunProps bool
		current    docxParagraph
		text       strings.Builder
		out        []docxParagraph
		page       = 1
		pendingImg *docxImage
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				depth++
				if depth == 1 {
					current = docxParagraph{page: page}
					text.Reset()
				}
			case "pStyle":
				if depth > 0 {
					current.style = attr(t, "val")
				}
			case "rPr":
				inRunProps = true
			case "b":
				if inRunProps && depth > 0 && attr(t, "val") != "0" && attr(t, "val") != "false" {
					current.bold = true
				}
			case "t":
				if depth > 0 {
					inText = true
				}
			case "tab":
				if depth > 0 && !inRunProps {
					text.WriteString("\t")
				}
			case "br":
				if attr(t, "type") == "page" {
					page++
				} else if depth > 0 {
					text.WriteString("\n")
				}
			case "pageBreakBefore":
				if depth == 1 && text.Len() == 0 && attr(t, "val") != "0" {
					page++
					current.page = page
				}
			case "docPr":
				pendingImg = &docxImage{name: attr(t, "name"), alt: attr(t, "descr")}
			case "blip":
				if depth > 0 {
					img := docxImage{relID: attr(t, "embed")}
					if pendingImg != nil {
						img.name = pendingImg.name
						img.alt = pendingImg.alt
						pendingImg = nil
					}
					current.images = append(current.images, img)
				}
			}
		case xml.CharData:
			if depth > 0 && inText {
				text.WriteString(string(t))
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "rPr":
				inRunProps = false
			case "p":
				if depth == 1 {
					current.text = strings.TrimSpace(text.String())
					out = append(out, current)
				}
				if depth > 0 {
					depth--
				}
			}
		}
	}
	return out, nil
}

func extractRelationships(raw []byte) map[string]string {
	var doc struct {
		Relationships []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	out := map[string]string{}
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return out
	}
	for _, r := range doc.Relationships {
		out[r.ID] = strings.TrimPrefix(r.Target, "/word/")
	}
	return out
}

func extractCoreTitle(raw []byte) string {
	var doc struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Title)
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if strings.EqualFold(a.Name.Local, local) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// headingLevel understands the built-in Word style ids ("Heading1") and
// their display names ("heading 1").
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(style), " ", ""))
	switch {
	case s == "":
		return 0
	case s == "title":
		return 1
	case s == "subtitle":
		return 2
	case strings.HasPrefix(s, "heading"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
		if err != nil || n < 1 {
			return 1
		}
		if n > 6 {
			return 6
		}
		return n
	}
	return 0
}
