package parser

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"docflash-be/internal/pkg/apperr"

	"github.com/ledongthuc/pdf"
)

const defaultPageHeight = 792.0 // US Letter, points

type PDFParser struct {
	// MaxImageBytes caps how much of an embedded image stream is copied out.
	MaxImageBytes int64
}

func NewPDFParser() *PDFParser {
	return &PDFParser{MaxImageBytes: 20 << 20}
}

func (p *PDFParser) FileType() FileType { return FileTypePDF }

// Parse reads text rows, image XObjects and bookmarks page by page. The pdf
// reader panics on malformed input; that is reported as a corrupt file.
func (p *PDFParser) Parse(ctx context.Context, path string) (content *ParsedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = &apperr.ParseError{Path: path, Kind: apperr.ParseCorrupt, Err: fmt.Errorf("%v", r)}
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &apperr.ParseError{Path: path, Kind: apperr.ParseCorrupt, Err: err}
	}
	defer f.Close()

	content = &ParsedContent{Metadata: map[string]interface{}{}}
	if title := documentTitle(reader); title != "" {
		content.Metadata["title"] = title
	}

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err == nil {
			content.TextBlocks = append(content.TextBlocks, blocksFromRows(i, pageHeight(page), rows)...)
		}
		content.Images = append(content.Images, p.imagesFromPage(i, page)...)
	}

	content.Outline = flattenOutline(reader.Outline().Child, 1, nil)
	return content, nil
}

func documentTitle(r *pdf.Reader) string {
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return strings.TrimSpace(info.Key("Title").Text())
}

func pageHeight(page pdf.Page) float64 {
	box := page.V.Key("MediaBox")
	if box.Len() == 4 {
		if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
			return h
		}
	}
	return defaultPageHeight
}

// blocksFromRows joins the glyph runs of each row into one block and flips
// the PDF bottom-up baseline into a top-down bounding box.
func blocksFromRows(page int, height float64, rows pdf.Rows) []TextBlock {
	blocks := make([]TextBlock, 0, len(rows))
	for _, row := range rows {
		if row == nil || len(row.Content) == 0 {
			continue
		}
		texts := append([]pdf.Text(nil), row.Content...)
		sort.SliceStable(texts, func(a, b int) bool { return texts[a].X < texts[b].X })

		var sb strings.Builder
		minX, maxX := math.MaxFloat64, 0.0
		fontSize := 0.0
		fontName := ""
		prevEnd := math.NaN()

		for _, t := range texts {
			if t.S == "" {
				continue
			}
			if !math.IsNaN(prevEnd) && t.X-prevEnd > math.Max(t.FontSize*0.25, 1) && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
			sb.WriteString(t.S)
			prevEnd = t.X + t.W
			minX = math.Min(minX, t.X)
			maxX = math.Max(maxX, t.X+t.W)
			if t.FontSize > fontSize {
				fontSize = t.FontSize
				fontName = t.Font
			}
		}

		text := strings.Join(strings.Fields(sb.String()), " ")
		if text == "" {
			continue
		}
		if fontSize <= 0 {
			fontSize = lineHeight
		}

		block := TextBlock{
			Text: text,
			Page: page,
			BBox: BoundingBox{
				X:      minX,
				Y:      math.Max(0, height-float64(row.Position)-fontSize),
				Width:  math.Max(0, maxX-minX),
				Height: fontSize,
			},
			Style: &TextStyle{
				FontSize: fontSize,
				FontName: fontName,
				Bold:     strings.Contains(strings.ToLower(fontName), "bold"),
			},
		}
		blocks = append(blocks, block)
	}

	sort.SliceStable(blocks, func(a, b int) bool { return blocks[a].BBox.Y < blocks[b].BBox.Y })
	return blocks
}

func (p *PDFParser) imagesFromPage(pageNum int, page pdf.Page) []ImageData {
	xobjects := page.Resources().Key("XObject")
	if xobjects.IsNull() {
		return nil
	}

	var images []ImageData
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}
		format := imageFormat(obj.Key("Filter"))
		img := ImageData{
			Name:   fmt.Sprintf("page%d_%s.%s", pageNum, name, format),
			Page:   pageNum,
			Format: format,
			BBox: BoundingBox{
				Width:  obj.Key("Width").Float64(),
				Height: obj.Key("Height").Float64(),
			},
		}
		if format == "jpg" || format == "jp2" {
			img.Data = p.readStream(obj)
		}
		images = append(images, img)
	}
	sort.Slice(images, func(a, b int) bool { return images[a].Name < images[b].Name })
	return images
}

// readStream returns the raw image bytes, or nil when the reader cannot
// decode the stream's filter chain.
func (p *PDFParser) readStream(obj pdf.Value) (data []byte) {
	defer func() {
		if recover() != nil {
			data = nil
		}
	}()
	rc := obj.Reader()
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, p.MaxImageBytes))
	if err != nil {
		return nil
	}
	return data
}

func imageFormat(filter pdf.Value) string {
	name := filter.Name()
	if filter.Kind() == pdf.Array && filter.Len() > 0 {
		name = filter.Index(filter.Len() - 1).Name()
	}
	switch name {
	case "DCTDecode":
		return "jpg"
	case "JPXDecode":
		return "jp2"
	case "CCITTFaxDecode", "JBIG2Decode":
		return "tiff"
	}
	return "png"
}

func flattenOutline(nodes []pdf.Outline, level int, out []OutlineEntry) []OutlineEntry {
	for _, n := range nodes {
		title := strings.TrimSpace(n.Title)
		if title != "" {
			out = append(out, OutlineEntry{Title: title, Level: level, BlockIndex: -1})
		}
		out = flattenOutline(n.Child, level+1, out)
	}
	return out
}
