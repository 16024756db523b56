package parser

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docflash-be/internal/pkg/apperr"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectFileType(t *testing.T) {
	tests := map[string]FileType{
		"book.PDF":     FileTypePDF,
		"notes.docx":   FileTypeDOCX,
		"readme.md":    FileTypeMarkdown,
		"x.markdown":   FileTypeMarkdown,
		"plain.txt":    FileTypeText,
		"archive.tar":  "",
		"no-extension": "",
	}
	for name, want := range tests {
		got, ok := DetectFileType(name)
		assert.Equal(t, want, got, name)
		assert.Equal(t, want != "", ok, name)
	}
}

func TestRegistry_MissingFile(t *testing.T) {
	r := NewDefaultRegistry()
	_, err := r.Parse(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), FileTypePDF)

	var parseErr *apperr.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, apperr.ParseNotFound, parseErr.Kind)
}

func TestRegistry_CorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "this is definitely not a pdf file")

	_, err := NewDefaultRegistry().Parse(context.Background(), path, FileTypePDF)

	var parseErr *apperr.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, apperr.ParseCorrupt, parseErr.Kind)
}

func TestRegistry_CorruptDOCX(t *testing.T) {
	path := writeFile(t, "broken.docx", "PK but not really")

	_, err := NewDefaultRegistry().Parse(context.Background(), path, FileTypeDOCX)

	var parseErr *apperr.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, apperr.ParseCorrupt, parseErr.Kind)
}

func TestRegistry_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.txt", "")

	_, err := NewDefaultRegistry().Parse(context.Background(), path, FileTypeText)

	var parseErr *apperr.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, apperr.ParseEmpty, parseErr.Kind)
}

func TestRegistry_WhitespaceOnlyIsEmpty(t *testing.T) {
	path := writeFile(t, "blank.txt", "   \n\n\t\n")

	_, err := NewDefaultRegistry().Parse(context.Background(), path, FileTypeText)

	var parseErr *apperr.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, apperr.ParseEmpty, parseErr.Kind)
}

func TestRegistry_Unsupported(t *testing.T) {
	path := writeFile(t, "sheet.xls", "data")

	_, err := NewDefaultRegistry().Parse(context.Background(), path, FileType("xls"))

	var unsupported *apperr.UnsupportedFormatError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "xls", unsupported.Format)
}

func TestRegistry_FillsMetadata(t *testing.T) {
	path := writeFile(t, "doc.txt", "one\n\ntwo\fthree")

	content, err := NewDefaultRegistry().Parse(context.Background(), path, FileTypeText)
	require.NoError(t, err)
	assert.Equal(t, "txt", content.Metadata["format"])
	assert.Equal(t, 2, content.Metadata["page_count"])
	assert.Equal(t, 3, content.Metadata["block_count"])
}

func TestTextParser_LinesAndPages(t *testing.T) {
	path := writeFile(t, "doc.txt", "Chapter 1: A\nfirst line\nsecond line\n\nnew paragraph\fChapter 2: B\nbody")

	content, err := NewTextParser().Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, content.TextBlocks, 6)

	assert.Equal(t, "Chapter 1: A", content.TextBlocks[0].Text)
	assert.Equal(t, 1, content.TextBlocks[0].Page)
	assert.Equal(t, 0.0, content.TextBlocks[0].BBox.Y)

	// the blank line leaves a one-line gap
	gap := content.TextBlocks[3].BBox.Y - content.TextBlocks[2].BBox.Bottom()
	assert.Equal(t, lineHeight, gap)

	assert.Equal(t, "Chapter 2: B", content.TextBlocks[4].Text)
	assert.Equal(t, 2, content.TextBlocks[4].Page)
}

func TestTextParser_Windows1252Fallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin.txt")
	require.NoError(t, os.WriteFile(path, []byte("caf\xe9 au lait"), 0o644))

	content, err := NewTextParser().Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, content.TextBlocks, 1)
	assert.Equal(t, "café au lait", content.TextBlocks[0].Text)
}

func TestMarkdownParser(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "diagram.png"), []byte("\x89PNG fake"), 0o644))

	md := "# Intro\n\nSome text here.\n\n![A diagram](diagram.png)\n\nFigure 1: The diagram\n\n```go\n# not a heading\nfmt.Println()\n```\n\nSection Two\n-----------\n\nMore."
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(md), 0o644))

	content, err := NewMarkdownParser().Parse(context.Background(), path)
	require.NoError(t, err)

	texts := make([]string, 0, len(content.TextBlocks))
	for _, b := range content.TextBlocks {
		texts = append(texts, b.Text)
	}
	assert.Equal(t, []string{
		"# Intro",
		"Some text here.",
		"Figure 1: The diagram",
		"```go\n# not a heading\nfmt.Println()\n```",
		"Section Two",
		"More.",
	}, texts)

	require.Len(t, content.Outline, 2)
	assert.Equal(t, OutlineEntry{Title: "Intro", Level: 1, Page: 1, BlockIndex: 0}, content.Outline[0])
	assert.Equal(t, OutlineEntry{Title: "Section Two", Level: 2, Page: 1, BlockIndex: 4}, content.Outline[1])

	require.Len(t, content.Images, 1)
	img := content.Images[0]
	assert.Equal(t, "diagram.png", img.Name)
	assert.Equal(t, "A diagram", img.AltText)
	assert.Equal(t, "png", img.Format)
	assert.True(t, img.Positioned)
	assert.NotEmpty(t, img.Data)
	assert.Less(t, img.BBox.Y, content.TextBlocks[2].BBox.Y)
}

func TestMarkdownParser_RemoteImageHasNoData(t *testing.T) {
	path := writeFile(t, "doc.md", "text\n\n![logo](https://example.com/logo.svg)\n")

	content, err := NewMarkdownParser().Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, content.Images, 1)
	assert.Nil(t, content.Images[0].Data)
	assert.Equal(t, "https://example.com/logo.svg", content.Images[0].Source)
}

const docxDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"
  xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
  xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Photosynthesis</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Photosynthesis is defined as </w:t></w:r><w:r><w:t>the conversion of light.</w:t></w:r></w:p>
<w:p><w:r><w:drawing><wp:inline><wp:docPr id="1" name="Leaf" descr="A leaf"/><a:graphic><a:graphicData><a:blip r:embed="rId5"/></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>
<w:p><w:r><w:t>Figure 1: Leaf structure</w:t></w:r></w:p>
<w:p><w:r><w:br w:type="page"/></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Light reactions</w:t></w:r></w:p>
</w:body>
</w:document>`

const docxRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
</Relationships>`

func writeDocx(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestDOCXParser(t *testing.T) {
	path := writeDocx(t, map[string]string{
		"word/document.xml":            docxDocument,
		"word/_rels/document.xml.rels": docxRels,
		"word/media/image1.png":        "\x89PNG fake",
		"docProps/core.xml":            `<cp:coreProperties xmlns:cp="x" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Biology</dc:title></cp:coreProperties>`,
	})

	content, err := NewDOCXParser().Parse(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, content.TextBlocks, 4)
	assert.Equal(t, "Photosynthesis", content.TextBlocks[0].Text)
	require.NotNil(t, content.TextBlocks[0].Style)
	assert.Equal(t, 1, content.TextBlocks[0].Style.HeadingLevel)
	assert.Equal(t, "Photosynthesis is defined as the conversion of light.", content.TextBlocks[1].Text)
	assert.Equal(t, 1, content.TextBlocks[2].Page)
	assert.Equal(t, 2, content.TextBlocks[3].Page)

	require.Len(t, content.Outline, 2)
	assert.Equal(t, "Light reactions", content.Outline[1].Title)
	assert.Equal(t, 2, content.Outline[1].Level)
	assert.Equal(t, 3, content.Outline[1].BlockIndex)

	require.Len(t, content.Images, 1)
	assert.Equal(t, "image1.png", content.Images[0].Name)
	assert.Equal(t, "A leaf", content.Images[0].AltText)
	assert.Equal(t, []byte("\x89PNG fake"), content.Images[0].Data)

	assert.Equal(t, "Biology", content.Metadata["title"])
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("Heading1"))
	assert.Equal(t, 3, headingLevel("heading 3"))
	assert.Equal(t, 1, headingLevel("Title"))
	assert.Equal(t, 0, headingLevel("Normal"))
	assert.Equal(t, 0, headingLevel(""))
}

func TestBlocksFromRows(t *testing.T) {
	rows := pdf.Rows{
		&pdf.Row{Position: 700, Content: pdf.TextHorizontal{
			{Font: "Helvetica-Bold", FontSize: 18, X: 72, W: 60, S: "Chapter"},
			{Font: "Helvetica-Bold", FontSize: 18, X: 140, W: 10, S: "1"},
		}},
		&pdf.Row{Position: 670, Content: pdf.TextHorizontal{
			{Font: "Helvetica", FontSize: 11, X: 72, W: 6, S: "H"},
			{Font: "Helvetica", FontSize: 11, X: 78, W: 6, S: "i"},
		}},
		&pdf.Row{Position: 650, Content: pdf.TextHorizontal{{Font: "Helvetica", FontSize: 11, X: 72, W: 3, S: "  "}}},
	}

	blocks := blocksFromRows(3, 792, rows)
	require.Len(t, blocks, 2)

	assert.Equal(t, "Chapter 1", blocks[0].Text)
	assert.Equal(t, 3, blocks[0].Page)
	assert.Equal(t, 792.0-700-18, blocks[0].BBox.Y)
	assert.Equal(t, 18.0, blocks[0].Style.FontSize)
	assert.True(t, blocks[0].Style.Bold)

	assert.Equal(t, "Hi", blocks[1].Text)
	assert.Less(t, blocks[0].BBox.Y, blocks[1].BBox.Y)
}
