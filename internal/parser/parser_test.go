package parser

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	for _, text := range pages {
		doc.AddPage()
		doc.SetFont("Arial", "", 14)
		if text != "" {
			doc.Cell(40, 10, text)
		}
	}
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

func TestParseFile_PDFPages(t *testing.T) {
	path := writePDF(t, "Alpha", "Bravo", "")

	pages, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages with text, got %d", len(pages))
	}
	if pages[0].PageNumber != 1 || !strings.Contains(pages[0].Content, "Alpha") {
		t.Errorf("unexpected first page: %+v", pages[0])
	}
	if pages[1].PageNumber != 2 || !strings.Contains(pages[1].Content, "Bravo") {
		t.Errorf("unexpected second page: %+v", pages[1])
	}
	if pages[0].Source != "doc.pdf" {
		t.Errorf("expected source doc.pdf, got %s", pages[0].Source)
	}
}

func TestParseFile_MalformedPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("definitely not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestParseFile_Unsupported(t *testing.T) {
	_, err := ParseFile("archive.tar.gz")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseFile_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain notes"), 0o644); err != nil {
		t.Fatal(err)
	}
	pages, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pages) != 1 || pages[0].Content != "plain notes" || pages[0].PageNumber != 1 {
		t.Errorf("unexpected pages: %+v", pages)
	}
}

func TestParseFile_EmptyText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pages, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected no pages, got %d", len(pages))
	}
}

func TestParseFile_Spreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", "product"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "price"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	pages, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 non-empty sheet, got %d", len(pages))
	}
	if !strings.Contains(pages[0].Content, "## Sheet: Sheet1") || !strings.Contains(pages[0].Content, "product\tprice") {
		t.Errorf("unexpected sheet content: %q", pages[0].Content)
	}
}

type zipEntry struct{ name, body string }

func writeZip(t *testing.T, name string, entries []zipEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFile_DOCXParagraphs(t *testing.T) {
	path := writeZip(t, "notes.docx", []zipEntry{
		{"word/document.xml", `<w:document><w:body>` +
			`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>` +
			`<w:p></w:p>` +
			`<w:p w:rsidR="00A1"><w:r><w:t>Fish &amp; chips</w:t></w:r></w:p>` +
			`</w:body></w:document>`},
		{"word/_rels/document.xml.rels", `<Relationships/>`},
	})

	pages, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected a single page, got %d", len(pages))
	}
	if pages[0].PageNumber != 1 || pages[0].Source != "notes.docx" {
		t.Errorf("unexpected page metadata: %+v", pages[0])
	}
	if pages[0].Content != "Hello world\n\nFish & chips\n\n" {
		t.Errorf("unexpected content: %q", pages[0].Content)
	}
}

func TestParseFile_PPTXSlideOrder(t *testing.T) {
	path := writeZip(t, "deck.pptx", []zipEntry{
		{"ppt/slides/slide10.xml", `<p:sld><a:t>Ten</a:t></p:sld>`},
		{"ppt/slides/slide2.xml", `<p:sld><a:t>Two &amp; more</a:t></p:sld>`},
		{"ppt/slides/_rels/slide2.xml.rels", `<Relationships/>`},
	})

	pages, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(pages))
	}
	if pages[0].PageNumber != 2 || strings.TrimSpace(pages[0].Content) != "Two & more" {
		t.Errorf("unexpected first slide: %+v", pages[0])
	}
	if pages[1].PageNumber != 10 {
		t.Errorf("unexpected second slide: %+v", pages[1])
	}
}

func TestMarkdownToText(t *testing.T) {
	src := []byte("# Title\n\nSome **bold** text and a [link](http://example.com).\n\n```\ncode line\n```\n")
	got := MarkdownToText(src)
	for _, want := range []string{"Title", "Some bold text and a link.", "code line"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
	if strings.Contains(got, "**") || strings.Contains(got, "http://example.com") {
		t.Errorf("markdown syntax leaked: %q", got)
	}
}
