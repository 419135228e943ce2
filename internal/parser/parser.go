package parser

import (
	"archive/zip"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"pdfchat/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

const defaultPageNumber = 1

var (
	docxParagraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxTextRe      = regexp.MustCompile(`<w:t(?: [^>]*)?>([^<]*)</w:t>`)
	pptxTextRe      = regexp.MustCompile(`<a:t>([^<]*)</a:t>`)
	pptxSlideRe     = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// SupportedExtensions lists every extension ParseFile understands.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".pptx", ".xlsx", ".ods", ".txt", ".md"}
}

// ParseFile extracts page-level text units from the file at filePath.
// Pages without any text are dropped.
func ParseFile(filePath string) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var (
		pages []models.Page
		err   error
	)
	switch ext {
	case ".pdf":
		pages, err = parsePDF(filePath)
	case ".docx":
		pages, err = parseDOCX(filePath)
	case ".pptx":
		pages, err = parsePPTX(filePath)
	case ".xlsx", ".ods":
		pages, err = parseSpreadsheet(filePath)
	case ".txt":
		pages, err = parseText(filePath)
	case ".md":
		pages, err = parseMarkdown(filePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(filePath), err)
	}

	source := filepath.Base(filePath)
	for i := range pages {
		pages[i].Source = source
	}
	log.Debug().Str("file", source).Int("pages", len(pages)).Msg("Parsed document")
	return pages, nil
}

func parsePDF(filePath string) ([]models.Page, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		pages = append(pages, models.Page{
			Content:    pageText,
			PageNumber: i,
		})
	}
	return pages, nil
}

func parseDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var text strings.Builder
	for _, paragraph := range docxParagraphRe.FindAllString(content, -1) {
		line := extractText(paragraph, docxTextRe, "")
		if strings.TrimSpace(line) == "" {
			continue
		}
		text.WriteString(line)
		text.WriteString("\n\n")
	}
	// DOCX has no page numbers
	return singlePage(text.String()), nil
}

func parsePPTX(filePath string) ([]models.Page, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		number int
		file   *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := pptxSlideRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{number: n, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var pages []models.Page
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		slideText := extractText(string(data), pptxTextRe, " ")
		if strings.TrimSpace(slideText) == "" {
			continue
		}
		pages = append(pages, models.Page{Content: slideText, PageNumber: s.number})
	}
	return pages, nil
}

// parseSpreadsheet treats every sheet as a page.
func parseSpreadsheet(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		if len(rows) == 0 {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		pages = append(pages, models.Page{
			Content:    text.String(),
			PageNumber: sheetNum + 1, // 1-based indexing
		})
	}
	return pages, nil
}

func parseText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return singlePage(string(data)), nil
}

func parseMarkdown(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return singlePage(MarkdownToText(data)), nil
}

func singlePage(content string) []models.Page {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return []models.Page{{Content: content, PageNumber: defaultPageNumber}}
}

func extractText(xmlContent string, re *regexp.Regexp, sep string) string {
	var text strings.Builder
	for _, m := range re.FindAllStringSubmatch(xmlContent, -1) {
		text.WriteString(html.UnescapeString(m[1]))
		text.WriteString(sep)
	}
	return text.String()
}
