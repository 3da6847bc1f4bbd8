// Package parser turns uploaded documents into a single text stream.
package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"

	"docqa/internal/models"
)

// DocumentSeparator is written between consecutive documents.
const DocumentSeparator = "\n"

var slideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// DocumentFailure records a document skipped during extraction.
type DocumentFailure struct {
	Name string
	Err  error
}

// Result is the concatenated text of every document that could be parsed.
type Result struct {
	Text     string
	Failures []DocumentFailure
}

// Extract parses every document in order and joins their text. A document that
// cannot be parsed is skipped and reported in Result.Failures; only when every
// document of a non-empty batch fails does Extract return an error.
func Extract(docs []models.Document) (*Result, error) {
	res := &Result{}
	var parts []string
	for _, doc := range docs {
		content, err := ExtractDocument(doc)
		if err != nil {
			log.Warn().Err(err).Str("document", doc.Name).Msg("Skipping document")
			res.Failures = append(res.Failures, DocumentFailure{Name: doc.Name, Err: err})
			continue
		}
		parts = append(parts, content)
	}

	if len(docs) > 0 && len(res.Failures) == len(docs) {
		errs := make([]error, len(res.Failures))
		for i, f := range res.Failures {
			errs[i] = f.Err
		}
		return res, models.ExtractionError("extract documents", errors.Join(errs...))
	}

	res.Text = strings.Join(parts, DocumentSeparator)
	return res, nil
}

// ExtractDocument returns the plain text of a single document.
func ExtractDocument(doc models.Document) (string, error) {
	op := "extract " + doc.Name

	var content string
	var err error
	switch doc.Format {
	case models.FormatPDF:
		content, err = parsePDF(doc.Data)
	case models.FormatText:
		content = strings.ToValidUTF8(string(doc.Data), "�")
	case models.FormatMarkdown:
		content, err = parseMarkdown(doc.Data)
	case models.FormatDOCX:
		content, err = parseDOCX(doc.Data)
	case models.FormatPPTX:
		content, err = parsePPTX(doc.Data)
	case models.FormatXLSX:
		content, err = parseXLSX(doc.Data)
	default:
		return "", models.ExtractionError(op, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, doc.Format))
	}
	if err != nil {
		return "", models.ExtractionError(op, err)
	}
	return content, nil
}

// LoadDocument reads a file from disk and tags it by extension.
func LoadDocument(filePath string) (models.Document, error) {
	format, ok := models.FormatFromFilename(filePath)
	if !ok {
		return models.Document{}, models.ExtractionError("load "+filePath,
			fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Ext(filePath)))
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to read document: %w", err)
	}
	return models.Document{Name: filepath.Base(filePath), Format: format, Data: data}, nil
}

// parsePDF reads the document page by page. The pdf package panics on some
// malformed inputs, so panics are turned into errors.
func parsePDF(data []byte) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		text.WriteString(pageText)
	}
	return text.String(), nil
}

func parseMarkdown(data []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(gmtext.NewReader(data))

	var text strings.Builder
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				text.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			text.Write(node.Segment.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				text.WriteString("\n")
			}
		case *ast.String:
			text.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				text.Write(seg.Value(data))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return text.String(), nil
}

func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	return extractTextFromXML(r.Editable().GetContent())
}

func parsePPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range zr.File {
		m := slideRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: file})
	}
	if len(slides) == 0 {
		return "", errors.New("no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var text strings.Builder
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		slideText, err := extractTextFromXML(string(raw))
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", s.num, err)
		}
		text.WriteString(slideText)
	}
	return text.String(), nil
}

// parseXLSX renders each sheet as tab separated rows. excelize handles most
// workbooks; tealeg/xlsx is tried when excelize rejects the file.
func parseXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("excelize could not open workbook, falling back to xlsx")
		return parseXLSXFallback(data)
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

func parseXLSXFallback(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for i, cell := range row.Cells {
				cells[i] = cell.String()
			}
			text.WriteString(strings.Join(cells, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

// extractTextFromXML collects the text runs (<w:t>, <a:t>) of an Office Open
// XML part, ending each paragraph with a newline.
func extractTextFromXML(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var text strings.Builder
	inRun := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				text.WriteString("\n")
			}
		case xml.CharData:
			if inRun {
				text.Write(t)
			}
		}
	}
	return text.String(), nil
}
