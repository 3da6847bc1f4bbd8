package models

import (
	"path/filepath"
	"strings"
)

// Format tags the encoding of an uploaded document.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatDOCX     Format = "docx"
	FormatPPTX     Format = "pptx"
	FormatXLSX     Format = "xlsx"
)

// FormatFromFilename guesses the format from the file extension. The second
// return value is false for extensions no extractor understands.
func FormatFromFilename(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, true
	case ".txt", ".text":
		return FormatText, true
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".docx":
		return FormatDOCX, true
	case ".pptx":
		return FormatPPTX, true
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	default:
		return "", false
	}
}

// Document is an uploaded blob. It is consumed by the extractor and never persisted.
type Document struct {
	Name   string
	Format Format
	Data   []byte
}

// Chunk represents a bounded text segment. SourceOffset counts runes from the
// start of the extracted text.
type Chunk struct {
	Content      string `json:"content"`
	SourceOffset int    `json:"source_offset"`
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

type PromptResponse struct {
	Query    string
	Content  string
	NotFound bool
	Sources  []Chunk
}
