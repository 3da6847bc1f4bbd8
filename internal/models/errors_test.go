package models

import (
	"errors"
	"io"
	"testing"
)

func TestPipelineErrorMatchesKindAndCause(t *testing.T) {
	err := EmbeddingError("embed chunk 3", io.ErrUnexpectedEOF)

	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("expected ErrEmbedding, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	if errors.Is(err, ErrGeneration) {
		t.Errorf("unexpected match with ErrGeneration")
	}
	want := "embed chunk 3: embedding failed: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestDimensionMismatchError(t *testing.T) {
	err := DimensionMismatchError("search", 3, 2)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Op != "search" {
		t.Errorf("expected PipelineError with op search, got %#v", err)
	}
}

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		ok     bool
	}{
		{"report.PDF", FormatPDF, true},
		{"notes.md", FormatMarkdown, true},
		{"sheet.xlsm", FormatXLSX, true},
		{"deck.pptx", FormatPPTX, true},
		{"letter.docx", FormatDOCX, true},
		{"plain.txt", FormatText, true},
		{"archive.zip", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, ok := FormatFromFilename(tt.name)
		if got != tt.format || ok != tt.ok {
			t.Errorf("FormatFromFilename(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.format, tt.ok)
		}
	}
}
