// Package chunker splits extracted text into overlapping fixed-size windows.
package chunker

import (
	"fmt"
	"strings"

	"docqa/internal/models"
)

// Chunk splits text into windows of chunkSize runes. Each window starts
// chunkSize-overlap runes after the previous one, and the last window covers
// the remaining tail exactly once.
func Chunk(text string, chunkSize, overlap int) ([]models.Chunk, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := chunkSize - overlap

	var chunks []models.Chunk
	for start := 0; ; start += step {
		if len(runes)-start <= chunkSize {
			chunks = append(chunks, models.Chunk{
				Content:      string(runes[start:]),
				SourceOffset: start,
			})
			break
		}
		chunks = append(chunks, models.Chunk{
			Content:      string(runes[start : start+chunkSize]),
			SourceOffset: start,
		})
	}
	return chunks, nil
}

// Validate reports whether chunkSize and overlap describe a window that advances.
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return models.ConfigurationError("chunk", fmt.Errorf("chunk size must be positive, got %d", chunkSize))
	}
	if overlap < 0 {
		return models.ConfigurationError("chunk", fmt.Errorf("overlap must not be negative, got %d", overlap))
	}
	if overlap >= chunkSize {
		return models.ConfigurationError("chunk", fmt.Errorf("overlap (%d) must be smaller than chunk size (%d)", overlap, chunkSize))
	}
	return nil
}

// Reassemble rebuilds the original text from chunks produced by Chunk with the
// same overlap: every chunk after the first contributes all but its first
// overlap runes.
func Reassemble(chunks []models.Chunk, overlap int) string {
	var content strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			content.WriteString(chunk.Content)
			continue
		}
		runes := []rune(chunk.Content)
		if len(runes) > overlap {
			content.WriteString(string(runes[overlap:]))
		}
	}
	return content.String()
}
