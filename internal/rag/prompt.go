package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa/internal/llmservice"
	"docqa/internal/models"
)

// BuildPrompt fills the answer template with the chunks in retrieval order.
func BuildPrompt(chunks []models.Chunk, question string) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return fmt.Sprintf(models.AnswerPromptTemplate, strings.Join(parts, models.ContextSeparator), question)
}

// IsNotFound reports whether answer is the fixed not-found reply, ignoring
// case, surrounding quotes and trailing punctuation.
func IsNotFound(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	a = strings.Trim(a, "\"'`.!")
	return a == models.NotFoundAnswer
}

// Synthesize asks gen to answer question from chunks only. With no chunks
// there is nothing to answer from, so the not-found reply is returned without
// calling the model.
func Synthesize(ctx context.Context, gen llmservice.Generator, chunks []models.Chunk, question string) (*models.PromptResponse, error) {
	resp := &models.PromptResponse{Query: question, Sources: chunks}
	if len(chunks) == 0 {
		resp.Content = models.NotFoundAnswer
		resp.NotFound = true
		return resp, nil
	}

	answer, err := gen.Generate(ctx, BuildPrompt(chunks, question))
	if err != nil {
		if errors.Is(err, models.ErrGeneration) {
			return nil, err
		}
		return nil, models.GenerationError("generate answer", err)
	}
	resp.Content = answer
	resp.NotFound = IsNotFound(answer)
	return resp, nil
}
