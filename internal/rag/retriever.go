package rag

import (
	"context"
	"errors"

	"docqa/internal/embedding"
	"docqa/internal/models"
	"docqa/internal/vectorindex"
)

// Retrieve embeds question and returns the k most relevant chunks of idx, most
// relevant first. embedder must be the one idx was built with; results from a
// different model are meaningless and this is not detected.
func Retrieve(ctx context.Context, question string, idx *vectorindex.Index, embedder embedding.Embedder, k int) ([]models.Chunk, error) {
	vec, err := embedder.Embed(ctx, question)
	if err != nil {
		if errors.Is(err, models.ErrEmbedding) {
			return nil, err
		}
		return nil, models.EmbeddingError("embed question", err)
	}

	hits, err := idx.Search(vec, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
	}
	return chunks, nil
}
