// Package rag ties extraction, chunking, indexing and answering together for
// one session holding a single active index.
package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/llmservice"
	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/vectorindex"
)

// RAG owns the active index. A build holds the write lock for its whole
// duration, so queries issued meanwhile wait for it and then see the new index.
type RAG struct {
	mu    sync.RWMutex
	index *vectorindex.Index

	store     vectorindex.Store
	embedder  embedding.Embedder
	generator llmservice.Generator
	cfg       *config.Config

	inflight singleflight.Group
}

func NewRAG(store vectorindex.Store, embedder embedding.Embedder, generator llmservice.Generator, cfg *config.Config) *RAG {
	return &RAG{store: store, embedder: embedder, generator: generator, cfg: cfg}
}

// BuildReport summarises a finished build.
type BuildReport struct {
	Chunks   int
	Skipped  []parser.DocumentFailure
	Location string
	Took     time.Duration
}

// Open loads the persisted index, if any. It returns models.ErrNoIndex when
// nothing has been built yet.
func (r *RAG) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.store.Load(ctx, r.cfg.RAG.IndexLocation)
	if err != nil {
		return err
	}
	if model := r.embedder.ModelID(); idx.EmbeddingModel() != model {
		log.Warn().Str("index_model", idx.EmbeddingModel()).Str("embed_model", model).
			Msg("Index was built with a different embedding model, results may be meaningless")
	}
	r.index = idx
	return nil
}

// Prepare extracts and chunks docs without embedding anything.
func (r *RAG) Prepare(docs []models.Document) ([]models.Chunk, *parser.Result, error) {
	res, err := parser.Extract(docs)
	if err != nil {
		return nil, res, err
	}
	chunks, err := chunker.Chunk(res.Text, r.cfg.RAG.ChunkSize, r.cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, res, err
	}
	return chunks, res, nil
}

// Build replaces the active index with one built from docs and persists it.
// On any failure neither the persisted nor the active index changes.
func (r *RAG) Build(ctx context.Context, docs []models.Document) (*BuildReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	chunks, res, err := r.Prepare(docs)
	if err != nil {
		return nil, err
	}
	log.Info().Int("documents", len(docs)).Int("skipped", len(res.Failures)).
		Int("chunks", len(chunks)).Msg("Prepared chunks")

	idx, err := vectorindex.Build(ctx, chunks, r.embedder.Embed, vectorindex.BuildOptions{
		Concurrency:    r.cfg.RAG.EmbedConcurrency,
		Timeout:        time.Duration(r.cfg.RAG.EmbedTimeoutSecs) * time.Second,
		EmbeddingModel: r.embedder.ModelID(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Build aborted, keeping previous index")
		return nil, err
	}
	if err := r.store.Save(ctx, r.cfg.RAG.IndexLocation, idx); err != nil {
		log.Error().Err(err).Msg("Persisting index failed, keeping previous index")
		return nil, err
	}
	r.index = idx

	report := &BuildReport{
		Chunks:   idx.Len(),
		Skipped:  res.Failures,
		Location: r.cfg.RAG.IndexLocation,
		Took:     time.Since(start),
	}
	log.Info().Int("chunks", report.Chunks).Dur("took", report.Took).
		Str("location", report.Location).Msg("Index built")
	return report, nil
}

// Query answers question from the active index. Concurrent calls with the same
// question share one retrieval and one model call.
func (r *RAG) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}

	// the answer outlives any single caller; each caller only stops waiting
	// when its own ctx ends
	flightCtx := context.WithoutCancel(ctx)
	ch := r.inflight.DoChan(question, func() (interface{}, error) {
		chunks, err := r.retrieve(flightCtx, question)
		if err != nil {
			return nil, err
		}
		return Synthesize(flightCtx, r.generator, chunks, question)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		log.Debug().Str("question", question).Msg("Shared in-flight answer")
	}
	// callers must not share the Sources slice
	resp := *res.Val.(*models.PromptResponse)
	resp.Sources = append([]models.Chunk(nil), resp.Sources...)
	return &resp, nil
}

func (r *RAG) retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.index == nil {
		return nil, models.ErrNoIndex
	}
	chunks, err := Retrieve(ctx, question, r.index, r.embedder, r.cfg.RAG.TopK)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("chunks", len(chunks)).Msg("Retrieved context")
	return chunks, nil
}
