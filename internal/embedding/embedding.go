package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docqa/internal/config"
	"docqa/internal/models"
)

// Embedder maps text to a fixed-length vector. The same Embedder (and model)
// must be used to build an index and to query it; nothing checks this at runtime.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// LangchainEmbedder adapts a langchaingo embedder.
type LangchainEmbedder struct {
	embedder *embeddings.EmbedderImpl
	model    string
}

// NewEmbedder creates an embedder for the configured provider.
func NewEmbedder(cfg *config.LLMConfig) (*LangchainEmbedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case config.ProviderOpenAI:
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		client = llm
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		client = llm
	default:
		return nil, models.ConfigurationError("new embedder", fmt.Errorf("unknown provider %q", cfg.Provider))
	}

	return newLangchainEmbedder(client, cfg.Model)
}

func newLangchainEmbedder(client embeddings.EmbedderClient, model string) (*LangchainEmbedder, error) {
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &LangchainEmbedder{embedder: embedder, model: model}, nil
}

// Embed returns the embedding of text. Every failure is an embedding error.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, models.EmbeddingError("embed "+e.model, err)
	}
	if len(vec) == 0 {
		return nil, models.EmbeddingError("embed "+e.model, errors.New("empty embedding returned"))
	}
	return vec, nil
}

func (e *LangchainEmbedder) ModelID() string {
	return e.model
}
