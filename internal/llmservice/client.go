package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"docqa/internal/config"
	"docqa/internal/models"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

// Generator answers a filled-in prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LangchainGenerator sends prompts to a langchaingo model.
type LangchainGenerator struct {
	llm         llms.Model
	model       string
	temperature float64
}

// NewGenerator creates a generator for the configured provider.
func NewGenerator(cfg *config.LLMConfig) (*LangchainGenerator, error) {
	log.Debug().Interface("config", map[string]interface{}{
		"provider":    cfg.Provider,
		"base_url":    cfg.BaseURL,
		"model":       cfg.Model,
		"temperature": cfg.Temperature,
	}).Msg("Creating generator")

	var llm llms.Model
	var err error
	switch cfg.Provider {
	case config.ProviderOpenAI:
		llm, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
	case config.ProviderOllama:
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, models.ConfigurationError("new generator", fmt.Errorf("unknown provider %q", cfg.Provider))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s client: %w", cfg.Provider, err)
	}
	return NewLangchainGenerator(llm, cfg.Model, cfg.Temperature), nil
}

func NewLangchainGenerator(llm llms.Model, model string, temperature float64) *LangchainGenerator {
	return &LangchainGenerator{llm: llm, model: model, temperature: temperature}
}

// Generate returns the model's reply with any <think> block removed.
func (g *LangchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	op := "generate " + g.model
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	res, err := g.llm.GenerateContent(ctx, messages, llms.WithTemperature(g.temperature))
	if err != nil {
		return "", models.GenerationError(op, err)
	}
	if len(res.Choices) == 0 {
		return "", models.GenerationError(op, errors.New("no choices returned"))
	}

	answer := thinkRe.ReplaceAllString(res.Choices[0].Content, "")
	return strings.TrimSpace(answer), nil
}
