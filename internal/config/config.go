package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"docqa/internal/models"
)

const (
	BackendChromem  = "chromem"
	BackendPostgres = "postgres"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DriverPgdriver = "pgdriver"
	DriverPQ       = "pq"
)

type Config struct {
	RAG          RAGConfig      `yaml:"rag"`
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	Database     DatabaseConfig `yaml:"database"`
}

type RAGConfig struct {
	ChunkSize        int    `yaml:"chunk_size"`
	ChunkOverlap     int    `yaml:"chunk_overlap"`
	TopK             int    `yaml:"top_k"`
	IndexLocation    string `yaml:"index_location"`
	IndexBackend     string `yaml:"index_backend"`
	EmbedConcurrency int    `yaml:"embed_concurrency"`
	EmbedTimeoutSecs int    `yaml:"embed_timeout_secs"`
	Compress         bool   `yaml:"compress"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

// LoadConfig reads the YAML file at path, falling back to defaults when the
// file does not exist. Secrets from .env and the environment override the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, models.ConfigurationError("parse "+path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		RAG: RAGConfig{
			ChunkSize:        models.DefaultChunkSize,
			ChunkOverlap:     models.DefaultChunkOverlap,
			TopK:             models.DefaultTopK,
			IndexLocation:    models.DefaultIndexLocation,
			IndexBackend:     BackendChromem,
			EmbedConcurrency: 4,
			EmbedTimeoutSecs: 60,
		},
		EmbedLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		InferenceLLM: LLMConfig{
			Provider:    ProviderOllama,
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1",
			Temperature: models.DefaultTemperature,
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EMBED_API_KEY"); v != "" {
		cfg.EmbedLLM.Key = v
	}
	if v := os.Getenv("INFERENCE_API_KEY"); v != "" {
		cfg.InferenceLLM.Key = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

// applyDefaults fills in fields an explicit YAML file left empty. chunk_overlap
// is left alone since zero overlap is valid.
func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = models.DefaultChunkSize
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}
	if cfg.RAG.IndexLocation == "" {
		cfg.RAG.IndexLocation = models.DefaultIndexLocation
	}
	if cfg.RAG.IndexBackend == "" {
		cfg.RAG.IndexBackend = BackendChromem
	}
	if cfg.RAG.EmbedConcurrency == 0 {
		cfg.RAG.EmbedConcurrency = 4
	}
	if cfg.RAG.EmbedTimeoutSecs == 0 {
		cfg.RAG.EmbedTimeoutSecs = 60
	}
}

// Validate checks the recognised options and reports the first problem as a
// configuration error.
func (c *Config) Validate() error {
	const op = "validate config"
	r := c.RAG
	switch {
	case r.ChunkSize <= 0:
		return models.ConfigurationError(op, fmt.Errorf("chunk_size must be positive, got %d", r.ChunkSize))
	case r.ChunkOverlap < 0:
		return models.ConfigurationError(op, fmt.Errorf("chunk_overlap must not be negative, got %d", r.ChunkOverlap))
	case r.ChunkOverlap >= r.ChunkSize:
		return models.ConfigurationError(op, fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", r.ChunkOverlap, r.ChunkSize))
	case r.TopK <= 0:
		return models.ConfigurationError(op, fmt.Errorf("top_k must be positive, got %d", r.TopK))
	case r.EmbedConcurrency < 0:
		return models.ConfigurationError(op, fmt.Errorf("embed_concurrency must not be negative, got %d", r.EmbedConcurrency))
	case r.IndexBackend != BackendChromem && r.IndexBackend != BackendPostgres:
		return models.ConfigurationError(op, fmt.Errorf("unknown index_backend %q", r.IndexBackend))
	case r.IndexBackend == BackendPostgres && c.Database.DSN == "":
		return models.ConfigurationError(op, errors.New("database.dsn is required for the postgres backend"))
	case c.Database.Driver != "" && c.Database.Driver != DriverPgdriver && c.Database.Driver != DriverPQ:
		return models.ConfigurationError(op, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	case c.InferenceLLM.Temperature < 0 || c.InferenceLLM.Temperature > 2:
		return models.ConfigurationError(op, fmt.Errorf("temperature must be within [0, 2], got %g", c.InferenceLLM.Temperature))
	}
	for _, l := range []LLMConfig{c.EmbedLLM, c.InferenceLLM} {
		if l.Provider != ProviderOpenAI && l.Provider != ProviderOllama {
			return models.ConfigurationError(op, fmt.Errorf("unknown provider %q", l.Provider))
		}
		if l.Model == "" {
			return models.ConfigurationError(op, fmt.Errorf("%s provider needs a model", l.Provider))
		}
	}
	return nil
}
