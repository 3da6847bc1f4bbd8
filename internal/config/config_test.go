package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docqa/internal/models"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.RAG.ChunkSize != 10000 || cfg.RAG.ChunkOverlap != 1000 || cfg.RAG.TopK != 4 {
		t.Errorf("unexpected chunk defaults: %+v", cfg.RAG)
	}
	if cfg.RAG.IndexLocation != "faiss_index" {
		t.Errorf("Expected default index location faiss_index, got %q", cfg.RAG.IndexLocation)
	}
	if cfg.InferenceLLM.Temperature != 0.3 {
		t.Errorf("Expected temperature 0.3, got %v", cfg.InferenceLLM.Temperature)
	}
}

func TestLoadConfig_FileOverridesAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `rag:
  chunk_size: 500
  chunk_overlap: 0
  top_k: 2
  index_location: ./data/idx
embed_llm:
  provider: openai
  base_url: https://api.example.com/v1
  model: text-embedding-3-small
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EMBED_API_KEY", "secret")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.RAG.ChunkSize != 500 || cfg.RAG.ChunkOverlap != 0 || cfg.RAG.TopK != 2 {
		t.Errorf("file values not applied: %+v", cfg.RAG)
	}
	if cfg.EmbedLLM.Provider != ProviderOpenAI || cfg.EmbedLLM.Key != "secret" {
		t.Errorf("embed config not applied: %+v", cfg.EmbedLLM)
	}
	// untouched sections keep their defaults
	if cfg.InferenceLLM.Provider != ProviderOllama || cfg.RAG.IndexBackend != BackendChromem {
		t.Errorf("defaults lost: %+v %+v", cfg.InferenceLLM, cfg.RAG)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("rag: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"overlap equals size", func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize }, false},
		{"overlap above size", func(c *Config) { c.RAG.ChunkSize = 10; c.RAG.ChunkOverlap = 11 }, false},
		{"negative overlap", func(c *Config) { c.RAG.ChunkOverlap = -1 }, false},
		{"zero chunk size", func(c *Config) { c.RAG.ChunkSize = 0 }, false},
		{"zero top k", func(c *Config) { c.RAG.TopK = 0 }, false},
		{"unknown backend", func(c *Config) { c.RAG.IndexBackend = "faiss" }, false},
		{"postgres without dsn", func(c *Config) { c.RAG.IndexBackend = BackendPostgres }, false},
		{"postgres with dsn", func(c *Config) {
			c.RAG.IndexBackend = BackendPostgres
			c.Database.DSN = "postgres://localhost/docqa"
		}, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, false},
		{"temperature too high", func(c *Config) { c.InferenceLLM.Temperature = 2.5 }, false},
		{"unknown provider", func(c *Config) { c.EmbedLLM.Provider = "gemini" }, false},
		{"missing model", func(c *Config) { c.InferenceLLM.Model = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, models.ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
		})
	}
}
