package embedding

import (
	"context"
	"errors"
	"testing"

	"docqa/internal/config"
	"docqa/internal/models"
)

type fakeClient struct {
	vectors [][]float32
	err     error
	calls   int
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func TestLangchainEmbedder_Embed(t *testing.T) {
	client := &fakeClient{vectors: [][]float32{{0.1, 0.2, 0.3}}}
	e, err := newLangchainEmbedder(client, "test-model")
	if err != nil {
		t.Fatalf("newLangchainEmbedder failed: %v", err)
	}

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("unexpected vector: %v", vec)
	}
	if e.ModelID() != "test-model" {
		t.Errorf("Expected model id test-model, got %q", e.ModelID())
	}
	if client.calls != 1 {
		t.Errorf("Expected 1 call, got %d", client.calls)
	}
}

func TestLangchainEmbedder_ErrorsAreEmbeddingErrors(t *testing.T) {
	cause := errors.New("connection refused")
	e, err := newLangchainEmbedder(&fakeClient{err: cause}, "m")
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Embed(context.Background(), "hello")
	if !errors.Is(err, models.ErrEmbedding) || !errors.Is(err, cause) {
		t.Errorf("Expected embedding error wrapping cause, got %v", err)
	}

	e, err = newLangchainEmbedder(&fakeClient{vectors: [][]float32{{}}}, "m")
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Embed(context.Background(), "hello")
	if !errors.Is(err, models.ErrEmbedding) {
		t.Errorf("Expected ErrEmbedding for empty vector, got %v", err)
	}
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "carrier-pigeon", Model: "m"})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration, got %v", err)
	}
}
