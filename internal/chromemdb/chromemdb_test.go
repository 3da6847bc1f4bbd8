package chromemdb

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docqa/internal/models"
	"docqa/internal/vectorindex"
)

func buildIndex(t *testing.T, model string, vectors map[string][]float32, texts ...string) *vectorindex.Index {
	t.Helper()
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{Content: text, SourceOffset: i * 7}
	}
	embed := func(_ context.Context, text string) ([]float32, error) {
		return vectors[text], nil
	}
	idx, err := vectorindex.Build(context.Background(), chunks, embed, vectorindex.BuildOptions{EmbeddingModel: model})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return idx
}

var testVectors = map[string][]float32{
	"alpha":   {1, 0, 0},
	"beta":    {0, 1, 0},
	"gamma":   {0, 0, 1},
	"alpha 2": {2, 0.5, 0},
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		ctx := context.Background()
		location := filepath.Join(t.TempDir(), "faiss_index")
		store := NewVectorDBManager(compress)

		idx := buildIndex(t, "embed-v1", testVectors, "alpha", "beta", "gamma", "alpha 2", "alpha")
		if err := store.Save(ctx, location, idx); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := store.Load(ctx, location)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Len() != 5 || loaded.Dimension() != 3 || loaded.EmbeddingModel() != "embed-v1" {
			t.Fatalf("unexpected index: len=%d dim=%d model=%q", loaded.Len(), loaded.Dimension(), loaded.EmbeddingModel())
		}

		for _, query := range [][]float32{{1, 0.1, 0}, {0, 0, 1}, {0.3, 0.3, 0.3}} {
			want, _ := idx.Search(query, 5)
			got, err := loaded.Search(query, 5)
			if err != nil {
				t.Fatal(err)
			}
			for i := range want {
				if got[i].Chunk != want[i].Chunk || math.Abs(float64(got[i].Score-want[i].Score)) > 1e-6 {
					t.Errorf("compress=%v query %v result %d: got %+v, want %+v", compress, query, i, got[i], want[i])
				}
			}
		}
	}
}

func TestSaveReplacesPreviousIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	location := filepath.Join(dir, "faiss_index")
	store := NewVectorDBManager(false)

	if err := store.Save(ctx, location, buildIndex(t, "m", testVectors, "alpha", "beta", "gamma")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, location, buildIndex(t, "m", testVectors, "beta")); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, location)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 1 || loaded.Entries()[0].Chunk.Content != "beta" {
		t.Errorf("Expected only the second index, got %+v", loaded.Entries())
	}

	leftovers, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range leftovers {
		if strings.Contains(e.Name(), ".staging-") || strings.Contains(e.Name(), ".old-") {
			t.Errorf("leftover directory %s", e.Name())
		}
	}
}

func TestSaveLoadEmptyIndex(t *testing.T) {
	ctx := context.Background()
	location := filepath.Join(t.TempDir(), "idx")
	store := NewVectorDBManager(false)

	if err := store.Save(ctx, location, vectorindex.New("m")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := store.Load(ctx, location)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	results, err := loaded.Search([]float32{1, 2}, 4)
	if err != nil || len(results) != 0 {
		t.Errorf("Expected empty results, got %v, %v", results, err)
	}
}

func TestLoadMissing(t *testing.T) {
	store := NewVectorDBManager(false)
	_, err := store.Load(context.Background(), filepath.Join(t.TempDir(), "nothing"))
	if !errors.Is(err, models.ErrNoIndex) {
		t.Errorf("Expected ErrNoIndex, got %v", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	ctx := context.Background()
	store := NewVectorDBManager(false)

	tests := []struct {
		name     string
		manifest string
	}{
		{"garbage manifest", "::: not yaml [[["},
		{"wrong version", "format_version: 99\n"},
		{"entry count mismatch", "format_version: 1\ndimension: 3\nentries: 9\n"},
		{"dimension mismatch", "format_version: 1\ndimension: 4\nentries: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location := filepath.Join(t.TempDir(), "idx")
			if err := store.Save(ctx, location, buildIndex(t, "m", testVectors, "alpha", "beta")); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(location, manifestFile), []byte(tt.manifest), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := store.Load(ctx, location)
			if !errors.Is(err, models.ErrCorruptIndex) {
				t.Errorf("Expected ErrCorruptIndex, got %v", err)
			}
		})
	}
}

func TestLoadIgnoresCompressSetting(t *testing.T) {
	ctx := context.Background()
	for _, compress := range []bool{false, true} {
		location := filepath.Join(t.TempDir(), "faiss_index")
		if err := NewVectorDBManager(compress).Save(ctx, location, buildIndex(t, "m", testVectors, "alpha", "beta")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := NewVectorDBManager(!compress).Load(ctx, location)
		if err != nil {
			t.Fatalf("saved with compress=%v, Load failed: %v", compress, err)
		}
		if loaded.Len() != 2 || loaded.Entries()[1].Chunk.Content != "beta" {
			t.Errorf("unexpected entries %+v", loaded.Entries())
		}
	}
}

func TestLoadParkedIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	location := filepath.Join(dir, "faiss_index")
	store := NewVectorDBManager(false)

	if err := store.Save(ctx, location, buildIndex(t, "m", testVectors, "gamma")); err != nil {
		t.Fatal(err)
	}
	// state after a crash between the two renames of a later save
	if err := os.Rename(location, location+".old-1234"); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load(ctx, location)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != 1 || loaded.Entries()[0].Chunk.Content != "gamma" {
		t.Errorf("unexpected entries %+v", loaded.Entries())
	}

	// two candidates are ambiguous
	if err := store.Save(ctx, location, buildIndex(t, "m", testVectors, "beta")); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(location, location+".old-5678"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx, location); !errors.Is(err, models.ErrNoIndex) {
		t.Errorf("Expected ErrNoIndex, got %v", err)
	}
}
