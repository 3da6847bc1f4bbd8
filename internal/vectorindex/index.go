// Package vectorindex holds embedded chunks and answers nearest-neighbour
// queries by exact cosine similarity.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"docqa/internal/models"
)

// Entry pairs a chunk with its embedding. Entries are never deduplicated.
type Entry struct {
	Embedding []float32    `json:"embedding"`
	Chunk     models.Chunk `json:"chunk"`
}

// Index is an immutable-after-build flat array of entries sharing one dimension.
// Stored embeddings are unit length so similarity is a dot product.
type Index struct {
	entries []Entry
	dim     int
	model   string
}

// New returns an empty index for embeddings produced by model.
func New(model string) *Index {
	return &Index{model: model}
}

func (idx *Index) Len() int               { return len(idx.entries) }
func (idx *Index) Dimension() int         { return idx.dim }
func (idx *Index) EmbeddingModel() string { return idx.model }

// Entries returns the entries in insertion order.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// add appends one entry. The first entry fixes the dimension of the index.
func (idx *Index) add(embedding []float32, chunk models.Chunk) error {
	if len(embedding) == 0 {
		return errors.New("empty embedding")
	}
	if isZero(embedding) {
		return errors.New("zero embedding has no direction")
	}
	if idx.dim == 0 {
		idx.dim = len(embedding)
	} else if len(embedding) != idx.dim {
		return models.DimensionMismatchError("add entry", idx.dim, len(embedding))
	}
	idx.entries = append(idx.entries, Entry{Embedding: normalize(embedding), Chunk: chunk})
	return nil
}

// EmbedFunc embeds one piece of text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

type BuildOptions struct {
	// Concurrency bounds the number of in-flight embedding calls; <= 0 means one.
	Concurrency int
	// Timeout applies to each embedding call; zero disables it.
	Timeout        time.Duration
	EmbeddingModel string
}

// Build embeds every chunk and returns the finished index. Calls may complete
// in any order but entries keep the order of chunks. Any failure discards the
// whole build.
func Build(ctx context.Context, chunks []models.Chunk, embed EmbedFunc, opts BuildOptions) (*Index, error) {
	start := time.Now()
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return models.EmbeddingError(fmt.Sprintf("embed chunk %d", i), err)
			}
			cctx := gctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(gctx, opts.Timeout)
				defer cancel()
			}
			vec, err := embed(cctx, chunk.Content)
			if err != nil {
				if errors.Is(err, models.ErrEmbedding) {
					return err
				}
				return models.EmbeddingError(fmt.Sprintf("embed chunk %d", i), err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := New(opts.EmbeddingModel)
	for i, vec := range vectors {
		if err := idx.add(vec, chunks[i]); err != nil {
			return nil, models.EmbeddingError(fmt.Sprintf("store chunk %d", i), err)
		}
	}

	log.Debug().Int("entries", idx.Len()).Int("dimension", idx.dim).
		Dur("took", time.Since(start)).Msg("Built vector index")
	return idx, nil
}

// Search returns up to k chunks ordered by decreasing cosine similarity to
// query, ties keeping insertion order. It never filters by an absolute
// threshold. k <= 0 means the default of 4.
func (idx *Index) Search(query []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = models.DefaultTopK
	}
	if len(idx.entries) == 0 {
		return []models.ScoredChunk{}, nil
	}
	if len(query) != idx.dim {
		return nil, models.DimensionMismatchError("search", idx.dim, len(query))
	}

	q := normalize(query)
	results := make([]models.ScoredChunk, len(idx.entries))
	for i, e := range idx.entries {
		results[i] = models.ScoredChunk{Chunk: e.Chunk, Score: dot(q, e.Embedding)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// normalize returns v scaled to unit length. Vectors already within tolerance
// of unit length are returned as an unchanged copy, which keeps normalize
// idempotent across persist and load.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.Abs(sum-1) < 1e-6 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}
