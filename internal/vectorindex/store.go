package vectorindex

import (
	"context"
	"fmt"

	"docqa/internal/models"
)

// Store persists whole indexes under a named location. Save replaces whatever
// was stored at location, or leaves it untouched on failure. Load returns
// models.ErrNoIndex when nothing is stored and models.ErrCorruptIndex when the
// stored data cannot be read back into a consistent index.
type Store interface {
	Save(ctx context.Context, location string, idx *Index) error
	Load(ctx context.Context, location string) (*Index, error)
}

// Snapshot is the plain-data form of an index: strings, ints and floats only.
type Snapshot struct {
	EmbeddingModel string  `json:"embedding_model" yaml:"embedding_model"`
	Dimension      int     `json:"dimension" yaml:"dimension"`
	Entries        []Entry `json:"entries" yaml:"-"`
}

func (idx *Index) Snapshot() Snapshot {
	return Snapshot{
		EmbeddingModel: idx.model,
		Dimension:      idx.dim,
		Entries:        idx.Entries(),
	}
}

// FromSnapshot rebuilds an index, checking that every entry has the declared
// dimension.
func FromSnapshot(s Snapshot) (*Index, error) {
	const op = "restore index"
	if s.Dimension < 0 || (s.Dimension == 0 && len(s.Entries) > 0) {
		return nil, models.CorruptIndexError(op, fmt.Errorf("invalid dimension %d for %d entries", s.Dimension, len(s.Entries)))
	}

	idx := New(s.EmbeddingModel)
	idx.dim = s.Dimension
	idx.entries = make([]Entry, 0, len(s.Entries))
	for i, e := range s.Entries {
		if len(e.Embedding) != s.Dimension {
			return nil, models.CorruptIndexError(op, fmt.Errorf("entry %d: %w", i,
				models.DimensionMismatchError("restore entry", s.Dimension, len(e.Embedding))))
		}
		if err := idx.add(e.Embedding, e.Chunk); err != nil {
			return nil, models.CorruptIndexError(op, fmt.Errorf("entry %d: %w", i, err))
		}
	}
	return idx, nil
}
