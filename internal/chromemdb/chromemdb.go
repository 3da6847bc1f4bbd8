package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"docqa/internal/helper"
	"docqa/internal/models"
	"docqa/internal/vectorindex"
)

const (
	collectionName = "chunks"
	manifestFile   = "manifest.yaml"
	formatVersion  = 1

	offsetKey = "source_offset"
)

// manifest describes the collection stored next to it. Load cross-checks it
// against what chromem reads back.
type manifest struct {
	FormatVersion  int       `yaml:"format_version"`
	BuildID        string    `yaml:"build_id"`
	EmbeddingModel string    `yaml:"embedding_model"`
	Dimension      int       `yaml:"dimension"`
	Entries        int       `yaml:"entries"`
	Compress       bool      `yaml:"compress"`
	CreatedAt      time.Time `yaml:"created_at"`
}

// VectorDBManager persists indexes as chromem-go collections, one directory
// per location. Documents are gob encoded plain data; nothing executable is
// ever read back.
type VectorDBManager struct {
	compress bool
}

// NewVectorDBManager returns a store. compress gzips the document files it
// writes; Load reads either form, following the manifest.
func NewVectorDBManager(compress bool) *VectorDBManager {
	return &VectorDBManager{compress: compress}
}

// never called: every document carries its embedding
func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("documents must be stored with precomputed embeddings")
}

func documentID(i int) string {
	return fmt.Sprintf("%09d", i)
}

// Save writes idx into a staging directory next to location and swaps it in.
// A failure before the swap leaves the previous index in place.
func (m *VectorDBManager) Save(ctx context.Context, location string, idx *vectorindex.Index) error {
	location = filepath.Clean(location)
	buildID, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	if err := helper.CreateFolder(filepath.Dir(location)); err != nil {
		return err
	}
	staging := location + ".staging-" + buildID

	if err := m.write(ctx, staging, buildID, idx); err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", staging).Msg("Failed to remove staging directory")
		}
		return err
	}
	if err := swapDir(staging, location, buildID); err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", staging).Msg("Failed to remove staging directory")
		}
		return fmt.Errorf("failed to replace index at %s: %w", location, err)
	}

	log.Info().Str("location", location).Str("build_id", buildID).
		Int("entries", idx.Len()).Msg("Persisted vector index")
	return nil
}

func (m *VectorDBManager) write(ctx context.Context, dir, buildID string, idx *vectorindex.Index) error {
	db, err := chromem.NewPersistentDB(dir, m.compress)
	if err != nil {
		return fmt.Errorf("failed to create database: %v", err)
	}
	c, err := db.GetOrCreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}

	entries := idx.Entries()
	if len(entries) > 0 {
		docs := make([]chromem.Document, len(entries))
		for i, e := range entries {
			docs[i] = chromem.Document{
				ID:        documentID(i),
				Content:   e.Chunk.Content,
				Metadata:  map[string]string{offsetKey: strconv.Itoa(e.Chunk.SourceOffset)},
				Embedding: e.Embedding,
			}
		}
		if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add documents: %v", err)
		}
	}

	man := manifest{
		FormatVersion:  formatVersion,
		BuildID:        buildID,
		EmbeddingModel: idx.EmbeddingModel(),
		Dimension:      idx.Dimension(),
		Entries:        len(entries),
		Compress:       m.compress,
		CreatedAt:      time.Now().UTC(),
	}
	data, err := yaml.Marshal(&man)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// swapDir moves staging to location, parking any previous index aside until
// the new one is in place. A crash between the two renames leaves only the
// parked copy; Load picks it up.
func swapDir(staging, location, buildID string) error {
	var old string
	if _, err := os.Stat(location); err == nil {
		old = location + ".old-" + buildID
		if err := os.Rename(location, old); err != nil {
			return err
		}
	}
	if err := os.Rename(staging, location); err != nil {
		if old != "" {
			if rbErr := os.Rename(old, location); rbErr != nil {
				log.Error().Err(rbErr).Str("path", old).Msg("Failed to restore previous index")
			}
		}
		return err
	}
	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			log.Warn().Err(err).Str("path", old).Msg("Failed to remove previous index")
		}
	}
	return nil
}

// Load reads the index stored at location. When location is missing but a
// single index parked by an interrupted Save sits next to it, that one is read.
func (m *VectorDBManager) Load(ctx context.Context, location string) (*vectorindex.Index, error) {
	const op = "load index"
	location = filepath.Clean(location)

	raw, err := os.ReadFile(filepath.Join(location, manifestFile))
	if errors.Is(err, os.ErrNotExist) {
		parked, ok := parkedIndex(location)
		if !ok {
			return nil, models.ErrNoIndex
		}
		log.Warn().Str("location", location).Str("path", parked).
			Msg("Index missing, loading the copy left by an interrupted save")
		location = parked
		raw, err = os.ReadFile(filepath.Join(location, manifestFile))
	}
	if err != nil {
		return nil, models.CorruptIndexError(op, err)
	}
	var man manifest
	if err := yaml.Unmarshal(raw, &man); err != nil {
		return nil, models.CorruptIndexError(op, fmt.Errorf("manifest: %w", err))
	}
	if man.FormatVersion != formatVersion {
		return nil, models.CorruptIndexError(op, fmt.Errorf("unsupported format version %d", man.FormatVersion))
	}

	db, err := chromem.NewPersistentDB(location, man.Compress)
	if err != nil {
		return nil, models.CorruptIndexError(op, err)
	}

	snap := vectorindex.Snapshot{
		EmbeddingModel: man.EmbeddingModel,
		Dimension:      man.Dimension,
		Entries:        make([]vectorindex.Entry, 0, man.Entries),
	}
	if man.Entries > 0 {
		c := db.GetCollection(collectionName, noEmbedding)
		if c == nil {
			return nil, models.CorruptIndexError(op, errors.New("collection missing"))
		}
		if c.Count() != man.Entries {
			return nil, models.CorruptIndexError(op, fmt.Errorf("manifest lists %d entries, collection holds %d", man.Entries, c.Count()))
		}
		for i := 0; i < man.Entries; i++ {
			doc, err := c.GetByID(ctx, documentID(i))
			if err != nil {
				return nil, models.CorruptIndexError(op, fmt.Errorf("entry %d: %w", i, err))
			}
			offset, err := strconv.Atoi(doc.Metadata[offsetKey])
			if err != nil {
				return nil, models.CorruptIndexError(op, fmt.Errorf("entry %d offset: %w", i, err))
			}
			snap.Entries = append(snap.Entries, vectorindex.Entry{
				Embedding: doc.Embedding,
				Chunk:     models.Chunk{Content: doc.Content, SourceOffset: offset},
			})
		}
	}

	idx, err := vectorindex.FromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("location", location).Str("build_id", man.BuildID).
		Int("entries", idx.Len()).Msg("Loaded vector index")
	return idx, nil
}

// parkedIndex returns the only "<location>.old-<id>" directory holding a
// manifest, if there is exactly one.
func parkedIndex(location string) (string, bool) {
	entries, err := os.ReadDir(filepath.Dir(location))
	if err != nil {
		return "", false
	}
	prefix := filepath.Base(location) + ".old-"
	var found []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		path := filepath.Join(filepath.Dir(location), e.Name())
		if _, err := os.Stat(filepath.Join(path, manifestFile)); err == nil {
			found = append(found, path)
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}
