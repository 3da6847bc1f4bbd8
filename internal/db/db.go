package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docqa/internal/config"
	"docqa/internal/helper"
	"docqa/internal/models"
	"docqa/internal/vectorindex"
)

const insertBatchSize = 500

// Document is one index entry. Rows of a location are ordered by Seq.
type Document struct {
	bun.BaseModel `bun:"table:docqa_chunks,alias:d"`
	Location      string    `bun:"location,pk"`
	Seq           int       `bun:"seq,pk"`
	Content       string    `bun:"content,notnull"`
	SourceOffset  int       `bun:"source_offset,notnull"`
	Embedding     []float32 `bun:"embedding,array,notnull"`
}

// IndexRecord is the manifest of the index stored under Location.
type IndexRecord struct {
	bun.BaseModel  `bun:"table:docqa_indexes,alias:i"`
	Location       string    `bun:"location,pk"`
	BuildID        string    `bun:"build_id,notnull"`
	EmbeddingModel string    `bun:"embedding_model,notnull"`
	Dimension      int       `bun:"dimension,notnull"`
	Entries        int       `bun:"entries,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a connection with bun's pgdriver, or with lib/pq when the
// config asks for it.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "", config.DriverPgdriver:
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	case config.DriverPQ:
		return sql.Open("postgres", cfg.DSN)
	default:
		return nil, models.ConfigurationError("connect db", fmt.Errorf("unknown driver %q", cfg.Driver))
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{(*Document)(nil), (*IndexRecord)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Store keeps indexes in PostgreSQL. A location names a row set rather than a
// directory; replacing it happens in one transaction.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, location string, idx *vectorindex.Index) error {
	buildID, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	rec, docs := toRows(location, buildID, idx)

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Document)(nil)).Where("location = ?", location).Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear %q: %w", location, err)
		}
		for start := 0; start < len(docs); start += insertBatchSize {
			batch := docs[start:min(start+insertBatchSize, len(docs))]
			if _, err := tx.NewInsert().Model(&batch).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert documents: %w", err)
			}
		}
		_, err := tx.NewInsert().Model(rec).
			On("CONFLICT (location) DO UPDATE").
			Set("build_id = EXCLUDED.build_id").
			Set("embedding_model = EXCLUDED.embedding_model").
			Set("dimension = EXCLUDED.dimension").
			Set("entries = EXCLUDED.entries").
			Set("created_at = EXCLUDED.created_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}

	log.Info().Str("location", location).Str("build_id", buildID).
		Int("entries", len(docs)).Msg("Persisted vector index")
	return nil
}

func (s *Store) Load(ctx context.Context, location string) (*vectorindex.Index, error) {
	rec := new(IndexRecord)
	err := s.db.NewSelect().Model(rec).Where("location = ?", location).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNoIndex
	}
	if err != nil {
		return nil, err
	}

	var docs []Document
	err = s.db.NewSelect().
		Model(&docs).
		Where("location = ?", location).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, models.CorruptIndexError("load index", err)
	}
	return fromRows(rec, docs)
}

func toRows(location, buildID string, idx *vectorindex.Index) (*IndexRecord, []Document) {
	entries := idx.Entries()
	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = Document{
			Location:     location,
			Seq:          i,
			Content:      e.Chunk.Content,
			SourceOffset: e.Chunk.SourceOffset,
			Embedding:    e.Embedding,
		}
	}
	rec := &IndexRecord{
		Location:       location,
		BuildID:        buildID,
		EmbeddingModel: idx.EmbeddingModel(),
		Dimension:      idx.Dimension(),
		Entries:        len(entries),
		CreatedAt:      time.Now().UTC(),
	}
	return rec, docs
}

func fromRows(rec *IndexRecord, docs []Document) (*vectorindex.Index, error) {
	const op = "load index"
	if len(docs) != rec.Entries {
		return nil, models.CorruptIndexError(op, fmt.Errorf("manifest lists %d entries, table holds %d", rec.Entries, len(docs)))
	}
	snap := vectorindex.Snapshot{
		EmbeddingModel: rec.EmbeddingModel,
		Dimension:      rec.Dimension,
		Entries:        make([]vectorindex.Entry, len(docs)),
	}
	for i, d := range docs {
		if d.Seq != i {
			return nil, models.CorruptIndexError(op, fmt.Errorf("missing entry %d", i))
		}
		snap.Entries[i] = vectorindex.Entry{
			Embedding: d.Embedding,
			Chunk:     models.Chunk{Content: d.Content, SourceOffset: d.SourceOffset},
		}
	}
	return vectorindex.FromSnapshot(snap)
}
