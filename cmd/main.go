package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"docqa/internal/chromemdb"
	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/embedding"
	"docqa/internal/helper"
	"docqa/internal/llmservice"
	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/rag"
	"docqa/internal/vectorindex"
)

const configFilePath = "./configs/config.yaml"

type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	var files fileList
	flag.Var(&files, "file", "Path to a document to index (repeatable)")
	query := flag.String("query", "", "Question to be answered")
	configPath := flag.String("config", configFilePath, "Path to the config file")
	dryRun := flag.Bool("dry-run", false, "Extract and chunk only, do not embed or save the index")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	helper.SetupLogger(*logLevel)

	if len(files) == 0 && *query == "" {
		log.Fatal().Msg("Please provide documents using the -file flag and/or a question using the -query flag")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("rag", cfg.RAG).Msg("Loaded config")

	docs := loadDocuments(files)

	if *dryRun {
		prepareOnly(cfg, docs)
		return
	}

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening index store")
	}
	defer closeStore()

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	generator, err := llmservice.NewGenerator(&cfg.InferenceLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing generator")
	}

	pipeline := rag.NewRAG(store, embedder, generator, cfg)

	if len(docs) > 0 {
		report, err := pipeline.Build(ctx, docs)
		if err != nil {
			log.Fatal().Err(err).Msg("Error building index")
		}
		for _, f := range report.Skipped {
			log.Warn().Err(f.Err).Str("document", f.Name).Msg("Document skipped")
		}
		log.Info().Msgf("Indexed %d chunks into %s", report.Chunks, report.Location)
	} else if err := pipeline.Open(ctx); err != nil {
		if errors.Is(err, models.ErrNoIndex) {
			log.Fatal().Msg("No index found, process some documents with -file first")
		}
		log.Fatal().Err(err).Msg("Error loading index")
	}

	if *query == "" {
		return
	}

	response, err := pipeline.Query(ctx, *query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msgf("Sources: %d chunks ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>", len(response.Sources))
	for _, src := range response.Sources {
		log.Debug().Int("offset", src.SourceOffset).Msg(src.Content)
	}

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func loadDocuments(files []string) []models.Document {
	var docs []models.Document
	for _, path := range files {
		doc, err := parser.LoadDocument(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping file")
			continue
		}
		docs = append(docs, doc)
	}
	if len(files) > 0 && len(docs) == 0 {
		log.Fatal().Msg("None of the given files could be read")
	}
	return docs
}

func prepareOnly(cfg *config.Config, docs []models.Document) {
	pipeline := rag.NewRAG(nil, nil, nil, cfg)
	chunks, _, err := pipeline.Prepare(docs)
	if err != nil {
		log.Fatal().Err(err).Msg("Error preparing documents")
	}
	log.Info().Msgf("Prepared %d chunks", len(chunks))
	helper.PrettyPrint(chunks)
}

// openStore returns the configured persistence backend and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config) (vectorindex.Store, func(), error) {
	switch cfg.RAG.IndexBackend {
	case config.BackendPostgres:
		dbClient, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
		if err := db.InitDB(ctx, dbInstance); err != nil {
			dbInstance.Close()
			return nil, nil, err
		}
		return db.NewStore(dbInstance), func() { dbInstance.Close() }, nil
	default:
		return chromemdb.NewVectorDBManager(cfg.RAG.Compress), func() {}, nil
	}
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-file doc.pdf ...] [-query \"question\"]\n", os.Args[0])
		flag.PrintDefaults()
	}
}
