// Package main is the Kotaeru CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/blob"
	"github.com/hyperjump/kotaeru/internal/chunker"
	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/index"
	"github.com/hyperjump/kotaeru/internal/ingest"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/query"
	"github.com/hyperjump/kotaeru/internal/registry"
	"github.com/hyperjump/kotaeru/internal/search"
	"github.com/hyperjump/kotaeru/internal/server"
	"github.com/hyperjump/kotaeru/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotaeru/config.yaml"

// loadConfig loads config from path. When path is the default, it first
// looks for config.yaml in the current directory so running from the
// project dir picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys may live in a local .env during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "add":
		runAdd()
	case "query":
		runQuery()
	case "compare":
		runCompare()
	case "list":
		runList()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("kotaeru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`kotaeru - retrieval-augmented question answering over your documents

Usage:
  kotaeru server  [flags]                start the HTTP API server
  kotaeru add     [flags] <file>...      ingest text files
  kotaeru query   [flags] <question>     ask a question over session documents
  kotaeru compare [flags] <question>     ask every document and compare answers
  kotaeru list    [flags]                list session documents
  kotaeru delete  [flags] <doc-id>       remove a document
  kotaeru version                        print version

Run "kotaeru <command> -h" for command flags.
`)
}

// Components bundles everything a subcommand needs.
type Components struct {
	Store     blob.Store
	Registry  registry.Registry
	Cache     *index.Cache
	Embedders *embedding.Registry
	LLMs      *llm.Registry
	Searcher  *search.CrossSearcher
	Ingestor  *ingest.Ingestor
	Orch      *query.Orchestrator
}

// Close releases everything in reverse construction order.
func (c *Components) Close() {
	_ = c.LLMs.Close()
	_ = c.Embedders.Close()
	_ = c.Registry.Close()
	_ = c.Store.Close()
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := blob.NewStore(cfg.Storage.Backend, cfg.Storage.IndexDir, cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize index storage: %w", err)
	}
	reg, err := registry.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize document registry: %w", err)
	}
	strategy, err := chunker.ParseStrategy(cfg.Chunking.Strategy)
	if err != nil {
		_ = reg.Close()
		_ = store.Close()
		return nil, err
	}
	ch, err := chunker.New(strategy, cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		_ = reg.Close()
		_ = store.Close()
		return nil, err
	}

	cache := index.NewCache(store, cfg.Cache.MaxResidentIndexes, logger)
	embedders := embedding.NewRegistry(cfg.Embedding, cfg.Cache.EmbeddingCacheSize)
	llms := llm.NewRegistry(cfg.LLM)
	searcher := search.NewCrossSearcher(cache, cfg.Search, logger)
	ingestor := ingest.NewIngestor(ch, embedders, cache, reg, logger)
	orch := query.NewOrchestrator(searcher, embedders, llms, reg, cfg.Search, logger)

	return &Components{
		Store:     store,
		Registry:  reg,
		Cache:     cache,
		Embedders: embedders,
		LLMs:      llms,
		Searcher:  searcher,
		Ingestor:  ingestor,
		Orch:      orch,
	}, nil
}

// setup parses common flags, loads config, and builds components for a
// subcommand. The returned cleanup must be deferred.
func setup(fs *flag.FlagSet, args []string) (*config.Config, *Components, *zap.Logger, func()) {
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, components, logger, func() {
		components.Close()
		_ = logger.Sync()
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	cfg, components, logger, cleanup := setup(fs, os.Args[2:])
	defer cleanup()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watcher *ingest.Watcher
	if len(cfg.Watch.Directories) > 0 {
		watcher = ingest.NewWatcher(
			components.Ingestor,
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.SessionID,
			cfg.Embedding.DefaultProvider,
			logger,
		)
		if err := watcher.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watcher.Stop()
	}

	srv := server.NewServer(components.Orch, components.Ingestor, components.Registry, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	session := fs.String("session", "default", "session that owns the documents")
	provider := fs.String("provider", "", "embedding provider (default from config)")
	_, components, _, cleanup := setupWithPositional(fs, os.Args[2:], 1, "Usage: kotaeru add [flags] <file>...")
	defer cleanup()

	ctx := context.Background()
	for _, path := range fs.Args() {
		meta, err := components.Ingestor.IngestFile(ctx, path, *session, *provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to ingest %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("%s  %s  (%d chunks)\n", meta.DocID, meta.Filename, meta.ChunkCount)
	}
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	session := fs.String("session", "default", "session to query")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (default from request validation)")
	sources := fs.Bool("sources", false, "print source citations")
	asJSON := fs.Bool("json", false, "print the full response as JSON")
	_, components, _, cleanup := setupWithPositional(fs, os.Args[2:], 1, "Usage: kotaeru query [flags] <question>")
	defer cleanup()

	resp, err := components.Orch.Query(context.Background(), models.QueryRequest{
		Question:       strings.Join(fs.Args(), " "),
		SessionID:      *session,
		TopK:           *topK,
		IncludeSources: *sources,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if *asJSON {
		printJSON(resp)
		return
	}
	fmt.Println(resp.Answer)
	if *sources {
		fmt.Println()
		for i, s := range resp.Sources {
			if s.PageNumber > 0 {
				fmt.Printf("[%d] %s (page %d): %s\n", i+1, s.Filename, s.PageNumber, s.Text)
			} else {
				fmt.Printf("[%d] %s: %s\n", i+1, s.Filename, s.Text)
			}
		}
	}
}

func runCompare() {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	session := fs.String("session", "default", "session to query")
	asJSON := fs.Bool("json", false, "print the full response as JSON")
	_, components, _, cleanup := setupWithPositional(fs, os.Args[2:], 1, "Usage: kotaeru compare [flags] <question>")
	defer cleanup()

	resp, err := components.Orch.Compare(context.Background(), models.CompareRequest{
		Question:  strings.Join(fs.Args(), " "),
		SessionID: *session,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compare failed: %v\n", err)
		os.Exit(1)
	}
	if *asJSON {
		printJSON(resp)
		return
	}
	for _, c := range resp.Comparisons {
		fmt.Printf("== %s ==\n%s\n\n", c.Filename, c.Answer)
	}
	fmt.Printf("== Summary ==\n%s\n", resp.Summary)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	session := fs.String("session", "default", "session to list")
	_, components, _, cleanup := setupWithPositional(fs, os.Args[2:], 0, "")
	defer cleanup()

	docs, err := components.Registry.ListBySession(context.Background(), *session)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		fmt.Printf("No documents in session %q\n", *session)
		return
	}
	for _, d := range docs {
		fmt.Printf("%s  %s  %d chunks  %s  %s\n",
			d.DocID, d.Filename, d.ChunkCount, d.EmbeddingProvider,
			d.UploadedAt.Local().Format("2006-01-02 15:04"))
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	_, components, _, cleanup := setupWithPositional(fs, os.Args[2:], 1, "Usage: kotaeru delete [flags] <doc-id>...")
	defer cleanup()

	ctx := context.Background()
	for _, docID := range fs.Args() {
		if err := components.Ingestor.Delete(ctx, docID); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to delete %s: %v\n", docID, err)
			os.Exit(1)
		}
		fmt.Printf("deleted %s\n", docID)
	}
}

// setupWithPositional is setup plus a minimum positional-argument check.
func setupWithPositional(fs *flag.FlagSet, args []string, minArgs int, usage string) (*config.Config, *Components, *zap.Logger, func()) {
	cfg, components, logger, cleanup := setup(fs, args)
	if fs.NArg() < minArgs {
		fmt.Fprintln(os.Stderr, usage)
		cleanup()
		os.Exit(1)
	}
	return cfg, components, logger, cleanup
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
