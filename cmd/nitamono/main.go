// Package main is the nitamono CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/catalog"
	"github.com/orbitblue/nitamono/internal/cli"
	"github.com/orbitblue/nitamono/internal/config"
	"github.com/orbitblue/nitamono/internal/docid"
	"github.com/orbitblue/nitamono/internal/embedding"
	"github.com/orbitblue/nitamono/internal/featurecache"
	"github.com/orbitblue/nitamono/internal/indexer"
	"github.com/orbitblue/nitamono/internal/keyword"
	"github.com/orbitblue/nitamono/internal/models"
	"github.com/orbitblue/nitamono/internal/retrieval"
	"github.com/orbitblue/nitamono/internal/server"
	"github.com/orbitblue/nitamono/internal/similarity"
	"github.com/orbitblue/nitamono/internal/storage"
	"github.com/orbitblue/nitamono/internal/vector"
	"github.com/orbitblue/nitamono/internal/watcher"
	"github.com/orbitblue/nitamono/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/nitamono/config.yaml"
	defaultServerURL  = "http://localhost:8985"
)

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve":
		runServe()
	case "rebuild":
		runRebuild()
	case "import":
		runImport()
	case "search":
		runSearch()
	case "similar":
		runSimilar()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("nitamono version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(cfg.Logging.Level, debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	loaded, err := components.Vectors.Load(cfg.Vector.IndexDir)
	if err != nil {
		logger.Warn("vector index load failed, vector mode falls back to rules",
			zap.String("dir", cfg.Vector.IndexDir), zap.Error(err))
	} else if loaded {
		stats := components.Vectors.Stats()
		logger.Info("vector index loaded",
			zap.Int("vectors", stats.Vectors),
			zap.Int("chunks", stats.Chunks))
	} else {
		logger.Warn("no vector index on disk, vector mode falls back to rules",
			zap.String("dir", cfg.Vector.IndexDir))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watch *watcher.Watcher
	if cfg.Watcher.EnabledOrDefault() {
		watch = watcher.New(cfg.Vector.IndexDir, components.Vectors, components.Embedder,
			watcher.WithDebounce(time.Duration(cfg.Watcher.DebounceMS)*time.Millisecond),
			watcher.WithLogger(logger))
		if err := watch.Start(watchCtx); err != nil {
			logger.Fatal("failed to start index watcher", zap.Error(err))
		}
	}

	sweepDone := make(chan struct{})
	go sweepExpiredFeatures(components.Features, logger, sweepDone)

	srv := server.NewServer(
		components.Similar,
		components.Retrieval,
		components.Indexer,
		components.Keywords,
		components.Vectors,
		components.Storage,
		components.Features,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	close(sweepDone)
	if watch != nil {
		watch.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// sweepExpiredFeatures prunes expired feature records once at startup and
// then hourly, until done is closed. Redis entries expire on their own;
// this keeps the database fallback tier from growing unbounded.
func sweepExpiredFeatures(features *featurecache.Cache, logger *zap.Logger, done <-chan struct{}) {
	sweep := func() {
		n, err := features.DeleteExpired(context.Background())
		if err != nil {
			logger.Warn("expired feature sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("expired feature records removed", zap.Int64("count", n))
		}
	}
	sweep()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, components, logger := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	chunks, err := components.Indexer.Rebuild(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d chunk(s) into %s\n", chunks, cfg.Vector.IndexDir)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: nitamono import [flags] <xlsx-file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	_, components, logger := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	imported, err := catalog.ImportXLSX(ctx, path, components.Storage, catalog.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	indexed, err := components.Indexer.RefreshKeywords(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Keyword refresh failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d product(s), %d in keyword index\n", imported, indexed)
	fmt.Println("Run \"nitamono rebuild\" to refresh the vector index.")
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 5, "number of chunks to return")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: nitamono search [flags] <brand> <query>")
		os.Exit(1)
	}
	brand := fs.Arg(0)
	query := buildQuery(fs.Args()[1:])
	if query == "" {
		fmt.Println("Usage: nitamono search [flags] <brand> <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg, components, logger := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	loaded, err := components.Vectors.Load(cfg.Vector.IndexDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Index load failed: %v\n", err)
		os.Exit(1)
	}
	if !loaded {
		fmt.Fprintln(os.Stderr, "No vector index found; run \"nitamono rebuild\" first.")
		os.Exit(1)
	}

	ctx := context.Background()
	results, err := components.Vectors.Search(ctx, query, *k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	kept := results[:0]
	for _, r := range results {
		sku := docid.ExtractSKU(r.Chunk)
		if sku == "" {
			continue
		}
		if _, err := components.Storage.GetProduct(ctx, brand, sku); err != nil {
			continue
		}
		kept = append(kept, r)
	}
	if err := cli.WriteProbeResults(os.Stdout, kept, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// splitList splits a comma-separated flag value, dropping blank entries.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func runSimilar() {
	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	brand := fs.String("brand", "", "brand code (required)")
	traceID := fs.String("trace", "", "trace id of previously cached vision features")
	category := fs.String("category", "", "category feature")
	color := fs.String("color", "", "primary color feature")
	colors := fs.String("colors", "", "comma-separated color list")
	styles := fs.String("styles", "", "comma-separated style list")
	season := fs.String("season", "", "season feature")
	keywords := fs.String("keywords", "", "comma-separated keyword list")
	topK := fs.Int("top-k", 0, "number of skus to return (1-5, default 5)")
	mode := fs.String("mode", "", "search mode: vector or rule")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *brand == "" {
		fmt.Println("Usage: nitamono similar -brand <code> [-trace <id> | -category <c> ...]")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	req := &models.SimilarityRequest{
		BrandCode: *brand,
		TraceID:   *traceID,
		TopK:      *topK,
		Mode:      *mode,
	}
	features := &models.VisionFeatures{
		Category: *category,
		Color:    *color,
		Colors:   splitList(*colors),
		Style:    splitList(*styles),
		Season:   *season,
		Keywords: splitList(*keywords),
	}
	if !features.Empty() {
		req.VisionFeatures = features
	}

	res, err := cli.NewClient(*serverURL).SimilarSKUs(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Similar failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSimilar(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	stats, err := cli.NewClient(*serverURL).Stats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStats(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Vectors   *vector.Store
	Keywords  keyword.Index
	Features  *featurecache.Cache
	Indexer   *indexer.Indexer
	Similar   *similarity.Service
	Retrieval *retrieval.Service
}

func (c *Components) Close() {
	if c.Features != nil {
		_ = c.Features.Close()
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	features := featurecache.NewCache(cfg.Redis, store, featurecache.WithLogger(logger))

	embedder := embedding.NewClient(embedding.Config{
		APIKey:      cfg.Embedding.APIKey,
		BaseURL:     cfg.Embedding.BaseURL,
		Model:       cfg.Embedding.Model,
		Dimensions:  cfg.Embedding.Dimensions,
		BatchSize:   cfg.Embedding.BatchSize,
		MaxAttempts: cfg.Embedding.MaxAttempts,
		Timeout:     time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		CacheSize:   cfg.Embedding.CacheSize,
	}, embedding.WithLogger(logger))

	vectors := vector.NewStore(embedder, vector.WithLogger(logger))

	keywords, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("initialize keyword index: %w", err)
	}

	idx := indexer.NewIndexer(store, vectors, keywords, &cfg.Vector, indexer.WithLogger(logger))
	similar := similarity.NewService(store, vectors, features, &cfg.Similarity, similarity.WithLogger(logger))
	retr := retrieval.NewService(vectors, retrieval.WithLogger(logger))

	return &Components{
		Storage:   store,
		Embedder:  embedder,
		Vectors:   vectors,
		Keywords:  keywords,
		Features:  features,
		Indexer:   idx,
		Similar:   similar,
		Retrieval: retr,
	}, nil
}

// mustInitialize loads config, builds a logger, and initializes components,
// exiting on failure. Used by the direct-mode subcommands.
func mustInitialize(configPath string) (*config.Config, *Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Logging.Level, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, components, logger
}

func printUsage() {
	fmt.Println(`nitamono - similar product retrieval service

Usage:
  nitamono serve [flags]             Start the HTTP server
  nitamono rebuild [flags]           Rebuild the vector and keyword indexes from the catalog
  nitamono import [flags] <xlsx>     Import products from an xlsx workbook
  nitamono search [flags] <brand> <query>   Probe the vector index directly
  nitamono similar [flags]           Ask a running server for similar skus
  nitamono stats [flags]             Show stats from a running server
  nitamono version                   Show version
  nitamono help                      Show this help

Serve Flags:
  --config string    Config file path (default: /usr/local/etc/nitamono/config.yaml)
  --debug            Enable debug logging

Rebuild / Import / Search Flags:
  --config string    Config file path
  --k int            Chunks to return for search (default: 5)
  --output string    Output format: text or json (default: text)

Similar Flags:
  --server string    Server URL (default: http://localhost:8985)
  --brand string     Brand code (required)
  --trace string     Trace id of previously cached vision features
  --category string  Category feature
  --color string     Primary color
  --colors string    Comma-separated colors
  --styles string    Comma-separated styles
  --season string    Season
  --keywords string  Comma-separated keywords
  --top-k int        Number of skus (1-5, default 5)
  --mode string      vector or rule (default rule)

Stats Flags:
  --server string    Server URL (default: http://localhost:8985)
  --output string    Output format: text or json

Examples:
  nitamono serve
  nitamono import products.xlsx
  nitamono rebuild
  nitamono search BR001 黑色运动鞋
  nitamono similar -brand BR001 -category 运动鞋 -colors 黑色
  nitamono similar -brand BR001 -trace vision_1a2b3c4d5e6f7a8b_1700000000
  nitamono stats --output json`)
}
