// Package main is the mise CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mise/internal/catalog"
	"github.com/hyperjump/mise/internal/cli"
	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/internal/server"
	"github.com/hyperjump/mise/internal/storage"
	"github.com/hyperjump/mise/internal/watcher"
	"github.com/hyperjump/mise/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/mise/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "init":
		runInit()
	case "query":
		runQuery()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mise version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (catalog reloads, query details, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("catalog_path", cfg.Catalog.Path),
		zap.Bool("debug", debugMode),
	)

	store, err := storage.NewSQLiteStorage(cfg.Catalog.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open snapshot database", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	srv := server.NewServer(cfg, store, logger, version)

	products, source, err := loadProducts(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("no products loaded, serving without a retriever", zap.Error(err))
	} else {
		backend, err := buildBackend(ctx, cfg, products, logger)
		if err != nil {
			logger.Error("engine build failed, serving without a retriever", zap.Error(err))
		} else {
			srv.SetBackend(backend)
			logger.Info("retriever ready",
				zap.String("source", source),
				zap.Int("products", backend.Catalog.Len()),
			)
			if source == sourceFile {
				if err := store.SaveProducts(ctx, products); err != nil {
					logger.Warn("snapshot save failed", zap.Error(err))
				}
			}
		}
	}

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if cfg.Catalog.Watch {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		reloader := newCatalogReloader(cfg, srv, store, logger)
		w := watcher.NewWatcher(
			[]string{cfg.Catalog.Path},
			func(path string) {
				if err := reloader.Reload(watchCtx); err != nil {
					logger.Warn("catalog reload failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				logger.Warn("catalog file removed, keeping current products", zap.String("path", path))
			},
			watchOpts...,
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// printQueryUsage prints query subcommand usage.
func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: mise query [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Price and color constraints are read from the query text itself:
  under 500                maximum price
  over 500                 minimum price
  between 200 and 800      price range
  red, blue, black, ...    color in name or description

Examples:
  mise query red running shoes under 500
  mise query "leather wallet" -top-k 10
  mise query -server "" cotton shirt between 200 and 800   # build locally
  mise query -output json sofa
`)
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags (and their values) to the front of args so that
// fs.Parse sees them, keeping the positional words in their original order. Go's
// flag package stops at the first non-flag argument, so "mise query shoes -top-k 3"
// would otherwise leave -top-k unparsed. A flag consumes the next argument as its
// value unless it is written -name=value or is a boolean flag of fs. Everything
// after "--" is positional.
func argsReorder(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args))
	positional := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") || isBoolFlag(fs, name) {
			continue
		}
		if i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = build the retriever locally)")
	topK := fs.Int("top-k", 0, "number of results (0 = configured default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	queryStr := buildQuery(fs.Args())
	if queryStr == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}

	var format cli.OutputFormat
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	req := &models.QueryRequest{Query: queryStr, TopK: *topK}
	var response *models.QueryResponse
	if *serverURL != "" {
		var err error
		response, err = queryViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		response = queryLocal(*configPath, req)
	}
	if err := cli.WriteQueryResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func queryLocal(configPath string, req *models.QueryRequest) *models.QueryResponse {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := req.Validate(cfg.Retrieval.MaxTopK); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", err)
		os.Exit(1)
	}

	var store storage.Storage
	if s, err := storage.NewSQLiteStorage(cfg.Catalog.DatabasePath); err == nil {
		store = s
		defer s.Close()
	} else {
		logger.Warn("snapshot database unavailable", zap.Error(err))
	}

	ctx := context.Background()
	products, _, err := loadProducts(ctx, cfg, store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load products: %v\n", err)
		os.Exit(1)
	}
	backend, err := buildBackend(ctx, cfg, products, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build retriever: %v\n", err)
		os.Exit(1)
	}
	results, explanation, err := backend.Engine.Retrieve(ctx, req.Query, req.TopK, req.Filters)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	return &models.QueryResponse{Products: results, Explanation: explanation}
}

func queryViaHTTP(serverURL string, req *models.QueryRequest) (*models.QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file to write")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if err := initConfig(*configPath, *force); err != nil {
		fmt.Printf("Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *configPath)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: mise import [flags] <catalog-file>")
		fmt.Printf("Supported formats: %s\n", strings.Join(catalog.Extensions, ", "))
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	products, err := catalog.LoadFile(path, logger)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	store, err := storage.NewSQLiteStorage(cfg.Catalog.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open snapshot database", zap.Error(err))
	}
	defer store.Close()
	if err := store.SaveProducts(context.Background(), products); err != nil {
		fmt.Printf("Saving snapshot failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d product(s) from %s into %s\n", len(products), path, cfg.Catalog.DatabasePath)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (local mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the snapshot database)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var (
		status map[string]interface{}
		err    error
	)
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusLocal(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json", "text":
		if err := cli.WriteStatus(os.Stdout, status, cli.ParseOutputFormat(*outputFormat)); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// statusLocal reports snapshot figures straight from the database.
func statusLocal(configPath string) (map[string]interface{}, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Catalog.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ctx := context.Background()
	count, err := store.CountProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	status := map[string]interface{}{
		"stored_products": count,
		"config": map[string]interface{}{
			"catalog_path":  cfg.Catalog.Path,
			"database_path": cfg.Catalog.DatabasePath,
			"max_features":  cfg.Embedding.MaxFeatures,
			"default_top_k": cfg.Retrieval.DefaultTopK,
			"max_top_k":     cfg.Retrieval.MaxTopK,
		},
	}
	saved, err := store.LastSaved(ctx)
	if err != nil {
		return nil, fmt.Errorf("last saved: %w", err)
	}
	if !saved.IsZero() {
		status["last_saved"] = saved.UTC().Format(time.RFC3339)
	}
	if diskBytes, err := storage.DatabaseUsageBytes(cfg.Catalog.DatabasePath); err == nil {
		status["disk_usage_bytes"] = diskBytes
	}
	return status, nil
}

func statusViaHTTP(serverURL string) (map[string]interface{}, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return s, nil
}

func printUsage() {
	fmt.Println(`mise - Product retrieval over a tabular catalog

Usage:
  mise server [flags]           Start the HTTP server
  mise init [flags]             Write the default config file
  mise query [flags] <query>    Retrieve products for a free-text query
  mise import [flags] <file>    Load a catalog file into the snapshot database
  mise status [flags]           Show catalog, index and snapshot status
  mise version                  Show version
  mise help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mise/config.yaml)
  --debug            Enable debug logging

Init Flags:
  --config string    Config file to write (default: /usr/local/etc/mise/config.yaml)
  --force            Overwrite an existing config file

Query Flags:
  --config string    Config file path (local mode)
  --server string    Server URL (default: http://localhost:8000). Use empty (--server "") to build the retriever locally.
  --top-k int        Number of results (default from config)
  --output string    Output format: text or json (default: text)

Import Flags:
  --config string    Config file path

Status Flags:
  --config string    Config file path (local mode)
  --server string    Server URL (default: http://localhost:8000). Use empty (--server "") to read the snapshot database.
  --output string    Output format: text or json (default: text)

Examples:
  mise init --config ./config.yaml
  mise server
  mise query red running shoes under 500
  mise query --output json "leather wallet"
  mise import products.xlsx
  mise status --output json`)
}
