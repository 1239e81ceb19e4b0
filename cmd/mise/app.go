package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/mise/internal/catalog"
	"github.com/hyperjump/mise/internal/config"
	"github.com/hyperjump/mise/internal/embedding"
	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/internal/search"
	"github.com/hyperjump/mise/internal/server"
	"github.com/hyperjump/mise/internal/storage"
)

// Product sources reported by loadProducts.
const (
	sourceFile     = "file"
	sourceSnapshot = "snapshot"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// When neither that nor the default file exists the built-in defaults are returned
// with an empty resolved path.
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
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadProducts reads the configured catalog file. When that fails and store holds a
// snapshot, the snapshot is used instead. The returned source is "file" or "snapshot".
func loadProducts(ctx context.Context, cfg *config.Config, store storage.Storage, logger *zap.Logger) ([]*models.Product, string, error) {
	products, err := catalog.LoadFile(cfg.Catalog.Path, logger)
	if err == nil {
		return products, sourceFile, nil
	}
	if store == nil {
		return nil, "", err
	}
	logger.Warn("catalog file unavailable, trying snapshot",
		zap.String("path", cfg.Catalog.Path),
		zap.Error(err),
	)
	stored, listErr := store.ListProducts(ctx, 0, -1)
	if listErr != nil {
		return nil, "", fmt.Errorf("load snapshot: %w", listErr)
	}
	if len(stored) == 0 {
		return nil, "", fmt.Errorf("no catalog file and empty snapshot: %w", err)
	}
	return stored, sourceSnapshot, nil
}

// buildBackend fits a fresh vectorizer and indexes products into a new engine.
func buildBackend(ctx context.Context, cfg *config.Config, products []*models.Product, logger *zap.Logger) (*server.Backend, error) {
	cat := catalog.New(products)
	vectorizer := embedding.NewVectorizer(
		embedding.WithMaxFeatures(cfg.Embedding.MaxFeatures),
		embedding.WithCacheSize(cfg.Embedding.QueryCacheSize),
		embedding.WithLogger(logger),
	)
	fit := search.FitOptions{
		SeedTexts:   cfg.Embedding.SeedTexts,
		SampleSize:  cfg.Embedding.FitSampleSize,
		FullCatalog: cfg.Embedding.FitFullCatalog,
	}
	engine, err := search.Build(ctx, cat, vectorizer, fit,
		search.WithLogger(logger),
		search.WithDefaultTopK(cfg.Retrieval.DefaultTopK),
	)
	if err != nil {
		return nil, err
	}
	return &server.Backend{Engine: engine, Catalog: cat}, nil
}

// initConfig writes the built-in configuration to path. An existing file is only
// replaced when force is set.
func initConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	return config.Save(path, &cfg)
}

// catalogReloader rebuilds the backend from the catalog file, swaps it into srv and
// refreshes the snapshot. Reloads run one at a time, each reading the file afresh,
// so the last reload to finish always reflects the latest file contents.
type catalogReloader struct {
	mu     sync.Mutex
	cfg    *config.Config
	srv    *server.Server
	store  storage.Storage
	logger *zap.Logger
}

func newCatalogReloader(cfg *config.Config, srv *server.Server, store storage.Storage, logger *zap.Logger) *catalogReloader {
	return &catalogReloader{cfg: cfg, srv: srv, store: store, logger: logger}
}

// Reload runs a single reload. On failure the current backend stays in place.
func (r *catalogReloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	products, err := catalog.LoadFile(r.cfg.Catalog.Path, r.logger)
	if err != nil {
		return err
	}
	backend, err := buildBackend(ctx, r.cfg, products, r.logger)
	if err != nil {
		return err
	}
	r.srv.SetBackend(backend)
	r.logger.Info("catalog reloaded", zap.Int("products", backend.Catalog.Len()))
	if r.store != nil {
		if err := r.store.SaveProducts(ctx, products); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	return nil
}
