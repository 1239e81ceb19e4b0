// Package config provides configuration loading and structs for the mise server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvCatalogPath       = "MISE_CATALOG_PATH"
	EnvLegacyCatalogPath = "PRODUCT_DATA_PATH"
	EnvDatabasePath      = "MISE_DATABASE_PATH"
	EnvServerPort        = "MISE_SERVER_PORT"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	// QueryRateLimit is the sustained number of /query requests per second; 0 disables limiting.
	QueryRateLimit float64 `yaml:"query_rate_limit"`
	QueryBurst     int     `yaml:"query_burst"`
}

// CatalogConfig holds the product source file and snapshot database.
type CatalogConfig struct {
	Path         string `yaml:"path"`
	Watch        bool   `yaml:"watch"`
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds TF-IDF vectorizer settings.
type EmbeddingConfig struct {
	MaxFeatures    int      `yaml:"max_features"`
	FitSampleSize  int      `yaml:"fit_sample_size"`
	FitFullCatalog bool     `yaml:"fit_full_catalog"`
	SeedTexts      []string `yaml:"seed_texts"`
	QueryCacheSize int      `yaml:"query_cache_size"`
}

// RetrievalConfig holds query defaults.
type RetrievalConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// Load reads and parses the config file at path, applies defaults, expands paths, and
// applies environment overrides. A .env file next to the config is loaded first when present.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := LoadEnvFile(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	cfg.Catalog.DatabasePath = expandPath(cfg.Catalog.DatabasePath, configDir)
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
func Default() (*Config, error) {
	var cfg Config
	ApplyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from a dotenv file without overriding ones already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvLegacyCatalogPath); v != "" {
		cfg.Catalog.Path = absPath(v)
	}
	if v := os.Getenv(EnvCatalogPath); v != "" {
		cfg.Catalog.Path = absPath(v)
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.Catalog.DatabasePath = absPath(v)
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvServerPort, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
