package config

// DefaultSeedTexts are added to the vectorizer fit corpus so common query words
// have a column even when the catalog sample lacks them.
var DefaultSeedTexts = []string{
	"product search ecommerce",
	"clothing furniture electronics",
	"price color size brand",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.QueryRateLimit > 0 && cfg.Server.QueryBurst == 0 {
		cfg.Server.QueryBurst = int(cfg.Server.QueryRateLimit) + 1
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "/usr/local/var/mise/data/products.tsv"
	}
	if cfg.Catalog.DatabasePath == "" {
		cfg.Catalog.DatabasePath = "/usr/local/var/mise/data/db/catalog.db"
	}
	if cfg.Embedding.MaxFeatures == 0 {
		cfg.Embedding.MaxFeatures = 5000
	}
	if cfg.Embedding.FitSampleSize == 0 {
		cfg.Embedding.FitSampleSize = 10
	}
	if cfg.Embedding.SeedTexts == nil {
		cfg.Embedding.SeedTexts = append([]string(nil), DefaultSeedTexts...)
	}
	if cfg.Embedding.QueryCacheSize == 0 {
		cfg.Embedding.QueryCacheSize = 1000
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 5
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 50
	}
}
