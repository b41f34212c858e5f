// Package config loads engine settings from the environment with an optional
// YAML overlay. Environment wins over file values; flags layered on top by
// the CLI win over both.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/corpustools/dedup/internal/core/domain"
)

type Config struct {
	LogLevel string `yaml:"log_level"`

	EnableExactDeduplication    bool    `yaml:"enable_exact_deduplication"`
	EnableSemanticDeduplication bool    `yaml:"enable_semantic_deduplication"`
	SimilarityThreshold         float64 `yaml:"similarity_threshold"`
	BatchSize                   int     `yaml:"batch_size"`
	MinDocumentLength           int     `yaml:"min_document_length"`
	Workers                     int     `yaml:"workers"`

	NormalizeLowercase   bool   `yaml:"normalize_lowercase"`
	NormalizePunctuation string `yaml:"normalize_punctuation"`

	OllamaURL        string        `yaml:"ollama_url"`
	OllamaEmbedModel string        `yaml:"ollama_embed_model"`
	EmbedTimeout     time.Duration `yaml:"embed_timeout"`
	EmbedRatePerSec  float64       `yaml:"embed_rate_per_sec"`

	EmbeddingCacheSize int `yaml:"embedding_cache_size"`

	ChunkSize       int `yaml:"chunk_size"`
	ChunkOverlap    int `yaml:"chunk_overlap"`
	MaxChunksPerDoc int `yaml:"max_chunks_per_doc"`

	// UseAcceleratedIndex swaps the in-memory similarity index for the
	// qdrant-backed one.
	UseAcceleratedIndex bool   `yaml:"use_accelerated_index"`
	QdrantURL           string `yaml:"qdrant_url"`
	QdrantCollection    string `yaml:"qdrant_collection"`

	// PostgresDSN enables the run report store; empty disables it.
	PostgresDSN string `yaml:"postgres_dsn"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	WorkerMetricsPort string `yaml:"worker_metrics_port"`
}

func Load() Config {
	return Config{
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		EnableExactDeduplication:    mustEnvBool("ENABLE_EXACT_DEDUPLICATION", true),
		EnableSemanticDeduplication: mustEnvBool("ENABLE_SEMANTIC_DEDUPLICATION", true),
		SimilarityThreshold:         mustEnvFloat("SIMILARITY_THRESHOLD", 0.85),
		BatchSize:                   mustEnvInt("BATCH_SIZE", 32),
		MinDocumentLength:           mustEnvInt("MIN_DOCUMENT_LENGTH", 20),
		Workers:                     mustEnvInt("WORKERS", 4),

		NormalizeLowercase:   mustEnvBool("NORMALIZE_LOWERCASE", true),
		NormalizePunctuation: mustEnv("NORMALIZE_PUNCTUATION", ""),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		EmbedTimeout:     mustEnvDuration("EMBED_TIMEOUT", 60*time.Second),
		EmbedRatePerSec:  mustEnvFloat("EMBED_RATE_PER_SEC", 0),

		EmbeddingCacheSize: mustEnvInt("EMBEDDING_CACHE_SIZE", 4096),

		ChunkSize:       mustEnvInt("CHUNK_SIZE", 2000),
		ChunkOverlap:    mustEnvInt("CHUNK_OVERLAP", 200),
		MaxChunksPerDoc: mustEnvInt("MAX_CHUNKS_PER_DOC", 8),

		UseAcceleratedIndex: mustEnvBool("USE_ACCELERATED_INDEX", mustEnvBool("USE_ACCELERATED_EMBEDDINGS", false)),
		QdrantURL:           mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:    mustEnv("QDRANT_COLLECTION", "dedup_representatives"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "dedup.jobs"),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// LoadFile overlays cfg with values from a YAML file. Only keys present in
// the file are touched.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, domain.WrapError(domain.ErrConfiguration, "read config file", err)
	}
	out := cfg
	// use_accelerated_embeddings is the option's published spelling; the
	// canonical use_accelerated_index key wins when both are present.
	var alias struct {
		UseAcceleratedEmbeddings *bool `yaml:"use_accelerated_embeddings"`
	}
	if err := yaml.Unmarshal(data, &alias); err != nil {
		return cfg, domain.WrapError(domain.ErrConfiguration, "parse config file", err)
	}
	if alias.UseAcceleratedEmbeddings != nil {
		out.UseAcceleratedIndex = *alias.UseAcceleratedEmbeddings
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return cfg, domain.WrapError(domain.ErrConfiguration, "parse config file", err)
	}
	return out, nil
}

func (c Config) Method() domain.Method {
	return domain.MethodFromFlags(c.EnableExactDeduplication, c.EnableSemanticDeduplication)
}

func (c Config) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return domain.WrapError(domain.ErrConfiguration, "validate config",
			fmt.Errorf("similarity_threshold %v outside [0,1]", c.SimilarityThreshold))
	}
	if c.BatchSize <= 0 {
		return domain.WrapError(domain.ErrConfiguration, "validate config",
			fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.MinDocumentLength < 0 {
		return domain.WrapError(domain.ErrConfiguration, "validate config",
			fmt.Errorf("min_document_length must not be negative, got %d", c.MinDocumentLength))
	}
	if c.Workers < 1 {
		return domain.WrapError(domain.ErrConfiguration, "validate config",
			fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.EmbeddingCacheSize < 0 {
		return domain.WrapError(domain.ErrConfiguration, "validate config",
			fmt.Errorf("embedding_cache_size must not be negative, got %d", c.EmbeddingCacheSize))
	}
	if c.EnableSemanticDeduplication {
		if c.OllamaURL == "" {
			return domain.WrapError(domain.ErrConfiguration, "validate config",
				errors.New("ollama_url is required for semantic deduplication"))
		}
		if c.OllamaEmbedModel == "" {
			return domain.WrapError(domain.ErrConfiguration, "validate config",
				errors.New("ollama_embed_model is required for semantic deduplication"))
		}
		if c.UseAcceleratedIndex && c.QdrantURL == "" {
			return domain.WrapError(domain.ErrConfiguration, "validate config",
				errors.New("qdrant_url is required for the accelerated index"))
		}
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
