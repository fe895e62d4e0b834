// Package config provides configuration management for memvault.
// It loads settings from an optional YAML file and layers MEMVAULT_-prefixed
// environment variables on top, with sensible defaults for every option.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the core and its entrypoint need.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Recall    RecallConfig    `yaml:"recall"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Session   SessionConfig   `yaml:"session"`
	Tasks     TasksConfig     `yaml:"tasks"`
}

// ServerConfig contains the process-level wiring knobs.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend     string `yaml:"backend"` // sqlite | postgres | memory
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // openai | ollama | mock
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	Dimensions int           `yaml:"dimensions"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// LLMConfig selects and configures the text-generation / reranker provider.
type LLMConfig struct {
	Provider              string  `yaml:"provider"` // ollama | openai | anthropic
	BaseURL               string  `yaml:"base_url"`
	Model                 string  `yaml:"model"`
	APIKey                string  `yaml:"api_key"`
	RateLimitPerSec       float64 `yaml:"rate_limit_per_sec"`
	ContradictionProvider string  `yaml:"contradiction_provider"`
	ExtractionService     string  `yaml:"extraction_service"`
}

// RecallConfig carries the defaults recall.go resolves before ranking.
type RecallConfig struct {
	Overfetch            int           `yaml:"recall_overfetch"`
	MaxGraphExpansion    int           `yaml:"max_graph_expansion"`
	IncludeAssociations  bool          `yaml:"include_associations"`
	TraverseDepth        int           `yaml:"traverse_depth"`
	RecencyWeight        float64       `yaml:"recency_weight"`
	RecencyHalfLifeHours float64       `yaml:"recency_half_life_hours"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	HybridRAGThreshold   float64       `yaml:"hybrid_rag_threshold"`
}

// IngestConfig carries the remember()-path defaults.
type IngestConfig struct {
	FactDecompositionEnabled   bool    `yaml:"fact_decomposition_enabled"`
	FactDecompositionMinLength int     `yaml:"fact_decomposition_min_length"`
	AutoAssociationThreshold   float64 `yaml:"auto_association_threshold"`
}

// SessionConfig carries session-service defaults.
type SessionConfig struct {
	Service        string        `yaml:"session_service"` // in-memory | persistent
	TouchTTL       time.Duration `yaml:"session_touch_ttl"`
	ImplicitCreate bool          `yaml:"session_implicit_create"`
}

// TasksConfig carries the recurring-task cadence.
type TasksConfig struct {
	SessionCleanupEnabled  bool          `yaml:"session_cleanup_enabled"`
	SessionCleanupInterval time.Duration `yaml:"session_cleanup_interval"`
	DecayEnabled           bool          `yaml:"decay_enabled"`
	DecayInterval          time.Duration `yaml:"decay_interval"`
}

// Load builds a Config from defaults, an optional YAML file at path (skipped
// if empty or missing), and MEMVAULT_-prefixed environment variables, in
// that order of increasing precedence.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 6363},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "./data/memvault.db",
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			CacheTTL:   time.Hour,
		},
		LLM: LLMConfig{
			Provider:              "ollama",
			BaseURL:               "http://localhost:11434",
			Model:                 "qwen2.5:7b",
			RateLimitPerSec:       2,
			ContradictionProvider: "heuristic",
			ExtractionService:     "llm",
		},
		Recall: RecallConfig{
			Overfetch:            3,
			MaxGraphExpansion:    50,
			IncludeAssociations:  true,
			TraverseDepth:        2,
			RecencyWeight:        0.2,
			RecencyHalfLifeHours: 168,
			CacheTTL:             5 * time.Minute,
			HybridRAGThreshold:   0.5,
		},
		Ingest: IngestConfig{
			FactDecompositionEnabled:   true,
			FactDecompositionMinLength: 50,
			AutoAssociationThreshold:   0.6,
		},
		Session: SessionConfig{
			Service:        "in-memory",
			TouchTTL:       30 * time.Minute,
			ImplicitCreate: true,
		},
		Tasks: TasksConfig{
			SessionCleanupEnabled:  true,
			SessionCleanupInterval: time.Minute,
			DecayEnabled:           true,
			DecayInterval:          time.Hour,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = getEnv("MEMVAULT_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("MEMVAULT_PORT", cfg.Server.Port)

	cfg.Storage.Backend = getEnv("MEMVAULT_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.SQLitePath = getEnv("MEMVAULT_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.PostgresDSN = getEnv("MEMVAULT_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.Embedding.Provider = getEnv("MEMVAULT_EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.BaseURL = getEnv("MEMVAULT_EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.Model = getEnv("MEMVAULT_EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.APIKey = getEnv("MEMVAULT_EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.Dimensions = getEnvInt("MEMVAULT_EMBEDDING_DIMENSIONS", cfg.Embedding.Dimensions)

	cfg.LLM.Provider = getEnv("MEMVAULT_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv("MEMVAULT_LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("MEMVAULT_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.APIKey = getEnv("MEMVAULT_LLM_API_KEY", cfg.LLM.APIKey)

	cfg.Recall.Overfetch = getEnvInt("MEMVAULT_RECALL_OVERFETCH", cfg.Recall.Overfetch)
	cfg.Recall.MaxGraphExpansion = getEnvInt("MEMVAULT_MAX_GRAPH_EXPANSION", cfg.Recall.MaxGraphExpansion)
	cfg.Recall.IncludeAssociations = getEnvBool("MEMVAULT_INCLUDE_ASSOCIATIONS", cfg.Recall.IncludeAssociations)
	cfg.Recall.TraverseDepth = getEnvInt("MEMVAULT_TRAVERSE_DEPTH", cfg.Recall.TraverseDepth)
	cfg.Recall.RecencyWeight = getEnvFloat("MEMVAULT_RECENCY_WEIGHT", cfg.Recall.RecencyWeight)
	cfg.Recall.RecencyHalfLifeHours = getEnvFloat("MEMVAULT_RECENCY_HALF_LIFE_HOURS", cfg.Recall.RecencyHalfLifeHours)

	cfg.Ingest.FactDecompositionEnabled = getEnvBool("MEMVAULT_FACT_DECOMPOSITION_ENABLED", cfg.Ingest.FactDecompositionEnabled)
	cfg.Ingest.FactDecompositionMinLength = getEnvInt("MEMVAULT_FACT_DECOMPOSITION_MIN_LENGTH", cfg.Ingest.FactDecompositionMinLength)
	cfg.Ingest.AutoAssociationThreshold = getEnvFloat("MEMVAULT_AUTO_ASSOCIATION_THRESHOLD", cfg.Ingest.AutoAssociationThreshold)

	cfg.Session.Service = getEnv("MEMVAULT_SESSION_SERVICE", cfg.Session.Service)
	cfg.Session.ImplicitCreate = getEnvBool("MEMVAULT_SESSION_IMPLICIT_CREATE", cfg.Session.ImplicitCreate)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
