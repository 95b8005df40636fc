// Package config provides configuration loading and structs for the Kotaeru server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the durable store backend and paths.
// Backend selects where serialized indices live: "disk" (one file per
// document) or "sqlite" (blob table in the registry database).
type StorageConfig struct {
	Backend      string `yaml:"backend"`
	IndexDir     string `yaml:"index_dir"`
	DatabasePath string `yaml:"database_path"`
}

// ChunkingConfig holds text segmentation settings.
type ChunkingConfig struct {
	Strategy     string `yaml:"strategy"` // fixed, recursive, semantic
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

// CacheConfig holds in-memory cache limits.
type CacheConfig struct {
	MaxResidentIndexes int `yaml:"max_resident_indexes"`
	EmbeddingCacheSize int `yaml:"embedding_cache_size"`
}

// SearchConfig holds cross-document retrieval settings.
type SearchConfig struct {
	TopKPerDocument       int `yaml:"top_k_per_document"`
	MaxTotalResults       int `yaml:"max_total_results"`
	MaxConcurrentSearches int `yaml:"max_concurrent_searches"`
	QueryTimeoutSeconds   int `yaml:"query_timeout_seconds"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	DefaultProvider string                `yaml:"default_provider"` // openai, ollama
	OpenAI          OpenAIEmbeddingConfig `yaml:"openai"`
	Ollama          OllamaEmbeddingConfig `yaml:"ollama"`
}

// OpenAIEmbeddingConfig holds OpenAI embedding settings. The API key is
// read from the OPENAI_API_KEY environment variable, never from config.
type OpenAIEmbeddingConfig struct {
	Model string `yaml:"model"`
}

// OllamaEmbeddingConfig holds Ollama embedding settings.
type OllamaEmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// LLMConfig holds language-model provider settings.
type LLMConfig struct {
	DefaultProvider string          `yaml:"default_provider"` // openai, ollama
	OpenAI          OpenAILLMConfig `yaml:"openai"`
	Ollama          OllamaLLMConfig `yaml:"ollama"`
}

// OpenAILLMConfig holds OpenAI chat settings.
type OpenAILLMConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// OllamaLLMConfig holds Ollama chat settings.
type OllamaLLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// WatchConfig holds ingest watcher settings. Files dropped into the
// watched directories are ingested into SessionID.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	SessionID   string   `yaml:"session_id"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
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

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
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
