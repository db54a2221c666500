package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the dialogue service.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig selects the conversation store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "bolt", "sqlite", "memory"
	Path    string `yaml:"path"`    // relative paths resolve against the data dir
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "hash", "openai", "ollama", "jina", "deepseek", "mock"
	Model     string `yaml:"model"`       // e.g., "all-minilm"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// SearchConfig holds retrieval configuration.
type SearchConfig struct {
	TopK              int     `yaml:"top_k"`
	MaxTopK           int     `yaml:"max_top_k"`
	MinScoreThreshold float64 `yaml:"min_score_threshold"` // Filter results below this score (0 = disabled)
	MMREnabled        bool    `yaml:"mmr_enabled"`
	MMRLambda         float64 `yaml:"mmr_lambda"`
	DedupThreshold    float64 `yaml:"dedup_threshold"`
	ListLimit         int     `yaml:"list_limit"`
}

// ScoringConfig holds the automated evaluation settings.
type ScoringConfig struct {
	Combine string `yaml:"combine"` // "mean", "min", "max"
}

// CacheConfig holds search cache configuration.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Backend   string        `yaml:"backend"` // "memory", "redis"
	MaxSize   int           `yaml:"max_size"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Mode         string        `yaml:"mode"` // gin mode: "debug", "release", "test"
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "bolt",
			Path:    "conversations.db",
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Model:     "all-minilm",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
			BatchSize: 64,
		},
		Search: SearchConfig{
			TopK:           5,
			MaxTopK:        100,
			MMREnabled:     false,
			MMRLambda:      0.7,
			DedupThreshold: 0.95,
			ListLimit:      20,
		},
		Scoring: ScoringConfig{
			Combine: "mean",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Backend:   "memory",
			MaxSize:   100,
			TTL:       5 * time.Minute,
			RedisAddr: "localhost:6379",
			KeyPrefix: "dialogue:search:",
		},
		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			Mode:         "release",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for dialogue.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "dialogue.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(DataDir(dir), "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DataDir returns the directory holding the store and local config.
func DataDir(dir string) string {
	return filepath.Join(dir, ".dialogue")
}

// StorePath resolves the configured store path against dir.
func StorePath(dir string, cfg *Config) string {
	if filepath.IsAbs(cfg.Store.Path) {
		return cfg.Store.Path
	}
	return filepath.Join(DataDir(dir), cfg.Store.Path)
}

// EnsureDataDir ensures the .dialogue directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
