// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ainews/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Storage     Storage             `mapstructure:"storage"`
	Snapshots   Snapshots           `mapstructure:"snapshots"`
	Sources     []core.SourceConfig `mapstructure:"sources"`
	Scoring     Scoring             `mapstructure:"scoring"`
	Performance Performance         `mapstructure:"performance"`
	Digest      Digest              `mapstructure:"digest"`
	LLM         LLM                 `mapstructure:"llm"`
}

// Storage holds database configuration.
type Storage struct {
	Path    string `mapstructure:"path"`
	CacheMB int    `mapstructure:"cache_mb"`
}

// Snapshots holds snapshot directory configuration.
type Snapshots struct {
	Dir string `mapstructure:"dir"`
}

// Scoring holds denoise and ranking configuration.
type Scoring struct {
	Weights           Weights                       `mapstructure:"weights"`
	KeywordsExclude   []string                      `mapstructure:"keywords_exclude"`
	KeywordsRelevance []string                      `mapstructure:"keywords_relevance"`
	Languages         []string                      `mapstructure:"languages"` // empty allows all
	MinPopularity     map[string]map[string]float64 `mapstructure:"min_popularity"`
	Quotas            map[string]int                `mapstructure:"quotas"`
}

// Weights holds the score factor weights.
type Weights struct {
	Authority  float64 `mapstructure:"authority"`
	Recency    float64 `mapstructure:"recency"`
	Popularity float64 `mapstructure:"popularity"`
	Relevance  float64 `mapstructure:"relevance"`
	DupPenalty float64 `mapstructure:"dup_penalty"`
}

// Performance holds concurrency and similarity tuning.
type Performance struct {
	MaxConcurrentSources  int     `mapstructure:"max_concurrent_sources"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds"`
	SimilarityThreshold   float64 `mapstructure:"similarity_threshold"`
	UseEmbeddings         bool    `mapstructure:"use_embeddings"` // reserved, not used by the core pipeline
}

// RequestTimeout returns the per-source fetch deadline as a duration.
func (p Performance) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

// Digest holds per-category output limits.
type Digest struct {
	Limits map[string]int `mapstructure:"limits"`
}

// LLM holds summarizer provider configuration.
type LLM struct {
	Provider           string  `mapstructure:"provider"` // mock | openai | anthropic | local
	Model              string  `mapstructure:"model"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	Temperature        float32 `mapstructure:"temperature"`
	ConcurrentRequests int     `mapstructure:"concurrent_requests"`
	CacheSummaries     bool    `mapstructure:"cache_summaries"`
	LocalURL           string  `mapstructure:"local_url"`
	LocalModel         string  `mapstructure:"local_model"`
}

var globalConfig *Config

// Load loads the configuration from the given file (or the default search
// path), applies defaults, and validates. Invalid configuration is fatal.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("storage.path", "data/ainews.db")
	viper.SetDefault("storage.cache_mb", 64)

	viper.SetDefault("snapshots.dir", "data/snapshots")

	viper.SetDefault("scoring.weights.authority", 0.30)
	viper.SetDefault("scoring.weights.recency", 0.25)
	viper.SetDefault("scoring.weights.popularity", 0.20)
	viper.SetDefault("scoring.weights.relevance", 0.20)
	viper.SetDefault("scoring.weights.dup_penalty", 0.05)
	viper.SetDefault("scoring.quotas", map[string]int{"default": 20})
	viper.SetDefault("scoring.keywords_relevance", []string{
		"llm", "gpt", "claude", "gemini", "llama", "mistral",
		"transformer", "diffusion", "fine-tuning", "rag", "embedding",
		"agent", "prompt", "inference", "benchmark", "open source",
		"machine learning", "neural", "dataset", "multimodal",
	})

	viper.SetDefault("performance.max_concurrent_sources", 10)
	viper.SetDefault("performance.request_timeout_seconds", 30)
	viper.SetDefault("performance.similarity_threshold", 0.85)
	viper.SetDefault("performance.use_embeddings", false)

	viper.SetDefault("digest.limits", map[string]int{
		core.CategoryNews:  20,
		core.CategoryTips:  20,
		core.CategoryPaper: 10,
	})

	viper.SetDefault("llm.provider", "mock")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.max_tokens", 150)
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.concurrent_requests", 10)
	viper.SetDefault("llm.cache_summaries", true)
	viper.SetDefault("llm.local_url", "http://localhost:11434/v1")
	viper.SetDefault("llm.local_model", "llama3.2")
}

var validCategories = map[string]bool{
	core.CategoryNews:  true,
	core.CategoryTips:  true,
	core.CategoryPaper: true,
}

var validProviders = map[string]bool{
	"mock": true, "openai": true, "anthropic": true, "local": true,
}

// validateConfig ensures required configuration is present and well-formed.
func validateConfig(config *Config) error {
	var errs []string

	seen := map[string]bool{}
	for i, src := range config.Sources {
		if src.ID == "" {
			errs = append(errs, fmt.Sprintf("sources[%d]: missing id", i))
			continue
		}
		if seen[src.ID] {
			errs = append(errs, fmt.Sprintf("sources[%d]: duplicate id %q", i, src.ID))
		}
		seen[src.ID] = true
		if src.URL == "" {
			errs = append(errs, fmt.Sprintf("source %s: missing url", src.ID))
		}
		if src.Category != "" && !validCategories[src.Category] {
			errs = append(errs, fmt.Sprintf("source %s: unknown category %q", src.ID, src.Category))
		}
		if src.Authority < 0 || src.Authority > 1 {
			errs = append(errs, fmt.Sprintf("source %s: authority %.2f outside [0,1]", src.ID, src.Authority))
		}
	}

	w := config.Scoring.Weights
	for name, v := range map[string]float64{
		"authority": w.Authority, "recency": w.Recency, "popularity": w.Popularity,
		"relevance": w.Relevance, "dup_penalty": w.DupPenalty,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("scoring.weights.%s must not be negative", name))
		}
	}

	if t := config.Performance.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Sprintf("performance.similarity_threshold %.2f outside [0,1]", t))
	}
	if config.Performance.MaxConcurrentSources < 1 {
		errs = append(errs, "performance.max_concurrent_sources must be at least 1")
	}

	if p := config.LLM.Provider; p != "" && !validProviders[p] {
		errs = append(errs, fmt.Sprintf("llm.provider %q not one of mock, openai, anthropic, local", p))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// SourceQuota returns the admission quota for a source, falling back to
// the "default" entry (20 when absent).
func (c *Config) SourceQuota(sourceID string) int {
	if q, ok := c.Scoring.Quotas[sourceID]; ok {
		return q
	}
	if q, ok := c.Scoring.Quotas["default"]; ok {
		return q
	}
	return 20
}

// CategoryLimit returns the digest cap for a category (20 when absent).
func (c *Config) CategoryLimit(category string) int {
	if l, ok := c.Digest.Limits[category]; ok {
		return l
	}
	return 20
}

// SourceByID returns the config entry for a source id, if present.
func (c *Config) SourceByID(id string) (core.SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return core.SourceConfig{}, false
}

// Reset clears the global configuration (useful for testing).
func Reset() {
	globalConfig = nil
	viper.Reset()
}
