// Package config loads service configuration: environment variables first,
// with an optional YAML file providing the same keys underneath.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from YAML either as a Go
// duration string ("30s", "10m") or as plain integer seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("Duration.UnmarshalYAML: %w", err)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("Duration.UnmarshalYAML: %w", err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds everything main needs to wire the service.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	// Oracle provider selection and credentials.
	Provider      string `yaml:"llm_provider"`
	Model         string `yaml:"llm_model"`
	OpenAIKey     string `yaml:"openai_api_key"`
	AnthropicKey  string `yaml:"anthropic_api_key"`
	OpenRouterKey string `yaml:"openrouter_api_key"`
	GeminiKey     string `yaml:"gemini_api_key"`

	// Oracle call limits.
	OracleTimeout     Duration `yaml:"oracle_timeout"`
	OracleConcurrency int64    `yaml:"oracle_concurrency"`

	// Verdict cache: Redis when set, process-local otherwise.
	RedisURL string   `yaml:"redis_url"`
	CacheTTL Duration `yaml:"cache_ttl"`

	// Attack store location: file path, postgres://, or clickhouse://.
	DBPath string `yaml:"db_path"`

	// Inbound auth: plaintext shared secret or its bcrypt hash.
	APIKey     string `yaml:"api_key"`
	APIKeyHash string `yaml:"api_key_hash"`
}

// Load reads the optional YAML file at path (empty path skips it), then
// overlays environment variables and fills defaults. Environment wins.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("Load: parse %s: %w", path, err)
		}
		// Keys in the file may reference env vars, e.g. ${OPENAI_API_KEY}.
		cfg.OpenAIKey = os.ExpandEnv(cfg.OpenAIKey)
		cfg.AnthropicKey = os.ExpandEnv(cfg.AnthropicKey)
		cfg.OpenRouterKey = os.ExpandEnv(cfg.OpenRouterKey)
		cfg.GeminiKey = os.ExpandEnv(cfg.GeminiKey)
		cfg.APIKey = os.ExpandEnv(cfg.APIKey)
		cfg.APIKeyHash = os.ExpandEnv(cfg.APIKeyHash)
	}

	overlayEnv(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func overlayEnv(cfg *Config) {
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Provider, "LLM_PROVIDER")
	setString(&cfg.Model, "LLM_MODEL")
	setString(&cfg.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&cfg.OpenRouterKey, "OPENROUTER_API_KEY")
	setString(&cfg.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.DBPath, "DB_PATH")
	setString(&cfg.APIKey, "API_KEY")
	setString(&cfg.APIKeyHash, "API_KEY_HASH")
	setSeconds(&cfg.CacheTTL, "CACHE_TTL")
	setSeconds(&cfg.OracleTimeout, "ORACLE_TIMEOUT")
	setInt64(&cfg.OracleConcurrency, "ORACLE_CONCURRENCY")
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = Duration(time.Hour)
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = Duration(30 * time.Second)
	}
	if cfg.OracleConcurrency <= 0 {
		cfg.OracleConcurrency = 8
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "attacks.db"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setSeconds reads an integer number of seconds from the environment.
func setSeconds(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = Duration(time.Duration(n) * time.Second)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
