package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Narrative providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Overlay   OverlayConfig   `yaml:"overlay" mapstructure:"overlay"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Narrative NarrativeConfig `yaml:"narrative" mapstructure:"narrative"`
	Schedule  ScheduleConfig  `yaml:"schedule" mapstructure:"schedule"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	TileCacheSize   int      `yaml:"tile_cache_size" mapstructure:"tile_cache_size"`
	TileCacheTTLMin int      `yaml:"tile_cache_ttl_mins" mapstructure:"tile_cache_ttl_mins"`
	ShutdownSecs    int      `yaml:"shutdown_secs" mapstructure:"shutdown_secs"`
}

// BatchConfig configures the batch runners.
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OverlayConfig fixes the reference frame shared by layers and boundaries.
type OverlayConfig struct {
	SRID int `yaml:"srid" mapstructure:"srid"`
}

// ScoringConfig selects the weight tables.
type ScoringConfig struct {
	// WeightsFile is an optional YAML file overlaying the default weights.
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
}

// NarrativeConfig configures the language-model backends.
type NarrativeConfig struct {
	Provider       string  `yaml:"provider" mapstructure:"provider"`
	AnthropicKey   string  `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel string  `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	OpenAIKey      string  `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIBaseURL  string  `yaml:"openai_base_url" mapstructure:"openai_base_url"`
	OpenAIModel    string  `yaml:"openai_model" mapstructure:"openai_model"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLMins   int     `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	CacheSize      int     `yaml:"cache_size" mapstructure:"cache_size"`
	RatePerMinute  float64 `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	Burst          int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// Timeout is the per-generation deadline.
func (n NarrativeConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSecs) * time.Second
}

// CacheTTL is how long a generated narrative is served from cache.
func (n NarrativeConfig) CacheTTL() time.Duration {
	return time.Duration(n.CacheTTLMins) * time.Minute
}

// Key returns the API key of the selected provider.
func (n NarrativeConfig) Key() string {
	switch n.Provider {
	case ProviderAnthropic:
		return n.AnthropicKey
	case ProviderGroq, ProviderOpenAI:
		return n.OpenAIKey
	}
	return ""
}

// ScheduleConfig configures recurring jobs inside serve.
type ScheduleConfig struct {
	// Recompute is a cron expression for score recomputation. Empty disables it.
	Recompute string `yaml:"recompute" mapstructure:"recompute"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BRRS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional names used by deployment platforms and SDKs.
	_ = v.BindEnv("store.database_url", "BRRS_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("narrative.anthropic_key", "BRRS_NARRATIVE_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("narrative.openai_key", "BRRS_NARRATIVE_OPENAI_KEY", "GROQ_API_KEY", "OPENAI_API_KEY")

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "brrs.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.tile_cache_size", 2048)
	v.SetDefault("server.tile_cache_ttl_mins", 60)
	v.SetDefault("server.shutdown_secs", 15)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("overlay.srid", 4326)
	v.SetDefault("narrative.provider", ProviderGroq)
	v.SetDefault("narrative.anthropic_model", "claude-haiku-4-5")
	v.SetDefault("narrative.openai_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("narrative.openai_model", "llama-3.3-70b-versatile")
	v.SetDefault("narrative.timeout_secs", 60)
	v.SetDefault("narrative.cache_ttl_mins", 60)
	v.SetDefault("narrative.cache_size", 512)
	v.SetDefault("narrative.rate_per_minute", 30)
	v.SetDefault("narrative.burst", 2)
	v.SetDefault("narrative.max_attempts", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Narrative.Provider = strings.ToLower(strings.TrimSpace(cfg.Narrative.Provider))

	return &cfg, nil
}

// loadDotEnv exports the variables of path unless they are already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return eris.Wrapf(err, "config: load %s", path)
	}
	return nil
}

// Validate checks the settings a command mode needs.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "migrate", "load", "status":
		errs = append(errs, c.validateStore()...)
	case "batch":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateBatch()...)
	case "narrate":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateBatch()...)
		errs = append(errs, c.validateNarrative(true)...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateBatch()...)
		errs = append(errs, c.validateNarrative(false)...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch strings.ToLower(c.Store.Driver) {
	case "", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the postgres driver"}
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return []string{"store.sqlite_path is required for the sqlite driver"}
		}
	default:
		return []string{"store.driver must be postgres or sqlite"}
	}
	return nil
}

func (c *Config) validateBatch() []string {
	var errs []string
	if c.Batch.Workers < 1 || c.Batch.Workers > 64 {
		errs = append(errs, "batch.workers must be between 1 and 64")
	}
	if c.Overlay.SRID <= 0 {
		errs = append(errs, "overlay.srid must be positive")
	}
	return errs
}

// validateNarrative checks the provider. A missing key only fails when
// keyRequired; serve degrades to placeholders instead.
func (c *Config) validateNarrative(keyRequired bool) []string {
	n := c.Narrative
	switch n.Provider {
	case ProviderAnthropic, ProviderGroq, ProviderOpenAI:
	case ProviderNone:
		if keyRequired {
			return []string{"narrative.provider is none"}
		}
		return nil
	default:
		return []string{"narrative.provider must be anthropic, groq, openai or none"}
	}
	var errs []string
	if keyRequired && n.Key() == "" {
		errs = append(errs, "an API key is required for narrative provider "+n.Provider)
	}
	if n.RatePerMinute < 0 {
		errs = append(errs, "narrative.rate_per_minute must not be negative")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
