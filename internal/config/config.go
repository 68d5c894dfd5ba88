// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Auditor   AuditorConfig   `mapstructure:"auditor"`
	Quality   QualityConfig   `mapstructure:"quality"`
	DB        DBConfig        `mapstructure:"db"`
	Nutrition NutritionConfig `mapstructure:"nutrition"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs crawl-session behavior.
type CrawlerConfig struct {
	UserAgent           string `mapstructure:"user_agent"`
	MaxPages            int    `mapstructure:"max_pages"`
	BaseDelayMs         int    `mapstructure:"base_delay_ms"`
	RandomDelayMs       int    `mapstructure:"random_delay_ms"`
	RetryExtraDelayMs   int    `mapstructure:"retry_extra_delay_ms"`
	Parallelism         int    `mapstructure:"parallelism"`
	RetryParallelism    int    `mapstructure:"retry_parallelism"`
	RequestTimeoutSec   int    `mapstructure:"request_timeout_seconds"`
	CooldownHours       int    `mapstructure:"cooldown_hours"`
	RespectRobots       bool   `mapstructure:"respect_robots"`
}

// WorkerConfig controls the idle backoff schedule.
type WorkerConfig struct {
	IdleBaseSec    int     `mapstructure:"idle_base_seconds"`
	IdleMultiplier float64 `mapstructure:"idle_multiplier"`
	IdleMaxSec     int     `mapstructure:"idle_max_seconds"`
	JitterMaxMs    int     `mapstructure:"jitter_max_ms"`
}

// AuditorConfig controls audit batching and repair.
type AuditorConfig struct {
	BatchSize            int `mapstructure:"batch_size"`
	PollIntervalSec      int `mapstructure:"poll_interval_seconds"`
	ErrorBackoffSec      int `mapstructure:"error_backoff_seconds"`
	RepairCap            int `mapstructure:"repair_cap"`
	ImageCheckTimeoutSec int `mapstructure:"image_check_timeout_seconds"`
}

// QualityConfig holds the two scoring bars: admission at ingest time
// and the stricter standing-quality bar the auditor applies.
type QualityConfig struct {
	IngestThreshold     int `mapstructure:"ingest_threshold"`
	QuarantineThreshold int `mapstructure:"quarantine_threshold"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifeMins int    `mapstructure:"max_conn_life_minutes"`
}

// NutritionConfig holds provider credentials and lookup behavior.
type NutritionConfig struct {
	USDAAPIKey          string `mapstructure:"usda_api_key"`
	USDABaseURL         string `mapstructure:"usda_base_url"`
	FatSecretClientID   string `mapstructure:"fatsecret_client_id"`
	FatSecretSecret     string `mapstructure:"fatsecret_client_secret"`
	ProviderTimeoutSec  int    `mapstructure:"provider_timeout_seconds"`
}

// StorageConfig sets where raw page snapshots are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // gcs, local, memory, or none
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// PubSubConfig holds metadata for ingest-event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RECIPEHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.user_agent", "recipeharvest/1.0")
	v.SetDefault("crawler.max_pages", 200)
	v.SetDefault("crawler.base_delay_ms", 1000)
	v.SetDefault("crawler.random_delay_ms", 2000)
	v.SetDefault("crawler.retry_extra_delay_ms", 5000)
	v.SetDefault("crawler.parallelism", 2)
	v.SetDefault("crawler.retry_parallelism", 1)
	v.SetDefault("crawler.request_timeout_seconds", 15)
	v.SetDefault("crawler.cooldown_hours", 24)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("worker.idle_base_seconds", 5)
	v.SetDefault("worker.idle_multiplier", 1.5)
	v.SetDefault("worker.idle_max_seconds", 60)
	v.SetDefault("worker.jitter_max_ms", 2000)
	v.SetDefault("auditor.batch_size", 10)
	v.SetDefault("auditor.poll_interval_seconds", 60)
	v.SetDefault("auditor.error_backoff_seconds", 60)
	v.SetDefault("auditor.repair_cap", 2)
	v.SetDefault("auditor.image_check_timeout_seconds", 5)
	v.SetDefault("quality.ingest_threshold", 60)
	v.SetDefault("quality.quarantine_threshold", 80)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_life_minutes", 30)
	v.SetDefault("nutrition.usda_base_url", "https://api.nal.usda.gov/fdc/v1")
	v.SetDefault("nutrition.provider_timeout_seconds", 10)
	v.SetDefault("storage.backend", "none")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.Parallelism <= 0 {
		return fmt.Errorf("crawler.parallelism must be > 0")
	}
	if c.Quality.IngestThreshold < 0 || c.Quality.IngestThreshold > 100 {
		return fmt.Errorf("quality.ingest_threshold must be within [0,100]")
	}
	if c.Quality.QuarantineThreshold < c.Quality.IngestThreshold {
		return fmt.Errorf("quality.quarantine_threshold must not be below quality.ingest_threshold")
	}
	if c.Auditor.BatchSize <= 0 {
		return fmt.Errorf("auditor.batch_size must be > 0")
	}
	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case "memory", "none", "":
	default:
		return fmt.Errorf("storage.backend must be one of gcs, local, memory, none")
	}
	return nil
}

// ProviderTimeout returns the nutrition provider timeout as a duration.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Nutrition.ProviderTimeoutSec) * time.Second
}
