// Package config loads settings from .env, an optional config.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	DatabaseURL    string   `mapstructure:"database_url"`
	JWTSecretKey   string   `mapstructure:"jwt_secret_key"`
	ServerPort     int      `mapstructure:"server_port"`
	StorageDriver  string   `mapstructure:"storage_driver"`
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	R2         R2Config         `mapstructure:"r2"`
	Engine     EngineConfig     `mapstructure:"engine"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type DispatcherConfig struct {
	AsyncThreshold  int           `mapstructure:"async_threshold"`
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	RequeueInterval time.Duration `mapstructure:"requeue_interval"`
}

// R2Config is only read when archives go to Cloudflare R2; an empty bucket keeps
// archives in memory.
type R2Config struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	Endpoint        string `mapstructure:"endpoint"`
}

func (r R2Config) Enabled() bool {
	return r.BucketName != ""
}

// EngineConfig overrides the built-in engine defaults. Unset fields keep the defaults.
type EngineConfig struct {
	// SupportMatrix narrows the format/scoring combinations, e.g. SWISS: [SCORE_BASED].
	SupportMatrix   map[string][]string           `mapstructure:"support_matrix"`
	RewardTables    map[string]models.RewardTable `mapstructure:"reward_tables"`
	SkillWeights    map[string]float64            `mapstructure:"skill_weights"`
	SkillBasePoints float64                       `mapstructure:"skill_base_points"`
	SkillBands      []models.SkillBand            `mapstructure:"skill_bands"`
	Points          *models.PointsRule            `mapstructure:"points"`
}

// CompetitionConfig applies the overrides on top of base and validates the result.
func (e EngineConfig) CompetitionConfig(base models.CompetitionConfig) (models.CompetitionConfig, error) {
	cfg := base.Clone()
	if len(e.SkillWeights) > 0 {
		cfg.SkillWeights = make(map[string]float64, len(e.SkillWeights))
		cfg.SkillsTested = cfg.SkillsTested[:0]
		for skill, w := range e.SkillWeights {
			cfg.SkillWeights[skill] = w
			cfg.SkillsTested = append(cfg.SkillsTested, skill)
		}
		sort.Strings(cfg.SkillsTested)
	}
	if e.SkillBasePoints > 0 {
		cfg.SkillBasePoints = e.SkillBasePoints
	}
	if len(e.SkillBands) > 0 {
		cfg.SkillBands = append([]models.SkillBand(nil), e.SkillBands...)
	}
	if e.Points != nil {
		cfg.Points = *e.Points
	}
	if err := cfg.Validate(); err != nil {
		return models.CompetitionConfig{}, fmt.Errorf("engine config: %w", err)
	}
	return cfg, nil
}

// FormatRewardTables returns the per-format reward tables keyed by format.
func (e EngineConfig) FormatRewardTables() (map[models.Format]models.RewardTable, error) {
	out := make(map[models.Format]models.RewardTable, len(e.RewardTables))
	for name, table := range e.RewardTables {
		format := models.Format(strings.ToUpper(name))
		if !format.Valid() {
			return nil, fmt.Errorf("engine reward table: unknown format %q", name)
		}
		out[format] = table
	}
	return out, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_secret_key", "")
	v.SetDefault("server_port", 8080)
	v.SetDefault("storage_driver", StoragePostgres)
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", []string{})

	v.SetDefault("rate_limit.per_second", 5.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("dispatcher.async_threshold", 128)
	v.SetDefault("dispatcher.workers", 4)
	v.SetDefault("dispatcher.queue_size", 64)
	v.SetDefault("dispatcher.max_retries", 3)
	v.SetDefault("dispatcher.retry_backoff", 2*time.Second)
	v.SetDefault("dispatcher.stale_after", time.Minute)
	v.SetDefault("dispatcher.requeue_interval", 30*time.Second)

	v.SetDefault("r2.account_id", "")
	v.SetDefault("r2.access_key_id", "")
	v.SetDefault("r2.secret_access_key", "")
	v.SetDefault("r2.bucket_name", "")
	v.SetDefault("r2.public_base_url", "")
	v.SetDefault("r2.endpoint", "")
}

// Load reads .env (if present), then config.yaml from configPath, ".", or "./config",
// then the environment. DISPATCHER_ASYNC_THRESHOLD overrides dispatcher.async_threshold.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.JWTSecretKey == "" {
		return errors.New("JWT_SECRET_KEY is not set")
	}
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (want %s or %s)", c.StorageDriver, StoragePostgres, StorageMemory)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit settings must not be negative")
	}
	return nil
}
