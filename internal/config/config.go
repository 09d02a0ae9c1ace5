// Package config loads nyc311 configuration from config.yaml, .env and the environment.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LegacyTokenEnv is the environment variable older deployments used for the
// Socrata app token. It is honoured when socrata.app_token is unset.
const LegacyTokenEnv = "NYCOPENDATA"

// Config holds the full application configuration.
type Config struct {
	Socrata SocrataConfig `yaml:"socrata" mapstructure:"socrata"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Collect CollectConfig `yaml:"collect" mapstructure:"collect"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	RunLog  RunLogConfig  `yaml:"runlog" mapstructure:"runlog"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SocrataConfig configures the upstream open data endpoint.
type SocrataConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Resource    string  `yaml:"resource" mapstructure:"resource"`
	AppToken    string  `yaml:"app_token" mapstructure:"app_token"`
	TimeField   string  `yaml:"time_field" mapstructure:"time_field"`
	PageSize    int     `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// StoreConfig configures where extracts, reports and markers live.
type StoreConfig struct {
	Driver string      `yaml:"driver" mapstructure:"driver"`
	Root   string      `yaml:"root" mapstructure:"root"`
	Kind   string      `yaml:"kind" mapstructure:"kind"`
	MinIO  MinIOConfig `yaml:"minio" mapstructure:"minio"`
}

// MinIOConfig holds S3-compatible object store settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// CollectConfig configures daily collection.
type CollectConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ReportConfig holds report defaults used by the CLI.
type ReportConfig struct {
	DefaultStart string `yaml:"default_start" mapstructure:"default_start"`
	DefaultTopN  int    `yaml:"default_top_n" mapstructure:"default_top_n"`
}

// RunLogConfig configures the run history backend.
type RunLogConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// MetricsConfig configures Prometheus metric export.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional and never overrides variables already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NYC311")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("socrata.base_url", "https://data.cityofnewyork.us")
	v.SetDefault("socrata.resource", "erm2-nwe9")
	v.SetDefault("socrata.app_token", "")
	v.SetDefault("socrata.time_field", "created_date")
	v.SetDefault("socrata.page_size", 50000)
	v.SetDefault("socrata.timeout_secs", 120)
	v.SetDefault("socrata.max_retries", 3)
	v.SetDefault("socrata.rate_limit", 5)
	v.SetDefault("socrata.user_agent", "nyc311-cli/1.0")
	v.SetDefault("store.driver", "fs")
	v.SetDefault("store.root", "data")
	v.SetDefault("store.kind", "311")
	v.SetDefault("store.minio.endpoint", "")
	v.SetDefault("store.minio.access_key", "")
	v.SetDefault("store.minio.secret_key", "")
	v.SetDefault("store.minio.bucket", "nyc311")
	v.SetDefault("store.minio.use_ssl", false)
	v.SetDefault("collect.concurrency", 1)
	v.SetDefault("report.default_start", "2019-01-01")
	v.SetDefault("report.default_top_n", 5)
	v.SetDefault("runlog.driver", "sqlite")
	v.SetDefault("runlog.dsn", "data/runs.db")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "nyc311")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if cfg.Socrata.AppToken == "" {
		cfg.Socrata.AppToken = os.Getenv(LegacyTokenEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "fs", "minio":
	default:
		return eris.Errorf("config: unknown store.driver %q (valid: fs, minio)", c.Store.Driver)
	}
	switch c.RunLog.Driver {
	case "sqlite", "postgres", "none":
	default:
		return eris.Errorf("config: unknown runlog.driver %q (valid: sqlite, postgres, none)", c.RunLog.Driver)
	}
	if c.Socrata.PageSize < 1 {
		return eris.Errorf("config: socrata.page_size must be positive, got %d", c.Socrata.PageSize)
	}
	if c.Collect.Concurrency < 1 {
		return eris.Errorf("config: collect.concurrency must be positive, got %d", c.Collect.Concurrency)
	}
	if c.Store.Kind == "" {
		return eris.New("config: store.kind must not be empty")
	}
	return nil
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
