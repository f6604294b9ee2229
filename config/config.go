// Package config loads layered configuration (flags > env > yaml >
// defaults) using viper, with the ingestion/FX/telemetry sections this
// engine needs.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Ingestion  IngestionConfig  `mapstructure:"ingestion"`
	FX         FXConfig         `mapstructure:"fx"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Security   SecurityConfig   `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// IngestionConfig holds the ingestion tuning knobs.
type IngestionConfig struct {
	Workers           int           `mapstructure:"workers"`
	BatchSize         int           `mapstructure:"batch_size"`
	StaleLockMinutes  int           `mapstructure:"stale_lock_minutes"`
	HTTPTimeoutSecs   int           `mapstructure:"http_timeout_seconds"`
	CandidateThreshold float64      `mapstructure:"candidate_threshold"`
}

// StaleLockThreshold returns StaleLockMinutes as a time.Duration.
func (c IngestionConfig) StaleLockThreshold() time.Duration {
	return time.Duration(c.StaleLockMinutes) * time.Minute
}

// HTTPTimeout returns HTTPTimeoutSecs as a time.Duration.
func (c IngestionConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSecs) * time.Second
}

// FXConfig holds the exchange-rate refresh timer settings.
type FXConfig struct {
	ProviderURL string        `mapstructure:"provider_url"`
	Interval    time.Duration `mapstructure:"interval"`
}

// StorageConfig holds storage configuration for the steam_apps_pretty.json
// local lookup cache.
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	BasePath string `mapstructure:"base_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// TelemetryConfig gates OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
}

// SecurityConfig holds credential-sealing and internal API auth settings.
type SecurityConfig struct {
	CredentialsEncKeyHex string `mapstructure:"credentials_enc_key"`
	InternalAPIKey       string `mapstructure:"internal_api_key"`
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := loadEnvFile(v); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("VGPRICE")
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

func loadEnvFile(v *viper.Viper) error {
	for _, path := range []string{".", "./config"} {
		envFile := fmt.Sprintf("%s/.env", path)
		if _, err := os.Stat(envFile); err == nil {
			if err := loadDotEnvFile(envFile); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("no .env file found")
}

func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// bindEnvVars binds the well-known environment variables directly,
// alongside the VGPRICE_ prefixed layered config.
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("ingestion.workers", "INGEST_WORKERS")
	v.BindEnv("ingestion.batch_size", "INGEST_BATCH_SIZE")
	v.BindEnv("ingestion.stale_lock_minutes", "STALE_LOCK_MINUTES")
	v.BindEnv("ingestion.http_timeout_seconds", "HTTP_TIMEOUT_SECONDS")
	v.BindEnv("fx.provider_url", "FX_PROVIDER_URL")
	v.BindEnv("security.credentials_enc_key", "CREDENTIALS_ENC_KEY")
	v.BindEnv("security.internal_api_key", "INTERNAL_API_KEY")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("storage.base_path", "STORAGE_PATH")
	v.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	// INGEST_WORKERS defaults to cpus*2, resolved at call sites that know
	// runtime.NumCPU(), not here.
	v.SetDefault("ingestion.workers", 0)
	v.SetDefault("ingestion.batch_size", 500)
	v.SetDefault("ingestion.stale_lock_minutes", 30)
	v.SetDefault("ingestion.http_timeout_seconds", 15)
	v.SetDefault("ingestion.candidate_threshold", 0.92)

	v.SetDefault("fx.interval", time.Hour)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./data/media-cache")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "vgprice-engine")
}

// Get returns the global configuration set by the last successful Load.
func Get() *Config {
	return globalConfig
}

// GetDatabaseURL returns the database URL from config or environment.
func GetDatabaseURL() string {
	if cfg := Get(); cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}

// ResolvedWorkers returns Ingestion.Workers, defaulting to cpus*2 when
// unset.
func (c *Config) ResolvedWorkers(numCPU int) int {
	if c.Ingestion.Workers > 0 {
		return c.Ingestion.Workers
	}
	return numCPU * 2
}
