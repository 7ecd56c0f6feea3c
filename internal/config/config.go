package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`

	// Legacy booking system (MySQL)
	LegacyMySQLDSN         string        `mapstructure:"LEGACY_MYSQL_DSN"`
	LegacySyncEnabled      bool          `mapstructure:"LEGACY_SYNC_ENABLED"`
	LegacySyncInterval     time.Duration `mapstructure:"LEGACY_SYNC_INTERVAL"`
	LegacySyncLookbackDays int           `mapstructure:"LEGACY_SYNC_LOOKBACK_DAYS"`
	LegacyMappingFile      string        `mapstructure:"LEGACY_MAPPING_FILE"`
	LegacyStatuses         []string      `mapstructure:"LEGACY_SYNC_STATUSES"`
	PracticeTimezone       string        `mapstructure:"PRACTICE_TIMEZONE"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	StatsCacheTTL time.Duration `mapstructure:"STATS_CACHE_TTL"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	// Cloudinary: either CLOUDINARY_URL or the three discrete keys
	CloudinaryURL       string `mapstructure:"CLOUDINARY_URL"`
	CloudinaryCloudName string `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `mapstructure:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `mapstructure:"CLOUDINARY_FOLDER"`
	PhotoMaxBytes       int64  `mapstructure:"PHOTO_MAX_BYTES"`

	S3ArchiveBucket string `mapstructure:"S3_ARCHIVE_BUCKET"`
	AWSRegion       string `mapstructure:"AWS_REGION"`

	AuthIssuer      string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string `mapstructure:"AUTH_AUD"`
	PermissionsFile string `mapstructure:"PERMISSIONS_FILE"`

	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`

	PatientRetention time.Duration `mapstructure:"PATIENT_RETENTION"`

	OTelEnabled         bool          `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint        string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelServiceName     string        `mapstructure:"OTEL_SERVICE_NAME"`
	OTelServiceVersion  string        `mapstructure:"OTEL_SERVICE_VERSION"`
	OTelTracesSampler   string        `mapstructure:"OTEL_TRACES_SAMPLER"`
	OTelMetricsInterval time.Duration `mapstructure:"OTEL_METRICS_EXPORT_INTERVAL"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"DATABASE_URL", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
	"LEGACY_MYSQL_DSN", "LEGACY_SYNC_ENABLED", "LEGACY_SYNC_INTERVAL",
	"LEGACY_SYNC_LOOKBACK_DAYS", "LEGACY_MAPPING_FILE", "LEGACY_SYNC_STATUSES", "PRACTICE_TIMEZONE",
	"REDIS_ADDR", "REDIS_PASSWORD", "STATS_CACHE_TTL",
	"RABBITMQ_URL",
	"CLOUDINARY_URL", "CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY",
	"CLOUDINARY_API_SECRET", "CLOUDINARY_FOLDER", "PHOTO_MAX_BYTES",
	"S3_ARCHIVE_BUCKET", "AWS_REGION",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUD", "PERMISSIONS_FILE",
	"ALLOWED_ORIGINS",
	"PATIENT_RETENTION",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME",
	"OTEL_SERVICE_VERSION", "OTEL_TRACES_SAMPLER", "OTEL_METRICS_EXPORT_INTERVAL",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("LEGACY_SYNC_ENABLED", false)
	v.SetDefault("LEGACY_SYNC_INTERVAL", "15m")
	v.SetDefault("LEGACY_SYNC_LOOKBACK_DAYS", 30)
	v.SetDefault("LEGACY_SYNC_STATUSES", "confirmed")
	v.SetDefault("PRACTICE_TIMEZONE", "UTC")
	v.SetDefault("STATS_CACHE_TTL", "60s")
	v.SetDefault("CLOUDINARY_FOLDER", "ortho")
	v.SetDefault("PHOTO_MAX_BYTES", 20*1024*1024)
	v.SetDefault("AWS_REGION", "eu-central-1")
	v.SetDefault("PERMISSIONS_FILE", "permissions.yml")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("PATIENT_RETENTION", "61320h") // 7 years
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SERVICE_NAME", "practice-service")
	v.SetDefault("OTEL_SERVICE_VERSION", "1.0.0")
	v.SetDefault("OTEL_TRACES_SAMPLER", "always_on")
	v.SetDefault("OTEL_METRICS_EXPORT_INTERVAL", "30s")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// env lists arrive untrimmed
	cfg.AllowedOrigins = splitList(strings.Join(cfg.AllowedOrigins, ","))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))
	}
	cfg.LegacyStatuses = splitList(strings.Join(cfg.LegacyStatuses, ","))
	if len(cfg.LegacyStatuses) == 0 {
		cfg.LegacyStatuses = splitList(v.GetString("LEGACY_SYNC_STATUSES"))
	}

	return cfg, nil
}

// Validate reports configuration combinations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.LegacySyncEnabled && c.LegacyMySQLDSN == "" {
		errs = append(errs, errors.New("LEGACY_MYSQL_DSN is required when LEGACY_SYNC_ENABLED is set"))
	}
	if c.LegacySyncEnabled && c.LegacySyncInterval <= 0 {
		errs = append(errs, errors.New("LEGACY_SYNC_INTERVAL must be positive"))
	}
	if _, err := time.LoadLocation(c.PracticeTimezone); err != nil {
		errs = append(errs, fmt.Errorf("PRACTICE_TIMEZONE: %w", err))
	}
	if c.PhotoMaxBytes <= 0 {
		errs = append(errs, errors.New("PHOTO_MAX_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// CloudinaryConfigured reports whether photo uploads can reach Cloudinary.
func (c *Config) CloudinaryConfigured() bool {
	if c.CloudinaryURL != "" {
		return true
	}
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Location is the practice's time zone, UTC when unset or invalid.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.PracticeTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// isNotFound reports a missing .env, which is allowed.
func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
