// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Image backends.
const (
	ImageBackendLocal = "local"
	ImageBackendS3    = "s3"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Port   int    `env:"PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Sessions. The secret has no default and must be at least 16 characters.
	JWTSecret  string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"360h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"12"`

	// Store
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DBPath        string `env:"DB_PATH" envDefault:"data/booklog.db"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"booklog"`

	// Image host
	ImageBackend  string `env:"IMAGE_BACKEND" envDefault:"local"`
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"data/uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`
	S3Prefix    string `env:"S3_PREFIX" envDefault:"books"`

	// Image intake
	MaxImageBytes     int64         `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`
	ImageFetchTimeout time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"10s"`

	// Request body size limit in bytes. Base64 images inflate by a third,
	// so this must comfortably exceed MaxImageBytes.
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"10485760"`

	// Rate limiting on register/login, per client IP
	AuthRatePerMinute int `env:"AUTH_RATE_PER_MINUTE" envDefault:"20"`
	AuthRateBurst     int `env:"AUTH_RATE_BURST" envDefault:"5"`

	// Take the client IP from X-Forwarded-For / X-Real-IP. Only enable this
	// behind a proxy that overwrites those headers, otherwise any client can
	// pick its own rate limit key.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load parses environment variables and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express, such as settings that
// are only required by the selected store driver or image backend.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite store"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
		if c.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_DATABASE is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be sqlite, postgres or mongo, got %q", c.StoreDriver))
	}

	switch c.ImageBackend {
	case ImageBackendLocal:
		if c.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required for the local image backend"))
		}
		if _, err := url.ParseRequestURI(c.PublicBaseURL); err != nil {
			errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL is not a valid URL: %w", err))
		}
	case ImageBackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 image backend"))
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			errs = append(errs, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("IMAGE_BACKEND must be local or s3, got %q", c.ImageBackend))
	}

	if c.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_BYTES must be positive"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if c.AuthRatePerMinute <= 0 || c.AuthRateBurst <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_PER_MINUTE and AUTH_RATE_BURST must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
