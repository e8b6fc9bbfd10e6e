package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aura-webinar/webcast/internal/identity"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Report   ReportConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
	// BaseURL is the LMS site root prefixed to report links; empty keeps them relative.
	BaseURL string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/lms?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the exports bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ExportsBucket        string
	PresignExpireMinutes int
}

// ReportConfig holds the user activity report settings.
type ReportConfig struct {
	PageSize          int
	NowRoundingSec    int
	IdentityFields    []string
	Lang              string
	ExportRatePerMin  int
	AttendanceMaxGapS int
	// CountCache is "redis" (shared across instances) or "memory" (per process).
	CountCache string
}

// RoundStep is the "now" snapshot granularity.
func (r ReportConfig) RoundStep() time.Duration {
	return time.Duration(r.NowRoundingSec) * time.Second
}

// Validate rejects settings the report cannot run with.
func (r ReportConfig) Validate() error {
	var errs []error
	if r.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("REPORT_PAGE_SIZE must be positive, got %d", r.PageSize))
	}
	if r.NowRoundingSec <= 0 {
		errs = append(errs, fmt.Errorf("REPORT_NOW_ROUNDING_SEC must be positive, got %d", r.NowRoundingSec))
	}
	if r.ExportRatePerMin <= 0 {
		errs = append(errs, fmt.Errorf("REPORT_EXPORT_RATE_PER_MIN must be positive, got %d", r.ExportRatePerMin))
	}
	switch r.CountCache {
	case "", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("REPORT_COUNT_CACHE must be redis or memory, got %q", r.CountCache))
	}
	if err := identity.Validate(r.IdentityFields); err != nil {
		errs = append(errs, fmt.Errorf("REPORT_IDENTITY_FIELDS: %w", err))
	}
	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			BaseURL:            getEnv("SITE_BASE_URL", ""),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "lms"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ExportsBucket:        getEnv("AWS_S3_EXPORTS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Report: ReportConfig{
			PageSize:          getEnvInt("REPORT_PAGE_SIZE", 30),
			NowRoundingSec:    getEnvInt("REPORT_NOW_ROUNDING_SEC", 100),
			IdentityFields:    splitTrim(getEnv("REPORT_IDENTITY_FIELDS", "email"), ","),
			Lang:              getEnv("REPORT_LANG", "en"),
			ExportRatePerMin:  getEnvInt("REPORT_EXPORT_RATE_PER_MIN", 6),
			AttendanceMaxGapS: getEnvInt("ATTENDANCE_MAX_GAP_SEC", 90),
			CountCache:        getEnv("REPORT_COUNT_CACHE", "redis"),
		},
	}
	if err := cfg.Report.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
