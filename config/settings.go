package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const Production = "production"

type DatabaseOptions struct {
	Host     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port     string `env:"DB_PORT" envDefault:"3306"`
	Name     string `env:"DB_DATABASE" envDefault:"research_grants"`
	User     string `env:"DB_USERNAME" envDefault:"root"`
	Password string `env:"DB_PASSWORD"`
	DebugSQL bool   `env:"DEBUG_SQL" envDefault:"false"`
}

// DSN builds the go-sql-driver/mysql connection string.
// clientFoundRows makes guarded UPDATEs report matched rows even when no column changed.
func (d DatabaseOptions) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
	)
}

type AuthOptions struct {
	JWTSecret      string `env:"JWT_SECRET"`
	JWTExpireHours int    `env:"JWT_EXPIRE_HOURS" envDefault:"24"`
}

type RateLimitOptions struct {
	Enabled  bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	AuthRate string `env:"RATE_LIMIT_AUTH" envDefault:"10-M"`
	Storage  string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return errors.New("RATE_LIMIT_REDIS_URL is required when RATE_LIMIT_STORAGE is 'redis'")
	}
	return nil
}

type LogOptions struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	Path  string `env:"LOG_PATH" envDefault:"logs/grant-api.log"`
}

type Settings struct {
	Database  DatabaseOptions
	Auth      AuthOptions
	RateLimit RateLimitOptions
	Log       LogOptions

	ServerPort     string   `env:"SERVER_PORT" envDefault:"8080"`
	GinMode        string   `env:"GIN_MODE" envDefault:"debug"`
	Environment    string   `env:"ENVIRONMENT" envDefault:"development"`
	StoreDriver    string   `env:"STORE_DRIVER" envDefault:"mysql"` // mysql or memory
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`
}

// IsProduction reports whether ENVIRONMENT is production.
func (s *Settings) IsProduction() bool {
	return strings.EqualFold(s.Environment, Production)
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Auth.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if s.Auth.JWTExpireHours <= 0 {
		return fmt.Errorf("JWT_EXPIRE_HOURS must be positive, got %d", s.Auth.JWTExpireHours)
	}
	switch s.StoreDriver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be 'mysql' or 'memory', got '%s'", s.StoreDriver)
	}
	return s.RateLimit.Validate()
}

// LoadEnv loads the given .env files that exist and returns how many were loaded.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env files, parses the environment into Settings and validates the result.
func Load() (*Settings, error) {
	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads Settings from the current process environment only.
func Parse() (*Settings, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadDatabaseSettings reads .env files and the environment without the API-only checks,
// for tooling that only needs the database connection.
func LoadDatabaseSettings() (*Settings, error) {
	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return s, nil
}
