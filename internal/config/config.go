package config

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// maxWindowMS keeps time.Duration(WindowMS) * time.Millisecond within int64.
const maxWindowMS = float64(math.MaxInt64 / int64(time.Millisecond))

const (
	StoreMongo    = "mongodb"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Store     string
	Mongo     MongoConfig
	Postgres  PostgresConfig
}

type ServerConfig struct {
	Port               string
	GinMode            string
	TrustedProxies     []string
	CORSAllowedOrigins []string
}

type LogConfig struct {
	Level string
}

type AuthConfig struct {
	JWTSecret         string
	JWTExpiresIn      string
	PasswordMinLength int
	HashConcurrency   int
}

type RateLimitConfig struct {
	WindowMS int64
	Max      int
	RedisURL string
}

type MongoConfig struct {
	URI                      string
	Database                 string
	TLSAllowInvalidCerts     *bool
	TLSAllowInvalidHostnames *bool
	TLSCAFile                string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// Load reads an optional .env file and then the process environment.
// Numeric knobs fall back silently; missing required values are collected
// into a single error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Port:               getenv("PORT", "3000"),
			GinMode:            getenv("GIN_MODE", "release"),
			TrustedProxies:     splitList(os.Getenv("TRUSTED_PROXIES")),
			CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("JWT_SECRET"),
			JWTExpiresIn:      os.Getenv("JWT_EXPIRES_IN"),
			PasswordMinLength: int(parseNumberEnv("PASSWORD_MIN_LENGTH", 8, math.MaxInt32)),
			HashConcurrency:   int(parseNumberEnv("PASSWORD_HASH_CONCURRENCY", float64(runtime.NumCPU()), math.MaxInt32)),
		},
		RateLimit: RateLimitConfig{
			WindowMS: int64(parseNumberEnv("AUTH_RATE_LIMIT_WINDOW_MS", 60_000, maxWindowMS)),
			Max:      int(parseNumberEnv("AUTH_RATE_LIMIT_MAX", 20, math.MaxInt32)),
			RedisURL: os.Getenv("RATE_LIMIT_REDIS_URL"),
		},
		Store: strings.ToLower(getenv("USER_STORE", StoreMongo)),
		Mongo: MongoConfig{
			URI:                      os.Getenv("MONGODB_URI"),
			Database:                 getenv("MONGODB_DB", "adventure"),
			TLSAllowInvalidCerts:     parseBoolEnv(os.Getenv("MONGODB_TLS_ALLOW_INVALID_CERTIFICATES")),
			TLSAllowInvalidHostnames: parseBoolEnv(os.Getenv("MONGODB_TLS_ALLOW_INVALID_HOSTNAMES")),
			TLSCAFile:                os.Getenv("MONGODB_TLS_CA_FILE"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string

	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET environment variable is not set")
	}

	switch c.Store {
	case StoreMongo:
		if c.Mongo.URI == "" {
			problems = append(problems, "MONGODB_URI environment variable is not set")
		}
	case StorePostgres:
		if c.Postgres.DatabaseURL == "" && (c.Postgres.User == "" || c.Postgres.Database == "") {
			problems = append(problems, "DATABASE_URL or PGUSER/PGDATABASE must be set")
		}
	case StoreMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown USER_STORE %q", c.Store))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// parseNumberEnv accepts any finite number in [1, limit]; anything else yields
// the fallback.
func parseNumberEnv(key string, fallback, limit float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) || value < 1 || value > limit {
		return fallback
	}
	return value
}

func parseBoolEnv(value string) *bool {
	normalized := strings.ToLower(strings.TrimSpace(value))
	var parsed bool
	switch normalized {
	case "1", "true", "yes", "on":
		parsed = true
	case "0", "false", "no", "off":
		parsed = false
	default:
		return nil
	}
	return &parsed
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
