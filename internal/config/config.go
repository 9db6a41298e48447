package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Broadcast modes.
const (
	RealtimeLocal = "local"
	RealtimeRedis = "redis"
)

// Tracing modes.
const (
	TracingNone = "none"
	TracingLog  = "log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Server   ServerConfig
	Realtime RealtimeConfig
	Log      LogConfig
	Tracing  TracingConfig

	// Store selects the persistence backend: "postgres" or "memory".
	Store string
	// Migrate applies the schema on startup (postgres only).
	Migrate bool
	// AdminEmails are granted the admin platform role on registration.
	AdminEmails []string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // G117: JWT signing secret config
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
}

// RealtimeConfig holds change broadcaster settings.
type RealtimeConfig struct {
	Mode       string
	BufferSize int
}

// TracingConfig holds OpenTelemetry settings. Mode "log" writes finished
// spans through zerolog; "none" drops them.
type TracingConfig struct {
	Mode        string
	SampleRatio float64
}

// LogConfig holds zerolog settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("KANBAN_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("KANBAN_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("KANBAN_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("KANBAN_JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	refreshTTL, err := getEnvDuration("KANBAN_JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("KANBAN_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	// WebSocket connections outlive any request timeout, so the write
	// timeout only bounds REST handlers.
	writeTimeout, err := getEnvDuration("KANBAN_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	shutdownTimeout, err := getEnvDuration("KANBAN_SERVER_SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rps, err := getEnvFloat("KANBAN_RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	burst, err := getEnvInt("KANBAN_RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	bufferSize, err := getEnvInt("KANBAN_REALTIME_BUFFER", 64)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sampleRatio, err := getEnvFloat("KANBAN_TRACING_SAMPLE_RATIO", 1)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	migrate, err := getEnvBool("KANBAN_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("KANBAN_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("KANBAN_DB_USER", "kanban"),
			Password: getEnv("KANBAN_DB_PASSWORD", ""),
			DBName:   getEnv("KANBAN_DB_NAME", "kanban_dev"),
			SSLMode:  getEnv("KANBAN_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("KANBAN_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("KANBAN_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:     getEnv("KANBAN_JWT_SECRET", ""),
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
		Server: ServerConfig{
			Addr:            getEnv("KANBAN_SERVER_ADDR", ":8080"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			CORSOrigins:     getEnvList("KANBAN_CORS_ORIGINS", []string{"http://localhost:5173"}),
			RateLimitRPS:    rps,
			RateLimitBurst:  burst,
		},
		Realtime: RealtimeConfig{
			Mode:       strings.ToLower(getEnv("KANBAN_REALTIME_MODE", RealtimeLocal)),
			BufferSize: bufferSize,
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("KANBAN_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("KANBAN_LOG_FORMAT", "json")),
		},
		Tracing: TracingConfig{
			Mode:        strings.ToLower(getEnv("KANBAN_TRACING", TracingNone)),
			SampleRatio: sampleRatio,
		},
		Store:       strings.ToLower(getEnv("KANBAN_STORE", StorePostgres)),
		Migrate:     migrate,
		AdminEmails: getEnvList("KANBAN_ADMIN_EMAILS", nil),
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("KANBAN_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("KANBAN_JWT_SECRET must be at least 32 characters")
	}

	switch c.Store {
	case StorePostgres:
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("KANBAN_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
	case StoreMemory:
		if c.Realtime.Mode == RealtimeRedis {
			log.Warn().Msg("KANBAN_STORE=memory with redis broadcast: instances will not share board state")
		}
	default:
		return fmt.Errorf("KANBAN_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if c.Realtime.Mode != RealtimeLocal && c.Realtime.Mode != RealtimeRedis {
		return fmt.Errorf("KANBAN_REALTIME_MODE must be %q or %q, got %q", RealtimeLocal, RealtimeRedis, c.Realtime.Mode)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("KANBAN_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	if c.Tracing.Mode != TracingNone && c.Tracing.Mode != TracingLog {
		return fmt.Errorf("KANBAN_TRACING must be %q or %q, got %q", TracingNone, TracingLog, c.Tracing.Mode)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("KANBAN_TRACING_SAMPLE_RATIO must be 0-1, got %g", c.Tracing.SampleRatio)
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("KANBAN_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("KANBAN_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("KANBAN_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("KANBAN_JWT_REFRESH_TTL must be positive, got %s", c.JWT.RefreshTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("KANBAN_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("KANBAN_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("KANBAN_SERVER_SHUTDOWN_TIMEOUT must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("KANBAN_RATE_LIMIT_RPS and KANBAN_RATE_LIMIT_BURST must be positive, got %g/%d",
			c.Server.RateLimitRPS, c.Server.RateLimitBurst)
	}
	if c.Realtime.BufferSize < 1 {
		return fmt.Errorf("KANBAN_REALTIME_BUFFER must be >= 1, got %d", c.Realtime.BufferSize)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
