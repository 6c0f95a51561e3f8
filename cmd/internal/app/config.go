package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Session persistence backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ErrConfig wraps every configuration validation failure.
var ErrConfig = errors.New("app: invalid config")

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	// IdentityURL is the identity endpoint base; APIKey is sent as ?key=.
	IdentityURL string
	APIKey      string
	// DataURL is the JSON store base holding recipes.json and shopping-list.json.
	DataURL string
	// RequestTimeout bounds every outbound identity and data request.
	RequestTimeout time.Duration

	SessionBackend string
	SessionDir     string

	RedisAddr     string
	RedisPassword string

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	WSAllowedOrigins []string
	WSOriginRequired bool
	WSSendQueue      int

	EmulatorAddr      string
	EmulatorTokenTTL  time.Duration
	EmulatorSecretHex string
	// EmulatorRedis stores emulator collections in Redis (RedisAddr) instead of memory.
	EmulatorRedis bool
}

// LoadConfig loads Config from environment variables with defaults.
// RECIPEBOOK_ENV_FILE (default ".env") is loaded first when present.
func LoadConfig() (Config, error) {
	if err := LoadDotEnv(EnvString("RECIPEBOOK_ENV_FILE", ".env")); err != nil {
		return Config{}, fmt.Errorf("%w: env file: %v", ErrConfig, err)
	}

	cfg := Config{
		HTTPAddr:  EnvString("RECIPEBOOK_HTTP_ADDR", "127.0.0.1:4200"),
		LogLevel:  EnvString("RECIPEBOOK_LOG_LEVEL", "info"),
		LogFormat: EnvString("RECIPEBOOK_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("RECIPEBOOK_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("RECIPEBOOK_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("RECIPEBOOK_HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       EnvDuration("RECIPEBOOK_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("RECIPEBOOK_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout:   EnvDuration("RECIPEBOOK_SHUTDOWN_TIMEOUT", 10*time.Second),

		IdentityURL:    EnvString("RECIPEBOOK_IDENTITY_URL", "http://127.0.0.1:9099"),
		APIKey:         EnvString("RECIPEBOOK_API_KEY", ""),
		DataURL:        EnvString("RECIPEBOOK_DATA_URL", "http://127.0.0.1:9099"),
		RequestTimeout: EnvDuration("RECIPEBOOK_REQUEST_TIMEOUT", 15*time.Second),

		SessionBackend: strings.ToLower(EnvString("RECIPEBOOK_SESSION_BACKEND", BackendFile)),
		SessionDir:     EnvString("RECIPEBOOK_SESSION_DIR", defaultSessionDir()),

		RedisAddr:     EnvString("RECIPEBOOK_REDIS_ADDR", ""),
		RedisPassword: EnvString("RECIPEBOOK_REDIS_PASSWORD", ""),

		DatabaseURL: EnvString("RECIPEBOOK_DATABASE_URL", ""),
		DBSchema:    EnvString("RECIPEBOOK_DB_SCHEMA", "recipebook"),
		DBMaxConns:  EnvInt32("RECIPEBOOK_DB_MAX_CONNS", 4),
		DBMinConns:  EnvInt32("RECIPEBOOK_DB_MIN_CONNS", 0),

		WSAllowedOrigins: EnvCSV("RECIPEBOOK_WS_ALLOWED_ORIGINS", "http://localhost,http://127.0.0.1"),
		WSOriginRequired: EnvBool("RECIPEBOOK_WS_ORIGIN_REQUIRED", false),
		WSSendQueue:      EnvInt("RECIPEBOOK_WS_SEND_QUEUE", 64),

		EmulatorAddr:      EnvString("RECIPEBOOK_EMULATOR_ADDR", "127.0.0.1:9099"),
		EmulatorTokenTTL:  EnvDuration("RECIPEBOOK_EMULATOR_TOKEN_TTL", time.Hour),
		EmulatorSecretHex: EnvString("RECIPEBOOK_EMULATOR_SECRET_KEY_HEX", ""),
		EmulatorRedis:     EnvBool("RECIPEBOOK_EMULATOR_REDIS", false),
	}

	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	for name, raw := range map[string]string{"RECIPEBOOK_IDENTITY_URL": c.IdentityURL, "RECIPEBOOK_DATA_URL": c.DataURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s must be an http(s) URL", ErrConfig, name)
		}
	}

	switch c.SessionBackend {
	case BackendFile:
		if c.SessionDir == "" {
			return fmt.Errorf("%w: RECIPEBOOK_SESSION_DIR is required for the file backend", ErrConfig)
		}
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: RECIPEBOOK_REDIS_ADDR is required for the redis backend", ErrConfig)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: RECIPEBOOK_DATABASE_URL is required for the postgres backend", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown session backend %q", ErrConfig, c.SessionBackend)
	}

	if c.EmulatorRedis && c.RedisAddr == "" {
		return fmt.Errorf("%w: RECIPEBOOK_EMULATOR_REDIS needs RECIPEBOOK_REDIS_ADDR", ErrConfig)
	}
	return nil
}

func defaultSessionDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "recipebook")
	}
	return ".recipebook"
}
