package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"dev"`
	LogLevelStr string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8000"`

	// LogLevel is resolved from LogLevelStr during Load.
	LogLevel slog.Level `env:"-"`

	DB    DBConfig
	MQTT  MQTTConfig
	Email EmailConfig

	// CORSOrigin is the origin of the separately hosted frontend.
	// Empty disables cross-origin access entirely.
	CORSOrigin string `env:"CORS_ORIGIN"`

	// AuthTokenTTL bounds the lifetime of login tokens.
	AuthTokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"10h"`
}

type DBConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"postgres"`
	// DSN overrides the individual connection fields when set.
	DSN      string `env:"DB_DSN"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"weatherstation"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"weatherstation"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

type MQTTConfig struct {
	Enabled  bool   `env:"MQTT_ENABLED" envDefault:"false"`
	Broker   string `env:"MQTT_BROKER" envDefault:"localhost"`
	Port     int    `env:"MQTT_PORT" envDefault:"1883"`
	ClientID string `env:"MQTT_CLIENT_ID" envDefault:"weatherstation-server"`
	Topic    string `env:"MQTT_TOPIC" envDefault:"weatherstation/telemetry"`
}

type EmailConfig struct {
	// Backend is "console" (log outbound mail) or "smtp".
	Backend  string `env:"EMAIL_BACKEND" envDefault:"console"`
	Host     string `env:"EMAIL_HOST"`
	Port     int    `env:"EMAIL_PORT" envDefault:"587"`
	User     string `env:"EMAIL_HOST_USER"`
	Password string `env:"EMAIL_HOST_PASSWORD"`
	From     string `env:"EMAIL_FROM" envDefault:"noreply@example.com"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := parseLogLevel(cfg.LogLevelStr)
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	switch cfg.DB.Driver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: postgres, sqlite)", cfg.DB.Driver)
	}

	switch cfg.Email.Backend {
	case "console", "smtp":
	default:
		return Config{}, fmt.Errorf("invalid EMAIL_BACKEND %q (allowed: console, smtp)", cfg.Email.Backend)
	}
	if cfg.Email.Backend == "smtp" && cfg.Email.Host == "" {
		return Config{}, fmt.Errorf("EMAIL_HOST is required when EMAIL_BACKEND=smtp")
	}

	if cfg.AuthTokenTTL <= 0 {
		return Config{}, fmt.Errorf("AUTH_TOKEN_TTL must be positive, got %s", cfg.AuthTokenTTL)
	}

	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

// PostgresDSN builds a keyword/value DSN from the individual fields
// unless an explicit DB_DSN was provided.
func (c DBConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
