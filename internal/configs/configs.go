/*
Package configs is responsible for loading and parsing the application's configuration settings.

Values come from operating system environment variables, optionally seeded from a .env file,
and cover the running environment, listen address, CORS origins, logging, chat limits and the
optional NATS event relay.
*/
package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	minPort = 1024
	maxPort = 65535

	minPongWait = time.Second
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Host        string
	Port        int
	StaticDir   string

	// Security Settings
	AllowedOrigins []string

	// Logging Settings
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Chat Settings
	HubBufferSize  int
	SendQueueSize  int
	MaxMessageSize int64
	PongWait       time.Duration

	// Relay Settings
	NatsURL     string
	NatsSubject string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// Addr returns the host:port the HTTP server listens on.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks values that may have been overridden after loading.
func (c *AppConfig) Validate() error {
	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", c.Port, minPort, maxPort)
	}
	if c.Host == "" {
		return errors.New("host must not be empty")
	}
	return nil
}

// LoadEnvFile loads variables from the named .env files (default ".env") without
// overriding variables that are already set. Missing files are not an error.
func LoadEnvFile(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	// --- General Server Settings ---
	cfg.Environment = getEnv("ENVIRONMENT", "development")
	cfg.Host = getEnv("HOST", "127.0.0.1")

	if cfg.Port, err = getEnvInt("PORT", 3000); err != nil {
		return nil, err
	}

	cfg.StaticDir = os.Getenv("STATIC_DIR")

	// --- Security Settings ---
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	// --- Logging Settings ---
	defaultLevel := "info"
	if cfg.IsDevelopment() {
		defaultLevel = "debug"
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", defaultLevel)
	cfg.LogFile = os.Getenv("LOG_FILE")

	if cfg.LogMaxSizeMB, err = getEnvPositiveInt("LOG_MAX_SIZE_MB", 10); err != nil {
		return nil, err
	}
	if cfg.LogMaxBackups, err = getEnvPositiveInt("LOG_MAX_BACKUPS", 5); err != nil {
		return nil, err
	}
	if cfg.LogMaxAgeDays, err = getEnvPositiveInt("LOG_MAX_AGE_DAYS", 30); err != nil {
		return nil, err
	}

	// --- Chat Settings ---
	if cfg.HubBufferSize, err = getEnvPositiveInt("HUB_BUFFER_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.SendQueueSize, err = getEnvPositiveInt("SEND_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}

	maxMessageSize, err := getEnvPositiveInt("MAX_MESSAGE_SIZE", 64<<10)
	if err != nil {
		return nil, err
	}
	cfg.MaxMessageSize = int64(maxMessageSize)

	pongWait := getEnv("PONG_WAIT", "60s")
	cfg.PongWait, err = time.ParseDuration(pongWait)
	if err != nil {
		return nil, fmt.Errorf("invalid PONG_WAIT environment variable: %w", err)
	}
	if cfg.PongWait < 0 {
		return nil, fmt.Errorf("PONG_WAIT must not be negative, got %s", pongWait)
	}
	if cfg.PongWait > 0 && cfg.PongWait < minPongWait {
		return nil, fmt.Errorf("PONG_WAIT must be 0 (disabled) or at least %s, got %s", minPongWait, pongWait)
	}

	// --- Relay Settings ---
	cfg.NatsURL = os.Getenv("NATS_URL")
	cfg.NatsSubject = getEnv("NATS_SUBJECT", "chatroom.events")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return n, nil
}

func getEnvPositiveInt(key string, fallback int) (int, error) {
	n, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func splitList(s string) []string {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
