package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultOrigin         = "http://localhost:5173"
	defaultChainID        = 1
	defaultStatement      = "Sign in with Ethereum to Matenet App, in case of new account, it will be registered automatically."
	defaultRequestTimeout = 15 * time.Second
	defaultEventsTopic    = "pin.session"
	defaultLogLevel       = "info"
	defaultLogFormat      = "terminal"
	defaultDataDirName    = ".pin"
)

// Config captures client runtime configuration loaded from environment variables.
type Config struct {
	ServerURL      string
	Origin         string
	ChainID        int64
	Statement      string
	DataDir        string
	RedisURL       string
	RequestTimeout time.Duration
	EventsTopic    string
	LogLevel       string
	LogFormat      string
}

// Load reads configuration values from the environment and validates them.
func Load() (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv is Load without validation, for callers that override values
// before validating.
func FromEnv() (Config, error) {
	cfg := Config{
		ServerURL:      getEnv("PIN_SERVER_URL", os.Getenv("VITE_SERVERURL")),
		Origin:         getEnv("PIN_ORIGIN", defaultOrigin),
		ChainID:        defaultChainID,
		Statement:      getEnv("PIN_STATEMENT", defaultStatement),
		DataDir:        os.Getenv("PIN_DATA_DIR"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RequestTimeout: defaultRequestTimeout,
		EventsTopic:    getEnv("PIN_EVENTS_TOPIC", defaultEventsTopic),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
	}

	if v := os.Getenv("PIN_CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PIN_CHAIN_ID: %w", err)
		}
		cfg.ChainID = id
	}

	if v := os.Getenv("PIN_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PIN_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("cannot resolve home directory, set PIN_DATA_DIR: %w", err)
		}
		cfg.DataDir = filepath.Join(home, defaultDataDirName)
	}
	return cfg, nil
}

// Validate checks values that may also have been set by flags
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("PIN_SERVER_URL must be set")
	}
	if u, err := url.Parse(c.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid PIN_SERVER_URL %q", c.ServerURL)
	}
	if u, err := url.Parse(c.Origin); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid PIN_ORIGIN %q", c.Origin)
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("PIN_CHAIN_ID must be positive")
	}
	if strings.ContainsAny(c.Statement, "\n") {
		return fmt.Errorf("PIN_STATEMENT must be a single line")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("PIN_REQUEST_TIMEOUT must be positive")
	}
	switch c.LogFormat {
	case "terminal", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be terminal or json")
	}
	return nil
}

// JSONLogs reports whether logs should be JSON encoded
func (c Config) JSONLogs() bool {
	return c.LogFormat == "json"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
