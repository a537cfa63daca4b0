package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default remote collections the agent is allowed to write into.
var DefaultCollections = []string{
	"cash_reconciliations",
	"checklists",
	"incidents",
	"inventory_issues",
	"employee_reports",
}

// Default read-only collections served to forms through the reference cache.
var DefaultReferenceCollections = []string{"stores", "submission_types"}

type Config struct {
	ListenAddr    string        `yaml:"listen_addr"`
	ServerPort    string        `yaml:"server_port"`
	DatabaseURL   string        `yaml:"database_url"`
	LocalDBPath   string        `yaml:"local_db_path"`
	NotifyBackend string        `yaml:"notify_backend"`
	RedisURL      string        `yaml:"redis_url"`
	NatsURL       string        `yaml:"nats_url"`
	NotifyStream  string        `yaml:"notify_stream"`
	JWTSecret     string        `yaml:"jwt_secret"`
	ResetPINHash  string        `yaml:"reset_pin_hash"`
	PingInterval time.Duration `yaml:"ping_interval"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	Collections   []string      `yaml:"collections"`

	ReferenceCollections []string `yaml:"reference_collections"`

	// Heartbeat published to Redis when REDIS_URL is set
	StoreID           string        `yaml:"store_id"`
	AgentID           string        `yaml:"agent_id"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

func LoadConfig() (*Config, error) {
	pingInterval, err := time.ParseDuration(getEnv("PING_INTERVAL", "15s"))
	if err != nil {
		return nil, errors.New("invalid PING_INTERVAL format")
	}
	remoteTimeout, err := time.ParseDuration(getEnv("REMOTE_TIMEOUT", "10s"))
	if err != nil {
		return nil, errors.New("invalid REMOTE_TIMEOUT format")
	}

	heartbeatInterval, err := time.ParseDuration(getEnv("HEARTBEAT_INTERVAL", "30s"))
	if err != nil {
		return nil, errors.New("invalid HEARTBEAT_INTERVAL format")
	}
	hostname, _ := os.Hostname()

	cfg := &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", "127.0.0.1"),
		ServerPort:    getEnv("SERVER_PORT", "8085"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LocalDBPath:   getEnv("LOCAL_DB_PATH", "storeledger.db"),
		NotifyBackend: getEnv("NOTIFY_BACKEND", "none"),
		RedisURL:      os.Getenv("REDIS_URL"),
		NatsURL:       os.Getenv("NATS_URL"),
		NotifyStream:  getEnv("NOTIFY_STREAM", "notifications"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ResetPINHash:  os.Getenv("RESET_PIN_HASH"),
		PingInterval: pingInterval,
		RemoteTimeout: remoteTimeout,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		Collections:   DefaultCollections,

		StoreID:           os.Getenv("STORE_ID"),
		AgentID:           getEnv("AGENT_ID", hostname),
		HeartbeatInterval: heartbeatInterval,
	}
	if v := os.Getenv("COLLECTIONS"); v != "" {
		cfg.Collections = splitList(v)
	}
	cfg.ReferenceCollections = DefaultReferenceCollections
	if v := os.Getenv("REFERENCE_COLLECTIONS"); v != "" {
		cfg.ReferenceCollections = splitList(v)
	}

	// File values override the environment
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.LocalDBPath == "" {
		return errors.New("LOCAL_DB_PATH must not be empty")
	}
	switch c.NotifyBackend {
	case "none":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when NOTIFY_BACKEND=redis")
		}
	case "nats":
		if c.NatsURL == "" {
			return errors.New("NATS_URL is required when NOTIFY_BACKEND=nats")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_BACKEND %q", c.NotifyBackend)
	}
	if c.PingInterval <= 0 {
		return errors.New("PING_INTERVAL must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("HEARTBEAT_INTERVAL must be positive")
	}
	if len(c.Collections) == 0 {
		return errors.New("at least one collection is required")
	}
	return nil
}

// RemoteCollections is every table the agent may touch remotely.
func (c *Config) RemoteCollections() []string {
	out := make([]string, 0, len(c.Collections)+len(c.ReferenceCollections))
	out = append(out, c.Collections...)
	return append(out, c.ReferenceCollections...)
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
