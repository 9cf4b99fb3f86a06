// Package config provides environment-driven configuration for the canvas daemon.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	Port        string
	MetricsPort string
	ListenHost  string
	CORSOrigins []string
	LogLevel    string
	LogFormat   string
	AccessKeys  []Secret

	PersistorURL     string
	PersistorAPIKey  Secret
	PersistorTimeout time.Duration
	PersistorEvents  bool

	NewNodeType         string
	NewNodeLabel        string
	NewRelationshipType string
	NeighbourLimit      int
	MaxSessions         int

	BreakerFailures int
	BreakerTimeout  time.Duration
}

// fileConfig is the optional YAML file. Every key is a default that the
// matching environment variable overrides.
type fileConfig struct {
	Port        string   `yaml:"port"`
	MetricsPort string   `yaml:"metrics_port"`
	ListenHost  string   `yaml:"listen_host"`
	CORSOrigins []string `yaml:"cors_origins"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	AccessKeys  []string `yaml:"access_keys"`

	Persistor struct {
		URL     string `yaml:"url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
		Events  *bool  `yaml:"events"`
	} `yaml:"persistor"`

	Canvas struct {
		NodeType         string `yaml:"node_type"`
		NodeLabel        string `yaml:"node_label"`
		RelationshipType string `yaml:"relationship_type"`
		NeighbourLimit   int    `yaml:"neighbour_limit"`
		MaxSessions      int    `yaml:"max_sessions"`
	} `yaml:"canvas"`

	Breaker struct {
		Failures int    `yaml:"failures"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"breaker"`
}

// Load reads configuration from an optional YAML file and environment
// variables with sensible defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	events := "true"
	if fc.Persistor.Events != nil {
		events = strconv.FormatBool(*fc.Persistor.Events)
	}

	cfg := &Config{
		Port:                envOrDefault("PORT", or(fc.Port, "3040")),
		MetricsPort:         envOrDefault("METRICS_PORT", or(fc.MetricsPort, "9092")),
		ListenHost:          envOrDefault("LISTEN_HOST", or(fc.ListenHost, "127.0.0.1")),
		LogLevel:            envOrDefault("LOG_LEVEL", or(fc.LogLevel, "info")),
		LogFormat:           envOrDefault("LOG_FORMAT", or(fc.LogFormat, "json")),
		PersistorURL:        envOrDefault("PERSISTOR_URL", or(fc.Persistor.URL, "http://localhost:3030")),
		PersistorAPIKey:     Secret(envOrDefault("PERSISTOR_API_KEY", fc.Persistor.APIKey)),
		PersistorEvents:     envOrDefault("PERSISTOR_EVENTS", events) == "true",
		NewNodeType:         envOrDefault("NEW_NODE_TYPE", or(fc.Canvas.NodeType, "concept")),
		NewNodeLabel:        envOrDefault("NEW_NODE_LABEL", or(fc.Canvas.NodeLabel, "New node")),
		NewRelationshipType: envOrDefault("NEW_RELATIONSHIP_TYPE", or(fc.Canvas.RelationshipType, "related_to")),
	}

	var err error
	if cfg.PersistorTimeout, err = durationEnv("PERSISTOR_TIMEOUT", or(fc.Persistor.Timeout, "10s")); err != nil {
		return nil, err
	}
	if cfg.BreakerTimeout, err = durationEnv("BREAKER_TIMEOUT", or(fc.Breaker.Timeout, "30s")); err != nil {
		return nil, err
	}
	if cfg.NeighbourLimit, err = intEnv("NEIGHBOUR_LIMIT", orInt(fc.Canvas.NeighbourLimit, 50), 1, 1000); err != nil {
		return nil, err
	}
	if cfg.MaxSessions, err = intEnv("MAX_SESSIONS", orInt(fc.Canvas.MaxSessions, 1000), 1, 100000); err != nil {
		return nil, err
	}
	if cfg.BreakerFailures, err = intEnv("BREAKER_FAILURES", orInt(fc.Breaker.Failures, 5), 0, 1000); err != nil {
		return nil, err
	}

	origins := envOrDefault("CORS_ORIGINS", strings.Join(fc.CORSOrigins, ","))
	if origins == "" {
		origins = "http://localhost:3002"
	}
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	for _, k := range strings.Split(envOrDefault("CANVAS_ACCESS_KEYS", strings.Join(fc.AccessKeys, ",")), ",") {
		if k = strings.TrimSpace(k); k != "" {
			cfg.AccessKeys = append(cfg.AccessKeys, Secret(k))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// AccessKeyValues returns the raw access keys for the auth middleware.
func (c *Config) AccessKeyValues() []string {
	out := make([]string, len(c.AccessKeys))
	for i, k := range c.AccessKeys {
		out[i] = k.Value()
	}
	return out
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MetricsAddr returns the metrics listen address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.ListenHost + ":" + c.MetricsPort
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func intEnv(key string, fallback, lo, hi int) (int, error) {
	n, err := strconv.Atoi(envOrDefault(key, strconv.Itoa(fallback)))
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

func durationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration (e.g. 10s)", key)
	}
	return d, nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
