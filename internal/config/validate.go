package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/persistorai/canvas/internal/forms"
)

const minAccessKeyLen = 16

func (c *Config) validate() error {
	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validatePersistor(); err != nil {
		return err
	}

	for _, k := range c.AccessKeys {
		if len(k.Value()) < minAccessKeyLen {
			return fmt.Errorf("CANVAS_ACCESS_KEYS entries must be at least %d characters", minAccessKeyLen)
		}
	}

	return c.validateDefaults()
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Loopback for local deployments; 0.0.0.0/:: for containers where the
	// network boundary is enforced externally.
	validHosts := map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"localhost": true,
		"0.0.0.0":   true,
		"::":        true,
	}
	if !validHosts[c.ListenHost] {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	metricsPort, err := strconv.Atoi(c.MetricsPort)
	if err != nil {
		return fmt.Errorf("METRICS_PORT must be a valid integer: %w", err)
	}

	if metricsPort < 1 || metricsPort > 65535 {
		return fmt.Errorf("METRICS_PORT must be between 1 and 65535")
	}

	if metricsPort == port {
		return fmt.Errorf("METRICS_PORT must differ from PORT")
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateLogging() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'text', got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) validatePersistor() error {
	u, err := url.ParseRequestURI(c.PersistorURL)
	if err != nil {
		return fmt.Errorf("PERSISTOR_URL is not a valid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("PERSISTOR_URL scheme must be http:// or https://")
	}

	if !isLocalhost(c.PersistorURL) && u.Scheme != "https" && c.PersistorAPIKey.Value() != "" {
		return fmt.Errorf("PERSISTOR_URL must use HTTPS when an API key is sent to a non-localhost server")
	}

	return nil
}

func (c *Config) validateDefaults() error {
	if c.NewNodeType == "" {
		return fmt.Errorf("NEW_NODE_TYPE must not be empty")
	}

	if !forms.ValidKey(c.NewRelationshipType) {
		return fmt.Errorf("NEW_RELATIONSHIP_TYPE %q must start with a letter and contain no whitespace", c.NewRelationshipType)
	}

	return nil
}

// isLocalhost returns true if the given address points to a loopback address.
func isLocalhost(addr string) bool {
	u, err := url.Parse(addr)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
