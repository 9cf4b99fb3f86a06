package config_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/persistorai/canvas/internal/config"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PERSISTOR_URL", "http://localhost:3030")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")
}

func TestLoad_ValidConfig(t *testing.T) {
	setValidEnv(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Port != "3040" {
		t.Errorf("expected default port 3040, got %s", cfg.Port)
	}

	if cfg.Addr() != "127.0.0.1:3040" {
		t.Errorf("expected addr 127.0.0.1:3040, got %s", cfg.Addr())
	}

	if cfg.MetricsAddr() != "127.0.0.1:9092" {
		t.Errorf("expected metrics addr 127.0.0.1:9092, got %s", cfg.MetricsAddr())
	}
}

func TestLoad_Defaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.NewRelationshipType != "related_to" {
		t.Errorf("unexpected NewRelationshipType default: %s", cfg.NewRelationshipType)
	}

	if cfg.NeighbourLimit != 50 {
		t.Errorf("unexpected NeighbourLimit default: %d", cfg.NeighbourLimit)
	}

	if cfg.PersistorTimeout != 10*time.Second {
		t.Errorf("unexpected PersistorTimeout default: %v", cfg.PersistorTimeout)
	}

	if !cfg.PersistorEvents {
		t.Error("expected PersistorEvents=true by default")
	}

	if cfg.BreakerFailures != 5 || cfg.BreakerTimeout != 30*time.Second {
		t.Errorf("unexpected breaker defaults: %d %v", cfg.BreakerFailures, cfg.BreakerTimeout)
	}
}

func TestLoad_ErrorCases(t *testing.T) {
	tests := []struct {
		name         string
		envOverrides map[string]string
		wantErr      string
	}{
		{
			name:         "invalid PORT zero",
			envOverrides: map[string]string{"PORT": "0"},
			wantErr:      "PORT must be between 1 and 65535",
		},
		{
			name:         "invalid PORT non-numeric",
			envOverrides: map[string]string{"PORT": "abc"},
			wantErr:      "PORT must be a valid integer",
		},
		{
			name:         "invalid LISTEN_HOST",
			envOverrides: map[string]string{"LISTEN_HOST": "192.168.1.1"},
			wantErr:      "LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers",
		},
		{
			name:         "METRICS_PORT equals PORT",
			envOverrides: map[string]string{"PORT": "9000", "METRICS_PORT": "9000"},
			wantErr:      "METRICS_PORT must differ from PORT",
		},
		{
			name:         "CORS wildcard",
			envOverrides: map[string]string{"CORS_ORIGINS": "*"},
			wantErr:      "CORS_ORIGINS must not contain wildcard",
		},
		{
			name:         "CORS invalid origin",
			envOverrides: map[string]string{"CORS_ORIGINS": "not-a-url"},
			wantErr:      "CORS_ORIGINS contains invalid origin",
		},
		{
			name:         "bad log format",
			envOverrides: map[string]string{"LOG_FORMAT": "xml"},
			wantErr:      "LOG_FORMAT must be 'json' or 'text'",
		},
		{
			name:         "persistor url scheme",
			envOverrides: map[string]string{"PERSISTOR_URL": "ftp://localhost"},
			wantErr:      "PERSISTOR_URL scheme must be http:// or https://",
		},
		{
			name:         "api key over plain http",
			envOverrides: map[string]string{"PERSISTOR_URL": "http://kg.example.com", "PERSISTOR_API_KEY": "k"},
			wantErr:      "PERSISTOR_URL must use HTTPS",
		},
		{
			name:         "neighbour limit zero",
			envOverrides: map[string]string{"NEIGHBOUR_LIMIT": "0"},
			wantErr:      "NEIGHBOUR_LIMIT must be an integer between 1 and 1000",
		},
		{
			name:         "max sessions non-numeric",
			envOverrides: map[string]string{"MAX_SESSIONS": "lots"},
			wantErr:      "MAX_SESSIONS must be an integer between 1 and 100000",
		},
		{
			name:         "bad timeout",
			envOverrides: map[string]string{"PERSISTOR_TIMEOUT": "soon"},
			wantErr:      "PERSISTOR_TIMEOUT must be a positive duration",
		},
		{
			name:         "short access key",
			envOverrides: map[string]string{"CANVAS_ACCESS_KEYS": "abc"},
			wantErr:      "CANVAS_ACCESS_KEYS entries must be at least 16 characters",
		},
		{
			name:         "relationship type with whitespace",
			envOverrides: map[string]string{"NEW_RELATIONSHIP_TYPE": "related to"},
			wantErr:      "NEW_RELATIONSHIP_TYPE",
		},
		{
			name:         "relationship type with no-break space",
			envOverrides: map[string]string{"NEW_RELATIONSHIP_TYPE": "related\u00a0to"},
			wantErr:      "NEW_RELATIONSHIP_TYPE",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tc.envOverrides {
				t.Setenv(k, v)
			}

			_, err := config.Load("")
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	setValidEnv(t)
	t.Setenv("NEIGHBOUR_LIMIT", "7")

	path := filepath.Join(t.TempDir(), "canvasd.yaml")
	data := `
port: "4000"
persistor:
  api_key: file-key
  events: false
canvas:
  node_type: person
  neighbour_limit: 99
breaker:
  timeout: 1m
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "4000" {
		t.Errorf("port from file = %s, want 4000", cfg.Port)
	}
	if cfg.NewNodeType != "person" {
		t.Errorf("node type from file = %s, want person", cfg.NewNodeType)
	}
	if cfg.NeighbourLimit != 7 {
		t.Errorf("env should override file: got %d", cfg.NeighbourLimit)
	}
	if cfg.PersistorEvents {
		t.Error("events disabled in file")
	}
	if cfg.PersistorAPIKey.Value() != "file-key" {
		t.Error("api key not read from file")
	}
	if cfg.BreakerTimeout != time.Minute {
		t.Errorf("breaker timeout = %v, want 1m", cfg.BreakerTimeout)
	}
}

func TestLoad_AccessKeys(t *testing.T) {
	setValidEnv(t)
	t.Setenv("CANVAS_ACCESS_KEYS", " aaaaaaaaaaaaaaaa , ,bbbbbbbbbbbbbbbb")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := cfg.AccessKeyValues()
	if len(got) != 2 || got[0] != "aaaaaaaaaaaaaaaa" || got[1] != "bbbbbbbbbbbbbbbb" {
		t.Errorf("AccessKeyValues = %v", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	setValidEnv(t)

	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSecret_Redacted(t *testing.T) {
	s := config.Secret("hunter2")

	for _, got := range []string{s.String(), fmt.Sprintf("%v", s), fmt.Sprintf("%#v", s)} {
		if got != "[REDACTED]" {
			t.Errorf("secret leaked: %q", got)
		}
	}
	if s.Value() != "hunter2" {
		t.Error("Value() must return the raw secret")
	}
}
