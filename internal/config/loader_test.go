package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Oracle.SystemPrompt != "You are a helpful assistant." {
		t.Errorf("unexpected system prompt %q", cfg.Oracle.SystemPrompt)
	}
	if cfg.Oracle.Retries != 1 {
		t.Errorf("expected 1 retry, got %d", cfg.Oracle.Retries)
	}
	if cfg.Tools.Country != "US" {
		t.Errorf("expected country US, got %s", cfg.Tools.Country)
	}
	if cfg.Bus.Group != "exec-orchestrator" {
		t.Errorf("expected bus group exec-orchestrator, got %s", cfg.Bus.Group)
	}
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
store:
  driver: postgres
oracle:
  provider: anthropic
  model: claude-sonnet-4-5
  timeout: 15s
orchestrator:
  max_depth: 8
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %s", cfg.Store.Driver)
	}
	if cfg.Oracle.Provider != "anthropic" || cfg.Oracle.Model != "claude-sonnet-4-5" {
		t.Errorf("unexpected oracle %+v", cfg.Oracle)
	}
	if cfg.Oracle.Timeout != 15*time.Second {
		t.Errorf("expected 15s timeout, got %v", cfg.Oracle.Timeout)
	}
	if cfg.Orchestrator.MaxDepth != 8 {
		t.Errorf("expected max depth 8, got %d", cfg.Orchestrator.MaxDepth)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("EXEC_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("EXEC_ORCH_MAX_CONCURRENT", "9")
	t.Setenv("EXEC_ORACLE_TIMEOUT", "1m")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("SERPAPI_API_KEY", "serp")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("unexpected DSN %s", cfg.Postgres.DSN)
	}
	if cfg.Orchestrator.MaxConcurrent != 9 {
		t.Errorf("expected max concurrent 9, got %d", cfg.Orchestrator.MaxConcurrent)
	}
	if cfg.Oracle.Timeout != time.Minute {
		t.Errorf("expected 1m timeout, got %v", cfg.Oracle.Timeout)
	}
	if cfg.Oracle.APIKey != "sk-openai" {
		t.Errorf("openai provider must pick OPENAI_API_KEY, got %q", cfg.Oracle.APIKey)
	}
	if cfg.Tools.SerpAPIKey != "serp" {
		t.Errorf("expected serpapi key, got %q", cfg.Tools.SerpAPIKey)
	}
}

func TestEnvAPIKeyFollowsProvider(t *testing.T) {
	cfg := Defaults()
	t.Setenv("EXEC_ORACLE_PROVIDER", "anthropic")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	loadEnv(&cfg)

	if cfg.Oracle.APIKey != "sk-ant" {
		t.Errorf("expected anthropic key, got %q", cfg.Oracle.APIKey)
	}
}

func TestEnvInvalidNumberIgnored(t *testing.T) {
	cfg := Defaults()
	t.Setenv("EXEC_ORCH_MAX_DEPTH", "lots")
	loadEnv(&cfg)
	if cfg.Orchestrator.MaxDepth != 32 {
		t.Errorf("invalid env must keep default, got %d", cfg.Orchestrator.MaxDepth)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }, "server.port"},
		{"bad store", func(c *Config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres"; c.Postgres.DSN = "" }, "postgres.dsn"},
		{"nats without url", func(c *Config) { c.Bus.Driver = "nats"; c.NATS.URL = "" }, "nats.url"},
		{"nats without group", func(c *Config) { c.Bus.Driver = "nats"; c.Bus.Group = "" }, "bus.group"},
		{"bad provider", func(c *Config) { c.Oracle.Provider = "llama" }, "oracle.provider"},
		{"negative retries", func(c *Config) { c.Oracle.Retries = -1 }, "oracle.retries"},
		{"zero depth", func(c *Config) { c.Orchestrator.MaxDepth = 0 }, "max_depth"},
		{"zero concurrency", func(c *Config) { c.Orchestrator.MaxConcurrent = 0 }, "max_concurrent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFullHierarchy(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EXEC_PORT", "7070")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env must win over yaml, got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("yaml must win over defaults, got %s", cfg.Logging.Level)
	}
}
