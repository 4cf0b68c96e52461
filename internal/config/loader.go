package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "exec.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "EXEC_PORT")
	setString(&cfg.Server.CORSOrigin, "EXEC_CORS_ORIGIN")
	setInt64(&cfg.Server.BodyLimit, "EXEC_BODY_LIMIT")
	setDuration(&cfg.Server.IdempotencyTTL, "EXEC_IDEMPOTENCY_TTL")

	setString(&cfg.Store.Driver, "EXEC_STORE_DRIVER")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "EXEC_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "EXEC_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "EXEC_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "EXEC_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "EXEC_PG_HEALTH_CHECK")

	setString(&cfg.Bus.Driver, "EXEC_BUS_DRIVER")
	setString(&cfg.Bus.Subject, "EXEC_BUS_SUBJECT")
	setString(&cfg.Bus.Group, "EXEC_BUS_GROUP")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.KVBucket, "EXEC_NATS_KV_BUCKET")

	// Oracle
	setString(&cfg.Oracle.Provider, "EXEC_ORACLE_PROVIDER")
	setString(&cfg.Oracle.Model, "EXEC_ORACLE_MODEL")
	setString(&cfg.Oracle.BaseURL, "EXEC_ORACLE_BASE_URL")
	setString(&cfg.Oracle.SystemPrompt, "EXEC_ORACLE_SYSTEM_PROMPT")
	setDuration(&cfg.Oracle.Timeout, "EXEC_ORACLE_TIMEOUT")
	setInt(&cfg.Oracle.Retries, "EXEC_ORACLE_RETRIES")
	setInt64(&cfg.Oracle.MaxTokens, "EXEC_ORACLE_MAX_TOKENS")
	setFloat64(&cfg.Oracle.Temperature, "EXEC_ORACLE_TEMPERATURE")
	switch cfg.Oracle.Provider {
	case "openai":
		setString(&cfg.Oracle.APIKey, "OPENAI_API_KEY")
	case "anthropic":
		setString(&cfg.Oracle.APIKey, "ANTHROPIC_API_KEY")
	}
	setString(&cfg.Oracle.APIKey, "EXEC_ORACLE_API_KEY")

	setInt(&cfg.Breaker.MaxFailures, "EXEC_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "EXEC_BREAKER_TIMEOUT")

	// Tools
	setString(&cfg.Tools.SerpAPIKey, "SERPAPI_API_KEY")
	setString(&cfg.Tools.SerpAPIURL, "EXEC_SERPAPI_URL")
	setString(&cfg.Tools.Country, "EXEC_SEARCH_COUNTRY")
	setDuration(&cfg.Tools.FetchTimeout, "EXEC_FETCH_TIMEOUT")
	setInt64(&cfg.Tools.MaxContentBytes, "EXEC_FETCH_MAX_BYTES")
	setDuration(&cfg.Tools.CacheTTL, "EXEC_TOOL_CACHE_TTL")
	setInt64(&cfg.Tools.CacheMaxCostMB, "EXEC_TOOL_CACHE_MB")

	// Orchestrator
	setInt(&cfg.Orchestrator.MaxDepth, "EXEC_ORCH_MAX_DEPTH")
	setInt(&cfg.Orchestrator.QueueDepth, "EXEC_ORCH_QUEUE_DEPTH")
	setInt64(&cfg.Orchestrator.MaxConcurrent, "EXEC_ORCH_MAX_CONCURRENT")
	setString(&cfg.Orchestrator.DefaultAgent, "EXEC_ORCH_DEFAULT_AGENT")

	setString(&cfg.Logging.Level, "EXEC_LOG_LEVEL")
	setString(&cfg.Logging.Service, "EXEC_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "EXEC_LOG_ASYNC")

	setString(&cfg.OTel.Endpoint, "EXEC_OTEL_ENDPOINT")
	setString(&cfg.OTel.ServiceName, "EXEC_OTEL_SERVICE_NAME")
	setBool(&cfg.OTel.Insecure, "EXEC_OTEL_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.BodyLimit < 1 {
		return errors.New("server.body_limit must be >= 1")
	}
	switch cfg.Store.Driver {
	case "memory":
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", cfg.Store.Driver)
	}
	switch cfg.Bus.Driver {
	case "local":
	case "nats":
		if cfg.NATS.URL == "" {
			return errors.New("nats.url is required")
		}
		if cfg.Bus.Subject == "" {
			return errors.New("bus.subject is required")
		}
		if cfg.Bus.Group == "" {
			return errors.New("bus.group is required")
		}
	default:
		return fmt.Errorf("bus.driver %q is not supported", cfg.Bus.Driver)
	}
	switch cfg.Oracle.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("oracle.provider %q is not supported", cfg.Oracle.Provider)
	}
	if cfg.Oracle.Timeout <= 0 {
		return errors.New("oracle.timeout must be > 0")
	}
	if cfg.Oracle.Retries < 0 {
		return errors.New("oracle.retries must be >= 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Orchestrator.MaxDepth < 1 {
		return errors.New("orchestrator.max_depth must be >= 1")
	}
	if cfg.Orchestrator.QueueDepth < 1 {
		return errors.New("orchestrator.queue_depth must be >= 1")
	}
	if cfg.Orchestrator.MaxConcurrent < 1 {
		return errors.New("orchestrator.max_concurrent must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
