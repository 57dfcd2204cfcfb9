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
const DefaultConfigFile = "switchboard.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("SWITCHBOARD_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
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
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
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
	setString(&cfg.Server.Port, "SWITCHBOARD_PORT")
	setString(&cfg.Server.CORSOrigin, "SWITCHBOARD_CORS_ORIGIN")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "SWITCHBOARD_NATS_STREAM")
	setString(&cfg.NATS.Durable, "SWITCHBOARD_NATS_DURABLE")

	// Store
	setString(&cfg.Store.Backend, "SWITCHBOARD_STORE_BACKEND")
	setString(&cfg.Store.Bucket, "SWITCHBOARD_STORE_BUCKET")
	setBool(&cfg.Cache.Enabled, "SWITCHBOARD_CACHE_ENABLED")
	setInt64(&cfg.Cache.L1MaxSizeMB, "SWITCHBOARD_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "SWITCHBOARD_CACHE_L1_TTL")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SWITCHBOARD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SWITCHBOARD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SWITCHBOARD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SWITCHBOARD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SWITCHBOARD_PG_HEALTH_CHECK")

	// LLM
	setString(&cfg.LLM.Provider, "SWITCHBOARD_LLM_PROVIDER")
	setDuration(&cfg.LLM.Timeout, "SWITCHBOARD_LLM_TIMEOUT")
	setFloat64(&cfg.LLM.RequestsPerSecond, "SWITCHBOARD_LLM_RPS")
	setInt(&cfg.LLM.Burst, "SWITCHBOARD_LLM_BURST")
	setString(&cfg.LLM.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.LLM.AnthropicKey, "ANTHROPIC_API_KEY")
	setString(&cfg.LLM.OllamaURL, "OLLAMA_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")

	// Agents
	setString(&cfg.Agents.ClassifierModel, "SWITCHBOARD_CLASSIFIER_MODEL")
	setString(&cfg.Agents.Sales.Model, "SWITCHBOARD_SALES_MODEL")
	setFloat64(&cfg.Agents.Sales.Temperature, "SWITCHBOARD_SALES_TEMPERATURE")
	setInt(&cfg.Agents.Sales.MaxTokens, "SWITCHBOARD_SALES_MAX_TOKENS")
	setString(&cfg.Agents.Technical.Model, "SWITCHBOARD_TECHNICAL_MODEL")
	setFloat64(&cfg.Agents.Technical.Temperature, "SWITCHBOARD_TECHNICAL_TEMPERATURE")
	setInt(&cfg.Agents.Technical.MaxTokens, "SWITCHBOARD_TECHNICAL_MAX_TOKENS")
	setString(&cfg.Agents.Billing.Model, "SWITCHBOARD_BILLING_MODEL")
	setFloat64(&cfg.Agents.Billing.Temperature, "SWITCHBOARD_BILLING_TEMPERATURE")
	setInt(&cfg.Agents.Billing.MaxTokens, "SWITCHBOARD_BILLING_MAX_TOKENS")

	// Routing
	setDuration(&cfg.Routing.HandoffDelay, "SWITCHBOARD_HANDOFF_DELAY")
	setDuration(&cfg.Routing.EscalationDelay, "SWITCHBOARD_ESCALATION_DELAY")
	setInt(&cfg.Routing.LoopWindow, "SWITCHBOARD_LOOP_WINDOW")
	setInt(&cfg.Routing.LoopThreshold, "SWITCHBOARD_LOOP_THRESHOLD")
	setDuration(&cfg.Routing.AuditTTL, "SWITCHBOARD_AUDIT_TTL")
	setDuration(&cfg.Routing.ReceiptTTL, "SWITCHBOARD_RECEIPT_TTL")
	setString(&cfg.Routing.TriggersFile, "SWITCHBOARD_TRIGGERS_FILE")

	setString(&cfg.Knowledge.Dir, "SWITCHBOARD_KNOWLEDGE_DIR")
	setBool(&cfg.Knowledge.Watch, "SWITCHBOARD_KNOWLEDGE_WATCH")

	setString(&cfg.Logging.Level, "SWITCHBOARD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SWITCHBOARD_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SWITCHBOARD_LOG_ASYNC")

	// OTEL
	setBool(&cfg.OTEL.Enabled, "SWITCHBOARD_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "SWITCHBOARD_OTEL_INSECURE")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setFloat64(&cfg.OTEL.SampleRate, "SWITCHBOARD_OTEL_SAMPLE_RATE")

	setInt(&cfg.Breaker.MaxFailures, "SWITCHBOARD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SWITCHBOARD_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "SWITCHBOARD_RATE_RPS")
	setInt(&cfg.Rate.Burst, "SWITCHBOARD_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "SWITCHBOARD_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "SWITCHBOARD_RATE_MAX_IDLE_TIME")

	setString(&cfg.Idempotency.Bucket, "SWITCHBOARD_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "SWITCHBOARD_IDEMPOTENCY_TTL")

	setString(&cfg.Notify.SlackWebhookURL, "SWITCHBOARD_SLACK_WEBHOOK_URL")
	setString(&cfg.Notify.DiscordWebhookURL, "SWITCHBOARD_DISCORD_WEBHOOK_URL")
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Backend {
	case "nats", "memory":
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for store.backend=postgres")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("store.backend %q is not one of nats, postgres, memory", cfg.Store.Backend)
	}
	if cfg.NATS.URL == "" && cfg.Store.Backend != "memory" {
		return errors.New("nats.url is required")
	}
	switch cfg.LLM.Provider {
	case "litellm", "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("llm.provider %q is not one of litellm, openai, anthropic, ollama", cfg.LLM.Provider)
	}
	if cfg.Routing.LoopWindow < 1 {
		return errors.New("routing.loop_window must be >= 1")
	}
	if cfg.Routing.LoopThreshold < 1 || cfg.Routing.LoopThreshold > cfg.Routing.LoopWindow {
		return errors.New("routing.loop_threshold must be between 1 and routing.loop_window")
	}
	if cfg.Routing.HandoffDelay < 0 || cfg.Routing.EscalationDelay < 0 {
		return errors.New("routing delays must not be negative")
	}
	if cfg.Routing.AuditTTL <= 0 || cfg.Routing.ReceiptTTL <= 0 {
		return errors.New("routing.audit_ttl and routing.receipt_ttl must be positive")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.LLM.Burst < 1 {
		return errors.New("llm.burst must be >= 1")
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
