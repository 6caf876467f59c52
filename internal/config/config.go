package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/savegress/clinicpulse/internal/rules"
)

// Config holds all configuration for ClinicPulse
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Collector CollectorConfig `yaml:"collector"`
	KPI       KPIConfig       `yaml:"kpi"`
	Audit     AuditConfig     `yaml:"audit"`
	Sink      SinkConfig      `yaml:"sink"`
	Insights  InsightsConfig  `yaml:"insights"`
	Rules     RulesConfig     `yaml:"rules"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
	JWTSecret   string `yaml:"jwt_secret"`
	AuthEnabled bool   `yaml:"auth_enabled"`
}

// CollectorConfig holds event collector configuration
type CollectorConfig struct {
	MaxQueueSize        int `yaml:"max_queue_size"`
	MaxBatchSize        int `yaml:"max_batch_size"`
	AutoFlushIntervalMs int `yaml:"auto_flush_interval_ms"`
	FlushTimeoutMs      int `yaml:"flush_timeout_ms"`
}

// KPIConfig holds aggregation engine configuration
type KPIConfig struct {
	MinEventCount int  `yaml:"min_event_count"`
	Strict        bool `yaml:"strict"`
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// SinkConfig holds flush sink configuration
type SinkConfig struct {
	Backend        string `yaml:"backend"` // postgres, embedded, memory
	DatabaseURL    string `yaml:"database_url"`
	DataPath       string `yaml:"data_path"`
	MemoryCapacity int    `yaml:"memory_capacity"`
}

// InsightsConfig holds prediction provider configuration
type InsightsConfig struct {
	ProviderURL string `yaml:"provider_url"`
	APIKey      string `yaml:"api_key"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// RulesConfig holds the rule chains applied to incoming events
type RulesConfig struct {
	Validation     []rules.ValidationRule     `yaml:"validation"`
	Transformation []rules.TransformationRule `yaml:"transformation"`
	AnonymizeSalt  string                     `yaml:"anonymize_salt"`
}

// Validate rejects collector settings that would manifest later as
// silent data loss.
func (c CollectorConfig) Validate() error {
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("collector: max_queue_size must be positive, got %d", c.MaxQueueSize)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("collector: max_batch_size must be positive, got %d", c.MaxBatchSize)
	}
	if c.MaxBatchSize > c.MaxQueueSize {
		return fmt.Errorf("collector: max_batch_size %d exceeds max_queue_size %d", c.MaxBatchSize, c.MaxQueueSize)
	}
	if c.AutoFlushIntervalMs <= 0 {
		return fmt.Errorf("collector: auto_flush_interval_ms must be positive, got %d", c.AutoFlushIntervalMs)
	}
	return nil
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        3007,
			Environment: "development",
		},
		Collector: CollectorConfig{
			MaxQueueSize:        1000,
			MaxBatchSize:        100,
			AutoFlushIntervalMs: 30000,
			FlushTimeoutMs:      5000,
		},
		Audit: AuditConfig{
			Enabled:    true,
			MaxEntries: 10000,
		},
		Sink: SinkConfig{
			Backend:        "memory",
			MemoryCapacity: 100000,
		},
		Insights: InsightsConfig{
			TimeoutMs: 10000,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.Environment = getEnv("ENVIRONMENT", cfg.Server.Environment)
	cfg.Server.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.Server.AuthEnabled = getEnvBool("AUTH_ENABLED", false)

	cfg.Collector.MaxQueueSize = getEnvInt("COLLECTOR_MAX_QUEUE_SIZE", cfg.Collector.MaxQueueSize)
	cfg.Collector.MaxBatchSize = getEnvInt("COLLECTOR_MAX_BATCH_SIZE", cfg.Collector.MaxBatchSize)
	cfg.Collector.AutoFlushIntervalMs = getEnvInt("COLLECTOR_AUTO_FLUSH_INTERVAL_MS", cfg.Collector.AutoFlushIntervalMs)
	cfg.Collector.FlushTimeoutMs = getEnvInt("COLLECTOR_FLUSH_TIMEOUT_MS", cfg.Collector.FlushTimeoutMs)

	cfg.KPI.MinEventCount = getEnvInt("KPI_MIN_EVENT_COUNT", 0)
	cfg.KPI.Strict = getEnvBool("KPI_STRICT", false)

	cfg.Audit.Enabled = getEnvBool("AUDIT_ENABLED", true)
	cfg.Audit.MaxEntries = getEnvInt("AUDIT_MAX_ENTRIES", cfg.Audit.MaxEntries)

	cfg.Sink.Backend = getEnv("SINK_BACKEND", cfg.Sink.Backend)
	cfg.Sink.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.Sink.DataPath = getEnv("SINK_DATA_PATH", "./data")
	cfg.Sink.MemoryCapacity = getEnvInt("SINK_MEMORY_CAPACITY", cfg.Sink.MemoryCapacity)

	cfg.Insights.ProviderURL = getEnv("INSIGHTS_PROVIDER_URL", "")
	cfg.Insights.APIKey = getEnv("INSIGHTS_API_KEY", "")
	cfg.Insights.TimeoutMs = getEnvInt("INSIGHTS_TIMEOUT_MS", cfg.Insights.TimeoutMs)

	cfg.Rules.AnonymizeSalt = getEnv("ANONYMIZE_SALT", "clinicpulse")

	return cfg
}

// Validate rejects configurations that would manifest later as silent
// data loss. Called at construction, never at runtime.
func (c *Config) Validate() error {
	if err := c.Collector.Validate(); err != nil {
		return err
	}
	if c.KPI.MinEventCount < 0 {
		return fmt.Errorf("kpi: min_event_count must not be negative, got %d", c.KPI.MinEventCount)
	}
	switch c.Sink.Backend {
	case "postgres":
		if c.Sink.DatabaseURL == "" {
			return fmt.Errorf("sink: postgres backend requires database_url")
		}
	case "embedded", "memory", "":
	default:
		return fmt.Errorf("sink: unknown backend %q", c.Sink.Backend)
	}
	for i, rule := range c.Rules.Validation {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rules: validation[%d]: %w", i, err)
		}
	}
	for i, rule := range c.Rules.Transformation {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rules: transformation[%d]: %w", i, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
