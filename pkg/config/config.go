// Package config loads settings from an optional YAML file, a .env file,
// and KFN_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// FederationConfig configures peer replication.
type FederationConfig struct {
	Peers        []string `yaml:"peers"`
	SyncMode     string   `yaml:"syncMode"`
	Interval     Duration `yaml:"interval"`
	RoundTimeout Duration `yaml:"roundTimeout"`
}

// Config holds all application configuration.
type Config struct {
	Env         string           `yaml:"env"`
	DBPath      string           `yaml:"dbPath"`
	Namespace   string           `yaml:"namespace"`
	AgentID     string           `yaml:"agentId"`
	MetricsAddr string           `yaml:"metricsAddr"`
	Federation  FederationConfig `yaml:"federation"`
}

// Load reads configuration. The YAML file at path is optional (empty path
// skips it); KFN_* environment variables override file values.
func Load(path string) (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Env:       "development",
		Namespace: "default",
		AgentID:   defaultAgentID(),
		Federation: FederationConfig{
			SyncMode: "sync",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = getEnv("KFN_ENV", cfg.Env)
	cfg.DBPath = getEnv("KFN_DB", cfg.DBPath)
	cfg.Namespace = getEnv("KFN_NAMESPACE", cfg.Namespace)
	cfg.AgentID = getEnv("KFN_AGENT_ID", cfg.AgentID)
	cfg.MetricsAddr = getEnv("KFN_METRICS_ADDR", cfg.MetricsAddr)
	if peers := os.Getenv("KFN_PEERS"); peers != "" {
		cfg.Federation.Peers = splitNonEmpty(peers)
	}
	cfg.Federation.SyncMode = getEnv("KFN_SYNC_MODE", cfg.Federation.SyncMode)
	if v := os.Getenv("KFN_SYNC_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Federation.Interval = Duration(parsed)
		}
	}
}

// Validate checks that required configuration values are consistent.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if c.AgentID == "" {
		return fmt.Errorf("agentId is required")
	}
	switch c.Federation.SyncMode {
	case "", "sync", "async":
	default:
		return fmt.Errorf("syncMode must be sync or async, got %q", c.Federation.SyncMode)
	}
	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func defaultAgentID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "kfn"
	}
	return "kfn@" + host
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
