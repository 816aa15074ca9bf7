// Package config loads the server configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the server's top-level configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	SchemaDir string          `yaml:"schema_dir"`
	Datastore DatastoreConfig `yaml:"datastore"`
	URL       URLConfig       `yaml:"url"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatastoreConfig selects and parameterizes the datastore backend.
type DatastoreConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
}

// URLConfig gates the url capability.
type URLConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TelemetryConfig parameterizes tracing export.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	Environment  string `yaml:"environment"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:    ":8300",
		SchemaDir: "schemas",
		Datastore: DatastoreConfig{Backend: "memory", DataDir: "data"},
		Telemetry: TelemetryConfig{ServiceName: "netopeer2"},
	}
}

// Load reads the YAML file at path, fills unset fields with defaults and
// applies NETOPEER_* environment overrides. An empty path yields the
// defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NETOPEER_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("NETOPEER_SCHEMA_DIR"); v != "" {
		c.SchemaDir = v
	}
	if v := os.Getenv("NETOPEER_DATASTORE_BACKEND"); v != "" {
		c.Datastore.Backend = v
	}
	if v := os.Getenv("NETOPEER_DATA_DIR"); v != "" {
		c.Datastore.DataDir = v
	}
	if v := os.Getenv("NETOPEER_URL_ENABLED"); v != "" {
		c.URL.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("NETOPEER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("config: listen address is empty")
	}
	if strings.TrimSpace(c.SchemaDir) == "" {
		return fmt.Errorf("config: schema_dir is empty")
	}
	switch c.Datastore.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("config: unknown datastore backend %q", c.Datastore.Backend)
	}
	return nil
}
