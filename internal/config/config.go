package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Graph sources.
const (
	SourceBuiltin  = "builtin"
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config is the astarviz service configuration (astarviz.yaml, version 1).
type Config struct {
	Version int `yaml:"version"`
	Server  struct {
		Port    int    `yaml:"port"`
		TLSCert string `yaml:"tls_cert"`
		TLSKey  string `yaml:"tls_key"`
	} `yaml:"server"`
	Graph struct {
		Source string `yaml:"source"`
		Path   string `yaml:"path"`
		Name   string `yaml:"name"`
	} `yaml:"graph"`
	Search struct {
		Speed      string        `yaml:"speed"`
		BaseDelay  time.Duration `yaml:"base_delay"`
		TickPeriod time.Duration `yaml:"tick_period"`
	} `yaml:"search"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		URL         string `yaml:"url"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
		Username    string `yaml:"username"`
	} `yaml:"mqtt"`
	Redis struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Channel string `yaml:"channel"`
	} `yaml:"redis"`
	Postgres struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"postgres"`
}

// Default returns a runnable configuration: built-in graph, 1x, port 8080, no brokers.
func Default() *Config {
	var c Config
	c.Version = 1
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Graph.Source == "" {
		if c.Graph.Path != "" {
			c.Graph.Source = SourceFile
		} else {
			c.Graph.Source = SourceBuiltin
		}
	}
	if c.Search.Speed == "" {
		c.Search.Speed = "1x"
	}
	if c.Search.BaseDelay == 0 {
		c.Search.BaseDelay = 300 * time.Millisecond
	}
	if c.Search.TickPeriod == 0 {
		c.Search.TickPeriod = 15 * time.Millisecond
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.MQTT.URL == "" {
		c.MQTT.URL = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "astarviz"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "astarviz"
	}
	if c.Redis.URL == "" {
		c.Redis.URL = "redis://localhost:6379/0"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "astarviz:frames"
	}
}

// Load reads path, applies defaults and then environment overrides.
// An empty path yields Default with environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		c := Default()
		if err := c.ApplyEnv(); err != nil {
			return nil, err
		}
		return c, c.Validate()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if c.Version != 1 {
		return nil, fmt.Errorf("unsupported astarviz.yaml version: %d", c.Version)
	}

	c.applyDefaults()
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	return &c, c.Validate()
}

// ApplyEnv overrides fields from ASTARVIZ_PORT, ASTARVIZ_GRAPH, ASTARVIZ_SPEED,
// ASTARVIZ_TLS_CERT, ASTARVIZ_TLS_KEY, MQTT_URL, REDIS_URL, LOG_LEVEL and LOG_FORMAT.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("ASTARVIZ_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ASTARVIZ_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("ASTARVIZ_GRAPH"); v != "" {
		switch v {
		case SourceBuiltin:
			c.Graph.Source = SourceBuiltin
		case SourcePostgres:
			c.Graph.Source = SourcePostgres
		default:
			c.Graph.Source = SourceFile
			c.Graph.Path = v
		}
	}
	if v := os.Getenv("ASTARVIZ_SPEED"); v != "" {
		c.Search.Speed = v
	}
	if v := os.Getenv("ASTARVIZ_TLS_CERT"); v != "" {
		c.Server.TLSCert = v
	}
	if v := os.Getenv("ASTARVIZ_TLS_KEY"); v != "" {
		c.Server.TLSKey = v
	}
	if v := os.Getenv("MQTT_URL"); v != "" {
		c.MQTT.URL = v
		c.MQTT.Enabled = true
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	return nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	switch c.Graph.Source {
	case SourceBuiltin, SourcePostgres:
	case SourceFile:
		if c.Graph.Path == "" {
			return fmt.Errorf("graph.source %q requires graph.path", SourceFile)
		}
	default:
		return fmt.Errorf("unknown graph.source: %q", c.Graph.Source)
	}
	if c.Graph.Source == SourcePostgres && c.Graph.Name == "" {
		return fmt.Errorf("graph.source %q requires graph.name", SourcePostgres)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log.format: %q", c.Log.Format)
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// TLSEnabled reports whether both certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}
