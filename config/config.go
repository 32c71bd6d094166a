// Package config provides application configuration with layered
// precedence: defaults, then an optional YAML file, then environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Models     ModelsConfig     `yaml:"models"`
	Routing    RoutingConfig    `yaml:"routing"`
	Discussion DiscussionConfig `yaml:"discussion"`
	Tools      ToolsConfig      `yaml:"tools"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig controls the HTTP listener and streaming behavior.
type ServerConfig struct {
	Port              string        `yaml:"port"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	StreamBudget      time.Duration `yaml:"stream_budget"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ModelsConfig selects providers and API credentials per agent.
type ModelsConfig struct {
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	PlumeModel      string `yaml:"plume_model"`
	MimirModel      string `yaml:"mimir_model"`
	ClassifierModel string `yaml:"classifier_model"`
}

// RoutingConfig tunes agent selection.
type RoutingConfig struct {
	// MentionStrategy is "substring" or "word"; substring is the default.
	MentionStrategy string `yaml:"mention_strategy"`
	// Classifier is "keyword" or "model".
	Classifier string `yaml:"classifier"`
}

// DiscussionConfig bounds multi-agent discussions.
type DiscussionConfig struct {
	MaxTurns   int `yaml:"max_turns"`
	StallTurns int `yaml:"stall_turns"`
}

// ToolsConfig bounds tool execution.
type ToolsConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			KeepaliveInterval: 15 * time.Second,
			StreamBudget:      2 * time.Minute,
		},
		Database: DatabaseConfig{
			Path: "./data/scribe.db",
		},
		Models: ModelsConfig{
			PlumeModel:      "claude-3-5-sonnet-20241022",
			MimirModel:      "claude-3-5-sonnet-20241022",
			ClassifierModel: "gpt-4o-mini",
		},
		Routing: RoutingConfig{
			MentionStrategy: "substring",
			Classifier:      "keyword",
		},
		Discussion: DiscussionConfig{
			MaxTurns:   6,
			StallTurns: 0,
		},
		Tools: ToolsConfig{
			CallTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, overlaid by the YAML file at
// path (skipped when path is empty or missing), overlaid by environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.KeepaliveInterval = getEnvDuration("STREAM_KEEPALIVE_INTERVAL", c.Server.KeepaliveInterval)
	c.Server.StreamBudget = getEnvDuration("STREAM_BUDGET", c.Server.StreamBudget)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Models.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.Models.OpenAIAPIKey)
	c.Models.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.Models.AnthropicAPIKey)
	c.Models.PlumeModel = getEnv("PLUME_MODEL", c.Models.PlumeModel)
	c.Models.MimirModel = getEnv("MIMIR_MODEL", c.Models.MimirModel)
	c.Models.ClassifierModel = getEnv("CLASSIFIER_MODEL", c.Models.ClassifierModel)
	c.Routing.MentionStrategy = getEnv("ROUTING_MENTION_STRATEGY", c.Routing.MentionStrategy)
	c.Routing.Classifier = getEnv("ROUTING_CLASSIFIER", c.Routing.Classifier)
	c.Discussion.MaxTurns = getEnvInt("DISCUSSION_MAX_TURNS", c.Discussion.MaxTurns)
	c.Discussion.StallTurns = getEnvInt("DISCUSSION_STALL_TURNS", c.Discussion.StallTurns)
	c.Tools.CallTimeout = getEnvDuration("TOOL_CALL_TIMEOUT", c.Tools.CallTimeout)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate checks the configuration for values the application cannot run
// with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Server.KeepaliveInterval <= 0 {
		return fmt.Errorf("keepalive interval must be positive")
	}
	if c.Server.StreamBudget <= 0 {
		return fmt.Errorf("stream budget must be positive")
	}
	if c.Discussion.MaxTurns < 0 {
		return fmt.Errorf("discussion max turns cannot be negative")
	}
	switch c.Routing.MentionStrategy {
	case "substring", "word":
	default:
		return fmt.Errorf("unknown mention strategy %q", c.Routing.MentionStrategy)
	}
	switch c.Routing.Classifier {
	case "keyword", "model":
	default:
		return fmt.Errorf("unknown classifier %q", c.Routing.Classifier)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
