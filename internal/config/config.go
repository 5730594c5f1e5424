package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the ggufdeck configuration.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	ModelsDir  string `yaml:"models_dir"`
	OutputsDir string `yaml:"outputs_dir"`
	BinDir     string `yaml:"bin_dir"`
	LogLevel   string `yaml:"log_level"`

	Model  ModelDefaults `yaml:"model"`
	Hub    Hub           `yaml:"hub"`
	Recall Recall        `yaml:"recall"`
}

// ModelDefaults are the load and generation settings used when a request
// does not specify its own.
type ModelDefaults struct {
	ContextLength int    `yaml:"context_length"`
	GPULayers     int    `yaml:"gpu_layers"`
	Threads       int    `yaml:"threads"`
	MaxTokens     int    `yaml:"max_tokens"`
	Accelerator   string `yaml:"accelerator"` // auto, cpu or gpu
	HealthTimeout string `yaml:"health_timeout"`
}

// Hub configures the remote model catalog.
type Hub struct {
	Endpoint  string `yaml:"endpoint"`
	Token     string `yaml:"token"`
	GitBinary string `yaml:"git_binary"`
}

// Recall configures the optional semantic index over saved chats.
type Recall struct {
	EmbeddingModel string `yaml:"embedding_model"`
	Dir            string `yaml:"dir"`
	Port           int    `yaml:"port"`
}

// Enabled reports whether an embedding model has been configured.
func (r Recall) Enabled() bool {
	return r.EmbeddingModel != ""
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:       "127.0.0.1",
		Port:       7933,
		ModelsDir:  ModelsDir(),
		OutputsDir: OutputsDir(),
		BinDir:     BinDir(),
		LogLevel:   "info",
		Model: ModelDefaults{
			ContextLength: 512,
			GPULayers:     0,
			Threads:       4,
			MaxTokens:     256,
			Accelerator:   "auto",
			HealthTimeout: "120s",
		},
		Hub: Hub{
			Endpoint:  "https://huggingface.co",
			GitBinary: "git",
		},
		Recall: Recall{
			Dir: RecallDir(),
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path and the
// GGUFDECK_* / HF_* environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GGUFDECK_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("GGUFDECK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("GGUFDECK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("HF_TOKEN"); v != "" && c.Hub.Token == "" {
		c.Hub.Token = v
	}
	if v := os.Getenv("HF_ENDPOINT"); v != "" {
		c.Hub.Endpoint = v
	}
}

// Validate checks the configuration for values the rest of the program
// cannot work with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Model.ContextLength <= 0 {
		return fmt.Errorf("model.context_length must be positive")
	}
	if c.Model.Threads < 0 {
		return fmt.Errorf("model.threads must not be negative")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("model.max_tokens must be positive")
	}
	switch c.Model.Accelerator {
	case "auto", "cpu", "gpu":
	default:
		return fmt.Errorf("model.accelerator must be auto, cpu or gpu (got %q)", c.Model.Accelerator)
	}
	if _, err := time.ParseDuration(c.Model.HealthTimeout); err != nil {
		return fmt.Errorf("model.health_timeout: %w", err)
	}
	return nil
}

// HealthTimeout returns the parsed model health timeout.
func (c *Config) HealthTimeout() time.Duration {
	d, err := time.ParseDuration(c.Model.HealthTimeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
