package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type StorageConfig struct {
	Root string `toml:"root"`
}

// EngineConfig describes one transcription provider. The redundancy group
// size is the number of configured engines: each engine contributes one draft
// slot per submitted image.
type EngineConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

type PreprocessConfig struct {
	MaxDimension int `toml:"max_dimension"`
}

type GraphConfig struct {
	Enabled  bool   `toml:"enabled"`
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type JobsConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Engines    []EngineConfig   `toml:"engines"`
	Preprocess PreprocessConfig `toml:"preprocess"`
	Graph      GraphConfig      `toml:"graph"`
	Jobs       JobsConfig       `toml:"jobs"`
	Logging    LoggingConfig    `toml:"logging"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// Default returns a usable configuration when no config file exists: local
// storage, no graph mirror, no engines (transcription endpoints then reject
// submissions with a clear reason).
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "data/dossiers"
	}
	if c.Preprocess.MaxDimension == 0 {
		c.Preprocess.MaxDimension = 2048
	}
	if c.Jobs.Workers == 0 {
		c.Jobs.Workers = 4
	}
	if c.Jobs.QueueSize == 0 {
		c.Jobs.QueueSize = 64
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnv overrides file values with SCRIVENER_* environment variables, plus
// the usual provider key variables for engines that left api_key empty.
func (c *Config) applyEnv() {
	if v := os.Getenv("SCRIVENER_STORAGE_ROOT"); v != "" {
		c.Storage.Root = v
	}
	if v := os.Getenv("SCRIVENER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SCRIVENER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SCRIVENER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SCRIVENER_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		c.Graph.URI = v
		c.Graph.Enabled = true
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		c.Graph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Graph.Password = v
	}

	for i := range c.Engines {
		if c.Engines[i].APIKey != "" {
			continue
		}
		switch c.Engines[i].Provider {
		case "claude":
			c.Engines[i].APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.Engines[i].APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			c.Engines[i].APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}
