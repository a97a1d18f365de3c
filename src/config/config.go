package config

import (
	"fmt"
	"os"
	"time"

	"market-viewer/src/helpers"
	"market-viewer/src/models"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// rootEnv carries the top level overrides that live outside a section.
type rootEnv struct {
	Name     string `env:"MARKET_VIEWER_NAME"`
	LogLevel string `env:"LOG_LEVEL"`
}

// -----------------------------------------------------------------------------

// DefaultConfig returns the built-in settings used when no file overrides them.
func DefaultConfig() *models.MConfig {
	return &models.MConfig{
		Name:     "market-viewer",
		LogLevel: "info",
		Feed: models.MFeedConfig{
			URL:              "ws://localhost:8080/quotes",
			HeartbeatSeconds: 15,
			ReconnectMillis:  1500,
			HandshakeSeconds: 10,
			SendQueue:        256,
		},
		Series: models.MSeriesConfig{
			MaxCandles:           10000,
			MaxQuotePoints:       20000,
			DefaultWindowSeconds: 3600,
		},
		Server: models.MServerConfig{
			Host:     "127.0.0.1",
			Port:     8090,
			GrpcPort: 0,
		},
		Storage: models.MStorageConfig{
			DBType: "none",
			DBPath: "market-viewer.db",
		},
		View: models.MViewConfig{
			DefaultResolutionSecs: 60,
			PublishPerSecond:      4,
		},
	}
}

// -----------------------------------------------------------------------------

// NewConfig layers defaults, the optional YAML file, a .env file and the
// process environment, then validates the result. An empty path skips the file.
func NewConfig(configPath string) (*Config, error) {
	modelConfig := DefaultConfig()

	// 1. YAML file on top of defaults
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, helpers.NewConfigurationError(fmt.Sprintf("failed to read config file '%s'", configPath), err)
		}
		if err := yaml.Unmarshal(data, modelConfig); err != nil {
			return nil, helpers.NewConfigurationError("failed to parse config from YAML", err)
		}
	}

	// 2. Environment on top of the file
	_ = godotenv.Load()
	if err := applyEnv(modelConfig); err != nil {
		return nil, helpers.NewConfigurationError("failed to parse environment", err)
	}

	config := &Config{MConfig: modelConfig}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError("config validation failed", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func applyEnv(cfg *models.MConfig) error {
	var root rootEnv
	if err := env.Parse(&root); err != nil {
		return err
	}
	if root.Name != "" {
		cfg.Name = root.Name
	}
	if root.LogLevel != "" {
		cfg.LogLevel = root.LogLevel
	}
	if err := env.Parse(&cfg.Feed); err != nil {
		return err
	}
	if err := env.Parse(&cfg.Server); err != nil {
		return err
	}
	return env.Parse(&cfg.Storage)
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Feed
	if c.Feed.URL == "" {
		return fmt.Errorf("feed url cannot be empty")
	}
	if c.Feed.HeartbeatSeconds <= 0 {
		return fmt.Errorf("heartbeat interval must be greater than 0")
	}
	if c.Feed.ReconnectMillis <= 0 {
		return fmt.Errorf("reconnect delay must be greater than 0")
	}
	if c.Feed.SendQueue <= 0 {
		return fmt.Errorf("send queue must be greater than 0")
	}

	// Series
	if c.Series.MaxCandles <= 0 || c.Series.MaxQuotePoints <= 0 {
		return fmt.Errorf("series capacities must be greater than 0")
	}
	if c.Series.DefaultWindowSeconds <= 0 {
		return fmt.Errorf("default window must be greater than 0")
	}

	// Server, port 0 disables the listener
	if c.Server.Port != 0 && (c.Server.Port <= 1024 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Server.Port)
	}
	if c.Server.GrpcPort != 0 && (c.Server.GrpcPort <= 1024 || c.Server.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.Server.GrpcPort)
	}
	if c.Server.Port != 0 && c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	// Storage
	switch c.Storage.DBType {
	case "", "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// View
	if c.View.PublishPerSecond <= 0 {
		return fmt.Errorf("publish rate must be greater than 0")
	}
	if c.View.DefaultResolutionSecs < 0 {
		return fmt.Errorf("default resolution cannot be negative")
	}

	// Instruments
	for i, a := range c.Instruments {
		if a.Label == "" {
			return fmt.Errorf("instrument %d must have a label", i)
		}
		if a.VenueID == "" || a.SymbolID == "" {
			return fmt.Errorf("instrument '%s' must have venue_id and symbol_id", a.Label)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Feed.HeartbeatSeconds) * time.Second
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Feed.ReconnectMillis) * time.Millisecond
}

func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Feed.HandshakeSeconds) * time.Second
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
