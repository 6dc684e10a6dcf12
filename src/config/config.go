package config

import (
	"fmt"
	"os"
	"strconv"

	"transit-observer/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file. A .env file next
// to the process, or real environment variables, override the YAML values
// for the deployment-specific ones (port, connection strings, estimator URL).
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Apply environment overrides (.env is optional)
	_ = godotenv.Load()
	config.applyEnv()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() {
	if v := os.Getenv("OBSERVER_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("OBSERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("OBSERVER_DB_CONNECTION_STRING"); v != "" {
		c.Storage.DBConnectionString = v
	}
	if v := os.Getenv("OBSERVER_HISTORY_DB_PATH"); v != "" {
		c.Storage.HistoryDBPath = v
	}
	if v := os.Getenv("OBSERVER_ESTIMATOR_URL"); v != "" {
		c.Estimator.URL = v
	}
	if v := os.Getenv("OBSERVER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	switch c.Storage.CatalogDriver {
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("db_connection_string cannot be empty for the postgres catalog")
		}
	case "yaml":
		if c.Storage.CatalogPath == "" {
			return fmt.Errorf("catalog_path cannot be empty for the yaml catalog")
		}
	default:
		return fmt.Errorf("unknown catalog driver: %q (must be postgres or yaml)", c.Storage.CatalogDriver)
	}
	if c.Storage.HistoryRetentionDays < 0 {
		return fmt.Errorf("history retention days cannot be negative")
	}

	// Validate Ingest configuration
	if len(c.Ingest.Sources) == 0 {
		return fmt.Errorf("at least one ingest source must be configured")
	}
	for i, src := range c.Ingest.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d must have a name", i)
		}
		switch src.Type {
		case "nats":
			if src.URL == "" || src.Subject == "" {
				return fmt.Errorf("source '%s' needs a url and a subject", src.Name)
			}
		case "gtfsrt":
			if src.URL == "" {
				return fmt.Errorf("source '%s' needs a feed url", src.Name)
			}
		case "simulator":
			// No mandatory fields
		default:
			return fmt.Errorf("source '%s' has unknown type %q", src.Name, src.Type)
		}
	}

	// Validate Pipeline tunables (zero means "use the default")
	p := c.Pipeline
	if p.LocationTTLSeconds < 0 || p.TrafficTTLSeconds < 0 || p.PredictionCacheTTLSeconds < 0 ||
		p.PredictSweepSeconds < 0 || p.BroadcastSeconds < 0 || p.HorizonStops < 0 || p.DefaultSpeedKmh < 0 {
		return fmt.Errorf("pipeline tunables cannot be negative")
	}

	if c.Estimator.TimeoutMs < 0 {
		return fmt.Errorf("estimator timeout cannot be negative")
	}

	return nil
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
