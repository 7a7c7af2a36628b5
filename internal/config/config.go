package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"ratetracker/internal/models"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// RATETRACKER_RATE_LIMIT_REQUESTS.
const EnvPrefix = "RATETRACKER"

// DefaultEnvFile is read by Load when present in the working directory.
const DefaultEnvFile = ".env"

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	return LoadWithEnvFile(configPath, DefaultEnvFile)
}

// LoadWithEnvFile is Load with an explicit dotenv file. Variables already set
// in the process environment take precedence over the file. A missing file is
// not an error.
func LoadWithEnvFile(configPath, envFile string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// warnUnknownKeys logs keys the service does not recognise, typically typos or
// settings for a different limiter algorithm. The lenient decoder ignores them.
func warnUnknownKeys(data []byte) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var probe models.Config
	if err := dec.Decode(&probe); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			for _, msg := range typeErr.Errors {
				slog.Warn("Ignoring unsupported config key", "detail", msg)
			}
		}
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnUnknownKeys(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	config.RateLimit.TrackedClients = []string{"192.0.2.10"}
	config.Security.AdminToken = "change-me"
	config.Storage.Type = models.StorageTypeSQLite
	config.Storage.Database.DSN = "file:./data/clients.db"

	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
