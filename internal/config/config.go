package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Archive ArchiveConfig `toml:"archive"`
	Watcher WatcherConfig `toml:"watcher"`
	Logging LoggingConfig `toml:"logging"`
}

// StorageConfig contains document-root and blob-store configuration
type StorageConfig struct {
	DocumentsRoot string `toml:"documents_root"`
	DatabasePath  string `toml:"database_path"`
}

// ArchiveConfig contains archive retention configuration
type ArchiveConfig struct {
	RetentionDays      int  `toml:"retention_days"`
	DeleteFilesOnPrune bool `toml:"delete_files_on_prune"`
	CleanupOnStartup   bool `toml:"cleanup_on_startup"`
}

// WatcherConfig contains lyrics file-watcher configuration
type WatcherConfig struct {
	Enabled bool `toml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DocumentsRoot: "./documents",
			DatabasePath:  "./songbook.db",
		},
		Archive: ArchiveConfig{
			RetentionDays:      365,
			DeleteFilesOnPrune: false,
			CleanupOnStartup:   false,
		},
		Watcher: WatcherConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	// Load from file
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create or open file
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	header := `# Songbook Configuration
# This file contains all configuration options for the Songbook project
# archive. Edit the values below to customize your setup.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	// Encode configuration to TOML
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate storage config
	if c.Storage.DocumentsRoot == "" {
		return fmt.Errorf("documents root cannot be empty")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	// Validate archive config
	if c.Archive.RetentionDays < 0 {
		return fmt.Errorf("archive retention days must be positive")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}
