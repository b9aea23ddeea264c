// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ahlab/ahlab/internal/modules/optimizer"
	"github.com/ahlab/ahlab/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir             string   // Base directory for inputs and outputs (always absolute)
	DataSources         []string // Season match documents, in load order
	CatalogPath         string
	DatabasePath        string
	DiscoveryLogPath    string // JSONL sink for discovered strategies
	ProgressLogPath     string
	CheckpointPath      string // Empty disables checkpoints
	OptimizerConfigPath string // YAML optimizer overrides
	LogLevel            string
	LogPretty           bool
	Port                int
	DevMode             bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("AHLAB_DATA_DIR", "data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             dataDir,
		DataSources:         utils.ParseCSV(getEnv("AHLAB_DATA_SOURCES", "")),
		CatalogPath:         getEnv("AHLAB_CATALOG_PATH", filepath.Join(dataDir, "factors.json")),
		DatabasePath:        getEnv("AHLAB_DB_PATH", filepath.Join(dataDir, "ahlab.db")),
		DiscoveryLogPath:    getEnv("AHLAB_DISCOVERY_LOG", filepath.Join(dataDir, "discovered_strategies.jsonl")),
		ProgressLogPath:     getEnv("AHLAB_PROGRESS_LOG", filepath.Join(dataDir, "optimizer_progress.log")),
		CheckpointPath:      getEnv("AHLAB_CHECKPOINT_PATH", ""),
		OptimizerConfigPath: getEnv("AHLAB_OPTIMIZER_CONFIG", ""),
		LogLevel:            getEnv("AHLAB_LOG_LEVEL", "info"),
		LogPretty:           getEnvAsBool("AHLAB_LOG_PRETTY", false),
		Port:                getEnvAsInt("AHLAB_PORT", 8080),
		DevMode:             getEnvAsBool("AHLAB_DEV_MODE", false),
	}

	if len(cfg.DataSources) == 0 {
		sources, err := filepath.Glob(filepath.Join(dataDir, "matches", "*.json"))
		if err != nil {
			return nil, fmt.Errorf("failed to list match documents: %w", err)
		}
		sort.Strings(sources)
		cfg.DataSources = sources
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog path is required")
	}
	return nil
}

// OptimizerDefaults returns the base optimizer configuration with the
// override file, if any, applied
func (c *Config) OptimizerDefaults() (optimizer.Config, error) {
	base := optimizer.DefaultConfig()
	base.CheckpointPath = c.CheckpointPath

	if c.OptimizerConfigPath == "" {
		return base, nil
	}
	overrides, err := LoadOverrides(c.OptimizerConfigPath)
	if err != nil {
		return base, err
	}
	return base.Merge(overrides), nil
}

// LoadOverrides reads optimizer overrides from a YAML file
func LoadOverrides(path string) (optimizer.Overrides, error) {
	var o optimizer.Overrides

	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("failed to read optimizer config: %w", err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("failed to parse optimizer config: %w", err)
	}
	return o, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
