// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

// Duration is a time.Duration that unmarshals from yaml strings like "200ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ScoutConfig tunes the live-scouting engine surfaces.
type ScoutConfig struct {
	// PersistRetryCron schedules the job that retries persistence of
	// events whose write-behind failed.
	PersistRetryCron string `yaml:"persist_retry_cron"`
	// DispatchWindow is the duplicate-tap suppression window.
	DispatchWindow Duration `yaml:"dispatch_window"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`

	Scout ScoutConfig `yaml:"scout"`

	Features struct {
		EnableDebug bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Load loads both .env and yaml configuration.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scout.PersistRetryCron == "" {
		c.Scout.PersistRetryCron = "* * * * *"
	}
	if c.Scout.DispatchWindow == 0 {
		c.Scout.DispatchWindow = Duration(200 * time.Millisecond)
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if _, err := cron.ParseStandard(c.Scout.PersistRetryCron); err != nil {
		return fmt.Errorf("invalid persist retry cron %q: %w", c.Scout.PersistRetryCron, err)
	}
	if c.Scout.DispatchWindow < 0 {
		return fmt.Errorf("dispatch window must not be negative")
	}

	return nil
}
