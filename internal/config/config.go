// Package config loads pagecraft settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"pagecraft/internal/domain"
)

// Config holds all pagecraft configuration.
type Config struct {
	// DataDir holds the SQLite database when Storage.Host is empty.
	DataDir string `yaml:"data_dir"`

	Storage     domain.DatabaseConnection `yaml:"storage"`
	Editor      EditorConfig              `yaml:"editor"`
	Watcher     WatcherConfig             `yaml:"watcher"`
	Maintenance MaintenanceConfig         `yaml:"maintenance"`
	Logging     LoggingConfig             `yaml:"logging"`
}

type EditorConfig struct {
	// UndoLimit is how many undo nodes each page keeps.
	UndoLimit int `yaml:"undo_limit"`
	// UserID authors comments submitted through the agent tools.
	UserID string `yaml:"user_id"`
}

type WatcherConfig struct {
	Interval string `yaml:"interval"`
	// WatchFile listens to writes on the SQLite file between ticks.
	WatchFile bool `yaml:"watch_file"`
}

type MaintenanceConfig struct {
	Enabled bool `yaml:"enabled"`
	// Schedule is a cron expression ("@every 10m", "0 3 * * *").
	Schedule   string `yaml:"schedule"`
	StuckAfter string `yaml:"stuck_after"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	// File receives logs instead of stderr. The MCP stdio transport owns
	// stdout, so logs never go there.
	File string `yaml:"file"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	dataDir := ".pagecraft"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".pagecraft")
	}
	return &Config{
		DataDir: dataDir,
		Storage: domain.DatabaseConnection{Driver: domain.DatabaseDriverSQLite},
		Editor: EditorConfig{
			UndoLimit: 40,
			UserID:    "local",
		},
		Watcher: WatcherConfig{
			Interval:  "2s",
			WatchFile: true,
		},
		Maintenance: MaintenanceConfig{
			Enabled:    true,
			Schedule:   "@every 10m",
			StuckAfter: "30m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies PAGECRAFT_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PAGECRAFT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PAGECRAFT_DB_DRIVER"); v != "" {
		c.Storage.Driver = domain.DatabaseDriver(v)
	}
	if v := os.Getenv("PAGECRAFT_DB_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("PAGECRAFT_DB_HOST"); v != "" {
		c.Storage.Host = v
	}
	if v := os.Getenv("PAGECRAFT_DB_PASSWORD"); v != "" {
		c.Storage.Password = v
	}
	if v := os.Getenv("PAGECRAFT_UNDO_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Editor.UndoLimit = n
		}
	}
	if v := os.Getenv("PAGECRAFT_USER_ID"); v != "" {
		c.Editor.UserID = v
	}
	if v := os.Getenv("PAGECRAFT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PAGECRAFT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case domain.DatabaseDriverSQLite, domain.DatabaseDriverPostgres, domain.DatabaseDriverMySQL, domain.DatabaseDriverMongoDB:
	case "":
		c.Storage.Driver = domain.DatabaseDriverSQLite
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.WatchInterval(); err != nil {
		return err
	}
	if _, err := c.StuckAfter(); err != nil {
		return err
	}
	if c.Editor.UndoLimit < 0 {
		return fmt.Errorf("config: undo_limit must not be negative")
	}
	return nil
}

// SQLitePath is the database file used when the driver is sqlite.
func (c *Config) SQLitePath() string {
	if c.Storage.Host != "" {
		return c.Storage.Host
	}
	return filepath.Join(c.DataDir, "pagecraft.db")
}

// Connection returns the storage connection with the SQLite path resolved.
func (c *Config) Connection() domain.DatabaseConnection {
	conn := c.Storage
	if conn.Driver == domain.DatabaseDriverSQLite && conn.DSN == "" {
		conn.Host = c.SQLitePath()
	}
	return conn
}

func (c *Config) WatchInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watcher.Interval)
	if err != nil {
		return 0, fmt.Errorf("config: watcher.interval: %w", err)
	}
	return d, nil
}

func (c *Config) StuckAfter() (time.Duration, error) {
	d, err := time.ParseDuration(c.Maintenance.StuckAfter)
	if err != nil {
		return 0, fmt.Errorf("config: maintenance.stuck_after: %w", err)
	}
	return d, nil
}
