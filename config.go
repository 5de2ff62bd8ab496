package geosheet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the service configuration, read from a TOML file. Keys missing
// from the file keep their defaults.
type Config struct {
	Listen             string    `toml:"listen"`
	Database           string    `toml:"database"`
	SessionsDir        string    `toml:"sessions_dir"`
	BaseWorkbook       string    `toml:"base_workbook"`
	WorkbookName       string    `toml:"workbook_name"`
	ChecksumWorkers    int       `toml:"checksum_workers"`
	LockTimeoutSeconds int       `toml:"lock_timeout_seconds"`
	Template           *Template `toml:"template"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Listen:             ":8080",
		Database:           "geosheet.db",
		SessionsDir:        "sessions",
		WorkbookName:       "Metadata.xlsx",
		ChecksumWorkers:    4,
		LockTimeoutSeconds: 30,
		Template:           DefaultTemplate(),
	}
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration out as TOML.
func (c *Config) Save(path string) error {
	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Check validates values a file may have broken.
func (c *Config) Check() error {
	if c.Template == nil {
		return fmt.Errorf("missing template section")
	}
	if c.Template.MetadataSheet == "" {
		return fmt.Errorf("template.metadata_sheet is empty")
	}
	if c.ChecksumWorkers < 0 {
		return fmt.Errorf("checksum_workers must not be negative")
	}
	return c.Template.CheckPivots()
}

// LockTimeout returns the document lock timeout.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}
