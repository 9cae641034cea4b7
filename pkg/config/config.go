// Package config provides configuration management for the parcel repository
// engine. A repository's config.toml names the download cache directory and
// the ordered list of package sources; order matters, because later sources
// override earlier ones during catalog merges.
package config

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/parcel-pkgs/parcel/pkg/errors"
	"github.com/parcel-pkgs/parcel/pkg/fsutil"
)

// FileName is the configuration file name inside a repository root.
const FileName = "config.toml"

// SourceConfig describes one package source: a remote catalog root exposing
// an index document and package file trees, or an absolute local path.
type SourceConfig struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	URL          string `toml:"url"`
	Enabled      bool   `toml:"enabled"`
	RequireHTTPS bool   `toml:"require_https"`
}

// Config is the repository configuration persisted as config.toml.
type Config struct {
	CacheDir string         `toml:"cache_dir"`
	Sources  []SourceConfig `toml:"source"`
}

// Default returns a configuration with no sources and the user-level cache
// directory.
func Default() *Config {
	return &Config{
		CacheDir: defaultCacheDir(),
		Sources:  []SourceConfig{},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "parcel", "cache")
	}
	return filepath.Join(os.TempDir(), "parcel", "cache")
}

// Load reads and validates the configuration at path. A missing file yields
// the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrConfigInvalid, "config path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save validates the configuration and writes it to path atomically through
// a temporary file.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	if err := fsutil.WriteFileAtomic(path, data); err != nil {
		return errors.Wrapf(err, "failed to save config file %s", path)
	}
	return os.Chmod(path, fsutil.FileModeSecure)
}

// Validate checks source id uniqueness, URL shape and the HTTPS policy.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if src.ID == "" {
			return errors.Wrap(errors.ErrConfigInvalid, "source id cannot be empty")
		}
		if seen[src.ID] {
			return errors.Wrapf(errors.ErrConfigInvalid, "duplicate source id %q", src.ID)
		}
		seen[src.ID] = true

		if src.URL == "" {
			return errors.Wrapf(errors.ErrSourceURLEmpty, "source %q", src.ID)
		}
		if !strings.HasPrefix(src.URL, "http://") &&
			!strings.HasPrefix(src.URL, "https://") &&
			!strings.HasPrefix(src.URL, "/") {
			return errors.Wrapf(errors.ErrSourceURLInvalid, "source %q url %q", src.ID, src.URL)
		}
		if src.RequireHTTPS && !strings.HasPrefix(src.URL, "https://") {
			return errors.Wrapf(errors.ErrHTTPSRequired, "source %q url %q", src.ID, src.URL)
		}
	}
	return nil
}

// GetSource returns the source with the given id, or nil.
func (c *Config) GetSource(id string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i]
		}
	}
	return nil
}

// EnabledSources returns the enabled sources in configured order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, src := range c.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// AddSource appends a source. Adding a duplicate id is an error.
func (c *Config) AddSource(src SourceConfig) error {
	if c.GetSource(src.ID) != nil {
		return errors.Wrapf(errors.ErrSourceExists, "source %q", src.ID)
	}
	c.Sources = append(c.Sources, src)
	return c.Validate()
}

// RemoveSource deletes the source with the given id.
func (c *Config) RemoveSource(id string) error {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			c.Sources = append(c.Sources[:i], c.Sources[i+1:]...)
			return nil
		}
	}
	return errors.Wrapf(errors.ErrSourceNotFound, "source %q", id)
}

// EnableSource flips the enabled flag on the source with the given id.
func (c *Config) EnableSource(id string, enabled bool) error {
	src := c.GetSource(id)
	if src == nil {
		return errors.Wrapf(errors.ErrSourceNotFound, "source %q", id)
	}
	src.Enabled = enabled
	return nil
}
