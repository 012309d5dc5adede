// Package config loads assetcache settings from YAML files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/assetcache/internal/digest"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
	"github.com/Aman-CERP/assetcache/internal/scanner"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ASSETCACHE_"

// Config represents the complete assetcache configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Roots   []string      `yaml:"roots" json:"roots"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Sweep   SweepConfig   `yaml:"sweep" json:"sweep"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// IndexConfig configures discovery and enrichment.
type IndexConfig struct {
	// IncludePattern is matched against the whole base name of each file.
	IncludePattern string `yaml:"include_pattern" json:"include_pattern"`

	// HashAlgorithm is the digest persisted for every asset.
	HashAlgorithm string `yaml:"hash_algorithm" json:"hash_algorithm"`

	// Workers bounds concurrent enrichment during an import.
	Workers int `yaml:"workers" json:"workers"`

	// WatchDebounce is the coalescing window for watch events (e.g. "200ms").
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// StorageConfig configures the metadata store.
type StorageConfig struct {
	// MetadataRoot holds one JSON file per asset.
	MetadataRoot string `yaml:"metadata_root" json:"metadata_root"`

	// CacheSize is the number of records kept in the read cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// SweepConfig configures the reconciliation sweep.
type SweepConfig struct {
	// Interval between passes (e.g. "24h").
	Interval string `yaml:"interval" json:"interval"`
}

// ServerConfig configures the long-running serve command.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	// MetricsAddr enables the Prometheus endpoint when non-empty (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Roots:   []string{},
		Index: IndexConfig{
			IncludePattern: scanner.DefaultIncludePattern,
			HashAlgorithm:  digest.SHA256,
			Workers:        runtime.NumCPU(),
			WatchDebounce:  "200ms",
		},
		Storage: StorageConfig{
			MetadataRoot: defaultMetadataRoot(),
			CacheSize:    4096,
		},
		Sweep: SweepConfig{
			Interval: "24h",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

func defaultMetadataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".assetcache", "metadata")
	}
	return filepath.Join(home, ".assetcache", "metadata")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/assetcache/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/assetcache/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "assetcache", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "assetcache", "config.yaml")
	}
	return filepath.Join(home, ".config", "assetcache", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	info, err := os.Stat(GetUserConfigPath())
	return err == nil && !info.IsDir()
}

// Load builds the configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/assetcache/config.yaml)
//  3. The file at path, when path is non-empty
//  4. Environment variables (ASSETCACHE_*)
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.expandHome()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges the non-zero values of a YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return apperrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Roots) > 0 {
		c.Roots = other.Roots
	}

	if other.Index.IncludePattern != "" {
		c.Index.IncludePattern = other.Index.IncludePattern
	}
	if other.Index.HashAlgorithm != "" {
		c.Index.HashAlgorithm = other.Index.HashAlgorithm
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.WatchDebounce != "" {
		c.Index.WatchDebounce = other.Index.WatchDebounce
	}

	if other.Storage.MetadataRoot != "" {
		c.Storage.MetadataRoot = other.Storage.MetadataRoot
	}
	if other.Storage.CacheSize != 0 {
		c.Storage.CacheSize = other.Storage.CacheSize
	}

	if other.Sweep.Interval != "" {
		c.Sweep.Interval = other.Sweep.Interval
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.MetricsAddr != "" {
		c.Server.MetricsAddr = other.Server.MetricsAddr
	}
}

// applyEnvOverrides applies ASSETCACHE_* environment variable overrides.
// Malformed numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvPrefix + "ROOTS"); v != "" {
		c.Roots = filepath.SplitList(v)
	}
	if v := os.Getenv(EnvPrefix + "INCLUDE_PATTERN"); v != "" {
		c.Index.IncludePattern = v
	}
	if v := os.Getenv(EnvPrefix + "HASH_ALGORITHM"); v != "" {
		c.Index.HashAlgorithm = v
	}
	if v := os.Getenv(EnvPrefix + "WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv(EnvPrefix + "WATCH_DEBOUNCE"); v != "" {
		c.Index.WatchDebounce = v
	}
	if v := os.Getenv(EnvPrefix + "METADATA_ROOT"); v != "" {
		c.Storage.MetadataRoot = v
	}
	if v := os.Getenv(EnvPrefix + "SWEEP_INTERVAL"); v != "" {
		c.Sweep.Interval = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
}

// expandHome replaces a leading "~/" in path settings with the home directory.
func (c *Config) expandHome() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	expand := func(p string) string {
		if p == "~" {
			return home
		}
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}
	c.Storage.MetadataRoot = expand(c.Storage.MetadataRoot)
	for i, r := range c.Roots {
		c.Roots[i] = expand(r)
	}
}

// Validate returns a configuration error for the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.Include(); err != nil {
		return err
	}

	if _, ok := digest.Canonical(c.Index.HashAlgorithm); !ok {
		return apperrors.New(apperrors.ErrCodeUnsupportedHashAlgo,
			fmt.Sprintf("unsupported hash algorithm: %s", c.Index.HashAlgorithm), nil).
			WithSuggestion("use one of " + strings.Join(digest.Supported(), ", "))
	}

	if c.Index.Workers < 0 {
		return apperrors.ConfigError(fmt.Sprintf("index.workers must be non-negative, got %d", c.Index.Workers), nil)
	}
	if c.Storage.CacheSize < 0 {
		return apperrors.ConfigError(fmt.Sprintf("storage.cache_size must be non-negative, got %d", c.Storage.CacheSize), nil)
	}
	if strings.TrimSpace(c.Storage.MetadataRoot) == "" {
		return apperrors.ConfigError("storage.metadata_root must not be empty", nil)
	}

	if _, err := c.WatchDebounceDuration(); err != nil {
		return err
	}
	if _, err := c.SweepIntervalDuration(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return apperrors.ConfigError(fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel), nil)
	}

	return nil
}

// Include compiles the inclusion pattern.
func (c *Config) Include() (*regexp.Regexp, error) {
	re, err := scanner.CompileInclude(c.Index.IncludePattern)
	if err != nil {
		return nil, apperrors.ConfigError(fmt.Sprintf("index.include_pattern is not a valid regular expression: %s", c.Index.IncludePattern), err)
	}
	return re, nil
}

// WatchDebounceDuration parses index.watch_debounce.
func (c *Config) WatchDebounceDuration() (time.Duration, error) {
	return parsePositiveDuration("index.watch_debounce", c.Index.WatchDebounce)
}

// SweepIntervalDuration parses sweep.interval.
func (c *Config) SweepIntervalDuration() (time.Duration, error) {
	return parsePositiveDuration("sweep.interval", c.Sweep.Interval)
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, apperrors.ConfigError(fmt.Sprintf("%s is not a valid duration: %q", field, value), err)
	}
	if d <= 0 {
		return 0, apperrors.ConfigError(fmt.Sprintf("%s must be positive, got %s", field, value), nil)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
