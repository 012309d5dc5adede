package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
)

var envKeys = []string{
	"ROOTS", "INCLUDE_PATTERN", "HASH_ALGORITHM", "WORKERS", "WATCH_DEBOUNCE",
	"METADATA_ROOT", "SWEEP_INTERVAL", "LOG_LEVEL", "METRICS_ADDR",
}

// isolate points the user config at an empty directory and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, k := range envKeys {
		t.Setenv(EnvPrefix+k, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	assert.Equal(t, 1, cfg.Version)
	assert.Empty(t, cfg.Roots)
	assert.Equal(t, ".*", cfg.Index.IncludePattern)
	assert.Equal(t, "SHA-256", cfg.Index.HashAlgorithm)
	assert.Equal(t, runtime.NumCPU(), cfg.Index.Workers)
	assert.Equal(t, "200ms", cfg.Index.WatchDebounce)
	assert.Equal(t, "24h", cfg.Sweep.Interval)
	assert.Equal(t, 4096, cfg.Storage.CacheSize)
	assert.Contains(t, cfg.Storage.MetadataRoot, filepath.Join(".assetcache", "metadata"))
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Server.MetricsAddr)
	require.NoError(t, cfg.Validate())
}

func TestGetUserConfigPath_UsesXDG(t *testing.T) {
	xdg := isolate(t)
	assert.Equal(t, filepath.Join(xdg, "assetcache", "config.yaml"), GetUserConfigPath())
	assert.False(t, UserConfigExists())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_FileOverridesUserConfig(t *testing.T) {
	// Given: a user config and an explicit file that both set fields
	xdg := isolate(t)
	writeFile(t, filepath.Join(xdg, "assetcache", "config.yaml"), `
index:
  hash_algorithm: SHA-1
  workers: 3
sweep:
  interval: 1h
`)
	explicit := filepath.Join(t.TempDir(), "assetcache.yaml")
	writeFile(t, explicit, `
roots: [/srv/media]
index:
  hash_algorithm: BLAKE3
  include_pattern: '.*\.jpg'
`)

	// When: loading
	cfg, err := Load(explicit)
	require.NoError(t, err)

	// Then: the explicit file wins, untouched user settings survive
	assert.Equal(t, []string{"/srv/media"}, cfg.Roots)
	assert.Equal(t, "BLAKE3", cfg.Index.HashAlgorithm)
	assert.Equal(t, `.*\.jpg`, cfg.Index.IncludePattern)
	assert.Equal(t, 3, cfg.Index.Workers)
	assert.Equal(t, "1h", cfg.Sweep.Interval)
	assert.Equal(t, "200ms", cfg.Index.WatchDebounce)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	explicit := filepath.Join(t.TempDir(), "assetcache.yaml")
	writeFile(t, explicit, "index:\n  workers: 2\nserver:\n  log_level: warn\n")

	t.Setenv("ASSETCACHE_WORKERS", "7")
	t.Setenv("ASSETCACHE_LOG_LEVEL", "debug")
	t.Setenv("ASSETCACHE_METRICS_ADDR", ":9191")
	t.Setenv("ASSETCACHE_ROOTS", "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv("ASSETCACHE_SWEEP_INTERVAL", "30m")

	cfg, err := Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Index.Workers)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, ":9191", cfg.Server.MetricsAddr)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Roots)

	d, err := cfg.SweepIntervalDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)
}

func TestLoad_MalformedWorkersEnvIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("ASSETCACHE_WORKERS", "many")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.Index.Workers)
}

func TestLoad_MissingFileFails(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	isolate(t)
	explicit := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, explicit, "index: [unclosed")

	_, err := Load(explicit)
	assert.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"unknown hash algorithm", func(c *Config) { c.Index.HashAlgorithm = "CRC32" }, apperrors.ErrUnsupportedHash},
		{"lower case algorithm accepted", func(c *Config) { c.Index.HashAlgorithm = "sha256" }, nil},
		{"bad include pattern", func(c *Config) { c.Index.IncludePattern = "([" }, apperrors.ErrConfig},
		{"bad debounce", func(c *Config) { c.Index.WatchDebounce = "soon" }, apperrors.ErrConfig},
		{"zero sweep interval", func(c *Config) { c.Sweep.Interval = "0s" }, apperrors.ErrConfig},
		{"negative workers", func(c *Config) { c.Index.Workers = -1 }, apperrors.ErrConfig},
		{"empty metadata root", func(c *Config) { c.Storage.MetadataRoot = " " }, apperrors.ErrConfig},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }, apperrors.ErrConfig},
		{"upper case log level accepted", func(c *Config) { c.Server.LogLevel = "WARN" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInclude_MatchesWholeName(t *testing.T) {
	cfg := NewConfig()
	cfg.Index.IncludePattern = `.*\.png`

	re, err := cfg.Include()
	require.NoError(t, err)
	assert.True(t, re.MatchString("cat.png"))
	assert.False(t, re.MatchString("cat.png.bak"))
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	cfg := NewConfig()
	cfg.Roots = []string{"/srv/a"}
	cfg.Server.MetricsAddr = ":9090"
	path := filepath.Join(t.TempDir(), "out.yaml")

	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_ExpandsHome(t *testing.T) {
	isolate(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ASSETCACHE_METADATA_ROOT", "~/meta")
	t.Setenv("ASSETCACHE_ROOTS", "~/photos")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "meta"), cfg.Storage.MetadataRoot)
	assert.Equal(t, []string{filepath.Join(home, "photos")}, cfg.Roots)
}

func TestLoad_EmbeddedStyleTemplate(t *testing.T) {
	// Given: a file using zero workers, which means one per CPU
	isolate(t)
	explicit := filepath.Join(t.TempDir(), "assetcache.yaml")
	writeFile(t, explicit, "index:\n  workers: 0\n  hash_algorithm: blake3\n")

	cfg, err := Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.Index.Workers)
	assert.Equal(t, "blake3", cfg.Index.HashAlgorithm)
}
