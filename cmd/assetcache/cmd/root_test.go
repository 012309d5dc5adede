package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/assetcache/configs"
	"github.com/Aman-CERP/assetcache/internal/config"
)

// testEnv isolates user config, home and metadata root for one test.
type testEnv struct {
	home     string
	metadata string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	env := testEnv{home: t.TempDir(), metadata: t.TempDir()}
	t.Setenv("HOME", env.home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(env.home, ".config"))
	t.Setenv("ASSETCACHE_METADATA_ROOT", env.metadata)
	t.Setenv("ASSETCACHE_ROOTS", "")
	t.Setenv("ASSETCACHE_METRICS_ADDR", "")
	t.Setenv("NO_COLOR", "1")
	return env
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "scan", "sweep", "config", "version"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestVersionCmd(t *testing.T) {
	newTestEnv(t)

	out, err := execute(t, context.Background(), "version", "--json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")

	out, err = execute(t, context.Background(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "assetcache "))
}

func TestScanCmd_ListsAssets(t *testing.T) {
	// Given: a directory with two files
	newTestEnv(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "abc", "b/c.png": "png"})

	// When: scanning it with JSON output
	out, err := execute(t, context.Background(), "scan", root, "--json", "--folders")
	require.NoError(t, err)

	// Then: both assets are listed with their derived fields
	var report struct {
		Import struct {
			Status        string `json:"status"`
			FilesEnriched int    `json:"files_enriched"`
		} `json:"import"`
		Assets []struct {
			URI       string  `json:"uri"`
			Size      *int64  `json:"size"`
			Digest    *string `json:"sha-256"`
			MediaType *string `json:"media-type"`
		} `json:"assets"`
		Folders []struct {
			URI string `json:"uri"`
		} `json:"folders"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "ready", report.Import.Status)
	assert.Equal(t, 2, report.Import.FilesEnriched)
	require.Len(t, report.Assets, 2)
	assert.Equal(t, "/a.txt", report.Assets[0].URI)
	require.NotNil(t, report.Assets[0].Digest)
	assert.Equal(t, "ungWv48Bz+pBQUDeXa4iI7ADYaOWF3qctBD/YfIAFa0=", *report.Assets[0].Digest)
	require.NotNil(t, report.Assets[1].MediaType)
	assert.Equal(t, "image/png", *report.Assets[1].MediaType)
	assert.Len(t, report.Folders, 2)
}

func TestScanCmd_PlainOutputAndPaging(t *testing.T) {
	newTestEnv(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.bin": "1", "b.bin": "2", "c.bin": "3"})

	out, err := execute(t, context.Background(), "scan", root, "--offset", "1", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported "+root)
	assert.Contains(t, out, "/b.bin")
	assert.NotContains(t, out, "/a.bin")
	assert.NotContains(t, out, "/c.bin")
}

func TestScanCmd_ReportsImportProgress(t *testing.T) {
	// Given: a directory with three files
	newTestEnv(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.bin": "1", "b.bin": "2", "c/d.bin": "3"})

	// When: scanning with plain progress
	out, err := execute(t, context.Background(), "scan", root, "--no-tui")

	// Then: the import summary precedes the listing
	require.NoError(t, err)
	summary := strings.Index(out, "Imported "+root+": 3 assets in")
	listing := strings.Index(out, "Assets under /")
	require.GreaterOrEqual(t, summary, 0)
	assert.Less(t, summary, listing)
}

func TestScanCmd_NotADirectory(t *testing.T) {
	newTestEnv(t)

	_, err := execute(t, context.Background(), "scan", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestSweepCmd_EvictsDeletedFiles(t *testing.T) {
	// Given: a scanned directory whose file is then deleted
	newTestEnv(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"gone.bin": "x", "kept.bin": "y"})
	_, err := execute(t, context.Background(), "scan", root)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "gone.bin")))

	// When: sweeping
	out, err := execute(t, context.Background(), "sweep", "--json")
	require.NoError(t, err)

	// Then: exactly the deleted file's record is evicted
	var res map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, float64(2), res["checked"])
	assert.Equal(t, float64(1), res["evicted"])
}

func TestConfigInitAndShow(t *testing.T) {
	// Given: no user config
	env := newTestEnv(t)

	// When: creating it from the template
	out, err := execute(t, context.Background(), "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")

	data, err := os.ReadFile(config.GetUserConfigPath())
	require.NoError(t, err)
	assert.Equal(t, configs.UserConfigTemplate, string(data))

	// Then: the template loads and env overrides still apply
	out, err = execute(t, context.Background(), "config", "show", "--json")
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, env.metadata, cfg.Storage.MetadataRoot)
	assert.Equal(t, "SHA-256", cfg.Index.HashAlgorithm)

	// And: a second init without --force leaves it alone
	out, err = execute(t, context.Background(), "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = execute(t, context.Background(), "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup:")
}

func TestConfigShow_InvalidConfigFails(t *testing.T) {
	newTestEnv(t)
	t.Setenv("ASSETCACHE_HASH_ALGORITHM", "CRC32")

	_, err := execute(t, context.Background(), "config", "show")
	require.Error(t, err)
}

func TestServeCmd_NoRoots(t *testing.T) {
	newTestEnv(t)

	_, err := execute(t, context.Background(), "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no roots")
}

func TestServeCmd_ImportsUntilCancelled(t *testing.T) {
	newTestEnv(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.bin": "x"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := execute(t, ctx, "serve", root, "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "importing "+root)
	assert.Contains(t, out, "Imported "+root+": 1 assets")
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	newTestEnv(t)
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")

	_, err := execute(t, context.Background(), "version", "--profile-cpu", cpu, "--profile-mem", mem)
	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, mem)
}
