package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0644))
	}
}

func collect(t *testing.T, ch <-chan ScanResult) []string {
	t.Helper()
	var out []string
	for r := range ch {
		require.NoError(t, r.Error)
		out = append(out, r.File.Path)
	}
	sort.Strings(out)
	return out
}

func TestCompileInclude_MatchesWholeName(t *testing.T) {
	re, err := CompileInclude(`.*\.jpg`)
	require.NoError(t, err)

	assert.True(t, re.MatchString("a.jpg"))
	assert.False(t, re.MatchString("a.jpg.bak"))

	re, err = CompileInclude("")
	require.NoError(t, err)
	assert.True(t, re.MatchString("anything"))

	_, err = CompileInclude("(")
	assert.Error(t, err)
}

func TestScan_FindsAllRegularFiles(t *testing.T) {
	// Given: a tree with nested files
	root := t.TempDir()
	writeFiles(t, root, "a.txt", "b/c.txt", "b/d/e.bin")

	// When: scanning with the default pattern
	ch, err := New(nil).Scan(context.Background(), root)
	require.NoError(t, err)

	// Then: every file is reported with its absolute path
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b", "c.txt"),
		filepath.Join(root, "b", "d", "e.bin"),
	}, collect(t, ch))
}

func TestScan_AppliesIncludePatternToBaseName(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "photo.jpg", "notes.txt", "jpg/readme.md")

	re, err := CompileInclude(`.*\.jpg`)
	require.NoError(t, err)
	ch, err := New(re).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "photo.jpg")}, collect(t, ch))
}

func TestScan_SkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	writeFiles(t, root, "real.txt")
	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")))

	ch, err := New(nil).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "real.txt")}, collect(t, ch))
}

func TestScan_SkipsUnreadableFiles(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := t.TempDir()
	writeFiles(t, root, "ok.txt", "secret.txt")
	require.NoError(t, os.Chmod(filepath.Join(root, "secret.txt"), 0000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(root, "secret.txt"), 0644) })

	ch, err := New(nil).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "ok.txt")}, collect(t, ch))
}

func TestScan_RootMustBeDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "file.txt")

	_, err := New(nil).Scan(context.Background(), filepath.Join(root, "file.txt"))
	assert.Error(t, err)

	_, err = New(nil).Scan(context.Background(), filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestScan_StopsOnCancel(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 50; i++ {
		writeFiles(t, root, fmt.Sprintf("d%d/f%02d.txt", i%5, i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := New(nil).Scan(ctx, root)
	require.NoError(t, err)
	cancel()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not stop after cancellation")
	}
}

func TestCandidate(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.jpg", "b.txt")
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.jpg"), 0755))

	re, err := CompileInclude(`.*\.jpg`)
	require.NoError(t, err)
	s := New(re)

	fi, ok := s.Candidate(filepath.Join(root, "a.jpg"))
	require.True(t, ok)
	assert.Equal(t, int64(len("a.jpg")), fi.Size)

	_, ok = s.Candidate(filepath.Join(root, "b.txt"))
	assert.False(t, ok, "pattern mismatch")
	_, ok = s.Candidate(filepath.Join(root, "dir.jpg"))
	assert.False(t, ok, "directories are not candidates")
	_, ok = s.Candidate(filepath.Join(root, "gone.jpg"))
	assert.False(t, ok, "missing files are not candidates")
}
