package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/assetcache/internal/catalog"
	"github.com/Aman-CERP/assetcache/internal/digest"
	"github.com/Aman-CERP/assetcache/internal/metastore"
	"github.com/Aman-CERP/assetcache/internal/roots"
	"github.com/Aman-CERP/assetcache/internal/scanner"
	"github.com/Aman-CERP/assetcache/internal/watcher"
)

type fixture struct {
	root     string
	registry *roots.Registry
	catalog  *catalog.Catalog
	store    *metastore.Store
	pipeline *Pipeline
	sweeper  *Sweeper
	importer *Importer
	watcher  *watcher.Service
}

func newFixture(t *testing.T, watch bool) *fixture {
	t.Helper()

	f := &fixture{root: t.TempDir(), registry: roots.NewRegistry()}
	f.catalog = catalog.New(f.registry)

	store, err := metastore.Open(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	f.store = store

	digests, err := digest.New(digest.SHA256)
	require.NoError(t, err)

	f.pipeline = NewPipeline(PipelineConfig{
		Registry:  f.registry,
		Catalog:   f.catalog,
		Store:     f.store,
		Digests:   digests,
		Algorithm: digest.SHA256,
	})
	f.sweeper = NewSweeper(f.store, f.catalog, time.Hour)

	if watch {
		svc, err := watcher.NewService()
		require.NoError(t, err)
		t.Cleanup(func() { _ = svc.Shutdown() })
		f.watcher = svc
	}

	f.importer = NewImporter(ImporterConfig{
		Registry: f.registry,
		Catalog:  f.catalog,
		Store:    f.store,
		Pipeline: f.pipeline,
		Scanner:  scanner.New(nil),
		Sweeper:  f.sweeper,
		Watcher:  f.watcher,
		Workers:  4,
		Watch:    watcher.Options{DebounceWindow: 20 * time.Millisecond},
	})
	ctx, cancel := context.WithCancel(context.Background())
	f.importer.Start(ctx)
	t.Cleanup(func() {
		f.importer.Close()
		cancel()
	})
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func (f *fixture) importRoot(t *testing.T) {
	t.Helper()
	_, job, err := f.importer.Import(context.Background(), f.root)
	require.NoError(t, err)
	require.NoError(t, job.Wait())
}

func scannerInclude(pattern string) (*scanner.Scanner, error) {
	re, err := scanner.CompileInclude(pattern)
	if err != nil {
		return nil, err
	}
	return scanner.New(re), nil
}
