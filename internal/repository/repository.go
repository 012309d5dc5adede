// Package repository is the query and import facade over the asset index.
// It owns the composition of registry, catalog, metadata store, enrichment
// pipeline, importer, watch service and sweeper.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/assetcache/internal/asset"
	"github.com/Aman-CERP/assetcache/internal/async"
	"github.com/Aman-CERP/assetcache/internal/catalog"
	"github.com/Aman-CERP/assetcache/internal/digest"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
	"github.com/Aman-CERP/assetcache/internal/index"
	"github.com/Aman-CERP/assetcache/internal/metastore"
	"github.com/Aman-CERP/assetcache/internal/roots"
	"github.com/Aman-CERP/assetcache/internal/scanner"
	"github.com/Aman-CERP/assetcache/internal/watcher"
)

// Options configures a Repository.
type Options struct {
	// MetadataRoot is where asset records are persisted.
	MetadataRoot string
	// Include restricts candidate file names. Nil admits everything.
	Include *regexp.Regexp
	// Digests computes content digests; Algorithm selects one of its
	// algorithms. A nil Digests is built for Algorithm alone. Open fails when
	// Digests cannot compute Algorithm.
	Digests   *digest.Service
	Algorithm string
	// SweepInterval is the time between reconciliation sweeps.
	SweepInterval time.Duration
	// Workers bounds concurrent enrichment during imports.
	Workers int
	// Watch configures change notification coalescing.
	Watch watcher.Options
	// CacheSize is the metadata read cache capacity.
	CacheSize int
	// DisableWatch skips change notifications, for one-shot use.
	DisableWatch bool
	// DisableSweepLoop skips the periodic sweep; post-import passes still run.
	DisableSweepLoop bool
}

// Repository serves asset queries for imported roots.
type Repository struct {
	registry *roots.Registry
	catalog  *catalog.Catalog
	store    *metastore.Store
	importer *index.Importer
	sweeper  *index.Sweeper
	watch    *watcher.Service

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Open builds a Repository and starts its background loops. The returned
// repository owns the metadata root until Close.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = digest.SHA256
	}
	if opts.Digests == nil {
		d, err := digest.New(opts.Algorithm)
		if err != nil {
			return nil, err
		}
		opts.Digests = d
	}
	// An algorithm the service cannot serve would leave every digest unset.
	if _, err := opts.Digests.Hasher(opts.Algorithm); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	store, err := metastore.Open(opts.MetadataRoot, opts.CacheSize)
	if err != nil {
		return nil, err
	}

	var watch *watcher.Service
	if !opts.DisableWatch {
		watch, err = watcher.NewService()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	registry := roots.NewRegistry()
	cat := catalog.New(registry)
	sweeper := index.NewSweeper(store, cat, opts.SweepInterval)
	pipeline := index.NewPipeline(index.PipelineConfig{
		Registry:  registry,
		Catalog:   cat,
		Store:     store,
		Digests:   opts.Digests,
		Algorithm: opts.Algorithm,
	})
	importer := index.NewImporter(index.ImporterConfig{
		Registry: registry,
		Catalog:  cat,
		Store:    store,
		Pipeline: pipeline,
		Scanner:  scanner.New(opts.Include),
		Sweeper:  sweeper,
		Watcher:  watch,
		Workers:  opts.Workers,
		Watch:    opts.Watch,
	})

	ctx, cancel := context.WithCancel(ctx)
	r := &Repository{
		registry: registry,
		catalog:  cat,
		store:    store,
		importer: importer,
		sweeper:  sweeper,
		watch:    watch,
		cancel:   cancel,
	}

	importer.Start(ctx)
	if !opts.DisableSweepLoop {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.sweeper.Run(ctx)
		}()
	}

	slog.Info("repository opened",
		slog.String("metadata_root", store.Root()),
		slog.String("algorithm", opts.Algorithm),
		slog.Int("workers", opts.Workers))
	return r, nil
}

// Close stops imports, change processing and the sweep, then releases the
// metadata root.
func (r *Repository) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		r.importer.Close()
		r.wg.Wait()

		var errs []error
		if r.watch != nil {
			errs = append(errs, r.watch.Shutdown())
		}
		errs = append(errs, r.store.Close())
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

// ImportRoot registers path and starts importing it in the background.
func (r *Repository) ImportRoot(ctx context.Context, path string) (uuid.UUID, error) {
	rootID, _, err := r.importer.Import(ctx, path)
	return rootID, err
}

// Wait blocks until the current import of rootID finishes.
func (r *Repository) Wait(ctx context.Context, rootID uuid.UUID) error {
	job, ok := r.importer.Job(rootID)
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("no import for root %s", rootID), nil)
	}
	return job.WaitContext(ctx)
}

// Status returns the progress of the current import of rootID.
func (r *Repository) Status(rootID uuid.UUID) (async.ImportProgressSnapshot, error) {
	job, ok := r.importer.Job(rootID)
	if !ok {
		return async.ImportProgressSnapshot{}, apperrors.NotFound(fmt.Sprintf("no import for root %s", rootID), nil)
	}
	return job.Progress().Snapshot(), nil
}

// Roots returns the registered roots keyed by identifier.
func (r *Repository) Roots() map[uuid.UUID]string {
	out := make(map[uuid.UUID]string)
	for _, id := range r.registry.IDs() {
		if p, ok := r.registry.Path(id); ok {
			out[id] = p
		}
	}
	return out
}

// Sweep runs one reconciliation pass now.
func (r *Repository) Sweep(ctx context.Context) (index.SweepResult, error) {
	return r.sweeper.SweepOnce(ctx)
}

// RootPath returns the absolute path of rootID.
func (r *Repository) RootPath(rootID uuid.UUID) (string, error) {
	p, ok := r.registry.Path(rootID)
	if !ok {
		return "", apperrors.IllegalState(fmt.Sprintf("root %s has not been imported", rootID), nil)
	}
	return p, nil
}

// PathFor resolves uri against rootID with the containment check.
func (r *Repository) PathFor(rootID uuid.UUID, uri string) (string, error) {
	return r.registry.PathFor(rootID, uri)
}

// GetAsset returns the indexed asset at uri, or nil when it is not indexed.
func (r *Repository) GetAsset(rootID uuid.UUID, uri string) (*asset.Asset, error) {
	p, err := r.registry.PathFor(rootID, uri)
	if err != nil {
		return nil, err
	}
	a, ok := r.catalog.Get(p)
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

// ListAssets lists the assets beneath the folder at uri. It fails with
// NotFound when uri is not a known folder.
func (r *Repository) ListAssets(rootID uuid.UUID, uri string, opts catalog.ListOptions) ([]*asset.Asset, error) {
	p, err := r.registry.PathFor(rootID, uri)
	if err != nil {
		return nil, err
	}
	list, ok := r.catalog.ListChildren(p, opts)
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("not a known folder: %s", uri), nil)
	}
	out := make([]*asset.Asset, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out, nil
}

// CountBinaryAssets counts the assets beneath the folder at uri. Unknown
// folders count zero.
func (r *Repository) CountBinaryAssets(rootID uuid.UUID, uri string) (int, error) {
	p, err := r.registry.PathFor(rootID, uri)
	if err != nil {
		return 0, err
	}
	n, _ := r.catalog.Count(p)
	return n, nil
}

// ListFolders lists the known folders at or beneath uri with their asset
// counts.
func (r *Repository) ListFolders(rootID uuid.UUID, uri string) ([]*asset.Folder, error) {
	p, err := r.registry.PathFor(rootID, uri)
	if err != nil {
		return nil, err
	}
	dirs := r.catalog.Folders(p)
	out := make([]*asset.Folder, 0, len(dirs))
	for _, d := range dirs {
		folderRoot, _, err := r.registry.RootFor(d)
		if err != nil {
			continue
		}
		folderURI, err := r.registry.URIFor(d)
		if err != nil {
			continue
		}
		f := asset.NewFolder(folderRoot, folderURI, d)
		if n, ok := r.catalog.Count(d); ok {
			count := int64(n)
			f.FileCount = &count
		}
		out = append(out, f)
	}
	return out, nil
}

// CountFolders counts the known folders at or beneath uri.
func (r *Repository) CountFolders(rootID uuid.UUID, uri string) (int, error) {
	p, err := r.registry.PathFor(rootID, uri)
	if err != nil {
		return 0, err
	}
	return len(r.catalog.Folders(p)), nil
}

// IsFolder reports whether uri names a directory on disk. Symlinks are not
// followed.
func (r *Repository) IsFolder(rootID uuid.UUID, uri string) (bool, error) {
	info, err := r.lstat(rootID, uri)
	if err != nil || info == nil {
		return false, err
	}
	return info.IsDir(), nil
}

// IsFile reports whether uri names a regular file on disk. Symlinks are not
// followed.
func (r *Repository) IsFile(rootID uuid.UUID, uri string) (bool, error) {
	info, err := r.lstat(rootID, uri)
	if err != nil || info == nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (r *Repository) lstat(rootID uuid.UUID, uri string) (os.FileInfo, error) {
	p, err := r.registry.PathFor(rootID, uri)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.IOError(fmt.Sprintf("failed to stat %s", uri), err)
	}
	return info, nil
}

// OpenStream opens the file at uri for reading. It fails with NotFound when
// the file is missing.
func (r *Repository) OpenStream(rootID uuid.UUID, uri string) (io.ReadCloser, error) {
	p, err := r.registry.PathFor(rootID, uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound(fmt.Sprintf("file not found: %s", uri), err)
	}
	if err != nil {
		return nil, apperrors.IOError(fmt.Sprintf("failed to open %s", uri), err)
	}
	return f, nil
}
