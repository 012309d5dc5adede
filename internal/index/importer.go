package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/assetcache/internal/asset"
	"github.com/Aman-CERP/assetcache/internal/async"
	"github.com/Aman-CERP/assetcache/internal/catalog"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
	"github.com/Aman-CERP/assetcache/internal/metastore"
	"github.com/Aman-CERP/assetcache/internal/metrics"
	"github.com/Aman-CERP/assetcache/internal/roots"
	"github.com/Aman-CERP/assetcache/internal/scanner"
	"github.com/Aman-CERP/assetcache/internal/watcher"
)

// ImporterConfig wires an Importer.
type ImporterConfig struct {
	Registry *roots.Registry
	Catalog  *catalog.Catalog
	Store    *metastore.Store
	Pipeline *Pipeline
	Scanner  *scanner.Scanner
	Sweeper  *Sweeper
	Watcher  *watcher.Service

	// Workers bounds concurrent enrichment. Zero means NumCPU.
	Workers int

	// Watch configures coalescing of change notifications.
	Watch watcher.Options
}

// Importer imports roots and keeps them current from change notifications.
type Importer struct {
	config    ImporterConfig
	debouncer *watcher.Debouncer

	jobs sync.Map // uuid.UUID -> *async.Job

	// lifetime bounds every import job; set by Start.
	lifetime  atomic.Pointer[context.Context]
	started   atomic.Bool
	closeOnce sync.Once
	drainDone chan struct{}
}

// NewImporter creates an Importer. Call Start before importing so change
// notifications are processed.
func NewImporter(cfg ImporterConfig) *Importer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	cfg.Watch = cfg.Watch.WithDefaults()
	return &Importer{
		config:    cfg,
		debouncer: watcher.NewDebouncer(cfg.Watch.DebounceWindow, cfg.Watch.BatchBuffer),
		drainDone: make(chan struct{}),
	}
}

// Start launches the goroutine that applies coalesced change notifications.
// ctx also bounds every import started afterwards; cancelling it, or Close,
// is the only way to stop a running import.
func (im *Importer) Start(ctx context.Context) {
	if im.started.CompareAndSwap(false, true) {
		im.lifetime.Store(&ctx)
		go im.drain(ctx)
	}
}

// jobContext returns the context an import runs under. Imports outlive the
// caller that requested them, so only the caller's values are kept.
func (im *Importer) jobContext(caller context.Context) context.Context {
	if ctx := im.lifetime.Load(); ctx != nil {
		return *ctx
	}
	return context.WithoutCancel(caller)
}

// Close stops running imports and change processing. Pending notifications
// are discarded.
func (im *Importer) Close() {
	im.closeOnce.Do(func() {
		im.jobs.Range(func(_, v any) bool {
			v.(*async.Job).Stop()
			return true
		})
		im.debouncer.Stop()
		if im.started.Load() {
			<-im.drainDone
		}
	})
}

// Job returns the most recent import job for rootID.
func (im *Importer) Job(rootID uuid.UUID) (*async.Job, bool) {
	v, ok := im.jobs.Load(rootID)
	if !ok {
		return nil, false
	}
	return v.(*async.Job), true
}

// Import registers path as a root and starts its import in the background.
// It fails with NotFound when path is not a directory. Importing a root
// whose previous import is still running returns that job. ctx only covers
// registration; the import keeps running after it is cancelled.
func (im *Importer) Import(ctx context.Context, path string) (uuid.UUID, *async.Job, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("resolve root path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return uuid.Nil, nil, apperrors.NotFound(fmt.Sprintf("not a directory: %s", abs), err)
	}

	rootID, err := im.config.Registry.Register(abs)
	if err != nil {
		return uuid.Nil, nil, err
	}
	metrics.RootsImported.Set(float64(len(im.config.Registry.IDs())))

	if prev, ok := im.Job(rootID); ok && prev.IsRunning() {
		return rootID, prev, nil
	}

	markerDir := filepath.Join(im.config.Store.Root(), rootID.String())
	if async.HasIncompleteMarker(markerDir) {
		slog.Warn("previous import of root did not finish, metadata may be partial",
			slog.String("root", abs))
	}

	job := async.NewJob(async.JobConfig{Root: abs, MarkerDir: markerDir},
		func(ctx context.Context, progress *async.ImportProgress) error {
			return im.run(ctx, rootID, abs, progress)
		})
	im.jobs.Store(rootID, job)
	job.Start(im.jobContext(ctx))

	slog.Info("import started",
		slog.String("root", abs),
		slog.String("root_id", rootID.String()))
	return rootID, job, nil
}

// run walks the root, enriches every candidate on a bounded worker pool, then
// sweeps once and starts watching.
func (im *Importer) run(ctx context.Context, rootID uuid.UUID, root string, progress *async.ImportProgress) error {
	start := time.Now()

	results, err := im.config.Scanner.Scan(ctx, root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.config.Workers)

	for r := range results {
		if r.Error != nil {
			slog.Warn("walk error", slog.String("root", root), apperrors.LogAttr(r.Error))
			continue
		}
		if gctx.Err() != nil {
			continue
		}
		path := r.File.Path
		progress.AddDiscovered()
		g.Go(func() error {
			if _, err := im.config.Pipeline.Process(path, false); err != nil {
				progress.AddFailed()
				slog.Warn("failed to import file",
					slog.String("path", path),
					apperrors.LogAttr(err))
				return nil
			}
			progress.AddEnriched()
			return nil
		})
	}

	progress.SetStage(async.StageEnriching)
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	metrics.IndexedAssets.Set(float64(im.config.Catalog.Len()))

	snap := progress.Snapshot()
	slog.Info("finished loading assets",
		slog.String("root", root),
		slog.Int("assets", snap.FilesEnriched),
		slog.Int("failed", snap.FilesFailed),
		slog.Float64("seconds", time.Since(start).Seconds()))

	progress.SetStage(async.StageSweeping)
	if im.config.Sweeper != nil {
		res, err := im.config.Sweeper.SweepOnce(ctx)
		if err != nil {
			slog.Warn("post-import sweep failed", apperrors.LogAttr(err))
		}
		progress.SetEvicted(res.Evicted)
	}

	progress.SetStage(async.StageWatching)
	if im.config.Watcher != nil {
		if err := im.config.Watcher.Register(root, im.HandleEvent); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		im.config.Watcher.Start()
	}

	metrics.ImportDuration.Observe(time.Since(start).Seconds())
	slog.Debug("root ready", slog.String("root_id", rootID.String()))
	return nil
}

// HandleEvent queues a change notification. It never blocks.
func (im *Importer) HandleEvent(e watcher.FileEvent) {
	im.debouncer.Add(e)
}

func (im *Importer) drain(ctx context.Context) {
	defer close(im.drainDone)
	for batch := range im.debouncer.Output() {
		for _, e := range batch {
			if ctx.Err() != nil {
				return
			}
			im.apply(ctx, e)
		}
		metrics.IndexedAssets.Set(float64(im.config.Catalog.Len()))
	}
}

func (im *Importer) apply(ctx context.Context, e watcher.FileEvent) {
	metrics.WatchEventsTotal.WithLabelValues(e.Operation.String()).Inc()
	slog.Debug("processing file event",
		slog.String("path", e.Path),
		slog.String("operation", e.Operation.String()))

	switch e.Operation {
	case watcher.OpCreate, watcher.OpModify:
		if err := im.Enrich(ctx, e.Path); err != nil {
			slog.Warn("failed to process file event",
				slog.String("path", e.Path),
				slog.String("operation", e.Operation.String()),
				apperrors.LogAttr(err))
		}
	case watcher.OpDelete:
		im.Evict(e.Path)
	}
}

// Enrich brings path up to date. A directory has every candidate beneath it
// enriched; a file is re-enriched from scratch. A path that no longer exists
// is evicted.
func (im *Importer) Enrich(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		im.Evict(path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		results, err := im.config.Scanner.Scan(ctx, path)
		if err != nil {
			return err
		}
		for r := range results {
			if r.Error != nil {
				slog.Warn("walk error", slog.String("path", path), apperrors.LogAttr(r.Error))
				continue
			}
			if _, err := im.config.Pipeline.Process(r.File.Path, false); err != nil {
				slog.Warn("failed to import file",
					slog.String("path", r.File.Path),
					apperrors.LogAttr(err))
			}
		}
		return nil
	}

	if _, ok := im.config.Scanner.Candidate(path); !ok {
		return nil
	}
	_, err = im.config.Pipeline.Process(path, true)
	return err
}

// Evict removes path from the index and deletes its metadata. For a folder,
// every indexed asset beneath it is evicted too. It returns the number of
// assets removed from the index.
func (im *Importer) Evict(path string) int {
	path = filepath.Clean(path)

	removed := im.config.Catalog.RemoveTree(path)
	if a, ok := im.config.Catalog.Remove(path); ok {
		removed = append(removed, a)
	} else if rootID, _, err := im.config.Registry.RootFor(path); err == nil {
		// Not indexed, but a record may still be on disk.
		if uri, err := im.config.Registry.URIFor(path); err == nil {
			if err := im.config.Store.Delete(rootID, asset.IDFor(uri)); err != nil {
				slog.Warn("failed to delete metadata",
					slog.String("path", path),
					apperrors.LogAttr(err))
			}
		}
	}

	for _, a := range removed {
		if err := im.config.Store.Delete(a.RootID, a.ID); err != nil {
			slog.Warn("failed to delete metadata",
				slog.String("path", a.Path),
				apperrors.LogAttr(err))
		}
	}
	if len(removed) > 0 {
		slog.Debug("evicted assets", slog.String("path", path), slog.Int("count", len(removed)))
	}
	return len(removed)
}
