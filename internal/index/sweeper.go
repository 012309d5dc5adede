package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/assetcache/internal/catalog"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
	"github.com/Aman-CERP/assetcache/internal/metastore"
	"github.com/Aman-CERP/assetcache/internal/metrics"
)

// DefaultSweepInterval is the time between reconciliation sweeps.
const DefaultSweepInterval = 24 * time.Hour

// SweepResult summarises one reconciliation pass.
type SweepResult struct {
	// Checked is the number of metadata records examined.
	Checked int
	// Evicted is the number of records whose file was gone.
	Evicted int
	// Unreadable is the number of records that could not be decoded.
	Unreadable int
	// Duration is how long the pass took.
	Duration time.Duration
}

// Sweeper evicts metadata records, and their index entries, whose file no
// longer exists. It takes no locks against imports or change processing; a
// record written concurrently with a pass is reconciled by the next one.
type Sweeper struct {
	store    *metastore.Store
	catalog  *catalog.Catalog
	interval time.Duration

	// mu serialises passes so the ticker and the post-import pass never
	// walk the store at the same time.
	mu sync.Mutex
}

// NewSweeper creates a Sweeper. cat may be nil when only metadata is swept.
func NewSweeper(store *metastore.Store, cat *catalog.Catalog, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{store: store, catalog: cat, interval: interval}
}

// Interval returns the time between passes.
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// Run performs a pass immediately and then once per interval until ctx is
// done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("reconciliation sweep failed", apperrors.LogAttr(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce performs a single reconciliation pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	var res SweepResult

	err := s.store.Walk(ctx, func(p string) error {
		res.Checked++

		a, err := s.store.LoadFile(p)
		if err != nil {
			res.Unreadable++
			slog.Warn("skipping unreadable metadata file",
				slog.String("file", p),
				apperrors.LogAttr(err))
			return nil
		}

		if _, err := os.Lstat(a.Path); !errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		if err := s.store.DeleteFile(p); err != nil {
			slog.Warn("failed to evict metadata file",
				slog.String("file", p),
				apperrors.LogAttr(err))
			return nil
		}
		if s.catalog != nil {
			s.catalog.Remove(a.Path)
		}
		res.Evicted++
		slog.Debug("evicted stale asset", slog.String("path", a.Path))
		return nil
	})

	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}

	metrics.SweepRunsTotal.Inc()
	metrics.SweepEvictionsTotal.Add(float64(res.Evicted))
	metrics.SweepLastRunTimestamp.SetToCurrentTime()
	metrics.SweepDuration.Observe(res.Duration.Seconds())
	if s.catalog != nil {
		metrics.IndexedAssets.Set(float64(s.catalog.Len()))
	}

	slog.Info("reconciliation sweep complete",
		slog.Int("checked", res.Checked),
		slog.Int("evicted", res.Evicted),
		slog.Int("unreadable", res.Unreadable),
		slog.Duration("duration", res.Duration))
	return res, nil
}
