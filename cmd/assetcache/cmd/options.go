package cmd

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/assetcache/internal/async"
	"github.com/Aman-CERP/assetcache/internal/config"
	"github.com/Aman-CERP/assetcache/internal/digest"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
	"github.com/Aman-CERP/assetcache/internal/repository"
	"github.com/Aman-CERP/assetcache/internal/ui"
	"github.com/Aman-CERP/assetcache/internal/watcher"
)

// openRepository builds a repository from the configuration. oneShot
// disables change notifications and the periodic sweep.
func openRepository(ctx context.Context, cfg *config.Config, oneShot bool) (*repository.Repository, error) {
	include, err := cfg.Include()
	if err != nil {
		return nil, err
	}
	debounce, err := cfg.WatchDebounceDuration()
	if err != nil {
		return nil, err
	}
	interval, err := cfg.SweepIntervalDuration()
	if err != nil {
		return nil, err
	}
	algorithm, _ := digest.Canonical(cfg.Index.HashAlgorithm)
	digests, err := digest.New(algorithm)
	if err != nil {
		return nil, err
	}

	return repository.Open(ctx, repository.Options{
		MetadataRoot:     cfg.Storage.MetadataRoot,
		Include:          include,
		Digests:          digests,
		Algorithm:        algorithm,
		SweepInterval:    interval,
		Workers:          cfg.Index.Workers,
		Watch:            watcher.Options{DebounceWindow: debounce},
		CacheSize:        cfg.Storage.CacheSize,
		DisableWatch:     oneShot,
		DisableSweepLoop: oneShot,
	})
}

// followImport shows the progress of rootID's import on out until it
// finishes. Pipes and --no-tui get plain text lines.
func followImport(ctx context.Context, out io.Writer, opts *rootOptions, plain bool, repo *repository.Repository, rootID uuid.UUID) error {
	r := ui.NewProgressRenderer(ui.ProgressConfig{Output: out, ForcePlain: plain, NoColor: opts.noColor})
	if err := r.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", apperrors.LogAttr(err))
	}
	defer func() { _ = r.Stop() }()

	return ui.Follow(ctx, r,
		func() (async.ImportProgressSnapshot, error) { return repo.Status(rootID) },
		func() error { return repo.Wait(ctx, rootID) },
		100*time.Millisecond)
}
