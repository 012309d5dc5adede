package ui

import (
	"context"
	"io"
	"time"

	"github.com/Aman-CERP/assetcache/internal/async"
)

// ProgressRenderer displays a running import.
type ProgressRenderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Update shows the latest progress of the import.
	Update(s async.ImportProgressSnapshot)

	// Complete shows the final state of the import.
	Complete(s async.ImportProgressSnapshot)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// ProgressConfig configures a progress renderer.
type ProgressConfig struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool

	// Every throttles plain-text count lines. Stage changes always print.
	Every time.Duration
}

// NewProgressRenderer returns a TUI renderer for terminals and a plain-text
// renderer for pipes, CI and --no-tui.
func NewProgressRenderer(cfg ProgressConfig) ProgressRenderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainProgress(cfg)
	}
	tui, err := NewTUIProgress(cfg)
	if err != nil {
		return NewPlainProgress(cfg)
	}
	return tui
}

// Follow feeds r with snapshots every interval until wait returns, then
// reports the final snapshot and returns wait's error.
func Follow(ctx context.Context, r ProgressRenderer, snapshot func() (async.ImportProgressSnapshot, error), wait func() error, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	done := make(chan error, 1)
	go func() { done <- wait() }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if s, serr := snapshot(); serr == nil {
				r.Complete(s)
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s, err := snapshot(); err == nil {
				r.Update(s)
			}
		}
	}
}
