package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Aman-CERP/assetcache/internal/async"
)

// PlainProgress prints import progress as text lines (for CI/pipes).
type PlainProgress struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
	every  time.Duration
	stage  string
	last   time.Time
	now    func() time.Time
}

// NewPlainProgress creates a plain-text progress renderer.
func NewPlainProgress(cfg ProgressConfig) *PlainProgress {
	every := cfg.Every
	if every <= 0 {
		every = time.Second
	}
	return &PlainProgress{
		out:    cfg.Output,
		styles: GetStyles(cfg.NoColor || NoColorFor(cfg.Output)),
		every:  every,
		now:    time.Now,
	}
}

// Start implements ProgressRenderer.
func (r *PlainProgress) Start(ctx context.Context) error {
	return nil
}

// Update implements ProgressRenderer.
//
// Format: [stage] enriched/discovered files (n failed)
func (r *PlainProgress) Update(s async.ImportProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if s.Stage == r.stage && now.Sub(r.last) < r.every {
		return
	}
	r.stage = s.Stage
	r.last = now

	line := fmt.Sprintf("[%s] %d/%d files", s.Stage, s.FilesEnriched+s.FilesFailed, s.FilesDiscovered)
	if s.FilesFailed > 0 {
		line += r.styles.Warning.Render(fmt.Sprintf(" (%d failed)", s.FilesFailed))
	}
	_, _ = fmt.Fprintf(r.out, "%s - %s\n", line, s.Root)
}

// Complete implements ProgressRenderer.
func (r *PlainProgress) Complete(s async.ImportProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintln(r.out, completionLine(s, r.styles))
}

// Stop implements ProgressRenderer.
func (r *PlainProgress) Stop() error {
	return nil
}

func completionLine(s async.ImportProgressSnapshot, styles Styles) string {
	elapsed := formatDuration(time.Duration(s.ElapsedSeconds * float64(time.Second)))
	if async.ImportStatus(s.Status) == async.StatusError {
		return styles.Error.Render(fmt.Sprintf("Import of %s failed after %s: %s", s.Root, elapsed, s.ErrorMessage))
	}
	line := fmt.Sprintf("Imported %s: %d assets in %s", s.Root, s.FilesEnriched, elapsed)
	if s.FilesFailed > 0 {
		line += styles.Warning.Render(fmt.Sprintf(" (%d failed)", s.FilesFailed))
	}
	return styles.Success.Render(line)
}
