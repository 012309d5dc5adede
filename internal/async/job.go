package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// markerName is written while an import runs and removed when it ends.
const markerName = ".importing"

// JobFunc performs the import work, reporting into progress.
type JobFunc func(ctx context.Context, progress *ImportProgress) error

// JobConfig configures a Job.
type JobConfig struct {
	// Root is the directory being imported.
	Root string
	// MarkerDir, when set, holds a marker file for the duration of the run
	// so an interrupted import can be detected on the next start.
	MarkerDir string
}

// Job runs one import in a background goroutine with progress tracking.
type Job struct {
	config   JobConfig
	progress *ImportProgress
	fn       JobFunc

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
	running bool
	err     error
}

// NewJob creates a job that will run fn.
func NewJob(cfg JobConfig, fn JobFunc) *Job {
	return &Job{
		config:   cfg,
		progress: NewImportProgress(cfg.Root),
		fn:       fn,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker for this job.
func (j *Job) Progress() *ImportProgress {
	return j.progress
}

// IsRunning returns true if the job is currently running.
func (j *Job) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Start begins the job in a background goroutine. A job runs at most once.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return
	}
	j.started = true
	j.running = true
	j.mu.Unlock()

	go j.run(ctx)
}

func (j *Job) run(ctx context.Context) {
	defer close(j.doneCh)
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-j.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if j.config.MarkerDir != "" {
		if err := writeMarker(j.config.MarkerDir); err != nil {
			j.fail(err)
			return
		}
		defer func() { _ = os.Remove(filepath.Join(j.config.MarkerDir, markerName)) }()
	}

	if j.fn != nil {
		if err := j.fn(ctx, j.progress); err != nil {
			j.fail(err)
			return
		}
	}

	j.progress.SetReady()
}

func (j *Job) fail(err error) {
	j.progress.SetError(err.Error())
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}

// Stop cancels the job and waits for it to finish. Safe to call on a job
// that was never started or has already finished.
func (j *Job) Stop() {
	j.mu.Lock()
	started := j.started
	j.mu.Unlock()
	if !started {
		return
	}

	j.stopOnce.Do(func() { close(j.stopCh) })
	<-j.doneCh
}

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} {
	return j.doneCh
}

// Wait blocks until the job completes and returns any error.
func (j *Job) Wait() error {
	<-j.doneCh
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// WaitContext is Wait bounded by ctx.
func (j *Job) WaitContext(ctx context.Context) error {
	select {
	case <-j.doneCh:
		return j.Wait()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeMarker(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, markerName), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// HasIncompleteMarker reports whether a previous import in dir was
// interrupted before finishing.
func HasIncompleteMarker(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, markerName))
	return err == nil
}
