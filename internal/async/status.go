// Package async tracks background import jobs and their progress.
package async

import (
	"sync"
	"time"
)

// ImportStatus represents the overall state of an import.
type ImportStatus string

const (
	// StatusImporting indicates the import walk is in progress.
	StatusImporting ImportStatus = "importing"
	// StatusReady indicates the root is fully imported and watched.
	StatusReady ImportStatus = "ready"
	// StatusError indicates the import stopped with an error.
	StatusError ImportStatus = "error"
)

// ImportStage represents the current stage of an import.
type ImportStage string

const (
	// StageWalking indicates candidate discovery is running.
	StageWalking ImportStage = "walking"
	// StageEnriching indicates discovery finished and workers are draining.
	StageEnriching ImportStage = "enriching"
	// StageSweeping indicates the post-import reconciliation pass.
	StageSweeping ImportStage = "sweeping"
	// StageWatching indicates watch registration.
	StageWatching ImportStage = "watching"
)

// ImportProgressSnapshot is an immutable snapshot of import progress.
type ImportProgressSnapshot struct {
	Root            string  `json:"root"`
	Status          string  `json:"status"`
	Stage           string  `json:"stage"`
	FilesDiscovered int     `json:"files_discovered"`
	FilesEnriched   int     `json:"files_enriched"`
	FilesFailed     int     `json:"files_failed"`
	Evicted         int     `json:"evicted"`
	ProgressPct     float64 `json:"progress_pct"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

// ImportProgress provides thread-safe tracking of one import.
type ImportProgress struct {
	mu sync.RWMutex

	root            string
	status          ImportStatus
	stage           ImportStage
	filesDiscovered int
	filesEnriched   int
	filesFailed     int
	evicted         int
	startTime       time.Time
	endTime         time.Time
	errorMessage    string
}

// NewImportProgress creates a tracker for root in the walking stage.
func NewImportProgress(root string) *ImportProgress {
	return &ImportProgress{
		root:      root,
		status:    StatusImporting,
		stage:     StageWalking,
		startTime: time.Now(),
	}
}

// SetStage updates the current stage.
func (p *ImportProgress) SetStage(stage ImportStage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
}

// AddDiscovered counts a candidate handed to the workers.
func (p *ImportProgress) AddDiscovered() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.filesDiscovered++
}

// AddEnriched counts a candidate that reached the index.
func (p *ImportProgress) AddEnriched() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.filesEnriched++
}

// AddFailed counts a candidate that could not be processed.
func (p *ImportProgress) AddFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.filesFailed++
}

// SetEvicted records how many stale records the post-import sweep removed.
func (p *ImportProgress) SetEvicted(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evicted = n
}

// SetError marks the import as failed.
func (p *ImportProgress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
	p.endTime = time.Now()
}

// SetReady marks the import as complete.
func (p *ImportProgress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
	p.endTime = time.Now()
}

// IsImporting returns true while the import is in progress.
func (p *ImportProgress) IsImporting() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusImporting
}

// Elapsed returns the time spent so far, or in total once finished.
func (p *ImportProgress) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.elapsed()
}

func (p *ImportProgress) elapsed() time.Duration {
	if !p.endTime.IsZero() {
		return p.endTime.Sub(p.startTime)
	}
	return time.Since(p.startTime)
}

// Snapshot returns an immutable copy of the current progress state.
func (p *ImportProgress) Snapshot() ImportProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.filesDiscovered > 0 {
		progressPct = float64(p.filesEnriched+p.filesFailed) / float64(p.filesDiscovered) * 100.0
	}

	return ImportProgressSnapshot{
		Root:            p.root,
		Status:          string(p.status),
		Stage:           string(p.stage),
		FilesDiscovered: p.filesDiscovered,
		FilesEnriched:   p.filesEnriched,
		FilesFailed:     p.filesFailed,
		Evicted:         p.evicted,
		ProgressPct:     progressPct,
		ElapsedSeconds:  p.elapsed().Seconds(),
		ErrorMessage:    p.errorMessage,
	}
}
