package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/assetcache/internal/async"
)

// TUIProgress draws import progress with a spinner and a progress bar.
type TUIProgress struct {
	mu      sync.Mutex
	cfg     ProgressConfig
	program *tea.Program
	model   *importModel
	done    chan struct{}
}

// NewTUIProgress creates a TUI renderer. It fails for non-TTY output.
func NewTUIProgress(cfg ProgressConfig) (*TUIProgress, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	model := newImportModel()
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}
	return &TUIProgress{cfg: cfg, model: model, done: make(chan struct{})}, nil
}

// Start implements ProgressRenderer.
func (r *TUIProgress) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		return nil
	}

	// No keyboard input: interrupts reach the command's signal context.
	r.program = tea.NewProgram(r.model,
		tea.WithContext(ctx),
		tea.WithOutput(r.cfg.Output),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements ProgressRenderer.
func (r *TUIProgress) Update(s async.ImportProgressSnapshot) {
	r.send(snapshotMsg(s))
}

// Complete implements ProgressRenderer.
func (r *TUIProgress) Complete(s async.ImportProgressSnapshot) {
	r.send(completeMsg(s))
}

func (r *TUIProgress) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements ProgressRenderer.
func (r *TUIProgress) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p == nil {
		return nil
	}

	select {
	case <-r.done:
		return nil
	default:
	}
	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

type snapshotMsg async.ImportProgressSnapshot
type completeMsg async.ImportProgressSnapshot

// importModel is the bubbletea model for one import.
type importModel struct {
	snap     async.ImportProgressSnapshot
	complete bool
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
}

func newImportModel() *importModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &importModel{
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		styles: DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *importModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *importModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-30, 10), 60)

	case snapshotMsg:
		m.snap = async.ImportProgressSnapshot(msg)

	case completeMsg:
		m.snap = async.ImportProgressSnapshot(msg)
		m.complete = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *importModel) View() string {
	if m.complete {
		return completionLine(m.snap, m.styles) + "\n"
	}

	header := fmt.Sprintf("%s Importing %s %s",
		m.spinner.View(),
		m.styles.Header.Render(m.snap.Root),
		m.styles.Dim.Render("· "+m.snap.Stage))

	if m.snap.FilesDiscovered == 0 {
		return header + "\n" + m.styles.Dim.Render("Discovering files...") + "\n"
	}

	pct := m.snap.ProgressPct / 100
	bar := m.bar.ViewAs(pct)
	counts := m.styles.Label.Render(fmt.Sprintf("%d / %d files",
		m.snap.FilesEnriched+m.snap.FilesFailed, m.snap.FilesDiscovered))
	if m.snap.FilesFailed > 0 {
		counts += m.styles.Warning.Render(fmt.Sprintf("  %d failed", m.snap.FilesFailed))
	}

	return fmt.Sprintf("%s\n%s  %s\n%s\n", header, bar,
		m.styles.Value.Render(fmt.Sprintf("%3.0f%%", pct*100)), counts)
}
