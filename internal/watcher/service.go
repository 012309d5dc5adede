package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Service watches registered directory trees and dispatches their events.
type Service struct {
	fsw *fsnotify.Watcher

	mu      sync.Mutex
	subs    map[string]EventFunc // watched directory -> callback
	running bool
	closed  bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewService creates a Service with its own fsnotify handle.
func NewService() (*Service, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Service{
		fsw:  fsw,
		subs: make(map[string]EventFunc),
	}, nil
}

// Register subscribes root and every directory beneath it with fn.
// Subdirectories that cannot be watched are logged and skipped; failure to
// watch root itself is returned.
func (s *Service) Register(root string, fn EventFunc) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("watch service is shut down")
	}

	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return fmt.Errorf("walk %s: %w", path, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := s.subscribe(path, fn); err != nil {
			if path == abs {
				return err
			}
			slog.Warn("failed to watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return filepath.SkipDir
		}
		return nil
	})
}

func (s *Service) subscribe(dir string, fn EventFunc) error {
	if err := s.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.mu.Lock()
	s.subs[dir] = fn
	s.mu.Unlock()
	slog.Debug("watching directory", slog.String("path", dir))
	return nil
}

// unsubscribe drops dir and every subscription beneath it. It reports
// whether dir itself was subscribed and how many subscriptions remain.
func (s *Service) unsubscribe(dir string) (bool, int) {
	prefix := dir + string(filepath.Separator)

	s.mu.Lock()
	var dropped []string
	_, found := s.subs[dir]
	for p := range s.subs {
		if p == dir || strings.HasPrefix(p, prefix) {
			delete(s.subs, p)
			dropped = append(dropped, p)
		}
	}
	remaining := len(s.subs)
	s.mu.Unlock()

	for _, p := range dropped {
		// The kernel has usually released the watch already.
		_ = s.fsw.Remove(p)
		slog.Debug("stopped watching directory", slog.String("path", p))
	}
	return found, remaining
}

func (s *Service) callbackFor(path string) EventFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn, ok := s.subs[filepath.Dir(path)]; ok {
		return fn
	}
	return s.subs[path]
}

// Watched returns the subscribed directories.
func (s *Service) Watched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subs))
	for p := range s.subs {
		out = append(out, p)
	}
	return out
}

// Start launches the listener goroutine. Calling Start while the listener is
// running is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.closed {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stopCh, s.done)
}

// Running reports whether the listener goroutine is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done is closed when the current listener goroutine exits. It returns nil
// if the listener was never started.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Shutdown stops the listener and releases the fsnotify handle.
// Safe to call multiple times.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stopCh, done, running := s.stopCh, s.done, s.running
	s.mu.Unlock()

	if running {
		close(stopCh)
		<-done
	}
	if err := s.fsw.Close(); err != nil {
		return fmt.Errorf("close fsnotify watcher: %w", err)
	}
	return nil
}

func (s *Service) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-s.fsw.Events:
			if !ok {
				slog.Warn("fsnotify event channel closed, watch loop exiting")
				return
			}
			if !s.handle(event) {
				slog.Info("no directories left to watch, watch loop exiting")
				return
			}
		case err, ok := <-s.fsw.Errors:
			if !ok {
				slog.Warn("fsnotify error channel closed, watch loop exiting")
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Warn("watch event queue overflowed, events were lost; the next sweep reconciles deletions")
				continue
			}
			slog.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// handle dispatches one raw event. It returns false once no subscriptions
// remain.
func (s *Service) handle(event fsnotify.Event) bool {
	path := filepath.Clean(event.Name)
	fn := s.callbackFor(path)
	if fn == nil {
		return true
	}

	fe := FileEvent{Path: path, Timestamp: time.Now()}

	switch {
	case event.Has(fsnotify.Create):
		fe.Operation = OpCreate
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			fe.IsDir = true
			if err := s.Register(path, fn); err != nil {
				slog.Warn("failed to watch new directory",
					slog.String("path", path),
					slog.String("error", err.Error()))
			}
		}
	case event.Has(fsnotify.Write):
		fe.Operation = OpModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		fe.Operation = OpDelete
		if found, remaining := s.unsubscribe(path); found {
			fe.IsDir = true
			if remaining == 0 {
				fn(fe)
				return false
			}
		}
	default:
		// Chmod only.
		return true
	}

	fn(fe)
	return true
}
