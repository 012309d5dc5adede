package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
)

// defaultBuffer is the result channel capacity.
const defaultBuffer = 256

// Scanner walks import roots and streams candidate files.
type Scanner struct {
	include *regexp.Regexp
	buffer  int
}

// New creates a Scanner. A nil include admits every file name.
func New(include *regexp.Regexp) *Scanner {
	if include == nil {
		include, _ = CompileInclude(DefaultIncludePattern)
	}
	return &Scanner{include: include, buffer: defaultBuffer}
}

// Scan discovers all candidates beneath root. Results stream on the returned
// channel, which is closed when the walk ends or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, root string) (<-chan ScanResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	results := make(chan ScanResult, s.buffer)
	go func() {
		defer close(results)
		s.scan(ctx, absRoot, results)
	}()

	return results, nil
}

func (s *Scanner) scan(ctx context.Context, absRoot string, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			slog.Debug("skipping unreadable entry",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		// Symlinks are never followed; their targets are imported on their own.
		if !d.Type().IsRegular() {
			return nil
		}

		fi, ok := s.candidate(path, d)
		if !ok {
			return nil
		}

		select {
		case results <- ScanResult{File: fi}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// Matches reports whether the base name of path passes the inclusion pattern.
func (s *Scanner) Matches(path string) bool {
	return s.include.MatchString(filepath.Base(path))
}

// Candidate checks a single path, as used for change notifications.
func (s *Scanner) Candidate(path string) (*FileInfo, bool) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return s.candidate(path, fs.FileInfoToDirEntry(info))
}

func (s *Scanner) candidate(path string, d fs.DirEntry) (*FileInfo, bool) {
	if !s.Matches(path) {
		return nil, false
	}
	info, err := d.Info()
	if err != nil {
		return nil, false
	}
	if !readable(path) {
		slog.Debug("skipping unreadable file", slog.String("path", path))
		return nil, false
	}
	return &FileInfo{Path: path, Size: info.Size(), ModTime: info.ModTime()}, true
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
