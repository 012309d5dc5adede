// Package scanner discovers candidate asset files beneath an import root.
// A candidate is a regular, readable file whose base name fully matches the
// configured inclusion pattern.
package scanner

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultIncludePattern admits every file name.
const DefaultIncludePattern = ".*"

// FileInfo describes a discovered candidate.
type FileInfo struct {
	Path    string    // Absolute path
	Size    int64     // File size in bytes at discovery time
	ModTime time.Time // Last modification time
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// CompileInclude compiles pattern so that it must match a whole base name.
func CompileInclude(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = DefaultIncludePattern
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
	}
	return re, nil
}
