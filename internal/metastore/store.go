// Package metastore persists asset records as one JSON document per asset.
//
// Layout: <root>/<rootId>/<id[0:1]>/<id[0:4]>/<id>.json. Writes go through a
// temp file and rename so readers never observe a partial document. The
// metadata root is owned by a single process, enforced with an advisory file
// lock.
package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/assetcache/internal/asset"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
)

const (
	// DefaultCacheSize is the number of decoded records kept in memory.
	DefaultCacheSize = 4096

	lockFileName = ".assetcache.lock"
	recordExt    = ".json"
)

// Store is the on-disk metadata cache.
type Store struct {
	root  string
	lock  *flock.Flock
	cache *lru.Cache[string, *asset.Asset]
}

// Open prepares root for use and takes its ownership lock.
// cacheSize <= 0 selects DefaultCacheSize.
func Open(root string, cacheSize int) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve metadata root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, apperrors.IOError(fmt.Sprintf("failed to create metadata root %s", abs), err)
	}

	lock := flock.New(filepath.Join(abs, lockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire metadata lock: %w", err)
	}
	if !acquired {
		return nil, apperrors.New(apperrors.ErrCodeStoreLocked,
			fmt.Sprintf("metadata root %s is in use by another process", abs), nil).
			WithSuggestion("Stop the other assetcache process or choose a different metadata_root")
	}

	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, *asset.Asset](cacheSize)

	return &Store{root: abs, lock: lock, cache: cache}, nil
}

// Close releases the ownership lock. Safe to call more than once.
func (s *Store) Close() error {
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release metadata lock: %w", err)
	}
	return nil
}

// Root returns the absolute metadata root.
func (s *Store) Root() string {
	return s.root
}

// PathOf returns the metadata file location for an asset.
func (s *Store) PathOf(rootID, id uuid.UUID) string {
	key := id.String()
	return filepath.Join(s.root, rootID.String(), key[:1], key[:4], key+recordExt)
}

// Load returns the persisted record for (rootID, id). The boolean is false
// when no record exists.
func (s *Store) Load(rootID, id uuid.UUID) (*asset.Asset, bool, error) {
	p := s.PathOf(rootID, id)
	if a, ok := s.cache.Get(p); ok {
		return a.Clone(), true, nil
	}

	a, err := s.read(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.cache.Add(p, a)
	return a.Clone(), true, nil
}

// LoadFile decodes the metadata document at p.
func (s *Store) LoadFile(p string) (*asset.Asset, error) {
	if a, ok := s.cache.Get(p); ok {
		return a.Clone(), nil
	}
	a, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (s *Store) read(p string) (*asset.Asset, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var a asset.Asset
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCorruptRecord,
			fmt.Sprintf("failed to parse metadata file %s", p), err)
	}
	a.Dirty = false
	return &a, nil
}

// Save writes a atomically and clears its dirty flag.
func (s *Store) Save(a *asset.Asset) error {
	p := s.PathOf(a.RootID, a.ID)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.IOError(fmt.Sprintf("failed to create metadata directory %s", dir), err)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal asset %s: %w", a.ID, err)
	}

	tmp, err := os.CreateTemp(dir, "."+a.ID.String()+"-*.tmp")
	if err != nil {
		return apperrors.IOError("failed to create temp metadata file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return apperrors.IOError(fmt.Sprintf("failed to write metadata for %s", a.Path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return apperrors.IOError(fmt.Sprintf("failed to write metadata for %s", a.Path), err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		_ = os.Remove(tmpPath)
		return apperrors.IOError(fmt.Sprintf("failed to save metadata for %s", a.Path), err)
	}

	a.Dirty = false
	s.cache.Add(p, a.Clone())
	return nil
}

// Delete removes the record for (rootID, id). A missing record is not an error.
func (s *Store) Delete(rootID, id uuid.UUID) error {
	return s.DeleteFile(s.PathOf(rootID, id))
}

// DeleteFile removes the metadata document at p.
func (s *Store) DeleteFile(p string) error {
	s.cache.Remove(p)
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.IOError(fmt.Sprintf("failed to delete metadata file %s", p), err)
	}
	return nil
}

// Walk calls fn with the path of every metadata document under the root.
// Unreadable directories are skipped. Walk stops early when ctx is done or fn
// returns an error.
func (s *Store) Walk(ctx context.Context, fn func(path string) error) error {
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && p != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			return nil
		}
		return fn(p)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
