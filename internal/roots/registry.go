// Package roots tracks imported filesystem roots and translates between
// absolute paths and root-relative asset URIs.
package roots

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Aman-CERP/assetcache/internal/asset"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
)

// Registry maps root identifiers to absolute root paths.
// A registered root's path never changes.
type Registry struct {
	byID   sync.Map // uuid.UUID -> string
	byPath sync.Map // string -> uuid.UUID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register records root and returns its identifier. Registering the same
// path again returns the same identifier.
func (r *Registry) Register(root string) (uuid.UUID, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve root path: %w", err)
	}
	abs = filepath.Clean(abs)

	id := asset.RootIDFor(abs)
	actual, _ := r.byID.LoadOrStore(id, abs)
	r.byPath.Store(actual.(string), id)
	return id, nil
}

// Path returns the absolute path registered for id.
func (r *Registry) Path(id uuid.UUID) (string, bool) {
	v, ok := r.byID.Load(id)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// IsRoot reports whether absPath is itself a registered root.
func (r *Registry) IsRoot(absPath string) bool {
	_, ok := r.byPath.Load(filepath.Clean(absPath))
	return ok
}

// IDs returns every registered root identifier in path order.
func (r *Registry) IDs() []uuid.UUID {
	type entry struct {
		id   uuid.UUID
		path string
	}
	var entries []entry
	r.byID.Range(func(k, v any) bool {
		entries = append(entries, entry{id: k.(uuid.UUID), path: v.(string)})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// PathFor resolves uri against the root registered for id.
//
// A single leading slash is stripped before resolution. The result must stay
// inside the root; traversal outside it fails with an IllegalArgument error.
func (r *Registry) PathFor(id uuid.UUID, uri string) (string, error) {
	root, ok := r.Path(id)
	if !ok {
		return "", apperrors.NotFound(fmt.Sprintf("no root registered with id %s", id), nil)
	}

	rel := filepath.FromSlash(strings.TrimPrefix(uri, "/"))
	resolved := filepath.Join(root, rel)
	if !Within(root, resolved) {
		return "", apperrors.IllegalArgument(fmt.Sprintf("uri %q resolves outside root", uri), nil).
			WithDetail("root", root)
	}
	return resolved, nil
}

// RootFor returns the registered root owning absPath, choosing the longest
// matching root when roots are nested.
func (r *Registry) RootFor(absPath string) (uuid.UUID, string, error) {
	absPath = filepath.Clean(absPath)

	var (
		bestID   uuid.UUID
		bestPath string
	)
	r.byID.Range(func(k, v any) bool {
		root := v.(string)
		if Within(root, absPath) && len(root) > len(bestPath) {
			bestID, bestPath = k.(uuid.UUID), root
		}
		return true
	})

	if bestPath == "" {
		return uuid.Nil, "", apperrors.IllegalState(fmt.Sprintf("path has not been imported: %s", absPath), nil)
	}
	return bestID, bestPath, nil
}

// URIFor builds the root-relative URI of absPath.
func (r *Registry) URIFor(absPath string) (string, error) {
	_, root, err := r.RootFor(absPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, filepath.Clean(absPath))
	if err != nil {
		return "", apperrors.IllegalState(fmt.Sprintf("path has not been imported: %s", absPath), err)
	}
	if rel == "." {
		rel = ""
	}
	return asset.NormalizeURI(filepath.ToSlash(rel)), nil
}

// Within reports whether p equals root or lies beneath it. Both must be clean.
func Within(root, p string) bool {
	if p == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}
