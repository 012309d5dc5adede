// Package catalog holds the in-memory hierarchical asset index.
//
// Every directory between an asset and its import root owns a child map
// holding that asset, so subtree queries are a single map read. Each child
// map carries its own lock; the directory table itself is a sync.Map.
package catalog

import (
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/assetcache/internal/asset"
	"github.com/Aman-CERP/assetcache/internal/roots"
)

// RootChecker reports whether a directory is a registered import root.
// The ancestor walk of Insert and Remove stops at the first root it meets.
type RootChecker interface {
	IsRoot(absPath string) bool
}

// ListOptions controls ListChildren output.
type ListOptions struct {
	// Sort orders results by path.
	Sort bool
	// Offset skips this many results.
	Offset int
	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Paged reports whether Offset or Limit apply.
func (o ListOptions) Paged() bool {
	return o.Offset > 0 || o.Limit > 0
}

// clamped treats negative Offset and Limit as zero.
func (o ListOptions) clamped() ListOptions {
	o.Offset = max(o.Offset, 0)
	o.Limit = max(o.Limit, 0)
	return o
}

type children struct {
	mu     sync.RWMutex
	assets map[string]*asset.Asset
}

func (c *children) put(a *asset.Asset) bool {
	c.mu.Lock()
	_, existed := c.assets[a.Path]
	c.assets[a.Path] = a
	c.mu.Unlock()
	return !existed
}

func (c *children) remove(p string) (*asset.Asset, bool) {
	c.mu.Lock()
	a, ok := c.assets[p]
	delete(c.assets, p)
	c.mu.Unlock()
	return a, ok
}

func (c *children) snapshot() []*asset.Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*asset.Asset, 0, len(c.assets))
	for _, a := range c.assets {
		out = append(out, a)
	}
	return out
}

func (c *children) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.assets)
}

// Catalog is the concurrent two-level map: directory -> (file path -> asset).
// Stored assets are treated as immutable; updates replace the record.
type Catalog struct {
	dirs  sync.Map // string -> *children
	roots RootChecker
	files atomic.Int64
}

// New creates an empty catalog.
func New(rc RootChecker) *Catalog {
	return &Catalog{roots: rc}
}

func (c *Catalog) dir(p string) *children {
	if v, ok := c.dirs.Load(p); ok {
		return v.(*children)
	}
	v, _ := c.dirs.LoadOrStore(p, &children{assets: make(map[string]*asset.Asset)})
	return v.(*children)
}

// ancestors calls fn for every directory from the parent of p up to and
// including the first registered root.
func (c *Catalog) ancestors(p string, fn func(dir string)) {
	d := filepath.Dir(filepath.Clean(p))
	for {
		fn(d)
		if c.roots.IsRoot(d) {
			return
		}
		parent := filepath.Dir(d)
		if parent == d {
			return
		}
		d = parent
	}
}

// lineage calls fn for every directory from the parent of p up to the
// filesystem root. Removal uses it so an entry inserted before a nested root
// was registered is still dropped from the outer root's folders.
func (c *Catalog) lineage(p string, fn func(dir string)) {
	d := filepath.Dir(filepath.Clean(p))
	for {
		fn(d)
		parent := filepath.Dir(d)
		if parent == d {
			return
		}
		d = parent
	}
}

// Insert adds or replaces a under every ancestor directory.
func (c *Catalog) Insert(a *asset.Asset) {
	parent := filepath.Dir(filepath.Clean(a.Path))
	c.ancestors(a.Path, func(d string) {
		added := c.dir(d).put(a)
		if added && d == parent {
			c.files.Add(1)
		}
	})
}

// Remove deletes the asset at absPath from every directory above it and
// returns the record that was held by its parent, if any.
func (c *Catalog) Remove(absPath string) (*asset.Asset, bool) {
	absPath = filepath.Clean(absPath)
	parent := filepath.Dir(absPath)

	var (
		removed *asset.Asset
		found   bool
	)
	c.lineage(absPath, func(d string) {
		v, ok := c.dirs.Load(d)
		if !ok {
			return
		}
		a, ok := v.(*children).remove(absPath)
		if ok && d == parent {
			removed, found = a, true
			c.files.Add(-1)
		}
	})
	return removed, found
}

// RemoveTree removes every asset beneath dir, then forgets dir and its
// subdirectories. It returns the removed assets.
func (c *Catalog) RemoveTree(dir string) []*asset.Asset {
	dir = filepath.Clean(dir)

	var removed []*asset.Asset
	for _, a := range c.Children(dir) {
		if r, ok := c.Remove(a.Path); ok {
			removed = append(removed, r)
		}
	}
	for _, d := range c.Folders(dir) {
		c.dirs.Delete(d)
	}
	return removed
}

// Get returns the asset stored for absPath.
func (c *Catalog) Get(absPath string) (*asset.Asset, bool) {
	absPath = filepath.Clean(absPath)
	v, ok := c.dirs.Load(filepath.Dir(absPath))
	if !ok {
		return nil, false
	}
	ch := v.(*children)
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	a, ok := ch.assets[absPath]
	return a, ok
}

// Has reports whether dir is a known folder.
func (c *Catalog) Has(dir string) bool {
	_, ok := c.dirs.Load(filepath.Clean(dir))
	return ok
}

// Children returns every asset beneath dir in no particular order.
func (c *Catalog) Children(dir string) []*asset.Asset {
	v, ok := c.dirs.Load(filepath.Clean(dir))
	if !ok {
		return nil
	}
	return v.(*children).snapshot()
}

// ListChildren returns the assets beneath dir shaped by opts. The boolean is
// false when dir is not a known folder.
func (c *Catalog) ListChildren(dir string, opts ListOptions) ([]*asset.Asset, bool) {
	dir = filepath.Clean(dir)
	opts = opts.clamped()
	v, ok := c.dirs.Load(dir)
	if !ok {
		return nil, false
	}
	list := v.(*children).snapshot()

	if !c.roots.IsRoot(dir) {
		kept := list[:0]
		for _, a := range list {
			if roots.Within(dir, a.Path) {
				kept = append(kept, a)
			}
		}
		list = kept
	}

	if opts.Sort {
		sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
	}

	if opts.Paged() {
		if opts.Offset >= len(list) {
			return []*asset.Asset{}, true
		}
		list = list[opts.Offset:]
		if opts.Limit > 0 && opts.Limit < len(list) {
			list = list[:opts.Limit]
		}
	}
	return list, true
}

// Count returns the number of assets beneath dir.
func (c *Catalog) Count(dir string) (int, bool) {
	v, ok := c.dirs.Load(filepath.Clean(dir))
	if !ok {
		return 0, false
	}
	return v.(*children).len(), true
}

// Folders returns the known folders at or beneath prefix, sorted.
func (c *Catalog) Folders(prefix string) []string {
	prefix = filepath.Clean(prefix)
	var out []string
	c.dirs.Range(func(k, _ any) bool {
		d := k.(string)
		if roots.Within(prefix, d) {
			out = append(out, d)
		}
		return true
	})
	sort.Strings(out)
	return out
}

// Len returns the number of distinct assets held.
func (c *Catalog) Len() int {
	return int(c.files.Load())
}
