package index

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/assetcache/internal/asset"
	"github.com/Aman-CERP/assetcache/internal/catalog"
	"github.com/Aman-CERP/assetcache/internal/digest"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
	"github.com/Aman-CERP/assetcache/internal/mediatype"
	"github.com/Aman-CERP/assetcache/internal/metastore"
	"github.com/Aman-CERP/assetcache/internal/metrics"
	"github.com/Aman-CERP/assetcache/internal/roots"
)

// Pipeline stage names, used in logs and metrics.
const (
	stageRehydrate = "rehydrate"
	stageDigest    = "digest"
	stageMediaType = "media_type"
	stageSize      = "size"
	stagePersist   = "persist"
)

// PipelineConfig wires the enrichment pipeline.
type PipelineConfig struct {
	Registry  *roots.Registry
	Catalog   *catalog.Catalog
	Store     *metastore.Store
	Digests   *digest.Service
	Algorithm string
}

// Pipeline turns a file path into an indexed asset record:
// rehydrate -> identify -> digest -> media type -> size -> persist -> insert.
// Every stage after rehydration only fills fields that are still nil.
type Pipeline struct {
	config PipelineConfig
}

// NewPipeline creates a pipeline. Algorithm defaults to SHA-256.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Algorithm == "" {
		cfg.Algorithm = digest.SHA256
	}
	if canonical, ok := digest.Canonical(cfg.Algorithm); ok {
		cfg.Algorithm = canonical
	}
	return &Pipeline{config: cfg}
}

// Process runs path through every stage and inserts the result into the
// catalog. With refresh set, persisted derived fields are discarded and
// recomputed, as for a file whose content changed.
//
// Stage I/O failures are logged and leave their field nil; only a path that
// belongs to no registered root is returned as an error.
func (p *Pipeline) Process(path string, refresh bool) (*asset.Asset, error) {
	rootID, _, err := p.config.Registry.RootFor(path)
	if err != nil {
		return nil, err
	}
	uri, err := p.config.Registry.URIFor(path)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(path)

	a := p.rehydrate(rootID, uri, path)
	if a.Path != path {
		a.Path = path
		a.Dirty = true
	}
	if refresh || (statErr == nil && a.Size != nil && *a.Size != info.Size()) {
		p.invalidate(a)
	}
	if a.Digest != nil && !a.DigestBy(p.config.Algorithm) {
		a.Digest, a.DigestAlgorithm = nil, ""
		a.Dirty = true
	}

	p.computeDigest(a)
	p.probeMediaType(a)
	p.computeSize(a, info, statErr)

	if a.Dirty {
		if err := p.config.Store.Save(a); err != nil {
			p.stageFailed(stagePersist, a.Path, err)
		} else {
			metrics.RecordsPersistedTotal.Inc()
		}
	}

	p.config.Catalog.Insert(a)
	metrics.FilesEnrichedTotal.Inc()

	// A delete that raced the stages above must not leave a dangling entry.
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		p.config.Catalog.Remove(path)
		if err := p.config.Store.Delete(a.RootID, a.ID); err != nil {
			slog.Warn("failed to delete metadata for vanished file",
				slog.String("path", path),
				apperrors.LogAttr(err))
		}
		return nil, fmt.Errorf("file vanished during enrichment: %s", path)
	}

	return a, nil
}

func (p *Pipeline) rehydrate(rootID uuid.UUID, uri, path string) *asset.Asset {
	fresh := asset.New(rootID, uri, path)
	loaded, ok, err := p.config.Store.Load(fresh.RootID, fresh.ID)
	if err != nil {
		p.stageFailed(stageRehydrate, path, err)
		return fresh
	}
	if !ok {
		return fresh
	}
	metrics.RecordsRehydratedTotal.Inc()
	return loaded
}

func (p *Pipeline) invalidate(a *asset.Asset) {
	if a.Size == nil && a.Digest == nil && a.MediaType == nil {
		return
	}
	a.Size, a.Digest, a.MediaType = nil, nil, nil
	a.DigestAlgorithm = ""
	a.Dirty = true
}

func (p *Pipeline) computeDigest(a *asset.Asset) {
	if a.Digest != nil {
		return
	}
	start := time.Now()
	sum, err := p.config.Digests.SumFile(p.config.Algorithm, a.Path, digest.Base64)
	if err != nil {
		p.stageFailed(stageDigest, a.Path, err)
		return
	}
	metrics.DigestsComputedTotal.WithLabelValues(p.config.Algorithm).Inc()
	metrics.DigestDuration.Observe(time.Since(start).Seconds())
	a.Digest = &sum
	a.DigestAlgorithm = p.config.Algorithm
	a.Dirty = true
}

func (p *Pipeline) probeMediaType(a *asset.Asset) {
	if a.MediaType != nil {
		return
	}
	mt, err := mediatype.Probe(a.Path)
	if err != nil {
		p.stageFailed(stageMediaType, a.Path, err)
		return
	}
	a.MediaType = &mt
	a.Dirty = true
}

func (p *Pipeline) computeSize(a *asset.Asset, info os.FileInfo, statErr error) {
	if a.Size != nil {
		return
	}
	if statErr != nil {
		p.stageFailed(stageSize, a.Path, statErr)
		return
	}
	size := info.Size()
	a.Size = &size
	a.Dirty = true
}

func (p *Pipeline) stageFailed(stage, path string, err error) {
	metrics.StageFailuresTotal.WithLabelValues(stage).Inc()
	slog.Warn("enrichment stage failed",
		slog.String("stage", stage),
		slog.String("path", path),
		apperrors.LogAttr(err))
}
