// Package asset defines the records kept for every indexed file and folder.
package asset

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Namespaces for name-based identifiers. Changing either invalidates every
// persisted metadata file.
var (
	assetNamespace = uuid.MustParse("6f1c2a4e-3b7d-4c55-9a0e-2d8f5b1e7c93")
	rootNamespace  = uuid.MustParse("0b9e7d52-81a4-4f3e-b6c1-5a2e9d04f7a8")
)

// Asset describes one binary file under an imported root.
//
// Size, Digest and MediaType are nil until the enrichment pipeline computes
// them. Path is authoritative for all disk operations. Records reachable
// from the catalog are never mutated; updates replace them.
type Asset struct {
	ID        uuid.UUID `json:"id"`
	RootID    uuid.UUID `json:"root-id"`
	Path      string    `json:"path"`
	URI       string    `json:"uri"`
	Size      *int64    `json:"size"`
	Digest    *string   `json:"sha-256"`
	MediaType *string   `json:"media-type"`

	// DigestAlgorithm names the algorithm that produced Digest. Records
	// written without it hold SHA-256 digests.
	DigestAlgorithm string `json:"digest-algorithm,omitempty"`

	// Dirty marks fields computed this cycle that are not yet persisted.
	Dirty bool `json:"-"`
}

// Folder is a synthesized view of a directory that holds indexed assets.
// Folders are never persisted.
type Folder struct {
	ID        uuid.UUID `json:"id"`
	RootID    uuid.UUID `json:"root-id"`
	Path      string    `json:"path"`
	URI       string    `json:"uri"`
	FileCount *int64    `json:"size"`
}

// New returns a fresh record for a file that has no persisted metadata.
func New(rootID uuid.UUID, uri, absPath string) *Asset {
	uri = NormalizeURI(uri)
	return &Asset{
		ID:     IDFor(uri),
		RootID: rootID,
		URI:    uri,
		Path:   absPath,
		Dirty:  true,
	}
}

// NewFolder returns a folder view. FileCount is left nil.
func NewFolder(rootID uuid.UUID, uri, absPath string) *Folder {
	uri = NormalizeURI(uri)
	return &Folder{
		ID:     IDFor(uri),
		RootID: rootID,
		URI:    uri,
		Path:   absPath,
	}
}

// IDFor derives the identifier of the asset at uri. The result depends only
// on the normalized uri, so re-importing a root never changes ids.
func IDFor(uri string) uuid.UUID {
	return uuid.NewMD5(assetNamespace, []byte(NormalizeURI(uri)))
}

// RootIDFor derives the identifier of an import root from its absolute path.
func RootIDFor(absRoot string) uuid.UUID {
	return uuid.NewMD5(rootNamespace, []byte(filepath.Clean(absRoot)))
}

// NormalizeURI returns uri as a cleaned, slash-separated path with exactly
// one leading slash. Normalizing an already normalized uri is a no-op.
func NormalizeURI(uri string) string {
	uri = strings.ReplaceAll(uri, "\\", "/")
	return path.Clean("/" + strings.TrimLeft(uri, "/"))
}

// DefaultDigestAlgorithm is assumed for records that predate DigestAlgorithm.
const DefaultDigestAlgorithm = "SHA-256"

// DigestBy reports whether Digest is set and was produced by algorithm,
// given in canonical form.
func (a *Asset) DigestBy(algorithm string) bool {
	if a.Digest == nil {
		return false
	}
	produced := a.DigestAlgorithm
	if produced == "" {
		produced = DefaultDigestAlgorithm
	}
	return produced == algorithm
}

// Name returns the last element of the asset's URI.
func (a *Asset) Name() string {
	return path.Base(a.URI)
}

// Complete reports whether every derived field has been computed.
func (a *Asset) Complete() bool {
	return a.ID != uuid.Nil && a.Size != nil && a.Digest != nil && a.MediaType != nil
}

// Clone returns a deep copy of a.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	if a.Size != nil {
		v := *a.Size
		c.Size = &v
	}
	if a.Digest != nil {
		v := *a.Digest
		c.Digest = &v
	}
	if a.MediaType != nil {
		v := *a.MediaType
		c.MediaType = &v
	}
	return &c
}
