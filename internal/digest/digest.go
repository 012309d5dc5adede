// Package digest computes content digests over byte streams.
//
// A Service holds one prototype hasher per configured algorithm. Every
// computation clones the prototype instead of sharing it, so a single
// Service is safe for concurrent use from any number of goroutines.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
)

// ChunkSize is the read buffer size used when streaming content into a hasher.
const ChunkSize = 8192

// Supported algorithm names.
const (
	MD5    = "MD5"
	SHA1   = "SHA-1"
	SHA256 = "SHA-256"
	SHA512 = "SHA-512"
	BLAKE3 = "BLAKE3"
)

// Encoding selects how a finished digest is rendered as text.
type Encoding int

const (
	// Base64 is standard padded base64, the format persisted in metadata files.
	Base64 Encoding = iota
	// Hex is lowercase hexadecimal.
	Hex
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case Base64:
		return "base64"
	case Hex:
		return "hex"
	default:
		return "unknown"
	}
}

// prototype produces independent hashers that start from a cached state.
type prototype interface {
	clone() (hash.Hash, error)
}

// stateful clones stdlib hashers by restoring a marshaled initial state.
type stateful struct {
	newFn func() hash.Hash
	state []byte
}

func newStateful(newFn func() hash.Hash) (*stateful, error) {
	h := newFn()
	m, ok := h.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("hasher %T cannot be marshaled", h)
	}
	state, err := m.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal hasher state: %w", err)
	}
	return &stateful{newFn: newFn, state: state}, nil
}

func (s *stateful) clone() (hash.Hash, error) {
	h := s.newFn()
	if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(s.state); err != nil {
		return nil, fmt.Errorf("restore hasher state: %w", err)
	}
	return h, nil
}

// blake3Prototype clones a zeebo/blake3 hasher.
type blake3Prototype struct {
	h *blake3.Hasher
}

func (b *blake3Prototype) clone() (hash.Hash, error) {
	return b.h.Clone(), nil
}

// constructors maps canonical algorithm names to their prototype factories.
var constructors = map[string]func() (prototype, error){
	MD5:    func() (prototype, error) { return newStateful(md5.New) },
	SHA1:   func() (prototype, error) { return newStateful(sha1.New) },
	SHA256: func() (prototype, error) { return newStateful(sha256.New) },
	SHA512: func() (prototype, error) { return newStateful(sha512.New) },
	BLAKE3: func() (prototype, error) { return &blake3Prototype{h: blake3.New()}, nil },
}

// Canonical normalizes an algorithm name ("sha256", "Sha-256") to its
// canonical form. ok is false for unsupported algorithms.
func Canonical(name string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	switch key {
	case "SHA256":
		key = SHA256
	case "SHA1":
		key = SHA1
	case "SHA512":
		key = SHA512
	}
	if _, ok := constructors[key]; !ok {
		return "", false
	}
	return key, true
}

// Service computes digests using prototypes built once at construction.
// The prototype map is never mutated after New returns.
type Service struct {
	prototypes map[string]prototype
}

// New builds a Service for the given algorithms. An unknown algorithm is a
// configuration error and is reported immediately.
func New(algorithms ...string) (*Service, error) {
	if len(algorithms) == 0 {
		algorithms = []string{SHA256}
	}

	s := &Service{prototypes: make(map[string]prototype, len(algorithms))}
	for _, name := range algorithms {
		canonical, ok := Canonical(name)
		if !ok {
			return nil, apperrors.New(apperrors.ErrCodeUnsupportedHashAlgo,
				fmt.Sprintf("unsupported hash algorithm: %s", name), nil).
				WithSuggestion("use one of " + strings.Join(Supported(), ", "))
		}
		if _, exists := s.prototypes[canonical]; exists {
			continue
		}
		p, err := constructors[canonical]()
		if err != nil {
			return nil, apperrors.ConfigError(fmt.Sprintf("initialize %s", canonical), err)
		}
		s.prototypes[canonical] = p
	}
	return s, nil
}

// Supported returns every algorithm name the package knows, sorted.
func Supported() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Algorithms returns the algorithms this Service was built with, sorted.
func (s *Service) Algorithms() []string {
	names := make([]string, 0, len(s.prototypes))
	for name := range s.prototypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hasher returns a fresh, independent hasher for the algorithm.
func (s *Service) Hasher(algorithm string) (hash.Hash, error) {
	canonical, ok := Canonical(algorithm)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeUnsupportedHashAlgo,
			fmt.Sprintf("unsupported hash algorithm: %s", algorithm), nil)
	}
	p, ok := s.prototypes[canonical]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeUnsupportedHashAlgo,
			fmt.Sprintf("hash algorithm not configured: %s", canonical), nil)
	}
	return p.clone()
}

// Sum streams r through a cloned hasher in ChunkSize reads and returns the
// encoded digest.
func (s *Service) Sum(algorithm string, r io.Reader, enc Encoding) (string, error) {
	h, err := s.Hasher(algorithm)
	if err != nil {
		return "", err
	}
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return Encode(h.Sum(nil), enc), nil
}

// SumFile digests the file at path.
func (s *Service) SumFile(algorithm, path string, enc Encoding) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	return s.Sum(algorithm, f, enc)
}

// Encode renders raw digest bytes.
func Encode(sum []byte, enc Encoding) string {
	if enc == Hex {
		return hex.EncodeToString(sum)
	}
	return base64.StdEncoding.EncodeToString(sum)
}
