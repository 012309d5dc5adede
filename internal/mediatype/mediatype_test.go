package mediatype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"simple", "a.txt", "txt", true},
		{"upper case folded", "PHOTO.JPG", "jpg", true},
		{"last extension wins", "archive.tar.gz", "gz", true},
		{"with directories", "/data/x.y/file.MKV", "mkv", true},
		{"no extension", "Makefile", "", false},
		{"dot file", ".profile", "", false},
		{"trailing dot", "name.", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extension(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestByExtension_FallsBackToTable(t *testing.T) {
	got, ok := ByExtension("clip.mkv")
	require.True(t, ok)
	assert.Contains(t, []string{"video/x-matroska", "video/webm"}, got)

	_, ok = ByExtension("noext")
	assert.False(t, ok)
}

func TestProbe_KnownExtension(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(p, []byte("<html></html>"), 0644))

	got, err := Probe(p)
	require.NoError(t, err)
	assert.Equal(t, "text/html", got)
}

func TestProbe_SniffsContentWhenNameIsInconclusive(t *testing.T) {
	// Given: PNG bytes under a name with no extension
	dir := t.TempDir()
	p := filepath.Join(dir, "picture")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, os.WriteFile(p, png, 0644))

	// When: probing
	got, err := Probe(p)

	// Then: the content decides
	require.NoError(t, err)
	assert.Equal(t, "image/png", got)
}

func TestProbe_DetectsBinaryFormatsByMagicNumber(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{"7z archive", []byte("7z\xbc\xaf\x27\x1c\x00\x04"), "application/x-7z-compressed"},
		{"heic image", []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic"), "image/heic"},
		{"gzip stream", []byte("\x1f\x8b\x08\x00\x00\x00\x00\x00"), "application/gzip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: the format's bytes under a name with no extension
			p := filepath.Join(t.TempDir(), "payload")
			require.NoError(t, os.WriteFile(p, tt.content, 0644))

			// When: probing
			got, err := Probe(p)

			// Then: the signature decides
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbe_UnknownBinaryIsOctetStream(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "blob.zzzunknown")
	require.NoError(t, os.WriteFile(p, []byte{0x00, 0x01, 0x02, 0xff, 0xfe}, 0644))

	got, err := Probe(p)
	require.NoError(t, err)
	assert.Equal(t, OctetStream, got)
}

func TestProbe_EmptyFileIsOctetStream(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(p, nil, 0644))

	got, err := Probe(p)
	require.NoError(t, err)
	assert.Equal(t, OctetStream, got)
}

func TestProbe_MissingFileWithoutExtension(t *testing.T) {
	_, err := Probe(filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
}

func TestEssence_DropsParameters(t *testing.T) {
	assert.Equal(t, "text/plain", essence("text/plain; charset=utf-8"))
	assert.Equal(t, "image/png", essence("image/png"))
}
