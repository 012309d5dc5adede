package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/assetcache/internal/asset"
	"github.com/Aman-CERP/assetcache/internal/async"
)

func TestRenderImport_Plain(t *testing.T) {
	// Given: a plain renderer and a finished import
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)

	// When: rendering it
	r.RenderImport(async.ImportProgressSnapshot{
		Root:            "/srv/media",
		Status:          "ready",
		FilesDiscovered: 3,
		FilesEnriched:   3,
		ElapsedSeconds:  0.25,
	})

	// Then: the summary is readable without escape codes
	out := buf.String()
	assert.Contains(t, out, "Imported /srv/media")
	assert.Contains(t, out, "ready")
	assert.Contains(t, out, "Enriched:")
	assert.Contains(t, out, "250ms")
	assert.NotContains(t, out, "Failed:")
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderAssets_MissingFields(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true)
	size := int64(2048)
	mt := "image/png"

	r.RenderAssets([]*asset.Asset{
		{URI: "/a.png", Size: &size, MediaType: &mt},
		{URI: "/b.bin"},
	})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "/a.png  2.0 KB  image/png  -")
	assert.Contains(t, string(lines[1]), "/b.bin  -  -  -")
}

func TestRenderFolders(t *testing.T) {
	var buf bytes.Buffer
	n := int64(4)
	NewRenderer(&buf, true).RenderFolders([]*asset.Folder{{URI: "/b", FileCount: &n}})
	assert.Contains(t, buf.String(), "/b  4 files")
}

func TestRenderSweep(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, true).RenderSweep(10, 2, 1, 1500*time.Millisecond)
	out := buf.String()
	assert.Contains(t, out, "Checked:    10")
	assert.Contains(t, out, "Unreadable:")
	assert.Contains(t, out, "1.5s")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, true).RenderJSON(map[string]int{"evicted": 2}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["evicted"])
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
	assert.Equal(t, "1.0 GB", FormatBytes(1024*1024*1024))
}
