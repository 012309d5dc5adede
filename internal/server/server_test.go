package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/assetcache/internal/async"
	apperrors "github.com/Aman-CERP/assetcache/internal/errors"
)

type fakeSource struct {
	roots  map[uuid.UUID]string
	status map[uuid.UUID]async.ImportProgressSnapshot
}

func (f *fakeSource) Roots() map[uuid.UUID]string { return f.roots }

func (f *fakeSource) Status(id uuid.UUID) (async.ImportProgressSnapshot, error) {
	s, ok := f.status[id]
	if !ok {
		return async.ImportProgressSnapshot{}, apperrors.NotFound("no import", nil)
	}
	return s, nil
}

func newSource(states ...string) *fakeSource {
	src := &fakeSource{roots: map[uuid.UUID]string{}, status: map[uuid.UUID]async.ImportProgressSnapshot{}}
	for i, st := range states {
		id := uuid.New()
		p := "/srv/" + string(rune('a'+i))
		src.roots[id] = p
		src.status[id] = async.ImportProgressSnapshot{Root: p, Status: st}
	}
	return src
}

func get(t *testing.T, src StatusSource, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(src).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newSource(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReadyz(t *testing.T) {
	// Given: one root still importing
	src := newSource("ready", "importing")

	// Then: not ready
	assert.Equal(t, http.StatusServiceUnavailable, get(t, src, "/readyz").Code)

	// When: every root is ready
	for id, s := range src.status {
		s.Status = "ready"
		src.status[id] = s
	}

	// Then: ready
	assert.Equal(t, http.StatusOK, get(t, src, "/readyz").Code)
}

func TestStatus_SortedByPath(t *testing.T) {
	rec := get(t, newSource("ready", "importing"), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []RootStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "/srv/a", got[0].Path)
	assert.Equal(t, "ready", got[0].Import.Status)
	assert.Equal(t, "importing", got[1].Import.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newSource(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "assetcache_"))
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(newSource()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
