// Package server exposes operational HTTP endpoints for a running assetcache:
// health, readiness, import status and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Aman-CERP/assetcache/internal/async"
	"github.com/Aman-CERP/assetcache/internal/metrics"
	"github.com/Aman-CERP/assetcache/pkg/version"
)

// StatusSource reports the imported roots and their import progress.
type StatusSource interface {
	Roots() map[uuid.UUID]string
	Status(rootID uuid.UUID) (async.ImportProgressSnapshot, error)
}

// RootStatus is one entry of the /status response.
type RootStatus struct {
	ID     uuid.UUID                    `json:"id"`
	Path   string                       `json:"path"`
	Import async.ImportProgressSnapshot `json:"import"`
}

// NewRouter builds the operational routes.
func NewRouter(src StatusSource) *mux.Router {
	h := &handlers{src: src}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.ready).Methods(http.MethodGet)
	r.HandleFunc("/version", h.version).Methods(http.MethodGet)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

type handlers struct {
	src StatusSource
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready succeeds once every registered root has finished importing.
func (h *handlers) ready(w http.ResponseWriter, _ *http.Request) {
	for _, rs := range h.collect() {
		if rs.Import.Status != string(async.StatusReady) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "importing",
				"root":   rs.Path,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.collect())
}

func (h *handlers) collect() []RootStatus {
	out := []RootStatus{}
	for id, p := range h.src.Roots() {
		rs := RootStatus{ID: id, Path: p}
		if snap, err := h.src.Status(id); err == nil {
			rs.Import = snap
		}
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", slog.String("error", err.Error()))
	}
}

// Server runs the router on an address until Shutdown.
type Server struct {
	srv  *http.Server
	done chan error
}

// New creates a server for addr.
func New(addr string, src StatusSource) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(src),
			ReadHeaderTimeout: 10 * time.Second,
		},
		done: make(chan error, 1),
	}
}

// Start listens in the background. Listener failures are logged and
// reported by Shutdown.
func (s *Server) Start() {
	go func() {
		slog.Info("serving operational endpoints", slog.String("addr", s.srv.Addr))
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			slog.Error("operational endpoint failed", slog.String("addr", s.srv.Addr), slog.String("error", err.Error()))
		}
		s.done <- err
	}()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
