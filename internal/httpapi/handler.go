// Package httpapi serves a read-only status API next to the dashboard.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/five82/ocupado/internal/device"
	"github.com/five82/ocupado/internal/monitor"
	"github.com/five82/ocupado/internal/state"
)

const shutdownTimeout = 5 * time.Second

// SnapshotSource is the read side of state.Store.
type SnapshotSource interface {
	Snapshot() state.Snapshot
}

// StateReporter reports whether streams are running.
type StateReporter interface {
	State() monitor.State
}

type Handler struct {
	log     zerolog.Logger
	store   SnapshotSource
	monitor StateReporter
	metrics http.Handler
}

// NewHandler wires the status routes. mon and metrics may be nil.
func NewHandler(log zerolog.Logger, store SnapshotSource, mon StateReporter, metrics http.Handler) *Handler {
	return &Handler{
		log:     log.With().Str("component", "httpapi").Logger(),
		store:   store,
		monitor: mon,
		metrics: metrics,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	r.Get("/healthz", h.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/devices/{id}", h.handleDevice)
	})

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (h *Handler) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.log.Info().Str("addr", addr).Msg("status api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type statusResponse struct {
	Network     string          `json:"network"`
	Monitor     string          `json:"monitor"`
	OpenCount   int             `json:"open_count"`
	Devices     []device.Status `json:"devices"`
	Open        []device.Status `json:"open"`
	Updates     uint64          `json:"updates"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()

	resp := statusResponse{
		Network:   snap.NetworkLabel(),
		Monitor:   monitor.Inactive.String(),
		OpenCount: snap.OpenCount(),
		Devices:   snap.View.Devices,
		Open:      snap.View.Open,
		Updates:   snap.Updates,
	}
	if h.monitor != nil {
		resp.Monitor = h.monitor.State().String()
	}
	if resp.Devices == nil {
		resp.Devices = []device.Status{}
	}
	if resp.Open == nil {
		resp.Open = []device.Status{}
	}
	if !snap.LastUpdated.IsZero() {
		ts := snap.LastUpdated
		resp.LastUpdated = &ts
	}
	if snap.LastError != nil {
		resp.Error = snap.LastError.Error()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request) {
	id := device.ID(chi.URLParam(r, "id"))
	for _, d := range h.store.Snapshot().View.Devices {
		if d.ID == id {
			h.writeJSON(w, http.StatusOK, struct {
				device.Status
				State string `json:"state"`
			}{d, d.State()})
			return
		}
	}
	h.writeError(w, http.StatusNotFound, "not_found", "unknown device")
}
