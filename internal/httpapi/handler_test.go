package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/five82/ocupado/internal/device"
	"github.com/five82/ocupado/internal/metrics"
	"github.com/five82/ocupado/internal/monitor"
	"github.com/five82/ocupado/internal/state"
)

type fixedState monitor.State

func (s fixedState) State() monitor.State { return monitor.State(s) }

func newTestStore() *state.Store {
	store := &state.Store{}
	store.Publish(device.Aggregate([]device.Status{
		{ID: "dev1", Name: "Toilet 1", Online: true, Open: true, LastSeen: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "dev2", Name: "Toilet 2", Online: false},
	}))
	store.SetNetwork(true)
	return store
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	h := NewHandler(zerolog.Nop(), &state.Store{}, nil, nil).Router()

	rec := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestStatus_ReportsSnapshot(t *testing.T) {
	store := newTestStore()
	store.SetError(errors.New("activate: refused"))
	h := NewHandler(zerolog.Nop(), store, fixedState(monitor.Active), nil).Router()

	rec := get(t, h, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, state.NetworkOnline, resp.Network)
	require.Equal(t, "active", resp.Monitor)
	require.Equal(t, 1, resp.OpenCount)
	require.Len(t, resp.Devices, 2)
	require.Equal(t, device.ID("dev1"), resp.Open[0].ID)
	require.Equal(t, uint64(1), resp.Updates)
	require.NotNil(t, resp.LastUpdated)
	require.Contains(t, resp.Error, "refused")
}

func TestStatus_EmptyStoreUsesEmptyLists(t *testing.T) {
	h := NewHandler(zerolog.Nop(), &state.Store{}, nil, nil).Router()

	rec := get(t, h, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Equal(t, state.NetworkChecking, raw["network"])
	require.Equal(t, "inactive", raw["monitor"])
	require.Equal(t, []any{}, raw["devices"])
	require.Equal(t, []any{}, raw["open"])
	require.NotContains(t, raw, "last_updated")
}

func TestDevice_LookupAndNotFound(t *testing.T) {
	h := NewHandler(zerolog.Nop(), newTestStore(), nil, nil).Router()

	rec := get(t, h, "/api/devices/dev2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":"dev2","name":"Toilet 2","online":false,"open":false,"state":"disconnected"}`, rec.Body.String())

	rec = get(t, h, "/api/devices/dev1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":"dev1","name":"Toilet 1","online":true,"open":true,"last_seen":"2024-05-01T10:00:00Z","state":"open"}`, rec.Body.String())

	rec = get(t, h, "/api/devices/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "not_found")
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	m.Publish(newTestStore().Snapshot().View)
	h := NewHandler(zerolog.Nop(), &state.Store{}, nil, m.Handler()).Router()

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ocupado_devices_open 1")
}

func TestMetricsRoute_AbsentWithoutHandler(t *testing.T) {
	h := NewHandler(zerolog.Nop(), &state.Store{}, nil, nil).Router()

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
