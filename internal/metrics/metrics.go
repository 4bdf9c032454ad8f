package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/five82/ocupado/internal/device"
)

// Metrics exposes connection and door metrics that are safe to scrape via Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	streamConnects *prometheus.CounterVec
	streamFailures *prometheus.CounterVec
	reconciles     *prometheus.CounterVec
	droppedEvents  *prometheus.CounterVec
	devicesOnline  prometheus.Gauge
	devicesOpen    prometheus.Gauge
}

// New creates a fresh Metrics registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	streamConnects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocupado",
		Name:      "stream_connects_total",
		Help:      "Event streams successfully opened, per device",
	}, []string{"device"})

	streamFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocupado",
		Name:      "stream_failures_total",
		Help:      "Event streams that ended or failed to open, per device",
	}, []string{"device"})

	reconciles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocupado",
		Name:      "reconcile_total",
		Help:      "Door state fetches by outcome",
	}, []string{"device", "result"})

	droppedEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocupado",
		Name:      "dropped_events_total",
		Help:      "Callbacks discarded before touching device state",
	}, []string{"reason"})

	devicesOnline := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ocupado",
		Name:      "devices_online",
		Help:      "Devices currently online",
	})

	devicesOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ocupado",
		Name:      "devices_open",
		Help:      "Devices currently online and open",
	})

	registry.MustRegister(
		streamConnects,
		streamFailures,
		reconciles,
		droppedEvents,
		devicesOnline,
		devicesOpen,
	)

	return &Metrics{
		registry:       registry,
		streamConnects: streamConnects,
		streamFailures: streamFailures,
		reconciles:     reconciles,
		droppedEvents:  droppedEvents,
		devicesOnline:  devicesOnline,
		devicesOpen:    devicesOpen,
	}
}

// StreamConnected counts an opened stream.
func (m *Metrics) StreamConnected(id device.ID) {
	if m == nil {
		return
	}
	m.streamConnects.WithLabelValues(string(id)).Inc()
}

// StreamFailed counts a terminated stream.
func (m *Metrics) StreamFailed(id device.ID) {
	if m == nil {
		return
	}
	m.streamFailures.WithLabelValues(string(id)).Inc()
}

// Reconciled counts a door state fetch; result is "ok", "error" or "rejected".
func (m *Metrics) Reconciled(id device.ID, result string) {
	if m == nil {
		return
	}
	m.reconciles.WithLabelValues(string(id), result).Inc()
}

// Dropped counts a discarded callback.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.droppedEvents.WithLabelValues(reason).Inc()
}

// Publish records the aggregate gauges. It lets Metrics act as a monitor sink.
func (m *Metrics) Publish(view device.View) {
	if m == nil {
		return
	}
	online := 0
	for _, s := range view.Devices {
		if s.Online {
			online++
		}
	}
	m.devicesOnline.Set(float64(online))
	m.devicesOpen.Set(float64(view.OpenCount()))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
