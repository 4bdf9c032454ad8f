package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/five82/ocupado/internal/device"
	"github.com/five82/ocupado/internal/particle"
)

// DefaultRetryDelay is the fixed wait between a stream ending and the next attempt.
const DefaultRetryDelay = 3 * time.Second

// ErrNotConfigured is returned when the manager lacks devices or a cloud client.
var ErrNotConfigured = errors.New("monitor not configured")

// Cloud is the subset of the Particle client the manager needs.
type Cloud interface {
	Stream(ctx context.Context, deviceID string, h particle.StreamHandler) error
	FetchDoorState(ctx context.Context, deviceID string) (particle.DoorState, error)
}

// Recorder receives connection metrics. *metrics.Metrics satisfies it.
type Recorder interface {
	StreamConnected(id device.ID)
	StreamFailed(id device.ID)
	Reconciled(id device.ID, result string)
	Dropped(reason string)
}

// State is the manager's top-level mode.
type State int

const (
	Inactive State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

// Options configure a Manager.
type Options struct {
	Devices    []device.Spec
	Cloud      Cloud
	Sink       Sink
	Logger     zerolog.Logger
	Clock      clock.Clock // defaults to the wall clock
	RetryDelay time.Duration
	Metrics    Recorder
}

// Manager owns every device record and one supervisor per device while active.
// Record mutations, aggregation and sink notification share a single lock.
type Manager struct {
	log        zerolog.Logger
	cloud      Cloud
	sink       Sink
	clock      clock.Clock
	retryDelay time.Duration
	metrics    Recorder

	// lifecycle serializes Activate and Deactivate so streams from a
	// deactivation are fully closed before the next activation opens new ones.
	lifecycle sync.Mutex

	mu          sync.Mutex
	table       *device.Table
	supervisors map[device.ID]*supervisor
	state       State
}

// New validates opts and builds an inactive manager.
func New(opts Options) (*Manager, error) {
	if opts.Cloud == nil {
		return nil, fmt.Errorf("%w: cloud client is required", ErrNotConfigured)
	}
	table, err := device.NewTable(opts.Devices)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	m := &Manager{
		log:         opts.Logger.With().Str("component", "monitor").Logger(),
		cloud:       opts.Cloud,
		sink:        opts.Sink,
		clock:       opts.Clock,
		retryDelay:  opts.RetryDelay,
		metrics:     opts.Metrics,
		table:       table,
		supervisors: make(map[device.ID]*supervisor, table.Len()),
	}
	if m.sink == nil {
		m.sink = nopSink{}
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.retryDelay <= 0 {
		m.retryDelay = DefaultRetryDelay
	}
	if m.metrics == nil {
		m.metrics = nopRecorder{}
	}
	return m, nil
}

// Activate starts a supervisor for every device that does not already have
// one. Supervisors live until Deactivate or until ctx is cancelled.
func (m *Manager) Activate(ctx context.Context) error {
	if m == nil || m.cloud == nil || m.table == nil {
		return ErrNotConfigured
	}
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	started := 0
	for _, id := range m.table.IDs() {
		if _, running := m.supervisors[id]; running {
			continue
		}
		rec, _ := m.table.Lookup(id)
		sup := newSupervisor(m, rec)
		m.supervisors[id] = sup
		sup.start(ctx)
		started++
	}
	if m.state != Active {
		m.log.Info().Int("devices", m.table.Len()).Msg("activated")
	} else if started > 0 {
		m.log.Debug().Int("restarted", started).Msg("activate restarted missing supervisors")
	}
	m.state = Active
	return nil
}

// Deactivate stops every supervisor, waits for their goroutines to exit,
// then resets all devices to offline and closed and publishes once.
func (m *Manager) Deactivate() {
	if m == nil || m.table == nil {
		return
	}
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	stopped := make([]*supervisor, 0, len(m.supervisors))
	for id, sup := range m.supervisors {
		sup.stop()
		stopped = append(stopped, sup)
		delete(m.supervisors, id)
	}
	for _, id := range m.table.IDs() {
		// Invalidate callbacks still in flight from the stopped connection.
		rec, _ := m.table.Lookup(id)
		rec.Generation++
	}
	m.table.Reset()
	wasActive := m.state == Active
	m.state = Inactive
	m.publishLocked()
	m.mu.Unlock()

	for _, sup := range stopped {
		<-sup.done
	}
	if wasActive {
		m.log.Info().Int("stopped", len(stopped)).Msg("deactivated")
	}
}

// Close stops all supervisors. It is equivalent to Deactivate.
func (m *Manager) Close() {
	m.Deactivate()
}

// State reports whether the manager is active.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot computes the aggregate from the current records.
func (m *Manager) Snapshot() device.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return device.Aggregate(m.table.Statuses())
}

// publishLocked recomputes the aggregate and hands it to the sink.
// Callers hold m.mu.
func (m *Manager) publishLocked() {
	m.sink.Publish(device.Aggregate(m.table.Statuses()))
}

// recordFor returns the record the supervisor may mutate for generation gen.
// Callbacks from a stopped supervisor or an older generation are rejected.
// Callers hold m.mu.
func (m *Manager) recordFor(sup *supervisor, gen uint64) (*device.Record, bool) {
	if m.supervisors[sup.id] != sup {
		m.metrics.Dropped("stopped")
		return nil, false
	}
	rec, err := m.table.Lookup(sup.id)
	if err != nil {
		m.metrics.Dropped("unknown_device")
		return nil, false
	}
	if rec.Generation != gen {
		m.metrics.Dropped("stale_generation")
		return nil, false
	}
	return rec, true
}

// beginAttempt bumps the device's generation for a new connection attempt.
func (m *Manager) beginAttempt(sup *supervisor) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.supervisors[sup.id] != sup {
		return 0, false
	}
	rec, err := m.table.Lookup(sup.id)
	if err != nil {
		return 0, false
	}
	rec.Generation++
	return rec.Generation, true
}

func (m *Manager) handleOpen(sup *supervisor, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recordFor(sup, gen); !ok {
		return false
	}
	m.metrics.StreamConnected(sup.id)
	sup.log.Info().Uint64("generation", gen).Msg("event stream open")
	return true
}

// handleEvent folds a push event into the record. It reports whether the
// event asks for a fresh door state fetch.
func (m *Manager) handleEvent(sup *supervisor, gen uint64, ev particle.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordFor(sup, gen)
	if !ok {
		return false
	}

	refetch := false
	switch ev.Name {
	case particle.EventDoor:
		rec.Open = ev.Data == particle.DoorOpen
		sup.log.Debug().Str("door", ev.Data).Msg("door event")
	case particle.EventStatus:
		// Open keeps its last known value when the device drops; the
		// aggregate already ignores devices that are not online.
		rec.Online = ev.Data == particle.StatusOnline
		refetch = rec.Online
		sup.log.Info().Str("status", ev.Data).Msg("device status event")
	default:
		m.metrics.Dropped("unknown_event")
		return false
	}
	rec.Observe(ev.PublishedAt)
	m.publishLocked()
	return refetch
}

func (m *Manager) handleFailure(sup *supervisor, gen uint64, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordFor(sup, gen)
	if !ok {
		return
	}
	rec.Online = false
	// Fetches still in flight from the ended attempt are stale.
	rec.Generation++
	m.metrics.StreamFailed(sup.id)
	m.publishLocked()
	sup.log.Warn().Err(cause).Dur("retry_in", m.retryDelay).Msg("event stream ended; reconnecting")
}

func (m *Manager) applyDoorState(sup *supervisor, gen uint64, state particle.DoorState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordFor(sup, gen)
	if !ok {
		return
	}
	if state.DeviceID != "" && device.ID(state.DeviceID) != rec.ID() {
		m.metrics.Reconciled(sup.id, "rejected")
		sup.log.Warn().Str("reported_id", state.DeviceID).Msg("door state response for another device ignored")
		return
	}
	rec.Open = state.Open()
	rec.Online = true
	rec.Observe(state.LastHeard)
	m.metrics.Reconciled(sup.id, "ok")
	m.publishLocked()
}

type nopRecorder struct{}

func (nopRecorder) StreamConnected(device.ID)    {}
func (nopRecorder) StreamFailed(device.ID)       {}
func (nopRecorder) Reconciled(device.ID, string) {}
func (nopRecorder) Dropped(string)               {}
