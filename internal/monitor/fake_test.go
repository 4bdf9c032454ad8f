package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/five82/ocupado/internal/device"
	"github.com/five82/ocupado/internal/particle"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// fakeStream is one connection attempt. Callbacks are run on the goroutine
// blocked in Stream, the same as the real client.
type fakeStream struct {
	id    string
	ctx   context.Context
	h     particle.StreamHandler
	calls chan func()
	end   chan error
}

func (s *fakeStream) run(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	select {
	case s.calls <- func() { fn(); close(done) }:
	case <-time.After(waitFor):
		t.Fatalf("stream %s is not accepting callbacks", s.id)
	}
	<-done
}

func (s *fakeStream) open(t *testing.T) {
	t.Helper()
	s.run(t, s.h.OnOpen)
}

func (s *fakeStream) emit(t *testing.T, name, data string) {
	t.Helper()
	s.run(t, func() { s.h.OnEvent(particle.Event{Name: name, Data: data}) })
}

func (s *fakeStream) fail(err error) {
	s.end <- err
}

type fetchFunc func(ctx context.Context, id string) (particle.DoorState, error)

type fakeCloud struct {
	mu      sync.Mutex
	streams map[string][]*fakeStream
	fetches map[string]int
	fetch   fetchFunc
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		streams: make(map[string][]*fakeStream),
		fetches: make(map[string]int),
	}
}

func (f *fakeCloud) Stream(ctx context.Context, id string, h particle.StreamHandler) error {
	s := &fakeStream{id: id, ctx: ctx, h: h, calls: make(chan func()), end: make(chan error, 1)}
	f.mu.Lock()
	f.streams[id] = append(f.streams[id], s)
	f.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.end:
			return err
		case fn := <-s.calls:
			fn()
		}
	}
}

func (f *fakeCloud) FetchDoorState(ctx context.Context, id string) (particle.DoorState, error) {
	f.mu.Lock()
	f.fetches[id]++
	fn := f.fetch
	f.mu.Unlock()
	if fn == nil {
		return particle.DoorState{}, errors.New("no fetch configured")
	}
	return fn(ctx, id)
}

func (f *fakeCloud) setFetch(fn fetchFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetch = fn
}

func (f *fakeCloud) attempts(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams[id])
}

func (f *fakeCloud) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

// stream waits for the n-th (1-based) connection attempt of id.
func (f *fakeCloud) stream(t *testing.T, id string, n int) *fakeStream {
	t.Helper()
	require.Eventually(t, func() bool { return f.attempts(id) >= n }, waitFor, tick,
		"device %s never reached attempt %d", id, n)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[id][n-1]
}

// doorResult answers every fetch with result for the requested device.
func doorResult(result string) fetchFunc {
	return func(_ context.Context, id string) (particle.DoorState, error) {
		return particle.DoorState{DeviceID: id, Result: result}, nil
	}
}

// countingRecorder tallies stream failures and dropped callbacks by reason.
type countingRecorder struct {
	mu      sync.Mutex
	failed  map[device.ID]int
	dropped map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		failed:  make(map[device.ID]int),
		dropped: make(map[string]int),
	}
}

func (r *countingRecorder) StreamConnected(device.ID)    {}
func (r *countingRecorder) Reconciled(device.ID, string) {}

func (r *countingRecorder) StreamFailed(id device.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id]++
}

func (r *countingRecorder) Dropped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped[reason]++
}

func (r *countingRecorder) failures(id device.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[id]
}

func (r *countingRecorder) drops(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped[reason]
}

type recordingSink struct {
	mu    sync.Mutex
	views []device.View
}

func (r *recordingSink) Publish(v device.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recordingSink) last() device.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return device.View{}
	}
	return r.views[len(r.views)-1]
}

func statusOf(t *testing.T, m *Manager, id device.ID) device.Status {
	t.Helper()
	for _, s := range m.Snapshot().Devices {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("device %s not in snapshot", id)
	return device.Status{}
}

func openIDs(v device.View) []device.ID {
	ids := make([]device.ID, 0, len(v.Open))
	for _, s := range v.Open {
		ids = append(ids, s.ID)
	}
	return ids
}
