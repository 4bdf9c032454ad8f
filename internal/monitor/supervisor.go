package monitor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/five82/ocupado/internal/device"
	"github.com/five82/ocupado/internal/particle"
)

// supervisor keeps one event stream open for one device, reconnecting after
// a fixed delay until stopped.
type supervisor struct {
	m   *Manager
	id  device.ID
	log zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	// fetches tracks reconcile goroutines; Add only runs on the run goroutine.
	fetches sync.WaitGroup
}

func newSupervisor(m *Manager, rec *device.Record) *supervisor {
	return &supervisor{
		m:    m,
		id:   rec.ID(),
		log:  m.log.With().Str("device", string(rec.ID())).Str("name", rec.Name()).Logger(),
		done: make(chan struct{}),
	}
}

func (s *supervisor) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	go s.run(ctx)
}

// stop cancels the stream, any in-flight fetch and any pending retry timer.
// It does not wait; done closes once everything has exited.
func (s *supervisor) stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer s.fetches.Wait()

	for {
		gen, ok := s.m.beginAttempt(s)
		if !ok {
			return
		}

		err := s.connect(ctx, gen)
		if ctx.Err() != nil {
			return
		}
		s.m.handleFailure(s, gen, err)

		timer := s.m.clock.Timer(s.m.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connect runs one connection attempt. Fetches started by the attempt are
// cancelled when it ends.
func (s *supervisor) connect(ctx context.Context, gen uint64) error {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.log.Debug().Uint64("generation", gen).Msg("opening event stream")
	return s.m.cloud.Stream(attemptCtx, string(s.id), particle.StreamHandler{
		OnOpen: func() {
			if s.m.handleOpen(s, gen) {
				s.reconcile(attemptCtx, gen)
			}
		},
		OnEvent: func(ev particle.Event) {
			if s.m.handleEvent(s, gen, ev) {
				s.reconcile(attemptCtx, gen)
			}
		},
		OnMalformed: func(name string, err error) {
			s.m.metrics.Dropped("malformed")
			s.log.Warn().Err(err).Str("event", name).Msg("malformed event ignored")
		},
	})
}
