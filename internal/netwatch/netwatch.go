// Package netwatch turns periodic reachability probes into online/offline
// transitions.
package netwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

const (
	defaultInterval     = 10 * time.Second
	defaultOfflineAfter = 2
	maxProbeTimeout     = 5 * time.Second
)

// Prober checks whether the remote service is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// Options configure a Watcher.
type Options struct {
	Prober       Prober
	Interval     time.Duration
	OfflineAfter int // consecutive failures before an online watcher reports offline
	Clock        clock.Clock
	Logger       zerolog.Logger
	// OnChange runs on the watcher goroutine for every transition.
	OnChange func(online bool)
}

type reachability int

const (
	unknown reachability = iota
	online
	offline
)

// Watcher probes on a fixed interval and reports transitions only.
type Watcher struct {
	prober       Prober
	interval     time.Duration
	offlineAfter int
	clock        clock.Clock
	log          zerolog.Logger
	onChange     func(bool)

	state    reachability
	failures int
}

// New validates opts and builds a Watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Prober == nil {
		return nil, fmt.Errorf("netwatch: prober is required")
	}
	w := &Watcher{
		prober:       opts.Prober,
		interval:     opts.Interval,
		offlineAfter: opts.OfflineAfter,
		clock:        opts.Clock,
		log:          opts.Logger.With().Str("component", "netwatch").Logger(),
		onChange:     opts.OnChange,
	}
	if w.interval <= 0 {
		w.interval = defaultInterval
	}
	if w.offlineAfter <= 0 {
		w.offlineAfter = defaultOfflineAfter
	}
	if w.clock == nil {
		w.clock = clock.New()
	}
	if w.onChange == nil {
		w.onChange = func(bool) {}
	}
	return w, nil
}

// Run probes immediately and then on every tick until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		w.check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	timeout := w.interval
	if timeout > maxProbeTimeout {
		timeout = maxProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	err := w.prober.Ping(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	if err == nil {
		w.failures = 0
		if w.state != online {
			w.state = online
			w.log.Info().Msg("network online")
			w.onChange(true)
		}
		return
	}

	w.failures++
	w.log.Debug().Err(err).Int("failures", w.failures).Msg("probe failed")
	// The first verdict is immediate; an established connection needs
	// several consecutive failures before it is declared lost.
	if w.state == unknown || (w.state == online && w.failures >= w.offlineAfter) {
		w.state = offline
		w.log.Warn().Err(err).Msg("network offline")
		w.onChange(false)
	}
}
