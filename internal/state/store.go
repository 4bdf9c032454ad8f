package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/ocupado/internal/device"
)

// Network labels shown to the user.
const (
	NetworkChecking = "Checking connection to Internet..."
	NetworkOnline   = "Online"
	NetworkOffline  = "Offline"
)

// Snapshot represents the latest data available to presentation layers.
type Snapshot struct {
	View        device.View
	HasView     bool
	Network     string
	LastUpdated time.Time
	Updates     uint64 // number of views published so far
	LastError   error
}

// OpenCount returns the number of devices online and open.
func (s Snapshot) OpenCount() int {
	return s.View.OpenCount()
}

// NetworkLabel returns the network label, defaulting to NetworkChecking
// before the first probe.
func (s Snapshot) NetworkLabel() string {
	if s.Network == "" {
		return NetworkChecking
	}
	return s.Network
}

// Store coordinates concurrent updates to the snapshot. The zero value is
// ready to use.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Publish replaces the stored view. It satisfies monitor.Sink and never blocks
// beyond the copy.
func (s *Store) Publish(view device.View) {
	dup := view.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.View = dup
	s.snapshot.HasView = true
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.Updates++
}

// SetNetwork records the latest network availability.
func (s *Store) SetNetwork(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if online {
		s.snapshot.Network = NetworkOnline
	} else {
		s.snapshot.Network = NetworkOffline
	}
}

// SetError records the latest error worth surfacing, or clears it with nil.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastError = err
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.View = s.snapshot.View.Clone()
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}
