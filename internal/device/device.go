package device

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownDevice is returned when an identifier is not part of the configured set.
var ErrUnknownDevice = errors.New("unknown device")

// ID is the Particle device identifier.
type ID string

// Display states reported by Status.State.
const (
	StateDisconnected = "disconnected"
	StateOpen         = "open"
	StateClosed       = "closed"
)

// Spec describes one configured device.
type Spec struct {
	ID   ID
	Name string
}

// Record is the mutable status of one device. Records are owned by a Table
// and are not safe for concurrent use on their own.
type Record struct {
	id   ID
	name string

	Online     bool
	Open       bool
	LastSeen   time.Time
	Generation uint64
}

// ID returns the immutable identifier.
func (r *Record) ID() ID { return r.id }

// Name returns the display name.
func (r *Record) Name() string { return r.name }

// Observe advances LastSeen to t. Zero and older timestamps are ignored.
func (r *Record) Observe(t time.Time) {
	if t.After(r.LastSeen) {
		r.LastSeen = t
	}
}

// Status returns a copy of the record's current state.
func (r *Record) Status() Status {
	return Status{ID: r.id, Name: r.name, Online: r.Online, Open: r.Open, LastSeen: r.LastSeen}
}

// Status is a value copy of a Record handed to presentation layers.
type Status struct {
	ID       ID        `json:"id"`
	Name     string    `json:"name"`
	Online   bool      `json:"online"`
	Open     bool      `json:"open"`
	LastSeen time.Time `json:"last_seen,omitzero"`
}

// State maps the status onto the icon shown for the device. A device that is
// not online is disconnected regardless of its last known door state.
func (s Status) State() string {
	if !s.Online {
		return StateDisconnected
	}
	if s.Open {
		return StateOpen
	}
	return StateClosed
}

// Table is the fixed, ordered set of device records.
type Table struct {
	order   []ID
	records map[ID]*Record
}

// NewTable builds records for the given specs, preserving their order.
func NewTable(specs []Spec) (*Table, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no devices configured")
	}
	t := &Table{
		order:   make([]ID, 0, len(specs)),
		records: make(map[ID]*Record, len(specs)),
	}
	for _, spec := range specs {
		id := ID(strings.TrimSpace(string(spec.ID)))
		if id == "" {
			return nil, fmt.Errorf("device id is empty")
		}
		if _, dup := t.records[id]; dup {
			return nil, fmt.Errorf("duplicate device id %q", id)
		}
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			name = string(id)
		}
		t.order = append(t.order, id)
		t.records[id] = &Record{id: id, name: name}
	}
	return t, nil
}

// Len returns the number of devices.
func (t *Table) Len() int { return len(t.order) }

// IDs returns the identifiers in configuration order.
func (t *Table) IDs() []ID {
	out := make([]ID, len(t.order))
	copy(out, t.order)
	return out
}

// Lookup returns the record for id or ErrUnknownDevice.
func (t *Table) Lookup(id ID) (*Record, error) {
	rec, ok := t.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	return rec, nil
}

// Statuses copies every record in configuration order.
func (t *Table) Statuses() []Status {
	out := make([]Status, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.records[id].Status())
	}
	return out
}

// Reset marks every device offline and closed.
func (t *Table) Reset() {
	for _, rec := range t.records {
		rec.Online = false
		rec.Open = false
		rec.LastSeen = time.Time{}
	}
}
