package monitor

import "github.com/five82/ocupado/internal/device"

// Sink receives the aggregate view after every device state change.
// Publish is called with the manager's lock held and must not block.
type Sink interface {
	Publish(device.View)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(device.View)

// Publish calls f.
func (f SinkFunc) Publish(v device.View) { f(v) }

// Fanout publishes to several sinks, each receiving its own copy.
type Fanout []Sink

// Publish forwards v to every non-nil sink.
func (f Fanout) Publish(v device.View) {
	for _, s := range f {
		if s != nil {
			s.Publish(v.Clone())
		}
	}
}

type nopSink struct{}

func (nopSink) Publish(device.View) {}
