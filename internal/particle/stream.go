package particle

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

var (
	// ErrStreamClosed is returned when the server ends an event stream.
	ErrStreamClosed = errors.New("event stream closed")
	// ErrStreamIdle is returned when an open stream goes silent for longer
	// than the idle timeout, keepalive comments included.
	ErrStreamIdle = errors.New("event stream idle")
)

const maxFrameLine = 1 << 20

// StreamHandler receives stream callbacks. Callbacks run on the goroutine
// that called Stream, in arrival order.
type StreamHandler struct {
	// OnOpen runs once after the server accepted the subscription.
	OnOpen func()
	// OnEvent runs for each doorMessage and spark/status event.
	OnEvent func(Event)
	// OnMalformed, when set, runs for events whose payload could not be decoded.
	OnMalformed func(name string, err error)
}

// Stream subscribes to the device's event feed and blocks until the stream
// ends. Every return is terminal: the caller decides whether to reconnect.
// A cancelled ctx returns ctx.Err().
func (c *Client) Stream(ctx context.Context, deviceID string, h StreamHandler) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	rel, err := devicePath(deviceID, "events")
	if err != nil {
		return err
	}
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, err := c.newRequest(streamCtx, http.MethodGet, rel)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream %s returned status %d", rel.Path, resp.StatusCode)
	}
	if h.OnOpen != nil {
		h.OnOpen()
	}

	idle := c.streamIdle
	if idle <= 0 {
		idle = streamIdleTimeout
	}
	var idled atomic.Bool
	timer := time.AfterFunc(idle, func() {
		idled.Store(true)
		cancel()
	})
	defer timer.Stop()
	body := &idleReader{r: resp.Body, timer: timer, idle: idle}

	err = decodeStream(body, func(name, data string) {
		if name != EventDoor && name != EventStatus {
			return
		}
		ev, err := parseEvent(name, data)
		if err != nil {
			if h.OnMalformed != nil {
				h.OnMalformed(name, err)
			}
			return
		}
		// Misrouted events for another device are dropped.
		if ev.CoreID != "" && ev.CoreID != strings.TrimSpace(deviceID) {
			return
		}
		if h.OnEvent != nil {
			h.OnEvent(ev)
		}
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if idled.Load() {
		return fmt.Errorf("%w: nothing received for %s", ErrStreamIdle, idle)
	}
	return err
}

// idleReader pushes the idle deadline back whenever bytes arrive.
type idleReader struct {
	r     io.Reader
	timer *time.Timer
	idle  time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.idle)
	}
	return n, err
}

// decodeStream reads Server-Sent Events frames from r and calls dispatch for
// each complete event. Only event and data fields are used; id, retry and
// comment lines are skipped. It returns ErrStreamClosed on a clean EOF.
func decodeStream(r io.Reader, dispatch func(name, data string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameLine)

	var (
		name    string
		data    strings.Builder
		hasData bool
	)
	flush := func() {
		if hasData {
			event := name
			if event == "" {
				event = "message"
			}
			dispatch(event, data.String())
		}
		name = ""
		data.Reset()
		hasData = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return ErrStreamClosed
}
