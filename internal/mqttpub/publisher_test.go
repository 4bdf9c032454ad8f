package mqttpub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/five82/ocupado/internal/device"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	payload  string
	retained bool
	qos      byte
}

type fakeClient struct {
	mu           sync.Mutex
	sent         []message
	failNext     error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return doneToken{err: err}
	}
	c.sent = append(c.sent, message{topic: topic, payload: payload.(string), retained: retained, qos: qos})
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) messages() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.sent...)
}

func (c *fakeClient) latest() map[string]string {
	out := make(map[string]string)
	for _, m := range c.messages() {
		out[m.topic] = m.payload
	}
	return out
}

func view(statuses ...device.Status) device.View {
	return device.Aggregate(statuses)
}

func TestPublish_SendsRetainedCountAndDevices(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "office", zerolog.Nop())
	defer p.Close()

	p.Publish(view(
		device.Status{ID: "dev1", Name: "Toilet 1", Online: true, Open: true},
		device.Status{ID: "dev2", Name: "Toilet 2", Online: false, Open: true},
	))

	require.Eventually(t, func() bool { return len(fc.messages()) == 3 }, time.Second, 5*time.Millisecond)
	for _, m := range fc.messages() {
		require.True(t, m.retained, "topic %s not retained", m.topic)
		require.Equal(t, byte(qos), m.qos)
	}

	latest := fc.latest()
	require.Equal(t, "1", latest["office/open_count"])

	var dev2 devicePayload
	require.NoError(t, json.Unmarshal([]byte(latest["office/devices/dev2"]), &dev2))
	require.Equal(t, device.StateDisconnected, dev2.State)
	require.True(t, dev2.Open)
}

func TestPublish_SkipsUnchangedTopics(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "", zerolog.Nop())
	defer p.Close()

	closed := device.Status{ID: "dev1", Name: "Toilet 1", Online: true}
	p.Publish(view(closed))
	require.Eventually(t, func() bool { return len(fc.messages()) == 2 }, time.Second, 5*time.Millisecond)

	p.Publish(view(closed))
	opened := closed
	opened.Open = true
	p.Publish(view(opened))

	require.Eventually(t, func() bool { return fc.latest()["ocupado/open_count"] == "1" }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(fc.messages()) == 4 }, time.Second, 5*time.Millisecond)
}

func TestPublish_RetriesTopicAfterFailure(t *testing.T) {
	fc := &fakeClient{failNext: errors.New("not connected")}
	p := newPublisher(fc, "ocupado", zerolog.Nop())
	defer p.Close()

	s := device.Status{ID: "dev1", Name: "Toilet 1", Online: true}
	p.Publish(view(s))
	require.Eventually(t, func() bool { return len(fc.messages()) == 1 }, time.Second, 5*time.Millisecond)
	require.NotContains(t, fc.latest(), "ocupado/open_count")

	p.Publish(view(s))
	require.Eventually(t, func() bool { return fc.latest()["ocupado/open_count"] == "0" }, time.Second, 5*time.Millisecond)
}

func TestClose_DisconnectsOnceAndPublishNeverBlocks(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "ocupado", zerolog.Nop())
	p.Close()
	p.Close()

	fc.mu.Lock()
	require.True(t, fc.disconnected)
	fc.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Publish(view(device.Status{ID: "dev1"}))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after Close")
	}
}

func TestTopics(t *testing.T) {
	p := &Publisher{prefix: "home/toilets"}
	require.Equal(t, "home/toilets/open_count", p.OpenCountTopic())
	require.Equal(t, "home/toilets/devices/abc", p.DeviceTopic("abc"))
}

func TestNew_RequiresBroker(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
