// Package mqttpub mirrors the aggregate door state to an MQTT broker as
// retained messages, so home-automation consumers see the current state as
// soon as they subscribe.
package mqttpub

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/five82/ocupado/internal/device"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	quiesceMillis  = 250
)

// Options configure a Publisher.
type Options struct {
	Broker      string
	TopicPrefix string
	ClientID    string // empty generates ocupado-<uuid>
	Username    string
	Password    string
	Logger      zerolog.Logger
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher is a monitor sink. Publish only hands the newest view to a
// background goroutine; views that arrive while the broker is slow are
// coalesced so only the latest is sent.
type Publisher struct {
	client client
	prefix string
	log    zerolog.Logger

	pending chan device.View
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	last map[string]string // topic -> last payload sent, loop goroutine only
}

// New connects to the broker and starts the publish loop.
func New(opts Options) (*Publisher, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("mqttpub: broker is required")
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "ocupado-" + uuid.NewString()
	}

	mo := mqtt.NewClientOptions()
	mo.AddBroker(opts.Broker)
	mo.SetClientID(clientID)
	if opts.Username != "" {
		mo.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		mo.SetPassword(opts.Password)
	}
	mo.SetAutoReconnect(true)
	mo.SetCleanSession(true)
	mo.SetConnectTimeout(connectTimeout)

	log := opts.Logger.With().Str("component", "mqtt").Str("broker", opts.Broker).Logger()
	mo.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})

	c := mqtt.NewClient(mo)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", opts.Broker, err)
	}
	log.Info().Str("client_id", clientID).Msg("mqtt connected")

	return newPublisher(c, opts.TopicPrefix, log), nil
}

func newPublisher(c client, prefix string, log zerolog.Logger) *Publisher {
	if prefix == "" {
		prefix = "ocupado"
	}
	p := &Publisher{
		client:  c,
		prefix:  prefix,
		log:     log,
		pending: make(chan device.View, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		last:    make(map[string]string),
	}
	go p.loop()
	return p
}

// Publish queues view for sending and returns immediately.
func (p *Publisher) Publish(view device.View) {
	view = view.Clone()
	for {
		select {
		case p.pending <- view:
			return
		default:
		}
		// Drop the stale queued view and retry.
		select {
		case <-p.pending:
		default:
		}
	}
}

// Close stops the loop and disconnects. Views still queued are discarded.
func (p *Publisher) Close() {
	p.once.Do(func() {
		close(p.stop)
		<-p.done
		p.client.Disconnect(quiesceMillis)
	})
}

func (p *Publisher) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		case view := <-p.pending:
			p.send(view)
		}
	}
}

type devicePayload struct {
	ID     device.ID `json:"id"`
	Name   string    `json:"name"`
	Online bool      `json:"online"`
	Open   bool      `json:"open"`
	State  string    `json:"state"`
}

func (p *Publisher) send(view device.View) {
	p.publish(p.OpenCountTopic(), strconv.Itoa(view.OpenCount()))
	for _, s := range view.Devices {
		body, err := json.Marshal(devicePayload{
			ID:     s.ID,
			Name:   s.Name,
			Online: s.Online,
			Open:   s.Open,
			State:  s.State(),
		})
		if err != nil {
			p.log.Error().Err(err).Str("device", string(s.ID)).Msg("encode device payload")
			continue
		}
		p.publish(p.DeviceTopic(s.ID), string(body))
	}
}

// publish sends payload retained unless the broker already holds it.
func (p *Publisher) publish(topic, payload string) {
	if p.last[topic] == payload {
		return
	}
	token := p.client.Publish(topic, qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.log.Warn().Str("topic", topic).Msg("mqtt publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warn().Err(err).Str("topic", topic).Msg("mqtt publish failed")
		return
	}
	p.last[topic] = payload
}

// OpenCountTopic is where the number of open devices is published.
func (p *Publisher) OpenCountTopic() string {
	return p.prefix + "/open_count"
}

// DeviceTopic is where one device's status is published.
func (p *Publisher) DeviceTopic(id device.ID) string {
	return p.prefix + "/devices/" + string(id)
}
