// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish forwards completed field records to an MQTT broker as
// JSON messages.
//
// Message Format:
//
//	{"session":"<uuid>","seq":1,"time":"<RFC3339Nano>",
//	 "values":["12","N/A","7","300"],"fields":[12,null,7,300]}
//
// values holds the record as received; fields holds the same values as
// integers, null where a field was unavailable.
package publish

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/potterm/pkg/terminal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrTimeout is returned when the broker does not acknowledge in time
var ErrTimeout = errors.New("mqtt timeout")

// DefaultTimeout bounds connect and publish acknowledgements
const DefaultTimeout = 5 * time.Second

// Client is the subset of mqtt.Client the publisher uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Options configures a publisher
type Options struct {
	Broker    string // e.g. tcp://localhost:1883
	Topic     string
	ClientID  string // defaults to potterm-<session>
	QoS       byte
	Retain    bool
	SessionID string
	Timeout   time.Duration
}

// Message is the JSON payload published for each record
type Message struct {
	Session string                     `json:"session"`
	Seq     uint64                     `json:"seq"`
	Time    string                     `json:"time"`
	Values  [terminal.FieldCount]string `json:"values"`
	Fields  [terminal.FieldCount]*int64 `json:"fields"`
}

// Publisher sends records to one topic
type Publisher struct {
	client Client
	opts   Options
	seq    atomic.Uint64
	now    func() time.Time
	logger zerolog.Logger
}

// Connect dials the broker and returns a publisher using the connection.
// The paho client reconnects on its own after the initial connect.
func Connect(opts Options, logger zerolog.Logger) (*Publisher, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("mqtt broker not set")
	}
	if opts.ClientID == "" {
		opts.ClientID = "potterm-" + opts.SessionID
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger = logger.With().Str("component", "mqtt").Str("broker", opts.Broker).Logger()

	mo := mqtt.NewClientOptions()
	mo.AddBroker(opts.Broker)
	mo.SetClientID(opts.ClientID)
	mo.SetKeepAlive(60 * time.Second)
	mo.SetPingTimeout(10 * time.Second)
	mo.SetConnectTimeout(opts.Timeout)
	mo.SetAutoReconnect(true)
	mo.SetMaxReconnectInterval(30 * time.Second)
	mo.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info().Msg("connected")
	})
	mo.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("connection lost, reconnecting")
	})

	client := mqtt.NewClient(mo)
	token := client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to %s: %w", opts.Broker, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Broker, err)
	}

	return New(client, opts, logger), nil
}

// New creates a publisher over an already connected client
func New(client Client, opts Options, logger zerolog.Logger) *Publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Publisher{
		client: client,
		opts:   opts,
		now:    time.Now,
		logger: logger,
	}
}

// NewMessage builds the payload for one record
func NewMessage(session string, seq uint64, at time.Time, r terminal.FieldRecord) Message {
	msg := Message{
		Session: session,
		Seq:     seq,
		Time:    at.UTC().Format(time.RFC3339Nano),
		Values:  r.Values,
	}
	for i := range msg.Fields {
		if v, ok := r.Int(i); ok {
			msg.Fields[i] = &v
		}
	}
	return msg
}

// Publish sends one record and waits for the broker to acknowledge it
func (p *Publisher) Publish(r terminal.FieldRecord) error {
	msg := NewMessage(p.opts.SessionID, p.seq.Add(1), p.now(), r)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	token := p.client.Publish(p.opts.Topic, p.opts.QoS, p.opts.Retain, payload)
	if !token.WaitTimeout(p.opts.Timeout) {
		return fmt.Errorf("publish to %s: %w", p.opts.Topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.opts.Topic, err)
	}

	p.logger.Debug().Uint64("seq", msg.Seq).Stringer("record", r).Msg("published")
	return nil
}

// Published returns the number of records sent so far
func (p *Publisher) Published() uint64 {
	return p.seq.Load()
}

// Close disconnects from the broker after in-flight work completes
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// DefaultQueueSize is the number of records a Queue buffers while the
// broker is slow
const DefaultQueueSize = 64

// Queue publishes records from a background goroutine, so a receive loop
// never waits on broker acknowledgements. Records that arrive while the
// buffer is full are dropped and counted.
type Queue struct {
	p       *Publisher
	records chan terminal.FieldRecord
	done    chan struct{}
	dropped atomic.Uint64
	once    sync.Once
}

// NewQueue starts publishing through p. A size <= 0 selects
// DefaultQueueSize.
func NewQueue(p *Publisher, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		p:       p,
		records: make(chan terminal.FieldRecord, size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for r := range q.records {
		if err := q.p.Publish(r); err != nil {
			q.p.logger.Warn().Err(err).Msg("publish failed")
		}
	}
}

// Enqueue hands a record to the publishing goroutine without blocking. It
// reports false when the record was dropped. It must not be called after
// Close.
func (q *Queue) Enqueue(r terminal.FieldRecord) bool {
	select {
	case q.records <- r:
		return true
	default:
		n := q.dropped.Add(1)
		q.p.logger.Warn().Uint64("dropped", n).Msg("publish queue full, dropping record")
		return false
	}
}

// Dropped returns the number of records dropped for a full buffer
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close publishes the buffered records, then disconnects the publisher
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.records)
		<-q.done
		q.p.Close()
	})
}
