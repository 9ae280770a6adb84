// Package publish forwards output events to message brokers.
//
// A Sink is a log.Logger: it is added to the dispatcher's event logger
// chain and forwards events asynchronously, so a slow or unreachable broker
// never delays a command. Events that do not fit the queue are dropped and
// counted.
package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/log"
	"github.com/mycodo-go/mycodo-go/pkg/metrics"
)

// Transport delivers one encoded message.
type Transport interface {
	// Send publishes payload. key is the output's unique ID; kind is the
	// lower-case event category ("command", "state" or "error").
	Send(ctx context.Context, key, kind string, payload []byte) error

	// Close releases the transport.
	Close() error
}

// Message is the JSON form of an event on the wire.
type Message struct {
	Time       time.Time `json:"time"`
	OutputID   string    `json:"unique_id"`
	OutputType string    `json:"output_type,omitempty"`
	Source     string    `json:"source"`
	Category   string    `json:"category"`

	Action    string  `json:"action,omitempty"`
	Qualifier string  `json:"qualifier,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	Result    string  `json:"result,omitempty"`

	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`
	Reason   string `json:"reason,omitempty"`

	Error string `json:"error,omitempty"`
}

// NewMessage converts an event to its wire form.
func NewMessage(e log.Event) Message {
	m := Message{
		Time:       e.Timestamp,
		OutputID:   e.OutputID,
		OutputType: e.OutputType,
		Source:     e.Source.String(),
		Category:   e.Category.String(),
	}
	switch {
	case e.Command != nil:
		m.Action = e.Command.Action
		m.Amount = e.Command.Amount
		m.Qualifier = e.Command.Qualifier
		m.Result = e.Command.Result.String()
	case e.StateChange != nil:
		m.OldState = e.StateChange.OldState
		m.NewState = e.StateChange.NewState
		m.Reason = e.StateChange.Reason
	case e.Error != nil:
		m.Error = e.Error.Message
	}
	return m
}

// Config configures a Sink.
type Config struct {
	// Name labels the sink in logs and metrics ("mqtt", "kafka").
	Name string

	// Buffer is the queue length. Default 256.
	Buffer int

	// Categories limits forwarding to these categories. Empty forwards all.
	Categories []log.Category

	// SendTimeout bounds one Send. Default 5s.
	SendTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Sink queues events and forwards them through a Transport.
type Sink struct {
	transport Transport
	config    Config
	queue     chan log.Event
	accept    map[log.Category]bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewSink creates a sink. Call Run to start forwarding.
func NewSink(t Transport, cfg Config) *Sink {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	s := &Sink{
		transport: t,
		config:    cfg,
		queue:     make(chan log.Event, cfg.Buffer),
	}
	if len(cfg.Categories) > 0 {
		s.accept = make(map[log.Category]bool)
		for _, c := range cfg.Categories {
			s.accept[c] = true
		}
	}
	return s
}

// Log queues an event without blocking.
func (s *Sink) Log(e log.Event) {
	if s.accept != nil && !s.accept[e.Category] {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
		s.config.Metrics.PublishFailed(s.config.Name)
	}
}

// Run forwards queued events until ctx is done, then flushes what is left
// and closes the transport.
func (s *Sink) Run(ctx context.Context) error {
	defer s.transport.Close()

	for {
		select {
		case e := <-s.queue:
			s.send(ctx, e)
		case <-ctx.Done():
			s.flush()
			return nil
		}
	}
}

func (s *Sink) flush() {
	ctx := context.Background()
	for {
		select {
		case e := <-s.queue:
			s.send(ctx, e)
		default:
			return
		}
	}
}

func (s *Sink) send(ctx context.Context, e log.Event) {
	payload, err := json.Marshal(NewMessage(e))
	if err != nil {
		s.failed(e, err)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, s.config.SendTimeout)
	defer cancel()

	if err := s.transport.Send(sctx, e.OutputID, strings.ToLower(e.Category.String()), payload); err != nil {
		s.failed(e, err)
		return
	}
	s.sent.Add(1)
}

func (s *Sink) failed(e log.Event, err error) {
	s.dropped.Add(1)
	s.config.Metrics.PublishFailed(s.config.Name)
	if s.config.Logger != nil {
		s.config.Logger.Warn("event publish failed", "sink", s.config.Name, "output_id", e.OutputID, "error", err)
	}
}

// Sent returns the number of events delivered.
func (s *Sink) Sent() uint64 { return s.sent.Load() }

// Dropped returns the number of events lost to a full queue or send error.
func (s *Sink) Dropped() uint64 { return s.dropped.Load() }

var _ log.Logger = (*Sink)(nil)
