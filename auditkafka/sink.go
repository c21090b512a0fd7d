package auditkafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrEthical07/authcore"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "auth_events"

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Sink is an authcore.AuditSink backed by Kafka.
type Sink struct {
	writer  MessageWriter
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	failed atomic.Uint64
}

// New builds a sink over a kafka.Writer for cfg.
func New(cfg Config, logger *slog.Logger) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("auditkafka: no brokers")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewWithWriter(w, cfg.WriteTimeout, logger), nil
}

// NewWithWriter wraps an existing writer. A non-positive timeout selects
// five seconds.
func NewWithWriter(w MessageWriter, timeout time.Duration, logger *slog.Logger) *Sink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: w, logger: logger, timeout: timeout, now: time.Now}
}

func (s *Sink) Record(ctx context.Context, event, actorID string, meta map[string]string) {
	if s == nil || s.writer == nil {
		return
	}

	value, err := json.Marshal(authcore.AuditEvent{
		Timestamp: s.now().UTC(),
		Name:      event,
		ActorID:   actorID,
		Meta:      meta,
	})
	if err != nil {
		s.fail(ctx, event, err)
		return
	}

	// The request may already be finished when an async dispatcher calls us.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err = s.writer.WriteMessages(wctx, kafka.Message{
		Key:   []byte(actorID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	})
	if err != nil {
		s.fail(ctx, event, err)
	}
}

// Failed counts events that could not be published.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

func (s *Sink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

func (s *Sink) fail(ctx context.Context, event string, err error) {
	s.failed.Add(1)
	s.logger.WarnContext(ctx, "audit publish failed",
		slog.String("op", "auditkafka.record"),
		slog.String("event", event),
		slog.Any("error", err),
	)
}
