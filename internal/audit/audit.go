package audit

import (
	"context"
	"time"
)

// Event is one audit record as it travels through the queue. The JSON shape
// is what external sinks such as the Kafka writer publish.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"event"`
	ActorID   string            `json:"actor_id,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc lets a plain function act as a Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NoOpSink discards everything.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}
