package authcore

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/authcore/internal/audit"
)

// AsyncAuditSink queues events and forwards them to an inner sink on a
// background goroutine. Close drains the queue.
type AsyncAuditSink struct {
	dispatcher *audit.Dispatcher
}

// NewAsyncAuditSink wraps sink. When cfg.DropIfFull is set a full buffer
// drops events instead of blocking the caller.
func NewAsyncAuditSink(cfg AuditConfig, sink AuditSink) *AsyncAuditSink {
	if sink == nil {
		sink = NoOpSink{}
	}
	d := audit.NewDispatcher(audit.Config{
		Enabled:    true,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		OnPanic: func(e audit.Event, recovered any) {
			slog.Default().Warn("audit sink panicked", "event", e.Name, "panic", recovered)
		},
	}, audit.SinkFunc(func(ctx context.Context, e audit.Event) {
		sink.Record(ctx, e.Name, e.ActorID, e.Meta)
	}))
	return &AsyncAuditSink{dispatcher: d}
}

func (a *AsyncAuditSink) Record(ctx context.Context, event, actorID string, meta map[string]string) {
	if a == nil {
		return
	}
	a.dispatcher.Emit(ctx, audit.Event{Name: event, ActorID: actorID, Meta: cloneMeta(meta)})
}

func (a *AsyncAuditSink) Close() {
	if a == nil {
		return
	}
	a.dispatcher.Close()
}

// Dropped returns how many events were discarded because the buffer was full.
func (a *AsyncAuditSink) Dropped() uint64 {
	if a == nil {
		return 0
	}
	return a.dispatcher.Dropped()
}

// Delivered returns how many events reached the inner sink.
func (a *AsyncAuditSink) Delivered() uint64 {
	if a == nil {
		return 0
	}
	return a.dispatcher.Delivered()
}

// Failed returns how many events the inner sink panicked on.
func (a *AsyncAuditSink) Failed() uint64 {
	if a == nil {
		return 0
	}
	return a.dispatcher.Failed()
}
