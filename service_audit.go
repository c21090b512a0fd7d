package authcore

import (
	"context"
	"log/slog"
)

// auditor stamps request metadata onto events and shields callers from a
// misbehaving sink.
type auditor struct {
	sink    AuditSink
	logger  *slog.Logger
	enabled bool
}

func (a auditor) record(ctx context.Context, event, actorID string, meta map[string]string) {
	if !a.enabled || a.sink == nil {
		return
	}

	out := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		out[MetaIP] = ip
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		out[MetaUserAgent] = ua
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("audit sink panicked",
				slog.String("event", event),
				slog.Any("panic", r),
			)
		}
	}()
	a.sink.Record(ctx, event, actorID, out)
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
