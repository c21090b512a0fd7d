package authcore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
)

// Audit event names.
const (
	EventUserRegistered     = "user_registered"
	EventUserLogin          = "user_login"
	EventLoginFailed        = "login_failed"
	EventAccountLocked      = "account_locked"
	EventAccountUnlocked    = "account_unlocked"
	EventTokenReuseDetected = "token_reuse_detected"
	EventRefreshExpired     = "refresh_token_expired"
	EventRefreshUserInvalid = "refresh_user_invalid"
	EventLogout             = "user_logout"
	EventSessionRevoked     = "session_revoked"
	EventSessionsRevokedAll = "sessions_revoked_all"
	EventPasswordChanged    = "password_changed"
	EventProfileUpdated     = "profile_updated"
)

// Audit metadata keys.
const (
	MetaIP        = "ip"
	MetaUserAgent = "user_agent"
	MetaOutcome   = "outcome"
	MetaSessionID = "session_id"
	MetaCount     = "count"
	MetaReason    = "reason"
)

// AuditEvent is the record produced by the buffering sinks.
type AuditEvent = audit.Event

// AuditSink receives security events. Record must not block for long; wrap a
// slow sink with NewAsyncAuditSink.
type AuditSink interface {
	Record(ctx context.Context, event string, actorID string, meta map[string]string)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Record(context.Context, string, string, map[string]string) {}

// ChannelSink sends events into a buffered channel.
type ChannelSink struct {
	events chan AuditEvent
	now    func() time.Time
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
		now:    time.Now,
	}
}

func (s *ChannelSink) Record(ctx context.Context, event, actorID string, meta map[string]string) {
	select {
	case s.events <- newAuditEvent(s.now(), event, actorID, meta):
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
	now    func() time.Time
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
		now:    time.Now,
	}
}

func (s *JSONWriterSink) Record(_ context.Context, event, actorID string, meta map[string]string) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(newAuditEvent(s.now(), event, actorID, meta))
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// SlogSink logs events at Info under the "audit" message.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Record(ctx context.Context, event, actorID string, meta map[string]string) {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, meta[k]))
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("event", event),
		slog.String("actor_id", actorID),
		slog.Attr{Key: "meta", Value: slog.GroupValue(attrs...)},
	)
}

// MemorySink keeps every event in memory. Tests use it to assert on the
// audit trail.
type MemorySink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *MemorySink) Record(_ context.Context, event, actorID string, meta map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, newAuditEvent(time.Now(), event, actorID, meta))
}

// Events returns a copy of the recorded events in order.
func (s *MemorySink) Events() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Named returns recorded events with the given name.
func (s *MemorySink) Named(name string) []AuditEvent {
	var out []AuditEvent
	for _, e := range s.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []AuditSink

func (m MultiSink) Record(ctx context.Context, event, actorID string, meta map[string]string) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, event, actorID, meta)
		}
	}
}

func newAuditEvent(ts time.Time, event, actorID string, meta map[string]string) AuditEvent {
	return AuditEvent{
		Timestamp: ts.UTC(),
		Name:      event,
		ActorID:   actorID,
		Meta:      cloneMeta(meta),
	}
}

func cloneMeta(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
