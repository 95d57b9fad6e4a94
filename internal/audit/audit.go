package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// Event records one auth decision. It never carries passwords, hashes or raw
// tokens; JTI identifies a refresh token without granting anything.
type Event struct {
	At        time.Time         `json:"at"`
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	JTI       string            `json:"jti,omitempty"`
	IP        string            `json:"ip,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Success   bool              `json:"success"`
	Reason    string            `json:"reason,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// PartitionKey keeps one user's events together. Anonymous events (failed
// logins for unknown users, rate-limit hits) group by type.
func (e Event) PartitionKey() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Type
}

func (e Event) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 8+len(e.Attrs))
	attrs = append(attrs,
		slog.String("type", e.Type),
		slog.Bool("success", e.Success),
	)
	for _, f := range [...][2]string{
		{"user_id", e.UserID},
		{"username", e.Username},
		{"jti", e.JTI},
		{"ip", e.IP},
		{"request_id", e.RequestID},
		{"reason", e.Reason},
	} {
		if f[1] != "" {
			attrs = append(attrs, slog.String(f[0], f[1]))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(e.Attrs)) {
		attrs = append(attrs, slog.String("attr."+k, e.Attrs[k]))
	}
	return slog.GroupValue(attrs...)
}

type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// ChannelSink hands events to a consumer goroutine.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event { return s.events }

// JSONWriterSink writes newline-delimited JSON.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}

// LogSink writes events through a structured logger: successes at info,
// failures at warn.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, event Event) {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "audit", slog.Any("event", event))
}

// MultiSink fans an event out to every non-nil sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
