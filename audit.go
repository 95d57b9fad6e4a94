package goGuard

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goGuard/internal/audit"
)

// AuditEvent is one security-relevant occurrence. Raw tokens and passwords
// are never recorded; JTI carries the token id only.
type AuditEvent = audit.Event

// AuditSink receives events from the engine's dispatcher goroutine. A sink
// that panics loses that one event; delivery continues.
type AuditSink = audit.Sink

type (
	AuditSinkFunc  = audit.SinkFunc
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	LogSink        = audit.LogSink
	MultiSink      = audit.MultiSink
)

// AuditConfig controls the asynchronous dispatcher. Auditing needs both
// Enabled and a sink from [Builder.WithAuditSink].
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes emission non-blocking; dropped events are counted.
	DropIfFull bool
}

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

// NewLogSink writes events as "audit" records on logger.
func NewLogSink(logger *slog.Logger) *LogSink { return audit.NewLogSink(logger) }

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		Logger:     logger,
	}, sink)
}
