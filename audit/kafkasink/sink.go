// Package kafkasink publishes goGuard audit events to a Kafka topic as JSON.
package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/segmentio/kafka-go"
)

const defaultWriteTimeout = 5 * time.Second

var ErrNoBrokers = errors.New("kafkasink: no brokers configured")

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Options struct {
	// WriteTimeout bounds each publish. Zero means five seconds.
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Sink implements goGuard.AuditSink. Emit is called from the engine's
// dispatcher goroutine, so a slow broker delays later events but never a
// request. Publish failures are logged and counted.
type Sink struct {
	writer  messageWriter
	timeout time.Duration
	logger  *slog.Logger
	failed  atomic.Uint64
}

// New creates a synchronous writer for topic. Messages are keyed by user id
// so one user's events stay ordered within a partition.
func New(brokers []string, topic string, opts Options) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, errors.New("kafkasink: empty topic")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           20 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newSink(w, opts), nil
}

func newSink(w messageWriter, opts Options) *Sink {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Sink{writer: w, timeout: opts.WriteTimeout, logger: opts.Logger}
}

func (s *Sink) Emit(ctx context.Context, event goGuard.AuditEvent) {
	msg, err := encode(event)
	if err != nil {
		s.failed.Add(1)
		s.logger.Error("audit_encode_failed", "event_type", event.Type, "error", err)
		return
	}

	// The dispatcher's context outlives requests; bound each write.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.failed.Add(1)
		s.logger.Warn("audit_publish_failed", "event_type", event.Type, "error", err)
	}
}

// Failed reports how many events could not be published.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

// Close flushes pending messages. Close the engine first so the dispatcher
// has drained.
func (s *Sink) Close() error {
	return s.writer.Close()
}

func encode(event goGuard.AuditEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(event.PartitionKey()),
		Value: value,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}
