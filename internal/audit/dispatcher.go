package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking. Without it Emit waits for room.
	DropIfFull bool
	Logger     *slog.Logger
}

// Dispatcher moves events off the request path onto a single delivery
// goroutine. A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	quit       chan struct{}
	sealed     chan struct{}
	finished   chan struct{}
	dropIfFull bool
	logger     *slog.Logger

	// intake is read-held across every send; Close takes it exclusively so
	// no send is in flight once the loop starts its final drain.
	intake   sync.RWMutex
	closed   bool
	dropped  atomic.Uint64
	stopOnce sync.Once
}

// NewDispatcher returns nil when auditing is disabled or there is no sink.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled || sink == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		quit:       make(chan struct{}),
		sealed:     make(chan struct{}),
		finished:   make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		logger:     logger,
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.finished)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.sealed:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver counts a panicking sink as a drop and keeps the loop alive.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
			d.logger.Error("audit sink panicked", "type", ev.Type, "panic", r)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. In blocking mode an event abandoned because ctx ended or
// the dispatcher closed is counted as dropped.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	d.intake.RLock()
	defer d.intake.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.quit:
		d.dropped.Add(1)
	}
}

// Close stops intake and returns once every accepted event was delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		// Wake blocked senders first so they release intake.
		close(d.quit)
		d.intake.Lock()
		d.closed = true
		d.intake.Unlock()
		close(d.sealed)
	})
	<-d.finished
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
