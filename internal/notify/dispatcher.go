package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`

	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// Dispatcher hands notices to a sink on its own goroutine so a slow or
// broken consumer never holds up an auth operation.
type Dispatcher struct {
	sink    Sink
	queue   chan Notice
	drop    bool
	timeout time.Duration

	stop    chan struct{}
	stopped sync.Once
	exited  chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled; every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Notice, max(cfg.BufferSize, 1)),
		drop:    cfg.DropIfFull,
		timeout: cfg.DeliveryTimeout,
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.exited)
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush delivers whatever is still queued when the dispatcher stops.
func (d *Dispatcher) flush() {
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(n Notice) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if recover() != nil {
			d.failed.Add(1)
		}
	}()
	d.sink.Notify(ctx, n)
	d.delivered.Add(1)
}

// Notify queues n. With DropIfFull a full queue drops the notice, otherwise
// Notify blocks until there is room, ctx ends or the dispatcher stops.
func (d *Dispatcher) Notify(ctx context.Context, n Notice) {
	if d == nil || d.closing() {
		return
	}
	if d.drop {
		select {
		case d.queue <- n:
		default:
			d.dropped.Add(1)
		}
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- n:
	case <-ctx.Done():
	case <-d.stop:
	}
}

func (d *Dispatcher) closing() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}

// Close stops accepting notices and returns once the queue is delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopped.Do(func() { close(d.stop) })
	<-d.exited
}

// Delivered counts notices the sink accepted.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

// Dropped counts notices discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed counts notices whose sink panicked.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
