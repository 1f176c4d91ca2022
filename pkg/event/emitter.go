package event

import (
	"context"
	"sync"
	"time"

	"github.com/etesami/traffic-accident-observer/pkg/monitoring"
)

// Sink consumes events (file, webhook, database).
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// DeliveryRecorder observes the outcome of every delivery.
type DeliveryRecorder interface {
	AddEventDelivery(sink string, ok bool)
}

type EmitterConfig struct {
	QueueSize       int
	Workers         int
	DeliverTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Emitter queues events and delivers them to every sink on worker goroutines.
// Emit never blocks the frame path: events are dropped when the queue is full.
type Emitter struct {
	queue           chan *Event
	sinks           []Sink
	recorder        DeliveryRecorder
	deliverTimeout  time.Duration
	shutdownTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped uint64
	countMu sync.Mutex
}

func NewEmitter(cfg EmitterConfig, sinks []Sink, recorder DeliveryRecorder) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}

	e := &Emitter{
		queue:           make(chan *Event, cfg.QueueSize),
		sinks:           sinks,
		recorder:        recorder,
		deliverTimeout:  cfg.DeliverTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Emit enqueues ev without blocking. It reports whether the event was accepted.
func (e *Emitter) Emit(ev *Event) bool {
	if e == nil || ev == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.drop()
		return false
	}
	select {
	case e.queue <- ev:
		return true
	default:
		e.drop()
		monitoring.Logf("event: queue full, dropped [%s] for source [%s]", ev.Kind, ev.SourceID)
		return false
	}
}

// Dropped returns how many events were refused.
func (e *Emitter) Dropped() uint64 {
	e.countMu.Lock()
	defer e.countMu.Unlock()
	return e.dropped
}

// Close stops accepting events, drains the queue for up to the shutdown
// timeout and closes the sinks.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
	defer cancel()
	select {
	case <-done:
	case <-waitCtx.Done():
		monitoring.Logf("event: shutdown timeout, undelivered events abandoned")
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			monitoring.Logf("event: sink [%s] close error: %v", s.Name(), err)
		}
	}
}

func (e *Emitter) drop() {
	e.countMu.Lock()
	e.dropped++
	e.countMu.Unlock()
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		e.deliver(ev)
	}
}

func (e *Emitter) deliver(ev *Event) {
	for _, s := range e.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), e.deliverTimeout)
		err := s.Deliver(ctx, ev)
		cancel()
		if err != nil {
			monitoring.Logf("event: sink [%s] failed for [%s]: %v", s.Name(), ev.ID, err)
		}
		if e.recorder != nil {
			e.recorder.AddEventDelivery(s.Name(), err == nil)
		}
	}
}
