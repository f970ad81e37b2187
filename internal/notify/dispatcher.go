// Package notify delivers committed reservation changes to the message
// broker without ever blocking the request that made them.
package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/space-reservation/internal/engine"
	"github.com/iliyamo/space-reservation/internal/model"
	"github.com/iliyamo/space-reservation/internal/queue"
)

// Publisher sends one event.  *queue.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Options tune the dispatcher.
type Options struct {
	Workers        int           // publishing goroutines
	Buffer         int           // queued events before Enqueue starts dropping
	MaxRetries     int           // attempts after the first failed publish
	RetryDelay     time.Duration // backoff step; attempt n waits n*RetryDelay
	PublishTimeout time.Duration // per attempt
}

// Dispatcher queues events in memory and publishes them from a fixed
// worker pool with linear backoff.  A commit is never undone by a failed
// notification: events that exhaust their retries are logged and dropped.
type Dispatcher struct {
	pub  Publisher
	opts Options
	log  *zap.Logger
	now  func() time.Time

	events chan queue.ReservationEvent
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	dropped atomic.Int64
	failed  atomic.Int64
}

var _ engine.Notifier = (*Dispatcher)(nil)

// NewDispatcher starts opts.Workers goroutines publishing through pub.
func NewDispatcher(pub Publisher, opts Options, log *zap.Logger) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Buffer < 1 {
		opts.Buffer = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	d := &Dispatcher{
		pub:    pub,
		opts:   opts,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		events: make(chan queue.ReservationEvent, opts.Buffer),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) ReservationCreated(r model.Reservation) {
	d.Enqueue(queue.NewEvent(queue.EventCreated, r, d.now()))
}

func (d *Dispatcher) ReservationCancelled(r model.Reservation) {
	d.Enqueue(queue.NewEvent(queue.EventCancelled, r, d.now()))
}

// Enqueue hands ev to the workers.  It never blocks: when the buffer is
// full or the dispatcher is closed the event is dropped and false is
// returned.
func (d *Dispatcher) Enqueue(ev queue.ReservationEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		d.log.Warn("notification dropped: dispatcher closed",
			zap.String("event_id", ev.EventID), zap.Uint64("reservation_id", ev.ReservationID))
		return false
	}
	select {
	case d.events <- ev:
		return true
	default:
		d.dropped.Add(1)
		d.log.Warn("notification dropped: buffer full",
			zap.String("event_id", ev.EventID), zap.Uint64("reservation_id", ev.ReservationID))
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.events {
		if err := d.publish(ev); err != nil {
			d.failed.Add(1)
			d.log.Error("notification failed",
				zap.String("event_id", ev.EventID),
				zap.String("type", string(ev.Type)),
				zap.Uint64("reservation_id", ev.ReservationID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) publish(ev queue.ReservationEvent) error {
	attempts := d.opts.MaxRetries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.PublishTimeout)
		err := d.pub.Publish(ctx, ev)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		d.log.Warn("publish failed",
			zap.String("event_id", ev.EventID), zap.Int("attempt", i+1), zap.Int("of", attempts), zap.Error(err))
		if i < attempts-1 {
			time.Sleep(d.opts.RetryDelay * time.Duration(i+1))
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", attempts, lastErr)
}

// Stats reports events dropped at enqueue time and events that exhausted
// their retries.
func (d *Dispatcher) Stats() (dropped, failed int64) {
	return d.dropped.Load(), d.failed.Load()
}

// Close stops accepting events and waits for queued ones to be published
// or for ctx to end, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
