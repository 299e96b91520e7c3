// Package bridge adapts a blocking, goroutine-confined event producer into an
// ordered, non-blocking, cancellable sequence. One dedicated worker goroutine
// drives the producer; the consumer side pulls events through Next without
// ever blocking the producer's goroutine discipline.
//
// The hand-off channel is an unbuffered rendezvous: the worker blocks until
// the consumer drains each event, so a slow consumer throttles the producer.
// This is intentional; the engine must not run ahead of delivery.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
)

// ErrEndOfStream is the sentinel returned by Next once the producer has
// exhausted normally or the bridge has been cancelled.
var ErrEndOfStream = errors.New("end of stream")

// Producer is a blocking event source. Next blocks until it can yield the
// next raw event; it signals normal exhaustion by returning io.EOF. Any other
// error terminates the stream and is surfaced to the consumer exactly once.
type Producer interface {
	Next() (core.RawEvent, error)
}

// ProducerFunc adapts a plain function to the Producer interface.
type ProducerFunc func() (core.RawEvent, error)

// Next calls the underlying function.
func (f ProducerFunc) Next() (core.RawEvent, error) { return f() }

// Bridge exposes the producer's events as a pull-based sequence. Next must
// only ever be called from the single consumer that owns the bridge; Cancel
// is safe to call from anywhere, any number of times.
type Bridge struct {
	events chan core.RawEvent
	errs   chan error
	done   chan struct{}

	// leftover parks the single event a cancelled worker had already
	// dequeued from the producer but could not hand off. A successor
	// bridge opened with Reopen re-delivers it first.
	leftover chan core.RawEvent

	cancelOnce sync.Once

	// finished is consumer-side state, touched only by Next under the
	// single-consumer rule.
	finished bool
}

// Open starts the producer running on a dedicated worker goroutine and
// returns the bridge handle. It does not block.
func Open(p Producer) *Bridge {
	return open(p, nil)
}

// Reopen starts a successor bridge over the same producer after prev was
// cancelled. The new worker takes over only once prev's worker has exited,
// so the producer is never driven by two goroutines at once, and it
// re-delivers the event prev's worker dequeued but could not hand off.
func Reopen(p Producer, prev *Bridge) *Bridge {
	return open(p, prev)
}

func open(p Producer, prev *Bridge) *Bridge {
	b := &Bridge{
		events:   make(chan core.RawEvent),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
		leftover: make(chan core.RawEvent, 1),
	}
	go b.run(p, prev)
	return b
}

// run drives the blocking producer, handing each event to the consumer in
// FIFO order. A producer error is parked in errs for delivery by the Next
// call that observes the closed event channel.
func (b *Bridge) run(p Producer, prev *Bridge) {
	defer close(b.events)
	if prev != nil && !b.takeover(prev) {
		return
	}
	for {
		// A cancelled bridge must not dequeue another event from the
		// producer. This closes the window between cancellation and the
		// next blocking call.
		select {
		case <-b.done:
			return
		default:
		}
		ev, err := p.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				b.errs <- err
			}
			return
		}
		if !b.deliver(ev) {
			return
		}
	}
}

// takeover waits for the predecessor's worker to exit, then re-delivers
// whatever it left behind. It reports whether the loop should go on to
// drive the producer itself.
func (b *Bridge) takeover(prev *Bridge) bool {
	// prev's consumer is gone, so ranging only waits for its worker to
	// close the channel on exit.
	for range prev.events {
	}
	select {
	case ev := <-prev.leftover:
		if !b.deliver(ev) {
			return false
		}
	default:
	}
	select {
	case err := <-prev.errs:
		b.errs <- err
		return false
	default:
	}
	return true
}

// deliver hands one event to the consumer. When cancellation wins the race
// the event is parked for a successor and deliver reports false.
func (b *Bridge) deliver(ev core.RawEvent) bool {
	select {
	case b.events <- ev:
		return true
	case <-b.done:
		b.leftover <- ev
		return false
	}
}

// Next suspends the calling goroutine until the worker publishes the next
// event, the producer exhausts, the producer fails, or the bridge is
// cancelled. On exhaustion or after cancellation it returns ErrEndOfStream.
// A producer failure is returned from exactly one Next call; every call after
// that returns ErrEndOfStream.
func (b *Bridge) Next(ctx context.Context) (core.RawEvent, error) {
	var zero core.RawEvent
	if b.finished {
		return zero, ErrEndOfStream
	}

	// Cancellation wins over a ready event.
	select {
	case <-b.done:
		b.finished = true
		return zero, ErrEndOfStream
	default:
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-b.done:
		b.finished = true
		return zero, ErrEndOfStream
	case ev, ok := <-b.events:
		if !ok {
			b.finished = true
			select {
			case err := <-b.errs:
				return zero, err
			default:
				return zero, ErrEndOfStream
			}
		}
		// The event may have been dequeued in the same instant Cancel
		// closed done; re-check so no event is delivered after
		// cancellation was observable.
		select {
		case <-b.done:
			b.finished = true
			return zero, ErrEndOfStream
		default:
		}
		return ev, nil
	}
}

// Cancel requests that the worker stop. Best-effort: a worker blocked inside
// the producer only observes cancellation at its next yield point. After
// Cancel returns no further events are delivered through Next.
func (b *Bridge) Cancel() {
	b.cancelOnce.Do(func() { close(b.done) })
}

// Cancelled reports whether Cancel has been called.
func (b *Bridge) Cancelled() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
