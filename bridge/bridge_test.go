package bridge

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
)

// sliceProducer yields a fixed sequence of events then exhausts.
type sliceProducer struct {
	events []core.RawEvent
	idx    int
}

func (p *sliceProducer) Next() (core.RawEvent, error) {
	if p.idx >= len(p.events) {
		return core.RawEvent{}, io.EOF
	}
	ev := p.events[p.idx]
	p.idx++
	return ev, nil
}

func TestBridge_DeliversInOrderThenEndOfStream(t *testing.T) {
	events := []core.RawEvent{
		{Kind: "agent_message", Content: "one", Round: 0},
		{Kind: "agent_message", Content: "two", Round: 0},
		{Kind: "user_turn", Content: "your turn", Round: 1},
	}
	b := Open(&sliceProducer{events: events})

	ctx := context.Background()
	for i, want := range events {
		got, err := b.Next(ctx)
		if err != nil {
			t.Fatalf("event %d: unexpected error: %v", i, err)
		}
		if got.Content != want.Content || got.Kind != want.Kind {
			t.Fatalf("event %d: got %+v, want %+v", i, got, want)
		}
	}

	if _, err := b.Next(ctx); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
	// Terminal state is sticky.
	if _, err := b.Next(ctx); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream on repeat call, got %v", err)
	}
}

func TestBridge_ProducerErrorDeliveredExactlyOnce(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	b := Open(ProducerFunc(func() (core.RawEvent, error) {
		calls++
		if calls == 1 {
			return core.RawEvent{Content: "ok"}, nil
		}
		return core.RawEvent{}, boom
	}))

	ctx := context.Background()
	if ev, err := b.Next(ctx); err != nil || ev.Content != "ok" {
		t.Fatalf("first event: got %+v, %v", ev, err)
	}
	if _, err := b.Next(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected producer error, got %v", err)
	}
	if _, err := b.Next(ctx); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("error must not be delivered twice, got %v", err)
	}
}

func TestBridge_CancelSuppressesPendingEvent(t *testing.T) {
	produced := make(chan struct{})
	b := Open(ProducerFunc(func() (core.RawEvent, error) {
		select {
		case <-produced:
			return core.RawEvent{}, io.EOF
		default:
			close(produced)
			return core.RawEvent{Content: "pending"}, nil
		}
	}))

	// Wait until the worker is blocked handing off the first event.
	<-produced
	time.Sleep(10 * time.Millisecond)

	b.Cancel()

	if _, err := b.Next(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream after cancel, got %v", err)
	}
	if !b.Cancelled() {
		t.Fatal("bridge should report cancelled")
	}
}

func TestBridge_CancelIsIdempotent(t *testing.T) {
	b := Open(&sliceProducer{})
	b.Cancel()
	b.Cancel()
	if _, err := b.Next(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestBridge_NextHonorsContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	b := Open(ProducerFunc(func() (core.RawEvent, error) {
		<-block
		return core.RawEvent{}, io.EOF
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := b.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}

	// The bridge itself is still usable after a caller timeout.
	b.Cancel()
	if _, err := b.Next(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestBridge_WorkerStopsDequeuingAfterCancel(t *testing.T) {
	feed := make(chan core.RawEvent, 2)
	var calls int32
	b := Open(ProducerFunc(func() (core.RawEvent, error) {
		atomic.AddInt32(&calls, 1)
		ev, ok := <-feed
		if !ok {
			return core.RawEvent{}, io.EOF
		}
		return ev, nil
	}))

	// Wait until the worker is blocked inside the producer.
	for atomic.LoadInt32(&calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	b.Cancel()

	feed <- core.RawEvent{Content: "in flight"}
	feed <- core.RawEvent{Content: "untouched"}
	time.Sleep(20 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("worker kept calling the producer after cancel: %d calls", got)
	}
	if len(feed) != 1 {
		t.Fatalf("worker dequeued past cancellation: %d events left", len(feed))
	}
}

func TestBridge_ReopenRedeliversEventTakenByOldWorker(t *testing.T) {
	feed := make(chan core.RawEvent, 2)
	p := ProducerFunc(func() (core.RawEvent, error) {
		ev, ok := <-feed
		if !ok {
			return core.RawEvent{}, io.EOF
		}
		return ev, nil
	})

	prev := Open(p)
	prev.Cancel()

	// The old worker may already be blocked inside the producer; this
	// event can land in its hands after cancellation and must still reach
	// the successor's consumer.
	feed <- core.RawEvent{Kind: "agent_message", Content: "held"}

	b := Reopen(p, prev)
	ctx := context.Background()
	if ev, err := b.Next(ctx); err != nil || ev.Content != "held" {
		t.Fatalf("expected held event, got %+v, %v", ev, err)
	}

	feed <- core.RawEvent{Kind: "agent_message", Content: "next"}
	if ev, err := b.Next(ctx); err != nil || ev.Content != "next" {
		t.Fatalf("expected next event, got %+v, %v", ev, err)
	}

	close(feed)
	if _, err := b.Next(ctx); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestBridge_ReopenCarriesProducerError(t *testing.T) {
	boom := errors.New("boom")
	gate := make(chan struct{})
	p := ProducerFunc(func() (core.RawEvent, error) {
		<-gate
		return core.RawEvent{}, boom
	})

	prev := Open(p)
	prev.Cancel()
	close(gate)

	b := Reopen(p, prev)
	if _, err := b.Next(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected producer error across reopen, got %v", err)
	}
	if _, err := b.Next(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream after error, got %v", err)
	}
}

func TestBridge_SlowConsumerThrottlesProducer(t *testing.T) {
	var produced int
	b := Open(ProducerFunc(func() (core.RawEvent, error) {
		produced++
		return core.RawEvent{Round: produced}, nil
	}))
	defer b.Cancel()

	time.Sleep(20 * time.Millisecond)

	// Only the event parked in the rendezvous hand-off (plus the one being
	// computed) may exist before the consumer drains anything.
	if produced > 2 {
		t.Fatalf("producer ran ahead of consumer: produced %d", produced)
	}

	if ev, err := b.Next(context.Background()); err != nil || ev.Round != 1 {
		t.Fatalf("expected first event, got %+v, %v", ev, err)
	}
}
