// Package engine defines the contract between the orchestration layer and a
// conversation engine. An engine materializes one blocking event producer
// per conversation; the orchestrator wraps that producer in a bridge and
// never calls it directly.
package engine

import (
	"context"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
)

// Producer is the blocking, goroutine-confined event source for one running
// conversation.
//
// Next blocks until the engine can yield the next raw event and returns
// io.EOF on normal exhaustion; any other error terminates the stream. Next
// must only be called from the single worker goroutine that owns the
// producer (the bridge enforces this).
//
// PostUserText injects a human message into the conversation. It is called
// by the draining loop when it observes forwarded input and must not block.
//
// Close releases engine-side resources; it is called at most once.
type Producer interface {
	Next() (core.RawEvent, error)
	PostUserText(text, userID string) error
	Close() error
}

// Resumer is optionally implemented by producers that support continuing
// after a pause. Resume is invoked by the orchestrator before it flips a
// paused session back to active; producers that cannot continue should not
// implement the interface, which surfaces as ErrEngineUnavailable upstream.
type Resumer interface {
	Resume() error
}

// Engine materializes producers for conversations.
type Engine interface {
	// CreateProducer builds a blocking event producer for the given preset
	// and topic with the given rounds budget. Construction failures are
	// reported to the user as the engine being unavailable.
	CreateProducer(ctx context.Context, presetID, topic string, rounds int) (Producer, error)
}
