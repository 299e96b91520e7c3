// Package agentrybot provides a high-level façade over the conversation
// layers (orchestrator, registry, presets, history & logging) enabling rapid
// construction of chat surfaces for multi-agent conversations. Most
// applications interact with this package by:
//  1. Creating a Bot via New() (optionally overriding the engine, catalog or stores)
//  2. Starting conversations with Run() and consuming the event channel
//  3. Posting user input, pausing/resuming/stopping via the delegating methods
//
// The façade delegates all semantics to orchestrator.Orchestrator while
// keeping setup and usage ergonomics concise. All defaults are safe for
// local development; production deployments typically supply configured
// provider models and a structured logger.
package agentrybot

import (
	"context"
	"time"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
	"github.com/Alexeyisme/agentrylab-telegram-bot/engine"
	"github.com/Alexeyisme/agentrylab-telegram-bot/engine/lab"
	"github.com/Alexeyisme/agentrylab-telegram-bot/history"
	"github.com/Alexeyisme/agentrylab-telegram-bot/logging"
	"github.com/Alexeyisme/agentrylab-telegram-bot/model"
	"github.com/Alexeyisme/agentrylab-telegram-bot/orchestrator"
	"github.com/Alexeyisme/agentrylab-telegram-bot/preset"
	"github.com/Alexeyisme/agentrylab-telegram-bot/registry"
)

// Options configures the Bot instance.
type Options struct {
	// Engine produces conversations. Defaults to a lab engine over the
	// catalog and Models.
	Engine engine.Engine

	// Catalog holds the available presets. Defaults to the builtin catalog.
	Catalog *preset.Catalog

	// Models maps provider names to model implementations for the default
	// lab engine. Ignored when Engine is supplied.
	Models map[string]model.Model

	// History records delivered events per conversation. Defaults to a
	// bounded in-memory store.
	History *history.Store

	// EventBufferSize sets the channel buffer used by Run. Larger buffers
	// reduce blocking but increase memory usage.
	EventBufferSize int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Bot is the high-level façade aggregating the orchestration layers.
type Bot struct {
	catalog      *preset.Catalog
	registry     *registry.Registry
	orchestrator *orchestrator.Orchestrator
	history      *history.Store
	logger       logging.Logger
	bufferSize   int
}

// New creates a new Bot with optional overrides. Any unset collaborator is
// initialized with an in-memory default.
func New(optFns ...func(o *Options)) *Bot {
	opts := Options{
		Catalog:         preset.Builtin(),
		Models:          map[string]model.Model{},
		History:         history.NewStore(history.DefaultLimit),
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Engine == nil {
		opts.Engine = lab.New(opts.Catalog, func(o *lab.Options) {
			o.Models = opts.Models
			o.Logger = opts.Logger
		})
	}

	reg := registry.New(func(o *registry.Options) { o.Logger = opts.Logger })
	orch := orchestrator.New(reg, opts.Engine, func(o *orchestrator.Options) {
		o.Logger = opts.Logger
		o.History = opts.History
	})

	return &Bot{
		catalog:      opts.Catalog,
		registry:     reg,
		orchestrator: orch,
		history:      opts.History,
		logger:       opts.Logger,
		bufferSize:   opts.EventBufferSize,
	}
}

// Run starts a conversation and streams it asynchronously. It returns the
// session id, a channel of normalized events closed when the stream ends,
// and an error channel that receives at most one stream failure.
func (b *Bot) Run(ctx context.Context, userID, presetID, topic string, rounds int) (string, <-chan core.Event, <-chan error, error) {
	sessionID, err := b.orchestrator.Start(ctx, userID, presetID, topic, rounds)
	if err != nil {
		return "", nil, nil, err
	}

	events := make(chan core.Event, b.bufferSize)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		err := b.orchestrator.Stream(ctx, sessionID, func(ctx context.Context, ev core.Event) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errs <- err
		}
	}()
	return sessionID, events, errs, nil
}

// Start reserves a session and opens its stream without draining it. Callers
// using Start must drive Stream themselves.
func (b *Bot) Start(ctx context.Context, userID, presetID, topic string, rounds int) (string, error) {
	return b.orchestrator.Start(ctx, userID, presetID, topic, rounds)
}

// Stream drains a session's events into sink. At most one Stream call may be
// outstanding per session.
func (b *Bot) Stream(ctx context.Context, sessionID string, sink orchestrator.Sink) error {
	return b.orchestrator.Stream(ctx, sessionID, sink)
}

// PostUserInput forwards a user message into the live conversation. It
// reports false when the conversation is not waiting for input.
func (b *Bot) PostUserInput(userID, text string) (bool, error) {
	return b.orchestrator.PostUserInput(userID, text)
}

// Pause suspends the user's conversation.
func (b *Bot) Pause(userID string) error { return b.orchestrator.Pause(userID) }

// Resume continues a paused conversation. Callers must invoke Stream (or
// have a Run loop per session) again to drain the reopened stream.
func (b *Bot) Resume(userID string) error { return b.orchestrator.Resume(userID) }

// Stop terminates the user's conversation.
func (b *Bot) Stop(userID string) error { return b.orchestrator.Stop(userID) }

// Describe reports the user's flow position and session status.
func (b *Bot) Describe(userID string) orchestrator.Description {
	return b.orchestrator.Describe(userID)
}

// Presets lists the available presets in registration order.
func (b *Bot) Presets() []*preset.Preset { return b.catalog.List() }

// Transcript returns the recorded events of a conversation, oldest first.
func (b *Bot) Transcript(conversationID string) []core.Event {
	return b.history.Events(conversationID)
}

// Stats aggregates the recorded activity of a conversation.
func (b *Bot) Stats(conversationID string) history.Stats {
	return b.history.Stats(conversationID)
}

// StartReclaimer launches a background loop that periodically removes idle
// user states and unreferenced sessions. It stops when ctx is cancelled.
func (b *Bot) StartReclaimer(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res := b.registry.Reclaim(maxIdle)
				if res.Sessions > 0 {
					b.logger.Debug("reclaimer pass users=%d sessions=%d", res.Users, res.Sessions)
				}
			}
		}
	}()
}
