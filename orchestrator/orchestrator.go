// Package orchestrator composes the bridge, registry and flow layers into
// the operations a chat surface calls: start, stream, post-input, pause,
// resume, stop and describe. It is the single authority for session status
// and for flow transitions tied to engine events.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Alexeyisme/agentrylab-telegram-bot/bridge"
	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
	"github.com/Alexeyisme/agentrylab-telegram-bot/engine"
	"github.com/Alexeyisme/agentrylab-telegram-bot/flow"
	"github.com/Alexeyisme/agentrylab-telegram-bot/history"
	"github.com/Alexeyisme/agentrylab-telegram-bot/logging"
	"github.com/Alexeyisme/agentrylab-telegram-bot/registry"
)

// Input limits enforced before anything reaches the registry or the engine.
const (
	MaxTopicLength   = 500
	MaxMessageLength = 2000
)

var (
	// ErrTopicInvalid rejects empty or oversized topics at start time.
	ErrTopicInvalid = errors.New("topic must be non-empty and at most 500 characters")
	// ErrMessageTooLong rejects oversized user messages at post time.
	ErrMessageTooLong = errors.New("message is too long, keep it under 2000 characters")
)

// Sink receives normalized conversation events in emission order. A non-nil
// return aborts the stream loop.
type Sink func(ctx context.Context, ev core.Event) error

// streamEventLogger is implemented by loggers that can render bounded event
// previews; plain Loggers fall back to a generic debug line.
type streamEventLogger interface {
	LogStreamEvent(kind string, round int, content string)
}

// Options holds configuration overrides passed to New().
type Options struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
	// History records every event delivered to sinks. Optional.
	History *history.Store
}

// Orchestrator mediates between one human user per flow state and the
// multi-agent conversation engine. All methods are safe for concurrent use,
// but each session must have at most one outstanding Stream call.
type Orchestrator struct {
	reg     *registry.Registry
	engine  engine.Engine
	logger  logging.Logger
	history *history.Store

	mu        sync.Mutex
	producers map[string]engine.Producer
}

// New constructs an orchestrator over a registry and an engine.
func New(reg *registry.Registry, eng engine.Engine, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{
		reg:       reg,
		engine:    eng,
		logger:    opts.Logger,
		history:   opts.History,
		producers: make(map[string]engine.Producer),
	}
}

// emit records the event, if history is configured, and forwards it to sink.
func (o *Orchestrator) emit(ctx context.Context, sink Sink, ev core.Event) error {
	if o.history != nil {
		o.history.Record(ev)
	}
	return sink(ctx, ev)
}

// Start reserves a session for the user, materializes an engine producer for
// the preset and topic, and opens the stream bridge. It returns the session
// id on success. A user that cannot start fails with ErrUserAlreadyActive;
// any engine construction failure moves the flow state to error and fails
// with ErrEngineUnavailable.
func (o *Orchestrator) Start(ctx context.Context, userID, presetID, topic string, roundBudget int) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" || len(topic) > MaxTopicLength {
		return "", ErrTopicInvalid
	}

	sess, err := o.reg.TryBeginSession(userID, presetID, topic)
	if err != nil {
		return "", err
	}

	producer, err := o.engine.CreateProducer(ctx, presetID, topic, roundBudget)
	if err != nil {
		o.logger.Error("engine producer construction failed user_id=%s preset=%s: %v", userID, presetID, err)
		_ = o.reg.UpdateUser(userID, func(u *flow.UserState) error {
			return u.Apply(flow.TriggerStartFailed)
		})
		_ = o.reg.UpdateStatus(sess.ID, registry.StatusError)
		return "", fmt.Errorf("%w: %v", core.ErrEngineUnavailable, err)
	}

	o.mu.Lock()
	o.producers[sess.ID] = producer
	o.mu.Unlock()

	sess.AttachBridge(bridge.Open(producer))
	sess.SetMetadata("preset_id", presetID)
	sess.SetMetadata("topic", topic)
	sess.SetMetadata("max_rounds", roundBudget)
	sess.SetMetadata("started_at", time.Now().UTC())
	sess.SetStatus(registry.StatusActive)

	_ = o.reg.UpdateUser(userID, func(u *flow.UserState) error {
		u.EnterConversation(sess.ID)
		return nil
	})

	o.logger.Info("conversation started session_id=%s user_id=%s preset=%s", sess.ID, userID, presetID)
	return sess.ID, nil
}

// Stream drains the session's bridge, normalizes every raw event and
// forwards it to sink. It owns all state transitions driven by engine
// events: turn handoffs move the flow to waiting-for-input, completion ends
// the session, producer failures move everything to error. Pending user
// input is delivered opportunistically between events and echoed to sink as
// a synthetic user message.
//
// Stream returns when the stream is exhausted, cancelled, or the session
// status leaves active. Callers must keep at most one Stream call
// outstanding per session.
func (o *Orchestrator) Stream(ctx context.Context, sessionID string, sink Sink) error {
	sess, err := o.reg.Get(sessionID)
	if err != nil {
		return err
	}
	b := sess.Bridge()
	if b == nil {
		return fmt.Errorf("session %s has no open stream: %w", sessionID, core.ErrNotFound)
	}

	if err := o.announceStarted(ctx, sess, sink); err != nil {
		return err
	}

	for {
		if sess.Status() != registry.StatusActive {
			return nil
		}

		raw, err := b.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, bridge.ErrEndOfStream):
				if b.Cancelled() {
					// Pause or stop cancelled the bridge; the
					// initiating operation already updated state.
					return nil
				}
				return o.finish(ctx, sess, sink)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				return o.fail(ctx, sess, sink, err)
			}
		}

		ev := core.Normalize(sessionID, raw)
		if err := o.emit(ctx, sink, ev); err != nil {
			return err
		}
		sess.AddCounter("events", 1)
		if sl, ok := o.logger.(streamEventLogger); ok {
			sl.LogStreamEvent(string(ev.Kind), ev.Round, ev.Content)
		} else {
			o.logger.Debug("event delivered session_id=%s kind=%s round=%d", sessionID, ev.Kind, ev.Round)
		}

		switch ev.Kind {
		case core.KindUserTurn:
			_ = o.reg.UpdateUser(sess.UserID, func(u *flow.UserState) error {
				return u.Apply(flow.TriggerUserTurn)
			})
		case core.KindConversationCompleted:
			// The engine's own terminal event was already forwarded
			// above; only the state changes here.
			o.complete(sess)
			return nil
		case core.KindError:
			o.failState(sess, errors.New(ev.Content))
			return nil
		}

		if err := o.deliverPending(ctx, sess, sink); err != nil {
			return err
		}
	}
}

// announceStarted emits the conversation_started event exactly once per
// session, so that a stream reopened after resume does not repeat it.
func (o *Orchestrator) announceStarted(ctx context.Context, sess *registry.Session, sink Sink) error {
	if _, ok := sess.Metadata("announced"); ok {
		return nil
	}
	sess.SetMetadata("announced", true)

	ev := core.NewEvent(sess.ID, core.KindConversationStarted, "")
	if topic, ok := sess.Metadata("topic"); ok {
		ev.Metadata = map[string]any{"topic": topic}
		if preset, ok := sess.Metadata("preset_id"); ok {
			ev.Metadata["preset_id"] = preset
		}
	}
	return o.emit(ctx, sink, ev)
}

// deliverPending drains the session's pending-input slot, forwards the text
// into the engine and echoes it to sink, then moves the flow state back into
// the conversation.
func (o *Orchestrator) deliverPending(ctx context.Context, sess *registry.Session, sink Sink) error {
	p, ok := sess.TakePendingInput()
	if !ok {
		return nil
	}

	producer := o.producerFor(sess.ID)
	if producer == nil {
		o.logger.Warn("pending input dropped, producer gone session_id=%s", sess.ID)
		return nil
	}
	if err := producer.PostUserText(p.Content, p.UserID); err != nil {
		o.logger.Warn("pending input rejected by engine session_id=%s: %v", sess.ID, err)
		return nil
	}

	if err := o.emit(ctx, sink, core.NewUserMessageEvent(sess.ID, p.UserID, p.Content)); err != nil {
		return err
	}
	return o.reg.UpdateUser(sess.UserID, func(u *flow.UserState) error {
		if u.State == flow.StateWaitingForInput {
			return u.Apply(flow.TriggerInputPosted)
		}
		return nil
	})
}

// finish handles normal exhaustion of the stream. A synthetic completed
// event is emitted because the engine itself produced none.
func (o *Orchestrator) finish(ctx context.Context, sess *registry.Session, sink Sink) error {
	o.complete(sess)
	return o.emit(ctx, sink, core.NewEvent(sess.ID, core.KindConversationCompleted, ""))
}

// complete moves the session and its owner into the completed terminal
// state without emitting anything.
func (o *Orchestrator) complete(sess *registry.Session) {
	_ = o.reg.UpdateUser(sess.UserID, func(u *flow.UserState) error {
		u.SetState(flow.StateEnded)
		return nil
	})
	sess.SetStatus(registry.StatusCompleted)
	o.closeProducer(sess.ID)
	o.logger.Info("conversation completed session_id=%s user_id=%s", sess.ID, sess.UserID)
}

// fail handles a producer failure: the error is surfaced as a normalized
// error event rather than a Stream return value.
func (o *Orchestrator) fail(ctx context.Context, sess *registry.Session, sink Sink, cause error) error {
	o.failState(sess, cause)
	return o.emit(ctx, sink, core.NewErrorEvent(sess.ID, cause))
}

// failState moves the session and its owner into the error terminal state
// without emitting anything.
func (o *Orchestrator) failState(sess *registry.Session, cause error) {
	_ = o.reg.UpdateUser(sess.UserID, func(u *flow.UserState) error {
		return u.Apply(flow.TriggerFail)
	})
	sess.SetStatus(registry.StatusError)
	o.closeProducer(sess.ID)
	o.logger.Error("conversation failed session_id=%s user_id=%s: %v", sess.ID, sess.UserID, cause)
}

// PostUserInput parks a user message for delivery into the live
// conversation. It reports false without side effects unless the user's
// flow state is exactly waiting-for-input. A newer message overwrites an
// undelivered older one; the flow transition back to in-conversation is
// made by the Stream loop when it observes delivery.
func (o *Orchestrator) PostUserInput(userID, text string) (bool, error) {
	if len(text) > MaxMessageLength {
		return false, ErrMessageTooLong
	}
	if o.reg.UserView(userID).State != flow.StateWaitingForInput {
		return false, nil
	}
	sess, ok := o.reg.SessionForUser(userID)
	if !ok {
		return false, nil
	}
	sess.SetPendingInput(text, userID)
	o.logger.Debug("user input parked session_id=%s user_id=%s", sess.ID, userID)
	return true, nil
}

// Pause cancels the session's bridge and marks everything paused. The
// producer is kept so the conversation can be resumed.
func (o *Orchestrator) Pause(userID string) error {
	sess, ok := o.reg.SessionForUser(userID)
	if !ok {
		return fmt.Errorf("no active conversation for user %s: %w", userID, core.ErrNotFound)
	}
	if err := o.reg.UpdateUser(userID, func(u *flow.UserState) error {
		return u.Apply(flow.TriggerPause)
	}); err != nil {
		return err
	}
	sess.CancelBridge()
	sess.SetStatus(registry.StatusPaused)
	o.logger.Info("conversation paused session_id=%s user_id=%s", sess.ID, userID)
	return nil
}

// Resume reopens streaming for a paused conversation. A cancelled bridge is
// never revived; instead the engine is asked to continue and a fresh bridge
// is opened over the same producer. If the producer does not support
// continuing, Resume fails with ErrEngineUnavailable and the session stays
// paused.
func (o *Orchestrator) Resume(userID string) error {
	sess, ok := o.reg.SessionForUser(userID)
	if !ok {
		return fmt.Errorf("no active conversation for user %s: %w", userID, core.ErrNotFound)
	}
	if sess.Status() != registry.StatusPaused {
		return fmt.Errorf("%w: %s on %s", flow.ErrInvalidTransition, flow.TriggerResume, sess.Status())
	}

	producer := o.producerFor(sess.ID)
	resumer, ok := producer.(engine.Resumer)
	if producer == nil || !ok {
		return fmt.Errorf("engine cannot continue after pause: %w", core.ErrEngineUnavailable)
	}
	if err := resumer.Resume(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrEngineUnavailable, err)
	}

	if err := o.reg.UpdateUser(userID, func(u *flow.UserState) error {
		return u.Apply(flow.TriggerResume)
	}); err != nil {
		return err
	}
	// Handing the cancelled bridge to Reopen lets the successor worker
	// take over the producer without racing the old worker, and recover
	// an event the old worker dequeued but never delivered.
	sess.AttachBridge(bridge.Reopen(producer, sess.Bridge()))
	sess.SetStatus(registry.StatusActive)
	o.logger.Info("conversation resumed session_id=%s user_id=%s", sess.ID, userID)
	return nil
}

// Stop terminates the user's conversation: the bridge is cancelled, the
// producer closed, and both flow state and session status become ended.
func (o *Orchestrator) Stop(userID string) error {
	sess, ok := o.reg.SessionForUser(userID)
	if !ok {
		return fmt.Errorf("no active conversation for user %s: %w", userID, core.ErrNotFound)
	}
	if err := o.reg.UpdateUser(userID, func(u *flow.UserState) error {
		return u.Apply(flow.TriggerStop)
	}); err != nil {
		return err
	}
	sess.CancelBridge()
	sess.SetStatus(registry.StatusStopped)
	o.closeProducer(sess.ID)
	o.logger.Info("conversation stopped session_id=%s user_id=%s", sess.ID, userID)
	return nil
}

// Description is the read-only snapshot returned by Describe.
type Description struct {
	UserID           string    `json:"user_id"`
	State            string    `json:"state"`
	StateDescription string    `json:"state_description"`
	Preset           string    `json:"preset,omitempty"`
	Topic            string    `json:"topic,omitempty"`
	ConversationID   string    `json:"conversation_id,omitempty"`
	SessionStatus    string    `json:"session_status,omitempty"`
	Events           int       `json:"events"`
	CanStart         bool      `json:"can_start"`
	InConversation   bool      `json:"in_conversation"`
	LastActivity     time.Time `json:"last_activity"`
}

// Describe reports the user's current flow position and, when a conversation
// is bound, its session status and event count.
func (o *Orchestrator) Describe(userID string) Description {
	view := o.reg.UserView(userID)
	d := Description{
		UserID:           userID,
		State:            view.State.String(),
		StateDescription: view.State.Description(),
		Preset:           view.SelectedPreset,
		Topic:            view.SelectedTopic,
		ConversationID:   view.ActiveConversationID,
		CanStart:         view.CanStartNewConversation(),
		InConversation:   view.IsInConversation(),
		LastActivity:     view.LastActivity,
	}
	if sess, ok := o.reg.SessionForUser(userID); ok {
		d.SessionStatus = sess.Status().String()
		if n, ok := sess.Metadata("events"); ok {
			if c, ok := n.(int); ok {
				d.Events = c
			}
		}
	}
	return d
}

func (o *Orchestrator) producerFor(sessionID string) engine.Producer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.producers[sessionID]
}

func (o *Orchestrator) closeProducer(sessionID string) {
	o.mu.Lock()
	producer := o.producers[sessionID]
	delete(o.producers, sessionID)
	o.mu.Unlock()
	if producer != nil {
		if err := producer.Close(); err != nil {
			o.logger.Warn("producer close failed session_id=%s: %v", sessionID, err)
		}
	}
}
