// Package testutil provides scripted engine doubles for exercising the
// stream pipeline without real models.
package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
	"github.com/Alexeyisme/agentrylab-telegram-bot/engine"
)

// Step is one scripted producer result: either an event or an error.
type Step struct {
	Event core.RawEvent
	Err   error
}

// PostedText records one text injected through PostUserText.
type PostedText struct {
	Text   string
	UserID string
}

// ScriptedProducer is an engine.Producer fed step by step from the test.
// Next blocks until the test emits a step, which makes event pacing fully
// deterministic.
type ScriptedProducer struct {
	mu     sync.Mutex
	ch     chan Step
	posted []PostedText
	closed bool
}

// NewScriptedProducer creates a producer with the given feed buffer.
func NewScriptedProducer(buffer int) *ScriptedProducer {
	return &ScriptedProducer{ch: make(chan Step, buffer)}
}

func (p *ScriptedProducer) feed() chan Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch
}

// Emit hands the next event to whoever is blocked in Next.
func (p *ScriptedProducer) Emit(ev core.RawEvent) { p.feed() <- Step{Event: ev} }

// EmitErr makes the next Next call fail with err.
func (p *ScriptedProducer) EmitErr(err error) { p.feed() <- Step{Err: err} }

// Finish exhausts the stream: further Next calls return io.EOF.
func (p *ScriptedProducer) Finish() { close(p.feed()) }

// Next blocks for the next scripted step.
func (p *ScriptedProducer) Next() (core.RawEvent, error) {
	s, ok := <-p.feed()
	if !ok {
		return core.RawEvent{}, io.EOF
	}
	if s.Err != nil {
		return core.RawEvent{}, s.Err
	}
	return s.Event, nil
}

// PostUserText records the injected text.
func (p *ScriptedProducer) PostUserText(text, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("producer is closed")
	}
	p.posted = append(p.posted, PostedText{Text: text, UserID: userID})
	return nil
}

// Posted returns a copy of everything injected so far.
func (p *ScriptedProducer) Posted() []PostedText {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PostedText, len(p.posted))
	copy(out, p.posted)
	return out
}

// Close marks the producer closed.
func (p *ScriptedProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *ScriptedProducer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ResumableProducer is a ScriptedProducer that also supports continuing
// after a pause. Resume is a pure liveness check; the same feed keeps
// serving steps across the handover.
type ResumableProducer struct {
	*ScriptedProducer
}

// NewResumableProducer creates a resumable scripted producer.
func NewResumableProducer(buffer int) *ResumableProducer {
	return &ResumableProducer{ScriptedProducer: NewScriptedProducer(buffer)}
}

// Resume implements engine.Resumer.
func (p *ResumableProducer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("producer is closed")
	}
	return nil
}

// CreateCall records one CreateProducer invocation.
type CreateCall struct {
	PresetID string
	Topic    string
	Rounds   int
}

// ScriptEngine is an engine.Engine returning pre-arranged producers.
type ScriptEngine struct {
	mu        sync.Mutex
	producers []engine.Producer
	err       error
	calls     []CreateCall
}

// NewScriptEngine creates an engine that hands out the given producers in
// order. Once they run out, CreateProducer fails.
func NewScriptEngine(producers ...engine.Producer) *ScriptEngine {
	return &ScriptEngine{producers: producers}
}

// FailWith makes every subsequent CreateProducer call return err.
func (e *ScriptEngine) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// CreateProducer implements engine.Engine.
func (e *ScriptEngine) CreateProducer(_ context.Context, presetID, topic string, rounds int) (engine.Producer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, CreateCall{PresetID: presetID, Topic: topic, Rounds: rounds})
	if e.err != nil {
		return nil, e.err
	}
	if len(e.producers) == 0 {
		return nil, errors.New("no scripted producer available")
	}
	p := e.producers[0]
	e.producers = e.producers[1:]
	return p, nil
}

// Calls returns a copy of all CreateProducer invocations.
func (e *ScriptEngine) Calls() []CreateCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]CreateCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// AgentMessage builds a raw agent message event.
func AgentMessage(content string, round int, agentID, role string) core.RawEvent {
	return core.RawEvent{
		Kind:    string(core.KindAgentMessage),
		Content: content,
		Round:   round,
		AgentID: agentID,
		Role:    role,
	}
}

// UserTurn builds a raw turn-handoff event.
func UserTurn(round int) core.RawEvent {
	return core.RawEvent{
		Kind:    string(core.KindUserTurn),
		Content: "It's your turn!",
		Round:   round,
	}
}
