package lab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
	"github.com/Alexeyisme/agentrylab-telegram-bot/model"
)

// userTurnPrompt is the content carried on user_turn events.
const userTurnPrompt = "It's your turn! Send a message to join the conversation."

type boundParticipant struct {
	id     string
	role   string
	name   string
	prompt string
	model  model.Model
}

// entry is one utterance in the shared transcript.
type entry struct {
	speakerID string
	name      string
	content   string
}

// producer walks the participant roster round by round, computing one event
// per Next call. State is mutex-guarded so that a successor bridge worker
// may take over after the previous one was cancelled mid-call.
type producer struct {
	ctx    context.Context
	cancel context.CancelFunc

	topic         string
	rounds        int
	userTurnEvery int
	parts         []boundParticipant

	mu         sync.Mutex
	transcript []entry
	round      int
	idx        int
	userTurn   bool
	closed     bool
}

func newProducer(ctx context.Context, topic string, rounds, userTurnEvery int, parts []boundParticipant) *producer {
	ctx, cancel := context.WithCancel(ctx)
	return &producer{
		ctx:           ctx,
		cancel:        cancel,
		topic:         topic,
		rounds:        rounds,
		userTurnEvery: userTurnEvery,
		parts:         parts,
	}
}

// Next computes and returns the next conversation event. It blocks for the
// duration of one model call. io.EOF signals that the round budget is
// exhausted.
func (p *producer) Next() (core.RawEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return core.RawEvent{}, io.EOF
	}
	if err := p.ctx.Err(); err != nil {
		return core.RawEvent{}, io.EOF
	}

	if p.userTurn {
		p.userTurn = false
		return core.RawEvent{
			Kind:    string(core.KindUserTurn),
			Content: userTurnPrompt,
			Round:   p.round,
		}, nil
	}

	if p.round >= p.rounds {
		return core.RawEvent{}, io.EOF
	}

	part := p.parts[p.idx]
	resp, err := part.model.Generate(p.ctx, model.Request{
		System:   part.prompt,
		Messages: p.viewFor(part.id),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return core.RawEvent{}, io.EOF
		}
		return core.RawEvent{}, fmt.Errorf("participant %s: %w", part.id, err)
	}

	p.transcript = append(p.transcript, entry{
		speakerID: part.id,
		name:      part.name,
		content:   resp.Content,
	})

	ev := core.RawEvent{
		Kind:     string(core.KindAgentMessage),
		Content:  resp.Content,
		Round:    p.round,
		AgentID:  part.id,
		Role:     part.role,
		Metadata: map[string]any{"display_name": part.name},
	}

	p.idx++
	if p.idx >= len(p.parts) {
		p.idx = 0
		p.round++
		if p.userTurnEvery > 0 && p.round < p.rounds && p.round%p.userTurnEvery == 0 {
			p.userTurn = true
		}
	}
	return ev, nil
}

// viewFor renders the transcript from one participant's perspective: its own
// utterances come back as assistant messages, everyone else's as attributed
// user messages. The first message always carries the topic so a model sees
// something to respond to even on an empty transcript.
func (p *producer) viewFor(selfID string) []model.Message {
	msgs := make([]model.Message, 0, len(p.transcript)+1)
	msgs = append(msgs, model.Message{
		Role:    model.RoleUser,
		Content: "Topic: " + p.topic,
	})
	for _, e := range p.transcript {
		if e.speakerID == selfID {
			msgs = append(msgs, model.Message{Role: model.RoleAssistant, Content: e.content})
			continue
		}
		msgs = append(msgs, model.Message{
			Role:    model.RoleUser,
			Name:    e.name,
			Content: fmt.Sprintf("%s: %s", e.name, e.content),
		})
	}
	return msgs
}

// PostUserText records a human message into the shared transcript. It never
// blocks on model work; the text is picked up by whichever participant
// speaks next.
func (p *producer) PostUserText(text, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("producer is closed")
	}
	name := userID
	if name == "" {
		name = "user"
	}
	p.transcript = append(p.transcript, entry{speakerID: "user:" + userID, name: name, content: text})
	return nil
}

// Resume confirms the producer can continue iterating after a pause. The
// roster position and transcript survive bridge cancellation, so resuming is
// a no-op unless the producer was closed.
func (p *producer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("producer is closed")
	}
	if err := p.ctx.Err(); err != nil {
		return fmt.Errorf("producer context finished: %w", err)
	}
	return nil
}

// Close releases the producer and interrupts any in-flight model call.
func (p *producer) Close() error {
	p.cancel()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
