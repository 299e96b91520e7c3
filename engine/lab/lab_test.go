package lab

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
	"github.com/Alexeyisme/agentrylab-telegram-bot/model"
	"github.com/Alexeyisme/agentrylab-telegram-bot/preset"
)

// mockModel returns canned content and records every request it sees.
type mockModel struct {
	mu       sync.Mutex
	content  string
	err      error
	requests []model.Request
}

func (m *mockModel) Generate(_ context.Context, req model.Request) (model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return model.Response{}, m.err
	}
	return model.Response{Content: m.content, FinishReason: "stop"}, nil
}

func (m *mockModel) Info() model.Info {
	return model.Info{Name: "mock", Provider: "mock"}
}

func (m *mockModel) lastRequest() model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func testCatalog(t *testing.T, userTurnEvery int) *preset.Catalog {
	t.Helper()
	c := preset.NewCatalog()
	err := c.Register(&preset.Preset{
		ID:            "panel",
		Name:          "Panel",
		MaxRounds:     5,
		UserTurnEvery: userTurnEvery,
		Participants: []preset.Participant{
			{ID: "alice", Role: core.RoleAgent, DisplayName: "Alice", Prompt: "Discuss {{.Topic}} optimistically."},
			{ID: "bob", Role: core.RoleModerator, Prompt: "Moderate {{.Topic}}."},
		},
	})
	require.NoError(t, err)
	return c
}

func TestCreateProducerResolvesPresetAndModels(t *testing.T) {
	mm := &mockModel{content: "hi"}
	l := New(testCatalog(t, 0), func(o *Options) {
		o.Models = map[string]model.Model{DefaultModelKey: mm}
	})

	p, err := l.CreateProducer(context.Background(), "panel", "space travel", 2)
	require.NoError(t, err)
	defer p.Close()

	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, string(core.KindAgentMessage), ev.Kind)
	assert.Equal(t, "alice", ev.AgentID)
	assert.Equal(t, core.RoleAgent, ev.Role)
	assert.Equal(t, 0, ev.Round)
	assert.Equal(t, "Alice", ev.Metadata["display_name"])

	// The rendered prompt reaches the model as the system instruction.
	assert.Equal(t, "Discuss space travel optimistically.", mm.lastRequest().System)
}

func TestCreateProducerUnknownPreset(t *testing.T) {
	l := New(testCatalog(t, 0))
	_, err := l.CreateProducer(context.Background(), "nope", "topic", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateProducerMissingProvider(t *testing.T) {
	c := preset.NewCatalog()
	require.NoError(t, c.Register(&preset.Preset{
		ID:        "solo",
		Name:      "Solo",
		MaxRounds: 1,
		Participants: []preset.Participant{
			{ID: "a", Role: core.RoleAgent, Provider: "exotic", Prompt: "x"},
		},
	}))
	l := New(c)
	_, err := l.CreateProducer(context.Background(), "solo", "topic", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exotic")
}

func TestProducerRoundProgressionAndExhaustion(t *testing.T) {
	mm := &mockModel{content: "msg"}
	l := New(testCatalog(t, 0), func(o *Options) {
		o.Models = map[string]model.Model{DefaultModelKey: mm}
	})

	p, err := l.CreateProducer(context.Background(), "panel", "t", 2)
	require.NoError(t, err)
	defer p.Close()

	var got []core.RawEvent
	for {
		ev, err := p.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		got = append(got, ev)
	}
	// 2 rounds x 2 participants, no user turns.
	require.Len(t, got, 4)
	assert.Equal(t, []string{"alice", "bob", "alice", "bob"},
		[]string{got[0].AgentID, got[1].AgentID, got[2].AgentID, got[3].AgentID})
	assert.Equal(t, 0, got[1].Round)
	assert.Equal(t, 1, got[2].Round)

	// Exhaustion is sticky.
	_, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestProducerRoundsClampToPresetMax(t *testing.T) {
	mm := &mockModel{content: "msg"}
	l := New(testCatalog(t, 0), func(o *Options) {
		o.Models = map[string]model.Model{DefaultModelKey: mm}
	})

	p, err := l.CreateProducer(context.Background(), "panel", "t", 100)
	require.NoError(t, err)
	defer p.Close()

	n := 0
	for {
		if _, err := p.Next(); err != nil {
			break
		}
		n++
	}
	// MaxRounds is 5, two participants per round.
	assert.Equal(t, 10, n)
}

func TestProducerUserTurnCadence(t *testing.T) {
	mm := &mockModel{content: "msg"}
	l := New(testCatalog(t, 1), func(o *Options) {
		o.Models = map[string]model.Model{DefaultModelKey: mm}
	})

	p, err := l.CreateProducer(context.Background(), "panel", "t", 3)
	require.NoError(t, err)
	defer p.Close()

	var kinds []string
	for {
		ev, err := p.Next()
		if err != nil {
			break
		}
		kinds = append(kinds, ev.Kind)
	}
	want := []string{
		"agent_message", "agent_message",
		"user_turn",
		"agent_message", "agent_message",
		"user_turn",
		"agent_message", "agent_message",
	}
	// No trailing user turn after the final round.
	assert.Equal(t, want, kinds)
}

func TestPostUserTextReachesNextSpeaker(t *testing.T) {
	mm := &mockModel{content: "msg"}
	l := New(testCatalog(t, 0), func(o *Options) {
		o.Models = map[string]model.Model{DefaultModelKey: mm}
	})

	p, err := l.CreateProducer(context.Background(), "panel", "t", 1)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.PostUserText("please focus on costs", "42"))

	_, err = p.Next()
	require.NoError(t, err)

	req := mm.lastRequest()
	found := false
	for _, m := range req.Messages {
		if m.Role == model.RoleUser && m.Content == "42: please focus on costs" {
			found = true
		}
	}
	assert.True(t, found, "user text should be in the transcript view")
}

func TestTranscriptViewAttribution(t *testing.T) {
	mm := &mockModel{content: "msg"}
	l := New(testCatalog(t, 0), func(o *Options) {
		o.Models = map[string]model.Model{DefaultModelKey: mm}
	})

	p, err := l.CreateProducer(context.Background(), "panel", "t", 2)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 3; i++ {
		if _, err := p.Next(); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}

	// Third call is alice again: her own round-0 message must come back as
	// assistant, bob's as an attributed user message.
	req := mm.lastRequest()
	require.Len(t, req.Messages, 3) // topic, alice, bob
	assert.Equal(t, model.RoleUser, req.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, model.RoleUser, req.Messages[2].Role)
	assert.Equal(t, "bob: msg", req.Messages[2].Content)
}

func TestProducerModelErrorSurfaces(t *testing.T) {
	boom := errors.New("provider down")
	mm := &mockModel{err: boom}
	l := New(testCatalog(t, 0), func(o *Options) {
		o.Models = map[string]model.Model{DefaultModelKey: mm}
	})

	p, err := l.CreateProducer(context.Background(), "panel", "t", 1)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "alice")
}

func TestProducerClose(t *testing.T) {
	mm := &mockModel{content: "msg"}
	l := New(testCatalog(t, 0), func(o *Options) {
		o.Models = map[string]model.Model{DefaultModelKey: mm}
	})

	p, err := l.CreateProducer(context.Background(), "panel", "t", 2)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Error(t, p.PostUserText("late", "42"))

	r, ok := p.(interface{ Resume() error })
	require.True(t, ok)
	assert.Error(t, r.Resume())
}

func TestProducerResumeKeepsPosition(t *testing.T) {
	mm := &mockModel{content: "msg"}
	l := New(testCatalog(t, 0), func(o *Options) {
		o.Models = map[string]model.Model{DefaultModelKey: mm}
	})

	p, err := l.CreateProducer(context.Background(), "panel", "t", 1)
	require.NoError(t, err)
	defer p.Close()

	ev, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, "alice", ev.AgentID)

	r, ok := p.(interface{ Resume() error })
	require.True(t, ok)
	require.NoError(t, r.Resume())

	ev, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, "bob", ev.AgentID)
}
