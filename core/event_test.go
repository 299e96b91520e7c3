package core

import (
	"errors"
	"testing"
)

// Event constructor & helper tests
func TestEvent_Constructors(t *testing.T) {
	e := NewEvent("conv-123", KindAgentMessage, "hello")
	if e.ConversationID != "conv-123" || e.Kind != KindAgentMessage || e.Content != "hello" {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent missing id or timestamp: %+v", e)
	}

	user := NewUserMessageEvent("conv-123", "u7", "hi")
	if user.Kind != KindUserMessage || user.Role != RoleUser || user.Metadata["user_id"] != "u7" {
		t.Fatalf("NewUserMessageEvent malformed: %+v", user)
	}

	errEv := NewErrorEvent("conv-123", errors.New("boom"))
	if errEv.Kind != KindError || errEv.Content != "boom" {
		t.Fatalf("NewErrorEvent malformed: %+v", errEv)
	}
}

func TestNormalize_RoleReclassification(t *testing.T) {
	tests := []struct {
		name string
		raw  RawEvent
		want EventKind
	}{
		{"plain agent", RawEvent{Kind: "agent_message", Role: RoleAgent}, KindAgentMessage},
		{"user echo", RawEvent{Kind: "agent_message", Role: RoleUser}, KindUserMessage},
		{"moderator", RawEvent{Kind: "agent_message", Role: RoleModerator}, KindModeratorAction},
		{"summarizer", RawEvent{Kind: "agent_message", Role: RoleSummarizer}, KindSummaryUpdate},
		{"turn handoff", RawEvent{Kind: "user_turn"}, KindUserTurn},
		{"completed", RawEvent{Kind: "conversation_completed"}, KindConversationCompleted},
		{"unknown tag", RawEvent{Kind: "weird_engine_thing"}, KindAgentMessage},
		{"empty tag", RawEvent{}, KindAgentMessage},
		// role tags only reclassify the generic kind, never an explicit one
		{"role on explicit kind", RawEvent{Kind: "user_turn", Role: RoleModerator}, KindUserTurn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize("conv", tt.raw)
			if got.Kind != tt.want {
				t.Fatalf("Normalize(%+v).Kind = %s, want %s", tt.raw, got.Kind, tt.want)
			}
		})
	}
}

func TestNormalize_CarriesFields(t *testing.T) {
	raw := RawEvent{
		Kind:     "agent_message",
		Content:  "an argument",
		Metadata: map[string]any{"display_name": "Pro"},
		Round:    3,
		AgentID:  "pro",
		Role:     RoleAgent,
	}
	ev := Normalize("conv-9", raw)
	if ev.ConversationID != "conv-9" || ev.Content != "an argument" || ev.Round != 3 {
		t.Fatalf("Normalize dropped fields: %+v", ev)
	}
	if ev.AgentID != "pro" || ev.Role != RoleAgent || ev.Metadata["display_name"] != "Pro" {
		t.Fatalf("Normalize dropped attribution: %+v", ev)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Fatalf("Normalize missing id or timestamp: %+v", ev)
	}
}

func TestNewID_Unique(t *testing.T) {
	if NewID() == NewID() {
		t.Fatal("expected unique ids")
	}
}
