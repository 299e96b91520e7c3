package core

import (
	"time"

	"github.com/google/uuid"
)

// Participant roles carried on raw engine events. The engine tags generic
// agent messages with the role of the speaking participant; normalization
// uses the role to pick the final event kind.
const (
	RoleUser       = "user"
	RoleModerator  = "moderator"
	RoleSummarizer = "summarizer"
	RoleAgent      = "agent"
)

// RawEvent is the wire-level event shape yielded by a conversation engine
// producer. Kind is an open string tag owned by the engine; everything past
// the normalization boundary works with Event instead.
type RawEvent struct {
	Kind     string         `json:"event"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Round    int            `json:"iter"`
	AgentID  string         `json:"agent_id,omitempty"`
	Role     string         `json:"role,omitempty"`
}

// EventKind is the closed set of normalized event kinds delivered to sinks.
type EventKind string

// Normalized event kinds.
const (
	KindConversationStarted   EventKind = "conversation_started"
	KindAgentMessage          EventKind = "agent_message"
	KindUserMessage           EventKind = "user_message"
	KindModeratorAction       EventKind = "moderator_action"
	KindSummaryUpdate         EventKind = "summary_update"
	KindUserTurn              EventKind = "user_turn"
	KindConversationCompleted EventKind = "conversation_completed"
	KindError                 EventKind = "error"
)

// Event is the normalized unit of communication handed to sinks. After
// emission it should be treated as immutable.
type Event struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Kind           EventKind      `json:"kind"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Round          int            `json:"round"`
	AgentID        string         `json:"agent_id,omitempty"`
	Role           string         `json:"role,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// NewEvent creates a bare normalized event bound to a conversation.
func NewEvent(conversationID string, kind EventKind, content string) Event {
	return Event{
		ID:             NewID(),
		ConversationID: conversationID,
		Kind:           kind,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}
}

// NewUserMessageEvent creates the synthetic event emitted when a pending user
// message is forwarded into the engine mid-stream.
func NewUserMessageEvent(conversationID, userID, content string) Event {
	e := NewEvent(conversationID, KindUserMessage, content)
	e.Role = RoleUser
	e.Metadata = map[string]any{"user_id": userID}
	return e
}

// NewErrorEvent wraps a terminal failure as a normalized error event.
func NewErrorEvent(conversationID string, err error) Event {
	return NewEvent(conversationID, KindError, err.Error())
}

// Normalize converts a raw engine event into a normalized Event for the
// given conversation. Role-tagged generic agent messages are reclassified
// into user_message / moderator_action / summary_update sub-kinds; unknown
// raw tags pass through as agent messages so nothing is silently dropped.
func Normalize(conversationID string, raw RawEvent) Event {
	kind := EventKind(raw.Kind)
	if raw.Kind == "" {
		kind = KindAgentMessage
	}

	if kind == KindAgentMessage {
		switch raw.Role {
		case RoleUser:
			kind = KindUserMessage
		case RoleModerator:
			kind = KindModeratorAction
		case RoleSummarizer:
			kind = KindSummaryUpdate
		}
	}

	switch kind {
	case KindConversationStarted, KindAgentMessage, KindUserMessage,
		KindModeratorAction, KindSummaryUpdate, KindUserTurn,
		KindConversationCompleted, KindError:
	default:
		kind = KindAgentMessage
	}

	e := NewEvent(conversationID, kind, raw.Content)
	e.Metadata = raw.Metadata
	e.Round = raw.Round
	e.AgentID = raw.AgentID
	e.Role = raw.Role

	return e
}

// NewID generates a new unique identifier for events and conversations.
func NewID() string { return uuid.NewString() }
