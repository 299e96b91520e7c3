package flow

import "time"

// UserState tracks one user's position in the conversation flow plus the
// context accumulated along the way (preset, topic, active conversation).
//
// UserState carries no internal locking: the registry owns all user states
// and serializes access behind its own mutex.
type UserState struct {
	UserID               string
	State                State
	SelectedPreset       string
	SelectedTopic        string
	ActiveConversationID string
	LastActivity         time.Time
	Metadata             map[string]any
}

// NewUserState creates a fresh idle state for a user.
func NewUserState(userID string) *UserState {
	return &UserState{
		UserID:       userID,
		State:        StateIdle,
		LastActivity: time.Now().UTC(),
		Metadata:     map[string]any{},
	}
}

// Touch updates the last-activity timestamp.
func (u *UserState) Touch() { u.LastActivity = time.Now().UTC() }

// SetState moves the user to the given state unconditionally and maintains
// the invariant that ActiveConversationID is set only while the user is in
// a conversation. Prefer Apply when the transition table should be enforced.
func (u *UserState) SetState(s State) {
	u.State = s
	if !u.IsInConversation() {
		u.ActiveConversationID = ""
	}
	u.Touch()
}

// Apply validates the trigger against the transition table and, if legal,
// moves to the resulting state.
func (u *UserState) Apply(tr Trigger) error {
	next, err := Next(u.State, tr)
	if err != nil {
		return err
	}
	u.SetState(next)
	return nil
}

// SetPreset records the chosen preset.
func (u *UserState) SetPreset(presetID string) {
	u.SelectedPreset = presetID
	u.Touch()
}

// SetTopic records the chosen topic.
func (u *UserState) SetTopic(topic string) {
	u.SelectedTopic = topic
	u.Touch()
}

// EnterConversation binds the user to a live conversation.
func (u *UserState) EnterConversation(conversationID string) {
	u.State = StateInConversation
	u.ActiveConversationID = conversationID
	u.Touch()
}

// Reset returns the state to idle and clears all accumulated context.
func (u *UserState) Reset() {
	u.State = StateIdle
	u.SelectedPreset = ""
	u.SelectedTopic = ""
	u.ActiveConversationID = ""
	u.Metadata = map[string]any{}
	u.Touch()
}

// IsActive reports whether the user is anywhere in the flow, i.e. any state
// other than idle, ended or error. Active states are exempt from reclamation.
func (u *UserState) IsActive() bool {
	switch u.State {
	case StateIdle, StateEnded, StateError:
		return false
	default:
		return true
	}
}

// IsInConversation reports whether a conversation is live for the user.
func (u *UserState) IsInConversation() bool {
	switch u.State {
	case StateInConversation, StateWaitingForInput, StatePaused:
		return true
	default:
		return false
	}
}

// CanStartNewConversation reports whether a new conversation may be started.
// EnteringTopic is included deliberately: the upstream flow always allowed
// starting over while a topic was being typed, and callers depend on it.
func (u *UserState) CanStartNewConversation() bool {
	switch u.State {
	case StateIdle, StateEnteringTopic, StateEnded, StateError:
		return true
	default:
		return false
	}
}
