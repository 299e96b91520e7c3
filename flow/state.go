package flow

import (
	"errors"
	"fmt"
)

// State enumerates the positions of a user's conversation flow.
type State int

const (
	// StateIdle is the resting state with no flow in progress.
	StateIdle State = iota
	// StateSelectingPreset means the user is choosing a conversation type.
	StateSelectingPreset
	// StateEnteringTopic means the user is typing a topic.
	StateEnteringTopic
	// StateConfirmingTopic means the user is confirming the chosen topic.
	StateConfirmingTopic
	// StateStarting means a session is being created with the engine.
	StateStarting
	// StateInConversation means a conversation is live and agents are talking.
	StateInConversation
	// StateWaitingForInput means the engine handed the turn to the user.
	StateWaitingForInput
	// StatePaused means the live conversation is paused.
	StatePaused
	// StateEnded means the conversation finished or was stopped.
	StateEnded
	// StateError means an unrecoverable error occurred.
	StateError
)

// String returns the persistent string form of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelectingPreset:
		return "selecting_preset"
	case StateEnteringTopic:
		return "entering_topic"
	case StateConfirmingTopic:
		return "confirming_topic"
	case StateStarting:
		return "starting_conversation"
	case StateInConversation:
		return "in_conversation"
	case StateWaitingForInput:
		return "waiting_for_user_input"
	case StatePaused:
		return "conversation_paused"
	case StateEnded:
		return "conversation_ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Description returns a human-readable description of the state.
func (s State) Description() string {
	switch s {
	case StateIdle:
		return "Ready to start a new conversation"
	case StateSelectingPreset:
		return "Choosing a conversation type"
	case StateEnteringTopic:
		return "Entering a topic for the conversation"
	case StateConfirmingTopic:
		return "Confirming the topic and starting conversation"
	case StateStarting:
		return "Starting the conversation with AI agents"
	case StateInConversation:
		return "In an active conversation"
	case StateWaitingForInput:
		return "Waiting for your input"
	case StatePaused:
		return "Conversation is paused"
	case StateEnded:
		return "Conversation has ended"
	case StateError:
		return "An error occurred"
	default:
		return "Unknown state"
	}
}

// Trigger names an external cause for a state transition.
type Trigger string

// Transition triggers.
const (
	// TriggerSelectPreset fires when the user picks a preset.
	TriggerSelectPreset Trigger = "select_preset"
	// TriggerEnterTopic fires when the user requests custom or selected topic entry.
	TriggerEnterTopic Trigger = "enter_topic"
	// TriggerSubmitTopic fires when a valid topic is submitted.
	TriggerSubmitTopic Trigger = "submit_topic"
	// TriggerConfirm fires when the user confirms the topic.
	TriggerConfirm Trigger = "confirm_topic"
	// TriggerStarted fires when the session was created successfully.
	TriggerStarted Trigger = "session_started"
	// TriggerStartFailed fires when session creation fails.
	TriggerStartFailed Trigger = "session_failed"
	// TriggerUserTurn fires when the engine hands the turn to the user.
	TriggerUserTurn Trigger = "user_turn"
	// TriggerInputPosted fires when posted user input was accepted.
	TriggerInputPosted Trigger = "input_posted"
	// TriggerPause fires when the user requests a pause.
	TriggerPause Trigger = "pause"
	// TriggerResume fires when the user requests a resume.
	TriggerResume Trigger = "resume"
	// TriggerStop fires when the user stops the conversation or the engine completes.
	TriggerStop Trigger = "stop"
	// TriggerFail fires on an unrecoverable error; valid from any state.
	TriggerFail Trigger = "fail"
)

// ErrInvalidTransition is returned by Apply when the trigger is not valid
// for the current state.
var ErrInvalidTransition = errors.New("invalid flow transition")

// transitions is the flow transition table. TriggerFail is handled out of
// band since it applies from every state.
var transitions = map[State]map[Trigger]State{
	StateIdle: {
		TriggerSelectPreset: StateSelectingPreset,
	},
	StateSelectingPreset: {
		TriggerEnterTopic: StateEnteringTopic,
	},
	StateEnteringTopic: {
		TriggerSubmitTopic: StateConfirmingTopic,
		// Starting over from mid-topic entry is allowed; see
		// CanStartNewConversation for the matching predicate.
		TriggerSelectPreset: StateSelectingPreset,
	},
	StateConfirmingTopic: {
		TriggerConfirm: StateStarting,
	},
	StateStarting: {
		TriggerStarted:     StateInConversation,
		TriggerStartFailed: StateError,
	},
	StateInConversation: {
		TriggerUserTurn: StateWaitingForInput,
		TriggerPause:    StatePaused,
		TriggerStop:     StateEnded,
	},
	StateWaitingForInput: {
		TriggerInputPosted: StateInConversation,
		TriggerPause:       StatePaused,
		TriggerStop:        StateEnded,
	},
	StatePaused: {
		TriggerResume: StateInConversation,
		TriggerStop:   StateEnded,
	},
	StateEnded: {
		TriggerSelectPreset: StateSelectingPreset,
	},
	StateError: {
		TriggerSelectPreset: StateSelectingPreset,
	},
}

// Next resolves the target state for a trigger from the given state. It
// returns ErrInvalidTransition when the table does not permit the move.
func Next(from State, tr Trigger) (State, error) {
	if tr == TriggerFail {
		return StateError, nil
	}
	if to, ok := transitions[from][tr]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, tr, from)
}
