// Package flow implements the per-user finite state machine that tracks where
// a human is in the start → topic → confirm → live → end lifecycle,
// independent of any one conversation.
//
// The machine is deliberately dumb: it validates transitions and maintains
// the active-conversation invariant, nothing more. Which trigger fires, and
// what happens on rejection, is the orchestrator's call.
package flow
