package core

import "errors"

// Error taxonomy shared by the registry and orchestrator. The orchestrator
// decides per operation whether a failure is terminal or recoverable; lower
// layers never retry on their own behalf.
var (
	// ErrUserAlreadyActive rejects a start while the user still owns an
	// active conversation. Recoverable: the user may stop and retry.
	ErrUserAlreadyActive = errors.New("user already has an active conversation")

	// ErrEngineUnavailable signals that the engine could not materialize or
	// resume a producer. Recoverable by retrying start.
	ErrEngineUnavailable = errors.New("conversation engine unavailable")

	// ErrNotFound signals an unknown session or user at the caller boundary.
	ErrNotFound = errors.New("not found")
)
