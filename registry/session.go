package registry

import (
	"sync"
	"time"

	"github.com/Alexeyisme/agentrylab-telegram-bot/bridge"
	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
)

// Status is the lifecycle status of a conversation session.
type Status int

const (
	// StatusStarting is the implicit status between reservation and the
	// engine producing a live bridge.
	StatusStarting Status = iota
	// StatusActive means the session's bridge is live and streaming.
	StatusActive
	// StatusPaused means the user paused the session; its bridge is cancelled.
	StatusPaused
	// StatusStopped means the user stopped the session.
	StatusStopped
	// StatusCompleted means the engine finished the conversation normally.
	StatusCompleted
	// StatusError means the session terminated on a failure.
	StatusError
)

// String returns the persistent string form of the status.
func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is a terminal one.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusCompleted || s == StatusError
}

// PendingInput is one not-yet-delivered user message parked in a session's
// single-slot mailbox.
type PendingInput struct {
	Content string
	UserID  string
}

// Session is the runtime record of one active or recently-active
// conversation: its lifecycle status, the bridge it exclusively owns, and
// the pending-input mailbox. It is safe for concurrent access.
type Session struct {
	ID      string
	UserID  string
	Created time.Time

	mu       sync.RWMutex
	status   Status
	bridge   *bridge.Bridge
	metadata map[string]any
	updated  time.Time

	inputMu sync.Mutex
	pending *PendingInput
}

// NewSession creates a session in the implicit starting status.
func NewSession(userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:       core.NewID(),
		UserID:   userID,
		Created:  now,
		status:   StatusStarting,
		metadata: map[string]any{},
		updated:  now,
	}
}

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus updates the lifecycle status. Mutated only by the orchestrator
// via the registry.
func (s *Session) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	s.updated = time.Now().UTC()
}

// Bridge returns the bridge currently owned by the session, if any.
func (s *Session) Bridge() *bridge.Bridge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bridge
}

// AttachBridge hands ownership of a bridge to the session. Any previously
// owned bridge is cancelled first, preserving the one-live-bridge invariant.
func (s *Session) AttachBridge(b *bridge.Bridge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bridge != nil {
		s.bridge.Cancel()
	}
	s.bridge = b
	s.updated = time.Now().UTC()
}

// CancelBridge cancels the owned bridge, if any. The bridge handle is kept so
// a draining loop still observes end-of-stream cleanly.
func (s *Session) CancelBridge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bridge != nil {
		s.bridge.Cancel()
	}
	s.updated = time.Now().UTC()
}

// SetMetadata records a per-conversation metadata entry (round budget, start
// timestamp, counters).
func (s *Session) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
	s.updated = time.Now().UTC()
}

// Metadata returns the value and existence flag for a metadata key.
func (s *Session) Metadata(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.metadata[key]
	return v, ok
}

// AddCounter increments an integer metadata counter.
func (s *Session) AddCounter(key string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := s.metadata[key].(int)
	s.metadata[key] = n + delta
	s.updated = time.Now().UTC()
}

// SetPendingInput writes the mailbox slot. The write never blocks: if an
// undelivered message is already parked, the newest write overwrites it.
// This overwrite-newest policy is deliberate, not an oversight.
func (s *Session) SetPendingInput(content, userID string) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	s.pending = &PendingInput{Content: content, UserID: userID}
}

// TakePendingInput drains the mailbox slot without blocking.
func (s *Session) TakePendingInput() (PendingInput, bool) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	if s.pending == nil {
		return PendingInput{}, false
	}
	p := *s.pending
	s.pending = nil
	return p, true
}

// Updated returns the time of the last mutation.
func (s *Session) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}
