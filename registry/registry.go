// Package registry owns the mapping from conversation id to session and from
// user id to flow state. All access goes through atomic check-and-set
// operations behind a single mutex so the orchestrator never races against
// itself for the same user or conversation; raw map access is never exposed.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
	"github.com/Alexeyisme/agentrylab-telegram-bot/flow"
	"github.com/Alexeyisme/agentrylab-telegram-bot/logging"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Registry is the single authority for live sessions and user flow states.
// All public methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	users    map[string]*flow.UserState
	logger   logging.Logger
}

// New constructs an empty registry with optional overrides.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		sessions: make(map[string]*Session),
		users:    make(map[string]*flow.UserState),
		logger:   opts.Logger,
	}
}

// userLocked returns the flow state for a user, creating it lazily. Caller
// must hold the registry lock.
func (r *Registry) userLocked(userID string) *flow.UserState {
	u, ok := r.users[userID]
	if !ok {
		u = flow.NewUserState(userID)
		r.users[userID] = u
	}
	return u
}

// UpdateUser runs fn against the user's flow state while holding the
// registry lock, creating the state lazily on first reference. The state
// must not escape fn.
func (r *Registry) UpdateUser(userID string, fn func(u *flow.UserState) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.userLocked(userID))
}

// UserView returns a copy of the user's flow state for read-only use.
func (r *Registry) UserView(userID string) flow.UserState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.userLocked(userID)
}

// TryBeginSession atomically reserves a new session for the user. It is
// rejected when the user's flow state does not permit starting or when an
// active session already exists for the user. On success the session is in
// the implicit starting status and the flow state has been moved to starting
// with the preset and topic recorded.
func (r *Registry) TryBeginSession(userID, presetID, topic string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.userLocked(userID)
	if !u.CanStartNewConversation() {
		return nil, fmt.Errorf("flow state %s: %w", u.State, core.ErrUserAlreadyActive)
	}
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status() == StatusActive {
			return nil, fmt.Errorf("session %s still active: %w", s.ID, core.ErrUserAlreadyActive)
		}
	}

	sess := NewSession(userID)
	r.sessions[sess.ID] = sess

	u.SetState(flow.StateStarting)
	u.SetPreset(presetID)
	u.SetTopic(topic)

	r.logger.Debug("registry reserved session session_id=%s user_id=%s", sess.ID, userID)
	return sess, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	return s, nil
}

// SessionForUser returns the session currently referenced by the user's flow
// state, if any.
func (r *Registry) SessionForUser(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.ActiveConversationID == "" {
		return nil, false
	}
	s, ok := r.sessions[u.ActiveConversationID]
	return s, ok
}

// UpdateStatus sets the lifecycle status of a session.
func (r *Registry) UpdateStatus(sessionID string, st Status) error {
	s, err := r.Get(sessionID)
	if err != nil {
		return err
	}
	s.SetStatus(st)
	return nil
}

// Remove drops a session from the registry, cancelling its bridge.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.CancelBridge()
		delete(r.sessions, sessionID)
	}
}

// ReclaimResult reports what a reclamation pass removed.
type ReclaimResult struct {
	Users    int
	Sessions int
}

// Reclaim removes user flow states whose last activity is older than maxIdle
// and that are not mid-flow, then cancels and removes sessions no longer
// referenced by their owning flow state. Returns counts for observability.
func (r *Registry) Reclaim(maxIdle time.Duration) ReclaimResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxIdle)
	var res ReclaimResult

	for id, u := range r.users {
		if !u.IsActive() && u.LastActivity.Before(cutoff) {
			delete(r.users, id)
			res.Users++
		}
	}

	for id, s := range r.sessions {
		owner, ok := r.users[s.UserID]
		if ok && owner.ActiveConversationID == id {
			continue
		}
		// A session in StatusStarting is not yet bound to its owner's
		// flow state; leave it alone while the owner is still mid-flow.
		if s.Status() == StatusStarting && ok && owner.IsActive() {
			continue
		}
		s.CancelBridge()
		delete(r.sessions, id)
		res.Sessions++
	}

	if res.Users > 0 || res.Sessions > 0 {
		r.logger.Info("registry reclaimed users=%d sessions=%d", res.Users, res.Sessions)
	}
	return res
}

// Len reports the number of live sessions and tracked users.
func (r *Registry) Len() (sessions, users int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), len(r.users)
}
