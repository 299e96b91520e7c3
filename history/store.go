// Package history keeps a bounded in-process transcript of normalized
// events per conversation, for status displays and transcript recall.
// Swap for a database-backed store when conversations must survive process
// restarts.
package history

import (
	"strings"
	"sync"

	"github.com/Alexeyisme/agentrylab-telegram-bot/core"
)

// DefaultLimit is the per-conversation event cap used when none is given.
const DefaultLimit = 200

// Stats summarizes one conversation's recorded activity.
type Stats struct {
	Events        int `json:"events"`
	AgentMessages int `json:"agent_messages"`
	UserMessages  int `json:"user_messages"`
	Rounds        int `json:"rounds"`
}

// Store is a process-local event transcript. Each conversation keeps at most
// limit events; older ones are discarded first.
//
// Concurrency: protected by RWMutex.
type Store struct {
	mu     sync.RWMutex
	limit  int
	events map[string][]core.Event
}

// NewStore creates a store keeping up to limit events per conversation.
// A non-positive limit falls back to DefaultLimit.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{limit: limit, events: make(map[string][]core.Event)}
}

// Record appends one event to the conversation's transcript, evicting the
// oldest event once the cap is reached.
func (s *Store) Record(ev core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := append(s.events[ev.ConversationID], ev)
	if len(evs) > s.limit {
		evs = evs[len(evs)-s.limit:]
	}
	s.events[ev.ConversationID] = evs
}

// Events returns a copy of the conversation's transcript, oldest first.
func (s *Store) Events(conversationID string) []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[conversationID]
	out := make([]core.Event, len(evs))
	copy(out, evs)
	return out
}

// Tail returns a copy of the last n recorded events, oldest first.
func (s *Store) Tail(conversationID string, n int) []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[conversationID]
	if n < len(evs) {
		evs = evs[len(evs)-n:]
	}
	out := make([]core.Event, len(evs))
	copy(out, evs)
	return out
}

// Search performs a simple substring match over the conversation's recorded
// content, up to limit results. An empty query matches everything.
func (s *Store) Search(conversationID, query string, limit int) []core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]core.Event, 0, limit)
	for _, ev := range s.events[conversationID] {
		if len(results) >= limit {
			break
		}
		if query == "" || strings.Contains(ev.Content, query) {
			results = append(results, ev)
		}
	}
	return results
}

// Stats aggregates counts over the conversation's recorded transcript.
func (s *Store) Stats(conversationID string) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	maxRound := -1
	for _, ev := range s.events[conversationID] {
		st.Events++
		switch ev.Kind {
		case core.KindAgentMessage, core.KindModeratorAction, core.KindSummaryUpdate:
			st.AgentMessages++
		case core.KindUserMessage:
			st.UserMessages++
		}
		if ev.Round > maxRound {
			maxRound = ev.Round
		}
	}
	st.Rounds = maxRound + 1
	return st
}

// Drop discards the conversation's transcript.
func (s *Store) Drop(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, conversationID)
}

// Len reports the number of conversations with recorded history.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
