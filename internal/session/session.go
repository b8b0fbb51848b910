// Package session keeps a bounded per-conversation message history.
package session

import (
	"slices"
	"sync"
	"time"

	kspai "github.com/kisahsukses/kspai/internal"
)

// MaxHistory is the number of most recent messages retained per session.
const MaxHistory = 20

// Journal mirrors session mutations to durable storage. Implementations must
// not block the caller.
type Journal interface {
	Record(msg kspai.Message)
	Forget(sessionID string)
}

type session struct {
	mu      sync.Mutex
	history []kspai.Message
}

// Store holds all sessions of the process. Appends to one session never
// contend with another session's lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	journal  Journal
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithJournal mirrors appends and deletes to j.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) lookup(id string) *session {
	if id == "" {
		id = kspai.DefaultSessionID
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	sess = &session{}
	s.sessions[id] = sess
	return sess
}

// Get returns a snapshot of the session, creating it empty on first access.
func (s *Store) Get(id string) kspai.Session {
	if id == "" {
		id = kspai.DefaultSessionID
	}
	return kspai.Session{ID: id, History: s.History(id)}
}

// History returns a copy of the session's messages, oldest first.
func (s *Store) History(id string) []kspai.Message {
	sess := s.lookup(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return slices.Clone(sess.history)
}

// Append adds a message stamped with the current time and drops the oldest
// entries beyond MaxHistory.
func (s *Store) Append(id string, role kspai.Role, text string) kspai.Message {
	if id == "" {
		id = kspai.DefaultSessionID
	}
	msg := kspai.Message{SessionID: id, Role: role, Text: text, TS: s.now()}

	sess := s.lookup(id)
	sess.mu.Lock()
	sess.history = appendBounded(sess.history, msg)
	sess.mu.Unlock()

	if s.journal != nil {
		s.journal.Record(msg)
	}
	return msg
}

// Delete removes a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if s.journal != nil {
		s.journal.Forget(id)
	}
	return ok
}

// IDs returns the ids of all known sessions, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Restore seeds sessions from previously journaled messages, which must be
// ordered oldest first. Restored messages are not re-journaled.
func (s *Store) Restore(msgs []kspai.Message) {
	for _, m := range msgs {
		sess := s.lookup(m.SessionID)
		sess.mu.Lock()
		sess.history = appendBounded(sess.history, m)
		sess.mu.Unlock()
	}
}

func appendBounded(h []kspai.Message, m kspai.Message) []kspai.Message {
	h = append(h, m)
	if n := len(h) - MaxHistory; n > 0 {
		h = slices.Delete(h, 0, n)
	}
	return h
}
