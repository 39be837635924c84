package signaling

import (
	"sync"
	"time"

	apperrors "github.com/gloriawright4412/ScreenShareCast/internal/errors"
)

// session is one live pairing. Its members set is guarded by its own mutex so
// joins and leaves on different codes never block each other.
type session struct {
	code   string
	hostID string

	mu         sync.Mutex
	members    map[string]struct{}
	active     bool
	lastActive time.Time
}

func (s *session) memberSnapshot(exclude string) []string {
	peers := make([]string, 0, len(s.members))
	for id := range s.members {
		if id != exclude {
			peers = append(peers, id)
		}
	}
	return peers
}

// SessionTable maps active pairing codes to live sessions. A code is unique
// among active sessions; once a session retires its code may be reused.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSessionTable() *SessionTable {
	return &SessionTable{
		sessions: make(map[string]*session),
	}
}

// Create registers a new active session for code with hostID as its first
// member. Returns ALREADY_EXISTS while the code is present in the table at
// all: an inactive session whose members have not yet all left keeps its
// code reserved until eviction. The caller surfaces the collision to the
// client, which picks a new code.
func (t *SessionTable) Create(code, hostID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[code]; ok {
		return apperrors.AlreadyExists("Session")
	}

	t.sessions[code] = &session{
		code:       code,
		hostID:     hostID,
		members:    map[string]struct{}{hostID: {}},
		active:     true,
		lastActive: time.Now(),
	}
	return nil
}

// Join adds clientID to the session's members and returns the host identity.
// Fails with NOT_FOUND for an unknown code and SESSION_INACTIVE for a retired
// one; neither mutates the table.
func (t *SessionTable) Join(code, clientID string) (string, error) {
	s := t.get(code)
	if s == nil {
		return "", apperrors.NotFound("Session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return "", apperrors.SessionInactive(code)
	}

	s.members[clientID] = struct{}{}
	s.lastActive = time.Now()
	return s.hostID, nil
}

// RemoveMember drops clientID from the session and returns the remaining
// member count plus a snapshot of the remaining members for notification.
// When the host leaves the session stops accepting joins; when the last
// member leaves the session is evicted and its code becomes reusable.
func (t *SessionTable) RemoveMember(code, clientID string) (int, []string, error) {
	s := t.get(code)
	if s == nil {
		return 0, nil, apperrors.NotFound("Session")
	}

	s.mu.Lock()
	delete(s.members, clientID)
	remaining := len(s.members)
	peers := s.memberSnapshot(clientID)
	if remaining == 0 || clientID == s.hostID {
		s.active = false
	}
	s.lastActive = time.Now()
	s.mu.Unlock()

	if remaining == 0 {
		t.evict(code, s)
	}
	return remaining, peers, nil
}

// Host returns the host identity for code.
func (t *SessionTable) Host(code string) (string, error) {
	s := t.get(code)
	if s == nil {
		return "", apperrors.NotFound("Session")
	}
	return s.hostID, nil
}

// Members returns a snapshot copy of the current member set. Safe to iterate
// while other workers mutate the session.
func (t *SessionTable) Members(code string) []string {
	s := t.get(code)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberSnapshot("")
}

// HasMember reports whether clientID currently belongs to the session.
func (t *SessionTable) HasMember(code, clientID string) bool {
	s := t.get(code)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[clientID]
	return ok
}

// Touch refreshes the session's activity timestamp so forwarded negotiation
// traffic keeps it out of the idle sweep.
func (t *SessionTable) Touch(code string) {
	s := t.get(code)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// ExpiredSession describes a session evicted by the idle sweep.
type ExpiredSession struct {
	Code    string
	Members []string
}

// ExpireIdle evicts every session whose last activity is older than ttl and
// returns member snapshots so the caller can notify them.
func (t *SessionTable) ExpireIdle(ttl time.Duration) []ExpiredSession {
	cutoff := time.Now().Add(-ttl)

	t.mu.RLock()
	candidates := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		candidates = append(candidates, s)
	}
	t.mu.RUnlock()

	var expired []ExpiredSession
	for _, s := range candidates {
		s.mu.Lock()
		if s.lastActive.After(cutoff) {
			s.mu.Unlock()
			continue
		}
		s.active = false
		members := s.memberSnapshot("")
		s.members = make(map[string]struct{})
		s.mu.Unlock()

		t.evict(s.code, s)
		expired = append(expired, ExpiredSession{Code: s.code, Members: members})
	}
	return expired
}

func (t *SessionTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func (t *SessionTable) get(code string) *session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessions[code]
}

// evict removes the session from the live table, provided the slot still
// holds the same session (the code may already be reused by a newer one).
func (t *SessionTable) evict(code string, s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.sessions[code]; ok && cur == s {
		delete(t.sessions, code)
	}
}
