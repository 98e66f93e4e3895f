// Package identity holds the per-session identity gate.
//
// A Session answers one question for the dispatcher and the flush
// coordinator: has this session's profile identity been resolved? Resolution
// happens exactly once and is monotonic; once resolved, a session never
// reverts. Sessions are explicit values, so two can coexist in one process.
package identity

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrEmptyProfileID is returned when resolving with an empty identifier.
var ErrEmptyProfileID = errors.New("profile id must not be empty")

// Session is the identity gate for one client session.
//
// Thread-safety: all methods are safe for concurrent use. IsResolved is a
// lock-free read so it can sit on every dispatch path.
type Session struct {
	resolved  atomic.Bool
	mu        sync.Mutex
	profileID string
	anonID    string
}

// NewSession creates an unresolved session with an anonymous id drawn from
// gen. A nil gen uses UUIDv7Generator.
func NewSession(gen Generator) *Session {
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	return &Session{anonID: gen.Generate()}
}

// NewResolvedSession creates a session whose identity is already known
// (e.g. restored by the host application).
func NewResolvedSession(profileID string) *Session {
	s := &Session{anonID: profileID, profileID: profileID}
	s.resolved.Store(true)
	return s
}

// IsResolved reports whether identity has been resolved for this session.
func (s *Session) IsResolved() bool {
	return s.resolved.Load()
}

// CurrentProfileID returns the resolved profile id, or ok=false before
// resolution.
func (s *Session) CurrentProfileID() (id string, ok bool) {
	if !s.IsResolved() {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileID, true
}

// DistinctID returns the best-known identifier: the resolved profile id, or
// the anonymous id before resolution.
func (s *Session) DistinctID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profileID != "" {
		return s.profileID
	}
	return s.anonID
}

// AnonymousID returns the id this session used before resolution.
func (s *Session) AnonymousID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anonID
}

// Resolve binds the session to profileID. Only the first call has an effect;
// it returns true when this call performed the resolution. Later calls,
// with any id, return false and leave the session unchanged.
func (s *Session) Resolve(profileID string) (bool, error) {
	if profileID == "" {
		return false, ErrEmptyProfileID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved.Load() {
		return false, nil
	}
	s.profileID = profileID
	s.resolved.Store(true)
	return true, nil
}
