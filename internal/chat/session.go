package chat

import "sync"

// Session is the local user's identity. The presentation layer is the only
// writer; the transport reads the name when it encodes outgoing frames.
type Session struct {
	mu       sync.RWMutex
	username string
}

// NewSession returns a session for username, which may be empty.
func NewSession(username string) *Session {
	return &Session{username: username}
}

// Username returns the current name.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// SetUsername replaces the current name.
func (s *Session) SetUsername(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = name
}

// IsSelf reports whether author is the local user. An unset name matches
// nobody.
func (s *Session) IsSelf(author string) bool {
	name := s.Username()
	return name != "" && author == name
}
