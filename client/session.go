package client

import "sync"

// Session holds the bearer token of the signed-in user. When the backend
// answers 401 the session is invalidated and the callback registered at
// construction runs exactly once, so the caller can log out and redirect.
type Session struct {
	mu           sync.Mutex
	token        string
	invalidated  bool
	onInvalidate func()
}

func NewSession(token string, onInvalidate func()) *Session {
	return &Session{token: token, onInvalidate: onInvalidate}
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SetToken installs a fresh token after a login and re-arms the callback.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.invalidated = false
}

// Valid reports whether the session still has a usable token.
func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && !s.invalidated
}

// Invalidate drops the token. Only the first call after a login fires the callback.
func (s *Session) Invalidate() {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	s.token = ""
	cb := s.onInvalidate
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}
