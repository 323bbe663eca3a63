package bootstrap

import "time"

// Session is the authentication state held against the target. Cookies live
// in the driver; the session tracks the principal and the last token seen.
type Session struct {
	Token         Token
	Principal     string
	Authenticated bool
	EstablishedAt time.Time

	invalidatedBy string
	generation    int
}

// Valid reports whether downstream steps may rely on the session.
func (s *Session) Valid() bool {
	return s != nil && s.Authenticated
}

// Establish marks the session as authenticated for principal.
func (s *Session) Establish(principal string, token Token, at time.Time) {
	s.Principal = principal
	s.Token = token
	s.Authenticated = true
	s.EstablishedAt = at
	s.invalidatedBy = ""
	s.generation++
}

// UpdateToken records a fresher anti-forgery token without touching the
// authentication flag.
func (s *Session) UpdateToken(token Token) {
	if token.Value == "" {
		return
	}
	s.Token = token
}

// Invalidate drops the authenticated flag. reason is kept for reporting.
func (s *Session) Invalidate(reason string) {
	s.Authenticated = false
	s.Token = Token{}
	s.invalidatedBy = reason
}

// InvalidatedBy returns why the session was last invalidated, if it was.
func (s *Session) InvalidatedBy() string {
	return s.invalidatedBy
}

// Generation counts how many times the session has been established.
func (s *Session) Generation() int {
	return s.generation
}
