package backend

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when no session is stored for a user.
var ErrSessionNotFound = errors.New("session not found")

// Session is a persisted login for one service account.
type Session struct {
	Service    string
	Username   string
	AuthToken  string
	Membership string
	UpdatedAt  time.Time
}

// Valid reports whether the session carries a usable token.
func (s *Session) Valid() bool {
	return s != nil && s.AuthToken != ""
}
