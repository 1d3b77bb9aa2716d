package backend

import "context"

// Logger is the minimal logging abstraction used across modules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// SessionRepository persists service sessions so restarts can skip the login round trip.
type SessionRepository interface {
	LoadSession(ctx context.Context, service, username string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, service, username string) error
}

// WorkerPool limits concurrency for background tasks.
type WorkerPool interface {
	TrySubmit(task func()) error
	Shutdown(ctx context.Context) error
	Size() int
}
