package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

// Fetcher errors. Only the Resolver decides whether they are retried.
var (
	// ErrInvalidQuality means the format id is outside the supported set.
	ErrInvalidQuality = fmt.Errorf("stream: %w", platform.ErrInvalidQuality)

	// ErrInvalidCredential means Qobuz rejected the app secret.
	ErrInvalidCredential = errors.New("stream: invalid app secret")

	// ErrTrackURLNotFound covers every other fetch failure.
	ErrTrackURLNotFound = errors.New("stream: track url not found")
)

// Resolution failures.
var (
	// ErrDemo is returned when only a preview is available.
	ErrDemo = errors.New("stream: demo descriptor is not playable")

	// ErrExhausted is returned when every attempt failed with a transient error.
	ErrExhausted = errors.New("stream: attempts exhausted")
)

// FailureClass groups failures for logging and metrics.
type FailureClass int

const (
	ClassNone FailureClass = iota
	ClassConfiguration
	ClassTransient
	ClassPolicy
	ClassCancelled
)

func (c FailureClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassConfiguration:
		return "configuration"
	case ClassTransient:
		return "transient"
	case ClassPolicy:
		return "policy"
	case ClassCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Classify maps a fetch error to its class.
func Classify(err error) FailureClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrInvalidQuality), errors.Is(err, ErrInvalidCredential):
		return ClassConfiguration
	case errors.Is(err, ErrDemo):
		return ClassPolicy
	case errors.Is(err, errAbandoned):
		return ClassCancelled
	default:
		return ClassTransient
	}
}

// Retryable reports whether another attempt could succeed.
func Retryable(err error) bool {
	return Classify(err) == ClassTransient
}

// ResolveError is returned by Resolver.Resolve on failure.
type ResolveError struct {
	TrackID  string
	Format   platform.Quality
	Attempts int
	Class    FailureClass
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s (format %s): %s after %d attempt(s): %v",
		e.TrackID, e.Format.FormatID(), e.Class, e.Attempts, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// errAbandoned marks a flight stopped by its caller's context. Followers of
// that flight retry under their own context.
var errAbandoned = errors.New("stream: resolution abandoned")

func abandoned(ctx context.Context) error {
	return fmt.Errorf("%w: %w", errAbandoned, context.Cause(ctx))
}
