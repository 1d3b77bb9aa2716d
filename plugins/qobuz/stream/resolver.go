package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	"golang.org/x/sync/singleflight"
)

// DefaultIntent is the only intent the host asks for.
const DefaultIntent = "stream"

const (
	DefaultAttempts       = 3
	DefaultAttemptTimeout = 10 * time.Second
	DefaultRetryWaitMin   = 200 * time.Millisecond
	DefaultRetryWaitMax   = 2 * time.Second
)

// Fetcher performs one signed URL request.
type Fetcher interface {
	FetchFileURL(ctx context.Context, trackID string, format platform.Quality, intent string) (*Descriptor, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, trackID string, format platform.Quality, intent string) (*Descriptor, error)

func (f FetcherFunc) FetchFileURL(ctx context.Context, trackID string, format platform.Quality, intent string) (*Descriptor, error) {
	return f(ctx, trackID, format, intent)
}

// Observer receives resolution events. backend/metrics implements it.
type Observer interface {
	CacheLookup(hit bool)
	FetchAttempt(class string)
	Resolved(outcome string, elapsed time.Duration)
}

// Options configures a Resolver. Zero values fall back to the defaults.
type Options struct {
	Attempts       int
	AttemptTimeout time.Duration
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	// Backoff computes the wait before attempt n+1; retryablehttp.DefaultBackoff when nil.
	Backoff  retryablehttp.Backoff
	Logger   backend.Logger
	Observer Observer
}

// Resolver resolves (track, format) pairs to playable URLs.
type Resolver struct {
	fetcher        Fetcher
	cache          *Cache
	group          singleflight.Group
	attempts       int
	attemptTimeout time.Duration
	waitMin        time.Duration
	waitMax        time.Duration
	backoff        retryablehttp.Backoff
	logger         backend.Logger
	observer       Observer
}

// NewResolver wires a fetcher and a cache.
func NewResolver(fetcher Fetcher, cache *Cache, opts Options) (*Resolver, error) {
	if fetcher == nil {
		return nil, errors.New("stream: fetcher required")
	}
	if cache == nil {
		return nil, errors.New("stream: cache required")
	}
	r := &Resolver{
		fetcher:        fetcher,
		cache:          cache,
		attempts:       opts.Attempts,
		attemptTimeout: opts.AttemptTimeout,
		waitMin:        opts.RetryWaitMin,
		waitMax:        opts.RetryWaitMax,
		backoff:        opts.Backoff,
		logger:         opts.Logger,
		observer:       opts.Observer,
	}
	if r.attempts <= 0 {
		r.attempts = DefaultAttempts
	}
	if r.attemptTimeout <= 0 {
		r.attemptTimeout = DefaultAttemptTimeout
	}
	if r.waitMin <= 0 {
		r.waitMin = DefaultRetryWaitMin
	}
	if r.waitMax < r.waitMin {
		r.waitMax = max(DefaultRetryWaitMax, r.waitMin)
	}
	if r.backoff == nil {
		r.backoff = retryablehttp.DefaultBackoff
	}
	return r, nil
}

// Cache exposes the underlying cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

type state int

const (
	stateCheckCache state = iota
	stateAttempt
	stateValidate
	stateResolved
	stateFailed
)

// flight is what a shared fetch hands back to every waiter.
type flight struct {
	descriptor *Descriptor
	attempts   int
}

// Resolve returns a playable URL or a *ResolveError.
func (r *Resolver) Resolve(ctx context.Context, trackID string, format platform.Quality) (string, error) {
	started := time.Now()
	key := Key{TrackID: trackID, Format: format}

	var (
		desc     *Descriptor
		attempts int
		failure  error
		fromHit  bool
	)

	st := stateCheckCache
	if trackID == "" {
		failure = fmt.Errorf("%w: empty track id", ErrTrackURLNotFound)
		st = stateFailed
	} else if !format.Valid() {
		failure = fmt.Errorf("%w: format id %d", ErrInvalidQuality, int(format))
		st = stateFailed
	}

	for {
		switch st {
		case stateCheckCache:
			cached, ok := r.cache.Get(trackID, format)
			r.observeLookup(ok)
			if ok {
				desc = &cached
				fromHit = true
				st = stateValidate
				continue
			}
			st = stateAttempt

		case stateAttempt:
			res, err := r.shared(ctx, key)
			if res != nil {
				attempts = res.attempts
			}
			if err != nil {
				failure = err
				st = stateFailed
				continue
			}
			desc = res.descriptor
			st = stateValidate

		case stateValidate:
			if desc.Demo {
				failure = ErrDemo
				st = stateFailed
				continue
			}
			if desc.QualityFallback && r.logger != nil {
				r.logger.Info("served format below requested quality",
					"track_id", trackID, "requested", format.FormatID(),
					"bit_depth", desc.BitDepth, "sampling_rate", desc.SamplingRate)
			}
			st = stateResolved

		case stateResolved:
			if r.logger != nil {
				r.logger.Debug("url resolved", "track_id", trackID, "format", format.FormatID(),
					"cached", fromHit, "attempts", attempts)
			}
			r.observeOutcome(ClassNone, started)
			return desc.URL, nil

		case stateFailed:
			rerr := r.failed(trackID, format, attempts, failure)
			r.observeOutcome(rerr.Class, started)
			return "", rerr
		}
	}
}

// Invalidate drops the cached URL for (trackID, format).
func (r *Resolver) Invalidate(trackID string, format platform.Quality) {
	if r.cache.Invalidate(trackID, format) && r.logger != nil {
		r.logger.Debug("url invalidated", "track_id", trackID, "format", format.FormatID())
	}
}

// shared runs at most one attempt loop per key. A waiter whose leader was
// cancelled before a URL arrived joins (or leads) a new flight under its own
// context.
func (r *Resolver) shared(ctx context.Context, key Key) (*flight, error) {
	for {
		ch := r.group.DoChan(key.String(), func() (interface{}, error) {
			return r.attemptLoop(ctx, key)
		})

		select {
		case <-ctx.Done():
			return nil, abandoned(ctx)
		case res := <-ch:
			f, _ := res.Val.(*flight)
			if res.Err != nil && errors.Is(res.Err, errAbandoned) && ctx.Err() == nil {
				continue
			}
			return f, res.Err
		}
	}
}

// attemptLoop is the Attempt(k) state: up to r.attempts fetches, each under its
// own timeout, with a backoff between transient failures.
func (r *Resolver) attemptLoop(ctx context.Context, key Key) (*flight, error) {
	var lastErr error
	for k := 1; k <= r.attempts; k++ {
		if ctx.Err() != nil {
			return &flight{attempts: k - 1}, abandoned(ctx)
		}

		desc, err := r.attempt(ctx, key)
		r.observeAttempt(Classify(err))

		// A URL that arrived after the leader gave up is still valid for
		// followers and later callers.
		if err == nil {
			if !desc.Demo {
				r.cache.Put(*desc)
			}
			return &flight{descriptor: desc, attempts: k}, nil
		}
		if ctx.Err() != nil {
			return &flight{attempts: k}, abandoned(ctx)
		}
		if !Retryable(err) {
			return &flight{attempts: k}, err
		}

		lastErr = err
		if r.logger != nil {
			r.logger.Debug("url fetch attempt failed", "track_id", key.TrackID, "attempt", k, "error", err)
		}
		if k == r.attempts {
			break
		}

		wait := r.backoff(r.waitMin, r.waitMax, k-1, nil)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &flight{attempts: k}, abandoned(ctx)
		case <-timer.C:
		}
	}
	return &flight{attempts: r.attempts}, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

func (r *Resolver) attempt(ctx context.Context, key Key) (*Descriptor, error) {
	actx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	desc, err := r.fetcher.FetchFileURL(actx, key.TrackID, key.Format, DefaultIntent)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: attempt timed out after %s: %w", ErrTrackURLNotFound, r.attemptTimeout, err)
		}
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: empty descriptor", ErrTrackURLNotFound)
	}
	return desc, nil
}

func (r *Resolver) failed(trackID string, format platform.Quality, attempts int, err error) *ResolveError {
	rerr := &ResolveError{
		TrackID:  trackID,
		Format:   format,
		Attempts: attempts,
		Class:    Classify(err),
		Err:      err,
	}
	if r.logger == nil {
		return rerr
	}
	fields := []any{"track_id", trackID, "format", format.FormatID(), "attempts", attempts, "class", rerr.Class.String()}
	switch rerr.Class {
	case ClassPolicy:
		r.logger.Info("track is a demo, cannot play", fields...)
	case ClassCancelled:
		r.logger.Debug("url resolution cancelled", fields...)
	default:
		r.logger.Warn("url resolution failed", append(fields, "error", err)...)
	}
	return rerr
}

func (r *Resolver) observeLookup(hit bool) {
	if r.observer != nil {
		r.observer.CacheLookup(hit)
	}
}

func (r *Resolver) observeAttempt(class FailureClass) {
	if r.observer != nil {
		r.observer.FetchAttempt(class.String())
	}
}

func (r *Resolver) observeOutcome(class FailureClass, started time.Time) {
	if r.observer == nil {
		return
	}
	outcome := "resolved"
	if class != ClassNone {
		outcome = class.String()
	}
	r.observer.Resolved(outcome, time.Since(started))
}
