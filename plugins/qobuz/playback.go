package qobuz

import (
	"context"
	"errors"
	"time"

	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	"github.com/vitiko98/mopidy-qobuz/backend/worker"
	"github.com/vitiko98/mopidy-qobuz/plugins/qobuz/stream"
)

const defaultPrefetchTimeout = 20 * time.Second

// Playback implements platform.PlaybackProvider on top of a stream.Resolver.
type Playback struct {
	resolver        *stream.Resolver
	quality         platform.Quality
	pool            backend.WorkerPool
	prefetchTimeout time.Duration
	logger          backend.Logger
}

func newPlayback(resolver *stream.Resolver, quality platform.Quality, pool backend.WorkerPool, prefetchTimeout time.Duration, logger backend.Logger) *Playback {
	if prefetchTimeout <= 0 {
		prefetchTimeout = defaultPrefetchTimeout
	}
	return &Playback{
		resolver:        resolver,
		quality:         quality,
		pool:            pool,
		prefetchTimeout: prefetchTimeout,
		logger:          logger,
	}
}

// TranslateURI resolves a track URI at the configured quality. Failures are
// logged by the resolver and reported as false.
func (p *Playback) TranslateURI(ctx context.Context, uri string) (string, bool) {
	id := trackIDFromURI(uri)
	if id == "" {
		if p.logger != nil {
			p.logger.Warn("cannot translate uri", "uri", uri)
		}
		return "", false
	}
	url, err := p.resolver.Resolve(ctx, id, p.quality)
	if err != nil {
		return "", false
	}
	if p.logger != nil {
		p.logger.Debug("valid track found", "uri", uri, "quality", p.quality.String())
	}
	return url, true
}

// Resolve is TranslateURI with the typed error kept.
func (p *Playback) Resolve(ctx context.Context, uri string) (string, error) {
	id := trackIDFromURI(uri)
	if id == "" {
		return "", platform.NewInvalidURIError(platformName, uri)
	}
	return p.resolver.Resolve(ctx, id, p.quality)
}

// Invalidate drops the cached URL of uri at the configured quality.
func (p *Playback) Invalidate(uri string) {
	if id := trackIDFromURI(uri); id != "" {
		p.resolver.Invalidate(id, p.quality)
	}
}

// Prefetch resolves uris on the worker pool so that later TranslateURI calls
// hit the cache. Tasks outlive ctx cancellation but not prefetchTimeout.
// A full queue drops the remaining uris.
func (p *Playback) Prefetch(ctx context.Context, uris ...string) error {
	if p.pool == nil {
		return platform.NewUnsupportedError(platformName, "prefetch")
	}
	detached := context.WithoutCancel(ctx)

	var errs []error
	for _, uri := range uris {
		id := trackIDFromURI(uri)
		if id == "" {
			errs = append(errs, platform.NewInvalidURIError(platformName, uri))
			continue
		}
		err := p.pool.TrySubmit(func() {
			tctx, cancel := context.WithTimeout(detached, p.prefetchTimeout)
			defer cancel()
			_, _ = p.resolver.Resolve(tctx, id, p.quality)
		})
		if errors.Is(err, worker.ErrQueueFull) {
			if p.logger != nil {
				p.logger.Debug("prefetch queue full, skipping", "uri", uri)
			}
			break
		}
		if err != nil {
			errs = append(errs, err)
			break
		}
	}
	return errors.Join(errs...)
}

// ShouldDownload implements platform.PlaybackProvider.
func (p *Playback) ShouldDownload(uri string) bool {
	return true
}

// trackIDFromURI returns the id of a qobuz:track URI. Other Qobuz URIs fall
// back to their last segment.
func trackIDFromURI(uri string) string {
	parsed, err := platform.ParseURI(uri)
	if err != nil || parsed.Scheme != platformName {
		return ""
	}
	return parsed.ID()
}
