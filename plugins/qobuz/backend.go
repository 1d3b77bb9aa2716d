package qobuz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	"github.com/vitiko98/mopidy-qobuz/plugins/qobuz/stream"
)

const sessionSaveTimeout = 5 * time.Second

// Settings is the [plugins.qobuz] configuration.
type Settings struct {
	Username string
	Password string
	AppID    string
	Secret   string

	Quality         platform.Quality
	Search          SearchLimits
	CustomLibraries string
	HiresRequired   bool

	CacheSize       int
	URLValidity     time.Duration
	ResolveAttempts int
	AttemptTimeout  time.Duration
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	PrefetchTimeout time.Duration

	RateLimit float64
	RateBurst int
	BaseURL   string
	UserAgent string

	CheckSecret bool
}

// BackendOptions carries the shared services a Backend uses.
type BackendOptions struct {
	Logger    backend.Logger
	Sessions  backend.SessionRepository
	Pool      backend.WorkerPool
	Observer  stream.Observer
	Transport http.RoundTripper
	Now       func() time.Time
}

// Backend implements platform.Backend for Qobuz.
type Backend struct {
	settings Settings
	client   *Client
	cache    *stream.Cache
	resolver *stream.Resolver
	sessions backend.SessionRepository
	matcher  *URLMatcher
	logger   backend.Logger

	library   *Library
	playback  *Playback
	playlists *Playlists

	mu      sync.RWMutex
	started bool
}

// NewBackend wires the client, the URL resolver and the providers. Nothing
// touches the network until Start.
func NewBackend(settings Settings, opts BackendOptions) (*Backend, error) {
	if strings.TrimSpace(settings.Username) == "" || settings.Password == "" {
		return nil, fmt.Errorf("qobuz: username and password required")
	}
	if settings.Quality == 0 {
		settings.Quality = platform.DefaultQuality
	}
	if !settings.Quality.Valid() {
		return nil, fmt.Errorf("qobuz: %w: %d", platform.ErrInvalidQuality, int(settings.Quality))
	}

	b := &Backend{
		settings: settings,
		sessions: opts.Sessions,
		matcher:  NewURLMatcher(),
		logger:   opts.Logger,
	}

	client, err := NewClient(Options{
		AppID:        settings.AppID,
		Secret:       settings.Secret,
		BaseURL:      settings.BaseURL,
		UserAgent:    settings.UserAgent,
		RetryMax:     settings.ResolveAttempts - 1,
		RetryWaitMin: settings.RetryWaitMin,
		RetryWaitMax: settings.RetryWaitMax,
		RateLimit:    settings.RateLimit,
		RateBurst:    settings.RateBurst,
		Transport:    opts.Transport,
		Logger:       opts.Logger,
		OnSession:    b.saveSession,
		Now:          opts.Now,
	})
	if err != nil {
		return nil, err
	}
	b.client = client

	var custom *CustomLibraries
	if dir := strings.TrimSpace(settings.CustomLibraries); dir != "" {
		custom, err = LoadCustomLibraries(dir)
		if err != nil {
			if b.logger != nil {
				b.logger.Warn("custom libraries disabled", "dir", dir, "error", err)
			}
			custom = nil
		}
	}

	cacheOpts := []stream.CacheOption{stream.WithCacheLogger(opts.Logger)}
	if opts.Now != nil {
		cacheOpts = append(cacheOpts, stream.WithClock(opts.Now))
	}
	cache, err := stream.NewCache(settings.CacheSize, settings.URLValidity, cacheOpts...)
	if err != nil {
		return nil, err
	}
	resolver, err := stream.NewResolver(client, cache, stream.Options{
		Attempts:       settings.ResolveAttempts,
		AttemptTimeout: settings.AttemptTimeout,
		RetryWaitMin:   settings.RetryWaitMin,
		RetryWaitMax:   settings.RetryWaitMax,
		Logger:         opts.Logger,
		Observer:       opts.Observer,
	})
	if err != nil {
		return nil, err
	}
	b.cache = cache
	b.resolver = resolver

	tr := translator{hiresRequired: settings.HiresRequired, logger: opts.Logger}
	b.library = newLibrary(client, tr, custom, settings.Search, opts.Logger)
	b.playlists = newPlaylists(client, tr, opts.Logger)
	b.playback = newPlayback(resolver, settings.Quality, opts.Pool, settings.PrefetchTimeout, opts.Logger)
	return b, nil
}

// Name implements platform.Backend.
func (b *Backend) Name() string { return platformName }

// URISchemes implements platform.Backend.
func (b *Backend) URISchemes() []string { return []string{platformName} }

// Start restores the stored session or logs in, then optionally verifies the
// app secret.
func (b *Backend) Start(ctx context.Context) error {
	if err := b.authenticate(ctx); err != nil {
		return err
	}
	if b.settings.CheckSecret {
		if err := b.client.CheckSecret(ctx); err != nil {
			return err
		}
	}
	if b.logger != nil {
		b.logger.Info("set quality",
			"membership", strings.ToUpper(b.client.Membership()),
			"quality", b.settings.Quality.String(),
		)
	}

	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) authenticate(ctx context.Context) error {
	if b.sessions != nil {
		session, err := b.sessions.LoadSession(ctx, platformName, b.settings.Username)
		switch {
		case err == nil && session.Valid():
			b.client.RestoreSession(session.AuthToken, session.Membership, b.settings.Username, b.settings.Password)
			if b.logger != nil {
				b.logger.Info("restored qobuz session", "username", b.settings.Username)
			}
			return nil
		case err != nil && !errors.Is(err, backend.ErrSessionNotFound):
			if b.logger != nil {
				b.logger.Warn("failed to load qobuz session", "error", err)
			}
		}
	}
	if err := b.client.Login(ctx, b.settings.Username, b.settings.Password); err != nil {
		return fmt.Errorf("qobuz login: %w", err)
	}
	return nil
}

func (b *Backend) saveSession(token, membership string) {
	if b.sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionSaveTimeout)
	defer cancel()
	err := b.sessions.SaveSession(ctx, &backend.Session{
		Service:    platformName,
		Username:   b.settings.Username,
		AuthToken:  token,
		Membership: membership,
	})
	if err != nil && b.logger != nil {
		b.logger.Warn("failed to save qobuz session", "error", err)
	}
}

// Stop drops every cached URL.
func (b *Backend) Stop(ctx context.Context) error {
	b.cache.Purge()
	b.mu.Lock()
	b.started = false
	b.mu.Unlock()
	return nil
}

// Ping reports whether Start succeeded.
func (b *Backend) Ping() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started
}

func (b *Backend) Library() platform.LibraryProvider     { return b.library }
func (b *Backend) Playback() platform.PlaybackProvider   { return b.playback }
func (b *Backend) Playlists() platform.PlaylistsProvider { return b.playlists }

// Client returns the underlying API client.
func (b *Backend) Client() *Client { return b.client }

// Resolver returns the URL resolver.
func (b *Backend) Resolver() *stream.Resolver { return b.resolver }

// MatchURL implements platform.URLMatcher.
func (b *Backend) MatchURL(rawURL string) (string, bool) {
	return b.matcher.MatchURL(rawURL)
}

// SetFavorite adds or removes an artist, album or track from the user's favorites.
func (b *Backend) SetFavorite(ctx context.Context, uri string, favorite bool) error {
	parsed, err := platform.ParseURI(uri)
	if err != nil || parsed.Scheme != platformName || len(parsed.Parts) < 2 {
		return platform.NewInvalidURIError(platformName, uri)
	}

	var fav Favorites
	switch parsed.Kind() {
	case "artist":
		fav.ArtistIDs = []string{parsed.ID()}
	case "album":
		fav.AlbumIDs = []string{parsed.ID()}
	case "track":
		fav.TrackIDs = []string{parsed.ID()}
	default:
		return platform.NewUnsupportedError(platformName, "favorite "+parsed.Kind())
	}

	if favorite {
		err = b.client.AddFavorites(ctx, fav)
	} else {
		err = b.client.RemoveFavorites(ctx, fav)
	}
	if err != nil {
		return err
	}
	if b.logger != nil {
		b.logger.Debug("favorite updated", "uri", uri, "favorite", favorite)
	}
	return nil
}

// Subscribe follows a playlist owned by another user.
func (b *Backend) Subscribe(ctx context.Context, uri string) error {
	id, ok := playlistID(uri)
	if !ok {
		return platform.NewInvalidURIError(platformName, uri)
	}
	if err := b.client.SubscribePlaylist(ctx, id); err != nil {
		return err
	}
	b.playlists.invalidate()
	return nil
}

var (
	_ platform.Backend          = (*Backend)(nil)
	_ platform.URLMatcher       = (*Backend)(nil)
	_ platform.CollectionEditor = (*Backend)(nil)
)
