package platform

import "context"

// Backend is a streaming service exposed to the host through URI schemes.
//
// Implementations should be safe for concurrent use by multiple goroutines.
type Backend interface {
	// Name returns the backend identifier (e.g., "qobuz").
	Name() string

	// URISchemes lists the URI schemes this backend owns.
	URISchemes() []string

	// Start prepares the backend (login, session restore). It is called once.
	Start(ctx context.Context) error

	// Stop releases backend resources.
	Stop(ctx context.Context) error

	// Ping reports whether the backend is usable.
	Ping() bool

	Library() LibraryProvider
	Playback() PlaybackProvider
	Playlists() PlaylistsProvider
}

// LibraryProvider exposes browsing, lookup and search.
type LibraryProvider interface {
	// RootDirectory is the entry point of the browse tree.
	RootDirectory() Ref

	// Browse lists the children of a directory URI. Unknown URIs give an empty list.
	Browse(ctx context.Context, uri string) ([]Ref, error)

	// Lookup expands album, artist, playlist and track URIs into tracks.
	Lookup(ctx context.Context, uris ...string) ([]Track, error)

	// Search returns nil when the query carries no terms.
	Search(ctx context.Context, query Query, exact bool) (*SearchResult, error)

	// GetImages maps each supported URI to its images.
	GetImages(ctx context.Context, uris []string) (map[string][]Image, error)

	// GetDistinct lists distinct values of a field.
	GetDistinct(ctx context.Context, field string, query Query) ([]string, error)
}

// PlaybackProvider turns track URIs into streamable URLs.
type PlaybackProvider interface {
	// TranslateURI returns a playable URL, or false when the track cannot be played.
	// Failures are soft: they are logged by the provider.
	TranslateURI(ctx context.Context, uri string) (string, bool)

	// Invalidate drops any cached URL for uri.
	Invalidate(uri string)

	// Prefetch warms the URL cache for upcoming tracks in the background.
	Prefetch(ctx context.Context, uris ...string) error

	// ShouldDownload reports whether the host should stream uri as a download.
	ShouldDownload(uri string) bool
}

// PlaylistsProvider manages the user's playlists.
type PlaylistsProvider interface {
	AsList(ctx context.Context) ([]Ref, error)
	GetItems(ctx context.Context, uri string) ([]Ref, error)
	Lookup(ctx context.Context, uri string) (*Playlist, error)
	Create(ctx context.Context, name string) (*Playlist, error)
	Delete(ctx context.Context, uri string) (bool, error)
	Save(ctx context.Context, playlist Playlist) (*Playlist, error)
	Refresh(ctx context.Context) error
}

// CollectionEditor is implemented by backends that can edit the user's
// favorites and playlist subscriptions.
type CollectionEditor interface {
	SetFavorite(ctx context.Context, uri string, favorite bool) error
	Subscribe(ctx context.Context, uri string) error
}

// URLMatcher converts a web link into a backend URI.
type URLMatcher interface {
	MatchURL(url string) (uri string, matched bool)
}

// Manager dispatches host calls to the backend that owns a URI scheme.
type Manager interface {
	Register(b Backend) error
	Get(name string) Backend
	ForURI(uri string) (Backend, error)
	List() []string
	MatchURL(url string) (uri string, backend string, matched bool)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	Browse(ctx context.Context, uri string) ([]Ref, error)
	Lookup(ctx context.Context, uris ...string) ([]Track, error)
	Search(ctx context.Context, query Query, exact bool) ([]SearchResult, error)
	GetImages(ctx context.Context, uris []string) (map[string][]Image, error)
	TranslateURI(ctx context.Context, uri string) (string, bool)
}
