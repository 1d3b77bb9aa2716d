package platform

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct {
	name      string
	searchErr error
}

func (l *fakeLibrary) RootDirectory() Ref { return DirectoryRef(l.name+":directory", l.name) }
func (l *fakeLibrary) Browse(ctx context.Context, uri string) ([]Ref, error) {
	return []Ref{TrackRef(uri+":child", "child")}, nil
}
func (l *fakeLibrary) Lookup(ctx context.Context, uris ...string) ([]Track, error) {
	tracks := make([]Track, 0, len(uris))
	for _, uri := range uris {
		tracks = append(tracks, Track{URI: uri, Name: l.name})
	}
	return tracks, nil
}
func (l *fakeLibrary) Search(ctx context.Context, query Query, exact bool) (*SearchResult, error) {
	if l.searchErr != nil {
		return nil, l.searchErr
	}
	return &SearchResult{URI: l.name + ":search:" + query.Terms()}, nil
}
func (l *fakeLibrary) GetImages(ctx context.Context, uris []string) (map[string][]Image, error) {
	out := make(map[string][]Image, len(uris))
	for _, uri := range uris {
		out[uri] = []Image{{URI: "https://img/" + uri, Width: 600, Height: 600}}
	}
	return out, nil
}
func (l *fakeLibrary) GetDistinct(ctx context.Context, field string, query Query) ([]string, error) {
	return nil, nil
}

type fakePlayback struct{}

func (fakePlayback) TranslateURI(ctx context.Context, uri string) (string, bool) {
	if strings.HasSuffix(uri, ":demo") {
		return "", false
	}
	return "https://stream/" + uri, true
}
func (fakePlayback) Invalidate(uri string)                                  {}
func (fakePlayback) Prefetch(ctx context.Context, uris ...string) error     { return nil }
func (fakePlayback) ShouldDownload(uri string) bool                         { return true }

type fakeBackend struct {
	name     string
	schemes  []string
	library  *fakeLibrary
	startErr error
	started  bool
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, schemes: []string{name}, library: &fakeLibrary{name: name}}
}

func (b *fakeBackend) Name() string                  { return b.name }
func (b *fakeBackend) URISchemes() []string          { return b.schemes }
func (b *fakeBackend) Start(ctx context.Context) error { b.started = b.startErr == nil; return b.startErr }
func (b *fakeBackend) Stop(ctx context.Context) error  { return nil }
func (b *fakeBackend) Ping() bool                    { return true }
func (b *fakeBackend) Library() LibraryProvider      { return b.library }
func (b *fakeBackend) Playback() PlaybackProvider    { return fakePlayback{} }
func (b *fakeBackend) Playlists() PlaylistsProvider  { return nil }
func (b *fakeBackend) MatchURL(url string) (string, bool) {
	if strings.Contains(url, b.name+".com/") {
		return b.name + ":track:" + url[strings.LastIndex(url, "/")+1:], true
	}
	return "", false
}

func TestManagerDispatch(t *testing.T) {
	m := NewManager(nil)
	qobuz := newFakeBackend("qobuz")
	local := newFakeBackend("local")
	require.NoError(t, m.Register(qobuz))
	require.NoError(t, m.Register(local))
	assert.Error(t, m.Register(newFakeBackend("qobuz")))

	assert.Equal(t, []string{"qobuz", "local"}, m.List())
	assert.Same(t, qobuz, m.Get("qobuz"))
	assert.Nil(t, m.Get("spotify"))

	ctx := context.Background()

	roots, err := m.Browse(ctx, "")
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "qobuz:directory", roots[0].URI)

	refs, err := m.Browse(ctx, "local:dir")
	require.NoError(t, err)
	assert.Equal(t, "local:dir:child", refs[0].URI)

	tracks, err := m.Lookup(ctx, "local:track:1", "qobuz:track:2", "local:track:3")
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, "local:track:1", tracks[0].URI)
	assert.Equal(t, "local:track:3", tracks[1].URI)
	assert.Equal(t, "qobuz:track:2", tracks[2].URI)

	_, err = m.Lookup(ctx, "spotify:track:1")
	assert.ErrorIs(t, err, ErrUnsupported)

	url, ok := m.TranslateURI(ctx, "qobuz:track:9")
	assert.True(t, ok)
	assert.Equal(t, "https://stream/qobuz:track:9", url)

	_, ok = m.TranslateURI(ctx, "qobuz:track:demo")
	assert.False(t, ok)
	_, ok = m.TranslateURI(ctx, "nope:track:1")
	assert.False(t, ok)

	images, err := m.GetImages(ctx, []string{"qobuz:album:1", "local:album:2"})
	require.NoError(t, err)
	assert.Len(t, images, 2)
}

func TestManagerSearchFanOut(t *testing.T) {
	m := NewManager(nil)
	ok := newFakeBackend("qobuz")
	broken := newFakeBackend("broken")
	broken.library.searchErr = errors.New("boom")
	require.NoError(t, m.Register(ok))
	require.NoError(t, m.Register(broken))

	results, err := m.Search(context.Background(), Query{"any": {"miles", "davis"}}, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "qobuz:search:miles davis", results[0].URI)

	only := NewManager(nil)
	require.NoError(t, only.Register(broken))
	_, err = only.Search(context.Background(), Query{"any": {"x"}}, false)
	assert.Error(t, err)
}

func TestManagerStartAndMatch(t *testing.T) {
	m := NewManager(nil)
	good := newFakeBackend("qobuz")
	bad := newFakeBackend("bad")
	bad.startErr = errors.New("login failed")
	require.NoError(t, m.Register(good))
	require.NoError(t, m.Register(bad))

	err := m.Start(context.Background())
	assert.Error(t, err)
	assert.True(t, good.started, "one failing backend must not block others")
	assert.NoError(t, m.Stop(context.Background()))

	uri, name, matched := m.MatchURL("https://qobuz.com/track/123")
	require.True(t, matched)
	assert.Equal(t, "qobuz", name)
	assert.Equal(t, "qobuz:track:123", uri)
}

func TestParseURIAndQuality(t *testing.T) {
	u, err := ParseURI("qobuz:featured:albums:tags:press-awards:genres:-1")
	require.NoError(t, err)
	assert.Equal(t, "qobuz", u.Scheme)
	assert.Equal(t, "featured", u.Kind())
	assert.Equal(t, "-1", u.ID())
	assert.Equal(t, "qobuz:featured:albums:tags:press-awards:genres:-1", u.String())

	_, err = ParseURI("qobuz")
	assert.ErrorIs(t, err, ErrInvalidURI)

	for _, raw := range []string{"5", "6", "7", "27", "flac-24-96"} {
		q, err := ParseQuality(raw)
		require.NoError(t, err, raw)
		assert.True(t, q.Valid())
	}
	_, err = ParseQuality("8")
	assert.ErrorIs(t, err, ErrInvalidQuality)
	assert.False(t, Quality(8).Valid())
	assert.Equal(t, "27", QualityHiRes192.FormatID())

	assert.Equal(t, "b a c", Query{"album": {"b"}, "any": {" a "}, "artist": {"c"}}.Terms())
	assert.Empty(t, Query{"any": {" "}}.Terms())
}
