package qobuz

import (
	"context"
	"strings"

	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

// RootURI is the entry point of the browse tree.
const RootURI = "qobuz:directory"

type genre struct {
	id   string
	name string
}

// genres lists the Qobuz genre ids offered for browsing. "-1" means all genres.
var genres = []genre{
	{"-1", "All"},
	{"112", "Rock"},
	{"80", "Jazz"},
	{"10", "Classical"},
	{"64", "Electronic/Dance"},
	{"127", "Soul/Funk/R&B"},
	{"5", "Folk/Americana"},
	{"133", "Hip-Hop/Rap"},
	{"4", "Country"},
	{"116", "Metal"},
	{"3", "Blues"},
	{"149", "Latin"},
	{"91", "Soundtracks"},
	{"94", "World"},
	{"59", "Comedy/Other"},
}

var playlistTags = []string{
	"all", "hi-res", "new", "focus", "danslecasque",
	"label", "mood", "artist", "event", "partner",
}

var featuredAlbumTypes = []genre{
	{"new-releases-full", "New Releases"},
	{"recent-releases", "Still Trending"},
	{"press-awards", "Press Awards"},
	{"most-streamed", "Top Releases"},
}

const (
	favoritesLimit = 50
	featuredLimit  = 25
	focusLimit     = 30
)

var (
	favoritesDir         = platform.DirectoryRef("qobuz:favorites", "Favorites")
	favoriteAlbumsDir    = platform.DirectoryRef("qobuz:favorites:albums", "Albums")
	favoritePlaylistsDir = platform.DirectoryRef("qobuz:favorites:playlists", "Playlists")
	featuredDir          = platform.DirectoryRef("qobuz:featured", "Featured (Recommended)")
	featuredAlbumsDir    = platform.DirectoryRef("qobuz:featured:albums", "Albums")
	featuredPlaylistsDir = platform.DirectoryRef("qobuz:featured:playlists", "Playlists")
	featuredFocusDir     = platform.DirectoryRef("qobuz:featured:focus", "Focus")
	playlistsByGenreDir  = platform.DirectoryRef("qobuz:featured:playlists:genres", "By Genre")
	playlistsByTagDir    = platform.DirectoryRef("qobuz:featured:playlists:tags", "By Tags")
	customDir            = platform.DirectoryRef("qobuz:custom", "Custom")
)

func genreDirs(parent string) []platform.Ref {
	out := make([]platform.Ref, 0, len(genres))
	for _, g := range genres {
		out = append(out, platform.DirectoryRef(parent+":genres:"+g.id, g.name))
	}
	return out
}

func tagDirs(parent string) []platform.Ref {
	out := make([]platform.Ref, 0, len(playlistTags))
	for _, tag := range playlistTags {
		out = append(out, platform.DirectoryRef(parent+":tags:"+tag, strings.ToUpper(tag[:1])+tag[1:]))
	}
	return out
}

func featuredAlbumTypeDirs() []platform.Ref {
	out := make([]platform.Ref, 0, len(featuredAlbumTypes))
	for _, t := range featuredAlbumTypes {
		out = append(out, platform.DirectoryRef("qobuz:featured:albums:tags:"+t.id, t.name))
	}
	return out
}

// genreFilter maps the "all genres" id to no filter.
func genreFilter(id string) string {
	if id == "-1" {
		return ""
	}
	return id
}

type browseHandler func(ctx context.Context, uri string) ([]platform.Ref, error)

type route struct {
	prefix  string
	handler browseHandler
}

// browser resolves browse URIs: static directories first, then the first
// matching prefix handler.
type browser struct {
	client *Client
	tr     translator
	custom *CustomLibraries
	logger backend.Logger
	static map[string][]platform.Ref
	routes []route
}

func newBrowser(client *Client, tr translator, custom *CustomLibraries, logger backend.Logger) *browser {
	b := &browser{client: client, tr: tr, custom: custom, logger: logger}

	root := []platform.Ref{favoritesDir, featuredDir}
	if custom != nil {
		root = append(root, customDir)
	}
	b.static = map[string][]platform.Ref{
		RootURI:                           root,
		"qobuz:favorites":                 {favoriteAlbumsDir, favoritePlaylistsDir},
		"qobuz:featured":                  {featuredAlbumsDir, featuredPlaylistsDir, featuredFocusDir},
		"qobuz:featured:albums":           featuredAlbumTypeDirs(),
		"qobuz:featured:focus":            genreDirs("qobuz:featured:focus"),
		"qobuz:featured:playlists":        {playlistsByTagDir, playlistsByGenreDir},
		"qobuz:featured:playlists:genres": genreDirs("qobuz:featured:playlists"),
		"qobuz:featured:playlists:tags":   tagDirs("qobuz:featured:playlists"),
	}
	b.routes = []route{
		{"qobuz:favorites:albums", b.favoriteAlbums},
		{"qobuz:favorites:playlists", b.favoritePlaylists},
		{"qobuz:featured:playlists:genres:", b.featuredPlaylistsByGenre},
		{"qobuz:featured:playlists:tags:", b.featuredPlaylistsByTag},
		{"qobuz:featured:albums:tags:", b.featuredAlbums},
		{"qobuz:featured:focus:genres:", b.focusByGenre},
		{"qobuz:playlist:", b.playlist},
		{"qobuz:album:", b.album},
		{"qobuz:focus:", b.focus},
		{"qobuz:artist:", b.artist},
		{"qobuz:label:", b.label},
		{"qobuz:custom", b.customLibrary},
	}
	return b
}

// Browse lists the children of uri. Unknown URIs give nil without error.
func (b *browser) Browse(ctx context.Context, uri string) ([]platform.Ref, error) {
	if refs, ok := b.static[uri]; ok {
		return append([]platform.Ref(nil), refs...), nil
	}
	for _, r := range b.routes {
		if strings.HasPrefix(uri, r.prefix) {
			return r.handler(ctx, uri)
		}
	}
	if b.logger != nil {
		b.logger.Info("cannot browse uri", "uri", uri)
	}
	return nil, nil
}

func lastPart(uri string) string {
	if i := strings.LastIndex(uri, ":"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

func (b *browser) favoriteAlbums(ctx context.Context, uri string) ([]platform.Ref, error) {
	albums, err := b.client.FavoriteAlbums(ctx, 0, favoritesLimit)
	if err != nil {
		return nil, err
	}
	return b.tr.albumRefs(albums), nil
}

func (b *browser) favoritePlaylists(ctx context.Context, uri string) ([]platform.Ref, error) {
	playlists, err := b.client.UserPlaylists(ctx, favoritesLimit)
	if err != nil {
		return nil, err
	}
	return b.tr.playlistRefs(playlists), nil
}

func (b *browser) featuredPlaylistsByGenre(ctx context.Context, uri string) ([]platform.Ref, error) {
	playlists, err := b.client.FeaturedPlaylists(ctx, "", genreFilter(lastPart(uri)), featuredLimit, 0)
	if err != nil {
		return nil, err
	}
	return b.tr.playlistRefs(playlists), nil
}

func (b *browser) featuredPlaylistsByTag(ctx context.Context, uri string) ([]platform.Ref, error) {
	tag := lastPart(uri)
	if tag == "all" {
		tag = ""
	}
	playlists, err := b.client.FeaturedPlaylists(ctx, tag, "", featuredLimit, 0)
	if err != nil {
		return nil, err
	}
	return b.tr.playlistRefs(playlists), nil
}

// featuredAlbums serves qobuz:featured:albums:tags:<type> (a genre listing)
// and qobuz:featured:albums:tags:<type>:genres:<id> (the albums).
func (b *browser) featuredAlbums(ctx context.Context, uri string) ([]platform.Ref, error) {
	if !strings.Contains(uri, "genres") {
		return genreDirs(uri), nil
	}
	parts := strings.Split(uri, ":")
	if len(parts) < 3 {
		return nil, nil
	}
	genreID := parts[len(parts)-1]
	kind := parts[len(parts)-3]

	albums, err := b.client.FeaturedAlbums(ctx, kind, genreFilter(genreID), featuredLimit, 0)
	if err != nil {
		return nil, err
	}
	return b.tr.albumRefs(albums), nil
}

func (b *browser) focusByGenre(ctx context.Context, uri string) ([]platform.Ref, error) {
	items, err := b.client.FocusList(ctx, genreFilter(lastPart(uri)), focusLimit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]platform.Ref, 0, len(items))
	for _, focus := range items {
		name := focus.Title
		if name == "" {
			name = "Unknown"
		}
		out = append(out, platform.DirectoryRef("qobuz:focus:"+string(focus.ID), name))
	}
	return out, nil
}

func (b *browser) playlist(ctx context.Context, uri string) ([]platform.Ref, error) {
	playlist, err := b.client.Playlist(ctx, lastPart(uri))
	if err != nil {
		return nil, err
	}
	return b.tr.trackRefs(playlist.Tracks.Items), nil
}

func (b *browser) album(ctx context.Context, uri string) ([]platform.Ref, error) {
	album, err := b.client.Album(ctx, lastPart(uri))
	if err != nil {
		return nil, err
	}
	if album.Tracks == nil {
		return nil, nil
	}
	return b.tr.trackRefs(album.Tracks.Items), nil
}

func (b *browser) focus(ctx context.Context, uri string) ([]platform.Ref, error) {
	focus, err := b.client.Focus(ctx, lastPart(uri))
	if err != nil {
		return nil, err
	}
	out := b.tr.albumRefs(focus.albums())
	return append(out, b.tr.playlistRefs(focus.playlists())...), nil
}

func (b *browser) artist(ctx context.Context, uri string) ([]platform.Ref, error) {
	albums, err := b.client.ArtistAlbums(ctx, lastPart(uri))
	if err != nil {
		return nil, err
	}
	return b.tr.albumRefs(albums), nil
}

func (b *browser) label(ctx context.Context, uri string) ([]platform.Ref, error) {
	albums, err := b.client.LabelAlbums(ctx, lastPart(uri))
	if err != nil {
		return nil, err
	}
	return b.tr.albumRefs(albums), nil
}

// customLibrary serves qobuz:custom, qobuz:custom:<list> and qobuz:custom:<list>:<sublist>.
func (b *browser) customLibrary(ctx context.Context, uri string) ([]platform.Ref, error) {
	if b.custom == nil {
		return nil, nil
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(uri, "qobuz:custom"), ":")
	if rest == "" {
		lists := b.custom.Lists()
		out := make([]platform.Ref, 0, len(lists))
		for _, name := range lists {
			out = append(out, platform.DirectoryRef("qobuz:custom:"+name, name))
		}
		return out, nil
	}

	list, sublist, hasSub := strings.Cut(rest, ":")
	if !hasSub {
		names, ok := b.custom.Sublists(list)
		if !ok {
			return nil, nil
		}
		out := make([]platform.Ref, 0, len(names))
		for _, name := range names {
			out = append(out, platform.DirectoryRef("qobuz:custom:"+list+":"+name, name))
		}
		return out, nil
	}

	uris, ok := b.custom.URIs(list, sublist)
	if !ok {
		return nil, nil
	}
	out := make([]platform.Ref, 0, len(uris))
	for _, item := range uris {
		ref, err := b.refFor(ctx, item)
		if err != nil {
			if b.logger != nil {
				b.logger.Warn("skipping custom library item", "uri", item, "error", err)
			}
			continue
		}
		if ref != nil {
			out = append(out, *ref)
		}
	}
	return out, nil
}

// refFor builds a Ref for a single catalogue URI.
func (b *browser) refFor(ctx context.Context, uri string) (*platform.Ref, error) {
	parsed, err := platform.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	id := parsed.ID()
	switch parsed.Kind() {
	case "album":
		album, err := b.client.Album(ctx, id)
		if err != nil {
			return nil, err
		}
		if ref, ok := b.tr.albumRef(album); ok {
			return &ref, nil
		}
	case "track":
		track, err := b.client.Track(ctx, id)
		if err != nil {
			return nil, err
		}
		if ref, ok := b.tr.trackRef(track); ok {
			return &ref, nil
		}
	case "artist":
		artist, err := b.client.Artist(ctx, id)
		if err != nil {
			return nil, err
		}
		ref := b.tr.artistRef(artist)
		return &ref, nil
	case "playlist":
		playlist, err := b.client.Playlist(ctx, id)
		if err != nil {
			return nil, err
		}
		ref := b.tr.playlistRef(playlist)
		return &ref, nil
	default:
		return nil, platform.NewUnsupportedError(platformName, parsed.Kind())
	}
	return nil, nil
}
