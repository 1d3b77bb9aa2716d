package qobuz

import (
	"strings"

	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

// trivialVersions never make it into a display title.
var trivialVersions = map[string]bool{
	"album version": true,
	"lp version":    true,
}

func albumURI(id ID) string    { return platform.BuildURI(platformName, "album", string(id)) }
func artistURI(id ID) string   { return platform.BuildURI(platformName, "artist", string(id)) }
func trackURI(id ID) string    { return platform.BuildURI(platformName, "track", string(id)) }
func playlistURI(id ID) string { return platform.BuildURI(platformName, "playlist", string(id)) }

// translator converts Qobuz payloads into host models. Items that are not
// streamable (or not hi-res when hi-res is required) translate to nothing.
type translator struct {
	hiresRequired bool
	logger        backend.Logger
}

func (t translator) available(kind string, id ID, streamable, hires bool) bool {
	if !streamable {
		if t.logger != nil {
			t.logger.Debug("not streamable", "type", kind, "id", string(id))
		}
		return false
	}
	if t.hiresRequired && !hires {
		if t.logger != nil {
			t.logger.Debug("not available in hi-res", "type", kind, "id", string(id))
		}
		return false
	}
	return true
}

// lenient drops the hi-res requirement.
func (t translator) lenient() translator {
	return translator{logger: t.logger}
}

func (t translator) artist(a *qobuzArtist) platform.Artist {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = "Unknown"
	}
	return platform.Artist{URI: artistURI(a.ID), Name: name}
}

func (t translator) artistRef(a *qobuzArtist) platform.Ref {
	artist := t.artist(a)
	return platform.ArtistRef(artist.URI, artist.Name)
}

// album ignores hiresRequired: it is the parent of a track that already passed the check.
func (t translator) album(a *qobuzAlbum) *platform.Album {
	if a == nil || !t.lenient().available("album", a.ID, a.IsStreamable(), a.HiresStreamable) {
		return nil
	}
	out := &platform.Album{
		URI:       albumURI(a.ID),
		Name:      completeTitle(albumTitle(a), a.Version),
		NumTracks: a.TracksCount,
		Date:      a.ReleaseDateOriginal,
	}
	if out.NumTracks == 0 {
		out.NumTracks = 1
	}
	if a.Artist != nil {
		out.Artists = []platform.Artist{t.artist(a.Artist)}
	}
	return out
}

// searchAlbum applies hiresRequired, unlike album.
func (t translator) searchAlbum(a *qobuzAlbum) *platform.Album {
	if !t.available("album", a.ID, a.IsStreamable(), a.HiresStreamable) {
		return nil
	}
	return t.album(a)
}

func (t translator) albumRef(a *qobuzAlbum) (platform.Ref, bool) {
	if !t.available("album", a.ID, a.IsStreamable(), a.HiresStreamable) {
		return platform.Ref{}, false
	}
	title := completeTitle(albumTitle(a), a.Version)
	if a.Artist != nil {
		title = t.artist(a.Artist).Name + " - " + title
	}
	if a.HiresStreamable {
		title += " [Hi-res]"
	}
	return platform.AlbumRef(albumURI(a.ID), title), true
}

func (t translator) track(tr *qobuzTrack) *platform.Track {
	if !t.available("track", tr.ID, tr.Streamable, tr.HiresStreamable) {
		return nil
	}
	album := t.album(tr.Album)
	if album == nil {
		return nil
	}
	out := &platform.Track{
		URI:     trackURI(tr.ID),
		Name:    trackTitle(tr),
		Album:   album,
		Date:    album.Date,
		Length:  tr.Duration * 1000,
		DiscNo:  tr.MediaNumber,
		TrackNo: tr.TrackNumber,
	}
	if out.DiscNo == 0 {
		out.DiscNo = 1
	}
	if out.TrackNo == 0 {
		out.TrackNo = 1
	}
	if artist := trackArtist(tr); artist != nil {
		out.Artists = []platform.Artist{t.artist(artist)}
	}
	return out
}

func (t translator) trackRef(tr *qobuzTrack) (platform.Ref, bool) {
	if !t.available("track", tr.ID, tr.Streamable, tr.HiresStreamable) {
		return platform.Ref{}, false
	}
	title := trackTitle(tr)
	if artist := trackArtist(tr); artist != nil {
		title = t.artist(artist).Name + " - " + title
	}
	return platform.TrackRef(trackURI(tr.ID), title), true
}

func (t translator) playlistRef(p *qobuzPlaylist) platform.Ref {
	name := p.Name
	if name == "" {
		name = "Unknown"
	}
	return platform.PlaylistRef(playlistURI(p.ID), name)
}

func (t translator) playlist(p *qobuzPlaylist) *platform.Playlist {
	ref := t.playlistRef(p)
	out := &platform.Playlist{URI: ref.URI, Name: ref.Name}
	if p.Tracks == nil {
		return out
	}
	for i := range p.Tracks.Items {
		if track := t.track(&p.Tracks.Items[i]); track != nil {
			out.Tracks = append(out.Tracks, *track)
		}
	}
	return out
}

func (t translator) tracks(items []qobuzTrack) []platform.Track {
	out := make([]platform.Track, 0, len(items))
	for i := range items {
		if track := t.track(&items[i]); track != nil {
			out = append(out, *track)
		}
	}
	return out
}

func (t translator) trackRefs(items []qobuzTrack) []platform.Ref {
	out := make([]platform.Ref, 0, len(items))
	for i := range items {
		if ref, ok := t.trackRef(&items[i]); ok {
			out = append(out, ref)
		}
	}
	return out
}

func (t translator) albumRefs(items []qobuzAlbum) []platform.Ref {
	out := make([]platform.Ref, 0, len(items))
	for i := range items {
		if ref, ok := t.albumRef(&items[i]); ok {
			out = append(out, ref)
		}
	}
	return out
}

func (t translator) playlistRefs(items []qobuzPlaylist) []platform.Ref {
	out := make([]platform.Ref, 0, len(items))
	for i := range items {
		out = append(out, t.playlistRef(&items[i]))
	}
	return out
}

// trackArtist prefers the performer and falls back to the album artist.
func trackArtist(tr *qobuzTrack) *qobuzArtist {
	if tr.Performer != nil {
		return tr.Performer
	}
	if tr.Album != nil {
		return tr.Album.Artist
	}
	return nil
}

func albumTitle(a *qobuzAlbum) string {
	if a.Title == "" {
		return "Unknown"
	}
	return a.Title
}

// trackTitle drops versions that only repeat the album release type ("Single Version", ...).
func trackTitle(tr *qobuzTrack) string {
	if tr.Album != nil && tr.Album.ReleaseType != nil && tr.Version != nil &&
		strings.Contains(*tr.Version, *tr.Album.ReleaseType) {
		return tr.Title
	}
	return completeTitle(tr.Title, tr.Version)
}

func completeTitle(title string, version *string) string {
	if version == nil {
		return title
	}
	v := strings.ToLower(*version)
	if trivialVersions[v] || strings.Contains(strings.ToLower(title), v) {
		return title
	}
	return strings.TrimSpace(title) + " (" + strings.TrimSpace(*version) + ")"
}
