package platform

import (
	"sort"
	"strings"
)

// RefType identifies what a Ref points at.
type RefType string

const (
	RefDirectory RefType = "directory"
	RefAlbum     RefType = "album"
	RefArtist    RefType = "artist"
	RefPlaylist  RefType = "playlist"
	RefTrack     RefType = "track"
)

// Ref is a lightweight pointer used when browsing.
type Ref struct {
	URI  string  `json:"uri"`
	Name string  `json:"name"`
	Type RefType `json:"type"`
}

func DirectoryRef(uri, name string) Ref { return Ref{URI: uri, Name: name, Type: RefDirectory} }
func AlbumRef(uri, name string) Ref     { return Ref{URI: uri, Name: name, Type: RefAlbum} }
func ArtistRef(uri, name string) Ref    { return Ref{URI: uri, Name: name, Type: RefArtist} }
func PlaylistRef(uri, name string) Ref  { return Ref{URI: uri, Name: name, Type: RefPlaylist} }
func TrackRef(uri, name string) Ref     { return Ref{URI: uri, Name: name, Type: RefTrack} }

// Artist represents a music artist.
type Artist struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// Album represents an album as seen by the host.
type Album struct {
	URI       string   `json:"uri"`
	Name      string   `json:"name"`
	Artists   []Artist `json:"artists,omitempty"`
	NumTracks int      `json:"num_tracks,omitempty"`
	Date      string   `json:"date,omitempty"`
}

// Track represents a playable track.
type Track struct {
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists,omitempty"`
	Album   *Album   `json:"album,omitempty"`
	Date    string   `json:"date,omitempty"`
	// Length is the duration in milliseconds.
	Length  int `json:"length,omitempty"`
	DiscNo  int `json:"disc_no,omitempty"`
	TrackNo int `json:"track_no,omitempty"`
}

// Playlist is a named, ordered list of tracks.
type Playlist struct {
	URI    string  `json:"uri"`
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks,omitempty"`
}

// Image is a cover or artist picture.
type Image struct {
	URI    string `json:"uri"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// SearchResult groups everything a backend found for a query.
type SearchResult struct {
	URI     string   `json:"uri"`
	Albums  []Album  `json:"albums"`
	Artists []Artist `json:"artists"`
	Tracks  []Track  `json:"tracks"`
}

// Query maps a field ("any", "artist", "album", ...) to its search terms.
type Query map[string][]string

// Terms joins every value of the query into one space separated string.
// Fields are visited in sorted order so the result is stable.
func (q Query) Terms() string {
	if len(q) == 0 {
		return ""
	}
	fields := make([]string, 0, len(q))
	for field := range q {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(q))
	for _, field := range fields {
		value := strings.TrimSpace(strings.Join(q[field], " "))
		if value != "" {
			parts = append(parts, value)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
