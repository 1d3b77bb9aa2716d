package qobuz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ID is a Qobuz identifier. Albums use strings, most other objects use numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("qobuz: id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type qobuzImage struct {
	Small     string `json:"small"`
	Thumbnail string `json:"thumbnail"`
	Large     string `json:"large"`
}

type qobuzArtist struct {
	ID              ID              `json:"id"`
	Name            string          `json:"name"`
	AlbumsCount     int             `json:"albums_count"`
	TracksCount     int             `json:"tracks_count"`
	Image           *qobuzImage     `json:"image"`
	Albums          *qobuzAlbumList `json:"albums"`
	TracksAppearsOn *qobuzTrackList `json:"tracks_appears_on"`
}

type qobuzLabel struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	AlbumsCount int             `json:"albums_count"`
	Albums      *qobuzAlbumList `json:"albums"`
}

type qobuzAlbum struct {
	ID                  ID              `json:"id"`
	Title               string          `json:"title"`
	Version             *string         `json:"version"`
	Artist              *qobuzArtist    `json:"artist"`
	Image               *qobuzImage     `json:"image"`
	TracksCount         int             `json:"tracks_count"`
	MediaCount          int             `json:"media_count"`
	ReleaseDateOriginal string          `json:"release_date_original"`
	ReleaseType         *string         `json:"release_type"`
	Streamable          *bool           `json:"streamable"`
	HiresStreamable     bool            `json:"hires_streamable"`
	Tracks              *qobuzTrackList `json:"tracks"`
	Label               *qobuzLabel     `json:"label"`
}

// IsStreamable falls back to hires_streamable when the reply omits streamable.
func (a *qobuzAlbum) IsStreamable() bool {
	if a.Streamable != nil {
		return *a.Streamable
	}
	return a.HiresStreamable
}

type qobuzTrack struct {
	ID              ID           `json:"id"`
	Title           string       `json:"title"`
	Version         *string      `json:"version"`
	Duration        int          `json:"duration"`
	MediaNumber     int          `json:"media_number"`
	TrackNumber     int          `json:"track_number"`
	Streamable      bool         `json:"streamable"`
	HiresStreamable bool         `json:"hires_streamable"`
	Performer       *qobuzArtist `json:"performer"`
	Album           *qobuzAlbum  `json:"album"`
	// PlaylistTrackID is only set on playlist items and is what playlist/deleteTracks expects.
	PlaylistTrackID ID `json:"playlist_track_id"`
}

type qobuzPlaylist struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	TracksCount int             `json:"tracks_count"`
	Duration    int             `json:"duration"`
	IsPublic    bool            `json:"is_public"`
	Tracks      *qobuzTrackList `json:"tracks"`
	Owner       *struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
	} `json:"owner"`
}

type qobuzAlbumList struct {
	Items  []qobuzAlbum `json:"items"`
	Total  int          `json:"total"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
}

type qobuzTrackList struct {
	Items  []qobuzTrack `json:"items"`
	Total  int          `json:"total"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
}

type qobuzArtistList struct {
	Items []qobuzArtist `json:"items"`
	Total int           `json:"total"`
}

type qobuzPlaylistList struct {
	Items []qobuzPlaylist `json:"items"`
	Total int             `json:"total"`
}

type qobuzFocus struct {
	ID         ID                             `json:"id"`
	Title      string                         `json:"title"`
	Containers map[string]qobuzFocusContainer `json:"containers"`
}

type qobuzFocusContainer struct {
	Type     string          `json:"type"`
	Albums   *qobuzAlbumList `json:"albums"`
	Playlist *qobuzPlaylist  `json:"playlist"`
}

// containerKeys returns container names in a stable order.
func (f *qobuzFocus) containerKeys() []string {
	keys := make([]string, 0, len(f.Containers))
	for key := range f.Containers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type loginReply struct {
	UserAuthToken string `json:"user_auth_token"`
	User          struct {
		ID         ID `json:"id"`
		Credential *struct {
			Parameters *struct {
				ShortLabel string `json:"short_label"`
			} `json:"parameters"`
		} `json:"credential"`
	} `json:"user"`
}

func (r *loginReply) membership() string {
	if r.User.Credential == nil || r.User.Credential.Parameters == nil {
		return ""
	}
	return r.User.Credential.Parameters.ShortLabel
}

type fileURLReply struct {
	TrackID      ID       `json:"track_id"`
	URL          string   `json:"url"`
	FormatID     int      `json:"format_id"`
	MimeType     string   `json:"mime_type"`
	Duration     float64  `json:"duration"`
	BitDepth     *int     `json:"bit_depth"`
	SamplingRate *float64 `json:"sampling_rate"`
	Restrictions []struct {
		Code string `json:"code"`
	} `json:"restrictions"`
	Sample json.RawMessage `json:"sample"`
}

func (r *fileURLReply) restrictionCodes() []string {
	codes := make([]string, 0, len(r.Restrictions))
	for _, restriction := range r.Restrictions {
		codes = append(codes, restriction.Code)
	}
	return codes
}

// hasSample reports whether the reply carried a "sample" key, whatever its value.
func (r *fileURLReply) hasSample() bool {
	return len(r.Sample) > 0
}

