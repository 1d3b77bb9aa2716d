package qobuz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCompleteTitle(t *testing.T) {
	tests := []struct {
		title   string
		version *string
		want    string
	}{
		{"Yeezus", nil, "Yeezus"},
		{"So What", strPtr("Remastered"), "So What (Remastered)"},
		{"So What", strPtr("Album Version"), "So What"},
		{"So What", strPtr("LP Version"), "So What"},
		{"So What (Live)", strPtr("live"), "So What (Live)"},
		{" Blue ", strPtr(" Mono "), "Blue (Mono)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, completeTitle(tt.title, tt.version))
	}
}

func TestTrackTitleSkipsReleaseTypeVersion(t *testing.T) {
	track := &qobuzTrack{
		Title:   "Runaway",
		Version: strPtr("single version"),
		Album:   &qobuzAlbum{ReleaseType: strPtr("single")},
	}
	assert.Equal(t, "Runaway", trackTitle(track))

	track.Album.ReleaseType = strPtr("album")
	assert.Equal(t, "Runaway (single version)", trackTitle(track))
}

func TestTranslateTrack(t *testing.T) {
	var track qobuzTrack
	require.NoError(t, json.Unmarshal([]byte(trackJSON), &track))

	got := translator{}.track(&track)
	require.NotNil(t, got)
	assert.Equal(t, "qobuz:track:5966783", got.URI)
	assert.Equal(t, "So What (Remastered)", got.Name)
	assert.Equal(t, 562000, got.Length)
	assert.Equal(t, 1, got.DiscNo)
	assert.Equal(t, 1, got.TrackNo)
	assert.Equal(t, "1959-08-17", got.Date)
	require.Len(t, got.Artists, 1)
	assert.Equal(t, platform.Artist{URI: "qobuz:artist:4", Name: "Miles Davis"}, got.Artists[0])
	require.NotNil(t, got.Album)
	assert.Equal(t, "qobuz:album:0886443927087", got.Album.URI)
	assert.Equal(t, 5, got.Album.NumTracks)
}

func TestTranslateTrackDefaults(t *testing.T) {
	track := &qobuzTrack{
		ID:         "9",
		Title:      "Untitled",
		Streamable: true,
		Album:      &qobuzAlbum{ID: "a", Streamable: boolPtr(true), Artist: &qobuzArtist{ID: "3", Name: "  "}},
	}
	got := translator{}.track(track)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.DiscNo)
	assert.Equal(t, 1, got.TrackNo)
	assert.Equal(t, 1, got.Album.NumTracks)
	assert.Equal(t, "Unknown", got.Album.Name)
	require.Len(t, got.Artists, 1)
	assert.Equal(t, "Unknown", got.Artists[0].Name, "album artist is the fallback performer")
}

func TestTranslateHidesUnavailableItems(t *testing.T) {
	streamable := &qobuzAlbum{ID: "a", Title: "A", Streamable: boolPtr(true)}
	tests := []struct {
		name  string
		tr    translator
		track qobuzTrack
	}{
		{"not streamable", translator{}, qobuzTrack{ID: "1", Streamable: false, Album: streamable}},
		{"hi-res required", translator{hiresRequired: true}, qobuzTrack{ID: "2", Streamable: true, Album: streamable}},
		{"no album", translator{}, qobuzTrack{ID: "3", Streamable: true}},
		{"album not streamable", translator{}, qobuzTrack{ID: "4", Streamable: true, Album: &qobuzAlbum{ID: "b", Streamable: boolPtr(false)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, tt.tr.track(&tt.track))
			_, ok := tt.tr.trackRef(&tt.track)
			if tt.name == "no album" || tt.name == "album not streamable" {
				assert.True(t, ok, "refs do not need the album")
			} else {
				assert.False(t, ok)
			}
		})
	}
}

func TestHiresRequiredKeepsParentAlbum(t *testing.T) {
	track := &qobuzTrack{
		ID:              "1",
		Title:           "T",
		Streamable:      true,
		HiresStreamable: true,
		Album:           &qobuzAlbum{ID: "a", Title: "A", Streamable: boolPtr(true)},
	}
	got := translator{hiresRequired: true}.track(track)
	require.NotNil(t, got)
	assert.Equal(t, "qobuz:album:a", got.Album.URI)

	assert.Nil(t, translator{hiresRequired: true}.searchAlbum(track.Album))
}

func TestAlbumRef(t *testing.T) {
	album := &qobuzAlbum{
		ID:              "0060253743926",
		Title:           "Yeezus",
		Version:         strPtr("Deluxe"),
		Artist:          &qobuzArtist{ID: "36819", Name: "Kanye West"},
		HiresStreamable: true,
	}
	ref, ok := translator{}.albumRef(album)
	require.True(t, ok, "hires_streamable stands in for a missing streamable flag")
	assert.Equal(t, platform.AlbumRef("qobuz:album:0060253743926", "Kanye West - Yeezus (Deluxe) [Hi-res]"), ref)

	album.HiresStreamable = false
	album.Streamable = boolPtr(true)
	ref, ok = translator{}.albumRef(album)
	require.True(t, ok)
	assert.Equal(t, "Kanye West - Yeezus (Deluxe)", ref.Name)

	_, ok = translator{hiresRequired: true}.albumRef(album)
	assert.False(t, ok)
}

func TestTrackRefUsesPerformer(t *testing.T) {
	var track qobuzTrack
	require.NoError(t, json.Unmarshal([]byte(trackJSON), &track))

	ref, ok := translator{}.trackRef(&track)
	require.True(t, ok)
	assert.Equal(t, platform.TrackRef("qobuz:track:5966783", "Miles Davis - So What (Remastered)"), ref)
}

func TestPlaylistTranslation(t *testing.T) {
	var playlist qobuzPlaylist
	require.NoError(t, json.Unmarshal([]byte(playlistJSON), &playlist))

	ref := translator{}.playlistRef(&playlist)
	assert.Equal(t, platform.PlaylistRef("qobuz:playlist:1141084", "Late night"), ref)

	full := translator{}.playlist(&playlist)
	require.Len(t, full.Tracks, 2)
	assert.Equal(t, "qobuz:track:11", full.Tracks[0].URI)
	assert.Equal(t, "Miles Davis", full.Tracks[0].Artists[0].Name)

	assert.Equal(t, "Unknown", translator{}.playlistRef(&qobuzPlaylist{ID: "1"}).Name)
}

func TestIDAcceptsStringsAndNumbers(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "0060253743926", "b": 5966783, "c": null}`), &v))
	assert.Equal(t, ID("0060253743926"), v.A)
	assert.Equal(t, ID("5966783"), v.B)
	assert.Equal(t, ID(""), v.C)
}
