package qobuz

import (
	"testing"
)

func TestURLMatcherMatchURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantURI   string
		wantMatch bool
	}{
		{
			name:      "open album",
			url:       "https://open.qobuz.com/album/0060253743926",
			wantURI:   "qobuz:album:0060253743926",
			wantMatch: true,
		},
		{
			name:      "play track",
			url:       "https://play.qobuz.com/track/5966783",
			wantURI:   "qobuz:track:5966783",
			wantMatch: true,
		},
		{
			name:      "open playlist with trailing slash",
			url:       "https://open.qobuz.com/playlist/1141084/",
			wantURI:   "qobuz:playlist:1141084",
			wantMatch: true,
		},
		{
			name:      "play artist",
			url:       "https://play.qobuz.com/artist/36819",
			wantURI:   "qobuz:artist:36819",
			wantMatch: true,
		},
		{
			name:      "store album with locale and slug",
			url:       "https://www.qobuz.com/us-en/album/yeezus-kanye-west/0060253743926",
			wantURI:   "qobuz:album:0060253743926",
			wantMatch: true,
		},
		{
			name:      "store interpreter",
			url:       "https://www.qobuz.com/gb-en/interpreter/kanye-west/36819",
			wantURI:   "qobuz:artist:36819",
			wantMatch: true,
		},
		{
			name:      "store label",
			url:       "https://www.qobuz.com/fr-fr/label/blue-note/1013",
			wantURI:   "qobuz:label:1013",
			wantMatch: true,
		},
		{
			name:      "store playlists",
			url:       "https://www.qobuz.com/us-en/playlists/jazz-classics/1141084",
			wantURI:   "qobuz:playlist:1141084",
			wantMatch: true,
		},
		{
			name:      "query string is ignored",
			url:       "https://open.qobuz.com/track/5966783?utm_source=share",
			wantURI:   "qobuz:track:5966783",
			wantMatch: true,
		},
		{
			name:      "kind without id",
			url:       "https://open.qobuz.com/album",
			wantMatch: false,
		},
		{
			name:      "unknown kind",
			url:       "https://www.qobuz.com/us-en/shop/123",
			wantMatch: false,
		},
		{
			name:      "other host",
			url:       "https://open.spotify.com/album/0060253743926",
			wantMatch: false,
		},
		{
			name:      "lookalike host",
			url:       "https://qobuz.com.evil.example/album/1",
			wantMatch: false,
		},
		{
			name:      "empty",
			url:       "",
			wantMatch: false,
		},
	}

	matcher := NewURLMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotURI, gotMatch := matcher.MatchURL(tt.url)
			if gotMatch != tt.wantMatch {
				t.Errorf("MatchURL() matched = %v, want %v", gotMatch, tt.wantMatch)
			}
			if gotURI != tt.wantURI {
				t.Errorf("MatchURL() uri = %q, want %q", gotURI, tt.wantURI)
			}
		})
	}
}
