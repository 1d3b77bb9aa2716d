package qobuz

import (
	"net/url"
	"strings"

	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

// URLMatcher implements platform.URLMatcher for Qobuz web links.
type URLMatcher struct{}

// NewURLMatcher creates a new Qobuz URL matcher.
func NewURLMatcher() *URLMatcher {
	return &URLMatcher{}
}

// webKinds maps path segments used on www.qobuz.com to URI kinds.
var webKinds = map[string]string{
	"album":       "album",
	"track":       "track",
	"playlist":    "playlist",
	"playlists":   "playlist",
	"artist":      "artist",
	"interpreter": "artist",
	"label":       "label",
}

// MatchURL converts a Qobuz link into a qobuz: URI. Supported forms:
//   - https://open.qobuz.com/album/0060253743926
//   - https://play.qobuz.com/track/5966783
//   - https://www.qobuz.com/us-en/album/yeezus-kanye-west/0060253743926
//   - https://www.qobuz.com/gb-en/interpreter/kanye-west/36819
func (m *URLMatcher) MatchURL(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}

	host := strings.ToLower(parsed.Hostname())
	if host != "qobuz.com" && !strings.HasSuffix(host, ".qobuz.com") {
		return "", false
	}

	segments := make([]string, 0, 4)
	for _, segment := range strings.Split(parsed.Path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	if len(segments) < 2 {
		return "", false
	}

	// Search from the end so that locale prefixes and slugs are skipped.
	for i := len(segments) - 2; i >= 0; i-- {
		kind, ok := webKinds[strings.ToLower(segments[i])]
		if !ok {
			continue
		}
		id := segments[len(segments)-1]
		if id == "" || id == segments[i] {
			return "", false
		}
		return platform.BuildURI(platformName, kind, id), true
	}
	return "", false
}
