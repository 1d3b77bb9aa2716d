package qobuz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vitiko98/mopidy-qobuz/backend"
)

const (
	testAppID  = "100000000"
	testSecret = "s3cr3t"
	testToken  = "token-1"
)

var testNow = time.Unix(1700000000, 0)

type recordedRequest struct {
	method string
	form   map[string]string
	token  string
	appID  string
}

// fakeQobuz serves canned API replies keyed by endpoint ("track/get", ...).
type fakeQobuz struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests map[string][]recordedRequest
}

func newFakeQobuz(t *testing.T) *fakeQobuz {
	t.Helper()
	f := &fakeQobuz{
		t:        t,
		handlers: map[string]http.HandlerFunc{},
		requests: map[string][]recordedRequest{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeQobuz) URL() string { return f.server.URL }

func (f *fakeQobuz) handle(endpoint string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[endpoint] = h
}

// reply registers a fixed JSON reply.
func (f *fakeQobuz) reply(endpoint string, status int, body string) {
	f.handle(endpoint, func(w http.ResponseWriter, r *http.Request) {
		writeRaw(w, status, body)
	})
}

func (f *fakeQobuz) serve(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/")
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec := recordedRequest{
		method: r.Method,
		form:   map[string]string{},
		token:  r.Header.Get("X-User-Auth-Token"),
		appID:  r.Header.Get("X-App-Id"),
	}
	for key := range r.Form {
		rec.form[key] = r.Form.Get(key)
	}

	f.mu.Lock()
	f.requests[endpoint] = append(f.requests[endpoint], rec)
	h, ok := f.handlers[endpoint]
	f.mu.Unlock()

	if !ok {
		writeRaw(w, http.StatusNotFound, `{"status":"error","code":404,"message":"No route"}`)
		return
	}
	h(w, r)
}

func (f *fakeQobuz) calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests[endpoint])
}

func (f *fakeQobuz) last(endpoint string) recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	reqs := f.requests[endpoint]
	require.NotEmpty(f.t, reqs, "no request to %s", endpoint)
	return reqs[len(reqs)-1]
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, _ := json.Marshal(v)
	writeRaw(w, status, string(data))
}

// newTestClient returns a logged in client talking to f.
func newTestClient(t *testing.T, f *fakeQobuz, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		AppID:        testAppID,
		Secret:       testSecret,
		BaseURL:      f.URL(),
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
		Now:          func() time.Time { return testNow },
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := NewClient(opts)
	require.NoError(t, err)
	c.RestoreSession(testToken, "Studio", "", "")
	return c
}

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("debug", msg) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("info", msg) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("warn", msg) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("error", msg) }
func (l *recordingLogger) With(args ...any) backend.Logger {
	return l
}

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

// Canned catalogue payloads.
const (
	albumJSON = `{
		"id": "0060253743926",
		"title": "Yeezus",
		"version": null,
		"artist": {"id": 36819, "name": "Kanye West"},
		"image": {"small": "https://static.qobuz.com/s.jpg", "large": "https://static.qobuz.com/l.jpg"},
		"tracks_count": 2,
		"release_date_original": "2013-06-18",
		"release_type": "album",
		"streamable": true,
		"hires_streamable": false,
		"tracks": {"items": [
			{"id": 1001, "title": "On Sight", "duration": 156, "media_number": 1, "track_number": 1, "streamable": true},
			{"id": 1002, "title": "Black Skinhead", "duration": 188, "media_number": 1, "track_number": 2, "streamable": false}
		], "total": 2}
	}`

	trackJSON = `{
		"id": 5966783,
		"title": "So What",
		"version": "Remastered",
		"duration": 562,
		"media_number": 1,
		"track_number": 1,
		"streamable": true,
		"hires_streamable": true,
		"performer": {"id": 4, "name": "Miles Davis"},
		"album": {
			"id": "0886443927087",
			"title": "Kind Of Blue",
			"artist": {"id": 4, "name": "Miles Davis"},
			"image": {"large": "https://static.qobuz.com/kob.jpg"},
			"tracks_count": 5,
			"release_date_original": "1959-08-17",
			"streamable": true,
			"hires_streamable": true
		}
	}`

	playlistJSON = `{
		"id": 1141084,
		"name": "Late night",
		"tracks_count": 2,
		"tracks": {"items": [
			{"id": 11, "playlist_track_id": 9011, "title": "Blue in Green", "duration": 337, "streamable": true,
			 "album": {"id": "a1", "title": "Kind Of Blue", "streamable": true, "artist": {"id": 4, "name": "Miles Davis"}}},
			{"id": 12, "playlist_track_id": 9012, "title": "Naima", "duration": 260, "streamable": true,
			 "album": {"id": "a2", "title": "Giant Steps", "streamable": true, "artist": {"id": 5, "name": "John Coltrane"}}}
		], "total": 2}
	}`
)
