package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

type healthBody struct {
	Status   string          `json:"status"`
	Backends map[string]bool `json:"backends"`
}

type createPlaylistBody struct {
	Name    string `json:"name"`
	Backend string `json:"backend,omitempty"`
}

type uriBody struct {
	URI string `json:"uri"`
}

type favoriteBody struct {
	URI      string `json:"uri"`
	Favorite bool   `json:"favorite"`
}

type prefetchBody struct {
	URIs []string `json:"uris"`
}

type translateBody struct {
	URI string `json:"uri"`
	URL string `json:"url"`
}

type matchBody struct {
	URI     string `json:"uri"`
	Backend string `json:"backend"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the platform error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, platform.ErrInvalidURI),
		errors.Is(err, platform.ErrUnsupported),
		errors.Is(err, platform.ErrInvalidQuality):
		return http.StatusBadRequest
	case errors.Is(err, platform.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, platform.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, platform.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, platform.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && s.logger != nil {
		s.logger.Warn("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		badRequest(w, fmt.Sprintf("decode body: %v", err))
		return false
	}
	return true
}

func requiredParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		badRequest(w, "missing "+name+" parameter")
		return "", false
	}
	return value, true
}

func (s *Server) backends() []platform.Backend {
	names := s.manager.List()
	list := make([]platform.Backend, 0, len(names))
	for _, name := range names {
		if b := s.manager.Get(name); b != nil {
			list = append(list, b)
		}
	}
	return list
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok", Backends: make(map[string]bool)}
	for _, b := range s.backends() {
		up := b.Ping()
		body.Backends[b.Name()] = up
		if !up {
			body.Status = "degraded"
		}
	}
	status := http.StatusOK
	if body.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	refs, err := s.manager.Browse(r.Context(), r.URL.Query().Get("uri"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if refs == nil {
		refs = []platform.Ref{}
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	uris := r.URL.Query()["uri"]
	if len(uris) == 0 {
		badRequest(w, "missing uri parameter")
		return
	}
	tracks, err := s.manager.Lookup(r.Context(), uris...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tracks == nil {
		tracks = []platform.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// searchQuery turns every parameter except "exact" into a query field.
func searchQuery(r *http.Request) (platform.Query, bool, error) {
	values := r.URL.Query()
	exact := false
	if raw := values.Get("exact"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, false, fmt.Errorf("invalid exact parameter %q", raw)
		}
		exact = parsed
	}
	query := make(platform.Query)
	for field, terms := range values {
		if field == "exact" || field == "field" {
			continue
		}
		query[field] = terms
	}
	return query, exact, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, exact, err := searchQuery(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	results, err := s.manager.Search(r.Context(), query, exact)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []platform.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	uris := r.URL.Query()["uri"]
	if len(uris) == 0 {
		badRequest(w, "missing uri parameter")
		return
	}
	images, err := s.manager.GetImages(r.Context(), uris)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

func (s *Server) handleDistinct(w http.ResponseWriter, r *http.Request) {
	field, ok := requiredParam(w, r, "field")
	if !ok {
		return
	}
	query, _, err := searchQuery(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	values := []string{}
	for _, b := range s.backends() {
		lib := b.Library()
		if lib == nil {
			continue
		}
		found, err := lib.GetDistinct(r.Context(), field, query)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		values = append(values, found...)
	}
	slices.Sort(values)
	writeJSON(w, http.StatusOK, slices.Compact(values))
}

// playlistsFor returns the playlists provider owning uri and the name of its backend.
func (s *Server) playlistsFor(w http.ResponseWriter, r *http.Request, uri string) (platform.PlaylistsProvider, string, bool) {
	b, err := s.manager.ForURI(uri)
	if err != nil {
		s.writeError(w, r, err)
		return nil, "", false
	}
	provider := b.Playlists()
	if provider == nil {
		s.writeError(w, r, platform.NewUnsupportedError(b.Name(), "playlists"))
		return nil, "", false
	}
	return provider, b.Name(), true
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	refs := []platform.Ref{}
	for _, b := range s.backends() {
		provider := b.Playlists()
		if provider == nil {
			continue
		}
		list, err := provider.AsList(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		refs = append(refs, list...)
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var body createPlaylistBody
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		badRequest(w, "missing playlist name")
		return
	}

	name := body.Backend
	if name == "" {
		names := s.manager.List()
		if len(names) != 1 {
			badRequest(w, "backend is required when several backends are registered")
			return
		}
		name = names[0]
	}
	b := s.manager.Get(name)
	if b == nil || b.Playlists() == nil {
		badRequest(w, fmt.Sprintf("backend %q cannot create playlists", name))
		return
	}

	playlist, err := b.Playlists().Create(r.Context(), body.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

func (s *Server) handleSavePlaylist(w http.ResponseWriter, r *http.Request) {
	var body platform.Playlist
	if !decodeBody(w, r, &body) {
		return
	}
	provider, _, ok := s.playlistsFor(w, r, body.URI)
	if !ok {
		return
	}
	saved, err := provider.Save(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	uri, ok := requiredParam(w, r, "uri")
	if !ok {
		return
	}
	provider, name, ok := s.playlistsFor(w, r, uri)
	if !ok {
		return
	}
	deleted, err := provider.Delete(r.Context(), uri)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !deleted {
		s.writeError(w, r, platform.NewNotFoundError(name, "playlist", uri))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaylistItems(w http.ResponseWriter, r *http.Request) {
	uri, ok := requiredParam(w, r, "uri")
	if !ok {
		return
	}
	provider, _, ok := s.playlistsFor(w, r, uri)
	if !ok {
		return
	}
	items, err := provider.GetItems(r.Context(), uri)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []platform.Ref{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handlePlaylistLookup(w http.ResponseWriter, r *http.Request) {
	uri, ok := requiredParam(w, r, "uri")
	if !ok {
		return
	}
	provider, name, ok := s.playlistsFor(w, r, uri)
	if !ok {
		return
	}
	playlist, err := provider.Lookup(r.Context(), uri)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if playlist == nil {
		s.writeError(w, r, platform.NewNotFoundError(name, "playlist", uri))
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (s *Server) handleRefreshPlaylists(w http.ResponseWriter, r *http.Request) {
	var errs []error
	for _, b := range s.backends() {
		if provider := b.Playlists(); provider != nil {
			if err := provider.Refresh(r.Context()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) editorFor(w http.ResponseWriter, r *http.Request, uri string) (platform.CollectionEditor, bool) {
	b, err := s.manager.ForURI(uri)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	editor, ok := b.(platform.CollectionEditor)
	if !ok {
		s.writeError(w, r, platform.NewUnsupportedError(b.Name(), "collection editing"))
		return nil, false
	}
	return editor, true
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var body uriBody
	if !decodeBody(w, r, &body) {
		return
	}
	editor, ok := s.editorFor(w, r, body.URI)
	if !ok {
		return
	}
	if err := editor.Subscribe(r.Context(), body.URI); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	var body favoriteBody
	if !decodeBody(w, r, &body) {
		return
	}
	editor, ok := s.editorFor(w, r, body.URI)
	if !ok {
		return
	}
	if err := editor.SetFavorite(r.Context(), body.URI, body.Favorite); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	uri, ok := requiredParam(w, r, "uri")
	if !ok {
		return
	}
	if _, err := s.manager.ForURI(uri); err != nil {
		s.writeError(w, r, err)
		return
	}
	url, ok := s.manager.TranslateURI(r.Context(), uri)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "track is not playable"})
		return
	}
	if redirect, _ := strconv.ParseBool(r.URL.Query().Get("redirect")); redirect {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, translateBody{URI: uri, URL: url})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	uri, ok := requiredParam(w, r, "uri")
	if !ok {
		return
	}
	b, err := s.manager.ForURI(uri)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if playback := b.Playback(); playback != nil {
		playback.Invalidate(uri)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	var body prefetchBody
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.URIs) == 0 {
		badRequest(w, "no uris to prefetch")
		return
	}

	grouped := make(map[string][]string)
	var order []string
	for _, uri := range body.URIs {
		b, err := s.manager.ForURI(uri)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if _, seen := grouped[b.Name()]; !seen {
			order = append(order, b.Name())
		}
		grouped[b.Name()] = append(grouped[b.Name()], uri)
	}

	var errs []error
	for _, name := range order {
		playback := s.manager.Get(name).Playback()
		if playback == nil {
			errs = append(errs, platform.NewUnsupportedError(name, "playback"))
			continue
		}
		if err := playback.Prefetch(r.Context(), grouped[name]...); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	link, ok := requiredParam(w, r, "url")
	if !ok {
		return
	}
	uri, name, matched := s.manager.MatchURL(link)
	if !matched {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "url not recognised"})
		return
	}
	writeJSON(w, http.StatusOK, matchBody{URI: uri, Backend: name})
}
