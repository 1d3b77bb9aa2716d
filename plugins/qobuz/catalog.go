package qobuz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// pageSize is the largest page Qobuz serves for artist, playlist and label extras.
const pageSize = 500

// Track fetches track/get.
func (c *Client) Track(ctx context.Context, id string) (*qobuzTrack, error) {
	var track qobuzTrack
	if err := c.Get(ctx, "track/get", url.Values{"track_id": {id}}, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Album fetches album/get. Every returned track points back at the album.
func (c *Client) Album(ctx context.Context, id string) (*qobuzAlbum, error) {
	var album qobuzAlbum
	if err := c.Get(ctx, "album/get", url.Values{"album_id": {id}}, &album); err != nil {
		return nil, err
	}
	adoptTracks(&album)
	return &album, nil
}

func adoptTracks(album *qobuzAlbum) {
	if album.Tracks == nil {
		return
	}
	for i := range album.Tracks.Items {
		album.Tracks.Items[i].Album = album
	}
}

// Artist fetches artist/get without extras.
func (c *Client) Artist(ctx context.Context, id string) (*qobuzArtist, error) {
	var artist qobuzArtist
	if err := c.Get(ctx, "artist/get", url.Values{"artist_id": {id}}, &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// ArtistAlbums pages through the albums extra of artist/get.
func (c *Client) ArtistAlbums(ctx context.Context, id string) ([]qobuzAlbum, error) {
	return paged(ctx, c, "artist/get", url.Values{"artist_id": {id}, "extra": {"albums"}},
		func(body []byte) ([]qobuzAlbum, int, error) {
			var page qobuzArtist
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, 0, err
			}
			if page.Albums == nil {
				return nil, page.AlbumsCount, nil
			}
			return page.Albums.Items, page.AlbumsCount, nil
		})
}

// ArtistTracks pages through the tracks_appears_on extra of artist/get.
func (c *Client) ArtistTracks(ctx context.Context, id string) ([]qobuzTrack, error) {
	return paged(ctx, c, "artist/get", url.Values{"artist_id": {id}, "extra": {"tracks_appears_on"}},
		func(body []byte) ([]qobuzTrack, int, error) {
			var page qobuzArtist
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, 0, err
			}
			if page.TracksAppearsOn == nil {
				return nil, page.TracksCount, nil
			}
			return page.TracksAppearsOn.Items, page.TracksCount, nil
		})
}

// Playlist fetches playlist/get with every track.
func (c *Client) Playlist(ctx context.Context, id string) (*qobuzPlaylist, error) {
	var head *qobuzPlaylist
	tracks, err := paged(ctx, c, "playlist/get", url.Values{"playlist_id": {id}, "extra": {"tracks"}},
		func(body []byte) ([]qobuzTrack, int, error) {
			var page qobuzPlaylist
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, 0, err
			}
			if head == nil {
				head = &page
			}
			if page.Tracks == nil {
				return nil, page.TracksCount, nil
			}
			return page.Tracks.Items, page.TracksCount, nil
		})
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, fmt.Errorf("qobuz: playlist %s: empty reply", id)
	}
	head.Tracks = &qobuzTrackList{Items: tracks, Total: len(tracks)}
	return head, nil
}

// LabelAlbums pages through the albums extra of label/get.
func (c *Client) LabelAlbums(ctx context.Context, id string) ([]qobuzAlbum, error) {
	return paged(ctx, c, "label/get", url.Values{"label_id": {id}, "extra": {"albums"}},
		func(body []byte) ([]qobuzAlbum, int, error) {
			var page qobuzLabel
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, 0, err
			}
			if page.Albums == nil {
				return nil, page.AlbumsCount, nil
			}
			return page.Albums.Items, page.AlbumsCount, nil
		})
}

// paged walks offset pages until the advertised total is covered. The total
// comes from a count key of the first page.
func paged[T any](ctx context.Context, c *Client, endpoint string, params url.Values, decode func([]byte) ([]T, int, error)) ([]T, error) {
	var all []T
	total := 0
	for offset := 0; ; offset += pageSize {
		query := cloneValues(params)
		query.Set("offset", strconv.Itoa(offset))
		query.Set("limit", strconv.Itoa(pageSize))

		body, err := c.call(ctx, http.MethodGet, endpoint, query, true)
		if err != nil {
			return nil, err
		}
		items, count, err := decode(body)
		if err != nil {
			return nil, fmt.Errorf("qobuz: decode %s: %w", endpoint, err)
		}
		if offset == 0 {
			total = count
		}
		all = append(all, items...)
		if len(items) == 0 || offset+pageSize >= total {
			return all, nil
		}
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}

// SearchTracks runs track/search.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]qobuzTrack, error) {
	var reply struct {
		Tracks *qobuzTrackList `json:"tracks"`
	}
	if err := c.Get(ctx, "track/search", searchParams(query, limit), &reply); err != nil {
		return nil, err
	}
	if reply.Tracks == nil {
		return nil, nil
	}
	return reply.Tracks.Items, nil
}

// SearchAlbums runs album/search including the release type.
func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) ([]qobuzAlbum, error) {
	params := searchParams(query, limit)
	params.Set("extra", "release_type")
	var reply struct {
		Albums *qobuzAlbumList `json:"albums"`
	}
	if err := c.Get(ctx, "album/search", params, &reply); err != nil {
		return nil, err
	}
	if reply.Albums == nil {
		return nil, nil
	}
	return reply.Albums.Items, nil
}

// SearchArtists runs artist/search.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]qobuzArtist, error) {
	var reply struct {
		Artists *qobuzArtistList `json:"artists"`
	}
	if err := c.Get(ctx, "artist/search", searchParams(query, limit), &reply); err != nil {
		return nil, err
	}
	if reply.Artists == nil {
		return nil, nil
	}
	return reply.Artists.Items, nil
}

func searchParams(query string, limit int) url.Values {
	return url.Values{"query": {query}, "limit": {strconv.Itoa(limit)}}
}

// UserPlaylists lists the playlists owned or subscribed by the user.
func (c *Client) UserPlaylists(ctx context.Context, limit int) ([]qobuzPlaylist, error) {
	var reply struct {
		Playlists *qobuzPlaylistList `json:"playlists"`
	}
	if err := c.Get(ctx, "playlist/getUserPlaylists", url.Values{"limit": {strconv.Itoa(limit)}}, &reply); err != nil {
		return nil, err
	}
	if reply.Playlists == nil {
		return nil, nil
	}
	return reply.Playlists.Items, nil
}

// FavoriteAlbums lists the user's favorite albums.
func (c *Client) FavoriteAlbums(ctx context.Context, offset, limit int) ([]qobuzAlbum, error) {
	params := url.Values{
		"type":   {"albums"},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	var reply struct {
		Albums *qobuzAlbumList `json:"albums"`
	}
	if err := c.Get(ctx, "favorite/getUserFavorites", params, &reply); err != nil {
		return nil, err
	}
	if reply.Albums == nil {
		return nil, nil
	}
	return reply.Albums.Items, nil
}

// Favorites groups ids for favorite/create and favorite/delete.
type Favorites struct {
	ArtistIDs []string
	AlbumIDs  []string
	TrackIDs  []string
}

// AddFavorites calls favorite/create.
func (c *Client) AddFavorites(ctx context.Context, fav Favorites) error {
	return c.Post(ctx, "favorite/create", fav.form(), nil)
}

// RemoveFavorites calls favorite/delete.
func (c *Client) RemoveFavorites(ctx context.Context, fav Favorites) error {
	return c.Post(ctx, "favorite/delete", fav.form(), nil)
}

func (f Favorites) form() url.Values {
	return url.Values{
		"artist_ids": {strings.Join(f.ArtistIDs, ",")},
		"album_ids":  {strings.Join(f.AlbumIDs, ",")},
		"track_ids":  {strings.Join(f.TrackIDs, ",")},
	}
}

// FeaturedPlaylists calls playlist/getFeatured with the editor-picks type.
// Empty tag or genre means no filter.
func (c *Client) FeaturedPlaylists(ctx context.Context, tag, genreID string, limit, offset int) ([]qobuzPlaylist, error) {
	params := url.Values{
		"type":   {"editor-picks"},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	if tag != "" {
		params.Set("tags", tag)
	}
	if genreID != "" {
		params.Set("genre_ids", genreID)
	}
	var reply struct {
		Playlists *qobuzPlaylistList `json:"playlists"`
	}
	if err := c.Get(ctx, "playlist/getFeatured", params, &reply); err != nil {
		return nil, err
	}
	if reply.Playlists == nil {
		return nil, nil
	}
	return reply.Playlists.Items, nil
}

// FeaturedAlbums calls album/getFeatured for one featured type.
func (c *Client) FeaturedAlbums(ctx context.Context, kind, genreID string, limit, offset int) ([]qobuzAlbum, error) {
	if kind == "" {
		kind = "press-awards"
	}
	params := url.Values{
		"type":   {kind},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	if genreID != "" {
		params.Set("genre_ids", genreID)
	}
	var reply struct {
		Albums *qobuzAlbumList `json:"albums"`
	}
	if err := c.Get(ctx, "album/getFeatured", params, &reply); err != nil {
		return nil, err
	}
	if reply.Albums == nil {
		return nil, nil
	}
	return reply.Albums.Items, nil
}

// FocusList calls focus/list.
func (c *Client) FocusList(ctx context.Context, genreID string, limit, offset int) ([]qobuzFocus, error) {
	params := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	if genreID != "" {
		params.Set("genre_ids", genreID)
	}
	var reply struct {
		Focus *struct {
			Items []qobuzFocus `json:"items"`
		} `json:"focus"`
	}
	if err := c.Get(ctx, "focus/list", params, &reply); err != nil {
		return nil, err
	}
	if reply.Focus == nil {
		return nil, nil
	}
	return reply.Focus.Items, nil
}

// Focus calls focus/get.
func (c *Client) Focus(ctx context.Context, id string) (*qobuzFocus, error) {
	var focus qobuzFocus
	if err := c.Get(ctx, "focus/get", url.Values{"focus_id": {id}}, &focus); err != nil {
		return nil, err
	}
	if focus.ID == "" {
		focus.ID = ID(id)
	}
	return &focus, nil
}

// albums collects album containers. Focus replies omit streamable on these
// albums, so they are treated as streamable.
func (f *qobuzFocus) albums() []qobuzAlbum {
	var out []qobuzAlbum
	streamable := true
	for _, key := range f.containerKeys() {
		container := f.Containers[key]
		if !strings.Contains(strings.ToLower(container.Type), "album") || container.Albums == nil {
			continue
		}
		for _, album := range container.Albums.Items {
			album.Streamable = &streamable
			out = append(out, album)
		}
	}
	return out
}

func (f *qobuzFocus) playlists() []qobuzPlaylist {
	var out []qobuzPlaylist
	for _, key := range f.containerKeys() {
		container := f.Containers[key]
		if !strings.Contains(strings.ToLower(container.Type), "playlist") || container.Playlist == nil {
			continue
		}
		out = append(out, *container.Playlist)
	}
	return out
}

// CreatePlaylist calls playlist/create and returns the new playlist.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public, collaborative bool) (*qobuzPlaylist, error) {
	form := url.Values{
		"name":             {name},
		"description":      {description},
		"is_public":        {strconv.FormatBool(public)},
		"is_collaborative": {strconv.FormatBool(collaborative)},
	}
	var created qobuzPlaylist
	if err := c.Post(ctx, "playlist/create", form, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, ErrIneligible
	}
	return &created, nil
}

// UpdatePlaylist renames a playlist.
func (c *Client) UpdatePlaylist(ctx context.Context, id, name string) error {
	return c.Post(ctx, "playlist/update", url.Values{"playlist_id": {id}, "name": {name}}, nil)
}

// DeletePlaylist calls playlist/delete.
func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	return c.Post(ctx, "playlist/delete", url.Values{"playlist_id": {id}}, nil)
}

// AddPlaylistTracks appends tracks to a playlist.
func (c *Client) AddPlaylistTracks(ctx context.Context, id string, trackIDs []string, noDuplicate bool) error {
	if len(trackIDs) == 0 {
		return nil
	}
	form := url.Values{
		"playlist_id":  {id},
		"track_ids":    {strings.Join(trackIDs, ",")},
		"no_duplicate": {strconv.FormatBool(noDuplicate)},
	}
	return c.Post(ctx, "playlist/addTracks", form, nil)
}

// DeletePlaylistTracks removes entries by their playlist_track_id.
func (c *Client) DeletePlaylistTracks(ctx context.Context, id string, playlistTrackIDs []string) error {
	if len(playlistTrackIDs) == 0 {
		return nil
	}
	form := url.Values{
		"playlist_id":        {id},
		"playlist_track_ids": {strings.Join(playlistTrackIDs, ",")},
	}
	return c.Post(ctx, "playlist/deleteTracks", form, nil)
}

// SubscribePlaylist calls playlist/subscribe.
func (c *Client) SubscribePlaylist(ctx context.Context, id string) error {
	return c.Post(ctx, "playlist/subscribe", url.Values{"playlist_id": {id}}, nil)
}
