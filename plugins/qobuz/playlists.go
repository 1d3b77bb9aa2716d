package qobuz

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

const userPlaylistsLimit = 100

// Playlists implements platform.PlaylistsProvider.
type Playlists struct {
	client *Client
	tr     translator
	logger backend.Logger

	mu      sync.Mutex
	listing []platform.Ref
}

func newPlaylists(client *Client, tr translator, logger backend.Logger) *Playlists {
	return &Playlists{client: client, tr: tr, logger: logger}
}

// AsList returns the user's playlists. The listing is kept until Refresh.
func (p *Playlists) AsList(ctx context.Context) ([]platform.Ref, error) {
	p.mu.Lock()
	cached := p.listing
	p.mu.Unlock()
	if cached != nil {
		return append([]platform.Ref(nil), cached...), nil
	}

	items, err := p.client.UserPlaylists(ctx, userPlaylistsLimit)
	if err != nil {
		return nil, err
	}
	refs := p.tr.playlistRefs(items)

	p.mu.Lock()
	p.listing = refs
	p.mu.Unlock()
	return append([]platform.Ref(nil), refs...), nil
}

// GetItems returns the track refs of a playlist, or nil for foreign URIs.
func (p *Playlists) GetItems(ctx context.Context, uri string) ([]platform.Ref, error) {
	id, ok := playlistID(uri)
	if !ok {
		return nil, nil
	}
	playlist, err := p.client.Playlist(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.tr.trackRefs(playlist.Tracks.Items), nil
}

// Lookup returns a full playlist, or nil for foreign URIs.
func (p *Playlists) Lookup(ctx context.Context, uri string) (*platform.Playlist, error) {
	id, ok := playlistID(uri)
	if !ok {
		return nil, nil
	}
	playlist, err := p.client.Playlist(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.tr.playlist(playlist), nil
}

// Create makes a public, non-collaborative playlist.
func (p *Playlists) Create(ctx context.Context, name string) (*platform.Playlist, error) {
	created, err := p.client.CreatePlaylist(ctx, name, "", true, false)
	if err != nil {
		return nil, err
	}
	p.invalidate()
	if p.logger != nil {
		p.logger.Info("playlist created", "id", string(created.ID), "name", name)
	}
	return p.Lookup(ctx, playlistURI(created.ID))
}

// Delete removes a playlist. Foreign URIs report false.
func (p *Playlists) Delete(ctx context.Context, uri string) (bool, error) {
	id, ok := playlistID(uri)
	if !ok {
		return false, nil
	}
	if err := p.client.DeletePlaylist(ctx, id); err != nil {
		return false, err
	}
	p.invalidate()
	return true, nil
}

// Save makes the remote playlist match the given one: it renames it when the
// name differs, adds missing tracks and removes tracks no longer listed.
func (p *Playlists) Save(ctx context.Context, playlist platform.Playlist) (*platform.Playlist, error) {
	id, ok := playlistID(playlist.URI)
	if !ok {
		return nil, platform.NewInvalidURIError(platformName, playlist.URI)
	}
	remote, err := p.client.Playlist(ctx, id)
	if err != nil {
		return nil, err
	}

	if playlist.Name != "" && playlist.Name != remote.Name {
		if err := p.client.UpdatePlaylist(ctx, id, playlist.Name); err != nil {
			return nil, fmt.Errorf("rename playlist %s: %w", id, err)
		}
		p.invalidate()
	}

	add, remove := diffPlaylist(playlist.Tracks, remote.Tracks.Items)
	if err := p.client.AddPlaylistTracks(ctx, id, add, true); err != nil {
		return nil, fmt.Errorf("add tracks to playlist %s: %w", id, err)
	}
	if err := p.client.DeletePlaylistTracks(ctx, id, remove); err != nil {
		return nil, fmt.Errorf("remove tracks from playlist %s: %w", id, err)
	}
	if p.logger != nil {
		p.logger.Debug("playlist saved", "id", id, "added", len(add), "removed", len(remove))
	}
	return p.Lookup(ctx, playlist.URI)
}

// Refresh drops the memoised playlist listing.
func (p *Playlists) Refresh(ctx context.Context) error {
	p.invalidate()
	return nil
}

func (p *Playlists) invalidate() {
	p.mu.Lock()
	p.listing = nil
	p.mu.Unlock()
}

// diffPlaylist returns the track ids to add (in wanted order) and the
// playlist_track_ids to delete. Non-Qobuz tracks are ignored.
func diffPlaylist(wanted []platform.Track, remote []qobuzTrack) (add, remove []string) {
	want := make(map[string]bool, len(wanted))
	var order []string
	for _, track := range wanted {
		parsed, err := platform.ParseURI(track.URI)
		if err != nil || parsed.Scheme != platformName || parsed.Kind() != "track" {
			continue
		}
		id := parsed.ID()
		if !want[id] {
			want[id] = true
			order = append(order, id)
		}
	}

	have := make(map[string]bool, len(remote))
	for _, item := range remote {
		id := string(item.ID)
		if !want[id] {
			if item.PlaylistTrackID != "" {
				remove = append(remove, string(item.PlaylistTrackID))
			}
			continue
		}
		have[id] = true
	}
	for _, id := range order {
		if !have[id] {
			add = append(add, id)
		}
	}
	return add, remove
}

func playlistID(uri string) (string, bool) {
	parsed, err := platform.ParseURI(uri)
	if err != nil || parsed.Scheme != platformName || parsed.Kind() != "playlist" || len(parsed.Parts) < 2 {
		return "", false
	}
	return parsed.ID(), true
}
