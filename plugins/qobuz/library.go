package qobuz

import (
	"context"
	"net/url"

	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	"golang.org/x/sync/errgroup"
)

// SearchLimits caps each search category. Zero disables a category.
type SearchLimits struct {
	Albums  int
	Tracks  int
	Artists int
}

const imageSize = 600

// Library implements platform.LibraryProvider.
type Library struct {
	client  *Client
	tr      translator
	browser *browser
	limits  SearchLimits
	logger  backend.Logger
}

func newLibrary(client *Client, tr translator, custom *CustomLibraries, limits SearchLimits, logger backend.Logger) *Library {
	return &Library{
		client:  client,
		tr:      tr,
		browser: newBrowser(client, tr, custom, logger),
		limits:  limits,
		logger:  logger,
	}
}

// RootDirectory implements platform.LibraryProvider.
func (l *Library) RootDirectory() platform.Ref {
	return platform.DirectoryRef(RootURI, "Qobuz")
}

// Browse implements platform.LibraryProvider.
func (l *Library) Browse(ctx context.Context, uri string) ([]platform.Ref, error) {
	if platform.SchemeOf(uri) != platformName {
		return nil, nil
	}
	return l.browser.Browse(ctx, uri)
}

// Lookup expands album, artist, playlist and track URIs into tracks.
// Unsupported URIs are skipped; a URI that fails is logged and skipped.
func (l *Library) Lookup(ctx context.Context, uris ...string) ([]platform.Track, error) {
	var out []platform.Track
	for _, uri := range uris {
		tracks, err := l.lookup(ctx, uri)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if l.logger != nil {
				l.logger.Warn("lookup failed", "uri", uri, "error", err)
			}
			continue
		}
		out = append(out, tracks...)
	}
	return out, nil
}

func (l *Library) lookup(ctx context.Context, uri string) ([]platform.Track, error) {
	parsed, err := platform.ParseURI(uri)
	if err != nil || parsed.Scheme != platformName {
		return nil, nil
	}
	id := parsed.ID()
	switch parsed.Kind() {
	case "album":
		album, err := l.client.Album(ctx, id)
		if err != nil {
			return nil, err
		}
		if album.Tracks == nil {
			return nil, nil
		}
		return l.tr.tracks(album.Tracks.Items), nil
	case "artist":
		tracks, err := l.client.ArtistTracks(ctx, id)
		if err != nil {
			return nil, err
		}
		return l.tr.tracks(tracks), nil
	case "playlist":
		playlist, err := l.client.Playlist(ctx, id)
		if err != nil {
			return nil, err
		}
		return l.tr.tracks(playlist.Tracks.Items), nil
	case "track":
		track, err := l.client.Track(ctx, id)
		if err != nil {
			return nil, err
		}
		if t := l.tr.track(track); t != nil {
			return []platform.Track{*t}, nil
		}
		return nil, nil
	default:
		if l.logger != nil {
			l.logger.Debug("ignoring unsupported uri type", "uri", uri, "type", parsed.Kind())
		}
		return nil, nil
	}
}

// Search runs the enabled categories concurrently. A query without terms gives nil.
func (l *Library) Search(ctx context.Context, query platform.Query, exact bool) (*platform.SearchResult, error) {
	terms := query.Terms()
	if terms == "" {
		if l.logger != nil {
			l.logger.Debug("ignoring empty query")
		}
		return nil, nil
	}

	result := &platform.SearchResult{
		URI:     "qobuz:search:" + url.PathEscape(terms),
		Albums:  []platform.Album{},
		Artists: []platform.Artist{},
		Tracks:  []platform.Track{},
	}

	g, gctx := errgroup.WithContext(ctx)
	if l.limits.Albums > 0 {
		g.Go(func() error {
			albums, err := l.client.SearchAlbums(gctx, terms, l.limits.Albums)
			if err != nil {
				return err
			}
			for i := range albums {
				if album := l.tr.searchAlbum(&albums[i]); album != nil {
					result.Albums = append(result.Albums, *album)
				}
			}
			return nil
		})
	}
	if l.limits.Artists > 0 {
		g.Go(func() error {
			artists, err := l.client.SearchArtists(gctx, terms, l.limits.Artists)
			if err != nil {
				return err
			}
			for i := range artists {
				result.Artists = append(result.Artists, l.tr.artist(&artists[i]))
			}
			return nil
		})
	}
	if l.limits.Tracks > 0 {
		g.Go(func() error {
			tracks, err := l.client.SearchTracks(gctx, terms, l.limits.Tracks)
			if err != nil {
				return err
			}
			result.Tracks = l.tr.tracks(tracks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetImages returns the large album cover for album and track URIs.
// Supported URIs without a cover map to an empty list.
func (l *Library) GetImages(ctx context.Context, uris []string) (map[string][]platform.Image, error) {
	images := make(map[string][]platform.Image, len(uris))
	for _, uri := range uris {
		parsed, err := platform.ParseURI(uri)
		if err != nil || parsed.Scheme != platformName {
			continue
		}

		var image *qobuzImage
		switch parsed.Kind() {
		case "album":
			album, err := l.client.Album(ctx, parsed.ID())
			if err != nil {
				return nil, err
			}
			image = album.Image
		case "track":
			track, err := l.client.Track(ctx, parsed.ID())
			if err != nil {
				return nil, err
			}
			if track.Album != nil {
				image = track.Album.Image
			}
		default:
			continue
		}

		if image != nil && image.Large != "" {
			images[uri] = []platform.Image{{URI: image.Large, Width: imageSize, Height: imageSize}}
		} else {
			images[uri] = []platform.Image{}
		}
	}
	return images, nil
}

// GetDistinct is not supported by Qobuz and always returns nothing.
func (l *Library) GetDistinct(ctx context.Context, field string, query platform.Query) ([]string, error) {
	if l.logger != nil {
		l.logger.Info("browsing distinct values is not supported", "field", field, "query", query.Terms())
	}
	return []string{}, nil
}
