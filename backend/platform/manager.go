package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform/registry"
	"golang.org/x/sync/errgroup"
)

// DefaultManager implements Manager on top of a scheme registry.
type DefaultManager struct {
	registry *registry.Registry
	logger   backend.Logger

	mu       sync.RWMutex
	backends map[string]Backend
	order    []string
}

// NewManager creates a manager with its own registry.
func NewManager(logger backend.Logger) *DefaultManager {
	return NewManagerWithRegistry(registry.New(), logger)
}

// NewManagerWithRegistry creates a manager with a custom registry.
// This is useful for testing or isolated instances.
func NewManagerWithRegistry(reg *registry.Registry, logger backend.Logger) *DefaultManager {
	return &DefaultManager{
		registry: reg,
		logger:   logger,
		backends: make(map[string]Backend),
	}
}

// backendEntry adapts a Backend to registry.Entry.
type backendEntry struct {
	backend Backend
}

func (e backendEntry) Name() string         { return e.backend.Name() }
func (e backendEntry) URISchemes() []string { return e.backend.URISchemes() }
func (e backendEntry) MatchURL(url string) (string, bool) {
	if matcher, ok := e.backend.(URLMatcher); ok {
		return matcher.MatchURL(url)
	}
	return "", false
}

// Register adds a backend. Names and schemes must be unique.
func (m *DefaultManager) Register(b Backend) error {
	if b == nil {
		return errors.New("backend cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.registry.Register(backendEntry{backend: b}); err != nil {
		return err
	}
	m.backends[b.Name()] = b
	m.order = append(m.order, b.Name())
	return nil
}

// Get retrieves a backend by name, or nil.
func (m *DefaultManager) Get(name string) Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backends[name]
}

// List returns backend names in registration order.
func (m *DefaultManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

func (m *DefaultManager) all() []Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]Backend, 0, len(m.order))
	for _, name := range m.order {
		list = append(list, m.backends[name])
	}
	return list
}

// ForURI returns the backend owning the scheme of uri.
func (m *DefaultManager) ForURI(uri string) (Backend, error) {
	scheme := SchemeOf(uri)
	if scheme == "" {
		return nil, NewInvalidURIError("manager", uri)
	}
	entry, ok := m.registry.ForScheme(scheme)
	if !ok {
		return nil, NewUnsupportedError("manager", "scheme "+scheme)
	}
	return entry.(backendEntry).backend, nil
}

// MatchURL converts a web link using the first backend that recognises it.
func (m *DefaultManager) MatchURL(url string) (string, string, bool) {
	uri, entry, ok := m.registry.MatchURL(url)
	if !ok {
		return "", "", false
	}
	return uri, entry.Name(), true
}

// Start starts every backend. A failing backend does not prevent the others from starting.
func (m *DefaultManager) Start(ctx context.Context) error {
	var errs []error
	for _, b := range m.all() {
		if err := b.Start(ctx); err != nil {
			if m.logger != nil {
				m.logger.Error("backend start failed", "backend", b.Name(), "error", err)
			}
			errs = append(errs, fmt.Errorf("start %s: %w", b.Name(), err))
			continue
		}
		if m.logger != nil {
			m.logger.Info("backend started", "backend", b.Name(), "schemes", b.URISchemes())
		}
	}
	return errors.Join(errs...)
}

// Stop stops every backend.
func (m *DefaultManager) Stop(ctx context.Context) error {
	var errs []error
	for _, b := range m.all() {
		if err := b.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Browse lists a directory. An empty uri lists every backend's root directory.
func (m *DefaultManager) Browse(ctx context.Context, uri string) ([]Ref, error) {
	if uri == "" {
		backends := m.all()
		refs := make([]Ref, 0, len(backends))
		for _, b := range backends {
			refs = append(refs, b.Library().RootDirectory())
		}
		return refs, nil
	}
	b, err := m.ForURI(uri)
	if err != nil {
		return nil, err
	}
	return b.Library().Browse(ctx, uri)
}

// Lookup groups uris by backend and preserves backend order of first appearance.
func (m *DefaultManager) Lookup(ctx context.Context, uris ...string) ([]Track, error) {
	groups, order, err := m.group(uris)
	if err != nil {
		return nil, err
	}
	var tracks []Track
	for _, name := range order {
		found, err := m.Get(name).Library().Lookup(ctx, groups[name]...)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, found...)
	}
	return tracks, nil
}

// Search queries every backend concurrently. It fails only when every backend fails.
func (m *DefaultManager) Search(ctx context.Context, query Query, exact bool) ([]SearchResult, error) {
	backends := m.all()
	results := make([]*SearchResult, len(backends))
	errs := make([]error, len(backends))

	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			res, err := b.Library().Search(ctx, query, exact)
			if err != nil {
				errs[i] = fmt.Errorf("search %s: %w", b.Name(), err)
				if m.logger != nil {
					m.logger.Warn("backend search failed", "backend", b.Name(), "error", err)
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make([]SearchResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, *res)
		}
	}
	if len(out) == 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// GetImages groups uris by backend and merges the results.
func (m *DefaultManager) GetImages(ctx context.Context, uris []string) (map[string][]Image, error) {
	groups, order, err := m.group(uris)
	if err != nil {
		return nil, err
	}
	images := make(map[string][]Image, len(uris))
	for _, name := range order {
		found, err := m.Get(name).Library().GetImages(ctx, groups[name])
		if err != nil {
			return nil, err
		}
		for uri, list := range found {
			images[uri] = list
		}
	}
	return images, nil
}

// TranslateURI resolves a track URI to a playable URL.
func (m *DefaultManager) TranslateURI(ctx context.Context, uri string) (string, bool) {
	b, err := m.ForURI(uri)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("no backend for uri", "uri", uri, "error", err)
		}
		return "", false
	}
	return b.Playback().TranslateURI(ctx, uri)
}

func (m *DefaultManager) group(uris []string) (map[string][]string, []string, error) {
	groups := make(map[string][]string)
	var order []string
	for _, uri := range uris {
		b, err := m.ForURI(uri)
		if err != nil {
			return nil, nil, err
		}
		name := b.Name()
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], uri)
	}
	return groups, order, nil
}

var _ Manager = (*DefaultManager)(nil)
