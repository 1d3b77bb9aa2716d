package registry

import (
	"errors"
	"sync"
)

// Entry is a named backend that can claim URI schemes and web links.
type Entry interface {
	// Name returns the backend's unique identifier.
	Name() string

	// URISchemes lists the schemes routed to this entry.
	URISchemes() []string

	// MatchURL converts a web link into a URI.
	// Returns the URI and true if matched, or empty string and false if not.
	MatchURL(url string) (string, bool)
}

// Registry indexes entries by name and by URI scheme in a thread-safe manner.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	schemes map[string]Entry
	// Order preserving list for MatchURL to maintain registration order
	ordered []Entry
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		schemes: make(map[string]Entry),
		ordered: make([]Entry, 0),
	}
}

// Register adds an entry to the registry.
// Returns an error if the entry is nil, has an empty name, is already
// registered, or claims a scheme owned by another entry.
func (r *Registry) Register(e Entry) error {
	if e == nil {
		return errors.New("entry cannot be nil")
	}

	name := e.Name()
	if name == "" {
		return errors.New("entry name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return errors.New("entry already registered: " + name)
	}
	for _, scheme := range e.URISchemes() {
		if owner, taken := r.schemes[scheme]; taken {
			return errors.New("scheme " + scheme + " already owned by " + owner.Name())
		}
	}

	r.entries[name] = e
	for _, scheme := range e.URISchemes() {
		r.schemes[scheme] = e
	}
	r.ordered = append(r.ordered, e)

	return nil
}

// Get retrieves an entry by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e, ok
}

// ForScheme retrieves the entry owning scheme.
func (r *Registry) ForScheme(scheme string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.schemes[scheme]
	return e, ok
}

// GetAll returns all registered entries in registration order.
// The returned slice is a copy and safe for concurrent use.
func (r *Registry) GetAll() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Entry, 0, len(r.ordered))
	result = append(result, r.ordered...)

	return result
}

// MatchURL finds the first entry that can handle the given URL.
// Entries are checked in registration order.
func (r *Registry) MatchURL(url string) (string, Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.ordered {
		if uri, ok := e.MatchURL(url); ok {
			return uri, e, true
		}
	}

	return "", nil, false
}

// Reset clears all registered entries.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]Entry)
	r.schemes = make(map[string]Entry)
	r.ordered = r.ordered[:0]
}
