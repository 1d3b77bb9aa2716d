package platform

import "strings"

// URI is a parsed "scheme:kind:...:id" identifier.
type URI struct {
	Scheme string
	Parts  []string
}

// ParseURI splits a host URI. It requires a scheme and at least one part.
func ParseURI(raw string) (URI, error) {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || scheme == "" || rest == "" {
		return URI{}, NewInvalidURIError(scheme, raw)
	}
	return URI{Scheme: scheme, Parts: strings.Split(rest, ":")}, nil
}

// Kind is the first segment after the scheme ("album", "track", "featured", ...).
func (u URI) Kind() string {
	if len(u.Parts) == 0 {
		return ""
	}
	return u.Parts[0]
}

// ID is the last segment.
func (u URI) ID() string {
	if len(u.Parts) == 0 {
		return ""
	}
	return u.Parts[len(u.Parts)-1]
}

// String rebuilds the URI.
func (u URI) String() string {
	return BuildURI(u.Scheme, u.Parts...)
}

// BuildURI joins a scheme and parts with ':'.
func BuildURI(scheme string, parts ...string) string {
	if len(parts) == 0 {
		return scheme
	}
	return scheme + ":" + strings.Join(parts, ":")
}

// SchemeOf returns the scheme of raw, or "" when there is none.
func SchemeOf(raw string) string {
	scheme, _, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return strings.TrimSpace(raw)
	}
	return scheme
}
