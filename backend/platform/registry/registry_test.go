package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntry struct {
	name    string
	schemes []string
	host    string
}

func (f fakeEntry) Name() string         { return f.name }
func (f fakeEntry) URISchemes() []string { return f.schemes }
func (f fakeEntry) MatchURL(url string) (string, bool) {
	if f.host != "" && strings.Contains(url, f.host) {
		return f.schemes[0] + ":matched", true
	}
	return "", false
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeEntry{name: "qobuz", schemes: []string{"qobuz"}, host: "qobuz.com"}))
	require.NoError(t, r.Register(fakeEntry{name: "local", schemes: []string{"local", "file"}}))

	e, ok := r.Get("qobuz")
	require.True(t, ok)
	assert.Equal(t, "qobuz", e.Name())

	e, ok = r.ForScheme("file")
	require.True(t, ok)
	assert.Equal(t, "local", e.Name())

	_, ok = r.ForScheme("spotify")
	assert.False(t, ok)

	all := r.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "qobuz", all[0].Name())
}

func TestRegisterRejects(t *testing.T) {
	r := New()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(fakeEntry{}))

	require.NoError(t, r.Register(fakeEntry{name: "a", schemes: []string{"x"}}))
	assert.Error(t, r.Register(fakeEntry{name: "a", schemes: []string{"y"}}), "duplicate name")
	assert.Error(t, r.Register(fakeEntry{name: "b", schemes: []string{"x"}}), "duplicate scheme")

	_, ok := r.Get("b")
	assert.False(t, ok, "failed registration leaves no trace")
}

func TestMatchURLOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(fakeEntry{name: "first", schemes: []string{"one"}, host: "example.com"}))
	require.NoError(t, r.Register(fakeEntry{name: "second", schemes: []string{"two"}, host: "example.com"}))

	uri, e, ok := r.MatchURL("https://example.com/x")
	require.True(t, ok)
	assert.Equal(t, "first", e.Name())
	assert.Equal(t, "one:matched", uri)

	_, _, ok = r.MatchURL("https://elsewhere.org")
	assert.False(t, ok)

	r.Reset()
	assert.Empty(t, r.GetAll())
}
