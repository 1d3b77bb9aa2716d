package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitiko98/mopidy-qobuz/backend/config"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	platformplugins "github.com/vitiko98/mopidy-qobuz/backend/platform/plugins"
	gormlogger "gorm.io/gorm/logger"
)

type stubLibrary struct{ scheme string }

func (l stubLibrary) RootDirectory() platform.Ref {
	return platform.DirectoryRef(l.scheme+":directory", l.scheme)
}
func (stubLibrary) Browse(ctx context.Context, uri string) ([]platform.Ref, error) { return nil, nil }
func (stubLibrary) Lookup(ctx context.Context, uris ...string) ([]platform.Track, error) {
	return nil, nil
}
func (stubLibrary) Search(ctx context.Context, q platform.Query, exact bool) (*platform.SearchResult, error) {
	return nil, nil
}
func (stubLibrary) GetImages(ctx context.Context, uris []string) (map[string][]platform.Image, error) {
	return nil, nil
}
func (stubLibrary) GetDistinct(ctx context.Context, field string, q platform.Query) ([]string, error) {
	return nil, nil
}

type stubBackend struct {
	name     string
	startErr error
	started  bool
}

func (b *stubBackend) Name() string         { return b.name }
func (b *stubBackend) URISchemes() []string { return []string{b.name} }
func (b *stubBackend) Start(ctx context.Context) error {
	b.started = b.startErr == nil
	return b.startErr
}
func (b *stubBackend) Stop(ctx context.Context) error            { b.started = false; return nil }
func (b *stubBackend) Ping() bool                                { return b.started }
func (b *stubBackend) Library() platform.LibraryProvider         { return stubLibrary{scheme: b.name} }
func (b *stubBackend) Playback() platform.PlaybackProvider       { return nil }
func (b *stubBackend) Playlists() platform.PlaylistsProvider     { return nil }

func init() {
	_ = platformplugins.Register("apptest", func(deps platformplugins.Deps) (*platformplugins.Contribution, error) {
		return &platformplugins.Contribution{Backend: &stubBackend{name: "apptest"}}, nil
	})
	_ = platformplugins.Register("appbroken", func(deps platformplugins.Deps) (*platformplugins.Contribution, error) {
		return &platformplugins.Contribution{Backend: &stubBackend{name: "appbroken", startErr: errors.New("login refused")}}, nil
	})
	_ = platformplugins.Register("appfailing", func(deps platformplugins.Deps) (*platformplugins.Contribution, error) {
		return nil, errors.New("app_id required")
	})
}

func loadTestConfig(t *testing.T, sections string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	content := "LogLevel = error\n" +
		"Database = " + filepath.Join(dir, "test.db") + "\n" +
		"ListenAddr = 127.0.0.1:0\n" +
		"ShutdownTimeoutSec = 2\n" +
		sections
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	conf, err := config.Load(path)
	require.NoError(t, err)
	return conf
}

func newTestApp(t *testing.T, sections string) *App {
	t.Helper()
	a, err := NewFromConfig(loadTestConfig(t, sections), BuildInfo{BinVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func TestNewRegistersConfiguredPlugins(t *testing.T) {
	a := newTestApp(t, "[plugins.apptest]\n[plugins.missing]\n")
	assert.Equal(t, []string{"apptest"}, a.Manager.List())

	require.NoError(t, a.Start(context.Background()))

	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartWithoutBackends(t *testing.T) {
	a := newTestApp(t, "[plugins.qobuz]\nenabled = false\n")
	assert.Empty(t, a.Manager.List())
	require.ErrorIs(t, a.Start(context.Background()), ErrNoBackends)
}

func TestStartReportsFailedPlugins(t *testing.T) {
	a := newTestApp(t, "[plugins.appfailing]\n")
	assert.Empty(t, a.Manager.List())

	err := a.Start(context.Background())
	require.ErrorIs(t, err, ErrPluginsFailed)
	assert.NotErrorIs(t, err, ErrNoBackends)
	assert.Contains(t, err.Error(), "plugin appfailing: app_id required")

	mixed := newTestApp(t, "[plugins.appfailing]\n[plugins.apptest]\n")
	require.NoError(t, mixed.Start(context.Background()))
}

func TestStartToleratesPartialFailure(t *testing.T) {
	a := newTestApp(t, "[plugins.apptest]\n[plugins.appbroken]\n")
	require.NoError(t, a.Start(context.Background()))

	broken := newTestApp(t, "[plugins.appbroken]\n")
	err := broken.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login refused")
}

func TestRunStopsOnCancel(t *testing.T) {
	a := newTestApp(t, "[plugins.apptest]\n")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestShutdownTimeout(t *testing.T) {
	a := newTestApp(t, "[plugins.apptest]\n")
	assert.Equal(t, 2*time.Second, a.ShutdownTimeout())

	a.Config.Set("ShutdownTimeoutSec", 0)
	assert.Equal(t, 10*time.Second, a.ShutdownTimeout())
}

func TestMapLogLevel(t *testing.T) {
	tests := map[string]gormlogger.LogLevel{
		"silent": gormlogger.Silent,
		"debug":  gormlogger.Info,
		"info":   gormlogger.Info,
		"warn":   gormlogger.Warn,
		"":       gormlogger.Warn,
		"ERROR":  gormlogger.Error,
	}
	for level, want := range tests {
		assert.Equal(t, want, mapLogLevel(level), level)
	}
}

func TestNewRejectsMissingConfig(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.ini"), BuildInfo{})
	require.Error(t, err)
}
