package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitiko98/mopidy-qobuz/backend"
	logpkg "github.com/vitiko98/mopidy-qobuz/backend/logger"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	gormLogger := logpkg.NewGormLogger(zerolog.Nop(), logger.Silent)

	repo, err := NewSQLiteRepository(path, gormLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.LoadSession(ctx, "qobuz", "user@example.com")
	assert.ErrorIs(t, err, backend.ErrSessionNotFound)

	err = repo.SaveSession(ctx, &backend.Session{
		Service:    "qobuz",
		Username:   "user@example.com",
		AuthToken:  "token-1",
		Membership: "studio",
	})
	require.NoError(t, err)

	loaded, err := repo.LoadSession(ctx, "qobuz", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "token-1", loaded.AuthToken)
	assert.Equal(t, "studio", loaded.Membership)
	assert.True(t, loaded.Valid())

	err = repo.SaveSession(ctx, &backend.Session{
		Service:    "qobuz",
		Username:   "user@example.com",
		AuthToken:  "token-2",
		Membership: "sublime",
	})
	require.NoError(t, err)

	count, err := repo.CountSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "save upserts on (service, username)")

	loaded, err = repo.LoadSession(ctx, "qobuz", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "token-2", loaded.AuthToken)
	assert.Equal(t, "sublime", loaded.Membership)

	require.NoError(t, repo.DeleteSession(ctx, "qobuz", "user@example.com"))
	_, err = repo.LoadSession(ctx, "qobuz", "user@example.com")
	assert.ErrorIs(t, err, backend.ErrSessionNotFound)

	require.NoError(t, repo.DeleteSession(ctx, "qobuz", "nobody"))
}

func TestSaveSessionValidation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	assert.Error(t, repo.SaveSession(ctx, nil))
	assert.Error(t, repo.SaveSession(ctx, &backend.Session{Service: "qobuz"}))
}

func TestConfigurePool(t *testing.T) {
	repo := newTestRepository(t)
	assert.NoError(t, repo.ConfigurePool(2, 1, 0))

	var nilRepo *Repository
	assert.Error(t, nilRepo.ConfigurePool(1, 1, 0))
	assert.NoError(t, nilRepo.Close())
}
