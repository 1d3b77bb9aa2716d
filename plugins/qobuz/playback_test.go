package qobuz

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	"github.com/vitiko98/mopidy-qobuz/backend/worker"
	"github.com/vitiko98/mopidy-qobuz/plugins/qobuz/stream"
)

const streamURL = "https://streaming-qobuz-std.akamaized.net/file?uid=1"

func newTestPlayback(t *testing.T, f *fakeQobuz, pool backend.WorkerPool) (*Playback, *stream.Resolver) {
	t.Helper()
	c := newTestClient(t, f)
	cache, err := stream.NewCache(16, time.Minute, stream.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	resolver, err := stream.NewResolver(c, cache, stream.Options{
		Attempts:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	})
	require.NoError(t, err)
	return newPlayback(resolver, platform.QualityLossless, pool, 0, &recordingLogger{}), resolver
}

func serveStreamURL(f *fakeQobuz) {
	f.reply(fileURLEndpoint, http.StatusOK, `{"url": "`+streamURL+`", "format_id": 6, "bit_depth": 16, "sampling_rate": 44.1}`)
}

func TestTranslateURI(t *testing.T) {
	f := newFakeQobuz(t)
	serveStreamURL(f)
	p, _ := newTestPlayback(t, f, nil)
	ctx := context.Background()

	url, ok := p.TranslateURI(ctx, "qobuz:track:5966783")
	require.True(t, ok)
	assert.Equal(t, streamURL, url)
	assert.Equal(t, "6", f.last(fileURLEndpoint).form["format_id"])

	_, ok = p.TranslateURI(ctx, "qobuz:track:5966783")
	require.True(t, ok)
	assert.Equal(t, 1, f.calls(fileURLEndpoint), "second call is served from cache")

	p.Invalidate("qobuz:track:5966783")
	_, ok = p.TranslateURI(ctx, "qobuz:track:5966783")
	require.True(t, ok)
	assert.Equal(t, 2, f.calls(fileURLEndpoint))
}

func TestTranslateURIFailuresAreSoft(t *testing.T) {
	f := newFakeQobuz(t)
	f.reply(fileURLEndpoint, http.StatusOK, `{"url": "https://x/preview", "sample": true, "sampling_rate": 44.1}`)
	p, _ := newTestPlayback(t, f, nil)
	ctx := context.Background()

	url, ok := p.TranslateURI(ctx, "qobuz:track:1")
	assert.False(t, ok)
	assert.Empty(t, url)

	_, err := p.Resolve(ctx, "qobuz:track:1")
	require.ErrorIs(t, err, stream.ErrDemo)

	_, ok = p.TranslateURI(ctx, "bogus")
	assert.False(t, ok)
	_, err = p.Resolve(ctx, "bogus")
	require.ErrorIs(t, err, platform.ErrInvalidURI)
}

func TestPrefetchWarmsCache(t *testing.T) {
	f := newFakeQobuz(t)
	serveStreamURL(f)
	pool := worker.New(2)
	p, resolver := newTestPlayback(t, f, pool)

	require.NoError(t, p.Prefetch(context.Background(), "qobuz:track:1", "qobuz:track:2"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))

	assert.Equal(t, 2, resolver.Cache().Len())
	_, ok := p.TranslateURI(context.Background(), "qobuz:track:2")
	require.True(t, ok)
	assert.Equal(t, 2, f.calls(fileURLEndpoint))
}

func TestPrefetchSurvivesCallerCancellation(t *testing.T) {
	f := newFakeQobuz(t)
	serveStreamURL(f)
	pool := worker.New(1)
	p, resolver := newTestPlayback(t, f, pool)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Prefetch(ctx, "qobuz:track:1"))
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, pool.Shutdown(shutdownCtx))
	assert.Equal(t, 1, resolver.Cache().Len())
}

func TestPrefetchWithoutPool(t *testing.T) {
	p, _ := newTestPlayback(t, newFakeQobuz(t), nil)
	err := p.Prefetch(context.Background(), "qobuz:track:1")
	require.ErrorIs(t, err, platform.ErrUnsupported)
}

func TestPrefetchClosedPoolAndBadURI(t *testing.T) {
	pool := worker.New(1)
	pool.StopNow()
	p, _ := newTestPlayback(t, newFakeQobuz(t), pool)

	err := p.Prefetch(context.Background(), "nope", "qobuz:track:1")
	require.ErrorIs(t, err, platform.ErrInvalidURI)
	assert.ErrorIs(t, err, worker.ErrPoolClosed)
}

func TestShouldDownload(t *testing.T) {
	p, _ := newTestPlayback(t, newFakeQobuz(t), nil)
	assert.True(t, p.ShouldDownload("qobuz:track:1"))
}
