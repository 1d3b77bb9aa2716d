package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitiko98/mopidy-qobuz/backend"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{}
}

func (l *recordingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("error", msg, args) }
func (l *recordingLogger) With(args ...any) backend.Logger {
	return l
}

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedFetcher replays one step per call; the last step repeats.
type scriptedFetcher struct {
	calls atomic.Int32
	clock *fakeClock
	steps []func(ctx context.Context, trackID string, format platform.Quality) (*Descriptor, error)
}

func (f *scriptedFetcher) FetchFileURL(ctx context.Context, trackID string, format platform.Quality, intent string) (*Descriptor, error) {
	n := int(f.calls.Add(1)) - 1
	if n >= len(f.steps) {
		n = len(f.steps) - 1
	}
	return f.steps[n](ctx, trackID, format)
}

func (f *scriptedFetcher) Calls() int {
	return int(f.calls.Load())
}

func (f *scriptedFetcher) issued() time.Time {
	if f.clock != nil {
		return f.clock.Now()
	}
	return time.Now()
}

func okStep(f *scriptedFetcher, url string) func(context.Context, string, platform.Quality) (*Descriptor, error) {
	return func(ctx context.Context, trackID string, format platform.Quality) (*Descriptor, error) {
		return &Descriptor{
			TrackID:      trackID,
			URL:          url,
			Format:       format,
			BitDepth:     16,
			SamplingRate: 44.1,
			IssuedAt:     f.issued(),
		}, nil
	}
}

func errStep(err error) func(context.Context, string, platform.Quality) (*Descriptor, error) {
	return func(ctx context.Context, trackID string, format platform.Quality) (*Descriptor, error) {
		return nil, err
	}
}

func blockStep(entered chan<- struct{}) func(context.Context, string, platform.Quality) (*Descriptor, error) {
	return func(ctx context.Context, trackID string, format platform.Quality) (*Descriptor, error) {
		if entered != nil {
			entered <- struct{}{}
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

type countingObserver struct {
	mu       sync.Mutex
	hits     int
	misses   int
	attempts map[string]int
	outcomes map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{attempts: map[string]int{}, outcomes: map[string]int{}}
}

func (o *countingObserver) CacheLookup(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func (o *countingObserver) FetchAttempt(class string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts[class]++
}

func (o *countingObserver) Resolved(outcome string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}
