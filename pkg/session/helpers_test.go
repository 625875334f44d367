package session_test

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/token"
)

const testSecret = "test-signing-secret-with-enough-entropy"

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: epoch}
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

// backend is a store under test plus a way to let storage time pass
// without moving the manager clock.
type backend struct {
	name   string
	store  session.Store
	expire func(d time.Duration)
}

func newRedisBackend(t *testing.T) (backend, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	return backend{
		name:   "redis",
		store:  session.NewRedisStore(client),
		expire: mr.FastForward,
	}, mr
}

func newMemoryBackend(t *testing.T) backend {
	t.Helper()

	storeClock := newClock()
	return backend{
		name:   "memory",
		store:  session.NewMemoryStore(session.WithMemoryClock(storeClock.Now)),
		expire: storeClock.Advance,
	}
}

func backends(t *testing.T) []backend {
	t.Helper()

	rb, _ := newRedisBackend(t)
	return []backend{rb, newMemoryBackend(t)}
}

func newCodec(t *testing.T, now func() time.Time) *token.Codec {
	t.Helper()

	codec, err := token.New([]byte(testSecret), token.WithClock(now))
	require.NoError(t, err)
	return codec
}

func newManager(t *testing.T, store session.Store, clk *fakeClock, opts ...session.Option) *session.Manager {
	t.Helper()

	m, err := session.New(store, newCodec(t, clk.Now), append([]session.Option{session.WithClock(clk.Now)}, opts...)...)
	require.NoError(t, err)
	return m
}

func fixedID(id string) func() (string, error) {
	return func() (string, error) { return id, nil }
}
