package session_test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/session"
)

func newTestSession(tenantID, userID, id string, now time.Time, ttl time.Duration) *session.Session {
	return &session.Session{
		ID:             id,
		TenantID:       tenantID,
		UserID:         userID,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(ttl),
	}
}

func setupRedisStore(t *testing.T, opts ...session.RedisStoreOption) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	return session.NewRedisStore(client, opts...), mr
}

func TestRedisStore_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := setupRedisStore(t)
	keys := store.Keys()

	require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", "s1", epoch, time.Hour), time.Hour))

	t.Run("writes record meta and both indexes", func(t *testing.T) {
		assert.True(t, mr.Exists("sess:{acme}:rec:s1"))
		assert.True(t, mr.Exists("sess:{acme}:meta:s1"))

		members, err := mr.Members(keys.UserSet("acme", "alice"))
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, members)

		members, err = mr.Members(keys.TenantSet("acme"))
		require.NoError(t, err)
		assert.Equal(t, []string{"s1"}, members)
	})

	t.Run("storage ttl matches logical ttl", func(t *testing.T) {
		assert.Equal(t, time.Hour, mr.TTL(keys.Record("acme", "s1")))
		assert.Equal(t, time.Hour, mr.TTL(keys.Meta("acme", "s1")))
		assert.Equal(t, time.Hour, mr.TTL(keys.UserSet("acme", "alice")))
		assert.Equal(t, time.Hour, mr.TTL(keys.TenantSet("acme")))
	})

	t.Run("short session never shortens index ttl", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", "s2", epoch, time.Minute), time.Minute))

		assert.Equal(t, time.Hour, mr.TTL(keys.UserSet("acme", "alice")))
		assert.Equal(t, time.Hour, mr.TTL(keys.TenantSet("acme")))
		assert.Equal(t, time.Minute, mr.TTL(keys.Record("acme", "s2")))
	})

	t.Run("longer session stretches index ttl", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", "s3", epoch, 3*time.Hour), 3*time.Hour))

		assert.Equal(t, 3*time.Hour, mr.TTL(keys.UserSet("acme", "alice")))
		assert.Equal(t, 3*time.Hour, mr.TTL(keys.TenantSet("acme")))
	})

	t.Run("rejects incomplete records", func(t *testing.T) {
		assert.ErrorIs(t, store.Create(ctx, nil, time.Hour), session.ErrInvalidRequest)
		assert.ErrorIs(t, store.Create(ctx, newTestSession("", "alice", "x", epoch, time.Hour), time.Hour), session.ErrInvalidRequest)
		assert.ErrorIs(t, store.Create(ctx, newTestSession("acme", "alice", "x", epoch, time.Hour), 0), session.ErrSessionExpired)
	})
}

func TestRedisStore_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("rewrites record with new ttl", func(t *testing.T) {
		store, mr := setupRedisStore(t)
		sess := newTestSession("acme", "alice", "s1", epoch, time.Hour)
		require.NoError(t, store.Create(ctx, sess, time.Hour))

		sess.LastAccessedAt = epoch.Add(time.Minute)
		require.NoError(t, store.Update(ctx, sess, 2*time.Hour))

		got, err := store.Get(ctx, "acme", "s1")
		require.NoError(t, err)
		assert.True(t, got.LastAccessedAt.Equal(epoch.Add(time.Minute)))
		assert.Equal(t, 2*time.Hour, mr.TTL(store.Keys().Record("acme", "s1")))
		assert.Equal(t, 2*time.Hour, mr.TTL(store.Keys().UserSet("acme", "alice")))
	})

	t.Run("deleted session is not resurrected", func(t *testing.T) {
		store, mr := setupRedisStore(t)
		sess := newTestSession("acme", "alice", "s1", epoch, time.Hour)
		require.NoError(t, store.Create(ctx, sess, time.Hour))

		deleted, err := store.Delete(ctx, "acme", "s1")
		require.NoError(t, err)
		require.True(t, deleted)

		err = store.Update(ctx, sess, time.Hour)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
		assert.False(t, mr.Exists(store.Keys().Record("acme", "s1")))
		assert.False(t, mr.Exists(store.Keys().Meta("acme", "s1")))
	})
}

// beforeScript runs fn once, right before the first script reaches Redis.
type beforeScript struct {
	once sync.Once
	fn   func()
}

func (h *beforeScript) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *beforeScript) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.HasPrefix(cmd.Name(), "eval") {
			h.once.Do(h.fn)
		}
		return next(ctx, cmd)
	}
}

func (h *beforeScript) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisStore_ConcurrentLoginKeepsIndexes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	const week = 7 * 24 * time.Hour

	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	login := session.NewRedisStore(newClient())
	keys := login.Keys()

	short := newTestSession("acme", "alice", "short", epoch, time.Hour)
	require.NoError(t, login.Create(ctx, short, time.Hour))

	var loginErr error
	validating := newClient()
	validating.AddHook(&beforeScript{fn: func() {
		loginErr = login.Create(ctx, newTestSession("acme", "alice", "long", epoch, week), week)
	}})
	touch := session.NewRedisStore(validating)

	short.LastAccessedAt = epoch.Add(time.Minute)
	require.NoError(t, touch.Update(ctx, short, time.Hour))
	require.NoError(t, loginErr)

	assert.Equal(t, week, mr.TTL(keys.UserSet("acme", "alice")))
	assert.Equal(t, week, mr.TTL(keys.TenantSet("acme")))

	mr.FastForward(2 * time.Hour)

	sessions, err := login.ListByUser(ctx, "acme", "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "long", sessions[0].ID)

	n, err := login.DeleteByUser(ctx, "acme", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, mr.Exists(keys.Record("acme", "long")))
}

func TestRedisStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := setupRedisStore(t)
	keys := store.Keys()

	require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", "s1", epoch, time.Hour), time.Hour))
	require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", "s2", epoch, time.Hour), time.Hour))

	deleted, err := store.Delete(ctx, "acme", "s1")
	require.NoError(t, err)
	assert.True(t, deleted)

	assert.False(t, mr.Exists(keys.Record("acme", "s1")))
	assert.False(t, mr.Exists(keys.Meta("acme", "s1")))

	members, err := mr.Members(keys.UserSet("acme", "alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, members)

	members, err = mr.Members(keys.TenantSet("acme"))
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, members)

	deleted, err = store.Delete(ctx, "acme", "s1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRedisStore_DeleteByUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := setupRedisStore(t)
	keys := store.Keys()

	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", id, epoch, time.Hour), time.Hour))
	}
	require.NoError(t, store.Create(ctx, newTestSession("acme", "bob", "b1", epoch, time.Hour), time.Hour))

	n, err := store.DeleteByUser(ctx, "acme", "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.False(t, mr.Exists(keys.UserSet("acme", "alice")))
	for _, id := range []string{"a1", "a2", "a3"} {
		assert.False(t, mr.Exists(keys.Record("acme", id)))
		assert.False(t, mr.Exists(keys.Meta("acme", id)))
	}

	members, err := mr.Members(keys.TenantSet("acme"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, members)

	t.Run("counts only live records", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, newTestSession("acme", "carol", "c1", epoch, time.Minute), time.Minute))
		require.NoError(t, store.Create(ctx, newTestSession("acme", "carol", "c2", epoch, time.Hour), time.Hour))
		mr.FastForward(2 * time.Minute)

		n, err := store.DeleteByUser(ctx, "acme", "carol")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestRedisStore_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := setupRedisStore(t)

	require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", "s1", epoch, time.Minute), time.Minute))
	require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", "s2", epoch, time.Hour), time.Hour))
	require.NoError(t, store.Create(ctx, newTestSession("acme", "bob", "s3", epoch, time.Hour), time.Hour))

	mr.FastForward(2 * time.Minute)

	sessions, err := store.ListByUser(ctx, "acme", "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s2", sessions[0].ID)

	entries, err := store.ListByTenant(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	live := map[string]bool{}
	for _, e := range entries {
		live[e.SessionID] = e.Session != nil
	}
	assert.Equal(t, map[string]bool{"s1": false, "s2": true, "s3": true}, live)

	none, err := store.ListByUser(ctx, "acme", "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRedisStore_TenantsAndReconcile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := setupRedisStore(t, session.WithKeyPrefix("app"), session.WithScanBatchSize(2))
	keys := store.Keys()

	require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", "s1", epoch, time.Minute), time.Minute))
	require.NoError(t, store.Create(ctx, newTestSession("acme", "alice", "s2", epoch, time.Hour), time.Hour))
	require.NoError(t, store.Create(ctx, newTestSession("acme", "bob", "s3", epoch, time.Minute), time.Minute))
	require.NoError(t, store.Create(ctx, newTestSession("acme", "carol", "s4", epoch, time.Hour), time.Hour))
	require.NoError(t, store.Create(ctx, newTestSession("globex:eu", "dan", "s1", epoch, time.Hour), time.Hour))

	assert.True(t, mr.Exists("app:{acme}:rec:s2"))

	tenants, err := store.Tenants(ctx)
	require.NoError(t, err)
	slices.Sort(tenants)
	assert.Equal(t, []string{"acme", "globex:eu"}, tenants)

	mr.FastForward(2 * time.Minute)

	removed, err := store.Reconcile(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	members, err := mr.Members(keys.TenantSet("acme"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s2", "s4"}, members)

	members, err = mr.Members(keys.UserSet("acme", "alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, members)

	removed, err = store.Reconcile(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = store.Reconcile(ctx, "globex:eu")
	require.NoError(t, err)
	assert.Zero(t, removed, "other tenant untouched")
}
