package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
)

// echoSession answers 200 with the session's user id, or 204 when there is none.
func echoSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(sess.UserID))
	})
}

func bearer(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := newClock()
	m := newManager(t, session.NewMemoryStore(session.WithMemoryClock(clk.Now)), clk)

	issued, err := m.Create(ctx, session.CreateRequest{TenantID: "acme", UserID: "alice"})
	require.NoError(t, err)

	t.Run("valid token puts session in context", func(t *testing.T) {
		rec := httptest.NewRecorder()
		session.Middleware(m)(echoSession()).ServeHTTP(rec, bearer(httptest.NewRequest(http.MethodGet, "/", nil), issued.Token))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Body.String())
	})

	t.Run("missing token passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		session.Middleware(m)(echoSession()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing token rejected when required", func(t *testing.T) {
		rec := httptest.NewRecorder()
		session.Middleware(m, session.WithRequired())(echoSession()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token passes through unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		session.Middleware(m)(echoSession()).ServeHTTP(rec, bearer(httptest.NewRequest(http.MethodGet, "/", nil), "garbage"))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("invalid token rejected when required", func(t *testing.T) {
		rec := httptest.NewRecorder()
		session.Middleware(m, session.WithRequired())(echoSession()).ServeHTTP(rec, bearer(httptest.NewRequest(http.MethodGet, "/", nil), "garbage"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token of another tenant is forbidden", func(t *testing.T) {
		req := bearer(httptest.NewRequest(http.MethodGet, "/", nil), issued.Token)
		req = req.WithContext(tenant.WithID(req.Context(), "globex"))

		rec := httptest.NewRecorder()
		session.Middleware(m, session.WithRequired())(echoSession()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("token of the resolved tenant is accepted", func(t *testing.T) {
		req := bearer(httptest.NewRequest(http.MethodGet, "/", nil), issued.Token)
		req = req.WithContext(tenant.WithID(req.Context(), "acme"))

		rec := httptest.NewRecorder()
		session.Middleware(m, session.WithRequired())(echoSession()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("custom error handler", func(t *testing.T) {
		var got error
		handler := session.Middleware(m,
			session.WithRequired(),
			session.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
				got = err
				w.WriteHeader(http.StatusTeapot)
			}),
		)(echoSession())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.ErrorIs(t, got, session.ErrNoToken)
	})
}

func TestMiddleware_AutoRefresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := newClock()
	m := newManager(t, session.NewMemoryStore(session.WithMemoryClock(clk.Now)), clk,
		session.WithRefreshThreshold(time.Hour),
	)

	fresh, err := m.Create(ctx, session.CreateRequest{TenantID: "acme", UserID: "alice", TTL: 48 * time.Hour})
	require.NoError(t, err)
	stale, err := m.Create(ctx, session.CreateRequest{TenantID: "acme", UserID: "bob", TTL: 30 * time.Minute})
	require.NoError(t, err)

	handler := session.Middleware(m, session.WithAutoRefresh(2*time.Hour))(echoSession())

	t.Run("far from expiry keeps token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, bearer(httptest.NewRequest(http.MethodGet, "/", nil), fresh.Token))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Authorization"))
	})

	t.Run("close to expiry sends new token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, bearer(httptest.NewRequest(http.MethodGet, "/", nil), stale.Token))

		assert.Equal(t, http.StatusOK, rec.Code)
		header := rec.Header().Get("Authorization")
		require.NotEmpty(t, header)
		assert.Equal(t, epoch.Add(2*time.Hour).Format(time.RFC3339), rec.Header().Get("Authorization-Expires"))

		res, err := m.Validate(ctx, header[len("Bearer "):])
		require.NoError(t, err)
		require.True(t, res.Valid)
		assert.True(t, res.Session.ExpiresAt.Equal(epoch.Add(2*time.Hour)))
	})
}

func TestMiddleware_StoreUnavailable(t *testing.T) {
	t.Parallel()

	clk := newClock()
	rb, mr := newRedisBackend(t)
	m := newManager(t, rb.store, clk)

	issued, err := m.Create(context.Background(), session.CreateRequest{TenantID: "acme", UserID: "alice"})
	require.NoError(t, err)
	mr.Close()

	t.Run("default retry hint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		session.Middleware(m)(echoSession()).ServeHTTP(rec, bearer(httptest.NewRequest(http.MethodGet, "/", nil), issued.Token))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	})

	t.Run("sub second hint rounds up", func(t *testing.T) {
		rec := httptest.NewRecorder()
		session.Middleware(m, session.WithRetryAfter(100*time.Millisecond))(echoSession()).
			ServeHTTP(rec, bearer(httptest.NewRequest(http.MethodGet, "/", nil), issued.Token))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	})
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	handler := session.RequireSession(nil)(echoSession())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(session.WithSession(req.Context(), &session.Session{UserID: "alice"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequirePermission(t *testing.T) {
	t.Parallel()

	handler := session.RequirePermission("users:write", nil)(echoSession())
	withSession := func(perms ...string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(session.WithSession(req.Context(), &session.Session{UserID: "alice", Permissions: perms}))
	}

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{name: "no session", req: httptest.NewRequest(http.MethodGet, "/", nil), want: http.StatusUnauthorized},
		{name: "missing permission", req: withSession("users:read"), want: http.StatusForbidden},
		{name: "granted", req: withSession("users:read", "users:write"), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
