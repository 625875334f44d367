package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionkit/pkg/session"
)

func TestHeaderTransport(t *testing.T) {
	t.Parallel()

	t.Run("bearer prefix is case insensitive", func(t *testing.T) {
		tr := session.NewHeaderTransport("")

		for _, value := range []string{"Bearer abc", "bearer abc", "BEARER  abc "} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", value)

			got, err := tr.GetToken(req)
			require.NoError(t, err, value)
			assert.Equal(t, "abc", got)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := session.NewHeaderTransport("").GetToken(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, err, session.ErrNoToken)
	})

	t.Run("prefix only", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ")

		_, err := session.NewHeaderTransport("").GetToken(req)
		assert.ErrorIs(t, err, session.ErrNoToken)
	})

	t.Run("custom header without prefix", func(t *testing.T) {
		tr := session.NewHeaderTransport("X-Session-Token", session.WithHeaderPrefix(""))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Session-Token", "abc")

		got, err := tr.GetToken(req)
		require.NoError(t, err)
		assert.Equal(t, "abc", got)

		expires := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
		rec := httptest.NewRecorder()
		require.NoError(t, tr.SetToken(rec, "xyz", expires))
		assert.Equal(t, "xyz", rec.Header().Get("X-Session-Token"))
		assert.Equal(t, "2025-03-01T13:00:00Z", rec.Header().Get("X-Session-Token-Expires"))

		require.NoError(t, tr.ClearToken(rec))
		assert.Empty(t, rec.Header().Get("X-Session-Token"))
		assert.Empty(t, rec.Header().Get("X-Session-Token-Expires"))
	})
}

func TestCompositeTransport(t *testing.T) {
	t.Parallel()

	primary := session.NewHeaderTransport("")
	fallback := session.NewHeaderTransport("X-Session-Token", session.WithHeaderPrefix(""))
	tr := session.NewCompositeTransport(primary, fallback)

	t.Run("first transport with a token wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer one")
		req.Header.Set("X-Session-Token", "two")

		got, err := tr.GetToken(req)
		require.NoError(t, err)
		assert.Equal(t, "one", got)
	})

	t.Run("falls back", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Session-Token", "two")

		got, err := tr.GetToken(req)
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("no token anywhere", func(t *testing.T) {
		_, err := tr.GetToken(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, err, session.ErrNoToken)
	})

	t.Run("set and clear reach every transport", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, tr.SetToken(rec, "tok", time.Time{}))
		assert.Equal(t, "Bearer tok", rec.Header().Get("Authorization"))
		assert.Equal(t, "tok", rec.Header().Get("X-Session-Token"))
		assert.Empty(t, rec.Header().Get("Authorization-Expires"))

		require.NoError(t, tr.ClearToken(rec))
		assert.Empty(t, rec.Header().Get("Authorization"))
		assert.Empty(t, rec.Header().Get("X-Session-Token"))
	})
}
