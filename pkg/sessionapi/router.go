package sessionapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/sessionkit/pkg/clientip"
	"github.com/dmitrymomot/sessionkit/pkg/requestid"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
)

// NewRouter returns a chi router serving the session API.
// Mount it wherever the service exposes its API.
func NewRouter(m *session.Manager, opts ...Option) chi.Router {
	h := newHandler(m, opts...)

	r := chi.NewRouter()
	r.Use(
		requestid.Middleware,
		chimiddleware.Recoverer,
		clientip.Middleware(h.ips),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, r, ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, r, ErrMethodNotAllowed)
	})

	r.Post("/sessions/validate", h.validate)

	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Use(h.tenantFromPath)

		r.Post("/sessions", h.create)
		r.Post("/sessions/{sessionID}/refresh", h.refresh)
		r.Delete("/sessions/{sessionID}", h.deleteSession)
		r.Get("/users/{userID}/sessions", h.userSessions)
		r.Delete("/users/{userID}/sessions", h.deleteUserSessions)
		r.Get("/stats", h.stats)
	})

	return r
}

// tenantFromPath puts the {tenantID} path segment into the request context.
func (h *Handler) tenantFromPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantID")
		if err := tenant.ValidateID(tenantID); err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenant.WithID(r.Context(), tenantID)))
	})
}
