package sessionapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/sessionkit/pkg/clientip"
	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
)

const defaultMaxBody = 64 << 10

// Handler serves the session API.
type Handler struct {
	manager    *session.Manager
	transport  session.Transport
	ips        *clientip.Extractor
	logger     *slog.Logger
	retryAfter time.Duration
	maxBody    int64
}

// CreateRequest is the body of the create endpoint.
type CreateRequest struct {
	UserID      string         `json:"user_id"`
	TTLSeconds  int64          `json:"ttl_seconds,omitempty"`
	Email       string         `json:"email,omitempty"`
	Name        string         `json:"name,omitempty"`
	Role        string         `json:"role,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ValidateRequest is the body of the validate endpoint. An empty token falls
// back to the configured transport (Authorization header by default).
type ValidateRequest struct {
	Token string `json:"token,omitempty"`
}

// RefreshRequest is the optional body of the refresh endpoint.
type RefreshRequest struct {
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

// ValidateResponse is returned by validate, for accepted and rejected tokens alike.
type ValidateResponse struct {
	Valid           bool             `json:"valid"`
	Session         *session.Session `json:"session,omitempty"`
	RequiresRefresh bool             `json:"requires_refresh"`
	Reason          string           `json:"reason,omitempty"`
}

// DeleteResponse reports how many sessions a delete removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// SessionsResponse lists sessions.
type SessionsResponse struct {
	Sessions []*session.Session `json:"sessions"`
}

func newHandler(m *session.Manager, opts ...Option) *Handler {
	h := &Handler{
		manager:    m,
		transport:  session.NewHeaderTransport(""),
		ips:        clientip.New(),
		logger:     slog.Default(),
		retryAfter: 5 * time.Second,
		maxBody:    defaultMaxBody,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("sessionapi"))
	return h
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := h.decode(w, r, &req, true); err != nil {
		h.fail(w, r, err)
		return
	}

	ttl, err := seconds(req.TTLSeconds)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	issued, err := h.manager.Create(r.Context(), session.CreateRequest{
		TenantID: tenant.MustIDFromContext(r.Context()),
		UserID:   strings.TrimSpace(req.UserID),
		TTL:      ttl,
		Profile: session.Profile{
			Email:       req.Email,
			Name:        req.Name,
			Role:        req.Role,
			Permissions: req.Permissions,
			Metadata:    req.Metadata,
			IPAddress:   clientip.FromContext(r.Context()),
			UserAgent:   r.UserAgent(),
		},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "session created",
		logger.UserID(req.UserID),
		logger.SessionID(issued.SessionID),
	)
	writeJSON(w, r, http.StatusCreated, issued)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		var err error
		if raw, err = h.transport.GetToken(r); err != nil {
			writeJSON(w, r, http.StatusOK, ValidateResponse{Reason: reasonCode(session.ErrNoToken)})
			return
		}
	}

	var (
		res *session.ValidationResult
		err error
	)
	tenantID := strings.TrimSpace(r.Header.Get(tenant.DefaultHeader))
	if tenantID != "" {
		if err := tenant.ValidateID(tenantID); err != nil {
			h.fail(w, r, err)
			return
		}
		res, err = h.manager.ValidateInTenant(r.Context(), tenantID, raw)
	} else {
		res, err = h.manager.Validate(r.Context(), raw)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, ValidateResponse{
		Valid:           res.Valid,
		Session:         res.Session,
		RequiresRefresh: res.RequiresRefresh,
		Reason:          reasonCode(res.Reason),
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := h.decode(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}

	ttl, err := seconds(req.TTLSeconds)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	issued, err := h.manager.Refresh(r.Context(), tenant.MustIDFromContext(r.Context()), chi.URLParam(r, "sessionID"), ttl)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, issued)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.manager.Delete(r.Context(), tenant.MustIDFromContext(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := DeleteResponse{}
	if deleted {
		resp.Deleted = 1
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) userSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.manager.UserSessions(r.Context(), tenant.MustIDFromContext(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	writeJSON(w, r, http.StatusOK, SessionsResponse{Sessions: sessions})
}

func (h *Handler) deleteUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	n, err := h.manager.DeleteAllUserSessions(r.Context(), tenant.MustIDFromContext(r.Context()), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user sessions revoked",
		logger.UserID(userID),
		slog.Int("deleted", n),
	)
	writeJSON(w, r, http.StatusOK, DeleteResponse{Deleted: n})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Statistics(r.Context(), tenant.MustIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// decode reads a JSON body into v. Unless required, an empty body is accepted.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, required bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && !required:
		return nil
	case errors.Is(err, io.EOF):
		return errors.Join(ErrMalformedBody, errors.New("request body is empty"))
	default:
		return errors.Join(ErrMalformedBody, err)
	}

	if dec.More() {
		return errors.Join(ErrMalformedBody, errors.New("request body must hold a single JSON object"))
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorInfo(err)

	message := http.StatusText(status)
	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", retryAfterSeconds(h.retryAfter))
		h.logger.ErrorContext(r.Context(), "session backend unavailable", logger.Error(err))
	case status >= http.StatusInternalServerError:
		h.logger.ErrorContext(r.Context(), "request failed", logger.Error(err))
	default:
		message = publicMessage(err, message)
	}

	writeError(w, r, status, code, message)
}

// publicMessage returns the innermost non-sentinel message of a client error.
func publicMessage(err error, fallback string) string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		if errs := joined.Unwrap(); len(errs) > 1 {
			return errs[len(errs)-1].Error()
		}
	}
	if err != nil {
		return err.Error()
	}
	return fallback
}

// maxTTLSeconds is the largest ttl_seconds that fits in a time.Duration.
const maxTTLSeconds = int64(math.MaxInt64 / time.Second)

func seconds(n int64) (time.Duration, error) {
	if n < 0 || n > maxTTLSeconds {
		return 0, errors.Join(session.ErrInvalidRequest, fmt.Errorf("ttl_seconds must be between 0 and %d, got %d", maxTTLSeconds, n))
	}
	return time.Duration(n) * time.Second, nil
}
