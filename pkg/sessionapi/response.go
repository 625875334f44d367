package sessionapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/requestid"
	"github.com/dmitrymomot/sessionkit/pkg/session"
	"github.com/dmitrymomot/sessionkit/pkg/tenant"
)

// Envelope is the body of every response.
type Envelope struct {
	Code      int          `json:"code"`
	Data      any          `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, status, Envelope{
		Code:      status,
		Data:      data,
		RequestID: requestid.FromContext(r.Context()),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	write(w, status, Envelope{
		Code:      status,
		Error:     &ErrorDetail{Code: code, Message: message},
		RequestID: requestid.FromContext(r.Context()),
	})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorInfo maps an error to status and error code.
func errorInfo(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, session.ErrSessionExpired):
		return http.StatusNotFound, "session_expired"
	case errors.Is(err, session.ErrInvalidRequest), errors.Is(err, tenant.ErrInvalidIdentifier):
		return http.StatusUnprocessableEntity, "invalid_request"
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest, "malformed_body"
	case errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound, "route_not_found"
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// reasonCode names why a token was rejected.
func reasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, session.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, session.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, session.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, session.ErrTenantMismatch):
		return "tenant_mismatch"
	case errors.Is(err, session.ErrNoToken):
		return "no_token"
	}
	return "invalid"
}

func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(max(1, int(d.Round(time.Second).Seconds())))
}
