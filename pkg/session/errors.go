package session

import (
	"errors"

	"github.com/dmitrymomot/sessionkit/pkg/token"
)

var (
	// ErrConfiguration indicates the manager cannot run with the given setup,
	// e.g. a missing signing secret. Fatal at startup.
	ErrConfiguration = errors.New("session.configuration")

	// ErrTokenInvalid indicates a bad signature or malformed token.
	ErrTokenInvalid = token.ErrTokenInvalid

	// ErrTokenExpired indicates a correctly signed token past its exp claim.
	ErrTokenExpired = token.ErrTokenExpired

	// ErrSessionNotFound indicates the referenced record does not exist (deleted or passively expired).
	ErrSessionNotFound = errors.New("session.not_found")

	// ErrSessionExpired indicates the record still exists but is past its ExpiresAt.
	ErrSessionExpired = errors.New("session.expired")

	// ErrTenantMismatch indicates a token minted for another tenant.
	ErrTenantMismatch = errors.New("session.tenant_mismatch")

	// ErrStoreUnavailable indicates a backend failure. Callers should retry,
	// never treat it as an invalid session.
	ErrStoreUnavailable = errors.New("session.store_unavailable")

	// ErrInvalidRequest indicates missing tenant, user or session identifiers.
	ErrInvalidRequest = errors.New("session.invalid_request")

	// ErrNoToken indicates the request carries no session token.
	ErrNoToken = errors.New("session.no_token")

	// ErrPermissionDenied indicates the session lacks a required permission.
	ErrPermissionDenied = errors.New("session.permission_denied")

	// ErrIDGeneration indicates session id generation failed
	ErrIDGeneration = errors.New("session.id_generation_failed")

	// ErrSweeperRunning indicates Start was called twice
	ErrSweeperRunning = errors.New("session.sweeper_already_running")

	// ErrSweeperNotRunning indicates Stop was called before Start
	ErrSweeperNotRunning = errors.New("session.sweeper_not_running")
)

// IsInfrastructure reports whether err stems from the backend rather than the
// session itself. Request middleware maps it to 503 instead of 401.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
