package session

import (
	"slices"
	"time"
)

// Session is the authoritative record of one authenticated session.
// The profile fields are a snapshot taken at creation time.
type Session struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	TenantID       string         `json:"tenant_id"`
	Email          string         `json:"email,omitempty"`
	Name           string         `json:"name,omitempty"`
	Role           string         `json:"role,omitempty"`
	Permissions    []string       `json:"permissions,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
}

// Profile is the identity snapshot captured by a login flow.
type Profile struct {
	Email       string         `json:"email,omitempty"`
	Name        string         `json:"name,omitempty"`
	Role        string         `json:"role,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
}

// Meta is the lightweight shadow of a record used for lookups that don't
// need the full payload.
type Meta struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Entry pairs a tenant index member with its record.
// Session is nil when the record is gone but the index still points at it.
type Entry struct {
	SessionID string
	Session   *Session
}

// Statistics summarises a tenant's session index.
type Statistics struct {
	TotalSessions   int `json:"total_sessions"`
	ActiveSessions  int `json:"active_sessions"`
	ActiveUsers     int `json:"active_users"`
	ExpiredSessions int `json:"expired_sessions"`
}

// Issued is returned by create and refresh.
type Issued struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidationResult is the outcome of validating a token.
// Reason is set when Valid is false.
type ValidationResult struct {
	Valid           bool     `json:"valid"`
	Session         *Session `json:"session,omitempty"`
	RequiresRefresh bool     `json:"requires_refresh"`
	Reason          error    `json:"-"`
}

// IsExpiredAt reports whether the session is past its expiry at now.
func (s *Session) IsExpiredAt(now time.Time) bool {
	return s != nil && !now.Before(s.ExpiresAt)
}

// RemainingTTL returns the lifetime left at now, never negative.
func (s *Session) RemainingTTL(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return max(s.ExpiresAt.Sub(now), 0)
}

// HasPermission reports whether the snapshot grants perm.
func (s *Session) HasPermission(perm string) bool {
	return s != nil && slices.Contains(s.Permissions, perm)
}

// Meta returns the shadow record for s.
func (s *Session) Meta() Meta {
	return Meta{
		SessionID: s.ID,
		UserID:    s.UserID,
		TenantID:  s.TenantID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

// clone returns a deep copy so stores never share mutable state with callers.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Permissions != nil {
		cp.Permissions = slices.Clone(s.Permissions)
	}
	if s.Metadata != nil {
		cp.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
