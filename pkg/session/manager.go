package session

import (
	"cmp"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/sessionkit/pkg/logger"
	"github.com/dmitrymomot/sessionkit/pkg/token"
)

// CreateRequest carries the input of a login flow.
type CreateRequest struct {
	TenantID string
	UserID   string
	Profile  Profile
	// TTL is the logical lifetime. 0 means Config.DefaultTTL.
	TTL time.Duration
}

// Manager runs the session lifecycle against a Store.
// It keeps no session state of its own; the store is the only source of truth.
type Manager struct {
	store   Store
	codec   *token.Codec
	config  Config
	now     func() time.Time
	newID   func() (string, error)
	metrics *Metrics
	logger  *slog.Logger
}

// New creates a session manager.
func New(store Store, codec *token.Codec, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.Join(ErrConfiguration, errors.New("store is required"))
	}
	if codec == nil {
		return nil, errors.Join(ErrConfiguration, errors.New("token codec is required"))
	}

	m := &Manager{
		store:  store,
		codec:  codec,
		config: DefaultConfig(),
		now:    time.Now,
		newID:  generateID,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.config.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Create issues a new session and persists it together with its index entries.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Issued, error) {
	issued, err := m.create(ctx, req)
	m.metrics.observe(opCreate, err)
	return issued, err
}

func (m *Manager) create(ctx context.Context, req CreateRequest) (*Issued, error) {
	if req.TenantID == "" || req.UserID == "" || !validTTL(req.TTL) {
		return nil, ErrInvalidRequest
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	now := m.now()

	id, err := m.newID()
	if err != nil {
		return nil, errors.Join(ErrIDGeneration, err)
	}

	sess := &Session{
		ID:             id,
		UserID:         req.UserID,
		TenantID:       req.TenantID,
		Email:          req.Profile.Email,
		Name:           req.Profile.Name,
		Role:           req.Profile.Role,
		Permissions:    slices.Clone(req.Profile.Permissions),
		Metadata:       req.Profile.Metadata,
		CreatedAt:      now,
		LastAccessedAt: now,
		IPAddress:      req.Profile.IPAddress,
		UserAgent:      req.Profile.UserAgent,
	}

	raw, exp, err := m.codec.SignAt(now, sess.ID, sess.UserID, sess.TenantID, ttl)
	if err != nil {
		return nil, err
	}
	// the record expires together with its token
	sess.ExpiresAt = exp

	if err := m.store.Create(ctx, sess, exp.Sub(now)); err != nil {
		return nil, err
	}

	return &Issued{SessionID: sess.ID, Token: raw, ExpiresAt: sess.ExpiresAt}, nil
}

// Validate checks a token and its backing record.
// Rejections come back as a result with Valid=false; a non-nil error always
// means the backend failed and the caller should retry.
func (m *Manager) Validate(ctx context.Context, raw string) (*ValidationResult, error) {
	res, err := m.validate(ctx, "", raw)
	m.metrics.observeValidation(res, err)
	return res, err
}

// ValidateInTenant is Validate restricted to tokens minted for tenantID.
func (m *Manager) ValidateInTenant(ctx context.Context, tenantID, raw string) (*ValidationResult, error) {
	if tenantID == "" {
		return nil, ErrInvalidRequest
	}
	res, err := m.validate(ctx, tenantID, raw)
	m.metrics.observeValidation(res, err)
	return res, err
}

func (m *Manager) validate(ctx context.Context, tenantID, raw string) (*ValidationResult, error) {
	claims, err := m.codec.Verify(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return rejected(ErrTokenExpired), nil
		}
		return rejected(ErrTokenInvalid), nil
	}

	if tenantID != "" && claims.TenantID != tenantID {
		return rejected(ErrTenantMismatch), nil
	}

	sess, err := m.store.Get(ctx, claims.TenantID, claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return rejected(ErrSessionNotFound), nil
	}
	if err != nil {
		return nil, err
	}

	// token and record must agree on the owner
	if sess.UserID != claims.UserID {
		return rejected(ErrTokenInvalid), nil
	}

	now := m.now()
	if sess.IsExpiredAt(now) {
		if _, err := m.store.Delete(ctx, sess.TenantID, sess.ID); err != nil {
			return nil, err
		}
		m.logger.DebugContext(ctx, "removed expired session",
			logger.TenantID(sess.TenantID),
			logger.SessionID(sess.ID),
		)
		return rejected(ErrSessionExpired), nil
	}

	if m.config.TouchInterval <= 0 || now.Sub(sess.LastAccessedAt) >= m.config.TouchInterval {
		sess.LastAccessedAt = now
		if err := m.store.Update(ctx, sess, sess.RemainingTTL(now)); err != nil {
			switch {
			case errors.Is(err, ErrSessionNotFound):
				return rejected(ErrSessionNotFound), nil
			case errors.Is(err, ErrSessionExpired):
				return rejected(ErrSessionExpired), nil
			}
			return nil, err
		}
	}

	return &ValidationResult{
		Valid:           true,
		Session:         sess,
		RequiresRefresh: sess.ExpiresAt.Sub(now) <= m.config.RefreshThreshold,
	}, nil
}

// Refresh extends a session to now+ttl and issues a new token for it.
// ttl 0 means Config.DefaultTTL.
func (m *Manager) Refresh(ctx context.Context, tenantID, sessionID string, ttl time.Duration) (*Issued, error) {
	issued, err := m.refresh(ctx, tenantID, sessionID, ttl)
	m.metrics.observe(opRefresh, err)
	return issued, err
}

func (m *Manager) refresh(ctx context.Context, tenantID, sessionID string, ttl time.Duration) (*Issued, error) {
	if tenantID == "" || sessionID == "" || !validTTL(ttl) {
		return nil, ErrInvalidRequest
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	sess, err := m.store.Get(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	raw, exp, err := m.codec.SignAt(now, sess.ID, sess.UserID, sess.TenantID, ttl)
	if err != nil {
		return nil, err
	}
	sess.ExpiresAt = exp
	sess.LastAccessedAt = now

	if err := m.store.Update(ctx, sess, exp.Sub(now)); err != nil {
		return nil, err
	}

	return &Issued{SessionID: sess.ID, Token: raw, ExpiresAt: sess.ExpiresAt}, nil
}

// Delete removes one session. It reports false when the session was already gone.
func (m *Manager) Delete(ctx context.Context, tenantID, sessionID string) (bool, error) {
	if tenantID == "" || sessionID == "" {
		return false, ErrInvalidRequest
	}
	deleted, err := m.store.Delete(ctx, tenantID, sessionID)
	m.metrics.observe(opDelete, err)
	return deleted, err
}

// DeleteAllUserSessions logs a user out everywhere within the tenant.
func (m *Manager) DeleteAllUserSessions(ctx context.Context, tenantID, userID string) (int, error) {
	if tenantID == "" || userID == "" {
		return 0, ErrInvalidRequest
	}
	n, err := m.store.DeleteByUser(ctx, tenantID, userID)
	m.metrics.observe(opDeleteAll, err)
	return n, err
}

// UserSessions lists the live sessions of a user, oldest first.
func (m *Manager) UserSessions(ctx context.Context, tenantID, userID string) ([]*Session, error) {
	if tenantID == "" || userID == "" {
		return nil, ErrInvalidRequest
	}

	sessions, err := m.store.ListByUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	sessions = slices.DeleteFunc(sessions, func(s *Session) bool {
		return s.IsExpiredAt(now)
	})

	slices.SortFunc(sessions, func(a, b *Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sessions, nil
}

// Statistics classifies every member of the tenant index.
// Members whose record is already gone count as expired until the sweeper removes them.
func (m *Manager) Statistics(ctx context.Context, tenantID string) (*Statistics, error) {
	if tenantID == "" {
		return nil, ErrInvalidRequest
	}

	entries, err := m.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	stats := &Statistics{TotalSessions: len(entries)}
	users := make(map[string]struct{})
	for _, e := range entries {
		if e.Session == nil || e.Session.IsExpiredAt(now) {
			stats.ExpiredSessions++
			continue
		}
		stats.ActiveSessions++
		users[e.Session.UserID] = struct{}{}
	}
	stats.ActiveUsers = len(users)

	return stats, nil
}

// validTTL accepts 0 (use the default) or whole-second lifetimes of at least
// one second; token expiry has second precision.
func validTTL(ttl time.Duration) bool {
	return ttl == 0 || (ttl >= time.Second && ttl%time.Second == 0)
}

func rejected(reason error) *ValidationResult {
	return &ValidationResult{Valid: false, Reason: reason}
}

// generateID hashes 32 random bytes together with the current nanosecond
// timestamp into a 64 character hex id.
func generateID() (string, error) {
	buf := make([]byte, 40)
	if _, err := rand.Read(buf[:32]); err != nil {
		return "", err
	}
	binary.BigEndian.PutUint64(buf[32:], uint64(time.Now().UnixNano()))
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}
