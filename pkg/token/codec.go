package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload carried by a session token.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
	TenantID  string `json:"tid"`
	jwt.RegisteredClaims
}

// ExpiresAt returns the exp claim as time, or zero time when unset.
func (c *Claims) ExpiresAt() time.Time {
	if c == nil || c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Codec signs and verifies session tokens with HMAC-SHA256.
// It never talks to the session store.
type Codec struct {
	key    []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// New creates a codec for the given secret.
// An empty secret is a configuration error, there is no fallback key.
func New(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	c := &Codec{
		key: secret,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(parserOpts...)

	return c, nil
}

// Sign issues a token for the session that expires after ttl.
// The returned time is the exp claim, truncated to whole seconds.
func (c *Codec) Sign(sessionID, userID, tenantID string, ttl time.Duration) (string, time.Time, error) {
	return c.SignAt(c.now(), sessionID, userID, tenantID, ttl)
}

// SignAt is Sign with an explicit issue time, for callers that own the clock.
func (c *Codec) SignAt(now time.Time, sessionID, userID, tenantID string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidTTL
	}
	if sessionID == "" || userID == "" || tenantID == "" {
		return "", time.Time{}, ErrTokenInvalid
	}

	claims := Claims{
		SessionID: sessionID,
		UserID:    userID,
		TenantID:  tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, errors.Join(ErrTokenInvalid, err)
	}

	return signed, claims.RegisteredClaims.ExpiresAt.Time, nil
}

// Verify checks the signature, algorithm and temporal claims of raw.
// It returns ErrTokenExpired or ErrTokenInvalid on failure.
func (c *Codec) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Join(ErrTokenInvalid, err)
	}

	if claims.SessionID == "" || claims.UserID == "" || claims.TenantID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
