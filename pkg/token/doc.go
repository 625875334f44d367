// Package token signs and verifies the bearer tokens handed out for sessions.
//
// A token is an HS256 JWT (github.com/golang-jwt/jwt/v5) carrying the session
// id, user id and tenant id together with the registered iss, iat, nbf and exp
// claims. The Codec is a pure function of its secret: it never looks at the
// session store, so a token that verifies is necessary but not sufficient for
// an authenticated request. The referenced session must still exist.
//
// # Usage
//
//	import "github.com/dmitrymomot/sessionkit/pkg/token"
//
//	codec, err := token.New([]byte(os.Getenv("SESSION_SIGNING_SECRET")))
//	if err != nil {
//	    // missing secret, refuse to start
//	}
//
//	raw, exp, err := codec.Sign(sessionID, userID, tenantID, 24*time.Hour)
//
//	claims, err := codec.Verify(raw)
//	switch {
//	case errors.Is(err, token.ErrTokenExpired):
//	    // prompt re-login or refresh
//	case errors.Is(err, token.ErrTokenInvalid):
//	    // treat as unauthenticated
//	}
//
// # Errors
//
//   - ErrMissingSecret – codec built without a key
//   - ErrTokenInvalid  – bad signature, algorithm, issuer or payload
//   - ErrTokenExpired  – signature valid, exp in the past
//   - ErrInvalidTTL    – non-positive lifetime passed to Sign
package token
