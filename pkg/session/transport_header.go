package session

import (
	"net/http"
	"strings"
	"time"
)

// HeaderTransport implements Transport using HTTP headers
type HeaderTransport struct {
	headerName string
	prefix     string
}

// NewHeaderTransport creates a new header-based transport.
// An empty name means the Authorization header with a "Bearer " prefix.
func NewHeaderTransport(headerName string, opts ...HeaderOption) *HeaderTransport {
	if headerName == "" {
		headerName = "Authorization"
	}

	t := &HeaderTransport{
		headerName: headerName,
		prefix:     "Bearer ",
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// HeaderOption is a functional option for HeaderTransport
type HeaderOption func(*HeaderTransport)

// WithHeaderPrefix sets a custom prefix for the header value
func WithHeaderPrefix(prefix string) HeaderOption {
	return func(t *HeaderTransport) {
		t.prefix = prefix
	}
}

// GetToken extracts the session token from the header.
// The prefix is matched case-insensitively.
func (t *HeaderTransport) GetToken(r *http.Request) (string, error) {
	value := strings.TrimSpace(r.Header.Get(t.headerName))
	if t.prefix != "" && len(value) >= len(t.prefix) && strings.EqualFold(value[:len(t.prefix)], t.prefix) {
		value = strings.TrimSpace(value[len(t.prefix):])
	}
	if value == "" {
		return "", ErrNoToken
	}
	return value, nil
}

// SetToken sends the session token in the response header
func (t *HeaderTransport) SetToken(w http.ResponseWriter, token string, expiresAt time.Time) error {
	w.Header().Set(t.headerName, t.prefix+token)
	if !expiresAt.IsZero() {
		w.Header().Set(t.headerName+"-Expires", expiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// ClearToken removes the session header from the response
func (t *HeaderTransport) ClearToken(w http.ResponseWriter) error {
	w.Header().Del(t.headerName)
	w.Header().Del(t.headerName + "-Expires")
	return nil
}
