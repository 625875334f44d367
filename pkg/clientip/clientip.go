package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultHeaders are consulted in order when no explicit list is configured.
var DefaultHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Config selects which proxy headers are trusted.
type Config struct {
	// TrustedHeaders is an ordered list of headers carrying the client address.
	// Empty means DefaultHeaders. Set to "none" to use only RemoteAddr.
	TrustedHeaders []string `env:"HTTP_TRUSTED_IP_HEADERS" envSeparator:","`
}

// Extractor resolves the originating client address of a request.
type Extractor struct {
	headers []string
}

// New returns an extractor trusting headers in the given order.
// Without arguments DefaultHeaders are used.
func New(headers ...string) *Extractor {
	if len(headers) == 0 {
		headers = DefaultHeaders
	}
	clean := make([]string, 0, len(headers))
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" || strings.EqualFold(h, "none") {
			continue
		}
		clean = append(clean, http.CanonicalHeaderKey(h))
	}
	return &Extractor{headers: clean}
}

// NewFromConfig builds an extractor from cfg.
func NewFromConfig(cfg Config) *Extractor {
	return New(cfg.TrustedHeaders...)
}

// GetIP resolves the client address using DefaultHeaders.
func GetIP(r *http.Request) string {
	return defaultExtractor.FromRequest(r)
}

var defaultExtractor = New()

// FromRequest returns the first valid address found in the trusted headers,
// falling back to RemoteAddr. For X-Forwarded-For the left-most valid entry
// wins. The result is normalised; an empty string means nothing usable was found.
func (e *Extractor) FromRequest(r *http.Request) string {
	for _, h := range e.headers {
		value := r.Header.Get(h)
		if value == "" {
			continue
		}
		for candidate := range strings.SplitSeq(value, ",") {
			if ip := parseIP(candidate); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return ""
	}
	// zones are local to the proxy and meaningless for the client
	return addr.WithZone("").Unmap().String()
}
