package tenant

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultHeader is the header read by NewHeaderResolver when none is given.
const DefaultHeader = "X-Tenant-ID"

// Resolver extracts a tenant identifier from HTTP requests.
type Resolver interface {
	// Resolve returns "" when the request carries no tenant identifier.
	Resolve(r *http.Request) (string, error)
}

// ResolverFunc is an adapter to allow the use of ordinary functions as Resolvers.
type ResolverFunc func(r *http.Request) (string, error)

// Resolve calls the function.
func (f ResolverFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}

// SubdomainResolver extracts the tenant from the first host label.
type SubdomainResolver struct {
	// Suffix is the base domain, e.g. ".app.com". When empty the host must have
	// at least three labels for the first one to count as a tenant.
	Suffix string
}

// NewSubdomainResolver creates a new subdomain resolver.
func NewSubdomainResolver(suffix string) *SubdomainResolver {
	return &SubdomainResolver{Suffix: suffix}
}

// Resolve extracts "acme" from "acme.app.com". A leading "www" label is skipped.
func (r *SubdomainResolver) Resolve(req *http.Request) (string, error) {
	host := strings.ToLower(req.Host)
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.HasSuffix(host, "]") {
		host = host[:idx]
	}

	labels := strings.Split(host, ".")
	if r.Suffix != "" {
		suffix := strings.ToLower(r.Suffix)
		if !strings.HasSuffix(host, suffix) || len(host) == len(suffix) {
			return "", nil
		}
		labels = strings.Split(strings.TrimSuffix(host, suffix), ".")
	} else if len(labels) < 3 {
		return "", nil
	}

	if labels[0] == "www" {
		labels = labels[1:]
		if r.Suffix == "" && len(labels) < 3 {
			return "", nil
		}
	}
	if len(labels) == 0 || labels[0] == "" {
		return "", nil
	}

	return labels[0], nil
}

// HeaderResolver reads the tenant from an HTTP header.
type HeaderResolver struct {
	HeaderName string
}

// NewHeaderResolver creates a new header resolver. Empty name means DefaultHeader.
func NewHeaderResolver(headerName string) *HeaderResolver {
	if headerName == "" {
		headerName = DefaultHeader
	}
	return &HeaderResolver{HeaderName: headerName}
}

// Resolve extracts tenant from the configured header.
func (r *HeaderResolver) Resolve(req *http.Request) (string, error) {
	return strings.TrimSpace(req.Header.Get(r.HeaderName)), nil
}

// PathResolver extracts the tenant from a URL path segment.
type PathResolver struct {
	// Position is 1-based, e.g. 2 for /tenants/{id}/...
	Position int
}

// NewPathResolver creates a new path resolver.
func NewPathResolver(position int) *PathResolver {
	return &PathResolver{Position: position}
}

// Resolve extracts tenant from the specified path position.
func (r *PathResolver) Resolve(req *http.Request) (string, error) {
	if r.Position < 1 {
		return "", errors.New("tenant: invalid path position")
	}

	path := strings.Trim(req.URL.Path, "/")
	if path == "" {
		return "", nil
	}

	parts := strings.Split(path, "/")
	if r.Position > len(parts) {
		return "", nil
	}

	return parts[r.Position-1], nil
}

// CompositeResolver tries multiple resolvers in order until one yields an id.
type CompositeResolver struct {
	Resolvers []Resolver
}

// NewCompositeResolver creates a new composite resolver.
func NewCompositeResolver(resolvers ...Resolver) *CompositeResolver {
	return &CompositeResolver{Resolvers: resolvers}
}

// Resolve returns the first non-empty result. Errors are only reported when
// no resolver produced an id.
func (c *CompositeResolver) Resolve(r *http.Request) (string, error) {
	var errs []error

	for _, resolver := range c.Resolvers {
		id, err := resolver.Resolve(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if id != "" {
			return id, nil
		}
	}

	if len(errs) > 0 {
		return "", fmt.Errorf("composite resolver errors: %w", errors.Join(errs...))
	}

	return "", nil
}
