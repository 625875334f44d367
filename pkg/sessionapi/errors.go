package sessionapi

import "errors"

var (
	// ErrMalformedBody indicates a request body that is not valid JSON for the endpoint.
	ErrMalformedBody = errors.New("sessionapi.malformed_body")

	// ErrRouteNotFound indicates an unknown path.
	ErrRouteNotFound = errors.New("sessionapi.route_not_found")

	// ErrMethodNotAllowed indicates a known path with the wrong method.
	ErrMethodNotAllowed = errors.New("sessionapi.method_not_allowed")
)
