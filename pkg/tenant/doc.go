// Package tenant resolves the tenant identifier of an HTTP request and
// carries it through the request context.
//
// A Resolver only looks at the request itself (host, header, path). It never
// reads session content: the tenant a session belongs to is fixed when the
// session is created and checked against the resolved id on validation.
//
// # Usage
//
//	import "github.com/dmitrymomot/sessionkit/pkg/tenant"
//
//	resolver := tenant.NewCompositeResolver(
//		tenant.NewHeaderResolver(tenant.DefaultHeader),
//		tenant.NewSubdomainResolver(".app.com"),
//	)
//
//	router.Use(tenant.Middleware(resolver,
//		tenant.WithSkipPaths("/health", "/metrics"),
//	))
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		id, ok := tenant.IDFromContext(r.Context())
//		...
//	}
//
// Built-in resolvers:
//
//   - SubdomainResolver: "acme" from "acme.app.com"
//   - HeaderResolver: X-Tenant-ID or a custom header
//   - PathResolver: a fixed path segment, e.g. /tenants/{id}/...
//   - CompositeResolver: tries resolvers in order
//   - ResolverFunc: adapter for plain functions
//
// # Error Handling
//
// Identifiers are checked by ValidateID (or a custom Validator); failures map
// to ErrInvalidIdentifier and a 400 response. RequireTenant answers with
// ErrNoTenantInContext. Both can be customised via WithErrorHandler.
//
// LoggerExtractor plugs into logger.WithContextExtractors so every record
// logged with a request context carries tenant_id.
package tenant
