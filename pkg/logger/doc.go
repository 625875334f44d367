// Package logger provides a context-aware wrapper around log/slog with
// functional options, attribute helpers and injection of values stored in
// context.Context (for example the tenant resolved by request middleware).
//
// New creates a *slog.Logger configured by Option functions:
//
//   - Select an output format (text or json)
//   - Set the minimum log level
//   - Supply default slog.Attr values applied to every record
//   - Register ContextExtractor callbacks that add attributes from context
//     every time a record is handled.
//
// NewFromConfig builds the same logger from environment driven Config
// (APP_ENV, SERVICE_NAME, LOG_LEVEL).
//
// # Architecture
//
// Logger builds a decorated slog.Handler. First, New determines the concrete
// slog.Handler implementation – slog.NewTextHandler or slog.NewJSONHandler –
// based on the configured Format. It then wraps the handler with
// LogHandlerDecorator which is responsible for executing any registered
// ContextExtractor callbacks before delegating to the underlying handler.
//
// Helper constructors such as Error, TenantID, SessionID and UserID live in
// attr.go and keep attribute keys consistent across packages.
//
// # Usage
//
//	import "github.com/dmitrymomot/sessionkit/pkg/logger"
//
//	func main() {
//	    log := logger.New(
//	        logger.WithDevelopment("sessiond"),
//	        logger.WithContextValue("request_id", ctxKeyRequestID),
//	    )
//	    logger.SetAsDefault(log)
//
//	    ctx := context.WithValue(context.Background(), ctxKeyRequestID, "abc-123")
//	    log.InfoContext(ctx, "processed request",
//	        logger.TenantID("acme"),
//	        logger.Duration(time.Since(start)),
//	    )
//	}
//
// # Configuration
//
// The behaviour of New can be tuned with a variety of Option helpers:
//
//   - WithDevelopment, WithStaging, WithProduction, WithEnvironment: presets per environment.
//   - WithFormat, WithTextFormatter, WithJSONFormatter: override output format.
//   - WithLevel: set a custom slog.Level.
//   - WithAttr: attach static attributes.
//   - WithContextExtractors, WithContextValue: inject attributes from context.
//
// # Error Handling
//
// Helper functions Error and Errors produce attributes only when the supplied
// error value is non-nil allowing calls like:
//
//	log.Info("operation succeeded", logger.Error(err))
//
// without an additional nil check.
package logger
