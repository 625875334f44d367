// Package httpserver runs an http.Handler with sane timeouts and a context
// driven graceful shutdown.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// Run returns once ctx is cancelled and in-flight requests drained, which
// lets it sit in an errgroup next to other long-running components. Signal
// handling belongs to the caller (signal.NotifyContext).
//
// LivenessHandler and ReadinessHandler implement the usual probe endpoints.
// Readiness runs named checks, such as a Redis ping, and answers 503 with a
// per-check breakdown when any of them fails.
package httpserver
