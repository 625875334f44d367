// Package session implements a multi-tenant session manager on top of a
// key-value backend with atomic multi-key transactions (Redis in production,
// an in-memory store for development and tests).
//
// Every session lives in three places: its record (plus a lightweight meta
// shadow), the set of session ids of its user, and the set of session ids of
// its tenant. Create, delete and delete-all mutate all of them inside one
// transaction. Records expire through storage TTL; the index sets may keep
// pointing at them until the Sweeper reconciles them, which every read path
// tolerates.
//
// # Architecture
//
//	┌────────────┐ token  ┌──────────────┐ verify ┌─────────────┐
//	│ Middleware │ ─────► │   Manager    │ ─────► │ token.Codec │
//	└────────────┘        └──────────────┘        └─────────────┘
//	                             │ Store
//	                             ▼
//	             ┌──────────────────────────────┐
//	             │ RedisStore / MemoryStore     │ ◄── Sweeper (Reconcile)
//	             └──────────────────────────────┘
//
// Keys are built by KeyNamer as <prefix>:{<tenant>}:<kind>[:<id>]. The tenant
// segment is a Redis Cluster hash tag, so all keys of a tenant share a slot
// and keys of different tenants can never collide.
//
// # Usage
//
//	codec, err := token.New([]byte(secret))
//	store := session.NewRedisStore(redisClient, session.WithKeyPrefix("sess"))
//	manager, err := session.New(store, codec)
//
//	issued, err := manager.Create(ctx, session.CreateRequest{
//	    TenantID: "acme",
//	    UserID:   "user-1",
//	    Profile:  session.Profile{Email: "a@acme.io", Role: "admin"},
//	})
//
//	res, err := manager.Validate(ctx, issued.Token)
//	switch {
//	case err != nil:
//	    // backend failure: retry or answer 503, never log the user out
//	case !res.Valid:
//	    // res.Reason is ErrTokenExpired, ErrTokenInvalid, ErrSessionNotFound, ...
//	case res.RequiresRefresh:
//	    issued, err = manager.Refresh(ctx, res.Session.TenantID, res.Session.ID, 0)
//	}
//
// Validate never extends a session; only Refresh does. It bumps
// LastAccessedAt and rewrites the record with its remaining TTL
// (Config.TouchInterval throttles that write).
//
// HTTP integration:
//
//	router.Use(tenant.Middleware(tenant.NewHeaderResolver("")))
//	router.Use(session.Middleware(manager, session.WithAutoRefresh(0)))
//
// # Cleanup
//
//	sweeper := session.NewSweeper(store, session.WithSweepConfig(cfg))
//	g.Go(sweeper.Run(ctx))
//
// Start the sweeper once per process. Stop waits for the running pass.
//
// # Configuration
//
// Config is read from SESSION_* environment variables: DEFAULT_TTL (168h),
// REFRESH_THRESHOLD (24h), TOUCH_INTERVAL (0), KEY_PREFIX (sess),
// SWEEP_INTERVAL (1h) and SWEEP_TIMEOUT (5m).
//
// # Errors
//
// Rejections are values (ValidationResult.Reason), infrastructure failures
// are errors wrapping ErrStoreUnavailable. All sentinels work with errors.Is.
package session
