// Package sessionapi exposes the session manager over JSON/HTTP.
//
// Routes (chi):
//
//	POST   /tenants/{tenantID}/sessions                       create
//	POST   /sessions/validate                                 validate
//	POST   /tenants/{tenantID}/sessions/{sessionID}/refresh   refresh
//	DELETE /tenants/{tenantID}/sessions/{sessionID}           delete
//	GET    /tenants/{tenantID}/users/{userID}/sessions        list a user's sessions
//	DELETE /tenants/{tenantID}/users/{userID}/sessions        log a user out everywhere
//	GET    /tenants/{tenantID}/stats                          tenant statistics
//
// Every response uses the same envelope:
//
//	{"code": 200, "data": {...}, "request_id": "..."}
//	{"code": 404, "error": {"code": "session_not_found", "message": "..."}, "request_id": "..."}
//
// A rejected token is not an error: validate answers 200 with valid=false and
// a reason code. Backend outages answer 503 with Retry-After so callers can
// tell them apart from invalid sessions.
//
// The API is meant for trusted internal callers (login service, admin
// tooling). Put it behind network policy or an authenticating proxy.
package sessionapi
