// Package requestid correlates log records and responses of one request.
//
// Middleware accepts a well-formed X-Request-ID from the caller or generates
// a UUIDv7, stores it in the context and echoes it in the response header.
// LoggerExtractor plugs the id into pkg/logger so every record logged with
// the request context carries request_id.
package requestid
