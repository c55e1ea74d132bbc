// Package httpmw provides HTTP middleware for the public API server.
//
// httpserver.NewHandler composes them outermost first: security headers,
// panic recovery, CORS, request ID, client IP extraction, rate limiting,
// OTEL tracing, trace response headers, catalog headers, metrics, request
// logger, then the chi router (compression, route annotation, access log
// and body limit run inside it).
//
// Request bodies, query values and headers other than the ones named here
// are never copied into logs.
package httpmw
