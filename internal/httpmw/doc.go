// Package httpmw holds the middleware for the public listener.
//
// httpserver.NewHandler composes them outermost first: security headers,
// recover, request id, client ip, rate limiting, tracing, metrics,
// request-scoped logger, then the Nadi protocol headers and the chi router.
//
// Query strings and user agents are not logged.
package httpmw
