// Package server is the relay's HTTP front end: a Gin engine for REST and
// websocket routes, a root ServeMux for handlers that need the raw
// ResponseWriter (server-sent events), and h2c so both serve HTTP/2
// without TLS.
//
// Standard middleware (server/middleware) wraps every route: panic
// recovery, request ids, CORS, body limits and request logging. Per-route
// rate limiting is applied by the caller.
//
// Built-in endpoints (server/endpoint):
//
//   - /health: aggregated component health, 503 when any is unhealthy
//   - /ready: readiness for load balancers
//   - /info: build version and component descriptions
//   - /metrics: live gauges such as open connections
package server
