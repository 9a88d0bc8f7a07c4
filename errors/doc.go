// Package errors defines AppError, the relay's structured error: a code from
// codes.go, an HTTP status derived from it, optional details and a retryable
// flag that the resilience package and the websocket error frames consult.
package errors
