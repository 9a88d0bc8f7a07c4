package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is a failure the relay reports to a client, either as an
// HTTP problem body or as a websocket error frame.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause attaches the underlying error. The cause never reaches the
// client.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds one client-visible detail.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithRetryable overrides the retry hint set by the constructor.
func (e *AppError) WithRetryable(retryable bool) *AppError {
	e.Retryable = retryable
	return e
}

// AsAppError finds an AppError anywhere in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Body is the client-visible part of an AppError.
type Body struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// Response wraps Body as {"error": {...}} for HTTP replies.
type Response struct {
	Error Body `json:"error"`
}

// Body strips the cause and HTTP status.
func (e *AppError) Body() Body {
	return Body{Code: e.Code, Message: e.Message, Retryable: e.Retryable, Details: e.Details}
}

// ToResponse returns the HTTP problem body.
func (e *AppError) ToResponse() Response {
	return Response{Error: e.Body()}
}
