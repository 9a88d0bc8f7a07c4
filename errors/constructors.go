package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// maxStderrDetail caps how much ffmpeg stderr lands in error details.
const maxStderrDetail = 512

// ServiceUnavailable reports a backend that is down or behind an open
// circuit breaker.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Details: details,
	}
}

// InvalidInput reports a malformed client frame or request field.
func InvalidInput(field, reason string) *AppError {
	e := &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest,
	}
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Validation reports a request body that failed struct validation.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message, HTTPStatus: http.StatusBadRequest}
}

func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// ChannelFailed reports a client connection that dropped or could not
// be written.
func ChannelFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeChannel, Message: "The client connection was lost.",
		HTTPStatus: http.StatusBadRequest, Cause: cause,
	}
}

// BufferFailed reports a spool write or flush failure. op names the
// buffer operation.
func BufferFailed(op string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeBuffer, Message: "Audio could not be buffered on the server.",
		HTTPStatus: http.StatusInsufficientStorage,
		Details:    map[string]any{"operation": op}, Cause: cause,
	}
}

// TranscodeFailed reports a non-zero ffmpeg exit. Only the tail of
// stderr is kept.
func TranscodeFailed(exitCode int, stderr []byte) *AppError {
	e := &AppError{
		Code: ErrCodeTranscode, Message: fmt.Sprintf("Audio conversion failed with exit code %d.", exitCode),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"exit_code": exitCode},
	}
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		if len(msg) > maxStderrDetail {
			msg = msg[len(msg)-maxStderrDetail:]
		}
		e.Details["stderr"] = msg
	}
	return e
}

// TranscriptionFailed reports a speech-to-text backend failure. It is
// retryable so the gateway may try again.
func TranscriptionFailed(backend string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeTranscription, Message: "Transcription failed. Please try again.",
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"backend": backend}, Cause: cause,
	}
}

// SummarizationFailed is logged by the session and never sent: a failed
// summary degrades to none.
func SummarizationFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeSummarization, Message: "Summary is unavailable for this transcript.",
		HTTPStatus: http.StatusBadGateway, Cause: cause,
	}
}

func SessionTimeout(idle string) *AppError {
	return &AppError{
		Code: ErrCodeSessionTimeout, Message: "The session was closed after a period of inactivity.",
		HTTPStatus: http.StatusRequestTimeout,
		Details:    map[string]any{"idle_timeout": idle},
	}
}

// ExitCode extracts the ffmpeg exit code from a TRANSCODE_ERROR.
func ExitCode(err error) (int, bool) {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Code != ErrCodeTranscode {
		return 0, false
	}
	code, ok := appErr.Details["exit_code"].(int)
	return code, ok
}
