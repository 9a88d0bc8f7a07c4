package errors

// ErrorCode is the machine-readable code carried in error frames and
// HTTP problem bodies.
type ErrorCode string

// Generic codes shared with the HTTP surface.
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Capture pipeline codes, one per stage that can end a session.
const (
	ErrCodeChannel        ErrorCode = "CHANNEL_ERROR"
	ErrCodeBuffer         ErrorCode = "BUFFER_ERROR"
	ErrCodeTranscode      ErrorCode = "TRANSCODE_ERROR"
	ErrCodeTranscription  ErrorCode = "TRANSCRIPTION_ERROR"
	ErrCodeSummarization  ErrorCode = "SUMMARIZATION_ERROR"
	ErrCodeSessionTimeout ErrorCode = "SESSION_TIMEOUT"
)
