package logger

import "time"

// Field keys shared across packages so log queries can rely on them.
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldSessionID    = "session_id"
	FieldConnectionID = "connection_id"
	FieldOperation    = "operation"
	FieldStatus       = "status"
	FieldError        = "error"
	FieldDuration     = "duration_ms"
	FieldState        = "state"
	FieldBytes        = "bytes"
	FieldPath         = "path"
	FieldExitCode     = "exit_code"
	FieldBackend      = "backend"
)

// Fields builds a field map from alternating key-value pairs. Non-string
// keys and a trailing key without a value are skipped.
//
//	log.Info("Capture finalized", logger.Fields(logger.FieldBytes, 4096))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields names the failed operation and its error.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{FieldOperation: op, FieldError: err.Error()}
}

// DurationFields names a pipeline stage and how long it took.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{FieldOperation: op, FieldDuration: d.Milliseconds()}
}

// MergeWithError adds err to fields, allocating when fields is nil.
func MergeWithError(fields map[string]interface{}, err error) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{}, 1)
	}
	fields[FieldError] = err.Error()
	return fields
}
