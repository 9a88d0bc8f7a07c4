package process

import (
	"fmt"
	"time"
)

// Result holds the captured output of a finished subprocess.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 when the process was killed or never started.
	ExitCode int
	Duration time.Duration
}

// ExitError reports a subprocess that ran to completion with a non-zero status.
type ExitError struct {
	Binary string
	Code   int
	Stderr []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process: %s exited with code %d", e.Binary, e.Code)
}
