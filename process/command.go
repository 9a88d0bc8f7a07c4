package process

import (
	"io"
	"time"
)

// Command describes one subprocess invocation.
type Command struct {
	// Binary is an absolute path or a name looked up on PATH.
	Binary string
	Args   []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env holds extra KEY=value pairs appended to the parent environment.
	Env   []string
	Stdin io.Reader
	// GracePeriod is the delay between SIGTERM and SIGKILL on cancellation.
	// Defaults to 5s.
	GracePeriod time.Duration
}
