package provider

import "context"

// Provider is a named backend the relay can route work to, such as one
// whisper endpoint among several.
type Provider interface {
	Name() string
	// IsAvailable reports whether the backend can take a request now. It
	// may reach the network and should honor ctx.
	IsAvailable(ctx context.Context) bool
}

// Factory builds a provider from a loosely typed settings map, the shape
// config sections decode into.
type Factory[T Provider] func(settings map[string]any) (T, error)
