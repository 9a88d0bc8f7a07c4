// Package storage persists finalized session recordings to a pluggable
// object store.
package storage

import (
	"context"
	"io"
)

// Storage is an object store addressed by slash-separated keys.
type Storage interface {
	// Upload writes everything from reader to key, replacing any existing object.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Delete removes key. It returns nil if the object does not exist.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns where the object at key can be found.
	URL(ctx context.Context, key string) (string, error)
}

// Pinger is optionally implemented by backends that can check their
// reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
