package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/kbukum/voxrelay/logger"
)

// Archive saves finalized session recordings under a key prefix.
type Archive struct {
	store   Storage
	prefix  string
	timeout time.Duration
	log     *logger.Logger
}

// NewArchive wraps store with the key layout and timeout from cfg.
func NewArchive(store Storage, cfg Config, log *logger.Logger) *Archive {
	cfg.ApplyDefaults()
	return &Archive{
		store:   store,
		prefix:  cfg.Prefix,
		timeout: cfg.UploadTimeout,
		log:     log.WithComponent("storage"),
	}
}

// Key returns <prefix>/<sessionID>/<file>, where file is the base name
// of localPath.
func (a *Archive) Key(sessionID, localPath string) string {
	return path.Join(a.prefix, sessionID, filepath.Base(localPath))
}

// Save uploads the file at localPath and returns its stored location.
// The local file is left in place.
func (a *Archive) Save(ctx context.Context, sessionID, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	key := a.Key(sessionID, localPath)
	start := time.Now()
	if err := a.store.Upload(ctx, key, f); err != nil {
		return "", err
	}
	location, err := a.store.URL(ctx, key)
	if err != nil {
		return "", err
	}

	fields := logger.DurationFields("archive", time.Since(start))
	fields[logger.FieldSessionID] = sessionID
	fields[logger.FieldPath] = location
	if info, statErr := f.Stat(); statErr == nil {
		fields[logger.FieldBytes] = info.Size()
	}
	a.log.Info("Recording saved", fields)
	return location, nil
}
