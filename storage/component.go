package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kbukum/voxrelay/component"
	"github.com/kbukum/voxrelay/logger"
)

// ErrNotStarted is returned by Save before Start has built the backend.
var ErrNotStarted = errors.New("storage: not started")

// Component manages the recording store's lifecycle.
type Component struct {
	cfg Config
	log *logger.Logger

	mu      sync.RWMutex
	storage Storage
	archive *Archive
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a storage component for use with the component registry.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("storage")}
}

// Enabled reports whether recordings are persisted at all.
func (c *Component) Enabled() bool { return c.cfg.Enabled }

// Storage returns the backend, or nil before Start.
func (c *Component) Storage() Storage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storage
}

// Save persists a finalized recording. See Archive.Save.
func (c *Component) Save(ctx context.Context, sessionID, localPath string) (string, error) {
	c.mu.RLock()
	archive := c.archive
	c.mu.RUnlock()
	if archive == nil {
		return "", ErrNotStarted
	}
	return archive.Save(ctx, sessionID, localPath)
}

// Name returns the component name.
func (c *Component) Name() string { return "storage" }

// Start initializes the backend.
func (c *Component) Start(_ context.Context) error {
	if !c.cfg.Enabled {
		c.log.Info("Recording storage is disabled")
		return nil
	}
	s, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	c.mu.Lock()
	c.storage = s
	c.archive = NewArchive(s, c.cfg, c.log)
	c.mu.Unlock()
	return nil
}

// Stop releases the backend.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	c.storage = nil
	c.archive = nil
	c.mu.Unlock()
	return nil
}

// Health pings the backend when it supports Pinger.
func (c *Component) Health(ctx context.Context) component.Health {
	if !c.cfg.Enabled {
		return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: "disabled"}
	}
	s := c.Storage()
	if s == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "storage not initialized"}
	}
	if p, ok := s.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return component.Health{
				Name:    c.Name(),
				Status:  component.StatusUnhealthy,
				Message: fmt.Sprintf("health check failed: %v", err),
			}
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe returns a summary for the startup banner.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("provider=%s prefix=%s", c.cfg.Provider, c.cfg.Prefix)
	switch c.cfg.Provider {
	case ProviderS3:
		details += " bucket=" + c.cfg.Bucket
	case ProviderLocal:
		details += " path=" + c.cfg.BasePath
	}
	if !c.cfg.Enabled {
		details = "disabled"
	}
	return component.Description{Name: "Storage", Type: "storage", Details: details}
}
