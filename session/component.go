package session

import (
	"context"
	"fmt"

	"github.com/kbukum/voxrelay/component"
)

// Component drains live sessions on shutdown and reports their count.
type Component struct {
	handler *Handler
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps h.
func NewComponent(h *Handler) *Component { return &Component{handler: h} }

// Name implements component.Component.
func (c *Component) Name() string { return "sessions" }

// Start implements component.Component. Connections are accepted by the
// HTTP server, so there is nothing to start.
func (c *Component) Start(_ context.Context) error { return nil }

// Stop cancels live sessions and waits for them within the shutdown timeout.
func (c *Component) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.handler.cfg.ShutdownTimeout)
	defer cancel()
	return c.handler.Shutdown(ctx)
}

// Health reports live counts. Sessions never make the process unhealthy.
func (c *Component) Health(_ context.Context) component.Health {
	msg := fmt.Sprintf("%d connections, %d sessions", c.handler.Connections(), c.handler.Registry().Len())
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: msg}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	mode := "batch"
	if c.handler.deps.Transcriber != nil {
		mode = string(c.handler.deps.Transcriber.Mode())
	}
	return component.Description{
		Name:    "Sessions",
		Type:    "websocket",
		Details: fmt.Sprintf("mode=%s idle_timeout=%s spool=%s", mode, c.handler.cfg.IdleTimeout, c.handler.cfg.SpoolDir),
	}
}
