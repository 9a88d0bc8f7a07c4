package transcription

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kbukum/voxrelay/component"
	"github.com/kbukum/voxrelay/resilience"
)

// Component exposes the gateway's backends to the lifecycle registry.
type Component struct {
	gateway *Gateway
}

var _ component.Component = (*Component)(nil)

// NewComponent wraps g.
func NewComponent(g *Gateway) *Component { return &Component{gateway: g} }

// Name implements component.Component.
func (c *Component) Name() string { return "transcription" }

// Start implements component.Component. Upstreams are dialed on demand.
func (c *Component) Start(ctx context.Context) error { return nil }

// Stop closes the streamer when it holds a shared connection.
func (c *Component) Stop(ctx context.Context) error {
	if closer, ok := c.gateway.streamer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Health checks the batch backends. Streaming upstreams are per session
// and are not checked.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.gateway.BreakerState() == resilience.StateOpen {
		h.Status = component.StatusDegraded
		h.Message = "circuit open"
		return h
	}

	providers := c.gateway.Providers()
	if len(providers) == 0 {
		return h
	}
	var down []string
	for _, p := range providers {
		if !p.IsAvailable(ctx) {
			down = append(down, p.Name())
		}
	}
	switch {
	case len(down) == len(providers):
		h.Status = component.StatusUnhealthy
		h.Message = "no batch backend reachable"
	case len(down) > 0:
		h.Status = component.StatusDegraded
		h.Message = "unreachable: " + strings.Join(down, ", ")
	}
	return h
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Transcription",
		Type:    "transcription",
		Details: fmt.Sprintf("mode=%s backends=%d", c.gateway.Mode(), len(c.gateway.Providers())),
	}
}
