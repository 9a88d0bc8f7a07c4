package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/voxrelay/component"
)

// Component runs the Hub's event loop under the lifecycle registry.
type Component struct {
	hub     *Hub
	feed    *Feed
	running bool
	wg      sync.WaitGroup
	mu      sync.Mutex
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps hub. feed may be nil when the relay mode is off.
func NewComponent(hub *Hub, feed *Feed) *Component {
	return &Component{hub: hub, feed: feed}
}

// Hub returns the underlying hub.
func (c *Component) Hub() *Hub { return c.hub }

// Name implements component.Component.
func (c *Component) Name() string { return "relay" }

// Start launches the hub loop.
func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

// Stop drops the shared upstream, stops the hub and waits for its loop.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.feed != nil {
		err = c.feed.Close()
	}
	c.hub.Stop()
	c.wg.Wait()
	c.running = false
	return err
}

// Health implements component.Component.
func (c *Component) Health(_ context.Context) component.Health {
	msg := fmt.Sprintf("%d subscribers", c.hub.ClientCount())
	if c.feed != nil {
		msg += fmt.Sprintf(", feed streams=%d connected=%t", c.feed.Refs(), c.feed.Connected())
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: msg}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	details := "observers only"
	if c.feed != nil {
		details = "feed " + c.feed.cfg.URL
	}
	return component.Description{Name: "Result Relay", Type: "relay", Details: details}
}
