package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/relay"
	"github.com/kbukum/voxrelay/server"
	"github.com/kbukum/voxrelay/server/middleware"
	"github.com/kbukum/voxrelay/session"
	"github.com/kbukum/voxrelay/validation"
)

// registerRoutes mounts the client websocket, the session listing and the
// observer stream.
func registerRoutes(srv *server.Server, cfg server.Config, handler *session.Handler, hub *relay.Hub, log *logger.Logger) {
	engine := srv.GinEngine()

	var ws []gin.HandlerFunc
	if cfg.ConnectionsPerMinute > 0 {
		ws = append(ws, middleware.GinWrap(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.ConnectionsPerMinute,
			KeyFunc:           middleware.ClientIP,
		})))
	}
	ws = append(ws, gin.WrapH(handler))
	engine.GET("/ws", ws...)
	engine.GET("/", ws...)

	sessions := &sessionPort{registry: handler.Registry()}
	engine.GET("/sessions", sessions.List)
	engine.GET("/sessions/:id", sessions.Get)

	// SSE needs the unwrapped writer, so it bypasses Gin.
	srv.Handle("GET /sessions/{id}/events", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connID := r.PathValue("id")
		if _, err := validation.ValidateUUID("id", connID); err != nil {
			server.WriteError(w, err)
			return
		}
		relay.ServeObserver(hub, w, r, connID, log)
	}))
}

type sessionPort struct {
	registry *session.Registry
}

func (p *sessionPort) List(c *gin.Context) {
	server.RespondList(c, p.registry.List())
}

func (p *sessionPort) Get(c *gin.Context) {
	id := c.Param("id")
	info, ok := p.registry.Get(id)
	if !ok {
		server.RespondWithError(c, apperrors.NotFound("session", id))
		return
	}
	server.RespondOK(c, info)
}
