package main

import (
	"fmt"

	"github.com/kbukum/voxrelay/bootstrap"
	"github.com/kbukum/voxrelay/component"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/observability"
	"github.com/kbukum/voxrelay/provider"
	"github.com/kbukum/voxrelay/relay"
	"github.com/kbukum/voxrelay/server"
	"github.com/kbukum/voxrelay/server/endpoint"
	"github.com/kbukum/voxrelay/session"
	"github.com/kbukum/voxrelay/storage"
	"github.com/kbukum/voxrelay/summarization/openai"
	"github.com/kbukum/voxrelay/transcode"
	"github.com/kbukum/voxrelay/transcription"
	"github.com/kbukum/voxrelay/transcription/whisper"
	"github.com/kbukum/voxrelay/transcription/wsstream"
	"github.com/kbukum/voxrelay/util"
	"github.com/kbukum/voxrelay/version"

	_ "github.com/kbukum/voxrelay/storage/local"
	_ "github.com/kbukum/voxrelay/storage/s3"
)

// registerComponents builds every service from app.Cfg and registers them.
// Registration order is start order; shutdown runs in reverse, so the HTTP
// server stops accepting before live sessions are drained, and sessions
// drain before the hub and storage they publish to go away.
func registerComponents(app *bootstrap.App[*Config]) error {
	cfg, log := app.Cfg, app.Logger

	telemetry := observability.NewComponent(cfg.Observability, cfg.Name, version.Get().Short(), cfg.Environment, log)
	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	hub := relay.NewHub(log)
	var feed *relay.Feed
	var streamer transcription.Streamer
	var batch *provider.Manager[transcription.Provider]
	switch cfg.Transcription.Mode {
	case transcription.ModeBatch:
		if batch, err = newWhisperManager(cfg, log); err != nil {
			return err
		}
	case transcription.ModeStream:
		streamer = wsstream.New(cfg.Stream, log)
	case transcription.ModeRelay:
		feed = relay.NewFeed(cfg.Relay, log)
		streamer = feed
	}
	gateway, err := transcription.NewGateway(cfg.Transcription, batch, streamer, metrics, log)
	if err != nil {
		return err
	}

	deps := session.Deps{
		Transcoder:  transcode.New(cfg.Transcode, metrics, log),
		Transcriber: gateway,
		Metrics:     metrics,
	}
	if cfg.Summarization.Active() {
		deps.Summarizer = openai.New(cfg.Summarization, log)
		log.Info("Summarization enabled", logger.Fields(
			"model", cfg.Summarization.Model,
			"api_key", util.MaskSecret(cfg.Summarization.APIKey, 3),
		))
	} else {
		log.Info("Summarization disabled", logger.Fields("enabled", cfg.Summarization.Enabled))
	}
	store := storage.NewComponent(cfg.Storage, log)
	if store.Enabled() {
		deps.Archive = store
	}

	handler := session.NewHandler(cfg.Session, deps, log,
		session.WithHub(hub),
		session.WithAllowedOrigins(cfg.Server.CORS.AllowedOrigins),
	)

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()
	registerRoutes(srv, cfg.Server, handler, hub, log)
	srv.RegisterDefaultEndpoints(cfg.Name, app.Components.HealthAll, app.Components.Describe, map[string]endpoint.Gauge{
		"connections": handler.Connections,
		"sessions":    handler.Registry().Len,
		"observers":   hub.ClientCount,
	})

	for _, c := range []component.Component{
		telemetry,
		store,
		relay.NewComponent(hub, feed),
		transcription.NewComponent(gateway),
		session.NewComponent(handler),
		server.NewComponent(srv),
	} {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}
	return nil
}

// newWhisperManager registers the primary Whisper sidecar and its
// fallbacks behind the configured selection strategy.
func newWhisperManager(cfg *Config, log *logger.Logger) (*provider.Manager[transcription.Provider], error) {
	registry := provider.NewRegistry[transcription.Provider]()
	registry.RegisterFactory(whisper.ProviderName, whisper.Factory(log))

	backends := append([]whisper.Config{cfg.Whisper}, cfg.WhisperFallbacks...)
	priority := make([]string, len(backends))
	for i, b := range backends {
		priority[i] = b.Name
	}
	selector, err := provider.NewSelector[transcription.Provider](cfg.Transcription.Selection, priority)
	if err != nil {
		return nil, err
	}

	manager := provider.NewManager(registry, selector, log)
	for _, b := range backends {
		err := manager.Initialize(b.Name, whisper.ProviderName, map[string]any{
			"name":     b.Name,
			"url":      b.URL,
			"model":    b.Model,
			"language": b.Language,
			"timeout":  b.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}
	return manager, nil
}
