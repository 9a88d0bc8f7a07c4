// Package bootstrap runs a service binary: it validates the typed config,
// initializes logging, starts the registered components in order, waits
// for SIGINT/SIGTERM and stops everything in reverse.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(observability.NewComponent(...))
//	app.RegisterComponent(server.NewComponent(srv))
//	app.OnStop(drainSessions)
//	return app.Run(ctx)
package bootstrap
