// Package logger provides structured logging for voxrelay using zerolog.
//
// Loggers are component-scoped and pick up session and request ids from
// the context, so every line emitted while a capture session runs can be
// correlated back to its connection.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("voxrelay").WithComponent("session")
//	log.WithContext(ctx).Info("state changed", logger.Fields(logger.FieldState, "capturing"))
package logger
