// Package relay routes session-tagged messages to the subscribers of
// that session and nobody else.
//
// Hub keys observers by "session:<id>:observer:<uuid>" and delivers by
// glob pattern, dropping messages for an observer that falls behind. Feed
// shares one upstream transcription websocket among all sessions, tagging
// outbound audio and queueing inbound transcripts on the stream with the
// same tag, losslessly and in upstream order. ServeObserver exposes a
// connection's outbound messages over SSE.
package relay
