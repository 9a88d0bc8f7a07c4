// Package transcription is the gateway between capture sessions and
// speech-to-text backends.
//
// Batch backends implement Provider and receive one finished file per
// session. Streaming backends implement Streamer and receive PCM while it
// is captured, answering with partial transcripts and one final:
//
//	stream, err := gw.Open(ctx, sessionID)
//	stream.Send(ctx, pcm)
//	stream.End(ctx, nil)
//	for r := range stream.Results() { ... }
//
// The streaming wire format (WireMessage) is shared by transcription/wsstream
// and the multiplexed feed in relay.
package transcription
