package transcription

import (
	"context"

	"github.com/kbukum/voxrelay/provider"
)

// Provider is a batch speech-to-text backend.
type Provider interface {
	provider.Provider

	// Transcribe sends a finished audio file and returns the transcript.
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
}

// Stream is one session's live upstream. Send and End are called from the
// session loop only; Results is read by the same loop.
type Stream interface {
	// Send forwards a PCM chunk.
	Send(ctx context.Context, pcm []byte) error
	// End marks the end of audio. A non-empty replace supersedes
	// everything sent so far.
	End(ctx context.Context, replace []byte) error
	// Results yields partials and then at most one final. It is closed
	// when the upstream ends or the stream is closed.
	Results() <-chan Result
	// Close releases the upstream. It is idempotent.
	Close() error
}

// Streamer opens live upstreams.
type Streamer interface {
	Open(ctx context.Context, sessionID string) (Stream, error)
}
