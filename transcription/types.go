package transcription

import "time"

// Mode selects how audio reaches the speech-to-text backend.
type Mode string

const (
	// ModeBatch transcodes the finished recording and posts it once.
	ModeBatch Mode = "batch"
	// ModeStream opens one upstream websocket per session.
	ModeStream Mode = "stream"
	// ModeRelay multiplexes all sessions over one shared upstream.
	ModeRelay Mode = "relay"
)

// Streaming reports whether m forwards audio while it is captured.
func (m Mode) Streaming() bool { return m == ModeStream || m == ModeRelay }

// TranscriptionRequest holds parameters for a batch transcription call.
type TranscriptionRequest struct {
	// AudioPath is the path to the audio file to transcribe.
	AudioPath string `json:"audio_path"`
	// Language is the expected language of the audio (e.g. "en").
	Language string `json:"language,omitempty"`
	// Model overrides the backend's configured model.
	Model string `json:"model,omitempty"`
}

// TranscriptionResponse holds the result of a batch transcription call.
type TranscriptionResponse struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	Language string  `json:"language,omitempty"`
}

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Start and End are offsets in seconds.
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is one transcript update for a session. A session sees zero or
// more partials followed by at most one final.
type Result struct {
	Final    bool      `json:"-"`
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	// Latency is the time from submission to result, set on finals.
	Latency time.Duration `json:"-"`
}

// Result converts a batch response into a final Result.
func (r *TranscriptionResponse) Result() Result {
	return Result{
		Final:    true,
		Text:     r.Text,
		Language: r.Language,
		Segments: r.Segments,
		Duration: r.Duration,
	}
}
