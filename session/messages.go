package session

import (
	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/transcription"
)

// Server message types.
const (
	MsgAudioReceived  = "audio-received"
	MsgTranscription  = "transcription"
	MsgTranscript     = "transcript"
	MsgSummary        = "summary"
	MsgAudioSaved     = "audio-saved"
	MsgAudioSaveError = "audio-save-error"
	MsgError          = "error"
)

// AudioReceived acknowledges one audio chunk.
type AudioReceived struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Size      int    `json:"size"`
}

// TranscriptionMessage carries a batch transcript.
type TranscriptionMessage struct {
	Type string               `json:"type"`
	Data transcription.Result `json:"data"`
}

// TranscriptMessage carries a streaming partial or final.
type TranscriptMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Partial  bool   `json:"partial"`
	Language string `json:"language,omitempty"`
}

// SummaryMessage carries the summary of a final transcript.
type SummaryMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// AudioSaved reports where the finalized recording was stored.
type AudioSaved struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// AudioSaveError reports that the recording could not be stored.
type AudioSaveError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ErrorMessage reports a terminal session error.
type ErrorMessage struct {
	Type  string              `json:"type"`
	Error apperrors.Body `json:"error"`
}

func newErrorMessage(err *apperrors.AppError) ErrorMessage {
	return ErrorMessage{Type: MsgError, Error: err.Body()}
}

func newTranscriptMessage(r transcription.Result) TranscriptMessage {
	return TranscriptMessage{Type: MsgTranscript, Text: r.Text, Partial: !r.Final, Language: r.Language}
}
