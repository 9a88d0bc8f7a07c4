package transcription

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Message types on the streaming upstream.
const (
	MessageAudioStream = "audio-stream"
	MessageAudioEnd    = "audio-end"
	MessageTranscript  = "transcript"
)

// WireMessage is the JSON frame exchanged with a streaming whisper server.
// Session is set only on a multiplexed upstream.
type WireMessage struct {
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Session   string `json:"session,omitempty"`
	Text      string `json:"text,omitempty"`
	Partial   bool   `json:"partial,omitempty"`
	Language  string `json:"language,omitempty"`
}

// AudioStreamMessage builds an outbound audio chunk.
func AudioStreamMessage(sessionID string, pcm []byte) WireMessage {
	return WireMessage{
		Type:      MessageAudioStream,
		Data:      base64.StdEncoding.EncodeToString(pcm),
		Timestamp: time.Now().UnixMilli(),
		Session:   sessionID,
	}
}

// AudioEndMessage builds an outbound end-of-audio marker.
func AudioEndMessage(sessionID string, replace []byte) WireMessage {
	msg := WireMessage{Type: MessageAudioEnd, Session: sessionID}
	if len(replace) > 0 {
		msg.Data = base64.StdEncoding.EncodeToString(replace)
	}
	return msg
}

// ParseTranscript decodes an inbound frame. ok is false for frames that
// are not transcripts.
func ParseTranscript(payload []byte) (msg WireMessage, ok bool, err error) {
	if err := json.Unmarshal(payload, &msg); err != nil {
		return WireMessage{}, false, fmt.Errorf("decode upstream message: %w", err)
	}
	return msg, msg.Type == MessageTranscript, nil
}

// Result converts an inbound transcript into a Result.
func (m WireMessage) Result() Result {
	return Result{Final: !m.Partial, Text: m.Text, Language: m.Language}
}
