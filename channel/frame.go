package channel

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// StopSentinel is the text frame that ends a binary-protocol capture.
const StopSentinel = "STOP"

// Envelope message types sent by envelope-protocol clients.
const (
	EnvelopeAudioStream = "audio-stream"
	EnvelopeAudioEnd    = "audio-end"
)

// FrameKind discriminates frames.
type FrameKind int

const (
	FrameAudio FrameKind = iota + 1
	FrameStop
	FrameClosed
)

func (k FrameKind) String() string {
	switch k {
	case FrameAudio:
		return "audio"
	case FrameStop:
		return "stop"
	case FrameClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Protocol identifies which client protocol produced a frame.
type Protocol int

const (
	// ProtocolNone marks frames that belong to no protocol (FrameClosed).
	ProtocolNone Protocol = iota
	// ProtocolBinary is raw binary audio terminated by a STOP text frame.
	ProtocolBinary
	// ProtocolEnvelope is base64 PCM inside audio-stream/audio-end JSON.
	ProtocolEnvelope
)

func (p Protocol) String() string {
	switch p {
	case ProtocolBinary:
		return "binary"
	case ProtocolEnvelope:
		return "envelope"
	default:
		return "none"
	}
}

// Frame is one decoded inbound message. Frames are never mutated after decoding.
type Frame struct {
	Kind     FrameKind
	Protocol Protocol
	// Data is the audio payload of a FrameAudio.
	Data []byte
	// Timestamp is the client clock in milliseconds, zero when absent.
	Timestamp int64
	// Replace, when non-nil on a FrameStop, supersedes everything buffered so far.
	Replace []byte
	// Err is the transport error that produced a FrameClosed, nil on a clean close.
	Err error
}

// Envelope is the JSON shape of envelope-protocol messages.
type Envelope struct {
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ErrEmptyAudio is returned for an audio-stream envelope without data.
var ErrEmptyAudio = errors.New("channel: audio-stream envelope carries no data")

// Decode turns one websocket message into a Frame. Errors mean the
// message should be logged and skipped; they never end the connection.
func Decode(messageType int, payload []byte) (Frame, error) {
	switch messageType {
	case websocket.BinaryMessage:
		if len(payload) == 0 {
			return Frame{}, ErrEmptyAudio
		}
		return Frame{Kind: FrameAudio, Protocol: ProtocolBinary, Data: payload}, nil
	case websocket.TextMessage:
	default:
		return Frame{}, fmt.Errorf("channel: unsupported message type %d", messageType)
	}

	if string(bytes.TrimSpace(payload)) == StopSentinel {
		return Frame{Kind: FrameStop, Protocol: ProtocolBinary}, nil
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Frame{}, fmt.Errorf("channel: malformed envelope: %w", err)
	}

	switch env.Type {
	case EnvelopeAudioStream:
		if env.Data == "" {
			return Frame{}, ErrEmptyAudio
		}
		data, err := base64.StdEncoding.DecodeString(env.Data)
		if err != nil {
			return Frame{}, fmt.Errorf("channel: malformed audio payload: %w", err)
		}
		return Frame{Kind: FrameAudio, Protocol: ProtocolEnvelope, Data: data, Timestamp: env.Timestamp}, nil
	case EnvelopeAudioEnd:
		f := Frame{Kind: FrameStop, Protocol: ProtocolEnvelope, Timestamp: env.Timestamp}
		if env.Data != "" {
			data, err := base64.StdEncoding.DecodeString(env.Data)
			if err != nil {
				return Frame{}, fmt.Errorf("channel: malformed audio-end payload: %w", err)
			}
			f.Replace = data
		}
		return f, nil
	default:
		return Frame{}, fmt.Errorf("channel: unknown envelope type %q", env.Type)
	}
}
