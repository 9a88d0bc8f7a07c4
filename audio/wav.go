// Package audio encodes and decodes the canonical 44-byte-header WAV
// container used for captured PCM.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the length of a canonical RIFF/WAVE header.
	HeaderSize = 44

	Channels      = 1
	BitsPerSample = 16
	formatPCM     = 1
)

// Header mirrors the on-disk layout of a canonical PCM WAV header.
type Header struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// NewHeader builds a mono 16-bit header for dataLen bytes of PCM.
func NewHeader(dataLen uint32, sampleRate int) Header {
	blockAlign := uint16(Channels * BitsPerSample / 8)
	return Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataLen,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   formatPCM,
		NumChannels:   Channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataLen,
	}
}

// Bytes serializes the header little-endian.
func (h Header) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	_ = binary.Write(buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// Duration returns the playback length of the declared payload in seconds.
func (h Header) Duration() float64 {
	if h.ByteRate == 0 {
		return 0
	}
	return float64(h.Subchunk2Size) / float64(h.ByteRate)
}

// WriteHeader writes the header for dataLen payload bytes at offset 0 of w.
// Spool files reserve HeaderSize bytes up front and patch them here once the
// final length is known.
func WriteHeader(w io.WriterAt, dataLen int64, sampleRate int) error {
	if dataLen < 0 || dataLen > math.MaxUint32-36 {
		return fmt.Errorf("audio: payload of %d bytes does not fit a WAV header", dataLen)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", sampleRate)
	}
	if _, err := w.WriteAt(NewHeader(uint32(dataLen), sampleRate).Bytes(), 0); err != nil {
		return fmt.Errorf("audio: write header: %w", err)
	}
	return nil
}

// Encode wraps raw PCM in a WAV container.
func Encode(pcm []byte, sampleRate int) []byte {
	out := make([]byte, 0, HeaderSize+len(pcm))
	out = append(out, NewHeader(uint32(len(pcm)), sampleRate).Bytes()...)
	return append(out, pcm...)
}

// ReadHeader reads and validates a canonical mono 16-bit PCM header.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("audio: read header: %w", err)
	}
	switch {
	case string(h.ChunkID[:]) != "RIFF":
		return h, fmt.Errorf("audio: missing RIFF header")
	case string(h.Format[:]) != "WAVE":
		return h, fmt.Errorf("audio: missing WAVE format")
	case string(h.Subchunk1ID[:]) != "fmt " || h.Subchunk1Size != 16:
		return h, fmt.Errorf("audio: unexpected fmt chunk")
	case string(h.Subchunk2ID[:]) != "data":
		return h, fmt.Errorf("audio: missing data chunk")
	case h.AudioFormat != formatPCM:
		return h, fmt.Errorf("audio: unsupported format %d", h.AudioFormat)
	case h.NumChannels != Channels || h.BitsPerSample != BitsPerSample:
		return h, fmt.Errorf("audio: expected mono 16-bit, got %d channels at %d bits", h.NumChannels, h.BitsPerSample)
	}
	return h, nil
}

// Decode splits a WAV file into its header and PCM payload. The payload
// length must match the declared data size.
func Decode(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, fmt.Errorf("audio: need at least %d bytes, got %d", HeaderSize, len(data))
	}
	h, err := ReadHeader(bytes.NewReader(data[:HeaderSize]))
	if err != nil {
		return h, nil, err
	}
	pcm := data[HeaderSize:]
	if uint32(len(pcm)) != h.Subchunk2Size {
		return h, nil, fmt.Errorf("audio: header declares %d bytes, found %d", h.Subchunk2Size, len(pcm))
	}
	return h, pcm, nil
}
