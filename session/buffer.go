package session

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kbukum/voxrelay/audio"
	apperrors "github.com/kbukum/voxrelay/errors"
)

// Encoding is how a Buffer lays out its spool file.
type Encoding int

const (
	// EncodingContainer stores client bytes verbatim (browser recorder output).
	EncodingContainer Encoding = iota
	// EncodingPCM16 stores raw 16-bit mono PCM behind a WAV header.
	EncodingPCM16
)

func (e Encoding) String() string {
	if e == EncodingPCM16 {
		return "pcm16"
	}
	return "container"
}

func (e Encoding) ext() string {
	if e == EncodingPCM16 {
		return ".wav"
	}
	return ".webm"
}

// Buffer accumulates one session's audio in a spool file. It is owned by
// a single session goroutine and is not safe for concurrent use.
type Buffer struct {
	file       *os.File
	path       string
	encoding   Encoding
	sampleRate int
	offset     int64
	size       int64
	finalized  bool
	discarded  bool
}

// NewBuffer creates the spool file for sessionID inside dir.
func NewBuffer(dir, sessionID string, encoding Encoding, sampleRate int) (*Buffer, error) {
	f, err := os.CreateTemp(dir, "voxrelay-"+sessionID+"-*"+encoding.ext())
	if err != nil {
		return nil, apperrors.BufferFailed("create", err)
	}
	b := &Buffer{file: f, path: f.Name(), encoding: encoding, sampleRate: sampleRate}
	if encoding == EncodingPCM16 {
		b.offset = audio.HeaderSize
		if _, err := f.Write(make([]byte, audio.HeaderSize)); err != nil {
			_ = b.Discard()
			return nil, apperrors.BufferFailed("create", err)
		}
	}
	return b, nil
}

// Append writes all of p after the bytes already buffered.
func (b *Buffer) Append(p []byte) error {
	if err := b.writable("append"); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	n, err := b.file.Write(p)
	b.size += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return apperrors.BufferFailed("append", err)
	}
	return nil
}

// Replace drops everything buffered so far and writes p in its place.
func (b *Buffer) Replace(p []byte) error {
	if err := b.writable("replace"); err != nil {
		return err
	}
	if err := b.file.Truncate(b.offset); err != nil {
		return apperrors.BufferFailed("replace", err)
	}
	if _, err := b.file.Seek(b.offset, io.SeekStart); err != nil {
		return apperrors.BufferFailed("replace", err)
	}
	b.size = 0
	return b.Append(p)
}

// Finalize completes the file, flushes it to disk and returns its path.
// PCM spools get their WAV header patched with the final length. The file
// stays on disk; ownership moves to the caller.
func (b *Buffer) Finalize() (string, error) {
	if err := b.writable("finalize"); err != nil {
		return "", err
	}
	b.finalized = true
	if b.encoding == EncodingPCM16 {
		if err := audio.WriteHeader(b.file, b.size, b.sampleRate); err != nil {
			b.file.Close()
			return "", apperrors.BufferFailed("finalize", err)
		}
	}
	if err := b.file.Sync(); err != nil {
		b.file.Close()
		return "", apperrors.BufferFailed("finalize", err)
	}
	if err := b.file.Close(); err != nil {
		return "", apperrors.BufferFailed("finalize", err)
	}
	return b.path, nil
}

// Discard closes and removes the spool file. It is safe to call more than
// once and after Finalize, in which case the finalized file is removed too.
func (b *Buffer) Discard() error {
	if b.discarded {
		return nil
	}
	b.discarded = true
	if !b.finalized {
		b.file.Close()
	}
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.BufferFailed("discard", err)
	}
	return nil
}

// Len returns the number of audio bytes buffered, excluding any header.
func (b *Buffer) Len() int64 { return b.size }

// Path returns the spool file path.
func (b *Buffer) Path() string { return b.path }

// Encoding returns the spool layout.
func (b *Buffer) Encoding() Encoding { return b.encoding }

func (b *Buffer) writable(op string) error {
	switch {
	case b.discarded:
		return apperrors.BufferFailed(op, fmt.Errorf("buffer discarded"))
	case b.finalized:
		return apperrors.BufferFailed(op, fmt.Errorf("buffer already finalized"))
	}
	return nil
}
