package session

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/voxrelay/audio"
	apperrors "github.com/kbukum/voxrelay/errors"
)

func spoolFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestBufferSumAndOrder(t *testing.T) {
	tests := []struct {
		name     string
		encoding Encoding
		frames   [][]byte
	}{
		{"container single", EncodingContainer, [][]byte{[]byte("webm-header-and-cluster")}},
		{"container many", EncodingContainer, [][]byte{[]byte("a"), []byte("bb"), {}, []byte("ccc"), []byte("dddd")}},
		{"pcm many", EncodingPCM16, [][]byte{{1, 0}, {2, 0, 3, 0}, {4, 0}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			b, err := NewBuffer(dir, "c1-1", tc.encoding, 16000)
			if err != nil {
				t.Fatalf("NewBuffer: %v", err)
			}

			var want []byte
			for _, f := range tc.frames {
				if err := b.Append(f); err != nil {
					t.Fatalf("Append: %v", err)
				}
				want = append(want, f...)
			}
			if b.Len() != int64(len(want)) {
				t.Errorf("expected Len %d, got %d", len(want), b.Len())
			}

			path, err := b.Finalize()
			if err != nil {
				t.Fatalf("Finalize: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}

			got := data
			if tc.encoding == EncodingPCM16 {
				h, pcm, err := audio.Decode(data)
				if err != nil {
					t.Fatalf("finalized spool is not a valid WAV: %v", err)
				}
				if h.SampleRate != 16000 {
					t.Errorf("expected 16000 Hz, got %d", h.SampleRate)
				}
				got = pcm
			}
			if !bytes.Equal(got, want) {
				t.Errorf("expected %v, got %v", want, got)
			}
		})
	}
}

func TestBufferReplace(t *testing.T) {
	b, err := NewBuffer(t.TempDir(), "c1-1", EncodingPCM16, 16000)
	if err != nil {
		t.Fatal(err)
	}
	_ = b.Append([]byte{9, 9, 9, 9, 9, 9})
	full := []byte{1, 0, 2, 0}
	if err := b.Replace(full); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if b.Len() != 4 {
		t.Errorf("expected Len 4 after replace, got %d", b.Len())
	}

	path, err := b.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	_, pcm, err := audio.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(pcm, full) {
		t.Errorf("expected replaced payload %v, got %v", full, pcm)
	}
}

func TestBufferDiscard(t *testing.T) {
	t.Run("before finalize", func(t *testing.T) {
		dir := t.TempDir()
		b, err := NewBuffer(dir, "c1-1", EncodingContainer, 16000)
		if err != nil {
			t.Fatal(err)
		}
		_ = b.Append([]byte("partial"))
		if err := b.Discard(); err != nil {
			t.Fatalf("Discard: %v", err)
		}
		if err := b.Discard(); err != nil {
			t.Errorf("second Discard should be a no-op, got %v", err)
		}
		if files := spoolFiles(t, dir); len(files) != 0 {
			t.Errorf("expected no spool files, found %v", files)
		}
	})

	t.Run("after finalize", func(t *testing.T) {
		dir := t.TempDir()
		b, _ := NewBuffer(dir, "c1-2", EncodingPCM16, 16000)
		_ = b.Append([]byte{1, 0})
		if _, err := b.Finalize(); err != nil {
			t.Fatal(err)
		}
		_ = b.Discard()
		if files := spoolFiles(t, dir); len(files) != 0 {
			t.Errorf("expected finalized file to be removed, found %v", files)
		}
	})
}

func TestBufferRejectsUseAfterEnd(t *testing.T) {
	b, _ := NewBuffer(t.TempDir(), "c1-1", EncodingContainer, 16000)
	if _, err := b.Finalize(); err != nil {
		t.Fatal(err)
	}

	for name, err := range map[string]error{
		"append":   b.Append([]byte("x")),
		"replace":  b.Replace([]byte("x")),
		"finalize": func() error { _, err := b.Finalize(); return err }(),
	} {
		appErr, ok := apperrors.AsAppError(err)
		if !ok || appErr.Code != apperrors.ErrCodeBuffer {
			t.Errorf("%s: expected BUFFER_ERROR, got %v", name, err)
		}
	}
}

func TestNewBufferMissingDir(t *testing.T) {
	_, err := NewBuffer(filepath.Join(t.TempDir(), "missing"), "c1-1", EncodingContainer, 16000)
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeBuffer {
		t.Fatalf("expected BUFFER_ERROR, got %v", err)
	}
	if appErr.Details["operation"] != "create" {
		t.Errorf("expected operation=create, got %v", appErr.Details["operation"])
	}
}

func TestBufferPathNaming(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewBuffer(dir, "abc-3", EncodingPCM16, 16000)
	defer b.Discard()
	if filepath.Dir(b.Path()) != dir || filepath.Ext(b.Path()) != ".wav" {
		t.Errorf("unexpected spool path %q", b.Path())
	}
}
