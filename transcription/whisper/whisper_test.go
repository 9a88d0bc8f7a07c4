package whisper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/kbukum/voxrelay/errors"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/transcription"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "turn.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVE"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("missing audio part: %v", err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "RIFF....WAVE" || header.Filename != "turn.wav" {
			t.Errorf("unexpected upload %q named %q", data, header.Filename)
		}
		if r.FormValue("model") != "small" || r.FormValue("language") != "nl" {
			t.Errorf("unexpected form values model=%q language=%q", r.FormValue("model"), r.FormValue("language"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"text":     "hallo wereld",
			"language": "nl",
			"segments": []map[string]any{
				{"text": "hallo", "start": 0.0, "end": 0.6},
				{"text": "wereld", "start": 0.6, "end": 1.4},
			},
		})
	}))
	defer srv.Close()

	p := NewProvider(Config{URL: srv.URL, Model: "small"}, logger.NewDefault("test"))
	resp, err := p.Transcribe(context.Background(), transcription.TranscriptionRequest{AudioPath: writeAudio(t), Language: "nl"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if resp.Text != "hallo wereld" || resp.Language != "nl" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Segments) != 2 || resp.Duration != 1.4 {
		t.Errorf("expected 2 segments and duration 1.4, got %d and %v", len(resp.Segments), resp.Duration)
	}
}

func TestTranscribeErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"server error is retryable", http.StatusBadGateway, true},
		{"client error is not", http.StatusUnprocessableEntity, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			p := NewProvider(Config{URL: srv.URL}, logger.NewDefault("test"))
			_, err := p.Transcribe(context.Background(), transcription.TranscriptionRequest{AudioPath: writeAudio(t)})
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Code != apperrors.ErrCodeTranscription {
				t.Fatalf("expected TRANSCRIPTION_ERROR, got %v", err)
			}
			if appErr.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v", tc.retryable)
			}
			if appErr.Details["status"] != tc.status {
				t.Errorf("expected status detail %d, got %v", tc.status, appErr.Details["status"])
			}
		})
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	p := NewProvider(Config{URL: "http://127.0.0.1:1"}, logger.NewDefault("test"))
	_, err := p.Transcribe(context.Background(), transcription.TranscriptionRequest{AudioPath: "/nonexistent.wav"})
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Retryable {
		t.Errorf("expected non-retryable TRANSCRIPTION_ERROR, got %v", err)
	}
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	p := NewProvider(Config{URL: srv.URL}, logger.NewDefault("test"))
	if !p.IsAvailable(context.Background()) {
		t.Error("expected provider to be available")
	}
	srv.Close()
	if p.IsAvailable(context.Background()) {
		t.Error("expected provider to be unavailable after shutdown")
	}
}

func TestFactory(t *testing.T) {
	f := Factory(logger.NewDefault("test"))
	if _, err := f(map[string]any{}); err == nil {
		t.Error("expected error without url")
	}
	p, err := f(map[string]any{"name": "whisper-1", "url": "http://gpu:8387"})
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	if p.Name() != "whisper-1" {
		t.Errorf("expected name whisper-1, got %s", p.Name())
	}
}
