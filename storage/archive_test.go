package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/voxrelay/logger"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failErr error
}

func newMemStore() *memStore { return &memStore{objects: make(map[string][]byte)} }

func (m *memStore) Upload(_ context.Context, key string, r io.Reader) error {
	if m.failErr != nil {
		return m.failErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStore) URL(_ context.Context, key string) (string, error) {
	return "mem://" + key, nil
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestArchive_Key(t *testing.T) {
	a := NewArchive(newMemStore(), Config{Prefix: "rec"}, logger.NewDefault("test"))
	tests := []struct {
		session, file, want string
	}{
		{"abc-1", "/tmp/spool/abc-1.wav", "rec/abc-1/abc-1.wav"},
		{"abc-2", "/tmp/spool/capture.webm", "rec/abc-2/capture.webm"},
		{"abc-3", "/tmp/spool/noext", "rec/abc-3/noext"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := a.Key(tc.session, tc.file); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestArchive_Save(t *testing.T) {
	store := newMemStore()
	a := NewArchive(store, Config{}, logger.NewDefault("test"))
	data := bytes.Repeat([]byte{1, 2, 3, 4}, 256)
	src := writeFile(t, "s-1.wav", data)

	location, err := a.Save(context.Background(), "s-1", src)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if location != "mem://"+DefaultPrefix+"/s-1/s-1.wav" {
		t.Errorf("unexpected location %q", location)
	}
	if !bytes.Equal(store.objects[DefaultPrefix+"/s-1/s-1.wav"], data) {
		t.Error("stored bytes differ from the recording")
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("expected local recording to be left in place")
	}
}

func TestArchive_SaveErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		a := NewArchive(newMemStore(), Config{}, logger.NewDefault("test"))
		if _, err := a.Save(context.Background(), "s", filepath.Join(t.TempDir(), "gone.wav")); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("upload failure", func(t *testing.T) {
		store := newMemStore()
		store.failErr = errors.New("bucket unreachable")
		a := NewArchive(store, Config{}, logger.NewDefault("test"))
		_, err := a.Save(context.Background(), "s", writeFile(t, "s.wav", []byte("x")))
		if err == nil || !strings.Contains(err.Error(), "bucket unreachable") {
			t.Fatalf("expected upload error, got %v", err)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled skips checks", Config{Provider: "ftp"}, false},
		{"local defaults", Config{Enabled: true}, false},
		{"s3 needs bucket", Config{Enabled: true, Provider: ProviderS3}, true},
		{"s3 with bucket", Config{Enabled: true, Provider: ProviderS3, Bucket: "b"}, false},
		{"s3 half credentials", Config{Enabled: true, Provider: ProviderS3, Bucket: "b", AccessKey: "k"}, true},
		{"unknown provider", Config{Enabled: true, Provider: "ftp"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.ApplyDefaults()
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
