package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/voxrelay/storage"
)

// fakeS3 serves the path-style subset of the S3 API the store uses.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch {
	case key == "" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (*Storage, *fakeS3, string) {
	t.Helper()
	fake := &fakeS3{bucket: "recordings", objects: make(map[string][]byte), types: make(map[string]string)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewStorage(context.Background(), storage.Config{
		Bucket:    "recordings",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return s, fake, srv.URL
}

func TestStorage_RoundTrip(t *testing.T) {
	s, fake, endpoint := newTestStorage(t)
	ctx := context.Background()
	key := "sessions/abc-1.wav"

	if ok, err := s.Exists(ctx, key); err != nil || ok {
		t.Fatalf("expected missing object, got ok=%v err=%v", ok, err)
	}
	if err := s.Upload(ctx, key, strings.NewReader("RIFF....WAVE")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	fake.mu.Lock()
	got := string(fake.objects[key])
	ct := fake.types[key]
	fake.mu.Unlock()
	if got != "RIFF....WAVE" {
		t.Errorf("unexpected stored body %q", got)
	}
	if ct != "audio/wav" {
		t.Errorf("expected audio/wav, got %q", ct)
	}

	if ok, err := s.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("expected object to exist, got ok=%v err=%v", ok, err)
	}
	url, _ := s.URL(ctx, key)
	if url != endpoint+"/recordings/"+key {
		t.Errorf("unexpected URL %q", url)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, key); ok {
		t.Error("expected object to be deleted")
	}
}

func TestStorage_Ping(t *testing.T) {
	s, fake, _ := newTestStorage(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	fake.mu.Lock()
	fake.bucket = "other"
	fake.mu.Unlock()
	if err := s.Ping(context.Background()); err == nil {
		t.Error("expected Ping to fail for a missing bucket")
	}
}
