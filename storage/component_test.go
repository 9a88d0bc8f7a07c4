package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/voxrelay/component"
	"github.com/kbukum/voxrelay/logger"
	"github.com/kbukum/voxrelay/storage"
	_ "github.com/kbukum/voxrelay/storage/local"
)

func TestComponent_LocalLifecycle(t *testing.T) {
	base := t.TempDir()
	c := storage.NewComponent(storage.Config{Enabled: true, BasePath: base}, logger.NewDefault("test"))
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "a-1.wav")
	if err := os.WriteFile(src, []byte("RIFF"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Save(ctx, "a-1", src); err != storage.ErrNotStarted {
		t.Fatalf("expected ErrNotStarted before Start, got %v", err)
	}

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s: %s", h.Status, h.Message)
	}

	location, err := c.Save(ctx, "a-1", src)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(base, storage.DefaultPrefix, "a-1.wav"); location != want {
		t.Errorf("expected %q, got %q", want, location)
	}
	data, err := os.ReadFile(location)
	if err != nil || string(data) != "RIFF" {
		t.Errorf("unexpected stored content %q (%v)", data, err)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy after stop, got %s", h.Status)
	}
}

func TestComponent_Disabled(t *testing.T) {
	c := storage.NewComponent(storage.Config{}, logger.NewDefault("test"))
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.Enabled() || c.Storage() != nil {
		t.Error("expected no backend when disabled")
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy || h.Message != "disabled" {
		t.Errorf("unexpected health %+v", h)
	}
	if d := c.Describe(); d.Details != "disabled" {
		t.Errorf("unexpected description %+v", d)
	}
}

func TestNew_UnregisteredProvider(t *testing.T) {
	if _, err := storage.New(storage.Config{Enabled: true, Provider: storage.ProviderS3, Bucket: "b"}, logger.NewDefault("test")); err == nil {
		t.Fatal("expected error for a provider that is not imported")
	}
}
