package component

import (
	"context"
	"fmt"
	"testing"

	"github.com/kbukum/voxrelay/logger"
)

type mockComponent struct {
	name       string
	startErr   error
	stopErr    error
	health     Health
	startOrder *[]string
	stopOrder  *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.startOrder != nil {
		*m.startOrder = append(*m.startOrder, m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.stopOrder != nil {
		*m.stopOrder = append(*m.stopOrder, m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health {
	return m.health
}

type describedComponent struct {
	mockComponent
	desc Description
}

func (d *describedComponent) Describe() Description { return d.desc }

func newTestRegistry() *Registry {
	return NewRegistry(logger.NewDefault("test"))
}

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register(&mockComponent{name: "transcoder"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&mockComponent{name: "transcoder"}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestGet(t *testing.T) {
	r := newTestRegistry()
	r.Register(&mockComponent{name: "whisper"})

	got := r.Get("whisper")
	if got == nil || got.Name() != "whisper" {
		t.Fatalf("expected whisper, got %v", got)
	}
	if r.Get("missing") != nil {
		t.Error("expected nil for unregistered component")
	}
}

func TestStartStopOrder(t *testing.T) {
	r := newTestRegistry()
	var started, stopped []string
	for _, name := range []string{"observability", "relay", "http-server"} {
		r.Register(&mockComponent{name: name, startOrder: &started, stopOrder: &stopped})
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	wantStart := []string{"observability", "relay", "http-server"}
	wantStop := []string{"http-server", "relay", "observability"}
	for i := range wantStart {
		if started[i] != wantStart[i] {
			t.Errorf("start[%d] = %s, want %s", i, started[i], wantStart[i])
		}
		if stopped[i] != wantStop[i] {
			t.Errorf("stop[%d] = %s, want %s", i, stopped[i], wantStop[i])
		}
	}
}

func TestStartAllError(t *testing.T) {
	r := newTestRegistry()
	var started, stopped []string
	r.Register(&mockComponent{name: "relay", startOrder: &started, stopOrder: &stopped})
	r.Register(&mockComponent{name: "whisper", startErr: fmt.Errorf("dial refused"), startOrder: &started, stopOrder: &stopped})
	r.Register(&mockComponent{name: "http-server", startOrder: &started, stopOrder: &stopped})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected error from StartAll")
	}
	if len(started) != 2 {
		t.Errorf("expected start to halt at the failing component, got %v", started)
	}

	r.StopAll(context.Background())
	if len(stopped) != 1 || stopped[0] != "relay" {
		t.Errorf("expected only relay to be stopped, got %v", stopped)
	}
}

func TestStopAllSkipsUnstarted(t *testing.T) {
	r := newTestRegistry()
	var stopped []string
	r.Register(&mockComponent{name: "relay", stopOrder: &stopped})

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(stopped) != 0 {
		t.Errorf("expected 0 stops for unstarted components, got %d", len(stopped))
	}
}

func TestStopAllWithErrors(t *testing.T) {
	r := newTestRegistry()
	r.Register(&mockComponent{name: "relay", stopErr: fmt.Errorf("stop failed")})
	r.StartAll(context.Background())

	if err := r.StopAll(context.Background()); err == nil {
		t.Error("expected error from StopAll")
	}
}

func TestHealthAll(t *testing.T) {
	r := newTestRegistry()
	r.Register(&mockComponent{
		name:   "transcoder",
		health: Health{Name: "transcoder", Status: StatusHealthy},
	})
	r.Register(&mockComponent{
		name:   "whisper",
		health: Health{Name: "whisper", Status: StatusUnhealthy, Message: "circuit open"},
	})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusHealthy {
		t.Errorf("expected transcoder healthy, got %s", results[0].Status)
	}
	if results[1].Status != StatusUnhealthy {
		t.Errorf("expected whisper unhealthy, got %s", results[1].Status)
	}
}

func TestDescribe(t *testing.T) {
	r := newTestRegistry()
	r.Register(&mockComponent{name: "plain"})
	r.Register(&describedComponent{
		mockComponent: mockComponent{name: "http-server"},
		desc:          Description{Type: "server", Port: 8080},
	})

	descs := r.Describe()
	if len(descs) != 1 {
		t.Fatalf("expected 1 description, got %d", len(descs))
	}
	if descs[0].Name != "http-server" {
		t.Errorf("expected name to default to component name, got %q", descs[0].Name)
	}
	if descs[0].Port != 8080 {
		t.Errorf("expected port 8080, got %d", descs[0].Port)
	}
}
