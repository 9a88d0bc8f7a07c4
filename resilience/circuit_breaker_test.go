package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBackend = errors.New("whisper: 503")

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(func() error { return errBackend })
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper", MaxFailures: 3, ResetTimeout: time.Minute})
	if cb.State() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}

	trip(cb, 3)
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	err := cb.Execute(func() error {
		t.Error("backend must not be called while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper", MaxFailures: 2})
	trip(cb, 1)
	_ = cb.Execute(func() error { return nil })
	trip(cb, 1)
	if cb.State() != StateClosed {
		t.Errorf("non-consecutive failures should not open the circuit, got %s", cb.State())
	}
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper", MaxFailures: 1})
	_ = cb.Execute(func() error { return context.Canceled })
	if cb.State() != StateClosed {
		t.Errorf("expected closed after caller cancellation, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	tests := []struct {
		name  string
		trial error
		want  BreakerState
	}{
		{"trial call succeeds", nil, StateClosed},
		{"trial call fails", errBackend, StateOpen},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper", MaxFailures: 1, ResetTimeout: 20 * time.Millisecond})
			trip(cb, 1)
			time.Sleep(30 * time.Millisecond)
			if cb.State() != StateHalfOpen {
				t.Fatalf("expected half-open, got %s", cb.State())
			}
			_ = cb.Execute(func() error { return tc.trial })
			if cb.State() != tc.want {
				t.Errorf("expected %s, got %s", tc.want, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var mu sync.Mutex
	var changes []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "whisper",
		MaxFailures: 1,
		OnStateChange: func(_ string, from, to BreakerState) {
			mu.Lock()
			changes = append(changes, from.String()+"->"+to.String())
			mu.Unlock()
		},
	})
	trip(cb, 1)
	cb.Reset()

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 || changes[0] != "closed->open" || changes[1] != "open->closed" {
		t.Errorf("unexpected transitions %v", changes)
	}
}

func TestExecuteBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "whisper"})
	text, err := ExecuteBreaker(cb, func() (string, error) { return "hello", nil })
	if err != nil || text != "hello" {
		t.Errorf("expected hello, got %q (%v)", text, err)
	}
}

func TestBreakerState_String(t *testing.T) {
	tests := map[BreakerState]string{
		StateClosed:       "closed",
		StateOpen:         "open",
		StateHalfOpen:     "half-open",
		BreakerState(42): "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
}
