package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestExecute_UnknownKey_Allowed(t *testing.T) {
	cb := New(3, 5*time.Second, zap.NewNop())
	called := false
	err := cb.Execute("a1", func() error { called = true; return nil })
	if err != nil || !called {
		t.Fatalf("expected call to pass through, err=%v called=%v", err, called)
	}
}

func TestExecute_BelowThreshold_Allowed(t *testing.T) {
	cb := New(3, 5*time.Second, zap.NewNop())
	_ = cb.Execute("a1", fail)
	_ = cb.Execute("a1", fail)
	if err := cb.Execute("a1", ok); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestExecute_ReturnsCallError(t *testing.T) {
	cb := New(3, 5*time.Second, zap.NewNop())
	if err := cb.Execute("a1", fail); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
}

func TestExecute_AtThreshold_Open(t *testing.T) {
	cb := New(3, 5*time.Second, zap.NewNop())
	for i := 0; i < 3; i++ {
		_ = cb.Execute("a1", fail)
	}

	called := false
	err := cb.Execute("a1", func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("fn must not be called while open")
	}
	if got := cb.State("a1"); got != "open" {
		t.Errorf("State = %q, want open", got)
	}
}

func TestExecute_KeysAreIndependent(t *testing.T) {
	cb := New(1, 5*time.Second, zap.NewNop())
	_ = cb.Execute("a1", fail)

	if err := cb.Execute("b2", ok); err != nil {
		t.Fatalf("other key should be closed, got %v", err)
	}
}

func TestExecute_SuccessResetsFailures(t *testing.T) {
	cb := New(3, 5*time.Second, zap.NewNop())
	_ = cb.Execute("a1", fail)
	_ = cb.Execute("a1", fail)
	_ = cb.Execute("a1", ok)
	_ = cb.Execute("a1", fail)
	_ = cb.Execute("a1", fail)

	if err := cb.Execute("a1", ok); err != nil {
		t.Fatalf("expected nil after reset, got %v", err)
	}
}

func TestExecute_ProbeAfterCooldown(t *testing.T) {
	cb := New(1, 10*time.Millisecond, zap.NewNop())
	_ = cb.Execute("a1", fail)
	if err := cb.Execute("a1", ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute("a1", ok); err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}
	if got := cb.State("a1"); got != "closed" {
		t.Errorf("State = %q, want closed", got)
	}
}

func TestExecute_ZeroThresholdDisables(t *testing.T) {
	cb := New(0, time.Minute, zap.NewNop())
	for i := 0; i < 10; i++ {
		_ = cb.Execute("a1", fail)
	}
	if err := cb.Execute("a1", ok); err != nil {
		t.Fatalf("disabled breaker should pass through, got %v", err)
	}
}

func TestExecute_NilBreaker(t *testing.T) {
	var cb *CircuitBreaker
	if err := cb.Execute("a1", ok); err != nil {
		t.Fatalf("nil breaker should pass through, got %v", err)
	}
}
