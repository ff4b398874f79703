package cache

import (
	"errors"
	"testing"
)

func TestFutureResolve(t *testing.T) {
	f := NewFuture[int]()
	if _, ok := f.TryActualize(); ok {
		t.Fatalf("pending future should not actualize")
	}
	if f.State() != StatePending {
		t.Fatalf("expected pending, got %s", f.State())
	}

	f.resolve(42)

	if f.State() != StateReady {
		t.Fatalf("expected ready, got %s", f.State())
	}
	if v, ok := f.TryActualize(); !ok || v != 42 {
		t.Fatalf("expected (42, true), got (%d, %v)", v, ok)
	}
	v, err := f.Actualize()
	if err != nil || v != 42 {
		t.Fatalf("expected (42, nil), got (%d, %v)", v, err)
	}
}

func TestFutureFail(t *testing.T) {
	f := NewFuture[string]()
	wantErr := errors.New("boom")
	f.fail(wantErr)

	if f.State() != StateInvalid {
		t.Fatalf("expected invalid, got %s", f.State())
	}
	if _, ok := f.TryActualize(); ok {
		t.Fatalf("invalid future should not actualize a value")
	}
	if _, err := f.Actualize(); err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestFutureResolveOnceOnly(t *testing.T) {
	f := NewFuture[int]()
	f.resolve(1)
	f.resolve(2) // second completion must be a no-op
	f.fail(errors.New("ignored"))

	v, err := f.Actualize()
	if err != nil || v != 1 {
		t.Fatalf("expected first resolution to stick, got (%d, %v)", v, err)
	}
}
