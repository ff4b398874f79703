package cache

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

func newTestPool() worker.DynamicWorkerPool {
	return worker.NewDynamicWorkerPool(2, 16, time.Second)
}

func TestLRUHeapGetReturnsSameFutureConcurrently(t *testing.T) {
	pool := newTestPool()
	h := NewLRUHeap(4, pool, func(key string) (string, error) {
		return key + "-value", nil
	})

	f1 := h.Get("a")
	f2 := h.Get("a")
	if f1 != f2 {
		t.Fatalf("expected the same future for repeated Get(a)")
	}

	v, err := f1.Actualize()
	if err != nil || v != "a-value" {
		t.Fatalf("expected (a-value, nil), got (%q, %v)", v, err)
	}
}

// TestLRUHeapEviction is the §8 "LRU cache at capacity" boundary / end-to-end scenario:
// capacity 2, Get(A); Get(B); Get(A); Get(C) evicts exactly B, leaving {A, C}.
func TestLRUHeapEviction(t *testing.T) {
	pool := newTestPool()
	h := NewLRUHeap(2, pool, func(key string) (string, error) {
		return key, nil
	})

	fa1 := h.Get("A")
	if _, err := fa1.Actualize(); err != nil {
		t.Fatalf("Get(A) failed: %v", err)
	}
	fb := h.Get("B")
	if _, err := fb.Actualize(); err != nil {
		t.Fatalf("Get(B) failed: %v", err)
	}
	fa2 := h.Get("A") // re-touch A, making B the least-recently-used entry
	if _, err := fa2.Actualize(); err != nil {
		t.Fatalf("Get(A) (re-touch) failed: %v", err)
	}
	if fa1 != fa2 {
		t.Fatalf("re-touching A before capacity is exceeded should return the same future")
	}
	fc := h.Get("C") // forces an eviction
	if _, err := fc.Actualize(); err != nil {
		t.Fatalf("Get(C) failed: %v", err)
	}

	if h.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", h.Len())
	}

	// B must have been evicted: a fresh Get(B) allocates a new future rather than
	// returning fb.
	fbAgain := h.Get("B")
	if fbAgain == fb {
		t.Fatalf("expected B to have been evicted, but Get(B) returned the same future")
	}
}

func TestLRUHeapInvalidateForcesRebuild(t *testing.T) {
	pool := newTestPool()
	calls := 0
	h := NewLRUHeap(4, pool, func(key string) (int, error) {
		calls++
		return calls, nil
	})

	f1 := h.Get("x")
	v1, _ := f1.Actualize()

	h.Invalidate("x")

	f2 := h.Get("x")
	v2, _ := f2.Actualize()

	if f1 == f2 {
		t.Fatalf("expected a new future after Invalidate")
	}
	if v1 == v2 {
		t.Fatalf("expected the builder to run again after Invalidate, got same value twice")
	}
}
