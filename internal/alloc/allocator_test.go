package alloc

import (
	"errors"
	"math"
	"testing"
)

func TestAllocatorBasic(t *testing.T) {
	a := New[string](1)

	id1, fresh, err := a.Alloc("a")
	if err != nil || !fresh || id1 != 1 {
		t.Errorf("first allocation: got %d, %v, %v", id1, fresh, err)
	}

	id2, fresh, _ := a.Alloc("b")
	if !fresh || id2 != 2 {
		t.Errorf("second allocation: got %d, %v", id2, fresh)
	}

	// Known keys keep their id.
	again, fresh, _ := a.Alloc("a")
	if fresh || again != 1 {
		t.Errorf("repeat allocation: got %d, %v", again, fresh)
	}

	if a.Next() != 3 {
		t.Errorf("Next: got %d, want 3", a.Next())
	}
	if a.Len() != 2 {
		t.Errorf("Len: got %d, want 2", a.Len())
	}
}

func TestAllocatorContinuation(t *testing.T) {
	objects := New[int](1)
	for k := 10; k < 15; k++ {
		objects.Alloc(k)
	}

	libs := New[string](0)
	libs.SetNext(objects.Next())
	id, _, _ := libs.AllocTagged("Lib", "library")
	if id != 6 {
		t.Errorf("library id: got %d, want 6", id)
	}
	if libs.Base() != 6 {
		t.Errorf("Base: got %d, want 6", libs.Base())
	}

	defer func() {
		if recover() == nil {
			t.Error("SetNext after allocation should panic")
		}
	}()
	libs.SetNext(100)
}

func TestAllocatorStats(t *testing.T) {
	a := New[int](1)

	a.Alloc(1)
	a.Alloc(2)
	a.Alloc(1)
	a.Alloc(1)

	stats := a.Stats()
	if stats.TotalAllocations != 2 {
		t.Errorf("TotalAllocations: got %d, want 2", stats.TotalAllocations)
	}
	if stats.TotalLookups != 2 {
		t.Errorf("TotalLookups: got %d, want 2", stats.TotalLookups)
	}
}

func TestAllocatorAllocations(t *testing.T) {
	a := New[string](5)
	a.AllocTagged("x", "string")
	a.AllocTagged("y", "class")

	allocs := a.Allocations()
	if len(allocs) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(allocs))
	}
	if allocs[0].ID != 5 || allocs[0].Tag != "string" || allocs[1].Key != "y" {
		t.Errorf("unexpected allocations: %+v", allocs)
	}

	// The copy is independent.
	allocs[0].ID = 99
	if a.Allocations()[0].ID != 5 {
		t.Error("Allocations should return a copy")
	}

	if err := a.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestAllocatorExhausted(t *testing.T) {
	a := New[int](math.MaxInt32 - 1)

	if _, _, err := a.Alloc(1); err != nil {
		t.Fatal(err)
	}
	id, _, err := a.Alloc(2)
	if err != nil || id != math.MaxInt32 {
		t.Fatalf("got %d, %v", id, err)
	}
	if _, _, err := a.Alloc(3); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	// Known keys still resolve.
	if id, _, err := a.Alloc(2); err != nil || id != math.MaxInt32 {
		t.Errorf("lookup after exhaustion: %d, %v", id, err)
	}
}

func TestAllocatorReset(t *testing.T) {
	a := New[string](1)
	a.Alloc("a")
	a.Alloc("b")

	a.Reset()

	if a.Next() != 1 || a.Len() != 0 {
		t.Errorf("after reset: Next=%d Len=%d", a.Next(), a.Len())
	}
	if _, ok := a.Lookup("a"); ok {
		t.Error("lookup should fail after reset")
	}
	if id, _, _ := a.Alloc("b"); id != 1 {
		t.Errorf("first id after reset: got %d, want 1", id)
	}
}
