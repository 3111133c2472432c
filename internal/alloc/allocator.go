package alloc

import (
	"errors"
	"fmt"
	"math"
)

// ErrExhausted is returned when no int32 id is left.
var ErrExhausted = errors.New("id space exhausted")

// Allocator hands out dense int32 ids to keys in first-encounter order.
// It is not safe for concurrent use.
type Allocator[K comparable] struct {
	// next is the id the next fresh key receives.
	next int32

	// base is the first id this allocator hands out.
	base int32

	ids map[K]int32

	// exhausted is set once math.MaxInt32 has been handed out.
	exhausted bool

	// allocations tracks all allocations made (for debugging/validation)
	allocations []Allocation[K]

	stats Stats
}

// Allocation records one assigned id.
type Allocation[K comparable] struct {
	Key K
	ID  int32
	Tag string // Optional tag for debugging
}

// Stats contains allocation statistics.
type Stats struct {
	TotalAllocations uint64 // Number of fresh ids handed out
	TotalLookups     uint64 // Number of Alloc calls for keys already known
}

// New creates an allocator whose first id is base.
func New[K comparable](base int32) *Allocator[K] {
	return &Allocator[K]{
		next: base,
		base: base,
		ids:  make(map[K]int32),
	}
}

// Alloc returns the id of key, assigning the next one if key is new.
func (a *Allocator[K]) Alloc(key K) (id int32, fresh bool, err error) {
	return a.AllocTagged(key, "")
}

// AllocTagged is Alloc with a tag recorded for debugging.
func (a *Allocator[K]) AllocTagged(key K, tag string) (id int32, fresh bool, err error) {
	if id, ok := a.ids[key]; ok {
		a.stats.TotalLookups++
		return id, false, nil
	}
	if a.exhausted {
		return 0, false, ErrExhausted
	}

	id = a.next
	if id == math.MaxInt32 {
		a.exhausted = true
	} else {
		a.next++
	}
	a.ids[key] = id
	a.allocations = append(a.allocations, Allocation[K]{Key: key, ID: id, Tag: tag})
	a.stats.TotalAllocations++
	return id, true, nil
}

// Lookup returns the id already assigned to key.
func (a *Allocator[K]) Lookup(key K) (int32, bool) {
	id, ok := a.ids[key]
	return id, ok
}

// Next returns the id the next fresh key would receive.
func (a *Allocator[K]) Next() int32 {
	return a.next
}

// SetNext moves the allocation point. It is only legal before the first
// allocation.
func (a *Allocator[K]) SetNext(id int32) {
	if len(a.allocations) > 0 {
		panic("alloc: SetNext after allocation")
	}
	a.next, a.base = id, id
}

// Base returns the first id this allocator hands out.
func (a *Allocator[K]) Base() int32 {
	return a.base
}

// Len returns the number of keys with an id.
func (a *Allocator[K]) Len() int {
	return len(a.allocations)
}

// Stats returns a copy of the allocation statistics.
func (a *Allocator[K]) Stats() Stats {
	return a.stats
}

// Allocations returns a copy of all allocations in the order they were made.
func (a *Allocator[K]) Allocations() []Allocation[K] {
	result := make([]Allocation[K], len(a.allocations))
	copy(result, a.allocations)
	return result
}

// Validate checks that the ids handed out are dense, start at the base and
// map back to their keys.
func (a *Allocator[K]) Validate() error {
	for i, al := range a.allocations {
		want := int64(a.base) + int64(i)
		if int64(al.ID) != want {
			return fmt.Errorf("allocation %d has id %d, want %d", i, al.ID, want)
		}
		if got := a.ids[al.Key]; got != al.ID {
			return fmt.Errorf("key of allocation %d maps to id %d, want %d", i, got, al.ID)
		}
	}
	return nil
}

// Reset resets the allocator to its initial state.
func (a *Allocator[K]) Reset() {
	a.next = a.base
	a.exhausted = false
	a.ids = make(map[K]int32)
	a.allocations = nil
	a.stats = Stats{}
}
