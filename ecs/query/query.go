// Package query implements the inner-join guard and iterator described in
// spec §4.8. Access is acquired through ecs.Read[T]/ecs.Write[T]/
// ecs.Res[T]/ecs.ResMut[T] exactly as a system would acquire it directly;
// this package's job is purely the matching-index computation and
// iteration helpers layered on top, since Go's lack of variadic generics
// rules out a single generic tuple type spanning an arbitrary access list
// the way a Rust trait impl can (see DESIGN.md).
package query

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/NOT-REAL-GAMES/forgecore/ecs"
)

// Member is the membership/iteration surface both ecs.ReadGuard[T] and
// ecs.WriteGuard[T] expose, the common ground every component access
// variant shares regardless of mutability.
type Member interface {
	Membership() *ecs.Bitset
	DenseEntities() []uint32
}

// Match runs the inner-join algorithm: with two or more members it clones
// the first member's membership bitset (the first, not necessarily the
// smallest), intersects it with the rest, then removes disabled entities
// unless includeDisabled is set, returning indices in ascending order.
// With exactly one member it skips the bitset and walks that member's
// dense entity list directly, per §4.8's "otherwise" branch, so results
// follow dense order.
func Match(w *ecs.World, includeDisabled bool, members ...Member) []uint32 {
	if len(members) == 0 {
		return nil
	}

	var result *ecs.Bitset
	if len(members) == 1 {
		dense := members[0].DenseEntities()
		if includeDisabled {
			return dense
		}
		disabled := w.DisabledSnapshot()
		out := dense[:0]
		for _, idx := range dense {
			if !disabled.Test(idx) {
				out = append(out, idx)
			}
		}
		return out
	} else {
		smallest := members[0].Membership()
		for _, m := range members[1:] {
			smallest.IntersectWith(m.Membership())
		}
		result = smallest
	}

	if !includeDisabled {
		disabled := w.DisabledSnapshot()
		result.SubtractFrom(disabled)
	}
	return result.Indices()
}

// ResMutGuard wraps a ResMut[T] resource borrow scoped to one query
// iteration and panics, naming T, if a second live borrow is attempted
// before the first is released — the inner-join's "visit each entity at
// most once" guarantee only covers components, so resources need this
// explicit aliasing check (§4.8).
type ResMutGuard[T any] struct {
	world *ecs.World
	live  int32
}

// NewResMutGuard returns a guard scoped to one query/iteration.
func NewResMutGuard[T any](w *ecs.World) *ResMutGuard[T] {
	return &ResMutGuard[T]{world: w}
}

// Borrow runs fn with exclusive access to the resource, panicking if a
// borrow from this guard is already in flight.
func (g *ResMutGuard[T]) Borrow(fn func(*T)) {
	if !atomic.CompareAndSwapInt32(&g.live, 0, 1) {
		var zero T
		panic(fmt.Sprintf("ecs/query: ResMut[%T] aliased within one query iteration", zero))
	}
	defer atomic.StoreInt32(&g.live, 0)
	ecs.ResMut(g.world, fn)
}

// ParForEach splits indices into workers batches and runs fn over each
// batch on its own goroutine, blocking until every batch completes. It
// falls back to sequential execution for workers <= 1 or a slice of at
// most one index,
// the closest Go analogue to "falls back to sequential on single-threaded
// build targets" (§4.8) since Go has no such build-target split.
func ParForEach(indices []uint32, workers int, fn func(index uint32)) {
	if workers <= 1 || len(indices) <= 1 {
		for _, idx := range indices {
			fn(idx)
		}
		return
	}

	chunk := (len(indices) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(indices); start += chunk {
		end := start + chunk
		if end > len(indices) {
			end = len(indices)
		}
		wg.Add(1)
		go func(batch []uint32) {
			defer wg.Done()
			for _, idx := range batch {
				fn(idx)
			}
		}(indices[start:end])
	}
	wg.Wait()
}
