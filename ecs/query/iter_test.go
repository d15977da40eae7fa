package query

import (
	"sync"
	"testing"

	"github.com/NOT-REAL-GAMES/forgecore/ecs"
	"github.com/stretchr/testify/require"
)

type qPosition struct{ X, Y float32 }
type qVelocity struct{ X, Y float32 }

// TestQueryWriteThenEach exercises the exact Write[T]+Each2 combination a
// self-locking guard would deadlock on: Write[qPosition] holds the
// storage's lock for writing, and Each2 drives Match/Get back through that
// same guard. If Get/Membership ever again route through Storage's public,
// self-locking methods instead of the already-held lock, this test hangs
// instead of failing.
func TestQueryWriteThenEach(t *testing.T) {
	w := ecs.NewWorld()
	ecs.RegisterComponent[qPosition](w)
	ecs.RegisterComponent[qVelocity](w)

	e := w.Spawn()
	ecs.Insert(w, e, qPosition{X: 0, Y: 0})
	ecs.Insert(w, e, qVelocity{X: 1, Y: 2})

	pos := ecs.Write[qPosition](w)
	defer pos.Release()
	vel := ecs.Read[qVelocity](w)
	defer vel.Release()

	tick := w.Tick()
	visited := 0
	Each2(w, false, pos, vel, func(index uint32, p qPosition, v qVelocity) {
		visited++
		pos.Mutate(index, tick, func(p *qPosition) {
			p.X += v.X
			p.Y += v.Y
		})
	})
	require.Equal(t, 1, visited)

	got, ok := pos.Get(e.Index)
	require.True(t, ok)
	require.Equal(t, qPosition{X: 1, Y: 2}, got)
}

// S5 — bitset-accelerated join: 100 entities carry only Position, 5 carry
// both Position and Velocity; the join must yield exactly those 5.
func TestEach2YieldsExactlyTheIntersection(t *testing.T) {
	w := ecs.NewWorld()
	ecs.RegisterComponent[qPosition](w)
	ecs.RegisterComponent[qVelocity](w)

	var tagged []ecs.Entity
	for i := 0; i < 100; i++ {
		e := w.Spawn()
		ecs.Insert(w, e, qPosition{})
		if i < 5 {
			ecs.Insert(w, e, qVelocity{})
			tagged = append(tagged, e)
		}
	}
	posW := ecs.Write[qPosition](w)
	tick := w.Tick()
	for _, e := range tagged {
		posW.Mutate(e.Index, tick, func(p *qPosition) { p.X = 999.0 })
	}
	posW.Release()

	pos := ecs.Read[qPosition](w)
	defer pos.Release()
	vel := ecs.Read[qVelocity](w)
	defer vel.Release()

	seen := 0
	Each2(w, false, pos, vel, func(index uint32, p qPosition, v qVelocity) {
		seen++
		require.Equal(t, float32(999.0), p.X)
	})
	require.Equal(t, 5, seen)
}

// Each1 over a single member skips the intersection entirely and walks
// that member's dense list, per §4.8's "otherwise" branch.
func TestEach1WalksSingleMemberDenseOrder(t *testing.T) {
	w := ecs.NewWorld()
	ecs.RegisterComponent[qPosition](w)
	for i := 0; i < 3; i++ {
		e := w.Spawn()
		ecs.Insert(w, e, qPosition{X: float32(i)})
	}

	pos := ecs.Read[qPosition](w)
	defer pos.Release()

	var xs []float32
	Each1(w, false, pos, func(index uint32, p qPosition) {
		xs = append(xs, p.X)
	})
	require.ElementsMatch(t, []float32{0, 1, 2}, xs)
}

// Disabled entities are excluded from a default (includeDisabled=false)
// match.
func TestMatchExcludesDisabledEntitiesByDefault(t *testing.T) {
	w := ecs.NewWorld()
	ecs.RegisterComponent[qPosition](w)
	e1 := w.Spawn()
	ecs.Insert(w, e1, qPosition{})
	e2 := w.Spawn()
	ecs.Insert(w, e2, qPosition{})
	w.SetDisabled(e2, true)

	pos := ecs.Read[qPosition](w)
	defer pos.Release()

	matched := Match(w, false, pos)
	require.Contains(t, matched, e1.Index)
	require.NotContains(t, matched, e2.Index)

	all := Match(w, true, pos)
	require.Contains(t, all, e2.Index)
}

// 9 — ResMut alias detection: a second live borrow from the same guard
// within one iteration panics.
func TestResMutGuardPanicsOnReentrantBorrow(t *testing.T) {
	w := ecs.NewWorld()
	ecs.RegisterResource(w, 0)
	g := NewResMutGuard[int](w)

	require.Panics(t, func() {
		g.Borrow(func(v *int) {
			g.Borrow(func(v2 *int) {})
		})
	})
}

func TestResMutGuardAllowsSequentialBorrows(t *testing.T) {
	w := ecs.NewWorld()
	ecs.RegisterResource(w, 0)
	g := NewResMutGuard[int](w)

	g.Borrow(func(v *int) { *v = 1 })
	g.Borrow(func(v *int) { *v = 2 })

	ecs.Res(w, func(v *int) { require.Equal(t, 2, *v) })
}

func TestParForEachVisitsEveryIndex(t *testing.T) {
	indices := make([]uint32, 50)
	for i := range indices {
		indices[i] = uint32(i)
	}
	var mu sync.Mutex
	seen := map[uint32]bool{}
	ParForEach(indices, 4, func(index uint32) {
		mu.Lock()
		seen[index] = true
		mu.Unlock()
	})
	require.Len(t, seen, len(indices))
}
