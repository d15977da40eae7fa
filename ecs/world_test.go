package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testPos struct{ X, Y float32 }
type testReq struct{}
type testReqMid struct{ X int }
type testReqLeaf struct{}

// 1 — entity liveness: despawn kills the old handle; the recycled index
// comes back with a strictly greater generation.
func TestEntityLivenessAfterDespawn(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	require.True(t, w.IsAlive(e))
	require.True(t, w.Despawn(e))
	require.False(t, w.IsAlive(e))

	e2 := w.Spawn()
	require.Equal(t, e.Index, e2.Index)
	require.Greater(t, e2.Generation, e.Generation)
}

func TestDespawnOfDeadEntityReturnsFalse(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	require.True(t, w.Despawn(e))
	require.False(t, w.Despawn(e))
}

// 2 — round-trip insert/get.
func TestInsertThenGetRoundTrips(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	Insert(w, e, testPos{X: 1, Y: 2})

	got, ok := Get[testPos](w, e)
	require.True(t, ok)
	require.Equal(t, testPos{X: 1, Y: 2}, got)
}

func TestGetOnMissingComponentReportsFalse(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	_, ok := Get[testPos](w, e)
	require.False(t, ok)
}

// 3 — swap-remove correctness: removing one entity's row must not disturb
// any other entity's mapping.
func TestSwapRemovePreservesOtherMappings(t *testing.T) {
	w := NewWorld()
	es := make([]Entity, 4)
	for i := range es {
		es[i] = w.Spawn()
		Insert(w, es[i], testPos{X: float32(i)})
	}

	_, removed := Remove[testPos](w, es[0])
	require.True(t, removed)

	for i := 1; i < len(es); i++ {
		v, ok := Get[testPos](w, es[i])
		require.True(t, ok)
		require.Equal(t, float32(i), v.X)
	}
	_, ok := Get[testPos](w, es[0])
	require.False(t, ok)
}

// 4 — change-detection monotonicity: strict inequality against
// ticks_changed, false again the instant the observing tick catches up.
func TestChangedSinceUsesStrictInequality(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	Insert(w, e, testPos{})
	s := RegisterComponent[testPos](w)

	tickAtInsert := w.Tick()
	require.False(t, s.ChangedSince(e.Index, tickAtInsert))

	w.AdvanceTick()
	require.True(t, s.MutateFn(e.Index, w.Tick(), func(p *testPos) { p.X = 5 }))
	require.True(t, s.ChangedSince(e.Index, tickAtInsert))
	require.False(t, s.ChangedSince(e.Index, w.Tick()))
}

// 5 — removal journaling: removed at tick τ is visible through τ-1's
// window and gone from τ's.
func TestRemovedSinceWindowsOnRemovalTick(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	Insert(w, e, testPos{})
	s := RegisterComponent[testPos](w)

	before := w.Tick()
	w.AdvanceTick()
	removeTick := w.Tick()
	_, removed := Remove[testPos](w, e)
	require.True(t, removed)

	require.True(t, s.RemovedSince(e.Index, before))
	require.False(t, s.RemovedSince(e.Index, removeTick))
}

// 8 — write-aliasing: the single-writer lock model refuses to hand out a
// second live Write[T]/Read[T] while one is outstanding, so two mutable
// references into the same slot can never coexist.
func TestWriteConflictsWithOutstandingWriter(t *testing.T) {
	w := NewWorld()
	RegisterComponent[testPos](w)
	g := Write[testPos](w)
	defer g.Release()
	require.Panics(t, func() { Write[testPos](w) })
}

func TestReadConflictsWithOutstandingWriter(t *testing.T) {
	w := NewWorld()
	RegisterComponent[testPos](w)
	g := Write[testPos](w)
	defer g.Release()
	require.Panics(t, func() { Read[testPos](w) })
}

func TestReadDoesNotConflictWithAnotherReader(t *testing.T) {
	w := NewWorld()
	RegisterComponent[testPos](w)
	g1 := Read[testPos](w)
	defer g1.Release()
	g2 := Read[testPos](w)
	defer g2.Release()
}

// 10 — hook ordering.
func TestHookOrderingOnFirstInsert(t *testing.T) {
	w := NewWorld()
	s := RegisterComponent[testPos](w)
	var order []string
	s.SetHooks(Hooks[testPos]{
		OnAdd:    func(w *World, e Entity, v *testPos) { order = append(order, "add") },
		OnInsert: func(w *World, e Entity, v *testPos) { order = append(order, "insert") },
	})

	e := w.Spawn()
	Insert(w, e, testPos{X: 1})
	require.Equal(t, []string{"add", "insert"}, order)
}

func TestHookOrderingOnReplace(t *testing.T) {
	w := NewWorld()
	s := RegisterComponent[testPos](w)
	var order []string
	s.SetHooks(Hooks[testPos]{
		OnReplace: func(w *World, e Entity, old *testPos) { order = append(order, "replace") },
		OnInsert:  func(w *World, e Entity, v *testPos) { order = append(order, "insert") },
	})

	e := w.Spawn()
	Insert(w, e, testPos{X: 1})
	order = nil
	Insert(w, e, testPos{X: 2})
	require.Equal(t, []string{"replace", "insert"}, order)
}

func TestHookOrderingOnRemove(t *testing.T) {
	w := NewWorld()
	s := RegisterComponent[testPos](w)
	var order []string
	s.SetHooks(Hooks[testPos]{
		OnRemove: func(w *World, e Entity, v *testPos) { order = append(order, "remove") },
	})

	e := w.Spawn()
	Insert(w, e, testPos{X: 1})
	_, removed := Remove[testPos](w, e)
	require.True(t, removed)
	require.Equal(t, []string{"remove"}, order)
}

// 11 — required-components transitivity: T requires R, R requires S;
// inserting T alone must pull in both defaults.
func TestRequiredComponentsTransitivity(t *testing.T) {
	w := NewWorld()
	RegisterRequired[testReqMid, testReqLeaf](w, func() testReqLeaf { return testReqLeaf{} })
	RegisterRequired[testReq, testReqMid](w, func() testReqMid { return testReqMid{} })

	e := w.Spawn()
	Insert(w, e, testReq{})

	_, hasMid := Get[testReqMid](w, e)
	require.True(t, hasMid)
	_, hasLeaf := Get[testReqLeaf](w, e)
	require.True(t, hasLeaf)
}

func TestRequiredComponentDoesNotOverwriteExisting(t *testing.T) {
	w := NewWorld()
	RegisterRequired[testReq, testReqMid](w, func() testReqMid { return testReqMid{X: 99} })

	e := w.Spawn()
	Insert(w, e, testReqMid{X: 1})
	Insert(w, e, testReq{})

	v, ok := Get[testReqMid](w, e)
	require.True(t, ok)
	require.Equal(t, 1, v.X)
}

// DisabledMarker filters Get but not GetUnfiltered, per §4.6.
func TestDisabledEntityHiddenFromFilteredGet(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	Insert(w, e, testPos{X: 1})
	w.SetDisabled(e, true)

	_, ok := Get[testPos](w, e)
	require.False(t, ok)

	v, ok := GetUnfiltered[testPos](w, e)
	require.True(t, ok)
	require.Equal(t, float32(1), v.X)
}
