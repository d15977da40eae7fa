package schedule

import (
	"sync"
	"testing"

	"github.com/NOT-REAL-GAMES/forgecore/ecs"
	"github.com/stretchr/testify/require"
)

func noop(w *ecs.World) error { return nil }

// 6 — topological order: AddEdge(before, after) makes before run first.
// The edges b→a, c→a, d→b, d→c form S3's diamond with the direction
// reversed: d runs first, a last, b and c in between.
func TestRunSequentialRespectsTopologicalOrder(t *testing.T) {
	w := ecs.NewWorld()
	c := NewContainer()

	var order []string
	record := func(name string) RunFunc {
		return func(w *ecs.World) error {
			order = append(order, name)
			return nil
		}
	}

	a := c.AddFn("a", record("a"))
	b := c.AddFn("b", record("b"))
	d := c.AddFn("d", record("d"))
	cc := c.AddFn("c", record("c"))

	require.NoError(t, c.AddEdge(b, a))
	require.NoError(t, c.AddEdge(cc, a))
	require.NoError(t, c.AddEdge(d, b))
	require.NoError(t, c.AddEdge(d, cc))

	errs := c.RunSequential(w)
	require.Empty(t, errs)

	require.Equal(t, "d", order[0])
	require.Equal(t, "a", order[3])

	pos := map[string]int{}
	for i, name := range order {
		pos[name] = i
	}
	require.Less(t, pos["b"], pos["a"])
	require.Less(t, pos["c"], pos["a"])
	require.Less(t, pos["d"], pos["b"])
	require.Less(t, pos["d"], pos["c"])
}

// 7 — cycle detection: an edge set that would close a cycle is rejected
// wholesale and the container's graph is left unchanged.
func TestAddEdgeRejectsCycle(t *testing.T) {
	c := NewContainer()
	x := c.AddFn("x", noop)
	y := c.AddFn("y", noop)
	z := c.AddFn("z", noop)

	require.NoError(t, c.AddEdge(x, y))
	require.NoError(t, c.AddEdge(y, z))

	err := c.AddEdge(z, x)
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestDuplicateEdgeIsIdempotent(t *testing.T) {
	c := NewContainer()
	x := c.AddFn("x", noop)
	y := c.AddFn("y", noop)

	require.NoError(t, c.AddEdge(x, y))
	require.NoError(t, c.AddEdge(x, y))
	require.Len(t, c.adj[x], 1)
}

func TestRegisteringDuplicateNamePanics(t *testing.T) {
	c := NewContainer()
	c.AddFn("x", noop)
	require.Panics(t, func() { c.AddFn("x", noop) })
}

// S6 — condition All/Any: system X gated by C_true and C_false.
func TestConditionModeAllBlocksOnFalseSource(t *testing.T) {
	w := ecs.NewWorld()
	c := NewContainer()
	ran := false

	cTrue := c.AddCondition("c-true", func(w *ecs.World) bool { return true })
	cFalse := c.AddCondition("c-false", func(w *ecs.World) bool { return false })
	x := c.AddFn("x", func(w *ecs.World) error { ran = true; return nil })

	require.NoError(t, c.AddEdge(cTrue, x))
	require.NoError(t, c.AddEdge(cFalse, x))
	c.SetConditionMode(x, All)

	c.RunSequential(w)
	require.False(t, ran)
}

func TestConditionModeAnyRunsOnOneTrueSource(t *testing.T) {
	w := ecs.NewWorld()
	c := NewContainer()
	ran := false

	cTrue := c.AddCondition("c-true", func(w *ecs.World) bool { return true })
	cFalse := c.AddCondition("c-false", func(w *ecs.World) bool { return false })
	x := c.AddFn("x", func(w *ecs.World) error { ran = true; return nil })

	require.NoError(t, c.AddEdge(cTrue, x))
	require.NoError(t, c.AddEdge(cFalse, x))
	c.SetConditionMode(x, Any)

	c.RunSequential(w)
	require.True(t, ran)
}

func TestConditionSystemItselfNeverRunsAsARegularSystem(t *testing.T) {
	w := ecs.NewWorld()
	c := NewContainer()
	calls := 0
	cond := c.AddCondition("cond", func(w *ecs.World) bool { calls++; return true })
	x := c.AddFn("x", noop)
	require.NoError(t, c.AddEdge(cond, x))

	errs := c.RunSequential(w)
	require.Empty(t, errs)
	require.Equal(t, 1, calls)
}

func TestAccessSetConflictsOnOverlappingWrite(t *testing.T) {
	type posT struct{}
	a := WritesComponent[posT](NewAccessSet())
	b := WritesComponent[posT](NewAccessSet())
	require.True(t, a.ConflictsWith(b))
}

func TestAccessSetNoConflictOnDisjointReads(t *testing.T) {
	type posT struct{}
	type velT struct{}
	a := ReadsComponent[posT](NewAccessSet())
	b := ReadsComponent[velT](NewAccessSet())
	require.False(t, a.ConflictsWith(b))
}

func TestAccessSetNoConflictBetweenTwoReaders(t *testing.T) {
	type posT struct{}
	a := ReadsComponent[posT](NewAccessSet())
	b := ReadsComponent[posT](NewAccessSet())
	require.False(t, a.ConflictsWith(b))
}

func TestAccessSetWriteCannotBeDowngradedByLaterRead(t *testing.T) {
	type posT struct{}
	a := NewAccessSet()
	WritesComponent[posT](a)
	ReadsComponent[posT](a)
	b := ReadsComponent[posT](NewAccessSet())
	require.True(t, a.ConflictsWith(b))
}

// RunParallel must respect the same ordering and access-conflict
// constraints as RunSequential, just dispatched concurrently.
func TestRunParallelRunsIndependentSystemsAndRespectsEdges(t *testing.T) {
	type posT struct{}
	type velT struct{}
	w := ecs.NewWorld()
	c := NewContainer()

	var order []string
	var mu sync.Mutex
	record := func(name string) RunFunc {
		return func(w *ecs.World) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	move := c.Add("move", WritesComponent[posT](ReadsComponent[velT](NewAccessSet())), record("move"))
	log := c.AddFn("log", record("log"))
	require.NoError(t, c.AddEdge(move, log))

	errs := c.RunParallel(w)
	require.Empty(t, errs)
	require.Equal(t, []string{"move", "log"}, order)
}
