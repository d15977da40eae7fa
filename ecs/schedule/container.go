package schedule

import (
	"fmt"
	"sort"

	"github.com/NOT-REAL-GAMES/forgecore/ecs"
)

// SystemID is a stable handle to a registered system, returned by every
// Add* call. Go has no zero-sized marker-type system identity the way the
// original engine's `add_edge::<Before, After>()` does, so edges are
// expressed against these runtime handles instead (see DESIGN.md).
type SystemID int

// RunFunc is a regular system's body.
type RunFunc func(w *ecs.World) error

// ExclusiveFunc is an exclusive system's body: it receives unshared world
// access and acts as a scheduler barrier.
type ExclusiveFunc func(w *ecs.World) error

// Condition is a condition system's body: it observes the world and
// returns true/false, never mutating it.
type Condition func(w *ecs.World) bool

// ConditionMode selects how a target system combines the result of its
// condition-edge sources.
type ConditionMode int

const (
	// All requires every condition source to be true (the default).
	All ConditionMode = iota
	// Any requires at least one condition source to be true.
	Any
)

type systemKind int

const (
	kindRegular systemKind = iota
	kindExclusive
	kindCondition
)

type systemEntry struct {
	id     SystemID
	name   string
	kind   systemKind
	run    RunFunc
	excl   ExclusiveFunc
	cond   Condition
	access *AccessSet
	mode   ConditionMode

	conditionSources []SystemID
}

// Container holds a system list, explicit ordering edges, and the
// precomputed topological order the single-threaded runner walks.
type Container struct {
	systems []*systemEntry
	byName  map[string]SystemID

	// adj[before] lists the systems that must run after before.
	adj map[SystemID][]SystemID

	order      []SystemID
	orderValid bool
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{
		byName: make(map[string]SystemID),
		adj:    make(map[SystemID][]SystemID),
	}
}

func (c *Container) register(name string, e *systemEntry) SystemID {
	if _, exists := c.byName[name]; exists {
		panic(fmt.Sprintf("schedule: system %q already registered", name))
	}
	id := SystemID(len(c.systems))
	e.id = id
	e.name = name
	c.systems = append(c.systems, e)
	c.byName[name] = id
	c.orderValid = false
	return id
}

// Add registers a regular system with its declared access set.
func (c *Container) Add(name string, access *AccessSet, run RunFunc) SystemID {
	return c.register(name, &systemEntry{kind: kindRegular, run: run, access: access})
}

// AddExclusive registers an exclusive system, which acts as a full
// scheduler barrier: the parallel runner waits for every in-flight system
// before running it, then continues.
func (c *Container) AddExclusive(name string, run ExclusiveFunc) SystemID {
	return c.register(name, &systemEntry{kind: kindExclusive, excl: run})
}

// AddFn is sugar for Add with an empty access set, for closures that only
// touch resources/components through the CommandBuffer.
func (c *Container) AddFn(name string, run RunFunc) SystemID {
	return c.Add(name, NewAccessSet(), run)
}

// AddExclusiveFn is sugar for AddExclusive.
func (c *Container) AddExclusiveFn(name string, run ExclusiveFunc) SystemID {
	return c.AddExclusive(name, run)
}

// AddCondition registers a condition system: its result gates any system
// it has an edge into, combined per that target's ConditionMode.
func (c *Container) AddCondition(name string, cond Condition) SystemID {
	return c.register(name, &systemEntry{kind: kindCondition, cond: cond})
}

// SetConditionMode sets how target combines its condition-edge sources.
// Defaults to All.
func (c *Container) SetConditionMode(target SystemID, mode ConditionMode) {
	c.systems[target].mode = mode
}

// Edge is one ordering constraint for AddEdges' all-or-nothing form.
type Edge struct {
	Before SystemID
	After  SystemID
}

// AddEdge asserts before must complete before after starts. If before is a
// condition system, after also gains it as a condition source (§4.7).
// Validates the resulting graph stays acyclic before committing; returns
// a CycleError naming the involved systems otherwise. Duplicate edges are
// idempotent.
func (c *Container) AddEdge(before, after SystemID) error {
	return c.AddEdges([]Edge{{Before: before, After: after}})
}

// AddEdges commits every edge only if the combined result is acyclic.
func (c *Container) AddEdges(edges []Edge) error {
	trial := make(map[SystemID][]SystemID, len(c.adj))
	for k, v := range c.adj {
		trial[k] = append([]SystemID(nil), v...)
	}
	for _, e := range edges {
		if !c.hasEdge(trial, e.Before, e.After) {
			trial[e.Before] = append(trial[e.Before], e.After)
		}
	}

	if cycle := c.findCycle(trial); cycle != nil {
		return &CycleError{Systems: c.names(cycle)}
	}

	c.adj = trial
	for _, e := range edges {
		if c.systems[e.Before].kind == kindCondition {
			c.addConditionSource(e.After, e.Before)
		}
	}
	c.orderValid = false
	return nil
}

func (c *Container) addConditionSource(target, source SystemID) {
	for _, s := range c.systems[target].conditionSources {
		if s == source {
			return
		}
	}
	c.systems[target].conditionSources = append(c.systems[target].conditionSources, source)
}

func (c *Container) hasEdge(adj map[SystemID][]SystemID, before, after SystemID) bool {
	for _, a := range adj[before] {
		if a == after {
			return true
		}
	}
	return false
}

func (c *Container) names(ids []SystemID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = c.systems[id].name
	}
	return out
}

// CycleError reports the system names implicated in a rejected edge set.
type CycleError struct {
	Systems []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("schedule: cyclic dependency among systems %v", e.Systems)
}

// findCycle runs Kahn's algorithm over adj; on success (every node
// emitted) it returns nil, otherwise the subset of systems that never
// reached zero in-degree.
func (c *Container) findCycle(adj map[SystemID][]SystemID) []SystemID {
	inDegree := make(map[SystemID]int, len(c.systems))
	for i := range c.systems {
		inDegree[SystemID(i)] = 0
	}
	for _, deps := range adj {
		for _, d := range deps {
			inDegree[d]++
		}
	}

	queue := make([]SystemID, 0, len(c.systems))
	for i := range c.systems {
		id := SystemID(i)
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range adj[n] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited == len(c.systems) {
		return nil
	}
	remaining := make([]SystemID, 0, len(c.systems)-visited)
	for i := range c.systems {
		id := SystemID(i)
		if inDegree[id] > 0 {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// topologicalOrder computes (and caches) a valid execution order.
func (c *Container) topologicalOrder() []SystemID {
	if c.orderValid {
		return c.order
	}
	inDegree := make([]int, len(c.systems))
	for _, deps := range c.adj {
		for _, d := range deps {
			inDegree[d]++
		}
	}
	queue := make([]SystemID, 0, len(c.systems))
	for i := range c.systems {
		if inDegree[i] == 0 {
			queue = append(queue, SystemID(i))
		}
	}
	order := make([]SystemID, 0, len(c.systems))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dep := range c.adj[n] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	c.order = order
	c.orderValid = true
	return order
}

func (c *Container) evaluateConditions(w *ecs.World, e *systemEntry) bool {
	if len(e.conditionSources) == 0 {
		return true
	}
	switch e.mode {
	case Any:
		for _, src := range e.conditionSources {
			if c.systems[src].cond(w) {
				return true
			}
		}
		return false
	default: // All
		for _, src := range e.conditionSources {
			if !c.systems[src].cond(w) {
				return false
			}
		}
		return true
	}
}
