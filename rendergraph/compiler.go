package rendergraph

import "fmt"

// CompileMode selects how the compiler resolves write-write ambiguities
// that no read and no explicit edge orders.
type CompileMode int

const (
	// Automatic breaks write-write ties by running the lower pass index
	// first, preserving addition order.
	Automatic CompileMode = iota
	// Strict rejects any unresolved write-write tie with AmbiguousOrder.
	Strict
)

// CyclicDependencyError is returned when explicit edges form a cycle, or
// when resource analysis produces contradictory auto-edges (pass A writes
// what B reads and B writes what A reads).
type CyclicDependencyError struct {
	Involved []PassHandle
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("rendergraph: cyclic dependency involving passes %v", e.Involved)
}

// InvalidPassHandleError is returned when a dependency edge names a handle
// outside the graph's pass array.
type InvalidPassHandleError struct {
	Handle PassHandle
}

func (e *InvalidPassHandleError) Error() string {
	return fmt.Sprintf("rendergraph: invalid pass handle %d", e.Handle)
}

// AmbiguousOrderError is returned in Strict mode when two passes write the
// same resource with no read-link and no explicit edge between them.
type AmbiguousOrderError struct {
	A, B PassHandle
}

func (e *AmbiguousOrderError) Error() string {
	return fmt.Sprintf("rendergraph: ambiguous order between passes %d and %d", e.A, e.B)
}

// CompiledGraph is the compiler's output: a topologically ordered pass list
// and the per-pass resource usage computed along the way.
type CompiledGraph struct {
	PassOrder  []PassHandle
	PassUsages []PassResourceUsage
}

// UsageFor returns the resource usage computed for h, or false if h was not
// part of the compiled graph.
func (c *CompiledGraph) UsageFor(h PassHandle) (PassResourceUsage, bool) {
	for _, u := range c.PassUsages {
		if u.Pass == h {
			return u, true
		}
	}
	return PassResourceUsage{}, false
}

// Compile infers resource dependencies, validates the graph is acyclic, and
// produces a topological execution order, per spec §4.2.
func Compile(g *RenderGraph, mode CompileMode) (*CompiledGraph, error) {
	n := g.PassCount()

	for _, e := range g.edges {
		if !g.validHandle(e.Dependent) {
			return nil, &InvalidPassHandleError{Handle: e.Dependent}
		}
		if !g.validHandle(e.Dependency) {
			return nil, &InvalidPassHandleError{Handle: e.Dependency}
		}
	}

	usages := make([]PassResourceUsage, n)
	for i, p := range g.passes {
		usages[i] = inferPassUsage(PassHandle(i), p)
	}

	edges := make(map[[2]PassHandle]bool, len(g.edges))
	var orderedEdges [][2]PassHandle // [dependency, dependent]
	addEdge := func(dependency, dependent PassHandle) {
		if dependency == dependent {
			return
		}
		key := [2]PassHandle{dependency, dependent}
		if edges[key] {
			return
		}
		edges[key] = true
		orderedEdges = append(orderedEdges, key)
	}

	for _, e := range g.edges {
		addEdge(e.Dependency, e.Dependent)
	}

	reach := computeReachability(n, orderedEdges)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := PassHandle(i), PassHandle(j)
			if err := inferResourceEdges(a, b, usages[i], usages[j], reach, mode, addEdge); err != nil {
				return nil, err
			}
		}
	}

	order, err := topoSort(n, orderedEdges)
	if err != nil {
		return nil, err
	}

	return &CompiledGraph{PassOrder: order, PassUsages: usages}, nil
}

// inferResourceEdges implements spec §4.2.2 for a single unordered pass
// pair (a, b). addEdge records (dependency, dependent): the dependency runs
// first.
func inferResourceEdges(a, b PassHandle, ua, ub PassResourceUsage, reach reachability, mode CompileMode, addEdge func(dependency, dependent PassHandle)) error {
	aWrites, aReads := ua.writers(), ua.readers()
	bWrites, bReads := ub.writers(), ub.readers()

	aWritesBReads := false
	bWritesAReads := false

	for key := range aWrites {
		if bReads[key] {
			aWritesBReads = true
			break
		}
	}
	for key := range bWrites {
		if aReads[key] {
			bWritesAReads = true
			break
		}
	}

	if aWritesBReads && bWritesAReads {
		return &CyclicDependencyError{Involved: []PassHandle{a, b}}
	}
	if aWritesBReads {
		addEdge(a, b) // b depends on a
	}
	if bWritesAReads {
		addEdge(b, a) // a depends on b
	}
	if aWritesBReads || bWritesAReads {
		return nil
	}

	// Neither side reads what the other writes. Check for write-write
	// contention on any shared resource.
	for key := range aWrites {
		if !bWrites[key] {
			continue
		}
		if reach.orders(a, b) {
			continue
		}
		if mode == Strict {
			return &AmbiguousOrderError{A: a, B: b}
		}
		lower, upper := a, b
		if upper < lower {
			lower, upper = upper, lower
		}
		addEdge(lower, upper) // higher-index pass depends on the lower one
	}

	return nil
}

// reachability answers, for every ordered pair, whether one pass is already
// transitively ordered before the other via the graph's explicit edges —
// computed with Floyd-Warshall once, before any auto-edge is inferred, so
// auto-edges never contribute to it, per spec §4.2.2.
type reachability struct {
	n     int
	reach []bool // reach[i*n+j] == true iff i is reachable to (runs before) j
}

func computeReachability(n int, edges [][2]PassHandle) reachability {
	r := reachability{n: n, reach: make([]bool, n*n)}
	for _, e := range edges {
		dependency, dependent := int(e[0]), int(e[1])
		r.reach[dependency*n+dependent] = true
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if !r.reach[i*n+k] {
				continue
			}
			for j := 0; j < n; j++ {
				if r.reach[k*n+j] {
					r.reach[i*n+j] = true
				}
			}
		}
	}
	return r
}

// orders reports whether a and b are already transitively ordered in either
// direction.
func (r reachability) orders(a, b PassHandle) bool {
	i, j := int(a), int(b)
	return r.reach[i*r.n+j] || r.reach[j*r.n+i]
}

// topoSort runs Kahn's algorithm over the pass set and the accumulated edge
// list (dependency -> dependent).
func topoSort(n int, edges [][2]PassHandle) ([]PassHandle, error) {
	adjacency := make([][]PassHandle, n)
	inDegree := make([]int, n)

	for _, e := range edges {
		dependency, dependent := e[0], e[1]
		adjacency[dependency] = append(adjacency[dependency], dependent)
		inDegree[dependent]++
	}

	queue := make([]PassHandle, 0, n)
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			queue = append(queue, PassHandle(i))
		}
	}

	order := make([]PassHandle, 0, n)
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		order = append(order, h)

		for _, dependent := range adjacency[h] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) < n {
		var involved []PassHandle
		for i := 0; i < n; i++ {
			if inDegree[i] > 0 {
				involved = append(involved, PassHandle(i))
			}
		}
		return nil, &CyclicDependencyError{Involved: involved}
	}

	return order, nil
}
