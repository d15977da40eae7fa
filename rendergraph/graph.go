package rendergraph

// PassHandle is a dense index into a RenderGraph's pass array. Stable for
// the graph's lifetime; never reused across graphs.
type PassHandle uint32

// dependencyEdge records an explicit (dependent, dependency) pair as added
// via AddDependency — the dependency must run before the dependent.
type dependencyEdge struct {
	Dependent  PassHandle
	Dependency PassHandle
}

// RenderGraph is a plain-old-data container: a pass vector and an explicit
// edge vector. It is cheap to allocate; applications are expected to build
// and discard one per frame (or pool them, §6).
type RenderGraph struct {
	passes []Pass
	edges  []dependencyEdge
}

// NewRenderGraph returns an empty graph ready to accept passes.
func NewRenderGraph() *RenderGraph {
	return &RenderGraph{}
}

// AddGraphicsPass appends a graphics pass and returns its handle.
func (g *RenderGraph) AddGraphicsPass(name string, data GraphicsPassData) PassHandle {
	h := PassHandle(len(g.passes))
	d := data
	g.passes = append(g.passes, Pass{Name: name, Kind: PassGraphics, Graphics: &d})
	return h
}

// AddComputePass appends a compute pass and returns its handle.
func (g *RenderGraph) AddComputePass(name string, data ComputePassData) PassHandle {
	h := PassHandle(len(g.passes))
	d := data
	g.passes = append(g.passes, Pass{Name: name, Kind: PassCompute, Compute: &d})
	return h
}

// AddTransferPass appends a transfer pass and returns its handle.
func (g *RenderGraph) AddTransferPass(name string, data TransferPassData) PassHandle {
	h := PassHandle(len(g.passes))
	d := data
	g.passes = append(g.passes, Pass{Name: name, Kind: PassTransfer, Transfer: &d})
	return h
}

// AddDependency records that dependent must run after dependency. Order of
// arguments matches spec §4.1: (dependent, dependency).
func (g *RenderGraph) AddDependency(dependent, dependency PassHandle) {
	g.edges = append(g.edges, dependencyEdge{Dependent: dependent, Dependency: dependency})
}

// PassCount reports the number of passes added so far.
func (g *RenderGraph) PassCount() int { return len(g.passes) }

// Pass returns the pass stored at h. Panics if h is out of range — callers
// that need a non-panicking form should check h against PassCount first;
// the compiler itself validates handles and returns InvalidPassHandle.
func (g *RenderGraph) Pass(h PassHandle) Pass { return g.passes[h] }

func (g *RenderGraph) validHandle(h PassHandle) bool {
	return int(h) < len(g.passes)
}
