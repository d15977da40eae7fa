package rendergraph

import (
	"errors"
	"testing"

	"github.com/NOT-REAL-GAMES/forgecore/gpu"
	"github.com/stretchr/testify/require"
)

func testTexture(d *gpu.DeferredDestructor) *Texture {
	return NewTexture(d, 64, 64, 1, 1, 1, FormatRgba8Unorm, Dimension2D, TextureUsageRenderAttachment, "", nil, func() {})
}

func colorPass(name string, tex *Texture) GraphicsPassData {
	return GraphicsPassData{
		RenderTargets: &RenderTargetConfig{
			ColorAttachments: []Attachment{{
				Target: RenderTarget{Texture: tex},
				Load:   LoadOpClear,
				Store:  StoreOpStore,
			}},
		},
	}
}

// S3 — diamond DAG: edges (B,A) (C,A) (D,B) (D,C). Compiled order must put
// A first, D last, B/C in either order between.
func TestCompileDiamondDAG(t *testing.T) {
	d := gpu.NewDeferredDestructor(2)
	g := NewRenderGraph()

	a := g.AddGraphicsPass("A", colorPass("A", testTexture(d)))
	b := g.AddGraphicsPass("B", colorPass("B", testTexture(d)))
	c := g.AddGraphicsPass("C", colorPass("C", testTexture(d)))
	dd := g.AddGraphicsPass("D", colorPass("D", testTexture(d)))

	g.AddDependency(b, a)
	g.AddDependency(c, a)
	g.AddDependency(dd, b)
	g.AddDependency(dd, c)

	compiled, err := Compile(g, Automatic)
	require.NoError(t, err)
	require.Len(t, compiled.PassOrder, 4)

	pos := map[PassHandle]int{}
	for i, h := range compiled.PassOrder {
		pos[h] = i
	}

	require.Equal(t, 0, pos[a], "A must run first")
	require.Equal(t, 3, pos[dd], "D must run last")
	require.True(t, pos[b] > pos[a] && pos[b] < pos[dd])
	require.True(t, pos[c] > pos[a] && pos[c] < pos[dd])
}

// S4 — two graphics passes both RenderTargetWrite the same texture, no
// explicit edge. Strict must fail AmbiguousOrder; Automatic orders [P0, P1].
func TestCompileWriteWriteAmbiguity(t *testing.T) {
	d := gpu.NewDeferredDestructor(2)
	g := NewRenderGraph()
	shared := testTexture(d)

	p0 := g.AddGraphicsPass("P0", colorPass("P0", shared))
	p1 := g.AddGraphicsPass("P1", colorPass("P1", shared))

	_, err := Compile(g, Strict)
	require.Error(t, err)
	var ambiguous *AmbiguousOrderError
	require.True(t, errors.As(err, &ambiguous))
	require.ElementsMatch(t, []PassHandle{p0, p1}, []PassHandle{ambiguous.A, ambiguous.B})

	compiled, err := Compile(g, Automatic)
	require.NoError(t, err)
	require.Equal(t, []PassHandle{p0, p1}, compiled.PassOrder)
}

func TestCompileDetectsExplicitCycle(t *testing.T) {
	d := gpu.NewDeferredDestructor(2)
	g := NewRenderGraph()

	a := g.AddGraphicsPass("A", colorPass("A", testTexture(d)))
	b := g.AddGraphicsPass("B", colorPass("B", testTexture(d)))

	g.AddDependency(a, b)
	g.AddDependency(b, a)

	_, err := Compile(g, Automatic)
	require.Error(t, err)
	var cyclic *CyclicDependencyError
	require.True(t, errors.As(err, &cyclic))
}

func TestCompileInvalidPassHandle(t *testing.T) {
	d := gpu.NewDeferredDestructor(2)
	g := NewRenderGraph()
	a := g.AddGraphicsPass("A", colorPass("A", testTexture(d)))

	g.AddDependency(a, PassHandle(99))

	_, err := Compile(g, Automatic)
	require.Error(t, err)
	var invalid *InvalidPassHandleError
	require.True(t, errors.As(err, &invalid))
}

func TestCompileWriteReadOrdersPasses(t *testing.T) {
	d := gpu.NewDeferredDestructor(2)
	g := NewRenderGraph()
	tex := testTexture(d)

	writer := g.AddGraphicsPass("writer", colorPass("writer", tex))

	sampledGroup := &BindingGroup{Entries: []BindingGroupEntry{
		{Binding: 0, Resource: BindingResource{Texture: tex}},
	}}
	reader := g.AddComputePass("reader", ComputePassData{
		Dispatches: []DispatchCommand{{
			Instance: &MaterialInstance{
				Material:      &Material{BindingLayouts: []*BindingLayout{{Entries: []BindingLayoutEntry{{Binding: 0, Type: BindingTexture}}}}},
				BindingGroups: []*BindingGroup{sampledGroup},
			},
			X: 1, Y: 1, Z: 1,
		}},
	})

	compiled, err := Compile(g, Automatic)
	require.NoError(t, err)
	require.Len(t, compiled.PassOrder, 2)
	require.Equal(t, writer, compiled.PassOrder[0])
	require.Equal(t, reader, compiled.PassOrder[1])
}
