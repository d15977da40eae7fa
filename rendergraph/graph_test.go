package rendergraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderGraphHandlesAreStableAndDense(t *testing.T) {
	g := NewRenderGraph()

	a := g.AddGraphicsPass("a", GraphicsPassData{})
	b := g.AddComputePass("b", ComputePassData{})
	c := g.AddTransferPass("c", TransferPassData{})

	require.Equal(t, PassHandle(0), a)
	require.Equal(t, PassHandle(1), b)
	require.Equal(t, PassHandle(2), c)
	require.Equal(t, 3, g.PassCount())

	require.Equal(t, PassGraphics, g.Pass(a).Kind)
	require.Equal(t, PassCompute, g.Pass(b).Kind)
	require.Equal(t, PassTransfer, g.Pass(c).Kind)
}

func TestInternVertexLayoutSharesIdenticalContents(t *testing.T) {
	attrs := []VertexAttribute{{Semantic: "POSITION", Format: FormatRgba32Float, ByteOffset: 0, BufferIndex: 0}}
	buffers := []VertexBufferLayout{{Stride: 12}}

	l1 := InternVertexLayout(attrs, buffers)
	l2 := InternVertexLayout(
		[]VertexAttribute{{Semantic: "POSITION", Format: FormatRgba32Float, ByteOffset: 0, BufferIndex: 0}},
		[]VertexBufferLayout{{Stride: 12}},
	)

	require.Same(t, l1, l2)

	l3 := InternVertexLayout(
		[]VertexAttribute{{Semantic: "NORMAL", Format: FormatRgba32Float, ByteOffset: 0, BufferIndex: 0}},
		buffers,
	)
	require.NotSame(t, l1, l3)
}
