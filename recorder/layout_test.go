package recorder

import (
	"testing"

	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
	"github.com/stretchr/testify/require"
)

func TestLayoutTrackerTransitionsOnlyWhenNeeded(t *testing.T) {
	tracker := NewLayoutTracker(2)
	key := rendergraph.ResourceKey{Kind: rendergraph.KindTexture, ID: 1}

	barrier, changed := tracker.TransitionFor(key, 0, rendergraph.RenderTargetWrite)
	require.True(t, changed)
	require.Equal(t, LayoutUndefined, barrier.OldLayout)
	require.Equal(t, LayoutColorAttachment, barrier.NewLayout)
	require.Equal(t, LayoutColorAttachment, tracker.Get(key, 0))

	_, changed = tracker.TransitionFor(key, 0, rendergraph.RenderTargetWrite)
	require.False(t, changed, "repeating the same access must not re-emit a barrier")

	barrier, changed = tracker.TransitionFor(key, 0, rendergraph.ShaderRead)
	require.True(t, changed)
	require.Equal(t, LayoutColorAttachment, barrier.OldLayout)
	require.Equal(t, LayoutShaderReadOnly, barrier.NewLayout)
}

func TestLayoutTrackerSlotsAreIndependent(t *testing.T) {
	tracker := NewLayoutTracker(2)
	key := rendergraph.ResourceKey{Kind: rendergraph.KindTexture, ID: 2}

	tracker.TransitionFor(key, 0, rendergraph.RenderTargetWrite)
	require.Equal(t, LayoutUndefined, tracker.Get(key, 1), "slot 1 is untouched by writes to slot 0")
}

func TestResetSurfaceForcesUndefined(t *testing.T) {
	tracker := NewLayoutTracker(2)
	key := rendergraph.ResourceKey{Kind: rendergraph.KindSurface, ID: 3}

	tracker.TransitionFor(key, 0, rendergraph.SurfaceWrite)
	require.Equal(t, LayoutColorAttachment, tracker.Get(key, 0))

	tracker.ResetSurface(key, 0)
	require.Equal(t, LayoutUndefined, tracker.Get(key, 0))
}
