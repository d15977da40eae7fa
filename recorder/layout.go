package recorder

import (
	"sync"

	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
	"github.com/NOT-REAL-GAMES/forgecore/vk"
)

// TextureLayout is the closed set of Vulkan-family image layouts the
// tracker manages, per spec §4.3.3.
type TextureLayout int

const (
	LayoutUndefined TextureLayout = iota
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilReadOnly
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresentSrc
	LayoutGeneral
)

// ToVk maps a tracked layout onto its vk.ImageLayout constant.
func (l TextureLayout) ToVk() vk.ImageLayout {
	switch l {
	case LayoutColorAttachment:
		return vk.IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL
	case LayoutDepthStencilAttachment:
		return vk.IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL
	case LayoutDepthStencilReadOnly:
		return vk.IMAGE_LAYOUT_DEPTH_STENCIL_READ_ONLY_OPTIMAL
	case LayoutShaderReadOnly:
		return vk.IMAGE_LAYOUT_SHADER_READ_ONLY_OPTIMAL
	case LayoutTransferSrc:
		return vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL
	case LayoutTransferDst:
		return vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL
	case LayoutPresentSrc:
		return vk.IMAGE_LAYOUT_PRESENT_SRC_KHR
	case LayoutGeneral:
		return vk.IMAGE_LAYOUT_GENERAL
	default:
		return vk.IMAGE_LAYOUT_UNDEFINED
	}
}

// layoutForAccess maps a pass's declared texture access mode onto the
// layout that access requires.
func layoutForAccess(mode rendergraph.TextureAccessMode) TextureLayout {
	switch mode {
	case rendergraph.RenderTargetWrite:
		return LayoutColorAttachment
	case rendergraph.DepthStencilWrite:
		return LayoutDepthStencilAttachment
	case rendergraph.DepthStencilReadOnly:
		return LayoutDepthStencilReadOnly
	case rendergraph.ShaderRead:
		return LayoutShaderReadOnly
	case rendergraph.StorageRead, rendergraph.StorageWrite:
		return LayoutGeneral
	case rendergraph.TransferRead:
		return LayoutTransferSrc
	case rendergraph.TransferWrite:
		return LayoutTransferDst
	case rendergraph.SurfaceWrite, rendergraph.SurfaceReadWrite:
		return LayoutColorAttachment
	default:
		return LayoutUndefined
	}
}

// accessMask and stageMask implement the fixed per-layout table spec
// §4.3.3 calls for (Undefined -> TOP_OF_PIPE + none, ColorAttachment ->
// COLOR_ATTACHMENT_OUTPUT + COLOR_ATTACHMENT_WRITE, etc.), captured from
// the Vulkan-family layout tracker this package is grounded on.
func accessMask(l TextureLayout) vk.AccessFlags {
	switch l {
	case LayoutColorAttachment:
		return vk.ACCESS_COLOR_ATTACHMENT_WRITE_BIT
	case LayoutDepthStencilAttachment:
		return vk.ACCESS_DEPTH_STENCIL_ATTACHMENT_READ_BIT | vk.ACCESS_DEPTH_STENCIL_ATTACHMENT_WRITE_BIT
	case LayoutDepthStencilReadOnly:
		return vk.ACCESS_DEPTH_STENCIL_ATTACHMENT_READ_BIT
	case LayoutShaderReadOnly:
		return vk.ACCESS_SHADER_READ_BIT
	case LayoutTransferSrc:
		return vk.ACCESS_TRANSFER_READ_BIT
	case LayoutTransferDst:
		return vk.ACCESS_TRANSFER_WRITE_BIT
	case LayoutGeneral:
		return vk.ACCESS_SHADER_READ_BIT | vk.ACCESS_SHADER_WRITE_BIT
	case LayoutPresentSrc:
		return vk.ACCESS_MEMORY_READ_BIT
	default:
		return vk.ACCESS_NONE
	}
}

func stageMask(l TextureLayout) vk.PipelineStageFlags {
	switch l {
	case LayoutColorAttachment:
		return vk.PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT
	case LayoutDepthStencilAttachment, LayoutDepthStencilReadOnly:
		return vk.PIPELINE_STAGE_EARLY_FRAGMENT_TESTS_BIT | vk.PIPELINE_STAGE_LATE_FRAGMENT_TESTS_BIT
	case LayoutShaderReadOnly, LayoutGeneral:
		return vk.PIPELINE_STAGE_FRAGMENT_SHADER_BIT | vk.PIPELINE_STAGE_COMPUTE_SHADER_BIT
	case LayoutTransferSrc, LayoutTransferDst:
		return vk.PIPELINE_STAGE_TRANSFER_BIT
	case LayoutPresentSrc:
		return vk.PIPELINE_STAGE_BOTTOM_OF_PIPE_BIT
	default:
		return vk.PIPELINE_STAGE_TOP_OF_PIPE_BIT
	}
}

// imageState is one tracked image's current layout in one frame-in-flight
// slot.
type imageState struct {
	layout TextureLayout
}

// LayoutTracker maintains, per image and per frame-in-flight slot, the
// image's current Vulkan layout, per spec §4.3.3. Transitions are not
// validated: TransitionFor moves an image to whatever layout the access
// mode maps to without consulting the texture's usage flags, and no usage
// graph of reachable layouts is built.
type LayoutTracker struct {
	mu             sync.Mutex
	framesInFlight int
	state          map[rendergraph.ResourceKey][]imageState
}

// NewLayoutTracker returns a tracker with framesInFlight independent rings
// per image — matching the deferred destructor's slot count so that each
// frame-in-flight's recorded barriers are independent of the others.
func NewLayoutTracker(framesInFlight int) *LayoutTracker {
	if framesInFlight < 1 {
		framesInFlight = 1
	}
	return &LayoutTracker{
		framesInFlight: framesInFlight,
		state:          make(map[rendergraph.ResourceKey][]imageState),
	}
}

// Get returns the current layout of key in slot, defaulting to Undefined
// for images the tracker has not yet seen in that slot.
func (t *LayoutTracker) Get(key rendergraph.ResourceKey, slot int) TextureLayout {
	t.mu.Lock()
	defer t.mu.Unlock()
	states, ok := t.state[key]
	if !ok || states[slot%t.framesInFlight].layout == LayoutUndefined {
		return LayoutUndefined
	}
	return states[slot%t.framesInFlight].layout
}

func (t *LayoutTracker) set(key rendergraph.ResourceKey, slot int, layout TextureLayout) {
	states, ok := t.state[key]
	if !ok {
		states = make([]imageState, t.framesInFlight)
		t.state[key] = states
	}
	states[slot%t.framesInFlight].layout = layout
}

// Barrier is the computed transition the recorder must emit for a texture
// before the pass that declared the given access mode.
type Barrier struct {
	Key       rendergraph.ResourceKey
	OldLayout TextureLayout
	NewLayout TextureLayout
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
}

// TransitionFor computes and applies the layout transition (if any) a
// texture access requires in the given frame-in-flight slot. It returns
// (barrier, true) when a transition is needed, or (zero, false) when the
// tracked layout already matches.
//
// Swapchain/surface images are tracked specially by the caller: they start
// each frame Undefined and always transition to ColorAttachment at render
// pass begin (handled by passing LayoutUndefined as the forced "current"
// via ResetSurface before the first access of a frame).
func (t *LayoutTracker) TransitionFor(key rendergraph.ResourceKey, slot int, mode rendergraph.TextureAccessMode) (Barrier, bool) {
	required := layoutForAccess(mode)

	t.mu.Lock()
	defer t.mu.Unlock()

	current := LayoutUndefined
	if states, ok := t.state[key]; ok {
		current = states[slot%t.framesInFlight].layout
	}

	if current == required {
		return Barrier{}, false
	}

	barrier := Barrier{
		Key:       key,
		OldLayout: current,
		NewLayout: required,
		SrcAccess: accessMask(current),
		DstAccess: accessMask(required),
		SrcStage:  stageMask(current),
		DstStage:  stageMask(required),
	}
	t.set(key, slot, required)
	return barrier, true
}

// ResetSurface forces a surface image back to Undefined at the start of a
// frame, matching the spec's "swapchain images start each frame in
// Undefined" rule.
func (t *LayoutTracker) ResetSurface(key rendergraph.ResourceKey, slot int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set(key, slot, LayoutUndefined)
}
