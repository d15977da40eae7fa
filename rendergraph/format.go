package rendergraph

// Format enumerates the pixel formats a texture can carry. Names follow the
// WebGPU vocabulary; each backend recorder maps these onto its own native
// format enum (vk.Format for the Vulkan-family recorder, gputypes' format
// constants for the WebGPU-family one).
type Format int

const (
	FormatUndefined Format = iota
	FormatRgba8Unorm
	FormatBgra8Unorm
	FormatRg8Unorm
	FormatR8Unorm
	FormatRgba16Float
	FormatRgba32Float
	FormatDepth32Float
	FormatDepth24PlusStencil8
)

func (f Format) String() string {
	switch f {
	case FormatRgba8Unorm:
		return "Rgba8Unorm"
	case FormatBgra8Unorm:
		return "Bgra8Unorm"
	case FormatRg8Unorm:
		return "Rg8Unorm"
	case FormatR8Unorm:
		return "R8Unorm"
	case FormatRgba16Float:
		return "Rgba16Float"
	case FormatRgba32Float:
		return "Rgba32Float"
	case FormatDepth32Float:
		return "Depth32Float"
	case FormatDepth24PlusStencil8:
		return "Depth24PlusStencil8"
	default:
		return "Undefined"
	}
}

// IsDepth reports whether the format carries a depth (and possibly stencil)
// component rather than color channels.
func (f Format) IsDepth() bool {
	return f == FormatDepth32Float || f == FormatDepth24PlusStencil8
}

// BlockSize returns the per-texel byte size that
// BufferTextureLayout.ResolvedBytesPerRow uses for its default row pitch.
func (f Format) BlockSize() uint32 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatRg8Unorm:
		return 2
	case FormatRgba8Unorm, FormatBgra8Unorm, FormatDepth32Float, FormatDepth24PlusStencil8:
		return 4
	case FormatRgba16Float:
		return 8
	case FormatRgba32Float:
		return 16
	default:
		return 4
	}
}

// Dimension is a texture's addressing shape.
type Dimension int

const (
	Dimension1D Dimension = iota
	Dimension2D
	Dimension3D
	DimensionCube
	DimensionCubeArray
)

// BufferUsage is a bitset of the roles a buffer may be bound into.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageCopySrc
	BufferUsageCopyDst
	BufferUsageMapRead
	BufferUsageMapWrite
)

func (u BufferUsage) Has(bit BufferUsage) bool { return u&bit != 0 }

// TextureUsage is a bitset of the roles a texture may be bound into.
type TextureUsage uint32

const (
	TextureUsageRenderAttachment TextureUsage = 1 << iota
	TextureUsageTextureBinding
	TextureUsageStorageBinding
	TextureUsageCopySrc
	TextureUsageCopyDst
)

func (u TextureUsage) Has(bit TextureUsage) bool { return u&bit != 0 }

// IndexFormat selects the width of a mesh's index buffer entries.
type IndexFormat int

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// BindingType enumerates what a binding-layout entry resolves to.
type BindingType int

const (
	BindingUniformBuffer BindingType = iota
	BindingStorageBuffer
	BindingSampler
	BindingTexture
	BindingTextureCube
	BindingTexture2DArray
	BindingCombinedTextureSampler
)

// ShaderVisibility is a bitset of stages that may access a binding.
type ShaderVisibility uint32

const (
	VisibilityVertex ShaderVisibility = 1 << iota
	VisibilityFragment
	VisibilityCompute
)
