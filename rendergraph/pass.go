package rendergraph

// LoadOp selects how an attachment's existing contents are treated at pass
// begin.
type LoadOp int

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

// StoreOp selects whether an attachment's written contents are kept.
type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// ClearValue carries the value used when an attachment's LoadOp is Clear.
type ClearValue struct {
	Color        [4]float32
	Depth        float32
	Stencil      uint32
}

// RenderTarget names what a color or depth-stencil attachment actually
// writes into: either a texture view (with mip/array selection) or the
// current surface/swapchain view.
type RenderTarget struct {
	Texture     *Texture
	MipLevel    uint32
	ArrayLayer  uint32
	Surface     *Surface
}

func (rt RenderTarget) IsSurface() bool { return rt.Surface != nil }

// Attachment is one color or depth-stencil slot of a render target
// configuration.
type Attachment struct {
	Target RenderTarget
	Load   LoadOp
	Store  StoreOp
	Clear  ClearValue
}

// RenderTargetConfig is the ordered set of attachments a graphics pass
// writes to.
type RenderTargetConfig struct {
	ColorAttachments []Attachment
	DepthStencil     *Attachment
}

// Viewport and Scissor mirror the backend's fixed-function raster state;
// nil means "use the pass's full render area".
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Scissor struct {
	X, Y, Width, Height uint32
}

// DrawCommand issues one mesh draw against a bound material instance.
type DrawCommand struct {
	Mesh            *Mesh
	Instance        *MaterialInstance
	FirstInstance   uint32
	InstanceCount   uint32
	Scissor         *Scissor
}

// DispatchCommand issues one compute dispatch.
type DispatchCommand struct {
	Instance *MaterialInstance
	X, Y, Z  uint32
}

// BufferRegion describes a byte range copy between two buffers.
type BufferRegion struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferTextureLayout describes how a linear buffer region maps onto a
// texture copy's rows. Zero fields mean "unspecified"; ResolvedBytesPerRow
// and ResolvedRowsPerImage compute the §4.3.1 defaults for them. Neither
// recorder calls those helpers: wgpurec passes BytesPerRow and RowsPerImage
// through as given, and vkrec records tightly packed rows (BufferRowLength
// 0) with RowsPerImage as given.
type BufferTextureLayout struct {
	Offset       uint64
	BytesPerRow  uint32 // 0 => ResolvedBytesPerRow uses align_up(width*blockSize, 256) when height > 1
	RowsPerImage uint32 // 0 => ResolvedRowsPerImage uses the copy's height when depth > 1
}

// TextureLocation names the mip level and origin of a texture copy side.
type TextureLocation struct {
	MipLevel uint32
	OriginX, OriginY, OriginZ uint32
}

// CopyExtent is the width/height/depth of a transfer region.
type CopyExtent struct {
	Width, Height, Depth uint32
}

// BufferTextureRegion describes one buffer<->texture copy region.
type BufferTextureRegion struct {
	BufferLayout    BufferTextureLayout
	TextureLocation TextureLocation
	Extent          CopyExtent
}

// TextureTextureRegion describes one texture<->texture copy region.
type TextureTextureRegion struct {
	Src    TextureLocation
	Dst    TextureLocation
	Extent CopyExtent
}

// TransferOperationKind discriminates TransferOperation's sum variants.
type TransferOperationKind int

const (
	TransferBufferToBuffer TransferOperationKind = iota
	TransferBufferToTexture
	TransferTextureToBuffer
	TransferTextureToTexture
)

// TransferOperation is one copy command inside a transfer pass. Exactly the
// fields matching Kind are meaningful; constructors below enforce this.
type TransferOperation struct {
	Kind TransferOperationKind

	SrcBuffer  *Buffer
	DstBuffer  *Buffer
	BufferRegions []BufferRegion

	SrcTexture *Texture
	DstTexture *Texture

	BufferTextureRegions []BufferTextureRegion
	TextureTextureRegions []TextureTextureRegion
}

func BufferToBuffer(src, dst *Buffer, regions []BufferRegion) TransferOperation {
	return TransferOperation{Kind: TransferBufferToBuffer, SrcBuffer: src, DstBuffer: dst, BufferRegions: regions}
}

func BufferToTexture(src *Buffer, dst *Texture, regions []BufferTextureRegion) TransferOperation {
	return TransferOperation{Kind: TransferBufferToTexture, SrcBuffer: src, DstTexture: dst, BufferTextureRegions: regions}
}

func TextureToBuffer(src *Texture, dst *Buffer, regions []BufferTextureRegion) TransferOperation {
	return TransferOperation{Kind: TransferTextureToBuffer, SrcTexture: src, DstBuffer: dst, BufferTextureRegions: regions}
}

func TextureToTexture(src, dst *Texture, regions []TextureTextureRegion) TransferOperation {
	return TransferOperation{Kind: TransferTextureToTexture, SrcTexture: src, DstTexture: dst, TextureTextureRegions: regions}
}

// ResolvedBytesPerRow applies the §4.3.1 default: align_up(width*blockSize, 256)
// when unspecified and the region spans more than one row.
func (r BufferTextureLayout) ResolvedBytesPerRow(extent CopyExtent, format Format) uint32 {
	if r.BytesPerRow != 0 {
		return r.BytesPerRow
	}
	if extent.Height <= 1 {
		return 0
	}
	return alignUp(extent.Width*format.BlockSize(), 256)
}

// ResolvedRowsPerImage applies the §4.3.1 default: extent height, used when
// the copy spans more than one depth slice.
func (r BufferTextureLayout) ResolvedRowsPerImage(extent CopyExtent) uint32 {
	if r.RowsPerImage != 0 {
		return r.RowsPerImage
	}
	if extent.Depth <= 1 {
		return 0
	}
	return extent.Height
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// PassKind discriminates the Pass sum type's three variants.
type PassKind int

const (
	PassGraphics PassKind = iota
	PassCompute
	PassTransfer
)

// GraphicsPassData is the contents of a PassGraphics pass.
type GraphicsPassData struct {
	RenderTargets *RenderTargetConfig
	Draws         []DrawCommand
	Viewport      *Viewport
	Scissor       *Scissor
}

// ComputePassData is the contents of a PassCompute pass.
type ComputePassData struct {
	Dispatches []DispatchCommand
}

// TransferPassData is the contents of a PassTransfer pass.
type TransferPassData struct {
	Operations []TransferOperation
}

// Pass is the render graph's closed sum type over the three pass kinds.
// Exactly one of Graphics/Compute/Transfer is populated, matching Kind.
type Pass struct {
	Name     string
	Kind     PassKind
	Graphics *GraphicsPassData
	Compute  *ComputePassData
	Transfer *TransferPassData
}
