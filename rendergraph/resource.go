package rendergraph

import (
	"sync"
	"sync/atomic"

	"github.com/NOT-REAL-GAMES/forgecore/gpu"
)

var nextResourceID uint64

func allocResourceID() uint64 {
	return atomic.AddUint64(&nextResourceID, 1)
}

// ResourceKind tags which closed set of resources a ResourceKey names, so
// the compiler's usage maps never conflate a buffer and a texture that
// happen to share an allocation-order ID.
type ResourceKind int

const (
	KindBuffer ResourceKind = iota
	KindTexture
	KindSurface
)

// ResourceKey identifies a single buffer, texture, or surface target for
// the purposes of the graph compiler's dependency analysis. Two handles to
// the same underlying resource compare equal; handles to distinct
// resources, even of identical contents, never do.
type ResourceKey struct {
	Kind ResourceKind
	ID   uint64
}

// refCounted is embedded by every graph resource that is owned once and
// shared by reference. Release enqueues the backend dispose closure into
// the deferred destructor once the last reference drops; the GPU handle is
// never freed synchronously.
type refCounted struct {
	count      int32
	destructor *gpu.DeferredDestructor
	dispose    func()
}

func newRefCounted(destructor *gpu.DeferredDestructor, dispose func()) refCounted {
	return refCounted{count: 1, destructor: destructor, dispose: dispose}
}

// Retain increments the reference count; pair with Release.
func (r *refCounted) Retain() { atomic.AddInt32(&r.count, 1) }

// Release decrements the reference count, retiring the resource into the
// deferred destructor when it reaches zero. Calling Release more times than
// Retain (plus the initial reference from creation) is a caller bug.
func (r *refCounted) Release() {
	if atomic.AddInt32(&r.count, -1) == 0 && r.dispose != nil {
		r.destructor.RetireFunc(r.dispose)
	}
}

// RefCount reports the current reference count, for diagnostics and tests.
func (r *refCounted) RefCount() int32 { return atomic.LoadInt32(&r.count) }

// Buffer is a GPU buffer resource: size, usage flags, and an opaque backend
// handle. Host-visible buffer contents are written and read through the
// owning backend's WriteBuffer/ReadBuffer (the graph model itself stays
// backend-agnostic).
type Buffer struct {
	refCounted
	id      uint64
	Size    uint64
	Usage   BufferUsage
	Label   string
	Backend any // *vkrec handle or *wgpurec handle, set by the owning backend
}

// NewBuffer constructs a Buffer resource owned by the given deferred
// destructor. dispose is the backend-specific handle teardown.
func NewBuffer(destructor *gpu.DeferredDestructor, size uint64, usage BufferUsage, label string, backend any, dispose func()) *Buffer {
	return &Buffer{
		refCounted: newRefCounted(destructor, dispose),
		id:         allocResourceID(),
		Size:       size,
		Usage:      usage,
		Label:      label,
		Backend:    backend,
	}
}

// Key returns this buffer's identity for compiler resource-usage analysis.
func (b *Buffer) Key() ResourceKey { return ResourceKey{Kind: KindBuffer, ID: b.id} }

// Texture is a GPU image resource.
type Texture struct {
	refCounted
	id          uint64
	Width       uint32
	Height      uint32
	DepthOrLayers uint32
	MipLevels   uint32
	SampleCount uint32
	Format      Format
	Dimension   Dimension
	Usage       TextureUsage
	Label       string
	Backend     any
}

func NewTexture(destructor *gpu.DeferredDestructor, width, height, depthOrLayers, mipLevels, sampleCount uint32, format Format, dim Dimension, usage TextureUsage, label string, backend any, dispose func()) *Texture {
	if mipLevels == 0 {
		mipLevels = 1
	}
	if sampleCount == 0 {
		sampleCount = 1
	}
	if depthOrLayers == 0 {
		depthOrLayers = 1
	}
	return &Texture{
		refCounted:    newRefCounted(destructor, dispose),
		id:            allocResourceID(),
		Width:         width,
		Height:        height,
		DepthOrLayers: depthOrLayers,
		MipLevels:     mipLevels,
		SampleCount:   sampleCount,
		Format:        format,
		Dimension:     dim,
		Usage:         usage,
		Label:         label,
		Backend:       backend,
	}
}

func (t *Texture) Key() ResourceKey { return ResourceKey{Kind: KindTexture, ID: t.id} }

// Surface is a distinguished pseudo-resource standing in for a swapchain's
// current-frame image. It is not reference-counted like Buffer/Texture —
// its lifetime is owned by the swapchain, not the graph.
type Surface struct {
	id uint64
}

func NewSurface() *Surface { return &Surface{id: allocResourceID()} }

func (s *Surface) Key() ResourceKey { return ResourceKey{Kind: KindSurface, ID: s.id} }

// Sampler configures texture filtering and addressing.
type Sampler struct {
	refCounted
	id               uint64
	MagFilter        Filter
	MinFilter        Filter
	MipFilter        Filter
	AddressModeU     AddressMode
	AddressModeV     AddressMode
	AddressModeW     AddressMode
	MaxAnisotropy    float32
	CompareFunc      *CompareFunc
	LodMinClamp      float32
	LodMaxClamp      float32
	Backend          any
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

type AddressMode int

const (
	AddressModeRepeat AddressMode = iota
	AddressModeMirrorRepeat
	AddressModeClampToEdge
	AddressModeClampToBorder
)

type CompareFunc int

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

func NewSampler(destructor *gpu.DeferredDestructor, desc SamplerDescriptor, backend any, dispose func()) *Sampler {
	return &Sampler{
		refCounted:    newRefCounted(destructor, dispose),
		id:            allocResourceID(),
		MagFilter:     desc.MagFilter,
		MinFilter:     desc.MinFilter,
		MipFilter:     desc.MipFilter,
		AddressModeU:  desc.AddressModeU,
		AddressModeV:  desc.AddressModeV,
		AddressModeW:  desc.AddressModeW,
		MaxAnisotropy: desc.MaxAnisotropy,
		CompareFunc:   desc.CompareFunc,
		LodMinClamp:   desc.LodMinClamp,
		LodMaxClamp:   desc.LodMaxClamp,
		Backend:       backend,
	}
}

type SamplerDescriptor struct {
	MagFilter, MinFilter, MipFilter Filter
	AddressModeU, AddressModeV, AddressModeW AddressMode
	MaxAnisotropy                            float32
	CompareFunc                              *CompareFunc
	LodMinClamp, LodMaxClamp                 float32
	Label                                    string
}

// VertexAttribute is one entry of a vertex layout.
type VertexAttribute struct {
	Semantic     string
	Format       Format
	ByteOffset   uint32
	BufferIndex  uint32
}

// VertexBufferLayout describes one of the layout's source buffers.
type VertexBufferLayout struct {
	Stride uint32
}

// VertexLayout is immutable and interned: two layouts built from identical
// contents share a single instance, matching the spec's "Immutable,
// interned" invariant for §3.1 VertexLayout.
type VertexLayout struct {
	Attributes []VertexAttribute
	Buffers    []VertexBufferLayout
	key        string
}

var (
	vertexLayoutInternMu sync.Mutex
	vertexLayoutIntern   = map[string]*VertexLayout{}
)

// InternVertexLayout returns the shared VertexLayout for the given contents,
// creating it on first use.
func InternVertexLayout(attrs []VertexAttribute, buffers []VertexBufferLayout) *VertexLayout {
	key := vertexLayoutKey(attrs, buffers)

	vertexLayoutInternMu.Lock()
	defer vertexLayoutInternMu.Unlock()
	if existing, ok := vertexLayoutIntern[key]; ok {
		return existing
	}
	layout := &VertexLayout{Attributes: attrs, Buffers: buffers, key: key}
	vertexLayoutIntern[key] = layout
	return layout
}

func vertexLayoutKey(attrs []VertexAttribute, buffers []VertexBufferLayout) string {
	b := make([]byte, 0, 32*(len(attrs)+len(buffers)))
	for _, a := range attrs {
		b = append(b, a.Semantic...)
		b = appendUint32(b, uint32(a.Format))
		b = appendUint32(b, a.ByteOffset)
		b = appendUint32(b, a.BufferIndex)
	}
	for _, buf := range buffers {
		b = appendUint32(b, buf.Stride)
	}
	return string(b)
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// ShaderStage is one stage of a material's pipeline.
type ShaderStage struct {
	Stage      ShaderVisibility
	EntryPoint string
	Code       []byte // SPIR-V or WGSL bytes, backend-dependent
}

// BindingLayoutEntry describes one slot a binding group must fill.
type BindingLayoutEntry struct {
	Binding    uint32
	Type       BindingType
	Visibility ShaderVisibility
}

// BindingLayout is an ordered set of binding-layout entries a material
// declares; BindingGroups built against it must supply a matching shape.
type BindingLayout struct {
	Entries []BindingLayoutEntry
}

// BlendState configures a color target's blend fixed-function state.
type BlendState struct {
	Enabled bool
}

// PolygonMode selects fill/line/point rasterization.
type PolygonMode int

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
	PolygonModePoint
)

// Material owns a backend pipeline built eagerly at creation and held for
// the material's lifetime.
type Material struct {
	refCounted
	id                  uint64
	VertexLayout        *VertexLayout
	Stages              []ShaderStage
	BindingLayouts      []*BindingLayout
	Blend               BlendState
	PolygonMode         PolygonMode
	ColorTargetFormats  []Format
	DepthFormat         *Format
	Label               string
	Pipeline            any // backend pipeline handle
}

func NewMaterial(destructor *gpu.DeferredDestructor, desc MaterialDescriptor, pipeline any, dispose func()) *Material {
	return &Material{
		refCounted:         newRefCounted(destructor, dispose),
		id:                 allocResourceID(),
		VertexLayout:       desc.VertexLayout,
		Stages:             desc.Stages,
		BindingLayouts:     desc.BindingLayouts,
		Blend:              desc.Blend,
		PolygonMode:        desc.PolygonMode,
		ColorTargetFormats: desc.ColorTargetFormats,
		DepthFormat:        desc.DepthFormat,
		Label:              desc.Label,
		Pipeline:           pipeline,
	}
}

type MaterialDescriptor struct {
	VertexLayout       *VertexLayout
	Stages             []ShaderStage
	BindingLayouts     []*BindingLayout
	Blend              BlendState
	PolygonMode        PolygonMode
	ColorTargetFormats []Format
	DepthFormat        *Format
	Label              string
}

// BindingResource is the sum type a BindingGroup entry resolves to.
type BindingResource struct {
	Buffer               *Buffer
	Texture              *Texture
	Sampler              *Sampler
	CombinedTexture      *Texture
	CombinedSampler      *Sampler
}

// BindingGroupEntry pairs a binding slot with its resolved resource.
type BindingGroupEntry struct {
	Binding  uint32
	Resource BindingResource
}

// BindingGroup carries no pipeline object of its own; it is rebuilt from
// current resource handles every recording, per spec §3.1.
type BindingGroup struct {
	Entries []BindingGroupEntry
}

// MaterialInstance pairs a material with one binding group per group
// layout it declared. Clone-shared: copying the struct value is sufficient,
// callers retain the underlying Material/BindingGroup resources themselves.
type MaterialInstance struct {
	Material      *Material
	BindingGroups []*BindingGroup
}

// Mesh is a vertex layout plus buffers, optionally indexed.
type Mesh struct {
	refCounted
	id            uint64
	Layout        *VertexLayout
	VertexBuffers []*Buffer
	IndexBuffer   *Buffer
	IndexFormat   IndexFormat
	VertexCount   uint32
	IndexCount    uint32
	Label         string
}

func NewMesh(destructor *gpu.DeferredDestructor, desc MeshDescriptor, dispose func()) *Mesh {
	return &Mesh{
		refCounted:    newRefCounted(destructor, dispose),
		id:            allocResourceID(),
		Layout:        desc.Layout,
		VertexBuffers: desc.VertexBuffers,
		IndexBuffer:   desc.IndexBuffer,
		IndexFormat:   desc.IndexFormat,
		VertexCount:   desc.VertexCount,
		IndexCount:    desc.IndexCount,
		Label:         desc.Label,
	}
}

type MeshDescriptor struct {
	Layout        *VertexLayout
	VertexBuffers []*Buffer
	IndexBuffer   *Buffer
	IndexFormat   IndexFormat
	VertexCount   uint32
	IndexCount    uint32
	Label         string
}

// IsIndexed reports whether this mesh carries an index buffer.
func (m *Mesh) IsIndexed() bool { return m.IndexBuffer != nil }
