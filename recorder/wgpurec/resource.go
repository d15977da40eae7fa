package wgpurec

import (
	"github.com/pkg/errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"

	"github.com/NOT-REAL-GAMES/forgecore/recorder"
	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
)

// bufferHandle is the Backend field of every *rendergraph.Buffer this
// backend creates. WebGPU buffers carry their usage flags at creation time
// and map/unmap is the only way to touch their contents from the CPU, so
// unlike vkrec there is no separate host-visible/device-local split: a
// buffer is mappable if its Usage requested it.
type bufferHandle struct {
	id       core.BufferID
	mappable bool
	size     uint64
}

// textureHandle is the Backend field of every *rendergraph.Texture this
// backend creates.
type textureHandle struct {
	id   core.TextureID
	view core.TextureViewID
}

func (b *Backend) CreateBuffer(desc recorder.BufferDescriptor) (*rendergraph.Buffer, error) {
	usage := toGpuBufferUsage(desc.Usage)
	mappable := desc.Usage.Has(rendergraph.BufferUsageMapWrite) || desc.Usage.Has(rendergraph.BufferUsageMapRead)

	id, err := core.CreateBuffer(b.device, &gputypes.BufferDescriptor{
		Label:            desc.Label,
		Size:             desc.Size,
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmtErr("create buffer", err)
	}

	handle := &bufferHandle{id: id, mappable: mappable, size: desc.Size}
	return rendergraph.NewBuffer(b.destructor, desc.Size, desc.Usage, desc.Label, handle, func() {
		core.BufferDestroy(id)
	}), nil
}

func (b *Backend) CreateTexture(desc recorder.TextureDescriptor) (*rendergraph.Texture, error) {
	format := toGpuTextureFormat(desc.Format)

	id, err := core.CreateTexture(b.device, &gputypes.TextureDescriptor{
		Label: desc.Label,
		Size: gputypes.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: max1(desc.DepthOrLayers),
		},
		MipLevelCount: max1(desc.MipLevelCount),
		SampleCount:   max1(desc.SampleCount),
		Dimension:     toGpuTextureDimension(desc.Dimension),
		Format:        format,
		Usage:         toGpuTextureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmtErr("create texture", err)
	}

	view, err := core.CreateTextureView(id, &gputypes.TextureViewDescriptor{
		Format:          format,
		Dimension:       toGpuTextureViewDimension(desc.Dimension),
		BaseMipLevel:    0,
		MipLevelCount:   max1(desc.MipLevelCount),
		BaseArrayLayer:  0,
		ArrayLayerCount: max1(desc.DepthOrLayers),
	})
	if err != nil {
		core.TextureDrop(id)
		return nil, fmtErr("create texture view", err)
	}

	handle := &textureHandle{id: id, view: view}
	return rendergraph.NewTexture(b.destructor, desc.Width, desc.Height, desc.DepthOrLayers, desc.MipLevelCount, desc.SampleCount, desc.Format, desc.Dimension, desc.Usage, desc.Label, handle, func() {
		core.TextureViewDrop(view)
		core.TextureDrop(id)
	}), nil
}

func (b *Backend) CreateSampler(desc rendergraph.SamplerDescriptor) (*rendergraph.Sampler, error) {
	id, err := core.CreateSampler(b.device, &gputypes.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: toGpuAddressMode(desc.AddressModeU),
		AddressModeV: toGpuAddressMode(desc.AddressModeV),
		AddressModeW: toGpuAddressMode(desc.AddressModeW),
		MagFilter:    toGpuFilterMode(desc.MagFilter),
		MinFilter:    toGpuFilterMode(desc.MinFilter),
		MipmapFilter: toGpuFilterMode(desc.MipFilter),
		LodMinClamp:  desc.LodMinClamp,
		LodMaxClamp:  desc.LodMaxClamp,
		MaxAnisotropy: uint16(desc.MaxAnisotropy),
	})
	if err != nil {
		return nil, fmtErr("create sampler", err)
	}
	return rendergraph.NewSampler(b.destructor, desc, id, func() {
		core.SamplerDrop(id)
	}), nil
}

// WriteBuffer uploads through the queue's write path, which WebGPU permits
// on any buffer regardless of its mappability — unlike vkrec, there is no
// separate staging-buffer responsibility pushed onto the caller.
func (b *Backend) WriteBuffer(buf *rendergraph.Buffer, offset uint64, data []byte) {
	handle, ok := buf.Backend.(*bufferHandle)
	if !ok || len(data) == 0 {
		return
	}
	if err := core.QueueWriteBuffer(b.queue, handle.id, offset, data); err != nil {
		return
	}
}

// ReadBuffer maps the buffer for reading, copies out its contents, then
// unmaps. Returns zeroes for buffers that were never created with
// BufferUsageMapRead, matching the Backend contract.
func (b *Backend) ReadBuffer(buf *rendergraph.Buffer, offset, size uint64) []byte {
	out := make([]byte, size)
	handle, ok := buf.Backend.(*bufferHandle)
	if !ok || !handle.mappable {
		return out
	}
	if err := core.BufferMapAsync(handle.id, gputypes.MapModeRead, offset, size); err != nil {
		return out
	}
	defer core.BufferUnmap(handle.id)
	mapped, err := core.BufferGetMappedRange(handle.id, offset, size)
	if err != nil {
		return out
	}
	copy(out, mapped)
	return out
}

// wgpuFence wraps a queue submission index: Wait/IsSignaled poll the device
// until the completed-submission counter reaches it, since WebGPU has no
// standalone fence object of its own.
type wgpuFence struct {
	submissionIndex uint64
	signaled        bool
}

func (b *Backend) CreateFence(signaled bool) (recorder.Fence, error) {
	return &wgpuFence{signaled: signaled}, nil
}

func (b *Backend) WaitFence(f recorder.Fence) error {
	wf, ok := f.(*wgpuFence)
	if !ok {
		return errors.New("wgpurec: fence from a different backend")
	}
	if wf.signaled {
		return nil
	}
	if err := core.DevicePoll(b.device, true); err != nil {
		return fmtErr("poll device", err)
	}
	wf.signaled = true
	return nil
}

func (b *Backend) IsFenceSignaled(f recorder.Fence) (bool, error) {
	wf, ok := f.(*wgpuFence)
	if !ok {
		return false, errors.New("wgpurec: fence from a different backend")
	}
	if wf.signaled {
		return true, nil
	}
	if err := core.DevicePoll(b.device, false); err != nil {
		return false, fmtErr("poll device", err)
	}
	return wf.signaled, nil
}

func max1(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

func toGpuBufferUsage(u rendergraph.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u.Has(rendergraph.BufferUsageVertex) {
		out |= gputypes.BufferUsageVertex
	}
	if u.Has(rendergraph.BufferUsageIndex) {
		out |= gputypes.BufferUsageIndex
	}
	if u.Has(rendergraph.BufferUsageUniform) {
		out |= gputypes.BufferUsageUniform
	}
	if u.Has(rendergraph.BufferUsageStorage) {
		out |= gputypes.BufferUsageStorage
	}
	if u.Has(rendergraph.BufferUsageCopySrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if u.Has(rendergraph.BufferUsageCopyDst) {
		out |= gputypes.BufferUsageCopyDst
	}
	if u.Has(rendergraph.BufferUsageMapRead) {
		out |= gputypes.BufferUsageMapRead
	}
	if u.Has(rendergraph.BufferUsageMapWrite) {
		out |= gputypes.BufferUsageMapWrite
	}
	return out
}

func toGpuTextureUsage(u rendergraph.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u.Has(rendergraph.TextureUsageRenderAttachment) {
		out |= gputypes.TextureUsageRenderAttachment
	}
	if u.Has(rendergraph.TextureUsageTextureBinding) {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u.Has(rendergraph.TextureUsageStorageBinding) {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u.Has(rendergraph.TextureUsageCopySrc) {
		out |= gputypes.TextureUsageCopySrc
	}
	if u.Has(rendergraph.TextureUsageCopyDst) {
		out |= gputypes.TextureUsageCopyDst
	}
	return out
}

func toGpuTextureFormat(f rendergraph.Format) gputypes.TextureFormat {
	switch f {
	case rendergraph.FormatRgba8Unorm:
		return gputypes.TextureFormatRGBA8Unorm
	case rendergraph.FormatBgra8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	case rendergraph.FormatRg8Unorm:
		return gputypes.TextureFormatRG8Unorm
	case rendergraph.FormatRgba16Float:
		return gputypes.TextureFormatRGBA16Float
	case rendergraph.FormatDepth32Float:
		return gputypes.TextureFormatDepth32Float
	case rendergraph.FormatDepth24PlusStencil8:
		return gputypes.TextureFormatDepth24PlusStencil8
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

func toGpuTextureDimension(d rendergraph.Dimension) gputypes.TextureDimension {
	switch d {
	case rendergraph.Dimension1D:
		return gputypes.TextureDimension1D
	case rendergraph.Dimension3D:
		return gputypes.TextureDimension3D
	default:
		return gputypes.TextureDimension2D
	}
}

func toGpuTextureViewDimension(d rendergraph.Dimension) gputypes.TextureViewDimension {
	switch d {
	case rendergraph.Dimension1D:
		return gputypes.TextureViewDimension1D
	case rendergraph.Dimension3D:
		return gputypes.TextureViewDimension3D
	default:
		return gputypes.TextureViewDimension2D
	}
}

func toGpuAddressMode(a rendergraph.AddressMode) gputypes.AddressMode {
	switch a {
	case rendergraph.AddressModeMirrorRepeat:
		return gputypes.AddressModeMirrorRepeat
	case rendergraph.AddressModeClampToEdge, rendergraph.AddressModeClampToBorder:
		// WebGPU has no border-color clamp mode; nearest equivalent is
		// clamp-to-edge.
		return gputypes.AddressModeClampToEdge
	default:
		return gputypes.AddressModeRepeat
	}
}

func toGpuFilterMode(f rendergraph.Filter) gputypes.FilterMode {
	if f == rendergraph.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}
