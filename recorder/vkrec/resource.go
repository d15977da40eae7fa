package vkrec

import (
	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/forgecore/recorder"
	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
	"github.com/NOT-REAL-GAMES/forgecore/vk"
)

// bufferHandle is the Backend field of every *rendergraph.Buffer this
// backend creates.
type bufferHandle struct {
	buffer vk.Buffer
	memory vk.DeviceMemory
	hostVisible bool
}

// textureHandle is the Backend field of every *rendergraph.Texture this
// backend creates.
type textureHandle struct {
	image  vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
}

func (b *Backend) CreateBuffer(desc recorder.BufferDescriptor) (*rendergraph.Buffer, error) {
	usage := toVkBufferUsage(desc.Usage)
	properties := vk.MEMORY_PROPERTY_DEVICE_LOCAL_BIT
	hostVisible := desc.Usage.Has(rendergraph.BufferUsageUniform) || desc.Usage.Has(rendergraph.BufferUsageMapWrite) || desc.Usage.Has(rendergraph.BufferUsageMapRead)
	if hostVisible {
		properties = vk.MEMORY_PROPERTY_HOST_VISIBLE_BIT | vk.MEMORY_PROPERTY_HOST_COHERENT_BIT
	}

	buf, mem, err := b.device.CreateBufferWithMemory(desc.Size, usage, properties, b.physicalDevice)
	if err != nil {
		return nil, fmtErr("create buffer", err)
	}

	handle := &bufferHandle{buffer: buf, memory: mem, hostVisible: hostVisible}
	result := rendergraph.NewBuffer(b.destructor, desc.Size, desc.Usage, desc.Label, handle, func() {
		b.device.FreeMemory(mem)
		b.device.DestroyBuffer(buf)
	})
	return result, nil
}

func (b *Backend) CreateTexture(desc recorder.TextureDescriptor) (*rendergraph.Texture, error) {
	format := toVkFormat(desc.Format)
	usage := toVkImageUsage(desc.Usage)

	img, err := b.device.CreateImage(&vk.ImageCreateInfo{
		ImageType: toVkImageType(desc.Dimension),
		Format:    format,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  depthExtent(desc.Dimension, desc.DepthOrLayers),
		},
		MipLevels:     max1(desc.MipLevelCount),
		ArrayLayers:   arrayLayers(desc.Dimension, desc.DepthOrLayers),
		Samples:       sampleCountFlags(desc.SampleCount),
		Tiling:        vk.IMAGE_TILING_OPTIMAL,
		Usage:         usage,
		SharingMode:   vk.SHARING_MODE_EXCLUSIVE,
		InitialLayout: vk.IMAGE_LAYOUT_UNDEFINED,
	})
	if err != nil {
		return nil, fmtErr("create image", err)
	}

	memReqs := b.device.GetImageMemoryRequirements(img)
	memProps := b.physicalDevice.GetMemoryProperties()
	memTypeIndex, found := vk.FindMemoryType(memProps, memReqs.MemoryTypeBits, vk.MEMORY_PROPERTY_DEVICE_LOCAL_BIT)
	if !found {
		b.device.DestroyImage(img)
		return nil, errors.New("vkrec: no device-local memory type for texture")
	}
	mem, err := b.device.AllocateMemory(&vk.MemoryAllocateInfo{AllocationSize: memReqs.Size, MemoryTypeIndex: memTypeIndex})
	if err != nil {
		b.device.DestroyImage(img)
		return nil, fmtErr("allocate texture memory", err)
	}
	if err := b.device.BindImageMemory(img, mem, 0); err != nil {
		b.device.FreeMemory(mem)
		b.device.DestroyImage(img)
		return nil, fmtErr("bind texture memory", err)
	}

	view, err := b.device.CreateImageViewForTexture(img, format)
	if err != nil {
		b.device.FreeMemory(mem)
		b.device.DestroyImage(img)
		return nil, fmtErr("create image view", err)
	}

	handle := &textureHandle{image: img, memory: mem, view: view}
	result := rendergraph.NewTexture(b.destructor, desc.Width, desc.Height, desc.DepthOrLayers, desc.MipLevelCount, desc.SampleCount, desc.Format, desc.Dimension, desc.Usage, desc.Label, handle, func() {
		b.device.DestroyImageView(view)
		b.device.FreeMemory(mem)
		b.device.DestroyImage(img)
	})
	return result, nil
}

func (b *Backend) CreateSampler(desc rendergraph.SamplerDescriptor) (*rendergraph.Sampler, error) {
	sampler, err := b.device.CreateSampler(&vk.SamplerCreateInfo{
		MagFilter:        toVkFilter(desc.MagFilter),
		MinFilter:        toVkFilter(desc.MinFilter),
		MipmapMode:       toVkMipmapMode(desc.MipFilter),
		AddressModeU:     toVkAddressMode(desc.AddressModeU),
		AddressModeV:     toVkAddressMode(desc.AddressModeV),
		AddressModeW:     toVkAddressMode(desc.AddressModeW),
		AnisotropyEnable: desc.MaxAnisotropy > 1,
		MaxAnisotropy:    desc.MaxAnisotropy,
		MinLod:           desc.LodMinClamp,
		MaxLod:           desc.LodMaxClamp,
		BorderColor:      vk.BORDER_COLOR_FLOAT_TRANSPARENT_BLACK,
	})
	if err != nil {
		return nil, fmtErr("create sampler", err)
	}
	return rendergraph.NewSampler(b.destructor, desc, sampler, func() {
		b.device.DestroySampler(sampler)
	}), nil
}

// WriteBuffer uploads into a host-visible buffer's mapped memory. Writes to
// device-local buffers are silently dropped, per the Backend contract
// ("no-op on non-host-visible buffers") — a staging-buffer upload path
// belongs to the caller for large device-local assets.
func (b *Backend) WriteBuffer(buf *rendergraph.Buffer, offset uint64, data []byte) {
	handle, ok := buf.Backend.(*bufferHandle)
	if !ok || !handle.hostVisible || len(data) == 0 {
		return
	}
	ptr, err := b.device.MapMemory(handle.memory, offset, uint64(len(data)))
	if err != nil {
		return
	}
	copyToPointer(ptr, data)
	b.device.UnmapMemory(handle.memory)
}

// ReadBuffer returns zeroes for non-host-visible buffers, per the Backend
// contract.
func (b *Backend) ReadBuffer(buf *rendergraph.Buffer, offset, size uint64) []byte {
	out := make([]byte, size)
	handle, ok := buf.Backend.(*bufferHandle)
	if !ok || !handle.hostVisible {
		return out
	}
	ptr, err := b.device.MapMemory(handle.memory, offset, size)
	if err != nil {
		return out
	}
	copyFromPointer(out, ptr)
	b.device.UnmapMemory(handle.memory)
	return out
}

type vkFence struct {
	fence vk.Fence
}

func (b *Backend) CreateFence(signaled bool) (recorder.Fence, error) {
	flags := vk.FenceCreateFlags(0)
	if signaled {
		flags = vk.FENCE_CREATE_SIGNALED_BIT
	}
	f, err := b.device.CreateFence(&vk.FenceCreateInfo{Flags: flags})
	if err != nil {
		return nil, fmtErr("create fence", err)
	}
	return &vkFence{fence: f}, nil
}

func (b *Backend) WaitFence(f recorder.Fence) error {
	vf, ok := f.(*vkFence)
	if !ok {
		return errors.New("vkrec: fence from a different backend")
	}
	return b.device.WaitForFences([]vk.Fence{vf.fence}, true, ^uint64(0))
}

func (b *Backend) IsFenceSignaled(f recorder.Fence) (bool, error) {
	vf, ok := f.(*vkFence)
	if !ok {
		return false, errors.New("vkrec: fence from a different backend")
	}
	err := b.device.WaitForFences([]vk.Fence{vf.fence}, true, 0)
	if err == nil {
		return true, nil
	}
	if result, ok := err.(vk.Result); ok && result == vk.TIMEOUT {
		return false, nil
	}
	return false, err
}

func toVkImageType(d rendergraph.Dimension) vk.ImageType {
	switch d {
	case rendergraph.Dimension1D:
		return vk.IMAGE_TYPE_1D
	case rendergraph.Dimension3D:
		return vk.IMAGE_TYPE_3D
	default:
		return vk.IMAGE_TYPE_2D
	}
}

func arrayLayers(d rendergraph.Dimension, depthOrLayers uint32) uint32 {
	if d == rendergraph.Dimension3D {
		return 1
	}
	return max1(depthOrLayers)
}

func depthExtent(d rendergraph.Dimension, depthOrLayers uint32) uint32 {
	if d == rendergraph.Dimension3D {
		return max1(depthOrLayers)
	}
	return 1
}

func max1(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

func sampleCountFlags(count uint32) vk.SampleCountFlags {
	if count > 1 {
		return vk.SAMPLE_COUNT_4_BIT
	}
	return vk.SAMPLE_COUNT_1_BIT
}

func toVkImageUsage(u rendergraph.TextureUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlags
	if u.Has(rendergraph.TextureUsageRenderAttachment) {
		out |= vk.IMAGE_USAGE_COLOR_ATTACHMENT_BIT | vk.IMAGE_USAGE_DEPTH_STENCIL_ATTACHMENT_BIT
	}
	if u.Has(rendergraph.TextureUsageTextureBinding) {
		out |= vk.IMAGE_USAGE_SAMPLED_BIT
	}
	if u.Has(rendergraph.TextureUsageStorageBinding) {
		out |= vk.IMAGE_USAGE_STORAGE_BIT
	}
	if u.Has(rendergraph.TextureUsageCopySrc) {
		out |= vk.IMAGE_USAGE_TRANSFER_SRC_BIT
	}
	if u.Has(rendergraph.TextureUsageCopyDst) {
		out |= vk.IMAGE_USAGE_TRANSFER_DST_BIT
	}
	return out
}

func toVkFilter(f rendergraph.Filter) vk.Filter {
	if f == rendergraph.FilterLinear {
		return vk.FILTER_LINEAR
	}
	return vk.FILTER_NEAREST
}

func toVkMipmapMode(f rendergraph.Filter) vk.SamplerMipmapMode {
	if f == rendergraph.FilterLinear {
		return vk.SAMPLER_MIPMAP_MODE_LINEAR
	}
	return vk.SAMPLER_MIPMAP_MODE_NEAREST
}

func toVkAddressMode(a rendergraph.AddressMode) vk.SamplerAddressMode {
	switch a {
	case rendergraph.AddressModeMirrorRepeat:
		return vk.SAMPLER_ADDRESS_MODE_MIRRORED_REPEAT
	case rendergraph.AddressModeClampToEdge:
		return vk.SAMPLER_ADDRESS_MODE_CLAMP_TO_EDGE
	case rendergraph.AddressModeClampToBorder:
		return vk.SAMPLER_ADDRESS_MODE_CLAMP_TO_BORDER
	default:
		return vk.SAMPLER_ADDRESS_MODE_REPEAT
	}
}
