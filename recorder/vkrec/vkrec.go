// Package vkrec is the Vulkan-family recorder backend: it realizes a
// compiled render graph with explicit barriers and image-layout
// transitions, recorded through the cgo bindings in vk.
package vkrec

import (
	"fmt"
	"log"

	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/forgecore/gpu"
	"github.com/NOT-REAL-GAMES/forgecore/recorder"
	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
	"github.com/NOT-REAL-GAMES/forgecore/vk"
)

// MaxFramesInFlight is the typical frame-in-flight slot count this backend
// targets, matching the deferred destructor's bucket count and the
// descriptor pool ring.
const MaxFramesInFlight = 2

// Backend wires a vk.Device, a per-frame-slot descriptor pool ring, a
// layout tracker, and a deferred destructor together to satisfy
// recorder.Backend.
type Backend struct {
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	graphicsQueue  vk.Queue
	queueFamily    uint32

	commandPool    vk.CommandPool
	frameCmdBufs   []vk.CommandBuffer
	descriptorPools []vk.DescriptorPool

	destructor *gpu.DeferredDestructor
	layouts    *recorder.LayoutTracker

	currentSlot int
}

// Open initializes a Backend against an already-created logical device and
// its owning physical device/queue, per the teacher's device/queue
// acquisition idiom. Descriptor pool sizing is a fixed generous budget
// adequate for the material/binding-group counts this engine expects; the
// pool sizes are fixed inside Open and the caller cannot change them.
func Open(physicalDevice vk.PhysicalDevice, device vk.Device, graphicsQueue vk.Queue, queueFamily uint32) (*Backend, error) {
	poolInfo := &vk.CommandPoolCreateInfo{
		Flags:            vk.COMMAND_POOL_CREATE_RESET_COMMAND_BUFFER_BIT,
		QueueFamilyIndex: queueFamily,
	}
	cmdPool, err := device.CreateCommandPool(poolInfo)
	if err != nil {
		return nil, errors.Wrap(err, "vkrec: create command pool")
	}

	cmdBufs, err := device.AllocateCommandBuffers(&vk.CommandBufferAllocateInfo{
		CommandPool:        cmdPool,
		Level:              vk.COMMAND_BUFFER_LEVEL_PRIMARY,
		CommandBufferCount: MaxFramesInFlight,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkrec: allocate command buffers")
	}

	pools := make([]vk.DescriptorPool, MaxFramesInFlight)
	for i := range pools {
		pool, err := device.CreateDescriptorPool(&vk.DescriptorPoolCreateInfo{
			MaxSets: 256,
			PoolSizes: []vk.DescriptorPoolSize{
				{Type: vk.DESCRIPTOR_TYPE_UNIFORM_BUFFER, DescriptorCount: 256},
				{Type: vk.DESCRIPTOR_TYPE_STORAGE_BUFFER, DescriptorCount: 256},
				{Type: vk.DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER, DescriptorCount: 256},
				{Type: vk.DESCRIPTOR_TYPE_STORAGE_IMAGE, DescriptorCount: 64},
			},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "vkrec: create descriptor pool %d", i)
		}
		pools[i] = pool
	}

	return &Backend{
		physicalDevice:  physicalDevice,
		device:          device,
		graphicsQueue:   graphicsQueue,
		queueFamily:     queueFamily,
		commandPool:     cmdPool,
		frameCmdBufs:    cmdBufs,
		descriptorPools: pools,
		destructor:      gpu.NewDeferredDestructor(MaxFramesInFlight),
		layouts:         recorder.NewLayoutTracker(MaxFramesInFlight),
	}, nil
}

func (b *Backend) Name() string { return "vulkan" }

// AdvanceFrame rotates the deferred-destructor slot and resets the
// descriptor pool belonging to the slot now current — invariant 12: this
// must only be called once that slot's frame fence has signaled, which is
// the caller's responsibility (the backend has no visibility into which
// fence gates which slot).
func (b *Backend) AdvanceFrame() {
	b.destructor.AdvanceFrame()
	b.currentSlot = (b.currentSlot + 1) % MaxFramesInFlight
	if err := b.device.ResetDescriptorPool(b.descriptorPools[b.currentSlot]); err != nil {
		log.Printf("vkrec: reset descriptor pool for slot %d failed: %v", b.currentSlot, err)
	}
}

var _ recorder.Backend = (*Backend)(nil)

func toVkBufferUsage(u rendergraph.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlags
	if u.Has(rendergraph.BufferUsageVertex) {
		out |= vk.BUFFER_USAGE_VERTEX_BUFFER_BIT
	}
	if u.Has(rendergraph.BufferUsageIndex) {
		out |= vk.BUFFER_USAGE_INDEX_BUFFER_BIT
	}
	if u.Has(rendergraph.BufferUsageUniform) {
		out |= vk.BUFFER_USAGE_UNIFORM_BUFFER_BIT
	}
	if u.Has(rendergraph.BufferUsageStorage) {
		out |= vk.BUFFER_USAGE_STORAGE_BUFFER_BIT
	}
	if u.Has(rendergraph.BufferUsageCopySrc) {
		out |= vk.BUFFER_USAGE_TRANSFER_SRC_BIT
	}
	if u.Has(rendergraph.BufferUsageCopyDst) {
		out |= vk.BUFFER_USAGE_TRANSFER_DST_BIT
	}
	return out
}

func toVkFormat(f rendergraph.Format) vk.Format {
	switch f {
	case rendergraph.FormatRgba8Unorm:
		return vk.FORMAT_R8G8B8A8_UNORM
	case rendergraph.FormatBgra8Unorm:
		return vk.FORMAT_B8G8R8A8_UNORM
	case rendergraph.FormatRg8Unorm:
		return vk.FORMAT_R8G8_UNORM
	case rendergraph.FormatRgba16Float:
		return vk.FORMAT_R16G16B16A16_SFLOAT
	case rendergraph.FormatDepth32Float:
		return vk.FORMAT_D32_SFLOAT
	case rendergraph.FormatDepth24PlusStencil8:
		return vk.FORMAT_D24_UNORM_S8_UINT
	default:
		return vk.FORMAT_R8G8B8A8_UNORM
	}
}

func fmtErr(op string, err error) error {
	return errors.Wrap(err, fmt.Sprintf("vkrec: %s", op))
}
