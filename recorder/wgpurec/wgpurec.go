// Package wgpurec is the WebGPU-family recorder backend: it realizes a
// compiled render graph against github.com/gogpu/wgpu's core instance,
// relying on the API's own internal validation layer to insert resource
// transitions instead of recording them explicitly, per spec §4.3.4.
package wgpurec

import (
	"fmt"
	"log"

	"github.com/pkg/errors"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"

	"github.com/NOT-REAL-GAMES/forgecore/gpu"
	"github.com/NOT-REAL-GAMES/forgecore/recorder"
)

// MaxFramesInFlight mirrors vkrec's frame-slot count so the deferred
// destructor behaves identically regardless of which backend family is
// driving a given run.
const MaxFramesInFlight = 2

// Backend wires a WebGPU instance/adapter/device/queue together with the
// deferred destructor to satisfy recorder.Backend. There is no layout
// tracker here: WebGPU's validation layer infers usage transitions from
// each resource's declared Usage flags, so this backend never emits a
// barrier of its own.
type Backend struct {
	instance *core.Instance
	adapter  core.AdapterID
	device   core.DeviceID
	queue    core.QueueID

	destructor *gpu.DeferredDestructor

	currentSlot int
}

// Open acquires a high-performance adapter and device, following the
// instance/adapter/device/queue acquisition sequence used throughout the
// retrieval pack's native WebGPU backend.
func Open() (*Backend, error) {
	instance := core.NewInstance(&gputypes.InstanceDescriptor{
		Backends: gputypes.BackendsPrimary,
	})

	adapterID, err := instance.RequestAdapter(&gputypes.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, errors.Wrap(err, "wgpurec: request adapter")
	}

	info, err := core.GetAdapterInfo(adapterID)
	if err != nil {
		core.AdapterDrop(adapterID)
		return nil, errors.Wrap(err, "wgpurec: get adapter info")
	}
	log.Printf("wgpurec: adapter %q backend=%v device=%v", info.Name, info.Backend, info.DeviceType)

	deviceID, err := core.RequestDevice(adapterID, &gputypes.DeviceDescriptor{
		Label:          "forgecore-device",
		RequiredLimits: gputypes.DefaultLimits(),
	})
	if err != nil {
		core.AdapterDrop(adapterID)
		return nil, errors.Wrap(err, "wgpurec: request device")
	}

	queueID, err := core.GetDeviceQueue(deviceID)
	if err != nil {
		core.DeviceDrop(deviceID)
		core.AdapterDrop(adapterID)
		return nil, errors.Wrap(err, "wgpurec: get device queue")
	}

	return &Backend{
		instance:   instance,
		adapter:    adapterID,
		device:     deviceID,
		queue:      queueID,
		destructor: gpu.NewDeferredDestructor(MaxFramesInFlight),
	}, nil
}

func (b *Backend) Name() string { return "webgpu" }

// Close releases the device and adapter in acquisition-reverse order.
func (b *Backend) Close() {
	if err := core.DeviceDrop(b.device); err != nil {
		log.Printf("wgpurec: device drop failed: %v", err)
	}
	if err := core.AdapterDrop(b.adapter); err != nil {
		log.Printf("wgpurec: adapter drop failed: %v", err)
	}
}

// AdvanceFrame rotates the deferred-destructor slot. WebGPU has no
// descriptor-pool equivalent to reset: bind groups are immutable and
// garbage-collected by the driver once their last command buffer retires.
func (b *Backend) AdvanceFrame() {
	b.destructor.AdvanceFrame()
	b.currentSlot = (b.currentSlot + 1) % MaxFramesInFlight
}

var _ recorder.Backend = (*Backend)(nil)

func fmtErr(op string, err error) error {
	return errors.Wrap(err, fmt.Sprintf("wgpurec: %s", op))
}
