package vkrec

import "unsafe"

// copyToPointer and copyFromPointer bridge a mapped Vulkan memory range
// (returned from the device as an unsafe.Pointer, since cgo allocations are
// outside the Go heap) and a plain Go byte slice.
func copyToPointer(dst unsafe.Pointer, src []byte) {
	if len(src) == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), len(src)), src)
}

func copyFromPointer(dst []byte, src unsafe.Pointer) {
	if len(dst) == 0 {
		return
	}
	copy(dst, unsafe.Slice((*byte)(src), len(dst)))
}
