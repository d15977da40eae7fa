// Package recorder defines the backend-agnostic contract the render-graph
// compiler's output is played against, plus the image-layout tracking
// shared by every Vulkan-family implementation. Concrete backends live in
// the vkrec and wgpurec subpackages.
package recorder

import (
	"errors"
	"log"
	"sync"

	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
)

// Sentinel errors a Backend implementation returns for device/resource
// creation failures, per spec §7.
var (
	ErrNotInstalled         = errors.New("recorder: backend not installed")
	ErrNoDevice             = errors.New("recorder: no suitable device")
	ErrResourceCreationFailed = errors.New("recorder: resource creation failed")
	ErrInitializationFailed = errors.New("recorder: initialization failed")
	ErrShaderCompilationFailed = errors.New("recorder: shader compilation failed")
)

// BufferDescriptor mirrors spec §6's create_buffer descriptor.
type BufferDescriptor struct {
	Size  uint64
	Usage rendergraph.BufferUsage
	Label string
}

// TextureDescriptor mirrors spec §6's create_texture descriptor.
type TextureDescriptor struct {
	Dimension   rendergraph.Dimension
	Width       uint32
	Height      uint32
	DepthOrLayers uint32
	MipLevelCount uint32
	SampleCount uint32
	Format      rendergraph.Format
	Usage       rendergraph.TextureUsage
	Label       string
}

// Fence is an opaque backend synchronization handle.
type Fence interface {
	// backend-specific; implementations type-assert to their concrete type
}

// Backend is the capability set a render-graph recorder needs from a GPU
// API, per spec §4.3 and §6. Two concrete families are expected: Vulkan
// (explicit barriers) and WebGPU (implicit barriers) — see vkrec/wgpurec.
type Backend interface {
	Name() string

	CreateBuffer(desc BufferDescriptor) (*rendergraph.Buffer, error)
	CreateTexture(desc TextureDescriptor) (*rendergraph.Texture, error)
	CreateSampler(desc rendergraph.SamplerDescriptor) (*rendergraph.Sampler, error)
	CreateMaterial(desc rendergraph.MaterialDescriptor) (*rendergraph.Material, error)
	CreateMesh(desc rendergraph.MeshDescriptor) (*rendergraph.Mesh, error)

	// WriteBuffer is a no-op on non-host-visible buffers.
	WriteBuffer(buf *rendergraph.Buffer, offset uint64, data []byte)
	// ReadBuffer returns zeroes for non-mappable buffers.
	ReadBuffer(buf *rendergraph.Buffer, offset, size uint64) []byte

	CreateFence(signaled bool) (Fence, error)
	WaitFence(f Fence) error
	IsFenceSignaled(f Fence) (bool, error)

	// ExecuteGraph records and submits the compiled graph's command stream,
	// signaling signalFence (if non-nil) on completion.
	ExecuteGraph(g *rendergraph.RenderGraph, compiled *rendergraph.CompiledGraph, signalFence Fence) error

	// AdvanceFrame rotates the deferred-destructor slot. Caller must have
	// waited on the outgoing slot's fence first.
	AdvanceFrame()
}

// Registry is a process-wide table of installed backend drivers, grounded
// on the driver-registration idiom of a from-scratch Go GPU abstraction
// layer in the retrieval pack: a mutex-guarded map plus stdlib-log
// diagnostics on registration and replacement, not a plugin-discovery
// mechanism.
type Registry struct {
	mu       sync.Mutex
	backends map[string]func() (Backend, error)
}

// NewRegistry returns an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]func() (Backend, error))}
}

// Register installs a backend constructor under name, replacing any prior
// registration of the same name (logged, not an error — tests and
// alternate builds commonly re-register).
func (r *Registry) Register(name string, open func() (Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.backends[name]; exists {
		log.Printf("recorder: replacing backend registration %q", name)
	}
	r.backends[name] = open
}

// Open constructs the named backend, or ErrNotInstalled if nothing
// registered under that name.
func (r *Registry) Open(name string) (Backend, error) {
	r.mu.Lock()
	open, ok := r.backends[name]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotInstalled
	}
	return open()
}

// Names lists every registered backend name.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}
