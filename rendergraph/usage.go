package rendergraph

// TextureAccessMode is the closed set of ways a pass can touch a texture
// resource, per spec §4.2.1.
type TextureAccessMode int

const (
	RenderTargetWrite TextureAccessMode = iota
	DepthStencilWrite
	DepthStencilReadOnly
	ShaderRead
	StorageRead
	StorageWrite
	TransferRead
	TransferWrite
	SurfaceWrite
	SurfaceReadWrite
)

// IsWrite reports whether this access mode mutates the resource.
// SurfaceReadWrite counts as both a write and a read; there is no
// read-write storage mode.
func (m TextureAccessMode) IsWrite() bool {
	switch m {
	case RenderTargetWrite, DepthStencilWrite, StorageWrite, TransferWrite, SurfaceWrite, SurfaceReadWrite:
		return true
	default:
		return false
	}
}

// IsRead reports whether this access mode observes the resource's current
// contents.
func (m TextureAccessMode) IsRead() bool {
	switch m {
	case DepthStencilReadOnly, ShaderRead, StorageRead, TransferRead, SurfaceReadWrite:
		return true
	default:
		return false
	}
}

// ResourceAccess pairs one resource with the mode a pass touches it under.
type ResourceAccess struct {
	Key  ResourceKey
	Mode TextureAccessMode
}

// PassResourceUsage is the per-pass output of resource-usage inference: the
// full list of (resource, mode) accesses a pass performs, in no particular
// order. Buffers and textures share the same access-mode vocabulary; a
// buffer never takes the render-target/depth-stencil/surface variants.
type PassResourceUsage struct {
	Pass     PassHandle
	Accesses []ResourceAccess
}

func (u *PassResourceUsage) add(key ResourceKey, mode TextureAccessMode) {
	u.Accesses = append(u.Accesses, ResourceAccess{Key: key, Mode: mode})
}

// writers returns the set of resources this pass writes, and readers the
// set it reads (a ReadWrite access appears in both).
func (u *PassResourceUsage) writers() map[ResourceKey]bool {
	out := map[ResourceKey]bool{}
	for _, a := range u.Accesses {
		if a.Mode.IsWrite() {
			out[a.Key] = true
		}
	}
	return out
}

func (u *PassResourceUsage) readers() map[ResourceKey]bool {
	out := map[ResourceKey]bool{}
	for _, a := range u.Accesses {
		if a.Mode.IsRead() {
			out[a.Key] = true
		}
	}
	return out
}

// inferPassUsage walks one pass's declared contents and produces its
// PassResourceUsage, per spec §4.2.1.
func inferPassUsage(handle PassHandle, pass Pass) PassResourceUsage {
	usage := PassResourceUsage{Pass: handle}

	switch pass.Kind {
	case PassGraphics:
		inferGraphicsUsage(&usage, pass.Graphics)
	case PassCompute:
		inferComputeUsage(&usage, pass.Compute)
	case PassTransfer:
		inferTransferUsage(&usage, pass.Transfer)
	}

	return usage
}

func inferGraphicsUsage(usage *PassResourceUsage, data *GraphicsPassData) {
	if data.RenderTargets != nil {
		for _, att := range data.RenderTargets.ColorAttachments {
			addAttachmentUsage(usage, att, RenderTargetWrite)
		}
		if data.RenderTargets.DepthStencil != nil {
			mode := DepthStencilWrite
			if data.RenderTargets.DepthStencil.Store == StoreOpDontCare {
				mode = DepthStencilReadOnly
			}
			addAttachmentUsage(usage, *data.RenderTargets.DepthStencil, mode)
		}
	}

	for _, draw := range data.Draws {
		inferMeshUsage(usage, draw.Mesh)
		inferMaterialInstanceUsage(usage, draw.Instance)
	}
}

func addAttachmentUsage(usage *PassResourceUsage, att Attachment, textureMode TextureAccessMode) {
	if att.Target.IsSurface() {
		mode := SurfaceWrite
		if att.Load == LoadOpLoad {
			mode = SurfaceReadWrite
		}
		usage.add(att.Target.Surface.Key(), mode)
		return
	}
	if att.Target.Texture != nil {
		usage.add(att.Target.Texture.Key(), textureMode)
	}
}

func inferMeshUsage(usage *PassResourceUsage, mesh *Mesh) {
	if mesh == nil {
		return
	}
	for _, vb := range mesh.VertexBuffers {
		usage.add(vb.Key(), ShaderRead)
	}
	if mesh.IndexBuffer != nil {
		usage.add(mesh.IndexBuffer.Key(), ShaderRead)
	}
}

func inferMaterialInstanceUsage(usage *PassResourceUsage, instance *MaterialInstance) {
	if instance == nil {
		return
	}
	for groupIdx, group := range instance.BindingGroups {
		var layout *BindingLayout
		if instance.Material != nil && groupIdx < len(instance.Material.BindingLayouts) {
			layout = instance.Material.BindingLayouts[groupIdx]
		}
		inferBindingGroupUsage(usage, group, layout)
	}
}

func inferBindingGroupUsage(usage *PassResourceUsage, group *BindingGroup, layout *BindingLayout) {
	if group == nil {
		return
	}
	entryType := func(binding uint32) (BindingType, bool) {
		if layout == nil {
			return BindingUniformBuffer, false
		}
		for _, e := range layout.Entries {
			if e.Binding == binding {
				return e.Type, true
			}
		}
		return BindingUniformBuffer, false
	}

	for _, entry := range group.Entries {
		bindingType, known := entryType(entry.Binding)
		mode := ShaderRead
		if known && bindingType == BindingStorageBuffer {
			mode = StorageRead
		}

		if entry.Resource.Buffer != nil {
			usage.add(entry.Resource.Buffer.Key(), mode)
		}
		if entry.Resource.Texture != nil {
			usage.add(entry.Resource.Texture.Key(), ShaderRead)
		}
		if entry.Resource.CombinedTexture != nil {
			usage.add(entry.Resource.CombinedTexture.Key(), ShaderRead)
		}
	}
}

func inferComputeUsage(usage *PassResourceUsage, data *ComputePassData) {
	for _, dispatch := range data.Dispatches {
		if dispatch.Instance == nil {
			continue
		}
		for groupIdx, group := range dispatch.Instance.BindingGroups {
			var layout *BindingLayout
			if dispatch.Instance.Material != nil && groupIdx < len(dispatch.Instance.Material.BindingLayouts) {
				layout = dispatch.Instance.Material.BindingLayouts[groupIdx]
			}
			inferComputeBindingUsage(usage, group, layout)
		}
	}
}

func inferComputeBindingUsage(usage *PassResourceUsage, group *BindingGroup, layout *BindingLayout) {
	if group == nil {
		return
	}
	entryType := func(binding uint32) BindingType {
		if layout == nil {
			return BindingUniformBuffer
		}
		for _, e := range layout.Entries {
			if e.Binding == binding {
				return e.Type
			}
		}
		return BindingUniformBuffer
	}

	for _, entry := range group.Entries {
		if entryType(entry.Binding) == BindingStorageBuffer && entry.Resource.Buffer != nil {
			usage.add(entry.Resource.Buffer.Key(), StorageWrite)
			continue
		}
		if entry.Resource.Buffer != nil {
			usage.add(entry.Resource.Buffer.Key(), ShaderRead)
		}
		if entry.Resource.Texture != nil {
			usage.add(entry.Resource.Texture.Key(), ShaderRead)
		}
	}
}

func inferTransferUsage(usage *PassResourceUsage, data *TransferPassData) {
	for _, op := range data.Operations {
		switch op.Kind {
		case TransferBufferToBuffer:
			usage.add(op.SrcBuffer.Key(), TransferRead)
			usage.add(op.DstBuffer.Key(), TransferWrite)
		case TransferBufferToTexture:
			usage.add(op.SrcBuffer.Key(), TransferRead)
			usage.add(op.DstTexture.Key(), TransferWrite)
		case TransferTextureToBuffer:
			usage.add(op.SrcTexture.Key(), TransferRead)
			usage.add(op.DstBuffer.Key(), TransferWrite)
		case TransferTextureToTexture:
			usage.add(op.SrcTexture.Key(), TransferRead)
			usage.add(op.DstTexture.Key(), TransferWrite)
		}
	}
}
