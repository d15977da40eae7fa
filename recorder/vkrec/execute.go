package vkrec

import (
	"github.com/NOT-REAL-GAMES/forgecore/recorder"
	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
	"github.com/NOT-REAL-GAMES/forgecore/vk"
)

// textureAccess pairs a texture reference with the access mode this backend
// infers for it, mirroring the compiler's own resource-usage inference
// closely enough to drive per-pass barrier placement, but walking the pass
// data directly so the recorder can reach each texture's backend handle.
type textureAccess struct {
	key     rendergraph.ResourceKey
	texture *rendergraph.Texture
	surface *rendergraph.Surface
	mode    rendergraph.TextureAccessMode
}

func textureAccessesForPass(pass rendergraph.Pass) []textureAccess {
	var out []textureAccess

	add := func(tex *rendergraph.Texture, surf *rendergraph.Surface, mode rendergraph.TextureAccessMode) {
		switch {
		case surf != nil:
			out = append(out, textureAccess{key: surf.Key(), surface: surf, mode: mode})
		case tex != nil:
			out = append(out, textureAccess{key: tex.Key(), texture: tex, mode: mode})
		}
	}

	switch pass.Kind {
	case rendergraph.PassGraphics:
		if rt := pass.Graphics.RenderTargets; rt != nil {
			for _, att := range rt.ColorAttachments {
				mode := rendergraph.RenderTargetWrite
				if att.Target.IsSurface() && att.Load == rendergraph.LoadOpLoad {
					mode = rendergraph.SurfaceReadWrite
				} else if att.Target.IsSurface() {
					mode = rendergraph.SurfaceWrite
				}
				add(att.Target.Texture, att.Target.Surface, mode)
			}
			if rt.DepthStencil != nil {
				mode := rendergraph.DepthStencilWrite
				if rt.DepthStencil.Store == rendergraph.StoreOpDontCare {
					mode = rendergraph.DepthStencilReadOnly
				}
				add(rt.DepthStencil.Target.Texture, rt.DepthStencil.Target.Surface, mode)
			}
		}
		for _, draw := range pass.Graphics.Draws {
			addMaterialInstanceTextures(draw.Instance, add)
		}
	case rendergraph.PassCompute:
		for _, dispatch := range pass.Compute.Dispatches {
			addMaterialInstanceTextures(dispatch.Instance, add)
		}
	case rendergraph.PassTransfer:
		for _, op := range pass.Transfer.Operations {
			if op.SrcTexture != nil {
				add(op.SrcTexture, nil, rendergraph.TransferRead)
			}
			if op.DstTexture != nil {
				add(op.DstTexture, nil, rendergraph.TransferWrite)
			}
		}
	}
	return out
}

func addMaterialInstanceTextures(instance *rendergraph.MaterialInstance, add func(*rendergraph.Texture, *rendergraph.Surface, rendergraph.TextureAccessMode)) {
	if instance == nil {
		return
	}
	for _, group := range instance.BindingGroups {
		if group == nil {
			continue
		}
		for _, entry := range group.Entries {
			if entry.Resource.Texture != nil {
				add(entry.Resource.Texture, nil, rendergraph.ShaderRead)
			}
			if entry.Resource.CombinedTexture != nil {
				add(entry.Resource.CombinedTexture, nil, rendergraph.ShaderRead)
			}
		}
	}
}

// ExecuteGraph walks the compiled pass order, emitting layout-transition
// barriers ahead of each pass's texture accesses and recording the pass's
// draw/dispatch/copy commands, per spec §4.3.1-§4.3.3. Swapchain/surface
// images are assumed already in the correct layout by the caller's
// presentation loop (this engine's render graph never owns the swapchain
// directly); the tracker still records surface layout state so a later
// pass reading the same surface sees a consistent history.
func (b *Backend) ExecuteGraph(g *rendergraph.RenderGraph, compiled *rendergraph.CompiledGraph, signalFence recorder.Fence) error {
	slot := b.currentSlot
	cmd := b.frameCmdBufs[slot]

	if err := cmd.Reset(0); err != nil {
		return fmtErr("reset command buffer", err)
	}
	if err := cmd.Begin(&vk.CommandBufferBeginInfo{Flags: vk.COMMAND_BUFFER_USAGE_ONE_TIME_SUBMIT_BIT}); err != nil {
		return fmtErr("begin command buffer", err)
	}

	for _, handle := range compiled.PassOrder {
		pass := g.Pass(handle)
		b.emitBarriers(cmd, slot, textureAccessesForPass(pass))

		switch pass.Kind {
		case rendergraph.PassGraphics:
			b.recordGraphicsPass(cmd, pass.Graphics)
		case rendergraph.PassCompute:
			b.recordComputePass(cmd, pass.Compute)
		case rendergraph.PassTransfer:
			b.recordTransferPass(cmd, pass.Transfer)
		}
	}

	if err := cmd.End(); err != nil {
		return fmtErr("end command buffer", err)
	}

	var vkFenceHandle vk.Fence
	if signalFence != nil {
		vf, ok := signalFence.(*vkFence)
		if ok {
			vkFenceHandle = vf.fence
		}
	}

	return b.graphicsQueue.Submit([]vk.SubmitInfo{{CommandBuffers: []vk.CommandBuffer{cmd}}}, vkFenceHandle)
}

func (b *Backend) emitBarriers(cmd vk.CommandBuffer, slot int, accesses []textureAccess) {
	for _, a := range accesses {
		barrier, changed := b.layouts.TransitionFor(a.key, slot, a.mode)
		if !changed || a.texture == nil {
			continue
		}
		handle, ok := a.texture.Backend.(*textureHandle)
		if !ok {
			continue
		}
		cmd.PipelineBarrier(barrier.SrcStage, barrier.DstStage, 0, []vk.ImageMemoryBarrier{{
			SrcAccessMask: barrier.SrcAccess,
			DstAccessMask: barrier.DstAccess,
			OldLayout:     barrier.OldLayout.ToVk(),
			NewLayout:     barrier.NewLayout.ToVk(),
			Image:         handle.image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: aspectMaskFor(a.texture.Format),
				LevelCount: a.texture.MipLevels,
				LayerCount: a.texture.DepthOrLayers,
			},
		}})
	}
}

func aspectMaskFor(f rendergraph.Format) vk.ImageAspectFlags {
	if f.IsDepth() {
		return vk.IMAGE_ASPECT_DEPTH_BIT
	}
	return vk.IMAGE_ASPECT_COLOR_BIT
}

func (b *Backend) recordGraphicsPass(cmd vk.CommandBuffer, data *rendergraph.GraphicsPassData) {
	if data.RenderTargets == nil {
		return
	}

	var renderingInfo vk.RenderingInfo
	var width, height uint32
	for _, att := range data.RenderTargets.ColorAttachments {
		view, w, h, ok := attachmentImageView(att.Target)
		if !ok {
			continue
		}
		width, height = w, h
		renderingInfo.ColorAttachments = append(renderingInfo.ColorAttachments, vk.RenderingAttachmentInfo{
			ImageView:   view,
			ImageLayout: vk.IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL,
			LoadOp:      toVkLoadOp(att.Load),
			StoreOp:     toVkStoreOp(att.Store),
			ClearValue:  vk.ClearValue{Color: vk.ClearColorValue{Float32: att.Clear.Color}},
		})
	}
	renderingInfo.LayerCount = 1
	renderingInfo.RenderArea = vk.Rect2D{Extent: vk.Extent2D{Width: width, Height: height}}

	if data.RenderTargets.DepthStencil != nil {
		view, _, _, ok := attachmentImageView(data.RenderTargets.DepthStencil.Target)
		if ok {
			depthAttachment := vk.RenderingAttachmentInfo{
				ImageView:   view,
				ImageLayout: vk.IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL,
				LoadOp:      toVkLoadOp(data.RenderTargets.DepthStencil.Load),
				StoreOp:     toVkStoreOp(data.RenderTargets.DepthStencil.Store),
			}
			renderingInfo.DepthAttachment = &depthAttachment
		}
	}

	cmd.BeginRendering(&renderingInfo)

	viewport := vk.Viewport{Width: float32(width), Height: float32(height), MaxDepth: 1}
	if data.Viewport != nil {
		viewport = vk.Viewport{X: data.Viewport.X, Y: data.Viewport.Y, Width: data.Viewport.Width, Height: data.Viewport.Height, MinDepth: data.Viewport.MinDepth, MaxDepth: data.Viewport.MaxDepth}
	}
	cmd.SetViewport(0, []vk.Viewport{viewport})
	scissor := vk.Rect2D{Extent: vk.Extent2D{Width: width, Height: height}}
	if data.Scissor != nil {
		scissor = vk.Rect2D{Offset: vk.Offset2D{X: int32(data.Scissor.X), Y: int32(data.Scissor.Y)}, Extent: vk.Extent2D{Width: data.Scissor.Width, Height: data.Scissor.Height}}
	}
	cmd.SetScissor(0, []vk.Rect2D{scissor})

	for _, draw := range data.Draws {
		b.recordDraw(cmd, draw)
	}

	cmd.EndRendering()
}

func (b *Backend) recordDraw(cmd vk.CommandBuffer, draw rendergraph.DrawCommand) {
	if draw.Instance == nil || draw.Instance.Material == nil {
		return
	}
	handle, ok := draw.Instance.Material.Pipeline.(*materialHandle)
	if !ok || handle.isCompute {
		return
	}
	cmd.BindPipeline(vk.PIPELINE_BIND_POINT_GRAPHICS, handle.pipeline)

	if draw.Mesh != nil {
		buffers := make([]vk.Buffer, len(draw.Mesh.VertexBuffers))
		offsets := make([]uint64, len(draw.Mesh.VertexBuffers))
		for i, vb := range draw.Mesh.VertexBuffers {
			if bh, ok := vb.Backend.(*bufferHandle); ok {
				buffers[i] = bh.buffer
			}
		}
		if len(buffers) > 0 {
			cmd.BindVertexBuffers(0, buffers, offsets)
		}
		if draw.Mesh.IsIndexed() {
			if bh, ok := draw.Mesh.IndexBuffer.Backend.(*bufferHandle); ok {
				cmd.BindIndexBuffer(bh.buffer, 0, toVkIndexType(draw.Mesh.IndexFormat))
				cmd.DrawIndexed(draw.Mesh.IndexCount, instanceCountOrOne(draw.InstanceCount), 0, 0, draw.FirstInstance)
				return
			}
		}
		cmd.Draw(draw.Mesh.VertexCount, instanceCountOrOne(draw.InstanceCount), 0, draw.FirstInstance)
	}
}

func instanceCountOrOne(c uint32) uint32 {
	if c == 0 {
		return 1
	}
	return c
}

func toVkIndexType(f rendergraph.IndexFormat) vk.IndexType {
	if f == rendergraph.IndexFormatUint32 {
		return vk.INDEX_TYPE_UINT32
	}
	return vk.INDEX_TYPE_UINT16
}

func (b *Backend) recordComputePass(cmd vk.CommandBuffer, data *rendergraph.ComputePassData) {
	for _, dispatch := range data.Dispatches {
		if dispatch.Instance == nil || dispatch.Instance.Material == nil {
			continue
		}
		handle, ok := dispatch.Instance.Material.Pipeline.(*materialHandle)
		if !ok || !handle.isCompute {
			continue
		}
		cmd.BindPipeline(vk.PIPELINE_BIND_POINT_COMPUTE, handle.pipeline)
		cmd.Dispatch(dispatch.X, dispatch.Y, dispatch.Z)
	}
}

func (b *Backend) recordTransferPass(cmd vk.CommandBuffer, data *rendergraph.TransferPassData) {
	for _, op := range data.Operations {
		switch op.Kind {
		case rendergraph.TransferBufferToBuffer:
			recordBufferToBuffer(cmd, op)
		case rendergraph.TransferBufferToTexture:
			recordBufferToTexture(cmd, op)
		case rendergraph.TransferTextureToBuffer:
			recordTextureToBuffer(cmd, op)
		case rendergraph.TransferTextureToTexture:
			recordTextureToTexture(cmd, op)
		}
	}
}

func recordBufferToBuffer(cmd vk.CommandBuffer, op rendergraph.TransferOperation) {
	srcHandle, okSrc := op.SrcBuffer.Backend.(*bufferHandle)
	dstHandle, okDst := op.DstBuffer.Backend.(*bufferHandle)
	if !okSrc || !okDst {
		return
	}
	regions := make([]vk.BufferCopy, len(op.BufferRegions))
	for i, r := range op.BufferRegions {
		regions[i] = vk.BufferCopy{SrcOffset: r.SrcOffset, DstOffset: r.DstOffset, Size: r.Size}
	}
	cmd.CmdCopyBuffer(srcHandle.buffer, dstHandle.buffer, regions)
}

func recordBufferToTexture(cmd vk.CommandBuffer, op rendergraph.TransferOperation) {
	srcHandle, okSrc := op.SrcBuffer.Backend.(*bufferHandle)
	dstHandle, okDst := op.DstTexture.Backend.(*textureHandle)
	if !okSrc || !okDst {
		return
	}
	regions := make([]vk.BufferImageCopy, len(op.BufferTextureRegions))
	for i, r := range op.BufferTextureRegions {
		regions[i] = toVkBufferImageCopy(r, aspectMaskFor(op.DstTexture.Format))
	}
	cmd.CopyBufferToImage(srcHandle.buffer, dstHandle.image, vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL, regions)
}

func recordTextureToBuffer(cmd vk.CommandBuffer, op rendergraph.TransferOperation) {
	srcHandle, okSrc := op.SrcTexture.Backend.(*textureHandle)
	dstHandle, okDst := op.DstBuffer.Backend.(*bufferHandle)
	if !okSrc || !okDst {
		return
	}
	regions := make([]vk.BufferImageCopy, len(op.BufferTextureRegions))
	for i, r := range op.BufferTextureRegions {
		regions[i] = toVkBufferImageCopy(r, aspectMaskFor(op.SrcTexture.Format))
	}
	cmd.CopyImageToBuffer(srcHandle.image, vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL, dstHandle.buffer, regions)
}

func recordTextureToTexture(cmd vk.CommandBuffer, op rendergraph.TransferOperation) {
	srcHandle, okSrc := op.SrcTexture.Backend.(*textureHandle)
	dstHandle, okDst := op.DstTexture.Backend.(*textureHandle)
	if !okSrc || !okDst {
		return
	}
	srcAspect := aspectMaskFor(op.SrcTexture.Format)
	dstAspect := aspectMaskFor(op.DstTexture.Format)
	regions := make([]vk.ImageCopy, len(op.TextureTextureRegions))
	for i, r := range op.TextureTextureRegions {
		regions[i] = vk.ImageCopy{
			SrcSubresource: vk.ImageSubresourceLayers{AspectMask: srcAspect, MipLevel: r.Src.MipLevel, LayerCount: 1},
			SrcOffset:      vk.Offset3D{X: int32(r.Src.OriginX), Y: int32(r.Src.OriginY), Z: int32(r.Src.OriginZ)},
			DstSubresource: vk.ImageSubresourceLayers{AspectMask: dstAspect, MipLevel: r.Dst.MipLevel, LayerCount: 1},
			DstOffset:      vk.Offset3D{X: int32(r.Dst.OriginX), Y: int32(r.Dst.OriginY), Z: int32(r.Dst.OriginZ)},
			Extent:         vk.Extent3D{Width: r.Extent.Width, Height: r.Extent.Height, Depth: max1(r.Extent.Depth)},
		}
	}
	cmd.CopyImage(srcHandle.image, vk.IMAGE_LAYOUT_TRANSFER_SRC_OPTIMAL, dstHandle.image, vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL, regions)
}

func toVkBufferImageCopy(r rendergraph.BufferTextureRegion, aspect vk.ImageAspectFlags) vk.BufferImageCopy {
	return vk.BufferImageCopy{
		BufferOffset:      r.BufferLayout.Offset,
		BufferRowLength:   0,
		BufferImageHeight: r.BufferLayout.RowsPerImage,
		ImageSubresource:  vk.ImageSubresourceLayers{AspectMask: aspect, MipLevel: r.TextureLocation.MipLevel, LayerCount: 1},
		ImageOffset:       vk.Offset3D{X: int32(r.TextureLocation.OriginX), Y: int32(r.TextureLocation.OriginY), Z: int32(r.TextureLocation.OriginZ)},
		ImageExtent:       vk.Extent3D{Width: r.Extent.Width, Height: r.Extent.Height, Depth: max1(r.Extent.Depth)},
	}
}

func attachmentImageView(target rendergraph.RenderTarget) (vk.ImageView, uint32, uint32, bool) {
	if target.Texture == nil {
		return vk.ImageView{}, 0, 0, false
	}
	handle, ok := target.Texture.Backend.(*textureHandle)
	if !ok {
		return vk.ImageView{}, 0, 0, false
	}
	return handle.view, target.Texture.Width, target.Texture.Height, true
}

func toVkLoadOp(op rendergraph.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case rendergraph.LoadOpClear:
		return vk.ATTACHMENT_LOAD_OP_CLEAR
	case rendergraph.LoadOpDontCare:
		return vk.ATTACHMENT_LOAD_OP_DONT_CARE
	default:
		return vk.ATTACHMENT_LOAD_OP_LOAD
	}
}

func toVkStoreOp(op rendergraph.StoreOp) vk.AttachmentStoreOp {
	if op == rendergraph.StoreOpDontCare {
		return vk.ATTACHMENT_STORE_OP_DONT_CARE
	}
	return vk.ATTACHMENT_STORE_OP_STORE
}
