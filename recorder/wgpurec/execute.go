package wgpurec

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"

	"github.com/NOT-REAL-GAMES/forgecore/recorder"
	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
)

// ExecuteGraph walks the compiled pass order and records it against a
// single command encoder, submitting once at the end. There is no
// per-pass barrier step: WebGPU's validation layer derives the necessary
// resource transitions from each pass's declared usage, per spec §4.3.4.
func (b *Backend) ExecuteGraph(g *rendergraph.RenderGraph, compiled *rendergraph.CompiledGraph, signalFence recorder.Fence) error {
	encoder, err := core.CreateCommandEncoder(b.device, &gputypes.CommandEncoderDescriptor{Label: "forgecore-frame"})
	if err != nil {
		return fmtErr("create command encoder", err)
	}

	for _, handle := range compiled.PassOrder {
		pass := g.Pass(handle)
		switch pass.Kind {
		case rendergraph.PassGraphics:
			if err := recordGraphicsPass(encoder, pass.Graphics); err != nil {
				return err
			}
		case rendergraph.PassCompute:
			if err := recordComputePass(encoder, pass.Compute); err != nil {
				return err
			}
		case rendergraph.PassTransfer:
			recordTransferPass(encoder, pass.Transfer)
		}
	}

	commandBuffer, err := core.FinishCommandEncoder(encoder)
	if err != nil {
		return fmtErr("finish command encoder", err)
	}
	if err := core.QueueSubmit(b.queue, []core.CommandBufferID{commandBuffer}); err != nil {
		return fmtErr("submit command buffer", err)
	}

	if wf, ok := signalFence.(*wgpuFence); ok {
		wf.signaled = false
	}
	return nil
}

func recordGraphicsPass(encoder core.CoreCommandEncoderID, data *rendergraph.GraphicsPassData) error {
	if data.RenderTargets == nil {
		return nil
	}

	colorAttachments := make([]gputypes.RenderPassColorAttachment, 0, len(data.RenderTargets.ColorAttachments))
	for _, att := range data.RenderTargets.ColorAttachments {
		view, ok := attachmentTextureView(att.Target)
		if !ok {
			continue
		}
		colorAttachments = append(colorAttachments, gputypes.RenderPassColorAttachment{
			View:       view,
			LoadOp:     toGpuLoadOp(att.Load),
			StoreOp:    toGpuStoreOp(att.Store),
			ClearValue: gputypes.Color{R: float64(att.Clear.Color[0]), G: float64(att.Clear.Color[1]), B: float64(att.Clear.Color[2]), A: float64(att.Clear.Color[3])},
		})
	}

	desc := &gputypes.RenderPassDescriptor{ColorAttachments: colorAttachments}
	if data.RenderTargets.DepthStencil != nil {
		if view, ok := attachmentTextureView(data.RenderTargets.DepthStencil.Target); ok {
			desc.DepthStencilAttachment = &gputypes.RenderPassDepthStencilAttachment{
				View:          view,
				DepthLoadOp:   toGpuLoadOp(data.RenderTargets.DepthStencil.Load),
				DepthStoreOp:  toGpuStoreOp(data.RenderTargets.DepthStencil.Store),
				DepthReadOnly: data.RenderTargets.DepthStencil.Store == rendergraph.StoreOpDontCare,
			}
		}
	}

	pass, err := core.BeginRenderPass(encoder, desc)
	if err != nil {
		return fmtErr("begin render pass", err)
	}

	for _, draw := range data.Draws {
		recordDraw(pass, draw)
	}

	return core.EndRenderPass(pass)
}

func recordDraw(pass core.CoreRenderPassEncoderID, draw rendergraph.DrawCommand) {
	if draw.Instance == nil || draw.Instance.Material == nil {
		return
	}
	handle, ok := draw.Instance.Material.Pipeline.(*materialHandle)
	if !ok || handle.isCompute {
		return
	}
	core.SetRenderPipeline(pass, handle.renderPipeline)
	bindInstanceGroups(draw.Instance, handle.bindGroupLayouts, func(index uint32, bg core.BindGroupID) {
		core.SetBindGroup(pass, index, bg)
	})

	if draw.Mesh == nil {
		return
	}
	for i, vb := range draw.Mesh.VertexBuffers {
		if bh, ok := vb.Backend.(*bufferHandle); ok {
			core.SetVertexBuffer(pass, uint32(i), bh.id)
		}
	}
	if draw.Mesh.IsIndexed() {
		if bh, ok := draw.Mesh.IndexBuffer.Backend.(*bufferHandle); ok {
			core.SetIndexBuffer(pass, bh.id, toGpuIndexFormat(draw.Mesh.IndexFormat))
			core.DrawIndexed(pass, draw.Mesh.IndexCount, instanceCountOrOne(draw.InstanceCount), 0, 0, draw.FirstInstance)
			return
		}
	}
	core.Draw(pass, draw.Mesh.VertexCount, instanceCountOrOne(draw.InstanceCount), 0, draw.FirstInstance)
}

func recordComputePass(encoder core.CoreCommandEncoderID, data *rendergraph.ComputePassData) error {
	if len(data.Dispatches) == 0 {
		return nil
	}
	pass, err := core.BeginComputePass(encoder, &gputypes.ComputePassDescriptor{})
	if err != nil {
		return fmtErr("begin compute pass", err)
	}
	for _, dispatch := range data.Dispatches {
		if dispatch.Instance == nil || dispatch.Instance.Material == nil {
			continue
		}
		handle, ok := dispatch.Instance.Material.Pipeline.(*materialHandle)
		if !ok || !handle.isCompute {
			continue
		}
		core.SetComputePipeline(pass, handle.computePipeline)
		bindInstanceGroups(dispatch.Instance, handle.bindGroupLayouts, func(index uint32, bg core.BindGroupID) {
			core.SetBindGroup(pass, index, bg)
		})
		core.DispatchWorkgroups(pass, dispatch.X, dispatch.Y, dispatch.Z)
	}
	return core.EndComputePass(pass)
}

// bindInstanceGroups builds and binds one bind group per binding-group
// layout the material declared, fresh each draw/dispatch — WebGPU bind
// groups have no update-in-place operation, so unlike a Vulkan descriptor
// set there is nothing to write into ahead of time.
func bindInstanceGroups(instance *rendergraph.MaterialInstance, layouts []core.BindGroupLayoutID, setBindGroup func(index uint32, bg core.BindGroupID)) {
	for i, group := range instance.BindingGroups {
		if group == nil || i >= len(layouts) {
			continue
		}
		entries := make([]gputypes.BindGroupEntry, 0, len(group.Entries))
		for _, entry := range group.Entries {
			if e, ok := toGpuBindGroupEntry(entry); ok {
				entries = append(entries, e)
			}
		}
		bindGroup, err := core.CreateBindGroup(layouts[i], entries)
		if err != nil {
			continue
		}
		setBindGroup(uint32(i), bindGroup)
	}
}

func toGpuBindGroupEntry(entry rendergraph.BindingGroupEntry) (gputypes.BindGroupEntry, bool) {
	switch {
	case entry.Resource.Buffer != nil:
		if bh, ok := entry.Resource.Buffer.Backend.(*bufferHandle); ok {
			return gputypes.BindGroupEntry{Binding: entry.Binding, Resource: gputypes.BufferBinding{Buffer: bh.id, Offset: 0, Size: bh.size}}, true
		}
	case entry.Resource.CombinedTexture != nil:
		if th, ok := entry.Resource.CombinedTexture.Backend.(*textureHandle); ok {
			return gputypes.BindGroupEntry{Binding: entry.Binding, Resource: th.view}, true
		}
	case entry.Resource.Texture != nil:
		if th, ok := entry.Resource.Texture.Backend.(*textureHandle); ok {
			return gputypes.BindGroupEntry{Binding: entry.Binding, Resource: th.view}, true
		}
	case entry.Resource.Sampler != nil:
		if id, ok := entry.Resource.Sampler.Backend.(core.SamplerID); ok {
			return gputypes.BindGroupEntry{Binding: entry.Binding, Resource: id}, true
		}
	}
	return gputypes.BindGroupEntry{}, false
}

func recordTransferPass(encoder core.CoreCommandEncoderID, data *rendergraph.TransferPassData) {
	for _, op := range data.Operations {
		switch op.Kind {
		case rendergraph.TransferBufferToBuffer:
			recordBufferToBuffer(encoder, op)
		case rendergraph.TransferBufferToTexture:
			recordBufferToTexture(encoder, op)
		case rendergraph.TransferTextureToBuffer:
			recordTextureToBuffer(encoder, op)
		case rendergraph.TransferTextureToTexture:
			recordTextureToTexture(encoder, op)
		}
	}
}

func recordBufferToBuffer(encoder core.CoreCommandEncoderID, op rendergraph.TransferOperation) {
	srcHandle, okSrc := op.SrcBuffer.Backend.(*bufferHandle)
	dstHandle, okDst := op.DstBuffer.Backend.(*bufferHandle)
	if !okSrc || !okDst {
		return
	}
	for _, r := range op.BufferRegions {
		core.CommandEncoderCopyBufferToBuffer(encoder, srcHandle.id, r.SrcOffset, dstHandle.id, r.DstOffset, r.Size)
	}
}

func recordBufferToTexture(encoder core.CoreCommandEncoderID, op rendergraph.TransferOperation) {
	srcHandle, okSrc := op.SrcBuffer.Backend.(*bufferHandle)
	dstHandle, okDst := op.DstTexture.Backend.(*textureHandle)
	if !okSrc || !okDst {
		return
	}
	for _, r := range op.BufferTextureRegions {
		core.CommandEncoderCopyBufferToTexture(encoder,
			gputypes.ImageCopyBuffer{
				Buffer: srcHandle.id,
				Layout: gputypes.TextureDataLayout{Offset: r.BufferLayout.Offset, BytesPerRow: r.BufferLayout.BytesPerRow, RowsPerImage: r.BufferLayout.RowsPerImage},
			},
			gputypes.ImageCopyTexture{
				Texture:  dstHandle.id,
				MipLevel: r.TextureLocation.MipLevel,
				Origin:   gputypes.Origin3D{X: r.TextureLocation.OriginX, Y: r.TextureLocation.OriginY, Z: r.TextureLocation.OriginZ},
				Aspect:   gputypes.TextureAspectAll,
			},
			gputypes.Extent3D{Width: r.Extent.Width, Height: r.Extent.Height, DepthOrArrayLayers: max1(r.Extent.Depth)},
		)
	}
}

func recordTextureToBuffer(encoder core.CoreCommandEncoderID, op rendergraph.TransferOperation) {
	srcHandle, okSrc := op.SrcTexture.Backend.(*textureHandle)
	dstHandle, okDst := op.DstBuffer.Backend.(*bufferHandle)
	if !okSrc || !okDst {
		return
	}
	for _, r := range op.BufferTextureRegions {
		core.CommandEncoderCopyTextureToBuffer(encoder,
			gputypes.ImageCopyTexture{
				Texture:  srcHandle.id,
				MipLevel: r.TextureLocation.MipLevel,
				Origin:   gputypes.Origin3D{X: r.TextureLocation.OriginX, Y: r.TextureLocation.OriginY, Z: r.TextureLocation.OriginZ},
				Aspect:   gputypes.TextureAspectAll,
			},
			gputypes.ImageCopyBuffer{
				Buffer: dstHandle.id,
				Layout: gputypes.TextureDataLayout{Offset: r.BufferLayout.Offset, BytesPerRow: r.BufferLayout.BytesPerRow, RowsPerImage: r.BufferLayout.RowsPerImage},
			},
			gputypes.Extent3D{Width: r.Extent.Width, Height: r.Extent.Height, DepthOrArrayLayers: max1(r.Extent.Depth)},
		)
	}
}

func recordTextureToTexture(encoder core.CoreCommandEncoderID, op rendergraph.TransferOperation) {
	srcHandle, okSrc := op.SrcTexture.Backend.(*textureHandle)
	dstHandle, okDst := op.DstTexture.Backend.(*textureHandle)
	if !okSrc || !okDst {
		return
	}
	for _, r := range op.TextureTextureRegions {
		core.CommandEncoderCopyTextureToTexture(encoder,
			gputypes.ImageCopyTexture{Texture: srcHandle.id, MipLevel: r.Src.MipLevel, Origin: gputypes.Origin3D{X: r.Src.OriginX, Y: r.Src.OriginY, Z: r.Src.OriginZ}, Aspect: gputypes.TextureAspectAll},
			gputypes.ImageCopyTexture{Texture: dstHandle.id, MipLevel: r.Dst.MipLevel, Origin: gputypes.Origin3D{X: r.Dst.OriginX, Y: r.Dst.OriginY, Z: r.Dst.OriginZ}, Aspect: gputypes.TextureAspectAll},
			gputypes.Extent3D{Width: r.Extent.Width, Height: r.Extent.Height, DepthOrArrayLayers: max1(r.Extent.Depth)},
		)
	}
}

func attachmentTextureView(target rendergraph.RenderTarget) (core.TextureViewID, bool) {
	if target.Texture == nil {
		return core.TextureViewID{}, false
	}
	handle, ok := target.Texture.Backend.(*textureHandle)
	if !ok {
		return core.TextureViewID{}, false
	}
	return handle.view, true
}

func instanceCountOrOne(c uint32) uint32 {
	if c == 0 {
		return 1
	}
	return c
}

func toGpuIndexFormat(f rendergraph.IndexFormat) gputypes.IndexFormat {
	if f == rendergraph.IndexFormatUint32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}

func toGpuLoadOp(op rendergraph.LoadOp) gputypes.LoadOp {
	if op == rendergraph.LoadOpClear {
		return gputypes.LoadOpClear
	}
	return gputypes.LoadOpLoad
}

func toGpuStoreOp(op rendergraph.StoreOp) gputypes.StoreOp {
	if op == rendergraph.StoreOpDontCare {
		return gputypes.StoreOpDiscard
	}
	return gputypes.StoreOpStore
}
