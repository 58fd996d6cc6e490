package vulkan

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/forge3d/forge/graphics"
)

// commandBuffer implements graphics.CommandBuffer. It tracks which targets
// were begun since Begin so the first render pass into a target clears it and
// later passes load the accumulated contents. Descriptor sets allocated while
// recording live until the next Reset, after the slot fence proves the GPU is
// done with them.
type commandBuffer struct {
	dev      *Device
	handle   vk.CommandBuffer
	begun    map[*renderTarget]bool
	pipeline *pipeline
	sets     []vk.DescriptorSet
}

func (d *Device) AllocateCommandBuffer() (graphics.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(d.handle, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := result(ret, "allocating command buffer"); err != nil {
		return nil, err
	}
	return &commandBuffer{dev: d, handle: buffers[0], begun: make(map[*renderTarget]bool)}, nil
}

func (c *commandBuffer) Reset() error {
	if len(c.sets) > 0 {
		vk.FreeDescriptorSets(c.dev.handle, c.dev.descPool, uint32(len(c.sets)), &c.sets[0])
		c.sets = c.sets[:0]
	}
	c.pipeline = nil
	return result(vk.ResetCommandBuffer(c.handle, 0), "resetting command buffer")
}

func (c *commandBuffer) Begin() error {
	for t := range c.begun {
		delete(c.begun, t)
	}
	return result(vk.BeginCommandBuffer(c.handle, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}), "beginning command buffer")
}

func (c *commandBuffer) End() error {
	return result(vk.EndCommandBuffer(c.handle), "ending command buffer")
}

func (c *commandBuffer) BeginRendering(target graphics.RenderTarget) {
	t := target.(*renderTarget)
	pass := t.loadPass
	var clears []vk.ClearValue
	if !c.begun[t] {
		c.begun[t] = true
		pass = t.clearPass
		var color vk.ClearValue
		color.SetColor([]float32{0, 0, 0, 1})
		var depth vk.ClearValue
		depth.SetDepthStencil(1, 0)
		clears = []vk.ClearValue{color, depth}
	}

	vk.CmdBeginRenderPass(c.handle, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: t.framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: t.extent.Width, Height: t.extent.Height},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)

	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		Width:    float32(t.extent.Width),
		Height:   float32(t.extent.Height),
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{{
		Extent: vk.Extent2D{Width: t.extent.Width, Height: t.extent.Height},
	}})
}

func (c *commandBuffer) EndRendering() {
	vk.CmdEndRenderPass(c.handle)
}

func (c *commandBuffer) BindPipeline(p graphics.Pipeline) {
	pl := p.(*pipeline)
	c.pipeline = pl
	vk.CmdBindPipeline(c.handle, pl.bindPoint, pl.handle)
}

// BindBuffers allocates a descriptor set for the bound pipeline's layout,
// points its slots at bufs in declaration order, and binds it.
func (c *commandBuffer) BindBuffers(bufs ...graphics.Buffer) {
	pl := c.pipeline
	if pl == nil || pl.setLayout == vk.NullDescriptorSetLayout {
		return
	}
	if len(bufs) != len(pl.bindings) {
		c.dev.log.Errorf("vulkan: pipeline %s declares %d bindings, got %d buffers",
			pl.label, len(pl.bindings), len(bufs))
		return
	}
	pool, err := c.dev.descriptorPool()
	if err != nil {
		c.dev.log.Errorf("vulkan: %v", err)
		return
	}

	sets := make([]vk.DescriptorSet, 1)
	ret := vk.AllocateDescriptorSets(c.dev.handle, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{pl.setLayout},
	}, &sets[0])
	if err := result(ret, "allocating descriptor set for "+pl.label); err != nil {
		c.dev.log.Errorf("vulkan: %v", err)
		return
	}

	writes := make([]vk.WriteDescriptorSet, len(bufs))
	for i, buf := range bufs {
		b := buf.(*buffer)
		writes[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[0],
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  descriptorType(pl.bindings[i]),
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: b.handle,
				Range:  vk.DeviceSize(b.size),
			}},
		}
	}
	vk.UpdateDescriptorSets(c.dev.handle, uint32(len(writes)), writes, 0, nil)
	vk.CmdBindDescriptorSets(c.handle, pl.bindPoint, pl.layout, 0, 1, sets, 0, nil)
	c.sets = append(c.sets, sets[0])
}

func (c *commandBuffer) BindVertexBuffer(buf graphics.Buffer) {
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{buf.(*buffer).handle}, []vk.DeviceSize{0})
}

func (c *commandBuffer) BindIndexBuffer(buf graphics.Buffer) {
	vk.CmdBindIndexBuffer(c.handle, buf.(*buffer).handle, 0, vk.IndexTypeUint32)
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *commandBuffer) DrawIndexedIndirect(buf graphics.Buffer, offset uint64, drawCount, stride uint32) {
	vk.CmdDrawIndexedIndirect(c.handle, buf.(*buffer).handle, vk.DeviceSize(offset), drawCount, stride)
}

func (c *commandBuffer) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(c.handle, x, y, z)
}

// BlitToSwapchain copies the target's color image into the swapchain image
// acquired this frame, handling the layout transitions on both sides.
func (c *commandBuffer) BlitToSwapchain(src graphics.RenderTarget) {
	t := src.(*renderTarget)
	sc := c.dev.swapchain
	swapImage := sc.images[sc.currentImage]

	c.imageBarrier(t.color, vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal,
		vk.AccessFlags(vk.AccessColorAttachmentWriteBit), vk.AccessFlags(vk.AccessTransferReadBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))
	c.imageBarrier(swapImage, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, vk.AccessFlags(vk.AccessTransferWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	srcExtent := t.extent
	dstExtent := sc.extent
	blit := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
	}
	blit.SrcOffsets[1] = vk.Offset3D{X: int32(srcExtent.Width), Y: int32(srcExtent.Height), Z: 1}
	blit.DstOffsets[1] = vk.Offset3D{X: int32(dstExtent.Width), Y: int32(dstExtent.Height), Z: 1}
	vk.CmdBlitImage(c.handle,
		t.color, vk.ImageLayoutTransferSrcOptimal,
		swapImage, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{blit}, vk.FilterLinear)

	c.imageBarrier(swapImage, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc,
		vk.AccessFlags(vk.AccessTransferWriteBit), 0,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit))
	c.imageBarrier(t.color, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutColorAttachmentOptimal,
		vk.AccessFlags(vk.AccessTransferReadBit), vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit))
}

func (c *commandBuffer) imageBarrier(image vk.Image, oldLayout, newLayout vk.ImageLayout,
	srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags) {

	vk.CmdPipelineBarrier(c.handle, srcStage, dstStage, 0, 0, nil, 0, nil, 1,
		[]vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       dstAccess,
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}

func (c *commandBuffer) ResetQueryPool(pool graphics.QueryPool, first, count uint32) {
	vk.CmdResetQueryPool(c.handle, pool.(*queryPool).handle, first, count)
}

func (c *commandBuffer) WriteTimestamp(pool graphics.QueryPool, query uint32) {
	vk.CmdWriteTimestamp(c.handle, vk.PipelineStageBottomOfPipeBit, pool.(*queryPool).handle, query)
}
