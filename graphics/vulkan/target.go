package vulkan

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/forge3d/forge/graphics"
)

const (
	offscreenColorFormat = vk.FormatR16g16b16a16Sfloat
	offscreenDepthFormat = vk.FormatD32Sfloat
)

// renderTarget is an offscreen color+depth attachment pair. It carries two
// compatible render passes: clearPass for the first use in a frame, loadPass
// for every later pass drawing over the same image.
type renderTarget struct {
	dev    *Device
	extent graphics.Extent2D

	color       vk.Image
	colorMemory vk.DeviceMemory
	colorView   vk.ImageView
	depth       vk.Image
	depthMemory vk.DeviceMemory
	depthView   vk.ImageView

	clearPass   vk.RenderPass
	loadPass    vk.RenderPass
	framebuffer vk.Framebuffer
}

func (d *Device) CreateRenderTarget(extent graphics.Extent2D) (graphics.RenderTarget, error) {
	t := &renderTarget{dev: d, extent: extent}

	var err error
	t.color, t.colorMemory, t.colorView, err = d.createAttachment(extent, offscreenColorFormat,
		vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageSampledBit|vk.ImageUsageTransferSrcBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}
	t.depth, t.depthMemory, t.depthView, err = d.createAttachment(extent, offscreenDepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		t.destroyImages()
		return nil, err
	}

	t.clearPass, err = d.createTargetPass(vk.AttachmentLoadOpClear)
	if err != nil {
		t.destroyImages()
		return nil, err
	}
	t.loadPass, err = d.createTargetPass(vk.AttachmentLoadOpLoad)
	if err != nil {
		vk.DestroyRenderPass(d.handle, t.clearPass, nil)
		t.destroyImages()
		return nil, err
	}

	var framebuffer vk.Framebuffer
	ret := vk.CreateFramebuffer(d.handle, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      t.clearPass,
		AttachmentCount: 2,
		PAttachments:    []vk.ImageView{t.colorView, t.depthView},
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}, nil, &framebuffer)
	if err := result(ret, "creating framebuffer"); err != nil {
		vk.DestroyRenderPass(d.handle, t.loadPass, nil)
		vk.DestroyRenderPass(d.handle, t.clearPass, nil)
		t.destroyImages()
		return nil, err
	}
	t.framebuffer = framebuffer
	return t, nil
}

func (d *Device) createAttachment(extent graphics.Extent2D, format vk.Format,
	usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags) (vk.Image, vk.DeviceMemory, vk.ImageView, error) {

	var image vk.Image
	ret := vk.CreateImage(d.handle, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if err := result(ret, "creating attachment image"); err != nil {
		return nil, nil, nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, image, &reqs)
	reqs.Deref()
	memType, err := d.findMemoryType(reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(d.handle, image, nil)
		return nil, nil, nil, err
	}
	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(d.handle, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &memory)
	if err := result(ret, "allocating attachment memory"); err != nil {
		vk.DestroyImage(d.handle, image, nil)
		return nil, nil, nil, err
	}
	vk.BindImageMemory(d.handle, image, memory, 0)

	var view vk.ImageView
	ret = vk.CreateImageView(d.handle, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := result(ret, "creating attachment view"); err != nil {
		vk.FreeMemory(d.handle, memory, nil)
		vk.DestroyImage(d.handle, image, nil)
		return nil, nil, nil, err
	}
	return image, memory, view, nil
}

func (d *Device) createTargetPass(loadOp vk.AttachmentLoadOp) (vk.RenderPass, error) {
	initialLayout := vk.ImageLayoutUndefined
	depthInitial := vk.ImageLayoutUndefined
	if loadOp == vk.AttachmentLoadOpLoad {
		initialLayout = vk.ImageLayoutColorAttachmentOptimal
		depthInitial = vk.ImageLayoutDepthStencilAttachmentOptimal
	}

	attachments := []vk.AttachmentDescription{
		{
			Format:        offscreenColorFormat,
			Samples:       vk.SampleCount1Bit,
			LoadOp:        loadOp,
			StoreOp:       vk.AttachmentStoreOpStore,
			InitialLayout: initialLayout,
			FinalLayout:   vk.ImageLayoutColorAttachmentOptimal,
		},
		{
			Format:        offscreenDepthFormat,
			Samples:       vk.SampleCount1Bit,
			LoadOp:        loadOp,
			StoreOp:       vk.AttachmentStoreOpStore,
			InitialLayout: depthInitial,
			FinalLayout:   vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	var pass vk.RenderPass
	ret := vk.CreateRenderPass(d.handle, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses: []vk.SubpassDescription{{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: 1,
			PColorAttachments: []vk.AttachmentReference{{
				Attachment: 0,
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			}},
			PDepthStencilAttachment: &vk.AttachmentReference{
				Attachment: 1,
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			},
		}},
		DependencyCount: 1,
		PDependencies: []vk.SubpassDependency{{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask: 0,
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		}},
	}, nil, &pass)
	if err := result(ret, "creating render pass"); err != nil {
		return nil, err
	}
	return pass, nil
}

func (t *renderTarget) Extent() graphics.Extent2D { return t.extent }

func (t *renderTarget) destroyImages() {
	if t.depthView != vk.NullImageView {
		vk.DestroyImageView(t.dev.handle, t.depthView, nil)
		vk.FreeMemory(t.dev.handle, t.depthMemory, nil)
		vk.DestroyImage(t.dev.handle, t.depth, nil)
	}
	if t.colorView != vk.NullImageView {
		vk.DestroyImageView(t.dev.handle, t.colorView, nil)
		vk.FreeMemory(t.dev.handle, t.colorMemory, nil)
		vk.DestroyImage(t.dev.handle, t.color, nil)
	}
}

func (t *renderTarget) Destroy() {
	vk.DestroyFramebuffer(t.dev.handle, t.framebuffer, nil)
	vk.DestroyRenderPass(t.dev.handle, t.loadPass, nil)
	vk.DestroyRenderPass(t.dev.handle, t.clearPass, nil)
	t.destroyImages()
}
