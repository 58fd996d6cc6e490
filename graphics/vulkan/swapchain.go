package vulkan

import (
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/forge3d/forge/graphics"
)

// Swapchain implements graphics.Swapchain. It owns the surface, the
// presentable images and one present-ready semaphore per image.
type Swapchain struct {
	dev     *Device
	surface vk.Surface
	handle  vk.Swapchain
	format  vk.Format
	extent  graphics.Extent2D

	images       []vk.Image
	views        []vk.ImageView
	presentReady []vk.Semaphore

	// fence of the frame slot last submitted against each image
	imagesInFlight []graphics.Fence
	currentImage   uint32
}

func newSwapchain(dev *Device, surface vk.Surface, extent graphics.Extent2D) (*Swapchain, error) {
	s := &Swapchain{dev: dev, surface: surface}
	if err := s.create(extent); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) create(extent graphics.Extent2D) error {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(s.dev.gpu, s.surface, &caps)
	if err := result(ret, "querying surface capabilities"); err != nil {
		return err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	if caps.CurrentExtent.Width != vk.MaxUint32 {
		extent = graphics.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}
	} else {
		extent.Width = clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
		extent.Height = clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	}

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(s.dev.gpu, s.surface, &formatCount, nil)
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(s.dev.gpu, s.surface, &formatCount, formats)

	chosen := formats[0]
	chosen.Deref()
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm {
			chosen = formats[i]
			break
		}
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	var handle vk.Swapchain
	ret = vk.CreateSwapchain(s.dev.handle, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    imageCount,
		ImageFormat:      chosen.Format,
		ImageColorSpace:  chosen.ColorSpace,
		ImageExtent:      vk.Extent2D{Width: extent.Width, Height: extent.Height},
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(
			vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     s.handle,
	}, nil, &handle)
	if err := result(ret, "creating swapchain"); err != nil {
		return err
	}
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.dev.handle, s.handle, nil)
	}
	s.handle = handle
	s.format = chosen.Format
	s.extent = extent

	var count uint32
	vk.GetSwapchainImages(s.dev.handle, s.handle, &count, nil)
	s.images = make([]vk.Image, count)
	vk.GetSwapchainImages(s.dev.handle, s.handle, &count, s.images)

	s.views = make([]vk.ImageView, count)
	s.presentReady = make([]vk.Semaphore, count)
	for i := range s.images {
		var view vk.ImageView
		ret = vk.CreateImageView(s.dev.handle, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    s.images[i],
			ViewType: vk.ImageViewType2d,
			Format:   s.format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &view)
		if err := result(ret, "creating swapchain image view"); err != nil {
			return err
		}
		s.views[i] = view

		var sem vk.Semaphore
		ret = vk.CreateSemaphore(s.dev.handle, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &sem)
		if err := result(ret, "creating present semaphore"); err != nil {
			return err
		}
		s.presentReady[i] = sem
	}
	s.imagesInFlight = make([]graphics.Fence, count)
	return nil
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Swapchain) Extent() graphics.Extent2D { return s.extent }
func (s *Swapchain) AspectRatio() float32      { return s.extent.AspectRatio() }

func (s *Swapchain) AcquireNextImage(imageAvailable graphics.Semaphore) error {
	ret := vk.AcquireNextImage(s.dev.handle, s.handle, vk.MaxUint64,
		imageAvailable.(*semaphore).handle, vk.NullFence, &s.currentImage)
	switch ret {
	case vk.ErrorOutOfDate:
		return graphics.ErrSurfaceOutOfDate
	case vk.Suboptimal:
		return graphics.ErrSurfaceSuboptimal
	}
	return result(ret, "acquiring swapchain image")
}

func (s *Swapchain) WaitForImageInFlight(fence graphics.Fence) error {
	if prev := s.imagesInFlight[s.currentImage]; prev != nil && prev != fence {
		if err := prev.Wait(time.Duration(1<<63 - 1)); err != nil {
			return err
		}
	}
	s.imagesInFlight[s.currentImage] = fence
	return nil
}

func (s *Swapchain) Submit(cmd graphics.CommandBuffer, imageAvailable graphics.Semaphore, fence graphics.Fence) error {
	ret := vk.QueueSubmit(s.dev.queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{imageAvailable.(*semaphore).handle},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.(*commandBuffer).handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{s.presentReady[s.currentImage]},
	}}, fence.(*fence).handle)
	return result(ret, "submitting frame")
}

func (s *Swapchain) Present() error {
	ret := vk.QueuePresent(s.dev.queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{s.presentReady[s.currentImage]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.handle},
		PImageIndices:      []uint32{s.currentImage},
	})
	switch ret {
	case vk.ErrorOutOfDate:
		return graphics.ErrSurfaceOutOfDate
	case vk.Suboptimal:
		return graphics.ErrSurfaceSuboptimal
	}
	return result(ret, "presenting frame")
}

// Resize recreates the swapchain at the new extent. The caller idles the
// device first.
func (s *Swapchain) Resize(extent graphics.Extent2D) error {
	s.destroyImageState()
	return s.create(extent)
}

func (s *Swapchain) destroyImageState() {
	for _, view := range s.views {
		vk.DestroyImageView(s.dev.handle, view, nil)
	}
	for _, sem := range s.presentReady {
		vk.DestroySemaphore(s.dev.handle, sem, nil)
	}
	s.views = nil
	s.presentReady = nil
	s.imagesInFlight = nil
}

func (s *Swapchain) Destroy() {
	vk.DeviceWaitIdle(s.dev.handle)
	s.destroyImageState()
	if s.handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.dev.handle, s.handle, nil)
		s.handle = vk.NullSwapchain
	}
	vk.DestroySurface(s.dev.instance, s.surface, nil)
}
