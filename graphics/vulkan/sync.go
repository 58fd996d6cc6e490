package vulkan

import (
	"fmt"
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/forge3d/forge/graphics"
)

type fence struct {
	dev    *Device
	handle vk.Fence
}

func (d *Device) CreateFence(signaled bool) (graphics.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	ret := vk.CreateFence(d.handle, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &handle)
	if err := result(ret, "creating fence"); err != nil {
		return nil, err
	}
	return &fence{dev: d, handle: handle}, nil
}

func (f *fence) Wait(timeout time.Duration) error {
	ret := vk.WaitForFences(f.dev.handle, 1, []vk.Fence{f.handle}, vk.True, uint64(timeout.Nanoseconds()))
	if ret == vk.Timeout {
		return fmt.Errorf("vulkan: fence wait timed out after %s", timeout)
	}
	return result(ret, "waiting for fence")
}

func (f *fence) Reset() error {
	return result(vk.ResetFences(f.dev.handle, 1, []vk.Fence{f.handle}), "resetting fence")
}

func (f *fence) Signaled() bool {
	return vk.GetFenceStatus(f.dev.handle, f.handle) == vk.Success
}

func (f *fence) Destroy() {
	vk.DestroyFence(f.dev.handle, f.handle, nil)
}

type semaphore struct {
	dev    *Device
	handle vk.Semaphore
}

func (d *Device) CreateSemaphore() (graphics.Semaphore, error) {
	var handle vk.Semaphore
	ret := vk.CreateSemaphore(d.handle, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &handle)
	if err := result(ret, "creating semaphore"); err != nil {
		return nil, err
	}
	return &semaphore{dev: d, handle: handle}, nil
}

func (s *semaphore) Destroy() {
	vk.DestroySemaphore(s.dev.handle, s.handle, nil)
}
