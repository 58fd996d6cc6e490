// Package vulkan is the production GPU backend behind the graphics.Device
// and graphics.Swapchain contracts, built on the Vulkan C bindings.
package vulkan

import (
	"errors"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/forge3d/forge/graphics"
)

// Device wraps the Vulkan instance, physical and logical device plus the
// single graphics/present queue. It implements graphics.Device.
type Device struct {
	instance    vk.Instance
	gpu         vk.PhysicalDevice
	handle      vk.Device
	queue       vk.Queue
	queueFamily uint32
	cmdPool     vk.CommandPool

	memProps        vk.PhysicalDeviceMemoryProperties
	timestampPeriod float32

	// lazily created render pass graphics pipelines are built against
	compatPass vk.RenderPass
	// lazily created pool behind per-frame descriptor set allocation
	descPool vk.DescriptorPool

	// set by CreateBackend; command buffers blit into its current image
	swapchain *Swapchain

	log graphics.Logger
}

// CreateBackend initializes Vulkan against a GLFW window and returns the
// device and swapchain pair the renderer drives.
func CreateBackend(appName string, win *glfw.Window, log graphics.Logger) (*Device, *Swapchain, error) {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return nil, nil, fmt.Errorf("initializing vulkan loader: %w", err)
	}

	d := &Device{log: log}

	extensions := safeStrings(win.GetRequiredInstanceExtensions())
	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			PApplicationName:   safeString(appName),
			ApplicationVersion: vk.MakeVersion(0, 1, 0),
			PEngineName:        safeString("forge"),
			ApiVersion:         vk.MakeVersion(1, 1, 0),
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}, nil, &instance)
	if err := result(ret, "creating instance"); err != nil {
		return nil, nil, err
	}
	d.instance = instance
	vk.InitInstance(instance)

	if err := d.pickPhysicalDevice(); err != nil {
		return nil, nil, err
	}

	surfacePtr, err := win.CreateWindowSurface(instance, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating window surface: %w", err)
	}
	surface := vk.SurfaceFromPointer(surfacePtr)

	if err := d.createLogicalDevice(surface); err != nil {
		return nil, nil, err
	}

	w, h := win.GetFramebufferSize()
	swapchain, err := newSwapchain(d, surface, graphics.Extent2D{Width: uint32(w), Height: uint32(h)})
	if err != nil {
		return nil, nil, err
	}
	d.swapchain = swapchain

	log.Infof("vulkan: backend ready, timestamp period %.2f ns", d.timestampPeriod)
	return d, swapchain, nil
}

func (d *Device) pickPhysicalDevice() error {
	var gpuCount uint32
	if err := result(vk.EnumeratePhysicalDevices(d.instance, &gpuCount, nil), "enumerating GPUs"); err != nil {
		return err
	}
	if gpuCount == 0 {
		return errors.New("vulkan: no GPU devices found")
	}
	gpus := make([]vk.PhysicalDevice, gpuCount)
	if err := result(vk.EnumeratePhysicalDevices(d.instance, &gpuCount, gpus), "enumerating GPUs"); err != nil {
		return err
	}
	d.gpu = gpus[0]

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(d.gpu, &props)
	props.Deref()
	props.Limits.Deref()
	d.timestampPeriod = props.Limits.TimestampPeriod

	vk.GetPhysicalDeviceMemoryProperties(d.gpu, &d.memProps)
	d.memProps.Deref()
	return nil
}

func (d *Device) createLogicalDevice(surface vk.Surface) error {
	var queueCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(d.gpu, &queueCount, nil)
	families := make([]vk.QueueFamilyProperties, queueCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(d.gpu, &queueCount, families)

	found := false
	for i := uint32(0); i < queueCount; i++ {
		families[i].Deref()
		required := vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit)
		if families[i].QueueFlags&required != required {
			continue
		}
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(d.gpu, i, surface, &supportsPresent)
		if !supportsPresent.B() {
			continue
		}
		d.queueFamily = i
		if families[i].TimestampValidBits == 0 {
			d.timestampPeriod = 0
		}
		found = true
		break
	}
	if !found {
		return errors.New("vulkan: no queue family with graphics, compute and present support")
	}

	var device vk.Device
	ret := vk.CreateDevice(d.gpu, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.queueFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   1,
		PpEnabledExtensionNames: safeStrings([]string{"VK_KHR_swapchain"}),
	}, nil, &device)
	if err := result(ret, "creating logical device"); err != nil {
		return err
	}
	d.handle = device

	var queue vk.Queue
	vk.GetDeviceQueue(d.handle, d.queueFamily, 0, &queue)
	d.queue = queue

	var pool vk.CommandPool
	ret = vk.CreateCommandPool(d.handle, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if err := result(ret, "creating command pool"); err != nil {
		return err
	}
	d.cmdPool = pool
	return nil
}

// Command buffers re-record every frame, so sets churn; the pool carries the
// free bit and generous slack rather than exact sizing.
const maxDescriptorSets = 256

func (d *Device) descriptorPool() (vk.DescriptorPool, error) {
	if d.descPool != vk.NullDescriptorPool {
		return d.descPool, nil
	}
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(d.handle, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxDescriptorSets,
		PoolSizeCount: 2,
		PPoolSizes: []vk.DescriptorPoolSize{
			{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: maxDescriptorSets},
			{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: maxDescriptorSets},
		},
	}, nil, &pool)
	if err := result(ret, "creating descriptor pool"); err != nil {
		return vk.NullDescriptorPool, err
	}
	d.descPool = pool
	return pool, nil
}

// TimestampPeriod implements graphics.Device.
func (d *Device) TimestampPeriod() float32 { return d.timestampPeriod }

// WaitIdle implements graphics.Device.
func (d *Device) WaitIdle() error {
	return result(vk.DeviceWaitIdle(d.handle), "device wait idle")
}

// Destroy tears down the device. The swapchain must be destroyed first.
func (d *Device) Destroy() {
	if d.handle != nil {
		vk.DeviceWaitIdle(d.handle)
		if d.compatPass != vk.NullRenderPass {
			vk.DestroyRenderPass(d.handle, d.compatPass, nil)
		}
		if d.descPool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(d.handle, d.descPool, nil)
		}
		vk.DestroyCommandPool(d.handle, d.cmdPool, nil)
		vk.DestroyDevice(d.handle, nil)
		d.handle = nil
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

func (d *Device) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		d.memProps.MemoryTypes[i].Deref()
		flags := d.memProps.MemoryTypes[i].PropertyFlags
		if flags&vk.MemoryPropertyFlags(props) == vk.MemoryPropertyFlags(props) {
			return i, nil
		}
	}
	return 0, errors.New("vulkan: no suitable memory type")
}

func result(ret vk.Result, what string) error {
	if ret == vk.Success {
		return nil
	}
	return fmt.Errorf("vulkan: %s: %s", what, vk.Error(ret))
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}
