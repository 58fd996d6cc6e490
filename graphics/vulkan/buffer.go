package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/forge3d/forge/graphics"
)

// buffer is a host-visible, persistently mapped GPU buffer. Everything the
// renderer uploads fits the host-visible path; staging copies are not needed
// for per-frame instance and uniform traffic.
type buffer struct {
	dev    *Device
	handle vk.Buffer
	memory vk.DeviceMemory
	mapped unsafe.Pointer
	size   uint64
	label  string
}

func usageFlags(usage graphics.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&graphics.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&graphics.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&graphics.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&graphics.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if usage&graphics.BufferUsageIndirect != 0 {
		flags |= vk.BufferUsageIndirectBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func (d *Device) CreateBuffer(label string, size uint64, usage graphics.BufferUsage) (graphics.Buffer, error) {
	var handle vk.Buffer
	ret := vk.CreateBuffer(d.handle, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &handle)
	if err := result(ret, "creating buffer "+label); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, handle, &reqs)
	reqs.Deref()

	memType, err := d.findMemoryType(reqs.MemoryTypeBits,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(d.handle, handle, nil)
		return nil, fmt.Errorf("allocating %s: %w", label, err)
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(d.handle, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &memory)
	if err := result(ret, "allocating memory for "+label); err != nil {
		vk.DestroyBuffer(d.handle, handle, nil)
		return nil, err
	}
	if err := result(vk.BindBufferMemory(d.handle, handle, memory, 0), "binding memory for "+label); err != nil {
		vk.FreeMemory(d.handle, memory, nil)
		vk.DestroyBuffer(d.handle, handle, nil)
		return nil, err
	}

	var mapped unsafe.Pointer
	ret = vk.MapMemory(d.handle, memory, 0, vk.DeviceSize(size), 0, &mapped)
	if err := result(ret, "mapping "+label); err != nil {
		vk.FreeMemory(d.handle, memory, nil)
		vk.DestroyBuffer(d.handle, handle, nil)
		return nil, err
	}

	return &buffer{dev: d, handle: handle, memory: memory, mapped: mapped, size: size, label: label}, nil
}

func (d *Device) WriteBuffer(buf graphics.Buffer, offset uint64, data []byte) error {
	b := buf.(*buffer)
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("vulkan: write of %d bytes at %d overflows %s (%d bytes)",
			len(data), offset, b.label, b.size)
	}
	dst := unsafe.Pointer(uintptr(b.mapped) + uintptr(offset))
	vk.Memcopy(dst, data)
	return nil
}

func (b *buffer) Size() uint64 { return b.size }

func (b *buffer) Destroy() {
	vk.UnmapMemory(b.dev.handle, b.memory)
	vk.FreeMemory(b.dev.handle, b.memory, nil)
	vk.DestroyBuffer(b.dev.handle, b.handle, nil)
}
