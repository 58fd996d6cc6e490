package vulkan

import (
	"errors"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/forge3d/forge/graphics"
)

type queryPool struct {
	dev      *Device
	handle   vk.QueryPool
	capacity uint32
}

func (d *Device) CreateQueryPool(capacity uint32) (graphics.QueryPool, error) {
	if d.timestampPeriod == 0 {
		return nil, errors.New("vulkan: device does not support timestamp queries")
	}
	var handle vk.QueryPool
	ret := vk.CreateQueryPool(d.handle, &vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeTimestamp,
		QueryCount: capacity,
	}, nil, &handle)
	if err := result(ret, "creating timestamp query pool"); err != nil {
		return nil, err
	}
	return &queryPool{dev: d, handle: handle, capacity: capacity}, nil
}

func (p *queryPool) Capacity() uint32 { return p.capacity }

func (p *queryPool) Results(first, count uint32) ([]uint64, bool) {
	if count == 0 {
		return nil, true
	}
	ticks := make([]uint64, count)
	ret := vk.GetQueryPoolResults(p.dev.handle, p.handle, first, count,
		uint(count*8), unsafe.Pointer(&ticks[0]), 8,
		vk.QueryResultFlags(vk.QueryResult64Bit))
	if ret == vk.NotReady {
		return nil, false
	}
	if err := result(ret, "reading query pool results"); err != nil {
		p.dev.log.Warnf("vulkan: %v", err)
		return nil, false
	}
	return ticks, true
}

func (p *queryPool) Destroy() {
	vk.DestroyQueryPool(p.dev.handle, p.handle, nil)
}
