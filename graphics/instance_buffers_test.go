package graphics

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInstanceManager(t *testing.T, released *[]Destroyable) (*InstanceBufferManager, *fakeDevice) {
	device := newFakeDevice()
	release := func(d Destroyable) { *released = append(*released, d) }
	return NewInstanceBufferManager(device, 2, release, testLogger{t}), device
}

func TestInstanceBufferManager_RangesFollowBatches(t *testing.T) {
	var released []Destroyable
	m, _ := newTestInstanceManager(t, &released)

	sc := newFakeScene()
	sc.add(1, "cube", "stone", false)
	sc.add(2, "cube", "stone", true)
	sc.add(3, "cube", "stone", false)
	sc.add(4, "sphere", "metal", true)

	reg := NewDrawBatchRegistry()
	reg.SceneChanged(sc)
	require.NoError(t, m.SceneChanged(reg, newFakeMeshes()))

	draws := m.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, InstanceRange{First: 0, Count: 2}, draws[0].Static)
	assert.Equal(t, InstanceRange{First: 0, Count: 1}, draws[0].Dynamic)
	assert.Equal(t, InstanceRange{First: 2, Count: 0}, draws[1].Static)
	assert.Equal(t, InstanceRange{First: 1, Count: 1}, draws[1].Dynamic)

	// one indirect command per non-empty range: cube static, cube dynamic,
	// sphere dynamic
	assert.Equal(t, uint32(3), m.IndirectCount())
}

// decodeIndirect unpacks the five-word indexed-indirect commands the manager
// encoded into its buffer.
func decodeIndirect(t *testing.T, buf Buffer, count uint32) [][5]uint32 {
	t.Helper()
	data := buf.(*fakeBuffer).data
	require.GreaterOrEqual(t, uint32(len(data)), count*indirectStride)
	cmds := make([][5]uint32, count)
	for i := range cmds {
		off := uint32(i) * indirectStride
		for w := 0; w < 5; w++ {
			cmds[i][w] = binary.LittleEndian.Uint32(data[off+uint32(w)*4:])
		}
	}
	return cmds
}

func TestInstanceBufferManager_IndirectCoversDynamicRanges(t *testing.T) {
	var released []Destroyable
	m, _ := newTestInstanceManager(t, &released)

	sc := newFakeScene()
	sc.add(1, "cube", "stone", false)
	sc.add(2, "cube", "stone", true)
	sc.add(3, "sphere", "metal", true)

	reg := NewDrawBatchRegistry()
	reg.SceneChanged(sc)
	require.NoError(t, m.SceneChanged(reg, newFakeMeshes()))

	require.Equal(t, uint32(3), m.IndirectCount())
	cmds := decodeIndirect(t, m.IndirectBuffer(), m.IndirectCount())

	// Dynamic instance IDs sit after the static block, so the dynamic
	// commands' firstInstance values start at the static total.
	assert.Equal(t, [5]uint32{36, 1, 0, 0, 0}, cmds[0], "cube static")
	assert.Equal(t, [5]uint32{36, 1, 0, 0, 1}, cmds[1], "cube dynamic")
	assert.Equal(t, [5]uint32{36, 1, 0, 0, 2}, cmds[2], "sphere dynamic")
}

func TestInstanceBufferManager_RefreshDynamicWritesSlotBuffer(t *testing.T) {
	var released []Destroyable
	m, _ := newTestInstanceManager(t, &released)

	sc := newFakeScene()
	sc.add(1, "cube", "stone", true)
	reg := NewDrawBatchRegistry()
	reg.SceneChanged(sc)
	require.NoError(t, m.SceneChanged(reg, newFakeMeshes()))

	require.NoError(t, m.RefreshDynamic(reg, 0))
	require.NoError(t, m.RefreshDynamic(reg, 1))
	require.NoError(t, m.RefreshDynamic(reg, 0))

	slot0 := m.DynamicBuffer(0).(*fakeBuffer)
	slot1 := m.DynamicBuffer(1).(*fakeBuffer)
	assert.Equal(t, 2, slot0.writes, "slot 0 written twice")
	assert.Equal(t, 1, slot1.writes, "slot 1 written once")
}

func TestInstanceBufferManager_GrowthDefersOldBuffer(t *testing.T) {
	var released []Destroyable
	m, _ := newTestInstanceManager(t, &released)

	sc := newFakeScene()
	sc.add(1, "cube", "stone", false)
	reg := NewDrawBatchRegistry()
	reg.SceneChanged(sc)
	require.NoError(t, m.SceneChanged(reg, newFakeMeshes()))
	small := m.StaticBuffer()

	// enough new instances to outgrow the original allocation
	for e := uint64(2); e <= 10; e++ {
		sc.add(e, "cube", "stone", false)
	}
	reg.SceneChanged(sc)
	require.NoError(t, m.SceneChanged(reg, newFakeMeshes()))

	assert.NotSame(t, small, m.StaticBuffer())
	require.Len(t, released, 1, "the outgrown static buffer goes through deferred release")
	assert.Contains(t, released, small)
	assert.False(t, small.(*fakeBuffer).destroyed, "release is deferred, not immediate")
}
