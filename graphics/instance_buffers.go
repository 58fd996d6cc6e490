package graphics

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const instanceStride = 64 // one column-major 4x4 float32 matrix

// drawIndexedIndirectCommand mirrors the GPU indirect-draw command layout.
const indirectStride = 20

// InstanceRange addresses a contiguous run of instances inside the static or
// dynamic instance buffer.
type InstanceRange struct {
	First uint32
	Count uint32
}

// BatchDraw is the GPU-facing view of one draw batch: which mesh and material
// to bind plus where the batch's instances live in the instance buffers.
type BatchDraw struct {
	Mesh     MeshID
	Material MaterialID
	Static   InstanceRange
	Dynamic  InstanceRange
}

// InstanceBufferManager owns the GPU instance data derived from the draw
// batch registry. Static instances upload once per structural scene change;
// dynamic instances re-upload every frame into a per-slot buffer so the CPU
// never writes memory an in-flight frame may still read. Indirect draw
// commands are rebuilt alongside the static data for the GPU-driven path.
type InstanceBufferManager struct {
	device  Device
	log     Logger
	release func(Destroyable)

	staticBuf   Buffer
	dynamicBufs []Buffer
	indirectBuf Buffer

	draws        []BatchDraw
	indirectsLen uint32
	scratch      []byte
}

// NewInstanceBufferManager creates the manager with one dynamic buffer slot
// per frame in flight. release receives buffers replaced during growth so
// their destruction can be deferred to a safe frame.
func NewInstanceBufferManager(device Device, framesInFlight int, release func(Destroyable), log Logger) *InstanceBufferManager {
	return &InstanceBufferManager{
		device:      device,
		log:         log,
		release:     release,
		dynamicBufs: make([]Buffer, framesInFlight),
	}
}

// SceneChanged re-derives the per-batch instance ranges from the registry,
// uploads the static instance data, and rebuilds the indirect command buffer.
func (m *InstanceBufferManager) SceneChanged(reg *DrawBatchRegistry, meshes MeshSource) error {
	m.draws = m.draws[:0]

	staticData := m.scratchFor(reg.StaticInstanceCount() * instanceStride)
	var staticCursor uint32
	for _, b := range reg.Batches() {
		draw := BatchDraw{Mesh: b.Mesh, Material: b.Material}
		draw.Static.First = staticCursor
		for _, inst := range b.Instances {
			if inst.Dynamic {
				draw.Dynamic.Count++
				continue
			}
			packMat4(staticData[staticCursor*instanceStride:], inst.Transform)
			staticCursor++
		}
		draw.Static.Count = staticCursor - draw.Static.First
		m.draws = append(m.draws, draw)
	}
	// Dynamic ranges are assigned in batch order so the per-frame refresh
	// can pack without revisiting membership.
	var dynCursor uint32
	for i := range m.draws {
		m.draws[i].Dynamic.First = dynCursor
		dynCursor += m.draws[i].Dynamic.Count
	}

	// Both instance buffers keep at least one slot of capacity so descriptor
	// bindings always have a buffer to reference, whatever the scene mix.
	staticSize := uint64(max(staticCursor, 1)) * instanceStride
	if err := m.ensureCapacity("instances.static", &m.staticBuf, staticSize, BufferUsageVertex|BufferUsageStorage); err != nil {
		return err
	}
	if len(staticData) > 0 {
		if err := m.device.WriteBuffer(m.staticBuf, 0, staticData); err != nil {
			return err
		}
	}
	dynSize := uint64(max(dynCursor, 1)) * instanceStride
	for i := range m.dynamicBufs {
		if err := m.ensureCapacity("instances.dynamic", &m.dynamicBufs[i], dynSize, BufferUsageVertex|BufferUsageStorage); err != nil {
			return err
		}
	}
	return m.buildIndirect(meshes)
}

// RefreshDynamic packs the current dynamic transforms into the given frame
// slot's buffer. Batch membership and instance order are unchanged; only
// transform payloads move.
func (m *InstanceBufferManager) RefreshDynamic(reg *DrawBatchRegistry, frameSlot int) error {
	total := reg.DynamicInstanceCount()
	if total == 0 {
		return nil
	}
	data := m.scratchFor(total * instanceStride)
	batches := reg.Batches()
	for bi, draw := range m.draws {
		if draw.Dynamic.Count == 0 {
			continue
		}
		cursor := draw.Dynamic.First
		for _, inst := range batches[bi].Instances {
			if !inst.Dynamic {
				continue
			}
			packMat4(data[cursor*instanceStride:], inst.Transform)
			cursor++
		}
	}
	name := "instances.dynamic"
	return m.ensureBuffer(name, &m.dynamicBufs[frameSlot], data, BufferUsageVertex|BufferUsageStorage)
}

// buildIndirect encodes one command per non-empty batch range. Instance IDs
// form a single space with static instances first, so a dynamic command's
// firstInstance carries the static total as its offset.
func (m *InstanceBufferManager) buildIndirect(meshes MeshSource) error {
	var staticTotal uint32
	for _, draw := range m.draws {
		staticTotal += draw.Static.Count
	}

	data := m.scratchFor(2 * len(m.draws) * indirectStride)
	var count uint32
	le := binary.LittleEndian
	emit := func(indexCount, instanceCount, firstInstance uint32) {
		off := count * indirectStride
		le.PutUint32(data[off+0:], indexCount)
		le.PutUint32(data[off+4:], instanceCount)
		le.PutUint32(data[off+8:], 0)  // firstIndex
		le.PutUint32(data[off+12:], 0) // vertexOffset
		le.PutUint32(data[off+16:], firstInstance)
		count++
	}
	for _, draw := range m.draws {
		if draw.Static.Count == 0 && draw.Dynamic.Count == 0 {
			continue
		}
		_, _, indexCount, ok := meshes.MeshData(draw.Mesh)
		if !ok {
			m.log.Warnf("instance buffers: mesh %s not resident, skipping indirect command", draw.Mesh)
			continue
		}
		if draw.Static.Count > 0 {
			emit(indexCount, draw.Static.Count, draw.Static.First)
		}
		if draw.Dynamic.Count > 0 {
			emit(indexCount, draw.Dynamic.Count, staticTotal+draw.Dynamic.First)
		}
	}
	m.indirectsLen = count
	return m.ensureBuffer("instances.indirect", &m.indirectBuf, data[:count*indirectStride], BufferUsageIndirect|BufferUsageStorage)
}

// ensureCapacity makes *buf hold at least needed bytes, growing with headroom
// when too small. Replaced buffers go through the deferred-release hook.
func (m *InstanceBufferManager) ensureCapacity(name string, buf *Buffer, needed uint64, usage BufferUsage) error {
	current := *buf
	if current != nil && current.Size() >= needed {
		return nil
	}
	if current != nil {
		m.release(current)
	}
	grown := needed + needed/2
	newBuf, err := m.device.CreateBuffer(name, grown, usage)
	if err != nil {
		return err
	}
	*buf = newBuf
	return nil
}

// ensureBuffer writes data into *buf, growing it first when too small.
func (m *InstanceBufferManager) ensureBuffer(name string, buf *Buffer, data []byte, usage BufferUsage) error {
	needed := uint64(len(data))
	if needed == 0 {
		return nil
	}
	if err := m.ensureCapacity(name, buf, needed, usage); err != nil {
		return err
	}
	return m.device.WriteBuffer(*buf, 0, data)
}

func (m *InstanceBufferManager) Draws() []BatchDraw     { return m.draws }
func (m *InstanceBufferManager) StaticBuffer() Buffer   { return m.staticBuf }
func (m *InstanceBufferManager) IndirectBuffer() Buffer { return m.indirectBuf }
func (m *InstanceBufferManager) IndirectCount() uint32  { return m.indirectsLen }
func (m *InstanceBufferManager) DynamicBuffer(frameSlot int) Buffer {
	return m.dynamicBufs[frameSlot]
}

func (m *InstanceBufferManager) Destroy() {
	if m.staticBuf != nil {
		m.staticBuf.Destroy()
		m.staticBuf = nil
	}
	if m.indirectBuf != nil {
		m.indirectBuf.Destroy()
		m.indirectBuf = nil
	}
	for i, b := range m.dynamicBufs {
		if b != nil {
			b.Destroy()
			m.dynamicBufs[i] = nil
		}
	}
}

func (m *InstanceBufferManager) scratchFor(size int) []byte {
	if cap(m.scratch) < size {
		m.scratch = make([]byte, size+size/2)
	}
	return m.scratch[:size]
}

func packMat4(dst []byte, mat mgl32.Mat4) {
	le := binary.LittleEndian
	for i := 0; i < 16; i++ {
		le.PutUint32(dst[i*4:], math.Float32bits(mat[i]))
	}
}
