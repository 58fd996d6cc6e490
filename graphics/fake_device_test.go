package graphics

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Debugf(format string, args ...any) { l.t.Logf("DEBUG "+format, args...) }
func (l testLogger) Infof(format string, args ...any)  { l.t.Logf("INFO  "+format, args...) }
func (l testLogger) Warnf(format string, args ...any)  { l.t.Logf("WARN  "+format, args...) }
func (l testLogger) Errorf(format string, args ...any) { l.t.Logf("ERROR "+format, args...) }

type fakeFence struct {
	signaled bool
	waits    int
	// set by a successful Wait, cleared by Submit; proves the CPU confirmed
	// GPU completion before touching the slot again
	waitedSinceSubmit bool
}

func (f *fakeFence) Wait(time.Duration) error {
	f.waits++
	if !f.signaled {
		return fmt.Errorf("fake fence: wait on unsignaled fence would hang")
	}
	f.waitedSinceSubmit = true
	return nil
}
func (f *fakeFence) Reset() error   { f.signaled = false; return nil }
func (f *fakeFence) Signaled() bool { return f.signaled }
func (f *fakeFence) Destroy()       {}

type fakeSemaphore struct{}

func (fakeSemaphore) Destroy() {}

type fakeBuffer struct {
	name      string
	size      uint64
	writes    int
	data      []byte
	destroyed bool
}

func (b *fakeBuffer) Size() uint64 { return b.size }
func (b *fakeBuffer) Destroy()     { b.destroyed = true }

type fakePipeline struct{ label string }

func (fakePipeline) Destroy() {}

type fakeTarget struct {
	extent    Extent2D
	destroyed bool
}

func (t *fakeTarget) Extent() Extent2D { return t.extent }
func (t *fakeTarget) Destroy()         { t.destroyed = true }

type fakeQueryPool struct {
	capacity uint32
	ticks    []uint64
	ready    bool
	resets   int
}

func (p *fakeQueryPool) Capacity() uint32 { return p.capacity }
func (p *fakeQueryPool) Results(first, count uint32) ([]uint64, bool) {
	if !p.ready {
		return nil, false
	}
	return p.ticks[first : first+count], true
}
func (p *fakeQueryPool) Destroy() {}

// fakeCmd records the call sequence so tests can assert ordering.
type fakeCmd struct {
	fence *fakeFence // the slot fence guarding this buffer, nil in pass tests
	ops   []string
}

func (c *fakeCmd) op(s string) { c.ops = append(c.ops, s) }

func (c *fakeCmd) Reset() error {
	if c.fence != nil && !c.fence.waitedSinceSubmit {
		panic("command buffer reset without waiting for slot fence")
	}
	c.op("reset")
	return nil
}
func (c *fakeCmd) Begin() error { c.op("begin"); return nil }
func (c *fakeCmd) End() error   { c.op("end"); return nil }

func (c *fakeCmd) BeginRendering(t RenderTarget) { c.op("beginRendering") }
func (c *fakeCmd) EndRendering()                 { c.op("endRendering") }
func (c *fakeCmd) BindPipeline(p Pipeline)       { c.op("bindPipeline " + p.(*fakePipeline).label) }
func (c *fakeCmd) BindVertexBuffer(Buffer)       { c.op("bindVertex") }
func (c *fakeCmd) BindIndexBuffer(Buffer)        { c.op("bindIndex") }
func (c *fakeCmd) BindBuffers(bufs ...Buffer)    { c.op(fmt.Sprintf("bindBuffers %d", len(bufs))) }
func (c *fakeCmd) Draw(v, i, fv, fi uint32) {
	c.op(fmt.Sprintf("draw %d x%d", v, i))
}
func (c *fakeCmd) DrawIndexed(ic, inst, fi uint32, vo int32, first uint32) {
	c.op(fmt.Sprintf("drawIndexed %d x%d @%d", ic, inst, first))
}
func (c *fakeCmd) DrawIndexedIndirect(buf Buffer, off uint64, count, stride uint32) {
	c.op(fmt.Sprintf("drawIndirect x%d", count))
}
func (c *fakeCmd) Dispatch(x, y, z uint32)      { c.op(fmt.Sprintf("dispatch %d,%d,%d", x, y, z)) }
func (c *fakeCmd) BlitToSwapchain(RenderTarget) { c.op("blit") }
func (c *fakeCmd) ResetQueryPool(pool QueryPool, first, count uint32) {
	pool.(*fakeQueryPool).resets++
	c.op("resetQueries")
}
func (c *fakeCmd) WriteTimestamp(pool QueryPool, query uint32) {
	c.op(fmt.Sprintf("timestamp %d", query))
}

type fakeDevice struct {
	timestampPeriod float32
	queryPools      []*fakeQueryPool
	buffers         []*fakeBuffer
	failQueryPool   bool
	waitIdles       int

	// Renderer setup creates a fence then a command buffer per slot, so the
	// most recent fence is the one guarding the next allocated buffer.
	lastFence *fakeFence
	cmds      []*fakeCmd
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{timestampPeriod: 1.0}
}

func (d *fakeDevice) CreateFence(signaled bool) (Fence, error) {
	f := &fakeFence{signaled: signaled}
	d.lastFence = f
	return f, nil
}
func (d *fakeDevice) CreateSemaphore() (Semaphore, error) { return fakeSemaphore{}, nil }
func (d *fakeDevice) AllocateCommandBuffer() (CommandBuffer, error) {
	c := &fakeCmd{fence: d.lastFence}
	d.cmds = append(d.cmds, c)
	return c, nil
}

func (d *fakeDevice) CreateBuffer(name string, size uint64, usage BufferUsage) (Buffer, error) {
	b := &fakeBuffer{name: name, size: size}
	d.buffers = append(d.buffers, b)
	return b, nil
}
func (d *fakeDevice) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b := buf.(*fakeBuffer)
	b.writes++
	b.data = append(b.data[:0], data...)
	return nil
}

func (d *fakeDevice) CreateGraphicsPipeline(desc PipelineDesc) (Pipeline, error) {
	return &fakePipeline{label: desc.Label}, nil
}
func (d *fakeDevice) CreateComputePipeline(desc PipelineDesc) (Pipeline, error) {
	return &fakePipeline{label: desc.Label}, nil
}
func (d *fakeDevice) CreateRenderTarget(extent Extent2D) (RenderTarget, error) {
	return &fakeTarget{extent: extent}, nil
}
func (d *fakeDevice) CreateQueryPool(capacity uint32) (QueryPool, error) {
	if d.failQueryPool {
		return nil, fmt.Errorf("fake device: query pools unsupported")
	}
	p := &fakeQueryPool{capacity: capacity}
	d.queryPools = append(d.queryPools, p)
	return p, nil
}
func (d *fakeDevice) TimestampPeriod() float32 { return d.timestampPeriod }
func (d *fakeDevice) WaitIdle() error          { d.waitIdles++; return nil }

// fakeSwapchain plays back scripted acquire/present results and models the
// image-in-flight handoff GPU-side: Submit marks the slot fence signaled
// immediately, as if the GPU finished at once.
type fakeSwapchain struct {
	extent        Extent2D
	acquireErrs   []error
	presentErrs   []error
	acquires      int
	presents      int
	submits       int
	resizes       []Extent2D
	imageInFlight *fakeFence
	waitsForImage int
}

func (s *fakeSwapchain) Extent() Extent2D     { return s.extent }
func (s *fakeSwapchain) AspectRatio() float32 { return s.extent.AspectRatio() }

func (s *fakeSwapchain) AcquireNextImage(Semaphore) error {
	idx := s.acquires
	s.acquires++
	if idx < len(s.acquireErrs) {
		return s.acquireErrs[idx]
	}
	return nil
}

func (s *fakeSwapchain) WaitForImageInFlight(fence Fence) error {
	s.waitsForImage++
	if s.imageInFlight != nil && !s.imageInFlight.signaled {
		return fmt.Errorf("fake swapchain: image still in flight")
	}
	s.imageInFlight = fence.(*fakeFence)
	return nil
}

func (s *fakeSwapchain) Submit(cmd CommandBuffer, imageAvailable Semaphore, fence Fence) error {
	s.submits++
	f := fence.(*fakeFence)
	f.waitedSinceSubmit = false
	f.signaled = true // the fake GPU completes work instantly
	return nil
}

func (s *fakeSwapchain) Present() error {
	idx := s.presents
	s.presents++
	if idx < len(s.presentErrs) {
		return s.presentErrs[idx]
	}
	return nil
}

func (s *fakeSwapchain) Resize(extent Extent2D) error {
	s.extent = extent
	s.resizes = append(s.resizes, extent)
	return nil
}
func (s *fakeSwapchain) Destroy() {}

// fakeWindow plays back scripted drawable extents; WaitEvents advances to
// the next one.
type fakeWindow struct {
	extents    []Extent2D
	cursor     int
	resized    bool
	waitEvents int
}

func (w *fakeWindow) DrawableExtent() Extent2D {
	if w.cursor >= len(w.extents) {
		return w.extents[len(w.extents)-1]
	}
	return w.extents[w.cursor]
}
func (w *fakeWindow) WasResized() bool  { return w.resized }
func (w *fakeWindow) ResetResizedFlag() { w.resized = false }
func (w *fakeWindow) WaitEvents() {
	w.waitEvents++
	if w.cursor < len(w.extents)-1 {
		w.cursor++
	}
}

type fakeShaders struct{}

func (fakeShaders) Shaders(name string) (ShaderSet, bool) {
	blob := []byte(name)
	return ShaderSet{Vertex: blob, Fragment: blob, Compute: blob}, true
}

type fakeMeshes struct {
	vertices *fakeBuffer
	indices  *fakeBuffer
}

func newFakeMeshes() *fakeMeshes {
	return &fakeMeshes{
		vertices: &fakeBuffer{name: "verts", size: 1024},
		indices:  &fakeBuffer{name: "idx", size: 1024},
	}
}

func (m *fakeMeshes) MeshData(MeshID) (Buffer, Buffer, uint32, bool) {
	return m.vertices, m.indices, 36, true
}

// fakeScene is a minimal Scene with mutable renderables.
type fakeScene struct {
	generation  uint64
	renderables []Renderable
	transforms  map[uint64]mgl32.Mat4
	lighting    LightingData
}

func newFakeScene() *fakeScene {
	return &fakeScene{transforms: make(map[uint64]mgl32.Mat4)}
}

func (s *fakeScene) add(entity uint64, mesh MeshID, material MaterialID, dynamic bool) {
	s.renderables = append(s.renderables, Renderable{
		Entity:    entity,
		Mesh:      mesh,
		Material:  material,
		Transform: mgl32.Ident4(),
		Dynamic:   dynamic,
	})
	s.transforms[entity] = mgl32.Ident4()
	s.generation++
}

func (s *fakeScene) Generation() uint64        { return s.generation }
func (s *fakeScene) Renderables() []Renderable { return s.renderables }
func (s *fakeScene) TransformOf(entity uint64) (mgl32.Mat4, bool) {
	m, ok := s.transforms[entity]
	return m, ok
}
func (s *fakeScene) Camera(aspect float32) CameraData {
	return CameraData{View: mgl32.Ident4(), Proj: mgl32.Perspective(1.0, aspect, 0.1, 100)}
}
func (s *fakeScene) Lighting() LightingData { return s.lighting }
