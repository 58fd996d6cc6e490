package graphics

import (
	"errors"
	"fmt"
	"time"
)

// RenderMode selects the geometry submission strategy at graph construction
// time. The two strategies need different pipelines and are mutually
// exclusive; switching modes requires rebuilding the frame graph.
type RenderMode int

const (
	RenderModeCPUDriven RenderMode = iota
	RenderModeGPUDriven
)

func (m RenderMode) String() string {
	switch m {
	case RenderModeCPUDriven:
		return "cpu-driven"
	case RenderModeGPUDriven:
		return "gpu-driven"
	default:
		return fmt.Sprintf("RenderMode(%d)", int(m))
	}
}

// Effectively unbounded; a fence that never signals is a device hang.
const fenceTimeout = time.Duration(1<<63 - 1)

// Destroyable is anything whose release can be deferred to a safe frame.
type Destroyable interface {
	Destroy()
}

// frameContext is one slot of the frame-in-flight ring.
type frameContext struct {
	fence          Fence
	imageAvailable Semaphore
	cmd            CommandBuffer
}

// RendererConfig wires the renderer's collaborators.
type RendererConfig struct {
	Device         Device
	Swapchain      Swapchain
	Window         Window
	Meshes         MeshSource
	Shaders        ShaderCatalog
	UI             UI
	Log            Logger
	FramesInFlight int
	Mode           RenderMode
}

// Renderer owns the frame-in-flight ring and drives the top-level frame
// lifecycle: wait for the slot fence, acquire an image, record through the
// frame graph, submit, present, advance. A single goroutine must drive it.
type Renderer struct {
	device    Device
	swapchain Swapchain
	window    Window
	meshes    MeshSource
	shaders   ShaderCatalog
	ui        UI
	log       Logger
	mode      RenderMode

	framesInFlight int
	contexts       []frameContext
	frameIndex     int
	inFrame        bool

	graph     *FrameGraph
	registry  *DrawBatchRegistry
	instances *InstanceBufferManager
	timers    *GPUTimerManager
	prof      *Profiler

	// One pending-destruction queue per frame slot. A resource enqueued
	// while slot k is current is destroyed only when slot k comes around
	// again, after its fence wait proves the GPU is done with it.
	deletionQueues [][]Destroyable

	lastFrame  time.Time
	frameCount uint64
}

// NewRenderer builds the frame ring and supporting managers. Any fence,
// semaphore or command-buffer creation failure is fatal.
func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.FramesInFlight < 1 {
		cfg.FramesInFlight = 2
	}
	r := &Renderer{
		device:         cfg.Device,
		swapchain:      cfg.Swapchain,
		window:         cfg.Window,
		meshes:         cfg.Meshes,
		shaders:        cfg.Shaders,
		ui:             cfg.UI,
		log:            cfg.Log,
		mode:           cfg.Mode,
		framesInFlight: cfg.FramesInFlight,
		contexts:       make([]frameContext, cfg.FramesInFlight),
		registry:       NewDrawBatchRegistry(),
		prof:           NewProfiler(),
		deletionQueues: make([][]Destroyable, cfg.FramesInFlight),
	}
	for i := range r.contexts {
		fence, err := cfg.Device.CreateFence(true)
		if err != nil {
			panic(fmt.Sprintf("renderer: fence creation for slot %d: %v", i, err))
		}
		sem, err := cfg.Device.CreateSemaphore()
		if err != nil {
			panic(fmt.Sprintf("renderer: semaphore creation for slot %d: %v", i, err))
		}
		cmd, err := cfg.Device.AllocateCommandBuffer()
		if err != nil {
			panic(fmt.Sprintf("renderer: command buffer allocation for slot %d: %v", i, err))
		}
		r.contexts[i] = frameContext{fence: fence, imageAvailable: sem, cmd: cmd}
	}
	r.timers = NewGPUTimerManager(cfg.Device, cfg.FramesInFlight, cfg.Log)
	r.instances = NewInstanceBufferManager(cfg.Device, cfg.FramesInFlight, r.DeferDestroy, cfg.Log)
	r.log.Infof("renderer: %d frames in flight, %s geometry", cfg.FramesInFlight, cfg.Mode)
	return r
}

// SceneInitialized (re)builds the frame graph for the active render mode and
// lets every pass react to the newly loaded scene. Must run before the first
// RenderFrame and after every scene load.
func (r *Renderer) SceneInitialized(sc Scene) {
	if r.graph != nil {
		if err := r.device.WaitIdle(); err != nil {
			panic("renderer: wait idle before graph rebuild: " + err.Error())
		}
		r.graph.Destroy()
	}
	r.graph = r.assembleGraph()
	r.graph.Compile()
	r.graph.SceneInitialized(sc)
	r.SceneChanged(sc)
	r.log.Infof("renderer: frame graph compiled with passes %v", r.graph.PassNames())
}

// SceneChanged rebuilds the draw batches and their GPU mirrors after a
// structural scene change.
func (r *Renderer) SceneChanged(sc Scene) {
	r.registry.SceneChanged(sc)
	if err := r.instances.SceneChanged(r.registry, r.meshes); err != nil {
		panic("renderer: instance buffer rebuild: " + err.Error())
	}
	r.log.Debugf("renderer: scene changed, %d batches, %d instances (%d static, %d dynamic)",
		r.registry.BatchCount(), r.registry.InstanceCount(),
		r.registry.StaticInstanceCount(), r.registry.DynamicInstanceCount())
}

// RenderFrame runs one complete frame. ui overrides the configured overlay
// for this frame when non-nil. Not reentrant.
func (r *Renderer) RenderFrame(sc Scene, ui UI) {
	if r.graph == nil || !r.graph.Compiled() {
		panic("renderer: RenderFrame before SceneInitialized")
	}

	now := time.Now()
	var delta float32
	if !r.lastFrame.IsZero() {
		r.prof.EndScope("Frame Time")
		delta = float32(now.Sub(r.lastFrame).Seconds())
	}
	r.lastFrame = now
	r.prof.BeginScope("Frame Time")

	r.prof.BeginScope("CPU Render Frame")
	r.BeginFrame()

	if ui == nil {
		ui = r.ui
	}
	ctx := &r.contexts[r.frameIndex]
	fi := &FrameInfo{
		Scene:        sc,
		UI:           ui,
		Batches:      r.registry,
		Instances:    r.instances,
		Cmd:          ctx.cmd,
		FrameIndex:   r.frameIndex,
		SwapExtent:   r.swapchain.Extent(),
		AspectRatio:  r.swapchain.AspectRatio(),
		DeltaSeconds: delta,
		Timers:       r.timers,
		Prof:         r.prof,
	}

	r.timers.ResolveTimings(ctx.cmd, r.frameIndex)
	// Whole-frame GPU bracket; the per-pass scopes nest inside it.
	r.timers.BeginScope(ctx.cmd, "GPU Frame Time")

	if r.mode == RenderModeCPUDriven {
		r.prof.BeginScope("Instance Update")
		r.registry.RefreshDynamic(sc)
		if err := r.instances.RefreshDynamic(r.registry, r.frameIndex); err != nil {
			panic("renderer: dynamic instance upload: " + err.Error())
		}
		r.prof.EndScope("Instance Update")
	}

	r.graph.Execute(fi)
	r.timers.EndScope(ctx.cmd, "GPU Frame Time")
	r.EndFrame()
	r.prof.EndScope("CPU Render Frame")
	r.frameCount++
}

// BeginFrame waits for the current slot's fence, acquires the next swapchain
// image and opens the slot's command buffer. Panics when a frame is already
// in progress.
func (r *Renderer) BeginFrame() {
	if r.inFrame {
		panic("renderer: BeginFrame while a frame is in progress")
	}
	ctx := &r.contexts[r.frameIndex]

	r.prof.BeginScope("GPU Sync")
	if err := ctx.fence.Wait(fenceTimeout); err != nil {
		panic(fmt.Sprintf("renderer: slot %d fence wait: %v", r.frameIndex, err))
	}
	r.prof.EndScope("GPU Sync")

	if err := r.acquireImage(ctx); err != nil {
		panic("renderer: image acquisition: " + err.Error())
	}
	if err := ctx.fence.Reset(); err != nil {
		panic("renderer: fence reset: " + err.Error())
	}

	if err := ctx.cmd.Reset(); err != nil {
		panic("renderer: command buffer reset: " + err.Error())
	}
	if err := ctx.cmd.Begin(); err != nil {
		panic("renderer: command buffer begin: " + err.Error())
	}
	r.inFrame = true
}

// acquireImage retries exactly once after an out-of-date surface; any other
// failure propagates.
func (r *Renderer) acquireImage(ctx *frameContext) error {
	err := r.swapchain.AcquireNextImage(ctx.imageAvailable)
	if errors.Is(err, ErrSurfaceOutOfDate) {
		r.recreateSurface()
		err = r.swapchain.AcquireNextImage(ctx.imageAvailable)
	}
	if errors.Is(err, ErrSurfaceSuboptimal) {
		return nil
	}
	return err
}

// EndFrame closes recording, submits gated on image availability, presents,
// then advances the slot ring and flushes the incoming slot's deferred
// destruction queue.
func (r *Renderer) EndFrame() {
	if !r.inFrame {
		panic("renderer: EndFrame without BeginFrame")
	}
	ctx := &r.contexts[r.frameIndex]

	if err := ctx.cmd.End(); err != nil {
		panic("renderer: command buffer end: " + err.Error())
	}

	// The acquired swap image may still be in flight under an older frame
	// slot; wait for that user before resubmitting against the image.
	if err := r.swapchain.WaitForImageInFlight(ctx.fence); err != nil {
		panic("renderer: wait for image in flight: " + err.Error())
	}

	if err := r.swapchain.Submit(ctx.cmd, ctx.imageAvailable, ctx.fence); err != nil {
		panic("renderer: queue submit: " + err.Error())
	}

	err := r.swapchain.Present()
	stale := errors.Is(err, ErrSurfaceOutOfDate) || errors.Is(err, ErrSurfaceSuboptimal)
	if err != nil && !stale {
		panic("renderer: present: " + err.Error())
	}
	if stale || r.window.WasResized() {
		r.recreateSurface()
	}

	r.inFrame = false
	r.frameIndex = (r.frameIndex + 1) % r.framesInFlight
	r.flushDeletions(r.frameIndex)
}

// recreateSurface waits out a degenerate (e.g. minimized) drawable size,
// idles the device, resizes the presentation surface and rebroadcasts the
// new extent to the frame graph.
func (r *Renderer) recreateSurface() {
	extent := r.window.DrawableExtent()
	for extent.Width == 0 || extent.Height == 0 {
		r.window.WaitEvents()
		extent = r.window.DrawableExtent()
	}
	if err := r.device.WaitIdle(); err != nil {
		panic("renderer: wait idle before surface resize: " + err.Error())
	}
	if err := r.swapchain.Resize(extent); err != nil {
		panic("renderer: surface resize: " + err.Error())
	}
	if r.graph != nil {
		r.graph.SwapchainResized(extent)
	}
	r.window.ResetResizedFlag()
	r.log.Infof("renderer: surface recreated at %dx%d", extent.Width, extent.Height)
}

// DeferDestroy queues a GPU resource for destruction once the current frame
// slot cycles back around, which proves the GPU no longer references it.
func (r *Renderer) DeferDestroy(res Destroyable) {
	r.deletionQueues[r.frameIndex] = append(r.deletionQueues[r.frameIndex], res)
}

func (r *Renderer) flushDeletions(slot int) {
	queue := r.deletionQueues[slot]
	if len(queue) == 0 {
		return
	}
	for _, res := range queue {
		res.Destroy()
	}
	r.deletionQueues[slot] = queue[:0]
}

// WaitIdle blocks until all submitted GPU work completes and drains every
// deferred destruction queue.
func (r *Renderer) WaitIdle() {
	if err := r.device.WaitIdle(); err != nil {
		panic("renderer: wait idle: " + err.Error())
	}
	for slot := range r.deletionQueues {
		r.flushDeletions(slot)
	}
}

// CurrentFrameIndex is only meaningful while a frame is in progress.
func (r *Renderer) CurrentFrameIndex() int {
	if !r.inFrame {
		panic("renderer: CurrentFrameIndex outside a frame")
	}
	return r.frameIndex
}

func (r *Renderer) FrameCount() uint64           { return r.frameCount }
func (r *Renderer) Mode() RenderMode             { return r.mode }
func (r *Renderer) Registry() *DrawBatchRegistry { return r.registry }
func (r *Renderer) Timers() *GPUTimerManager     { return r.timers }
func (r *Renderer) Profiler() *Profiler          { return r.prof }
func (r *Renderer) Graph() *FrameGraph           { return r.graph }

// Destroy tears the renderer down. Callers must WaitIdle first.
func (r *Renderer) Destroy() {
	if r.graph != nil {
		r.graph.Destroy()
		r.graph = nil
	}
	r.instances.Destroy()
	r.timers.Destroy()
	for i := range r.contexts {
		r.contexts[i].fence.Destroy()
		r.contexts[i].imageAvailable.Destroy()
	}
	r.contexts = nil
}

// assembleGraph builds the mode-specific pass pipeline. The GPU-driven and
// CPU-driven geometry stages are disjoint by construction.
func (r *Renderer) assembleGraph() *FrameGraph {
	g := NewFrameGraph(r.device, r.meshes, r.shaders, r.swapchain.Extent(), r.log)

	var sceneColor func() RenderTarget
	switch r.mode {
	case RenderModeGPUDriven:
		g.Add(NewCullingPass())
		sceneUpdate := NewSceneUpdatePass(r.framesInFlight)
		g.Add(sceneUpdate)
		geometry := NewGPUDrivenGeometryPass(sceneUpdate.CameraBuffer)
		g.Add(geometry)
		sceneColor = geometry.Target
	default:
		geometry := NewGeometryPass()
		g.Add(geometry).AddRenderSystem(NewBindlessStaticMeshRenderSystem())
		sceneColor = geometry.Target
	}

	g.Add(NewSkyBoxPass(sceneColor))
	lighting := NewLightingPass(sceneColor, r.framesInFlight)
	g.Add(lighting)
	g.Add(NewPresentPass(lighting.Target))
	g.Add(NewUIPass())
	post := NewPostProcessingPass(lighting.Target)
	g.Add(post)
	g.Add(NewBloomPass(post.Target))
	g.Add(NewTransparentPass(lighting.Target)).AddRenderSystem(NewPointLightRenderSystem())
	return g
}
