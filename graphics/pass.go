package graphics

import "fmt"

// PassResources bundles everything a pass needs to build its GPU-side state
// during graph compilation and after a swapchain resize.
type PassResources struct {
	Device  Device
	Extent  Extent2D
	Meshes  MeshSource
	Shaders ShaderCatalog
	Log     Logger
}

// Pass is one named stage of the frame graph. Passes own their pass-local
// GPU resources (pipelines, render targets) but only hold references to the
// registry and scene through FrameInfo.
type Pass interface {
	Name() string
	// Compile finalizes pipelines and render targets against the current
	// swap extent. Runs exactly once, during FrameGraph.Compile.
	Compile(res *PassResources) error
	SceneInitialized(sc Scene)
	SwapchainResized(extent Extent2D)
	// Execute records this pass's GPU commands for the current frame.
	Execute(fi *FrameInfo)
	Destroy()
}

// RenderSystem is a strategy for traversing one subset of drawable entities
// within a geometry pass.
type RenderSystem interface {
	Name() string
	Compile(res *PassResources) error
	Record(fi *FrameInfo)
	Destroy()
}

// basePass carries the shared naming and render-system plumbing; concrete
// passes embed it and override what they need.
type basePass struct {
	name    string
	systems []RenderSystem
}

func (p *basePass) Name() string                      { return p.name }
func (p *basePass) SceneInitialized(Scene)            {}
func (p *basePass) SwapchainResized(Extent2D)         {}
func (p *basePass) Destroy()                          {}

func (p *basePass) addRenderSystem(rs RenderSystem) {
	p.systems = append(p.systems, rs)
}

func (p *basePass) compileSystems(res *PassResources) error {
	for _, rs := range p.systems {
		if err := rs.Compile(res); err != nil {
			return err
		}
	}
	return nil
}

func (p *basePass) recordSystems(fi *FrameInfo) {
	for _, rs := range p.systems {
		rs.Record(fi)
	}
}

func (p *basePass) destroySystems() {
	for _, rs := range p.systems {
		rs.Destroy()
	}
}

// targetHolder manages one pass-local offscreen color target across
// compile and resize.
type targetHolder struct {
	device Device
	target RenderTarget
}

func (h *targetHolder) create(device Device, extent Extent2D) error {
	h.device = device
	t, err := device.CreateRenderTarget(extent)
	if err != nil {
		return err
	}
	h.target = t
	return nil
}

func (h *targetHolder) resize(extent Extent2D) {
	if h.target == nil {
		return
	}
	h.target.Destroy()
	t, err := h.device.CreateRenderTarget(extent)
	if err != nil {
		panic("render target recreation failed: " + err.Error())
	}
	h.target = t
}

func (h *targetHolder) destroy() {
	if h.target != nil {
		h.target.Destroy()
		h.target = nil
	}
}

func loadShaders(res *PassResources, name string) (ShaderSet, error) {
	ss, ok := res.Shaders.Shaders(name)
	if !ok {
		return ShaderSet{}, fmt.Errorf("shader set %q not found", name)
	}
	return ss, nil
}

// PassBuilder is returned by FrameGraph.Add so render systems can be
// attached fluently before compilation.
type PassBuilder struct {
	graph *FrameGraph
	pass  Pass
}

// AddRenderSystem attaches a traversal strategy to the underlying pass.
// Panics when the pass does not accept render systems.
func (b *PassBuilder) AddRenderSystem(rs RenderSystem) *PassBuilder {
	type systemHost interface{ addRenderSystem(RenderSystem) }
	host, ok := b.pass.(systemHost)
	if !ok {
		panic("frame graph: pass " + b.pass.Name() + " does not accept render systems")
	}
	host.addRenderSystem(rs)
	return b
}
