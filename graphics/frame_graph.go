package graphics

import "fmt"

type graphState int

const (
	graphUnconfigured graphState = iota
	graphBuilt
	graphCompiled
)

// FrameGraph holds an ordered pipeline of passes. Execution order is exactly
// registration order; dependency ordering is the integrator's responsibility.
// Lifecycle: Add* while unconfigured or built, Compile exactly once, then
// Execute every frame. Sequencing misuse panics.
type FrameGraph struct {
	device  Device
	meshes  MeshSource
	shaders ShaderCatalog
	log     Logger

	passes []Pass
	extent Extent2D
	state  graphState
}

func NewFrameGraph(device Device, meshes MeshSource, shaders ShaderCatalog, extent Extent2D, log Logger) *FrameGraph {
	return &FrameGraph{
		device:  device,
		meshes:  meshes,
		shaders: shaders,
		log:     log,
		extent:  extent,
	}
}

// Add appends a pass. Valid only before Compile.
func (g *FrameGraph) Add(p Pass) *PassBuilder {
	if g.state == graphCompiled {
		panic("frame graph: Add after Compile")
	}
	g.passes = append(g.passes, p)
	g.state = graphBuilt
	return &PassBuilder{graph: g, pass: p}
}

// Compile finalizes per-pass GPU resources against the current swap extent.
// Must run exactly once, after all Add calls.
func (g *FrameGraph) Compile() {
	if g.state == graphCompiled {
		panic("frame graph: Compile called twice")
	}
	res := g.resources()
	for _, p := range g.passes {
		if err := p.Compile(res); err != nil {
			panic(fmt.Sprintf("frame graph: compiling pass %s: %v", p.Name(), err))
		}
		g.log.Debugf("frame graph: compiled pass %s", p.Name())
	}
	g.state = graphCompiled
}

// Execute runs every pass in registration order against the shared frame
// descriptor. Valid only after Compile.
func (g *FrameGraph) Execute(fi *FrameInfo) {
	if g.state != graphCompiled {
		panic("frame graph: Execute before Compile")
	}
	for _, p := range g.passes {
		p.Execute(fi)
	}
}

// SceneInitialized broadcasts a newly loaded scene to every pass.
func (g *FrameGraph) SceneInitialized(sc Scene) {
	for _, p := range g.passes {
		p.SceneInitialized(sc)
	}
}

// SwapchainResized rebroadcasts the new extent so passes holding
// extent-dependent targets can rebuild them.
func (g *FrameGraph) SwapchainResized(extent Extent2D) {
	g.extent = extent
	for _, p := range g.passes {
		p.SwapchainResized(extent)
	}
}

// PassNames reports the registered pass names in execution order.
func (g *FrameGraph) PassNames() []string {
	names := make([]string, len(g.passes))
	for i, p := range g.passes {
		names[i] = p.Name()
	}
	return names
}

func (g *FrameGraph) Compiled() bool { return g.state == graphCompiled }

func (g *FrameGraph) Destroy() {
	for _, p := range g.passes {
		p.Destroy()
	}
	g.passes = nil
	g.state = graphUnconfigured
}

func (g *FrameGraph) resources() *PassResources {
	return &PassResources{
		Device:  g.device,
		Extent:  g.extent,
		Meshes:  g.meshes,
		Shaders: g.shaders,
		Log:     g.log,
	}
}
