package graphics

// GeometryPass is the CPU-driven geometry stage. It renders every opaque
// batch into its offscreen scene-color target through the attached render
// systems, one draw call per batch segment.
type GeometryPass struct {
	basePass
	color targetHolder
}

func NewGeometryPass() *GeometryPass {
	return &GeometryPass{basePass: basePass{name: "Geometry"}}
}

func (p *GeometryPass) Compile(res *PassResources) error {
	if err := p.color.create(res.Device, res.Extent); err != nil {
		return err
	}
	return p.compileSystems(res)
}

func (p *GeometryPass) Execute(fi *FrameInfo) {
	fi.Timers.BeginScope(fi.Cmd, "Geometry")
	fi.Cmd.BeginRendering(p.color.target)
	p.recordSystems(fi)
	fi.Cmd.EndRendering()
	fi.Timers.EndScope(fi.Cmd, "Geometry")
}

func (p *GeometryPass) SwapchainResized(extent Extent2D) { p.color.resize(extent) }

// Target exposes the scene-color attachment to downstream passes.
func (p *GeometryPass) Target() RenderTarget { return p.color.target }

func (p *GeometryPass) Destroy() {
	p.destroySystems()
	p.color.destroy()
}

// GPUDrivenGeometryPass replaces the CPU-driven stage when culling and draw
// generation run on the GPU. It consumes the indirect command buffer the
// culling compute stage populated earlier in the same frame; the camera
// uniform comes from the scene update pass via the injected provider.
type GPUDrivenGeometryPass struct {
	basePass
	camera   func(frameSlot int) Buffer
	color    targetHolder
	pipeline Pipeline
}

func NewGPUDrivenGeometryPass(camera func(frameSlot int) Buffer) *GPUDrivenGeometryPass {
	return &GPUDrivenGeometryPass{
		basePass: basePass{name: "GPUDrivenGeometry"},
		camera:   camera,
	}
}

func (p *GPUDrivenGeometryPass) Compile(res *PassResources) error {
	if err := p.color.create(res.Device, res.Extent); err != nil {
		return err
	}
	ss, err := loadShaders(res, "static_mesh_indirect")
	if err != nil {
		return err
	}
	pipe, err := res.Device.CreateGraphicsPipeline(PipelineDesc{
		Label:     "static_mesh_indirect",
		Shaders:   ss,
		Bindings:  []BindingKind{BindingUniform, BindingStorage, BindingStorage},
		DepthTest: true,
	})
	if err != nil {
		return err
	}
	p.pipeline = pipe
	return nil
}

func (p *GPUDrivenGeometryPass) Execute(fi *FrameInfo) {
	fi.Timers.BeginScope(fi.Cmd, "GPU Driven Geometry")
	fi.Cmd.BeginRendering(p.color.target)
	if count := fi.Instances.IndirectCount(); count > 0 {
		fi.Cmd.BindPipeline(p.pipeline)
		fi.Cmd.BindBuffers(
			p.camera(fi.FrameIndex),
			fi.Instances.StaticBuffer(),
			fi.Instances.DynamicBuffer(fi.FrameIndex),
		)
		fi.Cmd.DrawIndexedIndirect(fi.Instances.IndirectBuffer(), 0, count, indirectStride)
	}
	fi.Cmd.EndRendering()
	fi.Timers.EndScope(fi.Cmd, "GPU Driven Geometry")
}

func (p *GPUDrivenGeometryPass) SwapchainResized(extent Extent2D) { p.color.resize(extent) }

func (p *GPUDrivenGeometryPass) Target() RenderTarget { return p.color.target }

func (p *GPUDrivenGeometryPass) Destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy()
		p.pipeline = nil
	}
	p.color.destroy()
}

// BindlessStaticMeshRenderSystem submits one indexed draw per batch segment,
// instanced over the static and dynamic instance buffers.
type BindlessStaticMeshRenderSystem struct {
	meshes   MeshSource
	pipeline Pipeline
	log      Logger
}

func NewBindlessStaticMeshRenderSystem() *BindlessStaticMeshRenderSystem {
	return &BindlessStaticMeshRenderSystem{}
}

func (s *BindlessStaticMeshRenderSystem) Name() string { return "BindlessStaticMesh" }

func (s *BindlessStaticMeshRenderSystem) Compile(res *PassResources) error {
	s.meshes = res.Meshes
	s.log = res.Log
	ss, err := loadShaders(res, "static_mesh")
	if err != nil {
		return err
	}
	pipe, err := res.Device.CreateGraphicsPipeline(PipelineDesc{
		Label:     "static_mesh",
		Shaders:   ss,
		Bindings:  []BindingKind{BindingStorage, BindingStorage},
		DepthTest: true,
	})
	if err != nil {
		return err
	}
	s.pipeline = pipe
	return nil
}

func (s *BindlessStaticMeshRenderSystem) Record(fi *FrameInfo) {
	draws := fi.Instances.Draws()
	if len(draws) == 0 {
		return
	}
	fi.Cmd.BindPipeline(s.pipeline)
	fi.Cmd.BindBuffers(fi.Instances.StaticBuffer(), fi.Instances.DynamicBuffer(fi.FrameIndex))
	for _, draw := range draws {
		vertices, indices, indexCount, ok := s.meshes.MeshData(draw.Mesh)
		if !ok {
			s.log.Warnf("geometry: mesh %s not resident, batch skipped", draw.Mesh)
			continue
		}
		fi.Cmd.BindVertexBuffer(vertices)
		fi.Cmd.BindIndexBuffer(indices)
		if draw.Static.Count > 0 {
			fi.Cmd.DrawIndexed(indexCount, draw.Static.Count, 0, 0, draw.Static.First)
		}
		if draw.Dynamic.Count > 0 {
			fi.Cmd.DrawIndexed(indexCount, draw.Dynamic.Count, 0, 0, draw.Dynamic.First)
		}
	}
}

func (s *BindlessStaticMeshRenderSystem) Destroy() {
	if s.pipeline != nil {
		s.pipeline.Destroy()
		s.pipeline = nil
	}
}
