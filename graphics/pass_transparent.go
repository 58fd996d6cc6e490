package graphics

// TransparentPass renders alpha-blended geometry over the lit scene after
// all opaque work. Concrete traversal lives in the attached render systems.
type TransparentPass struct {
	basePass
	target func() RenderTarget
}

func NewTransparentPass(target func() RenderTarget) *TransparentPass {
	return &TransparentPass{
		basePass: basePass{name: "Transparent"},
		target:   target,
	}
}

func (p *TransparentPass) Compile(res *PassResources) error {
	return p.compileSystems(res)
}

func (p *TransparentPass) Execute(fi *FrameInfo) {
	fi.Cmd.BeginRendering(p.target())
	p.recordSystems(fi)
	fi.Cmd.EndRendering()
}

func (p *TransparentPass) Destroy() {
	p.destroySystems()
}

// PointLightRenderSystem draws a blended billboard per scene point light,
// mainly as a visual debugging aid for light placement.
type PointLightRenderSystem struct {
	pipeline Pipeline
}

func NewPointLightRenderSystem() *PointLightRenderSystem {
	return &PointLightRenderSystem{}
}

func (s *PointLightRenderSystem) Name() string { return "PointLight" }

func (s *PointLightRenderSystem) Compile(res *PassResources) error {
	ss, err := loadShaders(res, "point_light")
	if err != nil {
		return err
	}
	pipe, err := res.Device.CreateGraphicsPipeline(PipelineDesc{
		Label:      "point_light",
		Shaders:    ss,
		DepthTest:  true,
		AlphaBlend: true,
	})
	if err != nil {
		return err
	}
	s.pipeline = pipe
	return nil
}

func (s *PointLightRenderSystem) Record(fi *FrameInfo) {
	lights := fi.Scene.Lighting().PointLights
	if len(lights) == 0 {
		return
	}
	fi.Cmd.BindPipeline(s.pipeline)
	fi.Cmd.Draw(6, uint32(len(lights)), 0, 0)
}

func (s *PointLightRenderSystem) Destroy() {
	if s.pipeline != nil {
		s.pipeline.Destroy()
		s.pipeline = nil
	}
}
