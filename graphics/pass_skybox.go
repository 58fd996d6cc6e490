package graphics

// SkyBoxPass fills the background of the scene-color target after opaque
// geometry, relying on depth testing to only touch uncovered pixels.
type SkyBoxPass struct {
	basePass
	target   func() RenderTarget
	pipeline Pipeline
}

func NewSkyBoxPass(target func() RenderTarget) *SkyBoxPass {
	return &SkyBoxPass{
		basePass: basePass{name: "SkyBox"},
		target:   target,
	}
}

func (p *SkyBoxPass) Compile(res *PassResources) error {
	ss, err := loadShaders(res, "skybox")
	if err != nil {
		return err
	}
	pipe, err := res.Device.CreateGraphicsPipeline(PipelineDesc{
		Label:     "skybox",
		Shaders:   ss,
		DepthTest: true,
	})
	if err != nil {
		return err
	}
	p.pipeline = pipe
	return nil
}

func (p *SkyBoxPass) Execute(fi *FrameInfo) {
	fi.Cmd.BeginRendering(p.target())
	fi.Cmd.BindPipeline(p.pipeline)
	fi.Cmd.Draw(36, 1, 0, 0)
	fi.Cmd.EndRendering()
}

func (p *SkyBoxPass) Destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy()
		p.pipeline = nil
	}
}
