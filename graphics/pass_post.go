package graphics

// PostProcessingPass applies tonemapping and color grading to the lit scene,
// writing into its own output target.
type PostProcessingPass struct {
	basePass
	input    func() RenderTarget
	out      targetHolder
	pipeline Pipeline
}

func NewPostProcessingPass(input func() RenderTarget) *PostProcessingPass {
	return &PostProcessingPass{
		basePass: basePass{name: "PostProcessing"},
		input:    input,
	}
}

func (p *PostProcessingPass) Compile(res *PassResources) error {
	if err := p.out.create(res.Device, res.Extent); err != nil {
		return err
	}
	ss, err := loadShaders(res, "tonemap")
	if err != nil {
		return err
	}
	pipe, err := res.Device.CreateGraphicsPipeline(PipelineDesc{Label: "tonemap", Shaders: ss})
	if err != nil {
		return err
	}
	p.pipeline = pipe
	return nil
}

func (p *PostProcessingPass) Execute(fi *FrameInfo) {
	fi.Cmd.BeginRendering(p.out.target)
	fi.Cmd.BindPipeline(p.pipeline)
	fi.Cmd.Draw(3, 1, 0, 0)
	fi.Cmd.EndRendering()
}

func (p *PostProcessingPass) SwapchainResized(extent Extent2D) { p.out.resize(extent) }

func (p *PostProcessingPass) Target() RenderTarget { return p.out.target }

func (p *PostProcessingPass) Destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy()
		p.pipeline = nil
	}
	p.out.destroy()
}

const bloomMipLevels = 4

// BloomPass extracts bright regions from its input and runs a down/upsample
// chain over progressively smaller targets before compositing back.
type BloomPass struct {
	basePass
	input  func() RenderTarget
	mips   []targetHolder
	down   Pipeline
	up     Pipeline
	extent Extent2D
}

func NewBloomPass(input func() RenderTarget) *BloomPass {
	return &BloomPass{
		basePass: basePass{name: "Bloom"},
		input:    input,
	}
}

func (p *BloomPass) Compile(res *PassResources) error {
	p.extent = res.Extent
	p.mips = make([]targetHolder, bloomMipLevels)
	for i := range p.mips {
		if err := p.mips[i].create(res.Device, mipExtent(res.Extent, i+1)); err != nil {
			return err
		}
	}
	downSS, err := loadShaders(res, "bloom_down")
	if err != nil {
		return err
	}
	p.down, err = res.Device.CreateGraphicsPipeline(PipelineDesc{Label: "bloom_down", Shaders: downSS})
	if err != nil {
		return err
	}
	upSS, err := loadShaders(res, "bloom_up")
	if err != nil {
		return err
	}
	p.up, err = res.Device.CreateGraphicsPipeline(PipelineDesc{
		Label:      "bloom_up",
		Shaders:    upSS,
		AlphaBlend: true,
	})
	return err
}

func (p *BloomPass) Execute(fi *FrameInfo) {
	for i := range p.mips {
		fi.Cmd.BeginRendering(p.mips[i].target)
		fi.Cmd.BindPipeline(p.down)
		fi.Cmd.Draw(3, 1, 0, 0)
		fi.Cmd.EndRendering()
	}
	for i := len(p.mips) - 2; i >= 0; i-- {
		fi.Cmd.BeginRendering(p.mips[i].target)
		fi.Cmd.BindPipeline(p.up)
		fi.Cmd.Draw(3, 1, 0, 0)
		fi.Cmd.EndRendering()
	}
}

func (p *BloomPass) SwapchainResized(extent Extent2D) {
	p.extent = extent
	for i := range p.mips {
		p.mips[i].resize(mipExtent(extent, i+1))
	}
}

func (p *BloomPass) Destroy() {
	if p.down != nil {
		p.down.Destroy()
		p.down = nil
	}
	if p.up != nil {
		p.up.Destroy()
		p.up = nil
	}
	for i := range p.mips {
		p.mips[i].destroy()
	}
}

func mipExtent(e Extent2D, level int) Extent2D {
	w := e.Width >> level
	h := e.Height >> level
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return Extent2D{Width: w, Height: h}
}
