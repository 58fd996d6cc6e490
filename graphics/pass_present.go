package graphics

// PresentPass copies the final composited image into the swapchain image
// acquired for this frame. It must run after every pass that writes the
// source target.
type PresentPass struct {
	basePass
	source func() RenderTarget
}

func NewPresentPass(source func() RenderTarget) *PresentPass {
	return &PresentPass{
		basePass: basePass{name: "Present"},
		source:   source,
	}
}

func (p *PresentPass) Compile(*PassResources) error { return nil }

func (p *PresentPass) Execute(fi *FrameInfo) {
	fi.Cmd.BlitToSwapchain(p.source())
}
