package graphics

// UIPass hands the frame to the overlay collaborator, which records its own
// draw commands directly onto the swapchain image.
type UIPass struct {
	basePass
}

func NewUIPass() *UIPass {
	return &UIPass{basePass: basePass{name: "UI"}}
}

func (p *UIPass) Compile(*PassResources) error { return nil }

func (p *UIPass) Execute(fi *FrameInfo) {
	if fi.UI == nil {
		return
	}
	fi.UI.Record(fi)
}
