package graphics

const cullingWorkgroupSize = 256

// CullingPass runs the GPU frustum-culling compute stage. It rewrites the
// per-batch instance counts in the indirect command buffer, so it must run
// before GPUDrivenGeometryPass consumes them.
type CullingPass struct {
	basePass
	pipeline Pipeline
}

func NewCullingPass() *CullingPass {
	return &CullingPass{basePass: basePass{name: "Culling"}}
}

func (p *CullingPass) Compile(res *PassResources) error {
	ss, err := loadShaders(res, "culling")
	if err != nil {
		return err
	}
	pipe, err := res.Device.CreateComputePipeline(PipelineDesc{
		Label:    "culling",
		Shaders:  ss,
		Bindings: []BindingKind{BindingStorage, BindingStorage, BindingStorage},
	})
	if err != nil {
		return err
	}
	p.pipeline = pipe
	return nil
}

func (p *CullingPass) Execute(fi *FrameInfo) {
	count := uint32(fi.Batches.InstanceCount())
	if count == 0 {
		return
	}
	fi.Timers.BeginScope(fi.Cmd, "Culling")
	fi.Cmd.BindPipeline(p.pipeline)
	fi.Cmd.BindBuffers(
		fi.Instances.StaticBuffer(),
		fi.Instances.DynamicBuffer(fi.FrameIndex),
		fi.Instances.IndirectBuffer(),
	)
	groups := (count + cullingWorkgroupSize - 1) / cullingWorkgroupSize
	fi.Cmd.Dispatch(groups, 1, 1)
	fi.Timers.EndScope(fi.Cmd, "Culling")
}

func (p *CullingPass) Destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy()
		p.pipeline = nil
	}
}
