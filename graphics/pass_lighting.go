package graphics

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	maxPointLights      = 16
	pointLightStride    = 32
	lightingUniformSize = 48 + maxPointLights*pointLightStride
)

// LightingPass shades the scene-color input into its own lit target with the
// scene's ambient, directional and point lights. Light data is re-uploaded
// every frame into a per-slot uniform buffer.
type LightingPass struct {
	basePass
	device         Device
	log            Logger
	input          func() RenderTarget
	lit            targetHolder
	pipeline       Pipeline
	framesInFlight int
	lightBufs      []Buffer
	scratch        [lightingUniformSize]byte
}

func NewLightingPass(input func() RenderTarget, framesInFlight int) *LightingPass {
	return &LightingPass{
		basePass:       basePass{name: "Lighting"},
		input:          input,
		framesInFlight: framesInFlight,
	}
}

func (p *LightingPass) Compile(res *PassResources) error {
	p.device = res.Device
	p.log = res.Log
	if err := p.lit.create(res.Device, res.Extent); err != nil {
		return err
	}
	ss, err := loadShaders(res, "lighting")
	if err != nil {
		return err
	}
	pipe, err := res.Device.CreateGraphicsPipeline(PipelineDesc{
		Label:    "lighting",
		Shaders:  ss,
		Bindings: []BindingKind{BindingUniform},
	})
	if err != nil {
		return err
	}
	p.pipeline = pipe
	p.lightBufs = make([]Buffer, p.framesInFlight)
	for i := range p.lightBufs {
		buf, err := res.Device.CreateBuffer(fmt.Sprintf("lighting.frame%d", i), lightingUniformSize, BufferUsageUniform)
		if err != nil {
			return err
		}
		p.lightBufs[i] = buf
	}
	return nil
}

func (p *LightingPass) Execute(fi *FrameInfo) {
	p.uploadLights(fi)

	fi.Timers.BeginScope(fi.Cmd, "Lighting")
	fi.Cmd.BeginRendering(p.lit.target)
	fi.Cmd.BindPipeline(p.pipeline)
	fi.Cmd.BindBuffers(p.lightBufs[fi.FrameIndex])
	fi.Cmd.Draw(3, 1, 0, 0)
	fi.Cmd.EndRendering()
	fi.Timers.EndScope(fi.Cmd, "Lighting")
}

// Input reports the scene-color attachment this pass shades from.
func (p *LightingPass) Input() RenderTarget { return p.input() }

func (p *LightingPass) uploadLights(fi *FrameInfo) {
	lighting := fi.Scene.Lighting()
	le := binary.LittleEndian
	buf := p.scratch[:]

	le.PutUint32(buf[0:], math.Float32bits(lighting.AmbientIntensity))
	putVec3(buf[16:], lighting.DirectionalDirection)
	le.PutUint32(buf[28:], math.Float32bits(lighting.DirectionalIntensity))

	lights := lighting.PointLights
	if len(lights) > maxPointLights {
		p.log.Warnf("lighting: %d point lights exceeds limit %d, truncating", len(lights), maxPointLights)
		lights = lights[:maxPointLights]
	}
	le.PutUint32(buf[32:], uint32(len(lights)))
	for i, l := range lights {
		off := 48 + i*pointLightStride
		putVec3(buf[off:], l.Position)
		le.PutUint32(buf[off+12:], math.Float32bits(l.Range))
		putVec3(buf[off+16:], l.Color)
		le.PutUint32(buf[off+28:], math.Float32bits(l.Intensity))
	}
	if err := p.device.WriteBuffer(p.lightBufs[fi.FrameIndex], 0, buf); err != nil {
		panic("lighting uniform upload failed: " + err.Error())
	}
}

func (p *LightingPass) SwapchainResized(extent Extent2D) { p.lit.resize(extent) }

// Target exposes the lit scene attachment to presentation and post stages.
func (p *LightingPass) Target() RenderTarget { return p.lit.target }

func (p *LightingPass) Destroy() {
	if p.pipeline != nil {
		p.pipeline.Destroy()
		p.pipeline = nil
	}
	for i, b := range p.lightBufs {
		if b != nil {
			b.Destroy()
			p.lightBufs[i] = nil
		}
	}
	p.lit.destroy()
}

func putVec3(dst []byte, v mgl32.Vec3) {
	le := binary.LittleEndian
	le.PutUint32(dst[0:], math.Float32bits(v.X()))
	le.PutUint32(dst[4:], math.Float32bits(v.Y()))
	le.PutUint32(dst[8:], math.Float32bits(v.Z()))
}
