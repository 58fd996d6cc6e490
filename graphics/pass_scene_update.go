package graphics

import (
	"encoding/binary"
	"fmt"
	"math"
)

const cameraUniformSize = 144 // view + proj + padded position

// SceneUpdatePass refreshes per-frame CPU-owned GPU data: dynamic instance
// transforms and the camera uniform for the current slot. It records no draw
// commands of its own.
type SceneUpdatePass struct {
	basePass
	device         Device
	framesInFlight int
	cameraBufs     []Buffer
	scratch        [cameraUniformSize]byte
}

func NewSceneUpdatePass(framesInFlight int) *SceneUpdatePass {
	return &SceneUpdatePass{
		basePass:       basePass{name: "SceneUpdate"},
		framesInFlight: framesInFlight,
	}
}

func (p *SceneUpdatePass) Compile(res *PassResources) error {
	p.device = res.Device
	p.cameraBufs = make([]Buffer, p.framesInFlight)
	for i := range p.cameraBufs {
		buf, err := res.Device.CreateBuffer(fmt.Sprintf("camera.frame%d", i), cameraUniformSize, BufferUsageUniform)
		if err != nil {
			return err
		}
		p.cameraBufs[i] = buf
	}
	return nil
}

func (p *SceneUpdatePass) Execute(fi *FrameInfo) {
	fi.Prof.BeginScope("Instance Update")
	fi.Batches.RefreshDynamic(fi.Scene)
	if err := fi.Instances.RefreshDynamic(fi.Batches, fi.FrameIndex); err != nil {
		panic("dynamic instance upload failed: " + err.Error())
	}
	fi.Prof.EndScope("Instance Update")

	cam := fi.Scene.Camera(fi.AspectRatio)
	packMat4(p.scratch[0:], cam.View)
	packMat4(p.scratch[64:], cam.Proj)
	le := binary.LittleEndian
	le.PutUint32(p.scratch[128:], math.Float32bits(cam.Position.X()))
	le.PutUint32(p.scratch[132:], math.Float32bits(cam.Position.Y()))
	le.PutUint32(p.scratch[136:], math.Float32bits(cam.Position.Z()))
	le.PutUint32(p.scratch[140:], 0)
	if err := p.device.WriteBuffer(p.cameraBufs[fi.FrameIndex], 0, p.scratch[:]); err != nil {
		panic("camera uniform upload failed: " + err.Error())
	}
}

// CameraBuffer exposes the camera uniform for a frame slot to sibling passes.
func (p *SceneUpdatePass) CameraBuffer(frameSlot int) Buffer { return p.cameraBufs[frameSlot] }

func (p *SceneUpdatePass) Destroy() {
	for i, b := range p.cameraBufs {
		if b != nil {
			b.Destroy()
			p.cameraBufs[i] = nil
		}
	}
}
