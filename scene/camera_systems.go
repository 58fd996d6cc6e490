package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitCameraSystem circles the scene camera around its target at a fixed
// height, for unattended captures and benchmark runs.
type OrbitCameraSystem struct {
	Speed float32
	angle float64
}

func (o *OrbitCameraSystem) Update(s *Scene, dt float32) {
	cam := s.camera
	offset := cam.Position.Sub(cam.Target)
	radius := float64(mgl32.Vec2{offset.X(), offset.Z()}.Len())
	if o.angle == 0 {
		o.angle = math.Atan2(float64(offset.Z()), float64(offset.X()))
	}
	o.angle += float64(o.Speed * dt)
	cam.Position = mgl32.Vec3{
		cam.Target.X() + float32(radius*math.Cos(o.angle)),
		cam.Position.Y(),
		cam.Target.Z() + float32(radius*math.Sin(o.angle)),
	}
	s.camera = cam
}
