package scene

import "github.com/go-gl/mathgl/mgl32"

// RotationSystem spins every dynamic entity around the Y axis at a fixed
// angular speed, in radians per second.
type RotationSystem struct {
	Speed float32
}

func (r *RotationSystem) Update(s *Scene, dt float32) {
	if dt == 0 {
		return
	}
	spin := mgl32.QuatRotate(r.Speed*dt, mgl32.Vec3{0, 1, 0})
	s.ForEachDynamic(func(_ EntityID, t *Transform) {
		t.Rotation = spin.Mul(t.Rotation)
	})
}

// OrbitSystem moves every dynamic entity along a circle around a center
// point, preserving its height.
type OrbitSystem struct {
	Center mgl32.Vec3
	Speed  float32
	angle  float32
}

func (o *OrbitSystem) Update(s *Scene, dt float32) {
	o.angle += o.Speed * dt
	rot := mgl32.Rotate3DY(o.Speed * dt)
	s.ForEachDynamic(func(_ EntityID, t *Transform) {
		offset := t.Position.Sub(o.Center)
		t.Position = o.Center.Add(rot.Mul3x1(offset))
	})
}
