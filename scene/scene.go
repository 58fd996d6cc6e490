package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/forge3d/forge/graphics"
)

type EntityID uint64

// Transform is the spatial component of an entity.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func DefaultTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (t Transform) Matrix() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	return translate.Mul4(rotate).Mul4(scale)
}

// MeshRenderer attaches drawable geometry to an entity.
type MeshRenderer struct {
	Mesh     graphics.MeshID
	Material graphics.MaterialID
}

// PointLight attaches a local light source to an entity's position.
type PointLight struct {
	Color     mgl32.Vec3
	Intensity float32
	Range     float32
}

// Camera holds the scene's single view. FOV is vertical, in radians.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	FOV      float32
	Near     float32
	Far      float32
}

func DefaultCamera() Camera {
	return Camera{
		Position: mgl32.Vec3{0, 2, 8},
		Up:       mgl32.Vec3{0, 1, 0},
		FOV:      mgl32.DegToRad(60),
		Near:     0.1,
		Far:      1000,
	}
}

// Environment holds scene-wide lighting parameters.
type Environment struct {
	AmbientIntensity     float32
	DirectionalDirection mgl32.Vec3
	DirectionalIntensity float32
}

// capability flags, computed once when an entity is spawned or reshaped
type capability uint8

const (
	capMesh capability = 1 << iota
	capMaterial
	capDynamic
	capLight
)

type entityRecord struct {
	id        EntityID
	caps      capability
	transform Transform
	mesh      MeshRenderer
	light     PointLight
}

// EntityDesc describes one entity to spawn. Mesh and Material are drawable
// capabilities; Dynamic marks the transform as per-frame mutable; Light
// optionally attaches a point light.
type EntityDesc struct {
	Transform Transform
	Mesh      graphics.MeshID
	Material  graphics.MaterialID
	Dynamic   bool
	Light     *PointLight
}

// System mutates entity state once per frame.
type System interface {
	Update(s *Scene, dt float32)
}

// Scene is the entity store driving the renderer. Structural changes
// (spawn, despawn, mesh or material reassignment) bump the generation
// counter; per-frame transform writes do not.
type Scene struct {
	entities map[EntityID]*entityRecord
	nextID   EntityID

	camera      Camera
	environment Environment
	systems     []System

	generation       uint64
	renderables      []graphics.Renderable
	renderablesClean bool
}

func New() *Scene {
	return &Scene{
		entities: make(map[EntityID]*entityRecord),
		nextID:   1,
		camera:   DefaultCamera(),
	}
}

// Spawn adds one entity and returns its id.
func (s *Scene) Spawn(desc EntityDesc) EntityID {
	id := s.nextID
	s.nextID++

	rec := &entityRecord{
		id:        id,
		transform: desc.Transform,
		mesh:      MeshRenderer{Mesh: desc.Mesh, Material: desc.Material},
	}
	if desc.Mesh != "" {
		rec.caps |= capMesh
	}
	if desc.Material != "" {
		rec.caps |= capMaterial
	}
	if desc.Dynamic {
		rec.caps |= capDynamic
	}
	if desc.Light != nil {
		rec.caps |= capLight
		rec.light = *desc.Light
	}
	s.entities[id] = rec
	s.structuralChange()
	return id
}

// Despawn removes an entity. Unknown ids are ignored.
func (s *Scene) Despawn(id EntityID) {
	if _, ok := s.entities[id]; !ok {
		return
	}
	delete(s.entities, id)
	s.structuralChange()
}

// SetMesh reassigns an entity's drawable geometry. This is a structural
// change: the entity moves to a different draw batch.
func (s *Scene) SetMesh(id EntityID, mesh graphics.MeshID, material graphics.MaterialID) {
	rec, ok := s.entities[id]
	if !ok {
		return
	}
	rec.mesh = MeshRenderer{Mesh: mesh, Material: material}
	rec.caps |= capMesh | capMaterial
	s.structuralChange()
}

// SetTransform writes an entity's transform without touching batch
// membership.
func (s *Scene) SetTransform(id EntityID, t Transform) {
	if rec, ok := s.entities[id]; ok {
		rec.transform = t
		if !rec.dynamic() {
			// a static entity moved; its baked instance data is stale
			s.structuralChange()
		}
	}
}

func (s *Scene) Transform(id EntityID) (Transform, bool) {
	rec, ok := s.entities[id]
	if !ok {
		return Transform{}, false
	}
	return rec.transform, true
}

func (s *Scene) SetCamera(c Camera)           { s.camera = c }
func (s *Scene) SetEnvironment(e Environment) { s.environment = e }

// AddSystem registers a per-frame behavior. Systems run in registration
// order.
func (s *Scene) AddSystem(sys System) { s.systems = append(s.systems, sys) }

// Update runs all systems for one frame.
func (s *Scene) Update(dt float32) {
	for _, sys := range s.systems {
		sys.Update(s, dt)
	}
}

// ForEachDynamic visits every dynamic entity, letting systems mutate
// transforms in place.
func (s *Scene) ForEachDynamic(fn func(id EntityID, t *Transform)) {
	for id, rec := range s.entities {
		if rec.dynamic() {
			fn(id, &rec.transform)
		}
	}
}

func (s *Scene) EntityCount() int { return len(s.entities) }

func (rec *entityRecord) drawable() bool {
	return rec.caps&capMesh != 0 && rec.caps&capMaterial != 0
}

func (rec *entityRecord) dynamic() bool { return rec.caps&capDynamic != 0 }

func (s *Scene) structuralChange() {
	s.generation++
	s.renderablesClean = false
}

// Generation implements graphics.Scene.
func (s *Scene) Generation() uint64 { return s.generation }

// Renderables implements graphics.Scene. Order is stable for a given
// generation: ascending entity id.
func (s *Scene) Renderables() []graphics.Renderable {
	if s.renderablesClean {
		return s.renderables
	}
	s.renderables = s.renderables[:0]
	for _, rec := range s.entities {
		if !rec.drawable() {
			continue
		}
		s.renderables = append(s.renderables, graphics.Renderable{
			Entity:    uint64(rec.id),
			Mesh:      rec.mesh.Mesh,
			Material:  rec.mesh.Material,
			Transform: rec.transform.Matrix(),
			Dynamic:   rec.dynamic(),
		})
	}
	sort.Slice(s.renderables, func(i, j int) bool {
		return s.renderables[i].Entity < s.renderables[j].Entity
	})
	s.renderablesClean = true
	return s.renderables
}

// TransformOf implements graphics.Scene.
func (s *Scene) TransformOf(entity uint64) (mgl32.Mat4, bool) {
	rec, ok := s.entities[EntityID(entity)]
	if !ok {
		return mgl32.Mat4{}, false
	}
	return rec.transform.Matrix(), true
}

// Camera implements graphics.Scene.
func (s *Scene) Camera(aspectRatio float32) graphics.CameraData {
	c := s.camera
	return graphics.CameraData{
		View:     mgl32.LookAtV(c.Position, c.Target, c.Up),
		Proj:     mgl32.Perspective(c.FOV, aspectRatio, c.Near, c.Far),
		Position: c.Position,
	}
}

// Lighting implements graphics.Scene.
func (s *Scene) Lighting() graphics.LightingData {
	data := graphics.LightingData{
		AmbientIntensity:     s.environment.AmbientIntensity,
		DirectionalDirection: s.environment.DirectionalDirection,
		DirectionalIntensity: s.environment.DirectionalIntensity,
	}
	ids := make([]EntityID, 0)
	for id, rec := range s.entities {
		if rec.caps&capLight != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		rec := s.entities[id]
		data.PointLights = append(data.PointLights, graphics.PointLight{
			Position:  rec.transform.Position,
			Color:     rec.light.Color,
			Intensity: rec.light.Intensity,
			Range:     rec.light.Range,
		})
	}
	return data
}
