package graphics

import "github.com/go-gl/mathgl/mgl32"

// MeshID and MaterialID are opaque asset handles. The core only relies on
// identity and equality, as batching keys.
type MeshID string
type MaterialID string

// Renderable is one scene entity that satisfies the mesh+material capability
// set, classified once per structural scene change.
type Renderable struct {
	Entity    uint64
	Mesh      MeshID
	Material  MaterialID
	Transform mgl32.Mat4
	Dynamic   bool
}

type CameraData struct {
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	Position mgl32.Vec3
}

type PointLight struct {
	Position  mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
	Range     float32
}

type LightingData struct {
	AmbientIntensity     float32
	DirectionalDirection mgl32.Vec3
	DirectionalIntensity float32
	PointLights          []PointLight
}

// Scene is the scene/ECS collaborator contract. The scene package provides
// the engine's implementation; tests use stubs.
type Scene interface {
	// Generation increments on every structural change (entity added or
	// removed, mesh/material reassigned).
	Generation() uint64
	// Renderables returns the classified drawable entities in a stable
	// order for a given generation.
	Renderables() []Renderable
	// TransformOf reads the current transform of one entity; used by the
	// per-frame dynamic instance refresh.
	TransformOf(entity uint64) (mgl32.Mat4, bool)
	Camera(aspectRatio float32) CameraData
	Lighting() LightingData
}

// UI is the overlay collaborator; its internals are outside this core.
type UI interface {
	Record(fi *FrameInfo)
}

// MeshSource resolves a mesh handle into GPU geometry for the draw paths.
// Provided by the asset collaborator.
type MeshSource interface {
	MeshData(id MeshID) (vertices, indices Buffer, indexCount uint32, ok bool)
}

// ShaderCatalog resolves a pipeline name into its precompiled shader blobs.
// Provided by the asset collaborator.
type ShaderCatalog interface {
	Shaders(name string) (ShaderSet, bool)
}

// FrameInfo is the read-mostly descriptor built fresh each frame and handed
// to every pass. It owns nothing and must not be retained past the frame.
type FrameInfo struct {
	Scene        Scene
	UI           UI
	Batches      *DrawBatchRegistry
	Instances    *InstanceBufferManager
	Cmd          CommandBuffer
	FrameIndex   int
	SwapExtent   Extent2D
	AspectRatio  float32
	DeltaSeconds float32

	Timers *GPUTimerManager
	Prof   *Profiler
}
