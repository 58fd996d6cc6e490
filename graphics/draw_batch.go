package graphics

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// InstanceData is one drawable instance inside a batch.
type InstanceData struct {
	Entity    uint64
	Transform mgl32.Mat4
	Dynamic   bool
}

// DrawBatch groups every instance sharing one (mesh, material) pair.
// Instance order is stable across frames unless the scene changes, so any
// GPU-side indirect-draw buffers mirroring this layout stay valid.
type DrawBatch struct {
	Mesh      MeshID
	Material  MaterialID
	Instances []InstanceData

	staticCount  int
	dynamicCount int
}

func (b *DrawBatch) InstanceCount() int        { return len(b.Instances) }
func (b *DrawBatch) StaticInstanceCount() int  { return b.staticCount }
func (b *DrawBatch) DynamicInstanceCount() int { return b.dynamicCount }

type batchKey struct {
	mesh     MeshID
	material MaterialID
}

// DrawBatchRegistry owns the full batch set plus aggregate instance counters.
// It is rebuilt on structural scene changes and read by every geometry pass.
// All mutation happens on the orchestration goroutine.
type DrawBatchRegistry struct {
	batches []*DrawBatch

	totalInstances   int
	staticInstances  int
	dynamicInstances int

	// entity -> (batch index, instance index), for the dynamic refresh path.
	dynamicIndex map[uint64][2]int

	generation uint64
}

func NewDrawBatchRegistry() *DrawBatchRegistry {
	return &DrawBatchRegistry{
		dynamicIndex: make(map[uint64][2]int),
	}
}

// SceneChanged re-derives the batch set from the scene's current entity
// population. Cost is linear in entity count. Calling it twice without an
// intervening scene mutation yields an identical batch set.
func (r *DrawBatchRegistry) SceneChanged(sc Scene) {
	byKey := make(map[batchKey]*DrawBatch)

	for _, e := range sc.Renderables() {
		key := batchKey{e.Mesh, e.Material}
		batch, ok := byKey[key]
		if !ok {
			batch = &DrawBatch{Mesh: e.Mesh, Material: e.Material}
			byKey[key] = batch
		}
		batch.Instances = append(batch.Instances, InstanceData{
			Entity:    e.Entity,
			Transform: e.Transform,
			Dynamic:   e.Dynamic,
		})
		if e.Dynamic {
			batch.dynamicCount++
		} else {
			batch.staticCount++
		}
	}

	batches := make([]*DrawBatch, 0, len(byKey))
	for _, b := range byKey {
		if len(b.Instances) == 0 {
			continue
		}
		sort.Slice(b.Instances, func(i, j int) bool {
			return b.Instances[i].Entity < b.Instances[j].Entity
		})
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].Mesh != batches[j].Mesh {
			return batches[i].Mesh < batches[j].Mesh
		}
		return batches[i].Material < batches[j].Material
	})

	r.batches = batches
	r.totalInstances = 0
	r.staticInstances = 0
	r.dynamicInstances = 0
	r.dynamicIndex = make(map[uint64][2]int)
	for bi, b := range batches {
		r.totalInstances += len(b.Instances)
		r.staticInstances += b.staticCount
		r.dynamicInstances += b.dynamicCount
		for ii, inst := range b.Instances {
			if inst.Dynamic {
				r.dynamicIndex[inst.Entity] = [2]int{bi, ii}
			}
		}
	}
	r.generation = sc.Generation()
}

// RefreshDynamic re-reads the transforms of dynamic instances from the scene
// without altering batch membership or instance order. Membership changes
// require a full SceneChanged rebuild.
func (r *DrawBatchRegistry) RefreshDynamic(sc Scene) {
	for entity, loc := range r.dynamicIndex {
		if m, ok := sc.TransformOf(entity); ok {
			r.batches[loc[0]].Instances[loc[1]].Transform = m
		}
	}
}

// Batches exposes read-only iteration in deterministic order.
func (r *DrawBatchRegistry) Batches() []*DrawBatch { return r.batches }

func (r *DrawBatchRegistry) BatchCount() int           { return len(r.batches) }
func (r *DrawBatchRegistry) InstanceCount() int        { return r.totalInstances }
func (r *DrawBatchRegistry) StaticInstanceCount() int  { return r.staticInstances }
func (r *DrawBatchRegistry) DynamicInstanceCount() int { return r.dynamicInstances }

// Generation reports the scene generation the registry was last rebuilt for.
func (r *DrawBatchRegistry) Generation() uint64 { return r.generation }
