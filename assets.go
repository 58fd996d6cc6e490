package forge

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/forge3d/forge/graphics"
)

// MaterialDef is the CPU-side description of a material instance. The
// renderer only uses the resulting id as a batching key.
type MaterialDef struct {
	Name      string
	BaseColor [4]float32
	Roughness float32
	Metallic  float32
}

type meshAsset struct {
	name       string
	vertices   graphics.Buffer
	indices    graphics.Buffer
	indexCount uint32
}

// AssetServer owns GPU-resident meshes, material definitions and compiled
// shader blobs. It serves the renderer as both mesh source and shader
// catalog. Handles are opaque uuids.
type AssetServer struct {
	device    graphics.Device
	log       Logger
	meshes    map[graphics.MeshID]*meshAsset
	materials map[graphics.MaterialID]MaterialDef
	shaders   map[string]graphics.ShaderSet
}

func NewAssetServer(device graphics.Device, log Logger) *AssetServer {
	return &AssetServer{
		device:    device,
		log:       log,
		meshes:    make(map[graphics.MeshID]*meshAsset),
		materials: make(map[graphics.MaterialID]MaterialDef),
		shaders:   make(map[string]graphics.ShaderSet),
	}
}

// RegisterMesh uploads vertex and index data and returns the mesh handle.
func (s *AssetServer) RegisterMesh(name string, vertices []float32, indices []uint32) (graphics.MeshID, error) {
	id := graphics.MeshID(uuid.NewString())

	vbuf, err := s.device.CreateBuffer("mesh."+name+".vertices", uint64(len(vertices)*4), graphics.BufferUsageVertex)
	if err != nil {
		return "", fmt.Errorf("creating vertex buffer for %s: %w", name, err)
	}
	if err := s.device.WriteBuffer(vbuf, 0, floatBytes(vertices)); err != nil {
		return "", fmt.Errorf("uploading vertices for %s: %w", name, err)
	}

	ibuf, err := s.device.CreateBuffer("mesh."+name+".indices", uint64(len(indices)*4), graphics.BufferUsageIndex)
	if err != nil {
		return "", fmt.Errorf("creating index buffer for %s: %w", name, err)
	}
	if err := s.device.WriteBuffer(ibuf, 0, uint32Bytes(indices)); err != nil {
		return "", fmt.Errorf("uploading indices for %s: %w", name, err)
	}

	s.meshes[id] = &meshAsset{
		name:       name,
		vertices:   vbuf,
		indices:    ibuf,
		indexCount: uint32(len(indices)),
	}
	s.log.Debugf("assets: registered mesh %s (%d indices)", name, len(indices))
	return id, nil
}

// RegisterMaterial stores a material definition and returns its handle.
func (s *AssetServer) RegisterMaterial(def MaterialDef) graphics.MaterialID {
	id := graphics.MaterialID(uuid.NewString())
	s.materials[id] = def
	return id
}

func (s *AssetServer) Material(id graphics.MaterialID) (MaterialDef, bool) {
	def, ok := s.materials[id]
	return def, ok
}

// MeshData implements graphics.MeshSource.
func (s *AssetServer) MeshData(id graphics.MeshID) (graphics.Buffer, graphics.Buffer, uint32, bool) {
	m, ok := s.meshes[id]
	if !ok {
		return nil, nil, 0, false
	}
	return m.vertices, m.indices, m.indexCount, true
}

// RegisterShaderSet stores precompiled shader blobs under a pipeline name.
func (s *AssetServer) RegisterShaderSet(name string, set graphics.ShaderSet) {
	s.shaders[name] = set
}

// LoadShaderDir reads every *.spv file in dir, grouping them into shader
// sets by base name: <name>.vert.spv, <name>.frag.spv, <name>.comp.spv.
func (s *AssetServer) LoadShaderDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading shader directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".spv") {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".spv")
		dot := strings.LastIndex(base, ".")
		if dot < 0 {
			s.log.Warnf("assets: shader %s has no stage suffix, skipped", entry.Name())
			continue
		}
		name, stage := base[:dot], base[dot+1:]

		blob, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading shader %s: %w", entry.Name(), err)
		}
		set := s.shaders[name]
		switch stage {
		case "vert":
			set.Vertex = blob
		case "frag":
			set.Fragment = blob
		case "comp":
			set.Compute = blob
		default:
			s.log.Warnf("assets: shader %s has unknown stage %q, skipped", entry.Name(), stage)
			continue
		}
		s.shaders[name] = set
	}
	s.log.Infof("assets: loaded %d shader sets from %s", len(s.shaders), dir)
	return nil
}

// Shaders implements graphics.ShaderCatalog.
func (s *AssetServer) Shaders(name string) (graphics.ShaderSet, bool) {
	set, ok := s.shaders[name]
	return set, ok
}

func (s *AssetServer) Destroy() {
	for _, m := range s.meshes {
		m.vertices.Destroy()
		m.indices.Destroy()
	}
	s.meshes = map[graphics.MeshID]*meshAsset{}
}

func floatBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, f := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func uint32Bytes(data []uint32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}
