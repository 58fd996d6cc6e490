package forge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forge3d/forge/graphics"
)

func newTestAssets(t *testing.T) *AssetServer {
	t.Helper()
	return NewAssetServer(stubDevice{}, NewNopLogger())
}

func TestRegisterMeshServesMeshData(t *testing.T) {
	assets := newTestAssets(t)
	vertices, indices := CubeMesh()

	id, err := assets.RegisterMesh("cube", vertices, indices)
	require.NoError(t, err)

	vbuf, ibuf, count, ok := assets.MeshData(id)
	require.True(t, ok)
	assert.Equal(t, uint32(36), count)
	assert.Equal(t, uint64(len(vertices)*4), vbuf.Size())
	assert.Equal(t, uint64(len(indices)*4), ibuf.Size())

	_, _, _, ok = assets.MeshData(graphics.MeshID("missing"))
	assert.False(t, ok)
}

func TestRegisterMaterialHandlesAreUnique(t *testing.T) {
	assets := newTestAssets(t)
	a := assets.RegisterMaterial(MaterialDef{Name: "a"})
	b := assets.RegisterMaterial(MaterialDef{Name: "b"})
	assert.NotEqual(t, a, b)

	def, ok := assets.Material(a)
	require.True(t, ok)
	assert.Equal(t, "a", def.Name)
}

func TestLoadShaderDirGroupsByStageSuffix(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"mesh.vert.spv":  []byte{1, 0, 0, 0},
		"mesh.frag.spv":  []byte{2, 0, 0, 0},
		"cull.comp.spv":  []byte{3, 0, 0, 0},
		"notes.txt":      []byte("ignored"),
		"nosuffix.spv":   []byte{4, 0, 0, 0},
		"mesh.geom.spv":  []byte{5, 0, 0, 0}, // unknown stage, skipped
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	assets := newTestAssets(t)
	require.NoError(t, assets.LoadShaderDir(dir))

	mesh, ok := assets.Shaders("mesh")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 0, 0, 0}, mesh.Vertex)
	assert.Equal(t, []byte{2, 0, 0, 0}, mesh.Fragment)
	assert.Nil(t, mesh.Compute)

	cull, ok := assets.Shaders("cull")
	require.True(t, ok)
	assert.Equal(t, []byte{3, 0, 0, 0}, cull.Compute)

	_, ok = assets.Shaders("nosuffix")
	assert.False(t, ok)
}

func TestLoadShaderDirMissingDirectory(t *testing.T) {
	assets := newTestAssets(t)
	assert.Error(t, assets.LoadShaderDir(filepath.Join(t.TempDir(), "nope")))
}
