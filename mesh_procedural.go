package forge

// Procedural meshes for examples and tests. Vertex layout is interleaved
// position (3) + normal (3), 6 floats per vertex.

// CubeMesh returns a unit cube centered on the origin.
func CubeMesh() ([]float32, []uint32) {
	faces := []struct {
		normal  [3]float32
		corners [4][3]float32
	}{
		{[3]float32{0, 0, 1}, [4][3]float32{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-0.5, -0.5, -0.5}, {-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {-0.5, 0.5, -0.5}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}, {-0.5, -0.5, 0.5}}},
	}

	vertices := make([]float32, 0, 6*4*6)
	indices := make([]uint32, 0, 6*6)
	for f, face := range faces {
		for _, c := range face.corners {
			vertices = append(vertices, c[0], c[1], c[2], face.normal[0], face.normal[1], face.normal[2])
		}
		base := uint32(f * 4)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}

// PlaneMesh returns a flat quad in the XZ plane with the given half extent.
func PlaneMesh(halfExtent float32) ([]float32, []uint32) {
	e := halfExtent
	vertices := []float32{
		-e, 0, -e, 0, 1, 0,
		e, 0, -e, 0, 1, 0,
		e, 0, e, 0, 1, 0,
		-e, 0, e, 0, 1, 0,
	}
	indices := []uint32{0, 2, 1, 0, 3, 2}
	return vertices, indices
}
