package gpu

// textureKind distinguishes the two array textures TileManager owns.
type textureKind int

const (
	textureOrtho textureKind = iota
	textureHeight
)

// textureArray, gpuBuffer and gpuBindGroup are opaque handles into whatever
// graphics API backend implements gpuBackend. TileManager never inspects
// their contents; only the concrete backend (wgpubackend.go or headless.go)
// knows what they really are.
type textureArray interface{}
type gpuBuffer interface{}
type gpuBindGroup interface{}

// gpuBackend is the seam that keeps every WebGPU-specific type out of this
// package's exported surface (and therefore out of everything that imports
// internal/gpu). It has two implementations: wgpuBackend in wgpubackend.go
// and the device-less HeadlessBackend in headless.go.
type gpuBackend interface {
	CreateTextureArray(kind textureKind, width, height, layers int) (textureArray, error)
	WriteTexture(array textureArray, layer int, data []byte, width, height int) error
	CreateIndexBuffer(indices []uint32) (gpuBuffer, error)
	CreateVertexBuffer(sizeBytes int) (gpuBuffer, error)
	CreateBindGroup(height, ortho textureArray, nEdgeVertices uint32) (gpuBindGroup, error)
	WriteInstances(boundsBuf, metaBuf gpuBuffer, instances []Instance) error
	DrawIndexedInstanced(indexBuffer gpuBuffer, bindGroup gpuBindGroup, height, ortho textureArray, instanceCount uint32) error
}

// skirtedGridIndices builds the triangle-strip index list for a regular
// edge x edge vertex grid with a one-sample curtain skirt border dropped
// below the outer ring, hiding LOD cracks between neighboring tiles. The
// skirt vertices themselves are assumed to already exist in the vertex
// buffer the backend builds alongside this index buffer; this function only
// orders indices, it does not allocate vertex positions.
func skirtedGridIndices(edge int) []uint32 {
	indices := make([]uint32, 0, (edge-1)*(2*edge+2))
	for row := 0; row < edge-1; row++ {
		if row > 0 {
			// Degenerate triangles to restart the strip between rows.
			indices = append(indices, uint32(row*edge))
		}
		for col := 0; col < edge; col++ {
			indices = append(indices, uint32(row*edge+col))
			indices = append(indices, uint32((row+1)*edge+col))
		}
		if row < edge-2 {
			indices = append(indices, uint32((row+1)*edge+(edge-1)))
		}
	}
	return indices
}
