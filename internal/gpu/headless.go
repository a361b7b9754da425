package gpu

// HeadlessBackend is an in-memory gpuBackend with no real graphics device
// behind it. It exists for running the rest of the module — schedulers,
// RenderingContext, draw-list generation — without a window or GPU present,
// the same role an httptest.NewServer plays standing in for a real tile
// server.
type HeadlessBackend struct {
	arrays    []*headlessTextureArray
	drawCalls int
}

// NewHeadlessBackend constructs an empty HeadlessBackend.
func NewHeadlessBackend() *HeadlessBackend { return &HeadlessBackend{} }

// DrawCalls reports how many DrawIndexedInstanced calls have been issued.
func (b *HeadlessBackend) DrawCalls() int { return b.drawCalls }

type headlessTextureArray struct {
	kind   textureKind
	width  int
	height int
	layers int
	writes map[int][]byte
}

type headlessBuffer struct {
	size int
	data []byte
}

type headlessBindGroup struct{ nEdgeVertices uint32 }

func (b *HeadlessBackend) CreateTextureArray(kind textureKind, width, height, layers int) (textureArray, error) {
	arr := &headlessTextureArray{kind: kind, width: width, height: height, layers: layers, writes: make(map[int][]byte)}
	b.arrays = append(b.arrays, arr)
	return arr, nil
}

func (b *HeadlessBackend) WriteTexture(array textureArray, layer int, data []byte, width, height int) error {
	array.(*headlessTextureArray).writes[layer] = data
	return nil
}

func (b *HeadlessBackend) CreateIndexBuffer(indices []uint32) (gpuBuffer, error) {
	return &headlessBuffer{size: len(indices) * 4}, nil
}

func (b *HeadlessBackend) CreateVertexBuffer(sizeBytes int) (gpuBuffer, error) {
	return &headlessBuffer{size: sizeBytes}, nil
}

func (b *HeadlessBackend) CreateBindGroup(height, ortho textureArray, nEdgeVertices uint32) (gpuBindGroup, error) {
	return &headlessBindGroup{nEdgeVertices: nEdgeVertices}, nil
}

func (b *HeadlessBackend) WriteInstances(boundsBuf, metaBuf gpuBuffer, instances []Instance) error {
	return nil
}

func (b *HeadlessBackend) DrawIndexedInstanced(indexBuffer gpuBuffer, bindGroup gpuBindGroup, height, ortho textureArray, instanceCount uint32) error {
	if instanceCount > 0 {
		b.drawCalls++
	}
	return nil
}
