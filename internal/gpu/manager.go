// Package gpu owns the GPU-resident tile pool: bounded array
// textures for ortho and height data, one static index buffer, per-instance
// vertex buffers, and the resident-tile bookkeeping that maps a tile id to
// an array-texture layer. The concrete graphics API never leaks past this
// package's exported surface — every exported type here is backend-neutral;
// the one file allowed to import github.com/gogpu/wgpu directly is
// wgpubackend.go.
package gpu

import (
	"log"
	"sort"

	"github.com/alpinemaps/terrainclient/internal/aabb"
	"github.com/alpinemaps/terrainclient/internal/geom"
	"github.com/alpinemaps/terrainclient/internal/scheduler"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// NEdge matches internal/scheduler's height raster resolution and the
// static index buffer's triangle-strip topology, including the one-sample
// curtain skirt border.
const NEdge = scheduler.NEdge

// DefaultArrayLayers is the default per-array-texture layer budget and the
// default Config.SlotCapacity; TileManager allocates additional arrays once
// an array is exhausted and SlotCapacity still allows it, growing a small
// vector of array textures rather than one unbounded array.
const DefaultArrayLayers = 2048

// Instance is one tile's per-instance vertex attributes, uploaded into the
// per-instance vertex buffers ahead of an indexed-instanced draw.
type Instance struct {
	Bounds       geom.AABB3
	TilesetID    int32
	ZoomLevel    int32
	TextureLayer int32
}

// residentTile is TileManager's bookkeeping for one resident tile id.
type residentTile struct {
	arrayIndex int
	layer      int
	bounds     geom.AABB3
	zoom       uint8
}

// Config configures a TileManager.
type Config struct {
	LayersPerArray int
	// SlotCapacity hard-caps total GPU residency across every array-texture
	// set. allocateLayer only calls growArrays to cover the per-array device
	// limit (LayersPerArray); once the total layer count already allocated
	// reaches SlotCapacity, a full array set means there is no free layer
	// left to hand back, full stop.
	SlotCapacity int
	Verbose      bool
}

func (c *Config) normalize() {
	if c.LayersPerArray <= 0 {
		c.LayersPerArray = DefaultArrayLayers
	}
	if c.SlotCapacity <= 0 {
		c.SlotCapacity = DefaultArrayLayers
	}
}

// arraySet is one (ortho_array, height_array) pair plus the free-list of
// layer indices within it.
type arraySet struct {
	ortho    textureArray
	height   textureArray
	freeList []int
}

// TileManager owns GPU array textures and buffers and maps tile ids to
// array-texture layers. It is owned exclusively by the render thread;
// the worker thread never touches it directly — deliveries arrive as plain
// Batch values over a channel (see internal/context).
type TileManager struct {
	cfg       Config
	backend   gpuBackend
	decorator *aabb.Decorator

	arrays []arraySet

	resident map[tileid.ID]residentTile

	indexBuffer  gpuBuffer
	vertexBounds gpuBuffer
	vertexMeta   gpuBuffer
	bindGroup    gpuBindGroup
}

// New builds a TileManager against backend, creating the first array-texture
// set and the static index buffer.
func New(backend gpuBackend, cfg Config) (*TileManager, error) {
	cfg.normalize()
	tm := &TileManager{
		cfg:      cfg,
		backend:  backend,
		resident: make(map[tileid.ID]residentTile),
	}
	if err := tm.growArrays(); err != nil {
		return nil, err
	}
	indexBuffer, err := backend.CreateIndexBuffer(skirtedGridIndices(NEdge))
	if err != nil {
		return nil, err
	}
	tm.indexBuffer = indexBuffer
	bindGroup, err := backend.CreateBindGroup(tm.arrays[0].height, tm.arrays[0].ortho, NEdge)
	if err != nil {
		return nil, err
	}
	tm.bindGroup = bindGroup

	vertexBounds, err := backend.CreateVertexBuffer(DefaultArrayLayers * 4 * 4)
	if err != nil {
		return nil, err
	}
	vertexMeta, err := backend.CreateVertexBuffer(DefaultArrayLayers * 3 * 4)
	if err != nil {
		return nil, err
	}
	tm.vertexBounds = vertexBounds
	tm.vertexMeta = vertexMeta
	return tm, nil
}

// SetAabbDecorator reconfigures the decorator used to derive tile bounds for
// instances that weren't shipped with their own bounds.
func (tm *TileManager) SetAabbDecorator(d *aabb.Decorator) { tm.decorator = d }

func (tm *TileManager) growArrays() error {
	ortho, err := tm.backend.CreateTextureArray(textureOrtho, 256, 256, tm.cfg.LayersPerArray)
	if err != nil {
		return err
	}
	height, err := tm.backend.CreateTextureArray(textureHeight, 65, 65, tm.cfg.LayersPerArray)
	if err != nil {
		return err
	}
	freeList := make([]int, tm.cfg.LayersPerArray)
	for i := range freeList {
		freeList[i] = tm.cfg.LayersPerArray - 1 - i
	}
	tm.arrays = append(tm.arrays, arraySet{ortho: ortho, height: height, freeList: freeList})
	return nil
}

// SetQuadLimit reconfigures the total resident-layer budget allocateLayer
// checks against. Raising it grows array-texture sets immediately so the
// new capacity is ready before the next delivery; lowering it does not by
// itself evict anything already resident — TileManager has no notion of
// recency, so eviction under a lowered budget only happens as incoming
// deliveries replace tiles the upstream memory cache has already dropped.
func (tm *TileManager) SetQuadLimit(totalLayers int) {
	tm.cfg.SlotCapacity = totalLayers
	capacityNow := len(tm.arrays) * tm.cfg.LayersPerArray
	for capacityNow < totalLayers {
		if err := tm.growArrays(); err != nil {
			log.Printf("gpu: failed to grow array textures: %v", err)
			return
		}
		capacityNow += tm.cfg.LayersPerArray
	}
}

// allocateLayer pops a free layer from the first array that has one. If
// every array is full, it grows another array-texture set only while the
// layers already allocated across all arrays are fewer than
// cfg.SlotCapacity; once that total reaches the budget, allocateLayer has
// nothing left to hand back.
func (tm *TileManager) allocateLayer() (arrayIndex, layer int, ok bool) {
	for i := range tm.arrays {
		if len(tm.arrays[i].freeList) > 0 {
			n := len(tm.arrays[i].freeList)
			layer = tm.arrays[i].freeList[n-1]
			tm.arrays[i].freeList = tm.arrays[i].freeList[:n-1]
			return i, layer, true
		}
	}
	if len(tm.arrays)*tm.cfg.LayersPerArray >= tm.cfg.SlotCapacity {
		return 0, 0, false
	}
	if err := tm.growArrays(); err != nil {
		log.Printf("gpu: failed to grow array textures: %v", err)
		return 0, 0, false
	}
	last := len(tm.arrays) - 1
	n := len(tm.arrays[last].freeList)
	layer = tm.arrays[last].freeList[n-1]
	tm.arrays[last].freeList = tm.arrays[last].freeList[:n-1]
	return last, layer, true
}

func (tm *TileManager) freeLayer(arrayIndex, layer int) {
	tm.arrays[arrayIndex].freeList = append(tm.arrays[arrayIndex].freeList, layer)
}

// UpdateGpuQuads applies a Batch: frees the four children of every deleted
// quad, then allocates and uploads the four children of every new quad.
// Idempotent over redelivery of an already-resident tile (overwrites the
// existing layer in place rather than allocating a new one).
func (tm *TileManager) UpdateGpuQuads(batch scheduler.Batch) {
	for _, quadID := range batch.Deleted {
		for _, child := range quadID.Children() {
			tile, ok := tm.resident[child]
			if !ok {
				continue
			}
			tm.freeLayer(tile.arrayIndex, tile.layer)
			delete(tm.resident, child)
		}
	}

	for _, quad := range batch.New {
		children := quad.ID.Children()
		for i, payload := range quad.Tiles {
			childID := children[i]
			if payload.Decoded == nil {
				continue
			}
			tm.uploadTile(childID, payload)
		}
	}
}

func (tm *TileManager) uploadTile(id tileid.ID, payload scheduler.Payload) {
	var bounds geom.AABB3
	if tm.decorator != nil {
		bounds = tm.decorator.Aabb(id)
	}

	if existing, ok := tm.resident[id]; ok {
		tm.writePayload(existing.arrayIndex, existing.layer, payload)
		existing.bounds = bounds
		tm.resident[id] = existing
		return
	}

	arrayIndex, layer, ok := tm.allocateLayer()
	if !ok {
		log.Printf("gpu: resident layer budget (%d) exhausted and no layer evictable; dropping tile %s", tm.cfg.SlotCapacity, id)
		return
	}

	tm.writePayload(arrayIndex, layer, payload)
	tm.resident[id] = residentTile{arrayIndex: arrayIndex, layer: layer, bounds: bounds, zoom: id.Zoom}
}

func (tm *TileManager) writePayload(arrayIndex, layer int, payload scheduler.Payload) {
	switch v := payload.Decoded.(type) {
	case heightSource:
		tm.backend.WriteTexture(tm.arrays[arrayIndex].height, layer, v.HeightBytes(), NEdge, NEdge)
	case orthoSource:
		tm.backend.WriteTexture(tm.arrays[arrayIndex].ortho, layer, v.OrthoBytes(), 256, 256)
	}
}

// ResidentCount reports the number of tiles currently holding a layer (for
// tests and diagnostics).
func (tm *TileManager) ResidentCount() int { return len(tm.resident) }

// Resident reports whether id currently holds a layer.
func (tm *TileManager) Resident(id tileid.ID) bool {
	_, ok := tm.resident[id]
	return ok
}

// Draw selects the intersection of drawSet and the resident map (snapshotting
// it at call time, matching the frame-boundary-only delivery contract),
// optionally sorts front-to-back, fills the per-instance vertex buffers and
// issues one indexed-instanced draw per array partition.
func (tm *TileManager) Draw(cameraPos geom.Vec3, drawSet []tileid.ID, sortByDistance bool) (drawCalls int, err error) {
	type drawInstance struct {
		Instance
		arrayIndex int
		distance   float64
	}
	instances := make([]drawInstance, 0, len(drawSet))
	for _, id := range drawSet {
		tile, ok := tm.resident[id]
		if !ok {
			continue
		}
		center := tile.bounds.Center()
		dx, dy := center.X-cameraPos.X, center.Y-cameraPos.Y
		instances = append(instances, drawInstance{
			Instance: Instance{
				Bounds:       tile.bounds,
				TilesetID:    0,
				ZoomLevel:    int32(tile.zoom),
				TextureLayer: int32(tile.layer),
			},
			arrayIndex: tile.arrayIndex,
			distance:   dx*dx + dy*dy,
		})
	}
	if sortByDistance {
		sort.SliceStable(instances, func(i, j int) bool { return instances[i].distance < instances[j].distance })
	}

	byArray := make(map[int][]Instance)
	order := make([]int, 0, len(tm.arrays))
	seen := make(map[int]bool)
	for _, inst := range instances {
		if !seen[inst.arrayIndex] {
			seen[inst.arrayIndex] = true
			order = append(order, inst.arrayIndex)
		}
		byArray[inst.arrayIndex] = append(byArray[inst.arrayIndex], inst.Instance)
	}

	for _, arrayIndex := range order {
		group := byArray[arrayIndex]
		if err := tm.backend.WriteInstances(tm.vertexBounds, tm.vertexMeta, group); err != nil {
			return drawCalls, err
		}
		if err := tm.backend.DrawIndexedInstanced(tm.indexBuffer, tm.bindGroup, tm.arrays[arrayIndex].height, tm.arrays[arrayIndex].ortho, uint32(len(group))); err != nil {
			return drawCalls, err
		}
		drawCalls++
	}
	return drawCalls, nil
}

// heightSource and orthoSource let the payload-agnostic scheduler ship
// either a *payload.HeightRaster or a *payload.OrthoTexture and have this
// package extract raw bytes without importing the payload package's
// concrete types — kept decoupled the same way the scheduler's Decode
// function is injected rather than hardcoded. Both methods must be
// exported: an unexported interface method can only be satisfied by a type
// declared in this same package, which payload.HeightRaster/OrthoTexture
// are not.
type heightSource interface{ HeightBytes() []byte }
type orthoSource interface{ OrthoBytes() []byte }
