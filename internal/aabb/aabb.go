// Package aabb decorates a tile-id quadtree with world-space bounding boxes,
// combining the web-mercator x/y extent of a tile with a coarse height
// estimate sampled from the deepest populated ancestor of a min/max height
// pyramid.
package aabb

import (
	"github.com/alpinemaps/terrainclient/internal/geom"
	"github.com/alpinemaps/terrainclient/internal/mercator"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// HeightRange is a min/max elevation band in meters.
type HeightRange struct {
	Min, Max float64
}

// GlobalFallback is the world's elevation band used when no ancestor of a
// requested tile is present in the pyramid, covering sea-floor trenches to
// the highest alpine peaks.
var GlobalFallback = HeightRange{Min: -500, Max: 9000}

// Sample associates a height range with a single ancestor tile. Pyramids are
// typically built from ancestor tiles at zoom 5-8, coarse enough to cover
// large regions with one entry.
type Sample struct {
	ID    tileid.ID
	Range HeightRange
}

// HeightPyramid is an immutable, thread-safe min/max height lookup indexed by
// ancestor zoom level. It never mutates after construction, so it can be
// shared across the worker and render threads via a plain pointer — Go's GC
// makes reference counting of the shared, read-only structure implicit.
type HeightPyramid struct {
	byID map[tileid.ID]HeightRange
}

// NewHeightPyramid builds a pyramid from a set of coarse ancestor samples.
// Later samples for the same id overwrite earlier ones.
func NewHeightPyramid(samples []Sample) *HeightPyramid {
	byID := make(map[tileid.ID]HeightRange, len(samples))
	for _, s := range samples {
		byID[s.ID] = s.Range
	}
	return &HeightPyramid{byID: byID}
}

// Sample returns the height range of the deepest ancestor of id (or id
// itself) present in the pyramid, walking up toward the root.
func (p *HeightPyramid) Sample(id tileid.ID) (HeightRange, bool) {
	for {
		if r, ok := p.byID[id]; ok {
			return r, true
		}
		if id.Zoom == 0 {
			return HeightRange{}, false
		}
		id = id.Parent()
	}
}

// Decorator combines a HeightPyramid with the web-mercator grid to answer
// aabb(id) queries. It is immutable after construction.
type Decorator struct {
	pyramid  *HeightPyramid
	fallback HeightRange
}

// New builds a Decorator over the given height pyramid, falling back to
// GlobalFallback for tiles with no populated ancestor.
func New(pyramid *HeightPyramid) *Decorator {
	return &Decorator{pyramid: pyramid, fallback: GlobalFallback}
}

// WithFallback overrides the global min/max fallback band.
func (d *Decorator) WithFallback(r HeightRange) *Decorator {
	return &Decorator{pyramid: d.pyramid, fallback: r}
}

// Aabb returns the world-space bounding box of id: EPSG:3857 x/y from the
// mercator grid, z from the pyramid (or the fallback band). Pure and
// thread-safe.
func (d *Decorator) Aabb(id tileid.ID) geom.AABB3 {
	bounds := mercator.TileBounds(id)
	hr := d.fallback
	if d.pyramid != nil {
		if r, ok := d.pyramid.Sample(id); ok {
			hr = r
		}
	}
	return geom.AABB3{
		Min: geom.Vec3{X: bounds.MinX, Y: bounds.MinY, Z: hr.Min},
		Max: geom.Vec3{X: bounds.MaxX, Y: bounds.MaxY, Z: hr.Max},
	}
}
