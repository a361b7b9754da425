package aabb

import (
	"github.com/alpinemaps/terrainclient/internal/payload"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// PyramidBuilder accumulates min/max height ranges for a fixed ancestor
// zoom level as height tiles stream in, folding every leaf height raster's
// min/max directly into the bucket of its ancestor at that zoom (tiles at
// or above that zoom are their own bucket). Call Pyramid() to snapshot an
// immutable HeightPyramid once enough ancestors are populated; the snapshot
// is safe to publish across threads, the live builder is not
// (worker-thread-confined, same as the memory cache).
type PyramidBuilder struct {
	ancestorZoom uint8
	ranges       map[tileid.ID]HeightRange
}

// NewPyramidBuilder creates a builder that folds incoming height tiles into
// buckets at ancestorZoom (5-8 typical).
func NewPyramidBuilder(ancestorZoom uint8) *PyramidBuilder {
	return &PyramidBuilder{ancestorZoom: ancestorZoom, ranges: make(map[tileid.ID]HeightRange)}
}

// Add folds a decoded height raster for id into its ancestor bucket.
func (b *PyramidBuilder) Add(id tileid.ID, raster *payload.HeightRaster) {
	bucket := id
	if id.Zoom > b.ancestorZoom {
		bucket = id.Ancestor(id.Zoom - b.ancestorZoom)
	}
	cur, ok := b.ranges[bucket]
	if !ok {
		b.ranges[bucket] = HeightRange{Min: raster.Min, Max: raster.Max}
		return
	}
	if raster.Min < cur.Min {
		cur.Min = raster.Min
	}
	if raster.Max > cur.Max {
		cur.Max = raster.Max
	}
	b.ranges[bucket] = cur
}

// Pyramid snapshots the current state into an immutable HeightPyramid.
func (b *PyramidBuilder) Pyramid() *HeightPyramid {
	samples := make([]Sample, 0, len(b.ranges))
	for id, r := range b.ranges {
		samples = append(samples, Sample{ID: id, Range: r})
	}
	return NewHeightPyramid(samples)
}
