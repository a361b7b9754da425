// Package drawlist selects, for a given camera, the set of tiles to render:
// a top-down quadtree traversal refined by screen-space error and pruned by
// frustum culling. It is pure and side-effect free, so either the worker or
// the render thread may call it with a value-copied Camera.
package drawlist

import (
	"math"

	"github.com/alpinemaps/terrainclient/internal/aabb"
	"github.com/alpinemaps/terrainclient/internal/geom"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// Camera is the value-copied boundary type collaborators pass in. Position,
// view and projection stay double precision on the CPU to avoid float32
// jitter at large world coordinates; Viewport is in physical pixels.
type Camera struct {
	Position   geom.Vec3
	View       geom.Mat4
	Projection geom.Mat4
	Viewport   [2]uint32
	Frustum    geom.Frustum
}

// viewProjection combines view and projection for screen-space-error
// estimation.
func (c Camera) viewProjection() geom.Mat4 {
	return c.Projection.Mul(c.View)
}

// DefaultMaxZoom matches the geometry layer's maximum; imagery and POI
// generators may be configured with a different ceiling via WithMaxZoom.
const DefaultMaxZoom = 18

// Generator implements requested_set/cull against an AABB-decorated
// quadtree.
type Generator struct {
	decorator *aabb.Decorator
	threshold float64
	maxZoom   uint8
	rootTiles []tileid.ID
}

// New builds a Generator over the given AABB decorator. permissibleSSE is
// the initial screen-space-error threshold (mutable afterward via
// SetPermissibleScreenSpaceError). roots are the quadtree's starting tiles,
// typically just the single (0,0,0) root.
func New(decorator *aabb.Decorator, permissibleSSE float64, roots []tileid.ID) *Generator {
	return &Generator{
		decorator: decorator,
		threshold: permissibleSSE,
		maxZoom:   DefaultMaxZoom,
		rootTiles: roots,
	}
}

// WithMaxZoom overrides the refinement ceiling (e.g. 19 for imagery).
func (g *Generator) WithMaxZoom(z uint8) *Generator {
	g.maxZoom = z
	return g
}

// SetPermissibleScreenSpaceError changes the refinement threshold for
// subsequent calls; it invalidates nothing, it just changes future results.
func (g *Generator) SetPermissibleScreenSpaceError(sse float64) {
	g.threshold = sse
}

// PermissibleScreenSpaceError reports the current threshold.
func (g *Generator) PermissibleScreenSpaceError() float64 { return g.threshold }

// pixelError estimates the screen-space error of box for camera: the
// projected length of the box's longest edge, divided by the render
// target's pixel pitch, clamped against near-plane degeneracy.
func pixelError(box geom.AABB3, camera Camera) float64 {
	center := box.Center()
	toCamera := geom.Vec3{X: center.X - camera.Position.X, Y: center.Y - camera.Position.Y, Z: center.Z - camera.Position.Z}
	distance := toCamera.Length()
	const minDistance = 1.0 // meters; clamps near-plane degeneracy
	if distance < minDistance {
		distance = minDistance
	}

	edge := box.LongestEdge()
	vp := camera.viewProjection()
	// Approximate the projected pixel size of `edge` meters at `distance`
	// using the projection matrix's vertical scale (row 1, col 1) the way a
	// perspective projection encodes 1/tan(fovy/2).
	verticalScale := vp[5]
	if verticalScale == 0 {
		verticalScale = 1
	}
	projected := (edge * math.Abs(verticalScale)) / distance
	halfHeight := float64(camera.Viewport[1]) / 2
	if halfHeight <= 0 {
		halfHeight = 1
	}
	return projected * halfHeight
}

// ScreenSpaceError exposes pixelError for callers (RenderingContext) that
// need a priority signal per accepted tile beyond membership in the set —
// e.g. to rank same-zoom siblings when feeding Scheduler.Evaluate.
func (g *Generator) ScreenSpaceError(id tileid.ID, camera Camera) float64 {
	return pixelError(g.decorator.Aabb(id), camera)
}

// RequestedSet performs the top-down refinement traversal: a node is
// accepted once its screen-space error falls at or below the threshold, or
// once it reaches maxZoom. Accepted nodes are always a maximal antichain
// w.r.t. the tile-parent relation, because the traversal stops descending
// the instant a node is accepted.
func (g *Generator) RequestedSet(camera Camera) []tileid.ID {
	var result []tileid.ID
	var visit func(id tileid.ID)
	visit = func(id tileid.ID) {
		box := g.decorator.Aabb(id)
		sse := pixelError(box, camera)
		if sse > g.threshold && id.Zoom < g.maxZoom {
			for _, child := range id.Children() {
				visit(child)
			}
			return
		}
		result = append(result, id)
	}
	for _, root := range g.rootTiles {
		visit(root)
	}
	return result
}

// Cull removes ids whose AABB is fully outside frustum. False positives
// (keeping a tile that's actually outside) are acceptable; false negatives
// are forbidden, matching Frustum.IntersectsAABB's conservative test.
func (g *Generator) Cull(set []tileid.ID, frustum geom.Frustum) []tileid.ID {
	kept := make([]tileid.ID, 0, len(set))
	for _, id := range set {
		box := g.decorator.Aabb(id)
		if frustum.IntersectsAABB(box) {
			kept = append(kept, id)
		}
	}
	return kept
}
