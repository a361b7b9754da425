package drawlist

import (
	"testing"

	"github.com/alpinemaps/terrainclient/internal/aabb"
	"github.com/alpinemaps/terrainclient/internal/geom"
	"github.com/alpinemaps/terrainclient/internal/tileid"
)

func testCamera(height float64) Camera {
	return Camera{
		Position:   geom.Vec3{X: 0, Y: 0, Z: height},
		View:       geom.Identity(),
		Projection: geom.Mat4{0: 1, 5: 1.5, 10: 1, 15: 1},
		Viewport:   [2]uint32{1920, 1080},
		Frustum:    geom.Frustum{},
	}
}

// The requested set is an antichain w.r.t. the tile-parent relation — no
// returned id is an ancestor of another.
func TestRequestedSetIsAntichain(t *testing.T) {
	dec := aabb.New(nil)
	gen := New(dec, 2.0, []tileid.ID{{Zoom: 0, X: 0, Y: 0}})

	set := gen.RequestedSet(testCamera(50))
	for i, a := range set {
		for j, b := range set {
			if i == j {
				continue
			}
			if a.IsAncestorOf(b) {
				t.Fatalf("requested set is not an antichain: %v is an ancestor of %v", a, b)
			}
		}
	}
	if len(set) == 0 {
		t.Fatal("expected at least one tile in the requested set")
	}
}

func TestHigherCameraAcceptsCoarserTiles(t *testing.T) {
	dec := aabb.New(nil)
	gen := New(dec, 2.0, []tileid.ID{{Zoom: 0, X: 0, Y: 0}})

	far := gen.RequestedSet(testCamera(10_000_000))
	near := gen.RequestedSet(testCamera(10))

	maxZoom := func(set []tileid.ID) uint8 {
		var m uint8
		for _, id := range set {
			if id.Zoom > m {
				m = id.Zoom
			}
		}
		return m
	}
	if maxZoom(far) >= maxZoom(near) {
		t.Fatalf("expected a much closer camera to refine deeper: far=%d near=%d", maxZoom(far), maxZoom(near))
	}
}

func TestCullRemovesFullyOutsideTiles(t *testing.T) {
	dec := aabb.New(nil)
	gen := New(dec, 2.0, nil)

	inside := tileid.ID{Zoom: 1, X: 0, Y: 0}
	set := []tileid.ID{inside}

	// Six identical planes with normal +X and a very large D put the whole
	// tile in front of every plane, so the tile is kept.
	keepAll := geom.Frustum{Planes: [6]geom.Plane{
		{Normal: geom.Vec3{X: 1}, D: 1e9},
		{Normal: geom.Vec3{X: 1}, D: 1e9},
		{Normal: geom.Vec3{X: 1}, D: 1e9},
		{Normal: geom.Vec3{X: 1}, D: 1e9},
		{Normal: geom.Vec3{X: 1}, D: 1e9},
		{Normal: geom.Vec3{X: 1}, D: 1e9},
	}}
	if kept := gen.Cull(set, keepAll); len(kept) != 1 {
		t.Fatalf("expected the tile to survive a pass-everything frustum, got %v", kept)
	}

	rejectAll := geom.Frustum{Planes: [6]geom.Plane{
		{Normal: geom.Vec3{X: 1}, D: -1e9},
		{Normal: geom.Vec3{X: 1}, D: -1e9},
		{Normal: geom.Vec3{X: 1}, D: -1e9},
		{Normal: geom.Vec3{X: 1}, D: -1e9},
		{Normal: geom.Vec3{X: 1}, D: -1e9},
		{Normal: geom.Vec3{X: 1}, D: -1e9},
	}}
	if kept := gen.Cull(set, rejectAll); len(kept) != 0 {
		t.Fatalf("expected the tile to be culled by a reject-everything frustum, got %v", kept)
	}
}

func TestSetPermissibleScreenSpaceErrorAffectsFutureCalls(t *testing.T) {
	dec := aabb.New(nil)
	gen := New(dec, 0.5, []tileid.ID{{Zoom: 0, X: 0, Y: 0}})

	strict := gen.RequestedSet(testCamera(1000))
	gen.SetPermissibleScreenSpaceError(1000)
	lenient := gen.RequestedSet(testCamera(1000))

	if len(lenient) >= len(strict) {
		t.Fatalf("raising the threshold should coarsen the result: strict=%d lenient=%d", len(strict), len(lenient))
	}
}
