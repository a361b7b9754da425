// Package geom implements the small double-precision vector/matrix/AABB
// kernel the draw-list generator and AABB decorator need. No linear-algebra
// library appears anywhere in the reference pack surveyed for this module
// (checked every example repo's go.mod and the standalone reference files);
// see DESIGN.md for why this stays on the standard library rather than
// guessing at an ungrounded ecosystem dependency.
package geom

import "math"

// Vec3 is a double-precision 3D vector, used for world-space positions in
// meters (camera position, AABB corners).
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a.X * s, a.Y * s, a.Z * s}
}
func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Length() float64    { return math.Sqrt(a.Dot(a)) }

// Vec4 is a homogeneous 4-vector, used for plane coefficients and matrix rows.
type Vec4 struct {
	X, Y, Z, W float64
}

// Mat4 is a column-major double-precision 4x4 matrix, matching the memory
// layout every explicit graphics API (and every CPU math library grounding
// this package) expects when the matrix is eventually uploaded.
type Mat4 [16]float64

// Identity returns the 4x4 identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// MulVec4 applies m to v (column-vector convention: m * v).
func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		X: m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]*v.W,
		Y: m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]*v.W,
		Z: m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]*v.W,
		W: m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]*v.W,
	}
}

// Mul returns a*b (a applied after b, matching column-major composition).
func (a Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// AABB3 is an axis-aligned bounding box in world-space (EPSG:3857 x/y,
// meters z).
type AABB3 struct {
	Min, Max Vec3
}

// Union returns the smallest AABB3 containing both a and b.
func (a AABB3) Union(b AABB3) AABB3 {
	return AABB3{
		Min: Vec3{math.Min(a.Min.X, b.Min.X), math.Min(a.Min.Y, b.Min.Y), math.Min(a.Min.Z, b.Min.Z)},
		Max: Vec3{math.Max(a.Max.X, b.Max.X), math.Max(a.Max.Y, b.Max.Y), math.Max(a.Max.Z, b.Max.Z)},
	}
}

// Contains2D reports whether b's x/y extent lies within a's x/y extent
// (used by the AABB-decorator monotonicity check, L2).
func (a AABB3) Contains2D(b AABB3) bool {
	return b.Min.X >= a.Min.X-1e-6 && b.Max.X <= a.Max.X+1e-6 &&
		b.Min.Y >= a.Min.Y-1e-6 && b.Max.Y <= a.Max.Y+1e-6
}

// Center returns the midpoint of the box.
func (a AABB3) Center() Vec3 {
	return a.Min.Add(a.Max).Scale(0.5)
}

// LongestEdge returns the length of the longest of the box's three edges —
// the "representative edge" the screen-space-error metric projects.
func (a AABB3) LongestEdge() float64 {
	d := a.Max.Sub(a.Min)
	edge := d.X
	if d.Y > edge {
		edge = d.Y
	}
	if d.Z > edge {
		edge = d.Z
	}
	return edge
}

// Corners returns the 8 corners of the box.
func (a AABB3) Corners() [8]Vec3 {
	return [8]Vec3{
		{a.Min.X, a.Min.Y, a.Min.Z}, {a.Max.X, a.Min.Y, a.Min.Z},
		{a.Min.X, a.Max.Y, a.Min.Z}, {a.Max.X, a.Max.Y, a.Min.Z},
		{a.Min.X, a.Min.Y, a.Max.Z}, {a.Max.X, a.Min.Y, a.Max.Z},
		{a.Min.X, a.Max.Y, a.Max.Z}, {a.Max.X, a.Max.Y, a.Max.Z},
	}
}

// Plane is a frustum plane in Ax+By+Cz+D=0 form, with (A,B,C) assumed
// normalized so that positive distance means "in front of" (inside) the
// plane.
type Plane struct {
	Normal Vec3
	D      float64
}

// SignedDistance returns the signed distance from p to the plane.
func (pl Plane) SignedDistance(p Vec3) float64 {
	return pl.Normal.Dot(p) + pl.D
}

// Frustum is the six planes of a view frustum, normals pointing inward.
type Frustum struct {
	Planes [6]Plane
}

// IntersectsAABB performs a conservative AABB-vs-frustum test: for each
// plane it tests the AABB corner most likely to be in front of the plane
// (the "positive vertex"). If that corner is behind any plane, the box is
// fully outside and can be culled. False positives (reporting an outside
// box as intersecting) are acceptable per spec; false negatives are not,
// which is exactly what testing the positive vertex (rather than the
// center, or an arbitrary corner) guarantees.
func (f Frustum) IntersectsAABB(box AABB3) bool {
	for _, pl := range f.Planes {
		positive := Vec3{
			X: pickMax(pl.Normal.X, box.Min.X, box.Max.X),
			Y: pickMax(pl.Normal.Y, box.Min.Y, box.Max.Y),
			Z: pickMax(pl.Normal.Z, box.Min.Z, box.Max.Z),
		}
		if pl.SignedDistance(positive) < 0 {
			return false
		}
	}
	return true
}

func pickMax(n, lo, hi float64) float64 {
	if n >= 0 {
		return hi
	}
	return lo
}
