package kernel

import (
	"math"
	"sort"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// NoSource marks a face that was not produced by a bisector, such as a
// domain wall or a hull triangle.
const NoSource = -1

// Plane is the half-space Normal·x <= Offset. Normal is unit length and
// points out of the solid.
type Plane struct {
	Normal v3.Vec  `json:"normal"`
	Offset float64 `json:"offset"`
}

// PlaneThrough returns the plane with the given outward normal that passes
// through p.
func PlaneThrough(normal, p v3.Vec) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Offset: n.Dot(p)}
}

// Distance returns the signed distance from x to the plane; negative is inside.
func (pl Plane) Distance(x v3.Vec) float64 {
	return pl.Normal.Dot(x) - pl.Offset
}

// Face is a planar convex polygon on the boundary of a polyhedron.
type Face struct {
	Plane    Plane    `json:"plane"`
	Vertices []v3.Vec `json:"vertices"` // counter-clockwise seen from outside
	Source   int      `json:"source"`   // seed index of the bisector, or NoSource
}

// Area returns the area of the face polygon.
func (f *Face) Area() float64 {
	if len(f.Vertices) < 3 {
		return 0
	}
	var sum v3.Vec
	v0 := f.Vertices[0]
	for i := 1; i+1 < len(f.Vertices); i++ {
		a := f.Vertices[i].Sub(v0)
		b := f.Vertices[i+1].Sub(v0)
		sum = sum.Add(a.Cross(b))
	}
	return sum.Length() / 2
}

// Polyhedron is a convex solid described by its boundary faces. A polyhedron
// with no faces is empty.
type Polyhedron struct {
	Faces []Face `json:"faces"`
}

// IsEmpty reports whether the polyhedron has no boundary.
func (p *Polyhedron) IsEmpty() bool {
	return p == nil || len(p.Faces) == 0
}

// FacetCount returns the number of boundary facets.
func (p *Polyhedron) FacetCount() int {
	if p == nil {
		return 0
	}
	return len(p.Faces)
}

// Vertices returns the distinct corner points of the polyhedron in first-seen
// order.
func (p *Polyhedron) Vertices() []v3.Vec {
	if p.IsEmpty() {
		return nil
	}
	seen := make(map[v3.Vec]struct{})
	var out []v3.Vec
	for _, f := range p.Faces {
		for _, v := range f.Vertices {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Volume returns the enclosed volume. Each face contributes the pyramid it
// spans with the origin, so vertex winding does not matter.
func (p *Polyhedron) Volume() float64 {
	if p.IsEmpty() {
		return 0
	}
	var vol float64
	for i := range p.Faces {
		f := &p.Faces[i]
		vol += f.Area() * f.Plane.Offset / 3
	}
	return vol
}

// Centroid returns the mean of the polyhedron's vertices. For a convex
// polyhedron this point is always interior.
func (p *Polyhedron) Centroid() v3.Vec {
	verts := p.Vertices()
	if len(verts) == 0 {
		return v3.Vec{}
	}
	var sum v3.Vec
	for _, v := range verts {
		sum = sum.Add(v)
	}
	return sum.MulScalar(1 / float64(len(verts)))
}

// BoundingBox returns the axis-aligned bounds of the polyhedron.
func (p *Polyhedron) BoundingBox() sdf.Box3 {
	verts := p.Vertices()
	if len(verts) == 0 {
		return sdf.Box3{}
	}
	bb := sdf.Box3{Min: verts[0], Max: verts[0]}
	for _, v := range verts[1:] {
		bb.Min = v3.Vec{X: math.Min(bb.Min.X, v.X), Y: math.Min(bb.Min.Y, v.Y), Z: math.Min(bb.Min.Z, v.Z)}
		bb.Max = v3.Vec{X: math.Max(bb.Max.X, v.X), Y: math.Max(bb.Max.Y, v.Y), Z: math.Max(bb.Max.Z, v.Z)}
	}
	return bb
}

// Contains reports whether x satisfies every face plane within tol.
// A negative tol tests for strict interior membership.
func (p *Polyhedron) Contains(x v3.Vec, tol float64) bool {
	if p.IsEmpty() {
		return false
	}
	for i := range p.Faces {
		if p.Faces[i].Plane.Distance(x) > tol {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (p *Polyhedron) Clone() *Polyhedron {
	if p == nil {
		return nil
	}
	out := &Polyhedron{Faces: make([]Face, len(p.Faces))}
	for i, f := range p.Faces {
		out.Faces[i] = Face{
			Plane:    f.Plane,
			Vertices: append([]v3.Vec(nil), f.Vertices...),
			Source:   f.Source,
		}
	}
	return out
}

// ToMesh fans every face into triangles wound to match its outward normal.
// Vertices are not shared between faces so each triangle carries a flat
// normal.
func (p *Polyhedron) ToMesh() *Mesh {
	m := &Mesh{}
	if p.IsEmpty() {
		return m
	}
	for _, f := range p.Faces {
		n := f.Plane.Normal
		for i := 1; i+1 < len(f.Vertices); i++ {
			a, b, c := f.Vertices[0], f.Vertices[i], f.Vertices[i+1]
			if b.Sub(a).Cross(c.Sub(a)).Dot(n) < 0 {
				b, c = c, b
			}
			base := uint32(m.VertexCount())
			for _, v := range []v3.Vec{a, b, c} {
				m.Vertices = append(m.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
				m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
			}
			m.Indices = append(m.Indices, base, base+1, base+2)
		}
	}
	return m
}

// BoxPolyhedron returns the six-faced polyhedron of an axis-aligned box.
func BoxPolyhedron(b sdf.Box3) *Polyhedron {
	lo, hi := b.Min, b.Max
	corner := func(x, y, z float64) v3.Vec { return v3.Vec{X: x, Y: y, Z: z} }
	type side struct {
		normal v3.Vec
		pts    []v3.Vec
	}
	sides := []side{
		{v3.Vec{X: -1}, []v3.Vec{corner(lo.X, lo.Y, lo.Z), corner(lo.X, hi.Y, lo.Z), corner(lo.X, hi.Y, hi.Z), corner(lo.X, lo.Y, hi.Z)}},
		{v3.Vec{X: 1}, []v3.Vec{corner(hi.X, lo.Y, lo.Z), corner(hi.X, hi.Y, lo.Z), corner(hi.X, hi.Y, hi.Z), corner(hi.X, lo.Y, hi.Z)}},
		{v3.Vec{Y: -1}, []v3.Vec{corner(lo.X, lo.Y, lo.Z), corner(hi.X, lo.Y, lo.Z), corner(hi.X, lo.Y, hi.Z), corner(lo.X, lo.Y, hi.Z)}},
		{v3.Vec{Y: 1}, []v3.Vec{corner(lo.X, hi.Y, lo.Z), corner(hi.X, hi.Y, lo.Z), corner(hi.X, hi.Y, hi.Z), corner(lo.X, hi.Y, hi.Z)}},
		{v3.Vec{Z: -1}, []v3.Vec{corner(lo.X, lo.Y, lo.Z), corner(hi.X, lo.Y, lo.Z), corner(hi.X, hi.Y, lo.Z), corner(lo.X, hi.Y, lo.Z)}},
		{v3.Vec{Z: 1}, []v3.Vec{corner(lo.X, lo.Y, hi.Z), corner(hi.X, lo.Y, hi.Z), corner(hi.X, hi.Y, hi.Z), corner(lo.X, hi.Y, hi.Z)}},
	}
	p := &Polyhedron{Faces: make([]Face, 0, len(sides))}
	for _, s := range sides {
		p.Faces = append(p.Faces, Face{
			Plane:    PlaneThrough(s.normal, s.pts[0]),
			Vertices: OrderAround(s.pts, s.normal),
			Source:   NoSource,
		})
	}
	return p
}

// OrderAround sorts coplanar points counter-clockwise around their mean as
// seen from the side normal points to. The input slice is not modified.
func OrderAround(pts []v3.Vec, normal v3.Vec) []v3.Vec {
	out := append([]v3.Vec(nil), pts...)
	if len(out) < 3 {
		return out
	}
	var c v3.Vec
	for _, p := range out {
		c = c.Add(p)
	}
	c = c.MulScalar(1 / float64(len(out)))
	u, w := PlaneBasis(normal)
	angle := func(p v3.Vec) float64 {
		d := p.Sub(c)
		return math.Atan2(d.Dot(w), d.Dot(u))
	}
	sort.SliceStable(out, func(i, j int) bool { return angle(out[i]) < angle(out[j]) })
	return out
}

// PlaneBasis returns two unit vectors u, w spanning the plane orthogonal to
// normal such that u × w points along normal.
func PlaneBasis(normal v3.Vec) (u, w v3.Vec) {
	n := normal.Normalize()
	axis := v3.Vec{X: 1}
	if math.Abs(n.X) > 0.9 {
		axis = v3.Vec{Y: 1}
	}
	u = n.Cross(axis).Normalize()
	w = n.Cross(u)
	return u, w
}

// BoxesOverlap reports whether two boxes intersect once each is grown by tol.
func BoxesOverlap(a, b sdf.Box3, tol float64) bool {
	return a.Min.X-tol <= b.Max.X && b.Min.X-tol <= a.Max.X &&
		a.Min.Y-tol <= b.Max.Y && b.Min.Y-tol <= a.Max.Y &&
		a.Min.Z-tol <= b.Max.Z && b.Min.Z-tol <= a.Max.Z
}

// BoxDiagonal returns the length of the box diagonal.
func BoxDiagonal(b sdf.Box3) float64 {
	return b.Max.Sub(b.Min).Length()
}
