package qhull

import (
	"math"

	"github.com/chazu/cellmesh/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// clip keeps the part of p on the inner side of plane. The new face created
// on the plane records source as its originating seed. If the plane misses p
// the original is returned; if p lies entirely outside an empty polyhedron is
// returned.
func clip(p *kernel.Polyhedron, plane kernel.Plane, source int, tol float64) *kernel.Polyhedron {
	inside, outside := 0, 0
	for _, v := range p.Vertices() {
		d := plane.Distance(v)
		switch {
		case d > tol:
			outside++
		case d < -tol:
			inside++
		}
	}
	if outside == 0 {
		return p
	}
	if inside == 0 {
		return &kernel.Polyhedron{}
	}

	out := &kernel.Polyhedron{Faces: make([]kernel.Face, 0, len(p.Faces)+1)}
	var capPts []v3.Vec
	for _, f := range p.Faces {
		poly, onPlane := clipPolygon(f.Vertices, plane, tol)
		capPts = append(capPts, onPlane...)
		if len(poly) < 3 {
			continue
		}
		nf := kernel.Face{Plane: f.Plane, Vertices: poly, Source: f.Source}
		if nf.Area() <= tol*tol {
			continue
		}
		out.Faces = append(out.Faces, nf)
	}

	capPts = dedupe(capPts, tol)
	if len(capPts) >= 3 {
		capFace := kernel.Face{
			Plane:    plane,
			Vertices: kernel.OrderAround(capPts, plane.Normal),
			Source:   source,
		}
		if capFace.Area() > tol*tol {
			out.Faces = append(out.Faces, capFace)
		}
	}
	if len(out.Faces) < 4 {
		return &kernel.Polyhedron{}
	}
	return out
}

// clipPolygon runs one Sutherland–Hodgman pass of poly against the plane.
// It also returns the vertices of the result that lie on the plane.
func clipPolygon(poly []v3.Vec, plane kernel.Plane, tol float64) (kept, onPlane []v3.Vec) {
	n := len(poly)
	for i := 0; i < n; i++ {
		cur, next := poly[i], poly[(i+1)%n]
		dc, dn := plane.Distance(cur), plane.Distance(next)
		if dc <= tol {
			kept = append(kept, cur)
			if dc >= -tol {
				onPlane = append(onPlane, cur)
			}
		}
		if (dc < -tol && dn > tol) || (dc > tol && dn < -tol) {
			x := intersect(cur, next, plane)
			kept = append(kept, x)
			onPlane = append(onPlane, x)
		}
	}
	return kept, onPlane
}

// intersect returns the point where segment ab crosses the plane. The
// endpoints are put in a fixed order first so that the two faces sharing an
// edge compute the same point.
func intersect(a, b v3.Vec, plane kernel.Plane) v3.Vec {
	if less(b, a) {
		a, b = b, a
	}
	da, db := plane.Distance(a), plane.Distance(b)
	t := da / (da - db)
	return a.Add(b.Sub(a).MulScalar(t))
}

func less(a, b v3.Vec) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// dedupe drops points within tol of an earlier point.
func dedupe(pts []v3.Vec, tol float64) []v3.Vec {
	out := make([]v3.Vec, 0, len(pts))
	for _, p := range pts {
		dup := false
		for _, q := range out {
			if p.Sub(q).Length() <= tol {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// point2 is a point in the 2-D basis of a face plane.
type point2 struct{ x, y float64 }

// overlapArea returns the area shared by two coplanar convex faces.
func overlapArea(a, b *kernel.Face) float64 {
	u, w := kernel.PlaneBasis(a.Plane.Normal)
	pa := project(a.Vertices, u, w)
	pb := project(b.Vertices, u, w)
	if len(pa) < 3 || len(pb) < 3 {
		return 0
	}
	inter := pb
	for i := range pa {
		if len(inter) == 0 {
			return 0
		}
		inter = clipEdge(inter, pa[i], pa[(i+1)%len(pa)])
	}
	return math.Abs(signedArea(inter))
}

// project maps points onto the (u, w) basis and winds them counter-clockwise.
func project(pts []v3.Vec, u, w v3.Vec) []point2 {
	out := make([]point2, len(pts))
	for i, p := range pts {
		out[i] = point2{p.Dot(u), p.Dot(w)}
	}
	if signedArea(out) < 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// clipEdge keeps the part of a convex polygon left of the directed edge ab.
func clipEdge(poly []point2, a, b point2) []point2 {
	side := func(p point2) float64 {
		return (b.x-a.x)*(p.y-a.y) - (b.y-a.y)*(p.x-a.x)
	}
	var out []point2
	n := len(poly)
	for i := 0; i < n; i++ {
		cur, next := poly[i], poly[(i+1)%n]
		sc, sn := side(cur), side(next)
		if sc >= 0 {
			out = append(out, cur)
		}
		if (sc >= 0) != (sn >= 0) {
			t := sc / (sc - sn)
			out = append(out, point2{cur.x + t*(next.x-cur.x), cur.y + t*(next.y-cur.y)})
		}
	}
	return out
}

func signedArea(poly []point2) float64 {
	var s float64
	for i := range poly {
		j := (i + 1) % len(poly)
		s += poly[i].x*poly[j].y - poly[j].x*poly[i].y
	}
	return s / 2
}
