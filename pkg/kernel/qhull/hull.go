package qhull

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
	"github.com/markus-wa/quickhull-go/v2"
)

// hullEpsilons are the coplanarity thresholds tried in turn, relative to the
// diagonal of the point cloud. Later attempts absorb more rounding noise.
var hullEpsilons = []float64{1e-8, 1e-6}

// planeSlack scales a hull epsilon into the distance within which points
// count as lying on a face plane.
const planeSlack = 10

// ConvexHull returns the hull of points with coplanar triangles merged into
// planar faces, and the indices of the points that are hull corners. Every
// input point is checked against every face; a hull that fails the check is
// rebuilt with a coarser epsilon before ErrDegenerate is returned.
func (k *QhullKernel) ConvexHull(points []v3.Vec) (*kernel.Polyhedron, []int, error) {
	if len(points) < 4 {
		return nil, nil, fmt.Errorf("%w: hull needs 4 points, got %d", kernel.ErrDegenerate, len(points))
	}
	bb := bounds(points)
	if !spansVolume(points, k.absTol(bb)) {
		return nil, nil, fmt.Errorf("%w: hull points are coplanar", kernel.ErrDegenerate)
	}
	diag := kernel.BoxDiagonal(bb)
	center := bb.Min.Add(bb.Max).MulScalar(0.5)

	var err error
	for attempt, eps := range hullEpsilons {
		var hull *kernel.Polyhedron
		var vertices []int
		hull, vertices, err = k.hullOnce(points, center, diag, eps)
		if err == nil {
			return hull, vertices, nil
		}
		k.log.Warn("convex hull rejected",
			"attempt", attempt+1,
			"points", len(points),
			"epsilon", eps,
			"error", err)
	}
	return nil, nil, err
}

// hullOnce triangulates the recentred cloud, merges the triangles into faces
// and checks the result.
func (k *QhullKernel) hullOnce(points []v3.Vec, center v3.Vec, diag, eps float64) (hull *kernel.Polyhedron, vertices []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			hull, vertices = nil, nil
			err = fmt.Errorf("%w: quickhull: %v", kernel.ErrDegenerate, r)
		}
	}()

	cloud := make([]r3.Vector, len(points))
	for i, p := range points {
		d := p.Sub(center)
		cloud[i] = r3.Vector{X: d.X, Y: d.Y, Z: d.Z}
	}
	indices := k.triangulate(cloud, eps*diag)
	if len(indices) < 12 || len(indices)%3 != 0 {
		return nil, nil, fmt.Errorf("%w: quickhull returned %d indices", kernel.ErrDegenerate, len(indices))
	}

	planeTol := planeSlack * eps * diag
	hull, vertices = mergeFacets(points, indices, planeTol)
	if len(hull.Faces) < 4 {
		return nil, nil, fmt.Errorf("%w: hull has %d facets", kernel.ErrDegenerate, len(hull.Faces))
	}
	if err := checkConvex(hull, points, planeTol); err != nil {
		return nil, nil, err
	}
	return hull, vertices, nil
}

// quickhullTriangles runs quickhull with an absolute coplanarity threshold.
// quickhull scales its epsilon by the largest coordinate magnitude.
func quickhullTriangles(cloud []r3.Vector, absEps float64) []int {
	var scale float64
	for _, p := range cloud {
		scale = max(scale, math.Abs(p.X), math.Abs(p.Y), math.Abs(p.Z))
	}
	if scale == 0 {
		return nil
	}
	return new(quickhull.QuickHull).ConvexHull(cloud, true, true, absEps/scale).Indices
}

// facetGroup collects the hull triangles lying in one plane.
type facetGroup struct {
	normal  v3.Vec
	offset  float64
	members map[int]struct{}
}

func (g *facetGroup) holds(p v3.Vec, tol float64) bool {
	return math.Abs(g.normal.Dot(p)-g.offset) <= tol
}

// mergeFacets turns a hull triangulation into planar faces. Triangles are
// visited largest first so each plane is defined by its best-conditioned
// triangle; a triangle joins a plane when its corners lie within tol of it.
// Face polygons keep only their corners, so points interior to a face or on
// an edge are not hull vertices.
func mergeFacets(points []v3.Vec, indices []int, tol float64) (*kernel.Polyhedron, []int) {
	used := make(map[int]struct{})
	for _, i := range indices {
		used[i] = struct{}{}
	}
	var centroid v3.Vec
	for i := range used {
		centroid = centroid.Add(points[i])
	}
	centroid = centroid.MulScalar(1 / float64(len(used)))

	type triangle struct {
		corners [3]int
		normal  v3.Vec
		area    float64
	}
	tris := make([]triangle, 0, len(indices)/3)
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := points[indices[t]], points[indices[t+1]], points[indices[t+2]]
		n := b.Sub(a).Cross(c.Sub(a))
		area := n.Length() / 2
		// slivers thinner than tol carry no usable normal
		if longest := math.Max(b.Sub(a).Length(), math.Max(c.Sub(b).Length(), a.Sub(c).Length())); 2*area <= tol*longest {
			continue
		}
		n = n.Normalize()
		if n.Dot(a.Sub(centroid)) < 0 {
			n = n.MulScalar(-1)
		}
		tris = append(tris, triangle{
			corners: [3]int{indices[t], indices[t+1], indices[t+2]},
			normal:  n,
			area:    area,
		})
	}
	sort.SliceStable(tris, func(i, j int) bool { return tris[i].area > tris[j].area })

	var groups []*facetGroup
	for _, tri := range tris {
		var home *facetGroup
		for _, g := range groups {
			if g.normal.Dot(tri.normal) <= 0 {
				continue
			}
			if g.holds(points[tri.corners[0]], tol) && g.holds(points[tri.corners[1]], tol) && g.holds(points[tri.corners[2]], tol) {
				home = g
				break
			}
		}
		if home == nil {
			home = &facetGroup{
				normal:  tri.normal,
				offset:  tri.normal.Dot(points[tri.corners[0]]),
				members: make(map[int]struct{}),
			}
			groups = append(groups, home)
		}
		for _, i := range tri.corners {
			home.members[i] = struct{}{}
		}
	}

	hull := &kernel.Polyhedron{Faces: make([]kernel.Face, 0, len(groups))}
	corners := make(map[int]struct{})
	for _, g := range groups {
		ring := planarHull(points, g.members, g.normal, tol)
		if len(ring) < 3 {
			continue
		}
		offset := math.Inf(-1)
		verts := make([]v3.Vec, len(ring))
		for i, idx := range ring {
			verts[i] = points[idx]
			offset = math.Max(offset, g.normal.Dot(points[idx]))
			corners[idx] = struct{}{}
		}
		hull.Faces = append(hull.Faces, kernel.Face{
			Plane:    kernel.Plane{Normal: g.normal, Offset: offset},
			Vertices: verts,
			Source:   kernel.NoSource,
		})
	}

	vertices := make([]int, 0, len(corners))
	for idx := range corners {
		vertices = append(vertices, idx)
	}
	sort.Ints(vertices)
	return hull, vertices
}

// planarHull returns the corners of the convex polygon spanned by members,
// counter-clockwise seen from the side normal points to. Points within tol
// of an edge are dropped.
func planarHull(points []v3.Vec, members map[int]struct{}, normal v3.Vec, tol float64) []int {
	u, w := kernel.PlaneBasis(normal)
	type planar struct {
		idx  int
		x, y float64
	}
	pts := make([]planar, 0, len(members))
	for idx := range members {
		p := points[idx]
		pts = append(pts, planar{idx: idx, x: p.Dot(u), y: p.Dot(w)})
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].x != pts[j].x {
			return pts[i].x < pts[j].x
		}
		if pts[i].y != pts[j].y {
			return pts[i].y < pts[j].y
		}
		return pts[i].idx < pts[j].idx
	})
	if len(pts) < 3 {
		return nil
	}

	// left reports whether c turns left of a->b by more than tol.
	left := func(a, b, c planar) bool {
		cross := (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
		return cross > tol*math.Hypot(c.x-a.x, c.y-a.y)
	}
	chain := make([]planar, 0, 2*len(pts))
	for _, p := range pts {
		for len(chain) >= 2 && !left(chain[len(chain)-2], chain[len(chain)-1], p) {
			chain = chain[:len(chain)-1]
		}
		chain = append(chain, p)
	}
	lower := len(chain) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(chain) >= lower && !left(chain[len(chain)-2], chain[len(chain)-1], p) {
			chain = chain[:len(chain)-1]
		}
		chain = append(chain, p)
	}
	chain = chain[:len(chain)-1]

	out := make([]int, len(chain))
	for i, p := range chain {
		out[i] = p.idx
	}
	return out
}

// checkConvex reports an error unless every point lies within tol inside
// every face plane of h and h encloses a positive volume.
func checkConvex(h *kernel.Polyhedron, points []v3.Vec, tol float64) error {
	outside := 0
	for _, p := range points {
		for i := range h.Faces {
			if h.Faces[i].Plane.Distance(p) > tol {
				outside++
				break
			}
		}
	}
	if outside > 0 {
		return fmt.Errorf("%w: %d of %d points lie outside the hull faces", kernel.ErrDegenerate, outside, len(points))
	}
	if v := h.Volume(); !(v > 0) {
		return fmt.Errorf("%w: hull volume %g", kernel.ErrDegenerate, v)
	}
	return nil
}

func bounds(points []v3.Vec) sdf.Box3 {
	bb := sdf.Box3{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		bb.Min = bb.Min.Min(p)
		bb.Max = bb.Max.Max(p)
	}
	return bb
}

// spansVolume reports whether points contain a tetrahedron thicker than tol.
func spansVolume(points []v3.Vec, tol float64) bool {
	p0 := points[0]
	far := func(score func(v3.Vec) float64) (v3.Vec, float64) {
		best, bestScore := p0, -1.0
		for _, p := range points {
			if s := score(p); s > bestScore {
				best, bestScore = p, s
			}
		}
		return best, bestScore
	}
	p1, d1 := far(func(p v3.Vec) float64 { return p.Sub(p0).Length() })
	if d1 <= tol {
		return false
	}
	axis := p1.Sub(p0).Normalize()
	p2, d2 := far(func(p v3.Vec) float64 { return p.Sub(p0).Cross(axis).Length() })
	if d2 <= tol {
		return false
	}
	n := p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()
	_, d3 := far(func(p v3.Vec) float64 { return math.Abs(p.Sub(p0).Dot(n)) })
	return d3 > tol
}
