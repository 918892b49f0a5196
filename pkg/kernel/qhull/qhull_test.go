package qhull

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/chazu/cellmesh/pkg/logging"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
)

func testDomain() sdf.Box3 {
	return sdf.Box3{Min: v3.Vec{X: -100, Y: -100, Z: -100}, Max: v3.Vec{X: 100, Y: 100, Z: 100}}
}

func approx(a, b, rel float64) bool {
	return math.Abs(a-b) <= rel*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestBuildPartitionTwoSeeds(t *testing.T) {
	k := New()
	seeds := []v3.Vec{{X: -50}, {X: 50}}
	part, err := k.BuildPartition(seeds, testDomain())
	if err != nil {
		t.Fatalf("BuildPartition: %v", err)
	}
	if len(part.Regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(part.Regions))
	}
	for i, r := range part.Regions {
		if got, want := r.Volume(), 200.0*200.0*100.0; !approx(got, want, 1e-9) {
			t.Errorf("region %d volume: got %f, want %f", i, got, want)
		}
		if !r.Contains(seeds[i], 0) {
			t.Errorf("region %d does not contain its seed", i)
		}
		if got := r.FacetCount(); got != 6 {
			t.Errorf("region %d: got %d facets, want 6", i, got)
		}
	}
	if !k.AreAdjacent(part.Regions[0], part.Regions[1]) {
		t.Error("expected the two halves to be adjacent")
	}

	var bisector int
	for _, f := range part.Regions[0].Faces {
		if f.Source == 1 {
			bisector++
		}
	}
	if bisector != 1 {
		t.Errorf("got %d faces from seed 1, want 1", bisector)
	}
}

func TestBuildPartitionCoversDomain(t *testing.T) {
	k := New()
	seeds := []v3.Vec{
		{X: -60, Y: -20, Z: 10},
		{X: 30, Y: 40, Z: -70},
		{X: 5, Y: -80, Z: 55},
		{X: 70, Y: 10, Z: 20},
		{X: -10, Y: 60, Z: -30},
	}
	part, err := k.BuildPartition(seeds, testDomain())
	if err != nil {
		t.Fatalf("BuildPartition: %v", err)
	}
	var total float64
	for i, r := range part.Regions {
		total += r.Volume()
		if !r.Contains(seeds[i], 0) {
			t.Errorf("region %d does not contain its seed", i)
		}
		for j, s := range seeds {
			if j != i && r.Contains(s, -1e-6) {
				t.Errorf("region %d strictly contains seed %d", i, j)
			}
		}
	}
	if want := 200.0 * 200.0 * 200.0; !approx(total, want, 1e-6) {
		t.Errorf("total volume: got %f, want %f", total, want)
	}
}

func TestBuildPartitionAdjacency(t *testing.T) {
	k := New()
	seeds := []v3.Vec{{X: -75}, {X: -25}, {X: 25}, {X: 75}}
	part, err := k.BuildPartition(seeds, testDomain())
	if err != nil {
		t.Fatalf("BuildPartition: %v", err)
	}

	tests := []struct {
		a, b int
		want bool
	}{
		{0, 1, true},
		{1, 2, true},
		{2, 3, true},
		{0, 2, false},
		{0, 3, false},
		{1, 3, false},
	}
	for _, tt := range tests {
		if got := k.AreAdjacent(part.Regions[tt.a], part.Regions[tt.b]); got != tt.want {
			t.Errorf("AreAdjacent(%d, %d): got %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := k.AreAdjacent(part.Regions[tt.b], part.Regions[tt.a]); got != tt.want {
			t.Errorf("AreAdjacent(%d, %d): got %v, want %v", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestBuildPartitionEdgeContactIsNotAdjacent(t *testing.T) {
	k := New()
	// Four seeds on the corners of a square meet along a single line at the
	// origin; diagonal pairs touch only on that edge.
	seeds := []v3.Vec{{X: -50, Y: -50}, {X: 50, Y: -50}, {X: 50, Y: 50}, {X: -50, Y: 50}}
	part, err := k.BuildPartition(seeds, testDomain())
	if err != nil {
		t.Fatalf("BuildPartition: %v", err)
	}
	if k.AreAdjacent(part.Regions[0], part.Regions[2]) {
		t.Error("diagonal regions should not be adjacent")
	}
	if !k.AreAdjacent(part.Regions[0], part.Regions[1]) {
		t.Error("side regions should be adjacent")
	}
}

func TestBuildPartitionNearCoincidentSeeds(t *testing.T) {
	k := New()
	seeds := []v3.Vec{{X: 10}, {X: 10 + 1e-9}, {X: -40}}
	part, err := k.BuildPartition(seeds, testDomain())
	if err != nil {
		t.Fatalf("BuildPartition: %v", err)
	}
	a, b := part.Regions[0], part.Regions[1]
	if !k.IsContained(a, b) || !k.IsContained(b, a) {
		t.Error("near-coincident seeds should share a territory")
	}
	if k.IsContained(part.Regions[2], a) {
		t.Error("distinct territory reported as contained")
	}
}

func TestBuildPartitionErrors(t *testing.T) {
	k := New()
	tests := []struct {
		name   string
		seeds  []v3.Vec
		domain sdf.Box3
		want   error
	}{
		{"no seeds", nil, testDomain(), kernel.ErrInsufficientSeeds},
		{"outside domain", []v3.Vec{{X: 500}}, testDomain(), kernel.ErrDegenerate},
		{"nan seed", []v3.Vec{{X: math.NaN()}}, testDomain(), kernel.ErrDegenerate},
		{"flat domain", []v3.Vec{{}}, sdf.Box3{Min: v3.Vec{X: -1, Y: -1}, Max: v3.Vec{X: 1, Y: 1}}, kernel.ErrDegenerate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.BuildPartition(tt.seeds, tt.domain)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestIsContained(t *testing.T) {
	k := New()
	outer := kernel.BoxPolyhedron(sdf.Box3{Min: v3.Vec{X: -10, Y: -10, Z: -10}, Max: v3.Vec{X: 10, Y: 10, Z: 10}})
	inner := kernel.BoxPolyhedron(sdf.Box3{Min: v3.Vec{X: -1, Y: -1, Z: -1}, Max: v3.Vec{X: 1, Y: 1, Z: 1}})
	shifted := kernel.BoxPolyhedron(sdf.Box3{Min: v3.Vec{X: 9, Y: -1, Z: -1}, Max: v3.Vec{X: 11, Y: 1, Z: 1}})
	far := kernel.BoxPolyhedron(sdf.Box3{Min: v3.Vec{X: 50, Y: 50, Z: 50}, Max: v3.Vec{X: 51, Y: 51, Z: 51}})

	if !k.IsContained(inner, outer) {
		t.Error("inner box should be contained")
	}
	if k.IsContained(outer, inner) {
		t.Error("outer box should not be contained in inner")
	}
	if k.IsContained(shifted, outer) {
		t.Error("overhanging box should not be contained")
	}
	if k.IsContained(far, outer) {
		t.Error("disjoint box should not be contained")
	}
	if !k.IsContained(outer, outer) {
		t.Error("a polyhedron contains itself")
	}
	if k.IsContained(&kernel.Polyhedron{}, outer) {
		t.Error("empty polyhedron should not be contained")
	}
}

func TestConvexHullCube(t *testing.T) {
	k := New()
	points := []v3.Vec{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
		{X: 0.5, Y: 0.5, Z: 0.5}, // interior
	}
	hull, verts, err := k.ConvexHull(points)
	if err != nil {
		t.Fatalf("ConvexHull: %v", err)
	}
	if len(verts) != 8 {
		t.Fatalf("got %d hull vertices, want 8", len(verts))
	}
	for i, v := range verts {
		if v != i {
			t.Errorf("vertex %d: got index %d, want %d", i, v, i)
		}
	}
	if got := hull.Volume(); !approx(got, 1, 1e-9) {
		t.Errorf("volume: got %f, want 1", got)
	}
	if got := hull.FacetCount(); got != 6 {
		t.Errorf("got %d facets, want 6", got)
	}
	c := hull.Centroid()
	for i, f := range hull.Faces {
		if f.Plane.Distance(c) >= 0 {
			t.Errorf("face %d normal points inward", i)
		}
	}
}

func TestConvexHullTetrahedron(t *testing.T) {
	k := New()
	points := []v3.Vec{{}, {X: 1}, {Y: 1}, {Z: 1}}
	hull, verts, err := k.ConvexHull(points)
	if err != nil {
		t.Fatalf("ConvexHull: %v", err)
	}
	if len(verts) != 4 {
		t.Errorf("got %d vertices, want 4", len(verts))
	}
	if got := hull.Volume(); !approx(got, 1.0/6, 1e-9) {
		t.Errorf("volume: got %f, want %f", got, 1.0/6)
	}
}

func TestConvexHullDegenerate(t *testing.T) {
	k := New()
	tests := []struct {
		name   string
		points []v3.Vec
	}{
		{"too few", []v3.Vec{{}, {X: 1}, {Y: 1}}},
		{"coincident", []v3.Vec{{}, {}, {}, {}, {}}},
		{"collinear", []v3.Vec{{}, {X: 1}, {X: 2}, {X: 3}}},
		{"coplanar", []v3.Vec{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}, {X: 0.5, Y: 0.2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := k.ConvexHull(tt.points)
			if !errors.Is(err, kernel.ErrDegenerate) {
				t.Errorf("got %v, want ErrDegenerate", err)
			}
		})
	}
}

// checkHull fails unless every point lies inside every face of hull.
func checkHull(t *testing.T, hull *kernel.Polyhedron, points []v3.Vec) {
	t.Helper()
	tol := 1e-6 * kernel.BoxDiagonal(hull.BoundingBox())
	for i, p := range points {
		for j, f := range hull.Faces {
			if d := f.Plane.Distance(p); d > tol {
				t.Errorf("point %d lies %g outside face %d", i, d, j)
			}
		}
	}
	if v := hull.Volume(); !(v > 0) {
		t.Errorf("volume: got %g, want > 0", v)
	}
}

func TestConvexHullClippedSphere(t *testing.T) {
	tests := []struct {
		name   string
		origin v3.Vec
	}{
		{"origin", v3.Vec{}},
		{"far from origin", v3.Vec{X: 1e4, Y: -3e3, Z: 7e3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region := kernel.BoxPolyhedron(sdf.Box3{
				Min: tt.origin.Add(v3.Vec{X: -1, Y: -5, Z: -5}),
				Max: tt.origin.Add(v3.Vec{X: 1, Y: 5, Z: 5}),
			})
			points := kernel.PullInside(region, tt.origin, kernel.FibonacciSphere(tt.origin, 3, 120))

			hull, verts, err := New().ConvexHull(points)
			if err != nil {
				t.Fatalf("ConvexHull: %v", err)
			}
			checkHull(t, hull, points)
			if !New().IsContained(hull, region) {
				t.Error("hull overhangs the clipping box")
			}

			var walls [2]int
			for _, f := range hull.Faces {
				switch {
				case f.Plane.Normal.X > 1-1e-6:
					walls[0]++
				case f.Plane.Normal.X < -1+1e-6:
					walls[1]++
				}
			}
			if walls != [2]int{1, 1} {
				t.Errorf("got %v faces on the +x and -x walls, want one each", walls)
			}

			corner := make(map[v3.Vec]bool)
			for _, v := range hull.Vertices() {
				corner[v] = true
			}
			if len(corner) != len(verts) {
				t.Errorf("got %d face corners, want %d hull vertices", len(corner), len(verts))
			}
			for _, i := range verts {
				if !corner[points[i]] {
					t.Errorf("hull vertex %d is not a face corner", i)
				}
			}
		})
	}
}

func TestConvexHullMergesCoplanarPoints(t *testing.T) {
	// a 4x4 grid on every side of the unit cube
	var points []v3.Vec
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a, b := float64(i)/3, float64(j)/3
			points = append(points,
				v3.Vec{X: 0, Y: a, Z: b}, v3.Vec{X: 1, Y: a, Z: b},
				v3.Vec{X: a, Y: 0, Z: b}, v3.Vec{X: a, Y: 1, Z: b},
				v3.Vec{X: a, Y: b, Z: 0}, v3.Vec{X: a, Y: b, Z: 1})
		}
	}
	hull, verts, err := New().ConvexHull(points)
	if err != nil {
		t.Fatalf("ConvexHull: %v", err)
	}
	if got := hull.FacetCount(); got != 6 {
		t.Errorf("got %d facets, want 6", got)
	}
	if len(verts) != 8 {
		t.Errorf("got %d hull vertices, want 8", len(verts))
	}
	for i, f := range hull.Faces {
		if len(f.Vertices) != 4 {
			t.Errorf("face %d has %d corners, want 4", i, len(f.Vertices))
		}
	}
	if got := hull.Volume(); !approx(got, 1, 1e-9) {
		t.Errorf("volume: got %f, want 1", got)
	}
	checkHull(t, hull, points)
}

func TestConvexHullRetriesRejectedHull(t *testing.T) {
	points := []v3.Vec{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
	}
	// a tetrahedron on four corners leaves the other four outside
	tetra := []int{0, 1, 2, 0, 1, 4, 0, 2, 4, 1, 2, 4}

	t.Run("recovers", func(t *testing.T) {
		var buf bytes.Buffer
		k := New(WithLogger(logging.NewWriterLogger(&buf, "warn")))
		calls := 0
		k.triangulate = func(cloud []r3.Vector, eps float64) []int {
			calls++
			if calls == 1 {
				return tetra
			}
			return quickhullTriangles(cloud, eps)
		}

		hull, verts, err := k.ConvexHull(points)
		if err != nil {
			t.Fatalf("ConvexHull: %v", err)
		}
		if calls != 2 {
			t.Errorf("triangulated %d times, want 2", calls)
		}
		if len(verts) != 8 || hull.FacetCount() != 6 {
			t.Errorf("got %d vertices and %d facets, want 8 and 6", len(verts), hull.FacetCount())
		}
		if out := buf.String(); !strings.Contains(out, "convex hull rejected") || !strings.Contains(out, "outside the hull faces") {
			t.Errorf("expected a rejection warning, got:\n%s", out)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		var buf bytes.Buffer
		k := New(WithLogger(logging.NewWriterLogger(&buf, "warn")))
		k.triangulate = func([]r3.Vector, float64) []int { return tetra }

		_, _, err := k.ConvexHull(points)
		if !errors.Is(err, kernel.ErrDegenerate) {
			t.Errorf("got %v, want ErrDegenerate", err)
		}
		if got := strings.Count(buf.String(), "convex hull rejected"); got != len(hullEpsilons) {
			t.Errorf("got %d warnings, want %d", got, len(hullEpsilons))
		}
	})

	t.Run("panic", func(t *testing.T) {
		k := New()
		k.triangulate = func([]r3.Vector, float64) []int { panic("horizon") }
		_, _, err := k.ConvexHull(points)
		if !errors.Is(err, kernel.ErrDegenerate) || !strings.Contains(err.Error(), "horizon") {
			t.Errorf("got %v, want ErrDegenerate carrying the panic", err)
		}
	})
}

func TestOverlapArea(t *testing.T) {
	a := kernel.BoxPolyhedron(sdf.Box3{Min: v3.Vec{X: 0, Y: 0, Z: 0}, Max: v3.Vec{X: 1, Y: 2, Z: 2}})
	b := kernel.BoxPolyhedron(sdf.Box3{Min: v3.Vec{X: 1, Y: 1, Z: 1}, Max: v3.Vec{X: 2, Y: 3, Z: 3}})

	var fa, fb *kernel.Face
	for i := range a.Faces {
		if a.Faces[i].Plane.Normal.X == 1 {
			fa = &a.Faces[i]
		}
	}
	for i := range b.Faces {
		if b.Faces[i].Plane.Normal.X == -1 {
			fb = &b.Faces[i]
		}
	}
	if fa == nil || fb == nil {
		t.Fatal("missing x faces")
	}
	if got := overlapArea(fa, fb); !approx(got, 1, 1e-9) {
		t.Errorf("overlap: got %f, want 1", got)
	}
}
