// Package kernel defines the abstract geometry kernel interfaces used by the
// mesh generator. Implementations (qhull, sdfx) provide the partition, hull
// and solid capabilities behind these interfaces, so the rest of the system
// never depends on a particular computational-geometry backend.
package kernel

import (
	"errors"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrInsufficientSeeds is returned when a partition is requested for an
	// empty seed set.
	ErrInsufficientSeeds = errors.New("kernel: insufficient seed points")
	// ErrDegenerate is returned when the input geometry cannot produce a
	// valid solid (coplanar points, empty domain, seeds outside the domain).
	ErrDegenerate = errors.New("kernel: degenerate geometry")
)

// Partition is the raw Voronoi-style decomposition of a domain. Regions[i]
// is the territory of Seeds[i].
type Partition struct {
	Seeds   []v3.Vec
	Regions []*Polyhedron
	Domain  sdf.Box3
}

// Kernel is the partition and hull capability consumed by the mesh builder.
// Implementations must be safe for concurrent use; they retain no state
// between calls.
type Kernel interface {
	// BuildPartition decomposes domain into one convex territory per seed.
	BuildPartition(seeds []v3.Vec, domain sdf.Box3) (*Partition, error)

	// IsContained reports whether inner lies entirely within outer.
	IsContained(inner, outer *Polyhedron) bool

	// AreAdjacent reports whether a and b share a facet of positive area.
	AreAdjacent(a, b *Polyhedron) bool

	// ConvexHull returns the hull of points and the indices of points that
	// are hull vertices, in ascending order.
	ConvexHull(points []v3.Vec) (*Polyhedron, []int, error)
}

// Solid is an opaque handle to a kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// SolidKernel builds and tessellates the smooth solids used for nuclei.
type SolidKernel interface {
	// Ellipsoid creates an axis-aligned ellipsoid.
	Ellipsoid(center, radii v3.Vec) (Solid, error)

	// Inside reports whether p lies inside s.
	Inside(s Solid, p v3.Vec) bool

	// ToMesh converts a solid to a triangle mesh.
	ToMesh(s Solid) (*Mesh, error)
}
