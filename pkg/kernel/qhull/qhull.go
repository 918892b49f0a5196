// Package qhull implements the kernel.Kernel interface. Territories are
// built by clipping the domain box against seed bisectors and convex hulls
// come from github.com/markus-wa/quickhull-go.
package qhull

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/chazu/cellmesh/pkg/logging"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*QhullKernel)(nil)

const (
	// DefaultTolerance is the geometric tolerance relative to the extent of
	// the shapes being compared.
	DefaultTolerance = 1e-9

	// DefaultMergeTolerance is the seed separation, relative to the domain
	// diagonal, below which two seeds are not split by a bisector.
	DefaultMergeTolerance = 1e-7
)

// QhullKernel implements kernel.Kernel. The zero value is not usable; call New.
type QhullKernel struct {
	tol      float64
	mergeTol float64
	log      *logging.Logger
	// triangulate returns hull triangle indices into cloud; quickhull by default.
	triangulate func(cloud []r3.Vector, absEps float64) []int
}

// Option configures a QhullKernel.
type Option func(*QhullKernel)

// WithTolerance sets the relative geometric tolerance.
func WithTolerance(tol float64) Option {
	return func(k *QhullKernel) {
		if tol > 0 {
			k.tol = tol
		}
	}
}

// WithMergeTolerance sets the relative seed separation below which seeds
// share a territory.
func WithMergeTolerance(tol float64) Option {
	return func(k *QhullKernel) {
		if tol > 0 {
			k.mergeTol = tol
		}
	}
}

// WithLogger sets the logger that records rejected hulls.
func WithLogger(l *logging.Logger) Option {
	return func(k *QhullKernel) {
		if l != nil {
			k.log = l
		}
	}
}

// New returns a new QhullKernel.
func New(opts ...Option) *QhullKernel {
	k := &QhullKernel{
		tol:         DefaultTolerance,
		mergeTol:    DefaultMergeTolerance,
		log:         logging.NopLogger(),
		triangulate: quickhullTriangles,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// absTol scales the relative tolerance to the extent of the given boxes.
func (k *QhullKernel) absTol(boxes ...sdf.Box3) float64 {
	scale := 1.0
	for _, b := range boxes {
		scale = math.Max(scale, kernel.BoxDiagonal(b))
	}
	return k.tol * scale
}

// BuildPartition clips the domain box once per seed against the bisector of
// every other seed that can still reach the territory. Seeds closer than the
// merge tolerance are not separated and end up with identical territories.
func (k *QhullKernel) BuildPartition(seeds []v3.Vec, domain sdf.Box3) (*kernel.Partition, error) {
	if len(seeds) == 0 {
		return nil, kernel.ErrInsufficientSeeds
	}
	size := domain.Max.Sub(domain.Min)
	if !(size.X > 0 && size.Y > 0 && size.Z > 0) {
		return nil, fmt.Errorf("%w: empty domain %v..%v", kernel.ErrDegenerate, domain.Min, domain.Max)
	}
	for i, s := range seeds {
		if math.IsNaN(s.X) || math.IsNaN(s.Y) || math.IsNaN(s.Z) {
			return nil, fmt.Errorf("%w: seed %d is NaN", kernel.ErrDegenerate, i)
		}
		if s.X < domain.Min.X || s.X > domain.Max.X ||
			s.Y < domain.Min.Y || s.Y > domain.Max.Y ||
			s.Z < domain.Min.Z || s.Z > domain.Max.Z {
			return nil, fmt.Errorf("%w: seed %d at %v is outside the domain", kernel.ErrDegenerate, i, s)
		}
	}

	tol := k.absTol(domain)
	merge := k.mergeTol * kernel.BoxDiagonal(domain)

	part := &kernel.Partition{
		Seeds:   append([]v3.Vec(nil), seeds...),
		Regions: make([]*kernel.Polyhedron, len(seeds)),
		Domain:  domain,
	}

	type other struct {
		index int
		dist  float64
	}
	for i, si := range seeds {
		others := make([]other, 0, len(seeds)-1)
		for j, sj := range seeds {
			if j != i {
				others = append(others, other{index: j, dist: sj.Sub(si).Length()})
			}
		}
		sort.Slice(others, func(a, b int) bool {
			if others[a].dist != others[b].dist {
				return others[a].dist < others[b].dist
			}
			return others[a].index < others[b].index
		})

		region := kernel.BoxPolyhedron(domain)
		reach := securityRadius(region, si)
		for _, o := range others {
			if o.dist < merge {
				continue
			}
			// Bisectors further than the farthest corner cannot cut the region.
			if o.dist/2 > reach+tol {
				break
			}
			sj := seeds[o.index]
			plane := kernel.PlaneThrough(sj.Sub(si), si.Add(sj).MulScalar(0.5))
			region = clip(region, plane, o.index, tol)
			if region.IsEmpty() {
				return nil, fmt.Errorf("%w: territory of seed %d vanished", kernel.ErrDegenerate, i)
			}
			reach = securityRadius(region, si)
		}
		part.Regions[i] = region
	}
	return part, nil
}

// securityRadius is the largest distance from seed to a region corner.
func securityRadius(p *kernel.Polyhedron, seed v3.Vec) float64 {
	var r float64
	for _, v := range p.Vertices() {
		r = math.Max(r, v.Sub(seed).Length())
	}
	return r
}

// IsContained reports whether every vertex of inner satisfies every face
// plane of outer within tolerance.
func (k *QhullKernel) IsContained(inner, outer *kernel.Polyhedron) bool {
	if inner.IsEmpty() || outer.IsEmpty() {
		return false
	}
	ib, ob := inner.BoundingBox(), outer.BoundingBox()
	tol := k.absTol(ib, ob)
	if !kernel.BoxesOverlap(ib, ob, tol) {
		return false
	}
	for _, v := range inner.Vertices() {
		if !outer.Contains(v, tol) {
			return false
		}
	}
	return true
}

// AreAdjacent reports whether a and b have a pair of coincident, opposed
// faces whose polygons overlap with positive area.
func (k *QhullKernel) AreAdjacent(a, b *kernel.Polyhedron) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return false
	}
	ab, bb := a.BoundingBox(), b.BoundingBox()
	tol := k.absTol(ab, bb)
	if !kernel.BoxesOverlap(ab, bb, tol) {
		return false
	}
	for i := range a.Faces {
		fa := &a.Faces[i]
		for j := range b.Faces {
			fb := &b.Faces[j]
			if fa.Plane.Normal.Dot(fb.Plane.Normal) > -1+1e-6 {
				continue
			}
			if math.Abs(fa.Plane.Offset+fb.Plane.Offset) > tol {
				continue
			}
			if overlapArea(fa, fb) > tol*tol {
				return true
			}
		}
	}
	return false
}
