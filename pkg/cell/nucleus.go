package cell

import (
	"math"

	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Nucleus is an axis-aligned ellipsoid nested inside a cell. Its geometry is
// fixed when the population is defined.
type Nucleus struct {
	Center v3.Vec `json:"center"`
	Radii  v3.Vec `json:"radii"`

	owner ID
}

// NewNucleus returns an unowned nucleus.
func NewNucleus(center, radii v3.Vec) *Nucleus {
	return &Nucleus{Center: center, Radii: radii, owner: -1}
}

// Owner returns the ID of the owning cell, or -1 if not yet attached.
func (n *Nucleus) Owner() ID { return n.owner }

// Volume returns the ellipsoid volume.
func (n *Nucleus) Volume() float64 {
	return 4.0 / 3.0 * math.Pi * n.Radii.X * n.Radii.Y * n.Radii.Z
}

// Ratio returns the nucleus volume over cellVolume. A non-positive cell
// volume yields +Inf.
func (n *Nucleus) Ratio(cellVolume float64) float64 {
	if cellVolume <= 0 {
		return math.Inf(1)
	}
	return n.Volume() / cellVolume
}

// support returns max over the ellipsoid of normal·x.
func (n *Nucleus) support(normal v3.Vec) float64 {
	rx, ry, rz := n.Radii.X*normal.X, n.Radii.Y*normal.Y, n.Radii.Z*normal.Z
	return n.Center.Dot(normal) + math.Sqrt(rx*rx+ry*ry+rz*rz)
}

// ContainedIn reports whether the ellipsoid lies within p, allowing tol of
// slack per face.
func (n *Nucleus) ContainedIn(p *kernel.Polyhedron, tol float64) bool {
	if p.IsEmpty() {
		return false
	}
	for i := range p.Faces {
		pl := p.Faces[i].Plane
		if n.support(pl.Normal) > pl.Offset+tol {
			return false
		}
	}
	return true
}

// BoundingBox returns the axis-aligned bounds of the ellipsoid.
func (n *Nucleus) BoundingBox() sdf.Box3 {
	return sdf.Box3{Min: n.Center.Sub(n.Radii), Max: n.Center.Add(n.Radii)}
}
