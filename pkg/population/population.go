// Package population describes the input of mesh generation: a domain box
// and the seed, radius and nuclei of every cell.
package population

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Domain is the axis-aligned world volume that the partition tiles.
type Domain struct {
	Min v3.Vec `yaml:"min" json:"min"`
	Max v3.Vec `yaml:"max" json:"max"`
}

// Box returns the domain as an sdf.Box3.
func (d Domain) Box() sdf.Box3 {
	return sdf.Box3{Min: d.Min, Max: d.Max}
}

// Size returns the edge lengths of the domain.
func (d Domain) Size() v3.Vec {
	return d.Max.Sub(d.Min)
}

// Contains reports whether p lies inside the domain or on its boundary.
func (d Domain) Contains(p v3.Vec) bool {
	return p.X >= d.Min.X && p.X <= d.Max.X &&
		p.Y >= d.Min.Y && p.Y <= d.Max.Y &&
		p.Z >= d.Min.Z && p.Z <= d.Max.Z
}

// NucleusSpec places an ellipsoidal nucleus relative to its cell's seed.
type NucleusSpec struct {
	Offset v3.Vec `yaml:"offset" json:"offset"`
	Radii  v3.Vec `yaml:"radii" json:"radii"`
}

// CellSpec is one cell of the population.
type CellSpec struct {
	Label  string        `yaml:"label,omitempty" json:"label,omitempty"`
	Seed   v3.Vec        `yaml:"seed" json:"seed"`
	Radius float64       `yaml:"radius" json:"radius"`
	Nuclei []NucleusSpec `yaml:"nuclei,omitempty" json:"nuclei,omitempty"`
}

// Population is the full generator input. Cell order is significant: the
// position of a cell is its stable ID.
type Population struct {
	Name   string     `yaml:"name,omitempty" json:"name,omitempty"`
	Domain Domain     `yaml:"domain" json:"domain"`
	Cells  []CellSpec `yaml:"cells" json:"cells"`
}

// Seeds returns the seed of every cell in order.
func (p *Population) Seeds() []v3.Vec {
	out := make([]v3.Vec, len(p.Cells))
	for i, c := range p.Cells {
		out[i] = c.Seed
	}
	return out
}

// NucleusCount returns the total number of nuclei.
func (p *Population) NucleusCount() int {
	n := 0
	for _, c := range p.Cells {
		n += len(c.Nuclei)
	}
	return n
}

// FitDomain returns the bounding box of every cell sphere grown by margin.
func FitDomain(cells []CellSpec, margin float64) Domain {
	if len(cells) == 0 {
		return Domain{}
	}
	grow := func(c CellSpec) (v3.Vec, v3.Vec) {
		r := v3.Vec{X: c.Radius + margin, Y: c.Radius + margin, Z: c.Radius + margin}
		return c.Seed.Sub(r), c.Seed.Add(r)
	}
	lo, hi := grow(cells[0])
	for _, c := range cells[1:] {
		a, b := grow(c)
		lo = v3.Vec{X: min(lo.X, a.X), Y: min(lo.Y, a.Y), Z: min(lo.Z, a.Z)}
		hi = v3.Vec{X: max(hi.X, b.X), Y: max(hi.Y, b.Y), Z: max(hi.Z, b.Z)}
	}
	return Domain{Min: lo, Max: hi}
}
