// Package cell defines the Cell and Nucleus value types produced by the mesh
// generator. A Cell exclusively owns its boundary shape and its nuclei; the
// neighbor set holds identities only.
package cell

import (
	"fmt"

	"github.com/chazu/cellmesh/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ID is the stable index of a cell, assigned in population input order.
type ID int

// String returns a short label such as "cell-7".
func (id ID) String() string {
	return fmt.Sprintf("cell-%d", int(id))
}

// RefinementReport summarizes what refinement did to one cell.
type RefinementReport struct {
	InitialFacets int `json:"initialFacets"`
	// Steps counts accepted vertex removals.
	Steps int `json:"steps"`
	// Rejected counts candidates that failed a constraint.
	Rejected int `json:"rejected"`
	// Stalled is set when the cell was over budget with no acceptable candidate.
	Stalled bool `json:"stalled"`
	// LastDelta is the relative volume change of the last accepted step.
	LastDelta float64 `json:"lastDelta"`
}

// Cell is one convex region of the partition.
type Cell struct {
	id     ID
	label  string
	seed   v3.Vec
	radius float64

	region *kernel.Polyhedron // Voronoi territory, fixed after partitioning
	shape  *kernel.Polyhedron // boundary shape, owned and refined
	points []v3.Vec           // hull vertices of shape

	nuclei    []*Nucleus
	neighbors []ID
	report    RefinementReport
}

// Option configures a Cell at construction.
type Option func(*Cell)

// WithLabel sets a human-readable label carried through to exports.
func WithLabel(label string) Option {
	return func(c *Cell) { c.label = label }
}

// New creates a cell for the given seed and territory. The boundary shape is
// empty until SetShape is called.
func New(id ID, seed v3.Vec, radius float64, region *kernel.Polyhedron, opts ...Option) *Cell {
	c := &Cell{id: id, seed: seed, radius: radius, region: region}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cell) ID() ID { return c.id }

func (c *Cell) Seed() v3.Vec { return c.seed }

func (c *Cell) Radius() float64 { return c.radius }

// Neighbors returns the identities of adjacent cells in ascending order.
func (c *Cell) Neighbors() []ID { return c.neighbors }

// Nuclei returns the owned nuclei in population order.
func (c *Cell) Nuclei() []*Nucleus { return c.nuclei }

// Label returns the cell label, or the ID string when none was set.
func (c *Cell) Label() string {
	if c.label == "" {
		return c.id.String()
	}
	return c.label
}

// Region returns the cell's territory in the raw partition.
func (c *Cell) Region() *kernel.Polyhedron { return c.region }

// Shape returns the current boundary shape.
func (c *Cell) Shape() *kernel.Polyhedron { return c.shape }

// Points returns the hull vertices of the current shape.
func (c *Cell) Points() []v3.Vec { return c.points }

// FacetCount returns the number of facets of the current shape.
func (c *Cell) FacetCount() int { return c.shape.FacetCount() }

// Volume returns the volume of the current shape.
func (c *Cell) Volume() float64 { return c.shape.Volume() }

// Refinement returns the refinement report.
func (c *Cell) Refinement() RefinementReport { return c.report }

// SetShape replaces the boundary shape and its vertex set. Only the owner of
// the cell during a pipeline phase may call it.
func (c *Cell) SetShape(shape *kernel.Polyhedron, points []v3.Vec) {
	c.shape = shape
	c.points = points
}

// SetRefinement records the refinement report.
func (c *Cell) SetRefinement(r RefinementReport) { c.report = r }

// SetNeighbors records the neighbor identities read from the neighbor graph.
func (c *Cell) SetNeighbors(ids []ID) {
	c.neighbors = append([]ID(nil), ids...)
}

// AddNucleus appends n to the cell and records the cell as its owner.
func (c *Cell) AddNucleus(n *Nucleus) {
	n.owner = c.id
	c.nuclei = append(c.nuclei, n)
}

// RemoveNucleus drops the nucleus at index i.
func (c *Cell) RemoveNucleus(i int) {
	c.nuclei = append(c.nuclei[:i], c.nuclei[i+1:]...)
}

// MaxNucleusRatio returns the largest nucleus-to-cell volume ratio, or 0 for
// a cell with no nuclei.
func (c *Cell) MaxNucleusRatio() float64 {
	vol := c.Volume()
	var m float64
	for _, n := range c.nuclei {
		if r := n.Ratio(vol); r > m {
			m = r
		}
	}
	return m
}

// IDs returns the identities of cells in order.
func IDs(cells []*Cell) []ID {
	out := make([]ID, len(cells))
	for i, c := range cells {
		out[i] = c.id
	}
	return out
}
