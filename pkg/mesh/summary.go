package mesh

import (
	"math"

	"github.com/chazu/cellmesh/pkg/cell"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Summary aggregates a finished mesh.
type Summary struct {
	Cells      int      `json:"cells"`
	Nuclei     int      `json:"nuclei"`
	Facets     int      `json:"facets"`
	MinFacets  int      `json:"min_facets"`
	MaxFacets  int      `json:"max_facets"`
	OverBudget int      `json:"over_budget"`
	Volume     float64  `json:"volume"`
	MaxRatio   float64  `json:"max_nucleus_ratio"`
	Bounds     sdf.Box3 `json:"bounds"`
}

// Summarize computes a Summary. budget is the facet budget used to count
// over-budget cells.
func Summarize(cells []*cell.Cell, budget int) Summary {
	var s Summary
	s.Cells = len(cells)
	if len(cells) == 0 {
		return s
	}
	s.MinFacets = math.MaxInt
	for i, c := range cells {
		f := c.FacetCount()
		s.Facets += f
		s.MinFacets = min(s.MinFacets, f)
		s.MaxFacets = max(s.MaxFacets, f)
		if f > budget {
			s.OverBudget++
		}
		s.Nuclei += len(c.Nuclei())
		s.Volume += c.Volume()
		s.MaxRatio = max(s.MaxRatio, c.MaxNucleusRatio())

		bb := c.Shape().BoundingBox()
		if i == 0 {
			s.Bounds = bb
			continue
		}
		s.Bounds = union(s.Bounds, bb)
	}
	return s
}

func union(a, b sdf.Box3) sdf.Box3 {
	return sdf.Box3{
		Min: v3.Vec{X: min(a.Min.X, b.Min.X), Y: min(a.Min.Y, b.Min.Y), Z: min(a.Min.Z, b.Min.Z)},
		Max: v3.Vec{X: max(a.Max.X, b.Max.X), Y: max(a.Max.Y, b.Max.Y), Z: max(a.Max.Z, b.Max.Z)},
	}
}
