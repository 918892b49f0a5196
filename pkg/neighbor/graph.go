// Package neighbor builds the symmetric adjacency graph of a conflict-free
// cell set. The graph is immutable once built and safe for concurrent reads.
package neighbor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/cellmesh/pkg/cell"
	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
)

var (
	// ErrAsymmetric is returned when the kernel disagrees with itself about
	// whether two regions are adjacent.
	ErrAsymmetric = errors.New("neighbor: asymmetric adjacency")
	// ErrDuplicateID is returned when two cells share an ID.
	ErrDuplicateID = errors.New("neighbor: duplicate cell id")
)

// Adjacency is the kernel capability the graph builder needs.
type Adjacency interface {
	AreAdjacent(a, b *kernel.Polyhedron) bool
}

// Graph stores adjacency in compressed rows: the neighbors of ids[i] are
// adjacent[offsets[i]:offsets[i+1]], sorted ascending.
type Graph struct {
	ids      []cell.ID
	index    map[cell.ID]int
	offsets  []int
	adjacent []cell.ID
	regions  []*kernel.Polyhedron
}

// Build computes adjacency between the territories of cells. Cells are
// neighbors iff their regions share a facet of positive area.
func Build(cells []*cell.Cell, k Adjacency) (*Graph, error) {
	n := len(cells)
	g := &Graph{
		ids:     make([]cell.ID, n),
		index:   make(map[cell.ID]int, n),
		offsets: make([]int, n+1),
		regions: make([]*kernel.Polyhedron, n),
	}
	boxes := make([]sdf.Box3, n)
	for i, c := range cells {
		if _, dup := g.index[c.ID()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, c.ID())
		}
		g.ids[i] = c.ID()
		g.index[c.ID()] = i
		g.regions[i] = c.Region()
		boxes[i] = c.Region().BoundingBox()
	}

	rows := make([][]cell.ID, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			slack := 1e-9 * (kernel.BoxDiagonal(boxes[i]) + kernel.BoxDiagonal(boxes[j]))
			if !kernel.BoxesOverlap(boxes[i], boxes[j], slack) {
				continue
			}
			ab := k.AreAdjacent(g.regions[i], g.regions[j])
			ba := k.AreAdjacent(g.regions[j], g.regions[i])
			if ab != ba {
				return nil, fmt.Errorf("%w: %s and %s", ErrAsymmetric, g.ids[i], g.ids[j])
			}
			if ab {
				rows[i] = append(rows[i], g.ids[j])
				rows[j] = append(rows[j], g.ids[i])
			}
		}
	}

	total := 0
	for _, r := range rows {
		total += len(r)
	}
	g.adjacent = make([]cell.ID, 0, total)
	for i, r := range rows {
		sort.Slice(r, func(a, b int) bool { return r[a] < r[b] })
		g.adjacent = append(g.adjacent, r...)
		g.offsets[i+1] = len(g.adjacent)
	}
	return g, nil
}

// Len returns the number of cells in the graph.
func (g *Graph) Len() int { return len(g.ids) }

// Edges returns the number of undirected edges.
func (g *Graph) Edges() int { return len(g.adjacent) / 2 }

// IDs returns the cell identities in build order.
func (g *Graph) IDs() []cell.ID {
	return append([]cell.ID(nil), g.ids...)
}

// Contains reports whether id is a vertex of the graph.
func (g *Graph) Contains(id cell.ID) bool {
	_, ok := g.index[id]
	return ok
}

// Neighbors returns the sorted neighbor identities of id, or nil if id is
// not in the graph. The slice is shared with the graph and must not be
// modified.
func (g *Graph) Neighbors(id cell.ID) []cell.ID {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	lo, hi := g.offsets[i], g.offsets[i+1]
	return g.adjacent[lo:hi:hi]
}

// Has reports whether a and b are neighbors.
func (g *Graph) Has(a, b cell.ID) bool {
	row := g.Neighbors(a)
	i := sort.Search(len(row), func(i int) bool { return row[i] >= b })
	return i < len(row) && row[i] == b
}

// Region returns the territory recorded for id, or nil.
func (g *Graph) Region(id cell.ID) *kernel.Polyhedron {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.regions[i]
}

// Validate checks that every edge appears in both directions and that no
// cell lists itself.
func (g *Graph) Validate() error {
	for _, id := range g.ids {
		for _, nb := range g.Neighbors(id) {
			if nb == id {
				return fmt.Errorf("neighbor: %s lists itself", id)
			}
			if !g.Contains(nb) {
				return fmt.Errorf("neighbor: %s references unknown %s", id, nb)
			}
			if !g.Has(nb, id) {
				return fmt.Errorf("%w: %s lists %s but not the reverse", ErrAsymmetric, id, nb)
			}
		}
	}
	return nil
}

// Apply copies each cell's neighbor identities into the cell. It must run
// before refinement starts.
func (g *Graph) Apply(cells []*cell.Cell) {
	for _, c := range cells {
		c.SetNeighbors(g.Neighbors(c.ID()))
	}
}
