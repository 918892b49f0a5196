package neighbor

import (
	"errors"
	"testing"

	"github.com/chazu/cellmesh/pkg/cell"
	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/chazu/cellmesh/pkg/kernel/qhull"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func partitionCells(t *testing.T, seeds []v3.Vec) []*cell.Cell {
	t.Helper()
	domain := sdf.Box3{Min: v3.Vec{X: -100, Y: -100, Z: -100}, Max: v3.Vec{X: 100, Y: 100, Z: 100}}
	part, err := qhull.New().BuildPartition(seeds, domain)
	if err != nil {
		t.Fatalf("BuildPartition: %v", err)
	}
	cells := make([]*cell.Cell, len(seeds))
	for i, s := range seeds {
		cells[i] = cell.New(cell.ID(i), s, 10, part.Regions[i])
	}
	return cells
}

func TestBuildLine(t *testing.T) {
	cells := partitionCells(t, []v3.Vec{{X: -75}, {X: -25}, {X: 25}, {X: 75}})
	g, err := Build(cells, qhull.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Len() != 4 {
		t.Errorf("Len() = %d, want 4", g.Len())
	}
	if g.Edges() != 3 {
		t.Errorf("Edges() = %d, want 3", g.Edges())
	}

	want := map[cell.ID][]cell.ID{
		0: {1},
		1: {0, 2},
		2: {1, 3},
		3: {2},
	}
	for id, nbs := range want {
		got := g.Neighbors(id)
		if len(got) != len(nbs) {
			t.Errorf("Neighbors(%d) = %v, want %v", id, got, nbs)
			continue
		}
		for i := range nbs {
			if got[i] != nbs[i] {
				t.Errorf("Neighbors(%d) = %v, want %v", id, got, nbs)
			}
		}
	}
	if !g.Has(1, 2) || g.Has(0, 3) {
		t.Error("Has() disagrees with Neighbors()")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildSymmetric(t *testing.T) {
	cells := partitionCells(t, []v3.Vec{
		{X: -60, Y: -20, Z: 10},
		{X: 30, Y: 40, Z: -70},
		{X: 5, Y: -80, Z: 55},
		{X: 70, Y: 10, Z: 20},
		{X: -10, Y: 60, Z: -30},
		{X: 0, Y: 0, Z: 0},
	})
	g, err := Build(cells, qhull.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, a := range g.IDs() {
		for _, b := range g.IDs() {
			if g.Has(a, b) != g.Has(b, a) {
				t.Errorf("Has(%d, %d) != Has(%d, %d)", a, b, b, a)
			}
		}
		if g.Has(a, a) {
			t.Errorf("%d is its own neighbor", a)
		}
	}
	if g.Edges() == 0 {
		t.Error("expected at least one edge")
	}
}

func TestBuildSkipsRemovedCells(t *testing.T) {
	cells := partitionCells(t, []v3.Vec{{X: -50}, {X: 0}, {X: 50}})
	// Drop the middle cell as conflict resolution would.
	kept := []*cell.Cell{cells[0], cells[2]}
	g, err := Build(kept, qhull.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.Contains(1) {
		t.Error("removed cell is present in the graph")
	}
	for _, id := range g.IDs() {
		for _, nb := range g.Neighbors(id) {
			if nb == 1 {
				t.Errorf("%d references the removed cell", id)
			}
		}
	}
	if g.Neighbors(1) != nil || g.Region(1) != nil {
		t.Error("lookups of a missing cell should return nil")
	}
}

func TestApply(t *testing.T) {
	cells := partitionCells(t, []v3.Vec{{X: -50}, {X: 50}})
	g, err := Build(cells, qhull.New())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	g.Apply(cells)
	if nbs := cells[0].Neighbors(); len(nbs) != 1 || nbs[0] != 1 {
		t.Errorf("cell 0 neighbors = %v, want [1]", nbs)
	}
	if g.Region(1) != cells[1].Region() {
		t.Error("Region() does not return the cell territory")
	}
}

type lopsided struct{}

func (lopsided) AreAdjacent(a, b *kernel.Polyhedron) bool {
	return a.Volume() < b.Volume()
}

func TestBuildAsymmetric(t *testing.T) {
	cells := partitionCells(t, []v3.Vec{{X: -80}, {X: 50}})
	_, err := Build(cells, lopsided{})
	if !errors.Is(err, ErrAsymmetric) {
		t.Errorf("got %v, want ErrAsymmetric", err)
	}
}

func TestBuildDuplicateID(t *testing.T) {
	cells := partitionCells(t, []v3.Vec{{X: -50}, {X: 50}})
	dup := cell.New(0, v3.Vec{X: 50}, 10, cells[1].Region())
	_, err := Build([]*cell.Cell{cells[0], dup}, qhull.New())
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("got %v, want ErrDuplicateID", err)
	}
}
