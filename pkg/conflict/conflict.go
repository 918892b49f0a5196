// Package conflict removes cells whose boundary shape is subsumed by another
// cell's shape. Such cells come from near-coincident seeds and are never a
// valid output state.
package conflict

import (
	"errors"
	"fmt"

	"github.com/chazu/cellmesh/pkg/cell"
	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/chazu/cellmesh/pkg/logging"
	"github.com/deadsy/sdfx/sdf"
)

// ErrDegenerateCellRemoved is matched by every Record.
var ErrDegenerateCellRemoved = errors.New("degenerate cell removed")

// Containment is the kernel capability the resolver needs.
type Containment interface {
	IsContained(inner, outer *kernel.Polyhedron) bool
}

// Record describes one removal. It is reported, not retained.
type Record struct {
	Removed   cell.ID `json:"removed"`
	Container cell.ID `json:"container"`
	// Mutual is set when each shape contained the other and the tie-break
	// picked the lower index.
	Mutual bool `json:"mutual"`
	// NucleiLost is the number of nuclei dropped with the removed cell.
	NucleiLost int `json:"nucleiLost"`
}

// Error implements error.
func (r Record) Error() string {
	kind := "contained in"
	if r.Mutual {
		kind = "coincides with"
	}
	return fmt.Sprintf("%s: %s %s %s", ErrDegenerateCellRemoved, r.Removed, kind, r.Container)
}

// Unwrap lets errors.Is match ErrDegenerateCellRemoved.
func (r Record) Unwrap() error { return ErrDegenerateCellRemoved }

// Resolve tests every ordered pair of cells and drops each cell whose shape
// lies within another's. When containment is mutual the cell with the lower
// ID is dropped. A dropped cell takes no part in later tests. The survivors
// are returned in input order.
func Resolve(cells []*cell.Cell, k Containment, log *logging.Logger) ([]*cell.Cell, []Record) {
	if log == nil {
		log = logging.NopLogger()
	}
	log = log.WithPhase("conflict")

	n := len(cells)
	boxes := make([]sdf.Box3, n)
	for i, c := range cells {
		boxes[i] = c.Shape().BoundingBox()
	}
	removed := make([]bool, n)
	var records []Record

	drop := func(loser, container int, mutual bool) {
		removed[loser] = true
		rec := Record{
			Removed:    cells[loser].ID(),
			Container:  cells[container].ID(),
			Mutual:     mutual,
			NucleiLost: len(cells[loser].Nuclei()),
		}
		records = append(records, rec)
		log.Warn("degenerate cell removed",
			"cell", int(rec.Removed),
			"container", int(rec.Container),
			"mutual", rec.Mutual,
			"nuclei_lost", rec.NucleiLost)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n && !removed[i]; j++ {
			if i == j || removed[j] {
				continue
			}
			if !within(boxes[i], boxes[j]) {
				continue
			}
			if !k.IsContained(cells[i].Shape(), cells[j].Shape()) {
				continue
			}
			mutual := within(boxes[j], boxes[i]) && k.IsContained(cells[j].Shape(), cells[i].Shape())
			if mutual && cells[j].ID() < cells[i].ID() {
				drop(j, i, true)
				continue
			}
			drop(i, j, mutual)
		}
	}

	kept := make([]*cell.Cell, 0, n-len(records))
	for i, c := range cells {
		if !removed[i] {
			kept = append(kept, c)
		}
	}
	if len(records) > 0 {
		log.Info("conflict resolution complete", "kept", len(kept), "removed", len(records))
	}
	return kept, records
}

// within reports whether a fits inside b, with slack relative to b's size.
func within(a, b sdf.Box3) bool {
	slack := 1e-6 * kernel.BoxDiagonal(b)
	return a.Min.X >= b.Min.X-slack && a.Max.X <= b.Max.X+slack &&
		a.Min.Y >= b.Min.Y-slack && a.Max.Y <= b.Max.Y+slack &&
		a.Min.Z >= b.Min.Z-slack && a.Max.Z <= b.Max.Z+slack
}
