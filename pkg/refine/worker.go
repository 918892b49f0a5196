// Package refine reduces the facet count of cell boundary shapes and
// schedules that work across a bounded set of workers.
package refine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/cellmesh/pkg/cell"
	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/chazu/cellmesh/pkg/logging"
	"github.com/chazu/cellmesh/pkg/metrics"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrRefinementStalled is matched by every Stall.
var ErrRefinementStalled = errors.New("refinement stalled")

// Stall reports a cell left over budget because every candidate step
// violated a constraint. The cell keeps its last valid shape.
type Stall struct {
	Cell     cell.ID `json:"cell"`
	Facets   int     `json:"facets"`
	Budget   int     `json:"budget"`
	Rejected int     `json:"rejected"`
}

// Error implements error.
func (s *Stall) Error() string {
	return fmt.Sprintf("%s: %s has %d facets (budget %d) after %d rejected steps",
		ErrRefinementStalled, s.Cell, s.Facets, s.Budget, s.Rejected)
}

// Unwrap lets errors.Is match ErrRefinementStalled.
func (s *Stall) Unwrap() error { return ErrRefinementStalled }

// Hull is the kernel capability a worker needs to rebuild shapes.
type Hull interface {
	ConvexHull(points []v3.Vec) (*kernel.Polyhedron, []int, error)
}

// Regions looks up the recorded territory of a neighbor. *neighbor.Graph
// implements it.
type Regions interface {
	Region(id cell.ID) *kernel.Polyhedron
}

// CellRefiner refines one cell in place.
type CellRefiner interface {
	RefineCell(c *cell.Cell)
}

// Worker refines the cells assigned to it. A Worker must not be shared
// between goroutines.
type Worker struct {
	hull    Hull
	regions Regions
	params  Params
	relTol  float64
	log     *logging.Logger
	metrics *metrics.Recorder

	refined int
	stalls  []*Stall
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(l *logging.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithTolerance sets the geometric tolerance relative to the cell size.
func WithTolerance(tol float64) WorkerOption {
	return func(w *Worker) {
		if tol > 0 {
			w.relTol = tol
		}
	}
}

// NewWorker returns a worker. regions may be nil when cells have no
// neighbors.
func NewWorker(h Hull, regions Regions, p Params, opts ...WorkerOption) *Worker {
	w := &Worker{
		hull:    h,
		regions: regions,
		params:  p,
		relTol:  1e-9,
		log:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Refined returns the number of cells this worker has processed.
func (w *Worker) Refined() int { return w.refined }

// Stalls returns the stalls recorded so far.
func (w *Worker) Stalls() []*Stall { return w.stalls }

// candidate is the shape left after dropping one hull vertex.
type candidate struct {
	drop    int
	shape   *kernel.Polyhedron
	points  []v3.Vec
	removed int     // facets removed
	loss    float64 // relative volume loss
}

// RefineCell removes hull vertices from c until its facet count is within
// budget, the soft stopping rule fires, or no candidate is acceptable.
func (w *Worker) RefineCell(c *cell.Cell) {
	w.refined++
	log := w.log.WithCell(int(c.ID()))

	report := c.Refinement()
	shape, points := c.Shape(), c.Points()
	if report.Steps == 0 {
		report.InitialFacets = shape.FacetCount()
	}

	neighbors := w.neighborRegions(c)
	tol := w.relTol * kernel.BoxDiagonal(shape.BoundingBox())

	for shape.FacetCount() > w.params.MaxFacetsPerCell {
		cands, failed := w.candidates(shape, points)
		report.Rejected += failed

		var next *candidate
		for i := range cands {
			if w.acceptable(c, &cands[i], neighbors, tol) {
				next = &cands[i]
				break
			}
			report.Rejected++
		}
		if next == nil {
			report.Stalled = true
			stall := &Stall{
				Cell:     c.ID(),
				Facets:   shape.FacetCount(),
				Budget:   w.params.MaxFacetsPerCell,
				Rejected: report.Rejected,
			}
			w.stalls = append(w.stalls, stall)
			log.Warn("refinement stalled",
				"facets", stall.Facets,
				"budget", stall.Budget,
				"rejected", stall.Rejected)
			break
		}

		shape, points = next.shape, next.points
		report.Steps++
		report.LastDelta = next.loss
		log.Debug("refinement step accepted",
			"facets", shape.FacetCount(),
			"delta", next.loss)

		if w.params.Policy == StopSoft && next.loss < w.params.RefinementDelta {
			break
		}
	}

	c.SetShape(shape, points)
	c.SetRefinement(report)
	w.metrics.CellRefined(report.Steps, report.Rejected, shape.FacetCount(), report.Stalled)
}

func (w *Worker) neighborRegions(c *cell.Cell) []*kernel.Polyhedron {
	if w.regions == nil {
		return nil
	}
	var out []*kernel.Polyhedron
	for _, id := range c.Neighbors() {
		if r := w.regions.Region(id); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// candidates hulls every one-vertex removal and orders the results by facets
// removed (most first), then volume loss (least first), then vertex index.
// It also returns how many removals could not be hulled or gave a hull with
// a volume that is not positive or exceeds the current one.
func (w *Worker) candidates(shape *kernel.Polyhedron, points []v3.Vec) ([]candidate, int) {
	vol := shape.Volume()
	if !(vol > 0) || math.IsInf(vol, 0) {
		return nil, len(points)
	}
	facets := shape.FacetCount()
	out := make([]candidate, 0, len(points))
	failed := 0

	rest := make([]v3.Vec, 0, len(points))
	for k := range points {
		rest = append(rest[:0], points[:k]...)
		rest = append(rest, points[k+1:]...)

		hull, idx, err := w.hull.ConvexHull(rest)
		if err != nil {
			failed++
			continue
		}
		hv := hull.Volume()
		loss := (vol - hv) / vol
		// dropping a vertex never grows the hull
		if !(hv > 0) || math.IsNaN(loss) || math.IsInf(loss, 0) || loss < -w.relTol {
			failed++
			continue
		}
		kept := make([]v3.Vec, len(idx))
		for i, j := range idx {
			kept[i] = rest[j]
		}
		out = append(out, candidate{
			drop:    k,
			shape:   hull,
			points:  kept,
			removed: facets - hull.FacetCount(),
			loss:    loss,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.removed != b.removed {
			return a.removed > b.removed
		}
		if a.loss != b.loss {
			return a.loss < b.loss
		}
		return a.drop < b.drop
	})
	return out, failed
}

// acceptable checks a candidate against the territory, neighbor and nucleus
// constraints.
func (w *Worker) acceptable(c *cell.Cell, cand *candidate, neighbors []*kernel.Polyhedron, tol float64) bool {
	if cand.removed <= 0 {
		return false
	}
	region := c.Region()
	for _, p := range cand.points {
		if region != nil && !region.Contains(p, tol) {
			return false
		}
		for _, nb := range neighbors {
			if nb.Contains(p, -tol) {
				return false
			}
		}
	}
	vol := cand.shape.Volume()
	for _, n := range c.Nuclei() {
		if !n.ContainedIn(cand.shape, tol) {
			return false
		}
		if n.Ratio(vol) > w.params.MaxNucleusToCellRatio {
			return false
		}
	}
	return true
}
