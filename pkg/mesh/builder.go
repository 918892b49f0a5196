// Package mesh drives cell mesh generation end to end: partition, conflict
// resolution, neighbor graph construction and refinement.
package mesh

import (
	"fmt"
	"sort"

	"github.com/chazu/cellmesh/pkg/cell"
	"github.com/chazu/cellmesh/pkg/conflict"
	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/chazu/cellmesh/pkg/logging"
	"github.com/chazu/cellmesh/pkg/metrics"
	"github.com/chazu/cellmesh/pkg/neighbor"
	"github.com/chazu/cellmesh/pkg/population"
	"github.com/chazu/cellmesh/pkg/refine"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// relTol is the containment tolerance relative to a shape's extent.
const relTol = 1e-9

// DroppedNucleus identifies a nucleus that did not fit its raw cell shape.
type DroppedNucleus struct {
	Cell  cell.ID `json:"cell"`
	Index int     `json:"index"`
}

// Report describes the degradations of the last GenerateMesh run.
type Report struct {
	Removed       []conflict.Record `json:"removed,omitempty"`
	Stalled       []*refine.Stall   `json:"stalled,omitempty"`
	DroppedNuclei []DroppedNucleus  `json:"dropped_nuclei,omitempty"`
	Workers       int               `json:"workers"`
	Edges         int               `json:"edges"`
}

// Builder generates a cell mesh for one population.
type Builder struct {
	kernel  kernel.Kernel
	pop     *population.Population
	log     *logging.Logger
	metrics *metrics.Recorder
	report  Report
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *logging.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(b *Builder) { b.metrics = m }
}

// New returns a Builder for pop using kernel k.
func New(k kernel.Kernel, pop *population.Population, opts ...Option) *Builder {
	b := &Builder{kernel: k, pop: pop, log: logging.NopLogger()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Report returns the degradations recorded by the last GenerateMesh call.
func (b *Builder) Report() Report { return b.report }

// GenerateMesh partitions the population domain, removes conflicting cells,
// builds the neighbor graph and refines every surviving cell. Cells are
// returned in input order. Only invalid configuration and invalid geometry
// are errors; removed cells, dropped nuclei and stalled refinement are
// recorded in Report.
func (b *Builder) GenerateMesh(cfg Config) ([]*cell.Cell, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b.report = Report{}
	if b.pop == nil {
		return nil, &InvalidGeometryError{Op: "partition", Err: kernel.ErrInsufficientSeeds}
	}

	plog := b.log.WithPhase("partition")
	stop := b.metrics.PhaseTimer("partition")
	part, err := b.kernel.BuildPartition(b.pop.Seeds(), b.pop.Domain.Box())
	if err != nil {
		stop()
		return nil, &InvalidGeometryError{Op: "partition", Err: err}
	}
	cells, err := b.buildCells(part, cfg.ShapeSamples, plog)
	stop()
	if err != nil {
		return nil, err
	}
	b.metrics.CellsGenerated(len(cells))
	plog.Info("partition built", "cells", len(cells), "dropped_nuclei", len(b.report.DroppedNuclei))

	stop = b.metrics.PhaseTimer("conflict")
	cells, b.report.Removed = conflict.Resolve(cells, b.kernel, b.log)
	for range b.report.Removed {
		b.metrics.CellRemoved()
	}
	stop()

	nlog := b.log.WithPhase("neighbors")
	stop = b.metrics.PhaseTimer("neighbors")
	graph, err := neighbor.Build(cells, b.kernel)
	stop()
	if err != nil {
		return nil, &InvalidGeometryError{Op: "neighbors", Err: err}
	}
	graph.Apply(cells)
	b.report.Edges = graph.Edges()
	nlog.Info("neighbor graph built", "cells", graph.Len(), "edges", graph.Edges())

	var workers []*refine.Worker
	factory := func(w int) refine.CellRefiner {
		wk := refine.NewWorker(b.kernel, graph, cfg.params(),
			refine.WithLogger(b.log.WithPhase("refine").WithWorker(w)),
			refine.WithMetrics(b.metrics),
			refine.WithTolerance(relTol))
		workers = append(workers, wk)
		return wk
	}
	stop = b.metrics.PhaseTimer("refine")
	plan, err := refine.NewScheduler(cfg.schedule(), factory, b.log, b.metrics).Run(cells)
	stop()
	if err != nil {
		return nil, fmt.Errorf("mesh: refinement failed: %w", err)
	}
	b.report.Workers = plan.Workers
	for _, wk := range workers {
		b.report.Stalled = append(b.report.Stalled, wk.Stalls()...)
	}
	sort.Slice(b.report.Stalled, func(i, j int) bool {
		return b.report.Stalled[i].Cell < b.report.Stalled[j].Cell
	})
	return cells, nil
}

func (b *Builder) buildCells(part *kernel.Partition, samples int, log *logging.Logger) ([]*cell.Cell, error) {
	cells := make([]*cell.Cell, len(part.Regions))
	for i, region := range part.Regions {
		c, err := b.buildCell(cell.ID(i), b.pop.Cells[i], region, samples, log)
		if err != nil {
			return nil, err
		}
		cells[i] = c
	}
	return cells, nil
}

// buildCell samples the cell sphere, pulls the samples into the territory and
// hulls them. Nuclei that do not fit the resulting shape are dropped.
func (b *Builder) buildCell(id cell.ID, spec population.CellSpec, region *kernel.Polyhedron, samples int, log *logging.Logger) (*cell.Cell, error) {
	if region == nil || region.IsEmpty() {
		return nil, &InvalidGeometryError{Op: "shape", Err: fmt.Errorf("%s has an empty territory: %w", id, kernel.ErrDegenerate)}
	}
	c := cell.New(id, spec.Seed, spec.Radius, region, cell.WithLabel(spec.Label))

	pts := kernel.PullInside(region, spec.Seed, kernel.FibonacciSphere(spec.Seed, spec.Radius, samples))
	hull, idx, err := b.kernel.ConvexHull(pts)
	if err != nil {
		// The sphere collapsed inside a thin territory; use the territory itself.
		log.Warn("shape hull failed, using territory", "cell", int(id), "error", err)
		pts = region.Vertices()
		if hull, idx, err = b.kernel.ConvexHull(pts); err != nil {
			return nil, &InvalidGeometryError{Op: "shape", Err: fmt.Errorf("%s: %w", id, err)}
		}
	}
	kept := make([]v3.Vec, len(idx))
	for k, j := range idx {
		kept[k] = pts[j]
	}
	c.SetShape(hull, kept)

	tol := relTol * kernel.BoxDiagonal(hull.BoundingBox())
	for j, ns := range spec.Nuclei {
		n := cell.NewNucleus(spec.Seed.Add(ns.Offset), ns.Radii)
		if !n.ContainedIn(hull, tol) {
			b.report.DroppedNuclei = append(b.report.DroppedNuclei, DroppedNucleus{Cell: id, Index: j})
			b.metrics.NucleusDropped()
			log.Warn("nucleus dropped", "cell", int(id), "nucleus", j)
			continue
		}
		c.AddNucleus(n)
	}
	return c, nil
}
