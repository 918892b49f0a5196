package refine

import (
	"fmt"

	"github.com/chazu/cellmesh/pkg/cell"
	"github.com/chazu/cellmesh/pkg/logging"
	"github.com/chazu/cellmesh/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Schedule selects sequential or parallel refinement.
type Schedule struct {
	Parallel          bool
	MaxWorkers        int
	MinCellsPerWorker int
}

// Assignment is a static partition of cell positions over workers.
// Cells[w] lists, in input order, the positions refined by worker w.
type Assignment struct {
	Workers int
	Cells   [][]int
}

// Plan assigns n cells to workers. Sequential schedules use one worker.
// Parallel schedules use min(MaxWorkers, ceil(n/MinCellsPerWorker)) workers
// and assign position i to worker i mod workers.
func Plan(n int, s Schedule) Assignment {
	if n <= 0 {
		return Assignment{}
	}
	workers := 1
	if s.Parallel {
		per := max(s.MinCellsPerWorker, 1)
		workers = min(max(s.MaxWorkers, 1), (n+per-1)/per)
		workers = max(workers, 1)
	}
	a := Assignment{Workers: workers, Cells: make([][]int, workers)}
	for w := range a.Cells {
		a.Cells[w] = make([]int, 0, (n+workers-1)/workers)
	}
	for i := 0; i < n; i++ {
		w := i % workers
		a.Cells[w] = append(a.Cells[w], i)
	}
	return a
}

// Factory creates the refiner for worker w. It is called once per worker,
// sequentially, before any worker starts.
type Factory func(w int) CellRefiner

// Scheduler runs refinement over a cell set according to a Schedule.
type Scheduler struct {
	schedule Schedule
	factory  Factory
	log      *logging.Logger
	metrics  *metrics.Recorder
}

// NewScheduler returns a scheduler. log and m may be nil.
func NewScheduler(s Schedule, f Factory, log *logging.Logger, m *metrics.Recorder) *Scheduler {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Scheduler{schedule: s, factory: f, log: log.WithPhase("refine"), metrics: m}
}

// Run refines every cell exactly once and blocks until all workers finish.
// cells is mutated in place and keeps its order. A panic inside a worker is
// returned as an error; the first such error is reported.
func (s *Scheduler) Run(cells []*cell.Cell) (Assignment, error) {
	plan := Plan(len(cells), s.schedule)
	if plan.Workers == 0 {
		return plan, nil
	}
	s.metrics.Workers(plan.Workers)
	s.log.Info("refinement started",
		"cells", len(cells),
		"workers", plan.Workers,
		"parallel", s.schedule.Parallel)

	refiners := make([]CellRefiner, plan.Workers)
	for w := range refiners {
		refiners[w] = s.factory(w)
		s.log.Debug("worker created", "worker", w, "cells", len(plan.Cells[w]))
	}

	if s.schedule.Parallel {
		var g errgroup.Group
		for w := range refiners {
			g.Go(func() error {
				return runWorker(w, refiners[w], cells, plan.Cells[w])
			})
		}
		if err := g.Wait(); err != nil {
			return plan, err
		}
	} else if err := runWorker(0, refiners[0], cells, plan.Cells[0]); err != nil {
		return plan, err
	}
	s.log.Info("refinement complete", "cells", len(cells))
	return plan, nil
}

func runWorker(w int, r CellRefiner, cells []*cell.Cell, positions []int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("refine: worker %d panicked: %v", w, p)
		}
	}()
	for _, i := range positions {
		r.RefineCell(cells[i])
	}
	return nil
}
