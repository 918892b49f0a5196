package mesh

import (
	"fmt"
	"strings"

	"github.com/chazu/cellmesh/pkg/refine"
)

// Config controls refinement and scheduling for one GenerateMesh call.
type Config struct {
	MaxFacetsPerCell      int
	RefinementDelta       float64
	MaxNucleusToCellRatio float64
	Parallel              bool
	MaxWorkers            int
	MinCellsPerWorker     int
	StopPolicy            refine.StopPolicy
	// ShapeSamples is the number of sphere samples behind each raw cell shape.
	ShapeSamples int
}

// MinShapeSamples is the smallest sampling that still yields a solid hull.
const MinShapeSamples = 8

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		MaxFacetsPerCell:      64,
		RefinementDelta:       1e-4,
		MaxNucleusToCellRatio: 0.9,
		Parallel:              true,
		MaxWorkers:            4,
		MinCellsPerWorker:     50,
		StopPolicy:            refine.StopSoft,
		ShapeSamples:          80,
	}
}

// ConfigError lists every invalid field of a Config.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "mesh: invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate returns a *ConfigError describing every out-of-range field, or nil.
func (c Config) Validate() error {
	var problems []string
	if err := c.params().Validate(); err != nil {
		problems = append(problems, strings.Split(err.Error(), "\n")...)
	}
	if c.MaxWorkers <= 0 {
		problems = append(problems, fmt.Sprintf("max workers must be positive, got %d", c.MaxWorkers))
	}
	if c.MinCellsPerWorker <= 0 {
		problems = append(problems, fmt.Sprintf("min cells per worker must be positive, got %d", c.MinCellsPerWorker))
	}
	if c.ShapeSamples < MinShapeSamples {
		problems = append(problems, fmt.Sprintf("shape samples must be at least %d, got %d", MinShapeSamples, c.ShapeSamples))
	}
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

func (c Config) params() refine.Params {
	return refine.Params{
		MaxFacetsPerCell:      c.MaxFacetsPerCell,
		RefinementDelta:       c.RefinementDelta,
		MaxNucleusToCellRatio: c.MaxNucleusToCellRatio,
		Policy:                c.StopPolicy,
	}
}

func (c Config) schedule() refine.Schedule {
	return refine.Schedule{
		Parallel:          c.Parallel,
		MaxWorkers:        c.MaxWorkers,
		MinCellsPerWorker: c.MinCellsPerWorker,
	}
}
