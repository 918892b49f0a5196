package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/cellmesh/pkg/logging"
	"github.com/chazu/cellmesh/pkg/mesh"
	"github.com/chazu/cellmesh/pkg/refine"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "refinement.delta")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	levels := logging.ValidLevels()
	for i, l := range levels {
		levels[i] = strings.ToLower(l)
	}
	return levels
}

// ValidStopPolicies returns the list of valid refinement stop policies
func ValidStopPolicies() []string {
	return []string{refine.StopSoft.String(), refine.StopHard.String()}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateMesh()...)
	errors = append(errors, c.validateRefinement()...)
	errors = append(errors, c.validateScheduler()...)
	errors = append(errors, c.validateKernel()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateEngine()...)

	return errors
}

func (c *Config) validateMesh() []ValidationError {
	var errors []ValidationError
	if c.Mesh.ShapeSamples < mesh.MinShapeSamples {
		errors = append(errors, ValidationError{
			Field:   "mesh.shape_samples",
			Value:   c.Mesh.ShapeSamples,
			Message: fmt.Sprintf("must be at least %d", mesh.MinShapeSamples),
		})
	}
	return errors
}

// validateRefinement validates the RefinementConfig
func (c *Config) validateRefinement() []ValidationError {
	var errors []ValidationError

	if c.Refinement.MaxFacetsPerCell <= 0 {
		errors = append(errors, ValidationError{
			Field:   "refinement.max_facets_per_cell",
			Value:   c.Refinement.MaxFacetsPerCell,
			Message: "must be positive",
		})
	}

	if !(c.Refinement.Delta > 0) {
		errors = append(errors, ValidationError{
			Field:   "refinement.delta",
			Value:   c.Refinement.Delta,
			Message: "must be positive",
		})
	}

	// Ratio is a fraction of the cell volume
	if !(c.Refinement.MaxNucleusRatio > 0 && c.Refinement.MaxNucleusRatio <= 1) {
		errors = append(errors, ValidationError{
			Field:   "refinement.max_nucleus_ratio",
			Value:   c.Refinement.MaxNucleusRatio,
			Message: "must be in (0, 1]",
		})
	}

	if _, err := refine.ParseStopPolicy(c.Refinement.StopPolicy); err != nil {
		errors = append(errors, ValidationError{
			Field:   "refinement.stop_policy",
			Value:   c.Refinement.StopPolicy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStopPolicies(), ", ")),
		})
	}

	return errors
}

// validateScheduler validates the SchedulerConfig
func (c *Config) validateScheduler() []ValidationError {
	var errors []ValidationError

	if c.Scheduler.MaxWorkers <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.max_workers",
			Value:   c.Scheduler.MaxWorkers,
			Message: "must be positive",
		})
	}

	const maxWorkers = 256
	if c.Scheduler.MaxWorkers > maxWorkers {
		errors = append(errors, ValidationError{
			Field:   "scheduler.max_workers",
			Value:   c.Scheduler.MaxWorkers,
			Message: fmt.Sprintf("exceeds maximum of %d", maxWorkers),
		})
	}

	if c.Scheduler.MinCellsPerWorker <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scheduler.min_cells_per_worker",
			Value:   c.Scheduler.MinCellsPerWorker,
			Message: "must be positive",
		})
	}

	return errors
}

// validateKernel validates the KernelConfig
func (c *Config) validateKernel() []ValidationError {
	var errors []ValidationError

	if !(c.Kernel.Tolerance > 0 && c.Kernel.Tolerance < 1) {
		errors = append(errors, ValidationError{
			Field:   "kernel.tolerance",
			Value:   c.Kernel.Tolerance,
			Message: "must be in (0, 1)",
		})
	}

	if !(c.Kernel.MergeTolerance > 0 && c.Kernel.MergeTolerance < 1) {
		errors = append(errors, ValidationError{
			Field:   "kernel.merge_tolerance",
			Value:   c.Kernel.MergeTolerance,
			Message: "must be in (0, 1)",
		})
	}

	if c.Kernel.MeshCells <= 0 {
		errors = append(errors, ValidationError{
			Field:   "kernel.mesh_cells",
			Value:   c.Kernel.MeshCells,
			Message: "must be positive",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateEngine() []ValidationError {
	var errors []ValidationError
	if c.Engine.TimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.timeout_ms",
			Value:   c.Engine.TimeoutMs,
			Message: "must be positive",
		})
	}
	return errors
}
