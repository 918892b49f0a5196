package refine

import (
	"errors"
	"fmt"
	"strings"
)

// StopPolicy selects how the refinement loop treats diminishing returns.
type StopPolicy int

const (
	// StopSoft ends refinement once an accepted step changes the volume by
	// less than RefinementDelta, even if the cell is still over budget.
	StopSoft StopPolicy = iota
	// StopHard ignores RefinementDelta and refines until the facet budget is
	// met or no acceptable step remains.
	StopHard
)

// String returns "soft" or "hard".
func (p StopPolicy) String() string {
	switch p {
	case StopSoft:
		return "soft"
	case StopHard:
		return "hard"
	default:
		return fmt.Sprintf("StopPolicy(%d)", int(p))
	}
}

// ParseStopPolicy parses "soft" or "hard", case-insensitively. The empty
// string selects StopSoft.
func ParseStopPolicy(s string) (StopPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "soft":
		return StopSoft, nil
	case "hard":
		return StopHard, nil
	default:
		return StopSoft, fmt.Errorf("unknown stop policy %q (want soft or hard)", s)
	}
}

// Params configures a Worker.
type Params struct {
	MaxFacetsPerCell      int
	RefinementDelta       float64
	MaxNucleusToCellRatio float64
	Policy                StopPolicy
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	var errs []error
	if p.MaxFacetsPerCell <= 0 {
		errs = append(errs, fmt.Errorf("max facets per cell must be positive, got %d", p.MaxFacetsPerCell))
	}
	if !(p.RefinementDelta > 0) {
		errs = append(errs, fmt.Errorf("refinement delta must be positive, got %g", p.RefinementDelta))
	}
	if !(p.MaxNucleusToCellRatio > 0 && p.MaxNucleusToCellRatio <= 1) {
		errs = append(errs, fmt.Errorf("max nucleus-to-cell ratio must be in (0,1], got %g", p.MaxNucleusToCellRatio))
	}
	if p.Policy != StopSoft && p.Policy != StopHard {
		errs = append(errs, fmt.Errorf("unknown stop policy %d", int(p.Policy)))
	}
	return errors.Join(errs...)
}
