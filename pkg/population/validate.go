package population

import (
	"fmt"
	"math"
)

// Severity indicates whether a finding blocks generation or is advisory.
type Severity int

const (
	SeverityError   Severity = iota // blocks generation
	SeverityWarning                 // advisory
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Finding is one validation result. Cell is -1 for population-level
// findings.
type Finding struct {
	Cell     int      `json:"cell"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (f Finding) Error() string {
	if f.Cell < 0 {
		return fmt.Sprintf("[%s] %s", f.Severity, f.Message)
	}
	return fmt.Sprintf("[%s] cell %d: %s", f.Severity, f.Cell, f.Message)
}

// Result separates blocking errors from warnings.
type Result struct {
	Errors   []Finding `json:"errors,omitempty"`
	Warnings []Finding `json:"warnings,omitempty"`
}

// OK reports whether there are no blocking errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

func (r *Result) add(f Finding) {
	if f.Severity == SeverityWarning {
		r.Warnings = append(r.Warnings, f)
		return
	}
	r.Errors = append(r.Errors, f)
}

// MergeTolerance is the seed separation, relative to the domain diagonal,
// below which seeds are reported as coincident.
const MergeTolerance = 1e-7

// Validate runs the structural, geometric and proximity checks. It never
// mutates p.
func Validate(p *Population) Result {
	var r Result
	for _, f := range validateStructure(p) {
		r.add(f)
	}
	for _, f := range validateGeometry(p) {
		r.add(f)
	}
	for _, f := range validateProximity(p) {
		r.add(f)
	}
	return r
}

func validateStructure(p *Population) []Finding {
	var out []Finding
	size := p.Domain.Size()
	if !(size.X > 0 && size.Y > 0 && size.Z > 0) {
		out = append(out, Finding{Cell: -1, Severity: SeverityError,
			Message: fmt.Sprintf("domain %v..%v has no volume", p.Domain.Min, p.Domain.Max)})
	}
	if len(p.Cells) == 0 {
		out = append(out, Finding{Cell: -1, Severity: SeverityError, Message: "population has no cells"})
	}
	seen := make(map[string]int)
	for i, c := range p.Cells {
		if c.Label == "" {
			continue
		}
		if j, dup := seen[c.Label]; dup {
			out = append(out, Finding{Cell: i, Severity: SeverityWarning,
				Message: fmt.Sprintf("label %q already used by cell %d", c.Label, j)})
			continue
		}
		seen[c.Label] = i
	}
	return out
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validateGeometry(p *Population) []Finding {
	var out []Finding
	for i, c := range p.Cells {
		if !finite(c.Seed.X, c.Seed.Y, c.Seed.Z, c.Radius) {
			out = append(out, Finding{Cell: i, Severity: SeverityError, Message: "seed or radius is not finite"})
			continue
		}
		if !p.Domain.Contains(c.Seed) {
			out = append(out, Finding{Cell: i, Severity: SeverityError,
				Message: fmt.Sprintf("seed %v lies outside the domain", c.Seed)})
		}
		if c.Radius <= 0 {
			out = append(out, Finding{Cell: i, Severity: SeverityError,
				Message: fmt.Sprintf("radius must be positive, got %g", c.Radius)})
			continue
		}

		var nucleiVol float64
		for j, n := range c.Nuclei {
			if !(n.Radii.X > 0 && n.Radii.Y > 0 && n.Radii.Z > 0) {
				out = append(out, Finding{Cell: i, Severity: SeverityError,
					Message: fmt.Sprintf("nucleus %d radii %v must be positive", j, n.Radii)})
				continue
			}
			reach := n.Offset.Length() + max(n.Radii.X, n.Radii.Y, n.Radii.Z)
			if reach > c.Radius {
				out = append(out, Finding{Cell: i, Severity: SeverityWarning,
					Message: fmt.Sprintf("nucleus %d reaches %.3g past a cell radius of %.3g and may be dropped", j, reach, c.Radius)})
			}
			nucleiVol += n.Radii.X * n.Radii.Y * n.Radii.Z
		}
		if nucleiVol > c.Radius*c.Radius*c.Radius {
			out = append(out, Finding{Cell: i, Severity: SeverityWarning,
				Message: "nuclei occupy more volume than the cell sphere"})
		}
	}
	return out
}

// validateProximity reports seeds that the partition cannot separate.
func validateProximity(p *Population) []Finding {
	var out []Finding
	tol := MergeTolerance * p.Domain.Size().Length()
	for i := range p.Cells {
		for j := i + 1; j < len(p.Cells); j++ {
			if p.Cells[i].Seed.Sub(p.Cells[j].Seed).Length() < tol {
				out = append(out, Finding{Cell: i, Severity: SeverityWarning,
					Message: fmt.Sprintf("seed coincides with cell %d; one of them will be removed", j)})
			}
		}
	}
	return out
}
