package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/cellmesh/pkg/population"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values between builtins
// ---------------------------------------------------------------------------

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpNucleus wraps a NucleusSpec returned by `nucleus` and consumed by `cell`.
type sexpNucleus struct {
	spec population.NucleusSpec
}

func (n *sexpNucleus) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(nucleus :radii (vec3 %g %g %g))", n.spec.Radii.X, n.spec.Radii.Y, n.spec.Radii.Z)
}
func (n *sexpNucleus) Type() *zygo.RegisteredType { return nil }

// sexpCellRef refers to a cell already added to the population.
type sexpCellRef struct {
	index int
	label string
}

func (c *sexpCellRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(cellref %d %q)", c.index, c.label)
}
func (c *sexpCellRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a SexpInt or SexpFloat.
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer. Floats are accepted when they are integral.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a vector from a sexpVec3. A bare number n is read as
// (vec3 n n n).
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	if f, err := toFloat64(s); err == nil {
		return v3.Vec{X: f, Y: f, Z: f}, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toNucleus extracts a NucleusSpec from a sexpNucleus.
func toNucleus(s zygo.Sexp) (population.NucleusSpec, error) {
	if n, ok := s.(*sexpNucleus); ok {
		return n.spec, nil
	}
	return population.NucleusSpec{}, fmt.Errorf("expected nucleus, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Population builder
// ---------------------------------------------------------------------------

// builder accumulates the population while the program runs.
type builder struct {
	pop       population.Population
	domainSet bool
	margin    float64
	labels    map[string]int
}

func newBuilder() *builder {
	return &builder{labels: make(map[string]int)}
}

// add appends spec, assigning a positional label when it has none.
func (b *builder) add(spec population.CellSpec) (*sexpCellRef, error) {
	index := len(b.pop.Cells)
	if spec.Label == "" {
		spec.Label = fmt.Sprintf("c%d", index)
	}
	if prev, dup := b.labels[spec.Label]; dup {
		return nil, fmt.Errorf("label %q already used by cell %d", spec.Label, prev)
	}
	b.labels[spec.Label] = index
	b.pop.Cells = append(b.pop.Cells, spec)
	return &sexpCellRef{index: index, label: spec.Label}, nil
}

// addAll appends generated cells, relabelling them by position.
func (b *builder) addAll(cells []population.CellSpec) error {
	for _, c := range cells {
		c.Label = ""
		if _, err := b.add(c); err != nil {
			return err
		}
	}
	return nil
}

// finish returns the population, fitting the domain when none was declared.
func (b *builder) finish() *population.Population {
	p := b.pop
	if !b.domainSet {
		p.Domain = population.FitDomain(p.Cells, b.margin)
	}
	return &p
}

func (b *builder) requireDomain(fn string) error {
	if !b.domainSet {
		return fmt.Errorf("%s requires an explicit (domain :min ... :max ...) first", fn)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the population DSL into env. Source code must go
// through preprocessSource first so keywords are recognizable.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (population "name")
	// -----------------------------------------------------------------------
	env.AddFunction("population", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("population requires a name argument")
		}
		s, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("population: name: %w", err)
		}
		b.pop.Name = s
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (domain :min (vec3 -10 -10 -10) :max (vec3 10 10 10))
	// (domain :margin 2)
	// -----------------------------------------------------------------------
	env.AddFunction("domain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if v, ok := pa.kw["margin"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("domain: margin: %w", err)
			}
			b.margin = f
			return zygo.SexpNull, nil
		}
		if b.domainSet {
			return zygo.SexpNull, fmt.Errorf("domain already declared")
		}
		lo, okMin := pa.kw["min"]
		hi, okMax := pa.kw["max"]
		if !okMin || !okMax {
			return zygo.SexpNull, fmt.Errorf("domain requires :min and :max, or :margin")
		}
		var err error
		if b.pop.Domain.Min, err = toVec3(lo); err != nil {
			return zygo.SexpNull, fmt.Errorf("domain: min: %w", err)
		}
		if b.pop.Domain.Max, err = toVec3(hi); err != nil {
			return zygo.SexpNull, fmt.Errorf("domain: max: %w", err)
		}
		b.domainSet = true
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (nucleus :offset (vec3 0 0 0) :radii (vec3 1 1 2))
	// -----------------------------------------------------------------------
	env.AddFunction("nucleus", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var spec population.NucleusSpec
		if v, ok := pa.kw["offset"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("nucleus: offset: %w", err)
			}
			spec.Offset = vec
		}
		v, ok := pa.kw["radii"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("nucleus requires :radii")
		}
		vec, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("nucleus: radii: %w", err)
		}
		spec.Radii = vec
		return &sexpNucleus{spec: spec}, nil
	})

	// -----------------------------------------------------------------------
	// (cell "label" :seed (vec3 0 0 0) :radius 4 (nucleus ...) ...)
	// (cell :seed ... :radius 4 :nuclei (list (nucleus ...)))
	// -----------------------------------------------------------------------
	env.AddFunction("cell", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var spec population.CellSpec

		v, ok := pa.kw["seed"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cell requires :seed")
		}
		seed, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cell: seed: %w", err)
		}
		spec.Seed = seed

		v, ok = pa.kw["radius"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cell requires :radius")
		}
		if spec.Radius, err = toFloat64(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("cell: radius: %w", err)
		}

		if v, ok := pa.kw["nuclei"]; ok {
			items, err := sexpListToSlice(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cell: nuclei: %w", err)
			}
			for _, item := range items {
				n, err := toNucleus(item)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("cell: nuclei entry: %w", err)
				}
				spec.Nuclei = append(spec.Nuclei, n)
			}
		}

		for i, arg := range pa.positional {
			switch val := arg.(type) {
			case *zygo.SexpStr:
				if i != 0 {
					return zygo.SexpNull, fmt.Errorf("cell: label must come first")
				}
				spec.Label = val.S
			case *sexpNucleus:
				spec.Nuclei = append(spec.Nuclei, val.spec)
			default:
				return zygo.SexpNull, fmt.Errorf("cell: argument %d: expected label or nucleus, got %T (%s)",
					i, arg, arg.SexpString(nil))
			}
		}

		ref, err := b.add(spec)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cell: %w", err)
		}
		return ref, nil
	})

	// -----------------------------------------------------------------------
	// (grid :nx 3 :ny 3 :nz 1 :spacing 10 :radius 4 :nucleus 1)
	// -----------------------------------------------------------------------
	env.AddFunction("grid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		dims := [3]int{1, 1, 1}
		for i, key := range []string{"nx", "ny", "nz"} {
			if v, ok := pa.kw[key]; ok {
				n, err := toInt(v)
				if err != nil || n <= 0 {
					return zygo.SexpNull, fmt.Errorf("grid: %s must be a positive integer", key)
				}
				dims[i] = n
			}
		}
		spacing, radius, nuc, err := floats(pa, "grid", "spacing", "radius", "nucleus")
		if err != nil {
			return zygo.SexpNull, err
		}
		if spacing <= 0 {
			return zygo.SexpNull, fmt.Errorf("grid requires a positive :spacing")
		}
		if radius == 0 {
			radius = spacing * 0.4
		}
		g := population.Grid(dims[0], dims[1], dims[2], spacing, radius, nuc)
		if err := b.addAll(g.Cells); err != nil {
			return zygo.SexpNull, fmt.Errorf("grid: %w", err)
		}
		return &zygo.SexpInt{Val: int64(len(g.Cells))}, nil
	})

	// -----------------------------------------------------------------------
	// (scatter :count 20 :radius 4 :nucleus 0.5 :seed 7)
	// -----------------------------------------------------------------------
	env.AddFunction("scatter", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := b.requireDomain("scatter"); err != nil {
			return zygo.SexpNull, err
		}
		pa := parseArgs(args)
		count, seed, err := countAndSeed(pa, "scatter")
		if err != nil {
			return zygo.SexpNull, err
		}
		_, radius, nuc, err := floats(pa, "scatter", "", "radius", "nucleus")
		if err != nil {
			return zygo.SexpNull, err
		}
		r := population.Random(count, b.pop.Domain, radius, nuc, seed)
		if err := b.addAll(r.Cells); err != nil {
			return zygo.SexpNull, fmt.Errorf("scatter: %w", err)
		}
		return &zygo.SexpInt{Val: int64(count)}, nil
	})

	// -----------------------------------------------------------------------
	// (cluster :center (vec3 0 0 0) :count 5 :jitter 0.001 :radius 3 :seed 1)
	// -----------------------------------------------------------------------
	env.AddFunction("cluster", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		count, seed, err := countAndSeed(pa, "cluster")
		if err != nil {
			return zygo.SexpNull, err
		}
		jitter, radius, _, err := floats(pa, "cluster", "jitter", "radius", "")
		if err != nil {
			return zygo.SexpNull, err
		}
		var center v3.Vec
		if v, ok := pa.kw["center"]; ok {
			if center, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("cluster: center: %w", err)
			}
		}
		c := population.Clusters([]v3.Vec{center}, count, jitter, radius, b.pop.Domain, seed)
		if err := b.addAll(c.Cells); err != nil {
			return zygo.SexpNull, fmt.Errorf("cluster: %w", err)
		}
		return &zygo.SexpInt{Val: int64(count)}, nil
	})

	// -----------------------------------------------------------------------
	// (cell-count)
	// -----------------------------------------------------------------------
	env.AddFunction("cell_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpInt{Val: int64(len(b.pop.Cells))}, nil
	})
}

// floats reads three optional numeric keywords. An empty key is skipped.
func floats(pa kwArgs, fn, k1, k2, k3 string) (a, b, c float64, err error) {
	var out [3]float64
	for i, key := range [3]string{k1, k2, k3} {
		v, ok := pa.kw[key]
		if key == "" || !ok {
			continue
		}
		if out[i], err = toFloat64(v); err != nil {
			return 0, 0, 0, fmt.Errorf("%s: %s: %w", fn, key, err)
		}
	}
	return out[0], out[1], out[2], nil
}

func countAndSeed(pa kwArgs, fn string) (int, uint64, error) {
	v, ok := pa.kw["count"]
	if !ok {
		return 0, 0, fmt.Errorf("%s requires :count", fn)
	}
	count, err := toInt(v)
	if err != nil || count <= 0 {
		return 0, 0, fmt.Errorf("%s: count must be a positive integer", fn)
	}
	var seed int
	if v, ok := pa.kw["seed"]; ok {
		if seed, err = toInt(v); err != nil {
			return 0, 0, fmt.Errorf("%s: seed: %w", fn, err)
		}
	}
	return count, uint64(seed), nil
}
