package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chazu/cellmesh/pkg/config"
	"github.com/chazu/cellmesh/pkg/engine"
	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/chazu/cellmesh/pkg/kernel/qhull"
	"github.com/chazu/cellmesh/pkg/kernel/sdfx"
	"github.com/chazu/cellmesh/pkg/logging"
	"github.com/chazu/cellmesh/pkg/mesh"
	"github.com/chazu/cellmesh/pkg/metrics"
	"github.com/chazu/cellmesh/pkg/population"
	"github.com/chazu/cellmesh/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to cells.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// nucleusColor is shared by every nucleus mesh.
const nucleusColor = "#34495E"

// SourceFormat names the language of a population source.
type SourceFormat string

const (
	FormatLisp SourceFormat = "lisp"
	FormatYAML SourceFormat = "yaml"
)

// FormatFromPath picks the source format from a file extension.
func FormatFromPath(path string) (SourceFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lisp", ".zy":
		return FormatLisp, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown population format %q (want .lisp, .yaml or .yml)", filepath.Ext(path))
	}
}

// App runs the full pipeline: source -> population -> cell mesh -> triangles.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	hull   []qhull.Option
	solids kernel.SolidKernel
	log    *logging.Logger
	cfg    mesh.Config
	nuclei bool
}

// AppOption configures an App.
type AppOption func(*App)

// WithSettings applies a loaded configuration.
func WithSettings(cfg *config.Config) AppOption {
	return func(a *App) {
		a.engine = engine.NewEngine(engine.WithTimeout(cfg.Engine.Timeout()))
		a.hull = append(a.hull,
			qhull.WithTolerance(cfg.Kernel.Tolerance),
			qhull.WithMergeTolerance(cfg.Kernel.MergeTolerance))
		a.solids = sdfx.New(cfg.Kernel.MeshCells)
		a.cfg = cfg.MeshConfig()
	}
}

// WithLogger sets the logger handed to the mesh builder and the hull kernel.
func WithLogger(l *logging.Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMeshConfig overrides the mesh configuration.
func WithMeshConfig(cfg mesh.Config) AppOption {
	return func(a *App) { a.cfg = cfg }
}

// WithNuclei controls whether nucleus meshes are emitted.
func WithNuclei(on bool) AppOption {
	return func(a *App) { a.nuclei = on }
}

// NewApp creates a new App with the default engine, kernels and config.
func NewApp(opts ...AppOption) *App {
	a := &App{
		engine: engine.NewEngine(),
		solids: sdfx.New(0),
		log:    logging.NopLogger(),
		cfg:    mesh.DefaultConfig(),
		nuclei: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.kernel = qhull.New(append(a.hull, qhull.WithLogger(a.log.WithPhase("hull")))...)
	return a
}

// MeshData is the JSON-serializable mesh format.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable source error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// GenerateResult is the full result of one pipeline run. Errors never escape
// as Go errors; they are reported here.
type GenerateResult struct {
	Meshes   []MeshData       `json:"meshes"`
	Errors   []EvalErrorData  `json:"errors"`
	Warnings []EvalErrorData  `json:"warnings"`
	Cells    int              `json:"cells"`
	Summary  *mesh.Summary    `json:"summary,omitempty"`
	Report   *mesh.Report     `json:"report,omitempty"`
	Metrics  []metrics.Sample `json:"metrics,omitempty"`
}

func newResult() GenerateResult {
	return GenerateResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
}

func (r *GenerateResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, EvalErrorData{Message: fmt.Sprintf(format, args...)})
}

// Validate loads the population and reports its errors and warnings without
// generating a mesh.
func (a *App) Validate(source string, format SourceFormat) GenerateResult {
	_, result := a.Population(source, format)
	return result
}

// Population loads source into a population. The population is nil when the
// source could not be read; callers should check result.Errors either way.
func (a *App) Population(source string, format SourceFormat) (*population.Population, GenerateResult) {
	result := newResult()
	pop := a.load(source, format, &result)
	if pop != nil {
		result.Cells = len(pop.Cells)
	}
	return pop, result
}

// Generate takes population source and returns the refined cell meshes,
// the mesh summary and the degradation report.
func (a *App) Generate(source string, format SourceFormat) GenerateResult {
	result := newResult()

	// Step 1: Load and validate the population.
	pop := a.load(source, format, &result)
	if pop == nil || len(result.Errors) > 0 {
		return result
	}
	result.Cells = len(pop.Cells)
	if len(pop.Cells) == 0 {
		return result
	}

	// Step 2: Generate the cell mesh.
	rec := metrics.New(nil)
	b := mesh.New(a.kernel, pop, mesh.WithLogger(a.log), mesh.WithMetrics(rec))
	cells, err := b.GenerateMesh(a.cfg)
	if err != nil {
		a.log.Error("mesh generation failed", "error", err)
		result.fail("mesh generation failed: %v", err)
		return result
	}
	summary := mesh.Summarize(cells, a.cfg.MaxFacetsPerCell)
	report := b.Report()
	result.Cells = len(cells)
	result.Summary = &summary
	result.Report = &report
	for _, r := range report.Removed {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: r.Error()})
	}
	for _, s := range report.Stalled {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: s.Error()})
	}
	if samples, err := rec.Snapshot(); err == nil {
		result.Metrics = samples
	}

	// Step 3: Tessellate cells and nuclei into triangle meshes.
	meshes, err := tessellate.Tessellate(cells, a.solids, tessellate.Options{Nuclei: a.nuclei})
	if err != nil {
		a.log.Error("tessellation failed", "error", err)
		result.fail("tessellation failed: %v", err)
		return result
	}

	// Step 4: Convert kernel meshes to the MeshData format. Nuclei follow
	// their cell, so the palette only advances on cell meshes.
	cellColor := make(map[string]string, len(cells))
	for i, c := range cells {
		cellColor[tessellate.PartName(c)] = colorPalette[i%len(colorPalette)]
	}
	for _, m := range meshes {
		color, ok := cellColor[m.PartName]
		if !ok {
			color = nucleusColor
		}
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    color,
		})
	}

	return result
}

// load parses source into a population and validates it. It returns nil
// when the source could not be read at all.
func (a *App) load(source string, format SourceFormat, result *GenerateResult) *population.Population {
	switch format {
	case FormatLisp:
		res, err := a.engine.EvaluateResult(source)
		if err != nil {
			a.log.Error("evaluate fatal error", "error", err)
			result.fail("%v", err)
			return nil
		}
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		for _, w := range res.Warnings {
			f := population.Finding{Cell: w.Cell, Message: w.Message, Severity: population.SeverityWarning}
			result.Warnings = append(result.Warnings, EvalErrorData{Message: f.Error()})
		}
		return res.Population

	case FormatYAML:
		pop, err := population.Parse([]byte(source))
		if err != nil {
			result.fail("%v", err)
			return nil
		}
		if len(pop.Cells) == 0 {
			return pop
		}
		v := population.Validate(pop)
		for _, f := range v.Errors {
			result.Errors = append(result.Errors, EvalErrorData{Message: f.Error()})
		}
		for _, f := range v.Warnings {
			result.Warnings = append(result.Warnings, EvalErrorData{Message: f.Error()})
		}
		return pop

	default:
		result.fail("unknown population format %q", format)
		return nil
	}
}
