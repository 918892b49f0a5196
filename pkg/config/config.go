// Package config loads cellmesh settings through viper: defaults, then the
// config file, then CELLMESH_* environment variables, then flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/cellmesh/pkg/engine"
	"github.com/chazu/cellmesh/pkg/kernel/qhull"
	"github.com/chazu/cellmesh/pkg/kernel/sdfx"
	"github.com/chazu/cellmesh/pkg/mesh"
	"github.com/chazu/cellmesh/pkg/refine"
	"github.com/spf13/viper"
)

// Config represents the complete cellmesh configuration
type Config struct {
	Mesh       MeshConfig       `mapstructure:"mesh" yaml:"mesh"`
	Refinement RefinementConfig `mapstructure:"refinement" yaml:"refinement"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" yaml:"scheduler"`
	Kernel     KernelConfig     `mapstructure:"kernel" yaml:"kernel"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
}

// MeshConfig controls the raw cell shapes
type MeshConfig struct {
	// ShapeSamples is the number of sphere samples behind each raw cell shape
	ShapeSamples int `mapstructure:"shape_samples" yaml:"shape_samples"`
}

// RefinementConfig controls per-cell facet reduction
type RefinementConfig struct {
	// MaxFacetsPerCell is the facet budget each cell is refined toward
	MaxFacetsPerCell int `mapstructure:"max_facets_per_cell" yaml:"max_facets_per_cell"`
	// Delta is the relative volume loss below which a step counts as diminishing
	Delta float64 `mapstructure:"delta" yaml:"delta"`
	// MaxNucleusRatio caps nucleus volume as a fraction of the cell volume
	MaxNucleusRatio float64 `mapstructure:"max_nucleus_ratio" yaml:"max_nucleus_ratio"`
	// StopPolicy is "soft" (stop on diminishing returns) or "hard" (always reach budget)
	StopPolicy string `mapstructure:"stop_policy" yaml:"stop_policy"`
}

// SchedulerConfig controls how refinement is spread over workers
type SchedulerConfig struct {
	Parallel          bool `mapstructure:"parallel" yaml:"parallel"`
	MaxWorkers        int  `mapstructure:"max_workers" yaml:"max_workers"`
	MinCellsPerWorker int  `mapstructure:"min_cells_per_worker" yaml:"min_cells_per_worker"`
}

// KernelConfig controls geometric tolerances and nucleus tessellation
type KernelConfig struct {
	// Tolerance is relative to the extent of the shapes being compared
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"`
	// MergeTolerance is the relative seed separation below which seeds share a territory
	MergeTolerance float64 `mapstructure:"merge_tolerance" yaml:"merge_tolerance"`
	// MeshCells is the marching cubes resolution for nucleus meshes
	MeshCells int `mapstructure:"mesh_cells" yaml:"mesh_cells"`
}

// LoggingConfig controls the JSON log
type LoggingConfig struct {
	// Dir is the directory for cellmesh.log; empty logs to stderr
	Dir   string `mapstructure:"dir" yaml:"dir"`
	Level string `mapstructure:"level" yaml:"level"`
}

// EngineConfig controls the population Lisp evaluator
type EngineConfig struct {
	TimeoutMs int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// Timeout returns the evaluation timeout as a time.Duration
func (c *EngineConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Default returns a Config with sensible default values
func Default() *Config {
	m := mesh.DefaultConfig()
	return &Config{
		Mesh: MeshConfig{
			ShapeSamples: m.ShapeSamples,
		},
		Refinement: RefinementConfig{
			MaxFacetsPerCell: m.MaxFacetsPerCell,
			Delta:            m.RefinementDelta,
			MaxNucleusRatio:  m.MaxNucleusToCellRatio,
			StopPolicy:       m.StopPolicy.String(),
		},
		Scheduler: SchedulerConfig{
			Parallel:          m.Parallel,
			MaxWorkers:        m.MaxWorkers,
			MinCellsPerWorker: m.MinCellsPerWorker,
		},
		Kernel: KernelConfig{
			Tolerance:      qhull.DefaultTolerance,
			MergeTolerance: qhull.DefaultMergeTolerance,
			MeshCells:      sdfx.DefaultMeshCells,
		},
		Logging: LoggingConfig{
			Dir:   "",
			Level: "info",
		},
		Engine: EngineConfig{
			TimeoutMs: int(engine.EvalTimeout / time.Millisecond),
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("mesh.shape_samples", defaults.Mesh.ShapeSamples)

	viper.SetDefault("refinement.max_facets_per_cell", defaults.Refinement.MaxFacetsPerCell)
	viper.SetDefault("refinement.delta", defaults.Refinement.Delta)
	viper.SetDefault("refinement.max_nucleus_ratio", defaults.Refinement.MaxNucleusRatio)
	viper.SetDefault("refinement.stop_policy", defaults.Refinement.StopPolicy)

	viper.SetDefault("scheduler.parallel", defaults.Scheduler.Parallel)
	viper.SetDefault("scheduler.max_workers", defaults.Scheduler.MaxWorkers)
	viper.SetDefault("scheduler.min_cells_per_worker", defaults.Scheduler.MinCellsPerWorker)

	viper.SetDefault("kernel.tolerance", defaults.Kernel.Tolerance)
	viper.SetDefault("kernel.merge_tolerance", defaults.Kernel.MergeTolerance)
	viper.SetDefault("kernel.mesh_cells", defaults.Kernel.MeshCells)

	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	viper.SetDefault("engine.timeout_ms", defaults.Engine.TimeoutMs)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// MeshConfig converts the loaded settings into a mesh.Config. The stop
// policy must already have passed Validate.
func (c *Config) MeshConfig() mesh.Config {
	policy, _ := refine.ParseStopPolicy(c.Refinement.StopPolicy)
	return mesh.Config{
		MaxFacetsPerCell:      c.Refinement.MaxFacetsPerCell,
		RefinementDelta:       c.Refinement.Delta,
		MaxNucleusToCellRatio: c.Refinement.MaxNucleusRatio,
		Parallel:              c.Scheduler.Parallel,
		MaxWorkers:            c.Scheduler.MaxWorkers,
		MinCellsPerWorker:     c.Scheduler.MinCellsPerWorker,
		StopPolicy:            policy,
		ShapeSamples:          c.Mesh.ShapeSamples,
	}
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cellmesh")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cellmesh"
	}
	return filepath.Join(home, ".config", "cellmesh")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
