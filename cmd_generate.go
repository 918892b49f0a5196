package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var generateCmd = &cobra.Command{
	Use:   "generate <population.{yaml,lisp}>",
	Short: "Generate a refined cell mesh from a population",
	Long: `Generate a refined cell mesh from a population file.

Prints a mesh summary, or a JSON report with --json. Removed cells and
stalled refinements are reported as warnings; only invalid configuration,
an invalid population or invalid geometry fail the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	generateJSON    bool   // Output report as JSON
	generateMesh    string // Write triangle meshes to this file
	generateMetrics bool   // Include metrics in the text output
	generateNuclei  bool   // Tessellate nuclei into the mesh file
)

func init() {
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Output the report as JSON")
	generateCmd.Flags().StringVar(&generateMesh, "mesh", "", "Write triangle meshes as JSON to this file")
	generateCmd.Flags().BoolVar(&generateMetrics, "metrics", false, "Print generation metrics")
	generateCmd.Flags().BoolVar(&generateNuclei, "nuclei", true, "Include nucleus meshes in --mesh output")

	generateCmd.Flags().Bool("parallel", true, "Refine cells on parallel workers")
	generateCmd.Flags().Int("max-workers", 0, "Maximum refinement workers")
	generateCmd.Flags().Int("max-facets", 0, "Facet budget per cell")
	generateCmd.Flags().String("policy", "", "Refinement stop policy (soft, hard)")
	_ = viper.BindPFlag("scheduler.parallel", generateCmd.Flags().Lookup("parallel"))
	_ = viper.BindPFlag("scheduler.max_workers", generateCmd.Flags().Lookup("max-workers"))
	_ = viper.BindPFlag("refinement.max_facets_per_cell", generateCmd.Flags().Lookup("max-facets"))
	_ = viper.BindPFlag("refinement.stop_policy", generateCmd.Flags().Lookup("policy"))

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadSettings()
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	source, format, err := readSource(args[0])
	if err != nil {
		return err
	}

	app := NewApp(WithSettings(cfg), WithLogger(log), WithNuclei(generateNuclei && generateMesh != ""))
	result := app.Generate(source, format)

	if generateMesh != "" && len(result.Errors) == 0 {
		if err := writeMeshes(generateMesh, result.Meshes); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if generateJSON {
		if err := printGenerateJSON(out, result); err != nil {
			return err
		}
	} else {
		printGenerateText(out, result, cfg.Refinement.MaxFacetsPerCell)
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("generation failed with %d error(s)", len(result.Errors))
	}
	return nil
}

func writeMeshes(path string, meshes []MeshData) error {
	data, err := json.Marshal(meshes)
	if err != nil {
		return fmt.Errorf("failed to encode meshes: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write meshes: %w", err)
	}
	return nil
}

func printGenerateJSON(w io.Writer, result GenerateResult) error {
	// Triangles go to --mesh, not the report.
	result.Meshes = nil
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printGenerateText(w io.Writer, result GenerateResult, budget int) {
	printFindings(w, result)
	if result.Summary == nil {
		return
	}
	s := result.Summary

	fmt.Fprintln(w)
	fmt.Fprintln(w, "MESH SUMMARY")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	fmt.Fprintf(w, "Cells:        %d\n", s.Cells)
	fmt.Fprintf(w, "Nuclei:       %d\n", s.Nuclei)
	fmt.Fprintf(w, "Facets:       %d (min %d, max %d)\n", s.Facets, s.MinFacets, s.MaxFacets)
	fmt.Fprintf(w, "Over budget:  %d (budget %d)\n", s.OverBudget, budget)
	fmt.Fprintf(w, "Volume:       %.4g\n", s.Volume)
	fmt.Fprintf(w, "Max ratio:    %.3f\n", s.MaxRatio)
	fmt.Fprintf(w, "Bounds:       (%.3g, %.3g, %.3g) .. (%.3g, %.3g, %.3g)\n",
		s.Bounds.Min.X, s.Bounds.Min.Y, s.Bounds.Min.Z,
		s.Bounds.Max.X, s.Bounds.Max.Y, s.Bounds.Max.Z)

	if r := result.Report; r != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "REFINEMENT")
		fmt.Fprintln(w, strings.Repeat("─", 50))
		fmt.Fprintf(w, "Workers:        %d\n", r.Workers)
		fmt.Fprintf(w, "Neighbor edges: %d\n", r.Edges)
		fmt.Fprintf(w, "Removed cells:  %d\n", len(r.Removed))
		fmt.Fprintf(w, "Stalled cells:  %d\n", len(r.Stalled))
		fmt.Fprintf(w, "Dropped nuclei: %d\n", len(r.DroppedNuclei))
	}

	if generateMetrics && len(result.Metrics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "METRICS")
		fmt.Fprintln(w, strings.Repeat("─", 50))
		for _, m := range result.Metrics {
			name := m.Name
			if m.Label != "" {
				name += "{" + m.Label + "}"
			}
			fmt.Fprintf(w, "%-48s %g\n", name, m.Value)
		}
	}
}

// printFindings lists errors and warnings, one per line.
func printFindings(w io.Writer, result GenerateResult) {
	for _, e := range result.Errors {
		if e.Line > 0 {
			fmt.Fprintf(w, "error (line %d): %s\n", e.Line, e.Message)
			continue
		}
		fmt.Fprintf(w, "error: %s\n", e.Message)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn.Message)
	}
}
