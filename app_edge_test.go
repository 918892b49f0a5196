package main

import (
	"strings"
	"testing"

	"github.com/chazu/cellmesh/pkg/mesh"
)

// ---------------------------------------------------------------------------
// 1. Empty source: no meshes, no errors, and every slice non-nil so the
//    JSON report carries [] rather than null.
// ---------------------------------------------------------------------------

func TestE2EEmptySourceExtended(t *testing.T) {
	for _, format := range []SourceFormat{FormatLisp, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			result := testApp().Generate("", format)

			if len(result.Errors) != 0 {
				t.Errorf("expected 0 errors, got %v", result.Errors)
			}
			if len(result.Warnings) != 0 {
				t.Errorf("expected 0 warnings, got %v", result.Warnings)
			}
			if result.Meshes == nil || result.Errors == nil || result.Warnings == nil {
				t.Error("result slices should be non-nil")
			}
			if result.Summary != nil || result.Report != nil {
				t.Error("expected no summary or report for an empty population")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// 2. Syntax error after valid code: the error keeps its line.
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	source := "(def r 3)\n(cell :seed (vec3 0 0 0) :radius r"
	result := testApp().Generate(source, FormatLisp)

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one error for unmatched parens")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on syntax error, got %d", len(result.Meshes))
	}
	if result.Errors[0].Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
}

// ---------------------------------------------------------------------------
// 3. Comments and whitespace only: an empty population, not an error.
// ---------------------------------------------------------------------------

func TestE2ENoCells(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"comments", "; nothing here\n; still nothing\n"},
		{"whitespace", "   \n\t\n  "},
		{"definitions", "(def spacing 10)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := testApp().Generate(tt.source, FormatLisp)
			if len(result.Errors) != 0 {
				t.Errorf("expected no errors, got %v", result.Errors)
			}
			if len(result.Meshes) != 0 || result.Cells != 0 {
				t.Errorf("got %d meshes and %d cells, want none", len(result.Meshes), result.Cells)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// 4. Rapid sequential runs on one App: no state leaks between evaluations.
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluation(t *testing.T) {
	app := testApp(WithNuclei(false))
	sources := []string{
		`(cell "a" :seed (vec3 0 0 0) :radius 2)`,
		`(cell "a" :seed (vec3 -3 0 0) :radius 2) (cell "b" :seed (vec3 3 0 0) :radius 2)`,
		``,
		`(cell "a" :seed (vec3 0 0 0) :radius 2)`,
	}
	want := []int{1, 2, 0, 1}

	for i, src := range sources {
		result := app.Generate(src, FormatLisp)
		if len(result.Errors) > 0 {
			t.Fatalf("run %d: unexpected errors: %v", i, result.Errors)
		}
		if len(result.Meshes) != want[i] {
			t.Errorf("run %d: got %d meshes, want %d", i, len(result.Meshes), want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// 5. Source-level failures surface as errors, never as panics.
// ---------------------------------------------------------------------------

func TestE2ESourceErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		format  SourceFormat
		wantErr string
	}{
		{
			name:    "yaml syntax",
			source:  "cells: [\n",
			format:  FormatYAML,
			wantErr: "failed to parse population YAML",
		},
		{
			name:    "yaml unknown field",
			source:  "colour: red\n",
			format:  FormatYAML,
			wantErr: "failed to parse population YAML",
		},
		{
			name:    "unknown format",
			source:  `(cell :seed (vec3 0 0 0) :radius 1)`,
			format:  SourceFormat("json"),
			wantErr: "unknown population format",
		},
		{
			name: "seed outside domain",
			source: `(domain :min (vec3 -5 -5 -5) :max (vec3 5 5 5))
(cell "out" :seed (vec3 9 0 0) :radius 2)`,
			format:  FormatLisp,
			wantErr: "outside the domain",
		},
		{
			name: "yaml negative radius",
			source: `domain:
  min: {x: -5, y: -5, z: -5}
  max: {x: 5, y: 5, z: 5}
cells:
  - seed: {x: 0, y: 0, z: 0}
    radius: -1
`,
			format:  FormatYAML,
			wantErr: "radius must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := testApp().Generate(tt.source, tt.format)
			if len(result.Errors) == 0 {
				t.Fatalf("expected an error containing %q", tt.wantErr)
			}
			if !strings.Contains(result.Errors[0].Message, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", result.Errors[0].Message, tt.wantErr)
			}
			if len(result.Meshes) != 0 {
				t.Errorf("expected no meshes, got %d", len(result.Meshes))
			}
		})
	}
}

// ---------------------------------------------------------------------------
// 6. An invalid mesh config fails generation without a summary.
// ---------------------------------------------------------------------------

func TestE2EInvalidMeshConfig(t *testing.T) {
	cfg := mesh.DefaultConfig()
	cfg.MaxWorkers = 0
	result := NewApp(WithMeshConfig(cfg)).Generate(`(cell :seed (vec3 0 0 0) :radius 2)`, FormatLisp)

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0].Message, "mesh generation failed") {
		t.Errorf("error = %q, want mesh generation failure", result.Errors[0].Message)
	}
	if result.Summary != nil {
		t.Error("expected no summary on failure")
	}
}

// ---------------------------------------------------------------------------
// 7. Colors: the palette wraps after eight cells.
// ---------------------------------------------------------------------------

func TestE2EPaletteWraps(t *testing.T) {
	result := testApp(WithNuclei(false)).Generate(readExample(t, "sheet.lisp"), FormatLisp)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Meshes) != 9 {
		t.Fatalf("expected 9 meshes, got %d", len(result.Meshes))
	}
	for i := 1; i < len(colorPalette); i++ {
		if result.Meshes[i].Color == result.Meshes[0].Color {
			t.Errorf("mesh %d reuses the first color before the palette wraps", i)
		}
	}
	if result.Meshes[8].Color != result.Meshes[0].Color {
		t.Errorf("mesh 8 color = %q, want %q", result.Meshes[8].Color, result.Meshes[0].Color)
	}
}

// ---------------------------------------------------------------------------
// 8. Validate counts cells and reports findings without building a mesh.
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		result := testApp().Validate(readExample(t, "pair.yaml"), FormatYAML)
		if len(result.Errors) != 0 {
			t.Fatalf("unexpected errors: %v", result.Errors)
		}
		if result.Cells != 2 {
			t.Errorf("Cells = %d, want 2", result.Cells)
		}
		if len(result.Meshes) != 0 || result.Summary != nil {
			t.Error("Validate should not generate meshes")
		}
	})

	t.Run("lisp", func(t *testing.T) {
		result := testApp().Validate(readExample(t, "clusters.lisp"), FormatLisp)
		if len(result.Errors) != 0 {
			t.Fatalf("unexpected errors: %v", result.Errors)
		}
		if result.Cells != 7 {
			t.Errorf("Cells = %d, want 7", result.Cells)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		result := testApp().Validate("(cell", FormatLisp)
		if len(result.Errors) == 0 {
			t.Error("expected an error")
		}
	})
}

// ---------------------------------------------------------------------------
// 9. Coincident seeds: a validation warning, then one removal warning.
// ---------------------------------------------------------------------------

func TestE2ECoincidentSeeds(t *testing.T) {
	source := `(cell "a" :seed (vec3 0 0 0) :radius 2)
(cell "b" :seed (vec3 0 0 0) :radius 2)
(cell "c" :seed (vec3 5 0 0) :radius 2)`
	result := testApp(WithNuclei(false)).Generate(source, FormatLisp)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}

	var coincide, removed int
	for _, w := range result.Warnings {
		switch {
		case strings.Contains(w.Message, "seed coincides"):
			coincide++
		case strings.Contains(w.Message, "degenerate cell removed"):
			removed++
		}
	}
	if coincide != 1 || removed != 1 {
		t.Errorf("got %d coincidence and %d removal warnings, want 1 each: %v", coincide, removed, result.Warnings)
	}
	if result.Cells != 2 || len(result.Meshes) != 2 {
		t.Errorf("got %d cells and %d meshes, want 2 each", result.Cells, len(result.Meshes))
	}
}
