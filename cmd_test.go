package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/cellmesh/pkg/population"
)

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := executeCommand(t, "validate", "examples/pair.yaml")
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "examples/pair.yaml: 2 cells, 0 warning(s)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestValidateCommandInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	bad := `domain:
  min: {x: -1, y: -1, z: -1}
  max: {x: 1, y: 1, z: 1}
cells:
  - seed: {x: 4, y: 0, z: 0}
    radius: 1
`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand(t, "validate", path)
	if err == nil {
		t.Fatal("expected an error for a seed outside the domain")
	}
	if !strings.Contains(out, "outside the domain") {
		t.Errorf("expected the finding in the output, got:\n%s", out)
	}
}

func TestValidateCommandUnknownFormat(t *testing.T) {
	_, err := executeCommand(t, "validate", "population.txt")
	if err == nil || !strings.Contains(err.Error(), "unknown population format") {
		t.Errorf("err = %v, want unknown population format", err)
	}
}

func TestGenerateCommandJSON(t *testing.T) {
	meshPath := filepath.Join(t.TempDir(), "meshes.json")
	out, err := executeCommand(t, "generate", "--json", "--mesh", meshPath, "examples/pair.yaml")
	t.Cleanup(func() {
		generateJSON = false
		generateMesh = ""
	})
	if err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}

	var report struct {
		Cells   int             `json:"cells"`
		Meshes  []MeshData      `json:"meshes"`
		Summary json.RawMessage `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if report.Cells != 2 {
		t.Errorf("cells = %d, want 2", report.Cells)
	}
	if len(report.Meshes) != 0 {
		t.Errorf("report should not carry triangles, got %d meshes", len(report.Meshes))
	}
	if len(report.Summary) == 0 {
		t.Error("expected a summary in the report")
	}

	data, err := os.ReadFile(meshPath)
	if err != nil {
		t.Fatalf("mesh file not written: %v", err)
	}
	var meshes []MeshData
	if err := json.Unmarshal(data, &meshes); err != nil {
		t.Fatalf("mesh file is not JSON: %v", err)
	}
	// left, its nucleus, right
	if len(meshes) != 3 {
		t.Errorf("got %d meshes, want 3", len(meshes))
	}
}

func TestGenerateCommandText(t *testing.T) {
	out, err := executeCommand(t, "generate", "examples/pair.yaml")
	if err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	for _, want := range []string{"MESH SUMMARY", "Cells:        2", "REFINEMENT", "Neighbor edges: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := executeCommand(t, "config")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	for _, want := range []string{"# Config file", "max_facets_per_cell: 64", "stop_policy: soft"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConvertCommand(t *testing.T) {
	out, err := executeCommand(t, "convert", "examples/sheet.lisp")
	if err != nil {
		t.Fatalf("convert failed: %v\n%s", err, out)
	}

	pop, err := population.Parse([]byte(out))
	if err != nil {
		t.Fatalf("output does not parse as a population: %v\n%s", err, out)
	}
	if len(pop.Cells) != 9 {
		t.Errorf("got %d cells, want 9", len(pop.Cells))
	}
	if pop.NucleusCount() != 9 {
		t.Errorf("got %d nuclei, want 9", pop.NucleusCount())
	}
}
