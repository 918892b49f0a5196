// Package tessellate turns a generated cell mesh into triangle meshes. Cell
// shapes are fanned directly from their polyhedral faces; nuclei are smooth
// solids tessellated through a kernel.SolidKernel. One mesh is produced per
// cell and one per nucleus.
package tessellate

import (
	"fmt"

	"github.com/chazu/cellmesh/pkg/cell"
	"github.com/chazu/cellmesh/pkg/kernel"
)

// Options selects which parts are emitted.
type Options struct {
	// Nuclei emits one mesh per nucleus. Requires a SolidKernel.
	Nuclei bool
}

// PartName returns the mesh name for a cell.
func PartName(c *cell.Cell) string {
	return c.Label()
}

// NucleusPartName returns the mesh name for the i-th nucleus of c.
func NucleusPartName(c *cell.Cell, i int) string {
	return fmt.Sprintf("%s/nucleus-%d", c.Label(), i)
}

// Tessellate produces one mesh per cell shape, followed by that cell's
// nucleus meshes when opts.Nuclei is set. The cells are never mutated.
func Tessellate(cells []*cell.Cell, sk kernel.SolidKernel, opts Options) ([]*kernel.Mesh, error) {
	if opts.Nuclei && sk == nil {
		return nil, fmt.Errorf("tessellate: nucleus meshes require a solid kernel")
	}

	var meshes []*kernel.Mesh
	for _, c := range cells {
		m, err := cellMesh(c)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, m)

		if !opts.Nuclei {
			continue
		}
		for i, n := range c.Nuclei() {
			nm, err := nucleusMesh(sk, n)
			if err != nil {
				return nil, fmt.Errorf("tessellate: nucleus %d of cell %s: %w", i, c.ID(), err)
			}
			nm.PartName = NucleusPartName(c, i)
			meshes = append(meshes, nm)
		}
	}
	return meshes, nil
}

// cellMesh fans the shape of c into triangles.
func cellMesh(c *cell.Cell) (*kernel.Mesh, error) {
	shape := c.Shape()
	if shape == nil || shape.IsEmpty() {
		return nil, fmt.Errorf("tessellate: cell %s has no shape", c.ID())
	}
	m := shape.ToMesh()
	m.PartName = PartName(c)
	return m, nil
}

func nucleusMesh(sk kernel.SolidKernel, n *cell.Nucleus) (*kernel.Mesh, error) {
	s, err := sk.Ellipsoid(n.Center, n.Radii)
	if err != nil {
		return nil, err
	}
	return sk.ToMesh(s)
}

// Combine merges meshes into a single mesh named name.
func Combine(name string, meshes []*kernel.Mesh) *kernel.Mesh {
	out := &kernel.Mesh{PartName: name}
	for _, m := range meshes {
		out.Append(m)
	}
	return out
}
