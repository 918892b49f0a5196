// Package sdfx implements the kernel.SolidKernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library. Nuclei are modeled as smooth
// ellipsoids and tessellated with marching cubes.
package sdfx

import (
	"fmt"

	"github.com/chazu/cellmesh/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.SolidKernel = (*SdfxKernel)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 48

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// SdfxKernel implements kernel.SolidKernel using sdfx.
type SdfxKernel struct {
	meshCells int
}

// New returns a new SdfxKernel. meshCells <= 0 selects DefaultMeshCells.
func New(meshCells int) *SdfxKernel {
	if meshCells <= 0 {
		meshCells = DefaultMeshCells
	}
	return &SdfxKernel{meshCells: meshCells}
}

// MeshCells returns the marching cubes resolution along the longest axis.
func (k *SdfxKernel) MeshCells() int {
	return k.meshCells
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Ellipsoid creates an axis-aligned ellipsoid by scaling a unit sphere.
// The scaled field is no longer a true distance but keeps its sign, which is
// all Inside and marching cubes need.
func (k *SdfxKernel) Ellipsoid(center, radii v3.Vec) (kernel.Solid, error) {
	if !(radii.X > 0 && radii.Y > 0 && radii.Z > 0) {
		return nil, fmt.Errorf("%w: ellipsoid radii %v must be positive", kernel.ErrDegenerate, radii)
	}
	s, err := sdf.Sphere3D(1)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Sphere3D: %w", err)
	}
	m := sdf.Translate3d(center).Mul(sdf.Scale3d(radii))
	return wrap(sdf.Transform3D(s, m)), nil
}

// Inside reports whether p lies inside or on s.
func (k *SdfxKernel) Inside(s kernel.Solid, p v3.Vec) bool {
	return unwrap(s).Evaluate(p) <= 0
}

// ToMesh tessellates s with uniform marching cubes. Vertices shared by
// neighboring triangles are welded, and each vertex normal is the SDF
// gradient there, so curved nuclei shade smoothly.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)

	triangles := render.ToTriangles(sdf3, render.NewMarchingCubesUniform(k.meshCells))
	if len(triangles) == 0 {
		return nil, fmt.Errorf("%w: marching cubes produced no triangles", kernel.ErrDegenerate)
	}

	bb := sdf3.BoundingBox()
	h := kernel.BoxDiagonal(bb) * 1e-4
	m := &kernel.Mesh{Indices: make([]uint32, 0, len(triangles)*3)}
	welded := make(map[[3]float32]uint32)

	vertex := func(v v3.Vec) uint32 {
		key := [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
		if idx, ok := welded[key]; ok {
			return idx
		}
		idx := uint32(len(welded))
		welded[key] = idx
		n := gradient(sdf3, v, h)
		m.Vertices = append(m.Vertices, key[0], key[1], key[2])
		m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
		return idx
	}

	for _, tri := range triangles {
		a, b, c := vertex(tri[0]), vertex(tri[1]), vertex(tri[2])
		if a == b || b == c || a == c {
			continue
		}
		m.Indices = append(m.Indices, a, b, c)
	}
	if len(m.Indices) == 0 {
		return nil, fmt.Errorf("%w: marching cubes produced only slivers", kernel.ErrDegenerate)
	}
	return m, nil
}

// gradient estimates the unit outward normal of s at p by central differences.
func gradient(s sdf.SDF3, p v3.Vec, h float64) v3.Vec {
	dx := v3.Vec{X: h}
	dy := v3.Vec{Y: h}
	dz := v3.Vec{Z: h}
	g := v3.Vec{
		X: s.Evaluate(p.Add(dx)) - s.Evaluate(p.Sub(dx)),
		Y: s.Evaluate(p.Add(dy)) - s.Evaluate(p.Sub(dy)),
		Z: s.Evaluate(p.Add(dz)) - s.Evaluate(p.Sub(dz)),
	}
	if g.Length() == 0 {
		return v3.Vec{}
	}
	return g.Normalize()
}
