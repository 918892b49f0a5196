package population

import (
	"fmt"
	"math/rand/v2"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Grid lays out nx*ny*nz cells on a cubic lattice centered at the origin.
// The domain extends half a spacing beyond the outer seeds. Each cell gets
// one spherical nucleus of radius nucleusRadius; zero means none.
func Grid(nx, ny, nz int, spacing, radius, nucleusRadius float64) *Population {
	p := &Population{Name: fmt.Sprintf("grid-%dx%dx%d", nx, ny, nz)}
	origin := v3.Vec{
		X: -spacing * float64(nx-1) / 2,
		Y: -spacing * float64(ny-1) / 2,
		Z: -spacing * float64(nz-1) / 2,
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				seed := origin.Add(v3.Vec{X: float64(i) * spacing, Y: float64(j) * spacing, Z: float64(k) * spacing})
				p.Cells = append(p.Cells, newSpec(len(p.Cells), seed, radius, nucleusRadius))
			}
		}
	}
	half := v3.Vec{X: spacing / 2, Y: spacing / 2, Z: spacing / 2}
	p.Domain = Domain{Min: origin.Sub(half), Max: origin.Add(v3.Vec{
		X: spacing * float64(nx-1),
		Y: spacing * float64(ny-1),
		Z: spacing * float64(nz-1),
	}).Add(half)}
	return p
}

// Random scatters n seeds uniformly in domain. The same seed value always
// produces the same population.
func Random(n int, domain Domain, radius, nucleusRadius float64, seed uint64) *Population {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	size := domain.Size()
	p := &Population{Name: fmt.Sprintf("random-%d", n), Domain: domain}
	for i := 0; i < n; i++ {
		s := domain.Min.Add(v3.Vec{X: rng.Float64() * size.X, Y: rng.Float64() * size.Y, Z: rng.Float64() * size.Z})
		p.Cells = append(p.Cells, newSpec(i, s, radius, nucleusRadius))
	}
	return p
}

// Clusters places perCluster seeds around each center, each within jitter of
// it. A jitter below the merge tolerance yields coincident seeds.
func Clusters(centers []v3.Vec, perCluster int, jitter, radius float64, domain Domain, seed uint64) *Population {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	p := &Population{Name: fmt.Sprintf("clusters-%dx%d", len(centers), perCluster), Domain: domain}
	for _, c := range centers {
		for i := 0; i < perCluster; i++ {
			d := v3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1}
			p.Cells = append(p.Cells, newSpec(len(p.Cells), c.Add(d.MulScalar(jitter)), radius, 0))
		}
	}
	return p
}

func newSpec(i int, seed v3.Vec, radius, nucleusRadius float64) CellSpec {
	spec := CellSpec{Label: fmt.Sprintf("c%d", i), Seed: seed, Radius: radius}
	if nucleusRadius > 0 {
		spec.Nuclei = []NucleusSpec{{Radii: v3.Vec{X: nucleusRadius, Y: nucleusRadius, Z: nucleusRadius}}}
	}
	return spec
}
