package kernel

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// FibonacciSphere returns n points spread evenly over the sphere of the given
// center and radius using the golden-angle spiral.
func FibonacciSphere(center v3.Vec, radius float64, n int) []v3.Vec {
	if n <= 0 {
		return nil
	}
	golden := math.Pi * (3 - math.Sqrt(5))
	out := make([]v3.Vec, n)
	for i := 0; i < n; i++ {
		z := 1 - (2*float64(i)+1)/float64(n)
		r := math.Sqrt(1 - z*z)
		theta := golden * float64(i)
		dir := v3.Vec{X: r * math.Cos(theta), Y: r * math.Sin(theta), Z: z}
		out[i] = center.Add(dir.MulScalar(radius))
	}
	return out
}

// PullInside moves each point of pts toward origin until it lies within p.
// origin must be inside p. Points already inside are unchanged.
func PullInside(p *Polyhedron, origin v3.Vec, pts []v3.Vec) []v3.Vec {
	out := make([]v3.Vec, len(pts))
	for i, x := range pts {
		d := x.Sub(origin)
		t := 1.0
		for j := range p.Faces {
			pl := p.Faces[j].Plane
			nd := pl.Normal.Dot(d)
			if nd <= 0 {
				continue
			}
			if s := (pl.Offset - pl.Normal.Dot(origin)) / nd; s < t {
				t = math.Max(s, 0)
			}
		}
		out[i] = origin.Add(d.MulScalar(t))
	}
	return out
}
