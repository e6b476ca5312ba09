// Package perspective derives and applies the planar homography that rectifies the
// center lane into a bird's-eye view.
package perspective

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when the point correspondences cannot define a
// projective transform (near-collinear or coincident corners).
var ErrDegenerate = errors.New("degenerate quadrilateral")

// DefaultMaxCondition bounds the condition number of the normalized linear system.
const DefaultMaxCondition = 1e12

// collinearTolerance is the minimum triangle area, relative to the squared extent of
// the quad, for three corners to count as non-collinear.
const collinearTolerance = 1e-6

// Point is an image coordinate.
type Point struct {
	X, Y float64
}

// Quad holds four corners ordered top-right, top-left, bottom-left, bottom-right.
type Quad [4]Point

// Homography is a 3x3 projective transform stored row-major with h33 normalized to 1.
type Homography struct {
	m [9]float64
}

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{m: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// Rows returns the matrix as rows.
func (h Homography) Rows() [3][3]float64 {
	return [3][3]float64{
		{h.m[0], h.m[1], h.m[2]},
		{h.m[3], h.m[4], h.m[5]},
		{h.m[6], h.m[7], h.m[8]},
	}
}

// Dense returns a gonum copy of the matrix.
func (h Homography) Dense() *mat.Dense {
	data := h.m
	return mat.NewDense(3, 3, data[:])
}

// Apply maps p through the transform.
func (h Homography) Apply(p Point) (Point, error) {
	w := h.m[6]*p.X + h.m[7]*p.Y + h.m[8]
	if math.Abs(w) < 1e-12 {
		return Point{}, fmt.Errorf("point (%g, %g) maps to infinity", p.X, p.Y)
	}
	return Point{
		X: (h.m[0]*p.X + h.m[1]*p.Y + h.m[2]) / w,
		Y: (h.m[3]*p.X + h.m[4]*p.Y + h.m[5]) / w,
	}, nil
}

// Inverse returns the transform mapping destination back to source.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	return fromDense(&inv)
}

func fromDense(d mat.Matrix) (Homography, error) {
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h.m[r*3+c] = d.At(r, c)
		}
	}
	if math.Abs(h.m[8]) < 1e-15 {
		return Homography{}, fmt.Errorf("%w: h33 vanishes", ErrDegenerate)
	}
	s := h.m[8]
	for i := range h.m {
		h.m[i] /= s
	}
	return h, nil
}

// Solve finds the homography taking each src corner to the matching dst corner.
// maxCond <= 0 uses DefaultMaxCondition.
func Solve(src, dst Quad, maxCond float64) (Homography, error) {
	if maxCond <= 0 {
		maxCond = DefaultMaxCondition
	}
	if err := checkQuad(src); err != nil {
		return Homography{}, fmt.Errorf("source: %w", err)
	}
	if err := checkQuad(dst); err != nil {
		return Homography{}, fmt.Errorf("destination: %w", err)
	}

	// Hartley normalization keeps the 8x8 system well conditioned for pixel coordinates.
	ts, ns := normalize(src)
	td, nd := normalize(dst)

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var lu mat.LU
	lu.Factorize(a)
	if cond := lu.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxCond {
		return Homography{}, fmt.Errorf("%w: condition number %g", ErrDegenerate, cond)
	}

	var sol mat.VecDense
	if err := lu.SolveVecTo(&sol, false, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	hn := mat.NewDense(3, 3, []float64{
		sol.AtVec(0), sol.AtVec(1), sol.AtVec(2),
		sol.AtVec(3), sol.AtVec(4), sol.AtVec(5),
		sol.AtVec(6), sol.AtVec(7), 1,
	})

	var tdInv mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	var tmp, full mat.Dense
	tmp.Mul(hn, ts)
	full.Mul(&tdInv, &tmp)

	return fromDense(&full)
}

// checkQuad rejects quads where any three corners are (nearly) collinear.
func checkQuad(q Quad) error {
	minX, maxX := q[0].X, q[0].X
	minY, maxY := q[0].Y, q[0].Y
	for _, p := range q[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	extent := math.Max(maxX-minX, maxY-minY)
	if extent == 0 {
		return fmt.Errorf("%w: all corners coincide", ErrDegenerate)
	}

	limit := collinearTolerance * extent * extent
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				if math.Abs(cross(q[i], q[j], q[k])) < limit {
					return fmt.Errorf("%w: corners %d, %d, %d are collinear", ErrDegenerate, i, j, k)
				}
			}
		}
	}
	return nil
}

func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// normalize translates the quad to its centroid and scales it to a mean distance of
// sqrt(2). It returns the similarity transform and the transformed points.
func normalize(q Quad) (*mat.Dense, Quad) {
	var cx, cy float64
	for _, p := range q {
		cx += p.X
		cy += p.Y
	}
	cx /= 4
	cy /= 4

	var mean float64
	for _, p := range q {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= 4
	s := math.Sqrt2 / mean

	var out Quad
	for i, p := range q {
		out[i] = Point{X: (p.X - cx) * s, Y: (p.Y - cy) * s}
	}
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	return t, out
}
