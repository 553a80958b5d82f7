package hdredit

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const splineDegree = 2

// quadSpline is a degree-2 B-spline y(x) interpolating a set of sites.
type quadSpline struct {
	knots []float64
	coef  []float64
}

// fitQuadSpline solves for the B-spline coefficients that pass through every (xs[i], ys[i]).
// xs must be strictly increasing. Interior knots sit halfway between sites.
func fitQuadSpline(xs, ys []float64) (*quadSpline, error) {
	n := len(xs)
	if n < splineDegree+1 || len(ys) != n {
		return nil, errors.New("need at least 3 sites with matching values")
	}
	for i := 1; i < n; i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("sites must increase: x[%d]=%g after %g", i, xs[i], xs[i-1])
		}
	}

	knots := make([]float64, 0, n+splineDegree+1)
	knots = append(knots, xs[0], xs[0], xs[0])
	for i := 1; i < n-2; i++ {
		knots = append(knots, (xs[i]+xs[i+1])/2)
	}
	knots = append(knots, xs[n-1], xs[n-1], xs[n-1])

	s := &quadSpline{knots: knots}
	a := mat.NewDense(n, n, nil)
	for j, x := range xs {
		for i := 0; i < n; i++ {
			a.Set(j, i, s.basis(i, splineDegree, x))
		}
	}

	var c mat.VecDense
	if err := c.SolveVec(a, mat.NewVecDense(n, append([]float64(nil), ys...))); err != nil {
		return nil, fmt.Errorf("solve spline coefficients: %w", err)
	}
	s.coef = make([]float64, n)
	for i := range s.coef {
		s.coef[i] = c.AtVec(i)
	}
	return s, nil
}

// basis is the Cox-de Boor recursion for N(i, p) at x.
func (s *quadSpline) basis(i, p int, x float64) float64 {
	t := s.knots
	if p == 0 {
		last := t[len(t)-1]
		if x == last {
			// Close the domain on the right for the last non-empty span.
			if t[i] < last && t[i+1] == last {
				return 1
			}
			return 0
		}
		if t[i] <= x && x < t[i+1] {
			return 1
		}
		return 0
	}
	var v float64
	if d := t[i+p] - t[i]; d > 0 {
		v += (x - t[i]) / d * s.basis(i, p-1, x)
	}
	if d := t[i+p+1] - t[i+1]; d > 0 {
		v += (t[i+p+1] - x) / d * s.basis(i+1, p-1, x)
	}
	return v
}

func (s *quadSpline) eval(x float64) float64 {
	var y float64
	for i, c := range s.coef {
		if b := s.basis(i, splineDegree, x); b != 0 {
			y += c * b
		}
	}
	return y
}
