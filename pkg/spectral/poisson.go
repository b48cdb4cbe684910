// Package spectral solves the periodic discrete Poisson equation on a square
// grid by diagonalising the five-point Laplacian with a 2D FFT.
package spectral

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidGrid is returned when the right-hand side is empty or not square.
var ErrInvalidGrid = errors.New("spectral: grid must be square and non-empty")

// Convolve multiplies every non-DC coefficient of an r x c spectrum by the
// inverse eigenvalue of the periodic five-point Laplacian,
//
//	0.5 / (cos(2*pi*k0/r) + cos(2*pi*k1/c) - 2).
//
// The DC coefficient has a zero eigenvalue and is left untouched, which fixes
// the solution only up to an additive constant.
func Convolve(coeffs []complex128, r, c int) []complex128 {
	if len(coeffs) != r*c {
		panic("spectral: coefficient length mismatch")
	}
	out := make([]complex128, len(coeffs))
	for k0 := 0; k0 < r; k0++ {
		c0 := math.Cos(2.0 * math.Pi * float64(k0) / float64(r))
		for k1 := 0; k1 < c; k1++ {
			idx := k0*c + k1
			if k0 == 0 && k1 == 0 {
				out[idx] = coeffs[idx]
				continue
			}
			c1 := math.Cos(2.0 * math.Pi * float64(k1) / float64(c))
			q := 0.5 / (c0 + c1 - 2.0)
			out[idx] = coeffs[idx] * complex(q, 0)
		}
	}
	return out
}

// SolvePoisson returns an initial potential for the contrast field lam by
// solving the periodic discrete Poisson equation in bin units. Only the real
// part of the inverse transform is kept.
func SolvePoisson(lam mat.Matrix) (*mat.Dense, error) {
	if lam == nil {
		return nil, ErrInvalidGrid
	}
	r, c := lam.Dims()
	if r == 0 || r != c {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidGrid, r, c)
	}

	buf := Forward(lam)
	buf = Convolve(buf, r, c)
	buf = Inverse(buf, r, c)

	phi := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			phi.Set(i, j, real(buf[i*c+j]))
		}
	}
	return phi, nil
}
