// Package diffusion builds the right-hand side of the steady-state diffusion
// equation from a perturbed and a reference proton fluence image.
//
// The contrast uses the first-order Taylor expansion of the exact relation
// between the flux ratio and the contrast. Bins where either image has no
// counts carry no information; their contrast is set to zero, which biases
// the reconstruction in sparse-flux regions. Coverage reports how much of
// the image that affects.
package diffusion

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"pradfield/internal/models"
)

// SteadyState returns the source term Src = Lam*exp(Lam) and the fluence
// contrast Lam = 2*(1 - sqrt(ref/flux)) for every bin where both counts are
// strictly positive. Other bins are zero.
//
// The grids may be rectangular; they only need to share a shape.
func SteadyState(flux, ref mat.Matrix) (src, lam *mat.Dense, err error) {
	if err := models.ValidateSameShape(flux, ref); err != nil {
		return nil, nil, err
	}
	r, c := flux.Dims()
	lam = mat.NewDense(r, c, nil)
	lam.Apply(func(i, j int, _ float64) float64 {
		f, fr := flux.At(i, j), ref.At(i, j)
		if f <= 0 || fr <= 0 {
			return 0
		}
		return 2.0 * (1.0 - math.Sqrt(fr/f))
	}, lam)

	src = mat.NewDense(r, c, nil)
	src.Apply(func(_, _ int, v float64) float64 {
		return v * math.Exp(v)
	}, lam)
	return src, lam, nil
}

// Coverage returns the fraction of bins where the contrast is defined, i.e.
// both counts are positive.
func Coverage(flux, ref mat.Matrix) (float64, error) {
	if err := models.ValidateSameShape(flux, ref); err != nil {
		return 0, err
	}
	r, c := flux.Dims()
	defined := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if flux.At(i, j) > 0 && ref.At(i, j) > 0 {
				defined++
			}
		}
	}
	return float64(defined) / float64(r*c), nil
}

// Coefficient returns exp(Lam), the fixed diffusion coefficient field.
func Coefficient(lam mat.Matrix) *mat.Dense {
	r, c := lam.Dims()
	y := mat.NewDense(r, c, nil)
	y.Apply(func(_, _ int, v float64) float64 {
		return math.Exp(v)
	}, lam)
	return y
}
