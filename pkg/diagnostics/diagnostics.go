// Package diagnostics summarises reconstruction quality and input statistics
// for reporting.
package diagnostics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"pradfield/internal/models"
)

// DefaultFluxFloor is the count per bin below which bins are reported as
// sparse and left out of contrast statistics.
const DefaultFluxFloor = 10.0

var (
	// ErrUndefinedMetric is returned when a relative metric would divide by a
	// reference with zero norm.
	ErrUndefinedMetric = errors.New("diagnostics: reference field has zero norm")

	// ErrShapeMismatch is returned when compared fields differ in shape.
	ErrShapeMismatch = errors.New("diagnostics: field shapes differ")

	// ErrNoSamples is returned when a statistic has no bins to summarise.
	ErrNoSamples = errors.New("diagnostics: no bins above the flux floor")
)

// Norm is the Frobenius norm of a vector field over both components.
func Norm(f *models.VectorField) float64 {
	return math.Hypot(mat.Norm(f.X, 2), mat.Norm(f.Y, 2))
}

// L2 returns ||reconstructed - reference|| / ||reference||.
func L2(reconstructed, reference *models.VectorField) (float64, error) {
	if err := sameShape(reconstructed, reference); err != nil {
		return 0, err
	}
	ref := Norm(reference)
	if ref == 0 {
		return 0, ErrUndefinedMetric
	}
	r, c := reference.Dims()
	diff := models.NewVectorField(r, c)
	diff.X.Sub(reconstructed.X, reference.X)
	diff.Y.Sub(reconstructed.Y, reference.Y)
	return Norm(diff) / ref, nil
}

// Energy returns the field energy sum(|B|^2) * di^2, where di is the bin
// pitch projected back from the detector to the interaction region.
func Energy(f *models.VectorField, binPitch float64, p models.PhysicalParameters) float64 {
	di := binPitch * p.SourceToRegionCM / p.SourceToDetectorCM
	x, y := flatten(f.X), flatten(f.Y)
	return (floats.Dot(x, x) + floats.Dot(y, y)) * di * di
}

// Comparison holds a reconstructed field measured against a known field.
type Comparison struct {
	// EB is the energy of the reference field
	EB float64

	// EBR is the energy of the reconstructed field
	EBR float64

	// L2 is the relative L2 error; valid only when Defined is true
	L2 float64

	// Defined is false when the reference field is identically zero
	Defined bool
}

// Compare computes energies and the relative L2 error of a reconstruction
// against ground truth. A zero reference is not an error: the comparison is
// returned with Defined set to false.
func Compare(reconstructed, truth *models.VectorField, binPitch float64, p models.PhysicalParameters) (*Comparison, error) {
	cmp := &Comparison{
		EB:  Energy(truth, binPitch, p),
		EBR: Energy(reconstructed, binPitch, p),
	}
	l2, err := L2(reconstructed, truth)
	switch {
	case errors.Is(err, ErrUndefinedMetric):
		return cmp, nil
	case err != nil:
		return nil, err
	}
	cmp.L2 = l2
	cmp.Defined = true
	return cmp, nil
}

// String implements fmt.Stringer.
func (c *Comparison) String() string {
	l2 := "undefined (zero reference field)"
	if c.Defined {
		l2 = fmt.Sprintf("%12.5E", c.L2)
	}
	return fmt.Sprintf("EB = %12.5E ; EB_Reconstructed = %12.5E ; relative L2 = %s", c.EB, c.EBR, l2)
}

// Magnitude returns 0.5*log10(Bx^2 + By^2) per bin, the log field strength
// used for colour scales. Bins with zero field map to -Inf.
func Magnitude(f *models.VectorField) *mat.Dense {
	r, c := f.Dims()
	m := mat.NewDense(r, c, nil)
	m.Apply(func(i, j int, _ float64) float64 {
		bx, by := f.At(i, j)
		return 0.5 * math.Log10(bx*bx+by*by)
	}, m)
	return m
}

func sameShape(a, b *models.VectorField) error {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, ar, ac, br, bc)
	}
	return nil
}

func flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

// FluxSummary describes a proton count image.
type FluxSummary struct {
	Mean, StdDev float64
	Max, Min     float64
	ZeroBins     int
	SparseBins   int
	Floor        float64
	Total        float64
}

// SummarizeFlux computes count statistics; SparseBins counts bins with at
// most floor protons.
func SummarizeFlux(flux mat.Matrix, floor float64) FluxSummary {
	data := flatten(flux)
	s := FluxSummary{Floor: floor}
	s.Mean, s.StdDev = stat.PopMeanStdDev(data, nil)
	s.Max, s.Min = floats.Max(data), floats.Min(data)
	s.Total = floats.Sum(data)
	for _, v := range data {
		if v <= 0 {
			s.ZeroBins++
		}
		if v <= floor {
			s.SparseBins++
		}
	}
	return s
}

// ContrastSummary describes the fluence contrast over well-populated bins.
type ContrastSummary struct {
	Mean, StdDev float64
	Max, Min     float64
	Bins         int
}

// SummarizeContrast computes contrast statistics over bins whose flux is at
// least floor.
func SummarizeContrast(lam, flux mat.Matrix, floor float64) (ContrastSummary, error) {
	lr, lc := lam.Dims()
	fr, fc := flux.Dims()
	if lr != fr || lc != fc {
		return ContrastSummary{}, fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, lr, lc, fr, fc)
	}
	var data []float64
	for i := 0; i < lr; i++ {
		for j := 0; j < lc; j++ {
			if flux.At(i, j) >= floor {
				data = append(data, lam.At(i, j))
			}
		}
	}
	if len(data) == 0 {
		return ContrastSummary{}, fmt.Errorf("%w: floor %g", ErrNoSamples, floor)
	}
	s := ContrastSummary{Bins: len(data)}
	s.Mean, s.StdDev = stat.PopMeanStdDev(data, nil)
	s.Max, s.Min = floats.Max(data), floats.Min(data)
	return s, nil
}
