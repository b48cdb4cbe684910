package radiograph

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"pradfield/internal/models"
	"pradfield/pkg/geometry"
)

// ErrEmptyBin is returned when a per-bin average is requested for a bin that
// received no samples.
var ErrEmptyBin = errors.New("radiograph: bin has no samples")

// Binned is a histogram of detector samples.
type Binned struct {
	// Flux holds the number of samples per bin
	Flux *mat.Dense

	// Dropped counts samples that fell outside the detector grid
	Dropped int

	// Total is the number of samples offered
	Total int

	bx, by *mat.Dense
}

// Bin histograms samples onto the grid. Samples outside
// [-HalfWidth, HalfWidth) on either axis are dropped and counted.
func Bin(spec geometry.GridSpec, samples []models.Sample) *Binned {
	n := spec.NumBins
	b := &Binned{
		Flux:  mat.NewDense(n, n, nil),
		Total: len(samples),
		bx:    mat.NewDense(n, n, nil),
		by:    mat.NewDense(n, n, nil),
	}
	for _, s := range samples {
		i, j := spec.PositionToIndex(s.X, s.Y)
		if !spec.Contains(i, j) {
			b.Dropped++
			continue
		}
		b.Flux.Set(i, j, b.Flux.At(i, j)+1)
		b.bx.Set(i, j, b.bx.At(i, j)+s.BX)
		b.by.Set(i, j, b.by.At(i, j)+s.BY)
	}
	return b
}

// Truth returns the per-bin mean of the sample field. Every bin must have
// received at least one sample; an empty bin is an error rather than a
// silent zero.
func (b *Binned) Truth() (*models.VectorField, error) {
	r, c := b.Flux.Dims()
	t := models.NewVectorField(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			count := b.Flux.At(i, j)
			if count == 0 {
				return nil, fmt.Errorf("%w: (%d,%d)", ErrEmptyBin, i, j)
			}
			t.Set(i, j, b.bx.At(i, j)/count, b.by.At(i, j)/count)
		}
	}
	return t, nil
}

// Fluence holds the mean proton fluence of a sample, in protons per cm^2.
type Fluence struct {
	// Sample is the fluence of all samples over the undeflected aperture image
	Sample float64

	// Image is the fluence of the binned samples over the detector grid
	Image float64
}

// Fluences compares the fluence over the projected aperture disc of radius
// apertureRadiusCM with the fluence that landed on the grid.
func (b *Binned) Fluences(spec geometry.GridSpec, apertureRadiusCM float64) Fluence {
	return Fluence{
		Sample: float64(b.Total) / (math.Pi * apertureRadiusCM * apertureRadiusCM),
		Image:  mat.Sum(b.Flux) / (4 * spec.HalfWidth * spec.HalfWidth),
	}
}

// UniformReference builds a reference image with the mean count per bin of
// flux everywhere, for sources that provide no undeflected image.
func UniformReference(flux mat.Matrix) *mat.Dense {
	r, c := flux.Dims()
	mean := mat.Sum(flux) / float64(r*c)
	ref := mat.NewDense(r, c, nil)
	ref.Apply(func(_, _ int, _ float64) float64 { return mean }, ref)
	return ref
}
