// Package geometry maps detector bins to physical positions.
//
// A GridSpec describes a square detector of NumBins x NumBins bins, each
// BinPitch cm wide, centred on the origin so the domain spans
// [-HalfWidth, HalfWidth) along both axes.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MicronsPerCM converts bin pitches given in microns to cm.
const MicronsPerCM = 10000.0

// ErrInvalidGrid is returned for non-positive pitches or bin counts.
var ErrInvalidGrid = errors.New("geometry: invalid grid")

// GridSpec is the explicit geometry handed to every component that needs
// spatial indexing.
type GridSpec struct {
	// BinPitch is the side length of one bin, in cm
	BinPitch float64

	// HalfWidth is half the detector width, in cm
	HalfWidth float64

	// NumBins is the number of bins along each axis
	NumBins int
}

// NewGridSpec builds a spec from a bin pitch in microns and a bin count.
func NewGridSpec(binUM float64, numBins int) (GridSpec, error) {
	if binUM <= 0 || math.IsNaN(binUM) || math.IsInf(binUM, 0) {
		return GridSpec{}, fmt.Errorf("%w: bin pitch %g um", ErrInvalidGrid, binUM)
	}
	if numBins <= 0 {
		return GridSpec{}, fmt.Errorf("%w: %d bins", ErrInvalidGrid, numBins)
	}
	pitch := binUM / MicronsPerCM
	return GridSpec{
		BinPitch:  pitch,
		HalfWidth: pitch * float64(numBins) / 2.0,
		NumBins:   numBins,
	}, nil
}

// FromAperture sizes a detector grid to fit inside the undeflected image of a
// circular aperture. The aperture radius is projected onto the detector
// plane, the inscribed square is shrunk by 2% to keep clear of the rim, and
// the pitch is re-derived so an integer number of bins tiles it exactly.
func FromAperture(apertureCM, s2rCM, s2dCM, binUM float64) (GridSpec, error) {
	if apertureCM <= 0 || s2rCM <= 0 || s2dCM <= 0 || binUM <= 0 {
		return GridSpec{}, fmt.Errorf("%w: aperture=%g s2r=%g s2d=%g bin=%g",
			ErrInvalidGrid, apertureCM, s2rCM, s2dCM, binUM)
	}
	radius := apertureCM * s2dCM / s2rCM
	halfWidth := 0.98 * radius / math.Sqrt2
	numBins := int(halfWidth * 2 / (binUM / MicronsPerCM))
	if numBins <= 0 {
		return GridSpec{}, fmt.Errorf("%w: bin pitch %g um exceeds detector width %g cm",
			ErrInvalidGrid, binUM, 2*halfWidth)
	}
	return GridSpec{
		BinPitch:  2.0 * halfWidth / float64(numBins),
		HalfWidth: halfWidth,
		NumBins:   numBins,
	}, nil
}

// IndexToPosition returns the centre of bin (i, j).
func (g GridSpec) IndexToPosition(i, j int) (x, y float64) {
	x = -g.HalfWidth + (float64(i)+0.5)*g.BinPitch
	y = -g.HalfWidth + (float64(j)+0.5)*g.BinPitch
	return x, y
}

// PositionToIndex returns the bin containing (x, y). The result is not bounds
// checked: positions outside [-HalfWidth, HalfWidth) yield indices that
// Contains rejects.
func (g GridSpec) PositionToIndex(x, y float64) (i, j int) {
	i = int(math.Floor((x + g.HalfWidth) / g.BinPitch))
	j = int(math.Floor((y + g.HalfWidth) / g.BinPitch))
	return i, j
}

// Contains reports whether (i, j) addresses a bin of the grid.
func (g GridSpec) Contains(i, j int) bool {
	return i >= 0 && i < g.NumBins && j >= 0 && j < g.NumBins
}

// Positions returns the bin-centre meshes: x varies along rows (first index)
// and y along columns.
func (g GridSpec) Positions() (x, y *mat.Dense) {
	n := g.NumBins
	x = mat.NewDense(n, n, nil)
	y = mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			xx, yy := g.IndexToPosition(i, j)
			x.Set(i, j, xx)
			y.Set(i, j, yy)
		}
	}
	return x, y
}

// Edges returns the NumBins+1 bin boundaries along one axis.
func (g GridSpec) Edges() []float64 {
	edges := make([]float64, g.NumBins+1)
	return floats.Span(edges, -g.HalfWidth, g.HalfWidth)
}

// Area is the area of a single bin in cm^2.
func (g GridSpec) Area() float64 {
	return g.BinPitch * g.BinPitch
}

// String implements fmt.Stringer.
func (g GridSpec) String() string {
	return fmt.Sprintf("%dx%d bins, pitch %.4g cm, half-width %.4g cm",
		g.NumBins, g.NumBins, g.BinPitch, g.HalfWidth)
}
