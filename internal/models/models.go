package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmptyGrid is returned for nil or zero-size count grids.
	ErrEmptyGrid = errors.New("models: empty grid")

	// ErrNotSquare is returned when a grid is not num_bins x num_bins.
	ErrNotSquare = errors.New("models: grid is not square")

	// ErrShapeMismatch is returned when two grids that must share a shape do not.
	ErrShapeMismatch = errors.New("models: grid shapes differ")

	// ErrNegativeCount is returned when a flux image holds a negative count.
	ErrNegativeCount = errors.New("models: negative proton count")

	// ErrNonFiniteCount is returned when a flux image holds a NaN or infinite count.
	ErrNonFiniteCount = errors.New("models: non-finite proton count")

	// ErrInvalidPhysical is returned for unusable source/detector geometry or energy.
	ErrInvalidPhysical = errors.New("models: invalid physical parameters")
)

// PhysicalParameters fixes the proton source, interaction region and detector
// geometry of one radiograph. Distances are measured from the proton source.
type PhysicalParameters struct {
	// SourceToRegionCM is the distance from the source to the interaction region, in cm
	SourceToRegionCM float64 `yaml:"s2r_cm"`

	// SourceToDetectorCM is the distance from the source to the detector, in cm
	SourceToDetectorCM float64 `yaml:"s2d_cm"`

	// ProtonEnergyMeV is the kinetic energy of the probing protons
	ProtonEnergyMeV float64 `yaml:"ep_mev"`
}

// Validate checks that all quantities are positive and that the detector
// lies beyond the interaction region.
func (p PhysicalParameters) Validate() error {
	if p.SourceToRegionCM <= 0 || p.SourceToDetectorCM <= 0 {
		return fmt.Errorf("%w: distances must be positive (s2r=%g, s2d=%g)",
			ErrInvalidPhysical, p.SourceToRegionCM, p.SourceToDetectorCM)
	}
	if p.SourceToDetectorCM <= p.SourceToRegionCM {
		return fmt.Errorf("%w: detector (%g cm) must be farther than the region (%g cm)",
			ErrInvalidPhysical, p.SourceToDetectorCM, p.SourceToRegionCM)
	}
	if p.ProtonEnergyMeV <= 0 {
		return fmt.Errorf("%w: proton energy must be positive, got %g MeV",
			ErrInvalidPhysical, p.ProtonEnergyMeV)
	}
	return nil
}

// Magnification is the detector-to-region projection factor s2d/s2r.
func (p PhysicalParameters) Magnification() float64 {
	return p.SourceToDetectorCM / p.SourceToRegionCM
}

// VectorField holds a two-component quantity per bin, the Go form of a
// num_bins x num_bins x 2 array. X carries component 0 and Y component 1.
type VectorField struct {
	X *mat.Dense
	Y *mat.Dense
}

// NewVectorField allocates a zeroed r x c vector field.
func NewVectorField(r, c int) *VectorField {
	return &VectorField{
		X: mat.NewDense(r, c, nil),
		Y: mat.NewDense(r, c, nil),
	}
}

// Dims returns the grid dimensions shared by both components.
func (v *VectorField) Dims() (r, c int) {
	return v.X.Dims()
}

// At returns both components at bin (i, j).
func (v *VectorField) At(i, j int) (float64, float64) {
	return v.X.At(i, j), v.Y.At(i, j)
}

// Set stores both components at bin (i, j).
func (v *VectorField) Set(i, j int, x, y float64) {
	v.X.Set(i, j, x)
	v.Y.Set(i, j, y)
}

// Sample is a single detected proton: its detector-plane position in cm and,
// when the source is a simulation, the path-integrated field it crossed.
type Sample struct {
	X, Y   float64
	BX, BY float64
}

// ValidateSquare rejects empty and non-square grids.
func ValidateSquare(m mat.Matrix) error {
	if m == nil {
		return ErrEmptyGrid
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return ErrEmptyGrid
	}
	if r != c {
		return fmt.Errorf("%w: %dx%d", ErrNotSquare, r, c)
	}
	return nil
}

// ValidateSameShape rejects a pair of grids whose dimensions differ.
func ValidateSameShape(a, b mat.Matrix) error {
	if a == nil || b == nil {
		return ErrEmptyGrid
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar == 0 || ac == 0 || br == 0 || bc == 0 {
		return ErrEmptyGrid
	}
	if ar != br || ac != bc {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, ar, ac, br, bc)
	}
	return nil
}

// ValidatePair checks a perturbed/reference flux pair before reconstruction:
// both square, same shape, non-negative counts.
func ValidatePair(flux, ref mat.Matrix) error {
	if err := ValidateSquare(flux); err != nil {
		return fmt.Errorf("flux: %w", err)
	}
	if err := ValidateSquare(ref); err != nil {
		return fmt.Errorf("flux_ref: %w", err)
	}
	if err := ValidateSameShape(flux, ref); err != nil {
		return err
	}
	if err := validateCounts(flux); err != nil {
		return fmt.Errorf("flux: %w", err)
	}
	if err := validateCounts(ref); err != nil {
		return fmt.Errorf("flux_ref: %w", err)
	}
	return nil
}

func validateCounts(m mat.Matrix) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %g at (%d,%d)", ErrNonFiniteCount, v, i, j)
			}
			if v < 0 {
				return fmt.Errorf("%w: %g at (%d,%d)", ErrNegativeCount, v, i, j)
			}
		}
	}
	return nil
}
