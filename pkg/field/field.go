// Package field turns a refined potential into the path-integrated transverse
// magnetic field that deflected the protons.
//
// Units are CGS throughout: lengths in cm, fields in gauss, so the
// reconstructed field is a path integral in G cm.
package field

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"pradfield/internal/models"
	"pradfield/pkg/geometry"
)

// Physical constants in CGS units.
const (
	// MProtonG is the proton mass in grams
	MProtonG = 1.6726e-24

	// ESU is the elementary charge in statcoulombs
	ESU = 4.8032e-10

	// C is the speed of light in cm/s
	C = 2.9979e10

	// ErgPerMeV converts kinetic energy in MeV to erg
	ErgPerMeV = 1.6022e-6
)

// ErrInvalidPitch is returned for a non-positive finite-difference step.
var ErrInvalidPitch = errors.New("field: bin pitch must be positive")

// ProtonVelocity returns the non-relativistic proton speed in cm/s.
func ProtonVelocity(energyMeV float64) float64 {
	return math.Sqrt(2 * energyMeV * ErgPerMeV / MProtonG)
}

// Bconst relates lateral proton displacement at the detector to the
// path-integrated field, M*c*v / (e*L), where L is the distance from the
// interaction region to the detector.
func Bconst(p models.PhysicalParameters) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	v := ProtonVelocity(p.ProtonEnergyMeV)
	return MProtonG * C * v / (ESU * (p.SourceToDetectorCM - p.SourceToRegionCM)), nil
}

// Gradient returns the periodic central-difference gradient of phi at (i, j)
// with step pitch. Indices wrap modulo the grid size.
func Gradient(phi mat.Matrix, pitch float64, i, j int) (gx, gy float64) {
	r, c := phi.Dims()
	gx = (phi.At((i+1)%r, j) - phi.At((i-1+r)%r, j)) / (2 * pitch)
	gy = (phi.At(i, (j+1)%c) - phi.At(i, (j-1+c)%c)) / (2 * pitch)
	return gx, gy
}

// Displacement returns -grad(phi) for every bin.
func Displacement(phi mat.Matrix, pitch float64) (*models.VectorField, error) {
	if pitch <= 0 || math.IsNaN(pitch) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidPitch, pitch)
	}
	r, c := phi.Dims()
	d := models.NewVectorField(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			gx, gy := Gradient(phi, pitch, i, j)
			d.Set(i, j, -gx, -gy)
		}
	}
	return d, nil
}

// Rotate maps a displacement field onto the perpendicular field:
// B0 = bconst*d1, B1 = -bconst*d0.
func Rotate(d *models.VectorField, bconst float64) *models.VectorField {
	r, c := d.Dims()
	b := models.NewVectorField(r, c)
	b.X.Scale(bconst, d.Y)
	b.Y.Scale(-bconst, d.X)
	return b
}

// Map converts a potential in bin units into the reconstructed field. The
// potential is first scaled by the bin area to physical units.
func Map(phi mat.Matrix, spec geometry.GridSpec, bconst float64) (*models.VectorField, *models.VectorField, error) {
	var scaled mat.Dense
	scaled.Scale(spec.Area(), phi)

	d, err := Displacement(&scaled, spec.BinPitch)
	if err != nil {
		return nil, nil, err
	}
	return Rotate(d, bconst), d, nil
}
