package field

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"pradfield/internal/models"
	"pradfield/pkg/geometry"
)

func TestBconst(t *testing.T) {
	p := models.PhysicalParameters{SourceToRegionCM: 1, SourceToDetectorCM: 30, ProtonEnergyMeV: 14.7}
	b, err := Bconst(p)
	require.NoError(t, err)

	v := math.Sqrt(2 * 14.7 * 1.6022e-6 / 1.6726e-24)
	want := 1.6726e-24 * 2.9979e10 * v / (4.8032e-10 * 29)
	assert.InDelta(t, want, b, want*1e-12)
	assert.InDelta(t, 19103.66, b, 0.01)

	_, err = Bconst(models.PhysicalParameters{SourceToRegionCM: 30, SourceToDetectorCM: 1, ProtonEnergyMeV: 14.7})
	assert.ErrorIs(t, err, models.ErrInvalidPhysical)
}

// TestGradientRamp checks periodic indexing: a ramp phi = i has slope
// 1/pitch everywhere except across the wrap seam
func TestGradientRamp(t *testing.T) {
	n := 6
	pitch := 0.01
	phi := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			phi.Set(i, j, float64(i))
		}
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			gx, gy := Gradient(phi, pitch, i, j)
			assert.Equal(t, 0.0, gy)
			switch i {
			case 0:
				// (1 - (n-1)) / (2*pitch)
				assert.InDelta(t, float64(2-n)/(2*pitch), gx, 1e-9)
			case n - 1:
				assert.InDelta(t, float64(2-n)/(2*pitch), gx, 1e-9)
			default:
				assert.InDelta(t, 1/pitch, gx, 1e-9)
			}
		}
	}
}

func TestDisplacementAndRotate(t *testing.T) {
	phi := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			phi.Set(i, j, 2*float64(j))
		}
	}
	d, err := Displacement(phi, 1)
	require.NoError(t, err)

	dx, dy := d.At(1, 1)
	assert.Equal(t, 0.0, dx)
	assert.Equal(t, -2.0, dy)

	b := Rotate(d, 3)
	bx, by := b.At(1, 1)
	assert.Equal(t, -6.0, bx)
	assert.Equal(t, 0.0, by)

	// the field is perpendicular to the displacement in every bin
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			dx, dy := d.At(i, j)
			bx, by := b.At(i, j)
			assert.InDelta(t, 0, dx*bx+dy*by, 1e-12)
		}
	}

	_, err = Displacement(phi, 0)
	assert.ErrorIs(t, err, ErrInvalidPitch)
}

func TestMapConstantPotential(t *testing.T) {
	spec, err := geometry.NewGridSpec(100, 4)
	require.NoError(t, err)

	phi := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			phi.Set(i, j, 0.18)
		}
	}
	b, d, err := Map(phi, spec, 1e4)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mat.Norm(b.X, 2)+mat.Norm(b.Y, 2))
	assert.Equal(t, 0.0, mat.Norm(d.X, 2)+mat.Norm(d.Y, 2))
}

// TestMapScalesByBinArea checks the potential is rescaled before
// differentiating: the displacement of a unit ramp is pitch^2/pitch = pitch
func TestMapScalesByBinArea(t *testing.T) {
	spec, err := geometry.NewGridSpec(100, 8)
	require.NoError(t, err)

	phi := mat.NewDense(8, 8, nil)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			phi.Set(i, j, float64(j))
		}
	}
	b, d, err := Map(phi, spec, 2)
	require.NoError(t, err)

	_, dy := d.At(3, 3)
	assert.InDelta(t, -spec.BinPitch, dy, 1e-15)
	bx, _ := b.At(3, 3)
	assert.InDelta(t, -2*spec.BinPitch, bx, 1e-15)
}
