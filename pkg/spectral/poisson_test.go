package spectral

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomGrid(r, c int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	m := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, rng.Float64()*2-1)
		}
	}
	return m
}

// naiveDFT is the quadratic reference transform
func naiveDFT(m mat.Matrix) []complex128 {
	r, c := m.Dims()
	out := make([]complex128, r*c)
	for k0 := 0; k0 < r; k0++ {
		for k1 := 0; k1 < c; k1++ {
			var sum complex128
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					a := -2 * math.Pi * (float64(k0*i)/float64(r) + float64(k1*j)/float64(c))
					sum += complex(m.At(i, j), 0) * cmplx.Exp(complex(0, a))
				}
			}
			out[k0*c+k1] = sum
		}
	}
	return out
}

// periodicLaplacian applies the five-point stencil with wrap-around indices
func periodicLaplacian(phi mat.Matrix) *mat.Dense {
	r, c := phi.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := phi.At((i+1)%r, j) + phi.At((i-1+r)%r, j) +
				phi.At(i, (j+1)%c) + phi.At(i, (j-1+c)%c) - 4*phi.At(i, j)
			out.Set(i, j, v)
		}
	}
	return out
}

// TestForwardImpulse checks that a unit impulse at the origin has a flat spectrum
func TestForwardImpulse(t *testing.T) {
	impulse := mat.NewDense(2, 2, []float64{1, 0, 0, 0})
	result := Forward(impulse)
	require.Len(t, result, 4)

	for i, val := range result {
		assert.InDelta(t, 1.0, cmplx.Abs(val), 1e-12, "coefficient %d", i)
	}
}

// TestForwardMatchesNaiveDFT compares the fast transform against the direct sum,
// on odd, even and rectangular grids
func TestForwardMatchesNaiveDFT(t *testing.T) {
	for _, dims := range [][2]int{{5, 5}, {8, 8}, {3, 4}, {1, 6}} {
		m := randomGrid(dims[0], dims[1], int64(dims[0]*10+dims[1]))
		got := Forward(m)
		want := naiveDFT(m)
		for i := range want {
			assert.InDelta(t, real(want[i]), real(got[i]), 1e-9, "%v real[%d]", dims, i)
			assert.InDelta(t, imag(want[i]), imag(got[i]), 1e-9, "%v imag[%d]", dims, i)
		}
	}
}

// TestTransformRoundTrip verifies the forward/inverse pair is an exact inverse
// when nothing is done in the frequency domain
func TestTransformRoundTrip(t *testing.T) {
	for _, n := range []int{1, 4, 7, 16} {
		m := randomGrid(n, n, int64(n))
		back := Inverse(Forward(m), n, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				assert.InDelta(t, m.At(i, j), real(back[i*n+j]), 1e-12)
				assert.InDelta(t, 0, imag(back[i*n+j]), 1e-12)
			}
		}
	}
}

func TestConvolveLeavesDC(t *testing.T) {
	coeffs := []complex128{3 + 1i, 1, 1, 1}
	out := Convolve(coeffs, 2, 2)

	assert.Equal(t, 3+1i, out[0])
	// k = (0,1) on N=2: cos(0)+cos(pi)-2 = -2
	assert.InDelta(t, -0.25, real(out[1]), 1e-15)
	// k = (1,1): cos(pi)+cos(pi)-2 = -4
	assert.InDelta(t, -0.125, real(out[3]), 1e-15)
}

// TestSolvePoissonInvertsLaplacian checks that the periodic Laplacian of the
// solution reproduces the zero-mean part of the source
func TestSolvePoissonInvertsLaplacian(t *testing.T) {
	n := 12
	lam := randomGrid(n, n, 42)
	phi, err := SolvePoisson(lam)
	require.NoError(t, err)

	mean := mat.Sum(lam) / float64(n*n)
	lap := periodicLaplacian(phi)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, lam.At(i, j)-mean, lap.At(i, j), 1e-10)
		}
	}
}

// TestSolvePoissonConstant checks that a constant contrast yields a constant
// potential: only the DC term survives and it is not modified
func TestSolvePoissonConstant(t *testing.T) {
	n := 4
	lam := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			lam.Set(i, j, 0.18)
		}
	}
	phi, err := SolvePoisson(lam)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, 0.18, phi.At(i, j), 1e-12)
		}
	}

	zero, err := SolvePoisson(mat.NewDense(n, n, nil))
	require.NoError(t, err)
	assert.Equal(t, 0.0, mat.Norm(zero, 2))
}

func TestSolvePoissonRejectsNonSquare(t *testing.T) {
	_, err := SolvePoisson(mat.NewDense(3, 4, nil))
	assert.ErrorIs(t, err, ErrInvalidGrid)

	_, err = SolvePoisson(nil)
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func BenchmarkSolvePoisson(b *testing.B) {
	lam := randomGrid(128, 128, 7)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := SolvePoisson(lam); err != nil {
			b.Fatal(err)
		}
	}
}
