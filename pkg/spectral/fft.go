package spectral

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// Forward performs a 2D discrete Fourier transform of a real grid.
//
// Rows are transformed with the real-input FFT and expanded to the full
// spectrum by conjugate symmetry; columns are then transformed with the
// complex FFT. The result is r*c coefficients in row-major order, indexed
// [k0*c + k1] with k0 the frequency along rows and k1 along columns.
func Forward(m mat.Matrix) []complex128 {
	r, c := m.Dims()
	result := make([]complex128, r*c)

	fft := fourier.NewFFT(c)
	rowInput := make([]float64, c)
	rowOutput := make([]complex128, c/2+1)

	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			rowInput[j] = m.At(i, j)
		}
		fft.Coefficients(rowOutput, rowInput)

		row := result[i*c : (i+1)*c]
		copy(row, rowOutput)
		// F(n-k) = F*(k) for real input
		for j := len(rowOutput); j < c; j++ {
			k := c - j
			row[j] = complex(real(rowOutput[k]), -imag(rowOutput[k]))
		}
	}

	transformColumns(result, r, c, false)
	return result
}

// Inverse transforms row-major coefficients back to an r x c complex grid.
// The output is normalized by r*c so Inverse(Forward(m)) reproduces m.
func Inverse(coeffs []complex128, r, c int) []complex128 {
	if len(coeffs) != r*c {
		panic("spectral: coefficient length mismatch")
	}
	result := make([]complex128, r*c)
	copy(result, coeffs)

	fft := fourier.NewCmplxFFT(c)
	for i := 0; i < r; i++ {
		row := result[i*c : (i+1)*c]
		fft.Sequence(row, row)
	}
	transformColumns(result, r, c, true)

	scale := complex(1/float64(r*c), 0)
	for i := range result {
		result[i] *= scale
	}
	return result
}

// transformColumns runs the complex FFT down each column of a row-major
// r x c buffer in place.
func transformColumns(data []complex128, r, c int, inverse bool) {
	fft := fourier.NewCmplxFFT(r)
	col := make([]complex128, r)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			col[i] = data[i*c+j]
		}
		if inverse {
			fft.Sequence(col, col)
		} else {
			fft.Coefficients(col, col)
		}
		for i := 0; i < r; i++ {
			data[i*c+j] = col[i]
		}
	}
}
