package refine

import (
	"gonum.org/v1/gonum/mat"
)

// neighbours are the four stencil offsets: +i, -i, +j, -j.
var neighbours = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Operator is the discrete steady-state diffusion operator
//
//	A(x) = O(x, y) + D(y)*x
//
// for a potential x and a fixed coefficient field y = exp(Lam), where
//
//	D(i,j) = -2*y[i,j] - 0.5*sum_n yN[n]
//	O(i,j) = 0.5*sum_n xD[n]*(yN[n] + y[i,j])
//
// over the four neighbours n. Potential and Coefficient choose how x and y
// are extended past the grid edge.
type Operator struct {
	Potential   Boundary
	Coefficient Boundary
}

// DefaultOperator extends the potential with Dirichlet and the coefficient
// field with Neumann boundaries.
func DefaultOperator() Operator {
	return Operator{Potential: Dirichlet, Coefficient: Neumann}
}

// Diagonal returns D(y) for every bin.
func (op Operator) Diagonal(y mat.Matrix) *mat.Dense {
	r, c := y.Dims()
	d := mat.NewDense(r, c, nil)
	for _, n := range neighbours {
		d.Add(d, op.Coefficient.Shift(y, n[0], n[1]))
	}
	d.Scale(-0.5, d)

	var centre mat.Dense
	centre.Scale(-2, y)
	d.Add(d, &centre)
	return d
}

// OffDiagonal returns O(x, y) for every bin.
func (op Operator) OffDiagonal(x, y mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	o := mat.NewDense(r, c, nil)
	var term mat.Dense
	for _, n := range neighbours {
		term.Add(op.Coefficient.Shift(y, n[0], n[1]), y)
		term.MulElem(&term, op.Potential.Shift(x, n[0], n[1]))
		o.Add(o, &term)
	}
	o.Scale(0.5, o)
	return o
}

// Residual returns O(x, y) + D(y)*x - src.
func (op Operator) Residual(x, y, src mat.Matrix) *mat.Dense {
	res := op.OffDiagonal(x, y)
	var dx mat.Dense
	dx.MulElem(op.Diagonal(y), x)
	res.Add(res, &dx)
	res.Sub(res, src)
	return res
}

// stencil caches the parts of the operator that depend only on y, so a sweep
// only has to gather neighbouring potentials.
type stencil struct {
	op       Operator
	diag     *mat.Dense
	coupling [4]*mat.Dense
}

func newStencil(op Operator, y mat.Matrix) *stencil {
	s := &stencil{op: op, diag: op.Diagonal(y)}
	for k, n := range neighbours {
		cpl := op.Coefficient.Shift(y, n[0], n[1])
		cpl.Add(cpl, y)
		cpl.Scale(0.5, cpl)
		s.coupling[k] = cpl
	}
	return s
}

// offDiagonalAt evaluates O at a single bin against the current x.
func (s *stencil) offDiagonalAt(x mat.Matrix, i, j int) float64 {
	var sum float64
	for k, n := range neighbours {
		sum += s.op.Potential.At(x, i+n[0], j+n[1]) * s.coupling[k].At(i, j)
	}
	return sum
}

// sweep performs one in-place Gauss-Seidel pass in row-major order: bins
// later in the pass see the values already updated earlier in it.
func (s *stencil) sweep(x *mat.Dense, src mat.Matrix) {
	r, c := x.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x.Set(i, j, (src.At(i, j)-s.offDiagonalAt(x, i, j))/s.diag.At(i, j))
		}
	}
}

// residual evaluates O(x) + D*x - src using the cached coefficients.
func (s *stencil) residual(x, src mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	res := mat.NewDense(r, c, nil)
	res.Apply(func(i, j int, _ float64) float64 {
		return s.offDiagonalAt(x, i, j) + s.diag.At(i, j)*x.At(i, j) - src.At(i, j)
	}, res)
	return res
}
