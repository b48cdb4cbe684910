package refine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Boundary is a policy for evaluating a grid function just outside its domain.
type Boundary int

const (
	// Periodic wraps indices around the grid.
	Periodic Boundary = iota

	// Dirichlet reflects with a sign flip: one past an edge reads the negated
	// edge value, placing a zero of the function on the bin boundary.
	Dirichlet

	// Neumann clamps to the nearest in-bounds bin (zero normal gradient).
	Neumann
)

// String implements fmt.Stringer.
func (b Boundary) String() string {
	switch b {
	case Periodic:
		return "periodic"
	case Dirichlet:
		return "dirichlet"
	case Neumann:
		return "neumann"
	default:
		return fmt.Sprintf("Boundary(%d)", int(b))
	}
}

// ParseBoundary converts a configuration name back to a Boundary.
func ParseBoundary(name string) (Boundary, error) {
	switch name {
	case "periodic":
		return Periodic, nil
	case "dirichlet":
		return Dirichlet, nil
	case "neumann":
		return Neumann, nil
	}
	return 0, fmt.Errorf("%w: unknown boundary %q", ErrInvalidTuning, name)
}

// At returns m(i, j) extended beyond the grid according to the policy.
// Indices are expected to be at most one bin outside the grid, which is all
// the five-point stencil needs.
func (b Boundary) At(m mat.Matrix, i, j int) float64 {
	r, c := m.Dims()
	switch b {
	case Periodic:
		return m.At(mod(i, r), mod(j, c))
	case Dirichlet:
		ii, jj := clamp(i, r), clamp(j, c)
		v := m.At(ii, jj)
		if ii != i || jj != j {
			return -v
		}
		return v
	default:
		return m.At(clamp(i, r), clamp(j, c))
	}
}

// Shift returns the grid whose (i, j) element is m extended at
// (i+di, j+dj). It is the whole-grid form of At, used to evaluate the
// stencil for every bin at once.
func (b Boundary) Shift(m mat.Matrix, di, dj int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, _ float64) float64 {
		return b.At(m, i+di, j+dj)
	}, out)
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func mod(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
