// Package refine corrects an initial potential against the nonlinear
// steady-state diffusion operator with Gauss-Seidel iteration.
//
// The spectral Poisson solve treats the coefficient field exp(Lam) as
// uniform. Solver.Solve iterates the full operator until the L2 norm of the
// residual, relative to the L2 norm of the source, drops to the tolerance or
// the sweep budget runs out.
package refine

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Default and coarse tuning. The coarse pair is used when only a contrast
// estimate is needed rather than a refined field.
const (
	DefaultTolerance     = 1.0e-4
	DefaultMaxIterations = 4000

	CoarseTolerance     = 1.0e-2
	CoarseMaxIterations = 2000
)

// Status is the state of a refinement run.
type Status int

const (
	// Initialized: potential seeded, coefficients fixed, no sweep done yet.
	Initialized Status = iota
	// Iterating: sweeps in progress.
	Iterating
	// Converged: the residual ratio reached the tolerance.
	Converged
	// Exhausted: the sweep budget ran out first. The potential is the best
	// effort so far; whether that is acceptable is the caller's decision.
	Exhausted
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ProgressFunc is called after every sweep with the 1-based sweep count and
// the residual ratio reached.
type ProgressFunc func(iteration int, ratio float64)

// Result is the outcome of a refinement run.
type Result struct {
	// Potential is the refined potential, in bin units
	Potential *mat.Dense

	// Residual is the final L2(residual)/L2(source) ratio
	Residual float64

	// Iterations is the number of sweeps performed
	Iterations int

	// Status is Converged or Exhausted
	Status Status

	// History holds the residual ratio after each sweep
	History []float64
}

// Solver runs Gauss-Seidel refinement. The zero value is not usable; build
// one with NewSolver.
type Solver struct {
	operator      Operator
	tolerance     float64
	maxIterations int
	talk          int
	progress      ProgressFunc
	logger        *zap.Logger
}

// NewSolver returns a solver with the default operator and tuning, modified
// by opts.
func NewSolver(opts ...Option) *Solver {
	s := &Solver{
		operator:      DefaultOperator(),
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Operator returns the operator the solver iterates.
func (s *Solver) Operator() Operator { return s.operator }

// Solve refines x0 against the operator with coefficient field y and source
// src. x0 is not modified.
//
// A zero or non-finite diagonal coefficient anywhere aborts the run with
// ErrZeroDiagonal before any sweep. Running out of sweeps is not an error:
// the result carries Status Exhausted.
//
// When the source is identically zero the ratio is taken against 1, i.e.
// the absolute residual norm is reported.
func (s *Solver) Solve(x0, y, src mat.Matrix) (*Result, error) {
	if s.tolerance <= 0 || math.IsNaN(s.tolerance) {
		return nil, fmt.Errorf("%w: tolerance %g", ErrInvalidTuning, s.tolerance)
	}
	if s.maxIterations <= 0 {
		return nil, fmt.Errorf("%w: max iterations %d", ErrInvalidTuning, s.maxIterations)
	}
	if err := sameShape(x0, y, src); err != nil {
		return nil, err
	}

	st := newStencil(s.operator, y)
	if err := checkDiagonal(st.diag); err != nil {
		return nil, err
	}

	x := mat.DenseCopyOf(x0)
	norm := mat.Norm(src, 2)
	if norm == 0 {
		norm = 1
	}

	res := &Result{Potential: x, Status: Initialized}
	s.logger.Debug("Starting Gauss-Seidel refinement",
		zap.Float64("tolerance", s.tolerance),
		zap.Int("max_iterations", s.maxIterations),
		zap.Stringer("potential_bc", s.operator.Potential),
		zap.Stringer("coefficient_bc", s.operator.Coefficient))

	res.Status = Iterating
	for itn := 1; itn <= s.maxIterations; itn++ {
		st.sweep(x, src)
		ratio := mat.Norm(st.residual(x, src), 2) / norm

		res.Iterations = itn
		res.Residual = ratio
		res.History = append(res.History, ratio)

		if s.progress != nil {
			s.progress(itn, ratio)
		}
		if s.talk > 0 && (itn-1)%s.talk == 0 {
			s.logger.Debug("Gauss-Seidel iteration",
				zap.Int("iteration", itn),
				zap.Float64("l2_residual", ratio))
		}
		if ratio <= s.tolerance {
			res.Status = Converged
			break
		}
	}
	if res.Status != Converged {
		res.Status = Exhausted
	}

	s.logger.Info("Gauss-Seidel refinement finished",
		zap.Stringer("status", res.Status),
		zap.Float64("l2_residual", res.Residual),
		zap.Int("iterations", res.Iterations))
	return res, nil
}

func checkDiagonal(d *mat.Dense) error {
	r, c := d.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := d.At(i, j)
			if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: D=%g at bin (%d,%d)", ErrZeroDiagonal, v, i, j)
			}
		}
	}
	return nil
}

func sameShape(grids ...mat.Matrix) error {
	r0, c0 := grids[0].Dims()
	if r0 == 0 || c0 == 0 {
		return fmt.Errorf("%w: empty grid", ErrShapeMismatch)
	}
	for _, g := range grids[1:] {
		if r, c := g.Dims(); r != r0 || c != c0 {
			return fmt.Errorf("%w: %dx%d vs %dx%d", ErrShapeMismatch, r0, c0, r, c)
		}
	}
	return nil
}
