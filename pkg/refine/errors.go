package refine

import "errors"

var (
	// ErrZeroDiagonal is returned when the diagonal coefficient D(i,j) of the
	// diffusion operator is zero or not finite, so the update is undefined.
	ErrZeroDiagonal = errors.New("refine: zero diagonal coefficient")

	// ErrInvalidTuning is returned for a non-positive tolerance or iteration cap.
	ErrInvalidTuning = errors.New("refine: invalid solver tuning")

	// ErrShapeMismatch is returned when the potential, coefficient and source
	// grids do not share a shape.
	ErrShapeMismatch = errors.New("refine: grid shapes differ")
)
