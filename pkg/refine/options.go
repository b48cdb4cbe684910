package refine

import "go.uber.org/zap"

// Option configures a Solver.
type Option func(*Solver)

// WithTolerance sets the residual ratio at which iteration stops.
func WithTolerance(tol float64) Option {
	return func(s *Solver) { s.tolerance = tol }
}

// WithMaxIterations caps the number of sweeps.
func WithMaxIterations(n int) Option {
	return func(s *Solver) { s.maxIterations = n }
}

// WithTalk logs the residual every n sweeps at debug level; 0 disables it.
func WithTalk(n int) Option {
	return func(s *Solver) { s.talk = n }
}

// WithOperator replaces the default Dirichlet/Neumann operator.
func WithOperator(op Operator) Option {
	return func(s *Solver) { s.operator = op }
}

// WithProgress registers a callback run after every sweep.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Solver) { s.progress = fn }
}

// WithLogger sets the solver's logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}
