// Package reconstruction drives the full field reconstruction from a pair of
// proton radiographs: the steady-state source model, the spectral Poisson
// solve, Gauss-Seidel refinement and the mapping of the refined potential to
// the path-integrated transverse magnetic field.
package reconstruction

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"pradfield/internal/models"
	"pradfield/pkg/diagnostics"
	"pradfield/pkg/diffusion"
	"pradfield/pkg/field"
	"pradfield/pkg/geometry"
	"pradfield/pkg/refine"
	"pradfield/pkg/spectral"
)

// ErrNotProcessed is returned by Compare before Process has produced a field.
var ErrNotProcessed = errors.New("reconstruction: no field reconstructed yet")

// Params holds the reconstruction parameters.
type Params struct {
	// BinUM is the detector bin side length in microns.
	BinUM float64

	// Physical fixes the source, interaction region and detector geometry
	// and the proton energy.
	Physical models.PhysicalParameters

	// Tolerance is the residual ratio at which refinement stops. Zero
	// selects refine.DefaultTolerance.
	Tolerance float64

	// MaxIterations caps the refinement sweeps. Zero selects
	// refine.DefaultMaxIterations.
	MaxIterations int

	// Talk logs the residual every Talk sweeps; zero disables it.
	Talk int

	// Operator overrides the boundary policies of the refinement operator.
	// Nil selects refine.DefaultOperator.
	Operator *refine.Operator

	// FluxFloor is the count below which bins are left out of the contrast
	// statistics reported by Analyze. Zero selects
	// diagnostics.DefaultFluxFloor.
	FluxFloor float64

	// IntermediaryDir, when set, receives the source, contrast, spectral and
	// refined potential grids as YAML files.
	IntermediaryDir string

	// Progress is called after every refinement sweep.
	Progress refine.ProgressFunc

	// Logger receives progress messages. Nil disables logging.
	Logger *zap.Logger
}

// Result holds every product of one reconstruction.
type Result struct {
	// Spec is the detector geometry the field is expressed on
	Spec geometry.GridSpec

	// Source is Lam*exp(Lam), the right-hand side of the diffusion equation
	Source *mat.Dense

	// Contrast is the fluence contrast Lam
	Contrast *mat.Dense

	// Initial is the spectral Poisson solution, in bin units
	Initial *mat.Dense

	// Potential is the refined potential, in bin units
	Potential *mat.Dense

	// Displacement is the lateral proton displacement at the detector, in cm
	Displacement *models.VectorField

	// Bperp is the path-integrated transverse field, in G cm
	Bperp *models.VectorField

	// Bconst is the displacement to field conversion factor
	Bconst float64

	// Convergence is the refinement outcome
	Convergence *refine.Result
}

// Analysis holds the quick-look statistics of a radiograph pair.
type Analysis struct {
	// Flux and Reference summarise the two count images
	Flux      diagnostics.FluxSummary
	Reference diagnostics.FluxSummary

	// Contrast summarises Lam over bins above the flux floor; nil when no
	// bin reaches the floor
	Contrast *diagnostics.ContrastSummary

	// Coverage is the fraction of bins where the contrast is defined
	Coverage float64

	// Convergence is the outcome of a coarse refinement run
	Convergence *refine.Result
}

// Reconstructor runs the reconstruction pipeline:
// 1. Validating the flux pair and building the detector geometry
// 2. Computing the contrast and source terms
// 3. Solving the Poisson equation spectrally for an initial potential
// 4. Refining the potential against the full diffusion operator
// 5. Mapping the potential to displacement and field
type Reconstructor struct {
	// params stores the reconstruction configuration
	params *Params

	// logger is never nil
	logger *zap.Logger

	// result is the product of the last successful Process call
	result *Result
}

// NewReconstructor creates a new reconstructor instance with the provided
// parameters.
func NewReconstructor(params *Params) *Reconstructor {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{
		params: params,
		logger: logger,
	}
}

// Process reconstructs the field from a perturbed flux image and its
// reference. Both images must be square, of the same shape and hold
// non-negative counts. Exhausting the sweep budget is not an error; the
// returned result carries the refinement status.
func (r *Reconstructor) Process(flux, ref mat.Matrix) (*Result, error) {
	if err := models.ValidatePair(flux, ref); err != nil {
		return nil, fmt.Errorf("invalid radiograph pair: %w", err)
	}
	bconst, err := field.Bconst(r.params.Physical)
	if err != nil {
		return nil, err
	}
	n, _ := flux.Dims()
	spec, err := geometry.NewGridSpec(r.params.BinUM, n)
	if err != nil {
		return nil, err
	}
	if err := r.prepareIntermediaryDir(); err != nil {
		return nil, err
	}

	res := &Result{Spec: spec, Bconst: bconst}
	r.logger.Info("Starting reconstruction",
		zap.Stringer("grid", spec),
		zap.Float64("bconst", bconst))

	// Step 1: contrast and source terms
	r.logger.Debug("Step 1: Computing steady-state source")
	res.Source, res.Contrast, err = diffusion.SteadyState(flux, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to compute source: %w", err)
	}
	r.saveIntermediaryResult("01_source", res.Source)
	r.saveIntermediaryResult("02_contrast", res.Contrast)

	// Step 2: spectral Poisson solve
	r.logger.Debug("Step 2: Solving Poisson equation")
	res.Initial, err = spectral.SolvePoisson(res.Contrast)
	if err != nil {
		return nil, fmt.Errorf("failed to solve Poisson equation: %w", err)
	}
	r.saveIntermediaryResult("03_initial_potential", res.Initial)

	// Step 3: Gauss-Seidel refinement
	r.logger.Debug("Step 3: Refining potential")
	res.Convergence, err = r.refine(res.Initial, res.Contrast, res.Source,
		r.params.Tolerance, r.params.MaxIterations)
	if err != nil {
		return nil, fmt.Errorf("failed to refine potential: %w", err)
	}
	res.Potential = res.Convergence.Potential
	r.saveIntermediaryResult("04_refined_potential", res.Potential)
	if res.Convergence.Status == refine.Exhausted {
		r.logger.Warn("Refinement did not reach tolerance",
			zap.Float64("l2_residual", res.Convergence.Residual),
			zap.Int("iterations", res.Convergence.Iterations))
	}

	// Step 4: field mapping
	r.logger.Debug("Step 4: Mapping potential to field")
	res.Bperp, res.Displacement, err = field.Map(res.Potential, spec, bconst)
	if err != nil {
		return nil, fmt.Errorf("failed to map field: %w", err)
	}

	r.result = res
	r.logger.Info("Reconstruction complete",
		zap.Stringer("status", res.Convergence.Status),
		zap.Int("iterations", res.Convergence.Iterations))
	return res, nil
}

// Compare measures the last reconstructed field against a known field.
func (r *Reconstructor) Compare(truth *models.VectorField) (*diagnostics.Comparison, error) {
	if r.result == nil {
		return nil, ErrNotProcessed
	}
	cmp, err := diagnostics.Compare(r.result.Bperp, truth, r.result.Spec.BinPitch, r.params.Physical)
	if err != nil {
		return nil, err
	}
	if !cmp.Defined {
		r.logger.Warn("Reference field is zero; relative L2 undefined")
	}
	return cmp, nil
}

// Result returns the product of the last successful Process call, or nil.
func (r *Reconstructor) Result() *Result {
	return r.result
}

// Analyze summarises a radiograph pair without mapping a field. The
// refinement runs with the coarse tuning so the contrast estimate is cheap.
// Physical parameters and bin pitch are not used.
func (r *Reconstructor) Analyze(flux, ref mat.Matrix) (*Analysis, error) {
	if err := models.ValidatePair(flux, ref); err != nil {
		return nil, fmt.Errorf("invalid radiograph pair: %w", err)
	}
	floor := r.params.FluxFloor
	if floor == 0 {
		floor = diagnostics.DefaultFluxFloor
	}

	src, lam, err := diffusion.SteadyState(flux, ref)
	if err != nil {
		return nil, err
	}
	a := &Analysis{
		Flux:      diagnostics.SummarizeFlux(flux, floor),
		Reference: diagnostics.SummarizeFlux(ref, floor),
	}
	if a.Coverage, err = diffusion.Coverage(flux, ref); err != nil {
		return nil, err
	}

	contrast, err := diagnostics.SummarizeContrast(lam, flux, floor)
	switch {
	case errors.Is(err, diagnostics.ErrNoSamples):
		r.logger.Warn("No bins above the flux floor", zap.Float64("floor", floor))
	case err != nil:
		return nil, err
	default:
		a.Contrast = &contrast
	}

	phi0, err := spectral.SolvePoisson(lam)
	if err != nil {
		return nil, err
	}
	a.Convergence, err = r.refine(phi0, lam, src, refine.CoarseTolerance, refine.CoarseMaxIterations)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Reconstructor) refine(x0, lam, src *mat.Dense, tol float64, maxIter int) (*refine.Result, error) {
	if tol == 0 {
		tol = refine.DefaultTolerance
	}
	if maxIter == 0 {
		maxIter = refine.DefaultMaxIterations
	}
	opts := []refine.Option{
		refine.WithTolerance(tol),
		refine.WithMaxIterations(maxIter),
		refine.WithTalk(r.params.Talk),
		refine.WithProgress(r.params.Progress),
		refine.WithLogger(r.logger),
	}
	if r.params.Operator != nil {
		opts = append(opts, refine.WithOperator(*r.params.Operator))
	}
	return refine.NewSolver(opts...).Solve(x0, diffusion.Coefficient(lam), src)
}

func (r *Reconstructor) prepareIntermediaryDir() error {
	if r.params.IntermediaryDir == "" {
		return nil
	}
	if err := os.MkdirAll(r.params.IntermediaryDir, 0755); err != nil {
		return fmt.Errorf("failed to create intermediary directory: %w", err)
	}
	return nil
}

// saveIntermediaryResult writes one stage grid as a YAML list of rows. A
// failed write is logged and does not stop the pipeline.
func (r *Reconstructor) saveIntermediaryResult(stage string, m mat.Matrix) {
	if r.params.IntermediaryDir == "" {
		return
	}
	rows, c := m.Dims()
	grid := make([][]float64, rows)
	for i := range grid {
		grid[i] = make([]float64, c)
		for j := range grid[i] {
			grid[i][j] = m.At(i, j)
		}
	}
	path := filepath.Join(r.params.IntermediaryDir, stage+".yaml")
	data, err := yaml.Marshal(grid)
	if err == nil {
		err = os.WriteFile(path, data, 0644)
	}
	if err != nil {
		r.logger.Warn("Failed to save intermediary result",
			zap.String("stage", stage),
			zap.Error(err))
	}
}
