package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pradfield/internal/models"
	"pradfield/pkg/config"
	"pradfield/pkg/diagnostics"
	"pradfield/pkg/radiograph"
	"pradfield/pkg/reconstruction"
	"pradfield/pkg/refine"
	"pradfield/pkg/visualization"
)

func runReconstruct(cmd *cobra.Command, args []string) error {
	rg, err := radiograph.Load(args[0])
	if err != nil {
		return err
	}
	params, err := buildParams(cmd, rg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "================================")
	fmt.Fprintln(out, "PROTON RADIOGRAPHY FIELD RECONSTRUCTION")
	fmt.Fprintln(out, "================================")
	printInput(out, rg)

	r := reconstruction.NewReconstructor(params)
	start := time.Now()
	res, err := r.Process(rg.Flux, rg.FluxRef)
	if err != nil {
		return fmt.Errorf("reconstruction failed: %w", err)
	}
	elapsed := time.Since(start)

	fmt.Fprintf(out, "\nReconstruction finished in %.2f seconds\n", elapsed.Seconds())
	fmt.Fprintf(out, "Grid: %s\n", res.Spec)
	fmt.Fprintf(out, "Bconst: %.5E\n", res.Bconst)
	fmt.Fprintf(out, "Gauss-Seidel: %s after %d sweeps, L2 residual %.5E\n",
		res.Convergence.Status, res.Convergence.Iterations, res.Convergence.Residual)
	fmt.Fprintf(out, "|Bperp| (G cm): %.5E\n", diagnostics.Norm(res.Bperp))

	if rg.Truth != nil {
		cmp, err := r.Compare(rg.Truth)
		if err != nil {
			return fmt.Errorf("comparison failed: %w", err)
		}
		fmt.Fprintf(out, "\nComparison with true field:\n%s\n", cmp)
	}

	if dir := firstNonEmpty(snapshotDir, cfg.Output.SnapshotDir); dir != "" {
		if err := visualization.NewViewer(res).SaveAll(dir); err != nil {
			logger.Warn("Failed to save snapshots", zap.String("dir", dir), zap.Error(err))
		} else {
			fmt.Fprintf(out, "\nSnapshots saved to: %s\n", dir)
		}
	}
	if params.IntermediaryDir != "" {
		fmt.Fprintf(out, "Intermediary grids saved to: %s\n", params.IntermediaryDir)
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	rg, err := radiograph.Load(args[0])
	if err != nil {
		return err
	}
	params, err := buildParams(cmd, rg)
	if err != nil {
		return err
	}

	a, err := reconstruction.NewReconstructor(params).Analyze(rg.Flux, rg.FluxRef)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	out := cmd.OutOrStdout()
	printInput(out, rg)
	printFlux(out, "Flux", a.Flux)
	printFlux(out, "Reference", a.Reference)
	fmt.Fprintf(out, "Contrast coverage: %.1f%% of bins\n", 100*a.Coverage)
	if a.Contrast != nil {
		c := a.Contrast
		fmt.Fprintf(out, "Contrast over %d bins with flux >= %g: mean %.4g, std %.4g, min %.4g, max %.4g\n",
			c.Bins, a.Flux.Floor, c.Mean, c.StdDev, c.Min, c.Max)
	} else {
		fmt.Fprintf(out, "Contrast: no bins with flux >= %g\n", a.Flux.Floor)
	}
	fmt.Fprintf(out, "Coarse Gauss-Seidel: %s after %d sweeps, L2 residual %.5E\n",
		a.Convergence.Status, a.Convergence.Iterations, a.Convergence.Residual)
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	if err := config.CreateDefaultConfigFile(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", args[0])
	return nil
}

// buildParams merges the run file, configuration and command-line flags.
// Flags win over configuration; the run file's physical setup wins over the
// configured default. The merged tolerance and sweep cap must be positive.
func buildParams(cmd *cobra.Command, rg *radiograph.Radiograph) (*reconstruction.Params, error) {
	op, err := cfg.Operator()
	if err != nil {
		return nil, err
	}
	params := &reconstruction.Params{
		BinUM:           rg.BinUM,
		Physical:        rg.Physical,
		Tolerance:       cfg.Solver.Tolerance,
		MaxIterations:   cfg.Solver.MaxIterations,
		Talk:            cfg.Solver.Talk,
		Operator:        &op,
		FluxFloor:       cfg.Analysis.FluxFloor,
		IntermediaryDir: cfg.Output.IntermediaryDir,
		Logger:          logger,
	}
	if rg.Physical == (models.PhysicalParameters{}) {
		params.Physical = cfg.Physical
	}
	if cmd.Flags().Changed("tol") {
		params.Tolerance = tolerance
	}
	if cmd.Flags().Changed("iter") {
		params.MaxIterations = maxIterations
	}
	if cmd.Flags().Changed("intermediary-dir") {
		params.IntermediaryDir = intermediaryDir
	}

	// zero means "default" to the reconstructor, so an explicit zero must not
	// reach it
	if !(params.Tolerance > 0) {
		return nil, fmt.Errorf("%w: tolerance must be positive, got %g", refine.ErrInvalidTuning, params.Tolerance)
	}
	if params.MaxIterations <= 0 {
		return nil, fmt.Errorf("%w: max iterations must be positive, got %d", refine.ErrInvalidTuning, params.MaxIterations)
	}
	return params, nil
}

func printInput(out io.Writer, rg *radiograph.Radiograph) {
	n, _ := rg.Flux.Dims()
	fmt.Fprintf(out, "Input: %dx%d bins of %g um\n", n, n, rg.BinUM)
	if rg.Fluence != nil {
		fmt.Fprintf(out, "Binned from samples: %d dropped outside the detector\n", rg.Dropped)
		fmt.Fprintf(out, "Mean fluence: aperture image %.5E /cm^2, detector %.5E /cm^2\n",
			rg.Fluence.Sample, rg.Fluence.Image)
	}
}

func printFlux(out io.Writer, name string, s diagnostics.FluxSummary) {
	fmt.Fprintf(out, "%s: total %g, mean %.4g, std %.4g, min %g, max %g, %d empty, %d sparse (<= %g)\n",
		name, s.Total, s.Mean, s.StdDev, s.Min, s.Max, s.ZeroBins, s.SparseBins, s.Floor)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
