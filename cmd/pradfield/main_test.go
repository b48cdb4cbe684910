package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"pradfield/internal/models"
	"pradfield/pkg/config"
	"pradfield/pkg/radiograph"
	"pradfield/pkg/refine"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	t.Cleanup(resetFlags)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores subcommand flags so values do not leak between runs.
func resetFlags() {
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
}

func writeRun(t *testing.T, withTruth bool) string {
	t.Helper()

	flux := mat.NewDense(4, 4, nil)
	ref := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			flux.Set(i, j, 121)
			ref.Set(i, j, 100)
		}
	}
	rg := &radiograph.Radiograph{
		Flux:     flux,
		FluxRef:  ref,
		Physical: models.PhysicalParameters{SourceToRegionCM: 1, SourceToDetectorCM: 30, ProtonEnergyMeV: 14.7},
		BinUM:    100,
	}
	if withTruth {
		rg.Truth = models.NewVectorField(4, 4)
	}
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, radiograph.Save(rg, path))
	return path
}

func TestReconstructCommand(t *testing.T) {
	out, err := execute(t, "reconstruct", writeRun(t, true))
	require.NoError(t, err)

	assert.Contains(t, out, "Grid: 4x4 bins")
	assert.Contains(t, out, "Gauss-Seidel: converged")
	assert.Contains(t, out, "undefined (zero reference field)")
}

func TestReconstructSnapshots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snap")
	out, err := execute(t, "reconstruct", writeRun(t, false), "--snapshots", dir, "--iter", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "Snapshots saved to")
	_, err = os.Stat(filepath.Join(dir, "magnitude.jpg"))
	assert.NoError(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := execute(t, "analyze", writeRun(t, false))
	require.NoError(t, err)

	assert.Contains(t, out, "Contrast coverage: 100.0% of bins")
	assert.Contains(t, out, "Contrast over 16 bins")
	assert.Contains(t, out, "Coarse Gauss-Seidel: converged")
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pradfield.yaml")
	out, err := execute(t, "init-config", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Default configuration written")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "potentialBoundary: dirichlet")
}

func TestReconstructMissingFile(t *testing.T) {
	_, err := execute(t, "reconstruct", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReconstructRejectsNonPositiveTuning(t *testing.T) {
	run := writeRun(t, false)

	for _, args := range [][]string{
		{"--tol", "0"},
		{"--tol", "-1e-3"},
		{"--iter", "0"},
		{"--iter", "-5"},
	} {
		t.Run(args[0]+"="+args[1], func(t *testing.T) {
			out, err := execute(t, append([]string{"reconstruct", run}, args...)...)
			assert.ErrorIs(t, err, refine.ErrInvalidTuning)
			assert.NotContains(t, out, "Gauss-Seidel:")
		})
	}

	// flags are restored after each run
	out, err := execute(t, "reconstruct", run)
	require.NoError(t, err)
	assert.Contains(t, out, "Gauss-Seidel: converged")
}

func TestConfigRejectsZeroTolerance(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pradfield.yaml")
	bad := config.DefaultConfig()
	bad.Solver.Tolerance = 0
	require.NoError(t, config.SaveConfig(bad, cfgPath))

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"analyze", writeRun(t, false), "--config", cfgPath})
	t.Cleanup(resetFlags)
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, refine.ErrInvalidTuning)
}
