package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pradfield/pkg/refine"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, refine.DefaultTolerance, cfg.Solver.Tolerance)
	assert.Equal(t, refine.DefaultMaxIterations, cfg.Solver.MaxIterations)
	assert.Equal(t, 10.0, cfg.Analysis.FluxFloor)
	assert.NoError(t, cfg.Physical.Validate())

	op, err := cfg.Operator()
	require.NoError(t, err)
	assert.Equal(t, refine.DefaultOperator(), op)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pradfield.yaml")
	data := []byte("solver:\n  tolerance: 0.001\n  potentialBoundary: periodic\nphysical:\n  ep_mev: 3\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.001, cfg.Solver.Tolerance)
	assert.Equal(t, refine.DefaultMaxIterations, cfg.Solver.MaxIterations)
	assert.Equal(t, 3.0, cfg.Physical.ProtonEnergyMeV)
	assert.Equal(t, 30.0, cfg.Physical.SourceToDetectorCM)

	op, err := cfg.Operator()
	require.NoError(t, err)
	assert.Equal(t, refine.Periodic, op.Potential)
	assert.Equal(t, refine.Neumann, op.Coefficient)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver: [1, 2"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestUnknownBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Solver.CoefficientBoundary = "mirror"

	_, err := cfg.Operator()
	assert.ErrorIs(t, err, refine.ErrInvalidTuning)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "pradfield.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg.Output.SnapshotDir = "snapshots"
	cfg.Solver.Talk = 0
	require.NoError(t, SaveConfig(cfg, path))

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "snapshots", reloaded.Output.SnapshotDir)
	assert.Equal(t, 0, reloaded.Solver.Talk)
}
