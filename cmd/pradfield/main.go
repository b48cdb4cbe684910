package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pradfield/pkg/config"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Reconstruct flags
	tolerance       float64
	maxIterations   int
	intermediaryDir string
	snapshotDir     string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pradfield",
	Short: "Reconstruct magnetic fields from proton radiographs",
	Long: `pradfield infers the path-integrated transverse magnetic field that
deflected a proton beam, from a detector count image taken with the field
present and a reference image taken without it.

The contrast between the two images drives a steady-state diffusion
equation, solved spectrally and refined with Gauss-Seidel iteration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		zc := zap.NewProductionConfig()
		if verbose || cfg.Output.Verbose {
			zc = zap.NewDevelopmentConfig()
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct <run.yaml>",
	Short: "Reconstruct the transverse field of a radiograph pair",
	Long: `Reconstruct runs the full pipeline on a run file and prints a report.
When the run file carries the true field, the reconstruction is compared
against it.`,
	Args: cobra.ExactArgs(1),
	RunE: runReconstruct,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <run.yaml>",
	Short: "Summarise flux and contrast statistics of a radiograph pair",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config <path>",
	Short: "Write the default configuration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInitConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pradfield.yaml", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	reconstructCmd.Flags().Float64Var(&tolerance, "tol", 0, "Residual ratio at which refinement stops (default from config)")
	reconstructCmd.Flags().IntVar(&maxIterations, "iter", 0, "Maximum Gauss-Seidel sweeps (default from config)")
	reconstructCmd.Flags().StringVar(&intermediaryDir, "intermediary-dir", "", "Directory for pipeline stage grids")
	reconstructCmd.Flags().StringVar(&snapshotDir, "snapshots", "", "Directory for grayscale images of the result grids")

	rootCmd.AddCommand(reconstructCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
