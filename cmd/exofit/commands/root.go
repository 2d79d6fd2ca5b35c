package commands

import (
	"fmt"

	"github.com/dyluth/exofit/internal/config"
	"github.com/dyluth/exofit/internal/logging"
	"github.com/dyluth/exofit/internal/printer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// skipConfigAnnotation marks commands that must run without a valid exofit.yml.
const skipConfigAnnotation = "exofit.skip-config"

var (
	configPath string
	verbose    bool

	// Set in PersistentPreRunE for every subcommand
	logger *zap.Logger
	cfg    *config.ExofitConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "exofit",
	Short: "exofit - Bayesian mass-radius relation for small exoplanets",
	Long: `exofit fits a power-law mass-radius relation with intrinsic scatter to
exoplanet measurements. It downloads planets from the NASA Exoplanet Archive,
keeps those between 1 and 4 Earth radii with complete two-sided errors, and
samples the posterior of

  log10 M = A * log10 R + B,  scatter exp(logS)

with parallel Metropolis chains. Fits can be saved to Redis and re-inspected,
predicted from and plotted later.`,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
	PersistentPreRunE:  setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			// Sync fails harmlessly on stderr for terminals
			_ = logger.Sync()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", config.DefaultPath, "Path to exofit.yml (defaults apply when missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	l, err := logging.New(verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = l

	if cmd.Annotations[skipConfigAnnotation] == "true" {
		return nil
	}

	c, err := config.LoadOrDefault(configPath)
	if err != nil {
		return printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Fix %s, or regenerate it with:\n  exofit init --force", configPath)},
		)
	}
	cfg = c
	logger.Debug("configuration loaded", zap.String("path", configPath), zap.String("redis", cfg.Store.RedisURL))
	return nil
}
