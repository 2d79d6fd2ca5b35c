package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/exofit/internal/printer"
	"github.com/dyluth/exofit/internal/scaffold"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default exofit.yml",
	Long: `Write a commented exofit.yml with every setting at its default value: the
archive query, the 1-4 Earth radius filter, uniform priors on [-5, 5], four
chains of 2000 draws after 1000 tuning steps, and a local Redis store.

A plots/ directory and a .gitignore (when none exists) are created beside it.

Use --force to overwrite an existing config file.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE:        runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	created, err := scaffold.Initialize(configPath, forceInit)
	var exists *scaffold.ExistsError
	if errors.As(err, &exists) {
		return printer.Error(
			fmt.Sprintf("%s already exists", exists.Path),
			"Refusing to overwrite the existing configuration.",
			[]string{"Reinitialize with:\n  exofit init --force"},
		)
	}
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	printer.Success("Initialized exofit project\n")
	printer.Info("\nCreated:\n")
	for _, path := range created {
		printer.Info("  ✓ %s\n", path)
	}
	printer.Info("\nNext steps:\n  exofit fetch --output planets.csv\n  exofit fit --input planets.csv --save\n")
	return nil
}
