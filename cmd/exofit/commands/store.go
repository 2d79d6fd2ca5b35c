package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/exofit/internal/config"
	"github.com/dyluth/exofit/internal/printer"
	"github.com/dyluth/exofit/internal/store"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the local Redis container that holds saved runs",
	Long: `Manage a Redis container for the configured namespace.

The container is labeled with the namespace, publishes Redis on the first
free port from 6379 on 127.0.0.1, and restarts with the Docker daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var storeUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start (or reuse) the store container",
	Args:  cobra.NoArgs,
	RunE:  runStoreUp,
}

var storeDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the store container and its saved runs",
	Args:  cobra.NoArgs,
	RunE:  runStoreDown,
}

var storeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the store container of the namespace",
	Args:  cobra.NoArgs,
	RunE:  runStoreStatus,
}

func init() {
	storeCmd.AddCommand(storeUpCmd, storeDownCmd, storeStatusCmd)
	rootCmd.AddCommand(storeCmd)
}

func newStoreManager(cmd *cobra.Command) (*store.Manager, func(), error) {
	cli, err := store.NewDockerClient(cmd.Context())
	if err != nil {
		return nil, nil, printer.Error(
			"Docker is not available",
			err.Error(),
			[]string{"Or point EXOFIT_REDIS_URL at an existing Redis"},
		)
	}
	return store.NewManager(cli, logger), func() { cli.Close() }, nil
}

func runStoreUp(cmd *cobra.Command, args []string) error {
	mgr, closeFn, err := newStoreManager(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ns := cfg.Store.Namespace
	printer.Step("Starting store for namespace '%s'...\n", ns)
	info, err := mgr.Up(cmd.Context(), ns, cfg.Store.Image)
	if err != nil {
		return printer.ErrorWithContext(
			"failed to start store",
			err.Error(),
			map[string]string{"Namespace": ns, "Image": cfg.Store.Image},
			[]string{"Remove a broken container with:\n  exofit store down"},
		)
	}

	printer.Success("Store '%s' is running (%s)\n", ns, info.Name)
	printer.Info("  Redis: %s\n", info.URL)
	if info.URL != cfg.Store.RedisURL {
		printer.Info("\nPoint exofit at it with:\n  export %s=%s\n", config.RedisURLEnv, info.URL)
	}
	return nil
}

func runStoreDown(cmd *cobra.Command, args []string) error {
	mgr, closeFn, err := newStoreManager(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ns := cfg.Store.Namespace
	info, err := mgr.Down(cmd.Context(), ns)
	if errors.Is(err, store.ErrNotFound) {
		return printer.Error(
			fmt.Sprintf("no store found for namespace '%s'", ns),
			"There is no container to remove.",
			[]string{"Check with:\n  exofit store status"},
		)
	}
	if err != nil {
		return err
	}

	printer.Success("Removed %s\n", info.Name)
	return nil
}

func runStoreStatus(cmd *cobra.Command, args []string) error {
	mgr, closeFn, err := newStoreManager(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ns := cfg.Store.Namespace
	info, err := mgr.Find(cmd.Context(), ns)
	if errors.Is(err, store.ErrNotFound) {
		printer.Info("No store container for namespace '%s'\n", ns)
		printer.Info("\nStart one with:\n  exofit store up\n")
		return nil
	}
	if err != nil {
		return err
	}

	printer.Info("Namespace: %s\n", info.Namespace)
	printer.Info("Container: %s (%s)\n", info.Name, shortContainerID(info.ID))
	printer.Info("Image:     %s\n", info.Image)
	printer.Info("State:     %s\n", info.State)
	if info.URL != "" {
		printer.Info("Redis:     %s\n", info.URL)
	}
	return nil
}

func shortContainerID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
