package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/exofit/internal/printer"
	"github.com/dyluth/exofit/internal/watch"
	"github.com/spf13/cobra"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream run saves and deletions as they happen",
	Long: `Stream run events from the store of the configured namespace until
interrupted.

Output Formats:
  default - One human-readable line per event
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Follow fits saved by other terminals
  exofit watch

  # Export events as JSON
  exofit watch --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	format, err := watch.ParseFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.SubscribeRunEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	if format == watch.OutputFormatDefault {
		printer.Info("Watching runs in namespace '%s' (Ctrl-C to stop)\n", client.Namespace())
	}
	return watch.Stream(ctx, client, sub.Events(), sub.Errors(), format, printer.Stdout(), logger)
}
