// Package cmd defines and implements the CLI commands for the catalogcrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Process exit codes. Cancellation gets its own code so operators can tell a
// Ctrl-C apart from a genuine failure.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitCancelled = 130
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogcrawler",
		Short: "Crawls an e-commerce category listing and ingests product records.",
		Long: `catalogcrawler walks a paginated category listing, extracts product
records through a selector fallback chain that tolerates markup drift,
deduplicates against the record store, enriches new records with an image
embedding and persists the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; env vars with the CATALOG_ prefix work without one)")

	cmd.AddCommand(newIngestCmd())

	return cmd
}

// Execute runs the root command under a signal-aware context and maps the
// outcome to a process exit code: 0 success, 130 cancelled, 1 anything else.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted, exiting cleanly")
			return ExitCancelled
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExitError
	}
	return ExitOK
}
