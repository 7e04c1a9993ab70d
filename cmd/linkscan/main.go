// Package main provides the linkscan command, which fetches a list of pages
// and records every link they contain.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "linkscan",
		Short: "Fetch pages concurrently and record the links they contain",
		Long: `linkscan reads one URL per line from the input file, fetches every page,
extracts the href targets it finds and writes one tab-separated
"source_url<TAB>linked_url" line per link to the output file.

A failing URL never stops the others. Configuration can be loaded from a JSON
file using --config. Command-line flags override config file values, which
override DATABASE_URL / LOG_LEVEL from the environment or .env.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	return cmd
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
