// schedulerctl is a read-only operator CLI over this module's
// observability surfaces. It connects directly to Postgres — there is
// no HTTP API layer to go through.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/trustworks/essentials-scheduler/internal/cli"
	"github.com/trustworks/essentials-scheduler/internal/db"
)

var version = "dev"

func main() {
	var jsonOutput bool
	var pool *pgxpool.Pool

	rootCmd := &cobra.Command{
		Use:           "schedulerctl",
		Short:         "schedulerctl — inspect scheduled jobs and subscriptions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			p, err := db.NewPool(cmd.Context())
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			pool = p
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if pool != nil {
				pool.Close()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	poolFn := func() *pgxpool.Pool { return pool }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobsCmd(poolFn, outputFn),
		cli.NewSubscriptionsCmd(poolFn, outputFn),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
