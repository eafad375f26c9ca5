package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvindex/ihashmap/internal/config"
	"github.com/kvindex/ihashmap/internal/obs"
)

// newServeCmd starts a long-lived process that keeps one Cache open,
// optionally watching the declarative index file for additive reloads and
// emitting OpenTelemetry spans/counters to stdout. There is no network
// listener here — "serve" names the lifecycle (stay resident, watch files,
// emit telemetry), not a wire protocol the spec doesn't define.
func newServeCmd() *cobra.Command {
	var watch, trace bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as a long-lived process, optionally watching indexes.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if trace {
				shutdown, err := obs.Init(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				defer shutdown(ctx)
			}

			c, closeFn, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if watch && cfg.IndexFile != "" {
				stop, err := config.WatchIndexFile(cfg.IndexFile, c)
				if err != nil {
					return fmt.Errorf("watch index file: %w", err)
				}
				defer stop()
				fmt.Fprintf(cmd.OutOrStdout(), "watching %s for index declarations\n", cfg.IndexFile)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ihash serve: running, ctrl-c to stop")
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "watch the declarative index file for changes")
	cmd.Flags().BoolVar(&trace, "trace", false, "emit OpenTelemetry spans/counters to stdout")
	return cmd
}
