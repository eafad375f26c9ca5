package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvindex/ihashmap"
	"github.com/kvindex/ihashmap/internal/types"
)

func newExportCmd() *cobra.Command {
	var skipErrors bool
	cmd := &cobra.Command{
		Use:   "export <namespace> <path>",
		Short: "Write every live document in a namespace to a YAML snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			policy := ihashmap.FailFast
			if skipErrors {
				policy = ihashmap.SkipErrors
			}

			if err := c.Dump(ctx, types.Namespace(args[0]), args[1], policy); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipErrors, "skip-errors", false, "record unreadable keys in the manifest instead of aborting")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Restore a YAML snapshot written by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			ns, n, err := c.Load(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d documents into %s\n", n, ns)
			return nil
		},
	}
}
