package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kvindex/ihashmap"
)

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <namespace> <json-document>",
		Short: "Upsert a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var doc ihashmap.Document
			if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
				return fmt.Errorf("parse document: %w", err)
			}
			return c.Set(ctx, ihashmap.Namespace(args[0]), doc)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace> <key>",
		Short: "Fetch a document by primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			doc, err := c.Get(ctx, ihashmap.Namespace(args[0]), args[1], nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, doc)
		},
	}
}

func newUpdateCmd() *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "update <namespace> <json-partial>",
		Short: "Shallow-merge fields into an existing document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var doc ihashmap.Document
			if err := json.Unmarshal([]byte(args[1]), &doc); err != nil {
				return fmt.Errorf("parse document: %w", err)
			}
			return c.Update(ctx, ihashmap.Namespace(args[0]), doc, fields)
		},
	}
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "restrict the merge to these fields")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <namespace> <key>",
		Short: "Delete a document by primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			return c.Delete(ctx, ihashmap.Namespace(args[0]), args[1])
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
