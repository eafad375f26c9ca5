package main

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kvindex/ihashmap"
	"github.com/kvindex/ihashmap/internal/query"
)

func newSearchCmd() *cobra.Command {
	var eqs []string
	cmd := &cobra.Command{
		Use:   "search <namespace>",
		Short: "Run a conjunctive equality query against a namespace",
		Long: `Each --eq flag is "field=value". Values are parsed as JSON when
possible (so --eq count=3 matches a number, --eq 'active=true' matches a
bool); anything that doesn't parse as JSON is matched as a literal string.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			q, err := parseEqFlags(eqs)
			if err != nil {
				return err
			}

			results, err := c.Search(ctx, ihashmap.Namespace(args[0]), q)
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		},
	}
	cmd.Flags().StringArrayVar(&eqs, "eq", nil, `field=value equality constraint, repeatable`)
	return cmd
}

func parseEqFlags(eqs []string) (query.Query, error) {
	q := make(query.Query, len(eqs))
	for _, e := range eqs {
		field, raw, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --eq %q, expected field=value", e)
		}
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		q[field] = query.Literal(v)
	}
	return q, nil
}
