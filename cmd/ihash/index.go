package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/kvindex/ihashmap/internal/index"
	"github.com/kvindex/ihashmap/internal/types"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage declared secondary indexes",
	}
	cmd.AddCommand(newIndexAddCmd())
	return cmd
}

// newIndexAddCmd interactively prompts for an index declaration and prints
// the resulting [[index]] TOML stanza ready to append to indexes.toml.
// Registering it against a live cache still requires a restart or a watched
// reload — this command only authors the declaration.
func newIndexAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Interactively declare a new index",
		RunE: func(cmd *cobra.Command, args []string) error {
			var target, fieldsRaw string
			var unique bool

			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("Target namespace").
					Description("Leave blank to apply to every namespace").
					Value(&target),
				huh.NewInput().
					Title("Fields (comma separated)").
					Value(&fieldsRaw),
				huh.NewConfirm().
					Title("Unique?").
					Value(&unique),
			))
			if err := form.Run(); err != nil {
				return fmt.Errorf("index wizard: %w", err)
			}

			var fields []string
			for _, f := range strings.Split(fieldsRaw, ",") {
				f = strings.TrimSpace(f)
				if f != "" {
					fields = append(fields, f)
				}
			}

			def := index.Definition{
				Target: types.Namespace(target),
				Fields: fields,
				Unique: unique,
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderIndexTOML(def))
			return nil
		},
	}
}

func renderIndexTOML(def index.Definition) string {
	var b strings.Builder
	b.WriteString("[[index]]\n")
	fmt.Fprintf(&b, "fields = [%s]\n", quoteList(def.Fields))
	fmt.Fprintf(&b, "target_namespace = %q\n", string(def.Target))
	fmt.Fprintf(&b, "unique = %v\n", def.Unique)
	return b.String()
}

func quoteList(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
