package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kvindex/ihashmap"
)

func newDoctorCmd() *cobra.Command {
	var repairNS string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose and optionally repair index state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, closeFn, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			ok, warn := diagnosticStyles()
			if repairNS == "" {
				fmt.Fprintln(cmd.OutOrStdout(), ok.Render("ihash doctor: pass --repair <namespace> to rebuild an index"))
				return nil
			}

			report, err := c.Reindex(ctx, ihashmap.Namespace(repairNS))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok.Render(fmt.Sprintf(
				"reindexed %s: walked %d entities, wrote %d forward entries, dropped %d stale",
				report.Namespace, report.EntitiesWalked, report.KeysInserted, report.StaleDropped)))
			if report.StaleDropped > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), warn.Render("stale entries were present — check for interrupted writes"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repairNS, "repair", "", "namespace to reindex and repair")
	return cmd
}

// diagnosticStyles returns lipgloss styles for normal and warning output,
// falling back to unstyled rendering when stdout isn't a terminal.
func diagnosticStyles() (ok, warn lipgloss.Style) {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	profile := termenv.ColorProfile()
	if !isTTY || profile == termenv.Ascii {
		return lipgloss.NewStyle(), lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
}
