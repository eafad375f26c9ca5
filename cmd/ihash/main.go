// Command ihash is a CLI front end for the ihashmap indexed cache engine.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kvindex/ihashmap/internal/cache"
	"github.com/kvindex/ihashmap/internal/config"
	"github.com/kvindex/ihashmap/internal/store/memstore"
	"github.com/kvindex/ihashmap/internal/store/sqlstore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ihash:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "ihash",
		Short: "A schemaless key-value cache with secondary indexes",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config-dir", "", "accepted but not read: config is loaded from ihash.* in the working directory and IHASH_* variables")

	root.AddCommand(
		newSetCmd(),
		newGetCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newSearchCmd(),
		newDoctorCmd(),
		newServeCmd(),
		newIndexCmd(),
		newExportCmd(),
		newImportCmd(),
	)
	return root
}

// openCache loads configuration and opens the cache over the configured
// backend. Called once per CLI invocation; a long-lived server process
// (serve) keeps the resulting Cache for its lifetime instead.
func openCache(ctx context.Context) (*cache.Cache, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	switch {
	case cfg.StoreDSN == "" || cfg.StoreDSN == "mem://" || strings.HasPrefix(cfg.StoreDSN, "mem://"):
		return cache.New(memstore.New(), cache.WithPKField(cfg.PKField)), func() error { return nil }, nil
	default:
		s, err := sqlstore.Open(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open store %s: %w", cfg.StoreDSN, err)
		}
		return cache.New(s, cache.WithPKField(cfg.PKField)), s.Close, nil
	}
}
