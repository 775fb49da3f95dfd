package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/grcorsair/corsair-sub002/internal/plugin"
	"github.com/grcorsair/corsair-sub002/internal/raid"
)

func newVectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vectors",
		Short: "List available attack vectors, built-in and plugin-declared",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ids := raid.Vectors()
			sort.Strings(ids)

			out := cmd.OutOrStdout()
			for _, id := range ids {
				severity, _ := raid.VectorSeverity(id)
				fmt.Fprintf(out, "%-18s %-8s builtin\n", id, severity)
			}

			if cfg.Plugins.Dir == "" {
				return nil
			}
			if _, err := os.Stat(cfg.Plugins.Dir); err != nil {
				return nil
			}

			registry := plugin.NewRegistry()
			if _, err := registry.Discover(cfg.Plugins.Dir); err != nil {
				return err
			}
			for _, pv := range registry.AllVectors() {
				fmt.Fprintf(out, "%-18s %-8s %s\n", pv.Vector.ID, pv.Vector.Severity, pv.ProviderID)
			}
			return nil
		},
	}
}
