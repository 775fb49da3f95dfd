package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grcorsair/corsair-sub002/internal/plugin"
)

func newPluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage provider plugins",
	}
	cmd.AddCommand(newPluginListCmd())
	return cmd
}

func newPluginListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Discover and list provider manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			registry := plugin.NewRegistry()
			result, err := registry.Discover(cfg.Plugins.Dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "discovered %d provider(s)\n", result.DiscoveredCount)
			for _, m := range registry.List() {
				fmt.Fprintf(out, "  %s (%s, v%s): %d vector(s)\n",
					m.ProviderID, m.ProviderName, m.Version, len(m.AttackVectors))
				for _, v := range m.AttackVectors {
					fmt.Fprintf(out, "    - %s [%s] %s\n", v.ID, v.Severity, v.Name)
				}
			}
			for _, invalid := range result.InvalidManifests {
				fmt.Fprintf(out, "  skipped %s: %s\n", invalid.Path, invalid.Reason)
			}
			return nil
		},
	}
}
