package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grcorsair/corsair-sub002/internal/config"
	"github.com/grcorsair/corsair-sub002/internal/drift"
	"github.com/grcorsair/corsair-sub002/internal/mission"
	"github.com/grcorsair/corsair-sub002/internal/plugin"
	"github.com/grcorsair/corsair-sub002/internal/raid"
	"github.com/grcorsair/corsair-sub002/internal/types"
)

// missionFile is the YAML shape `corsair run` consumes: one target snapshot
// plus expectations and an optional attack vector.
type missionFile struct {
	Name         string              `yaml:"name"`
	Provider     string              `yaml:"provider"`
	Environment  string              `yaml:"environment"`
	Resource     resourceSpec        `yaml:"resource"`
	Expectations []drift.Expectation `yaml:"expectations"`
	Vector       string              `yaml:"vector"`
	Intensity    int                 `yaml:"intensity"`
}

type resourceSpec struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

func newRunCmd() *cobra.Command {
	var (
		autoApprove bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "run <mission-file>",
		Short: "Run one mission against one target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("cannot read mission file: %w", err)
			}

			var mf missionFile
			if err := yaml.Unmarshal(data, &mf); err != nil {
				return fmt.Errorf("cannot parse mission file: %w", err)
			}

			registry := plugin.NewRegistry()
			if cfg.Plugins.Dir != "" {
				if _, err := os.Stat(cfg.Plugins.Dir); err == nil {
					if _, err := registry.Discover(cfg.Plugins.Dir); err != nil {
						return err
					}
				}
			}

			var gate *raid.Gate
			if cfg.Approval.Enabled {
				gate = &raid.Gate{
					MinSeverity: types.Severity(cfg.Approval.MinSeverity),
					Timeout:     cfg.Approval.Timeout,
					Approve:     terminalApproval(cmd, autoApprove),
				}
			}

			handler := logHandler(cfg)
			opts := []mission.Option{mission.WithLogHandler(handler)}
			if store := openRunStore(cfg, slog.New(handler)); store != nil {
				defer store.Close()
				opts = append(opts, mission.WithStore(store))
			}

			orchestrator := mission.NewOrchestrator(registry, gate, cfg.Evidence.Dir, opts...)

			spec := mission.Spec{
				Name:       mf.Name,
				ProviderID: mf.Provider,
				Snapshot: types.ResourceSnapshot{
					ResourceID:   mf.Resource.ID,
					ResourceType: mf.Resource.Type,
					Provider:     mf.Provider,
					Environment:  mf.Environment,
					CapturedAt:   time.Now(),
					Config:       mf.Resource.Config,
				},
				Expectations: mf.Expectations,
				Vector:       mf.Vector,
				Intensity:    mf.Intensity,
				GuardTimeout: cfg.Core.Timeout,
			}

			result, err := orchestrator.Execute(cmd.Context(), spec)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			printSummary(cmd, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "approve gated raids without prompting")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the full result as JSON")
	return cmd
}

// openRunStore opens the mission history store, or returns nil when no
// database is configured. Failures disable run history for this invocation
// but never fail the mission; they are logged so the gap is visible.
func openRunStore(cfg *config.Config, log *slog.Logger) *mission.Store {
	if cfg.Database.Path == "" {
		return nil
	}

	if err := os.MkdirAll(cfg.Core.DataDir, 0o755); err != nil {
		log.Warn("run history disabled: cannot create data directory",
			"dir", cfg.Core.DataDir, "error", err)
		return nil
	}

	store, err := mission.OpenStore(mission.StoreConfig{
		Path:        cfg.Database.Path,
		MaxConns:    cfg.Database.MaxConnections,
		BusyTimeout: cfg.Database.BusyTimeout,
		WALMode:     cfg.Database.WALMode,
	})
	if err != nil {
		log.Warn("run history disabled: cannot open mission store",
			"path", cfg.Database.Path, "error", err)
		return nil
	}
	return store
}

// terminalApproval prompts on the CLI, or rubber-stamps under --auto-approve.
func terminalApproval(cmd *cobra.Command, auto bool) raid.ApprovalFunc {
	return func(ctx context.Context, req raid.ApprovalRequest) (raid.ApprovalResponse, error) {
		if auto {
			return raid.ApprovalResponse{Approved: true, ApproverID: "auto-approve"}, nil
		}

		fmt.Fprintf(cmd.OutOrStdout(),
			"Raid %s (%s, severity %s) will affect %d resource(s) in %q: %v\nProceed? [y/N] ",
			req.RaidID, req.Vector, req.Severity, req.AffectedResources,
			req.Environment, req.ResourceIDs)

		answer := make(chan string, 1)
		go func() {
			var line string
			fmt.Fscanln(cmd.InOrStdin(), &line)
			answer <- line
		}()

		select {
		case <-ctx.Done():
			return raid.ApprovalResponse{}, ctx.Err()
		case line := <-answer:
			approved := strings.EqualFold(line, "y") || strings.EqualFold(line, "yes")
			return raid.ApprovalResponse{Approved: approved, ApproverID: "cli"}, nil
		}
	}
}

func printSummary(cmd *cobra.Command, result *mission.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mission %s (%s)\n", result.MissionID, result.Status)
	fmt.Fprintf(out, "  target:  %s\n", result.Target)
	fmt.Fprintf(out, "  drift:   %v (%d findings)\n", result.Drift.DriftDetected, len(result.Drift.Findings))
	if result.Raid != nil {
		fmt.Fprintf(out, "  raid:    %s success=%v controls_held=%v\n",
			result.Raid.Vector, result.Raid.Success, result.Raid.ControlsHeld)
		fmt.Fprintf(out, "  evidence: %s (%d records)\n", result.EvidencePath, result.Evidence.RecordsWritten)
	}
	fmt.Fprintf(out, "  mappings: %d framework references\n", len(result.Mappings))
}
