package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grcorsair/corsair-sub002/internal/evidence"
)

func newVerifyCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "verify <evidence-file>",
		Short: "Re-verify an evidence chain top to bottom",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := evidence.VerifyFile(args[0])

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else if result.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "chain valid: %d record(s)\n", result.RecordCount)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "chain BROKEN at line %d: %s\n",
					*result.BrokenAt, result.Reason)
			}

			if !result.Valid {
				// A broken chain is an audit failure, not a recoverable
				// condition.
				return fmt.Errorf("evidence chain failed verification")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the verification result as JSON")
	return cmd
}
