package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/config/loomyaml"
)

// validateCmd is SPEC_FULL.md's supplemented `loom validate`: load,
// expand, and run every load-time invariant check (spec §6.1's hard
// errors plus the §3.2 reference/producer/acyclicity checks) without
// building or executing a single command — distinct from --dry-run,
// which still calls batchexec.BuildCommand.
var validateCmd = &cobra.Command{
	Use:   "validate [pipeline.yaml]",
	Short: "Check a pipeline for load-time errors without running it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var arg string
		if len(args) == 1 {
			arg = args[0]
		}
		path, err := resolvePipelinePath(arg)
		if err != nil {
			return err
		}
		p, err := loomyaml.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("ok: %s (%d steps, %d data nodes, %d parameters)\n",
			path, len(p.Steps), len(p.DataNodes), len(p.Parameters))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
