package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/config/loomyaml"
	"loom/internal/orchestrator"
)

// graphCmd is SPEC_FULL.md's supplemented `loom graph`: print the
// post-expansion producer->consumer dependency graph as indented text.
// Grounded on the teacher's printDerivedFromRoot (main.go), which prints
// the DSL's expanded node tree the same way — here the tree is the step
// dependency graph instead of the `uses` type tree.
var graphCmd = &cobra.Command{
	Use:   "graph [pipeline.yaml]",
	Short: "Print the expanded step dependency graph",
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
		dg := orchestrator.BuildDependencyGraph(p)
		for _, s := range p.Steps {
			fmt.Println(s.Name)
			deps := dg.Deps[s.Name]
			if len(deps) == 0 {
				fmt.Println("  (source)")
				continue
			}
			for _, d := range deps {
				fmt.Printf("  <- %s\n", d)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
