package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/analysis"
)

var (
	flagCleanThumbnails bool
	flagCleanPermanent  bool
)

// cleanCmd is SPEC_FULL.md's supplemented `loom clean`, a thin wrapper
// over spec §4.7's clean/trash analysis.
var cleanCmd = &cobra.Command{
	Use:   "clean [pipeline.yaml]",
	Short: "Move (or delete) every pipeline-owned output path",
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
		p, r, err := loadForRun(path, nil, nil)
		if err != nil {
			return err
		}
		results := analysis.Clean(p, r, flagCleanThumbnails, flagCleanPermanent)
		failed := 0
		for _, res := range results {
			if !res.Success {
				failed++
				fmt.Printf("FAILED %s: %v\n", res.Path, res.Err)
				continue
			}
			fmt.Printf("%s %s\n", res.Action, res.Path)
		}
		if failed > 0 {
			return fmt.Errorf("%d path(s) failed to clean", failed)
		}
		return nil
	},
}

// freshCmd is SPEC_FULL.md's supplemented `loom fresh`, reporting spec
// §4.7's freshness classification (no_outputs/missing/stale/fresh) for
// every step.
var freshCmd = &cobra.Command{
	Use:   "fresh [pipeline.yaml]",
	Short: "Report each step's output freshness",
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
		p, r, err := loadForRun(path, nil, nil)
		if err != nil {
			return err
		}
		for _, s := range p.Steps {
			f, err := analysis.ClassifyFreshness(s, r)
			if err != nil {
				fmt.Printf("%-20s error: %v\n", s.Name, err)
				continue
			}
			fmt.Printf("%-20s %s\n", s.Name, f)
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&flagCleanThumbnails, "thumbnails", false, "also clean the .loom-thumbnails directory")
	cleanCmd.Flags().BoolVar(&flagCleanPermanent, "permanent", false, "delete instead of moving to .loom-trash")
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(freshCmd)
}
