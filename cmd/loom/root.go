package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/batchexec"
	"loom/internal/orchestrator"
)

var (
	flagSteps      []string
	flagFrom       string
	flagInclude    []string
	flagSet        []string
	flagVar        []string
	flagExtra      string
	flagDryRun     bool
	flagParallel   bool
	flagMaxWorkers int
)

// rootCmd is spec §6.2's batch runner: `runner <pipeline.yaml>
// [selection] [overrides] [mode]`. Subcommands (validate, graph, clean,
// fresh, serve) are the SPEC_FULL.md supplements, added in their own
// files.
var rootCmd = &cobra.Command{
	Use:   appName + " [pipeline.yaml]",
	Short: "Run a loom pipeline",
	Long: appName + " runs the steps of a pipeline YAML file as a dependency-ordered\n" +
		"batch of child processes (spec §4.4/§4.5). With no path argument it\n" +
		"looks for a default pipeline under the loom config directory.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRoot,
}

func runRoot(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) == 1 {
		arg = args[0]
	}
	path, err := resolvePipelinePath(arg)
	if err != nil {
		return err
	}

	p, r, err := loadForRun(path, flagSet, flagVar)
	if err != nil {
		return err
	}

	if len(flagSteps) > 0 && flagFrom != "" {
		return fmt.Errorf("--step and --from are mutually exclusive")
	}

	graph := orchestrator.BuildDependencyGraph(p)
	scope, err := orchestrator.GetStepsToRun(p, graph, orchestrator.Selection{
		Steps:    flagSteps,
		FromStep: flagFrom,
	})
	if err != nil {
		return err
	}
	if len(flagInclude) > 0 {
		included, err := orchestrator.GetStepsToRun(p, graph, orchestrator.Selection{
			Steps:           flagInclude,
			IncludeOptional: true,
		})
		if err != nil {
			return err
		}
		scope = unionInDeclarationOrder(p, scope, included)
	}

	if flagDryRun {
		batchexec.DryRun(stepsInScope(p, scope), r)
		return nil
	}

	ctx := context.Background()
	o := orchestrator.New(graph, scope)

	var report *batchexec.Report
	if flagParallel || p.Parallel {
		if flagMaxWorkers > 0 {
			p.MaxWorkers = flagMaxWorkers
		}
		report = batchexec.RunParallel(ctx, p, o, r)
	} else {
		extraArgsByStep := map[string]string{}
		if flagExtra != "" && len(flagSteps) == 1 {
			extraArgsByStep[flagSteps[0]] = flagExtra
		}
		report = batchexec.RunSequential(ctx, p, o, r, extraArgsByStep)
	}

	if report.Succeeded() < len(scope) {
		return fmt.Errorf("%d/%d steps succeeded", report.Succeeded(), len(scope))
	}
	return nil
}

func init() {
	rootCmd.Flags().StringSliceVar(&flagSteps, "step", nil, "run exactly the named step(s) (dependencies are assumed already satisfied)")
	rootCmd.Flags().StringVar(&flagFrom, "from", "", "run the named step and everything downstream of it")
	rootCmd.Flags().StringSliceVar(&flagInclude, "include", nil, "also enroll these optional steps")
	rootCmd.Flags().StringArrayVar(&flagSet, "set", nil, "override a parameter: KEY=VALUE")
	rootCmd.Flags().StringArrayVar(&flagVar, "var", nil, "override a data node path: KEY=VALUE")
	rootCmd.Flags().StringVar(&flagExtra, "extra", "", "extra args appended to a single --step's command")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print the commands that would run, without executing")
	rootCmd.Flags().BoolVar(&flagParallel, "parallel", false, "run independent steps concurrently (execution.parallel in YAML)")
	rootCmd.Flags().IntVar(&flagMaxWorkers, "max-workers", 0, "worker pool size for --parallel (overrides execution.max_workers)")
}
