package batchexec

import (
	"fmt"
	"strings"

	"loom/internal/config"
	"loom/internal/resolve"
)

// DryRun prints, for every step in scope in declaration order, the command
// that would be executed (spec §6.2's `--dry-run`: build, don't run; every
// selected step reports success). Grounded on the teacher's
// dryRunPipeline/dryRunRunnable shape — one numbered block per step, a
// command line, and its working directory — generalized from the
// teacher's capture/on_fail annotations to loom's own per-step fields
// (optional, group, loop).
func DryRun(steps []config.Step, r *resolve.Resolver) *Report {
	report := &Report{}
	for i, step := range steps {
		fmt.Println()
		fmt.Printf("[dry-run] step [%d] %s\n", i, step.Name)

		cmd, err := BuildCommand(step, r)
		if err != nil {
			fmt.Printf("  error: %s\n", err)
			report.Results = append(report.Results, Result{Step: step.Name, Status: StatusFailed, Err: err})
			continue
		}
		fmt.Printf("  command: %s\n", strings.Join(cmd.Argv, " "))
		fmt.Printf("  cwd:     %s\n", cmd.Dir)
		if step.Group != "" {
			fmt.Printf("  group:   %s\n", step.Group)
		}
		if step.Loop != nil {
			fmt.Printf("  loop:    over %s into %s\n", step.Loop.Over, step.Loop.Into)
		}
		if step.Optional {
			fmt.Println("  optional: true")
		}

		report.Results = append(report.Results, Result{Step: step.Name, Status: StatusSuccess})
	}
	report.PrintSummary()
	return report
}
