package batchexec

import (
	"context"
	"os"
	"os/exec"
	"time"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/orchestrator"
	"loom/internal/resolve"
)

// RunSequential drives o to completion, running each ready step in turn
// with inherited standard streams (spec §4.5.2). extraArgsByStep carries
// the CLI `--extra` override, keyed by step name (only meaningful with a
// single `--step` selection per spec §6.2).
func RunSequential(ctx context.Context, p *config.Pipeline, o *orchestrator.Orchestrator, r *resolve.Resolver, extraArgsByStep map[string]string) *Report {
	report := &Report{}
	o.Start(ctx)

	for ev := range o.Events() {
		switch ev.Kind {
		case orchestrator.EventSkipped:
			PrintBanner(StatusSkipped, ev.Step)
			report.Results = append(report.Results, Result{Step: ev.Step, Status: StatusSkipped})

		case orchestrator.EventReady:
			step, _ := p.StepByName(ev.Step)
			if extra, ok := extraArgsByStep[ev.Step]; ok {
				step.ExtraArgs = extra
			}
			PrintBanner("RUNNING", step.Name)
			logging.Default.Info().Str("step", step.Name).Str("transition", "running").Msg("step running")
			res := runOneInherited(ctx, step, r)
			PrintBanner(res.Status, step.Name)
			logging.Default.Info().Str("step", step.Name).Str("transition", string(res.Status)).Dur("duration", res.Duration).Msg("step finished")
			report.Results = append(report.Results, res)
			o.Results() <- orchestrator.StepResult{Step: step.Name, Err: res.Err}

		case orchestrator.EventWaiting, orchestrator.EventComplete:
			// sequential driver has no in-flight work to wait on between
			// dispatches, and needs no special handling at completion.
		}
	}

	report.PrintSummary()
	return report
}

func runOneInherited(ctx context.Context, step config.Step, r *resolve.Resolver) Result {
	start := time.Now()
	cmd, err := BuildCommand(step, r)
	if err != nil {
		return Result{Step: step.Name, Status: StatusFailed, Err: err, Duration: time.Since(start)}
	}
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Stdin = os.Stdin
	runErr := c.Run()
	status := StatusSuccess
	if runErr != nil {
		status = StatusFailed
	}
	return Result{Step: step.Name, Status: status, Err: runErr, Duration: time.Since(start)}
}
