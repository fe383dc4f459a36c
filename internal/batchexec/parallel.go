package batchexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/orchestrator"
	"loom/internal/resolve"
)

// RunParallel drives o under a worker pool bounded by p.MaxWorkers (spec
// §4.5.3): each ready step's output is captured, then printed under a
// single print lock, line-by-line, prefixed "[step-name]", so concurrent
// children never interleave on the console. Runs backed by
// golang.org/x/sync/errgroup+semaphore, grounded on the concurrency
// primitives the rest of the example pack (dagu, stagecraft) reaches for
// the same job.
func RunParallel(ctx context.Context, p *config.Pipeline, o *orchestrator.Orchestrator, r *resolve.Resolver) *Report {
	maxWorkers := p.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	sem := semaphore.NewWeighted(int64(maxWorkers))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var printMu sync.Mutex
	report := &Report{}

	o.Start(ctx)
	for ev := range o.Events() {
		switch ev.Kind {
		case orchestrator.EventSkipped:
			PrintBanner(StatusSkipped, ev.Step)
			mu.Lock()
			report.Results = append(report.Results, Result{Step: ev.Step, Status: StatusSkipped})
			mu.Unlock()

		case orchestrator.EventReady:
			step, _ := p.StepByName(ev.Step)
			PrintBanner("RUNNING", step.Name)
			logging.Default.Info().Str("step", step.Name).Str("transition", "running").Msg("step running")
			if err := sem.Acquire(gctx, 1); err != nil {
				res := Result{Step: step.Name, Status: StatusFailed, Err: err}
				mu.Lock()
				report.Results = append(report.Results, res)
				mu.Unlock()
				o.Results() <- orchestrator.StepResult{Step: step.Name, Err: err}
				continue
			}
			g.Go(func() error {
				defer sem.Release(1)
				res := runOneCaptured(gctx, step, r, &printMu)
				mu.Lock()
				report.Results = append(report.Results, res)
				mu.Unlock()
				PrintBanner(res.Status, step.Name)
				logging.Default.Info().Str("step", step.Name).Str("transition", string(res.Status)).Dur("duration", res.Duration).Msg("step finished")
				o.Results() <- orchestrator.StepResult{Step: step.Name, Err: res.Err}
				return nil // a step's own failure never aborts the run; the
				// scheduler handles propagation via its own Skipped events
			})

		case orchestrator.EventWaiting, orchestrator.EventComplete:
		}
	}
	_ = g.Wait()

	report.PrintSummary()
	return report
}

func runOneCaptured(ctx context.Context, step config.Step, r *resolve.Resolver, printMu *sync.Mutex) Result {
	start := time.Now()
	cmd, err := BuildCommand(step, r)
	if err != nil {
		return Result{Step: step.Name, Status: StatusFailed, Err: err, Duration: time.Since(start)}
	}
	var buf bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Stdout = &buf
	c.Stderr = &buf
	runErr := c.Run()

	printMu.Lock()
	printPrefixed(step.Name, buf.String())
	printMu.Unlock()

	status := StatusSuccess
	if runErr != nil {
		status = StatusFailed
	}
	return Result{Step: step.Name, Status: status, Err: runErr, Duration: time.Since(start)}
}

func printPrefixed(step, output string) {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return
	}
	for _, line := range strings.Split(output, "\n") {
		fmt.Printf("[%s] %s\n", step, line)
	}
}
