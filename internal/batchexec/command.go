// Package batchexec implements spec §4.5: building a step's child-process
// command line and running it, either sequentially with inherited standard
// streams or under a bounded worker pool with captured, line-prefixed
// output.
//
// Grounded on the teacher's executor.go (runStep's argv assembly and
// on-fail handling), generalized from the teacher's regex-based
// {{ steps.X }}/{{ inputs.X }} substitution to internal/resolve.Resolver,
// since spec §4.1's reference model is a whole-value $ref, not a
// text/template placeholder (see internal/resolve's package doc).
package batchexec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"loom/internal/config"
	"loom/internal/resolve"
)

// Command is a fully resolved child-process invocation for one step.
type Command struct {
	Step string
	Argv []string
	Dir  string
}

// BuildCommand implements spec §4.5.1: `<absolute-path-to-task>` followed
// by positional inputs (insertion order, URL-cache resolved), `flag value`
// outputs (parent directories created ahead of execution), `flag value` /
// bare-flag args, and finally the step's whitespace-tokenised extra-args
// string.
func BuildCommand(step config.Step, r *resolve.Resolver) (*Command, error) {
	task := step.Task
	if !filepath.IsAbs(task) {
		task = filepath.Join(r.BaseDir, task)
	}
	argv := []string{task}

	for _, flag := range step.InputOrder {
		ref := step.Inputs[flag]
		path, err := r.ResolvePathForExecution(ref, false)
		if err != nil {
			return nil, fmt.Errorf("step=%s input=%s: %w", step.Name, flag, err)
		}
		argv = append(argv, path)
	}

	for _, flag := range step.OutputOrder {
		ref := step.Outputs[flag]
		path, err := r.ResolvePath(ref)
		if err != nil {
			return nil, fmt.Errorf("step=%s output=%s: %w", step.Name, flag, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("step=%s output=%s: create parent dir: %w", step.Name, flag, err)
		}
		argv = append(argv, "--"+flag, path)
	}

	for _, flag := range step.ArgOrder {
		val, err := r.ResolveValue(step.Args[flag])
		if err != nil {
			return nil, fmt.Errorf("step=%s arg=%s: %w", step.Name, flag, err)
		}
		switch v := val.(type) {
		case bool:
			if v {
				argv = append(argv, "--"+flag)
			}
		case nil:
			// omitted
		default:
			argv = append(argv, "--"+flag, stringify(v))
		}
	}

	if step.ExtraArgs != "" {
		argv = append(argv, strings.Fields(step.ExtraArgs)...)
	}

	return &Command{Step: step.Name, Argv: argv, Dir: r.BaseDir}, nil
}

func stringify(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case int64:
		return fmt.Sprintf("%d", n)
	case float64:
		return fmt.Sprintf("%g", n)
	default:
		return fmt.Sprintf("%v", n)
	}
}
