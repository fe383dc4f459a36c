// Package orchestrator implements spec §4.4: the pure DAG scheduler. It
// never spawns a process itself — it is driven turn by turn, emitting
// Ready/Skipped/Waiting/Complete events and waiting to be told the
// outcome of each dispatched step via StepResult.
//
// Grounded on the overall executor shape of
// other_examples/.../samgonzalez27-script-weaver/internal/dag-executor.go
// (per-node state map guarded by a mutex, depth-staged dispatch,
// fail-and-propagate) — but unlike that file, which calls a TaskRunner
// itself, loom's scheduler is pure per spec §4.4, so it is expressed as a
// goroutine-backed coroutine over two channels instead of owning
// execution.
package orchestrator

import "loom/internal/config"

// DependencyGraph holds the direct producer/consumer edges between steps.
type DependencyGraph struct {
	// Deps maps a step to the steps it directly depends on (the
	// producers of its inputs and, if present, loop.over).
	Deps map[string][]string
	// Dependents maps a step to the steps that directly depend on it.
	Dependents map[string][]string
}

// BuildDependencyGraph derives the step dependency graph from a
// Pipeline's already-computed Producers map (spec §4.4).
func BuildDependencyGraph(p *config.Pipeline) *DependencyGraph {
	deps := make(map[string][]string, len(p.Steps))
	dependents := make(map[string][]string, len(p.Steps))
	for _, s := range p.Steps {
		if _, ok := dependents[s.Name]; !ok {
			dependents[s.Name] = nil
		}
	}

	add := func(stepName string, d *[]string, ref string) {
		name := config.StripRef(ref)
		if name == "" {
			return
		}
		producer, ok := p.Producers[name]
		if !ok || producer == stepName {
			return
		}
		*d = append(*d, producer)
		dependents[producer] = append(dependents[producer], stepName)
	}

	for _, s := range p.Steps {
		var d []string
		for _, ref := range s.Inputs {
			add(s.Name, &d, ref)
		}
		if s.Loop != nil {
			add(s.Name, &d, s.Loop.Over)
		}
		deps[s.Name] = d
	}

	return &DependencyGraph{Deps: deps, Dependents: dependents}
}

// Selection expresses spec §4.4's step-subset selection: explicit
// `--step` names, `--from STEP`, or the whole pipeline by default.
// IncludeOptional controls whether optional steps not explicitly named
// are included.
type Selection struct {
	Steps           []string
	FromStep        string
	IncludeOptional bool
}

// GetStepsToRun resolves a Selection against p and graph, returning the
// step names in scope for this run, in pipeline declaration order.
//
// An explicit `steps` selection takes exactly those names — no ancestor
// walk — bypassing both the `disabled` and `optional` filters, matching
// the original's get_steps_to_run (runner/orchestrator.py), which
// returns `[self.config.get_step_by_name(name) for name in steps]`
// verbatim. Dependencies of an explicitly-named step are the caller's
// concern, not the scheduler's (see StepsUpTo in internal/analysis for
// the "steps up to step S" query that does walk ancestors).
func GetStepsToRun(p *config.Pipeline, graph *DependencyGraph, sel Selection) ([]string, error) {
	all := make(map[string]struct{}, len(p.Steps))
	for _, s := range p.Steps {
		all[s.Name] = struct{}{}
	}

	explicit := make(map[string]struct{}, len(sel.Steps))
	for _, name := range sel.Steps {
		explicit[name] = struct{}{}
	}

	var scope map[string]struct{}
	switch {
	case len(sel.Steps) > 0:
		scope = map[string]struct{}{}
		for _, name := range sel.Steps {
			if _, ok := all[name]; !ok {
				return nil, unknownStepErr(name)
			}
			scope[name] = struct{}{}
		}

	case sel.FromStep != "":
		if _, ok := all[sel.FromStep]; !ok {
			return nil, unknownStepErr(sel.FromStep)
		}
		scope = map[string]struct{}{sel.FromStep: {}}
		collectDescendants(graph, sel.FromStep, scope)

	default:
		scope = all
	}

	var out []string
	for _, s := range p.Steps {
		if _, ok := scope[s.Name]; !ok {
			continue
		}
		_, named := explicit[s.Name]
		if s.Disabled && !named {
			continue
		}
		if s.Optional && !sel.IncludeOptional && !named {
			continue
		}
		out = append(out, s.Name)
	}
	return out, nil
}

func collectDescendants(graph *DependencyGraph, name string, into map[string]struct{}) {
	for _, dep := range graph.Dependents[name] {
		if _, seen := into[dep]; seen {
			continue
		}
		into[dep] = struct{}{}
		collectDescendants(graph, dep, into)
	}
}

func unknownStepErr(name string) error {
	return &UnknownStepError{Step: name}
}

// UnknownStepError is returned when a selection names a step the
// pipeline doesn't declare.
type UnknownStepError struct{ Step string }

func (e *UnknownStepError) Error() string {
	return "unknown step: " + e.Step
}
