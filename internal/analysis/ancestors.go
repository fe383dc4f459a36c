package analysis

import (
	"fmt"

	"loom/internal/config"
	"loom/internal/orchestrator"
	"loom/internal/resolve"
)

// StepsToProduce implements spec §4.7's "steps to produce X": a reverse
// BFS from the step that produces data node dataName, collecting
// ancestors via each ancestor's input references, returned with the
// target in pipeline declaration order. When onlyMissing is true, steps
// whose outputs already exist on disk are dropped (presence only, no
// timestamp comparison — that's Freshness's job).
func StepsToProduce(p *config.Pipeline, graph *orchestrator.DependencyGraph, dataName string, onlyMissing bool, r *resolve.Resolver) ([]string, error) {
	producer, ok := p.Producers[dataName]
	if !ok {
		return nil, fmt.Errorf("%w: data node %s has no producer", config.ErrUnknownReference, dataName)
	}

	set := map[string]struct{}{producer: {}}
	collectAncestors(graph, producer, set)

	var names []string
	for _, s := range p.Steps {
		if _, in := set[s.Name]; !in {
			continue
		}
		if onlyMissing && stepOutputsExist(s, r) {
			continue
		}
		names = append(names, s.Name)
	}
	return names, nil
}

// StepsUpTo implements spec §4.7's "steps up to step S": a reverse BFS
// through inputs *and* loop.over, returning ancestors plus S itself in
// pipeline declaration order. S is always kept, even if disabled or
// optional.
func StepsUpTo(p *config.Pipeline, graph *orchestrator.DependencyGraph, stepName string) ([]string, error) {
	if _, found := p.StepByName(stepName); !found {
		return nil, &orchestrator.UnknownStepError{Step: stepName}
	}

	set := map[string]struct{}{stepName: {}}
	collectAncestors(graph, stepName, set)

	var names []string
	for _, s := range p.Steps {
		if _, in := set[s.Name]; in {
			names = append(names, s.Name)
		}
	}
	return names, nil
}

// stepOutputsExist reports whether every one of step's outputs resolves
// to at least one file that currently exists.
func stepOutputsExist(s config.Step, r *resolve.Resolver) bool {
	if len(s.OutputOrder) == 0 {
		return false
	}
	for _, flag := range s.OutputOrder {
		ref := s.Outputs[flag]
		name := config.StripRef(ref)
		if name == "" {
			return false
		}
		dn, ok := r.DataNodes[name]
		if !ok {
			return false
		}
		path, err := r.ResolvePath(ref)
		if err != nil {
			return false
		}
		files, err := matchedFiles(dn, path)
		if err != nil || len(files) == 0 {
			return false
		}
	}
	return true
}
