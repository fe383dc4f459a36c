package main

import "loom/internal/config"

// stepsInScope filters p's steps down to those named in scope,
// preserving pipeline declaration order — the shape batchexec.DryRun
// wants instead of a bare name list.
func stepsInScope(p *config.Pipeline, scope []string) []config.Step {
	in := make(map[string]struct{}, len(scope))
	for _, name := range scope {
		in[name] = struct{}{}
	}
	var out []config.Step
	for _, s := range p.Steps {
		if _, ok := in[s.Name]; ok {
			out = append(out, s)
		}
	}
	return out
}

// unionInDeclarationOrder merges two step-name scopes, de-duplicating
// and restoring pipeline declaration order (the shape
// orchestrator.New's scope argument needs).
func unionInDeclarationOrder(p *config.Pipeline, a, b []string) []string {
	in := make(map[string]struct{}, len(a)+len(b))
	for _, n := range a {
		in[n] = struct{}{}
	}
	for _, n := range b {
		in[n] = struct{}{}
	}
	out := make([]string, 0, len(in))
	for _, s := range p.Steps {
		if _, ok := in[s.Name]; ok {
			out = append(out, s.Name)
		}
	}
	return out
}
