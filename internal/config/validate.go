package config

import "fmt"

// ---------------------------------------------------------------------------
// Load-time invariant checks (spec §3.2, §7)
//
// Generalizes the teacher's dsl/validate_raw.go validation-pass style
// (return a descriptive, path-qualified error rather than a bool) from
// "is this raw node tree well-formed" to "does this expanded pipeline
// satisfy the data-model invariants": every reference resolves, no two
// steps claim the same output, and the step dependency graph has no
// cycle.
// ---------------------------------------------------------------------------

// ValidatePipeline runs every load-time invariant check against a fully
// expanded Pipeline and returns the first violation found.
func ValidatePipeline(p *Pipeline) error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("phase=validate: %w: pipeline declares no steps", ErrInvalidPipeline)
	}
	if err := checkReferences(p); err != nil {
		return err
	}
	producers, err := buildProducers(p)
	if err != nil {
		return err
	}
	p.Producers = producers
	if err := checkAcyclic(p, producers); err != nil {
		return err
	}
	return nil
}

// checkReferences verifies every $-prefixed reference in every step's
// inputs, outputs, and args names either a declared parameter or a
// declared data node.
func checkReferences(p *Pipeline) error {
	resolvable := func(name string) bool {
		if _, ok := p.Parameters[name]; ok {
			return true
		}
		_, ok := p.DataNodes[name]
		return ok
	}

	check := func(step Step, field string, refs map[string]string) error {
		for flag, ref := range refs {
			name := StripRef(ref)
			if name == "" {
				continue // literal value, nothing to resolve
			}
			if !resolvable(name) {
				return fmt.Errorf("phase=validate step=%s field=%s[%s]: %w: %s", step.Name, field, flag, ErrUnknownReference, name)
			}
		}
		return nil
	}

	for _, s := range p.Steps {
		if err := check(s, "inputs", s.Inputs); err != nil {
			return err
		}
		if err := check(s, "outputs", s.Outputs); err != nil {
			return err
		}
		for flag, v := range s.Args {
			str, ok := v.(string)
			if !ok {
				continue // bool/number literal, nothing to resolve
			}
			name := StripRef(str)
			if name == "" {
				continue
			}
			if !resolvable(name) {
				return fmt.Errorf("phase=validate step=%s field=args[%s]: %w: %s", s.Name, flag, ErrUnknownReference, name)
			}
		}
		if s.Loop != nil {
			for field, ref := range map[string]string{"loop.over": s.Loop.Over, "loop.into": s.Loop.Into} {
				name := StripRef(ref)
				if name == "" {
					continue
				}
				if !resolvable(name) {
					return fmt.Errorf("phase=validate step=%s field=%s: %w: %s", s.Name, field, ErrUnknownReference, name)
				}
			}
		}
	}
	return nil
}

// buildProducers maps each data-node name to the step that produces it,
// rejecting two steps claiming the same output (spec §3.2 invariant:
// every data node has at most one producer). Multi-pass aliases (spec
// §4.3 step 3) are seeded first since no step literally outputs an
// un-suffixed internal dataname after expansion.
func buildProducers(p *Pipeline) (map[string]string, error) {
	producers := make(map[string]string, len(p.DataNodes))
	for name, step := range p.Aliases {
		producers[name] = step
	}
	for _, s := range p.Steps {
		if s.Disabled {
			continue
		}
		for _, ref := range s.Outputs {
			name := StripRef(ref)
			if name == "" {
				continue
			}
			if existing, dup := producers[name]; dup && existing != s.Name {
				return nil, fmt.Errorf("phase=validate data=%s: %w: produced by both %s and %s", name, ErrDuplicateProducer, existing, s.Name)
			}
			producers[name] = s.Name
		}
	}
	return producers, nil
}

// checkAcyclic walks the step dependency graph (an edge from producer to
// consumer for every input a step consumes) and rejects any cycle, using
// the classic white/gray/black DFS coloring.
func checkAcyclic(p *Pipeline, producers map[string]string) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(p.Steps))
	deps := dependencyEdges(p, producers)

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("phase=validate: %w: %s", ErrCycleDetected, cyclePath(append(path, name)))
		}
		color[name] = gray
		for _, dep := range deps[name] {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for _, s := range p.Steps {
		if color[s.Name] == white {
			if err := visit(s.Name, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// dependencyEdges returns, for each step, the names of the steps it
// directly depends on (the producers of its inputs and loop.over).
func dependencyEdges(p *Pipeline, producers map[string]string) map[string][]string {
	edges := make(map[string][]string, len(p.Steps))
	for _, s := range p.Steps {
		var deps []string
		add := func(ref string) {
			name := StripRef(ref)
			if name == "" {
				return
			}
			if producer, ok := producers[name]; ok && producer != s.Name {
				deps = append(deps, producer)
			}
		}
		for _, ref := range s.Inputs {
			add(ref)
		}
		if s.Loop != nil {
			add(s.Loop.Over)
		}
		edges[s.Name] = deps
	}
	return edges
}

func cyclePath(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " -> "
		}
		out += n
	}
	return out
}
