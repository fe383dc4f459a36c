// Package analysis implements spec §4.7: read-only queries derived from
// the expanded pipeline's dependency graph and its data nodes' state on
// disk — nothing here schedules or executes a step.
//
// Grounded on internal/orchestrator's own descendant walk
// (collectDescendants), mirrored over graph.Deps for the two BFS queries,
// and on
// dagu-org-dagu's go.mod choice of bmatcuk/doublestar/v4 for the
// directory-pattern matching freshness and clean need against a data
// node's `pattern:` glob.
package analysis

import "loom/internal/orchestrator"

// collectAncestors walks graph.Deps, recording every direct and indirect
// dependency of name into into. It is the reverse of internal/orchestrator's
// unexported collectDescendants, which walks graph.Dependents instead.
func collectAncestors(graph *orchestrator.DependencyGraph, name string, into map[string]struct{}) {
	for _, dep := range graph.Deps[name] {
		if _, seen := into[dep]; seen {
			continue
		}
		into[dep] = struct{}{}
		collectAncestors(graph, dep, into)
	}
}
