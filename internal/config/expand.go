package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ExpandPipeline flattens a raw document's `pipeline:` list into a
// declaration-ordered []Step, generalizing the teacher's dsl/expand.go
// recursive "expand uses against a type registry" algorithm (cycle
// detection via a name stack, joinPath-style diagnostics) into "expand a
// group against its multi_pass.passes list" (spec §3.1/§4.3). A plain
// group (no multi_pass block) expands to exactly one Step per template
// step, same as a bare pipeline-level step.
//
// Any data nodes invented or overridden by multi-pass suffixing are
// returned in extra, to be merged into the Pipeline's DataNodes table by
// the loader. aliases maps an un-suffixed, group-internal dataname to the
// name of the concrete step that produces it on the last pass (spec
// §4.3 step 3) — buildProducers seeds the producer map from it, since
// after expansion no step literally outputs that un-suffixed name.
func ExpandPipeline(doc *RawDocument) ([]Step, map[string]DataNode, map[string]string, error) {
	var steps []Step
	extra := map[string]DataNode{}
	aliases := map[string]string{}
	seen := map[string]struct{}{}

	for _, item := range doc.Pipeline {
		switch {
		case item.Step != nil:
			if err := addStep(&steps, seen, stepFromRaw(*item.Step, "")); err != nil {
				return nil, nil, nil, err
			}

		case item.Group != nil:
			g := item.Group
			if g.MultiPass == nil {
				for _, rs := range g.Steps {
					if err := addStep(&steps, seen, stepFromRaw(rs, g.Name)); err != nil {
						return nil, nil, nil, err
					}
				}
				continue
			}

			if len(g.MultiPass.Passes) == 0 {
				return nil, nil, nil, fmt.Errorf("phase=expand group=%s: %w: multi_pass.passes must be non-empty", g.Name, ErrMultiPassShape)
			}
			expanded, newData, groupAliases, err := expandMultiPass(g, doc.Data)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("phase=expand group=%s: %w", g.Name, err)
			}
			for _, s := range expanded {
				if err := addStep(&steps, seen, s); err != nil {
					return nil, nil, nil, err
				}
			}
			for name, dn := range newData {
				extra[name] = dn
			}
			for name, producer := range groupAliases {
				aliases[name] = producer
			}

		default:
			return nil, nil, nil, fmt.Errorf("phase=expand: %w: pipeline entry is neither a step nor a group", ErrInvalidPipeline)
		}
	}

	return steps, extra, aliases, nil
}

// expandMultiPass expands one group's template steps once per declared
// pass (spec §4.3), mirroring the original's multi_pass.py:
//
//  1. internalOutputs computes the set of datanames the template
//     produces itself.
//  2. Every pass emits one concrete step per template step, named
//     "<step>_<pass>" (a single underscore, per multi_pass.py:153's
//     f"{step_name}_{pass_name}"). Every pass — including the last —
//     gets its own suffixed output/input datanames and data nodes; args
//     referencing a pass param are inlined, args referencing another
//     internal dataname are suffixed, everything else passes through.
//     For i > 0, mp.Chain additionally wires a prior pass's output into
//     the matching arg of this pass's step.
//  3. After every pass has run, the un-suffixed dataname is aliased to
//     the last pass's suffixed data node (path and type, the type being
//     the original's; other metadata stay as originally declared) and
//     that pass's concrete step becomes its producer.
func expandMultiPass(g *RawGroup, data map[string]DataNode) ([]Step, map[string]DataNode, map[string]string, error) {
	mp := g.MultiPass
	extra := map[string]DataNode{}
	aliases := map[string]string{}
	var out []Step

	internal := internalOutputs(g.Steps)
	chainTargets := chainSourceVars(g.Steps, mp.Chain)

	lastSuffixed := map[string]string{} // dataname -> "<name>_<lastPass>"
	lastProducer := map[string]string{} // dataname -> concrete step name, last pass

	for i, pass := range mp.Passes {
		if pass.Name == "" {
			return nil, nil, nil, fmt.Errorf("%w: pass %d has no name", ErrMultiPassShape, i+1)
		}
		isLast := i == len(mp.Passes)-1

		for _, rs := range g.Steps {
			s := stepFromRaw(rs, g.Name)
			s.Name = rs.Name + "_" + pass.Name

			for flag, ref := range s.Outputs {
				dataName := StripRef(ref)
				if dataName == "" || !internal[dataName] {
					continue
				}
				finalName := dataName + "_" + pass.Name
				extra[finalName] = suffixDataNode(data[dataName], finalName, pass.Name)
				s.Outputs[flag] = "$" + finalName
				if isLast {
					lastSuffixed[dataName] = finalName
					lastProducer[dataName] = s.Name
				}
			}

			for flag, ref := range s.Inputs {
				dataName := StripRef(ref)
				if dataName == "" || !internal[dataName] {
					continue
				}
				s.Inputs[flag] = "$" + dataName + "_" + pass.Name
			}

			for flag, v := range s.Args {
				ref, ok := v.(string)
				if !ok {
					continue
				}
				name := StripRef(ref)
				if name == "" {
					continue
				}
				if lit, ok := pass.Params[name]; ok {
					s.Args[flag] = lit
				} else if internal[name] {
					s.Args[flag] = "$" + name + "_" + pass.Name
				}
			}

			if i > 0 {
				prevPass := mp.Passes[i-1].Name
				for dstKey, dataName := range chainTargets {
					dstStep, dstFlag, ok := splitFlagSpec(dstKey)
					if !ok || dstStep != rs.Name {
						continue
					}
					if s.Args == nil {
						s.Args = map[string]any{}
					}
					if _, existed := s.Args[dstFlag]; !existed {
						s.ArgOrder = append(s.ArgOrder, dstFlag)
					}
					s.Args[dstFlag] = "$" + dataName + "_" + prevPass
				}
			}

			out = append(out, s)
		}
	}

	for dataName := range internal {
		finalName, ok := lastSuffixed[dataName]
		if !ok {
			continue
		}
		alias := data[dataName]
		alias.Name = dataName
		alias.Path = extra[finalName].Path
		alias.Type = extra[finalName].Type
		extra[dataName] = alias
		aliases[dataName] = lastProducer[dataName]
	}

	return out, extra, aliases, nil
}

// internalOutputs returns the set of datanames produced by some step in
// the group's template (spec §4.3 step 1).
func internalOutputs(steps []RawStep) map[string]bool {
	out := map[string]bool{}
	for _, rs := range steps {
		for _, ref := range rs.Outputs {
			if name := StripRef(ref); name != "" {
				out[name] = true
			}
		}
	}
	return out
}

// chainSourceVars resolves each mp.Chain entry's "producerStep.flag" key
// to the dataname that flag produces in the template, keyed by the
// entry's "consumerStep.flag" target — the form expandMultiPass needs at
// the point it's wiring a given target step's arg (spec §4.3 step 2e).
func chainSourceVars(steps []RawStep, chain map[string]string) map[string]string {
	outputsByKey := make(map[string]string, len(steps))
	for _, rs := range steps {
		for flag, ref := range rs.Outputs {
			if name := StripRef(ref); name != "" {
				outputsByKey[rs.Name+"."+flag] = name
			}
		}
	}
	resolved := make(map[string]string, len(chain))
	for src, dst := range chain {
		if name, ok := outputsByKey[src]; ok {
			resolved[dst] = name
		}
	}
	return resolved
}

// splitFlagSpec splits a "step.flag" chain key into its two parts.
func splitFlagSpec(spec string) (step, flag string, ok bool) {
	idx := strings.Index(spec, ".")
	if idx < 0 {
		return "", "", false
	}
	return spec[:idx], spec[idx+1:], true
}

// suffixDataNode builds the data node a suffixed output/input registers:
// same type as the original declaration, path suffixed the same way
// (spec §4.3 step 2b: "its type inherits the original").
func suffixDataNode(orig DataNode, finalName, pass string) DataNode {
	return DataNode{
		Name: finalName,
		Type: orig.Type,
		Path: suffixPath(orig.Path, pass),
	}
}

// suffixPath inserts "_<suffix>" into path the way the original's
// _suffix_path does: before the extension, before a trailing directory
// slash, or appended outright when there's no extension. An empty path
// yields "_<suffix>" on its own (multi_pass.py's doctests).
func suffixPath(path, suffix string) string {
	if path == "" {
		return "_" + suffix
	}
	if strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/") + "_" + suffix + "/"
	}
	ext := filepath.Ext(path)
	if ext == "" {
		return path + "_" + suffix
	}
	return strings.TrimSuffix(path, ext) + "_" + suffix + ext
}

func addStep(steps *[]Step, seen map[string]struct{}, s Step) error {
	if s.Name == "" {
		return fmt.Errorf("phase=expand: %w: step declared with no name", ErrInvalidPipeline)
	}
	if _, exists := seen[s.Name]; exists {
		return fmt.Errorf("phase=expand step=%s: %w", s.Name, ErrDuplicateStep)
	}
	seen[s.Name] = struct{}{}
	*steps = append(*steps, s)
	return nil
}

func stepFromRaw(rs RawStep, group string) Step {
	return Step{
		Name:        rs.Name,
		Task:        rs.Task,
		Inputs:      cloneStringMap(rs.Inputs),
		InputOrder:  append([]string(nil), rs.InputOrder...),
		Outputs:     cloneStringMap(rs.Outputs),
		OutputOrder: append([]string(nil), rs.OutputOrder...),
		Args:        cloneAnyMap(rs.Args),
		ArgOrder:    append([]string(nil), rs.ArgOrder...),
		Optional:    rs.Optional,
		Disabled:    rs.Disabled,
		Group:       group,
		Loop:        rs.Loop,
	}
}

// stripRef returns the bare name of a $-prefixed reference, or "" if ref
// is not a whole-value reference (spec §4.1 — only a string that is
// entirely "$name" resolves; anything else is a literal).
func StripRef(ref string) string {
	if len(ref) > 1 && ref[0] == '$' {
		return ref[1:]
	}
	return ""
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
