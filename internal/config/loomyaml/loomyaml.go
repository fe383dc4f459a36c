// Package loomyaml decodes a pipeline YAML file (spec §6.1) into a
// config.RawDocument, the same division of labour as the teacher's
// dslyaml package: this package owns the format-specific concerns
// (polymorphic `task`/`script`, the args literal/$ref/bool union,
// group/multi-pass block shapes) and hands back plain config types with
// no YAML struct tags attached to them.
package loomyaml

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"loom/internal/config"
)

// structValidate runs go-playground/validator/v10 struct-tag checks
// (spec §6.1's closed `type:` set, required fields) before any semantic
// resolution happens, the way Streamy validates its config structs ahead
// of its own reference resolution.
var structValidate = validator.New()

// yamlDocument is the top-level shape of a pipeline file (spec §6.1).
// `layout` and `editor` are decoded into maps here and then bound into
// config.LayoutNode/config.EditorConfig on the RawDocument (an editor
// concern); Load does not carry them into the Pipeline, so the runtime
// never consults them.
type yamlDocument struct {
	Data       map[string]yamlDataNode `yaml:"data,omitempty"`
	Parameters map[string]yamlParam    `yaml:"parameters,omitempty"`
	Pipeline   []yaml.Node             `yaml:"pipeline,omitempty"`
	Execution  yamlExecution           `yaml:"execution,omitempty"`
	Layout     map[string]any          `yaml:"layout,omitempty"`
	Editor     map[string]any          `yaml:"editor,omitempty"`
	Variables  map[string]any          `yaml:"variables,omitempty"` // legacy, rejected
}

type yamlDataNode struct {
	Type        string `yaml:"type" validate:"required,oneof=video image csv json txt image_directory data_folder"`
	Path        string `yaml:"path" validate:"required"`
	DisplayName string `yaml:"display_name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Pattern     string `yaml:"pattern,omitempty"`
}

type yamlParam struct {
	Value any `yaml:"value"`
}

type yamlExecution struct {
	MaxWorkers int  `yaml:"max_workers,omitempty"`
	Parallel   bool `yaml:"parallel,omitempty"`
}

// yamlStep is the YAML shape of a single pipeline step. Task/Script is a
// union (task wins when both are present — spec Open Question decision:
// script: is kept as a deprecated alias); Inputs/Outputs are plain
// name->$ref maps; Args is a yaml.Node per value so literal/$ref/bool can
// be told apart without losing declaration order.
type yamlStep struct {
	Name     string            `yaml:"name" validate:"required"`
	Task     string            `yaml:"task,omitempty"`
	Script   string            `yaml:"script,omitempty"` // deprecated alias for task
	Inputs   yaml.Node         `yaml:"inputs,omitempty"`
	Outputs  yaml.Node         `yaml:"outputs,omitempty"`
	Args     yaml.Node         `yaml:"args,omitempty"`
	Optional bool              `yaml:"optional,omitempty"`
	Disabled bool              `yaml:"disabled,omitempty"`
	Loop     *yamlLoop         `yaml:"loop,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"` // reserved, unused by batchexec today
}

type yamlLoop struct {
	Over string `yaml:"over"`
	Into string `yaml:"into"`
}

// yamlGroup is the YAML shape of a `pipeline:` entry that bundles steps,
// optionally driven by a multi_pass block.
type yamlGroup struct {
	Name      string         `yaml:"name"`
	Steps     []yamlStep     `yaml:"steps"`
	MultiPass *yamlMultiPass `yaml:"multi_pass,omitempty"`
}

type yamlMultiPass struct {
	Passes []yamlPass        `yaml:"passes"`
	Chain  map[string]string `yaml:"chain,omitempty"`
}

type yamlPass struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params,omitempty"`
}

// Parse decodes a pipeline YAML file into a config.RawDocument.
func Parse(in []byte) (*config.RawDocument, error) {
	var yd yamlDocument
	if err := yaml.Unmarshal(in, &yd); err != nil {
		return nil, fmt.Errorf("phase=parse: %w", err)
	}
	if yd.Variables != nil {
		return nil, fmt.Errorf("phase=parse: %w", config.ErrLegacyVariables)
	}

	data, err := convertData(yd.Data)
	if err != nil {
		return nil, err
	}
	params := convertParameters(yd.Parameters)

	items := make([]config.RawPipelineItem, 0, len(yd.Pipeline))
	for i, node := range yd.Pipeline {
		item, err := convertPipelineItem(&node)
		if err != nil {
			return nil, fmt.Errorf("phase=parse path=pipeline[%d]: %w", i, err)
		}
		items = append(items, item)
	}

	layout, err := convertLayout(yd.Layout)
	if err != nil {
		return nil, fmt.Errorf("phase=parse path=layout: %w", err)
	}
	editor, err := convertEditor(yd.Editor)
	if err != nil {
		return nil, fmt.Errorf("phase=parse path=editor: %w", err)
	}

	return &config.RawDocument{
		Data:       data,
		Parameters: params,
		Pipeline:   items,
		MaxWorkers: yd.Execution.MaxWorkers,
		Parallel:   yd.Execution.Parallel,
		Layout:     layout,
		Editor:     editor,
	}, nil
}

// convertLayout decodes the already-unmarshalled `layout:` map[string]any
// into typed LayoutNode values via mapstructure, the way dagu's config
// layer separates YAML node-walking from struct binding.
func convertLayout(raw map[string]any) (map[string]config.LayoutNode, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]config.LayoutNode, len(raw))
	for name, v := range raw {
		var ln config.LayoutNode
		if err := mapstructure.Decode(v, &ln); err != nil {
			return nil, fmt.Errorf("node=%s: %w", name, err)
		}
		out[name] = ln
	}
	return out, nil
}

// convertEditor decodes the already-unmarshalled `editor:` map[string]any
// into a typed EditorConfig via mapstructure.
func convertEditor(raw map[string]any) (config.EditorConfig, error) {
	if len(raw) == 0 {
		return config.EditorConfig{}, nil
	}
	var ec config.EditorConfig
	if err := mapstructure.Decode(raw, &ec); err != nil {
		return config.EditorConfig{}, err
	}
	return ec, nil
}

func convertData(raw map[string]yamlDataNode) (map[string]config.DataNode, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]config.DataNode, len(raw))
	for name, yn := range raw {
		if err := structValidate.Struct(yn); err != nil {
			return nil, fmt.Errorf("data=%s: %w", name, err)
		}
		out[name] = config.DataNode{
			Name:        name,
			Type:        config.DataType(yn.Type),
			Path:        yn.Path,
			DisplayName: yn.DisplayName,
			Description: yn.Description,
			Pattern:     yn.Pattern,
		}
	}
	return out, nil
}

func convertParameters(raw map[string]yamlParam) map[string]config.Parameter {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]config.Parameter, len(raw))
	for name, yp := range raw {
		out[name] = config.Parameter{Name: name, Value: yp.Value}
	}
	return out
}

// convertPipelineItem decides whether a `pipeline:` list entry is a step
// (has `task`/`script`) or a group (has `steps`), mirroring the teacher's
// yamlRawNode decode-then-dispatch pattern.
func convertPipelineItem(node *yaml.Node) (config.RawPipelineItem, error) {
	if node.Kind != yaml.MappingNode {
		return config.RawPipelineItem{}, fmt.Errorf("pipeline entry must be a mapping, got YAML kind %d", node.Kind)
	}
	if hasKey(node, "steps") {
		var yg yamlGroup
		if err := node.Decode(&yg); err != nil {
			return config.RawPipelineItem{}, fmt.Errorf("group: %w", err)
		}
		g, err := convertGroup(yg)
		if err != nil {
			return config.RawPipelineItem{}, err
		}
		return config.RawPipelineItem{Group: g}, nil
	}

	var ys yamlStep
	if err := node.Decode(&ys); err != nil {
		return config.RawPipelineItem{}, fmt.Errorf("step: %w", err)
	}
	s, err := convertStep(ys)
	if err != nil {
		return config.RawPipelineItem{}, err
	}
	return config.RawPipelineItem{Step: &s}, nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

func convertGroup(yg yamlGroup) (*config.RawGroup, error) {
	g := &config.RawGroup{Name: yg.Name}
	for i, ys := range yg.Steps {
		s, err := convertStep(ys)
		if err != nil {
			return nil, fmt.Errorf("group=%s steps[%d]: %w", yg.Name, i, err)
		}
		g.Steps = append(g.Steps, s)
	}
	if yg.MultiPass != nil {
		mp := &config.RawMultiPass{Chain: yg.MultiPass.Chain}
		for _, yp := range yg.MultiPass.Passes {
			mp.Passes = append(mp.Passes, config.RawPass{Name: yp.Name, Params: yp.Params})
		}
		g.MultiPass = mp
	}
	return g, nil
}

// convertStep converts a yamlStep into a config.RawStep, resolving the
// task/script union (task wins — spec Open Question decision) and the
// inputs/outputs/args polymorphic maps.
func convertStep(ys yamlStep) (config.RawStep, error) {
	if err := structValidate.Struct(ys); err != nil {
		return config.RawStep{}, fmt.Errorf("step=%s: %w", ys.Name, err)
	}
	task := ys.Task
	if task == "" {
		task = ys.Script
	}
	if task == "" {
		return config.RawStep{}, fmt.Errorf("step=%s: must declare task (or the deprecated script alias)", ys.Name)
	}

	inputs, inputOrder, err := convertRefMap(&ys.Inputs)
	if err != nil {
		return config.RawStep{}, fmt.Errorf("step=%s inputs: %w", ys.Name, err)
	}
	outputs, outputOrder, err := convertRefMap(&ys.Outputs)
	if err != nil {
		return config.RawStep{}, fmt.Errorf("step=%s outputs: %w", ys.Name, err)
	}
	args, argOrder, err := convertArgsMap(&ys.Args)
	if err != nil {
		return config.RawStep{}, fmt.Errorf("step=%s args: %w", ys.Name, err)
	}

	s := config.RawStep{
		Name:        ys.Name,
		Task:        task,
		Inputs:      inputs,
		InputOrder:  inputOrder,
		Outputs:     outputs,
		OutputOrder: outputOrder,
		Args:        args,
		ArgOrder:    argOrder,
		Optional:    ys.Optional,
		Disabled:    ys.Disabled,
	}
	if ys.Loop != nil {
		s.Loop = &config.Loop{Over: ys.Loop.Over, Into: ys.Loop.Into}
	}
	return s, nil
}

// convertRefMap decodes an inputs:/outputs: mapping (flag -> $ref string)
// while preserving declaration order, needed for positional input
// passing (spec §4.5).
func convertRefMap(node *yaml.Node) (map[string]string, []string, error) {
	if node.Kind == 0 {
		return nil, nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("must be a mapping, got YAML kind %d", node.Kind)
	}
	out := make(map[string]string, len(node.Content)/2)
	order := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1].Value
		out[key] = val
		order = append(order, key)
	}
	return out, order, nil
}

// convertArgsMap decodes the args: mapping, whose values are a
// three-way union of literal scalar, $ref string, or bool (spec §6.1).
// yaml.Node lets us distinguish a quoted string "$x" from an unquoted
// bareword and from true/false without guessing from Go's reflection
// rules the way a plain map[string]any decode would.
func convertArgsMap(node *yaml.Node) (map[string]any, []string, error) {
	if node.Kind == 0 {
		return nil, nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("must be a mapping, got YAML kind %d", node.Kind)
	}
	out := make(map[string]any, len(node.Content)/2)
	order := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		valNode := node.Content[i+1]
		var v any
		switch valNode.Tag {
		case "!!bool":
			var b bool
			if err := valNode.Decode(&b); err != nil {
				return nil, nil, fmt.Errorf("args[%s]: %w", key, err)
			}
			v = b
		case "!!int", "!!float":
			var f any
			if err := valNode.Decode(&f); err != nil {
				return nil, nil, fmt.Errorf("args[%s]: %w", key, err)
			}
			v = f
		default:
			v = valNode.Value
		}
		out[key] = v
		order = append(order, key)
	}
	return out, order, nil
}
