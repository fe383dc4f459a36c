package config

// ---------------------------------------------------------------------------
// Raw (pre-expansion) document shape
//
// This mirrors the teacher's RawNode/RawStep split (dsl/raw.go): a
// format-agnostic intermediate representation produced by the YAML decoder
// (internal/config/loomyaml) and consumed by the multi-pass expander
// (expand.go). No YAML struct tags live here on purpose — that polymorphism
// (task vs script, the inputs/outputs/args three-way value union) is the
// loomyaml package's job, same division of labour as dslyaml.go vs raw.go.
// ---------------------------------------------------------------------------

// RawStep is a step exactly as declared in YAML, before reference
// resolution or multi-pass expansion.
type RawStep struct {
	Name        string
	Task        string // resolved from task: (wins) or script: (legacy)
	Inputs      map[string]string
	InputOrder  []string
	Outputs     map[string]string
	OutputOrder []string
	Args        map[string]any // literal | $ref | bool
	ArgOrder    []string
	Optional    bool
	Disabled    bool
	Loop        *Loop
}

// RawPass is one entry of a multi-pass group's `passes` list.
type RawPass struct {
	Name   string
	Params map[string]any
}

// RawMultiPass holds a group's `multi_pass` block. Nil on a plain group.
type RawMultiPass struct {
	Passes []RawPass
	// Chain maps "sourceStep.flag" -> "targetStep.flag" (spec §3.1/§4.3).
	Chain map[string]string
}

// RawGroup is a named bundle of template steps (spec §3.1), optionally
// carrying a multi-pass macro block.
type RawGroup struct {
	Name      string
	Steps     []RawStep
	MultiPass *RawMultiPass
}

// RawPipelineItem is one entry of the top-level `pipeline:` list: either a
// plain step or a group. Exactly one of Step/Group is non-nil.
type RawPipelineItem struct {
	Step  *RawStep
	Group *RawGroup
}

// RawDocument is the whole pipeline YAML file in format-agnostic form.
type RawDocument struct {
	Data       map[string]DataNode
	Parameters map[string]Parameter
	Pipeline   []RawPipelineItem
	MaxWorkers int
	Parallel   bool
	Layout     map[string]LayoutNode
	Editor     EditorConfig
}
