// Package config holds the pipeline data model: parameters, data nodes,
// steps, groups, and the multi-pass expansion that turns a raw pipeline
// document into a flat, DAG-checked list of concrete steps.
package config

// DataType is the closed set of typed data-node kinds (spec §3.1).
type DataType string

const (
	TypeVideo          DataType = "video"
	TypeImage          DataType = "image"
	TypeCSV            DataType = "csv"
	TypeJSON           DataType = "json"
	TypeTxt            DataType = "txt"
	TypeImageDirectory DataType = "image_directory"
	TypeDataFolder     DataType = "data_folder"
)

// validDataTypes lists the closed set of data types. The YAML loader
// checks the `type:` field against the same set through its struct-tag
// `oneof` rule (internal/config/loomyaml), not through this map.
var validDataTypes = map[DataType]struct{}{
	TypeVideo: {}, TypeImage: {}, TypeCSV: {}, TypeJSON: {}, TypeTxt: {},
	TypeImageDirectory: {}, TypeDataFolder: {},
}

// DataNode is a named, typed file or directory reference (spec §3.1).
// Path is stored exactly as declared; resolution to an absolute path is the
// reference resolver's job (internal/resolve), not this package's.
type DataNode struct {
	Name        string
	Type        DataType
	Path        string
	DisplayName string
	Description string
	Pattern     string // glob, only meaningful for the directory types
}

// Parameter is a named immutable scalar (spec §3.1). Value holds the
// natively-typed Go value as decoded from YAML (bool, int, float64, or
// string); CLI `--set` overrides are parsed into bool, int64, float64, or
// string before being merged in (see
// internal/resolve.Resolver.OverrideParameters).
type Parameter struct {
	Name  string
	Value any
}

// OnFail mirrors the teacher's per-step failure policy (dsl.OnFail), kept
// here as an extension point: nothing in spec.md names a retry policy, so
// every step defaults to the zero value (fail-fast) and loom never sets
// anything else from YAML. Nothing in internal/batchexec reads it; a
// step's failure is handled the same way whatever this field holds.
type OnFail struct {
	Action   string // "" (default, fail-fast)
	Attempts int
	Delay    string
}

// Step is a single child-process invocation (spec §3.1).
//
// Inputs/Outputs/Args store the raw $-prefixed reference strings (or
// literals) exactly as declared; internal/resolve substitutes them at
// command-build time. Inputs preserves insertion order because spec §3.1
// requires inputs to be passed positionally in declaration order — a plain
// map cannot do that, hence InputOrder.
type Step struct {
	Name       string
	Task       string // absolute or pipeline-relative path to the executable
	Inputs     map[string]string
	InputOrder []string // flag names in declaration order
	Outputs    map[string]string
	OutputOrder []string
	Args       map[string]any // literal (string, number) | bool | $ref
	ArgOrder   []string
	Optional   bool
	Disabled   bool
	Group      string // "" if not part of a group
	Loop       *Loop
	OnFail     OnFail
	ExtraArgs  string // raw whitespace-tokenised extra args (CLI --extra)
}

// Loop is the optional per-step loop descriptor (spec §3.1).
type Loop struct {
	Over string // $ref to a data node iterated over
	Into string // $ref to a data node collecting results
}

// Pipeline is the fully expanded, flattened configuration (spec §3.1/§3.3):
// a read-only snapshot produced by Load, ready for the reference resolver
// and orchestrator.
type Pipeline struct {
	BaseDir    string // directory containing the pipeline YAML file
	Parameters map[string]Parameter
	DataNodes  map[string]DataNode
	Steps      []Step            // expansion order == declaration order (spec §3.1)
	Producers  map[string]string // data-node name -> producing step name
	// Aliases maps a multi-pass group's un-suffixed internal dataname to
	// the concrete (suffixed) step that produces it on the last pass
	// (spec §4.3 step 3). No step literally outputs the un-suffixed
	// name after expansion, so buildProducers seeds the producer map
	// from this table instead of discovering it by scanning outputs.
	Aliases    map[string]string
	MaxWorkers int
	Parallel   bool
}

// LayoutNode is one entry of the `layout:` editor hint block (spec
// §6.1). Purely cosmetic — never consulted by the resolver, orchestrator,
// or executors.
type LayoutNode struct {
	X int `mapstructure:"x"`
	Y int `mapstructure:"y"`
}

// EditorConfig is the `editor:` block (spec §6.1), another editor-only
// hint surface carried through load for round-tripping but otherwise
// ignored by the runtime.
type EditorConfig struct {
	AutoSave      bool              `mapstructure:"autoSave"`
	ParameterRefs map[string]string `mapstructure:"parameterRefs"`
}

// StepByName returns the step with the given name, or false if absent.
func (p *Pipeline) StepByName(name string) (Step, bool) {
	for _, s := range p.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// IsSource reports whether a data node is a source: nothing in the
// pipeline produces it (spec §3.2 invariant 5).
func (p *Pipeline) IsSource(dataName string) bool {
	_, ok := p.Producers[dataName]
	return !ok
}
