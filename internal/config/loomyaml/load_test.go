package loomyaml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/config"
)

func writePipeline(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_LinearChainResolvesAndValidates(t *testing.T) {
	path := writePipeline(t, `
data:
  frames:
    type: video
    path: in/frames.mp4
  result:
    type: csv
    path: out/result.csv
parameters:
  threshold:
    value: 5
pipeline:
  - name: extract
    task: extract.py
    outputs:
      out: $frames
  - name: analyze
    task: analyze.py
    inputs:
      in: $frames
    outputs:
      out: $result
    args:
      threshold: $threshold
`)
	p, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, p.Steps, 2)
	assert.Equal(t, "extract", p.Producers["frames"])
	assert.Equal(t, "analyze", p.Producers["result"])
}

func TestLoad_UnknownReferenceFails(t *testing.T) {
	path := writePipeline(t, `
data:
  frames:
    type: video
    path: in/frames.mp4
pipeline:
  - name: analyze
    task: analyze.py
    inputs:
      in: $nope
    outputs:
      out: $frames
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, config.ErrUnknownReference)
}

func TestLoad_DuplicateStepNameFails(t *testing.T) {
	path := writePipeline(t, `
data:
  a:
    type: csv
    path: a.csv
pipeline:
  - name: step1
    task: one.py
    outputs:
      out: $a
  - name: step1
    task: two.py
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, config.ErrDuplicateStep)
}

func TestLoad_DuplicateProducerFails(t *testing.T) {
	path := writePipeline(t, `
data:
  shared:
    type: csv
    path: shared.csv
pipeline:
  - name: a
    task: one.py
    outputs:
      out: $shared
  - name: b
    task: two.py
    outputs:
      out: $shared
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, config.ErrDuplicateProducer)
}

func TestLoad_CycleDetected(t *testing.T) {
	path := writePipeline(t, `
data:
  a_out:
    type: csv
    path: a.csv
  b_out:
    type: csv
    path: b.csv
pipeline:
  - name: a
    task: one.py
    inputs:
      in: $b_out
    outputs:
      out: $a_out
  - name: b
    task: two.py
    inputs:
      in: $a_out
    outputs:
      out: $b_out
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, config.ErrCycleDetected)
}

func TestLoad_LegacyVariablesKeyRejected(t *testing.T) {
	path := writePipeline(t, `
variables:
  threshold: 5
pipeline:
  - name: a
    task: one.py
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, config.ErrLegacyVariables)
}

func TestLoad_EmptyMultiPassPassesFails(t *testing.T) {
	path := writePipeline(t, `
pipeline:
  - name: grp
    steps:
      - name: render
        task: render.py
    multi_pass:
      passes: []
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, config.ErrMultiPassShape)
}

func TestLoad_MultiPassExpandsAndAliasesLastPassOutput(t *testing.T) {
	path := writePipeline(t, `
data:
  encoded:
    type: video
    path: out/encoded.mp4
pipeline:
  - name: grp
    steps:
      - name: encode
        task: encode.py
        args:
          quality: $quality
        outputs:
          out: $encoded
    multi_pass:
      passes:
        - name: pass1
          params:
            quality: 1
        - name: pass2
          params:
            quality: 2
`)
	p, err := Load(path)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)

	names := map[string]config.Step{}
	for _, s := range p.Steps {
		names[s.Name] = s
	}
	first, ok := names["encode_pass1"]
	require.True(t, ok)
	second, ok := names["encode_pass2"]
	require.True(t, ok)

	// every pass's output is suffixed, including the last (spec §8
	// "multi-pass round-trip": a single pass still produces a suffixed
	// step whose outputs point to a suffixed path).
	assert.Equal(t, "$encoded_pass1", first.Outputs["out"])
	assert.Equal(t, "$encoded_pass2", second.Outputs["out"])

	// the un-suffixed name aliases to the last pass's suffixed data node
	// and producer (spec §4.3 step 3).
	assert.Equal(t, "encode_pass2", p.Producers["encoded"])
	assert.Equal(t, "out/encoded_pass2.mp4", p.DataNodes["encoded"].Path)
	assert.Equal(t, config.TypeVideo, p.DataNodes["encoded"].Type)
	assert.Equal(t, "out/encoded_pass1.mp4", p.DataNodes["encoded_pass1"].Path)

	// a pass param inlines into the existing arg it's referenced from.
	assert.Equal(t, 1, first.Args["quality"])
	assert.Equal(t, 2, second.Args["quality"])
}

// Grounded in spec §8 scenario 4: a single template step run through two
// passes, chained so the second pass's --warm arg picks up the first
// pass's output.
func TestLoad_MultiPassChainWiresPriorPassOutputIntoNextPassArg(t *testing.T) {
	path := writePipeline(t, `
data:
  out:
    type: json
    path: results/out.json
pipeline:
  - name: grp
    steps:
      - name: process
        task: process.py
        outputs:
          --out: $out
    multi_pass:
      passes:
        - name: coarse
          params:
            level: 1
        - name: fine
          params:
            level: 3
      chain:
        process.--out: process.--warm
`)
	p, err := Load(path)
	require.NoError(t, err)

	names := map[string]config.Step{}
	for _, s := range p.Steps {
		names[s.Name] = s
	}
	coarse, ok := names["process_coarse"]
	require.True(t, ok)
	fine, ok := names["process_fine"]
	require.True(t, ok)

	_, hasWarm := coarse.Args["--warm"]
	assert.False(t, hasWarm, "first pass has nothing to chain from")
	assert.Equal(t, "$out_coarse", fine.Args["--warm"])

	assert.Equal(t, "results/out_coarse.json", p.DataNodes["out_coarse"].Path)
	assert.Equal(t, "results/out_fine.json", p.DataNodes["out"].Path)
	assert.Equal(t, "process_fine", p.Producers["out"])
}

// Grounded in test_multi_pass.py::test_internal_inputs_are_suffixed: a
// same-pass reference between two template steps' internal data must be
// suffixed every pass, independent of the chain mechanism.
func TestLoad_MultiPassSuffixesSamePassInternalInput(t *testing.T) {
	path := writePipeline(t, `
data:
  raw:
    type: csv
    path: raw.csv
  clean:
    type: csv
    path: clean.csv
pipeline:
  - name: grp
    steps:
      - name: extract
        task: extract.py
        outputs:
          out: $raw
      - name: scrub
        task: scrub.py
        inputs:
          in: $raw
        outputs:
          out: $clean
    multi_pass:
      passes:
        - name: a
        - name: b
`)
	p, err := Load(path)
	require.NoError(t, err)

	names := map[string]config.Step{}
	for _, s := range p.Steps {
		names[s.Name] = s
	}
	assert.Equal(t, "$raw_a", names["scrub_a"].Inputs["in"])
	assert.Equal(t, "$raw_b", names["scrub_b"].Inputs["in"])
}

func TestLoad_TaskWinsOverDeprecatedScriptAlias(t *testing.T) {
	path := writePipeline(t, `
pipeline:
  - name: a
    task: real.py
    script: ignored.py
`)
	p, err := Load(path)
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "real.py", p.Steps[0].Task)
}

func TestLoad_ArgsPreserveTypeAndDeclarationOrder(t *testing.T) {
	path := writePipeline(t, `
pipeline:
  - name: a
    task: a.py
    args:
      verbose: true
      count: 3
      label: hello
      ratio: 1.5
`)
	p, err := Load(path)
	require.NoError(t, err)
	step := p.Steps[0]
	assert.Equal(t, []string{"verbose", "count", "label", "ratio"}, step.ArgOrder)
	assert.Equal(t, true, step.Args["verbose"])
	assert.Equal(t, "hello", step.Args["label"])
}
