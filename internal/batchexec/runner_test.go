package batchexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/config"
	"loom/internal/orchestrator"
	"loom/internal/resolve"
)

// writeScript writes an executable /bin/sh script under dir/name that
// runs body (spec §4.5 relies on the task's own shebang, not a
// hardcoded interpreter — see DESIGN.md's batchexec entry).
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\nset -e\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestRunSequential_LinearChainSucceeds(t *testing.T) {
	base := t.TempDir()
	writeScript(t, base, "make_a.sh", `
while [ "$1" != "--out" ]; do shift; done
touch "$2"
`)
	writeScript(t, base, "make_b.sh", `
in=""; out=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    --out) out="$2"; shift 2 ;;
    *) in="$1"; shift ;;
  esac
done
test -f "$in"
touch "$out"
`)

	p := &config.Pipeline{
		BaseDir: base,
		DataNodes: map[string]config.DataNode{
			"a_out": {Name: "a_out", Path: "a.touch"},
			"b_out": {Name: "b_out", Path: "b.touch"},
		},
		Steps: []config.Step{
			{Name: "a", Task: "make_a.sh", Outputs: map[string]string{"out": "$a_out"}, OutputOrder: []string{"out"}},
			{Name: "b", Task: "make_b.sh", Inputs: map[string]string{"in": "$a_out"}, InputOrder: []string{"in"}, Outputs: map[string]string{"out": "$b_out"}, OutputOrder: []string{"out"}},
		},
		Producers: map[string]string{"a_out": "a", "b_out": "b"},
	}
	r := resolve.New(p, nil)
	graph := orchestrator.BuildDependencyGraph(p)
	scope, err := orchestrator.GetStepsToRun(p, graph, orchestrator.Selection{})
	require.NoError(t, err)
	o := orchestrator.New(graph, scope)

	report := RunSequential(context.Background(), p, o, r, nil)
	assert.Equal(t, 2, report.Succeeded())
	for _, res := range report.Results {
		assert.Equal(t, StatusSuccess, res.Status, "step %s: %v", res.Step, res.Err)
	}
	assert.FileExists(t, filepath.Join(base, "a.touch"))
	assert.FileExists(t, filepath.Join(base, "b.touch"))
}

func TestRunSequential_FailureIsReportedNotFatal(t *testing.T) {
	base := t.TempDir()
	writeScript(t, base, "fail.sh", `exit 1`)

	p := &config.Pipeline{
		BaseDir: base,
		Steps: []config.Step{
			{Name: "boom", Task: "fail.sh"},
		},
	}
	r := resolve.New(p, nil)
	graph := orchestrator.BuildDependencyGraph(p)
	scope, err := orchestrator.GetStepsToRun(p, graph, orchestrator.Selection{})
	require.NoError(t, err)
	o := orchestrator.New(graph, scope)

	report := RunSequential(context.Background(), p, o, r, nil)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Equal(t, 0, report.Succeeded())
}

func TestRunParallel_BoundedByMaxWorkers(t *testing.T) {
	base := t.TempDir()
	writeScript(t, base, "ok.sh", `exit 0`)

	p := &config.Pipeline{
		BaseDir:    base,
		MaxWorkers: 2,
		Steps: []config.Step{
			{Name: "x", Task: "ok.sh"},
			{Name: "y", Task: "ok.sh"},
			{Name: "z", Task: "ok.sh"},
		},
	}
	r := resolve.New(p, nil)
	graph := orchestrator.BuildDependencyGraph(p)
	scope, err := orchestrator.GetStepsToRun(p, graph, orchestrator.Selection{})
	require.NoError(t, err)
	o := orchestrator.New(graph, scope)

	report := RunParallel(context.Background(), p, o, r)
	assert.Equal(t, 3, report.Succeeded())
}
