package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/config"
)

// diamond builds A -> {B, C} -> D: D consumes both B's and C's outputs.
func diamond() *config.Pipeline {
	return &config.Pipeline{
		Steps: []config.Step{
			{Name: "a", Outputs: map[string]string{"out": "$a_out"}, OutputOrder: []string{"out"}},
			{Name: "b", Inputs: map[string]string{"in": "$a_out"}, InputOrder: []string{"in"}, Outputs: map[string]string{"out": "$b_out"}, OutputOrder: []string{"out"}},
			{Name: "c", Inputs: map[string]string{"in": "$a_out"}, InputOrder: []string{"in"}, Outputs: map[string]string{"out": "$c_out"}, OutputOrder: []string{"out"}},
			{Name: "d", Inputs: map[string]string{"b": "$b_out", "c": "$c_out"}, InputOrder: []string{"b", "c"}},
		},
		DataNodes: map[string]config.DataNode{
			"a_out": {Name: "a_out"}, "b_out": {Name: "b_out"}, "c_out": {Name: "c_out"},
		},
		Producers: map[string]string{"a_out": "a", "b_out": "b", "c_out": "c"},
	}
}

func TestBuildDependencyGraph_Diamond(t *testing.T) {
	p := diamond()
	g := BuildDependencyGraph(p)
	assert.ElementsMatch(t, []string{"a"}, g.Deps["b"])
	assert.ElementsMatch(t, []string{"a"}, g.Deps["c"])
	assert.ElementsMatch(t, []string{"b", "c"}, g.Deps["d"])
	assert.Empty(t, g.Deps["a"])
	assert.ElementsMatch(t, []string{"b", "c"}, g.Dependents["a"])
}

func TestGetStepsToRun_DefaultIsEveryNonOptionalStep(t *testing.T) {
	p := diamond()
	g := BuildDependencyGraph(p)
	names, err := GetStepsToRun(p, g, Selection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestGetStepsToRun_StepSelectionTakesExactlyNamedSteps(t *testing.T) {
	p := diamond()
	g := BuildDependencyGraph(p)
	names, err := GetStepsToRun(p, g, Selection{Steps: []string{"b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
}

func TestGetStepsToRun_FromStepPullsInDescendants(t *testing.T) {
	p := diamond()
	g := BuildDependencyGraph(p)
	names, err := GetStepsToRun(p, g, Selection{FromStep: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, names)
}

func TestGetStepsToRun_UnknownStepErrors(t *testing.T) {
	p := diamond()
	g := BuildDependencyGraph(p)
	_, err := GetStepsToRun(p, g, Selection{Steps: []string{"nope"}})
	var unk *UnknownStepError
	assert.True(t, errors.As(err, &unk))
}

func TestGetStepsToRun_OptionalExcludedUnlessNamedOrFlagged(t *testing.T) {
	p := diamond()
	p.Steps[3].Optional = true // d
	g := BuildDependencyGraph(p)

	names, err := GetStepsToRun(p, g, Selection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	names, err = GetStepsToRun(p, g, Selection{Steps: []string{"d"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, names)
}

func TestGetStepsToRun_ExplicitStepBypassesDisabled(t *testing.T) {
	p := diamond()
	p.Steps[3].Disabled = true // d
	g := BuildDependencyGraph(p)

	names, err := GetStepsToRun(p, g, Selection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	names, err = GetStepsToRun(p, g, Selection{Steps: []string{"d"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, names)
}

// driveToCompletion runs a fake driver that always succeeds, recording
// the order steps become Ready in.
func driveToCompletion(t *testing.T, o *Orchestrator) []string {
	t.Helper()
	var order []string
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o.Start(ctx)
	for ev := range o.Events() {
		switch ev.Kind {
		case EventReady:
			order = append(order, ev.Step)
			o.Results() <- StepResult{Step: ev.Step}
		case EventSkipped, EventWaiting, EventComplete:
		}
	}
	return order
}

func TestRun_DiamondRespectsDependencyOrder(t *testing.T) {
	p := diamond()
	g := BuildDependencyGraph(p)
	scope, err := GetStepsToRun(p, g, Selection{})
	require.NoError(t, err)

	order := driveToCompletion(t, New(g, scope))
	require.Len(t, order, 4)
	assert.Equal(t, "a", order[0])
	assert.Equal(t, "d", order[3])
	assert.ElementsMatch(t, []string{"b", "c"}, order[1:3])
}

func TestRun_FailurePropagatesAsSkipped(t *testing.T) {
	p := diamond()
	g := BuildDependencyGraph(p)
	scope, err := GetStepsToRun(p, g, Selection{})
	require.NoError(t, err)

	o := New(g, scope)
	var skipped []string
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	o.Start(ctx)
	for ev := range o.Events() {
		switch ev.Kind {
		case EventReady:
			if ev.Step == "b" {
				o.Results() <- StepResult{Step: ev.Step, Err: errors.New("boom")}
				continue
			}
			o.Results() <- StepResult{Step: ev.Step}
		case EventSkipped:
			skipped = append(skipped, ev.Step)
		}
	}
	// b fails; d depends on b (and c), so d is skipped. c is independent
	// of b and still runs to completion.
	assert.Equal(t, []string{"d"}, skipped)
}
