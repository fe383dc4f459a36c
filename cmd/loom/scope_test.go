package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"loom/internal/config"
)

func fourStepPipeline() *config.Pipeline {
	return &config.Pipeline{
		Steps: []config.Step{
			{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"},
		},
	}
}

func TestStepsInScope_PreservesDeclarationOrder(t *testing.T) {
	p := fourStepPipeline()
	got := stepsInScope(p, []string{"c", "a"})
	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"a", "c"}, names)
}

func TestUnionInDeclarationOrder_DedupesAndOrders(t *testing.T) {
	p := fourStepPipeline()
	got := unionInDeclarationOrder(p, []string{"b", "d"}, []string{"a", "d"})
	assert.Equal(t, []string{"a", "b", "d"}, got)
}

func TestUnionInDeclarationOrder_EmptyBOnlyReturnsA(t *testing.T) {
	p := fourStepPipeline()
	got := unionInDeclarationOrder(p, []string{"c"}, nil)
	assert.Equal(t, []string{"c"}, got)
}
