package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitKeyValues_ParsesPairs(t *testing.T) {
	got, err := splitKeyValues([]string{"threshold=9", "label=hello=world"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"threshold": "9", "label": "hello=world"}, got)
}

func TestSplitKeyValues_EmptyInputReturnsNil(t *testing.T) {
	got, err := splitKeyValues(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSplitKeyValues_MissingEqualsErrors(t *testing.T) {
	_, err := splitKeyValues([]string{"justakey"})
	assert.Error(t, err)
}

func TestSplitKeyValues_EmptyKeyErrors(t *testing.T) {
	_, err := splitKeyValues([]string{"=value"})
	assert.Error(t, err)
}
