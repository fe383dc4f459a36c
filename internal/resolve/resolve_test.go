package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/internal/config"
)

func testPipeline() *config.Pipeline {
	return &config.Pipeline{
		BaseDir: "/base",
		Parameters: map[string]config.Parameter{
			"threshold": {Name: "threshold", Value: int64(5)},
			"verbose":   {Name: "verbose", Value: false},
		},
		DataNodes: map[string]config.DataNode{
			"frames": {Name: "frames", Type: config.TypeImageDirectory, Path: "in/frames"},
			"remote": {Name: "remote", Type: config.TypeVideo, Path: "https://example.com/v.mp4"},
		},
	}
}

func TestResolveValue_WholeRefSubstitutesLiteralPassesThrough(t *testing.T) {
	r := New(testPipeline(), nil)

	v, err := r.ResolveValue("$threshold")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = r.ResolveValue("$frames")
	require.NoError(t, err)
	assert.Equal(t, "/base/in/frames", v)

	// not a whole-value $ref: passes through unchanged (spec §4.1).
	v, err = r.ResolveValue("literal-$threshold-ish")
	require.NoError(t, err)
	assert.Equal(t, "literal-$threshold-ish", v)

	v, err = r.ResolveValue(true)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestResolveValue_DataNodeTakesPrecedenceOverParameterOnCollision(t *testing.T) {
	p := testPipeline()
	// Same name on both tables: the data-node path must win (spec §4.1).
	p.Parameters["frames"] = config.Parameter{Name: "frames", Value: "not-a-path"}

	r := New(p, nil)
	v, err := r.ResolveValue("$frames")
	require.NoError(t, err)
	assert.Equal(t, "/base/in/frames", v)
}

func TestResolveValue_UnknownReference(t *testing.T) {
	r := New(testPipeline(), nil)
	_, err := r.ResolveValue("$nope")
	assert.ErrorIs(t, err, config.ErrUnknownReference)
}

func TestResolvePath_AlwaysAbsolute(t *testing.T) {
	r := New(testPipeline(), nil)
	p, err := r.ResolvePath("$frames")
	require.NoError(t, err)
	assert.True(t, len(p) > 0 && p[0] == '/', "resolved path must be absolute: %s", p)
}

func TestResolvePathForExecution_URLWithoutCacheErrors(t *testing.T) {
	r := New(testPipeline(), nil)
	_, err := r.ResolvePathForExecution("$remote", false)
	require.Error(t, err)
}

func TestOverrideParameters_ParsesBoolIntFloatString(t *testing.T) {
	r := New(testPipeline(), nil)
	err := r.OverrideParameters(map[string]string{
		"threshold": "7",
		"verbose":   "true",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.Parameters["threshold"].Value)
	assert.Equal(t, true, r.Parameters["verbose"].Value)
}

func TestOverrideParameters_UnknownKeyErrors(t *testing.T) {
	r := New(testPipeline(), nil)
	err := r.OverrideParameters(map[string]string{"nope": "1"})
	assert.ErrorIs(t, err, config.ErrUnknownReference)
}

func TestOverrideData_ReplacesDataNodePath(t *testing.T) {
	r := New(testPipeline(), nil)
	require.NoError(t, r.OverrideData(map[string]string{"frames": "/override/frames"}))
	p, err := r.ResolvePath("$frames")
	require.NoError(t, err)
	assert.Equal(t, "/override/frames", p)
}

func TestParseScalar(t *testing.T) {
	assert.Equal(t, true, parseScalar("TRUE"))
	assert.Equal(t, int64(42), parseScalar("42"))
	assert.Equal(t, 3.14, parseScalar("3.14"))
	assert.Equal(t, "hello", parseScalar("hello"))
}
