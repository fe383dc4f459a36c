package termexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_ReserveRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Reserve("encode"))
	assert.False(t, r.Reserve("encode"), "a second reservation of a running step must be rejected")
	assert.True(t, r.IsRunning("encode"))
}

func TestRegistry_FinishClearsAndReportsCancelledFlag(t *testing.T) {
	r := NewRegistry()
	r.Reserve("encode")
	r.SetPID("encode", 12345)

	cancelled := r.Finish("encode")
	assert.False(t, cancelled)
	assert.False(t, r.IsRunning("encode"))

	// a step not present at all reports not-cancelled, not an error.
	assert.False(t, r.Finish("ghost"))
}

func TestRegistry_CancelUnknownStepErrors(t *testing.T) {
	r := NewRegistry()
	err := r.Cancel("nope")
	assert.Error(t, err)
}

func TestRegistry_CancelWithoutPIDYetIsANoop(t *testing.T) {
	r := NewRegistry()
	r.Reserve("encode")
	err := r.Cancel("encode")
	assert.NoError(t, err, "cancelling before SetPID must not error, just mark cancelled")

	cancelled := r.Finish("encode")
	assert.True(t, cancelled, "Finish should see the cancellation recorded before the pid ever arrived")
}

func TestRegistry_NamesReflectsReservedSteps(t *testing.T) {
	r := NewRegistry()
	r.Reserve("a")
	r.Reserve("b")
	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
	r.Finish("a")
	assert.ElementsMatch(t, []string{"b"}, r.Names())
}
