package analysis

import (
	"fmt"

	"loom/internal/config"
)

// CheckParallelConflict implements spec §4.7's parallel-conflict check:
// given a set of step names destined to run concurrently (the terminal
// executor's ad-hoc parallel mode, spec §4.6), no two may list the same
// data-node reference as an output.
func CheckParallelConflict(p *config.Pipeline, stepNames []string) (ok bool, diagnostic string) {
	producedBy := make(map[string]string, len(stepNames))
	for _, name := range stepNames {
		step, found := p.StepByName(name)
		if !found {
			continue
		}
		for _, ref := range step.Outputs {
			dataName := config.StripRef(ref)
			if dataName == "" {
				continue
			}
			if other, dup := producedBy[dataName]; dup {
				return false, fmt.Sprintf("steps %q and %q both produce %q", other, name, dataName)
			}
			producedBy[dataName] = name
		}
	}
	return true, ""
}
