package analysis

import (
	"os"
	"time"

	"loom/internal/config"
	"loom/internal/resolve"
)

// Freshness is a step's classification relative to its inputs' and
// outputs' state on disk (spec §4.7).
type Freshness string

const (
	NoOutputs Freshness = "no_outputs"
	Missing   Freshness = "missing"
	Stale     Freshness = "stale"
	Fresh     Freshness = "fresh"
)

// ClassifyFreshness implements spec §4.7's freshness rule: no_outputs if
// the step declares none; missing if any resolved output doesn't exist;
// stale if the newest existing input's mtime exceeds the oldest existing
// output's mtime; fresh otherwise. Inputs that don't resolve to existing
// files (parameter-backed or not-yet-produced) are ignored.
func ClassifyFreshness(s config.Step, r *resolve.Resolver) (Freshness, error) {
	if len(s.OutputOrder) == 0 {
		return NoOutputs, nil
	}

	var outputMTimes []time.Time
	for _, flag := range s.OutputOrder {
		ref := s.Outputs[flag]
		name := config.StripRef(ref)
		if name == "" {
			return Missing, nil
		}
		dn, ok := r.DataNodes[name]
		if !ok {
			return Missing, nil
		}
		path, err := r.ResolvePath(ref)
		if err != nil {
			return Missing, nil
		}
		files, err := matchedFiles(dn, path)
		if err != nil || len(files) == 0 {
			return Missing, nil
		}
		for _, f := range files {
			info, err := os.Stat(f)
			if err != nil {
				return Missing, nil
			}
			outputMTimes = append(outputMTimes, info.ModTime())
		}
	}
	oldestOutput := outputMTimes[0]
	for _, t := range outputMTimes[1:] {
		if t.Before(oldestOutput) {
			oldestOutput = t
		}
	}

	var newestInput time.Time
	haveInput := false
	for _, flag := range s.InputOrder {
		ref := s.Inputs[flag]
		name := config.StripRef(ref)
		if name == "" {
			continue
		}
		dn, ok := r.DataNodes[name]
		if !ok {
			continue
		}
		path, err := r.ResolvePath(ref)
		if err != nil {
			continue
		}
		files, err := matchedFiles(dn, path)
		if err != nil {
			continue
		}
		for _, f := range files {
			info, err := os.Stat(f)
			if err != nil {
				continue
			}
			if !haveInput || info.ModTime().After(newestInput) {
				newestInput = info.ModTime()
				haveInput = true
			}
		}
	}

	if haveInput && newestInput.After(oldestOutput) {
		return Stale, nil
	}
	return Fresh, nil
}
