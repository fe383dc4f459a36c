package loomyaml

import (
	"fmt"
	"os"
	"path/filepath"

	"loom/internal/config"
)

// Load reads a pipeline YAML file from disk and returns the fully
// expanded, invariant-checked Pipeline (spec §3.3: parse, expand
// multi-pass groups, then validate). This is the single entry point the
// rest of loom (orchestrator, batchexec, termexec, analysis, cmd/loom)
// calls to turn a file on disk into a Pipeline.
func Load(path string) (*config.Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("phase=load path=%s: %w", path, err)
	}

	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("phase=load path=%s: %w", path, err)
	}

	steps, extraData, aliases, err := config.ExpandPipeline(doc)
	if err != nil {
		return nil, fmt.Errorf("phase=load path=%s: %w", path, err)
	}

	dataNodes := make(map[string]config.DataNode, len(doc.Data)+len(extraData))
	for name, dn := range doc.Data {
		dataNodes[name] = dn
	}
	for name, dn := range extraData {
		dataNodes[name] = dn
	}

	absDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("phase=load path=%s: %w", path, err)
	}

	pipeline := &config.Pipeline{
		BaseDir:    absDir,
		Parameters: doc.Parameters,
		DataNodes:  dataNodes,
		Steps:      steps,
		Aliases:    aliases,
		MaxWorkers: doc.MaxWorkers,
		Parallel:   doc.Parallel,
	}

	if err := config.ValidatePipeline(pipeline); err != nil {
		return nil, fmt.Errorf("phase=load path=%s: %w", path, err)
	}

	return pipeline, nil
}
