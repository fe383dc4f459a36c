package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"loom/internal/config"
	"loom/internal/config/loomyaml"
	"loom/internal/resolve"
	"loom/internal/urlcache"
)

// loadForRun loads pipeline path, applies --set/--var overrides, and
// returns a Resolver backed by a live URL cache — the shape every
// executing subcommand (root runner, serve) needs. Subcommands that only
// inspect the pipeline (validate, graph) call loomyaml.Load directly and
// skip the cache.
func loadForRun(path string, sets, vars []string) (*config.Pipeline, *resolve.Resolver, error) {
	p, err := loomyaml.Load(path)
	if err != nil {
		return nil, nil, err
	}

	cacheDir := filepath.Join(p.BaseDir, urlcache.DefaultDirName)
	cache, err := urlcache.New(cacheDir)
	if err != nil {
		return nil, nil, err
	}
	r := resolve.New(p, cache)

	setMap, err := splitKeyValues(sets)
	if err != nil {
		return nil, nil, err
	}
	if err := r.OverrideParameters(setMap); err != nil {
		return nil, nil, err
	}

	varMap, err := splitKeyValues(vars)
	if err != nil {
		return nil, nil, err
	}
	if err := r.OverrideData(varMap); err != nil {
		return nil, nil, err
	}

	return p, r, nil
}

// splitKeyValues parses a list of "KEY=VALUE" CLI arguments (spec §6.2's
// --set/--var) into a map, rejecting anything without an '='.
func splitKeyValues(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid KEY=VALUE argument: %q", arg)
		}
		out[k] = v
	}
	return out, nil
}
