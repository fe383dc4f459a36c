// Package resolve implements spec §4.1's reference resolution: turning a
// $name-prefixed string into the parameter value or data-node path it
// names. Unlike the teacher's dsl/template.go, this is not a templating
// problem — the spec only resolves a string that is *entirely* a $-ref,
// never an embedded placeholder — so there is no text/template dependency
// here, just a prefix check and a map lookup (see DESIGN.md).
package resolve

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"loom/internal/config"
	"loom/internal/urlcache"
)

// Resolver resolves references against one pipeline's parameter and
// data-node tables.
type Resolver struct {
	BaseDir    string
	Parameters map[string]config.Parameter
	DataNodes  map[string]config.DataNode
	Cache      *urlcache.Cache // nil disables http(s) data-node resolution
}

// New builds a Resolver for p. cache may be nil for callers that never
// execute anything (graph, validate).
func New(p *config.Pipeline, cache *urlcache.Cache) *Resolver {
	return &Resolver{
		BaseDir:    p.BaseDir,
		Parameters: p.Parameters,
		DataNodes:  p.DataNodes,
		Cache:      cache,
	}
}

// ResolveValue resolves a single arg value (spec §4.1): a string that is
// entirely "$name" substitutes the named parameter's value or data node's
// path; anything else (bool, number, or a plain string) passes through
// unchanged as a literal.
func (r *Resolver) ResolveValue(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	name := config.StripRef(s)
	if name == "" {
		return v, nil
	}
	if dn, ok := r.DataNodes[name]; ok {
		return r.absolutize(dn.Path), nil
	}
	if p, ok := r.Parameters[name]; ok {
		return p.Value, nil
	}
	return nil, fmt.Errorf("%w: %s", config.ErrUnknownReference, name)
}

// ResolvePath resolves a $ref to a data node's absolute path (spec §4.1
// invariant: every resolved path is absolute) without touching the URL
// cache. ref that isn't a $-reference is returned unchanged.
func (r *Resolver) ResolvePath(ref string) (string, error) {
	name := config.StripRef(ref)
	if name == "" {
		return ref, nil
	}
	dn, ok := r.DataNodes[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", config.ErrUnknownReference, name)
	}
	return r.absolutize(dn.Path), nil
}

// ResolvePathForExecution is ResolvePath plus spec §4.2: an http(s) data
// node path is downloaded (or served from cache) through the URL cache
// and the local cached file's path is returned instead.
func (r *Resolver) ResolvePathForExecution(ref string, force bool) (string, error) {
	name := config.StripRef(ref)
	if name == "" {
		return ref, nil
	}
	dn, ok := r.DataNodes[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", config.ErrUnknownReference, name)
	}
	if isURL(dn.Path) {
		if r.Cache == nil {
			return "", fmt.Errorf("data node %s is a URL but no cache is configured for this run", name)
		}
		return r.Cache.Fetch(dn.Path, force)
	}
	return r.absolutize(dn.Path), nil
}

// OverrideParameters applies CLI `--set KEY=VALUE` overrides (spec §6.2)
// onto the resolver's parameter table in place. Each VALUE is parsed as
// bool, then integer, then float, falling back to string, so a
// bool-valued parameter used as a bare-flag arg (see
// internal/batchexec.BuildCommand) still round-trips as a real bool
// rather than the literal string "true".
func (r *Resolver) OverrideParameters(overrides map[string]string) error {
	for k, v := range overrides {
		p, ok := r.Parameters[k]
		if !ok {
			return fmt.Errorf("%w: %s", config.ErrUnknownReference, k)
		}
		p.Value = parseScalar(v)
		r.Parameters[k] = p
	}
	return nil
}

// parseScalar implements spec §6.2's `--set` value coercion: bool, then
// integer, then float, else the original string.
func parseScalar(v string) any {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

// OverrideData applies CLI `--var KEY=VALUE` overrides onto data-node
// paths. On name collision with a parameter, the data-node table wins —
// the spec's documented tie-break for this CLI surface.
func (r *Resolver) OverrideData(overrides map[string]string) error {
	for k, v := range overrides {
		dn, ok := r.DataNodes[k]
		if !ok {
			return fmt.Errorf("%w: %s", config.ErrUnknownReference, k)
		}
		dn.Path = v
		r.DataNodes[k] = dn
	}
	return nil
}

func (r *Resolver) absolutize(p string) string {
	if p == "" || isURL(p) || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.BaseDir, p)
}

func isURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}
