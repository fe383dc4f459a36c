package analysis

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/resolve"
)

// CleanAction is what Clean did with one path.
type CleanAction string

const (
	ActionTrashed CleanAction = "trashed"
	ActionDeleted CleanAction = "deleted"
	ActionSkipped CleanAction = "skipped"
)

// CleanResult is the per-path outcome spec §4.7 asks for.
type CleanResult struct {
	Path    string
	Action  CleanAction
	Success bool
	Err     error
}

const thumbnailDirName = ".loom-thumbnails"

// Clean implements spec §4.7's clean operation: every non-source data
// node's resolved path (§3.2 invariant 5 exempts source paths), plus the
// thumbnail cache directory when includeThumbnails is set. Each existing
// path is moved under a single per-call `.loom-trash/<timestamp>/`
// directory by default, or removed outright when permanent is true. The
// clean operation never touches a path outside this enumerated set.
func Clean(p *config.Pipeline, r *resolve.Resolver, includeThumbnails bool, permanent bool) []CleanResult {
	trashDir := filepath.Join(p.BaseDir, ".loom-trash", time.Now().Format("20060102-150405"))

	names := make([]string, 0, len(p.DataNodes))
	for name := range p.DataNodes {
		if p.IsSource(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CleanResult, 0, len(names)+1)
	for _, name := range names {
		path, err := r.ResolvePath("$" + name)
		if err != nil {
			results = append(results, CleanResult{Path: name, Action: ActionSkipped, Success: false, Err: err})
			continue
		}
		results = append(results, cleanOnePath(path, p.BaseDir, trashDir, permanent))
	}
	if includeThumbnails {
		results = append(results, cleanOnePath(filepath.Join(p.BaseDir, thumbnailDirName), p.BaseDir, trashDir, permanent))
	}
	return results
}

// trashDest builds the destination a path moves to under trashDir,
// preserving its location relative to baseDir so two data nodes that
// share a basename in different directories (e.g. "frames/preview.jpg"
// and "proxies/preview.jpg") land on distinct trashed files instead of
// one silently overwriting the other.
func trashDest(path, baseDir, trashDir string) string {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return filepath.Join(trashDir, rel)
}

func cleanOnePath(path, baseDir, trashDir string, permanent bool) CleanResult {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return CleanResult{Path: path, Action: ActionSkipped, Success: true}
		}
		return CleanResult{Path: path, Action: ActionSkipped, Success: false, Err: err}
	}

	if permanent {
		if err := os.RemoveAll(path); err != nil {
			return CleanResult{Path: path, Action: ActionDeleted, Success: false, Err: err}
		}
		return CleanResult{Path: path, Action: ActionDeleted, Success: true}
	}

	dest := trashDest(path, baseDir, trashDir)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return CleanResult{Path: path, Action: ActionTrashed, Success: false, Err: err}
	}
	if err := os.Rename(path, dest); err != nil {
		return CleanResult{Path: path, Action: ActionTrashed, Success: false, Err: err}
	}
	return CleanResult{Path: path, Action: ActionTrashed, Success: true}
}
