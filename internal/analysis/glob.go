package analysis

import (
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"loom/internal/config"
)

// matchedFiles returns the existing file(s) a data node's resolved path
// denotes: the path itself for the scalar types, or every file under it
// matching Pattern (default "**/*") for the two directory types.
func matchedFiles(dn config.DataNode, absPath string) ([]string, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{absPath}, nil
	}

	pattern := dn.Pattern
	if pattern == "" {
		pattern = "**/*"
	}
	matches, err := doublestar.FilepathGlob(joinGlob(absPath, pattern))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && !fi.IsDir() {
			files = append(files, m)
		}
	}
	return files, nil
}

// joinGlob concatenates with "/" rather than filepath.Join: doublestar
// patterns are always "/"-separated regardless of host OS.
func joinGlob(dir, pattern string) string {
	if dir == "" {
		return pattern
	}
	sep := "/"
	if len(dir) > 0 && dir[len(dir)-1] == '/' {
		sep = ""
	}
	return dir + sep + pattern
}
