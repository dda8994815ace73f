package pipeline

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// job is one topic file to process.
type job struct {
	path    string // absolute or root-joined path
	rel     string // slash-separated path under the root
	subject string
	level   string
}

// collect walks root in lexical order and returns every file matching the
// topic pattern. The subject of a file is its top-level directory under root,
// whatever its depth; its level is the first directory segment naming a known
// course level. An unreadable subdirectory is logged and skipped.
func (r *Runner) collect(root string) ([]job, error) {
	var jobs []job
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !r.matches(rel, name) {
			return nil
		}

		segments := strings.Split(rel, "/")
		j := job{path: path, rel: rel}
		if len(segments) > 1 {
			j.subject = segments[0]
			for _, seg := range segments[1 : len(segments)-1] {
				if l, ok := r.catalog.Level(seg); ok {
					j.level = l
					break
				}
			}
		}
		jobs = append(jobs, j)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// matches tests the pattern against the base name, or against the relative
// path when the pattern itself contains a separator.
func (r *Runner) matches(rel, name string) bool {
	target := name
	if strings.Contains(r.pattern, "/") {
		target = rel
	}
	ok, _ := doublestar.Match(r.pattern, target)
	return ok
}
