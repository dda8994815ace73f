// Package weekly re-expresses a course level file as one unit per week.
//
// Week files are regenerated wholesale on every run; nothing from a previous
// week file is merged back in.
package weekly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/p-n-ai/pai-curator/internal/catalog"
	"github.com/p-n-ai/pai-curator/internal/curriculum"
	"github.com/p-n-ai/pai-curator/internal/synth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultTopicPattern = "topic_*.json"

var weekFile = regexp.MustCompile(`^week_(\d+)\.json$`)

// Selector narrows a run to one course, one level, or both. Category, when
// set, overrides the catalog's course-directory lookup.
type Selector struct {
	Course   string
	Level    string
	Category string
}

// Config holds dependencies for the restructurer.
type Config struct {
	Catalog      *catalog.Catalog
	TopicPattern string // per-topic files to ignore when looking for level files (default topic_*.json)
	DryRun       bool
}

// Restructurer expands level files into week files.
type Restructurer struct {
	catalog      *catalog.Catalog
	topicPattern string
	dryRun       bool
}

// LevelResult reports what one level file produced.
type LevelResult struct {
	Course  string `json:"course"`
	Level   string `json:"level"`
	Dir     string `json:"dir"`
	Weeks   int    `json:"weeks"`
	Removed int    `json:"removed"`
}

// Result summarizes a weekly run.
type Result struct {
	Levels []LevelResult           `json:"levels"`
	Errors []*curriculum.FileError `json:"-"`
}

// New creates a restructurer.
func New(cfg Config) *Restructurer {
	pattern := cfg.TopicPattern
	if pattern == "" {
		pattern = defaultTopicPattern
	}
	return &Restructurer{
		catalog:      cfg.Catalog,
		topicPattern: pattern,
		dryRun:       cfg.DryRun,
	}
}

// Expand reads levelFile and returns one unit per topic in file order, with
// week numbers starting at 1. courseName is the course directory name.
func (r *Restructurer) Expand(courseName, levelFile string) ([]curriculum.WeeklyUnit, error) {
	return r.expand(courseName, levelFile, "")
}

func (r *Restructurer) expand(courseName, levelFile, category string) ([]curriculum.WeeklyUnit, error) {
	data, err := os.ReadFile(levelFile)
	if err != nil {
		return nil, &curriculum.FileError{Path: levelFile, Kind: curriculum.KindRead, Err: err}
	}
	topics, err := decodeLevel(data)
	if err != nil {
		return nil, &curriculum.FileError{Path: levelFile, Kind: curriculum.KindParse, Err: err}
	}

	if category == "" && r.catalog != nil {
		category = r.catalog.Category(courseName)
	}
	level := r.levelName(levelFile)
	course := courseTitle(courseName)

	units := make([]curriculum.WeeklyUnit, 0, len(topics))
	for i := range topics {
		done := synth.EnsureComplete(&topics[i], category, level)
		units = append(units, curriculum.WeeklyUnit{
			Course:       course,
			Level:        level,
			Week:         i + 1,
			Topic:        done.Topic,
			Summary:      done.Summary,
			WhyItMatters: done.WhyItMatters,
			Materials:    done.Materials,
			Assignments:  done.Assignments,
			Quizzes:      done.Quizzes,
		})
	}
	return units, nil
}

// Run expands every selected level file under root and writes its week files
// to <course>/<level>/week_<N>.json. A missing root is fatal; a bad level
// file is recorded and skipped.
func (r *Restructurer) Run(ctx context.Context, root string, sel Selector) (*Result, error) {
	if err := curriculum.CheckRoot(root); err != nil {
		return nil, err
	}

	courses, err := r.courseDirs(root, sel.Course)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, course := range courses {
		files, err := r.levelFiles(filepath.Join(root, course), sel.Level)
		if err != nil {
			res.Errors = append(res.Errors, &curriculum.FileError{Path: filepath.Join(root, course), Kind: curriculum.KindRead, Err: err})
			continue
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			lr, err := r.writeLevel(course, f, sel.Category)
			if err != nil {
				var fe *curriculum.FileError
				if !errors.As(err, &fe) {
					fe = &curriculum.FileError{Path: f, Kind: curriculum.KindWrite, Err: err}
				}
				slog.Error("weekly expansion failed", "path", fe.Path, "kind", fe.Kind, "error", fe.Err)
				res.Errors = append(res.Errors, fe)
				continue
			}
			res.Levels = append(res.Levels, lr)
		}
	}
	return res, nil
}

func (r *Restructurer) writeLevel(course, levelFile, category string) (LevelResult, error) {
	units, err := r.expand(course, levelFile, category)
	if err != nil {
		return LevelResult{}, err
	}

	level := r.levelName(levelFile)
	dir := filepath.Join(filepath.Dir(levelFile), level)
	lr := LevelResult{Course: course, Level: level, Dir: dir, Weeks: len(units)}

	for _, u := range units {
		path := filepath.Join(dir, fmt.Sprintf("week_%d.json", u.Week))
		data, err := curriculum.EncodeWeeklyUnit(u)
		if err != nil {
			return lr, &curriculum.FileError{Path: path, Kind: curriculum.KindWrite, Err: err}
		}
		if err := curriculum.ValidateWeeklyUnit(data); err != nil {
			return lr, &curriculum.FileError{Path: path, Kind: curriculum.KindValidation, Err: err}
		}
		if r.dryRun {
			continue
		}
		if err := curriculum.WriteFileAtomic(path, data, 0o644); err != nil {
			return lr, &curriculum.FileError{Path: path, Kind: curriculum.KindWrite, Err: err}
		}
	}

	removed, err := r.removeStale(dir, len(units))
	if err != nil {
		return lr, &curriculum.FileError{Path: dir, Kind: curriculum.KindWrite, Err: err}
	}
	lr.Removed = removed

	slog.Info("weekly units written",
		"course", course,
		"level", level,
		"weeks", lr.Weeks,
		"removed", removed,
		"dry_run", r.dryRun,
	)
	return lr, nil
}

// removeStale deletes week_<M>.json files with M > weeks left by an earlier,
// longer run.
func (r *Restructurer) removeStale(dir string, weeks int) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list week files: %w", err)
	}

	removed := 0
	for _, e := range entries {
		m := weekFile.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= weeks {
			continue
		}
		if !r.dryRun {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return removed, fmt.Errorf("remove stale week file: %w", err)
			}
		}
		removed++
	}
	return removed, nil
}

func (r *Restructurer) courseDirs(root, only string) ([]string, error) {
	if only != "" {
		info, err := os.Stat(filepath.Join(root, only))
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("course %q not found under %s", only, root)
		}
		return []string{only}, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// levelFiles lists the <level>.json files directly inside a course directory,
// ignoring per-topic files.
func (r *Restructurer) levelFiles(courseDir, only string) ([]string, error) {
	entries, err := os.ReadDir(courseDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		if ok, _ := doublestar.Match(r.topicPattern, name); ok {
			continue
		}
		if only != "" && !strings.EqualFold(strings.TrimSuffix(name, ".json"), only) {
			continue
		}
		out = append(out, filepath.Join(courseDir, name))
	}
	sort.Strings(out)
	return out, nil
}

func (r *Restructurer) levelName(levelFile string) string {
	stem := strings.TrimSuffix(filepath.Base(levelFile), filepath.Ext(levelFile))
	if r.catalog != nil {
		if l, ok := r.catalog.Level(stem); ok {
			return l
		}
	}
	return stem
}

// decodeLevel accepts either a top-level array of topics or an object with a
// "topics" array.
func decodeLevel(data []byte) ([]curriculum.TopicRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty level file")
	}

	var topics []curriculum.TopicRecord
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &topics); err != nil {
			return nil, fmt.Errorf("decode topics: %w", err)
		}
		return topics, nil
	}

	var wrapper struct {
		Topics []curriculum.TopicRecord `json:"topics"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("decode level: %w", err)
	}
	if wrapper.Topics == nil {
		return nil, errors.New(`level file has no "topics" array`)
	}
	return wrapper.Topics, nil
}

func courseTitle(dir string) string {
	name := strings.NewReplacer("-", " ", "_", " ").Replace(dir)
	return cases.Title(language.English).String(name)
}
