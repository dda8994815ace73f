package weekly_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-curator/internal/catalog"
	"github.com/p-n-ai/pai-curator/internal/curriculum"
	"github.com/p-n-ai/pai-curator/internal/weekly"
)

func newRestructurer(t *testing.T, dryRun bool) *weekly.Restructurer {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}
	return weekly.New(weekly.Config{Catalog: c, DryRun: dryRun})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readUnit(t *testing.T, path string) curriculum.WeeklyUnit {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	var u curriculum.WeeklyUnit
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", path, err)
	}
	return u
}

const threeTopics = `[
  {"topic": "A", "summary": "first"},
  {"summary": "second", "topic": "B"},
  {"topic": "C", "quiz": {"questions": [{"question": "authored?"}]}}
]`

func TestExpand_Ordering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mathematics", "beginner.json")
	writeFile(t, path, threeTopics)

	units, err := newRestructurer(t, false).Expand("mathematics", path)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("len(units) = %d, want 3", len(units))
	}
	for i, want := range []string{"A", "B", "C"} {
		if units[i].Week != i+1 || units[i].Topic != want {
			t.Errorf("units[%d] = week %d %q, want week %d %q", i, units[i].Week, units[i].Topic, i+1, want)
		}
		if units[i].Level != "beginner" {
			t.Errorf("units[%d].Level = %q, want beginner", i, units[i].Level)
		}
		if units[i].Course != "Mathematics" {
			t.Errorf("units[%d].Course = %q, want Mathematics", i, units[i].Course)
		}
		if n := len(units[i].Quizzes); n < 3 || n > 5 {
			t.Errorf("units[%d] has %d quizzes", i, n)
		}
	}
	if units[2].Quizzes[0].Question != "authored?" {
		t.Errorf("authored question not first: %+v", units[2].Quizzes[0])
	}
}

func TestExpand_TopicsObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "biology", "advanced.json")
	writeFile(t, path, `{"title": "Biology", "topics": [{"topic": "Cell Structure"}]}`)

	units, err := newRestructurer(t, false).Expand("biology", path)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(units) != 1 || units[0].Topic != "Cell Structure" {
		t.Fatalf("units = %+v", units)
	}
	// biology maps to the science category, so the cell rule applies.
	if !strings.HasPrefix(units[0].WhyItMatters, "Cells") {
		t.Errorf("WhyItMatters = %q, want the cell sentence", units[0].WhyItMatters)
	}
}

func TestExpand_Errors(t *testing.T) {
	dir := t.TempDir()
	r := newRestructurer(t, false)

	tests := []struct {
		name    string
		content string
		kind    curriculum.ErrorKind
	}{
		{"invalid json", `[{"topic":`, curriculum.KindParse},
		{"no topics", `{"title": "x"}`, curriculum.KindParse},
		{"empty", ``, curriculum.KindParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			writeFile(t, path, tt.content)
			_, err := r.Expand("math", path)
			var fe *curriculum.FileError
			if !errors.As(err, &fe) {
				t.Fatalf("Expand() error = %v, want *FileError", err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", fe.Kind, tt.kind)
			}
		})
	}

	_, err := r.Expand("math", filepath.Join(dir, "missing.json"))
	var fe *curriculum.FileError
	if !errors.As(err, &fe) || fe.Kind != curriculum.KindRead {
		t.Errorf("missing file error = %v, want read FileError", err)
	}
}

func TestRun_WritesWeeksAndRemovesStale(t *testing.T) {
	root := t.TempDir()
	levelFile := filepath.Join(root, "mathematics", "beginner.json")
	writeFile(t, levelFile, threeTopics)
	weekDir := filepath.Join(root, "mathematics", "beginner")
	writeFile(t, filepath.Join(weekDir, "week_1.json"), `{"stale": true}`)
	writeFile(t, filepath.Join(weekDir, "week_4.json"), `{}`)
	writeFile(t, filepath.Join(weekDir, "week_7.json"), `{}`)
	writeFile(t, filepath.Join(weekDir, "notes.json"), `{}`)
	// Per-topic files are not level files.
	writeFile(t, filepath.Join(root, "mathematics", "topic_1.json"), `{"topic": "x"}`)

	res, err := newRestructurer(t, false).Run(context.Background(), root, weekly.Selector{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("Run() errors = %v", res.Errors)
	}
	if len(res.Levels) != 1 {
		t.Fatalf("len(Levels) = %d, want 1", len(res.Levels))
	}
	if res.Levels[0].Weeks != 3 || res.Levels[0].Removed != 2 {
		t.Errorf("level result = %+v, want 3 weeks, 2 removed", res.Levels[0])
	}

	for n, topic := range map[int]string{1: "A", 2: "B", 3: "C"} {
		u := readUnit(t, filepath.Join(weekDir, fmt.Sprintf("week_%d.json", n)))
		if u.Week != n || u.Topic != topic {
			t.Errorf("week_%d = week %d %q, want %q", n, u.Week, u.Topic, topic)
		}
	}
	for _, stale := range []string{"week_4.json", "week_7.json"} {
		if _, err := os.Stat(filepath.Join(weekDir, stale)); !os.IsNotExist(err) {
			t.Errorf("%s still exists", stale)
		}
	}
	if _, err := os.Stat(filepath.Join(weekDir, "notes.json")); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestRun_OverwritesWholesale(t *testing.T) {
	root := t.TempDir()
	levelFile := filepath.Join(root, "spanish", "beginner.json")
	writeFile(t, levelFile, `[{"topic": "Greetings"}]`)
	r := newRestructurer(t, false)

	if _, err := r.Run(context.Background(), root, weekly.Selector{}); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	writeFile(t, levelFile, `[{"topic": "Numbers"}]`)
	if _, err := r.Run(context.Background(), root, weekly.Selector{}); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	u := readUnit(t, filepath.Join(root, "spanish", "beginner", "week_1.json"))
	if u.Topic != "Numbers" {
		t.Errorf("week_1 topic = %q, want Numbers", u.Topic)
	}
}

func TestRun_Selector(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "mathematics", "beginner.json"), `[{"topic": "A"}]`)
	writeFile(t, filepath.Join(root, "mathematics", "advanced.json"), `[{"topic": "B"}]`)
	writeFile(t, filepath.Join(root, "history", "beginner.json"), `[{"topic": "C"}]`)

	res, err := newRestructurer(t, false).Run(context.Background(), root, weekly.Selector{
		Course:   "mathematics",
		Level:    "advanced",
		Category: "history",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Levels) != 1 || res.Levels[0].Level != "advanced" {
		t.Fatalf("Levels = %+v, want only mathematics/advanced", res.Levels)
	}

	u := readUnit(t, filepath.Join(root, "mathematics", "advanced", "week_1.json"))
	if !strings.HasPrefix(u.WhyItMatters, "History") {
		t.Errorf("category override not applied: %q", u.WhyItMatters)
	}
	if _, err := os.Stat(filepath.Join(root, "history", "beginner")); !os.IsNotExist(err) {
		t.Error("unselected course was expanded")
	}
}

func TestRun_BadLevelFileDoesNotAbort(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "mathematics", "advanced.json"), `not json`)
	writeFile(t, filepath.Join(root, "mathematics", "beginner.json"), `[{"topic": "A"}]`)

	res, err := newRestructurer(t, false).Run(context.Background(), root, weekly.Selector{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Errors) != 1 || res.Errors[0].Kind != curriculum.KindParse {
		t.Errorf("Errors = %v, want one parse error", res.Errors)
	}
	if len(res.Levels) != 1 {
		t.Errorf("len(Levels) = %d, want 1", len(res.Levels))
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "mathematics", "beginner.json"), threeTopics)

	res, err := newRestructurer(t, true).Run(context.Background(), root, weekly.Selector{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Levels) != 1 || res.Levels[0].Weeks != 3 {
		t.Errorf("Levels = %+v", res.Levels)
	}
	if _, err := os.Stat(filepath.Join(root, "mathematics", "beginner")); !os.IsNotExist(err) {
		t.Error("dry run created the week directory")
	}
}

func TestRun_RootMissing(t *testing.T) {
	_, err := newRestructurer(t, false).Run(context.Background(), filepath.Join(t.TempDir(), "nope"), weekly.Selector{})
	if !errors.Is(err, curriculum.ErrRootMissing) {
		t.Errorf("Run() error = %v, want ErrRootMissing", err)
	}
}
