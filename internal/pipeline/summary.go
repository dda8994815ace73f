package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/p-n-ai/pai-curator/internal/curriculum"
	"github.com/p-n-ai/pai-curator/internal/runlog"
)

// Modification reasons reported in the summary breakdown.
const (
	ReasonSelective     = "selective"
	ReasonFullReplace   = "full_replace"
	ReasonImages        = "images"
	ReasonSynthesisOnly = "synthesis_only"
)

// File statuses.
const (
	StatusChanged   = "changed"
	StatusUnchanged = "unchanged"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// ErrRootMissing is returned by Run when the courses root does not exist.
var ErrRootMissing = curriculum.ErrRootMissing

// FileError is a per-file failure recorded in the summary.
type FileError = curriculum.FileError

// FileResult is the outcome for one visited file. Miss is set when a bucket
// was needed but none was resolved for the topic.
type FileResult struct {
	Path         string     `json:"path"`
	Subject      string     `json:"subject,omitempty"`
	Level        string     `json:"level,omitempty"`
	Bucket       string     `json:"bucket,omitempty"`
	Status       string     `json:"status"`
	Repair       string     `json:"repair,omitempty"`
	Miss         bool       `json:"classification_miss,omitempty"`
	Reasons      []string   `json:"reasons,omitempty"`
	BeforeDigest string     `json:"before_digest,omitempty"`
	AfterDigest  string     `json:"after_digest,omitempty"`
	Err          *FileError `json:"-"`
	Error        string     `json:"error,omitempty"`
}

// Summary is the end-of-run report.
type Summary struct {
	RunID      string         `json:"run_id"`
	Root       string         `json:"root"`
	Mode       Mode           `json:"mode"`
	DryRun     bool           `json:"dry_run"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Visited    int            `json:"visited"`
	Changed    int            `json:"changed"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Reasons    map[string]int `json:"reasons"`
	Files      []FileResult   `json:"files"`

	mu sync.Mutex
}

// Errors returns the per-file failures in path order.
func (s *Summary) Errors() []*FileError {
	var out []*FileError
	for _, f := range s.Files {
		if f.Err != nil {
			out = append(out, f.Err)
		}
	}
	return out
}

func (s *Summary) add(fr FileResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Visited++
	switch fr.Status {
	case StatusChanged:
		s.Changed++
	case StatusFailed:
		s.Failed++
	}
	// A classification miss is counted even when synthesis still changed the file.
	if fr.Miss {
		s.Skipped++
	}
	if fr.Status == StatusChanged {
		for _, r := range fr.Reasons {
			s.Reasons[r]++
		}
	}
	if fr.Err != nil {
		fr.Error = fr.Err.Error()
	}
	s.Files = append(s.Files, fr)
}

func (s *Summary) finish() {
	sort.Slice(s.Files, func(i, j int) bool { return s.Files[i].Path < s.Files[j].Path })
	s.FinishedAt = time.Now()
}

// Run converts the summary into a run history record.
func (s *Summary) Run() runlog.Run {
	run := runlog.Run{
		ID:         s.RunID,
		Root:       s.Root,
		Mode:       string(s.Mode),
		DryRun:     s.DryRun,
		Visited:    s.Visited,
		Changed:    s.Changed,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		Reasons:    make(map[string]int, len(s.Reasons)),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	for k, v := range s.Reasons {
		run.Reasons[k] = v
	}
	for _, f := range s.Files {
		run.Files = append(run.Files, runlog.FileOutcome{
			Path:         f.Path,
			Subject:      f.Subject,
			Bucket:       f.Bucket,
			Outcome:      f.Status,
			Reasons:      f.Reasons,
			Changed:      f.Status == StatusChanged,
			BeforeDigest: f.BeforeDigest,
			AfterDigest:  f.AfterDigest,
			Error:        f.Error,
		})
	}
	return run
}

// SummaryFromRun rebuilds a summary from run history so it can be rendered
// or exported like a live run. Per-file levels are not stored and come back
// empty.
func SummaryFromRun(run *runlog.Run) *Summary {
	s := &Summary{
		RunID:      run.ID,
		Root:       run.Root,
		Mode:       Mode(run.Mode),
		DryRun:     run.DryRun,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Visited:    run.Visited,
		Changed:    run.Changed,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		Reasons:    make(map[string]int, len(run.Reasons)),
	}
	for k, v := range run.Reasons {
		s.Reasons[k] = v
	}
	for _, f := range run.Files {
		s.Files = append(s.Files, FileResult{
			Path:         f.Path,
			Subject:      f.Subject,
			Bucket:       f.Bucket,
			Status:       f.Outcome,
			Reasons:      f.Reasons,
			BeforeDigest: f.BeforeDigest,
			AfterDigest:  f.AfterDigest,
			Error:        f.Error,
		})
	}
	return s
}
