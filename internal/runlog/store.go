// Package runlog keeps the history of enrichment runs: one record per run
// with its counters and the outcome of every file it visited.
package runlog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when no run matches a lookup.
var ErrNotFound = errors.New("run not found")

// FileOutcome is what one run did to one file.
type FileOutcome struct {
	Path         string   `json:"path"`
	Subject      string   `json:"subject,omitempty"`
	Bucket       string   `json:"bucket,omitempty"`
	Outcome      string   `json:"outcome"`
	Reasons      []string `json:"reasons,omitempty"`
	Changed      bool     `json:"changed"`
	BeforeDigest string   `json:"before_digest,omitempty"`
	AfterDigest  string   `json:"after_digest,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Run is the persisted summary of one enrichment pass over a courses root.
type Run struct {
	ID         string         `json:"id"`
	Root       string         `json:"root"`
	Mode       string         `json:"mode"`
	DryRun     bool           `json:"dry_run"`
	Visited    int            `json:"visited"`
	Changed    int            `json:"changed"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Reasons    map[string]int `json:"reasons"`
	Files      []FileOutcome  `json:"files"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Store persists run history.
type Store interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context, root string) (*Run, error)
}

// MemoryStore is an in-memory Store. It is the default when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryStore creates an empty in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Run)}
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyRun(run)
	return &out, nil
}

func (s *MemoryStore) LatestRun(_ context.Context, root string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Run
	for _, run := range s.runs {
		if run.Root == root {
			matches = append(matches, run)
		}
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartedAt.After(matches[j].StartedAt)
	})
	out := copyRun(matches[0])
	return &out, nil
}

func copyRun(run Run) Run {
	reasons := make(map[string]int, len(run.Reasons))
	for k, v := range run.Reasons {
		reasons[k] = v
	}
	run.Reasons = reasons

	files := make([]FileOutcome, len(run.Files))
	for i, f := range run.Files {
		f.Reasons = append([]string(nil), f.Reasons...)
		files[i] = f
	}
	run.Files = files
	return run
}
