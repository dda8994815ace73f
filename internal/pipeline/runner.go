// Package pipeline drives an enrichment run over a courses tree: it visits
// every topic file, classifies it, repairs placeholder media, attaches pooled
// images, completes missing content and writes the file back only when it
// changed. One bad file never stops the walk.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/p-n-ai/pai-curator/internal/alloc"
	"github.com/p-n-ai/pai-curator/internal/catalog"
	"github.com/p-n-ai/pai-curator/internal/classify"
	"github.com/p-n-ai/pai-curator/internal/curriculum"
	"github.com/p-n-ai/pai-curator/internal/repair"
	"github.com/p-n-ai/pai-curator/internal/runlog"
	"github.com/p-n-ai/pai-curator/internal/synth"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPattern  = "topic_*.json"
	defaultSentinel = "PLACEHOLDER_ID"
	extraImages     = 2
)

// Mode selects which transformations a run applies.
type Mode string

const (
	ModeAll        Mode = "all"
	ModeRepair     Mode = "repair"
	ModeImages     Mode = "images"
	ModeSynthesize Mode = "synthesize"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAll, ModeRepair, ModeImages, ModeSynthesize:
		return m, nil
	case "":
		return ModeAll, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want all, repair, images or synthesize)", s)
	}
}

func (m Mode) repairs() bool { return m == ModeAll || m == ModeRepair }

func (m Mode) images() bool { return m == ModeAll || m == ModeImages }

func (m Mode) synthesizes() bool { return m == ModeAll || m == ModeSynthesize }

// Locker takes an exclusive lock on a courses root for the length of a run.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(context.Context) error, err error)
}

// RunnerConfig holds dependencies for the runner.
type RunnerConfig struct {
	Catalog   *catalog.Catalog // default: embedded catalog
	Allocator *alloc.Allocator // default: fresh allocator
	Store     runlog.Store     // default: in-memory
	Locker    Locker           // nil disables locking
	Sentinel  string           // default: PLACEHOLDER_ID
	Mode      Mode             // default: all
	Pattern   string           // doublestar pattern for topic files (default topic_*.json)
	Workers   int              // files processed concurrently (default 1)
	DryRun    bool
	WriteFile WriteFunc // default: curriculum.WriteFileAtomic
}

// WriteFunc persists an encoded topic file.
type WriteFunc func(path string, data []byte, mode os.FileMode) error

// Runner processes a courses tree.
type Runner struct {
	catalog    *catalog.Catalog
	classifier *classify.Classifier
	detector   *repair.Detector
	allocator  *alloc.Allocator
	store      runlog.Store
	locker     Locker
	mode       Mode
	pattern    string
	workers    int
	dryRun     bool
	writeFile  WriteFunc
}

// NewRunner creates a runner, filling unset config with defaults.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	cat := cfg.Catalog
	if cat == nil {
		var err error
		if cat, err = catalog.Default(); err != nil {
			return nil, fmt.Errorf("load default catalog: %w", err)
		}
	}
	allocator := cfg.Allocator
	if allocator == nil {
		allocator = alloc.New()
	}
	store := cfg.Store
	if store == nil {
		store = runlog.NewMemoryStore()
	}
	sentinel := cfg.Sentinel
	if sentinel == "" {
		sentinel = defaultSentinel
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = defaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid topic pattern %q", pattern)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	writeFile := cfg.WriteFile
	if writeFile == nil {
		writeFile = curriculum.WriteFileAtomic
	}

	return &Runner{
		catalog:    cat,
		classifier: classify.New(cat),
		detector:   repair.NewDetector(sentinel),
		allocator:  allocator,
		store:      store,
		locker:     cfg.Locker,
		mode:       mode,
		pattern:    pattern,
		workers:    workers,
		dryRun:     cfg.DryRun,
		writeFile:  writeFile,
	}, nil
}

// Run processes every topic file under root. It fails only when root is
// missing, the lock is held, the walk itself fails or ctx is cancelled;
// per-file problems are recorded in the summary.
func (r *Runner) Run(ctx context.Context, root string) (*Summary, error) {
	if err := curriculum.CheckRoot(root); err != nil {
		return nil, err
	}

	if r.locker != nil {
		key := root
		if abs, err := filepath.Abs(root); err == nil {
			key = abs
		}
		release, err := r.locker.Acquire(ctx, key)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to release run lock", "root", key, "error", err)
			}
		}()
	}

	jobs, err := r.collect(root)
	if err != nil {
		return nil, fmt.Errorf("walk courses root: %w", err)
	}

	sum := &Summary{
		RunID:     uuid.NewString(),
		Root:      root,
		Mode:      r.mode,
		DryRun:    r.dryRun,
		StartedAt: time.Now(),
		Reasons:   make(map[string]int),
	}
	slog.Info("run started",
		"run_id", sum.RunID,
		"root", root,
		"mode", r.mode,
		"files", len(jobs),
		"workers", r.workers,
		"dry_run", r.dryRun,
	)

	if err := r.runJobs(ctx, jobs, sum); err != nil {
		sum.finish()
		return sum, err
	}
	sum.finish()

	if err := r.store.SaveRun(ctx, sum.Run()); err != nil {
		slog.Warn("failed to save run history", "run_id", sum.RunID, "error", err)
	}

	slog.Info("run finished",
		"run_id", sum.RunID,
		"visited", sum.Visited,
		"changed", sum.Changed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"duration", sum.FinishedAt.Sub(sum.StartedAt),
	)
	return sum, nil
}

func (r *Runner) runJobs(ctx context.Context, jobs []job, sum *Summary) error {
	if r.workers == 1 {
		for _, j := range jobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum.add(r.process(j))
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum.add(r.process(j))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// process runs one file through the pipeline. Failures come back as a failed
// FileResult.
func (r *Runner) process(j job) FileResult {
	fr := FileResult{Path: j.rel, Subject: j.subject, Level: j.level, Status: StatusUnchanged}

	raw, err := os.ReadFile(j.path)
	if err != nil {
		return r.fail(fr, &FileError{Path: j.path, Kind: curriculum.KindRead, Err: err})
	}
	fr.BeforeDigest = curriculum.Digest(raw)

	rec, err := curriculum.DecodeRecord(raw)
	if err != nil {
		return r.fail(fr, &FileError{Path: j.path, Kind: curriculum.KindParse, Err: err})
	}
	before, err := curriculum.EncodeRecord(rec)
	if err != nil {
		return r.fail(fr, &FileError{Path: j.path, Kind: curriculum.KindParse, Err: err})
	}

	work := rec.Clone()
	needBucket := (r.mode.repairs() && r.detector.HasPlaceholder(work)) || (r.mode.images() && work.Images == nil)

	var bucket *catalog.Bucket
	if key, ok := r.classifier.Classify(work.Topic, j.subject); ok {
		if b, found := r.catalog.Bucket(key); found {
			bucket = &b
			fr.Bucket = key
		}
	}
	if needBucket && bucket == nil {
		fr.Miss = true
		slog.Info("no rule matched", "path", j.rel, "topic", work.Topic, "subject", j.subject)
	}

	if r.mode.repairs() {
		outcome := r.detector.Repair(work, bucket)
		fr.Repair = outcome.String()
		switch outcome {
		case repair.OutcomeSelective:
			fr.Reasons = append(fr.Reasons, ReasonSelective)
		case repair.OutcomeFullReplace:
			fr.Reasons = append(fr.Reasons, ReasonFullReplace)
		}
	}

	if r.mode.images() && work.Images == nil && bucket != nil && r.attachImages(work, fr.Bucket, bucket.Images) {
		fr.Reasons = append(fr.Reasons, ReasonImages)
	}

	if r.mode.synthesizes() {
		work = synth.EnsureComplete(work, r.catalog.Category(j.subject), j.level)
	}

	after, err := curriculum.EncodeRecord(work)
	if err != nil {
		return r.fail(fr, &FileError{Path: j.path, Kind: curriculum.KindWrite, Err: err})
	}
	if bytes.Equal(before, after) {
		fr.Reasons = nil
		if fr.Miss {
			fr.Status = StatusSkipped
		}
		return fr
	}

	if len(fr.Reasons) == 0 {
		fr.Reasons = []string{ReasonSynthesisOnly}
	}
	if err := curriculum.ValidateRecord(after); err != nil {
		return r.fail(fr, &FileError{Path: j.path, Kind: curriculum.KindValidation, Err: err})
	}
	if !r.dryRun {
		if err := r.writeFile(j.path, after, fileMode(j.path)); err != nil {
			return r.fail(fr, &FileError{Path: j.path, Kind: curriculum.KindWrite, Err: err})
		}
	}

	fr.Status = StatusChanged
	fr.AfterDigest = curriculum.Digest(after)
	slog.Debug("topic updated", "path", j.rel, "bucket", fr.Bucket, "reasons", fr.Reasons)
	return fr
}

// attachImages sets a main image from the bucket pool and up to two distinct
// additional ones. It reports whether anything was attached.
func (r *Runner) attachImages(rec *curriculum.TopicRecord, key string, images []string) bool {
	pool := alloc.Pool{Name: key, Items: images}
	main, ok := r.allocator.Next(pool)
	if !ok {
		return false
	}
	extra := min(extraImages, len(images)-1)
	additional := r.allocator.PickDistinct(pool, []string{main}, extra)
	if additional == nil {
		additional = []string{}
	}
	rec.Images = &curriculum.Images{Main: main, Additional: additional}
	return true
}

func (r *Runner) fail(fr FileResult, fe *FileError) FileResult {
	slog.Error("failed to process topic file", "path", fe.Path, "kind", fe.Kind, "error", fe.Err)
	fr.Status = StatusFailed
	fr.Reasons = nil
	fr.Err = fe
	return fr
}

func fileMode(path string) os.FileMode {
	info, err := os.Stat(path)
	if err != nil {
		return 0o644
	}
	return info.Mode().Perm()
}

// IsFatal reports whether err from Run means no useful work was possible.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRootMissing)
}
