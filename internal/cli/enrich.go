package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/p-n-ai/pai-curator/internal/catalog"
	"github.com/p-n-ai/pai-curator/internal/pipeline"
	"github.com/spf13/cobra"
)

func newEnrichCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Classify, repair and complete every topic file under the courses root",
		Long: `Walk the courses root and enrich every topic file in place.

Modes:
  all         repair placeholders, attach images and synthesize missing content
  repair      only replace placeholder videos
  images      only attach pooled images
  synthesize  only fill in summary, assignments, quiz and why_it_matters

A file is rewritten only when its content changed. Files that fail to parse
or write are reported and the walk continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			return runEnrich(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.String("mode", "", "all, repair, images or synthesize (LEARN_RUN_MODE)")
	f.Int("workers", 0, "Files processed concurrently (LEARN_RUN_WORKERS)")
	f.String("pattern", "", "Topic file pattern, doublestar syntax (LEARN_COURSES_TOPIC_PATTERN)")
	f.String("placeholder", "", "Sentinel marking placeholder media (LEARN_PLACEHOLDER_ID)")
	bindFlags(opts.v, f, map[string]string{
		"run.mode":              "mode",
		"run.workers":           "workers",
		"courses.topic_pattern": "pattern",
		"placeholder.id":        "placeholder",
	})
	return cmd
}

func runEnrich(ctx context.Context, w io.Writer, opts *rootOptions) error {
	cfg := opts.cfg

	cat, err := catalog.Load(cfg.Courses.CatalogPath)
	if err != nil {
		return err
	}
	mode, err := pipeline.ParseMode(cfg.Run.Mode)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		Catalog:  cat,
		Store:    store,
		Locker:   locker,
		Sentinel: cfg.Placeholder.ID,
		Mode:     mode,
		Pattern:  cfg.Courses.TopicPattern,
		Workers:  cfg.Run.Workers,
		DryRun:   cfg.Run.DryRun,
	})
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	sum, err := runner.Run(ctx, cfg.Courses.Root)
	if err != nil {
		return fmt.Errorf("enrich %s: %w", cfg.Courses.Root, err)
	}

	if cfg.Report.Path != "" {
		if err := pipeline.WriteReport(cfg.Report.Path, sum); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		slog.Info("report written", "path", cfg.Report.Path)
	}

	if opts.jsonOut {
		return writeJSON(w, sum)
	}
	return pipeline.RenderSummary(w, sum)
}
