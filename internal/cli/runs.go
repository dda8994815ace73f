package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/p-n-ai/pai-curator/internal/pipeline"
	"github.com/p-n-ai/pai-curator/internal/runlog"
	"github.com/spf13/cobra"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show a recorded enrichment run",
		Long: `Show one enrichment run from the run history kept in PostgreSQL.

Without an ID the latest run for the courses root is shown. The run history
is only kept when LEARN_DATABASE_URL is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runRuns(cmd.Context(), cmd.OutOrStdout(), opts, id)
		},
	}
}

func runRuns(ctx context.Context, w io.Writer, opts *rootOptions, id string) error {
	cfg := opts.cfg
	if !cfg.HasDatabase() {
		return fmt.Errorf("run history needs LEARN_DATABASE_URL")
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var run *runlog.Run
	if id != "" {
		run, err = store.GetRun(ctx, id)
	} else {
		// Runs are recorded under the root as given on the command line.
		run, err = store.LatestRun(ctx, cfg.Courses.Root)
		if errors.Is(err, runlog.ErrNotFound) {
			if abs, absErr := filepath.Abs(cfg.Courses.Root); absErr == nil && abs != cfg.Courses.Root {
				run, err = store.LatestRun(ctx, abs)
			}
		}
	}
	if errors.Is(err, runlog.ErrNotFound) {
		if id != "" {
			return fmt.Errorf("run %s not found", id)
		}
		return fmt.Errorf("no runs recorded for %s", cfg.Courses.Root)
	}
	if err != nil {
		return fmt.Errorf("reading run history: %w", err)
	}

	sum := pipeline.SummaryFromRun(run)
	if opts.jsonOut {
		return writeJSON(w, sum)
	}
	return pipeline.RenderSummary(w, sum)
}
