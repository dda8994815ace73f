package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/p-n-ai/pai-curator/internal/catalog"
	"github.com/p-n-ai/pai-curator/internal/weekly"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type weeklyFlags struct {
	course   string
	level    string
	category string
}

func newWeeklyCmd(opts *rootOptions) *cobra.Command {
	var flags weeklyFlags

	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Expand course level files into one file per week",
		Long: `Read every <course>/<level>.json file under the courses root and write
<course>/<level>/week_<N>.json, one per topic in file order.

Week files are regenerated wholesale. Week files numbered beyond the current
topic count are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			sel := weekly.Selector{Course: flags.course, Level: flags.level, Category: flags.category}
			return runWeekly(cmd.Context(), cmd.OutOrStdout(), opts, sel)
		},
	}

	cmd.Flags().StringVar(&flags.course, "course", "", "Only this course directory")
	cmd.Flags().StringVar(&flags.level, "level", "", "Only this level file (stem, e.g. beginner)")
	cmd.Flags().StringVar(&flags.category, "category", "", "Category override for why_it_matters text (e.g. science)")
	return cmd
}

// weeklyReport is the --json shape of a weekly run.
type weeklyReport struct {
	DryRun bool                 `json:"dry_run"`
	Levels []weekly.LevelResult `json:"levels"`
	Errors []string             `json:"errors"`
}

func runWeekly(ctx context.Context, w io.Writer, opts *rootOptions, sel weekly.Selector) error {
	cfg := opts.cfg

	cat, err := catalog.Load(cfg.Courses.CatalogPath)
	if err != nil {
		return err
	}

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()
	if locker != nil {
		key, err := filepath.Abs(cfg.Courses.Root)
		if err != nil {
			key = cfg.Courses.Root
		}
		release, err := locker.Acquire(ctx, key)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to release run lock", "root", key, "error", err)
			}
		}()
	}

	r := weekly.New(weekly.Config{
		Catalog:      cat,
		TopicPattern: cfg.Courses.TopicPattern,
		DryRun:       cfg.Run.DryRun,
	})
	res, err := r.Run(ctx, cfg.Courses.Root, sel)
	if err != nil {
		return fmt.Errorf("weekly %s: %w", cfg.Courses.Root, err)
	}

	report := weeklyReport{DryRun: cfg.Run.DryRun, Levels: res.Levels, Errors: []string{}}
	for _, e := range res.Errors {
		report.Errors = append(report.Errors, e.Error())
	}
	if report.Levels == nil {
		report.Levels = []weekly.LevelResult{}
	}
	if opts.jsonOut {
		return writeJSON(w, report)
	}
	return renderWeekly(w, report)
}

func renderWeekly(w io.Writer, r weeklyReport) error {
	title := "Weekly units"
	if r.DryRun {
		title += " (dry run)"
	}
	lines := []string{headerStyle.Render(title)}
	if len(r.Levels) == 0 {
		lines = append(lines, dimStyle.Render("no level files found"))
	}
	for _, l := range r.Levels {
		line := fmt.Sprintf("%-24s %-14s %3d weeks", l.Course, l.Level, l.Weeks)
		if l.Removed > 0 {
			line += dimStyle.Render(fmt.Sprintf("  (%d stale removed)", l.Removed))
		}
		lines = append(lines, line)
	}
	for _, e := range r.Errors {
		lines = append(lines, errorStyle.Render("error")+" "+e)
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}
