// Package cli implements the curator command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/p-n-ai/pai-curator/internal/platform/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// rootOptions is shared by every command. Flags and LEARN_* variables both
// land in v; cfg is filled by load.
type rootOptions struct {
	v       *viper.Viper
	cfg     *config.Config
	jsonOut bool
}

// NewRootCmd builds the command tree with a fresh configuration source.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:   "curator",
		Short: "Enrich and restructure course content trees",
		Long: `curator walks a tree of per-topic course records and enriches them in place.

It classifies each topic into a content bucket, repairs placeholder media,
attaches pooled images, fills in missing assignments, quizzes and summaries,
and can expand whole-course level files into one file per week.

Every flag has a LEARN_* environment variable counterpart.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	pf := cmd.PersistentFlags()
	pf.String("root", "", "Courses root directory (LEARN_COURSES_ROOT)")
	pf.String("catalog", "", "Classification catalog YAML, embedded catalog when empty (LEARN_COURSES_CATALOG_PATH)")
	pf.Bool("dry-run", false, "Run the full pipeline without writing any file (LEARN_RUN_DRY_RUN)")
	pf.String("report", "", "Write an XLSX run report to this path (LEARN_REPORT_PATH)")
	pf.String("log-level", "", "debug, info, warn or error (LEARN_LOG_LEVEL)")
	pf.BoolVar(&opts.jsonOut, "json", false, "Print the result as JSON instead of a table")
	bindFlags(opts.v, pf, map[string]string{
		"courses.root":         "root",
		"courses.catalog_path": "catalog",
		"run.dry_run":          "dry-run",
		"report.path":          "report",
		"log.level":            "log-level",
	})

	cmd.AddCommand(
		newEnrichCmd(opts),
		newWeeklyCmd(opts),
		newRunsCmd(opts),
		newSchemaCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "curator %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
		},
	}
}

// Execute runs the root command. ctx is cancelled on SIGINT/SIGTERM by main.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// bindFlags binds viper keys to flags. A flag only overrides the environment
// when it is set on the command line.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

// load reads and validates configuration and installs the logger. Logs go to
// stderr so stdout stays clean for --json.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.LoadFrom(o.v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Log))
	o.cfg = cfg
	return nil
}

// newLogger builds the slog handler selected by LEARN_LOG_FORMAT.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
