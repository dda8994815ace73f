package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/p-n-ai/pai-curator/internal/platform/database"
)

const dbTimeout = 5 * time.Second

// Schema is the run history schema. It is safe to apply repeatedly.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS curator_runs (
		id          uuid PRIMARY KEY,
		root        text NOT NULL,
		mode        text NOT NULL,
		dry_run     boolean NOT NULL DEFAULT false,
		visited     integer NOT NULL DEFAULT 0,
		changed     integer NOT NULL DEFAULT 0,
		skipped     integer NOT NULL DEFAULT 0,
		failed      integer NOT NULL DEFAULT 0,
		reasons     jsonb NOT NULL DEFAULT '{}'::jsonb,
		started_at  timestamptz NOT NULL,
		finished_at timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS curator_runs_root_started_idx
		ON curator_runs (root, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS curator_run_files (
		run_id        uuid NOT NULL REFERENCES curator_runs (id) ON DELETE CASCADE,
		path          text NOT NULL,
		subject       text,
		bucket        text,
		outcome       text NOT NULL,
		reasons       text[] NOT NULL DEFAULT '{}',
		changed       boolean NOT NULL DEFAULT false,
		before_digest text,
		after_digest  text,
		error         text,
		PRIMARY KEY (run_id, path)
	)`,
}

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore applies the run history schema and returns a store on pool.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if err := database.Migrate(ctx, pool, Schema...); err != nil {
		return nil, fmt.Errorf("migrate run history: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	reasons := run.Reasons
	if reasons == nil {
		reasons = map[string]int{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO curator_runs (id, root, mode, dry_run, visited, changed, skipped, failed, reasons, started_at, finished_at)
			 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11)`,
			id.String(),
			run.Root,
			run.Mode,
			run.DryRun,
			run.Visited,
			run.Changed,
			run.Skipped,
			run.Failed,
			string(reasonsJSON),
			run.StartedAt,
			run.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if len(run.Files) == 0 {
			return nil
		}
		rows := make([][]any, 0, len(run.Files))
		for _, f := range run.Files {
			fileReasons := f.Reasons
			if fileReasons == nil {
				fileReasons = []string{}
			}
			rows = append(rows, []any{
				id,
				f.Path,
				nullIfEmpty(f.Subject),
				nullIfEmpty(f.Bucket),
				f.Outcome,
				fileReasons,
				f.Changed,
				nullIfEmpty(f.BeforeDigest),
				nullIfEmpty(f.AfterDigest),
				nullIfEmpty(f.Error),
			})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"curator_run_files"},
			[]string{"run_id", "path", "subject", "bucket", "outcome", "reasons", "changed", "before_digest", "after_digest", "error"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy run files: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.getRunByQuery(ctx,
		`SELECT id::text, root, mode, dry_run, visited, changed, skipped, failed, reasons, started_at, finished_at
		 FROM curator_runs
		 WHERE id = $1::uuid`,
		id,
	)
}

func (s *PostgresStore) LatestRun(ctx context.Context, root string) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.getRunByQuery(ctx,
		`SELECT id::text, root, mode, dry_run, visited, changed, skipped, failed, reasons, started_at, finished_at
		 FROM curator_runs
		 WHERE root = $1
		 ORDER BY started_at DESC
		 LIMIT 1`,
		root,
	)
}

func (s *PostgresStore) getRunByQuery(ctx context.Context, query string, args ...any) (*Run, error) {
	run := &Run{}
	var reasonsBytes []byte

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&run.ID,
		&run.Root,
		&run.Mode,
		&run.DryRun,
		&run.Visited,
		&run.Changed,
		&run.Skipped,
		&run.Failed,
		&reasonsBytes,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.Reasons = map[string]int{}
	if len(reasonsBytes) > 0 {
		if err := json.Unmarshal(reasonsBytes, &run.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons: %w", err)
		}
	}

	files, err := s.files(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Files = files
	return run, nil
}

func (s *PostgresStore) files(ctx context.Context, runID string) ([]FileOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path, subject, bucket, outcome, reasons, changed, before_digest, after_digest, error
		 FROM curator_run_files
		 WHERE run_id = $1::uuid
		 ORDER BY path ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run files: %w", err)
	}
	defer rows.Close()

	files := []FileOutcome{}
	for rows.Next() {
		var f FileOutcome
		var subject, bucket, before, after, errText *string
		if err := rows.Scan(
			&f.Path,
			&subject,
			&bucket,
			&f.Outcome,
			&f.Reasons,
			&f.Changed,
			&before,
			&after,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("scan run file: %w", err)
		}
		f.Subject = deref(subject)
		f.Bucket = deref(bucket)
		f.BeforeDigest = deref(before)
		f.AfterDigest = deref(after)
		f.Error = deref(errText)
		if len(f.Reasons) == 0 {
			f.Reasons = nil
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run files: %w", err)
	}
	return files, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
