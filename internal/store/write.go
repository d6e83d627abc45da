package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteRun inserts a run and its trace in one transaction and returns the
// assigned seq.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing the same ID
// twice keeps the first record and returns its seq.
func (s *Store) WriteRun(ctx context.Context, run *Run) (int64, error) {
	if run.ID == "" {
		return 0, fmt.Errorf("write run: id is required")
	}
	if run.Status != StatusConverged && run.Status != StatusFailed {
		return 0, fmt.Errorf("write run %s: invalid status %q", run.ID, run.Status)
	}
	optsJSON, err := marshalOptions(run.Options)
	if err != nil {
		return 0, fmt.Errorf("write run %s: %w", run.ID, err)
	}
	var root sql.NullString
	if run.Root != nil {
		root = sql.NullString{String: marshalVector(run.Root), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write run %s: begin: %w", run.ID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, problem, solver, options, options_hash, args, root, status,
		 error_code, error_message, iterations, factorizations, norm)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Problem,
		run.Solver,
		optsJSON,
		run.OptionsHash,
		marshalVectors(run.Args),
		root,
		run.Status,
		run.ErrorCode,
		run.ErrorMessage,
		run.Iterations,
		run.Factorizations,
		sqlFloat(run.Norm),
	)
	if err != nil {
		return 0, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("write run %s: %w", run.ID, err)
	}
	if n > 0 {
		for _, it := range run.Trace {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO iterations
				(run_id, iter, z, norm, step_norm, alpha, factorizations)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
				run.ID,
				it.Iter,
				marshalVector(it.Z),
				sqlFloat(it.Norm),
				sqlFloat(it.StepNorm),
				sqlFloat(it.Alpha),
				it.Factorizations,
			)
			if err != nil {
				return 0, fmt.Errorf("write run %s: iteration %d: %w", run.ID, it.Iter, err)
			}
		}
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT seq FROM runs WHERE id = ?", run.ID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write run %s: read seq: %w", run.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write run %s: commit: %w", run.ID, err)
	}
	run.Seq = seq
	return seq, nil
}

// DeleteRun removes a run and its trace. Deleting an unknown ID is not an
// error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}
