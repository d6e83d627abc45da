package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rootsolve/internal/rootfinder"
)

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Problem     string
	OptionsHash string
	Status      string
	// Limit keeps only the most recent Limit runs when positive.
	Limit int
}

const runColumns = `id, seq, problem, solver, options, options_hash, args, root, status,
	error_code, error_message, iterations, factorizations, norm`

// ReadRun returns a run with its trace. Returns ErrRunNotFound for an
// unknown ID.
func (s *Store) ReadRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	trace, err := s.readTrace(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Trace = trace
	return run, nil
}

// ListRuns returns runs without their traces, ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	var where []string
	var args []any
	if filter.Problem != "" {
		where = append(where, "problem = ?")
		args = append(args, filter.Problem)
	}
	if filter.OptionsHash != "" {
		where = append(where, "options_hash = ?")
		args = append(args, filter.OptionsHash)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + runColumns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Limit > 0 {
		query = "SELECT * FROM (" + query + " ORDER BY seq DESC LIMIT ?)"
		args = append(args, filter.Limit)
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *Store) readTrace(ctx context.Context, id string) ([]rootfinder.Iteration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iter, z, norm, step_norm, alpha, factorizations
		FROM iterations
		WHERE run_id = ?
		ORDER BY iter ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	trace := []rootfinder.Iteration{}
	for rows.Next() {
		var (
			it                    rootfinder.Iteration
			z                     string
			norm, stepNorm, alpha sql.NullFloat64
		)
		if err := rows.Scan(&it.Iter, &z, &norm, &stepNorm, &alpha, &it.Factorizations); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		if it.Z, err = unmarshalVector(z); err != nil {
			return nil, err
		}
		it.Norm, it.StepNorm, it.Alpha = goFloat(norm), goFloat(stepNorm), goFloat(alpha)
		trace = append(trace, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}
	return trace, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run        Run
		opts, args string
		root       sql.NullString
		norm       sql.NullFloat64
	)
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.Problem,
		&run.Solver,
		&opts,
		&run.OptionsHash,
		&args,
		&root,
		&run.Status,
		&run.ErrorCode,
		&run.ErrorMessage,
		&run.Iterations,
		&run.Factorizations,
		&norm,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if run.Options, err = unmarshalOptions(opts); err != nil {
		return nil, err
	}
	if run.Args, err = unmarshalVectors(args); err != nil {
		return nil, err
	}
	if root.Valid {
		if run.Root, err = unmarshalVector(root.String); err != nil {
			return nil, err
		}
	}
	run.Norm = goFloat(norm)
	return &run, nil
}
