package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/lolab-msm/erbbfit/internal/mcmc"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// GetRun fetches a run record by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	var params string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, scenario, cell_line, config_digest, params, nsteps, seed
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.CreatedAt, &run.Scenario, &run.CellLine,
		&run.ConfigDigest, &params, &run.Nsteps, &run.Seed)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return Run{}, fmt.Errorf("get run %s: params: %w", id, err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, scenario, cell_line, config_digest, params, nsteps, seed
		FROM runs ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var params string
		if err := rows.Scan(&run.ID, &run.CreatedAt, &run.Scenario, &run.CellLine,
			&run.ConfigDigest, &params, &run.Nsteps, &run.Seed); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return nil, fmt.Errorf("list runs: params for %s: %w", run.ID, err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// ReadChain reconstructs a run's history in iteration order. NULL
// scores read back as +Inf, matching how failed simulations were
// recorded in memory.
func (s *Store) ReadChain(ctx context.Context, runID string) ([]mcmc.Iteration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, likelihood, prior, accepted
		FROM iterations WHERE run_id = ? ORDER BY iter
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read chain %s: %w", runID, err)
	}
	defer rows.Close()

	var out []mcmc.Iteration
	for rows.Next() {
		var position string
		var likelihood, prior sql.NullFloat64
		var it mcmc.Iteration
		if err := rows.Scan(&position, &likelihood, &prior, &it.Accepted); err != nil {
			return nil, fmt.Errorf("read chain %s: scan: %w", runID, err)
		}
		if err := json.Unmarshal([]byte(position), &it.Position); err != nil {
			return nil, fmt.Errorf("read chain %s: position: %w", runID, err)
		}
		it.Likelihood = math.Inf(1)
		if likelihood.Valid {
			it.Likelihood = likelihood.Float64
		}
		it.Prior = math.Inf(1)
		if prior.Valid {
			it.Prior = prior.Float64
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chain %s: %w", runID, err)
	}
	if out == nil {
		// Distinguish an unknown run from an empty one.
		if _, err := s.GetRun(ctx, runID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
