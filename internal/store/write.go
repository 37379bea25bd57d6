package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/lolab-msm/erbbfit/internal/mcmc"
)

// Run describes one calibration run's identity and provenance.
type Run struct {
	ID           string
	CreatedAt    string
	Scenario     string
	CellLine     string
	ConfigDigest string
	Params       []string
	Nsteps       int
	Seed         int64
}

// NewRunID returns a fresh time-ordered run identifier.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateRun inserts a run record. Uses ON CONFLICT(id) DO NOTHING for
// idempotency - re-creating an existing run is silently ignored.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, cell_line, config_digest, params, nsteps, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scenario,
		run.CellLine,
		run.ConfigDigest,
		string(params),
		run.Nsteps,
		run.Seed,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// WriteIteration appends one chain iteration. Uses ON CONFLICT
// (run_id, iter) DO NOTHING for idempotency so a resumed writer can
// replay its tail safely. Infinite scores (failed simulations) are
// stored as NULL.
func (s *Store) WriteIteration(ctx context.Context, runID string, iter int, it mcmc.Iteration) error {
	position, err := json.Marshal(it.Position)
	if err != nil {
		return fmt.Errorf("write iteration: %w", err)
	}

	var likelihood, prior any
	if !math.IsInf(it.Likelihood, 0) {
		likelihood = it.Likelihood
	}
	if !math.IsInf(it.Prior, 0) {
		prior = it.Prior
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO iterations (run_id, iter, position, likelihood, prior, accepted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, iter) DO NOTHING
	`,
		runID,
		iter,
		string(position),
		likelihood,
		prior,
		it.Accepted,
	)
	if err != nil {
		return fmt.Errorf("write iteration: %w", err)
	}
	return nil
}

// WriteChain persists a completed chain's full history in one
// transaction.
func (s *Store) WriteChain(ctx context.Context, runID string, c *mcmc.Chain) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write chain: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO iterations (run_id, iter, position, likelihood, prior, accepted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, iter) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write chain: prepare: %w", err)
	}
	defer stmt.Close()

	for i, it := range c.History {
		position, err := json.Marshal(it.Position)
		if err != nil {
			return fmt.Errorf("write chain: iteration %d: %w", i, err)
		}
		var likelihood, prior any
		if !math.IsInf(it.Likelihood, 0) {
			likelihood = it.Likelihood
		}
		if !math.IsInf(it.Prior, 0) {
			prior = it.Prior
		}
		if _, err := stmt.ExecContext(ctx, runID, i, string(position), likelihood, prior, it.Accepted); err != nil {
			return fmt.Errorf("write chain: iteration %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write chain: commit: %w", err)
	}
	return nil
}
