package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolab-msm/erbbfit/internal/mcmc"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chains.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string) Run {
	return Run{
		ID:           id,
		Scenario:     "rates",
		CellLine:     "A431",
		ConfigDigest: "abc123",
		Params:       []string{"kf", "kr"},
		Nsteps:       100,
		Seed:         42,
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())
	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestRunRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := testRun(NewRunID())
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "rates", got.Scenario)
	assert.Equal(t, "A431", got.CellLine)
	assert.Equal(t, []string{"kf", "kr"}, got.Params)
	assert.Equal(t, 100, got.Nsteps)
	assert.Equal(t, int64(42), got.Seed)
	assert.NotEmpty(t, got.CreatedAt)

	// Re-creating the same run is a no-op.
	require.NoError(t, s.CreateRun(ctx, run))
	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := NewRunID()
	second := NewRunID()
	require.NoError(t, s.CreateRun(ctx, testRun(first)))
	require.NoError(t, s.CreateRun(ctx, testRun(second)))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID, "UUIDv7 IDs sort by creation time")
	assert.Equal(t, first, runs[1].ID)
}

func TestChainRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := testRun(NewRunID())
	require.NoError(t, s.CreateRun(ctx, run))

	chain := &mcmc.Chain{History: []mcmc.Iteration{
		{Position: []float64{-2.7, -1}, Likelihood: 12.5, Prior: 0.2, Accepted: true},
		{Position: []float64{-2.5, -1.1}, Likelihood: math.Inf(1), Prior: math.Inf(1), Accepted: false},
		{Position: []float64{-2.6, -0.9}, Likelihood: 11.1, Prior: 0.3, Accepted: true},
	}}
	require.NoError(t, s.WriteChain(ctx, run.ID, chain))

	got, err := s.ReadChain(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, chain.History[0], got[0])
	assert.Equal(t, chain.History[2], got[2])
	assert.True(t, math.IsInf(got[1].Likelihood, 1), "failed iteration reads back as +Inf")
	assert.True(t, math.IsInf(got[1].Prior, 1))
	assert.False(t, got[1].Accepted)
}

func TestWriteIteration_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := testRun(NewRunID())
	require.NoError(t, s.CreateRun(ctx, run))

	it := mcmc.Iteration{Position: []float64{-2}, Likelihood: 5, Accepted: true}
	require.NoError(t, s.WriteIteration(ctx, run.ID, 0, it))
	// Replaying the same iteration must not duplicate or overwrite.
	dup := it
	dup.Likelihood = 99
	require.NoError(t, s.WriteIteration(ctx, run.ID, 0, dup))

	got, err := s.ReadChain(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5.0, got[0].Likelihood)
}

func TestReadChain_UnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ReadChain(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
