package mcmc

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolab-msm/erbbfit/internal/objective"
	"github.com/lolab-msm/erbbfit/internal/solver"
)

// quadObjective is an analytic stand-in for the simulation objective:
// posterior = 1/2 * x' H x with H = diag(w) plus a single cross term.
type quadObjective struct {
	w     []float64
	cross float64 // coupling between x0 and x1
}

func (q quadObjective) Evaluate(_ context.Context, pos []float64) (objective.Result, error) {
	var v float64
	for i, x := range pos {
		v += q.w[i] * x * x / 2
	}
	if q.cross != 0 && len(pos) >= 2 {
		v += q.cross * pos[0] * pos[1]
	}
	return objective.Result{Likelihood: v}, nil
}

func TestRun_HistoryShape(t *testing.T) {
	obj := quadObjective{w: []float64{1, 1}}
	c, err := Run(context.Background(), obj, Opts{
		Nsteps: 500,
		Seed:   7,
		Start:  []float64{2, -2},
	})
	require.NoError(t, err)
	assert.Len(t, c.History, 500)
	assert.Equal(t, c.Accepts, countAccepts(c))
	assert.Greater(t, c.Accepts, 0)
	assert.Equal(t, 1.0, c.T, "temperature must reach 1 after annealing")
}

func countAccepts(c *Chain) int {
	n := 0
	for _, it := range c.History {
		if it.Accepted {
			n++
		}
	}
	return n
}

func TestRun_DeterministicUnderSeed(t *testing.T) {
	obj := quadObjective{w: []float64{1}}
	opts := Opts{Nsteps: 200, Seed: 42, Start: []float64{1}}
	a, err := Run(context.Background(), obj, opts)
	require.NoError(t, err)
	b, err := Run(context.Background(), obj, opts)
	require.NoError(t, err)
	assert.Equal(t, a.History, b.History)

	opts.Seed = 43
	cdiff, err := Run(context.Background(), obj, opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.History, cdiff.History)
}

// With T pinned at 1 the chain samples exp(-x^2/2): the accepted
// positions should look like a standard Gaussian.
func TestRun_SamplesTargetDistribution(t *testing.T) {
	obj := quadObjective{w: []float64{1}}
	c, err := Run(context.Background(), obj, Opts{
		Nsteps:       20000,
		Seed:         1,
		Start:        []float64{0},
		TStart:       1,
		AnnealLength: 1,
	})
	require.NoError(t, err)

	accepts := c.MixedAccepts(2000)
	require.Greater(t, len(accepts), 1000)
	var sum, sq float64
	for _, pos := range accepts {
		sum += pos[0]
		sq += pos[0] * pos[0]
	}
	n := float64(len(accepts))
	mean := sum / n
	std := math.Sqrt(sq/n - mean*mean)
	assert.InDelta(t, 0, mean, 0.25)
	assert.InDelta(t, 1, std, 0.2)
}

func TestRun_AnnealSchedules(t *testing.T) {
	obj := quadObjective{w: []float64{1}}
	var geoTemps, linTemps []float64
	_, err := Run(context.Background(), obj, Opts{
		Nsteps: 100, Seed: 3, Start: []float64{0},
		TStart: 10, AnnealLength: 50,
		StepFn: func(c *Chain) { geoTemps = append(geoTemps, c.T) },
	})
	require.NoError(t, err)
	_, err = Run(context.Background(), obj, Opts{
		Nsteps: 100, Seed: 3, Start: []float64{0},
		TStart: 10, AnnealLength: 50, Anneal: ScheduleLinear,
		StepFn: func(c *Chain) { linTemps = append(linTemps, c.T) },
	})
	require.NoError(t, err)

	for i := 1; i < 50; i++ {
		assert.LessOrEqual(t, geoTemps[i], geoTemps[i-1])
		assert.LessOrEqual(t, linTemps[i], linTemps[i-1])
	}
	assert.Equal(t, 1.0, geoTemps[99])
	assert.Equal(t, 1.0, linTemps[99])
	// Geometric decay drops faster early at the same endpoints.
	assert.Less(t, geoTemps[25], linTemps[25])
}

// flakyObjective fails numerically outside a radius, like a stiff
// parameter region blowing up the integrator.
type flakyObjective struct{ radius float64 }

func (f flakyObjective) Evaluate(_ context.Context, pos []float64) (objective.Result, error) {
	var v float64
	for _, x := range pos {
		v += x * x / 2
	}
	if v > f.radius {
		return objective.Result{}, &solver.IntegrationFailure{T: 0, Reason: "stiff"}
	}
	return objective.Result{Likelihood: v}, nil
}

func TestRun_SimulationFailureRejectsAndContinues(t *testing.T) {
	c, err := Run(context.Background(), flakyObjective{radius: 0.5}, Opts{
		Nsteps: 2000, Seed: 5, Start: []float64{0},
	})
	require.NoError(t, err)
	assert.Greater(t, c.Fails, 0, "proposals outside the radius must fail")
	assert.Len(t, c.History, 2000)
	for _, it := range c.History {
		if math.IsInf(it.Posterior(), 1) {
			assert.False(t, it.Accepted, "failed proposals are never accepted")
		}
	}
}

type brokenObjective struct{}

func (brokenObjective) Evaluate(context.Context, []float64) (objective.Result, error) {
	return objective.Result{}, errors.New("bad wiring")
}

func TestRun_NonNumericalErrorAborts(t *testing.T) {
	okFirst := 0
	obj := switchObjective{okUntil: &okFirst}
	_, err := Run(context.Background(), obj, Opts{Nsteps: 10, Seed: 1, Start: []float64{0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad wiring")
}

// switchObjective evaluates cleanly once (the starting position), then
// breaks.
type switchObjective struct{ okUntil *int }

func (s switchObjective) Evaluate(_ context.Context, pos []float64) (objective.Result, error) {
	if *s.okUntil == 0 {
		*s.okUntil++
		return objective.Result{}, nil
	}
	return brokenObjective{}.Evaluate(context.Background(), pos)
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	obj := quadObjective{w: []float64{1}}
	n := 0
	_, err := Run(ctx, obj, Opts{
		Nsteps: 100000, Seed: 1, Start: []float64{0},
		StepFn: func(c *Chain) {
			if n++; n == 50 {
				cancel()
			}
		},
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_OptsValidation(t *testing.T) {
	obj := quadObjective{w: []float64{1}}
	_, err := Run(context.Background(), obj, Opts{Seed: 1, Start: []float64{0}})
	assert.Error(t, err, "Nsteps required")
	_, err = Run(context.Background(), obj, Opts{Nsteps: 10})
	assert.Error(t, err, "Start required")
	_, err = Run(context.Background(), obj, Opts{Nsteps: 10, Start: []float64{0}, Anneal: "bogus"})
	assert.Error(t, err, "unknown schedule")
}

func TestHessian_QuadraticRecovery(t *testing.T) {
	obj := quadObjective{w: []float64{4, 9}, cross: 1}
	c := &Chain{
		Opts:     Opts{HessianScale: 0.085},
		Position: []float64{0.3, -0.2},
		obj:      obj,
	}
	h, err := c.posteriorHessian(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 4, h.At(0, 0), 1e-4)
	assert.InDelta(t, 9, h.At(1, 1), 1e-4)
	assert.InDelta(t, 1, h.At(0, 1), 1e-4)
	assert.InDelta(t, 1, h.At(1, 0), 1e-4)
}

func TestHessian_ShapesProposals(t *testing.T) {
	obj := quadObjective{w: []float64{100, 1}}
	c, err := Run(context.Background(), obj, Opts{
		Nsteps: 300, Seed: 9, Start: []float64{0.1, 0.1},
		UseHessian: true, HessianPeriod: 100,
	})
	require.NoError(t, err)
	require.NotNil(t, c.hessStep, "hessian directions must be installed")

	// The stiff axis (w=100) must get shorter steps than the soft one.
	var stiff, soft float64
	for _, row := range c.hessStep {
		stiff += row[0] * row[0]
		soft += row[1] * row[1]
	}
	assert.Less(t, stiff, soft)
}

func TestHessian_FailureKeepsIsotropic(t *testing.T) {
	c, err := Run(context.Background(), flakyObjective{radius: 1e-9}, Opts{
		Nsteps: 50, Seed: 2, Start: []float64{0},
		UseHessian: true, HessianPeriod: 10,
	})
	require.NoError(t, err)
	assert.Nil(t, c.hessStep, "stencil failures must not install a hessian")
}

func TestExtract(t *testing.T) {
	c := &Chain{History: []Iteration{
		{Position: []float64{1}, Likelihood: 5, Accepted: true},
		{Position: []float64{2}, Likelihood: 3, Accepted: true},
		{Position: []float64{9}, Likelihood: math.Inf(1)},
		{Position: []float64{3}, Likelihood: 1, Prior: 0.5, Accepted: true},
		{Position: []float64{4}, Likelihood: 2, Accepted: false},
	}}

	best, ok := c.BestFit()
	require.True(t, ok)
	assert.Equal(t, []float64{3}, best.Position)
	assert.Equal(t, 1.5, best.Posterior())

	all := c.MixedAccepts(0)
	assert.Equal(t, [][]float64{{1}, {2}, {3}}, all)
	burned := c.MixedAccepts(2)
	assert.Equal(t, [][]float64{{3}}, burned)

	sums, err := c.Summarize([]string{"k"}, 0)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "k", sums[0].Name)
	assert.InDelta(t, 2, sums[0].Mean, 1e-12)
	assert.InDelta(t, 2, sums[0].Median, 1e-12)
	assert.Equal(t, 1.0, sums[0].Min)
	assert.Equal(t, 3.0, sums[0].Max)

	_, err = c.Summarize([]string{"a", "b"}, 0)
	assert.Error(t, err)
	_, err = c.Summarize([]string{"k"}, 99)
	assert.Error(t, err)
}
