// Package mcmc runs an annealed Metropolis-Hastings chain over log10
// parameter space. The proposal starts as an isotropic Gaussian whose
// scale adapts toward a target acceptance rate; optionally a periodic
// finite-difference Hessian of the posterior reshapes proposals to the
// local curvature.
package mcmc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/lolab-msm/erbbfit/internal/objective"
	"github.com/lolab-msm/erbbfit/internal/solver"
)

// Schedule selects how temperature decays to 1 over the anneal phase.
type Schedule string

const (
	ScheduleGeometric Schedule = "geometric"
	ScheduleLinear    Schedule = "linear"
)

// Objective is the scoring contract the chain drives. Evaluate errors
// that are numerical (solver.IntegrationFailure) reject the proposal
// and the chain continues; any other error aborts the run.
type Objective interface {
	Evaluate(ctx context.Context, position []float64) (objective.Result, error)
}

// Opts configures a chain. Zero values pick the documented defaults.
type Opts struct {
	Nsteps int
	Seed   int64
	// Start is the initial position; nil requires the caller to have
	// an objective that defines one and is an error here.
	Start []float64

	// NormStepSize is the initial proposal sigma (default 0.75).
	NormStepSize float64
	// AnnealLength is the number of steps over which temperature
	// decays from TStart to 1 (default Nsteps/10).
	AnnealLength int
	// TStart is the initial temperature (default 10).
	TStart float64
	// Anneal is the decay schedule (default geometric).
	Anneal Schedule

	// SigmaAdjInterval steps between proposal-scale adjustments
	// (default AcceptWindow).
	SigmaAdjInterval int
	// AcceptWindow is the trailing window for the acceptance rate
	// (default 200).
	AcceptWindow int
	// SigmaStep is the relative adjustment per interval (default 0.125).
	SigmaStep float64
	// SigmaMin/SigmaMax clamp the proposal scale (defaults 0.25, 1).
	SigmaMin float64
	SigmaMax float64
	// TargetAccept is the acceptance rate the scale steers toward
	// (default 0.3).
	TargetAccept float64

	// UseHessian turns on curvature-shaped proposals.
	UseHessian bool
	// HessianPeriod is steps between Hessian recomputations
	// (default Nsteps/6).
	HessianPeriod int
	// HessianScale multiplies Hessian-derived steps (default 0.085).
	HessianScale float64

	// StepFn, when set, observes the chain after every iteration.
	StepFn func(c *Chain)

	Logger *slog.Logger
}

func (o *Opts) withDefaults() (Opts, error) {
	out := *o
	if out.Nsteps <= 0 {
		return out, fmt.Errorf("mcmc: Nsteps must be positive, got %d", out.Nsteps)
	}
	if len(out.Start) == 0 {
		return out, fmt.Errorf("mcmc: Start position is required")
	}
	if out.NormStepSize == 0 {
		out.NormStepSize = 0.75
	}
	if out.AnnealLength == 0 {
		out.AnnealLength = out.Nsteps / 10
	}
	if out.TStart == 0 {
		out.TStart = 10
	}
	if out.Anneal == "" {
		out.Anneal = ScheduleGeometric
	}
	if out.Anneal != ScheduleGeometric && out.Anneal != ScheduleLinear {
		return out, fmt.Errorf("mcmc: unknown anneal schedule %q", out.Anneal)
	}
	if out.AcceptWindow == 0 {
		out.AcceptWindow = 200
	}
	if out.SigmaAdjInterval == 0 {
		out.SigmaAdjInterval = out.AcceptWindow
	}
	if out.SigmaStep == 0 {
		out.SigmaStep = 0.125
	}
	if out.SigmaMin == 0 {
		out.SigmaMin = 0.25
	}
	if out.SigmaMax == 0 {
		out.SigmaMax = 1
	}
	if out.TargetAccept == 0 {
		out.TargetAccept = 0.3
	}
	if out.HessianPeriod == 0 {
		out.HessianPeriod = out.Nsteps / 6
	}
	if out.HessianPeriod <= 0 {
		out.HessianPeriod = 1
	}
	if out.HessianScale == 0 {
		out.HessianScale = 0.085
	}
	return out, nil
}

// Iteration is one recorded chain step: the tested position and its
// scores. Rejected and failed proposals are recorded too, so the full
// history reconstructs acceptance behavior.
type Iteration struct {
	Position   []float64
	Likelihood float64
	Prior      float64
	Accepted   bool
}

// Posterior is likelihood plus prior; +Inf for failed simulations.
func (it Iteration) Posterior() float64 { return it.Likelihood + it.Prior }

// Chain holds the run state and full history.
type Chain struct {
	Opts Opts

	Iter     int
	Position []float64 // current accepted position
	Current  objective.Result
	Sigma    float64
	T        float64

	History []Iteration
	Accepts int
	Fails   int // proposals rejected because the simulation failed

	rng      *rand.Rand
	obj      Objective
	hessStep [][]float64 // rows: scaled proposal directions, nil = isotropic
	window   []bool
}

// Run executes a fresh chain to completion and returns it. The context
// bounds the whole run; cancellation aborts with the context error.
func Run(ctx context.Context, obj Objective, opts Opts) (*Chain, error) {
	full, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	c := &Chain{
		Opts:     full,
		Position: append([]float64(nil), full.Start...),
		Sigma:    full.NormStepSize,
		T:        full.TStart,
		rng:      rand.New(rand.NewSource(full.Seed)),
		obj:      obj,
		History:  make([]Iteration, 0, full.Nsteps),
	}
	c.Current, err = obj.Evaluate(ctx, c.Position)
	if err != nil {
		return nil, fmt.Errorf("mcmc: initial position does not evaluate: %w", err)
	}

	for c.Iter = 0; c.Iter < full.Nsteps; c.Iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("mcmc: %w", err)
		}
		if err := c.step(ctx); err != nil {
			return nil, err
		}
		if full.StepFn != nil {
			full.StepFn(c)
		}
	}
	return c, nil
}

func (c *Chain) step(ctx context.Context) error {
	test := c.propose()

	res, err := c.obj.Evaluate(ctx, test)
	it := Iteration{Position: test}
	switch {
	case err == nil:
		it.Likelihood = res.Likelihood
		it.Prior = res.Prior
	case isNumerical(err):
		it.Likelihood = math.Inf(1)
		c.Fails++
	default:
		return fmt.Errorf("mcmc: iteration %d: %w", c.Iter, err)
	}

	delta := it.Posterior() - c.Current.Posterior()
	if delta <= 0 || c.rng.Float64() < math.Exp(-delta/c.T) {
		it.Accepted = true
		c.Position = append(c.Position[:0], test...)
		c.Current = objective.Result{Likelihood: it.Likelihood, Prior: it.Prior}
		c.Accepts++
	}
	c.History = append(c.History, it)
	c.track(it.Accepted)

	c.annealTemp()
	c.adaptSigma()
	if c.Opts.UseHessian && (c.Iter+1)%c.Opts.HessianPeriod == 0 {
		c.refreshHessian(ctx)
	}
	if c.Opts.Logger != nil && (c.Iter+1)%1000 == 0 {
		c.Opts.Logger.Debug("chain progress",
			"iter", c.Iter+1, "posterior", c.Current.Posterior(),
			"sigma", c.Sigma, "T", c.T,
			"accept_rate", float64(c.Accepts)/float64(c.Iter+1))
	}
	return nil
}

// propose draws the next test position. With a Hessian in effect the
// step mixes the curvature-scaled directions; otherwise it is an
// isotropic Gaussian scaled by Sigma.
func (c *Chain) propose() []float64 {
	n := len(c.Position)
	test := append([]float64(nil), c.Position...)
	if c.hessStep != nil {
		for j := 0; j < n; j++ {
			z := c.rng.NormFloat64()
			for i := 0; i < n; i++ {
				test[i] += z * c.hessStep[j][i]
			}
		}
		return test
	}
	for i := 0; i < n; i++ {
		test[i] += c.rng.NormFloat64() * c.Sigma
	}
	return test
}

func (c *Chain) annealTemp() {
	al := c.Opts.AnnealLength
	if al <= 0 || c.Iter >= al {
		c.T = 1
		return
	}
	frac := float64(c.Iter+1) / float64(al)
	switch c.Opts.Anneal {
	case ScheduleLinear:
		c.T = c.Opts.TStart + (1-c.Opts.TStart)*frac
	default: // geometric
		c.T = c.Opts.TStart * math.Pow(1/c.Opts.TStart, frac)
	}
	if c.T < 1 {
		c.T = 1
	}
}

func (c *Chain) track(accepted bool) {
	c.window = append(c.window, accepted)
	if len(c.window) > c.Opts.AcceptWindow {
		c.window = c.window[1:]
	}
}

// adaptSigma nudges the proposal scale toward the target acceptance
// rate, within [SigmaMin, SigmaMax].
func (c *Chain) adaptSigma() {
	if (c.Iter+1)%c.Opts.SigmaAdjInterval != 0 || len(c.window) == 0 {
		return
	}
	acc := 0
	for _, a := range c.window {
		if a {
			acc++
		}
	}
	rate := float64(acc) / float64(len(c.window))
	if rate < c.Opts.TargetAccept {
		c.Sigma *= 1 - c.Opts.SigmaStep
	} else {
		c.Sigma *= 1 + c.Opts.SigmaStep
	}
	if c.Sigma < c.Opts.SigmaMin {
		c.Sigma = c.Opts.SigmaMin
	}
	if c.Sigma > c.Opts.SigmaMax {
		c.Sigma = c.Opts.SigmaMax
	}
}

// AcceptRate is the overall acceptance fraction so far.
func (c *Chain) AcceptRate() float64 {
	if c.Iter == 0 {
		return 0
	}
	return float64(c.Accepts) / float64(c.Iter)
}

// isNumerical reports whether an evaluation error should reject the
// proposal rather than abort the chain.
func isNumerical(err error) bool {
	var fail *solver.IntegrationFailure
	return errors.As(err, &fail)
}
