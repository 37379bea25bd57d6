// Package solver integrates ODE systems over a requested time grid.
// The concrete method is an adaptive Runge-Kutta 4(5) with Cash-Karp
// coefficients, which is enough for the well-scaled mass-action systems
// this module produces. Stiffer chemistry would swap in a different
// Integrator behind the same interface.
package solver

import (
	"context"
	"fmt"
	"math"
)

// System is the right-hand side contract the integrator consumes.
type System interface {
	Dim() int
	Derivative(dy, y []float64, t float64)
}

// Opts bounds a single integration run.
type Opts struct {
	// ATol and RTol are the absolute and relative error tolerances.
	// Zero values fall back to 1e-8 and 1e-6.
	ATol float64
	RTol float64
	// InitialStep seeds the adaptive step size; zero picks a fraction
	// of the first output interval.
	InitialStep float64
	// MaxSteps caps accepted+rejected steps (default 500000). Hitting
	// the cap is an IntegrationFailure, not silent truncation.
	MaxSteps int
}

// Trajectory holds the solution sampled exactly at the requested times.
type Trajectory struct {
	Times  []float64
	States [][]float64 // States[i] is the state at Times[i]
}

// State returns the row for time index i.
func (tr *Trajectory) State(i int) []float64 { return tr.States[i] }

// Integrator runs a system over a time grid. Implementations must be
// safe for concurrent use; all run state lives on the stack of Run.
type Integrator interface {
	Run(ctx context.Context, sys System, y0 []float64, times []float64, opts Opts) (*Trajectory, error)
}

// IntegrationFailure reports a numerically failed run: the step size
// collapsed, the state went non-finite, or the step budget ran out.
// Callers treat it as a bad parameter set, not a programming error.
type IntegrationFailure struct {
	T      float64
	Reason string
}

func (e *IntegrationFailure) Error() string {
	return fmt.Sprintf("integration failed at t=%g: %s", e.T, e.Reason)
}

// RK45 is an adaptive Cash-Karp Runge-Kutta 4(5) integrator.
type RK45 struct{}

// Cash-Karp tableau.
var (
	ckA = [6][5]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{3.0 / 10, -9.0 / 10, 6.0 / 5},
		{-11.0 / 54, 5.0 / 2, -70.0 / 27, 35.0 / 27},
		{1631.0 / 55296, 175.0 / 512, 575.0 / 13824, 44275.0 / 110592, 253.0 / 4096},
	}
	ckC  = [6]float64{0, 1.0 / 5, 3.0 / 10, 3.0 / 5, 1, 7.0 / 8}
	ckB5 = [6]float64{37.0 / 378, 0, 250.0 / 621, 125.0 / 594, 0, 512.0 / 1771}
	ckB4 = [6]float64{2825.0 / 27648, 0, 18575.0 / 48384, 13525.0 / 55296, 277.0 / 14336, 1.0 / 4}
)

const (
	defaultATol     = 1e-8
	defaultRTol     = 1e-6
	defaultMaxSteps = 500000
	minStepFactor   = 1e-14
	safety          = 0.9
	maxGrow         = 5.0
	maxShrink       = 0.1
)

// Run integrates sys from times[0] through times[len-1], recording the
// state at every entry of times. times must be strictly increasing with
// at least two entries.
func (RK45) Run(ctx context.Context, sys System, y0 []float64, times []float64, opts Opts) (*Trajectory, error) {
	if len(times) < 2 {
		return nil, fmt.Errorf("solver: need at least two output times, got %d", len(times))
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("solver: output times must be strictly increasing at index %d", i)
		}
	}
	n := sys.Dim()
	if len(y0) != n {
		return nil, fmt.Errorf("solver: initial state has %d entries, system wants %d", len(y0), n)
	}

	atol, rtol := opts.ATol, opts.RTol
	if atol == 0 {
		atol = defaultATol
	}
	if rtol == 0 {
		rtol = defaultRTol
	}
	maxSteps := opts.MaxSteps
	if maxSteps == 0 {
		maxSteps = defaultMaxSteps
	}

	tr := &Trajectory{
		Times:  append([]float64(nil), times...),
		States: make([][]float64, len(times)),
	}
	y := append([]float64(nil), y0...)
	tr.States[0] = append([]float64(nil), y...)

	t := times[0]
	h := opts.InitialStep
	if h <= 0 {
		h = (times[1] - times[0]) / 16
	}
	span := times[len(times)-1] - times[0]
	hMin := span * minStepFactor

	k := make([][]float64, 6)
	for i := range k {
		k[i] = make([]float64, n)
	}
	ytmp := make([]float64, n)
	y5 := make([]float64, n)
	y4 := make([]float64, n)

	next := 1
	steps := 0
	for next < len(times) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("solver: %w", err)
		}
		if steps >= maxSteps {
			return nil, &IntegrationFailure{T: t, Reason: fmt.Sprintf("step budget %d exhausted", maxSteps)}
		}
		steps++

		clipped := false
		if t+h >= times[next] {
			h = times[next] - t
			clipped = true
		}

		sys.Derivative(k[0], y, t)
		for stage := 1; stage < 6; stage++ {
			for i := 0; i < n; i++ {
				acc := y[i]
				for j := 0; j < stage; j++ {
					acc += h * ckA[stage][j] * k[j][i]
				}
				ytmp[i] = acc
			}
			sys.Derivative(k[stage], ytmp, t+ckC[stage]*h)
		}

		var errNorm float64
		for i := 0; i < n; i++ {
			var sum5, sum4 float64
			for stage := 0; stage < 6; stage++ {
				sum5 += ckB5[stage] * k[stage][i]
				sum4 += ckB4[stage] * k[stage][i]
			}
			y5[i] = y[i] + h*sum5
			y4[i] = y[i] + h*sum4
			sc := atol + rtol*math.Max(math.Abs(y[i]), math.Abs(y5[i]))
			d := (y5[i] - y4[i]) / sc
			errNorm += d * d
		}
		errNorm = math.Sqrt(errNorm / float64(n))

		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			return nil, &IntegrationFailure{T: t, Reason: "state became non-finite"}
		}

		if errNorm <= 1 {
			t += h
			copy(y, y5)
			if clipped {
				tr.States[next] = append([]float64(nil), y...)
				next++
			}
			grow := maxGrow
			if errNorm > 0 {
				grow = math.Min(maxGrow, safety*math.Pow(errNorm, -0.2))
			}
			h *= grow
		} else {
			h *= math.Max(maxShrink, safety*math.Pow(errNorm, -0.25))
			if h < hMin {
				return nil, &IntegrationFailure{T: t, Reason: "step size underflow"}
			}
		}
	}
	return tr, nil
}
