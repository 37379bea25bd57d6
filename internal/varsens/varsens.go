// Package varsens estimates global parameter sensitivity with a
// Saltelli cross-sampling design. Samples are drawn in the unit
// hypercube and magnitude-scaled to a band of decades around a center
// position, matching how rate constants spread in log10 space.
package varsens

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/lolab-msm/erbbfit/internal/odenet"
	"github.com/lolab-msm/erbbfit/internal/rulenet"
	"github.com/lolab-msm/erbbfit/internal/solver"
)

// Func maps a log10 position to a vector of model outputs. It must be
// safe for concurrent use. A solver.IntegrationFailure marks the sample
// invalid without aborting the analysis.
type Func func(ctx context.Context, position []float64) ([]float64, error)

// Opts configures an analysis.
type Opts struct {
	// N is the base sample count; the total evaluation budget is
	// N*(k+2) for k parameters.
	N int
	// Decades is the half-width of the scaled band (default 3).
	Decades float64
	// Workers bounds concurrent evaluations (default GOMAXPROCS).
	Workers int
	Seed    int64
}

// Result holds Saltelli first-order and total-effect indices, one row
// per parameter and one column per model output.
type Result struct {
	FirstOrder *mat.Dense
	Total      *mat.Dense
	// Valid counts the samples that evaluated cleanly per parameter.
	Valid []int
	// Dropped counts numerically failed evaluations.
	Dropped int
}

// Scale maps a unit-hypercube point to a position spanning
// center ± decades.
func Scale(u, center []float64, decades float64) []float64 {
	out := make([]float64, len(u))
	for i := range u {
		out[i] = center[i] + (2*u[i]-1)*decades
	}
	return out
}

// Analyze runs the cross-sampled design around center. fn is evaluated
// N times on each of two base matrices and N times per parameter on the
// cross matrices, spread over a worker pool.
func Analyze(ctx context.Context, center []float64, fn Func, opts Opts) (*Result, error) {
	k := len(center)
	if k == 0 {
		return nil, fmt.Errorf("varsens: empty center position")
	}
	if opts.N <= 1 {
		return nil, fmt.Errorf("varsens: need N > 1, got %d", opts.N)
	}
	if opts.Decades == 0 {
		opts.Decades = 3
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	sampleA := make([][]float64, opts.N)
	sampleB := make([][]float64, opts.N)
	for j := 0; j < opts.N; j++ {
		ua := make([]float64, k)
		ub := make([]float64, k)
		for i := range ua {
			ua[i] = rng.Float64()
			ub[i] = rng.Float64()
		}
		sampleA[j] = Scale(ua, center, opts.Decades)
		sampleB[j] = Scale(ub, center, opts.Decades)
	}

	// One flat job list: A rows, B rows, then AB_i rows per parameter.
	type job struct {
		pos []float64
		out int // flat row index
	}
	total := opts.N * (k + 2)
	jobs := make([]job, 0, total)
	for j := 0; j < opts.N; j++ {
		jobs = append(jobs, job{pos: sampleA[j], out: j})
	}
	for j := 0; j < opts.N; j++ {
		jobs = append(jobs, job{pos: sampleB[j], out: opts.N + j})
	}
	for i := 0; i < k; i++ {
		for j := 0; j < opts.N; j++ {
			pos := append([]float64(nil), sampleA[j]...)
			pos[i] = sampleB[j][i]
			jobs = append(jobs, job{pos: pos, out: (2+i)*opts.N + j})
		}
	}

	rows := make([][]float64, total)
	errs := make([]error, total)
	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				rows[jobs[idx].out], errs[jobs[idx].out] = fn(ctx, jobs[idx].pos)
			}
		}()
	}
	for idx := range jobs {
		work <- idx
	}
	close(work)
	wg.Wait()

	dropped := 0
	valid := func(flat int) bool { return errs[flat] == nil }
	var m int
	for flat := 0; flat < total; flat++ {
		if errs[flat] != nil {
			if !isNumerical(errs[flat]) {
				return nil, fmt.Errorf("varsens: %w", errs[flat])
			}
			dropped++
			continue
		}
		if m == 0 {
			m = len(rows[flat])
		} else if len(rows[flat]) != m {
			return nil, fmt.Errorf("varsens: inconsistent output width %d vs %d", len(rows[flat]), m)
		}
	}
	if m == 0 {
		return nil, fmt.Errorf("varsens: every sample failed")
	}

	res := &Result{
		FirstOrder: mat.NewDense(k, m, nil),
		Total:      mat.NewDense(k, m, nil),
		Valid:      make([]int, k),
		Dropped:    dropped,
	}
	for col := 0; col < m; col++ {
		// Output variance over both base matrices.
		var sum, sq float64
		n := 0
		for flat := 0; flat < 2*opts.N; flat++ {
			if !valid(flat) {
				continue
			}
			v := rows[flat][col]
			sum += v
			sq += v * v
			n++
		}
		if n < 2 {
			return nil, fmt.Errorf("varsens: too few valid base samples (%d)", n)
		}
		meanY := sum / float64(n)
		varY := sq/float64(n) - meanY*meanY
		for i := 0; i < k; i++ {
			var first, tot float64
			nn := 0
			for j := 0; j < opts.N; j++ {
				aj, bj, abj := j, opts.N+j, (2+i)*opts.N+j
				if !valid(aj) || !valid(bj) || !valid(abj) {
					continue
				}
				ya, yb, yab := rows[aj][col], rows[bj][col], rows[abj][col]
				first += yb * (yab - ya)
				tot += (ya - yab) * (ya - yab)
				nn++
			}
			if col == 0 {
				res.Valid[i] = nn
			}
			if nn == 0 || varY == 0 {
				res.FirstOrder.Set(i, col, math.NaN())
				res.Total.Set(i, col, math.NaN())
				continue
			}
			res.FirstOrder.Set(i, col, first/float64(nn)/varY)
			res.Total.Set(i, col, tot/(2*float64(nn))/varY)
		}
	}
	return res, nil
}

func isNumerical(err error) bool {
	var fail *solver.IntegrationFailure
	return errors.As(err, &fail)
}

// TrajectoryDeviation builds a Func measuring, per observable, the root
// mean square deviation of a simulated trajectory from the reference
// trajectory at the center parameters. Returns the Func and the
// observable order of its output vector.
func TrajectoryDeviation(net *rulenet.Network, estimate []string, times []float64, iopts solver.Opts) (Func, []string, error) {
	refSys, err := odenet.Assemble(net, nil)
	if err != nil {
		return nil, nil, err
	}
	y0, err := refSys.Initial(nil)
	if err != nil {
		return nil, nil, err
	}
	grid := append([]float64(nil), times...)
	if len(grid) == 0 || grid[0] > 0 {
		grid = append([]float64{0}, grid...)
	}
	refTr, err := solver.RK45{}.Run(context.Background(), refSys, y0, grid, iopts)
	if err != nil {
		return nil, nil, fmt.Errorf("varsens: reference trajectory: %w", err)
	}
	obs := refSys.Observables()
	ref := make([][]float64, len(obs))
	for oi, name := range obs {
		ref[oi] = make([]float64, len(grid))
		for ti := range grid {
			v, err := refSys.Observe(name, refTr.State(ti))
			if err != nil {
				return nil, nil, err
			}
			ref[oi][ti] = v
		}
	}

	fn := func(ctx context.Context, position []float64) ([]float64, error) {
		if len(position) != len(estimate) {
			return nil, fmt.Errorf("varsens: position has %d entries, want %d", len(position), len(estimate))
		}
		params := make(map[string]float64, len(estimate))
		for i, name := range estimate {
			params[name] = math.Pow(10, position[i])
		}
		sys, err := odenet.Assemble(net, params)
		if err != nil {
			return nil, err
		}
		y0, err := sys.Initial(nil)
		if err != nil {
			return nil, err
		}
		tr, err := solver.RK45{}.Run(ctx, sys, y0, grid, iopts)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(obs))
		for oi, name := range obs {
			var sum float64
			for ti := range grid {
				v, err := sys.Observe(name, tr.State(ti))
				if err != nil {
					return nil, err
				}
				d := v - ref[oi][ti]
				sum += d * d
			}
			out[oi] = math.Sqrt(sum / float64(len(grid)))
		}
		return out, nil
	}
	return fn, obs, nil
}
