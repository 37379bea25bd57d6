package mcmc

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// hessianStepSize is the central-difference spacing in log10 units.
const hessianStepSize = 0.01

// eigenFloor clamps Hessian eigenvalues so flat or negative-curvature
// directions still get a finite, bounded proposal scale.
const eigenFloor = 1e-4

// refreshHessian recomputes the posterior Hessian at the current
// position and derives curvature-scaled proposal directions from its
// eigendecomposition. Any simulation failure during the stencil leaves
// the previous proposal shape in place.
func (c *Chain) refreshHessian(ctx context.Context) {
	h, err := c.posteriorHessian(ctx)
	if err != nil {
		if c.Opts.Logger != nil {
			c.Opts.Logger.Debug("hessian refresh skipped", "iter", c.Iter+1, "err", err)
		}
		return
	}
	var eig mat.EigenSym
	if !eig.Factorize(h, true) {
		return
	}
	n := len(c.Position)
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	steps := make([][]float64, n)
	for j := 0; j < n; j++ {
		lambda := vals[j]
		if lambda < eigenFloor {
			lambda = eigenFloor
		}
		scale := c.Opts.HessianScale / math.Sqrt(lambda)
		row := make([]float64, n)
		for i := 0; i < n; i++ {
			row[i] = scale * vecs.At(i, j)
		}
		steps[j] = row
	}
	c.hessStep = steps
	if c.Opts.Logger != nil {
		c.Opts.Logger.Debug("hessian refreshed", "iter", c.Iter+1)
	}
}

// posteriorHessian estimates the Hessian by central differences. The
// off-diagonal stencil needs four evaluations per pair; all stencil
// points run concurrently since the objective is concurrency-safe.
func (c *Chain) posteriorHessian(ctx context.Context) (*mat.SymDense, error) {
	n := len(c.Position)
	base := append([]float64(nil), c.Position...)

	eval := func(offsets map[int]float64) (float64, error) {
		pos := append([]float64(nil), base...)
		for i, d := range offsets {
			pos[i] += d
		}
		res, err := c.obj.Evaluate(ctx, pos)
		if err != nil {
			return 0, err
		}
		return res.Posterior(), nil
	}

	center, err := eval(nil)
	if err != nil {
		return nil, err
	}

	type job struct {
		i, j   int // j == -1 for single-axis points
		si, sj float64
	}
	var jobs []job
	for i := 0; i < n; i++ {
		jobs = append(jobs, job{i: i, j: -1, si: 1}, job{i: i, j: -1, si: -1})
		for j := i + 1; j < n; j++ {
			jobs = append(jobs,
				job{i: i, j: j, si: 1, sj: 1},
				job{i: i, j: j, si: 1, sj: -1},
				job{i: i, j: j, si: -1, sj: 1},
				job{i: i, j: j, si: -1, sj: -1})
		}
	}

	values := make([]float64, len(jobs))
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for k := range jobs {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			jb := jobs[k]
			off := map[int]float64{jb.i: jb.si * hessianStepSize}
			if jb.j >= 0 {
				off[jb.j] = jb.sj * hessianStepSize
			}
			values[k], errs[k] = eval(off)
		}(k)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Index single and pair evaluations back out of the flat results.
	single := make(map[[2]int]float64) // {i, sign} -> value
	pair := make(map[[4]int]float64)   // {i, j, si, sj} -> value
	for k, jb := range jobs {
		if jb.j < 0 {
			single[[2]int{jb.i, int(jb.si)}] = values[k]
		} else {
			pair[[4]int{jb.i, jb.j, int(jb.si), int(jb.sj)}] = values[k]
		}
	}

	h := mat.NewSymDense(n, nil)
	hh := hessianStepSize * hessianStepSize
	for i := 0; i < n; i++ {
		fp := single[[2]int{i, 1}]
		fm := single[[2]int{i, -1}]
		h.SetSym(i, i, (fp-2*center+fm)/hh)
		for j := i + 1; j < n; j++ {
			fpp := pair[[4]int{i, j, 1, 1}]
			fpm := pair[[4]int{i, j, 1, -1}]
			fmp := pair[[4]int{i, j, -1, 1}]
			fmm := pair[[4]int{i, j, -1, -1}]
			h.SetSym(i, j, (fpp-fpm-fmp+fmm)/(4*hh))
		}
	}
	return h, nil
}
