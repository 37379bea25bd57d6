package objective

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolab-msm/erbbfit/internal/model"
	"github.com/lolab-msm/erbbfit/internal/odenet"
	"github.com/lolab-msm/erbbfit/internal/rulenet"
	"github.com/lolab-msm/erbbfit/internal/solver"
)

func writeDataset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDataset_RepairsZeroSigmas(t *testing.T) {
	path := writeDataset(t, `
conditions:
  - name: basal
    observables:
      obsAB:
        times: [0, 10, 20]
        values: [0, 0.4, 0.9]
        sigmas: [0, -1, 0.5]
`)
	ds, err := LoadDataset(path)
	require.NoError(t, err)
	s := ds.Conditions[0].Series["obsAB"]
	assert.Equal(t, []float64{1, 1, 0.5}, s.Sigmas)
}

func TestLoadDataset_DefaultsMissingSigmas(t *testing.T) {
	path := writeDataset(t, `
conditions:
  - name: basal
    observables:
      obsAB:
        times: [0, 5]
        values: [0, 1]
`)
	ds, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, ds.Conditions[0].Series["obsAB"].Sigmas)
}

func TestLoadDataset_Invalid(t *testing.T) {
	cases := map[string]string{
		"no conditions": `conditions: []`,
		"length mismatch": `
conditions:
  - name: basal
    observables:
      obsAB: {times: [0, 1], values: [0]}`,
		"times not increasing": `
conditions:
  - name: basal
    observables:
      obsAB: {times: [1, 1], values: [0, 0]}`,
		"duplicate condition": `
conditions:
  - name: basal
    observables:
      obsAB: {times: [0], values: [0]}
  - name: basal
    observables:
      obsAB: {times: [0], values: [0]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadDataset(writeDataset(t, body))
			assert.Error(t, err)
		})
	}
}

func TestNearestIndex(t *testing.T) {
	grid := []float64{0, 10, 20, 40}
	assert.Equal(t, 0, nearestIndex(grid, -5))
	assert.Equal(t, 0, nearestIndex(grid, 4))
	assert.Equal(t, 1, nearestIndex(grid, 10))
	assert.Equal(t, 1, nearestIndex(grid, 14))
	assert.Equal(t, 2, nearestIndex(grid, 31))
	assert.Equal(t, 3, nearestIndex(grid, 99))
}

func TestMinMaxScale(t *testing.T) {
	v := []float64{2, 4, 6}
	minMaxScale(v)
	assert.Equal(t, []float64{0, 0.5, 1}, v)

	flat := []float64{3, 3}
	minMaxScale(flat)
	assert.Equal(t, []float64{0, 0}, flat)
}

// bindingNetwork is A + B <-> AB with kf=2e-3, kr=1e-1.
func bindingNetwork(t *testing.T) *rulenet.Network {
	t.Helper()
	b := model.NewBuilder()
	a := b.Monomer("A", []string{"b"}, nil)
	bb := b.Monomer("B", []string{"b"}, nil)
	kf := b.Parameter("kf", 2e-3)
	kr := b.Parameter("kr", 1e-1)
	a0 := b.Parameter("A_0", 100)
	b0 := b.Parameter("B_0", 80)
	b.RuleReversible("bind",
		[]model.ComplexPattern{
			model.Complex(a.Pattern(model.Unbound("b"))),
			model.Complex(bb.Pattern(model.Unbound("b"))),
		},
		[]model.ComplexPattern{
			model.Complex(a.Pattern(model.Bond("b", 1)), bb.Pattern(model.Bond("b", 1))),
		},
		kf, kr)
	b.Initial(model.Complex(a.Pattern(model.Unbound("b"))), a0)
	b.Initial(model.Complex(bb.Pattern(model.Unbound("b"))), b0)
	b.Observable("obsAB", model.Complex(a.Pattern(model.AnyBond("b"))))
	b.Observable("obsA", model.Complex(a.Pattern(model.Unbound("b"))))
	m, err := b.Build()
	require.NoError(t, err)
	net, err := rulenet.Expand(m, rulenet.Options{})
	require.NoError(t, err)
	return net
}

// syntheticDataset simulates the network at its declared parameters and
// records obsAB as noiseless data.
func syntheticDataset(t *testing.T, net *rulenet.Network, times []float64) *Dataset {
	t.Helper()
	ev, err := New(net, &Dataset{Conditions: []Condition{{
		Name:   "seed",
		Series: map[string]Series{"obsAB": {Times: times, Values: make([]float64, len(times))}},
	}}}, Opts{})
	require.NoError(t, err)

	sys, err := odenet.Assemble(net, ev.ParamMap(ev.InitialPosition()))
	require.NoError(t, err)
	y0, err := sys.Initial(nil)
	require.NoError(t, err)
	grid := append([]float64{0}, times...)
	tr, err := solver.RK45{}.Run(context.Background(), sys, y0, grid, solver.Opts{})
	require.NoError(t, err)

	values := make([]float64, len(times))
	for i := range times {
		v, err := sys.Observe("obsAB", tr.State(i+1))
		require.NoError(t, err)
		values[i] = v
	}
	return &Dataset{Conditions: []Condition{{
		Name:   "basal",
		Series: map[string]Series{"obsAB": {Times: times, Values: values, Sigmas: onesLike(times)}},
	}}}
}

func onesLike(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestEvaluate_TrueParamsScoreBest(t *testing.T) {
	net := bindingNetwork(t)
	times := []float64{5, 10, 20, 40, 80}
	ds := syntheticDataset(t, net, times)

	ev, err := New(net, ds, Opts{})
	require.NoError(t, err)
	require.Equal(t, []string{"kf", "kr"}, ev.Params())

	atTruth, err := ev.Evaluate(context.Background(), ev.InitialPosition())
	require.NoError(t, err)
	assert.InDelta(t, 0, atTruth.Likelihood, 1e-4, "noiseless data at true parameters")
	assert.InDelta(t, 0, atTruth.Prior, 1e-12)

	off := ev.InitialPosition()
	off[0] += 1 // 10x kf
	atOff, err := ev.Evaluate(context.Background(), off)
	require.NoError(t, err)
	assert.Greater(t, atOff.Likelihood, atTruth.Likelihood+1.0)
	assert.Greater(t, atOff.Prior, 0.0)
}

func TestPrior_MonotoneInDistance(t *testing.T) {
	net := bindingNetwork(t)
	ds := syntheticDataset(t, net, []float64{5, 10})
	ev, err := New(net, ds, Opts{PriorVar: 6})
	require.NoError(t, err)

	base := ev.InitialPosition()
	prev := ev.Prior(base)
	for _, step := range []float64{0.5, 1, 2, 3} {
		pos := append([]float64(nil), base...)
		pos[1] += step
		p := ev.Prior(pos)
		assert.Greater(t, p, prev)
		prev = p
	}
	pos := append([]float64(nil), base...)
	pos[1] += 3
	assert.InDelta(t, 9.0/(2*6.0), ev.Prior(pos), 1e-12)
}

func TestEvaluate_NormalizePolicy(t *testing.T) {
	net := bindingNetwork(t)
	// Data already scaled to [0,1]; only a normalized comparison can
	// score it near zero.
	ds := &Dataset{Conditions: []Condition{{
		Name: "basal",
		Series: map[string]Series{"obsAB": {
			Times:  []float64{0, 200},
			Values: []float64{0, 1},
			Sigmas: []float64{1, 1},
		}},
	}}}
	evNorm, err := New(net, ds, Opts{Normalize: true})
	require.NoError(t, err)
	evRaw, err := New(net, ds, Opts{})
	require.NoError(t, err)

	rNorm, err := evNorm.Evaluate(context.Background(), evNorm.InitialPosition())
	require.NoError(t, err)
	rRaw, err := evRaw.Evaluate(context.Background(), evRaw.InitialPosition())
	require.NoError(t, err)
	assert.Less(t, rNorm.Likelihood, 1e-6)
	assert.Greater(t, rRaw.Likelihood, 100.0)
}

func TestEvaluate_NormalizeRawUnitData(t *testing.T) {
	net := bindingNetwork(t)
	ds := syntheticDataset(t, net, []float64{5, 20, 80})

	// Scale the data into arbitrary instrument units and anchor the
	// shared zero so both series trace the same shape.
	s := ds.Conditions[0].Series["obsAB"]
	times := append([]float64{0}, s.Times...)
	values := []float64{0}
	for _, v := range s.Values {
		values = append(values, 50*v)
	}
	ds.Conditions[0].Series["obsAB"] = Series{Times: times, Values: values, Sigmas: onesLike(times)}

	ev, err := New(net, ds, Opts{Normalize: true})
	require.NoError(t, err)
	r, err := ev.Evaluate(context.Background(), ev.InitialPosition())
	require.NoError(t, err)
	assert.InDelta(t, 0, r.Likelihood, 1e-4, "scaling both series makes instrument units irrelevant")
}

func TestEvaluate_Deterministic(t *testing.T) {
	net := bindingNetwork(t)
	times := []float64{5, 20, 80}
	ds := syntheticDataset(t, net, times)
	// A second measured observable gives the residual sum more than one
	// term whose order could float.
	ds.Conditions[0].Series["obsA"] = Series{
		Times:  times,
		Values: []float64{70, 40, 10},
		Sigmas: onesLike(times),
	}
	ev, err := New(net, ds, Opts{})
	require.NoError(t, err)

	pos := ev.InitialPosition()
	pos[0] += 0.2
	first, err := ev.Evaluate(context.Background(), pos)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		r, err := ev.Evaluate(context.Background(), pos)
		require.NoError(t, err)
		require.Equal(t, first.Likelihood, r.Likelihood)
	}
}

func TestEvaluate_ConditionOverrides(t *testing.T) {
	net := bindingNetwork(t)
	ds := &Dataset{Conditions: []Condition{
		{
			Name:      "no_ligand",
			Overrides: map[string]float64{"B_0": 0},
			Series: map[string]Series{"obsAB": {
				Times: []float64{50}, Values: []float64{0}, Sigmas: []float64{1},
			}},
		},
	}}
	ev, err := New(net, ds, Opts{})
	require.NoError(t, err)
	r, err := ev.Evaluate(context.Background(), ev.InitialPosition())
	require.NoError(t, err)
	assert.InDelta(t, 0, r.Likelihood, 1e-9, "no B means no complex ever forms")
}

// failingIntegrator always reports a numerical failure.
type failingIntegrator struct{}

func (failingIntegrator) Run(context.Context, solver.System, []float64, []float64, solver.Opts) (*solver.Trajectory, error) {
	return nil, &solver.IntegrationFailure{T: 1, Reason: "forced"}
}

func TestEvaluate_IntegrationFailurePassesThrough(t *testing.T) {
	net := bindingNetwork(t)
	ds := syntheticDataset(t, net, []float64{5, 10})
	ev, err := New(net, ds, Opts{Integrator: failingIntegrator{}})
	require.NoError(t, err)

	_, err = ev.Evaluate(context.Background(), ev.InitialPosition())
	require.Error(t, err)
	var fail *solver.IntegrationFailure
	assert.True(t, errors.As(err, &fail))
}

func TestNew_Validation(t *testing.T) {
	net := bindingNetwork(t)
	ds := syntheticDataset(t, net, []float64{5})

	_, err := New(net, ds, Opts{Estimate: []string{"kf", "missing"}})
	assert.Error(t, err)

	bad := &Dataset{Conditions: []Condition{{
		Name:   "x",
		Series: map[string]Series{"nope": {Times: []float64{1}, Values: []float64{0}, Sigmas: []float64{1}}},
	}}}
	_, err = New(net, bad, Opts{})
	assert.Error(t, err)
}

func TestParamMap_RoundTrip(t *testing.T) {
	net := bindingNetwork(t)
	ds := syntheticDataset(t, net, []float64{5})
	ev, err := New(net, ds, Opts{})
	require.NoError(t, err)

	m := ev.ParamMap([]float64{-2, -1})
	assert.InDelta(t, 1e-2, m["kf"], 1e-15)
	assert.InDelta(t, 1e-1, m["kr"], 1e-15)
	assert.InDelta(t, math.Log10(2e-3), ev.InitialPosition()[0], 1e-12)
}
