package varsens

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolab-msm/erbbfit/internal/model"
	"github.com/lolab-msm/erbbfit/internal/rulenet"
	"github.com/lolab-msm/erbbfit/internal/solver"
)

func TestScale(t *testing.T) {
	center := []float64{-3, 0}
	assert.Equal(t, []float64{-6, -3}, Scale([]float64{0, 0}, center, 3))
	assert.Equal(t, []float64{0, 3}, Scale([]float64{1, 1}, center, 3))
	assert.Equal(t, []float64{-3, 0}, Scale([]float64{0.5, 0.5}, center, 3))
}

func TestAnalyze_LinearModel(t *testing.T) {
	// y = 10*x0 + x1: x0 dominates, no interactions, so first-order
	// and total indices agree and S0 >> S1.
	fn := func(_ context.Context, pos []float64) ([]float64, error) {
		return []float64{10*pos[0] + pos[1]}, nil
	}
	res, err := Analyze(context.Background(), []float64{0, 0}, fn, Opts{N: 4000, Seed: 11})
	require.NoError(t, err)

	s0 := res.FirstOrder.At(0, 0)
	s1 := res.FirstOrder.At(1, 0)
	// Analytic: S0 = 100/101, S1 = 1/101.
	assert.InDelta(t, 100.0/101, s0, 0.05)
	assert.InDelta(t, 1.0/101, s1, 0.05)
	assert.InDelta(t, s0, res.Total.At(0, 0), 0.05)
	assert.InDelta(t, s1, res.Total.At(1, 0), 0.05)
	assert.Equal(t, 0, res.Dropped)
	assert.Equal(t, []int{4000, 4000}, res.Valid)
}

func TestAnalyze_MultiOutput(t *testing.T) {
	// Column 0 depends only on x0, column 1 only on x1.
	fn := func(_ context.Context, pos []float64) ([]float64, error) {
		return []float64{pos[0], pos[1]}, nil
	}
	res, err := Analyze(context.Background(), []float64{0, 0}, fn, Opts{N: 2000, Seed: 3})
	require.NoError(t, err)
	assert.InDelta(t, 1, res.FirstOrder.At(0, 0), 0.1)
	assert.InDelta(t, 0, res.FirstOrder.At(1, 0), 0.1)
	assert.InDelta(t, 0, res.FirstOrder.At(0, 1), 0.1)
	assert.InDelta(t, 1, res.FirstOrder.At(1, 1), 0.1)
}

func TestAnalyze_DropsFailedSamples(t *testing.T) {
	fn := func(_ context.Context, pos []float64) ([]float64, error) {
		if pos[0] > 2 {
			return nil, &solver.IntegrationFailure{T: 0, Reason: "stiff corner"}
		}
		return []float64{pos[0]}, nil
	}
	res, err := Analyze(context.Background(), []float64{0}, fn, Opts{N: 500, Seed: 1})
	require.NoError(t, err)
	assert.Greater(t, res.Dropped, 0)
	assert.Less(t, res.Valid[0], 500)
	assert.False(t, math.IsNaN(res.FirstOrder.At(0, 0)))
}

func TestAnalyze_NonNumericalErrorAborts(t *testing.T) {
	fn := func(_ context.Context, pos []float64) ([]float64, error) {
		return nil, errors.New("bad wiring")
	}
	_, err := Analyze(context.Background(), []float64{0}, fn, Opts{N: 10, Seed: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad wiring")
}

func TestAnalyze_Validation(t *testing.T) {
	fn := func(_ context.Context, pos []float64) ([]float64, error) { return []float64{0}, nil }
	_, err := Analyze(context.Background(), nil, fn, Opts{N: 10})
	assert.Error(t, err)
	_, err = Analyze(context.Background(), []float64{0}, fn, Opts{N: 1})
	assert.Error(t, err)
}

func TestTrajectoryDeviation(t *testing.T) {
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
	m, err := b.Build()
	require.NoError(t, err)
	net, err := rulenet.Expand(m, rulenet.Options{})
	require.NoError(t, err)

	fn, obs, err := TrajectoryDeviation(net, []string{"kf", "kr"}, []float64{10, 50}, solver.Opts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"obsAB"}, obs)

	center := []float64{math.Log10(2e-3), math.Log10(1e-1)}
	atCenter, err := fn(context.Background(), center)
	require.NoError(t, err)
	assert.InDelta(t, 0, atCenter[0], 1e-6, "reference parameters deviate from themselves by nothing")

	shifted := []float64{center[0] + 1, center[1]}
	atShift, err := fn(context.Background(), shifted)
	require.NoError(t, err)
	assert.Greater(t, atShift[0], 1.0, "10x kf visibly moves the trajectory")
}
