package cli

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lolab-msm/erbbfit/internal/mcmc"
	"github.com/lolab-msm/erbbfit/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := execute(t, "expand", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExpand_UnknownCellLine(t *testing.T) {
	_, err := execute(t, "expand", "--cell-line", "HeLa", "--layers", "receptor")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "HeLa")
}

func TestExpand_UnknownLayers(t *testing.T) {
	_, err := execute(t, "expand", "--layers", "bogus")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExpand_ReceptorLayer(t *testing.T) {
	if testing.Short() {
		t.Skip("network expansion is slow")
	}
	out, err := execute(t, "expand", "--cell-line", "A431", "--layers", "receptor")
	require.NoError(t, err)
	assert.Contains(t, out, "species:")
	assert.Contains(t, out, "reactions:")
	assert.Contains(t, out, "obsErbB1_P")
}

func TestCalibrate_MissingConfig(t *testing.T) {
	_, err := execute(t, "calibrate", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCalibrate_RejectedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cell_line: HeLa
scenario: rates
nsteps: 100
data: [d.yaml]
`), 0o644))

	_, err := execute(t, "calibrate", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "config")
}

func TestExtract_RoundTrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chains.db")
	st, err := store.Open(db)
	require.NoError(t, err)

	runID := store.NewRunID()
	require.NoError(t, st.CreateRun(context.Background(), store.Run{
		ID:       runID,
		Scenario: "rates",
		CellLine: "A431",
		Params:   []string{"kon", "koff"},
		Nsteps:   20,
		Seed:     1,
	}))
	chain := &mcmc.Chain{}
	for i := 0; i < 20; i++ {
		chain.History = append(chain.History, mcmc.Iteration{
			Position:   []float64{-3 + float64(i)*0.01, -1},
			Likelihood: float64(20 - i),
			Accepted:   true,
		})
	}
	require.NoError(t, st.WriteChain(context.Background(), runID, chain))
	require.NoError(t, st.Close())

	bestOut := filepath.Join(t.TempDir(), "best.yaml")
	out, err := execute(t, "extract", "--db", db, "--run", runID, "--best-fit", bestOut)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "kon")
	assert.Contains(t, out, "koff")

	raw, err := os.ReadFile(bestOut)
	require.NoError(t, err)
	var best map[string]float64
	require.NoError(t, yaml.Unmarshal(raw, &best))
	// Last iteration scores lowest, so its position is the best fit.
	assert.InEpsilon(t, math.Pow(10, -3+19*0.01), best["kon"], 1e-9)
}

func TestExtract_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chains.db")
	_, err := execute(t, "extract", "--db", db, "--run", "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no-such-run")
}
