package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/config"
)

// writeCohort writes n simulated patients in the layout of the published
// heart failure data.  Age raises serum creatinine, lowers the ejection
// fraction and raises the hazard; both lab values also affect the hazard.
// One patient in five is followed for 150 days, the rest for 250.
func writeCohort(t *testing.T, dir string, n int) string {

	rng := rand.New(rand.NewSource(2024))

	fname := filepath.Join(dir, "heart_failure.csv")
	fid, err := os.Create(fname)
	require.NoError(t, err)
	defer fid.Close()

	w := csv.NewWriter(fid)
	require.NoError(t, w.Write([]string{
		"age", "anaemia", "creatinine_phosphokinase", "diabetes", "ejection_fraction",
		"high_blood_pressure", "platelets", "serum_creatinine", "serum_sodium", "sex",
		"smoking", "time", "DEATH_EVENT",
	}))

	bern := func(p float64) string {
		if rng.Float64() < p {
			return "1"
		}
		return "0"
	}
	f := func(x float64) string {
		return strconv.FormatFloat(x, 'f', 3, 64)
	}

	for i := 0; i < n; i++ {
		a := rng.NormFloat64()
		c := 0.6*a + 0.8*rng.NormFloat64()
		e := -0.5*a + 0.85*rng.NormFloat64()

		rate := 0.004 * math.Exp(0.6*a+0.5*c-0.4*e)
		tdeath := rng.ExpFloat64() / rate
		follow := 250.0
		if rng.Float64() < 0.2 {
			follow = 150
		}
		time, event := follow, "0"
		if tdeath <= follow {
			time, event = math.Ceil(tdeath), "1"
		}

		require.NoError(t, w.Write([]string{
			f(60 + 10*a), bern(0.4), f(500 + 100*rng.NormFloat64()), bern(0.4), f(38 + 10*e),
			bern(0.35), f(260000 + 50000*rng.NormFloat64()), f(1.4 + 0.3*c), f(136 + 4*rng.NormFloat64()), bern(0.65),
			bern(0.3), f(time), event,
		}))
	}
	w.Flush()
	require.NoError(t, w.Error())

	return fname
}

const analysis = `
data: %s
outdir: %s
seed: 5
variables:
  - {name: Age, kind: continuous}
  - {name: SerumCreatinine, kind: continuous}
  - {name: EjectionFraction, kind: continuous}
  - {name: Smoking, kind: boolean}
  - {name: Event, kind: boolean}
edges:
  - {from: Age, to: SerumCreatinine}
  - {from: Age, to: EjectionFraction}
  - {from: Age, to: Event}
  - {from: SerumCreatinine, to: Event}
  - {from: EjectionFraction, to: Event}
rounds:
  - edges:
      - {from: Smoking, to: Event}
exposure: SerumCreatinine
cutoff:
  jump_size: 5
propensity:
  caliper: 0.5
structure:
  enabled: true
  bins: 3
  blacklist:
    - {from: Event, to: Age}
`

func setup(t *testing.T) *config.Config {
	dir := t.TempDir()
	data := writeCohort(t, dir, 300)
	cfg, err := config.Parse([]byte(fmt.Sprintf(analysis, data, filepath.Join(dir, "out"))))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestCutoff(t *testing.T) {

	cfg := setup(t)

	cr, err := Cutoff(cfg)
	require.NoError(t, err)

	// The patients followed for 150 days are counted as censored from
	// day 151 on.
	assert.Equal(t, 150, cr.Cutoff)
	assert.Len(t, cr.Table, 201)
	assert.Len(t, cr.Loaded, 300)
	assert.Len(t, cr.Patients, 300)
	for _, c := range cr.Table {
		assert.Equal(t, 300, c.Total())
	}
}

func TestRun(t *testing.T) {

	cfg := setup(t)

	res, err := Run(cfg, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, filepath.Join(cfg.OutDir, res.RunID), res.Dir)

	// Continuous variables are standardized.
	x := res.Cohort.Data.MustGet(cohort.Age)
	var mn float64
	for _, v := range x {
		mn += v
	}
	assert.InDelta(t, 0, mn/float64(len(x)), 1e-8)
	assert.InDelta(t, 60, res.Cohort.Scaling.Mean[cohort.Age], 3)

	gr := res.Graph
	require.NotEmpty(t, gr.Rounds)
	assert.Equal(t, 5, gr.Initial.NumEdges())
	assert.True(t, gr.Rounds[len(gr.Rounds)-1].Graph.Equal(gr.Graph))

	sr := res.Strength
	assert.Len(t, sr.SEM.Strengths, gr.Graph.NumEdges())
	assert.NotEmpty(t, sr.Hazards)
	for _, s := range sr.Hazards {
		assert.Equal(t, cohort.Event, s.Child)
	}
	if !gr.Graph.HasEdge(cohort.Smoking, cohort.Event) {
		// Refinement was not needed; smoking never had children, so it stays.
		assert.NotContains(t, sr.Prune.DroppedNodes, cohort.Smoking)
		assert.True(t, sr.Pruned.Has(cohort.Smoking))
	}
	assert.True(t, sr.Pruned.Has(cohort.Event))
	assert.True(t, sr.Pruned.Has(cohort.SerumCreatinine))

	ar := res.Adjust
	assert.Equal(t, []string{cohort.Age}, ar.Set)
	assert.Greater(t, ar.Comparison.Unadjusted.Coef, 0.0)
	assert.Len(t, ar.Curves, 3)

	pr := res.Propensity
	assert.Equal(t, []string{cohort.Age}, pr.Covariates)
	assert.NotEmpty(t, pr.Match.Pairs)
	assert.Len(t, pr.Match.Balance, 1)
	for _, w := range pr.IPW.Weights {
		assert.True(t, w > 0 && !math.IsInf(w, 0))
	}

	st := res.Structure
	require.NotNil(t, st)
	assert.Equal(t, 300, st.NumObs)
	assert.False(t, st.HC.Graph.HasEdge(cohort.Event, cohort.Age))

	for _, na := range []string{
		CheckpointName, "initial.dot", "pruned.dot", "hillclimb.dot",
		"censoring.svg", "curves.svg", "curves.pdf", "results.xlsx",
	} {
		_, err := os.Stat(filepath.Join(res.Dir, na))
		assert.NoError(t, err, na)
	}

	recs, cutoff, err := cohort.LoadCheckpoint(filepath.Join(res.Dir, CheckpointName))
	require.NoError(t, err)
	assert.Equal(t, res.Cohort.Cutoff, cutoff)
	assert.Equal(t, res.Cohort.Patients, recs)
}

func TestRunNoArtifacts(t *testing.T) {

	cfg := setup(t)
	cfg.Structure.Enabled = false

	res, err := Run(cfg, &Config{NoArtifacts: true})
	require.NoError(t, err)
	assert.Empty(t, res.Dir)
	assert.Nil(t, res.Structure)

	_, err = os.Stat(cfg.OutDir)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStageErrors(t *testing.T) {

	cfg := setup(t)
	cfg.Cutoff.JumpSize = 1000

	_, err := Run(cfg, &Config{NoArtifacts: true})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageCohort, se.Stage)
	assert.Equal(t, cohort.Time, se.Variable)
	assert.True(t, errors.Is(err, cohort.ErrNoJump))

	cfg = setup(t)
	cfg.Data = filepath.Join(t.TempDir(), "missing.csv")
	_, err = Run(cfg, &Config{NoArtifacts: true})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageCohort, se.Stage)
	assert.Contains(t, err.Error(), "pipeline: cohort:")
}
