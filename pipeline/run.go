package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Valkje/heart-failure/adjust"
	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/config"
	"github.com/Valkje/heart-failure/duration"
	"github.com/Valkje/heart-failure/report"
	"github.com/Valkje/heart-failure/sem"
)

// CheckpointName is the file name of the cohort checkpoint in the run
// directory.
const CheckpointName = "cohort.ckpt"

// Run runs every stage of the analysis.  Unless disabled, artifacts are
// written to a new directory under the configured output directory,
// named by the run id.  The cohort checkpoint is written as soon as the
// cutoff is applied.
func Run(cfg *config.Config, pc *Config) (*Result, error) {

	if pc == nil {
		pc = &Config{}
	}

	r, err := newRunner(cfg, pc)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString()}
	r.logf("run %s\n", res.RunID)

	if res.Cohort, err = Cutoff(cfg); err != nil {
		return res, err
	}
	if err = r.prepare(res.Cohort); err != nil {
		return res, err
	}

	if !pc.NoArtifacts {
		res.Dir = filepath.Join(cfg.OutDir, res.RunID)
		if err := os.MkdirAll(res.Dir, 0o755); err != nil {
			return res, &StageError{Stage: StageReport, Err: err}
		}
		fname := filepath.Join(res.Dir, CheckpointName)
		if err := cohort.SaveCheckpoint(fname, res.Cohort.Patients, res.Cohort.Cutoff); err != nil {
			return res, &StageError{Stage: StageCohort, Err: err}
		}
	}

	gr, tester, err := r.runGraph(res.Cohort)
	if err != nil {
		return res, err
	}
	res.Graph = gr

	if res.Strength, err = r.runStrength(res.Cohort, gr, tester); err != nil {
		return res, err
	}
	if res.Adjust, err = r.runAdjust(res.Cohort, gr); err != nil {
		return res, err
	}
	if res.Propensity, err = r.runPropensity(res.Cohort, res.Adjust); err != nil {
		return res, err
	}
	if cfg.Structure.Enabled {
		if res.Structure, err = r.runStructure(res.Cohort, gr); err != nil {
			return res, err
		}
	}

	if !pc.NoArtifacts {
		if err := r.write(res); err != nil {
			return res, &StageError{Stage: StageReport, Err: err}
		}
		r.logf("artifacts written to %s\n", res.Dir)
	}

	return res, nil
}

// write saves the diagrams, plots and workbook of a completed run.
func (r *runner) write(res *Result) error {

	path := func(na string) string {
		return filepath.Join(res.Dir, na)
	}
	exposure, outcome := r.cfg.Exposure, r.cfg.Outcome

	// Diagrams
	gr := res.Graph
	if err := report.WriteDOT(path("initial.dot"), gr.Initial, "initial", exposure, outcome); err != nil {
		return err
	}
	for k, rf := range gr.Rounds[1:] {
		na := fmt.Sprintf("round%d", k+1)
		if err := report.WriteDOT(path(na+".dot"), rf.Graph, na, exposure, outcome); err != nil {
			return err
		}
	}
	if err := report.WriteDOT(path("pruned.dot"), res.Strength.Pruned, "pruned", exposure, outcome); err != nil {
		return err
	}
	if res.Structure != nil {
		if err := report.WriteDOT(path("hillclimb.dot"), res.Structure.HC.Graph, "hillclimb"); err != nil {
			return err
		}
	}

	// Plots
	cens, err := cohort.CensoringCurve(res.Cohort.Loaded)
	if err != nil {
		return err
	}
	if err := report.WriteSurvfunc(path("censoring.svg"), "Censoring", []*duration.SurvfuncRight{cens}, []string{"all patients"}); err != nil {
		return err
	}
	title := fmt.Sprintf("%s by %s", outcome, exposure)
	for _, ext := range []string{".svg", ".pdf"} {
		if err := report.WriteCurves(path("curves"+ext), title, res.Adjust.Curves); err != nil {
			return err
		}
	}

	// Workbook
	wb := report.NewWorkbook()
	defer wb.Close()

	if err := wb.Cutoff(res.Cohort.Table, res.Cohort.Cutoff); err != nil {
		return err
	}
	if err := wb.Tests(gr.Rounds, r.cfg.Alpha); err != nil {
		return err
	}

	sr := res.Strength
	for _, s := range []struct {
		label string
		st    []sem.Strength
	}{
		{"partial correlation", sr.Partial},
		{"structural equations", sr.SEM.Strengths},
		{"proportional hazards", sr.Hazards},
	} {
		if err := wb.Strengths(s.label, s.st); err != nil {
			return err
		}
	}

	cmp := res.Adjust.Comparison
	pr := res.Propensity
	labels := []string{"unadjusted", "back-door", "propensity covariate", "propensity matched", "propensity weighted"}
	est := []*adjust.Estimate{cmp.Unadjusted, cmp.Adjusted, pr.Covariate, pr.Match.Estimate, pr.Weighted}
	if err := wb.Estimates(labels, est); err != nil {
		return err
	}
	if err := wb.Balance(pr.Match.Balance); err != nil {
		return err
	}

	if st := res.Structure; st != nil {
		if err := wb.Structure("pc", st.PCDiff); err != nil {
			return err
		}
		if err := wb.Structure("hill climbing", st.HCDiff); err != nil {
			return err
		}
	}

	return wb.SaveAs(path("results.xlsx"))
}
