package pipeline

import (
	"log"

	"github.com/Valkje/heart-failure/adjust"
	"github.com/Valkje/heart-failure/citest"
	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/config"
	"github.com/Valkje/heart-failure/duration"
	"github.com/Valkje/heart-failure/propensity"
	"github.com/Valkje/heart-failure/sem"
	"github.com/Valkje/heart-failure/statmodel"
	"github.com/Valkje/heart-failure/structure"
)

// runner carries the configuration shared by the stages.
type runner struct {
	cfg  *config.Config
	log  *log.Logger
	vars []cohort.Variable
	kind map[string]cohort.Kind
}

func newRunner(cfg *config.Config, pc *Config) (*runner, error) {

	vars, err := cfg.CohortVariables()
	if err != nil {
		return nil, &StageError{Stage: StageCohort, Err: err}
	}

	r := &runner{
		cfg:  cfg,
		log:  pc.Log,
		vars: vars,
		kind: make(map[string]cohort.Kind),
	}
	for _, v := range vars {
		r.kind[v.Name] = v.Kind
	}

	return r, nil
}

func (r *runner) logf(format string, args ...interface{}) {
	if r.log != nil {
		r.log.Printf(format, args...)
	}
}

func (r *runner) ph() *duration.PHRegConfig {
	c := duration.DefaultPHRegConfig()
	c.Log = r.log
	return c
}

// continuous returns the continuous graph variables.
func (r *runner) continuous() []string {
	var na []string
	for _, v := range r.vars {
		if v.Kind == cohort.Continuous {
			na = append(na, v.Name)
		}
	}
	return na
}

// Cutoff loads the patients, selects the censoring cutoff and drops the
// patients censored before it.
func Cutoff(cfg *config.Config) (*CohortResult, error) {

	recs, err := cohort.LoadFile(cfg.Data)
	if err != nil {
		return nil, &StageError{Stage: StageCohort, Err: err}
	}

	table := cohort.CensoringTable(recs, cfg.Cutoff.Min, cfg.Cutoff.Max)
	cutoff, err := cohort.SelectCutoff(table, cfg.Cutoff.CutoffPolicy)
	if err != nil {
		return nil, &StageError{Stage: StageCohort, Variable: cohort.Time, Err: err}
	}

	return &CohortResult{
		Table:    table,
		Cutoff:   cutoff,
		Loaded:   recs,
		Patients: cohort.ApplyCutoff(recs, cutoff),
	}, nil
}

// prepare builds the standardized dataset of the kept patients.
func (r *runner) prepare(cr *CohortResult) error {

	names := append(r.cfg.Names(), r.cfg.Time)
	ds, err := cohort.ToDataset(cr.Patients, names...)
	if err != nil {
		return &StageError{Stage: StageCohort, Err: err}
	}

	cr.Data, cr.Scaling, err = statmodel.Standardize(ds, r.continuous())
	if err != nil {
		return &StageError{Stage: StageCohort, Err: err}
	}

	r.logf("cohort: cutoff %d, %d of %d patients kept\n", cr.Cutoff, len(cr.Patients), len(cr.Loaded))

	return nil
}

func (r *runner) runGraph(cr *CohortResult) (*GraphResult, *citest.Tester, error) {

	g, err := r.cfg.Graph()
	if err != nil {
		return nil, nil, &StageError{Stage: StageGraph, Err: err}
	}

	tc := citest.DefaultConfig()
	tc.Log = r.log
	tc.CacheSize = r.cfg.CacheSize
	tester, err := citest.NewTester(cr.Data, r.vars, tc)
	if err != nil {
		return nil, nil, &StageError{Stage: StageGraph, Err: err}
	}

	rounds, err := citest.Replay(g, tester, r.cfg.RoundEdges(), r.cfg.Alpha)
	if err != nil {
		return nil, nil, &StageError{Stage: StageGraph, Err: err}
	}

	for k, rf := range rounds {
		r.logf("graph: round %d, %d edges, %d of %d claims violated\n",
			k, rf.Graph.NumEdges(), len(rf.Violations), len(rf.Results))
	}

	return &GraphResult{
		Initial: g,
		Rounds:  rounds,
		Graph:   rounds[len(rounds)-1].Graph,
	}, tester, nil
}

func (r *runner) runStrength(cr *CohortResult, gr *GraphResult, tester *citest.Tester) (*StrengthResult, error) {

	g := gr.Graph
	sr := &StrengthResult{}

	var err error
	if sr.Partial, err = sem.PartialCorrelations(g, tester); err != nil {
		return nil, &StageError{Stage: StageStrength, Err: err}
	}

	if sr.SEM, err = sem.Fit(g, cr.Data, &sem.Config{Log: r.log}); err != nil {
		return nil, &StageError{Stage: StageStrength, Err: err}
	}
	r.logf("strength: SEM chi-square %.2f on %d df, p=%.4f\n", sr.SEM.Chi2, sr.SEM.DF, sr.SEM.PValue)

	outcome := r.cfg.Outcome
	sr.Strengths = sr.SEM.Strengths
	if pa, _ := g.Parents(outcome); len(pa) > 0 {
		sr.Hazards, _, err = sem.OutcomeHazards(g, cr.Data, outcome, r.cfg.Time, r.ph())
		if err != nil {
			return nil, &StageError{Stage: StageStrength, Variable: outcome, Err: err}
		}
		sr.Strengths = sem.Merge(sr.SEM.Strengths, sr.Hazards)
	}

	sr.Pruned, sr.Prune, err = sem.Prune(g, sr.Strengths, r.cfg.Alpha, outcome, r.cfg.Exposure)
	if err != nil {
		return nil, &StageError{Stage: StageStrength, Err: err}
	}
	r.logf("strength: pruned %d edges and %d nodes\n", len(sr.Prune.RemovedEdges), len(sr.Prune.DroppedNodes))

	return sr, nil
}

func (r *runner) runAdjust(cr *CohortResult, gr *GraphResult) (*AdjustResult, error) {

	exposure, outcome := r.cfg.Exposure, r.cfg.Outcome

	z, err := gr.Graph.AdjustmentSet(exposure, outcome)
	if err != nil {
		return nil, &StageError{Stage: StageAdjust, Variable: exposure, Err: err}
	}

	cmp, err := adjust.Compare(cr.Data, exposure, outcome, r.cfg.Time, z, &adjust.Config{PH: r.ph()})
	if err != nil {
		return nil, &StageError{Stage: StageAdjust, Variable: exposure, Err: err}
	}
	r.logf("adjust: %s on %s given %v\n  unadjusted %s\n  adjusted   %s\n  confounded %t\n",
		outcome, exposure, z, cmp.Unadjusted, cmp.Adjusted, cmp.Confounded)

	curves, err := adjust.Curves(cmp.Adjusted.Results, cr.Data, nil)
	if err != nil {
		return nil, &StageError{Stage: StageAdjust, Variable: exposure, Err: err}
	}

	return &AdjustResult{Set: z, Comparison: cmp, Curves: curves}, nil
}

func (r *runner) runPropensity(cr *CohortResult, ar *AdjustResult) (*PropensityResult, error) {

	pcfg := r.cfg.Propensity
	exposure, outcome, time := r.cfg.Exposure, r.cfg.Outcome, r.cfg.Time
	kind := r.kind[exposure]

	fail := func(err error) error {
		return &StageError{Stage: StagePropensity, Variable: exposure, Err: err}
	}

	pr := &PropensityResult{Covariates: pcfg.Covariates}
	if len(pr.Covariates) == 0 {
		pr.Covariates = ar.Set
	}

	var err error
	pr.Score, err = propensity.Fit(cr.Data, exposure, pr.Covariates, kind, &propensity.Config{Log: r.log})
	if err != nil {
		return nil, fail(err)
	}

	if pr.Covariate, err = propensity.Covariate(cr.Data, pr.Score, outcome, time, r.ph()); err != nil {
		return nil, fail(err)
	}

	mc := propensity.DefaultMatchConfig()
	mc.Caliper = pcfg.Caliper
	mc.Seed = r.cfg.Seed
	mc.PH = r.ph()
	mc.Log = r.log
	if pcfg.Threshold != nil {
		th := cr.Scaling.Apply(exposure, *pcfg.Threshold)
		mc.Threshold = &th
	}
	if pr.Match, err = propensity.Match(cr.Data, exposure, kind, pr.Covariates, outcome, time, mc); err != nil {
		return nil, fail(err)
	}

	wc := propensity.DefaultWeightConfig()
	wc.MaxWeight = pcfg.MaxWeight
	wc.PH = r.ph()
	wc.Log = r.log
	if pr.IPW, err = propensity.Weights(cr.Data, pr.Score, wc); err != nil {
		return nil, fail(err)
	}
	if pr.Weighted, err = propensity.Weighted(cr.Data, exposure, outcome, time, pr.IPW, wc); err != nil {
		return nil, fail(err)
	}

	r.logf("propensity: covariate %s\n  matched %s\n  weighted %s\n", pr.Covariate, pr.Match.Estimate, pr.Weighted)

	return pr, nil
}

func (r *runner) runStructure(cr *CohortResult, gr *GraphResult) (*StructureResult, error) {

	scfg := r.cfg.Structure
	fail := func(err error) error {
		return &StageError{Stage: StageStructure, Err: err}
	}

	recs := cr.Patients
	if scfg.CaseControl > 0 {
		recs = cohort.CaseControl(recs, scfg.CaseControl, r.cfg.Seed)
	}

	names := r.cfg.Names()
	ds, err := cohort.ToDataset(recs, names...)
	if err != nil {
		return nil, fail(err)
	}
	if ds, err = cohort.Discretize(ds, r.continuous(), scfg.Bins); err != nil {
		return nil, fail(err)
	}
	data, err := structure.NewData(ds, names)
	if err != nil {
		return nil, fail(err)
	}

	sr := &StructureResult{NumObs: data.NumObs()}

	pc := structure.DefaultPCConfig()
	pc.Constraints = scfg.Constraints
	pc.Alpha = scfg.Alpha
	pc.MaxCondSize = scfg.MaxCondSize
	pc.Log = r.log
	if sr.PC, err = structure.PC(data, pc); err != nil {
		return nil, fail(err)
	}

	hc := structure.DefaultHCConfig()
	hc.Constraints = scfg.Constraints
	hc.Log = r.log
	if sr.HC, err = structure.HillClimb(data, hc); err != nil {
		return nil, fail(err)
	}

	sr.PCDiff = structure.Compare(sr.PC, gr.Graph)
	sr.HCDiff = structure.Compare(structure.FromGraph(sr.HC.Graph), gr.Graph)
	r.logf("structure: %d patients\n  PC\n%s  hill climbing\n%s", sr.NumObs, sr.PCDiff, sr.HCDiff)

	return sr, nil
}
