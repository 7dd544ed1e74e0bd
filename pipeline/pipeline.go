// Package pipeline runs the analysis stages in sequence: cohort
// preparation, graph testing and refinement, edge strengths, confounding
// adjustment, and the propensity score and structure learning checks.
// Each stage reads the results of the previous ones and never modifies
// them.
package pipeline

import (
	"fmt"
	"log"

	"github.com/Valkje/heart-failure/adjust"
	"github.com/Valkje/heart-failure/citest"
	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/dag"
	"github.com/Valkje/heart-failure/propensity"
	"github.com/Valkje/heart-failure/sem"
	"github.com/Valkje/heart-failure/statmodel"
	"github.com/Valkje/heart-failure/structure"
)

// Stage names a step of the analysis.
type Stage string

// The stages, in the order they are run.
const (
	StageCohort     Stage = "cohort"
	StageGraph      Stage = "graph"
	StageStrength   Stage = "strength"
	StageAdjust     Stage = "adjust"
	StagePropensity Stage = "propensity"
	StageStructure  Stage = "structure"
	StageReport     Stage = "report"
)

// StageError reports the failure of a stage, with the variable being
// processed if there is one.
type StageError struct {
	Stage    Stage
	Variable string
	Err      error
}

func (e *StageError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("pipeline: %s: %s: %v", e.Stage, e.Variable, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Config contains optional settings for a run.
type Config struct {

	// Log receives progress messages from every stage, if not nil.
	Log *log.Logger

	// NoArtifacts skips writing the run directory.
	NoArtifacts bool
}

// CohortResult is the output of the cohort preparation stage.
type CohortResult struct {

	// Table holds the censoring counts of every candidate cutoff.
	Table []cohort.Counts

	Cutoff int

	// Loaded holds every patient read, before the cutoff is applied.
	Loaded []cohort.Patient

	// Patients kept after the cutoff
	Patients []cohort.Patient

	// Data holds the graph variables and the follow-up time of the
	// kept patients, with continuous variables standardized.
	Data    statmodel.Dataset
	Scaling statmodel.Scaling
}

// GraphResult is the output of the graph testing stage.
type GraphResult struct {

	// Initial is the literature graph as configured.
	Initial dag.Graph

	// Rounds holds the tests of the initial graph followed by one
	// entry per refinement round that was applied.
	Rounds []*citest.Refinement

	// Graph is the refined graph.
	Graph dag.Graph
}

// StrengthResult is the output of the edge strength stage.
type StrengthResult struct {
	Partial []sem.Strength
	SEM     *sem.Results

	// Hazards are the proportional hazards strengths of the edges into
	// the outcome.
	Hazards []sem.Strength

	// Strengths are the SEM strengths with the hazards substituted.
	Strengths []sem.Strength

	Pruned dag.Graph
	Prune  *sem.PruneReport
}

// AdjustResult is the output of the confounding adjustment stage.
type AdjustResult struct {
	Set        []string
	Comparison *adjust.Comparison
	Curves     []adjust.Curve
}

// PropensityResult is the output of the propensity score stage.
type PropensityResult struct {
	Covariates []string
	Score      *propensity.Score
	Covariate  *adjust.Estimate
	Match      *propensity.MatchResult
	IPW        *propensity.IPW
	Weighted   *adjust.Estimate
}

// StructureResult is the output of the structure learning stage.
type StructureResult struct {
	NumObs int
	PC     *structure.Pattern
	HC     *structure.HCResult
	PCDiff *structure.Diff
	HCDiff *structure.Diff
}

// Result holds the outputs of every stage.
type Result struct {
	RunID string

	// Dir is the directory holding the artifacts, empty if none were
	// written.
	Dir string

	Cohort     *CohortResult
	Graph      *GraphResult
	Strength   *StrengthResult
	Adjust     *AdjustResult
	Propensity *PropensityResult

	// Structure is nil if structure learning is disabled.
	Structure *StructureResult
}
