package citest

import (
	"fmt"

	"github.com/Valkje/heart-failure/dag"
)

// DefaultAlpha is the significance level below which a claim is
// considered violated.
const DefaultAlpha = 0.05

// Evaluate tests every conditional independence claim of the graph, in
// the order returned by g.Claims.
func Evaluate(g dag.Graph, t *Tester) ([]Result, error) {

	var results []Result
	for _, c := range g.Claims() {
		r, err := t.Test(c)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	return results, nil
}

// Violations returns the results whose p-value is below alpha.
func Violations(results []Result, alpha float64) []Result {

	var v []Result
	for _, r := range results {
		if r.PValue < alpha {
			v = append(v, r)
		}
	}

	return v
}

// Refinement is the outcome of one refinement step.
type Refinement struct {

	// The graph after the edits
	Graph dag.Graph

	// The edges that were added
	Added []dag.Edge

	// All test results for the new graph
	Results []Result

	// The results with p-value below alpha
	Violations []Result
}

// Refine adds the given edges to g, then tests every claim of the new
// graph.  The edges are chosen by the caller, typically to resolve
// violations reported by a previous step, and their direction is taken
// as given.  g is not modified.
func Refine(g dag.Graph, t *Tester, edits []dag.Edge, alpha float64) (*Refinement, error) {

	h, err := g.WithEdges(edits...)
	if err != nil {
		return nil, err
	}

	results, err := Evaluate(h, t)
	if err != nil {
		return nil, err
	}

	return &Refinement{
		Graph:      h,
		Added:      edits,
		Results:    results,
		Violations: Violations(results, alpha),
	}, nil
}

// Replay tests g and then applies the rounds of edits in order, stopping
// as soon as a graph has no violations.  The first returned step tests g
// itself, with no edits.  Rounds that are not reached are not applied.
func Replay(g dag.Graph, t *Tester, rounds [][]dag.Edge, alpha float64) ([]*Refinement, error) {

	step, err := Refine(g, t, nil, alpha)
	if err != nil {
		return nil, err
	}
	steps := []*Refinement{step}

	for k, edits := range rounds {
		if len(step.Violations) == 0 {
			break
		}
		step, err = Refine(step.Graph, t, edits, alpha)
		if err != nil {
			return steps, fmt.Errorf("citest: refinement round %d: %w", k+1, err)
		}
		steps = append(steps, step)
	}

	return steps, nil
}
