package sem

import (
	"fmt"
	"math"

	"github.com/Valkje/heart-failure/dag"
	"github.com/Valkje/heart-failure/duration"
	"github.com/Valkje/heart-failure/statmodel"
)

// OutcomeHazards fits one proportional hazards regression of the
// survival outcome on all of its parents in the graph, and returns a
// strength for every edge into the outcome whose estimate is the log
// hazard ratio.  The outcome node is the event indicator, and time names
// the follow-up duration.  Ties are handled with the Breslow method.
func OutcomeHazards(g dag.Graph, data statmodel.Dataset, outcome, time string, config *duration.PHRegConfig) ([]Strength, *duration.PHResults, error) {

	pa, err := g.Parents(outcome)
	if err != nil {
		return nil, nil, err
	}
	if len(pa) == 0 {
		return nil, nil, fmt.Errorf("sem: outcome %s has no parents", outcome)
	}

	model, err := duration.NewPHReg(data, time, outcome, pa, config)
	if err != nil {
		return nil, nil, fmt.Errorf("sem: hazards for %s: %w", outcome, err)
	}
	rslt, err := model.Fit()
	if err != nil {
		return nil, nil, fmt.Errorf("sem: hazards for %s: %w", outcome, err)
	}

	params := rslt.Params()
	se := rslt.StdErr()
	pv := rslt.PValues()

	var st []Strength
	for k, na := range pa {
		st = append(st, Strength{
			Parent:   na,
			Child:    outcome,
			Estimate: params[k],
			StdErr:   se[k],
			PValue:   pv[k],
			ResidVar: math.NaN(),
			Method:   MethodPH,
		})
	}

	return st, rslt, nil
}
