package propensity

import (
	"github.com/Valkje/heart-failure/adjust"
	"github.com/Valkje/heart-failure/duration"
	"github.com/Valkje/heart-failure/statmodel"
)

// Covariate fits the outcome on the exposure and the propensity score.
// The score is standardized like every other continuous covariate.
func Covariate(data statmodel.Dataset, sc *Score, outcome, time string, config *duration.PHRegConfig) (*adjust.Estimate, error) {

	ds, _, err := statmodel.Standardize(sc.With(data), []string{ScoreName})
	if err != nil {
		return nil, err
	}

	return adjust.Fit(ds, sc.Exposure, outcome, time, []string{ScoreName}, config)
}
