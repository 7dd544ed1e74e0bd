package propensity

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/glm"
	"github.com/Valkje/heart-failure/statmodel"
)

// ScoreName is the name of the column holding the propensity score in
// the data passed to the outcome model.
const ScoreName = "pscore"

// Score is a fitted propensity score model.
type Score struct {

	// The exposure and the confounders it is modeled on.
	Exposure   string
	Covariates []string

	// Kind is Continuous or Boolean.
	Kind cohort.Kind

	// Model is the fitted nuisance model.
	Model *glm.GLMResults

	// Mean is the fitted mean of the exposure, a probability for a
	// Boolean exposure.
	Mean []float64

	// SD is the residual standard deviation of a continuous exposure.
	SD float64

	// Values holds the score of each patient's observed exposure.
	Values []float64
}

// Config contains optional settings for fitting the nuisance model.
type Config struct {
	Log *log.Logger
}

// Fit models the exposure on the covariates, with an intercept, using a
// Gaussian linear model for a continuous exposure and a logistic model
// for a Boolean exposure.
func Fit(data statmodel.Dataset, exposure string, covariates []string, kind cohort.Kind, config *Config) (*Score, error) {

	if config == nil {
		config = &Config{}
	}

	x, ok := data.Get(exposure)
	if !ok {
		return nil, fmt.Errorf("propensity: exposure '%s' not found", exposure)
	}
	for _, na := range covariates {
		if na == exposure {
			return nil, fmt.Errorf("propensity: exposure '%s' is also a covariate", na)
		}
	}

	gc := glm.DefaultConfig()
	gc.Log = config.Log
	switch kind {
	case cohort.Continuous:
	case cohort.Boolean:
		gc.Family = glm.NewFamily(glm.BinomialFamily)
	default:
		return nil, fmt.Errorf("propensity: cannot model %s exposure '%s'", kind, exposure)
	}

	xnames := append([]string{statmodel.InterceptName}, covariates...)
	model, err := glm.NewGLM(statmodel.WithIntercept(data), exposure, xnames, gc)
	if err != nil {
		return nil, fmt.Errorf("propensity: %s: %w", exposure, err)
	}
	rslt, err := model.Fit()
	if err != nil {
		return nil, fmt.Errorf("propensity: %s: %w", exposure, err)
	}

	sc := &Score{
		Exposure:   exposure,
		Covariates: append([]string(nil), covariates...),
		Kind:       kind,
		Model:      rslt,
		Mean:       rslt.FittedMean(),
		Values:     make([]float64, len(x)),
	}

	if kind == cohort.Boolean {
		for i, v := range x {
			if v == 1 {
				sc.Values[i] = sc.Mean[i]
			} else {
				sc.Values[i] = 1 - sc.Mean[i]
			}
		}
		return sc, nil
	}

	sc.SD = math.Sqrt(rslt.Scale())
	if !(sc.SD > 0) {
		return nil, fmt.Errorf("propensity: exposure '%s' is fit exactly by its covariates", exposure)
	}
	for i, v := range x {
		sc.Values[i] = distuv.Normal{Mu: sc.Mean[i], Sigma: sc.SD}.Prob(v)
	}

	return sc, nil
}

// With returns the data with the score appended as ScoreName.
func (sc *Score) With(data statmodel.Dataset) statmodel.Dataset {
	return data.With(ScoreName, sc.Values)
}
