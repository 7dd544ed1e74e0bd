// Package adjust compares the unadjusted effect of an exposure on a
// survival outcome with the effect adjusted for a back-door set, and
// draws predicted survival curves for representative exposure values.
package adjust

import (
	"fmt"
	"math"

	"github.com/Valkje/heart-failure/duration"
	"github.com/Valkje/heart-failure/statmodel"
)

// Estimate is the fitted effect of the exposure in one proportional
// hazards model.
type Estimate struct {

	// The covariates of the model, the exposure first.
	Covariates []string

	// Coef is the log hazard ratio for a one unit increase of the
	// exposure, with its standard error and p-value.
	Coef   float64
	StdErr float64
	PValue float64

	// HR is the hazard ratio with its 95% confidence interval.
	HR, LCB, UCB float64

	// Concordance is Harrell's concordance of the model's linear
	// predictor.
	Concordance float64

	// Results are the fitted model.
	Results *duration.PHResults
}

func (e *Estimate) String() string {
	return fmt.Sprintf("coef=%.4f se=%.4f p=%.4g HR=%.3f (%.3f, %.3f) C=%.3f",
		e.Coef, e.StdErr, e.PValue, e.HR, e.LCB, e.UCB, e.Concordance)
}

// Comparison holds the unadjusted and adjusted estimates.
type Comparison struct {
	Exposure string
	Outcome  string

	// The adjustment set
	Adjust []string

	Unadjusted *Estimate
	Adjusted   *Estimate

	// Confounded is true when the two coefficients differ by more than
	// each of their standard errors.
	Confounded bool
}

// Config contains optional settings for Compare.
type Config struct {

	// PH configures the proportional hazards fits.  The same settings
	// are used for both models.
	PH *duration.PHRegConfig
}

// Compare fits a proportional hazards regression of the outcome on the
// exposure alone, and another on the exposure and the adjustment set z.
// outcome is the event indicator and time the follow-up duration.
func Compare(data statmodel.Dataset, exposure, outcome, time string, z []string, config *Config) (*Comparison, error) {

	if config == nil {
		config = &Config{}
	}

	for _, na := range z {
		if na == exposure || na == outcome || na == time {
			return nil, fmt.Errorf("adjust: %s cannot be in the adjustment set", na)
		}
	}

	un, err := Fit(data, exposure, outcome, time, nil, config.PH)
	if err != nil {
		return nil, err
	}

	ad, err := Fit(data, exposure, outcome, time, z, config.PH)
	if err != nil {
		return nil, err
	}

	d := math.Abs(un.Coef - ad.Coef)

	return &Comparison{
		Exposure:   exposure,
		Outcome:    outcome,
		Adjust:     append([]string(nil), z...),
		Unadjusted: un,
		Adjusted:   ad,
		Confounded: d > un.StdErr && d > ad.StdErr,
	}, nil
}

// Fit fits a proportional hazards regression of the outcome on the
// exposure and the covariates z, and returns the exposure's estimate.
func Fit(data statmodel.Dataset, exposure, outcome, time string, z []string, config *duration.PHRegConfig) (*Estimate, error) {

	xnames := append([]string{exposure}, z...)
	model, err := duration.NewPHReg(data, time, outcome, xnames, config)
	if err != nil {
		return nil, fmt.Errorf("adjust: %s on %v: %w", outcome, xnames, err)
	}
	rslt, err := model.Fit()
	if err != nil {
		return nil, fmt.Errorf("adjust: %s on %v: %w", outcome, xnames, err)
	}

	hr, lcb, ucb, _ := rslt.HazardRatio(exposure)

	return &Estimate{
		Covariates:  xnames,
		Coef:        rslt.Params()[0],
		StdErr:      rslt.StdErr()[0],
		PValue:      rslt.PValues()[0],
		HR:          hr,
		LCB:         lcb,
		UCB:         ucb,
		Concordance: rslt.Concordance(),
		Results:     rslt,
	}, nil
}
