package adjust

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/Valkje/heart-failure/duration"
	"github.com/Valkje/heart-failure/statmodel"
)

// DefaultQuantiles are the low, median and high exposure values at which
// curves are drawn, as percentiles.
var DefaultQuantiles = []float64{25, 50, 75}

// Curve is a predicted survival function for one exposure value.
type Curve struct {

	// Percentile of the exposure distribution, and the exposure value.
	Percentile float64
	Exposure   float64

	Time []float64
	Surv []float64

	// Log hazard ratio relative to the baseline, with its standard error.
	LogHazard   float64
	LogHazardSE float64
}

// Label returns a legend label for the curve.
func (c Curve) Label() string {
	return fmt.Sprintf("P%.0f (%.3g)", c.Percentile, c.Exposure)
}

// Curves returns the predicted survival curves of a fitted model at the
// given percentiles of the exposure, which must be the model's first
// covariate.  The other covariates are held at their means.  The model
// must not be stratified.
func Curves(rslt *duration.PHResults, data statmodel.Dataset, percentiles []float64) ([]Curve, error) {

	if len(percentiles) == 0 {
		percentiles = DefaultQuantiles
	}

	names := rslt.Names()
	x, ok := data.Get(names[0])
	if !ok {
		return nil, fmt.Errorf("adjust: exposure '%s' not found", names[0])
	}

	// Covariate means
	fixed := make(map[string]float64)
	cov := make([]float64, len(names))
	for j, na := range names[1:] {
		z, ok := data.Get(na)
		if !ok {
			return nil, fmt.Errorf("adjust: covariate '%s' not found", na)
		}
		m, err := stats.Mean(z)
		if err != nil {
			return nil, err
		}
		cov[j+1] = m
		fixed[na] = m
	}

	var ex []float64
	for _, pc := range percentiles {
		v, err := stats.Percentile(x, pc)
		if err != nil {
			return nil, fmt.Errorf("adjust: percentile %v of %s: %w", pc, names[0], err)
		}
		ex = append(ex, v)
	}
	grid := statmodel.Grid(rslt, map[string][]float64{names[0]: ex}, fixed)

	var curves []Curve
	for i, pc := range percentiles {
		cov[0] = ex[i]
		ti, sp := rslt.PredictSurvival(cov, 0)
		curves = append(curves, Curve{
			Percentile:  pc,
			Exposure:    ex[i],
			Time:        ti,
			Surv:        sp,
			LogHazard:   grid[i].LinPred,
			LogHazardSE: grid[i].SE,
		})
	}

	return curves, nil
}

// Plot draws the curves on one survival plot and saves it.  The format
// is given by the file extension.
func Plot(curves []Curve, title, fname string) error {

	sp := duration.NewSurvfuncRightPlotter().Title(title).Width(5)
	for _, c := range curves {
		sp.AddSteps(c.Time, c.Surv, c.Label())
	}

	return sp.Plot().Save(fname)
}
