package propensity

import (
	"fmt"
	"log"
	"math"

	"github.com/montanaflynn/stats"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/Valkje/heart-failure/adjust"
	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/duration"
	"github.com/Valkje/heart-failure/glm"
	"github.com/Valkje/heart-failure/statmodel"
)

// TreatedName is the name of the dichotomized exposure in the matched data.
const TreatedName = "treated"

// MatchConfig contains settings for Match.
type MatchConfig struct {

	// Threshold dichotomizes a continuous exposure, values strictly
	// above it are treated.  If nil the median is used.
	Threshold *float64

	// Caliper is the largest allowed distance between the logits of
	// a matched pair, in standard deviations of the logit.  Zero means
	// no caliper.
	Caliper float64

	// Seed determines the order in which treated patients are matched.
	Seed uint64

	// PH configures the outcome model.
	PH *duration.PHRegConfig

	Log *log.Logger
}

// DefaultMatchConfig returns the default settings, with no caliper.
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Seed: 1,
	}
}

// Balance is the standardized mean difference of one covariate between
// the treated and control groups, with its 95% confidence interval,
// before and after matching.
type Balance struct {
	Variable string

	Before, BeforeLCB, BeforeUCB float64
	After, AfterLCB, AfterUCB    float64
}

// Improved reports whether matching reduced the imbalance.
func (b Balance) Improved() bool {
	return math.Abs(b.After) <= math.Abs(b.Before)
}

// Pair is one matched treated and control patient, as row indices of
// the data.
type Pair struct {
	Treated int
	Control int

	// Distance between the logits
	Distance float64
}

// MatchResult holds the matched sample and its diagnostics.
type MatchResult struct {

	// The threshold used to dichotomize the exposure, NaN for a
	// Boolean exposure.
	Threshold float64

	Pairs []Pair

	// Unmatched lists treated patients for whom no control was
	// available within the caliper.
	Unmatched []int

	// Logit is the logit of the treatment probability per patient.
	Logit []float64

	Balance []Balance

	// Estimate is the outcome model refit on the matched patients.
	Estimate *adjust.Estimate
}

// Match pairs each treated patient with the nearest unused control on
// the logit of the treatment probability and refits the outcome model on
// the matched sample.  kind is the kind of the exposure; a continuous
// exposure is first dichotomized.
func Match(data statmodel.Dataset, exposure string, kind cohort.Kind, covariates []string, outcome, time string, config *MatchConfig) (*MatchResult, error) {

	if config == nil {
		config = DefaultMatchConfig()
	}

	x, ok := data.Get(exposure)
	if !ok {
		return nil, fmt.Errorf("propensity: exposure '%s' not found", exposure)
	}

	mr := &MatchResult{Threshold: math.NaN()}

	trt := make([]float64, len(x))
	switch kind {
	case cohort.Boolean:
		copy(trt, x)
	case cohort.Continuous:
		if config.Threshold != nil {
			mr.Threshold = *config.Threshold
		} else {
			med, err := stats.Median(x)
			if err != nil {
				return nil, fmt.Errorf("propensity: median of %s: %w", exposure, err)
			}
			mr.Threshold = med
		}
		for i, v := range x {
			if v > mr.Threshold {
				trt[i] = 1
			}
		}
	default:
		return nil, fmt.Errorf("propensity: cannot match on %s exposure '%s'", kind, exposure)
	}

	var treated, control []int
	for i, v := range trt {
		if v == 1 {
			treated = append(treated, i)
		} else {
			control = append(control, i)
		}
	}
	if len(treated) == 0 || len(control) == 0 {
		return nil, fmt.Errorf("propensity: %s does not separate treated from control patients", exposure)
	}

	data = data.With(TreatedName, trt)
	sc, err := Fit(data, TreatedName, covariates, cohort.Boolean, &Config{Log: config.Log})
	if err != nil {
		return nil, err
	}

	mr.Logit = make([]float64, len(trt))
	for i, p := range sc.Mean {
		mr.Logit[i] = glm.Logit(p)
	}

	caliper := math.Inf(1)
	if config.Caliper > 0 {
		caliper = config.Caliper * stat.StdDev(mr.Logit, nil)
	}

	rng := rand.New(rand.NewSource(config.Seed))
	used := make([]bool, len(control))
	for _, k := range rng.Perm(len(treated)) {
		i := treated[k]
		best, bd := -1, math.Inf(1)
		for j, c := range control {
			if used[j] {
				continue
			}
			d := math.Abs(mr.Logit[i] - mr.Logit[c])
			if d < bd {
				best, bd = j, d
			}
		}
		if best == -1 || bd > caliper {
			mr.Unmatched = append(mr.Unmatched, i)
			continue
		}
		used[best] = true
		mr.Pairs = append(mr.Pairs, Pair{Treated: i, Control: control[best], Distance: bd})
	}

	if config.Log != nil {
		config.Log.Printf("Match: %d pairs, %d treated unmatched\n", len(mr.Pairs), len(mr.Unmatched))
	}
	if len(mr.Pairs) == 0 {
		return nil, fmt.Errorf("propensity: no matches for %s within the caliper", exposure)
	}

	var mt, mc []int
	for _, pr := range mr.Pairs {
		mt = append(mt, pr.Treated)
		mc = append(mc, pr.Control)
	}

	for _, na := range covariates {
		z := data.MustGet(na)
		b := Balance{Variable: na}
		b.Before, b.BeforeLCB, b.BeforeUCB = SMD(z, treated, control)
		b.After, b.AfterLCB, b.AfterUCB = SMD(z, mt, mc)
		mr.Balance = append(mr.Balance, b)
	}

	matched := data.Rows(append(mt, mc...))
	mr.Estimate, err = adjust.Fit(matched, TreatedName, outcome, time, nil, config.PH)
	if err != nil {
		return nil, err
	}

	return mr, nil
}

// SMD returns the standardized mean difference of z between the rows in
// g1 and g0, using the pooled standard deviation, with a 95% confidence
// interval.
func SMD(z []float64, g1, g0 []int) (d, lcb, ucb float64) {

	sel := func(ix []int) []float64 {
		y := make([]float64, len(ix))
		for i, k := range ix {
			y[i] = z[k]
		}
		return y
	}

	m1, v1 := stat.MeanVariance(sel(g1), nil)
	m0, v0 := stat.MeanVariance(sel(g0), nil)
	if len(g1) < 2 {
		v1 = 0
	}
	if len(g0) < 2 {
		v0 = 0
	}

	s := math.Sqrt((v1 + v0) / 2)
	if s == 0 {
		return 0, 0, 0
	}
	d = (m1 - m0) / s

	n1, n0 := float64(len(g1)), float64(len(g0))
	se := math.Sqrt((n1+n0)/(n1*n0) + d*d/(2*(n1+n0)))

	return d, d - 1.959964*se, d + 1.959964*se
}
