package propensity

import (
	"errors"
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Valkje/heart-failure/adjust"
	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/duration"
	"github.com/Valkje/heart-failure/statmodel"
)

// WeightName is the name of the column of case weights passed to the
// outcome model.
const WeightName = "ipw"

// DefaultMaxWeight is the default sanity bound above which a weight is
// flagged.
const DefaultMaxWeight = 10

// ErrDegenerateWeights is returned when some weights are not positive
// and finite.
var ErrDegenerateWeights = errors.New("degenerate weights")

// WeightError lists the patients, as row indices, whose weights are
// degenerate.
type WeightError struct {
	Patients []int
}

func (e *WeightError) Error() string {
	return fmt.Sprintf("propensity: %v for patients %v", ErrDegenerateWeights, e.Patients)
}

func (e *WeightError) Unwrap() error {
	return ErrDegenerateWeights
}

// WeightConfig contains settings for Weights.
type WeightConfig struct {

	// MaxWeight is the sanity bound for flagging large weights.
	MaxWeight float64

	// PH configures the weighted outcome model.
	PH *duration.PHRegConfig

	Log *log.Logger
}

// DefaultWeightConfig returns the default settings.
func DefaultWeightConfig() *WeightConfig {
	return &WeightConfig{
		MaxWeight: DefaultMaxWeight,
	}
}

// IPW holds stabilized inverse probability weights.
type IPW struct {
	Weights []float64

	// Flagged lists the patients whose weights exceed the bound.
	Flagged []int

	// MaxWeight is the bound used for flagging.
	MaxWeight float64
}

// Weights returns the stabilized weights, the marginal probability or
// density of each patient's exposure divided by its propensity score.
// The marginal model of a continuous exposure is normal with the
// sample mean and standard deviation.
func Weights(data statmodel.Dataset, sc *Score, config *WeightConfig) (*IPW, error) {

	if config == nil {
		config = DefaultWeightConfig()
	}

	x := data.MustGet(sc.Exposure)
	if len(x) != len(sc.Values) {
		msg := fmt.Sprintf("Weights: %d observations but %d scores\n", len(x), len(sc.Values))
		panic(msg)
	}

	var marginal func(float64) float64
	switch sc.Kind {
	case cohort.Boolean:
		p := stat.Mean(x, nil)
		marginal = func(v float64) float64 {
			if v == 1 {
				return p
			}
			return 1 - p
		}
	default:
		mn, sd := stat.MeanStdDev(x, nil)
		d := distuv.Normal{Mu: mn, Sigma: sd}
		marginal = d.Prob
	}

	ipw := &IPW{
		Weights:   make([]float64, len(x)),
		MaxWeight: config.MaxWeight,
	}

	var bad []int
	for i, v := range x {
		w := marginal(v) / sc.Values[i]
		ipw.Weights[i] = w
		switch {
		case math.IsNaN(w) || math.IsInf(w, 0) || w <= 0:
			bad = append(bad, i)
		case config.MaxWeight > 0 && w > config.MaxWeight:
			ipw.Flagged = append(ipw.Flagged, i)
		}
	}

	if config.Log != nil && len(ipw.Flagged) > 0 {
		config.Log.Printf("Weights: %d weights above %v for patients %v\n", len(ipw.Flagged), ipw.MaxWeight, ipw.Flagged)
	}

	if len(bad) > 0 {
		return ipw, &WeightError{Patients: bad}
	}

	return ipw, nil
}

// Weighted refits the outcome on the exposure alone, with the stabilized
// weights as case weights.
func Weighted(data statmodel.Dataset, exposure, outcome, time string, ipw *IPW, config *WeightConfig) (*adjust.Estimate, error) {

	if config == nil {
		config = DefaultWeightConfig()
	}

	var pc duration.PHRegConfig
	if config.PH != nil {
		pc = *config.PH
	} else {
		pc = *duration.DefaultPHRegConfig()
	}
	pc.WeightVar = WeightName

	return adjust.Fit(data.With(WeightName, ipw.Weights), exposure, outcome, time, nil, &pc)
}
