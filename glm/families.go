package glm

import (
	"fmt"
	"math"

	"github.com/Valkje/heart-failure/statmodel"
)

// FamilyType is the type of GLM family used in a model.
type FamilyType uint8

// BinomialFamily and GaussianFamily are families for a GLM.
const (
	BinomialFamily FamilyType = iota
	GaussianFamily
)

// LogLikeFunc evaluates and returns the log-likelihood for a GLM.  The arguments
// are the data, the mean values, the weights, the scale parameter, and the 'exact flag'.
// If the exact flag is false, multiplicative factors that are constant with respect to
// the mean may be omitted.  The weights may be nil in which case all weights are taken to be 1.
type LogLikeFunc func([]statmodel.Dtype, []float64, []statmodel.Dtype, float64, bool) float64

// DevianceFunc evaluates and returns the deviance for a GLM.  The arguments
// are the data, the mean values, the weights, and the scale parameter.  The weights
// may be nil in which case all weights are taken to be 1.
type DevianceFunc func([]statmodel.Dtype, []float64, []statmodel.Dtype, float64) float64

// Family represents a generalized linear model family.
type Family struct {

	// The name of the family
	Name string

	// The numeric code for the family
	TypeCode FamilyType

	// The log-likelihood function for the family
	LogLike LogLikeFunc

	// The deviance function for the family
	Deviance DevianceFunc

	// If true the scale parameter is fixed at 1, otherwise it is
	// estimated from the Pearson residuals.
	dispersionFixed bool

	// The valid links for this family.  The first listed link is the
	// canonical link.
	validLinks []LinkType

	// The variance of an observation as a function of its mean, up to
	// the scale parameter.
	variance *Variance
}

// Variance represents a GLM variance function and its derivative with
// respect to the mean.
type Variance struct {
	Name  string
	Var   VecFunc
	Deriv VecFunc
}

var binomialVariance = Variance{
	Name:  "Binomial",
	Var:   elementwise(func(p float64) float64 { return p * (1 - p) }),
	Deriv: elementwise(func(p float64) float64 { return 1 - 2*p }),
}

var constantVariance = Variance{
	Name:  "Constant",
	Var:   elementwise(func(float64) float64 { return 1 }),
	Deriv: elementwise(func(float64) float64 { return 0 }),
}

// NewFamily returns the family object corresponding to the given type.
func NewFamily(fam FamilyType) *Family {

	switch fam {
	case BinomialFamily:
		return &binomial
	case GaussianFamily:
		return &gaussian
	default:
		msg := fmt.Sprintf("Unknown family: %v\n", fam)
		panic(msg)
	}
}

var binomial = Family{
	Name:            "Binomial",
	TypeCode:        BinomialFamily,
	LogLike:         binomialLogLike,
	Deviance:        binomialDeviance,
	validLinks:      []LinkType{LogitLink},
	variance:        &binomialVariance,
	dispersionFixed: true,
}

var gaussian = Family{
	Name:       "Gaussian",
	TypeCode:   GaussianFamily,
	LogLike:    gaussianLogLike,
	Deviance:   gaussianDeviance,
	validLinks: []LinkType{IdentityLink},
	variance:   &constantVariance,
}

// IsValidLink returns true or false based on whether the link is
// valid for the family.
func (fam *Family) IsValidLink(link *Link) bool {

	for _, q := range fam.validLinks {
		if link.TypeCode == q {
			return true
		}
	}

	return false
}

func binomialLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {
	var ll float64
	var w float64 = 1
	for i := range y {
		if wt != nil {
			w = wt[i]
		}
		r := mn[i]/(1-mn[i]) + 1e-200
		ll += w * (y[i]*math.Log(r) + math.Log(1-mn[i]))
	}
	return ll
}

func gaussianLogLike(y []statmodel.Dtype, mn []float64, wt []statmodel.Dtype, scale float64, exact bool) float64 {
	var ll float64
	var w float64 = 1
	var ws float64
	for i := range y {
		if wt != nil {
			w = wt[i]
		}
		r := y[i] - mn[i]
		ll -= w * r * r / (2 * scale)
		ws += w
	}
	if exact {
		ll -= ws * math.Log(2*math.Pi*scale) / 2
	}
	return ll
}

func binomialDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	var w float64 = 1

	for i := range y {
		if wgt != nil {
			w = wgt[i]
		}

		dev -= 2 * w * (y[i]*math.Log(mn[i]) + (1-y[i])*math.Log(1-mn[i]))
	}

	return dev
}

func gaussianDeviance(y []statmodel.Dtype, mn []float64, wgt []statmodel.Dtype, scale float64) float64 {

	var dev float64
	var w float64 = 1

	for i := range y {
		if wgt != nil {
			w = wgt[i]
		}

		r := y[i] - mn[i]
		dev += w * r * r
	}

	return dev / scale
}
