package statmodel

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// InterceptName is the name of the constant column added by WithIntercept.
const InterceptName = "icept"

// Scaling records the centering and scaling applied to each standardized
// variable, so that values on the original scale can be mapped onto the
// scale used by a fitted model.
type Scaling struct {
	Mean map[string]float64
	SD   map[string]float64
}

// Apply maps a value of the named variable from its original scale to
// the standardized scale.  Variables that were not standardized are
// returned unchanged.
func (sc Scaling) Apply(name string, x float64) float64 {
	sd, ok := sc.SD[name]
	if !ok {
		return x
	}
	return (x - sc.Mean[name]) / sd
}

// Invert maps a standardized value back to the original scale.
func (sc Scaling) Invert(name string, z float64) float64 {
	sd, ok := sc.SD[name]
	if !ok {
		return z
	}
	return sc.Mean[name] + z*sd
}

// Standardize returns a dataset in which each named variable is centered
// to mean zero and scaled to unit sample standard deviation.  Columns not
// named are shared with the input.  Every model in this module is fit on
// data passed through Standardize with the same variable list, so that
// coefficients have comparable magnitudes.
func Standardize(ds Dataset, names []string) (Dataset, Scaling, error) {

	sc := Scaling{
		Mean: make(map[string]float64),
		SD:   make(map[string]float64),
	}

	out := ds
	for _, na := range names {
		x, ok := ds.Get(na)
		if !ok {
			return Dataset{}, sc, fmt.Errorf("Standardize: variable '%s' not found", na)
		}
		mn, sd := stat.MeanStdDev(x, nil)
		if !(sd > 0) {
			return Dataset{}, sc, fmt.Errorf("Standardize: variable '%s' has zero variance", na)
		}
		z := make([]Dtype, len(x))
		for i, v := range x {
			z[i] = (v - mn) / sd
		}
		sc.Mean[na] = mn
		sc.SD[na] = sd
		out = out.With(na, z)
	}

	return out, sc, nil
}

// WithIntercept returns the dataset with a constant column named
// InterceptName, as needed by the GLM which does not add one itself.
func WithIntercept(ds Dataset) Dataset {
	one := make([]Dtype, ds.NumObs())
	for i := range one {
		one[i] = 1
	}
	return ds.With(InterceptName, one)
}
