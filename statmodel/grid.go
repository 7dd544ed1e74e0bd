package statmodel

import (
	"fmt"
	"math"
	"strings"
)

// advance takes a variable base representation of an integer and adds one to it.
// The arrays nvals and ix should have the same length, and the allowed values in
// ix[j] are 0, 1, ..., nvals[j]-1.
func advance(ix []int, nvals []int) bool {

	for j := range ix {
		if ix[j] < nvals[j]-1 {
			ix[j]++
			return false
		}
		ix[j] = 0
	}
	return true
}

// GridName describes the varied coordinates of a grid point.
type GridName struct {

	// The variable names
	names []string

	// The values of the variables
	vals []float64
}

// Value returns the value of the named varied variable at this grid point.
func (gn GridName) Value(name string) (float64, bool) {
	for i, na := range gn.names {
		if na == name {
			return gn.vals[i], true
		}
	}
	return 0, false
}

func (gn GridName) String() string {
	var b []string
	for i, na := range gn.names {
		b = append(b, fmt.Sprintf("%s=%.3g", na, gn.vals[i]))
	}
	return strings.Join(b, ", ")
}

// GridPoint is the fitted linear predictor of a regression model, with
// its standard error, at one point of the covariate space.
type GridPoint struct {

	// The varied coordinates of the point
	Name GridName

	// The fitted linear predictor
	LinPred float64

	// The standard error of the fitted linear predictor
	SE float64

	// The point in the covariate space, in the order of the model's
	// covariates
	Vec []float64
}

// Grid returns the fitted linear predictor of rslt at every combination of
// the values in points.  points maps covariate names to the values at which
// they are fixed; covariates not in points are held at their value in
// fixed (typically the covariate means, which are zero after
// Standardize).
func Grid(rslt BaseResultser, points map[string][]float64, fixed map[string]float64) []*GridPoint {

	names := rslt.Names()

	var arx [][]float64
	var np []int
	for _, na := range names {
		v, ok := points[na]
		if !ok {
			v = []float64{fixed[na]}
		}
		arx = append(arx, v)
		np = append(np, len(v))
	}

	params := rslt.Params()
	cov := rslt.VCov()
	p := len(names)

	var gp []*GridPoint
	ix := make([]int, p)
	for {
		r := &GridPoint{Vec: make([]float64, p)}
		for j, na := range names {
			v := arx[j][ix[j]]
			r.Vec[j] = v
			if _, ok := points[na]; ok {
				r.Name.names = append(r.Name.names, na)
				r.Name.vals = append(r.Name.vals, v)
			}
		}

		var va float64
		for j1 := 0; j1 < p; j1++ {
			r.LinPred += params[j1] * r.Vec[j1]
			if cov == nil {
				continue
			}
			for j2 := 0; j2 < p; j2++ {
				va += r.Vec[j1] * cov[p*j1+j2] * r.Vec[j2]
			}
		}
		r.SE = math.Sqrt(va)
		if cov == nil {
			r.SE = math.NaN()
		}
		gp = append(gp, r)

		if advance(ix, np) {
			break
		}
	}

	return gp
}
