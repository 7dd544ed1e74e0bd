package cohort

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/exp/rand"

	"github.com/Valkje/heart-failure/statmodel"
)

// Discretize returns a dataset in which each named variable is replaced
// by its quantile bucket, coded 0, 1, ..., nbins-1.  The cut points are
// the 100k/nbins percentiles, so tied values always share a bucket and
// heavily tied variables may use fewer than nbins levels.  Other columns
// are shared with the input.
func Discretize(ds statmodel.Dataset, names []string, nbins int) (statmodel.Dataset, error) {

	if nbins < 2 {
		return statmodel.Dataset{}, fmt.Errorf("Discretize: need at least two bins, got %d", nbins)
	}

	out := ds
	for _, na := range names {
		x, ok := ds.Get(na)
		if !ok {
			return statmodel.Dataset{}, fmt.Errorf("Discretize: variable '%s' not found", na)
		}

		var cuts []float64
		for k := 1; k < nbins; k++ {
			c, err := stats.Percentile(x, 100*float64(k)/float64(nbins))
			if err != nil {
				return statmodel.Dataset{}, fmt.Errorf("Discretize: variable '%s': %w", na, err)
			}
			cuts = append(cuts, c)
		}

		z := make([]statmodel.Dtype, len(x))
		for i, v := range x {
			// Number of cut points strictly below v
			z[i] = float64(sort.Search(len(cuts), func(j int) bool { return cuts[j] >= v }))
		}
		out = out.With(na, z)
	}

	return out, nil
}

// CaseControl returns all patients with an event together with a random
// sample of the patients without one, ratio controls per case (or all
// controls if there are fewer).  The original order of the records is
// preserved.  The sample depends only on seed.
func CaseControl(recs []Patient, ratio float64, seed uint64) []Patient {

	var cases, controls []int
	for i := range recs {
		if recs[i].Event {
			cases = append(cases, i)
		} else {
			controls = append(controls, i)
		}
	}

	m := int(ratio * float64(len(cases)))
	if m > len(controls) {
		m = len(controls)
	}

	rng := rand.New(rand.NewSource(seed))
	keep := make([]bool, len(recs))
	for _, i := range cases {
		keep[i] = true
	}
	for _, j := range rng.Perm(len(controls))[0:m] {
		keep[controls[j]] = true
	}

	var out []Patient
	for i := range recs {
		if keep[i] {
			out = append(out, recs[i])
		}
	}

	return out
}
