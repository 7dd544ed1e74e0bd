package duration

import (
	"fmt"
	"math"
	"sort"
)

// Concordance calculates the survival concordance of Uno et al.
// (https://www.ncbi.nlm.nih.gov/pmc/articles/PMC3079915), which
// reweights comparable pairs by the inverse squared probability of
// remaining uncensored.  All comparable pairs are used.
type Concordance struct {

	// The risk scores that are being assessed
	score []float64

	// Event or censoring time
	time []float64

	// Event status
	status []float64

	// The survival function for the censoring distribution
	sf *SurvfuncRight
}

// NewConcordance creates a new Concordance value.  The data are copied
// and sorted by time.
func NewConcordance(time, status, score []float64) (*Concordance, error) {

	n := len(time)
	if len(status) != n || len(score) != n {
		return nil, fmt.Errorf("Concordance: time, status and score have different lengths")
	}

	ii := make([]int, n)
	for i := range ii {
		ii[i] = i
	}
	sort.SliceStable(ii, func(a, b int) bool { return time[ii[a]] < time[ii[b]] })

	c := &Concordance{
		time:   make([]float64, n),
		status: make([]float64, n),
		score:  make([]float64, n),
	}

	// Reversing the status gives the survival function for censoring.
	statusr := make([]float64, n)
	ncens := 0.0
	for i, j := range ii {
		c.time[i] = time[j]
		c.status[i] = status[j]
		c.score[i] = score[j]
		statusr[i] = 1 - status[j]
		ncens += statusr[i]
	}

	if ncens == 0 {
		// No censoring, create a censoring survival function
		// with P(T>t) = 1 for all t.
		c.sf = &SurvfuncRight{
			times:    []float64{0, math.Inf(1)},
			survProb: []float64{1, 1},
		}
		return c, nil
	}

	var err error
	c.sf, err = NewSurvfuncRightFromSlices(c.time, statusr, nil, nil)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Concordance returns the concordance statistic, using the given truncation
// time.
func (c *Concordance) Concordance(trunc float64) (float64, error) {

	jt := sort.SearchFloat64s(c.time, trunc)
	if jt <= 0 {
		return 0, fmt.Errorf("Concordance: not enough data below truncation point %v", trunc)
	}

	var numer, denom float64
	for j1 := 0; j1 < jt; j1++ {
		if c.status[j1] != 1 {
			continue
		}

		// The censoring survival just before time[j1]
		g := c.sf.SurvProbAt(math.Nextafter(c.time[j1], math.Inf(-1)))
		if g <= 0 {
			continue
		}
		w := 1 / (g * g)

		for j2 := j1 + 1; j2 < len(c.time); j2++ {
			if c.time[j2] <= c.time[j1] {
				continue
			}
			denom += w
			switch {
			case c.score[j1] > c.score[j2]:
				numer += w
			case c.score[j1] == c.score[j2]:
				numer += w / 2
			}
		}
	}

	if denom == 0 {
		return 0, fmt.Errorf("Concordance: no comparable pairs")
	}

	return numer / denom, nil
}

// HarrellC returns Harrell's concordance index: among pairs where the
// shorter time is an event, the proportion in which the case with the
// shorter time has the higher score.  Tied scores count one half.
func HarrellC(time, status, score []float64) float64 {

	var numer, denom float64
	for i := range time {
		if status[i] != 1 {
			continue
		}
		for j := range time {
			if time[j] <= time[i] {
				continue
			}
			denom++
			switch {
			case score[i] > score[j]:
				numer++
			case score[i] == score[j]:
				numer += 0.5
			}
		}
	}

	if denom == 0 {
		return math.NaN()
	}

	return numer / denom
}
