// Package duration supports statistical analysis of duration data
// (survival analysis): proportional hazards regression, Kaplan-Meier
// survival function estimation, and concordance.
package duration

import (
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/Valkje/heart-failure/statmodel"
)

// PHParameter contains a parameter value for a proportional hazards
// regression model.
type PHParameter struct {
	coeff []float64
}

// GetCoeff returns the array of model coefficients from a parameter value.
func (p *PHParameter) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the array of model coefficients for a parameter value.
func (p *PHParameter) SetCoeff(x []float64) {
	p.coeff = x
}

// Clone returns a deep copy of the parameter value.
func (p *PHParameter) Clone() statmodel.Parameter {
	q := make([]float64, len(p.coeff))
	copy(q, p.coeff)
	return &PHParameter{q}
}

// PHReg describes a proportional hazards regression model for right
// censored data.
type PHReg struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit
	data [][]statmodel.Dtype

	// Starting values, optional
	start []float64

	// Position of the event variable
	statuspos int

	// Position of the time variable
	timepos int

	// Position of the entry time variable
	entrypos int

	// Position of an offset variable
	offsetpos int

	// Position of a case weight variable
	weightpos int

	// Position of a stratum variable
	stratapos int

	// Start and end position of the strata
	stratumix [][2]int

	// The sorted times at which events occur in each stratum
	etimes [][]float64

	// enter[i][j] are the row indices that enter the risk set at
	// the jth distinct time in stratum i
	enter [][][]int

	// event[i][j] are the row indices that have an event at
	// the jth distinct time in stratum i
	event [][][]int

	// exit[i][j] are the row indices that exit the risk set at
	// the jth distinct time in stratum i
	exit [][][]int

	// The sum of covariates with events in each stratum
	sumx [][]float64

	// The positions of the covariates in data
	xpos []int

	// If skip[i] is true, case i is skipped since it is censored before the first event.
	skip []bool

	// The number of cases that are skipped because they are censored before the first event
	skipEarlyCensor int

	// Optimization settings
	optsettings *optimize.Settings

	// Optimization method
	optmethod optimize.Method

	log *log.Logger

	nslices [][]float64
}

// NumObs returns the number of observations in the data set.
func (ph *PHReg) NumObs() int {
	return len(ph.data[0])
}

// NumParams returns the number of model parameters (regression coefficients).
func (ph *PHReg) NumParams() int {
	return len(ph.xpos)
}

// Dataset returns the data columns that are used to fit the model.
func (ph *PHReg) Dataset() [][]statmodel.Dtype {
	return ph.data
}

// Xpos return the positions of the covariates in the model's data.
func (ph *PHReg) Xpos() []int {
	return ph.xpos
}

// PHRegConfig defines configuration parameters for a proportional hazards regression.
type PHRegConfig struct {

	// A logger to which logging information is written
	Log *log.Logger

	// Start contains starting values for the regression parameter estimates
	Start []float64

	// WeightVar is the name of the variable for weighting the cases, if an empty
	// string, all weights are equal to 1.
	WeightVar string

	// OffsetVar is the name of a variable that defines an offset.
	OffsetVar string

	// StrataVar is the name of a variable that defines strata.
	StrataVar string

	// EntryVar is the name of a variable that defines entry (left truncation) times.
	EntryVar string

	// OptMethod is the Gonum optimization used to fit the model.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultPHRegConfig returns a default configuration struct for a proportional hazards regression.
func DefaultPHRegConfig() *PHRegConfig {

	return &PHRegConfig{
		OptMethod: &optimize.BFGS{
			Linesearcher: &optimize.MoreThuente{},
		},
	}
}

// NewPHReg returns a PHReg value that can be used to fit a
// proportional hazards regression model.  If strata are used the data
// are copied before being sorted by stratum, so the caller's columns
// are never reordered.
func NewPHReg(data statmodel.Dataset, time, status string, predictors []string, config *PHRegConfig) (*PHReg, error) {

	if config == nil {
		config = DefaultPHRegConfig()
	}

	if config.StrataVar != "" {
		data = data.Copy()
	}

	timepos := data.Pos(time)
	if timepos == -1 {
		return nil, fmt.Errorf("Time variable '%s' not found in dataset", time)
	}

	statuspos := data.Pos(status)
	if statuspos == -1 {
		return nil, fmt.Errorf("Status variable '%s' not found in dataset", status)
	}

	var xpos []int
	for _, xna := range predictors {
		xp := data.Pos(xna)
		if xp == -1 {
			return nil, fmt.Errorf("Predictor '%s' not found in dataset", xna)
		}
		xpos = append(xpos, xp)
	}
	if len(xpos) == 0 {
		return nil, fmt.Errorf("PHReg: no predictors")
	}

	getpos := func(vn string) (int, error) {
		if vn == "" {
			return -1, nil
		}
		loc := data.Pos(vn)
		if loc == -1 {
			return -1, fmt.Errorf("PHReg: variable '%s' not found in dataset", vn)
		}
		return loc, nil
	}

	var pos [4]int
	for j, vn := range []string{config.WeightVar, config.StrataVar, config.OffsetVar, config.EntryVar} {
		var err error
		if pos[j], err = getpos(vn); err != nil {
			return nil, err
		}
	}

	if config.Start != nil && len(config.Start) != len(xpos) {
		return nil, fmt.Errorf("PHReg: %d starting values for %d predictors", len(config.Start), len(xpos))
	}

	ph := &PHReg{
		data:        data.Data(),
		varnames:    data.Names(),
		timepos:     timepos,
		statuspos:   statuspos,
		xpos:        xpos,
		weightpos:   pos[0],
		stratapos:   pos[1],
		offsetpos:   pos[2],
		entrypos:    pos[3],
		start:       config.Start,
		log:         config.Log,
		optsettings: config.OptSettings,
		optmethod:   config.OptMethod,
	}

	if err := ph.init(); err != nil {
		return nil, err
	}

	return ph, nil
}

func (ph *PHReg) init() error {
	ph.sortByStratum()
	if err := ph.setupTimes(); err != nil {
		return err
	}
	ph.setupCovs()
	return nil
}

func (a argsort) Len() int {
	return len(a.s)
}

func (a argsort) Swap(i, j int) {
	a.s[i], a.s[j] = a.s[j], a.s[i]
	a.inds[i], a.inds[j] = a.inds[j], a.inds[i]
}

func (a argsort) Less(i, j int) bool {
	return a.s[i] < a.s[j]
}

type argsort struct {
	s    []statmodel.Dtype
	inds []int
}

func (ph *PHReg) sortByStratum() {

	time := ph.data[ph.timepos]
	nobs := len(time)

	if ph.stratapos == -1 {
		ph.stratumix = [][2]int{{0, nobs}}
		return
	}

	strata := ph.data[ph.stratapos]

	inds := make([]int, nobs)
	for i := range inds {
		inds[i] = i
	}
	sort.Stable(argsort{s: strata, inds: inds})

	tmp := make([]statmodel.Dtype, nobs)

	re := func(pos int) {
		if pos == -1 || pos == ph.stratapos {
			return
		}
		x := ph.data[pos]
		for i, j := range inds {
			tmp[i] = x[j]
		}
		x, tmp = tmp, x
		ph.data[pos] = x
	}

	re(ph.timepos)
	re(ph.statuspos)
	re(ph.offsetpos)
	re(ph.weightpos)
	re(ph.entrypos)

	for _, k := range ph.xpos {
		re(k)
	}

	var i0 int
	for i := 0; i <= len(strata); i++ {
		if i == len(strata) || (i > 0 && strata[i-1] != strata[i]) {
			ph.stratumix = append(ph.stratumix, [2]int{i0, i})
			i0 = i
		}
	}
}

func (ph *PHReg) setupTimes() error {

	ph.skipEarlyCensor = 0

	time := ph.data[ph.timepos]
	status := ph.data[ph.statuspos]
	nobs := len(time)

	// Track cases that are omitted since they are
	// censored before the first event in their stratum.
	ph.skip = make([]bool, nobs)

	// Get the sorted distinct times where events occur
	for _, ix := range ph.stratumix {

		var et []float64

		for i := ix[0]; i < ix[1]; i++ {
			if time[i] < 0 {
				return fmt.Errorf("PHReg: time variable '%s' is negative at row %d",
					ph.varnames[ph.timepos], i)
			}
			if status[i] == 1 {
				et = append(et, time[i])
			} else if status[i] != 0 {
				return fmt.Errorf("PHReg: status variable '%s' has values other than 0 and 1",
					ph.varnames[ph.statuspos])
			}
		}

		if len(et) > 0 {
			sort.Float64s(et)

			// Deduplicate
			j := 0
			for i := 1; i < len(et); i++ {
				if et[i] != et[j] {
					j++
					et[j] = et[i]
				}
			}
			et = et[0 : j+1]
		}
		ph.etimes = append(ph.etimes, et)

		// Indices of cases that enter or exit the risk set,
		// or have an event at each time point.
		enter := make([][]int, len(et))
		exit := make([][]int, len(et))
		event := make([][]int, len(et))
		ph.enter = append(ph.enter, enter)
		ph.exit = append(ph.exit, exit)
		ph.event = append(ph.event, event)

		// No events in this stratum
		if len(et) == 0 {
			continue
		}

		// Risk set exit times
		for i := ix[0]; i < ix[1]; i++ {
			ii := sort.SearchFloat64s(et, time[i])
			switch {
			case ii == len(et):
				// Censored after last event, never exits
			case et[ii] == time[i]:
				// Event or censored at an event time
				exit[ii] = append(exit[ii], i)
			case ii == 0:
				// Censored before first event, never enters
				ph.skip[i] = true
				ph.skipEarlyCensor++
			default:
				// Censored between event times
				exit[ii-1] = append(exit[ii-1], i)
			}
		}

		// Event times
		for i := ix[0]; i < ix[1]; i++ {
			if status[i] == 0 || ph.skip[i] {
				continue
			}
			ii := sort.SearchFloat64s(et, time[i])
			event[ii] = append(event[ii], i)
		}

		// Risk set entry times
		if ph.entrypos == -1 {
			// Everyone enters at time 0
			for i := ix[0]; i < ix[1]; i++ {
				if !ph.skip[i] {
					enter[0] = append(enter[0], i)
				}
			}
			continue
		}

		entry := ph.data[ph.entrypos]
		for i := ix[0]; i < ix[1]; i++ {
			if ph.skip[i] {
				continue
			}
			t := entry[i]
			if t > time[i] {
				return fmt.Errorf("PHReg: entry time after event or censoring time at row %d", i)
			}
			if t < 0 {
				return fmt.Errorf("PHReg: negative entry time at row %d", i)
			}
			ii := sort.SearchFloat64s(et, t)
			if ii < len(et) {
				// Enter on or between event times
				enter[ii] = append(enter[ii], i)
			}
		}
	}

	if ph.skipEarlyCensor > 0 && ph.log != nil {
		ph.log.Printf("PHReg: %d cases censored before the first event\n", ph.skipEarlyCensor)
	}

	return nil
}

func (ph *PHReg) putNslice(x []float64) {
	ph.nslices = append(ph.nslices, x)
}

func (ph *PHReg) getNslice() []float64 {

	if len(ph.nslices) == 0 {
		return make([]float64, ph.NumObs())
	}
	q := len(ph.nslices) - 1
	x := ph.nslices[q]
	zero(x)
	ph.nslices = ph.nslices[0:q]

	return x
}

func (ph *PHReg) weights() []statmodel.Dtype {
	if ph.weightpos == -1 {
		return nil
	}
	return ph.data[ph.weightpos]
}

func (ph *PHReg) setupCovs() {

	ph.sumx = ph.sumx[0:0]
	status := ph.data[ph.statuspos]
	wgt := ph.weights()

	// Get the sum of covariates in each stratum,
	// including only covariates for cases with the event
	for _, ix := range ph.stratumix {
		sumx := make([]float64, len(ph.xpos))
		for j, k := range ph.xpos {
			x := ph.data[k]
			for i := ix[0]; i < ix[1]; i++ {
				if !ph.skip[i] && status[i] == 1 {
					if wgt == nil {
						sumx[j] += x[i]
					} else {
						sumx[j] += wgt[i] * x[i]
					}
				}
			}
		}
		ph.sumx = append(ph.sumx, sumx)
	}
}

// linpred fills lp with the linear predictor, including the offset.
func (ph *PHReg) linpred(params, lp []float64) {

	zero(lp)
	for j, k := range ph.xpos {
		floats.AddScaled(lp, params[j], ph.data[k])
	}

	if ph.offsetpos != -1 {
		floats.Add(lp, ph.data[ph.offsetpos])
	}
}

// LogLike returns the log-likelihood at the given parameter value. The 'exact'
// parameter is ignored here.
func (ph *PHReg) LogLike(param statmodel.Parameter, exact bool) float64 {
	return ph.breslowLogLike(param.GetCoeff())
}

// breslowLogLike returns the log-likelihood value for the
// proportional hazards regression model at the given parameter
// values, using the Breslow method to resolve ties.
func (ph *PHReg) breslowLogLike(params []float64) float64 {

	wgt := ph.weights()

	lp := ph.getNslice()
	elp := ph.getNslice()

	ph.linpred(params, lp)

	ql := float64(0)
	for s, ix := range ph.stratumix {

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] -= mx
			elp[i] = math.Exp(lp[i])
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= wgt[i]
				elp[i] *= wgt[i]
			}
		}

		rlp := float64(0)
		for k := 0; k < len(ph.etimes[s]); k++ {

			// Update for new entries
			for _, i := range ph.enter[s][k] {
				rlp += elp[i]
			}

			for _, i := range ph.event[s][k] {
				ql += lp[i]
			}

			if wgt != nil {
				var n float64
				for _, i := range ph.event[s][k] {
					n += wgt[i]
				}
				ql -= n * math.Log(rlp)
			} else {
				ql -= float64(len(ph.event[s][k])) * math.Log(rlp)
			}

			// Update for new exits
			for _, i := range ph.exit[s][k] {
				rlp -= elp[i]
			}
		}
	}

	ph.putNslice(lp)
	ph.putNslice(elp)

	return ql
}

// NumStrata returns the number of strata.
func (ph *PHReg) NumStrata() int {
	return len(ph.stratumix)
}

// BaselineCumHaz returns the Breslow estimator of the baseline cumulative
// hazard function for the given stratum, at the distinct event times of
// the stratum.  The baseline corresponds to a case whose covariates and
// offset are all zero.  Case weights are taken into account.
func (ph *PHReg) BaselineCumHaz(stratum int, params []float64) ([]float64, []float64) {

	h0 := make([]float64, len(ph.event[stratum]))

	wgt := ph.weights()

	lp := ph.getNslice()
	ph.linpred(params, lp)
	w := func(i int) float64 {
		if wgt == nil {
			return 1
		}
		return wgt[i]
	}

	elp := 0.0
	for k := range ph.etimes[stratum] {

		// Update for new entries
		for _, i := range ph.enter[stratum][k] {
			elp += w(i) * math.Exp(lp[i])
		}

		var d float64
		for _, i := range ph.event[stratum][k] {
			d += w(i)
		}
		h0[k] = d / elp

		// Update for new exits
		for _, i := range ph.exit[stratum][k] {
			elp -= w(i) * math.Exp(lp[i])
		}
	}
	ph.putNslice(lp)

	floats.CumSum(h0, h0)

	return ph.etimes[stratum], h0
}

func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// Score computes the score vector for the proportional hazards
// regression model at the given parameter setting.
func (ph *PHReg) Score(params statmodel.Parameter, score []float64) {
	ph.breslowScore(params.GetCoeff(), score)
}

// breslowScore calculates the score vector for the proportional
// hazards regression model at the given parameter values, using the
// Breslow approach to resolving ties.
func (ph *PHReg) breslowScore(params, score []float64) {

	zero(score)

	wgt := ph.weights()

	lp := ph.getNslice()
	ph.linpred(params, lp)

	for s, ix := range ph.stratumix {

		for j := 0; j < len(ph.xpos); j++ {
			score[j] += ph.sumx[s][j]
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= wgt[i]
			}
		}

		rlp := float64(0)
		rlpv := make([]float64, len(ph.xpos))
		for q := range ph.etimes[s] {

			// Update for new entries
			for _, i := range ph.enter[s][q] {
				rlp += lp[i]
				for j, k := range ph.xpos {
					rlpv[j] += lp[i] * ph.data[k][i]
				}
			}

			d := float64(len(ph.event[s][q]))
			if wgt != nil {
				d = 0
				for _, i := range ph.event[s][q] {
					d += wgt[i]
				}
			}
			floats.AddScaledTo(score, score, -d/rlp, rlpv)

			// Update for new exits
			for _, i := range ph.exit[s][q] {
				rlp -= lp[i]
				for j, k := range ph.xpos {
					rlpv[j] -= lp[i] * ph.data[k][i]
				}
			}
		}
	}

	ph.putNslice(lp)
}

// Hessian computes the Hessian matrix for the model evaluated at the
// given parameter setting.  The Hessian type parameter is not used
// here.
func (ph *PHReg) Hessian(params statmodel.Parameter, ht statmodel.HessType, hess []float64) {
	ph.breslowHess(params.GetCoeff(), hess)
}

// breslowHess calculates the Hessian matrix for the proportional
// hazards regression model at the given parameter values.
func (ph *PHReg) breslowHess(params []float64, hess []float64) {

	zero(hess)

	wgt := ph.weights()

	lp := ph.getNslice()
	ph.linpred(params, lp)

	p := len(ph.xpos)
	d1s := make([]float64, p)
	d2s := make([]float64, p*p)

	// Adds or removes case i from the risk set sums.
	update := func(i int, sign float64) {
		for j1, k1 := range ph.xpos {
			x1 := ph.data[k1]
			d1s[j1] += sign * lp[i] * x1[i]
			for j2 := 0; j2 <= j1; j2++ {
				x2 := ph.data[ph.xpos[j2]]
				u := sign * lp[i] * x1[i] * x2[i]
				d2s[j1*p+j2] += u
				if j2 != j1 {
					d2s[j2*p+j1] += u
				}
			}
		}
	}

	for s, ix := range ph.stratumix {

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= wgt[i]
			}
		}

		rlp := float64(0)

		zero(d1s)
		zero(d2s)

		for k := 0; k < len(ph.etimes[s]); k++ {

			// Update for new entries
			for _, i := range ph.enter[s][k] {
				rlp += lp[i]
				update(i, 1)
			}

			d := float64(len(ph.event[s][k]))
			if wgt != nil {
				d = 0
				for _, i := range ph.event[s][k] {
					d += wgt[i]
				}
			}

			jj := 0
			for j1 := 0; j1 < p; j1++ {
				for j2 := 0; j2 < p; j2++ {
					hess[jj] -= d * d2s[j1*p+j2] / rlp
					hess[jj] += d * d1s[j1] * d1s[j2] / (rlp * rlp)
					jj++
				}
			}

			// Update for new exits
			for _, i := range ph.exit[s][k] {
				rlp -= lp[i]
				update(i, -1)
			}
		}
	}

	ph.putNslice(lp)
}

func negative(x []float64) {
	for i := 0; i < len(x); i++ {
		x[i] *= -1
	}
}

// PHResults describes the results of a proportional hazards model.
type PHResults struct {
	statmodel.BaseResults
}

// failMessage prints information that can help diagnose optimization failures.
func (ph *PHReg) failMessage(optrslt *optimize.Result) {

	os.Stderr.WriteString("Current point and gradient:\n")
	for j, x := range optrslt.X {
		na := ph.varnames[ph.xpos[j]]
		var g float64
		if j < len(optrslt.Gradient) {
			g = optrslt.Gradient[j]
		}
		os.Stderr.WriteString(fmt.Sprintf("%16.8f %16.8f %s\n", x, g, na))
	}

	time := ph.data[ph.timepos]
	status := ph.data[ph.statuspos]

	os.Stderr.WriteString("\nStratum    Size       Events   Event_rate    Mean_time\n")
	for s, ix := range ph.stratumix {
		var e, em float64
		for i := ix[0]; i < ix[1]; i++ {
			e += status[i]
			em += time[i]
		}
		n := float64(ix[1] - ix[0])
		os.Stderr.WriteString(fmt.Sprintf("%4d      %4.0f   %10.0f %12.3f %12.3f\n",
			s+1, n, e, e/n, em/n))
	}

	os.Stderr.WriteString("\nCovariate means and standard deviations:\n")
	for _, k := range ph.xpos {
		x := ph.data[k]
		mn := floats.Sum(x) / float64(len(x))
		var sd float64
		for _, v := range x {
			u := v - mn
			sd += u * u
		}
		sd = math.Sqrt(sd / float64(len(x)))
		os.Stderr.WriteString(fmt.Sprintf("%16.8f %16.8f %s\n", mn, sd, ph.varnames[k]))
	}
}

// Fit fits the model to the data.
func (ph *PHReg) Fit() (*PHResults, error) {

	nvar := len(ph.xpos)

	start := make([]float64, nvar)
	if ph.start != nil {
		copy(start, ph.start)
	}

	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return -ph.LogLike(&PHParameter{x}, false)
		},
		Grad: func(grad, x []float64) {
			ph.Score(&PHParameter{x}, grad)
			negative(grad)
		},
	}

	settings := ph.optsettings
	if settings == nil {
		settings = &optimize.Settings{
			GradientThreshold: 1e-5,
		}
	}

	var xna []string
	for _, k := range ph.xpos {
		xna = append(xna, ph.varnames[k])
	}

	if ph.log != nil {
		ph.log.Printf("PHReg: fitting %d covariates to %d cases\n", nvar, ph.NumObs())
	}

	optrslt, err := optimize.Minimize(p, start, settings, ph.optmethod)
	if err != nil {
		if optrslt == nil {
			return nil, err
		}

		// Return a partial results with an error
		results := &PHResults{
			BaseResults: statmodel.NewBaseResults(ph, -optrslt.F, optrslt.X, xna, nil),
		}
		ph.failMessage(optrslt)
		return results, err
	}
	if err = optrslt.Status.Err(); err != nil {
		return nil, err
	}

	param := make([]float64, len(optrslt.X))
	copy(param, optrslt.X)

	for _, v := range param {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			ph.failMessage(optrslt)
			return nil, fmt.Errorf("PHReg: non-finite parameter estimate")
		}
	}

	ll := -optrslt.F
	vcov, err := statmodel.GetVcov(ph, &PHParameter{param})
	if err != nil {
		return nil, fmt.Errorf("PHReg: covariance matrix: %w", err)
	}

	results := &PHResults{
		BaseResults: statmodel.NewBaseResults(ph, ll, param, xna, vcov),
	}

	return results, nil
}

// HazardRatio returns the hazard ratio for a one unit increase in the
// named covariate, with a 95% confidence interval.
func (rslt *PHResults) HazardRatio(name string) (hr, lcb, ucb float64, ok bool) {
	b, se, ok := rslt.Param(name)
	if !ok {
		return 0, 0, 0, false
	}
	q := 1.959964 * se
	return math.Exp(b), math.Exp(b - q), math.Exp(b + q), true
}

// PredictSurvival returns the predicted survival function for a case
// with covariate vector x (in the order of the model's covariates) in
// the given stratum.  The survival function is evaluated at the
// distinct event times of the stratum.
func (rslt *PHResults) PredictSurvival(x []float64, stratum int) ([]float64, []float64) {

	ph := rslt.Model().(*PHReg)
	params := rslt.Params()
	if len(x) != len(params) {
		msg := fmt.Sprintf("PredictSurvival: %d covariates, expected %d\n", len(x), len(params))
		panic(msg)
	}

	times, bch := ph.BaselineCumHaz(stratum, params)
	r := math.Exp(floats.Dot(x, params))

	surv := make([]float64, len(bch))
	for i, h := range bch {
		surv[i] = math.Exp(-h * r)
	}

	return times, surv
}

// Concordance returns Harrell's concordance index of the fitted linear
// predictor against the observed survival times.
func (rslt *PHResults) Concordance() float64 {
	ph := rslt.Model().(*PHReg)
	lp := rslt.FittedValues(nil)
	return HarrellC(ph.data[ph.timepos], ph.data[ph.statuspos], lp)
}

func (rslt *PHResults) summaryStats() (int, int, int, int) {

	ph := rslt.Model().(*PHReg)
	data := ph.Dataset()

	status := data[ph.statuspos]

	var entry []statmodel.Dtype
	if ph.entrypos != -1 {
		entry = data[ph.entrypos]
	}

	var n, e, pe, ns int
	for _, ix := range ph.stratumix {
		n += ix[1] - ix[0]
		for i := ix[0]; i < ix[1]; i++ {
			e += int(status[i])
		}
		if entry != nil {
			for i := ix[0]; i < ix[1]; i++ {
				if entry[i] > 0 {
					pe++
				}
			}
		}
		ns++
	}

	return n, e, pe, ns
}

// PHSummary summarizes a fitted proportional hazards regression model.
type PHSummary struct {

	// The model
	ph *PHReg

	// The results structure
	results *PHResults

	// Messages that are appended to the table
	messages []string
}

// Summary displays a summary table of the model results.
func (rslt *PHResults) Summary() *PHSummary {

	ph := rslt.Model().(*PHReg)

	return &PHSummary{
		ph:      ph,
		results: rslt,
	}
}

// String returns a string representation of a summary table for the model.
func (phs *PHSummary) String() string {

	n, e, pe, ns := phs.results.summaryStats()

	ph := phs.ph
	sum := &statmodel.SummaryTable{
		Msg: phs.messages,
	}

	sum.Title = "Proportional hazards regression analysis"

	sum.Top = append(sum.Top, fmt.Sprintf("  Sample size: %10d", n))
	sum.Top = append(sum.Top, fmt.Sprintf("  Strata:      %10d", ns))
	sum.Top = append(sum.Top, fmt.Sprintf("  Events:      %10d", e))
	sum.Top = append(sum.Top, "  Ties:           Breslow")

	par := phs.results.Params()
	var hr []float64
	for j := range par {
		hr = append(hr, math.Exp(par[j]))
	}

	fs, fn := statmodel.StringFmt, statmodel.FloatFmt
	if se := phs.results.StdErr(); se != nil {
		sum.ColNames = []string{"Variable   ", "Coefficient", "SE", "HR", "LCB", "UCB", "Z-score", "P-value"}
		sum.ColFmt = []statmodel.Fmter{fs, fn, fn, fn, fn, fn, fn, fn}

		// Create estimate and CI for the hazard ratio
		var lcb, ucb []float64
		for j := range par {
			lcb = append(lcb, math.Exp(par[j]-2*se[j]))
			ucb = append(ucb, math.Exp(par[j]+2*se[j]))
		}
		sum.Cols = []interface{}{phs.results.Names(), par, se, hr, lcb, ucb,
			phs.results.ZScores(), phs.results.PValues()}
	} else {
		sum.ColNames = []string{"Variable   ", "Coefficient", "HR"}
		sum.ColFmt = []statmodel.Fmter{fs, fn, fn}
		sum.Cols = []interface{}{phs.results.Names(), par, hr}
	}

	if pe > 0 {
		msg := fmt.Sprintf("%d observations have positive entry times", pe)
		sum.Msg = append(sum.Msg, msg)
	}

	if ph.skipEarlyCensor > 0 {
		msg := fmt.Sprintf("%d observations dropped for being censored before the first event", ph.skipEarlyCensor)
		sum.Msg = append(sum.Msg, msg)
	}

	return sum.String()
}
