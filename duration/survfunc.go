package duration

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Valkje/heart-failure/statmodel"
)

// SurvfuncRight uses the method of Kaplan and Meier to estimate the
// survival distribution based on (possibly) right censored data.
type SurvfuncRight struct {

	// Times at which events occur, sorted.
	times []float64

	// Number of events at each time in Times.
	nEvents []float64

	// Number of people at risk just before each time in times
	nRisk []float64

	// The estimated survival function evaluated at each time in Times
	survProb []float64

	// The standard errors for the estimates in SurvProb.
	survProbSE []float64

	events map[float64]float64
	total  map[float64]float64
	entry  map[float64]float64

	weighted bool
	entered  bool
}

// SurvfuncRightConfig contains optional variables for a survival function.
type SurvfuncRightConfig struct {

	// WeightVar is the name of a variable containing case weights, optional.
	WeightVar string

	// EntryVar is the name of a variable containing entry times, optional.
	EntryVar string
}

// NewSurvfuncRight estimates the survival function for the given data.
// The status variable is 1 if the event occurred at the time given by the
// time variable, and 0 otherwise.  If status is empty all cases are taken
// to have the event.
func NewSurvfuncRight(data statmodel.Dataset, time, status string, config *SurvfuncRightConfig) (*SurvfuncRight, error) {

	if config == nil {
		config = &SurvfuncRightConfig{}
	}

	get := func(na, what string) ([]float64, error) {
		if na == "" {
			return nil, nil
		}
		x, ok := data.Get(na)
		if !ok {
			return nil, fmt.Errorf("SurvfuncRight: %s variable '%s' not found", what, na)
		}
		return x, nil
	}

	var cols [4][]float64
	for j, v := range [][2]string{{time, "time"}, {status, "status"}, {config.WeightVar, "weight"}, {config.EntryVar, "entry"}} {
		var err error
		if cols[j], err = get(v[0], v[1]); err != nil {
			return nil, err
		}
	}
	if cols[0] == nil {
		return nil, fmt.Errorf("SurvfuncRight: a time variable is required")
	}

	return NewSurvfuncRightFromSlices(cols[0], cols[1], cols[2], cols[3])
}

// NewSurvfuncRightFromSlices estimates the survival function from data
// held in slices.  The status, weight and entry slices may be nil.
func NewSurvfuncRightFromSlices(time, status, weight, entry []float64) (*SurvfuncRight, error) {

	sf := &SurvfuncRight{
		events:   make(map[float64]float64),
		total:    make(map[float64]float64),
		entry:    make(map[float64]float64),
		weighted: weight != nil,
		entered:  entry != nil,
	}

	if len(time) == 0 {
		return nil, fmt.Errorf("SurvfuncRight: no data")
	}

	if err := sf.scanData(time, status, weight, entry); err != nil {
		return nil, err
	}
	sf.eventstats()
	sf.compress()
	sf.fit()

	return sf, nil
}

// Time returns the times at which the survival function changes.
func (sf *SurvfuncRight) Time() []float64 {
	return sf.times
}

// NumRisk returns the number of people at risk at each time point
// where the survival function changes.
func (sf *SurvfuncRight) NumRisk() []float64 {
	return sf.nRisk
}

// NumEvents returns the (weighted) number of events at each time point
// where the survival function changes.
func (sf *SurvfuncRight) NumEvents() []float64 {
	return sf.nEvents
}

// SurvProb returns the estimated survival probabilities at the points
// where the survival function changes.
func (sf *SurvfuncRight) SurvProb() []float64 {
	return sf.survProb
}

// SurvProbSE returns the standard errors of the estimated survival
// probabilities at the points where the survival function changes.
func (sf *SurvfuncRight) SurvProbSE() []float64 {
	return sf.survProbSE
}

// SurvProbAt returns the estimated survival probability at time t, the
// value of the step function at t.
func (sf *SurvfuncRight) SurvProbAt(t float64) float64 {
	ii := sort.SearchFloat64s(sf.times, t)
	if ii < len(sf.times) && sf.times[ii] == t {
		return sf.survProb[ii]
	}
	if ii == 0 {
		return 1
	}
	return sf.survProb[ii-1]
}

func (sf *SurvfuncRight) scanData(time, status, weight, entry []float64) error {

	for i, t := range time {

		w := float64(1)
		if weight != nil {
			w = weight[i]
		}

		if status == nil || status[i] == 1 {
			sf.events[t] += w
		}
		sf.total[t] += w

		if entry != nil {
			if entry[i] >= t {
				return fmt.Errorf("SurvfuncRight: entry time of case %d is not before its event/censoring time", i)
			}
			sf.entry[entry[i]] += w
		}
	}

	return nil
}

func rollback(x []float64) {
	var z float64
	for i := len(x) - 1; i >= 0; i-- {
		z += x[i]
		x[i] = z
	}
}

func (sf *SurvfuncRight) eventstats() {

	// Get the sorted distinct times (event or censoring)
	sf.times = make([]float64, 0, len(sf.total))
	for t := range sf.total {
		sf.times = append(sf.times, t)
	}
	sort.Float64s(sf.times)

	// Get the weighted event count and risk set size at each time
	// point (in same order as Times).
	sf.nEvents = make([]float64, len(sf.times))
	sf.nRisk = make([]float64, len(sf.times))
	for i, t := range sf.times {
		sf.nEvents[i] = sf.events[t]
		sf.nRisk[i] = sf.total[t]
	}
	rollback(sf.nRisk)

	// Adjust for entry times
	if sf.entered {
		entry := make([]float64, len(sf.times))
		for t, w := range sf.entry {
			ii := sort.SearchFloat64s(sf.times, t)
			if ii == len(sf.times) || t < sf.times[ii] {
				ii--
			}
			if ii >= 0 {
				entry[ii] += w
			}
		}
		rollback(entry)
		for i := 0; i < len(sf.nRisk); i++ {
			sf.nRisk[i] -= entry[i]
		}
	}
}

// compress removes times where no events occurred.
func (sf *SurvfuncRight) compress() {

	var ix []int
	for i := 0; i < len(sf.times); i++ {
		// Only retain events, except for the last point,
		// which is retained even if there are no events.
		if sf.nEvents[i] > 0 || i == len(sf.times)-1 {
			ix = append(ix, i)
		}
	}

	if len(ix) < len(sf.times) {
		for i, j := range ix {
			sf.times[i] = sf.times[j]
			sf.nEvents[i] = sf.nEvents[j]
			sf.nRisk[i] = sf.nRisk[j]
		}
		sf.times = sf.times[0:len(ix)]
		sf.nEvents = sf.nEvents[0:len(ix)]
		sf.nRisk = sf.nRisk[0:len(ix)]
	}
}

func (sf *SurvfuncRight) fit() {

	sf.survProb = make([]float64, len(sf.times))
	x := float64(1)
	for i := range sf.times {
		x *= 1 - sf.nEvents[i]/sf.nRisk[i]
		sf.survProb[i] = x
	}

	sf.survProbSE = make([]float64, len(sf.times))
	x = 0
	if !sf.weighted {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			x += d / (n * (n - d))
			sf.survProbSE[i] = math.Sqrt(x) * sf.survProb[i]
		}
	} else {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			x += d / (n * n)
			sf.survProbSE[i] = math.Sqrt(x)
		}
	}
}

// SurvfuncRightPlotter is used to plot survival functions.
type SurvfuncRightPlotter struct {
	plt *plot.Plot

	labels []string

	lines []*plotter.Line

	width  vg.Length
	height vg.Length
}

// NewSurvfuncRightPlotter returns a default SurvfuncRightPlotter.
func NewSurvfuncRightPlotter() *SurvfuncRightPlotter {

	return &SurvfuncRightPlotter{
		plt:    plot.New(),
		width:  4,
		height: 4,
	}
}

// Width sets the width of the survival function plot, in inches.
func (sp *SurvfuncRightPlotter) Width(w float64) *SurvfuncRightPlotter {
	sp.width = vg.Length(w)
	return sp
}

// Height sets the height of the survival function plot, in inches.
func (sp *SurvfuncRightPlotter) Height(h float64) *SurvfuncRightPlotter {
	sp.height = vg.Length(h)
	return sp
}

// Title sets the title of the plot.
func (sp *SurvfuncRightPlotter) Title(title string) *SurvfuncRightPlotter {
	sp.plt.Title.Text = title
	return sp
}

// Add plots a Kaplan-Meier survival function.
func (sp *SurvfuncRightPlotter) Add(sf *SurvfuncRight, label string) *SurvfuncRightPlotter {
	return sp.AddSteps(sf.Time(), sf.SurvProb(), label)
}

// AddSteps plots a survival step function that starts at 1 and
// changes to pr[i] at time ti[i].
func (sp *SurvfuncRightPlotter) AddSteps(ti, pr []float64, label string) *SurvfuncRightPlotter {

	m := len(ti)
	n := 2*m + 1

	pts := make(plotter.XYs, n)

	j := 0
	pts[j].X = 0
	pts[j].Y = 1
	j++

	for i := range ti {
		pts[j].X = ti[i]
		pts[j].Y = pts[j-1].Y
		j++
		pts[j].X = ti[i]
		pts[j].Y = pr[i]
		j++
	}

	sp.labels = append(sp.labels, label)

	line, err := plotter.NewLine(pts)
	if err != nil {
		panic(err)
	}
	line.Color = plotutil.Color(len(sp.lines))
	sp.lines = append(sp.lines, line)

	return sp
}

// Plot constructs the plot.
func (sp *SurvfuncRightPlotter) Plot() *SurvfuncRightPlotter {

	sp.plt.Y.Min = 0
	sp.plt.Y.Max = 1

	sp.plt.X.Label.Text = "Time"
	sp.plt.Y.Label.Text = "Proportion alive"

	for i := range sp.lines {
		sp.plt.Add(sp.lines[i])
		if len(sp.lines) > 1 {
			sp.plt.Legend.Add(sp.labels[i], sp.lines[i])
		}
	}

	sp.plt.Legend.Top = false
	sp.plt.Legend.Left = true

	return sp
}

// GetPlotStruct returns the plotting structure for this plot.
func (sp *SurvfuncRightPlotter) GetPlotStruct() *plot.Plot {
	return sp.plt
}

// Save writes the plot to the given file.  The format is determined by
// the file extension (e.g. svg, pdf, png).
func (sp *SurvfuncRightPlotter) Save(fname string) error {
	return sp.plt.Save(sp.width*vg.Inch, sp.height*vg.Inch, fname)
}
