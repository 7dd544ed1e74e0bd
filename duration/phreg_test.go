package duration

import (
	"fmt"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/Valkje/heart-failure/statmodel"
)

func data1() statmodel.Dataset {

	da := [][]statmodel.Dtype{
		{1, 1, 2, 3, 3, 4},
		{1, 1, 0, 0, 1, 0},
		{4, 2, 5, 6, 6, 5},
	}

	return statmodel.NewDataset(da, []string{"time", "status", "x"})
}

func data2() statmodel.Dataset {

	da := [][]statmodel.Dtype{
		{0, 1, 0, 1, 3, 2, 1, 2, 1, 3, 5},
		{1, 2, 4, 5, 4, 5, 6, 4, 6, 4, 8},
		{1, 1, 0, 1, 1, 0, 1, 1, 1, 0, 1},
		{4, 2, 3, 5, 1, 3, 5, 4, 2, 6, 6},
		{5, 2, 3, 1, 4, 2, 2, 5, 1, 8, 4},
		{1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2},
	}

	return statmodel.NewDataset(da, []string{"entry", "time", "status", "x1", "x2", "stratum"})
}

func data3() statmodel.Dataset {

	da := [][]statmodel.Dtype{
		{1, 1, 2, 3, 3, 4, 5, 5, 6, 7},
		{1, 1, 0, 0, 1, 0, 0, 1, 1, 1},
		{4, 2, 5, 6, 6, 5, 4, 3, 3, 5},
		{3, 2, 2, 0, 5, 4, 5, 6, 5, 4},
	}

	return statmodel.NewDataset(da, []string{"time", "status", "x1", "x2"})
}

// stratData is a larger data set with ten strata.
func stratData() statmodel.Dataset {

	var time, status, stratum, x1, x2 []statmodel.Dtype

	for i := 0; i < 100; i++ {
		x1 = append(x1, statmodel.Dtype(i%3))
		x2 = append(x2, statmodel.Dtype(i%7)-3)
		stratum = append(stratum, statmodel.Dtype(i%10))
		if i%5 == 0 {
			status = append(status, 0)
		} else {
			status = append(status, 1)
		}
		time = append(time, 10/statmodel.Dtype(4+i%3+i%7-3)+0.5*(statmodel.Dtype(i%6)-2))
	}

	da := [][]statmodel.Dtype{time, status, x1, x2, stratum}
	return statmodel.NewDataset(da, []string{"time", "status", "x1", "x2", "stratum"})
}

// Basic check, no strata, weights, or entry times.
func TestSimple(t *testing.T) {

	ph, err := NewPHReg(data1(), "time", "status", []string{"x"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if fmt.Sprintf("%v", ph.stratumix) != "[[0 6]]" {
		t.Fail()
	}
	if fmt.Sprintf("%v", ph.etimes) != "[[1 3]]" {
		t.Fail()
	}
	if fmt.Sprintf("%v", ph.enter) != "[[[0 1 2 3 4 5] []]]" {
		t.Fail()
	}
	if fmt.Sprintf("%v", ph.exit) != "[[[0 1 2] [3 4]]]" {
		t.Fail()
	}
	if fmt.Sprintf("%v", ph.event) != "[[[0 1] [4]]]" {
		t.Fail()
	}

	ll := -14.415134793348063
	if math.Abs(ph.breslowLogLike([]float64{2})-ll) > 1e-5 {
		t.Fail()
	}

	ll = -8.9840993267811093
	if math.Abs(ph.breslowLogLike([]float64{1})-ll) > 1e-5 {
		t.Fail()
	}

	score := make([]float64, 1)
	ph.breslowScore([]float64{2}, score)
	if math.Abs(score[0]+5.66698338) > 1e-5 {
		t.Fail()
	}

	ph.breslowScore([]float64{1}, score)
	if math.Abs(score[0]+5.09729328) > 1e-5 {
		t.Fail()
	}

	hess := make([]float64, 1)
	ph.breslowHess([]float64{1}, hess)
	if math.Abs(hess[0]+0.93879427) > 1e-5 {
		t.Fail()
	}
}

func TestStratified1(t *testing.T) {

	config := DefaultPHRegConfig()
	config.EntryVar = "entry"
	config.StrataVar = "stratum"

	ph, err := NewPHReg(data2(), "time", "status", []string{"x1", "x2"}, config)
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range []struct {
		what     string
		got      interface{}
		expected string
	}{
		{"etimes", ph.etimes, "[[1 2 4 5] [4 6 8]]"},
		{"stratum boundaries", ph.stratumix, "[[0 5] [5 11]]"},
		{"entry times", ph.enter, "[[[0 1 2 3] [] [4] []] [[5 6 7 8 9] [10] []]]"},
		{"exit times", ph.exit, "[[[0] [1] [2 4] [3]] [[5 7 9] [6 8] [10]]]"},
		{"event times", ph.event, "[[[0] [1] [4] [3]] [[7] [6 8] [10]]]"},
	} {
		if fmt.Sprintf("%v", c.got) != c.expected {
			fmt.Printf("%s do not match\n", c.what)
			fmt.Printf("Got      %v\n", c.got)
			fmt.Printf("Expected %v\n", c.expected)
			t.Fail()
		}
	}

	for _, c := range []struct {
		params []float64
		ll     float64
		score  []float64
		hess   []float64
	}{
		{
			params: []float64{1, 2},
			ll:     -26.950282147164277,
			score:  []float64{-9.35565184, -8.0251037},
			hess:   []float64{-1.95989147, 1.23657039, 1.23657039, -1.13182375},
		},
		{
			params: []float64{2, 1},
			ll:     -32.44699788270529,
			score:  []float64{-13.5461984, -3.9178062},
			hess:   []float64{-1.12887225, 1.21185482, 1.21185482, -2.73825289},
		},
	} {
		bl := ph.breslowLogLike(c.params)
		if math.Abs(bl-c.ll) > 1e-5 {
			fmt.Printf("Breslow log-likelihood does not match\n")
			fmt.Printf("Got      %v\n", bl)
			fmt.Printf("Expected %v\n", c.ll)
			t.Fail()
		}

		score := make([]float64, 2)
		ph.breslowScore(c.params, score)
		if !floats.EqualApprox(score, c.score, 1e-5) {
			fmt.Printf("Breslow score does not match\n")
			fmt.Printf("Got      %v\n", score)
			fmt.Printf("Expected %v\n", c.score)
			t.Fail()
		}

		hess := make([]float64, 4)
		ph.breslowHess(c.params, hess)
		if !floats.EqualApprox(hess, c.hess, 1e-5) {
			fmt.Printf("Breslow Hessian does not match\n")
			fmt.Printf("Got      %v\n", hess)
			fmt.Printf("Expected %v\n", c.hess)
			t.Fail()
		}
	}
}

func TestStratified2(t *testing.T) {

	data := stratData()
	time0 := append([]float64(nil), data.MustGet("time")...)

	c := DefaultPHRegConfig()
	c.StrataVar = "stratum"

	ph, err := NewPHReg(data, "time", "status", []string{"x1", "x2"}, c)
	if err != nil {
		t.Fatal(err)
	}
	result, err := ph.Fit()
	if err != nil {
		t.Fatal(err)
	}

	// Smoke test
	_ = result.Summary().String()

	par := result.Params()
	epar := []float64{0.1096391, 0.61394886}
	if !floats.EqualApprox(par, epar, 1e-5) {
		fmt.Printf("Parameter estimates differ:\n")
		fmt.Printf("Got      %v\n", par)
		fmt.Printf("Expected %v\n", epar)
		t.Fail()
	}

	se := result.StdErr()
	ese := []float64{0.17171136, 0.09304276}
	if !floats.EqualApprox(se, ese, 1e-5) {
		fmt.Printf("Standard errors differ:\n")
		fmt.Printf("Got      %v\n", se)
		fmt.Printf("Expected %v\n", ese)
		t.Fail()
	}

	// Sorting by stratum must not reorder the caller's data.
	if !floats.Equal(time0, data.MustGet("time")) {
		t.Fail()
	}
}

func TestPhregOptMethods(t *testing.T) {

	data := stratData()

	var par [][]float64
	var std [][]float64
	for _, m := range []optimize.Method{
		new(optimize.BFGS),
		new(optimize.LBFGS),
		new(optimize.CG),
	} {
		c := DefaultPHRegConfig()
		c.OptMethod = m
		c.StrataVar = "stratum"
		ph, err := NewPHReg(data, "time", "status", []string{"x1", "x2"}, c)
		if err != nil {
			t.Fatal(err)
		}
		result, err := ph.Fit()
		if err != nil {
			t.Fatal(err)
		}
		par = append(par, result.Params())
		std = append(std, result.StdErr())
	}

	// Compare each method to the first method
	for i := 1; i < len(par); i++ {
		if !floats.EqualApprox(par[0], par[i], 1e-5) {
			fmt.Printf("Parameter estimates differ:\n")
			fmt.Printf("Got      %v\n", par[i])
			fmt.Printf("Expected %v\n", par[0])
			t.Fail()
		}
		if !floats.EqualApprox(std[0], std[i], 1e-5) {
			fmt.Printf("Standard errors differ:\n")
			fmt.Printf("Got      %v\n", std[i])
			fmt.Printf("Expected %v\n", std[0])
			t.Fail()
		}
	}
}

func TestWeights(t *testing.T) {

	// data1 and data2 are equivalent after taking the weights into account
	da1 := [][]statmodel.Dtype{
		{1, 1, 2, 3, 3, 4},
		{1, 1, 0, 0, 1, 0},
		{4, 2, 5, 6, 6, 5},
		{1, 2, 1, 2, 1, 2},
	}
	varnames := []string{"time", "status", "x", "w"}
	data1 := statmodel.NewDataset(da1, varnames)

	// "Unrolled" version of data1.
	da2 := [][]statmodel.Dtype{
		{1, 1, 1, 2, 3, 3, 3, 4, 4},
		{1, 1, 1, 0, 0, 0, 1, 0, 0},
		{4, 2, 2, 5, 6, 6, 6, 5, 5},
		{1, 1, 1, 1, 1, 1, 1, 1, 1},
	}
	data2 := statmodel.NewDataset(da2, varnames)
	data3 := statmodel.NewDataset(da2[0:3], varnames[0:3])

	c := DefaultPHRegConfig()
	c.WeightVar = "w"

	var rslt []*PHResults
	for _, m := range []struct {
		data   statmodel.Dataset
		config *PHRegConfig
	}{
		{data1, c},
		{data2, c},
		{data3, nil},
	} {
		ph, err := NewPHReg(m.data, "time", "status", []string{"x"}, m.config)
		if err != nil {
			t.Fatal(err)
		}
		r, err := ph.Fit()
		if err != nil {
			t.Fatal(err)
		}
		rslt = append(rslt, r)
	}

	for i := 1; i < 3; i++ {
		if !floats.EqualApprox(rslt[0].Params(), rslt[i].Params(), 1e-5) {
			t.Fail()
		}
		if !floats.EqualApprox(rslt[0].StdErr(), rslt[i].StdErr(), 1e-5) {
			t.Fail()
		}
	}

	// The weighted baseline hazard agrees with the unrolled one.
	_, h1 := rslt[0].Model().(*PHReg).BaselineCumHaz(0, rslt[0].Params())
	_, h2 := rslt[1].Model().(*PHReg).BaselineCumHaz(0, rslt[0].Params())
	if !floats.EqualApprox(h1, h2, 1e-8) {
		fmt.Printf("Got      %v\n", h1)
		fmt.Printf("Expected %v\n", h2)
		t.Fail()
	}
}

func TestBaselineHaz(t *testing.T) {

	n := 10000
	rng := rand.New(rand.NewSource(3909))

	time := make([]statmodel.Dtype, n)
	status := make([]statmodel.Dtype, n)
	x := make([]statmodel.Dtype, n)

	// kw is the Weibull shape parameter.  The cumulative baseline hazard function
	// evaluated at time t is t^kw.
	for _, kw := range []float64{1, 2} {

		// Create a covariate, but there is no covariate effect in this test.
		for i := range x {
			x[i] = 0.2 * rng.NormFloat64()
		}

		for i := range time {
			time[i] = math.Pow(-math.Log(rng.Float64()), 1/kw)
			t := math.Pow(-math.Log(rng.Float64()), 1/kw)
			if time[i] > t {
				time[i] = t
				status[i] = 0
			} else {
				status[i] = 1
			}
		}

		da := [][]statmodel.Dtype{time, status, x}
		data := statmodel.NewDataset(da, []string{"time", "status", "x"})

		model, err := NewPHReg(data, "time", "status", []string{"x"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		result, err := model.Fit()
		if err != nil {
			t.Fatal(err)
		}

		ti, bch := model.BaselineCumHaz(0, result.Params())

		// The estimate should track t^kw where the risk set is large.
		var nchk int
		for i := range bch {
			if ti[i] < 0.2 || ti[i] > 1 {
				continue
			}
			nchk++
			e := math.Pow(ti[i], kw)
			if math.Abs(bch[i]-e) > 0.1 {
				fmt.Printf("Got      %v\n", bch[i])
				fmt.Printf("Expected %v\n", e)
				t.Fail()
				break
			}
		}
		if nchk < 100 {
			t.Fail()
		}
	}
}

func TestPredictSurvival(t *testing.T) {

	ph, err := NewPHReg(data3(), "time", "status", []string{"x1", "x2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rslt, err := ph.Fit()
	if err != nil {
		t.Fatal(err)
	}

	ti, bch := ph.BaselineCumHaz(0, rslt.Params())
	st, sp := rslt.PredictSurvival([]float64{0, 0}, 0)
	if !floats.Equal(ti, st) {
		t.Fail()
	}
	for i := range sp {
		if math.Abs(sp[i]-math.Exp(-bch[i])) > 1e-12 {
			t.Fail()
		}
		if i > 0 && sp[i] > sp[i-1] {
			fmt.Printf("Survival function is not monotone\n")
			t.Fail()
		}
	}

	// Higher risk covariates give lower survival.
	b := rslt.Params()
	x := []float64{math.Copysign(1, b[0]), math.Copysign(1, b[1])}
	_, sp2 := rslt.PredictSurvival(x, 0)
	for i := range sp {
		if sp2[i] > sp[i] {
			t.Fail()
		}
	}

	hr, lcb, ucb, ok := rslt.HazardRatio("x1")
	if !ok || !(lcb < hr && hr < ucb) || math.Abs(math.Log(hr)-b[0]) > 1e-12 {
		t.Fail()
	}
	if _, _, _, ok := rslt.HazardRatio("q"); ok {
		t.Fail()
	}

	c := rslt.Concordance()
	if !(c >= 0 && c <= 1) {
		t.Fail()
	}
}

func TestPHRegErrors(t *testing.T) {

	data := data1()
	if _, err := NewPHReg(data, "t", "status", []string{"x"}, nil); err == nil {
		t.Fail()
	}
	if _, err := NewPHReg(data, "time", "status", []string{"z"}, nil); err == nil {
		t.Fail()
	}

	// The status variable must be binary
	if _, err := NewPHReg(data, "time", "x", []string{"status"}, nil); err == nil {
		t.Fail()
	}

	c := DefaultPHRegConfig()
	c.WeightVar = "w"
	if _, err := NewPHReg(data, "time", "status", []string{"x"}, c); err == nil {
		t.Fail()
	}
}
