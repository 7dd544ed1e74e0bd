package glm

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/Valkje/heart-failure/statmodel"
)

func scalarClose(x, y, eps float64) bool {
	if math.Abs(x-y) > eps {
		return false
	}
	return true
}

func data1(wgt bool) statmodel.Dataset {

	y := []float64{0, 1, 3, 2, 1, 1, 0}
	x1 := []float64{1, 1, 1, 1, 1, 1, 1}
	x2 := []float64{4, 1, -1, 3, 5, -5, 3}
	w := []float64{1, 2, 2, 3, 1, 3, 2}
	da := [][]float64{y, x1, x2}
	na := []string{"y", "x1", "x2"}

	if wgt {
		da = append(da, w)
		na = append(na, "w")
	}

	return statmodel.NewDataset(da, na)
}

func data2(wgt bool) statmodel.Dataset {

	y := []float64{0, 0, 1, 0, 1, 0, 0}
	x1 := []float64{1, 1, 1, 1, 1, 1, 1}
	x2 := []float64{4, 1, -1, 3, 5, -5, 3}
	x3 := []float64{1, -1, 1, 1, 2, 5, -1}
	w := []float64{2, 1, 3, 3, 4, 2, 3}

	da := [][]float64{y, x1, x2, x3}
	na := []string{"y", "x1", "x2", "x3"}

	if wgt {
		da = append(da, w)
		na = append(na, "w")
	}

	return statmodel.NewDataset(da, na)
}

func data3(wgt bool) statmodel.Dataset {

	y := []float64{1, 1, 1, 0, 0, 0, 0}
	x1 := []float64{1, 1, 1, 1, 1, 1, 1}
	x2 := []float64{0, 1, 0, 0, -1, 0, 1}
	w := []float64{3, 3, 2, 3, 1, 3, 2}

	da := [][]float64{y, x1, x2}
	na := []string{"y", "x1", "x2"}

	if wgt {
		da = append(da, w)
		na = append(na, "w")
	}

	return statmodel.NewDataset(da, na)
}

// A test problem
type testprob struct {
	family     *Family
	data       statmodel.Dataset
	weight     bool
	start      []float64
	params     []float64
	stderr     []float64
	vcov       []float64
	ll         float64
	scale      float64
	fitmethods []string
}

var glmTests = []testprob{
	{
		family:     NewFamily(GaussianFamily),
		data:       data1(true),
		weight:     true,
		params:     []float64{1.316285, -0.047555},
		stderr:     []float64{0.277652, 0.080877},
		vcov:       []float64{0.077091, -0.004205, -0.004205, 0.006541},
		ll:         -19.14926021670413,
		scale:      1.0414236578435769,
		fitmethods: []string{"Gradient", "IRLS"},
	},
	{
		family: NewFamily(GaussianFamily),
		data:   data2(true),
		weight: true,
		params: []float64{0.191194, 0.046013, 0.090639},
		stderr: []float64{0.199909, 0.044360, 0.082265},
		vcov: []float64{0.039963, -0.005955, -0.011730,
			-0.005955, 0.001968, 0.001831,
			-0.011730, 0.001831, 0.006768},
		ll:         -11.876495505764467,
		scale:      0.25882586275287583,
		fitmethods: []string{"Gradient", "IRLS"},
	},
	{
		family:     NewFamily(GaussianFamily),
		data:       data3(true),
		weight:     true,
		params:     []float64{0.418605, 0.220930},
		stderr:     []float64{0.13620, 0.22926},
		vcov:       []float64{0.018551, -0.012367, -0.012367, 0.052560},
		ll:         -11.862285137866323,
		scale:      0.26589147286821707,
		fitmethods: []string{"Gradient", "IRLS"},
	},
	{
		family: NewFamily(BinomialFamily),
		data:   data2(true),
		weight: true,
		params: []float64{-1.378328, 0.201911, 0.407917},
		stderr: []float64{0.927975, 0.187708, 0.363425},
		vcov: []float64{0.861138, -0.122218, -0.258570, -0.122218, 0.035234, 0.037427,
			-0.258570, 0.037427, 0.132078},
		ll:         -11.17418536789415,
		scale:      1,
		fitmethods: []string{"Gradient", "IRLS"},
	},
	{
		family:     NewFamily(BinomialFamily),
		data:       data3(true),
		weight:     true,
		params:     []float64{-0.343610, 0.934519},
		stderr:     []float64{0.553523, 0.963054},
		vcov:       []float64{0.306388, -0.227123, -0.227123, 0.927473},
		ll:         -11.245509472906111,
		scale:      1,
		fitmethods: []string{"Gradient", "IRLS"},
	},
	{
		family: NewFamily(BinomialFamily),
		data:   data2(false),
		params: []float64{-1.650145, 0.190136, 0.344331},
		stderr: []float64{1.505798, 0.323601, 0.593428},
		vcov: []float64{2.267429, -0.337163, -0.684836,
			-0.337163, 0.104718, 0.116028,
			-0.684836, 0.116028, 0.352157},
		ll:         -3.9607532681097091,
		scale:      1,
		fitmethods: []string{"Gradient", "IRLS"},
	},
	{
		family:     NewFamily(BinomialFamily),
		data:       data3(false),
		params:     []float64{-0.434175, 0.868350},
		stderr:     []float64{0.830041, 1.306904},
		vcov:       []float64{0.688967, -0.330063, -0.330063, 1.707998},
		ll:         -4.53963553741,
		scale:      1,
		fitmethods: []string{"Gradient", "IRLS"},
	},
	{
		family:     NewFamily(GaussianFamily),
		data:       data1(false),
		params:     []float64{1.290837, -0.103586},
		stderr:     []float64{0.456706, 0.130298},
		vcov:       []float64{0.208581, -0.024254, -0.024254, 0.016978},
		ll:         -9.621454,
		scale:      1.21752988048,
		fitmethods: []string{"Gradient", "IRLS"},
	},
	{
		family: NewFamily(GaussianFamily),
		data:   data2(false),
		params: []float64{0.154198, 0.038670, 0.066739},
		stderr: []float64{0.333030, 0.083695, 0.142159},
		vcov: []float64{0.110909, -0.017874, -0.032931,
			-0.017874, 0.007005, 0.006884,
			-0.032931, 0.006884, 0.020209},
		ll:         -4.596270,
		scale:      0.334176605228,
		fitmethods: []string{"Gradient", "IRLS"},
	},
	{
		family:     NewFamily(GaussianFamily),
		data:       data3(false),
		params:     []float64{0.4, 0.2},
		stderr:     []float64{0.219089, 0.334664},
		vcov:       []float64{0.048, -0.016, -0.016, 0.112},
		ll:         -4.944550,
		scale:      0.32,
		fitmethods: []string{"Gradient", "IRLS"},
	},
}

func predictors(ds statmodel.Dataset) []string {
	var xn []string
	for _, na := range ds.Names() {
		if strings.HasPrefix(na, "x") {
			xn = append(xn, na)
		}
	}
	return xn
}

func TestFit(t *testing.T) {

	for jt, ps := range glmTests {
		for _, fm := range ps.fitmethods {

			config := DefaultConfig()
			config.Family = ps.family
			config.FitMethod = fm
			config.Start = ps.start
			if ps.weight {
				config.WeightVar = "w"
			}

			glm, err := NewGLM(ps.data, "y", predictors(ps.data), config)
			if err != nil {
				t.Fatal(err)
			}
			rslt, err := glm.Fit()
			if err != nil {
				t.Fatal(err)
			}

			if !floats.EqualApprox(rslt.Params(), ps.params, 1e-5) {
				fmt.Printf("Problem %d (%s), params:\n", jt, fm)
				fmt.Printf("Got %v\nExpected %v\n", rslt.Params(), ps.params)
				t.Fail()
			}

			if !scalarClose(rslt.Scale(), ps.scale, 1e-5) {
				fmt.Printf("Problem %d (%s), scale:\n", jt, fm)
				fmt.Printf("Got %v\nExpected %v\n", rslt.Scale(), ps.scale)
				t.Fail()
			}

			if !floats.EqualApprox(rslt.StdErr(), ps.stderr, 1e-4) {
				fmt.Printf("Problem %d (%s), stderr:\n", jt, fm)
				fmt.Printf("Got %v\nExpected %v\n", rslt.StdErr(), ps.stderr)
				t.Fail()
			}

			if !floats.EqualApprox(rslt.VCov(), ps.vcov, 1e-4) {
				fmt.Printf("Problem %d (%s), vcov:\n", jt, fm)
				t.Fail()
			}

			if !scalarClose(rslt.LogLike(), ps.ll, 1e-4) {
				fmt.Printf("Problem %d (%s), loglike:\n", jt, fm)
				fmt.Printf("Got %v\nExpected %v\n", rslt.LogLike(), ps.ll)
				t.Fail()
			}

			_ = rslt.Summary().String()
		}
	}
}

func TestFittedMean(t *testing.T) {

	ds := data3(false)
	config := DefaultConfig()
	config.Family = NewFamily(BinomialFamily)
	glm, err := NewGLM(ds, "y", []string{"x1", "x2"}, config)
	if err != nil {
		t.Fatal(err)
	}
	rslt, err := glm.Fit()
	if err != nil {
		t.Fatal(err)
	}

	// At the MLE of a logistic model with an intercept, the fitted
	// means sum to the number of events.
	mn := rslt.FittedMean()
	if !scalarClose(floats.Sum(mn), 3, 1e-6) {
		fmt.Printf("Got %v\nExpected 3\n", floats.Sum(mn))
		t.Fail()
	}

	r := rslt.Resid()
	if !scalarClose(floats.Sum(r), 0, 1e-6) {
		t.Fail()
	}
}

func TestConfigErrors(t *testing.T) {

	ds := data1(false)

	if _, err := NewGLM(ds, "z", []string{"x1"}, nil); err == nil {
		t.Fail()
	}

	if _, err := NewGLM(ds, "y", []string{"x1", "q"}, nil); err == nil {
		t.Fail()
	}

	config := DefaultConfig()
	config.Link = NewLink(LogitLink)
	if _, err := NewGLM(ds, "y", []string{"x1", "x2"}, config); err == nil {
		t.Fail()
	}

	// The outcome of data1 is not binary
	config = DefaultConfig()
	config.Family = NewFamily(BinomialFamily)
	if _, err := NewGLM(ds, "y", []string{"x1", "x2"}, config); err == nil {
		t.Fail()
	}

	config = DefaultConfig()
	config.FitMethod = "newton"
	if _, err := NewGLM(ds, "y", []string{"x1", "x2"}, config); err == nil {
		t.Fail()
	}
}

func TestSingular(t *testing.T) {

	x := []float64{1, 2, 3, 4, 5}
	y := []float64{1, 3, 2, 5, 4}
	ds := statmodel.NewDataset([][]float64{y, x, x}, []string{"y", "x1", "x2"})

	glm, err := NewGLM(ds, "y", []string{"x1", "x2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := glm.Fit(); err == nil {
		t.Fail()
	}
}

func TestSetLink(t *testing.T) {

	fam := NewFamily(BinomialFamily)
	if !fam.IsValidLink(NewLink(LogitLink)) || fam.IsValidLink(NewLink(IdentityLink)) {
		t.Fail()
	}

	fam = NewFamily(GaussianFamily)
	if !fam.IsValidLink(NewLink(IdentityLink)) || fam.IsValidLink(NewLink(LogitLink)) {
		t.Fail()
	}

	defer func() {
		if recover() == nil {
			t.Fail()
		}
	}()
	NewLink(LinkType(7))
}

func TestLinkVariance(t *testing.T) {

	mn := []float64{0.2, 0.5, 0.9}
	lp := make([]float64, 3)
	back := make([]float64, 3)

	lk := NewLink(LogitLink)
	lk.Link(mn, lp)
	lk.InvLink(lp, back)
	if !floats.EqualApprox(mn, back, 1e-12) || lp[1] != 0 {
		fmt.Printf("Got %v, expected %v\n", back, mn)
		t.Fail()
	}

	d := make([]float64, 3)
	lk.Deriv(mn, d)
	if !floats.EqualApprox(d, []float64{1 / 0.16, 4, 1 / 0.09}, 1e-10) {
		t.Fail()
	}
	lk.Deriv2(mn, d)
	if d[1] != 0 {
		t.Fail()
	}

	v := make([]float64, 3)
	NewFamily(BinomialFamily).variance.Var(mn, v)
	if !floats.EqualApprox(v, []float64{0.16, 0.25, 0.09}, 1e-12) {
		fmt.Printf("Got %v\n", v)
		t.Fail()
	}
	NewFamily(GaussianFamily).variance.Deriv(mn, v)
	if !floats.Equal(v, []float64{0, 0, 0}) {
		t.Fail()
	}
}
