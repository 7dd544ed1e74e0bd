package citest

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/dag"
	"github.com/Valkje/heart-failure/statmodel"
)

// Method names reported in Result.
const (
	Pearson   = "pearson"
	Canonical = "canonical"
)

// Result is the outcome of testing one conditional independence claim.
type Result struct {
	Claim dag.Claim

	// Estimate is the residual correlation, or the first canonical
	// correlation for multivariate claims.
	Estimate float64

	// Statistic is the t statistic, or Bartlett's chi-square.
	Statistic float64

	// DF is the degrees of freedom of the reference distribution.
	DF float64

	PValue float64

	Method string
}

func (r Result) String() string {
	return fmt.Sprintf("%-60s %8.4f %9.3f %6.0f %8.4f %s", r.Claim, r.Estimate, r.Statistic, r.DF, r.PValue, r.Method)
}

// Config contains optional settings for a Tester.
type Config struct {

	// Log receives a line for every test, if not nil.
	Log *log.Logger

	// CacheSize is the number of residual matrices kept.
	CacheSize int
}

// DefaultConfig returns the default Tester configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheSize: 256,
	}
}

// Tester tests conditional independence claims about the variables of
// a dataset.
type Tester struct {
	data  statmodel.Dataset
	kinds map[string]cohort.Kind
	cache *lru.Cache[string, *mat.Dense]
	log   *log.Logger

	// The number of residual fits that were computed, not taken from
	// the cache.
	nfit int
}

// NewTester returns a Tester for the given variables.  Every variable
// must be present in the data.
func NewTester(data statmodel.Dataset, vars []cohort.Variable, config *Config) (*Tester, error) {

	if config == nil {
		config = DefaultConfig()
	}

	kinds := make(map[string]cohort.Kind)
	for _, v := range vars {
		if !data.Has(v.Name) {
			return nil, fmt.Errorf("citest: variable '%s' not found in dataset", v.Name)
		}
		kinds[v.Name] = v.Kind
	}

	size := config.CacheSize
	if size < 1 {
		size = 1
	}

	tester := &Tester{
		data:  data,
		kinds: kinds,
		log:   config.Log,
	}

	var err error
	tester.cache, err = lru.NewWithEvict[string, *mat.Dense](size, tester.evicted)
	if err != nil {
		return nil, err
	}

	return tester, nil
}

func (t *Tester) evicted(key string, _ *mat.Dense) {
	if t.log != nil {
		t.log.Printf("citest: residual cache evicted %s", key)
	}
}

// Kind returns the declared kind of a variable.
func (t *Tester) Kind(name string) (cohort.Kind, bool) {
	k, ok := t.kinds[name]
	return k, ok
}

// Data returns the dataset used by the tester.
func (t *Tester) Data() statmodel.Dataset {
	return t.data
}

// Design returns the columns through which a variable of the given kind
// enters a regression.  Continuous and Boolean variables are a single
// column, ordinal variables are expanded into indicators for every
// level but the lowest.
func Design(x []float64, kind cohort.Kind) [][]float64 {

	if kind != cohort.Ordinal {
		return [][]float64{x}
	}

	levels := append([]float64(nil), x...)
	sort.Float64s(levels)
	var distinct []float64
	for i, v := range levels {
		if i == 0 || v != levels[i-1] {
			distinct = append(distinct, v)
		}
	}

	var cols [][]float64
	for _, lev := range distinct[1:] {
		z := make([]float64, len(x))
		for i, v := range x {
			if v == lev {
				z[i] = 1
			}
		}
		cols = append(cols, z)
	}

	return cols
}

// design returns the regression columns of a declared variable.
func (t *Tester) design(name string) ([][]float64, error) {
	kind, ok := t.kinds[name]
	if !ok {
		return nil, fmt.Errorf("citest: variable '%s' is not declared", name)
	}
	cols := Design(t.data.MustGet(name), kind)
	if len(cols) == 0 {
		return nil, fmt.Errorf("citest: variable '%s' is constant", name)
	}
	return cols, nil
}

// covariates returns the design matrix of an intercept and the given
// variables, and the number of non-intercept columns.
func (t *Tester) covariates(given []string) (*mat.Dense, int, error) {

	n := t.data.NumObs()
	cols := [][]float64{nil}
	for _, na := range given {
		c, err := t.design(na)
		if err != nil {
			return nil, 0, err
		}
		cols = append(cols, c...)
	}

	z := mat.NewDense(n, len(cols), nil)
	for i := 0; i < n; i++ {
		z.Set(i, 0, 1)
	}
	for j := 1; j < len(cols); j++ {
		z.SetCol(j, cols[j])
	}

	return z, len(cols) - 1, nil
}

// Residuals returns the residuals from the least squares regression of
// the design columns of name on an intercept and the design columns of
// given, one column per design column of name.
func (t *Tester) Residuals(name string, given []string) (*mat.Dense, error) {

	key := name + "|" + strings.Join(given, ",")
	if r, ok := t.cache.Get(key); ok {
		return r, nil
	}

	ycols, err := t.design(name)
	if err != nil {
		return nil, err
	}
	n := t.data.NumObs()
	y := mat.NewDense(n, len(ycols), nil)
	for j, c := range ycols {
		y.SetCol(j, c)
	}

	z, k, err := t.covariates(given)
	if err != nil {
		return nil, err
	}
	if n <= k+1 {
		return nil, fmt.Errorf("citest: %d observations for %d covariates", n, k)
	}

	var b mat.Dense
	if err := b.Solve(z, y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("citest: regressing %s on %v: %w", name, given, err)
		}
		if t.log != nil {
			t.log.Printf("citest: regressing %s on %v: %v", name, given, err)
		}
	}

	var fit mat.Dense
	fit.Mul(z, &b)
	r := mat.NewDense(n, len(ycols), nil)
	r.Sub(y, &fit)

	t.nfit++
	t.cache.Add(key, r)

	return r, nil
}

// Test tests the claim that X and Y are independent given the claim's
// conditioning set.
func (t *Tester) Test(claim dag.Claim) (Result, error) {

	rx, err := t.Residuals(claim.X, claim.Given)
	if err != nil {
		return Result{}, err
	}
	ry, err := t.Residuals(claim.Y, claim.Given)
	if err != nil {
		return Result{}, err
	}

	_, k, err := t.covariates(claim.Given)
	if err != nil {
		return Result{}, err
	}

	var res Result
	_, p := rx.Dims()
	_, q := ry.Dims()
	if p == 1 && q == 1 {
		res, err = pearson(rx.RawMatrix().Data, ry.RawMatrix().Data, k)
	} else {
		res, err = canonical(rx, ry, k)
	}
	if err != nil {
		return Result{}, fmt.Errorf("citest: %s: %w", claim, err)
	}
	res.Claim = claim

	if t.log != nil {
		t.log.Printf("citest: %s", res)
	}

	return res, nil
}

// pearson tests the correlation of two residual series from regressions
// on k covariates.
func pearson(x, y []float64, k int) (Result, error) {

	n := len(x)
	df := float64(n - 2 - k)
	if df < 1 {
		return Result{}, fmt.Errorf("%d observations are too few for %d covariates", n, k)
	}

	if floats.Norm(x, 2) == 0 || floats.Norm(y, 2) == 0 {
		return Result{}, fmt.Errorf("residuals are identically zero")
	}

	r := stat.Correlation(x, y, nil)
	r = math.Max(-1, math.Min(1, r))

	tstat := r * math.Sqrt(df/(1-r*r))
	pval := 0.0
	if !math.IsInf(tstat, 0) {
		tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		pval = 2 * tdist.Survival(math.Abs(tstat))
	}

	return Result{
		Estimate:  r,
		Statistic: tstat,
		DF:        df,
		PValue:    pval,
		Method:    Pearson,
	}, nil
}

// canonical tests the canonical correlations of two residual matrices
// from regressions on k covariates.
func canonical(x, y *mat.Dense, k int) (Result, error) {

	n, p := x.Dims()
	_, q := y.Dims()

	var cc stat.CC
	if err := cc.CanonicalCorrelations(x, y, nil); err != nil {
		return Result{}, err
	}
	rho := cc.CorrsTo(nil)

	// Wilks' lambda and Bartlett's approximation
	lambda := 1.0
	for _, r := range rho {
		lambda *= 1 - r*r
	}
	m := float64(n-1-k) - float64(p+q+1)/2
	if m <= 0 {
		return Result{}, fmt.Errorf("%d observations are too few for canonical correlation", n)
	}
	chi2 := -m * math.Log(lambda)
	df := float64(p * q)

	pval := 0.0
	if !math.IsInf(chi2, 0) {
		pval = distuv.ChiSquared{K: df}.Survival(chi2)
	}

	return Result{
		Estimate:  rho[0],
		Statistic: chi2,
		DF:        df,
		PValue:    pval,
		Method:    Canonical,
	}, nil
}
