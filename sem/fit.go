package sem

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Valkje/heart-failure/dag"
	"github.com/Valkje/heart-failure/glm"
	"github.com/Valkje/heart-failure/statmodel"
)

// Results holds a joint fit of a recursive structural equation model.
type Results struct {

	// Strengths has one entry per edge, in the order of g.Edges.
	Strengths []Strength

	// ResidVar is the residual variance of each non-root node's
	// equation, with degrees of freedom correction.
	ResidVar map[string]float64

	// Equations holds the fitted regression for each non-root node.
	Equations map[string]*glm.GLMResults

	// Chi2 is the likelihood ratio statistic comparing the model's
	// implied covariance matrix to the sample covariance, DF its
	// degrees of freedom and PValue its p-value.  PValue is NaN when
	// the model is saturated.
	Chi2   float64
	DF     int
	PValue float64

	NumObs int
}

// Config contains optional settings for Fit.
type Config struct {
	Log *log.Logger
}

// Fit fits the recursive linear structural equation model defined by the
// graph: each non-root node is regressed on its parents with an
// intercept, and the exogenous (root) nodes have a free covariance
// matrix.  With normal errors the least squares fits are the maximum
// likelihood estimates, so the equations can be fit separately.  The
// implied covariance matrix is then compared to the sample covariance
// matrix with the maximum likelihood discrepancy function.
func Fit(g dag.Graph, data statmodel.Dataset, config *Config) (*Results, error) {

	if config == nil {
		config = &Config{}
	}

	nodes := g.Nodes()
	for _, na := range nodes {
		if !data.Has(na) {
			return nil, fmt.Errorf("sem: variable '%s' not found in dataset", na)
		}
	}

	n := data.NumObs()
	p := len(nodes)
	pos := make(map[string]int)
	for j, na := range nodes {
		pos[na] = j
	}

	da := statmodel.WithIntercept(data)
	gc := glm.DefaultConfig()
	gc.Log = config.Log

	rslt := &Results{
		ResidVar:  make(map[string]float64),
		Equations: make(map[string]*glm.GLMResults),
		NumObs:    n,
	}

	// beta[c][p] is the coefficient of parent p in the equation for c.
	beta := mat.NewDense(p, p, nil)

	// ML residual variances of the endogenous nodes
	psi := make([]float64, p)

	coef := make(map[dag.Edge]Strength)
	for _, c := range g.Sort() {

		pa, err := g.Parents(c)
		if err != nil {
			return nil, err
		}
		if len(pa) == 0 {
			continue
		}

		model, err := glm.NewGLM(da, c, append([]string{statmodel.InterceptName}, pa...), gc)
		if err != nil {
			return nil, fmt.Errorf("sem: equation for %s: %w", c, err)
		}
		fit, err := model.Fit()
		if err != nil {
			return nil, fmt.Errorf("sem: equation for %s: %w", c, err)
		}
		rslt.Equations[c] = fit

		scale := fit.Scale()
		rslt.ResidVar[c] = scale
		df := float64(n - len(pa) - 1)
		psi[pos[c]] = scale * df / float64(n)

		pv := fit.PValues()
		se := fit.StdErr()
		for k, na := range pa {
			b := fit.Params()[k+1]
			beta.Set(pos[c], pos[na], b)
			coef[dag.Edge{From: na, To: c}] = Strength{
				Parent:   na,
				Child:    c,
				Estimate: b,
				StdErr:   se[k+1],
				PValue:   pv[k+1],
				ResidVar: scale,
				Method:   MethodSEM,
			}
		}
	}

	for _, e := range g.Edges() {
		rslt.Strengths = append(rslt.Strengths, coef[e])
	}

	if err := rslt.fitTest(g, data, beta, psi, pos); err != nil {
		return nil, err
	}

	return rslt, nil
}

// fitTest computes the chi-square test of the implied covariance matrix.
func (rslt *Results) fitTest(g dag.Graph, data statmodel.Dataset, beta *mat.Dense, psi []float64, pos map[string]int) error {

	nodes := g.Nodes()
	n := data.NumObs()
	p := len(nodes)

	x := mat.NewDense(n, p, nil)
	for j, na := range nodes {
		x.SetCol(j, data.MustGet(na))
	}

	// The ML covariance estimate
	var s mat.SymDense
	stat.CovarianceMatrix(&s, x, nil)
	s.ScaleSym(float64(n-1)/float64(n), &s)

	// Psi has the sample covariance of the roots and the residual
	// variances of the other nodes.
	roots := g.Roots()
	ps := mat.NewSymDense(p, nil)
	for _, a := range roots {
		for _, b := range roots {
			ps.SetSym(pos[a], pos[b], s.At(pos[a], pos[b]))
		}
	}
	for j := range nodes {
		if psi[j] > 0 {
			ps.SetSym(j, j, psi[j])
		}
	}

	// Sigma = (I - B)^-1 Psi (I - B)^-T
	ib := mat.NewDense(p, p, nil)
	for j := 0; j < p; j++ {
		ib.Set(j, j, 1)
	}
	ib.Sub(ib, beta)
	var ibi mat.Dense
	if err := ibi.Inverse(ib); err != nil {
		return fmt.Errorf("sem: inverting I - B: %w", err)
	}
	var sigma, tmp mat.Dense
	tmp.Mul(&ibi, ps)
	sigma.Mul(&tmp, ibi.T())

	ldSigma, sign1 := mat.LogDet(&sigma)
	ldS, sign2 := mat.LogDet(&s)
	if sign1 <= 0 || sign2 <= 0 {
		return fmt.Errorf("sem: covariance matrix is not positive definite")
	}

	// tr(S Sigma^-1)
	var q mat.Dense
	if err := q.Solve(&sigma, &s); err != nil {
		return fmt.Errorf("sem: implied covariance: %w", err)
	}
	tr := mat.Trace(&q)

	f := ldSigma + tr - ldS - float64(p)
	if f < 0 {
		// Rounding error for saturated models
		f = 0
	}
	rslt.Chi2 = float64(n) * f

	// Free parameters: edges, residual variances, root covariances.
	nr := len(roots)
	free := g.NumEdges() + (p - nr) + nr*(nr+1)/2
	rslt.DF = p*(p+1)/2 - free
	if rslt.DF > 0 {
		rslt.PValue = distuv.ChiSquared{K: float64(rslt.DF)}.Survival(rslt.Chi2)
	} else {
		rslt.PValue = math.NaN()
	}

	return nil
}

// Strength returns the estimate for the edge from -> to.
func (rslt *Results) Strength(from, to string) (Strength, bool) {
	for _, s := range rslt.Strengths {
		if s.Parent == from && s.Child == to {
			return s, true
		}
	}
	return Strength{}, false
}
