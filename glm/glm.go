package glm

import (
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/Valkje/heart-failure/statmodel"
)

// GLM represents a generalized linear model.
type GLM struct {

	// The names of the variables, in the same order as data.
	varnames []string

	// The data to which the model is fit
	data [][]statmodel.Dtype

	// Positions of the covariates
	xpos []int

	// Position of the outcome variable
	ypos int

	// Position of the offset variable, or -1.
	offsetpos int

	// Position of the case weight variable, or -1.
	weightpos int

	// The GLM family
	fam *Family

	// The GLM link function
	link *Link

	// The GLM variance function
	vari *Variance

	// Either "irls" or "gradient".
	fitMethod string

	// Starting values, optional
	start []float64

	// Maximum number of IRLS iterations
	maxIter int

	// Optimization settings, used by the gradient method
	settings *optimize.Settings

	// Optimization method, used by the gradient method
	method optimize.Method

	// If not nil, write log messages here
	log *log.Logger

	nslices [][]float64
}

// Config defines configuration parameters for a GLM.
type Config struct {

	// A logger to which logging information is written
	Log *log.Logger

	// Family is the GLM family, which fixes the variance function.  The
	// canonical link of the family is used unless Link is set.
	Family *Family

	// Link is the link function, optional.
	Link *Link

	// WeightVar is the name of a variable of case weights, optional.
	WeightVar string

	// OffsetVar is the name of a variable that defines an offset, optional.
	OffsetVar string

	// Start contains starting values for the regression parameter estimates
	Start []float64

	// FitMethod is either "IRLS" (the default) or "gradient".
	FitMethod string

	// MaxIter bounds the number of IRLS iterations.
	MaxIter int

	// OptMethod is the Gonum optimization method used with the gradient fit method.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultConfig returns default configuration values for a GLM, a linear
// model fit by least squares.
func DefaultConfig() *Config {
	return &Config{
		Family:    NewFamily(GaussianFamily),
		FitMethod: "IRLS",
		MaxIter:   20,
	}
}

// GLMParams represents the model parameters for a GLM.
type GLMParams struct {
	coeff []float64
	scale float64
}

// GetCoeff returns the coefficients (slopes for individual
// covariates) from the parameter.
func (p *GLMParams) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the coefficients (slopes for individual covariates)
// for the parameter.
func (p *GLMParams) SetCoeff(coeff []float64) {
	p.coeff = coeff
}

// Clone produces a deep copy of the parameter value.
func (p *GLMParams) Clone() statmodel.Parameter {
	coeff := make([]float64, len(p.coeff))
	copy(coeff, p.coeff)
	return &GLMParams{
		coeff: coeff,
		scale: p.scale,
	}
}

// NumParams returns the number of covariates in the model.
func (glm *GLM) NumParams() int {
	return len(glm.xpos)
}

// NumObs returns the number of observations used to fit the model.
func (glm *GLM) NumObs() int {
	return len(glm.data[glm.ypos])
}

// Xpos returns the positions of the covariates in the model's data.
func (glm *GLM) Xpos() []int {
	return glm.xpos
}

// Dataset returns the data columns that are used to fit the model.
func (glm *GLM) Dataset() [][]statmodel.Dtype {
	return glm.data
}

// GLMResults describes the results of a fitted generalized linear model.
type GLMResults struct {
	statmodel.BaseResults

	scale float64
}

// Scale returns the estimated scale parameter.
func (rslt *GLMResults) Scale() float64 {
	return rslt.scale
}

// FittedMean returns the fitted mean response for each observation used
// to fit the model.
func (rslt *GLMResults) FittedMean() []float64 {

	glm := rslt.Model().(*GLM)
	lp := rslt.FittedValues(nil)
	if glm.offsetpos != -1 {
		floats.Add(lp, glm.data[glm.offsetpos])
	}
	mn := make([]float64, len(lp))
	glm.link.InvLink(lp, mn)

	return mn
}

// Resid returns the response residuals (observed minus fitted mean).
func (rslt *GLMResults) Resid() []float64 {
	glm := rslt.Model().(*GLM)
	mn := rslt.FittedMean()
	r := make([]float64, len(mn))
	floats.SubTo(r, glm.data[glm.ypos], mn)
	return r
}

// NewGLM returns a GLM for regressing the outcome variable on the given
// predictors.  The GLM does not add an intercept; include a constant
// column among the predictors (see statmodel.WithIntercept) if one is
// needed.
func NewGLM(data statmodel.Dataset, outcome string, predictors []string, config *Config) (*GLM, error) {

	if config == nil {
		config = DefaultConfig()
	}

	if config.Family == nil {
		return nil, fmt.Errorf("GLM: the family must be defined")
	}

	ypos := data.Pos(outcome)
	if ypos == -1 {
		return nil, fmt.Errorf("Outcome variable '%s' not found in dataset", outcome)
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
		return nil, fmt.Errorf("GLM: no predictors for outcome '%s'", outcome)
	}

	getpos := func(vn, what string) (int, error) {
		if vn == "" {
			return -1, nil
		}
		loc := data.Pos(vn)
		if loc == -1 {
			return -1, fmt.Errorf("%s variable '%s' not found in dataset", what, vn)
		}
		return loc, nil
	}

	weightpos, err := getpos(config.WeightVar, "Weight")
	if err != nil {
		return nil, err
	}
	offsetpos, err := getpos(config.OffsetVar, "Offset")
	if err != nil {
		return nil, err
	}

	link := config.Link
	if link == nil {
		link = NewLink(config.Family.validLinks[0])
	}
	if !config.Family.IsValidLink(link) {
		return nil, fmt.Errorf("GLM: link %s is not valid for family %s", link.Name, config.Family.Name)
	}

	fitMethod := strings.ToLower(config.FitMethod)
	switch fitMethod {
	case "":
		fitMethod = "irls"
	case "irls", "gradient":
	default:
		return nil, fmt.Errorf("GLM fitting method %s not allowed", config.FitMethod)
	}

	maxIter := config.MaxIter
	if maxIter <= 0 {
		maxIter = 20
	}

	glm := &GLM{
		varnames:  data.Names(),
		data:      data.Data(),
		xpos:      xpos,
		ypos:      ypos,
		offsetpos: offsetpos,
		weightpos: weightpos,
		fam:       config.Family,
		link:      link,
		vari:      config.Family.variance,
		fitMethod: fitMethod,
		start:     config.Start,
		maxIter:   maxIter,
		settings:  config.OptSettings,
		method:    config.OptMethod,
		log:       config.Log,
	}

	if glm.start != nil && len(glm.start) != len(xpos) {
		return nil, fmt.Errorf("GLM: %d starting values for %d covariates", len(glm.start), len(xpos))
	}

	if err := glm.checkOutcome(); err != nil {
		return nil, err
	}

	return glm, nil
}

// checkOutcome verifies that the outcome is compatible with the family.
func (glm *GLM) checkOutcome() error {

	y := glm.data[glm.ypos]
	if glm.fam.TypeCode == BinomialFamily {
		for i, v := range y {
			if v != 0 && v != 1 {
				return fmt.Errorf("GLM: binomial outcome '%s' has value %v at row %d",
					glm.varnames[glm.ypos], v, i)
			}
		}
	}

	if glm.weightpos != -1 {
		for i, w := range glm.data[glm.weightpos] {
			if !(w >= 0) || math.IsInf(w, 1) {
				return fmt.Errorf("GLM: weight variable '%s' has invalid value %v at row %d",
					glm.varnames[glm.weightpos], w, i)
			}
		}
	}

	return nil
}

func (glm *GLM) putNslice(x []float64) {
	glm.nslices = append(glm.nslices, x)
}

func (glm *GLM) getNslice() []float64 {

	if len(glm.nslices) == 0 {
		return make([]float64, glm.NumObs())
	}
	q := len(glm.nslices) - 1
	x := glm.nslices[q]
	zero(x)
	glm.nslices = glm.nslices[0:q]

	return x
}

// linearPredictor fills lp with the linear predictor, including the offset.
func (glm *GLM) linearPredictor(coeff, lp []float64) {
	zero(lp)
	for j, k := range glm.xpos {
		floats.AddScaled(lp, coeff[j], glm.data[k])
	}
	if glm.offsetpos != -1 {
		floats.Add(lp, glm.data[glm.offsetpos])
	}
}

func (glm *GLM) weights() []statmodel.Dtype {
	if glm.weightpos == -1 {
		return nil
	}
	return glm.data[glm.weightpos]
}

// LogLike returns the log-likelihood value for the generalized linear
// model at the given parameter values.
func (glm *GLM) LogLike(params statmodel.Parameter, exact bool) float64 {

	gpar := params.(*GLMParams)

	linpred := glm.getNslice()
	mn := glm.getNslice()

	glm.linearPredictor(gpar.coeff, linpred)
	glm.link.InvLink(linpred, mn)
	ll := glm.fam.LogLike(glm.data[glm.ypos], mn, glm.weights(), gpar.scale, exact)

	glm.putNslice(linpred)
	glm.putNslice(mn)

	return ll
}

func scoreFactor(yda, mn, deriv, va, sfac []float64) {
	for i, y := range yda {
		sfac[i] = (y - mn[i]) / (deriv[i] * va[i])
	}
}

// Score returns the score vector for the generalized linear model at
// the given parameter values.
func (glm *GLM) Score(params statmodel.Parameter, score []float64) {

	gpar := params.(*GLMParams)

	linpred := glm.getNslice()
	mn := glm.getNslice()
	deriv := glm.getNslice()
	va := glm.getNslice()
	fac := glm.getNslice()

	zero(score)

	glm.linearPredictor(gpar.coeff, linpred)
	glm.link.InvLink(linpred, mn)
	glm.link.Deriv(mn, deriv)
	glm.vari.Var(mn, va)

	scoreFactor(glm.data[glm.ypos], mn, deriv, va, fac)
	if wgts := glm.weights(); wgts != nil {
		floats.Mul(fac, wgts)
	}

	for j, k := range glm.xpos {
		score[j] = floats.Dot(fac, glm.data[k])
	}

	glm.putNslice(linpred)
	glm.putNslice(mn)
	glm.putNslice(deriv)
	glm.putNslice(va)
	glm.putNslice(fac)
}

// Hessian returns the Hessian matrix for the model.  The Hessian is
// returned as a one-dimensional array, which is the vectorized form
// of the Hessian matrix.  Either the observed or expected Hessian can
// be calculated.
func (glm *GLM) Hessian(param statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	gpar := param.(*GLMParams)
	nvar := glm.NumParams()
	yda := glm.data[glm.ypos]
	wgts := glm.weights()

	linpred := glm.getNslice()
	mn := glm.getNslice()
	lderiv := glm.getNslice()
	va := glm.getNslice()
	fac := glm.getNslice()

	zero(hess)

	glm.linearPredictor(gpar.coeff, linpred)
	glm.link.InvLink(linpred, mn)
	glm.link.Deriv(mn, lderiv)
	glm.vari.Var(mn, va)

	// Factor for the expected Hessian
	for i := range lderiv {
		fac[i] = 1 / (lderiv[i] * lderiv[i] * va[i])
	}

	// Adjust the factor for the observed Hessian
	if ht == statmodel.ObsHess {
		vad := glm.getNslice()
		lderiv2 := glm.getNslice()
		sfac := glm.getNslice()
		glm.link.Deriv2(mn, lderiv2)
		glm.vari.Deriv(mn, vad)
		scoreFactor(yda, mn, lderiv, va, sfac)
		for i := range fac {
			h := va[i]*lderiv2[i] + lderiv[i]*vad[i]
			fac[i] *= 1 + h*sfac[i]
		}
		glm.putNslice(vad)
		glm.putNslice(lderiv2)
		glm.putNslice(sfac)
	}

	if wgts != nil {
		floats.Mul(fac, wgts)
	}

	for j1, k1 := range glm.xpos {
		x1 := glm.data[k1]
		for j2 := 0; j2 <= j1; j2++ {
			x2 := glm.data[glm.xpos[j2]]
			var u float64
			for i := range x1 {
				u += fac[i] * x1[i] * x2[i]
			}
			hess[j1*nvar+j2] = -u
			hess[j2*nvar+j1] = -u
		}
	}

	glm.putNslice(linpred)
	glm.putNslice(mn)
	glm.putNslice(lderiv)
	glm.putNslice(va)
	glm.putNslice(fac)
}

// Fit estimates the parameters of the GLM and returns a results
// object.
func (glm *GLM) Fit() (*GLMResults, error) {

	nvar := glm.NumParams()

	start := glm.start
	if start == nil {
		start = make([]float64, nvar)
	}

	var params []float64
	var err error
	if glm.fitMethod == "gradient" {
		if glm.log != nil {
			glm.log.Printf("GLM: fitting %s using gradient optimization\n", glm.varnames[glm.ypos])
		}
		params, err = glm.fitGradient(start)
	} else {
		if glm.log != nil {
			glm.log.Printf("GLM: fitting %s using IRLS\n", glm.varnames[glm.ypos])
		}
		params, err = glm.fitIRLS(start, glm.maxIter)
	}
	if err != nil {
		return nil, err
	}

	scale := glm.EstimateScale(params)

	vcov, err := statmodel.GetVcov(glm, &GLMParams{params, scale})
	if err != nil {
		return nil, fmt.Errorf("GLM: covariance for '%s': %w", glm.varnames[glm.ypos], err)
	}
	floats.Scale(scale, vcov)

	ll := glm.LogLike(&GLMParams{params, scale}, true)

	var xna []string
	for _, j := range glm.xpos {
		xna = append(xna, glm.varnames[j])
	}

	results := &GLMResults{
		BaseResults: statmodel.NewBaseResults(glm, ll, params, xna, vcov),
		scale:       scale,
	}

	return results, nil
}

// fitGradient uses gradient-based optimization to obtain the fitted
// GLM parameters.
func (glm *GLM) fitGradient(start []float64) ([]float64, error) {

	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return -glm.LogLike(&GLMParams{x, 1}, false)
		},
		Grad: func(grad, x []float64) {
			glm.Score(&GLMParams{x, 1}, grad)
			floats.Scale(-1, grad)
		},
	}

	settings := glm.settings
	if settings == nil {
		settings = &optimize.Settings{
			GradientThreshold: 1e-6,
		}
	}

	method := glm.method
	if method == nil {
		method = &optimize.BFGS{}
	}

	optrslt, err := optimize.Minimize(p, start, settings, method)
	if err != nil {
		if optrslt != nil {
			glm.failMessage(optrslt)
		}
		return nil, err
	}
	if err = optrslt.Status.Err(); err != nil {
		return nil, err
	}

	params := make([]float64, len(optrslt.X))
	copy(params, optrslt.X)

	return params, nil
}

// failMessage prints information that can help diagnose optimization failures.
func (glm *GLM) failMessage(optrslt *optimize.Result) {

	os.Stderr.WriteString(fmt.Sprintf("GLM for '%s' failed to converge\n", glm.varnames[glm.ypos]))
	os.Stderr.WriteString("Current point and gradient:\n")
	for j, x := range optrslt.X {
		var g float64
		if j < len(optrslt.Gradient) {
			g = optrslt.Gradient[j]
		}
		os.Stderr.WriteString(fmt.Sprintf("%16.8f %16.8f %s\n", x, g, glm.varnames[glm.xpos[j]]))
	}

	os.Stderr.WriteString("\nCovariate means and standard deviations:\n")
	for _, k := range glm.xpos {
		x := glm.data[k]
		mn := floats.Sum(x) / float64(len(x))
		var sd float64
		for _, y := range x {
			u := y - mn
			sd += u * u
		}
		sd = math.Sqrt(sd / float64(len(x)))
		os.Stderr.WriteString(fmt.Sprintf("%16.8f %16.8f %s\n", mn, sd, glm.varnames[k]))
	}
}

// EstimateScale returns an estimate of the GLM scale parameter at the
// given parameter values.
func (glm *GLM) EstimateScale(params []float64) float64 {

	if glm.fam.dispersionFixed {
		return 1
	}

	yda := glm.data[glm.ypos]
	wgt := glm.weights()

	linpred := glm.getNslice()
	mn := glm.getNslice()
	va := glm.getNslice()

	glm.linearPredictor(params, linpred)
	glm.link.InvLink(linpred, mn)
	glm.vari.Var(mn, va)

	var scale, ws float64
	for i, y := range yda {
		r := y - mn[i]
		if wgt == nil {
			scale += r * r / va[i]
			ws++
		} else {
			scale += wgt[i] * r * r / va[i]
			ws += wgt[i]
		}
	}

	glm.putNslice(linpred)
	glm.putNslice(mn)
	glm.putNslice(va)

	return scale / (ws - float64(glm.NumParams()))
}

// zero sets all elements of the slice to 0
func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// GLMSummary summarizes a fitted generalized linear model.
type GLMSummary struct {
	glm     *GLM
	results *GLMResults

	// Transform the parameters with this function.  If nil,
	// no transformation is applied.
	paramXform func(float64) float64

	// Messages that are appended to the table
	messages []string
}

// Summary displays a summary table of the model results.
func (rslt *GLMResults) Summary() *GLMSummary {
	return &GLMSummary{
		glm:     rslt.Model().(*GLM),
		results: rslt,
	}
}

// SetScale sets the scale on which the parameter results are
// displayed in the summary.  'xf' is a function that maps
// parameters and confidence limits from the linear scale to
// the desired scale.  'msg' is a message that is appended
// to the summary table.
func (gs *GLMSummary) SetScale(xf func(float64) float64, msg string) *GLMSummary {
	gs.paramXform = xf
	gs.messages = append(gs.messages, msg)
	return gs
}

// String returns a string representation of a summary table for the model.
func (gs *GLMSummary) String() string {

	xf := func(x float64) float64 {
		return x
	}
	if gs.paramXform != nil {
		xf = gs.paramXform
	}

	sum := &statmodel.SummaryTable{
		Title: "Generalized linear model analysis",
		Msg:   gs.messages,
		Top: []string{
			fmt.Sprintf("Outcome:  %s", gs.glm.varnames[gs.glm.ypos]),
			fmt.Sprintf("Family:   %s", gs.glm.fam.Name),
			fmt.Sprintf("Link:     %s", gs.glm.link.Name),
			fmt.Sprintf("Variance: %s", gs.glm.vari.Name),
			fmt.Sprintf("Num obs:  %d", gs.glm.NumObs()),
			fmt.Sprintf("Scale:    %f", gs.results.scale),
		},
	}

	var par, lcb, ucb []float64
	pax := gs.results.Params()
	se := gs.results.StdErr()
	for j := range pax {
		par = append(par, xf(pax[j]))
		lcb = append(lcb, xf(pax[j]-2*se[j]))
		ucb = append(ucb, xf(pax[j]+2*se[j]))
	}

	if gs.paramXform == nil {
		sum.ColNames = []string{"Variable   ", "Parameter", "SE", "LCB", "UCB", "Z-score", "P-value"}
		sum.ColFmt = []statmodel.Fmter{statmodel.StringFmt, statmodel.FloatFmt, statmodel.FloatFmt,
			statmodel.FloatFmt, statmodel.FloatFmt, statmodel.FloatFmt, statmodel.FloatFmt}
		sum.Cols = []interface{}{gs.results.Names(), par, se, lcb, ucb,
			gs.results.ZScores(), gs.results.PValues()}
	} else {
		sum.ColNames = []string{"Variable   ", "Parameter", "LCB", "UCB", "P-value"}
		sum.ColFmt = []statmodel.Fmter{statmodel.StringFmt, statmodel.FloatFmt, statmodel.FloatFmt,
			statmodel.FloatFmt, statmodel.FloatFmt}
		sum.Cols = []interface{}{gs.results.Names(), par, lcb, ucb, gs.results.PValues()}
	}

	return sum.String()
}
