package glm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Valkje/heart-failure/statmodel"
)

// Convergence tolerance for the change in deviance between IRLS iterations.
const dtol = 1e-8

// Means are kept this far inside (0, 1) for the binomial family.
const meanEps = 1e-10

func (glm *GLM) fitIRLS(start []float64, maxiter int) ([]float64, error) {

	linpred := glm.getNslice()
	mn := glm.getNslice()
	va := glm.getNslice()
	lderiv := glm.getNslice()
	irlsw := glm.getNslice()
	adjy := glm.getNslice()

	defer func() {
		glm.putNslice(linpred)
		glm.putNslice(mn)
		glm.putNslice(va)
		glm.putNslice(lderiv)
		glm.putNslice(irlsw)
		glm.putNslice(adjy)
	}()

	var nparam mat.VecDense

	nvar := glm.NumParams()

	xty := make([]float64, nvar)
	xtx := make([]float64, nvar*nvar)

	params := make([]float64, nvar)
	copy(params, start)

	xdat := make([][]statmodel.Dtype, len(glm.xpos))
	for j, k := range glm.xpos {
		xdat[j] = glm.data[k]
	}

	yda := glm.data[glm.ypos]
	wgt := glm.weights()
	var off []statmodel.Dtype
	if glm.offsetpos != -1 {
		off = glm.data[glm.offsetpos]
	}

	var dev []float64
	converged := false
	for iter := 0; iter < maxiter; iter++ {

		zero(xtx)
		zero(xty)

		if iter == 0 && glm.start == nil {
			// The starting linear predictor is the link of a
			// shrunken response.
			glm.startingMu(yda, mn)
			glm.link.Link(mn, linpred)
		} else {
			glm.linearPredictor(params, linpred)
			glm.link.InvLink(linpred, mn)
			glm.clampMean(mn)
		}

		glm.link.Deriv(mn, lderiv)
		glm.vari.Var(mn, va)

		devi := glm.fam.Deviance(yda, mn, wgt, 1)

		// Create weights for WLS
		for i := range yda {
			irlsw[i] = 1 / (lderiv[i] * lderiv[i] * va[i])
		}
		if wgt != nil {
			for i := range yda {
				irlsw[i] *= wgt[i]
			}
		}

		// Create an adjusted response for WLS.  The linear predictor
		// includes the offset, which is removed here.
		for i := range yda {
			adjy[i] = linpred[i] + lderiv[i]*(yda[i]-mn[i])
		}
		if off != nil && !(iter == 0 && glm.start == nil) {
			for i := range yda {
				adjy[i] -= off[i]
			}
		}

		irlsXprod(xdat, adjy, irlsw, xty, xtx)

		// Fill in the unfilled triangle of xtx
		for j1 := 0; j1 < nvar; j1++ {
			for j2 := j1 + 1; j2 < nvar; j2++ {
				xtx[j1*nvar+j2] = xtx[j2*nvar+j1]
			}
		}

		// Update the parameters
		xtxm := mat.NewDense(nvar, nvar, xtx)
		xtyv := mat.NewVecDense(nvar, xty)
		if err := nparam.SolveVec(xtxm, xtyv); err != nil {
			return nil, fmt.Errorf("IRLS for '%s': singular design matrix: %w",
				glm.varnames[glm.ypos], err)
		}
		copy(params, nparam.RawVector().Data)

		for _, v := range params {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("IRLS for '%s': non-finite parameter estimate",
					glm.varnames[glm.ypos])
			}
		}

		if glm.log != nil {
			glm.log.Printf("Iteration %d: deviance=%.10f\n", iter+1, devi)
		}

		// Check convergence
		dev = append(dev, devi)
		if len(dev) > 2 && math.Abs(dev[len(dev)-1]-dev[len(dev)-2]) < dtol*(1+math.Abs(devi)) {
			converged = true
			break
		}
	}

	if glm.log != nil {
		if converged {
			glm.log.Print("IRLS converged\n")
		} else {
			glm.log.Printf("IRLS did not converge in %d iterations\n", maxiter)
		}
	}

	return params, nil
}

func irlsXprod(xdat [][]statmodel.Dtype, adjy, irlsw, xty, xtx []float64) {

	nvar := len(xdat)

	for j1, xda := range xdat {

		// Update x' w^-1 yadj
		var u float64
		for i := range adjy {
			u += adjy[i] * xda[i] * irlsw[i]
		}
		xty[j1] += u

		// Update x' w^-1 x
		for j2 := 0; j2 <= j1; j2++ {
			xdb := xdat[j2]
			var u float64
			for i := range xda {
				u += xda[i] * xdb[i] * irlsw[i]
			}
			xtx[j1*nvar+j2] += u
		}
	}
}

func (glm *GLM) clampMean(mn []float64) {
	if glm.fam.TypeCode != BinomialFamily {
		return
	}
	for i, v := range mn {
		if v < meanEps {
			mn[i] = meanEps
		} else if v > 1-meanEps {
			mn[i] = 1 - meanEps
		}
	}
}

func (glm *GLM) startingMu(y []statmodel.Dtype, mn []float64) {

	var q float64
	if glm.fam.TypeCode == BinomialFamily {
		q = 0.5
	} else {
		for i := range y {
			q += y[i]
		}
		q /= float64(len(y))
	}
	for i := range mn {
		mn[i] = (y[i] + q) / 2
	}
}
