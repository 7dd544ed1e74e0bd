package structure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Valkje/heart-failure/statmodel"
)

// Data holds discrete variables, with the levels of each coded 0, 1, ...
type Data struct {
	names  []string
	cols   [][]int
	levels []int
	n      int
}

// NewData extracts the named variables from a dataset.  Every value must
// be a non-negative integer.
func NewData(ds statmodel.Dataset, names []string) (*Data, error) {

	d := &Data{
		names: append([]string(nil), names...),
		n:     ds.NumObs(),
	}

	for _, na := range names {
		x, ok := ds.Get(na)
		if !ok {
			return nil, fmt.Errorf("structure: variable '%s' not found", na)
		}
		col := make([]int, len(x))
		var mx int
		for i, v := range x {
			k := int(v)
			if float64(k) != v || k < 0 {
				return nil, fmt.Errorf("structure: variable '%s' has non-level value %v in row %d", na, v, i)
			}
			col[i] = k
			if k > mx {
				mx = k
			}
		}
		d.cols = append(d.cols, col)
		d.levels = append(d.levels, mx+1)
	}

	return d, nil
}

// Names returns the variable names.
func (d *Data) Names() []string {
	return d.names
}

// NumObs returns the number of observations.
func (d *Data) NumObs() int {
	return d.n
}

// configs codes the joint level of the variables in z for each
// observation, returning the codes and the number of possible codes.
func (d *Data) configs(z []int) ([]int, int) {

	code := make([]int, d.n)
	nc := 1
	for _, j := range z {
		for i, v := range d.cols[j] {
			code[i] = code[i]*d.levels[j] + v
		}
		nc *= d.levels[j]
	}

	return code, nc
}

// GSquare tests the independence of variables x and y given the
// variables z, by position.  The degrees of freedom of each stratum of z
// count only the observed levels of x and y.  If no stratum has any
// degrees of freedom the p-value is 1.
func (d *Data) GSquare(x, y int, z []int) (g2, df, pval float64) {

	code, nz := d.configs(z)
	rx, ry := d.levels[x], d.levels[y]

	cnt := make([]float64, nz*rx*ry)
	for i := 0; i < d.n; i++ {
		cnt[(code[i]*rx+d.cols[x][i])*ry+d.cols[y][i]]++
	}

	nx := make([]float64, rx)
	ny := make([]float64, ry)
	for c := 0; c < nz; c++ {
		tab := cnt[c*rx*ry : (c+1)*rx*ry]
		for a := range nx {
			nx[a] = 0
		}
		for b := range ny {
			ny[b] = 0
		}
		var nt float64
		for a := 0; a < rx; a++ {
			for b := 0; b < ry; b++ {
				v := tab[a*ry+b]
				nx[a] += v
				ny[b] += v
				nt += v
			}
		}
		if nt == 0 {
			continue
		}

		for a := 0; a < rx; a++ {
			for b := 0; b < ry; b++ {
				if v := tab[a*ry+b]; v > 0 {
					g2 += 2 * v * math.Log(v*nt/(nx[a]*ny[b]))
				}
			}
		}
		df += float64((nonzero(nx) - 1) * (nonzero(ny) - 1))
	}

	if df <= 0 {
		return g2, 0, 1
	}

	return g2, df, distuv.ChiSquared{K: df}.Survival(g2)
}

func nonzero(x []float64) int {
	var m int
	for _, v := range x {
		if v > 0 {
			m++
		}
	}
	return m
}

// BIC returns the BIC contribution of variable x with the given parents:
// the multinomial log-likelihood of x within each parent configuration,
// less log(n)/2 per free parameter.
func (d *Data) BIC(x int, parents []int) float64 {

	code, q := d.configs(parents)
	r := d.levels[x]

	cnt := make([]float64, q*r)
	npa := make([]float64, q)
	for i, c := range code {
		cnt[c*r+d.cols[x][i]]++
		npa[c]++
	}

	var ll float64
	for k, v := range cnt {
		if v > 0 {
			ll += v * math.Log(v/npa[k/r])
		}
	}

	return ll - 0.5*math.Log(float64(d.n))*float64((r-1)*q)
}
