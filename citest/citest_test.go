package citest

import (
	"fmt"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/dag"
	"github.com/Valkje/heart-failure/statmodel"
)

// collider simulates A -> C <- B, with D an ordinal coarsening of A.
func collider(n int) (statmodel.Dataset, []cohort.Variable) {

	rng := rand.New(rand.NewSource(4328))

	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = rng.NormFloat64()
		b[i] = rng.NormFloat64()
		c[i] = a[i] + b[i] + rng.NormFloat64()
		switch {
		case a[i] < -0.5:
			d[i] = 0
		case a[i] < 0.5:
			d[i] = 1
		default:
			d[i] = 2
		}
	}

	ds := statmodel.NewDataset([][]float64{a, b, c, d}, []string{"A", "B", "C", "D"})
	vars := []cohort.Variable{
		{Name: "A", Kind: cohort.Continuous},
		{Name: "B", Kind: cohort.Continuous},
		{Name: "C", Kind: cohort.Continuous},
		{Name: "D", Kind: cohort.Ordinal},
	}

	return ds, vars
}

func TestPearson(t *testing.T) {

	ds, vars := collider(500)
	tester, err := NewTester(ds, vars, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Marginal test, the residuals are the centered data.
	r, err := tester.Test(dag.Claim{X: "A", Y: "C"})
	if err != nil {
		t.Fatal(err)
	}
	e := stat.Correlation(ds.MustGet("A"), ds.MustGet("C"), nil)
	if math.Abs(r.Estimate-e) > 1e-10 {
		fmt.Printf("Got      %v\n", r.Estimate)
		fmt.Printf("Expected %v\n", e)
		t.Fail()
	}
	if r.DF != 498 || r.Method != Pearson || r.PValue > 1e-6 {
		t.Fail()
	}

	// A and B are marginally independent
	r, err = tester.Test(dag.Claim{X: "A", Y: "B"})
	if err != nil {
		t.Fatal(err)
	}
	if r.PValue < 0.001 {
		fmt.Printf("Unexpected rejection: %v\n", r)
		t.Fail()
	}

	// but dependent given their common child
	r, err = tester.Test(dag.Claim{X: "A", Y: "B", Given: []string{"C"}})
	if err != nil {
		t.Fatal(err)
	}
	if r.PValue > 1e-6 || r.Estimate > -0.2 || r.DF != 497 {
		fmt.Printf("Expected strong negative partial correlation: %v\n", r)
		t.Fail()
	}
}

func TestCanonical(t *testing.T) {

	ds, vars := collider(500)
	tester, err := NewTester(ds, vars, nil)
	if err != nil {
		t.Fatal(err)
	}

	r, err := tester.Test(dag.Claim{X: "D", Y: "B"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Method != Canonical || r.DF != 2 {
		t.Fail()
	}
	if r.PValue < 0.001 {
		fmt.Printf("Unexpected rejection: %v\n", r)
		t.Fail()
	}

	r, err = tester.Test(dag.Claim{X: "D", Y: "C"})
	if err != nil {
		t.Fatal(err)
	}
	if r.PValue > 1e-6 || r.Estimate < 0.3 {
		fmt.Printf("Expected strong association: %v\n", r)
		t.Fail()
	}

	// With one column on each side the canonical correlation is the
	// absolute Pearson correlation.
	x := mat.NewDense(500, 1, append([]float64(nil), ds.MustGet("A")...))
	y := mat.NewDense(500, 1, append([]float64(nil), ds.MustGet("C")...))
	cr, err := canonical(x, y, 0)
	if err != nil {
		t.Fatal(err)
	}
	pr := stat.Correlation(ds.MustGet("A"), ds.MustGet("C"), nil)
	if math.Abs(cr.Estimate-math.Abs(pr)) > 1e-8 {
		t.Fail()
	}
	chi2 := -(500 - 1 - 1.5) * math.Log(1-pr*pr)
	if math.Abs(cr.Statistic-chi2) > 1e-6 {
		fmt.Printf("Got      %v\n", cr.Statistic)
		fmt.Printf("Expected %v\n", chi2)
		t.Fail()
	}
}

func TestDesign(t *testing.T) {

	x := []float64{2, 0, 1, 2, 0}
	cols := Design(x, cohort.Ordinal)
	if len(cols) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(cols))
	}
	if fmt.Sprintf("%v", cols) != "[[0 0 1 0 0] [1 0 0 1 0]]" {
		fmt.Printf("Got %v\n", cols)
		t.Fail()
	}

	if len(Design(x, cohort.Boolean)) != 1 || len(Design(x, cohort.Continuous)) != 1 {
		t.Fail()
	}
}

func TestCache(t *testing.T) {

	ds, vars := collider(100)
	tester, err := NewTester(ds, vars, &Config{CacheSize: 2})
	if err != nil {
		t.Fatal(err)
	}

	r1, _ := tester.Residuals("A", []string{"B"})
	r2, _ := tester.Residuals("A", []string{"B"})
	if r1 != r2 || tester.nfit != 1 {
		t.Fail()
	}

	// Evict A|B
	tester.Residuals("C", nil)
	tester.Residuals("D", nil)
	tester.Residuals("A", []string{"B"})
	if tester.nfit != 4 {
		t.Fail()
	}

	// Residuals are orthogonal to the covariates.
	var dot float64
	b := ds.MustGet("B")
	for i, v := range b {
		dot += v * r1.At(i, 0)
	}
	if math.Abs(dot) > 1e-8 || math.Abs(mat.Sum(r1)) > 1e-8 {
		t.Fail()
	}
}

func TestErrors(t *testing.T) {

	ds, vars := collider(50)
	if _, err := NewTester(ds, append(vars, cohort.Variable{Name: "E"}), nil); err == nil {
		t.Fail()
	}

	tester, err := NewTester(ds, vars[0:2], nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tester.Test(dag.Claim{X: "A", Y: "C"}); err == nil {
		t.Fail()
	}
}

func TestReplay(t *testing.T) {

	ds, vars := collider(500)
	tester, err := NewTester(ds, vars[0:3], nil)
	if err != nil {
		t.Fatal(err)
	}

	// The graph omits A -> C
	g, err := dag.Build([]string{"A", "B", "C"}, []dag.Edge{{From: "B", To: "C"}})
	if err != nil {
		t.Fatal(err)
	}

	results, err := Evaluate(g, tester)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fail()
	}
	viol := Violations(results, DefaultAlpha)
	if len(viol) != 1 || viol[0].Claim.X != "A" || viol[0].Claim.Y != "C" {
		fmt.Printf("Got %v\n", viol)
		t.Fail()
	}

	rounds := [][]dag.Edge{
		{{From: "A", To: "C"}},
		{{From: "A", To: "B"}},
	}
	steps, err := Replay(g, tester, rounds, DefaultAlpha)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	last := steps[1]
	if !last.Graph.HasEdge("A", "C") || last.Graph.HasEdge("A", "B") || len(last.Violations) != 0 {
		t.Fail()
	}

	// The input graph is unchanged.
	if g.HasEdge("A", "C") {
		t.Fail()
	}

	// A cyclic edit is an error.
	if _, err := Refine(last.Graph, tester, []dag.Edge{{From: "C", To: "A"}}, DefaultAlpha); err == nil {
		t.Fail()
	}
}
