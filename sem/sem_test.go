package sem

import (
	"fmt"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/Valkje/heart-failure/citest"
	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/dag"
	"github.com/Valkje/heart-failure/statmodel"
)

// chain simulates X1 -> X2 -> X3 with an unrelated W.
func chain(n int) statmodel.Dataset {

	rng := rand.New(rand.NewSource(9834))

	x1 := make([]float64, n)
	x2 := make([]float64, n)
	x3 := make([]float64, n)
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		x1[i] = rng.NormFloat64()
		x2[i] = 0.8*x1[i] + rng.NormFloat64()
		x3[i] = 0.5*x2[i] + rng.NormFloat64()
		w[i] = rng.NormFloat64()
	}

	return statmodel.NewDataset([][]float64{x1, x2, x3, w}, []string{"X1", "X2", "X3", "W"})
}

func build(t *testing.T, edges ...dag.Edge) dag.Graph {
	g, err := dag.Build([]string{"X1", "X2", "X3", "W"}, edges)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestFit(t *testing.T) {

	data := chain(2000)
	g := build(t,
		dag.Edge{From: "X1", To: "X2"},
		dag.Edge{From: "X2", To: "X3"},
		dag.Edge{From: "X1", To: "X3"},
		dag.Edge{From: "W", To: "X3"},
	)

	rslt, err := Fit(g, data, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(rslt.Strengths) != 4 {
		t.Fatalf("expected 4 strengths, got %d", len(rslt.Strengths))
	}

	for _, c := range []struct {
		from, to string
		coef     float64
	}{
		{"X1", "X2", 0.8},
		{"X2", "X3", 0.5},
		{"X1", "X3", 0},
		{"W", "X3", 0},
	} {
		s, ok := rslt.Strength(c.from, c.to)
		if !ok {
			t.Fatalf("no strength for %s -> %s", c.from, c.to)
		}
		if math.Abs(s.Estimate-c.coef) > 0.1 {
			fmt.Printf("%s -> %s\n", c.from, c.to)
			fmt.Printf("Got      %v\n", s.Estimate)
			fmt.Printf("Expected %v\n", c.coef)
			t.Fail()
		}
		if s.Method != MethodSEM || !(s.StdErr > 0) {
			t.Fail()
		}
	}

	if math.Abs(rslt.ResidVar["X3"]-1) > 0.1 || math.Abs(rslt.ResidVar["X2"]-1) > 0.1 {
		t.Fail()
	}
	if _, ok := rslt.ResidVar["X1"]; ok {
		t.Fail()
	}

	// Only the X2, W pair is constrained.
	if rslt.DF != 1 {
		fmt.Printf("Got df=%d, expected 1\n", rslt.DF)
		t.Fail()
	}
	if rslt.PValue < 0.001 {
		fmt.Printf("Correct model rejected: chi2=%v p=%v\n", rslt.Chi2, rslt.PValue)
		t.Fail()
	}

	// Identical inputs give identical estimates.
	rslt2, err := Fit(g, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range rslt.Strengths {
		if rslt.Strengths[i].Estimate != rslt2.Strengths[i].Estimate ||
			rslt.Strengths[i].StdErr != rslt2.Strengths[i].StdErr {
			t.Fail()
		}
	}
	if rslt.Chi2 != rslt2.Chi2 {
		t.Fail()
	}
}

func TestFitMisspecified(t *testing.T) {

	data := chain(2000)

	// X2 -> X3 is missing.
	g := build(t,
		dag.Edge{From: "X1", To: "X2"},
		dag.Edge{From: "X1", To: "X3"},
		dag.Edge{From: "W", To: "X3"},
	)

	rslt, err := Fit(g, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rslt.DF != 2 {
		t.Fail()
	}
	if rslt.PValue > 1e-6 {
		fmt.Printf("Misspecified model not rejected: chi2=%v p=%v\n", rslt.Chi2, rslt.PValue)
		t.Fail()
	}
}

func TestFitSaturated(t *testing.T) {

	data := chain(500)
	g, err := dag.Build([]string{"X1", "X2"}, []dag.Edge{{From: "X1", To: "X2"}})
	if err != nil {
		t.Fatal(err)
	}

	rslt, err := Fit(g, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rslt.DF != 0 || !math.IsNaN(rslt.PValue) || rslt.Chi2 > 1e-8 {
		fmt.Printf("Got df=%d chi2=%v p=%v\n", rslt.DF, rslt.Chi2, rslt.PValue)
		t.Fail()
	}

	g, _ = dag.New("X1", "Q")
	if _, err := Fit(g, data, nil); err == nil {
		t.Fail()
	}
}

func TestPartialCorrelations(t *testing.T) {

	data := chain(2000)
	vars := []cohort.Variable{
		{Name: "X1", Kind: cohort.Continuous},
		{Name: "X2", Kind: cohort.Continuous},
		{Name: "X3", Kind: cohort.Continuous},
		{Name: "W", Kind: cohort.Continuous},
	}
	tester, err := citest.NewTester(data, vars, nil)
	if err != nil {
		t.Fatal(err)
	}

	g := build(t,
		dag.Edge{From: "X1", To: "X2"},
		dag.Edge{From: "X2", To: "X3"},
		dag.Edge{From: "X1", To: "X3"},
	)

	st, err := PartialCorrelations(g, tester)
	if err != nil {
		t.Fatal(err)
	}
	if len(st) != 3 {
		t.Fatalf("expected 3 strengths, got %d", len(st))
	}

	for _, s := range st {
		if s.Method != MethodPartial || !math.IsNaN(s.ResidVar) {
			t.Fail()
		}
		switch s.Edge() {
		case dag.Edge{From: "X1", To: "X2"}:
			// corr(X1, X2) = 0.8/sqrt(1.64)
			if math.Abs(s.Estimate-0.625) > 0.05 {
				fmt.Printf("Got %v, expected 0.625\n", s.Estimate)
				t.Fail()
			}
		case dag.Edge{From: "X2", To: "X3"}:
			if s.Estimate < 0.3 || s.PValue > 1e-6 {
				t.Fail()
			}
		case dag.Edge{From: "X1", To: "X3"}:
			if math.Abs(s.Estimate) > 0.1 {
				t.Fail()
			}
		default:
			t.Fail()
		}
	}
}

func TestPrune(t *testing.T) {

	g, err := dag.Build([]string{"A", "B", "C", "D", "E", "Y"}, []dag.Edge{
		{From: "A", To: "B"},
		{From: "C", To: "B"},
		{From: "B", To: "Y"},
		{From: "D", To: "Y"},
		{From: "E", To: "D"},
	})
	if err != nil {
		t.Fatal(err)
	}

	st := []Strength{
		{Parent: "A", Child: "B", PValue: 0.5},
		{Parent: "C", Child: "B", PValue: 0.01},
		{Parent: "B", Child: "Y", PValue: 0.001},
		{Parent: "D", Child: "Y", PValue: 0.3},
		{Parent: "E", Child: "D", PValue: 0.001},
	}

	h, report, err := Prune(g, st, 0.05, "Y")
	if err != nil {
		t.Fatal(err)
	}

	if fmt.Sprintf("%v", h.Nodes()) != "[B C Y]" {
		fmt.Printf("Got %v\n", h.Nodes())
		t.Fail()
	}
	if fmt.Sprintf("%v", h.Edges()) != "[B -> Y C -> B]" {
		fmt.Printf("Got %v\n", h.Edges())
		t.Fail()
	}
	if fmt.Sprintf("%v", report.RemovedEdges) != "[A -> B D -> Y]" {
		t.Fail()
	}
	if fmt.Sprintf("%v", report.DroppedNodes) != "[A D E]" {
		fmt.Printf("Got %v\n", report.DroppedNodes)
		t.Fail()
	}

	// The input graph is unchanged.
	if g.NumNodes() != 6 || g.NumEdges() != 5 {
		t.Fail()
	}

	if _, _, err := Prune(g, st, 0.05, "Q"); err == nil {
		t.Fail()
	}

	// A node that was a sink before pruning stays.
	g, err = dag.Build([]string{"X", "M", "Y"}, []dag.Edge{
		{From: "X", To: "Y"},
		{From: "X", To: "M"},
	})
	if err != nil {
		t.Fatal(err)
	}
	st = []Strength{
		{Parent: "X", Child: "Y", PValue: 0.001},
		{Parent: "X", Child: "M", PValue: 0.001},
	}
	h, report, err = Prune(g, st, 0.05, "Y")
	if err != nil {
		t.Fatal(err)
	}
	if h.NumNodes() != 3 || h.NumEdges() != 2 || len(report.DroppedNodes) != 0 {
		fmt.Printf("Got %v, dropped %v\n", h.Nodes(), report.DroppedNodes)
		t.Fail()
	}

	// Once X -> M is removed, M is still kept, and X keeps its edge to Y.
	st[1].PValue = 0.5
	h, report, err = Prune(g, st, 0.05, "Y")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprintf("%v", h.Nodes()) != "[X M Y]" || len(report.DroppedNodes) != 0 {
		fmt.Printf("Got %v, dropped %v\n", h.Nodes(), report.DroppedNodes)
		t.Fail()
	}
}

func TestOutcomeHazards(t *testing.T) {

	rng := rand.New(rand.NewSource(5512))
	n := 1000

	x := make([]float64, n)
	z := make([]float64, n)
	time := make([]float64, n)
	event := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		z[i] = rng.NormFloat64()
		time[i] = rng.ExpFloat64() / math.Exp(0.7*x[i])
		c := 3 * rng.Float64()
		if c < time[i] {
			time[i] = c
		} else {
			event[i] = 1
		}
	}
	data := statmodel.NewDataset([][]float64{x, z, time, event}, []string{"X", "Z", "Time", "Event"})

	g, err := dag.Build([]string{"X", "Z", "Event"}, []dag.Edge{
		{From: "X", To: "Event"},
		{From: "Z", To: "Event"},
	})
	if err != nil {
		t.Fatal(err)
	}

	st, ph, err := OutcomeHazards(g, data, "Event", "Time", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(st) != 2 || st[0].Parent != "X" || st[1].Parent != "Z" {
		t.Fatalf("unexpected strengths %v", st)
	}
	if math.Abs(st[0].Estimate-0.7) > 0.15 || math.Abs(st[1].Estimate) > 0.15 {
		fmt.Printf("Got %v\n", st)
		t.Fail()
	}
	if st[0].Method != MethodPH || st[0].PValue > 1e-6 {
		t.Fail()
	}
	if ph.Params()[0] != st[0].Estimate {
		t.Fail()
	}

	// The hazard estimates replace the linear ones for edges into Event.
	base := []Strength{
		{Parent: "X", Child: "Event", Estimate: 0.1, Method: MethodSEM},
		{Parent: "Z", Child: "Event", Estimate: 0.2, Method: MethodSEM},
		{Parent: "X", Child: "Z", Estimate: 0.3, Method: MethodSEM},
	}
	m := Merge(base, st)
	if m[0].Method != MethodPH || m[1].Method != MethodPH || m[2].Method != MethodSEM {
		t.Fail()
	}

	// Without parents there is nothing to fit.
	g, _ = dag.New("X", "Event")
	if _, _, err := OutcomeHazards(g, data, "Event", "Time", nil); err == nil {
		t.Fail()
	}
}
