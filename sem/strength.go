package sem

import (
	"fmt"
	"math"

	"github.com/Valkje/heart-failure/citest"
	"github.com/Valkje/heart-failure/dag"
)

// Estimation methods reported in Strength.
const (
	MethodPartial = "partial"
	MethodSEM     = "sem"
	MethodPH      = "ph"
)

// Strength is the estimated strength of one edge.
type Strength struct {
	Parent, Child string

	Estimate float64
	StdErr   float64
	PValue   float64

	// ResidVar is the residual variance of the child's equation, or NaN
	// if the method has none.
	ResidVar float64

	Method string
}

// Edge returns the edge that the strength refers to.
func (s Strength) Edge() dag.Edge {
	return dag.Edge{From: s.Parent, To: s.Child}
}

func (s Strength) String() string {
	return fmt.Sprintf("%-24s %-24s %9.4f %9.4f %8.4f %s", s.Parent, s.Child, s.Estimate, s.StdErr, s.PValue, s.Method)
}

// PartialCorrelations estimates every edge P -> C of the graph by the
// correlation between P and C after residualizing both on the other
// parents of C.  When either variable is ordinal the first canonical
// correlation is reported, which is non-negative and has no standard
// error.
func PartialCorrelations(g dag.Graph, t *citest.Tester) ([]Strength, error) {

	var st []Strength
	for _, e := range g.Edges() {

		pa, err := g.Parents(e.To)
		if err != nil {
			return nil, err
		}
		var other []string
		for _, p := range pa {
			if p != e.From {
				other = append(other, p)
			}
		}

		r, err := t.Test(dag.Claim{X: e.From, Y: e.To, Given: other})
		if err != nil {
			return nil, fmt.Errorf("sem: edge %s: %w", e, err)
		}

		se := math.NaN()
		if r.Method == citest.Pearson {
			se = math.Sqrt((1 - r.Estimate*r.Estimate) / r.DF)
		}

		st = append(st, Strength{
			Parent:   e.From,
			Child:    e.To,
			Estimate: r.Estimate,
			StdErr:   se,
			PValue:   r.PValue,
			ResidVar: math.NaN(),
			Method:   MethodPartial,
		})
	}

	return st, nil
}

// Merge returns base with every strength for an edge present in
// override replaced by the override.  The order of base is kept.
func Merge(base, override []Strength) []Strength {

	ov := make(map[dag.Edge]Strength)
	for _, s := range override {
		ov[s.Edge()] = s
	}

	out := make([]Strength, len(base))
	for i, s := range base {
		if r, ok := ov[s.Edge()]; ok {
			out[i] = r
		} else {
			out[i] = s
		}
	}

	return out
}
