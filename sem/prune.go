package sem

import (
	"github.com/Valkje/heart-failure/dag"
)

// PruneReport lists what Prune removed.
type PruneReport struct {
	RemovedEdges []dag.Edge
	DroppedNodes []string
}

// Prune removes every edge whose strength has a p-value above alpha.  It
// then drops, repeatedly until none remain, the nodes that had children
// in g but are left with none, except the protected nodes (the outcome
// should always be protected).  Nodes that were already sinks in g are
// kept.  Dropping childless nodes is a modelling
// simplification: a variable with no remaining effect on the rest of the
// graph is removed rather than kept as a sink.  Edges without a strength
// are kept.
func Prune(g dag.Graph, strengths []Strength, alpha float64, protect ...string) (dag.Graph, *PruneReport, error) {

	report := &PruneReport{}

	parent := make(map[string]bool)
	for _, e := range g.Edges() {
		parent[e.From] = true
	}

	for _, s := range strengths {
		if !(s.PValue > alpha) || !g.HasEdge(s.Parent, s.Child) {
			continue
		}
		var err error
		g, err = g.WithoutEdge(s.Parent, s.Child)
		if err != nil {
			return dag.Graph{}, nil, err
		}
		report.RemovedEdges = append(report.RemovedEdges, s.Edge())
	}

	keep := make(map[string]bool)
	for _, na := range protect {
		if !g.Has(na) {
			return dag.Graph{}, nil, &dag.NodeError{Node: na, Err: dag.ErrUnknownNode}
		}
		keep[na] = true
	}

	for {
		var drop []string
		for _, na := range g.Nodes() {
			if keep[na] || !parent[na] {
				continue
			}
			ch, err := g.Children(na)
			if err != nil {
				return dag.Graph{}, nil, err
			}
			if len(ch) == 0 {
				drop = append(drop, na)
			}
		}
		if len(drop) == 0 {
			break
		}

		var err error
		g, err = g.Without(drop...)
		if err != nil {
			return dag.Graph{}, nil, err
		}
		report.DroppedNodes = append(report.DroppedNodes, drop...)
	}

	return g, report, nil
}
