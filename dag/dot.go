package dag

import (
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// dotNode is a node with display attributes.
type dotNode struct {
	node
	attrs encoding.Attributes
}

func (n dotNode) Attributes() []encoding.Attribute {
	return n.attrs
}

// dotGraph adds graph level attributes to the DOT output.
type dotGraph struct {
	*simple.DirectedGraph
}

func (dotGraph) DOTAttributers() (graph, node, edge encoding.Attributer) {
	graph = &encoding.Attributes{{Key: "rankdir", Value: "LR"}}
	node = &encoding.Attributes{{Key: "shape", Value: "box"}, {Key: "fontname", Value: "Helvetica"}}
	edge = &encoding.Attributes{}
	return
}

// DOT returns the graph in the Graphviz DOT language.  The highlighted
// nodes (typically the exposure and outcome) are drawn filled.
func (g Graph) DOT(name string, highlight ...string) ([]byte, error) {

	hl := make(map[string]bool)
	for _, na := range highlight {
		if !g.Has(na) {
			return nil, &NodeError{Node: na, Err: ErrUnknownNode}
		}
		hl[na] = true
	}

	dg := dotGraph{simple.NewDirectedGraph()}
	nodes := make([]dotNode, len(g.names))
	for i, na := range g.names {
		nodes[i] = dotNode{node: node{id: int64(i), name: na}}
		if hl[na] {
			nodes[i].attrs = encoding.Attributes{
				{Key: "style", Value: "filled"},
				{Key: "fillcolor", Value: "lightgrey"},
			}
		}
		dg.AddNode(nodes[i])
	}
	for _, e := range g.Edges() {
		dg.SetEdge(dg.NewEdge(nodes[g.index[e.From]], nodes[g.index[e.To]]))
	}

	return dot.Marshal(dg, name, "", "  ")
}
