// Package dag represents causal directed acyclic graphs over named
// variables.
//
// A Graph is an immutable value.  Adding or removing edges returns a new
// Graph and leaves the receiver unchanged, so that every stage of an
// analysis can keep the graph it was given.  Acyclicity is checked on
// every edit.  The node set is fixed when a Graph is constructed; Without
// returns a new Graph over fewer nodes.
package dag

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	// ErrCycle is returned when an edge would make the graph cyclic.
	ErrCycle = errors.New("edge creates a cycle")

	// ErrUnknownNode is returned when a node name is not declared in
	// the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDuplicateNode is returned by New when a name is repeated.
	ErrDuplicateNode = errors.New("duplicate node")
)

// EdgeError reports an invalid edge edit.
type EdgeError struct {
	From, To string
	Err      error
}

func (e *EdgeError) Error() string {
	return fmt.Sprintf("dag: edge %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *EdgeError) Unwrap() error {
	return e.Err
}

// NodeError reports a reference to an invalid node.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("dag: node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// Edge is a directed edge between two named nodes.
type Edge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

func (e Edge) String() string {
	return e.From + " -> " + e.To
}

// node is a graph node whose ID is its position in the declaration order.
type node struct {
	id   int64
	name string
}

func (n node) ID() int64 {
	return n.id
}

// DOTID returns the node name for DOT output.
func (n node) DOTID() string {
	return n.name
}

// Graph is a directed acyclic graph over a fixed set of named nodes.
type Graph struct {
	names []string
	index map[string]int
	dg    *simple.DirectedGraph
}

// New returns a graph with the given nodes and no edges.  The order of
// the names is the declaration order, which determines the order of all
// node lists returned by the graph's methods.
func New(names ...string) (Graph, error) {

	g := Graph{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
		dg:    simple.NewDirectedGraph(),
	}

	for i, na := range names {
		if _, ok := g.index[na]; ok {
			return Graph{}, &NodeError{Node: na, Err: ErrDuplicateNode}
		}
		g.index[na] = i
		g.dg.AddNode(node{id: int64(i), name: na})
	}

	return g, nil
}

// Build returns a graph with the given nodes and edges.
func Build(names []string, edges []Edge) (Graph, error) {
	g, err := New(names...)
	if err != nil {
		return Graph{}, err
	}
	return g.WithEdges(edges...)
}

// clone returns a copy of the graph that can be edited.
func (g Graph) clone() Graph {

	h := Graph{
		names: g.names,
		index: g.index,
		dg:    simple.NewDirectedGraph(),
	}

	for i, na := range g.names {
		h.dg.AddNode(node{id: int64(i), name: na})
	}
	edges := g.dg.Edges()
	for edges.Next() {
		e := edges.Edge()
		h.dg.SetEdge(h.dg.NewEdge(e.From(), e.To()))
	}

	return h
}

// lookup returns the index of a node.
func (g Graph) lookup(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

func (g Graph) mustLookup(name string) (int, error) {
	i, ok := g.index[name]
	if !ok {
		return -1, &NodeError{Node: name, Err: ErrUnknownNode}
	}
	return i, nil
}

// lookupAll converts node names to sorted indices.
func (g Graph) lookupAll(names []string) ([]int, error) {
	var ix []int
	for _, na := range names {
		i, err := g.mustLookup(na)
		if err != nil {
			return nil, err
		}
		ix = append(ix, i)
	}
	sort.Ints(ix)
	return ix, nil
}

func (g Graph) toNames(ix []int) []string {
	if len(ix) == 0 {
		return nil
	}
	na := make([]string, len(ix))
	for k, i := range ix {
		na[k] = g.names[i]
	}
	return na
}

// Nodes returns the node names in declaration order.
func (g Graph) Nodes() []string {
	return append([]string(nil), g.names...)
}

// NumNodes returns the number of nodes.
func (g Graph) NumNodes() int {
	return len(g.names)
}

// Has reports whether the graph declares the named node.
func (g Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// HasEdge reports whether the graph contains the edge from -> to.
func (g Graph) HasEdge(from, to string) bool {
	i, ok1 := g.lookup(from)
	j, ok2 := g.lookup(to)
	return ok1 && ok2 && g.dg.HasEdgeFromTo(int64(i), int64(j))
}

// Adjacent reports whether there is an edge between x and y in either
// direction.
func (g Graph) Adjacent(x, y string) bool {
	return g.HasEdge(x, y) || g.HasEdge(y, x)
}

// Edges returns all edges, ordered by the declaration order of their
// source and then of their target.
func (g Graph) Edges() []Edge {
	var edges []Edge
	for i := range g.names {
		for _, j := range g.children(i) {
			edges = append(edges, Edge{From: g.names[i], To: g.names[j]})
		}
	}
	return edges
}

// NumEdges returns the number of edges.
func (g Graph) NumEdges() int {
	return g.dg.Edges().Len()
}

// WithEdge returns a new graph that adds the edge from -> to.  The
// receiver is not changed.  Adding an edge that is already present
// returns an equal graph.
func (g Graph) WithEdge(from, to string) (Graph, error) {
	return g.WithEdges(Edge{From: from, To: to})
}

// WithEdges returns a new graph that adds all the given edges, in order.
// The first invalid edge is reported as an *EdgeError.
func (g Graph) WithEdges(edges ...Edge) (Graph, error) {

	h := g.clone()
	for _, e := range edges {
		i, ok1 := g.lookup(e.From)
		j, ok2 := g.lookup(e.To)
		if !ok1 || !ok2 {
			return Graph{}, &EdgeError{From: e.From, To: e.To, Err: ErrUnknownNode}
		}
		if i == j {
			return Graph{}, &EdgeError{From: e.From, To: e.To, Err: ErrCycle}
		}
		if h.dg.HasEdgeFromTo(int64(i), int64(j)) {
			continue
		}
		if topo.PathExistsIn(h.dg, h.dg.Node(int64(j)), h.dg.Node(int64(i))) {
			return Graph{}, &EdgeError{From: e.From, To: e.To, Err: ErrCycle}
		}
		h.dg.SetEdge(h.dg.NewEdge(h.dg.Node(int64(i)), h.dg.Node(int64(j))))
	}

	return h, nil
}

// WithoutEdge returns a new graph without the edge from -> to.  Removing
// an edge that is not present is not an error.
func (g Graph) WithoutEdge(from, to string) (Graph, error) {

	i, ok1 := g.lookup(from)
	j, ok2 := g.lookup(to)
	if !ok1 || !ok2 {
		return Graph{}, &EdgeError{From: from, To: to, Err: ErrUnknownNode}
	}

	h := g.clone()
	h.dg.RemoveEdge(int64(i), int64(j))

	return h, nil
}

// Without returns a new graph over the remaining nodes, dropping the
// named nodes and every edge incident to them.
func (g Graph) Without(names ...string) (Graph, error) {

	drop := make(map[string]bool)
	for _, na := range names {
		if !g.Has(na) {
			return Graph{}, &NodeError{Node: na, Err: ErrUnknownNode}
		}
		drop[na] = true
	}

	var keep []string
	for _, na := range g.names {
		if !drop[na] {
			keep = append(keep, na)
		}
	}

	var edges []Edge
	for _, e := range g.Edges() {
		if !drop[e.From] && !drop[e.To] {
			edges = append(edges, e)
		}
	}

	return Build(keep, edges)
}

// parents returns the sorted parent indices of node i.
func (g Graph) parents(i int) []int {
	var ix []int
	it := g.dg.To(int64(i))
	for it.Next() {
		ix = append(ix, int(it.Node().ID()))
	}
	sort.Ints(ix)
	return ix
}

// children returns the sorted child indices of node i.
func (g Graph) children(i int) []int {
	var ix []int
	it := g.dg.From(int64(i))
	for it.Next() {
		ix = append(ix, int(it.Node().ID()))
	}
	sort.Ints(ix)
	return ix
}

// Parents returns the parents of the named node in declaration order.
func (g Graph) Parents(name string) ([]string, error) {
	i, err := g.mustLookup(name)
	if err != nil {
		return nil, err
	}
	return g.toNames(g.parents(i)), nil
}

// Children returns the children of the named node in declaration order.
func (g Graph) Children(name string) ([]string, error) {
	i, err := g.mustLookup(name)
	if err != nil {
		return nil, err
	}
	return g.toNames(g.children(i)), nil
}

// reach returns the indicator of nodes reachable from the start nodes
// by repeatedly following next, not counting the start nodes themselves
// unless they are reached from another start node.
func (g Graph) reach(start []int, next func(int) []int) []bool {

	seen := make([]bool, len(g.names))
	stack := append([]int(nil), start...)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, j := range next(i) {
			if !seen[j] {
				seen[j] = true
				stack = append(stack, j)
			}
		}
	}

	return seen
}

func indicatorToIndex(b []bool) []int {
	var ix []int
	for i, v := range b {
		if v {
			ix = append(ix, i)
		}
	}
	return ix
}

// Ancestors returns the nodes with a directed path into at least one of
// the named nodes, in declaration order.
func (g Graph) Ancestors(names ...string) ([]string, error) {
	ix, err := g.lookupAll(names)
	if err != nil {
		return nil, err
	}
	return g.toNames(indicatorToIndex(g.reach(ix, g.parents))), nil
}

// Descendants returns the nodes reachable by a directed path from at
// least one of the named nodes, in declaration order.
func (g Graph) Descendants(names ...string) ([]string, error) {
	ix, err := g.lookupAll(names)
	if err != nil {
		return nil, err
	}
	return g.toNames(indicatorToIndex(g.reach(ix, g.children))), nil
}

// Roots returns the nodes without parents, in declaration order.
func (g Graph) Roots() []string {
	var r []string
	for i, na := range g.names {
		if g.dg.To(int64(i)).Len() == 0 {
			r = append(r, na)
		}
	}
	return r
}

// Sort returns the nodes in a topological order.  Ties are broken by
// declaration order, so the result is deterministic.
func (g Graph) Sort() []string {

	nodes, err := topo.SortStabilized(g.dg, func(nodes []graph.Node) {
		sort.Slice(nodes, func(a, b int) bool { return nodes[a].ID() < nodes[b].ID() })
	})
	if err != nil {
		// Every edit is checked, so this cannot happen.
		panic(fmt.Sprintf("dag: graph is not acyclic: %v", err))
	}

	na := make([]string, len(nodes))
	for k, n := range nodes {
		na[k] = g.names[n.ID()]
	}

	return na
}

// Equal reports whether two graphs have the same nodes, in the same
// order, and the same edges.
func (g Graph) Equal(h Graph) bool {

	if len(g.names) != len(h.names) {
		return false
	}
	for i := range g.names {
		if g.names[i] != h.names[i] {
			return false
		}
	}

	ge, he := g.Edges(), h.Edges()
	if len(ge) != len(he) {
		return false
	}
	for i := range ge {
		if ge[i] != he[i] {
			return false
		}
	}

	return true
}

func (g Graph) String() string {
	var b []string
	for _, e := range g.Edges() {
		b = append(b, e.String())
	}
	return fmt.Sprintf("dag{%s}", strings.Join(b, "; "))
}
