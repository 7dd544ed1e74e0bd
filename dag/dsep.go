package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoAdjustment is returned when no set of observed nodes satisfies the
// back-door criterion for an exposure and outcome.
var ErrNoAdjustment = errors.New("no valid back-door adjustment set")

// Claim is a conditional independence statement: X and Y are
// independent given the nodes in Given.
type Claim struct {
	X, Y  string
	Given []string
}

func (c Claim) String() string {
	if len(c.Given) == 0 {
		return fmt.Sprintf("%s _||_ %s", c.X, c.Y)
	}
	return fmt.Sprintf("%s _||_ %s | %s", c.X, c.Y, strings.Join(c.Given, ", "))
}

// Key returns a string that identifies the claim.
func (c Claim) Key() string {
	return c.X + "|" + c.Y + "|" + strings.Join(c.Given, ",")
}

// Claims returns one conditional independence claim for every pair of
// non-adjacent nodes, conditioning on the union of the parents of both
// nodes, which d-separates any non-adjacent pair in a DAG.  Pairs are
// enumerated in declaration order with X declared before Y, and the
// conditioning sets are in declaration order, so the result depends only
// on the graph.
func (g Graph) Claims() []Claim {

	var claims []Claim
	for i := range g.names {
		for j := i + 1; j < len(g.names); j++ {
			if g.dg.HasEdgeBetween(int64(i), int64(j)) {
				continue
			}
			z := make([]bool, len(g.names))
			for _, k := range g.parents(i) {
				z[k] = true
			}
			for _, k := range g.parents(j) {
				z[k] = true
			}
			claims = append(claims, Claim{
				X:     g.names[i],
				Y:     g.names[j],
				Given: g.toNames(indicatorToIndex(z)),
			})
		}
	}

	return claims
}

// dsep reports whether the node sets x and y are d-separated by z, in the
// graph described by the parent lists pa.  It uses the moralized
// ancestral graph: x and y are d-separated by z exactly when z separates
// them in the moral graph of the ancestors of x, y and z.
func dsep(pa [][]int, x, y, z []int) bool {

	n := len(pa)

	// The ancestral set, including the nodes themselves.
	anc := make([]bool, n)
	var stack []int
	for _, s := range [][]int{x, y, z} {
		for _, i := range s {
			if !anc[i] {
				anc[i] = true
				stack = append(stack, i)
			}
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, j := range pa[i] {
			if !anc[j] {
				anc[j] = true
				stack = append(stack, j)
			}
		}
	}

	// Moralize
	nbr := make([]map[int]bool, n)
	link := func(a, b int) {
		if nbr[a] == nil {
			nbr[a] = make(map[int]bool)
		}
		if nbr[b] == nil {
			nbr[b] = make(map[int]bool)
		}
		nbr[a][b] = true
		nbr[b][a] = true
	}
	for i := 0; i < n; i++ {
		if !anc[i] {
			continue
		}
		for k, a := range pa[i] {
			link(a, i)
			for _, b := range pa[i][k+1:] {
				link(a, b)
			}
		}
	}

	blocked := make([]bool, n)
	for _, i := range z {
		blocked[i] = true
	}
	target := make([]bool, n)
	for _, i := range y {
		target[i] = true
	}

	// Search from x in the moral graph, avoiding z.
	seen := make([]bool, n)
	stack = stack[:0]
	for _, i := range x {
		if target[i] {
			return false
		}
		seen[i] = true
		stack = append(stack, i)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for j := range nbr[i] {
			if seen[j] || blocked[j] {
				continue
			}
			if target[j] {
				return false
			}
			seen[j] = true
			stack = append(stack, j)
		}
	}

	return true
}

func (g Graph) parentLists() [][]int {
	pa := make([][]int, len(g.names))
	for i := range pa {
		pa[i] = g.parents(i)
	}
	return pa
}

// DSeparated reports whether x and y are d-separated given z.
func (g Graph) DSeparated(x, y string, z []string) (bool, error) {

	i, err := g.mustLookup(x)
	if err != nil {
		return false, err
	}
	j, err := g.mustLookup(y)
	if err != nil {
		return false, err
	}
	zx, err := g.lookupAll(z)
	if err != nil {
		return false, err
	}

	return dsep(g.parentLists(), []int{i}, []int{j}, zx), nil
}

// BackDoor reports whether z satisfies the back-door criterion relative
// to the exposure x and outcome y: no node of z is a descendant of x, and
// z blocks every path between x and y that begins with an edge into x.
func (g Graph) BackDoor(x, y string, z []string) (bool, error) {

	i, err := g.mustLookup(x)
	if err != nil {
		return false, err
	}
	j, err := g.mustLookup(y)
	if err != nil {
		return false, err
	}
	zx, err := g.lookupAll(z)
	if err != nil {
		return false, err
	}

	desc := g.reach([]int{i}, g.children)
	for _, k := range zx {
		if desc[k] || k == i || k == j {
			return false, nil
		}
	}

	// Remove the edges out of x; the remaining paths between x and y
	// are the back-door paths.
	pa := g.parentLists()
	for k := range pa {
		var q []int
		for _, p := range pa[k] {
			if p != i {
				q = append(q, p)
			}
		}
		pa[k] = q
	}

	return dsep(pa, []int{i}, []int{j}, zx), nil
}

// AdjustmentSet returns a minimal set of nodes satisfying the back-door
// criterion for the effect of x on y.  It starts from the ancestors of x
// and y that are not descendants of x, and removes nodes one at a time in
// declaration order whenever the remaining set still satisfies the
// criterion.  No proper subset of the result obtained by removing a
// single node is valid.  ErrNoAdjustment is returned if the starting set
// is not valid, in which case no valid set exists; with every node
// observed this happens only when y is a parent of x.
func (g Graph) AdjustmentSet(x, y string) ([]string, error) {

	i, err := g.mustLookup(x)
	if err != nil {
		return nil, err
	}
	j, err := g.mustLookup(y)
	if err != nil {
		return nil, err
	}
	if i == j {
		return nil, fmt.Errorf("dag: exposure and outcome are both %s", x)
	}

	anc := g.reach([]int{i, j}, g.parents)
	desc := g.reach([]int{i}, g.children)
	var cand []string
	for k := range g.names {
		if anc[k] && !desc[k] && k != i && k != j {
			cand = append(cand, g.names[k])
		}
	}

	ok, err := g.BackDoor(x, y, cand)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("dag: %s -> %s: %w", x, y, ErrNoAdjustment)
	}

	// Repeat until a full pass removes nothing, since dropping a node
	// can make an earlier one redundant.
	for changed := true; changed; {
		changed = false
		for k := 0; k < len(cand); {
			trial := append(append([]string(nil), cand[:k]...), cand[k+1:]...)
			ok, err := g.BackDoor(x, y, trial)
			if err != nil {
				return nil, err
			}
			if ok {
				cand = trial
				changed = true
			} else {
				k++
			}
		}
	}

	if cand == nil {
		cand = []string{}
	}

	return cand, nil
}
