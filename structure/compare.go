package structure

import (
	"fmt"
	"strings"

	"github.com/Valkje/heart-failure/dag"
)

// Diff lists how a learned pattern differs from a reference graph.
type Diff struct {

	// Shared edges have the same direction in both.
	Shared []dag.Edge

	// Missing edges of the reference have no learned counterpart.
	Missing []dag.Edge

	// Extra learned edges join variables not adjacent in the reference.
	Extra []dag.Edge

	// Reversed learned edges point against the reference.
	Reversed []dag.Edge

	// Unoriented learned edges join adjacent variables of the
	// reference but have no direction.
	Unoriented []dag.Edge
}

// Compare compares a learned pattern with a reference graph.  Edges
// are listed in the order of the pattern, or of the reference for
// missing edges.
func Compare(learned *Pattern, reference dag.Graph) *Diff {

	var df Diff
	adj := make(map[[2]string]bool)

	for _, e := range learned.Directed {
		adj[[2]string{e.From, e.To}] = true
		adj[[2]string{e.To, e.From}] = true
		switch {
		case reference.HasEdge(e.From, e.To):
			df.Shared = append(df.Shared, e)
		case reference.HasEdge(e.To, e.From):
			df.Reversed = append(df.Reversed, e)
		default:
			df.Extra = append(df.Extra, e)
		}
	}

	for _, e := range learned.Undirected {
		adj[[2]string{e.From, e.To}] = true
		adj[[2]string{e.To, e.From}] = true
		if reference.Adjacent(e.From, e.To) {
			df.Unoriented = append(df.Unoriented, e)
		} else {
			df.Extra = append(df.Extra, e)
		}
	}

	for _, e := range reference.Edges() {
		if !adj[[2]string{e.From, e.To}] {
			df.Missing = append(df.Missing, e)
		}
	}

	return &df
}

func (df *Diff) String() string {

	var b strings.Builder
	for _, s := range []struct {
		name  string
		edges []dag.Edge
	}{
		{"shared", df.Shared},
		{"missing", df.Missing},
		{"extra", df.Extra},
		{"reversed", df.Reversed},
		{"unoriented", df.Unoriented},
	} {
		fmt.Fprintf(&b, "%-10s %d", s.name, len(s.edges))
		for _, e := range s.edges {
			fmt.Fprintf(&b, "  %s", e)
		}
		b.WriteString("\n")
	}

	return b.String()
}
