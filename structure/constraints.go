package structure

import (
	"errors"

	"github.com/Valkje/heart-failure/dag"
)

// ErrConflict is returned when an edge is both whitelisted and
// blacklisted.
var ErrConflict = errors.New("edge is both whitelisted and blacklisted")

// Constraints restrict the structures that can be learned.
type Constraints struct {

	// Whitelist edges are always present with the given direction.
	Whitelist []dag.Edge `yaml:"whitelist"`

	// Blacklist edges are never present in the given direction.
	Blacklist []dag.Edge `yaml:"blacklist"`

	// MaxParents bounds the number of parents of a node found by
	// search.  Zero means no bound.  Whitelisted edges may exceed it.
	MaxParents int `yaml:"max_parents" validate:"gte=0"`
}

// edgeSet is an adjacency matrix over the variables of a Data.
type edgeSet [][]bool

func (c Constraints) sets(names []string) (white, black edgeSet, err error) {

	ix := make(map[string]int)
	for i, na := range names {
		ix[na] = i
	}

	mk := func(edges []dag.Edge) (edgeSet, error) {
		m := make(edgeSet, len(names))
		for i := range m {
			m[i] = make([]bool, len(names))
		}
		for _, e := range edges {
			i, ok1 := ix[e.From]
			j, ok2 := ix[e.To]
			if !ok1 || !ok2 {
				return nil, &dag.EdgeError{From: e.From, To: e.To, Err: dag.ErrUnknownNode}
			}
			m[i][j] = true
		}
		return m, nil
	}

	if white, err = mk(c.Whitelist); err != nil {
		return nil, nil, err
	}
	if black, err = mk(c.Blacklist); err != nil {
		return nil, nil, err
	}

	for i := range white {
		for j := range white {
			if white[i][j] && black[i][j] {
				return nil, nil, &dag.EdgeError{From: names[i], To: names[j], Err: ErrConflict}
			}
		}
	}

	return white, black, nil
}
