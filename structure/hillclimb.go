package structure

import (
	"fmt"
	"log"
	"sort"

	"github.com/Valkje/heart-failure/dag"
)

// HCConfig contains settings for HillClimb.
type HCConfig struct {
	Constraints

	// MaxIter bounds the number of moves.
	MaxIter int

	Log *log.Logger
}

// DefaultHCConfig returns the default settings.
func DefaultHCConfig() *HCConfig {
	return &HCConfig{
		MaxIter: 1000,
	}
}

// HCResult is the outcome of a hill-climbing search.
type HCResult struct {
	Graph dag.Graph

	// Score is the BIC of Graph.
	Score float64

	// Moves is the number of moves taken.
	Moves int
}

type move struct {
	op    string
	from  int
	to    int
	delta float64
}

// HillClimb searches for the DAG with the highest BIC, starting from the
// graph of whitelisted edges and taking at each step the single edge
// addition, deletion or reversal that most improves the score.
func HillClimb(d *Data, config *HCConfig) (*HCResult, error) {

	if config == nil {
		config = DefaultHCConfig()
	}

	white, black, err := config.Constraints.sets(d.names)
	if err != nil {
		return nil, err
	}

	g, err := dag.Build(d.names, config.Whitelist)
	if err != nil {
		return nil, err
	}

	p := len(d.names)
	pa := make([][]int, p)
	for _, e := range config.Whitelist {
		i, j := index(d.names, e.From), index(d.names, e.To)
		pa[j] = insert(pa[j], i)
	}

	cache := make(map[string]float64)
	score := func(x int, parents []int) float64 {
		key := fmt.Sprint(x, parents)
		if v, ok := cache[key]; ok {
			return v
		}
		v := d.BIC(x, parents)
		cache[key] = v
		return v
	}

	var total float64
	for j := 0; j < p; j++ {
		total += score(j, pa[j])
	}

	full := func(j int) bool {
		return config.MaxParents > 0 && len(pa[j]) >= config.MaxParents
	}

	var moves int
	for ; moves < config.MaxIter; moves++ {

		best := move{delta: 1e-8}
		for i := 0; i < p; i++ {
			for j := 0; j < p; j++ {
				if i == j {
					continue
				}
				ni, nj := d.names[i], d.names[j]

				switch {
				case g.HasEdge(ni, nj):
					if white[i][j] {
						continue
					}
					dj := score(j, drop(pa[j], i)) - score(j, pa[j])
					if dj > best.delta {
						best = move{"delete", i, j, dj}
					}
					if black[j][i] || full(i) {
						continue
					}
					h, _ := g.WithoutEdge(ni, nj)
					if _, err := h.WithEdge(nj, ni); err != nil {
						continue
					}
					dr := dj + score(i, insert(pa[i], j)) - score(i, pa[i])
					if dr > best.delta {
						best = move{"reverse", i, j, dr}
					}

				case !g.HasEdge(nj, ni):
					if black[i][j] || full(j) {
						continue
					}
					if _, err := g.WithEdge(ni, nj); err != nil {
						continue
					}
					da := score(j, insert(pa[j], i)) - score(j, pa[j])
					if da > best.delta {
						best = move{"add", i, j, da}
					}
				}
			}
		}

		if best.op == "" {
			break
		}

		ni, nj := d.names[best.from], d.names[best.to]
		switch best.op {
		case "add":
			g, err = g.WithEdge(ni, nj)
			pa[best.to] = insert(pa[best.to], best.from)
		case "delete":
			g, err = g.WithoutEdge(ni, nj)
			pa[best.to] = drop(pa[best.to], best.from)
		case "reverse":
			g, err = g.WithoutEdge(ni, nj)
			if err == nil {
				g, err = g.WithEdge(nj, ni)
			}
			pa[best.to] = drop(pa[best.to], best.from)
			pa[best.from] = insert(pa[best.from], best.to)
		}
		if err != nil {
			return nil, err
		}
		total += best.delta

		if config.Log != nil {
			config.Log.Printf("HillClimb: %s %s -> %s, BIC %.2f\n", best.op, ni, nj, total)
		}
	}

	return &HCResult{Graph: g, Score: total, Moves: moves}, nil
}

func index(names []string, na string) int {
	for i, v := range names {
		if v == na {
			return i
		}
	}
	return -1
}

// insert returns a sorted copy of x with v added.
func insert(x []int, v int) []int {
	y := append(append([]int(nil), x...), v)
	sort.Ints(y)
	return y
}
