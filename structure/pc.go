package structure

import (
	"log"
	"strings"

	"github.com/Valkje/heart-failure/dag"
)

// PCConfig contains settings for PC.
type PCConfig struct {
	Constraints

	// Alpha is the significance level of the independence tests.
	Alpha float64

	// MaxCondSize bounds the size of the conditioning sets.
	MaxCondSize int

	Log *log.Logger
}

// DefaultPCConfig returns the default settings.
func DefaultPCConfig() *PCConfig {
	return &PCConfig{
		Alpha:       0.05,
		MaxCondSize: 3,
	}
}

// Pattern is a partially directed graph.  Undirected edges could point
// either way in the structures consistent with the data.
type Pattern struct {
	Nodes      []string
	Directed   []dag.Edge
	Undirected []dag.Edge

	// SepSets maps each removed pair, as "x|y" in declaration order, to
	// the conditioning set that separated it.
	SepSets map[string][]string
}

// FromGraph returns the pattern in which every edge of g is directed.
func FromGraph(g dag.Graph) *Pattern {
	return &Pattern{
		Nodes:    g.Nodes(),
		Directed: g.Edges(),
	}
}

func (p *Pattern) String() string {
	var b []string
	for _, e := range p.Directed {
		b = append(b, e.String())
	}
	for _, e := range p.Undirected {
		b = append(b, e.From+" -- "+e.To)
	}
	return "[" + strings.Join(b, " ") + "]"
}

// pdag is a partially directed graph as an adjacency matrix.  i -> j
// is m[i][j] && !m[j][i], and i -- j is m[i][j] && m[j][i].
type pdag [][]bool

func (m pdag) adjacent(i, j int) bool {
	return m[i][j] || m[j][i]
}

func (m pdag) directed(i, j int) bool {
	return m[i][j] && !m[j][i]
}

func (m pdag) undirected(i, j int) bool {
	return m[i][j] && m[j][i]
}

// PC learns a pattern with the PC-stable algorithm.  The adjacencies
// tested at each size of conditioning set are fixed before any edge is
// removed at that size, so the result does not depend on the order of
// the variables.
func PC(d *Data, config *PCConfig) (*Pattern, error) {

	if config == nil {
		config = DefaultPCConfig()
	}

	white, black, err := config.Constraints.sets(d.names)
	if err != nil {
		return nil, err
	}

	p := len(d.names)
	m := make(pdag, p)
	for i := range m {
		m[i] = make([]bool, p)
		for j := range m[i] {
			m[i][j] = i != j
		}
	}
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			if black[i][j] && black[j][i] {
				m[i][j] = false
			}
		}
	}

	sep := make(map[[2]int][]int)

	for l := 0; l <= config.MaxCondSize; l++ {

		nb := make([][]int, p)
		for i := range nb {
			for j := 0; j < p; j++ {
				if m[i][j] {
					nb[i] = append(nb[i], j)
				}
			}
		}

		var tested bool
		for x := 0; x < p; x++ {
			for _, y := range nb[x] {
				if !m[x][y] || white[x][y] || white[y][x] {
					continue
				}
				cand := drop(nb[x], y)
				if len(cand) < l {
					continue
				}
				tested = true
				subsets(cand, l, func(s []int) bool {
					g2, df, pv := d.GSquare(x, y, s)
					if pv <= config.Alpha {
						return false
					}
					m[x][y], m[y][x] = false, false
					sep[pair(x, y)] = append([]int(nil), s...)
					if config.Log != nil {
						config.Log.Printf("PC: removed %s -- %s given %v (G2=%.2f, df=%.0f, p=%.3f)\n",
							d.names[x], d.names[y], names(d, s), g2, df, pv)
					}
					return true
				})
			}
		}

		if !tested {
			break
		}
	}

	orient := func(i, j int) bool {
		if !m.undirected(i, j) || black[i][j] || white[j][i] {
			return false
		}
		m[j][i] = false
		return true
	}

	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			if white[i][j] {
				m[i][j], m[j][i] = true, false
			}
		}
	}
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			if black[i][j] {
				orient(j, i)
			}
		}
	}

	// Unshielded colliders x -> z <- y, with z outside the set that
	// separated x and y.
	for z := 0; z < p; z++ {
		for x := 0; x < p; x++ {
			for y := x + 1; y < p; y++ {
				if !m.adjacent(x, z) || !m.adjacent(y, z) || m.adjacent(x, y) {
					continue
				}
				if contains(sep[pair(x, y)], z) {
					continue
				}
				orient(x, z)
				orient(y, z)
			}
		}
	}

	meek(m, orient)

	pat := &Pattern{
		Nodes:   append([]string(nil), d.names...),
		SepSets: make(map[string][]string),
	}
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			switch {
			case m.directed(i, j):
				pat.Directed = append(pat.Directed, dag.Edge{From: d.names[i], To: d.names[j]})
			case i < j && m.undirected(i, j):
				pat.Undirected = append(pat.Undirected, dag.Edge{From: d.names[i], To: d.names[j]})
			}
		}
	}
	for k, s := range sep {
		pat.SepSets[d.names[k[0]]+"|"+d.names[k[1]]] = names(d, s)
	}

	return pat, nil
}

// meek applies Meek's rules 1 to 3 until no edge can be oriented.
func meek(m pdag, orient func(i, j int) bool) {

	p := len(m)
	for changed := true; changed; {
		changed = false
		for a := 0; a < p; a++ {
			for b := 0; b < p; b++ {
				if !m.undirected(a, b) {
					continue
				}
				for c := 0; c < p && m.undirected(a, b); c++ {
					if c == a || c == b {
						continue
					}

					// c -> a -- b, c and b not adjacent
					if m.directed(c, a) && !m.adjacent(c, b) && orient(a, b) {
						changed = true
						continue
					}

					// a -> c -> b
					if m.directed(a, c) && m.directed(c, b) && orient(a, b) {
						changed = true
						continue
					}

					// a -- c -> b and a -- e -> b, c and e not adjacent
					if !m.undirected(a, c) || !m.directed(c, b) {
						continue
					}
					for e := c + 1; e < p; e++ {
						if e == a || e == b {
							continue
						}
						if m.undirected(a, e) && m.directed(e, b) && !m.adjacent(c, e) && orient(a, b) {
							changed = true
							break
						}
					}
				}
			}
		}
	}
}

// subsets calls f with every subset of x of size k, in lexicographic
// order of positions, until f returns true.
func subsets(x []int, k int, f func([]int) bool) bool {

	s := make([]int, k)
	var rec func(start, depth int) bool
	rec = func(start, depth int) bool {
		if depth == k {
			return f(s)
		}
		for i := start; i <= len(x)-(k-depth); i++ {
			s[depth] = x[i]
			if rec(i+1, depth+1) {
				return true
			}
		}
		return false
	}

	return rec(0, 0)
}

func drop(x []int, v int) []int {
	var y []int
	for _, u := range x {
		if u != v {
			y = append(y, u)
		}
	}
	return y
}

func contains(x []int, v int) bool {
	for _, u := range x {
		if u == v {
			return true
		}
	}
	return false
}

func pair(i, j int) [2]int {
	if i > j {
		i, j = j, i
	}
	return [2]int{i, j}
}

func names(d *Data, ix []int) []string {
	na := make([]string, len(ix))
	for i, j := range ix {
		na[i] = d.names[j]
	}
	return na
}
