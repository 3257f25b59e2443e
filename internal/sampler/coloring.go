package sampler

import (
	"sort"
	"strconv"

	lvlath "github.com/katalvlaran/lvlath/core"
)

// buildMustNotGraph builds an undirected lvlath graph over operand-class
// representative ids, with one edge per must-not-alias constraint between
// two classes.
func buildMustNotGraph(reps []int, edges [][2]int) *lvlath.Graph {
	g := lvlath.NewGraph()
	for _, r := range reps {
		_ = g.AddVertex(strconv.Itoa(r))
	}
	seen := make(map[[2]int]bool, len(edges))
	for _, e := range edges {
		a, b := e[0], e[1]
		if a == b {
			continue
		}
		key := [2]int{a, b}
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		_, _ = g.AddEdge(strconv.Itoa(a), strconv.Itoa(b), 0)
	}
	return g
}

// greedyColor assigns each vertex of g an index into a palette of size
// palette such that no two adjacent vertices share an index, using the
// standard greedy (descending-degree) heuristic. It returns (coloring, ok)
// with ok false if the palette is exhausted for some vertex — the
// graph-coloring feasibility decision spec §9's open question calls for,
// replacing the source's ad-hoc retry loop with an upfront deterministic
// answer.
func greedyColor(g *lvlath.Graph, palette int) (map[int]int, bool) {
	ids := g.Vertices() // lexicographically sorted, deterministic traversal seed
	degree := make(map[string]int, len(ids))
	for _, id := range ids {
		nbrs, _ := g.NeighborIDs(id)
		degree[id] = len(nbrs)
	}
	sort.Slice(ids, func(i, j int) bool {
		if degree[ids[i]] != degree[ids[j]] {
			return degree[ids[i]] > degree[ids[j]]
		}
		return ids[i] < ids[j]
	})

	color := make(map[string]int, len(ids))
	for _, id := range ids {
		nbrs, _ := g.NeighborIDs(id)
		used := make([]bool, palette)
		for _, nb := range nbrs {
			if c, ok := color[nb]; ok {
				used[c] = true
			}
		}
		assigned := -1
		for c := 0; c < palette; c++ {
			if !used[c] {
				assigned = c
				break
			}
		}
		if assigned == -1 {
			return nil, false
		}
		color[id] = assigned
	}

	out := make(map[int]int, len(color))
	for id, c := range color {
		n, _ := strconv.Atoi(id)
		out[n] = c
	}
	return out, true
}
