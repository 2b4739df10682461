package core

import "sort"

// Traversal selects which edges connect wells when finding components.
type Traversal int

const (
	// AllEdges uses the full topology, including zero-capacity edges.
	AllEdges Traversal = iota
	// CapacityEdges only follows edges with remaining capacity.
	CapacityEdges
)

// Component is one connected region of the graph.
type Component struct {
	Wells []Node

	// Edges are all traversed edges; CapacityEdges is the subset with
	// remaining capacity.
	Edges         []Edge
	CapacityEdges []Edge

	Capacity  int
	OwnerTags int
}

// Components partitions the graph into connected components under the given
// traversal mode. Isolated wells (no traversable edge) are omitted. Output is
// ordered by the lowest well handle of each component; wells and edges inside
// a component are sorted ascending.
func (net *Network) Components(mode Traversal, rem Capacity) []Component {
	g := net.Graph
	usable := func(e Edge) bool {
		return mode == AllEdges || rem[e] > 0
	}

	visited := make([]bool, len(g.Wells))
	var out []Component
	for start := range g.Wells {
		if visited[start] {
			continue
		}
		visited[start] = true

		var (
			wells    []Node
			edgeSeen = make(map[Edge]struct{})
			stack    = []Node{Node(start)}
		)
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			wells = append(wells, u)
			for _, e := range g.Wells[u].Incident {
				if !usable(e) {
					continue
				}
				edgeSeen[e] = struct{}{}
				v := g.Advance(e, u)
				if !visited[v] {
					visited[v] = true
					stack = append(stack, v)
				}
			}
		}
		if len(edgeSeen) == 0 {
			continue
		}

		c := Component{Wells: wells, Edges: make([]Edge, 0, len(edgeSeen))}
		for e := range edgeSeen {
			c.Edges = append(c.Edges, e)
		}
		sort.Slice(c.Wells, func(i, j int) bool { return c.Wells[i] < c.Wells[j] })
		sort.Slice(c.Edges, func(i, j int) bool { return c.Edges[i] < c.Edges[j] })
		for _, e := range c.Edges {
			if rem[e] > 0 {
				c.CapacityEdges = append(c.CapacityEdges, e)
				c.Capacity += rem[e]
			}
		}
		for _, n := range c.Wells {
			c.OwnerTags += net.TagPresence[n]
		}
		out = append(out, c)
	}
	return out
}
