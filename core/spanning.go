package core

import "sort"

// EdgeWeight gives the spanning-tree weight of an edge.
type EdgeWeight func(e Edge) float64

// LengthWeight weighs edges by their direction length.
func (g *Graph) LengthWeight() EdgeWeight {
	return func(e Edge) float64 { return g.Edges[e].LengthM }
}

type treeArc struct {
	to   int32
	edge Edge
	len  float64
}

// spanningForest is a maximum spanning forest over a local node numbering.
type spanningForest struct {
	nodes []Node
	adj   [][]treeArc

	dist       []float64
	parentNode []int32
	parentEdge []Edge
}

// LongestTreePaths builds a maximum spanning forest over edges, processing
// them by descending weight with ties broken by ascending handle, and returns
// the diameter path of every tree. Diameters are measured by direction
// length, not by weight. Trees with a zero-length diameter are skipped.
//
// The diameter is found with two farthest-node searches: from the tree's
// lowest well to the farthest well A, then from A to the farthest well B.
func (g *Graph) LongestTreePaths(edges []Edge, weight EdgeWeight) []Route {
	if len(edges) == 0 {
		return nil
	}
	f := g.maxSpanningForest(edges, weight)

	var out []Route
	done := make([]bool, len(f.nodes))
	for root := range f.nodes {
		if done[root] {
			continue
		}
		a, _, order := f.farthest(int32(root))
		for _, n := range order {
			done[n] = true
		}
		f.reset(order)

		b, diameter, order := f.farthest(a)
		if diameter > 0 {
			var path []Edge
			for cur := b; cur != a; cur = f.parentNode[cur] {
				path = append(path, f.parentEdge[cur])
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			out = append(out, Route{Start: f.nodes[a], End: f.nodes[b], Edges: path})
		}
		f.reset(order)
	}
	return out
}

func (g *Graph) maxSpanningForest(edges []Edge, weight EdgeWeight) *spanningForest {
	type weighted struct {
		e Edge
		w float64
	}
	ws := make([]weighted, len(edges))
	local := make(map[Node]int32)
	for i, e := range edges {
		ws[i] = weighted{e: e, w: weight(e)}
		local[g.Edges[e].A] = 0
		local[g.Edges[e].B] = 0
	}
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].w != ws[j].w {
			return ws[i].w > ws[j].w
		}
		return ws[i].e < ws[j].e
	})

	f := &spanningForest{nodes: make([]Node, 0, len(local))}
	for n := range local {
		f.nodes = append(f.nodes, n)
	}
	sort.Slice(f.nodes, func(i, j int) bool { return f.nodes[i] < f.nodes[j] })
	for i, n := range f.nodes {
		local[n] = int32(i)
	}
	f.adj = make([][]treeArc, len(f.nodes))
	f.dist = make([]float64, len(f.nodes))
	f.parentNode = make([]int32, len(f.nodes))
	f.parentEdge = make([]Edge, len(f.nodes))
	for i := range f.dist {
		f.dist[i] = -1
	}

	ds := NewDisjointSet(len(f.nodes))
	for _, w := range ws {
		d := &g.Edges[w.e]
		a, b := local[d.A], local[d.B]
		if !ds.Union(Node(a), Node(b)) {
			continue
		}
		f.adj[a] = append(f.adj[a], treeArc{to: b, edge: w.e, len: d.LengthM})
		f.adj[b] = append(f.adj[b], treeArc{to: a, edge: w.e, len: d.LengthM})
	}
	return f
}

// farthest runs a depth-first walk from start and returns the farthest node,
// its distance and the discovery order. Ties keep the earliest discovered
// node. Parent links stay valid until reset.
func (f *spanningForest) farthest(start int32) (int32, float64, []int32) {
	f.dist[start] = 0
	f.parentNode[start] = start
	order := []int32{start}
	stack := []int32{start}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, arc := range f.adj[u] {
			if f.dist[arc.to] >= 0 {
				continue
			}
			f.dist[arc.to] = f.dist[u] + arc.len
			f.parentNode[arc.to] = u
			f.parentEdge[arc.to] = arc.edge
			order = append(order, arc.to)
			stack = append(stack, arc.to)
		}
	}

	far, best := start, -1.0
	for _, n := range order {
		if f.dist[n] > best {
			far, best = n, f.dist[n]
		}
	}
	return far, best, order
}

func (f *spanningForest) reset(order []int32) {
	for _, n := range order {
		f.dist[n] = -1
	}
}
