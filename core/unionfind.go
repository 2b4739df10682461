package core

// DisjointSet is a union-find over dense node handles with union by rank and
// iterative path halving.
type DisjointSet struct {
	parent []Node
	rank   []uint8
}

// NewDisjointSet creates n singleton sets.
func NewDisjointSet(n int) *DisjointSet {
	ds := &DisjointSet{
		parent: make([]Node, n),
		rank:   make([]uint8, n),
	}
	for i := range ds.parent {
		ds.parent[i] = Node(i)
	}
	return ds
}

// Find returns the representative of x's set.
func (ds *DisjointSet) Find(x Node) Node {
	for ds.parent[x] != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = ds.parent[x]
	}
	return x
}

// Union merges the sets of a and b. It returns false if they were already
// joined.
func (ds *DisjointSet) Union(a, b Node) bool {
	ra, rb := ds.Find(a), ds.Find(b)
	if ra == rb {
		return false
	}
	switch {
	case ds.rank[ra] < ds.rank[rb]:
		ds.parent[ra] = rb
	case ds.rank[ra] > ds.rank[rb]:
		ds.parent[rb] = ra
	default:
		ds.parent[rb] = ra
		ds.rank[ra]++
	}
	return true
}
