package core

import (
	"sort"

	"github.com/signalsfoundry/assumed-cables/model"
)

// Capacity is the remaining cable capacity per edge, indexed by Edge.
type Capacity []int

// Clone returns an independent copy.
func (c Capacity) Clone() Capacity {
	out := make(Capacity, len(c))
	copy(out, c)
	return out
}

// Total sums all remaining units.
func (c Capacity) Total() int {
	total := 0
	for _, v := range c {
		total += v
	}
	return total
}

// Any reports whether at least one edge has capacity left.
func (c Capacity) Any() bool {
	for _, v := range c {
		if v > 0 {
			return true
		}
	}
	return false
}

// Take consumes one unit from e. It never drives capacity negative and
// reports whether a unit was taken.
func (c Capacity) Take(e Edge) bool {
	if c[e] <= 0 {
		return false
	}
	c[e]--
	return true
}

// Supply holds free owner tags per well: Supply[node][ownerID] = count.
// Nodes without tags have a nil map.
type Supply []map[int64]int

// Clone returns a deep copy so one scenario's consumption never leaks into
// another.
func (s Supply) Clone() Supply {
	out := make(Supply, len(s))
	for i, byOwner := range s {
		if byOwner == nil {
			continue
		}
		cp := make(map[int64]int, len(byOwner))
		for o, v := range byOwner {
			cp[o] = v
		}
		out[i] = cp
	}
	return out
}

// OwnerVotes counts known duct cables per edge: OwnerVotes[edge][ownerID].
type OwnerVotes []map[int64]int

// Network bundles the topology with the baseline capacity and evidence maps.
// Capacity and Supply are baselines; strategies and inference work on clones.
type Network struct {
	Graph    *Graph
	Capacity Capacity
	Supply   Supply
	Votes    OwnerVotes

	// TagPresence is the total free tag count per node.
	TagPresence []int

	// TotalUnaccounted is the initial capacity summed over graph edges.
	TotalUnaccounted int

	Rejected []Rejected
}

// BuildNetwork derives the graph, capacity, supply and vote maps from a
// dataset. Capacity rows for directions outside the graph are ignored, and
// supply keeps only strictly positive tag counts net of known duct cables.
func BuildNetwork(ds model.Dataset) *Network {
	g, rejected := NewGraph(ds.Directions)
	net := &Network{
		Graph:       g,
		Capacity:    make(Capacity, len(g.Edges)),
		Supply:      make(Supply, len(g.Wells)),
		Votes:       make(OwnerVotes, len(g.Edges)),
		TagPresence: make([]int, len(g.Wells)),
		Rejected:    rejected,
	}

	for _, row := range ds.Capacities {
		if row.DirectionID <= 0 || row.Unaccounted <= 0 {
			continue
		}
		e, ok := g.EdgeOf(row.DirectionID)
		if !ok {
			continue
		}
		net.Capacity[e] = row.Unaccounted
	}
	net.TotalUnaccounted = net.Capacity.Total()

	tags := countByWell(g, ds.Tags)
	known := countByWell(g, ds.DuctCablesByWell)
	for n, byOwner := range tags {
		for owner, t := range byOwner {
			free := t - known[n][owner]
			if free <= 0 {
				continue
			}
			if net.Supply[n] == nil {
				net.Supply[n] = make(map[int64]int)
			}
			net.Supply[n][owner] = free
			net.TagPresence[n] += free
		}
	}

	for _, row := range ds.DuctCablesByDirection {
		if row.DirectionID <= 0 || row.OwnerID <= 0 || row.Count <= 0 {
			continue
		}
		e, ok := g.EdgeOf(row.DirectionID)
		if !ok {
			continue
		}
		if net.Votes[e] == nil {
			net.Votes[e] = make(map[int64]int)
		}
		net.Votes[e][row.OwnerID] += row.Count
	}
	return net
}

func countByWell(g *Graph, rows []model.WellOwnerCount) map[Node]map[int64]int {
	out := make(map[Node]map[int64]int)
	for _, row := range rows {
		if row.WellID <= 0 || row.OwnerID <= 0 || row.Count <= 0 {
			continue
		}
		n, ok := g.NodeOf(row.WellID)
		if !ok {
			continue
		}
		if out[n] == nil {
			out[n] = make(map[int64]int)
		}
		out[n][row.OwnerID] += row.Count
	}
	return out
}

// SortedOwners returns the owner ids of a count map in ascending order.
func SortedOwners(m map[int64]int) []int64 {
	out := make([]int64, 0, len(m))
	for o := range m {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
