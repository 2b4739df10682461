package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/signalsfoundry/assumed-cables/model"
)

// Node is a dense handle into Graph.Wells.
type Node int32

// Edge is a dense handle into Graph.Edges.
type Edge int32

// WellNode is a well participating in the graph.
type WellNode struct {
	ID int64

	// Pos is the first polyline endpoint seen for this well. It only serves as
	// a stable ordering key.
	Pos orb.Point

	// Incident lists edges touching the well in ascending handle order.
	Incident []Edge
}

// DirectionEdge is a direction participating in the graph.
type DirectionEdge struct {
	ID      int64
	Number  string
	A, B    Node
	LengthM float64
	Coords  orb.LineString
}

// Graph is the full well/direction topology, independent of capacity.
// Wells are ordered by well id and edges by direction id, so handles are
// stable for identical input.
type Graph struct {
	Wells []WellNode
	Edges []DirectionEdge

	wellIndex map[int64]Node
	edgeIndex map[int64]Edge
}

// Rejected records a direction left out of the graph and why.
type Rejected struct {
	DirectionID int64
	Err         error
}

// NewGraph builds the topology from raw directions. Directions without both
// endpoints, with a degenerate polyline or with no measurable length are
// rejected rather than failing the build.
func NewGraph(dirs []model.Direction) (*Graph, []Rejected) {
	sorted := make([]model.Direction, len(dirs))
	copy(sorted, dirs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var rejected []Rejected
	accepted := make([]model.Direction, 0, len(sorted))
	seen := make(map[int64]struct{}, len(sorted))
	for _, d := range sorted {
		if _, dup := seen[d.ID]; dup {
			rejected = append(rejected, Rejected{DirectionID: d.ID, Err: ErrDuplicateDirection})
			continue
		}
		length, err := usableLength(d)
		if err != nil {
			rejected = append(rejected, Rejected{DirectionID: d.ID, Err: err})
			continue
		}
		seen[d.ID] = struct{}{}
		d.LengthM = length
		accepted = append(accepted, d)
	}

	positions := make(map[int64]orb.Point)
	for _, d := range accepted {
		if _, ok := positions[d.StartWellID]; !ok {
			positions[d.StartWellID] = d.Coords[0]
		}
		if _, ok := positions[d.EndWellID]; !ok {
			positions[d.EndWellID] = d.Coords[len(d.Coords)-1]
		}
	}
	wellIDs := make([]int64, 0, len(positions))
	for id := range positions {
		wellIDs = append(wellIDs, id)
	}
	sort.Slice(wellIDs, func(i, j int) bool { return wellIDs[i] < wellIDs[j] })

	g := &Graph{
		Wells:     make([]WellNode, len(wellIDs)),
		Edges:     make([]DirectionEdge, len(accepted)),
		wellIndex: make(map[int64]Node, len(wellIDs)),
		edgeIndex: make(map[int64]Edge, len(accepted)),
	}
	for i, id := range wellIDs {
		g.Wells[i] = WellNode{ID: id, Pos: positions[id]}
		g.wellIndex[id] = Node(i)
	}
	for i, d := range accepted {
		e := Edge(i)
		a, b := g.wellIndex[d.StartWellID], g.wellIndex[d.EndWellID]
		g.Edges[i] = DirectionEdge{
			ID:      d.ID,
			Number:  d.Number,
			A:       a,
			B:       b,
			LengthM: d.LengthM,
			Coords:  d.Coords,
		}
		g.edgeIndex[d.ID] = e
		g.Wells[a].Incident = append(g.Wells[a].Incident, e)
		g.Wells[b].Incident = append(g.Wells[b].Incident, e)
	}
	return g, rejected
}

func usableLength(d model.Direction) (float64, error) {
	if d.ID <= 0 || d.StartWellID <= 0 || d.EndWellID <= 0 {
		return 0, fmt.Errorf("direction %d: %w", d.ID, ErrMissingEndpoint)
	}
	if d.StartWellID == d.EndWellID {
		return 0, fmt.Errorf("direction %d: %w", d.ID, ErrSelfLoop)
	}
	if len(d.Coords) < 2 {
		return 0, fmt.Errorf("direction %d: %w", d.ID, ErrBadGeometry)
	}
	length := d.LengthM
	if length <= 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		length = RoundMeters(geo.Length(d.Coords))
	}
	if length <= 0 {
		return 0, fmt.Errorf("direction %d: %w", d.ID, ErrZeroLength)
	}
	return length, nil
}

// RoundMeters rounds a length to centimetres.
func RoundMeters(v float64) float64 {
	return math.Round(v*100) / 100
}

// NodeOf resolves a well id to its handle.
func (g *Graph) NodeOf(wellID int64) (Node, bool) {
	n, ok := g.wellIndex[wellID]
	return n, ok
}

// EdgeOf resolves a direction id to its handle.
func (g *Graph) EdgeOf(directionID int64) (Edge, bool) {
	e, ok := g.edgeIndex[directionID]
	return e, ok
}

// Advance returns the well reached by traversing e from n. When n is not an
// endpoint of e the walk continues from the b end.
func (g *Graph) Advance(e Edge, n Node) Node {
	d := &g.Edges[e]
	switch n {
	case d.A:
		return d.B
	case d.B:
		return d.A
	default:
		return d.B
	}
}

// WellIDs maps handles back to well ids.
func (g *Graph) WellIDs(nodes []Node) []int64 {
	out := make([]int64, len(nodes))
	for i, n := range nodes {
		out[i] = g.Wells[n].ID
	}
	return out
}

// DirectionIDs maps handles back to direction ids.
func (g *Graph) DirectionIDs(edges []Edge) []int64 {
	out := make([]int64, len(edges))
	for i, e := range edges {
		out[i] = g.Edges[e].ID
	}
	return out
}
