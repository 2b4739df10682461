package core

import "github.com/paulmach/orb"

// Stitch joins the polylines of a route into one continuous line, walking
// from r.Start. A segment is reversed when the walk enters it from its b end,
// and its first point is dropped when it repeats the last accumulated point
// exactly. The returned length is the sum of stored direction lengths rounded
// to centimetres. Geometry is nil when fewer than two points accumulate.
func (g *Graph) Stitch(r Route) (orb.LineString, float64) {
	var (
		line   orb.LineString
		length float64
	)
	cur := r.Start
	for _, e := range r.Edges {
		d := &g.Edges[e]
		seg := d.Coords
		if cur == d.B && cur != d.A {
			seg = reversed(seg)
		}
		if len(seg) > 0 && len(line) > 0 && line[len(line)-1] == seg[0] {
			seg = seg[1:]
		}
		line = append(line, seg...)
		length += d.LengthM
		cur = g.Advance(e, cur)
	}
	if len(line) < 2 {
		line = nil
	}
	return line, RoundMeters(length)
}

func reversed(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}
