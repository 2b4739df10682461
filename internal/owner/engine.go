// Package owner infers the most likely owner of a synthesized route from the
// free owner tags at the wells it passes through.
package owner

import (
	"sort"

	"github.com/signalsfoundry/assumed-cables/core"
	"github.com/signalsfoundry/assumed-cables/model"
)

// Engine scores routes of one scenario. It owns a private copy of the
// network supply, so engines for different scenarios never interfere.
// An Engine is not safe for concurrent use.
type Engine struct {
	net     *core.Network
	variant int
	policy  Policy
	supply  core.Supply
}

// NewEngine creates an engine for one variant with a fresh supply copy.
func NewEngine(net *core.Network, variant int, policy Policy) *Engine {
	return &Engine{
		net:     net,
		variant: variant,
		policy:  policy,
		supply:  net.Supply.Clone(),
	}
}

// Infer picks an owner for r. Owners are ranked by total free tags on the
// route, then by the number of wells contributing, then by lower id. When no
// well carries tags, later variants fall back to a majority vote of known
// duct cables along the route's directions.
func (e *Engine) Infer(r core.Route) model.OwnerEvidence {
	g := e.net.Graph
	wells := g.RouteWells(r)
	ev := model.OwnerEvidence{
		WellIDs:    g.WellIDs(wells),
		Candidates: e.rank(wells),
	}

	if len(ev.Candidates) > 0 {
		best := ev.Candidates[0]
		tiers := e.policy.tiersFor(e.variant)
		id := best.OwnerID
		ev.OwnerID = &id
		if best.Hits >= 2 {
			ev.Confidence, ev.Mode = tiers.High, model.ModeTagsMultiWells
		} else {
			ev.Confidence, ev.Mode = tiers.Medium, model.ModeTagsAnyWell
		}
		if e.policy.SupplyMode == SupplyConsume {
			e.consume(wells, id)
		}
		if len(ev.Candidates) > e.policy.MaxCandidates {
			ev.Candidates = ev.Candidates[:e.policy.MaxCandidates]
		}
		return ev
	}

	if e.variant >= e.policy.FallbackFromVariant {
		if id, ok := e.vote(r); ok {
			ev.OwnerID = &id
			ev.Confidence, ev.Mode = e.policy.FallbackConfidence, model.ModeRealCablesFallback
			return ev
		}
	}

	ev.Confidence, ev.Mode = e.policy.UnknownConfidence, model.ModeUnknown
	return ev
}

func (e *Engine) rank(wells []core.Node) []model.OwnerCandidate {
	byOwner := make(map[int64]*model.OwnerCandidate)
	for _, n := range wells {
		for owner, cnt := range e.supply[n] {
			if cnt <= 0 {
				continue
			}
			c, ok := byOwner[owner]
			if !ok {
				c = &model.OwnerCandidate{OwnerID: owner}
				byOwner[owner] = c
			}
			c.Score += cnt
			c.Hits++
		}
	}

	out := make([]model.OwnerCandidate, 0, len(byOwner))
	for _, c := range byOwner {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Hits != out[j].Hits {
			return out[i].Hits > out[j].Hits
		}
		return out[i].OwnerID < out[j].OwnerID
	})
	return out
}

func (e *Engine) consume(wells []core.Node, owner int64) {
	for _, n := range wells {
		if e.supply[n][owner] > 0 {
			e.supply[n][owner]--
		}
	}
}

func (e *Engine) vote(r core.Route) (int64, bool) {
	votes := make(map[int64]int)
	for _, edge := range r.Edges {
		for owner, cnt := range e.net.Votes[edge] {
			if cnt > 0 {
				votes[owner] += cnt
			}
		}
	}
	var (
		best  int64
		count int
	)
	for _, owner := range core.SortedOwners(votes) {
		if votes[owner] > count {
			best, count = owner, votes[owner]
		}
	}
	return best, count > 0
}
