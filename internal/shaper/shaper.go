// Package shaper implements the advisory membership planner (§4.6):
// given the current government and reachability evidence, it proposes
// at most one pending reshape at a time.
package shaper

import (
	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/promise"
)

// View is a read-only look at the citizen's current government. The
// shaper never owns a government, only reads one (§9, cyclic
// references resolved as a read-only view).
type View interface {
	Current() *government.Government
}

// Shaper is the per-citizen advisory planner. A fresh Shaper is
// installed whenever a government enacts (§4.8).
type Shaper struct {
	view           View
	parliamentSize int
	timeout        int64

	decided   bool
	reachable map[government.ID]bool

	pendingImmigrant *government.Immigration
	pendingExile     *government.ID
}

// New returns a shaper reading government state through view.
func New(view View, parliamentSize int, timeout int64) *Shaper {
	return &Shaper{view: view, parliamentSize: parliamentSize, timeout: timeout, reachable: make(map[government.ID]bool)}
}

// Decided reports whether a government proposal from this shaper is
// already in flight; while true, Unreachable/Naturalized calls still
// record reachability but emit no new shape, and Immigrate/Exile
// calls are dropped without being recorded.
func (s *Shaper) Decided() bool { return s.decided }

// MarkDecided latches the shaper once its shape has entered the
// writer's queue, enforcing at-most-one pending government (§8.5).
func (s *Shaper) MarkDecided() { s.decided = true }

// SetReachable records id's current reachability, as observed by the
// pinger tracker.
func (s *Shaper) SetReachable(id government.ID, reachable bool) {
	s.reachable[id] = reachable
}

// Immigrate, if nothing is already decided, records an admission
// request and returns a shape adding id as a new constituent; otherwise
// it returns nil and the request is not kept.
func (s *Shaper) Immigrate(req *government.Immigration) *government.Government {
	if s.decided {
		return nil
	}
	s.pendingImmigrant = req
	return s.shape()
}

// Unreachable records that id has failed a ping and, if nothing is
// already decided, returns the reshape the current evidence implies:
// demoting the first unreachable majority member (not necessarily id)
// to the minority, or else growing the majority, or nil. A demotion
// alone carries no Exile clause, so the government stays stable while
// id might still come back.
func (s *Shaper) Unreachable(id government.ID) *government.Government {
	s.reachable[id] = false
	if s.decided {
		return nil
	}
	return s.shape()
}

// Exile records that id has been unreachable longer than the timeout
// and, if nothing is already decided, returns a shape dropping it
// entirely (§4.6: queue exile for peers unreachable longer than
// timeout). A no-op if id is not currently seated.
func (s *Shaper) Exile(id government.ID) *government.Government {
	if s.decided {
		return nil
	}
	cur := s.view.Current()
	if !containsID(cur.Parliament(), id) && !containsID(cur.Constituents, id) {
		return nil
	}
	s.pendingExile = &id
	return s.shape()
}

// Naturalized records that id has completed naturalization (evidence
// it is caught up and reachable) and, if nothing is already decided,
// returns a shape that may grow the majority to make use of it.
func (s *Shaper) Naturalized(id government.ID) *government.Government {
	s.reachable[id] = true
	if s.decided {
		return nil
	}
	return s.shape()
}

// shape computes the single candidate reshape, if any, implied by
// current pending evidence: exile first (safety: stop relying on a
// peer that has been gone too long), then immigration (admit a
// waiting citizen as a constituent), then majority growth/demotion
// (use/shed reachable capacity toward parliamentSize).
func (s *Shaper) shape() *government.Government {
	cur := s.view.Current()

	if s.pendingExile != nil {
		gov := s.exile(cur, *s.pendingExile)
		s.pendingExile = nil
		return gov
	}
	if s.pendingImmigrant != nil {
		gov := s.immigrate(cur, s.pendingImmigrant)
		s.pendingImmigrant = nil
		return gov
	}
	if gov := s.demoteUnreachable(cur); gov != nil {
		return gov
	}
	if gov := s.growMajority(cur); gov != nil {
		return gov
	}
	return nil
}

func (s *Shaper) immigrate(cur *government.Government, req *government.Immigration) *government.Government {
	gov := cloneGovernment(cur)
	gov.Constituents = append(gov.Constituents, req.ID)
	if gov.Properties == nil {
		gov.Properties = make(map[government.ID]government.Properties)
	}
	gov.Properties[req.ID] = req.Props
	gov.Immigrate = req
	return gov
}

func (s *Shaper) exile(cur *government.Government, id government.ID) *government.Government {
	gov := cloneGovernment(cur)
	gov.Majority = removeID(gov.Majority, id)
	gov.Minority = removeID(gov.Minority, id)
	gov.Constituents = removeID(gov.Constituents, id)
	delete(gov.Properties, id)
	if p, ok := gov.ImmigratedByID[id]; ok {
		delete(gov.ImmigratedByPromise, p)
	}
	delete(gov.ImmigratedByID, id)
	exiled := id
	gov.Exile = &exiled

	// A majority member leaving must be backfilled to keep the
	// majority odd-sized; promote the most senior reachable minority
	// member, falling back to a constituent.
	if containsID(cur.Majority, id) {
		s.fillMajority(gov)
	}
	return gov
}

func (s *Shaper) demoteUnreachable(cur *government.Government) *government.Government {
	for _, id := range cur.Majority {
		if !s.reachable[id] {
			gov := cloneGovernment(cur)
			gov.Majority = removeID(gov.Majority, id)
			gov.Minority = append(gov.Minority, id)
			s.fillMajority(gov)
			return gov
		}
	}
	return nil
}

func (s *Shaper) growMajority(cur *government.Government) *government.Government {
	want := government.QuorumSize(min(s.parliamentSize, len(cur.Parliament())+len(cur.Constituents)))
	if len(cur.Majority) >= want {
		return nil
	}
	gov := cloneGovernment(cur)
	if s.fillMajority(gov) {
		return gov
	}
	return nil
}

// fillMajority restores the odd-majority invariant and, capacity
// permitting, grows it opportunistically toward parliamentSize. A
// majority left even by a just-applied demotion or exile is repaired
// by a single promotion; opportunistic growth only ever promotes in
// pairs, since adding one member to an already-odd majority would
// break the invariant. Returns whether any promotion happened.
func (s *Shaper) fillMajority(gov *government.Government) bool {
	promoted := false
	if len(gov.Majority)%2 == 0 {
		id, from, ok := s.nextPromotable(gov)
		if !ok {
			return false
		}
		promote(gov, from, id)
		return true
	}

	want := government.QuorumSize(min(s.parliamentSize, len(gov.Parliament())+len(gov.Constituents)))
	for len(gov.Majority)+2 <= want {
		id1, from1, ok1 := s.nextPromotable(gov)
		if !ok1 {
			break
		}
		promote(gov, from1, id1)

		id2, from2, ok2 := s.nextPromotable(gov)
		if !ok2 {
			unpromote(gov, from1, id1)
			break
		}
		promote(gov, from2, id2)
		promoted = true
	}
	return promoted
}

// nextPromotable returns the most senior reachable minority member,
// falling back to the most senior reachable constituent, along with
// the slice it came from.
func (s *Shaper) nextPromotable(gov *government.Government) (government.ID, *[]government.ID, bool) {
	if id, ok := firstReachable(gov.Minority, s.reachable); ok {
		return id, &gov.Minority, true
	}
	if id, ok := firstReachable(gov.Constituents, s.reachable); ok {
		return id, &gov.Constituents, true
	}
	return "", nil, false
}

func promote(gov *government.Government, from *[]government.ID, id government.ID) {
	*from = removeID(*from, id)
	gov.Majority = append(gov.Majority, id)
}

func unpromote(gov *government.Government, to *[]government.ID, id government.ID) {
	gov.Majority = removeID(gov.Majority, id)
	*to = append(*to, id)
}

func firstReachable(ids []government.ID, reachable map[government.ID]bool) (government.ID, bool) {
	for _, id := range government.SortedIDs(ids) {
		if reachable[id] {
			return id, true
		}
	}
	return "", false
}

func cloneGovernment(g *government.Government) *government.Government {
	clone := &government.Government{
		Promise:      g.Promise,
		Majority:     append([]government.ID(nil), g.Majority...),
		Minority:     append([]government.ID(nil), g.Minority...),
		Constituents: append([]government.ID(nil), g.Constituents...),
		Properties:   make(map[government.ID]government.Properties, len(g.Properties)),
	}
	for id, props := range g.Properties {
		clone.Properties[id] = props.Clone()
	}
	clone.ImmigratedByID = make(map[government.ID]promise.Promise, len(g.ImmigratedByID))
	for id, p := range g.ImmigratedByID {
		clone.ImmigratedByID[id] = p
	}
	clone.ImmigratedByPromise = make(map[promise.Promise]government.ID, len(g.ImmigratedByPromise))
	for p, id := range g.ImmigratedByPromise {
		clone.ImmigratedByPromise[p] = id
	}
	return clone
}

func removeID(ids []government.ID, target government.ID) []government.ID {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []government.ID, target government.ID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
