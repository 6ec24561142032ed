// Package pinger tracks per-peer reachability and the cluster-wide
// truncation minimum: the promise below which every citizen has
// enough corroborating evidence to safely discard log history.
package pinger

import (
	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/promise"
)

// PeerPing is what a citizen knows about one peer, updated on every
// response received from or about that peer.
type PeerPing struct {
	Committed   promise.Promise
	Naturalized bool
	When        int64
	Reachable   bool
}

// Minimum is the truncation triple a citizen publishes: the promise it
// advertises as safe to truncate up to (Propagated), the government
// under which that figure was computed (Version), and the floor this
// citizen itself can reduce to from its constituents' reports
// (Reduced).
type Minimum struct {
	Propagated promise.Promise
	Version    promise.Promise
	Reduced    promise.Promise
}

// Tracker owns one citizen's view of peer reachability and the
// minimum computation described in §4.7.
type Tracker struct {
	timeout     int64
	peers       map[government.ID]*PeerPing
	disappeared map[government.ID]int64
	crossed     map[government.ID]bool // already reported past-timeout, so the signal fires only once

	constituents map[government.ID]promise.Promise // latest reported `reduced` per constituent, reset on government enactment
}

// NewTracker returns a tracker with the given unreachability timeout.
func NewTracker(timeout int64) *Tracker {
	return &Tracker{
		timeout:      timeout,
		peers:        make(map[government.ID]*PeerPing),
		disappeared:  make(map[government.ID]int64),
		crossed:      make(map[government.ID]bool),
		constituents: make(map[government.ID]promise.Promise),
	}
}

// ResetConstituents clears per-constituent minimum reports and
// disappearance state for the given ids. Called on government
// enactment (§4.8): the topology changed, so stale disappearance
// evidence about peers now present in majority/minority must be
// dropped since Paxos may have succeeded despite it.
func (t *Tracker) ResetConstituents(ids []government.ID) {
	t.constituents = make(map[government.ID]promise.Promise, len(ids))
	for _, id := range ids {
		delete(t.disappeared, id)
		delete(t.crossed, id)
	}
}

// RecordSuccess clears disappearance for id and records its reported
// committed promise, marking it reachable.
func (t *Tracker) RecordSuccess(id government.ID, now int64, committed promise.Promise, naturalized bool) {
	delete(t.disappeared, id)
	delete(t.crossed, id)
	t.peers[id] = &PeerPing{Committed: committed, Naturalized: naturalized, When: now, Reachable: true}
}

// RecordFailure notes that id failed to respond at now. It returns
// true the first time id crosses the unreachability timeout, the
// signal the citizen feeds to the shaper (§4.7, §7 Unreachable-peer).
func (t *Tracker) RecordFailure(id government.ID, now int64) (becameUnreachable bool) {
	first, ok := t.disappeared[id]
	if !ok {
		t.disappeared[id] = now
		first = now
	}
	if p, ok := t.peers[id]; ok {
		p.Reachable = false
	} else {
		t.peers[id] = &PeerPing{When: now, Reachable: false}
	}
	if now-first >= t.timeout && !t.crossed[id] {
		t.crossed[id] = true
		return true
	}
	return false
}

// Reachable reports whether id is currently considered reachable.
func (t *Tracker) Reachable(id government.ID) bool {
	p, ok := t.peers[id]
	return ok && p.Reachable
}

// PeerCommitted returns the promise id last reported as its own log
// head, or the zero promise if id has never responded. Used to bound
// an outgoing synchronize's commits segment to what the peer actually
// needs next, rather than resending its whole retained history.
func (t *Tracker) PeerCommitted(id government.ID) promise.Promise {
	if p, ok := t.peers[id]; ok {
		return p.Committed
	}
	return promise.Zero
}

// Unreachable returns the ids currently past the unreachability
// timeout.
func (t *Tracker) Unreachable(now int64) []government.ID {
	var out []government.ID
	for id, first := range t.disappeared {
		if now-first >= t.timeout {
			out = append(out, id)
		}
	}
	return out
}

// ReportConstituentReduced records a constituent's self-reported
// `reduced` floor under the current government version.
func (t *Tracker) ReportConstituentReduced(id government.ID, reduced promise.Promise) {
	t.constituents[id] = reduced
}

// ComputeReduced returns the floor this citizen can reduce to: the
// minimum of own and its constituents' reported `reduced` values if
// every named constituent has reported under the current government
// version, else the zero promise (§4.7). With no constituents it
// returns own.
func (t *Tracker) ComputeReduced(constituentIDs []government.ID, own promise.Promise) promise.Promise {
	if len(constituentIDs) == 0 {
		return own
	}
	reduced := own
	for _, id := range constituentIDs {
		v, ok := t.constituents[id]
		if !ok {
			return promise.Zero
		}
		reduced = promise.Min(reduced, v)
	}
	return reduced
}
