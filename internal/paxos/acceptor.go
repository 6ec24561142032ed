// Package paxos implements the classical Paxos recovery path (§4.5):
// a proposer that drives prepare/accept/learn on a fresh government
// promise, and an acceptor that enforces the standard safety
// invariant. Triggered only when the two-phase fast path (writer/
// recorder) collapses.
package paxos

import (
	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/promise"
)

// Acceptor enforces "never accept a promise lower than the highest
// prepared" (§4.5). One acceptor instance lives for the citizen's
// lifetime, independent of any single government's writer/recorder.
type Acceptor struct {
	highestPrepared promise.Promise
	acceptedPromise promise.Promise
	acceptedGov     *government.Government
}

// NewAcceptor returns an acceptor with no prior promises or accepts.
func NewAcceptor() *Acceptor {
	return &Acceptor{}
}

// HandlePrepare answers a prepare at p. If p is not lower than every
// promise this acceptor has already prepared, the promise is recorded
// and ok is true; the acceptor also reports the highest value it has
// previously accepted (zero/nil if none), which the proposer must
// adopt instead of its own value (the proposer's key safety rule).
func (a *Acceptor) HandlePrepare(p promise.Promise) (ok bool, acceptedPromise promise.Promise, acceptedGov *government.Government) {
	if p.Less(a.highestPrepared) {
		return false, a.acceptedPromise, a.acceptedGov
	}
	a.highestPrepared = p
	return true, a.acceptedPromise, a.acceptedGov
}

// HandleAccept answers an accept at p for gov. Rejects (ok=false) if p
// is lower than the highest promise this acceptor has prepared;
// otherwise records both the promise and the prepare floor (an accept
// at p also counts as having prepared p, so a later prepare below p
// is rejected too).
func (a *Acceptor) HandleAccept(p promise.Promise, gov *government.Government) (ok bool) {
	if p.Less(a.highestPrepared) {
		return false
	}
	a.highestPrepared = p
	a.acceptedPromise = p
	a.acceptedGov = gov
	return true
}

// HighestPrepared returns the highest promise this acceptor has
// prepared, for diagnostics.
func (a *Acceptor) HighestPrepared() promise.Promise { return a.highestPrepared }
