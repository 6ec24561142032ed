// Package recorder implements the follower-side half of the two-phase
// commit fast path (§4.4): accepting provisional writes from the
// current leader and finalizing them on commit.
package recorder

import (
	"github.com/paxgov/citizenry/internal/ledger"
	"github.com/paxgov/citizenry/internal/promise"
	"github.com/paxgov/citizenry/internal/transport"
)

// Recorder is a follower's per-government write-ahead staging area.
// Replaced wholesale whenever a new government enacts.
type Recorder struct {
	version  promise.Promise
	expected promise.Promise // promise the next staged entry must chain from (its Previous)
	staged   map[promise.Promise]*ledger.Entry
}

// New returns a recorder bound to version, expecting its first write
// to chain from logHead.
func New(version, logHead promise.Promise) *Recorder {
	return &Recorder{version: version, expected: logHead, staged: make(map[promise.Promise]*ledger.Entry)}
}

// Version returns the government promise this recorder is bound to.
func (r *Recorder) Version() promise.Promise { return r.version }

// ShouldConvert reports whether an incoming request should convert
// this recorder into an acceptor (§4.4): any prepare message, or any
// request whose promise runs ahead of what this recorder is expecting
// next — evidence that a Paxos round is already underway elsewhere.
func (r *Recorder) ShouldConvert(method transport.Method, msgPromise promise.Promise) bool {
	if method == transport.MethodPrepare {
		return true
	}
	return msgPromise.Greater(r.expected) && !msgPromise.Equal(promise.IncrementMinor(r.expected)) && !msgPromise.Equal(promise.IncrementMajor(r.expected))
}

// HandleWrite validates and stages entries from a `write` request.
// Rejects (ok=false) if msgVersion does not match the currently
// enacted government, or if the entries do not chain from what this
// recorder expects next.
func (r *Recorder) HandleWrite(msgVersion promise.Promise, entries []*ledger.Entry) (ok bool) {
	if !msgVersion.Equal(r.version) {
		return false
	}
	prev := r.expected
	for _, e := range entries {
		if !e.Previous.Equal(prev) {
			return false
		}
		prev = e.Promise
	}
	for _, e := range entries {
		r.staged[e.Promise] = e
	}
	return true
}

// HandleCommit finalizes the staged entries named by promises, in
// order, returning them ready for the citizen to push onto its log.
// Returns ok=false if any named promise was never staged (the commit
// arrived without a preceding write, or for a different recorder
// generation).
func (r *Recorder) HandleCommit(promises []promise.Promise) (entries []*ledger.Entry, ok bool) {
	out := make([]*ledger.Entry, 0, len(promises))
	for _, p := range promises {
		e, staged := r.staged[p]
		if !staged {
			return nil, false
		}
		out = append(out, e)
	}
	for _, p := range promises {
		delete(r.staged, p)
	}
	if len(out) > 0 {
		r.expected = out[len(out)-1].Promise
	}
	return out, true
}
