// Package writer implements the leader-side half of the two-phase
// commit fast path (§4.3): batching client proposals to the current
// government's majority, writing them provisionally, then committing
// once the majority has acknowledged.
package writer

import (
	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/promise"
)

// Stage is where an in-flight proposal sits in the two-phase protocol.
type Stage int

const (
	StageWriting Stage = iota
	StageCommitting
)

// Slot is one in-flight proposal: at most two may be outstanding at
// once (§5), the current write and an optional piggybacked next.
type Slot struct {
	Proposal *government.Proposal
	Stage    Stage
}

// Batch names a set of proposals to ship to a quorum in one round,
// either as write or commit requests.
type Batch struct {
	Quorum    []government.ID
	Proposals []*government.Proposal
}

// Writer is the leader's per-government two-phase commit state.
// Replaced wholesale whenever a new government enacts (§4.8).
type Writer struct {
	version      promise.Promise
	collapsed    bool
	queue        []*government.Proposal
	inflight     []*Slot
	lastAssigned promise.Promise
}

// New returns a writer for the government installed at version, with
// proposal numbering continuing from logHead (normally the log's
// current head promise at the moment the government enacted).
func New(version, logHead promise.Promise) *Writer {
	return &Writer{version: version, lastAssigned: logHead}
}

// Version returns the government promise this writer is bound to.
func (w *Writer) Version() promise.Promise { return w.version }

// Collapsed reports whether Collapse has been called; once true, Nudge
// moves nothing into flight until the citizen replaces this writer
// after Paxos recovery installs a new government. Push still queues.
func (w *Writer) Collapsed() bool { return w.collapsed }

// Collapse marks the writer collapsed. Idempotent.
func (w *Writer) Collapse() { w.collapsed = true }

// Push enqueues an ordinary application proposal, assigning it the
// next minor promise.
func (w *Writer) Push(body []byte, quorum []government.ID) *government.Proposal {
	p := &government.Proposal{
		Promise:  promise.IncrementMinor(w.lastAssigned),
		Previous: w.lastAssigned,
		Quorum:   quorum,
		Kind:     government.EntryKindEntry,
		Body:     body,
	}
	w.lastAssigned = p.Promise
	w.queue = append(w.queue, p)
	return p
}

// Unshift prepends a government proposal ahead of the queue, assigning
// it the next major promise, and re-maps every already-queued proposal
// onto fresh promises after it — a government entry supersedes all
// queued proposals (§3, Lifecycle).
func (w *Writer) Unshift(gov *government.Government, quorum []government.ID) *government.Proposal {
	previous := w.lastAssigned
	if len(w.queue) > 0 {
		previous = w.queue[0].Previous
	}
	govPromise := promise.IncrementMajor(previous)
	p := &government.Proposal{
		Promise:  govPromise,
		Previous: previous,
		Quorum:   quorum,
		Kind:     government.EntryKindGovernment,
		Gov:      gov,
	}
	remapped := make([]*government.Proposal, 0, len(w.queue))
	cursor := govPromise
	for _, old := range w.queue {
		next := promise.IncrementMinor(cursor)
		remapped = append(remapped, old.Remap(next, cursor))
		cursor = next
	}
	w.lastAssigned = cursor
	w.queue = append([]*government.Proposal{p}, remapped...)
	return p
}

// Queue returns the still-pending (not yet in flight) proposals; the
// citizen pushes the application entries among them onto the fresh
// writer it creates when a new government enacts.
func (w *Writer) Queue() []*government.Proposal { return append([]*government.Proposal(nil), w.queue...) }

// Inflight returns the proposals currently in flight, oldest first.
func (w *Writer) Inflight() []*government.Proposal {
	out := make([]*government.Proposal, len(w.inflight))
	for i, s := range w.inflight {
		out[i] = s.Proposal
	}
	return out
}

// Nudge moves the head of the queue into flight and returns the batch
// to send as a `write` request, or nil if nothing in flight is
// possible (already writing, or nothing queued). Per the batching
// rule (§4.3), a second proposal piggybacks onto the same round only
// when neither it nor the first involves a government boundary.
func (w *Writer) Nudge() *Batch {
	if w.collapsed || len(w.inflight) > 0 || len(w.queue) == 0 {
		return nil
	}
	first := w.queue[0]
	w.queue = w.queue[1:]
	w.inflight = append(w.inflight, &Slot{Proposal: first, Stage: StageWriting})
	proposals := []*government.Proposal{first}

	if len(w.queue) > 0 && first.Kind == government.EntryKindEntry {
		next := w.queue[0]
		if next.Kind == government.EntryKindEntry {
			w.queue = w.queue[1:]
			w.inflight = append(w.inflight, &Slot{Proposal: next, Stage: StageWriting})
			proposals = append(proposals, next)
		}
	}
	return &Batch{Quorum: first.Quorum, Proposals: proposals}
}

// slotFor returns the in-flight slot for promise p, if any.
func (w *Writer) slotFor(p promise.Promise) *Slot {
	for _, s := range w.inflight {
		if s.Proposal.Promise.Equal(p) {
			return s
		}
	}
	return nil
}

// WriteAcked transitions the in-flight slot at promise p from writing
// to committing, returning the `commit` batch to send. It is a no-op
// (returns nil) if p is not an in-flight writing slot — a stale or
// duplicate ack.
func (w *Writer) WriteAcked(p promise.Promise) *Batch {
	slot := w.slotFor(p)
	if slot == nil || slot.Stage != StageWriting {
		return nil
	}
	slot.Stage = StageCommitting
	return &Batch{Quorum: slot.Proposal.Quorum, Proposals: []*government.Proposal{slot.Proposal}}
}

// CommitAcked pops the in-flight slot at promise p once a quorum of
// commit acks has arrived, returning the proposal ready to become a
// log entry. Returns (nil, false) if p is not an in-flight committing
// slot.
func (w *Writer) CommitAcked(p promise.Promise) (*government.Proposal, bool) {
	for i, s := range w.inflight {
		if s.Proposal.Promise.Equal(p) {
			if s.Stage != StageCommitting {
				return nil, false
			}
			w.inflight = append(w.inflight[:i], w.inflight[i+1:]...)
			return s.Proposal, true
		}
	}
	return nil, false
}
