// Package citizen wires the atomic log, scheduler, writer/recorder fast
// path, proposer/acceptor recovery path, shaper, and pinger together
// into the single per-process republic member (§4.8): the object a
// transport handler calls into on every inbound request and every
// timer tick.
package citizen

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/ledger"
	"github.com/paxgov/citizenry/internal/metrics"
	"github.com/paxgov/citizenry/internal/paxos"
	"github.com/paxgov/citizenry/internal/pinger"
	"github.com/paxgov/citizenry/internal/promise"
	"github.com/paxgov/citizenry/internal/recorder"
	"github.com/paxgov/citizenry/internal/scheduler"
	"github.com/paxgov/citizenry/internal/shaper"
	"github.com/paxgov/citizenry/internal/transport"
	"github.com/paxgov/citizenry/internal/writer"
)

// Errors returned by the citizen's public operations.
var (
	ErrAlreadyBootstrapped = errors.New("citizen: already bootstrapped")
	ErrNotBootstrapped     = errors.New("citizen: not bootstrapped")
	ErrNotLeader           = errors.New("citizen: not the current leader")
	ErrCollapsed           = errors.New("citizen: writer has collapsed, awaiting recovery")
)

// AssertionError marks a violated chain invariant — Agreement or
// otherwise — as a bug rather than a runtime condition (§7). The core
// never returns one; it panics with *AssertionError instead, and only
// cmd/citizenctl recovers it, at the process boundary, to abort
// cleanly.
type AssertionError struct {
	Op      string
	Promise promise.Promise
	Err     error
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("citizen: assertion failed in %s at %s: %v", e.Op, e.Promise, e.Err)
}

func (e *AssertionError) Unwrap() error { return e.Err }

// assertf logs and panics with an *AssertionError. Called only where a
// ledger.Log.Push failure cannot be a legitimate runtime outcome — the
// entry originated from this citizen's own bookkeeping (a committed
// recorder batch, the leader's own proposal), so a chain violation
// there means the core's own invariants broke. A learned Paxos
// government that fails to chain is neither pushed nor enacted, and
// raises no assertion.
func (c *Citizen) assertf(op string, p promise.Promise, err error) {
	c.logger.Error().Err(err).Str("promise", p.String()).Str("op", op).Msg("invariant violated, aborting")
	panic(&AssertionError{Op: op, Promise: p, Err: err})
}

const (
	keySynchronize = "synchronize"
	keyCollapse    = "collapse"
	keyPropose     = "propose"

	// syncBatchSize bounds how many commits ride a single synchronize
	// message (§4.9); a peer further behind than this catches up over
	// several rounds instead of one unbounded dump.
	syncBatchSize = 256
)

// Config holds the parameters a citizen is constructed with; loaded
// from YAML by the internal/config package in production, or built by
// hand in tests.
type Config struct {
	Republic           string
	Self               government.ID
	ParliamentSize     int
	PingInterval       int64
	UnreachableTimeout int64
	CollapseTimeout    int64
	RetrySeed          int64
}

// Citizen is one member of a republic: it owns exactly one log, one
// scheduler, and (depending on its current role) a writer or recorder
// for the two-phase fast path, plus a proposer and acceptor always
// available for Paxos recovery.
type Citizen struct {
	self      government.ID
	republic  string
	transport transport.Transport
	logger    zerolog.Logger

	parliamentSize     int
	pingInterval       int64
	unreachableTimeout int64
	collapseTimeout    int64
	retrySeed          int64

	log   *ledger.Log
	sched *scheduler.Scheduler
	gov   *government.Government

	wr  *writer.Writer
	rec *recorder.Recorder
	acc *paxos.Acceptor

	ping  *pinger.Tracker
	shape *shaper.Shaper

	collapsed bool

	// trailerFloor is the most advanced truncation floor this citizen
	// has learned is safe: its own computed reduction if it is the
	// leader, or the most advanced Propagated value any peer has
	// forwarded otherwise (§4.7, §8.6).
	trailerFloor promise.Promise

	metrics *metrics.Registry

	prop                *paxos.Proposer
	recoveryPhase       recoveryPhase
	recoveryCand        *government.Government
	recoveryAcks        map[government.ID]bool
	recoveryBestPromise promise.Promise
	recoveryBestGov     *government.Government
}

type recoveryPhase int

const (
	recoveryNone recoveryPhase = iota
	recoveryPreparing
	recoveryAccepting
)

// New returns a citizen bound to cfg, communicating over tr. It is
// inert until Bootstrap installs a genesis government or a request
// from an existing republic catches it up via synchronize.
func New(cfg Config, tr transport.Transport, logger zerolog.Logger) *Citizen {
	return &Citizen{
		self:               cfg.Self,
		republic:           cfg.Republic,
		transport:          tr,
		logger:             logger.With().Str("citizen", string(cfg.Self)).Logger(),
		parliamentSize:     cfg.ParliamentSize,
		pingInterval:       cfg.PingInterval,
		unreachableTimeout: cfg.UnreachableTimeout,
		collapseTimeout:    cfg.CollapseTimeout,
		retrySeed:          cfg.RetrySeed,
		log:                ledger.New(),
		sched:              scheduler.New(),
		acc:                paxos.NewAcceptor(),
		prop:               paxos.NewProposer(cfg.Self, cfg.RetrySeed),
		ping:               pinger.NewTracker(cfg.UnreachableTimeout),
	}
}

// Current implements shaper.View.
func (c *Citizen) Current() *government.Government { return c.gov }

// SetMetrics attaches reg as this citizen's metrics sink; wired into
// the request/response paths and the pinger (reachability, collapse
// frequency) as well as the log (head/trailer position). A nil
// Registry is the default and every metrics call on it is a no-op.
func (c *Citizen) SetMetrics(reg *metrics.Registry) { c.metrics = reg }

// reportMetrics publishes the log's current head and trailer position.
// Called whenever either can have moved.
func (c *Citizen) reportMetrics() {
	head := c.log.HeadPromise()
	trailer := c.log.TrailerPromise()
	c.metrics.SetHead(head.Government, head.Round)
	c.metrics.SetTrailer(trailer.Government, trailer.Round)
}

// Snapshot is a read-only view of a citizen's state, useful for
// diagnostics and tests without exposing the live mutable structures.
type Snapshot struct {
	Self       government.ID
	Government *government.Government
	Head       promise.Promise
	Trailer    promise.Promise
	Collapsed  bool
	IsLeader   bool
}

// Snapshot returns a point-in-time copy of this citizen's externally
// visible state.
func (c *Citizen) Snapshot() Snapshot {
	return Snapshot{
		Self:       c.self,
		Government: c.gov,
		Head:       c.log.HeadPromise(),
		Trailer:    c.log.TrailerPromise(),
		Collapsed:  c.collapsed,
		IsLeader:   c.wr != nil,
	}
}

// Entries returns every committed entry this citizen currently
// retains, in promise order. Like Snapshot, it exists for read-only
// tooling (cmd/citizenctl, diagnostics) without exposing the log
// itself.
func (c *Citizen) Entries() []*ledger.Entry {
	return c.log.Entries(promise.Zero, 0)
}

// Bootstrap installs the genesis government, a single-member majority
// of just this citizen, at promise 1/0 (§4.8). It is an error to
// bootstrap a citizen that already has a government, whether from a
// prior Bootstrap call or from catching up via synchronize.
func (c *Citizen) Bootstrap(now int64, props government.Properties) error {
	if c.gov != nil {
		return ErrAlreadyBootstrapped
	}
	genesis := &government.Government{
		Promise:             promise.Promise{Government: 1, Round: 0},
		Majority:            []government.ID{c.self},
		Properties:          map[government.ID]government.Properties{c.self: props},
		ImmigratedByID:      map[government.ID]promise.Promise{c.self: {Government: 1, Round: 0}},
		ImmigratedByPromise: map[promise.Promise]government.ID{{Government: 1, Round: 0}: c.self},
	}
	entry := &ledger.Entry{Promise: genesis.Promise, Previous: promise.Zero, Kind: government.EntryKindGovernment, Gov: genesis}
	if err := c.log.Push(entry); err != nil {
		return errors.Wrap(err, "citizen: bootstrap")
	}
	c.enact(now, genesis)
	c.reportMetrics()
	c.logger.Info().Str("promise", genesis.Promise.String()).Msg("bootstrapped republic")
	return nil
}

// Enqueue submits body as an application proposal. Only the current
// leader accepts enqueues; a follower returns ErrNotLeader so the
// caller can retry against the government's actual leader (§4.8).
func (c *Citizen) Enqueue(body []byte) (*government.Proposal, error) {
	if c.gov == nil {
		return nil, ErrNotBootstrapped
	}
	if c.wr == nil {
		return nil, ErrNotLeader
	}
	if c.wr.Collapsed() {
		return nil, ErrCollapsed
	}
	return c.wr.Push(body, without(c.gov.Majority, c.self)), nil
}

// Immigrate asks the shaper to admit a new citizen. Only the leader
// can act on the resulting shape, since only the leader's writer can
// unshift a government proposal ahead of its queue. Returns (nil, nil)
// if a government is already pending (the shaper's decided latch).
func (c *Citizen) Immigrate(id government.ID, cookie int64, props government.Properties) (*government.Government, error) {
	if c.gov == nil {
		return nil, ErrNotBootstrapped
	}
	if c.wr == nil {
		return nil, ErrNotLeader
	}
	shape := c.shape.Immigrate(&government.Immigration{ID: id, Cookie: cookie, Props: props})
	if shape == nil {
		return nil, nil
	}
	return c.enqueueShape(shape), nil
}

// enqueueShape unshifts shape ahead of the writer's queue, stamps its
// final promise back onto the shape's immigration bijection (the
// promise is only known once Unshift assigns it), and latches the
// shaper so no second government is proposed concurrently.
func (c *Citizen) enqueueShape(shape *government.Government) *government.Government {
	c.shape.MarkDecided()
	proposal := c.wr.Unshift(shape, without(c.gov.Majority, c.self))
	shape.Promise = proposal.Promise
	if shape.Immigrate != nil {
		if shape.ImmigratedByID == nil {
			shape.ImmigratedByID = make(map[government.ID]promise.Promise)
		}
		if shape.ImmigratedByPromise == nil {
			shape.ImmigratedByPromise = make(map[promise.Promise]government.ID)
		}
		shape.ImmigratedByID[shape.Immigrate.ID] = proposal.Promise
		shape.ImmigratedByPromise[proposal.Promise] = shape.Immigrate.ID
	}
	return shape
}

// Tick drains due scheduler events and any writer work ready to nudge
// into flight, returning the outbound envelopes for the caller's
// transport loop to dispatch (§4.2, §5: the core never blocks or
// dispatches network I/O itself).
func (c *Citizen) Tick(now int64) []transport.Envelope {
	if c.gov == nil {
		return nil
	}
	var out []transport.Envelope

	if c.wr != nil && !c.wr.Collapsed() {
		if batch := c.wr.Nudge(); batch != nil {
			out = append(out, c.driveBatch(now, transport.MethodWrite, batch)...)
		}
	}

	for _, ev := range c.sched.Due(now) {
		switch ev.Kind {
		case scheduler.KindSynchronize:
			if c.gov.Leader() == c.self {
				reduced := c.ping.ComputeReduced(c.gov.Constituency(c.self), c.log.HeadPromise())
				c.advanceTrailerFloor(reduced)
			}
			out = append(out, c.synchronizeEnvelopes(now)...)
			c.sched.Schedule(now+c.pingInterval, keySynchronize, scheduler.KindSynchronize, nil)
		case scheduler.KindCollapse:
			c.collapse(now)
		case scheduler.KindPropose:
			out = append(out, c.proposeEnvelopes(now)...)
		}
	}
	return out
}

// Drive ticks the citizen, ships every resulting envelope over its
// transport, and feeds each response (or nil, on failure) back into
// HandleResponse, chasing any envelopes that in turn produces until
// none remain. This is the convenience loop cmd/citizenctl uses;
// callers needing their own dispatch strategy (batching, a custom
// context per peer) should call Tick/HandleResponse directly instead.
func (c *Citizen) Drive(ctx context.Context, now int64) error {
	pending := c.Tick(now)
	for len(pending) > 0 {
		env := pending[0]
		pending = pending[1:]

		resp, err := c.transport.Send(ctx, env.To, env.Request)
		if err != nil {
			return errors.Wrapf(err, "citizen: send to %s", env.To)
		}
		pending = append(pending, c.HandleResponse(now, env.To, env.Request, resp)...)
	}
	return nil
}

// Request answers an inbound request from peer, applying its
// synchronize piggyback and dispatching on the message method
// (§4.9, §6).
func (c *Citizen) Request(now int64, from government.ID, req transport.Request) *transport.Response {
	// applySync runs even before this citizen has a government: it is
	// how a freshly immigrated citizen, still gov == nil, learns its
	// first government and catches up its log from a peer's piggyback.
	c.applySync(now, from, req.Sync)
	if c.gov == nil {
		return transport.Unreachable()
	}

	if c.rec != nil && c.rec.ShouldConvert(req.Message.Method, req.Message.Promise) {
		c.convertToAcceptor()
	}

	resp := &transport.Response{Message: transport.Message{Method: req.Message.Method, Promise: req.Message.Promise}}
	switch req.Message.Method {
	case transport.MethodSynchronize, transport.MethodPing:
		// Accepted here doubles as the §4.9 reject signal: true once this
		// citizen's log has actually caught up to what the sender claims
		// as committed, false (a reject) while a gap remains — resp.Sync
		// already carries this citizen's real head for the sender to
		// resume from.
		resp.Message.Accepted = !c.log.HeadPromise().Less(req.Sync.Committed)
	case transport.MethodWrite:
		if c.rec != nil && c.rec.HandleWrite(req.Message.Promise, req.Message.Entries) {
			resp.Message.Accepted = true
		}
	case transport.MethodCommit:
		if c.rec != nil {
			promises := make([]promise.Promise, len(req.Message.Entries))
			for i, e := range req.Message.Entries {
				promises[i] = e.Promise
			}
			if entries, ok := c.rec.HandleCommit(promises); ok {
				c.adoptEntries(now, entries)
				resp.Message.Accepted = true
			}
		}
	case transport.MethodPrepare:
		ok, acceptedPromise, acceptedGov := c.acc.HandlePrepare(req.Message.Promise)
		resp.Message.Accepted = ok
		if ok {
			resp.Message.AcceptedPromise = &acceptedPromise
			resp.Message.AcceptedGov = acceptedGov
		}
	case transport.MethodAccept:
		resp.Message.Accepted = c.acc.HandleAccept(req.Message.Promise, req.Message.AcceptedGov)
	case transport.MethodLearn:
		if req.Message.AcceptedGov != nil {
			entry := &ledger.Entry{Promise: req.Message.Promise, Previous: c.log.HeadPromise(), Kind: government.EntryKindGovernment, Gov: req.Message.AcceptedGov}
			if err := c.log.Push(entry); err == nil {
				c.enact(now, req.Message.AcceptedGov)
				resp.Message.Accepted = true
			}
		}
	}
	resp.Sync = c.outgoingSync(now, from)
	return resp
}

// HandleResponse processes the reply (or nil, meaning unreachable) to
// a request this citizen sent to peer, advancing the writer's
// two-phase pipeline or the proposer's recovery round as appropriate,
// and returns any further envelopes that progress implies.
func (c *Citizen) HandleResponse(now int64, peer government.ID, req transport.Request, resp *transport.Response) []transport.Envelope {
	if resp == nil {
		c.metrics.SetReachable(peer, false)
		becameUnreachable := c.ping.RecordFailure(peer, now)
		var shape *government.Government
		if becameUnreachable {
			shape = c.shape.Exile(peer)
		} else {
			shape = c.shape.Unreachable(peer)
		}
		if shape != nil && c.wr != nil {
			c.enqueueShape(shape)
		}
		return nil
	}
	c.metrics.SetReachable(peer, true)
	c.ping.RecordSuccess(peer, now, resp.Sync.Committed, false)
	c.shape.SetReachable(peer, true)
	c.applySync(now, peer, resp.Sync)

	var out []transport.Envelope
	switch req.Message.Method {
	case transport.MethodSynchronize, transport.MethodPing:
		// §4.9: reschedule this citizen's next ping under the same key,
		// immediately if peer is still behind what it last saw as this
		// citizen's head, at the normal cadence once it has caught up.
		delay := c.pingInterval
		if !resp.Message.Accepted {
			delay = 0
		}
		c.sched.Schedule(now+delay, keySynchronize, scheduler.KindSynchronize, nil)
	case transport.MethodWrite:
		if resp.Message.Accepted && c.wr != nil {
			for _, e := range req.Message.Entries {
				if batch := c.wr.WriteAcked(e.Promise); batch != nil {
					out = append(out, c.driveBatch(now, transport.MethodCommit, batch)...)
				}
			}
		}
	case transport.MethodCommit:
		if resp.Message.Accepted && c.wr != nil {
			for _, e := range req.Message.Entries {
				if proposal, ok := c.wr.CommitAcked(e.Promise); ok {
					c.finalize(now, proposal)
				}
			}
		}
	case transport.MethodPrepare:
		if resp.Message.Accepted {
			out = append(out, c.handlePrepareResponse(now, peer, resp)...)
		}
	case transport.MethodAccept:
		if resp.Message.Accepted {
			out = append(out, c.handleAcceptResponse(now, peer)...)
		}
	}
	return out
}

// enact installs gov as the current government: every prior in-flight
// coordination state is discarded since it was scoped to the previous
// government (§4.8). Application entries still queued in the old
// writer are pushed onto the new one when this citizen stays leader.
func (c *Citizen) enact(now int64, gov *government.Government) {
	var queued []*government.Proposal
	if c.wr != nil {
		queued = c.wr.Queue()
	}
	c.gov = gov
	c.sched.Clear()
	c.collapsed = false
	c.recoveryPhase = recoveryNone
	c.wr = nil
	c.rec = nil

	logHead := c.log.HeadPromise()
	switch {
	case gov.Leader() == c.self:
		c.wr = writer.New(gov.Promise, logHead)
		for _, p := range queued {
			if p.Kind == government.EntryKindEntry {
				c.wr.Push(p.Body, without(gov.Majority, c.self))
			}
		}
	case containsID(gov.Parliament(), c.self):
		c.rec = recorder.New(gov.Promise, logHead)
	}
	c.shape = shaper.New(c, c.parliamentSize, c.unreachableTimeout)
	c.shape.SetReachable(c.self, true)
	for _, id := range gov.Parliament() {
		if id != c.self && c.ping.Reachable(id) {
			c.shape.SetReachable(id, true)
		}
	}
	c.ping.ResetConstituents(gov.Parliament())

	if containsID(gov.Majority, c.self) {
		c.sched.Schedule(now+c.collapseTimeout, keyCollapse, scheduler.KindCollapse, nil)
	}
	c.sched.Schedule(now+c.pingInterval, keySynchronize, scheduler.KindSynchronize, nil)
}

// advanceTrailerFloor records propagated as this citizen's truncation
// floor, if it advances the floor already known, and shifts the log's
// trailer up to it (§4.7, §8.6).
func (c *Citizen) advanceTrailerFloor(propagated promise.Promise) {
	if !propagated.Greater(c.trailerFloor) {
		return
	}
	c.trailerFloor = propagated
	c.log.ShiftTrailer(c.trailerFloor)
	c.reportMetrics()
}

func (c *Citizen) adoptEntries(now int64, entries []*ledger.Entry) {
	for _, e := range entries {
		if err := c.log.Push(e); err != nil {
			c.assertf("adoptEntries", e.Promise, err)
		}
		if e.Kind == government.EntryKindGovernment {
			c.enact(now, e.Gov)
		}
	}
	c.reportMetrics()
}

func proposalEntry(p *government.Proposal) *ledger.Entry {
	return &ledger.Entry{Promise: p.Promise, Previous: p.Previous, Kind: p.Kind, Body: p.Body, Gov: p.Gov}
}

func (c *Citizen) finalize(now int64, p *government.Proposal) {
	entry := proposalEntry(p)
	if err := c.log.Push(entry); err != nil {
		c.assertf("finalize", p.Promise, err)
	}
	if p.Kind == government.EntryKindGovernment {
		c.enact(now, p.Gov)
	}
	c.reportMetrics()
}

func (c *Citizen) convertToAcceptor() {
	c.rec = nil
	c.collapsed = true
	c.sched.Unschedule(keyCollapse)
}

// collapse marks the current fast path dead and schedules this
// citizen's own recovery attempt. It runs when the collapse timer that
// enact schedules for majority members lapses; commits do not reset
// that timer, so it fires collapseTimeout after each enactment unless
// another government enacts first.
func (c *Citizen) collapse(now int64) {
	c.collapsed = true
	c.metrics.IncCollapse()
	if c.wr != nil {
		c.wr.Collapse()
	}
	c.rec = nil
	isLeader := c.gov != nil && c.gov.Leader() == c.self
	c.sched.Schedule(now+c.prop.Backoff(isLeader, c.collapseTimeout), keyPropose, scheduler.KindPropose, nil)
}

// proposeEnvelopes builds this citizen's recovery candidate and
// fans out a prepare to every other reachable member of the candidate
// parliament (§4.5).
func (c *Citizen) proposeEnvelopes(now int64) []transport.Envelope {
	if c.gov == nil {
		return nil
	}
	reachable := make(map[government.ID]bool, len(c.gov.Parliament()))
	for _, id := range c.gov.Parliament() {
		reachable[id] = c.ping.Reachable(id)
	}
	cand := c.prop.BuildCandidate(c.gov, c.parliamentSize, reachable)

	c.recoveryCand = cand.Government
	c.recoveryPhase = recoveryPreparing
	c.recoveryAcks = make(map[government.ID]bool)
	c.recoveryBestPromise = promise.Zero
	c.recoveryBestGov = nil
	c.acc.HandlePrepare(cand.Government.Promise) // this citizen prepares its own candidate too

	isLeader := c.gov.Leader() == c.self
	c.sched.Schedule(now+c.prop.Backoff(isLeader, c.collapseTimeout), keyPropose, scheduler.KindPropose, nil)

	var out []transport.Envelope
	for _, id := range without(cand.Government.Parliament(), c.self) {
		out = append(out, transport.Envelope{To: id, From: c.self, Request: transport.Request{
			Message: transport.Message{Method: transport.MethodPrepare, Promise: cand.Government.Promise},
			Sync:    c.outgoingSync(now, id),
		}})
	}
	return out
}

func (c *Citizen) handlePrepareResponse(now int64, from government.ID, resp *transport.Response) []transport.Envelope {
	if c.recoveryPhase != recoveryPreparing || c.recoveryCand == nil {
		return nil
	}
	c.recoveryAcks[from] = true
	if resp.Message.AcceptedPromise != nil && resp.Message.AcceptedPromise.Greater(c.recoveryBestPromise) {
		c.recoveryBestPromise = *resp.Message.AcceptedPromise
		c.recoveryBestGov = resp.Message.AcceptedGov
	}
	need := government.QuorumSize(len(c.recoveryCand.Parliament()))
	if len(c.recoveryAcks)+1 < need {
		return nil
	}

	value := c.recoveryCand
	if c.recoveryBestGov != nil {
		value = c.recoveryBestGov
	}
	c.recoveryPhase = recoveryAccepting
	c.recoveryAcks = make(map[government.ID]bool)
	c.acc.HandleAccept(c.recoveryCand.Promise, value)

	var out []transport.Envelope
	for _, id := range without(c.recoveryCand.Parliament(), c.self) {
		out = append(out, transport.Envelope{To: id, From: c.self, Request: transport.Request{
			Message: transport.Message{Method: transport.MethodAccept, Promise: c.recoveryCand.Promise, AcceptedGov: value},
			Sync:    c.outgoingSync(now, id),
		}})
	}
	return out
}

func (c *Citizen) handleAcceptResponse(now int64, from government.ID) []transport.Envelope {
	if c.recoveryPhase != recoveryAccepting || c.recoveryCand == nil {
		return nil
	}
	c.recoveryAcks[from] = true
	need := government.QuorumSize(len(c.recoveryCand.Parliament()))
	if len(c.recoveryAcks)+1 < need {
		return nil
	}

	gov := c.recoveryCand
	if c.recoveryBestGov != nil {
		gov = c.recoveryBestGov
	}
	entry := &ledger.Entry{Promise: gov.Promise, Previous: c.log.HeadPromise(), Kind: government.EntryKindGovernment, Gov: gov}
	if err := c.log.Push(entry); err == nil {
		c.enact(now, gov)
	}
	c.recoveryPhase = recoveryNone
	c.recoveryCand = nil

	var out []transport.Envelope
	for _, id := range without(gov.Parliament(), c.self) {
		out = append(out, transport.Envelope{To: id, From: c.self, Request: transport.Request{
			Message: transport.Message{Method: transport.MethodLearn, Promise: gov.Promise, AcceptedGov: gov},
			Sync:    c.outgoingSync(now, id),
		}})
	}
	return out
}

// driveBatch fans batch out to its quorum, or, when the quorum is
// empty (a majority of one, this citizen alone), advances the pipeline
// locally: the leader's own vote already constitutes a quorum, so
// nothing will ever arrive to ack it from the network.
func (c *Citizen) driveBatch(now int64, method transport.Method, batch *writer.Batch) []transport.Envelope {
	if len(batch.Quorum) > 0 {
		return c.batchEnvelopes(now, method, batch)
	}
	switch method {
	case transport.MethodWrite:
		var out []transport.Envelope
		for _, p := range batch.Proposals {
			if cb := c.wr.WriteAcked(p.Promise); cb != nil {
				out = append(out, c.driveBatch(now, transport.MethodCommit, cb)...)
			}
		}
		return out
	case transport.MethodCommit:
		for _, p := range batch.Proposals {
			if proposal, ok := c.wr.CommitAcked(p.Promise); ok {
				c.finalize(now, proposal)
			}
		}
	}
	return nil
}

func (c *Citizen) batchEnvelopes(now int64, method transport.Method, batch *writer.Batch) []transport.Envelope {
	entries := make([]*ledger.Entry, len(batch.Proposals))
	for i, p := range batch.Proposals {
		entries[i] = proposalEntry(p)
	}
	out := make([]transport.Envelope, 0, len(batch.Quorum))
	for _, to := range batch.Quorum {
		out = append(out, transport.Envelope{To: to, From: c.self, Request: transport.Request{
			Message: transport.Message{Method: method, Promise: c.wr.Version(), Entries: entries},
			Sync:    c.outgoingSync(now, to),
		}})
	}
	return out
}

func (c *Citizen) synchronizeEnvelopes(now int64) []transport.Envelope {
	if c.gov == nil {
		return nil
	}
	peers := c.gov.Constituency(c.self)
	out := make([]transport.Envelope, 0, len(peers))
	for _, to := range peers {
		out = append(out, transport.Envelope{To: to, From: c.self, Request: transport.Request{
			Message: transport.Message{Method: transport.MethodSynchronize},
			Sync:    c.outgoingSync(now, to),
		}})
	}
	return out
}

// outgoingSync builds the piggyback segment riding on a request or
// response bound for peer: this citizen's immigration cookie, its
// self-reported truncation floor, and a bounded run of commits picked
// up from wherever peer last reported its own head (§4.7, §4.9) — not
// the citizen's whole retained history, so a long-caught-up peer isn't
// re-sent the same trailing entries forever.
func (c *Citizen) outgoingSync(now int64, peer government.ID) transport.Sync {
	reduced := c.ping.ComputeReduced(c.gov.Constituency(c.self), c.log.HeadPromise())
	var cookie promise.Promise
	if c.gov.ImmigratedByID != nil {
		cookie = c.gov.ImmigratedByID[c.self]
	}
	propagated := reduced
	if c.gov.Leader() != c.self {
		propagated = c.trailerFloor
	}
	from := c.ping.PeerCommitted(peer)
	return transport.Sync{
		Republic:  c.republic,
		From:      c.self,
		Promise:   cookie,
		Minimum:   pinger.Minimum{Propagated: propagated, Version: c.gov.Promise, Reduced: reduced},
		Committed: c.log.HeadPromise(),
		Commits:   c.log.Entries(from, syncBatchSize),
	}
}

// applySync catches this citizen up on every commit carried by an
// incoming synchronize segment and records the sender's self-reported
// truncation floor (§4.7, §4.9). A Push failure whose cause is
// ErrWrongPrevious is not an invariant breach here: sync.Commits is
// gossip from another process's log, and a gap either means this
// citizen is further behind than the bounded window reaches, or the
// entry is a stale replay of something already shifted past this
// citizen's own trailer. Either way the fix is to retry the next round
// from this citizen's (unmoved) actual head, which the reject/accept
// signal in Request already arranges — not to abort the process.
func (c *Citizen) applySync(now int64, from government.ID, sync transport.Sync) {
	if sync.Republic != "" && sync.Republic != c.republic {
		return
	}
	for _, e := range sync.Commits {
		if err := c.log.Push(e); err != nil {
			if errors.Is(err, ledger.ErrWrongPrevious) {
				break
			}
			c.assertf("applySync", e.Promise, err)
		}
		if e.Kind == government.EntryKindGovernment && (c.gov == nil || e.Promise.Greater(c.gov.Promise)) {
			c.enact(now, e.Gov)
		}
	}
	c.ping.ReportConstituentReduced(from, sync.Minimum.Reduced)
	c.advanceTrailerFloor(sync.Minimum.Propagated)
	c.reportMetrics()
}

func without(ids []government.ID, target government.ID) []government.ID {
	out := make([]government.ID, 0, len(ids))
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
