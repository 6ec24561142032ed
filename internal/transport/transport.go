// Package transport defines the envelope/message/response shapes the
// citizen core emits and consumes, plus an in-memory Transport used by
// tests and the cmd/citizenctl demo. Production transports (gRPC, TCP,
// ...) implement the same Transport interface; the core is agnostic to
// wire encoding (spec.md §1, Non-goals).
package transport

import (
	"context"

	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/ledger"
	"github.com/paxgov/citizenry/internal/pinger"
	"github.com/paxgov/citizenry/internal/promise"
)

// Method names the seven message kinds the protocol exchanges (§6).
type Method int

const (
	MethodSynchronize Method = iota
	MethodWrite
	MethodCommit
	MethodPrepare
	MethodAccept
	MethodLearn
	MethodPing
	MethodUnreachable // synthetic method for the null-response case, never sent on the wire
)

func (m Method) String() string {
	switch m {
	case MethodSynchronize:
		return "synchronize"
	case MethodWrite:
		return "write"
	case MethodCommit:
		return "commit"
	case MethodPrepare:
		return "prepare"
	case MethodAccept:
		return "accept"
	case MethodLearn:
		return "learn"
	case MethodPing:
		return "ping"
	default:
		return "unreachable"
	}
}

// Message is the request-side payload. Fields unused by a given
// Method are left zero; this mirrors the teacher's flat per-method
// struct shapes (Prepare/Accept/Learn/...) collapsed into one envelope
// since the wire encoding itself is explicitly out of scope.
type Message struct {
	Method  Method
	Promise promise.Promise // the proposal/government/write promise this message concerns
	Was     *promise.Promise
	Quorum  []government.ID
	Entries []*ledger.Entry // write/commit payload; at most 2 when piggybacked

	// Accepted carries the generic ack/nack for write/commit/prepare/
	// accept responses (a response is never itself a new request, so
	// reusing Message avoids a parallel reply-only struct).
	Accepted bool

	// Paxos recovery fields (prepare/accept/learn). AcceptedPromise and
	// AcceptedGov on a prepare response report the value this acceptor
	// had already accepted, if any, which the proposer must adopt.
	AcceptedPromise *promise.Promise
	AcceptedGov     *government.Government
}

// Sync is the piggyback segment riding on every request (§4.9).
type Sync struct {
	Republic  string
	From      government.ID
	Promise   promise.Promise // sender's immigration promise (generation cookie)
	Minimum   pinger.Minimum
	Committed promise.Promise // sender's head promise
	Commits   []*ledger.Entry
}

// Request is what one citizen sends another.
type Request struct {
	Message Message
	Sync    Sync
}

// Envelope is an outbound request paired with its destination, the
// shape the core emits (§6); consumers drain envelopes and return a
// Response (or nil, for network failure).
type Envelope struct {
	To      government.ID
	From    government.ID
	Request Request
}

// Response is what comes back from a request, real or synthesized.
type Response struct {
	Message     Message
	Sync        Sync
	Minimum     *pinger.Minimum
	Unreachable map[government.ID]bool
}

// Unreachable synthesizes the canonical null-response stand-in (§6):
// a transport timeout or drop is treated identically to an explicit
// unreachable reply.
func Unreachable() *Response {
	return &Response{
		Message: Message{Method: MethodUnreachable, Promise: promise.Zero},
		Sync:    Sync{Commits: nil},
	}
}

// Transport ships a request to a named peer and returns its response,
// or nil if the peer did not answer (timeout, partition, crash). A
// non-nil error indicates a local transport fault distinct from peer
// unreachability. citizen.Drive feeds a nil response back as
// unreachable but stops and returns an error to its own caller.
type Transport interface {
	Send(ctx context.Context, to government.ID, req Request) (*Response, error)
}
