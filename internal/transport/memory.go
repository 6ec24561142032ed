package transport

import (
	"context"
	"sync"

	"github.com/paxgov/citizenry/internal/government"
	"github.com/pkg/errors"
)

// Handler answers a request addressed to a registered citizen. It is
// called synchronously on the sender's goroutine, matching the core's
// single-threaded, non-suspending request/response contract (§5).
type Handler func(ctx context.Context, from government.ID, req Request) *Response

// ErrUnknownPeer names the fault of sending to an id a transport does
// not know. Network does not return it: its Send answers (nil, nil)
// for an id with no registered handler, the same as an unreachable
// peer.
var ErrUnknownPeer = errors.New("transport: unknown peer")

// Network is an in-memory, fully-connected Transport used by tests and
// the cmd/citizenctl demo. Peers register a Handler under their id;
// Network.Partition lets tests simulate unreachability without
// unregistering a peer outright.
type Network struct {
	mu        sync.RWMutex
	handlers  map[government.ID]Handler
	partition map[government.ID]map[government.ID]bool // from -> to -> blocked
}

// NewNetwork returns an empty in-memory network.
func NewNetwork() *Network {
	return &Network{
		handlers:  make(map[government.ID]Handler),
		partition: make(map[government.ID]map[government.ID]bool),
	}
}

// Register installs h as the handler for id, replacing any prior
// handler.
func (n *Network) Register(id government.ID, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[id] = h
}

// Unregister removes id's handler, simulating a crashed process: any
// Send targeting id thereafter returns (nil, nil), the network-failure
// case.
func (n *Network) Unregister(id government.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.handlers, id)
}

// Partition blocks messages from `from` to `to` until Heal is called.
func (n *Network) Partition(from, to government.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.partition[from] == nil {
		n.partition[from] = make(map[government.ID]bool)
	}
	n.partition[from][to] = true
}

// Heal undoes a prior Partition between from and to.
func (n *Network) Heal(from, to government.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.partition[from] != nil {
		delete(n.partition[from], to)
	}
}

// NewClient returns a Transport bound to from, for use by that
// citizen: every Send call on the returned value is attributed to
// from in Network's partition bookkeeping and the handler's `from`
// argument.
func (n *Network) NewClient(from government.ID) Transport {
	return &client{network: n, from: from}
}

type client struct {
	network *Network
	from    government.ID
}

func (c *client) Send(ctx context.Context, to government.ID, req Request) (*Response, error) {
	n := c.network
	n.mu.RLock()
	if n.partition[c.from] != nil && n.partition[c.from][to] {
		n.mu.RUnlock()
		return nil, nil
	}
	h, ok := n.handlers[to]
	n.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return h(ctx, c.from, req), nil
}
