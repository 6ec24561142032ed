// Package government models the membership snapshot installed by every
// government-kind log entry: majority, minority, constituents, and the
// per-citizen properties and immigration bookkeeping that ride along
// with it.
package government

import (
	"sort"

	"github.com/paxgov/citizenry/internal/promise"
	"github.com/pkg/errors"
)

// ID identifies a citizen within a republic.
type ID string

// Properties are the opaque, citizen-supplied attributes recorded at
// immigration time (address, datacenter, weight, ...). The engine
// never interprets them.
type Properties map[string]string

// Clone returns a deep copy of p.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Immigration is the clause carried by a government entry that admits
// a new citizen.
type Immigration struct {
	ID     ID
	Cookie int64
	Props  Properties
}

// ErrNotOdd is returned by Validate when the majority size is not odd.
var ErrNotOdd = errors.New("government: majority size must be odd")

// Government is an immutable membership snapshot. A new value is
// installed only by committing a government-kind log entry; existing
// values are never mutated in place.
type Government struct {
	Promise      promise.Promise
	Majority     []ID
	Minority     []ID
	Constituents []ID
	Properties   map[ID]Properties

	// ImmigratedByID and ImmigratedByPromise form a bijection between a
	// currently-present citizen id and the government promise under
	// which it immigrated; used as a generation cookie to detect a
	// citizen that exiled and later re-immigrated under the same id.
	ImmigratedByID      map[ID]promise.Promise
	ImmigratedByPromise map[promise.Promise]ID

	// Map carries an old-id -> new-id remap when a reshape renames a
	// citizen's slot (e.g. minority promoted to majority keeps its id,
	// but a future extension may rewrite ids on reshape; kept general).
	Map map[ID]ID

	// Immigrate and Exile are the pending clauses this government
	// entry itself carries, if any; nil for governments that only
	// reshape existing majority/minority/constituents.
	Immigrate *Immigration
	Exile     *ID
}

// Leader returns the majority's first member, the current leader. It
// panics if the majority is empty, which only a malformed government
// (a bug, never a valid commit) could produce.
func (g *Government) Leader() ID {
	if len(g.Majority) == 0 {
		panic("government: majority is empty")
	}
	return g.Majority[0]
}

// Parliament returns majority ∪ minority, in that order.
func (g *Government) Parliament() []ID {
	out := make([]ID, 0, len(g.Majority)+len(g.Minority))
	out = append(out, g.Majority...)
	out = append(out, g.Minority...)
	return out
}

// QuorumSize returns the smallest count over half of parliamentSize
// (parliamentSize/2 + 1). The result is not always odd: QuorumSize(3)
// is 2.
func QuorumSize(parliamentSize int) int {
	return parliamentSize/2 + 1
}

// Validate checks the structural invariants from §8.7: majority size
// is odd, at most parliamentSize, and every id appears in exactly one
// of majority/minority/constituents.
func (g *Government) Validate(parliamentSize int) error {
	if len(g.Majority)%2 == 0 {
		return ErrNotOdd
	}
	want := QuorumSize(len(g.Majority) + len(g.Minority))
	if len(g.Majority) != want {
		return errors.Errorf("government: majority size %d, want %d", len(g.Majority), want)
	}
	if len(g.Majority) > parliamentSize {
		return errors.Errorf("government: majority size %d exceeds parliament size %d", len(g.Majority), parliamentSize)
	}
	seen := make(map[ID]string, len(g.Majority)+len(g.Minority)+len(g.Constituents))
	for _, id := range g.Majority {
		if prior, ok := seen[id]; ok {
			return errors.Errorf("government: %s appears in both majority and %s", id, prior)
		}
		seen[id] = "majority"
	}
	for _, id := range g.Minority {
		if prior, ok := seen[id]; ok {
			return errors.Errorf("government: %s appears in both minority and %s", id, prior)
		}
		seen[id] = "minority"
	}
	for _, id := range g.Constituents {
		if prior, ok := seen[id]; ok {
			return errors.Errorf("government: %s appears in both constituents and %s", id, prior)
		}
		seen[id] = "constituents"
	}
	return nil
}

// Constituency returns the peers this citizen (id) is responsible for
// fanning synchronize traffic out to: the leader covers the rest of the
// majority and the whole minority, other majority members cover the
// minority, and minority members cover the constituents. When there is
// no minority, the leader and every majority member cover the
// constituents directly.
func (g *Government) Constituency(id ID) []ID {
	switch {
	case id == g.Leader():
		rest := make([]ID, 0, len(g.Majority)-1+len(g.Minority))
		rest = append(rest, g.Majority[1:]...)
		rest = append(rest, g.Minority...)
		if len(g.Minority) == 0 {
			rest = append(rest, g.Constituents...)
		}
		return rest
	case containsID(g.Majority, id):
		// With no minority tier to relay through, a majority member is
		// the last hop before constituents.
		if len(g.Minority) == 0 {
			return append([]ID(nil), g.Constituents...)
		}
		return append([]ID(nil), g.Minority...)
	case containsID(g.Minority, id):
		return append([]ID(nil), g.Constituents...)
	default:
		return nil
	}
}

func containsID(ids []ID, target ID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

// SortedIDs returns a stable, sorted copy of ids — used wherever
// deterministic ordering matters (shaper candidate selection, leader
// election fill order).
func SortedIDs(ids []ID) []ID {
	out := append([]ID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EntryKind distinguishes a government-installing entry from an
// ordinary application entry.
type EntryKind int

const (
	// EntryKindEntry is an ordinary application entry.
	EntryKindEntry EntryKind = iota
	// EntryKindGovernment installs a new Government.
	EntryKindGovernment
)

func (k EntryKind) String() string {
	if k == EntryKindGovernment {
		return "government"
	}
	return "entry"
}

// Proposal is a not-yet-committed entry, owned by the writer from
// enqueue until it commits or is re-mapped by an intervening
// government.
type Proposal struct {
	Promise  promise.Promise
	Previous promise.Promise
	Quorum   []ID
	Kind     EntryKind
	Body     []byte
	Gov      *Government // non-nil iff Kind == EntryKindGovernment
	Was      *promise.Promise
}

// Remap returns a copy of p re-promised under newPromise with previous
// set to newPrevious, recording the prior promise in Was so peers can
// recognize the re-mapping.
func (p *Proposal) Remap(newPromise, newPrevious promise.Promise) *Proposal {
	was := p.Promise
	return &Proposal{
		Promise:  newPromise,
		Previous: newPrevious,
		Quorum:   p.Quorum,
		Kind:     p.Kind,
		Body:     p.Body,
		Gov:      p.Gov,
		Was:      &was,
	}
}
