// Package ledger implements the atomic log: the append-only, promise-
// ordered chain of committed entries every citizen maintains, with a
// moving trailer that bounds how far back history is retained.
package ledger

import (
	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/promise"
)

// Entry is a committed log entry. Entries are never mutated after
// Push; a government reshape or exile produces a new Entry, never an
// edit of an old one.
type Entry struct {
	Promise  promise.Promise
	Previous promise.Promise
	Kind     government.EntryKind
	Body     []byte
	Gov      *government.Government // non-nil iff Kind == EntryKindGovernment
}

// Equal reports whether two entries agree on promise, previous, kind
// and body and, for government entries, on the government's promise
// and majority/minority/constituent lists (other government fields are
// not compared). Used to assert Agreement (spec §8.4): citizens that
// both hold an entry at the same promise must hold identical entries.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Promise != other.Promise || e.Previous != other.Previous || e.Kind != other.Kind {
		return false
	}
	if len(e.Body) != len(other.Body) {
		return false
	}
	for i := range e.Body {
		if e.Body[i] != other.Body[i] {
			return false
		}
	}
	return govEqual(e.Gov, other.Gov)
}

func govEqual(a, b *government.Government) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Promise == b.Promise &&
		idsEqual(a.Majority, b.Majority) &&
		idsEqual(a.Minority, b.Minority) &&
		idsEqual(a.Constituents, b.Constituents)
}

func idsEqual(a, b []government.ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
