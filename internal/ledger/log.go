package ledger

import (
	"sort"

	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/promise"
	"github.com/pkg/errors"
)

// Errors returned by Push when an entry would violate the chain
// invariants (§3, I1-I4). The citizen treats a failure to push an entry
// from its own bookkeeping (a recorder commit, its own proposal) as an
// assertion failure; ErrWrongPrevious on gossiped synchronize commits
// is skipped, Bootstrap returns the error, and a learned government
// that does not chain is not enacted. ErrPastTrailer is not returned
// by this package: ShiftTrailer stops short of the head instead.
var (
	ErrNotIncreasing  = errors.New("ledger: promise does not strictly increase over previous")
	ErrWrongPrevious  = errors.New("ledger: previous does not match the current head")
	ErrBadMinorStep   = errors.New("ledger: non-government entry must increment-minor its previous")
	ErrBadMajorStep   = errors.New("ledger: government entry must be (previous.g+1)/0")
	ErrPastTrailer    = errors.New("ledger: cannot shift trailer past head")
	ErrDuplicateEntry = errors.New("ledger: re-delivered commit does not match the entry already present")
)

// Log is a citizen's append-only, promise-ordered chain of committed
// entries. Lookups use a sorted index for O(log n) access; appends at
// the head and trailer shifts at the front are both amortized O(1).
type Log struct {
	entries []*Entry // ascending by Promise; entries[0] is the oldest retained entry
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Head returns the most recently committed entry, or nil if the log
// is empty.
func (l *Log) Head() *Entry {
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[len(l.entries)-1]
}

// HeadPromise returns the head's promise, or the zero promise if the
// log is empty.
func (l *Log) HeadPromise() promise.Promise {
	if h := l.Head(); h != nil {
		return h.Promise
	}
	return promise.Zero
}

// Size returns the number of entries currently retained (post-trailer).
func (l *Log) Size() int { return len(l.entries) }

// Find returns the entry at promise p, if retained. An entry that has
// been shifted past the trailer is no longer found even though it was
// once committed.
func (l *Log) Find(p promise.Promise) (*Entry, bool) {
	i := sort.Search(len(l.entries), func(i int) bool {
		return !l.entries[i].Promise.Less(p)
	})
	if i < len(l.entries) && l.entries[i].Promise.Equal(p) {
		return l.entries[i], true
	}
	return nil, false
}

// Push appends e to the log, enforcing chain integrity (I1-I4). Pushing
// an entry that exactly duplicates the one already at that promise is
// a no-op (round-trip idempotence, §8); pushing one that conflicts
// with an existing entry at the same promise is ErrDuplicateEntry, an
// assertion failure — Agreement (§8.4) has been violated.
func (l *Log) Push(e *Entry) error {
	if existing, ok := l.Find(e.Promise); ok {
		if existing.Equal(e) {
			return nil
		}
		return ErrDuplicateEntry
	}
	head := l.HeadPromise()
	if !e.Previous.Equal(head) {
		return ErrWrongPrevious
	}
	if !e.Promise.Greater(e.Previous) {
		return ErrNotIncreasing
	}
	switch e.Kind {
	case government.EntryKindGovernment:
		want := promise.IncrementMajor(e.Previous)
		if !e.Promise.Equal(want) {
			return ErrBadMajorStep
		}
	default:
		want := promise.IncrementMinor(e.Previous)
		if !e.Promise.Equal(want) {
			return ErrBadMinorStep
		}
	}
	l.entries = append(l.entries, e)
	return nil
}

// TrailerPromise returns the promise of the oldest retained entry's
// previous pointer — the current trailer position. An empty log's
// trailer is the zero promise.
func (l *Log) TrailerPromise() promise.Promise {
	if len(l.entries) == 0 {
		return promise.Zero
	}
	return l.entries[0].Previous
}

// ShiftTrailer advances the trailer, discarding entries whose promise
// is strictly less than propagated. It never discards the head and
// never discards an entry whose promise is >= propagated (§8.6,
// truncation safety). Returns the number of entries discarded.
func (l *Log) ShiftTrailer(propagated promise.Promise) int {
	n := 0
	for n < len(l.entries)-1 && l.entries[n].Promise.Less(propagated) {
		n++
	}
	if n == 0 {
		return 0
	}
	l.entries = l.entries[n:]
	return n
}

// Entries returns a copy of the retained entries in ascending order
// whose promise is strictly greater than from (the zero promise yields
// everything from the trailer), at most limit of them when limit > 0.
// Used to build the `commits` segment of an outgoing synchronize
// request.
func (l *Log) Entries(from promise.Promise, limit int) []*Entry {
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Promise.Greater(from)
	})
	end := len(l.entries)
	if limit > 0 && i+limit < end {
		end = i + limit
	}
	out := make([]*Entry, end-i)
	copy(out, l.entries[i:end])
	return out
}
