// Package promise implements the g/r version pair that orders every
// position in a citizen's log.
//
// A Promise is a two-part (government, round) version, compared
// lexicographically: the government number dominates, the round number
// breaks ties within a government. g/0 always denotes a government
// boundary — the entry that installs a new membership snapshot.
package promise

import "fmt"

// Promise is a monotonic g/r version. Zero value is 0/0, the promise
// of an empty log.
type Promise struct {
	Government uint64
	Round      uint64
}

// Zero is the promise of an empty log, before any government exists.
var Zero = Promise{}

// IsZero reports whether p is the empty-log promise 0/0.
func (p Promise) IsZero() bool {
	return p.Government == 0 && p.Round == 0
}

// IsGovernmentBoundary reports whether p is a g/0 promise.
func (p Promise) IsGovernmentBoundary() bool {
	return p.Round == 0
}

// Compare returns -1, 0, or 1 as p is less than, equal to, or greater
// than q, ordering lexicographically on (Government, Round).
func (p Promise) Compare(q Promise) int {
	switch {
	case p.Government < q.Government:
		return -1
	case p.Government > q.Government:
		return 1
	case p.Round < q.Round:
		return -1
	case p.Round > q.Round:
		return 1
	default:
		return 0
	}
}

// Less reports whether p < q.
func (p Promise) Less(q Promise) bool { return p.Compare(q) < 0 }

// LessEqual reports whether p <= q.
func (p Promise) LessEqual(q Promise) bool { return p.Compare(q) <= 0 }

// Greater reports whether p > q.
func (p Promise) Greater(q Promise) bool { return p.Compare(q) > 0 }

// Equal reports whether p == q.
func (p Promise) Equal(q Promise) bool { return p.Compare(q) == 0 }

// IncrementMajor bumps the government number and resets the round,
// the promise assigned to a new government entry: (g+1)/0.
func IncrementMajor(p Promise) Promise {
	return Promise{Government: p.Government + 1, Round: 0}
}

// IncrementMinor bumps the round within the current government, the
// promise assigned to an ordinary (non-government) entry.
func IncrementMinor(p Promise) Promise {
	return Promise{Government: p.Government, Round: p.Round + 1}
}

// String renders p in the canonical "g/r" form.
func (p Promise) String() string {
	return fmt.Sprintf("%d/%d", p.Government, p.Round)
}

// Min returns the lexicographically smaller of a and b.
func Min(a, b Promise) Promise {
	if a.Less(b) {
		return a
	}
	return b
}

// Max returns the lexicographically larger of a and b.
func Max(a, b Promise) Promise {
	if a.Greater(b) {
		return a
	}
	return b
}
