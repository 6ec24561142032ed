package paxos

import (
	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/promise"
)

// Proposer drives the Paxos recovery round for one citizen (§4.5).
// Unlike the acceptor, proposer state need not survive a crash: if a
// proposer dies mid-round it simply restarts with a fresh candidate.
type Proposer struct {
	self government.ID
	seed int64
}

// NewProposer returns a proposer for self, seeded for deterministic
// retry jitter (§9: a linear-congruential generator so replayed
// histories produce identical backoff).
func NewProposer(self government.ID, seed int64) *Proposer {
	if seed == 0 {
		seed = 1
	}
	return &Proposer{self: self, seed: seed}
}

// Candidate is a proposed recovery government, paired with whether it
// was built in desperation mode (fewer parliament members than the
// current majority's size were reachable, so disappearance evidence
// was discarded and every parliament member was retried as a
// candidate).
type Candidate struct {
	Government *government.Government
	Desperate  bool
}

// BuildCandidate computes the fresh government promise (g+1)/0 and
// fills a majority the size of the current one (capped at
// parliamentSize) from reachable members of the current government in
// deterministic order, preferring self as leader and relegating
// disappeared peers to the minority (§4.5, leader election policy). If
// fewer parliament members than that size are reachable, it retries in
// desperation mode: every parliament member, reachable or not, becomes
// a candidate.
func (p *Proposer) BuildCandidate(current *government.Government, parliamentSize int, reachable map[government.ID]bool) Candidate {
	parliament := current.Parliament()
	majoritySize := min(parliamentSize, len(current.Majority))

	reach := reachableCandidates(parliament, p.self, reachable)
	desperate := len(reach) < majoritySize
	if desperate {
		reach = government.SortedIDs(parliament)
		reach = moveToFront(reach, p.self)
	}
	if majoritySize > len(reach) {
		majoritySize = len(reach)
	}

	majority := append([]government.ID(nil), reach[:majoritySize]...)
	minoritySet := make(map[government.ID]bool, len(parliament))
	for _, id := range reach[majoritySize:] {
		minoritySet[id] = true
	}
	for _, id := range parliament {
		if !containsID(majority, id) {
			minoritySet[id] = true
		}
	}
	minority := make([]government.ID, 0, len(minoritySet))
	for id := range minoritySet {
		minority = append(minority, id)
	}
	minority = government.SortedIDs(minority)

	gov := &government.Government{
		Promise:             promise.IncrementMajor(current.Promise),
		Majority:            majority,
		Minority:            minority,
		Constituents:        append([]government.ID(nil), current.Constituents...),
		Properties:          current.Properties,
		ImmigratedByID:      current.ImmigratedByID,
		ImmigratedByPromise: current.ImmigratedByPromise,
	}
	return Candidate{Government: gov, Desperate: desperate}
}

// Backoff returns the delay before this proposer's next retry. The
// current leader retries without delay; everyone else delays by a
// Lehmer/Park-Miller LCG step mod timeout (§4.5, §9).
func (p *Proposer) Backoff(isCurrentLeader bool, timeout int64) int64 {
	if isCurrentLeader || timeout <= 0 {
		return 0
	}
	p.seed = (p.seed * 16807) % 2147483647
	if p.seed < 0 {
		p.seed += 2147483647
	}
	return p.seed % timeout
}

func reachableCandidates(parliament []government.ID, self government.ID, reachable map[government.ID]bool) []government.ID {
	var reach []government.ID
	for _, id := range parliament {
		if id == self || reachable[id] {
			reach = append(reach, id)
		}
	}
	reach = government.SortedIDs(reach)
	return moveToFront(reach, self)
}

func moveToFront(ids []government.ID, target government.ID) []government.ID {
	out := make([]government.ID, 0, len(ids))
	out = append(out, target)
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

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
