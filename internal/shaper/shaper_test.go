package shaper

import (
	"testing"

	"github.com/paxgov/citizenry/internal/government"
	"github.com/paxgov/citizenry/internal/promise"
	"github.com/stretchr/testify/require"
)

type fixedView struct{ gov *government.Government }

func (v fixedView) Current() *government.Government { return v.gov }

func TestImmigrateAddsConstituent(t *testing.T) {
	gov := &government.Government{
		Promise:  promise.Promise{Government: 2, Round: 0},
		Majority: []government.ID{"0"},
	}
	s := New(fixedView{gov}, 3, 1000)
	shape := s.Immigrate(&government.Immigration{ID: "1", Props: government.Properties{"addr": "x"}})
	require.NotNil(t, shape)
	require.Contains(t, shape.Constituents, government.ID("1"))
	require.Equal(t, government.ID("1"), shape.Immigrate.ID)
	require.Equal(t, []government.ID{"0"}, shape.Majority, "immigration alone never touches majority")
}

func TestGrowMajorityPromotesAPairOfReachableConstituents(t *testing.T) {
	gov := &government.Government{
		Promise:      promise.Promise{Government: 2, Round: 0},
		Majority:     []government.ID{"0"},
		Constituents: []government.ID{"1", "2", "3", "4"},
	}
	s := New(fixedView{gov}, 5, 1000)
	s.SetReachable("1", true)
	s.SetReachable("2", true)
	shape := s.growMajority(gov)
	require.NotNil(t, shape)
	require.ElementsMatch(t, []government.ID{"0", "1", "2"}, shape.Majority)
	require.ElementsMatch(t, []government.ID{"3", "4"}, shape.Constituents)
}

func TestGrowMajorityNoOpWithOnlyOneReachableCandidate(t *testing.T) {
	gov := &government.Government{
		Promise:      promise.Promise{Government: 2, Round: 0},
		Majority:     []government.ID{"0"},
		Constituents: []government.ID{"1"},
	}
	s := New(fixedView{gov}, 3, 1000)
	s.SetReachable("1", true)
	require.Nil(t, s.growMajority(gov), "promoting a single member would break the odd-majority invariant")
}

func TestGrowMajorityNoOpWhenNothingReachable(t *testing.T) {
	gov := &government.Government{
		Promise:      promise.Promise{Government: 2, Round: 0},
		Majority:     []government.ID{"0"},
		Constituents: []government.ID{"1"},
	}
	s := New(fixedView{gov}, 3, 1000)
	require.Nil(t, s.growMajority(gov))
}

func TestUnreachableMajorityMemberIsDemotedToMinority(t *testing.T) {
	gov := &government.Government{
		Promise:  promise.Promise{Government: 2, Round: 0},
		Majority: []government.ID{"0", "1", "2"},
	}
	s := New(fixedView{gov}, 3, 1000)
	s.SetReachable("0", true)
	s.SetReachable("1", true)
	s.SetReachable("2", true)
	shape := s.Unreachable("1")
	require.NotNil(t, shape)
	require.NotContains(t, shape.Majority, government.ID("1"))
	require.Contains(t, shape.Minority, government.ID("1"))
}

func TestExileOfAbsentPeerIsNoOp(t *testing.T) {
	gov := &government.Government{
		Promise:  promise.Promise{Government: 2, Round: 0},
		Majority: []government.ID{"0"},
	}
	s := New(fixedView{gov}, 3, 1000)
	s.SetReachable("0", true)
	require.Nil(t, s.Exile("ghost"))
}

func TestDecidedLatchSuppressesFurtherShapes(t *testing.T) {
	gov := &government.Government{
		Promise:  promise.Promise{Government: 2, Round: 0},
		Majority: []government.ID{"0"},
	}
	s := New(fixedView{gov}, 3, 1000)
	s.MarkDecided()
	require.True(t, s.Decided())
	require.Nil(t, s.Immigrate(&government.Immigration{ID: "1"}))
	require.Nil(t, s.Unreachable("0"))
	require.Nil(t, s.Naturalized("0"))
}

func TestExileRemovesFromConstituents(t *testing.T) {
	gov := &government.Government{
		Promise:      promise.Promise{Government: 2, Round: 0},
		Majority:     []government.ID{"0"},
		Constituents: []government.ID{"1"},
	}
	s := New(fixedView{gov}, 3, 1000)
	shape := s.exile(gov, "1")
	require.NotContains(t, shape.Constituents, government.ID("1"))
	require.Equal(t, government.ID("1"), *shape.Exile)
}
