package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(ts string) Candidate { return Candidate{Timestamp: ts} }

func TestMatchFullQuorum(t *testing.T) {
	bySource := map[string][]Candidate{
		"dwd":  {cand("20260731143000")},
		"shmu": {cand("20260731143000")},
		"chmi": {cand("20260731143100")},
	}
	ms := Match(bySource, 5, 3, 10)
	require.Len(t, ms, 1)
	assert.Len(t, ms[0].Sources, 3)
}

func TestMatchRejectsBelowMinSources(t *testing.T) {
	bySource := map[string][]Candidate{
		"dwd":  {cand("20260731143000")},
		"shmu": {cand("20260731150000")}, // far outside tolerance
	}
	ms := Match(bySource, 5, 2, 10)
	assert.Empty(t, ms)
}

func TestMatchNonOverlappingWindows(t *testing.T) {
	bySource := map[string][]Candidate{
		"dwd":  {cand("20260731143000"), cand("20260731142900")},
		"shmu": {cand("20260731143000"), cand("20260731142900")},
	}
	ms := Match(bySource, 5, 2, 10)
	// 14:30:00 and 14:29:00 are within 1 minute of each other, so only
	// the newer one should be accepted.
	require.Len(t, ms, 1)
	assert.Equal(t, "20260731143000", ms[0].Timestamp)
}

func TestMatchWithLadderPrefersFullMatch(t *testing.T) {
	bySource := map[string][]Candidate{
		"dwd":  {cand("20260731143000")},
		"shmu": {cand("20260731143000")},
		"arso": {cand("20260731143000")},
	}
	ms := MatchWithLadder(bySource, 5, 3, 10)
	require.Len(t, ms, 1)
	assert.False(t, ms[0].ArsoDropped)
	assert.Len(t, ms[0].Sources, 3)
}

func TestMatchWithLadderDropsArsoBeforeRelaxingQuorum(t *testing.T) {
	bySource := map[string][]Candidate{
		"dwd":  {cand("20260731143000")},
		"shmu": {cand("20260731143000")},
		"chmi": {cand("20260731143000")},
		"arso": {cand("20260731140000")}, // far outside tolerance
	}
	ms := MatchWithLadder(bySource, 5, 3, 10)
	require.Len(t, ms, 1)
	assert.True(t, ms[0].ArsoDropped)
	assert.False(t, ms[0].CoreQuorumUsed)
	assert.Len(t, ms[0].Sources, 3)
}

func TestMatchWithLadderRelaxesQuorumAsLastResort(t *testing.T) {
	bySource := map[string][]Candidate{
		"dwd":  {cand("20260731143000")},
		"shmu": {cand("20260731143000")},
		"chmi": {cand("20260731150000")}, // far outside tolerance
	}
	ms := MatchWithLadder(bySource, 5, 2, 10)
	require.Len(t, ms, 1)
	assert.True(t, ms[0].CoreQuorumUsed)
	assert.Len(t, ms[0].Sources, 2)
}

func TestMatchRespectsMaxCount(t *testing.T) {
	bySource := map[string][]Candidate{
		"dwd":  {cand("20260731143000"), cand("20260731142000"), cand("20260731141000")},
		"shmu": {cand("20260731143000"), cand("20260731142000"), cand("20260731141000")},
	}
	ms := Match(bySource, 2, 2, 2)
	assert.Len(t, ms, 2)
}
