package tally

import (
	"testing"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mixedLedger builds a small realistic ledger: 4 valid, 2 invalid, 3 blank
// ballots across both sources. One "blank" is actually typed valid with all
// zero votes and one typed invalid with all zero votes, exercising the label
// priority inside the counters.
func mixedLedger() []ledger.BallotLine {
	var lines []ledger.BallotLine
	add := func(id uint64, ballotType, source string, votes map[int64]uint8) {
		lines = append(lines, makeBallot(id, ballotType, source, votes, 1, 2, 3)...)
	}

	add(1, ledger.BallotTypeValid, ledger.SourceMale, map[int64]uint8{1: 1})
	add(2, ledger.BallotTypeValid, ledger.SourceMale, map[int64]uint8{2: 1, 3: 1})
	add(3, ledger.BallotTypeValid, ledger.SourceFemale, map[int64]uint8{1: 1})
	add(4, ledger.BallotTypeValid, ledger.SourceFemale, map[int64]uint8{3: 1})

	add(5, ledger.BallotTypeInvalid, ledger.SourceMale, map[int64]uint8{1: 1, 2: 1, 3: 1})
	add(6, ledger.BallotTypeInvalid, ledger.SourceFemale, map[int64]uint8{2: 1})

	add(7, ledger.BallotTypeBlank, ledger.SourceMale, nil)
	add(8, ledger.BallotTypeValid, ledger.SourceFemale, nil)   // all-zero valid counts as blank
	add(9, ledger.BallotTypeInvalid, ledger.SourceFemale, nil) // all-zero invalid counts as blank

	return lines
}

// TestCountBuckets verifies bucket membership by status label and the split
// by source.
func TestCountBuckets(t *testing.T) {
	counters := CountLines(mixedLedger())

	assert.Equal(t, uint64(2), counters.Valid.Male)
	assert.Equal(t, uint64(2), counters.Valid.Female)
	assert.Equal(t, uint64(1), counters.Invalid.Male)
	assert.Equal(t, uint64(1), counters.Invalid.Female)
	assert.Equal(t, uint64(1), counters.Blank.Male)
	assert.Equal(t, uint64(2), counters.Blank.Female, "all-zero valid and invalid ballots land in blank")

	assert.Equal(t, uint64(9), counters.DistinctBallots)
}

// TestCountBuckets_Partition verifies the buckets form an exact partition:
// every distinct ballot is counted exactly once.
func TestCountBuckets_Partition(t *testing.T) {
	counters := CountLines(mixedLedger())

	total := counters.Valid.Total() + counters.Invalid.Total() + counters.Blank.Total()
	assert.Equal(t, counters.DistinctBallots, total,
		"valid + invalid + blank must equal distinct ballots")
}

// TestCountBuckets_DistinctBallotsNotLines verifies counters count ballots,
// not ledger lines.
func TestCountBuckets_DistinctBallotsNotLines(t *testing.T) {
	lines := mixedLedger()
	require.Equal(t, 27, len(lines), "9 ballots fanned out over 3 candidates")

	counters := CountLines(lines)
	assert.Equal(t, uint64(9), counters.DistinctBallots)
}

// TestCountBuckets_UnknownSourceFoldsIntoMale keeps the partition exact even
// when a row carries a source value outside the known enum.
func TestCountBuckets_UnknownSourceFoldsIntoMale(t *testing.T) {
	lines := makeBallot(1, ledger.BallotTypeValid, "postal", map[int64]uint8{1: 1}, 1, 2)

	counters := CountLines(lines)
	assert.Equal(t, uint64(1), counters.Valid.Male)
	assert.Equal(t, uint64(0), counters.Valid.Female)
	assert.Equal(t, counters.DistinctBallots, counters.Valid.Total()+counters.Invalid.Total()+counters.Blank.Total())
}

// TestCountBuckets_Empty verifies the zero ledger produces all-zero counters.
func TestCountBuckets_Empty(t *testing.T) {
	counters := CountLines(nil)
	assert.Equal(t, uint64(0), counters.DistinctBallots)
	assert.Equal(t, uint64(0), counters.Valid.Total())
	assert.Equal(t, uint64(0), counters.Invalid.Total())
	assert.Equal(t, uint64(0), counters.Blank.Total())
}

// TestCountBuckets_Idempotent verifies recomputation over the same snapshot
// yields identical counters.
func TestCountBuckets_Idempotent(t *testing.T) {
	lines := mixedLedger()
	first := CountLines(lines)
	second := CountLines(lines)
	assert.Equal(t, first, second)
}

// TestComputeTurnout covers the rate math and both source splits.
func TestComputeTurnout(t *testing.T) {
	counters := CountLines(mixedLedger())

	turnout := ComputeTurnout(100, counters)
	assert.Equal(t, uint64(100), turnout.Eligible)
	assert.Equal(t, uint64(9), turnout.Cast)
	assert.Equal(t, uint64(4), turnout.CastMale)
	assert.Equal(t, uint64(5), turnout.CastFemale)
	assert.InDelta(t, 0.09, turnout.Rate, 1e-9)
}

// TestComputeTurnout_EmptyRoll verifies an empty voter roll produces rate 0,
// not NaN.
func TestComputeTurnout_EmptyRoll(t *testing.T) {
	turnout := ComputeTurnout(0, CountLines(mixedLedger()))
	assert.Equal(t, float64(0), turnout.Rate)
	assert.Equal(t, uint64(9), turnout.Cast)
}
