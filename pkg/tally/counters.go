package tally

import (
	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
)

// SourceCount splits a ballot bucket by counting station.
type SourceCount struct {
	Male   uint64 `json:"male"`
	Female uint64 `json:"female"`
}

// Total is the bucket cardinality across both sources.
func (s SourceCount) Total() uint64 {
	return s.Male + s.Female
}

// Counters are the three disjoint ballot buckets. Each ballot lands in
// exactly one bucket, decided by its status label, so
// Valid.Total() + Invalid.Total() + Blank.Total() == DistinctBallots.
type Counters struct {
	Valid   SourceCount `json:"valid"`
	Invalid SourceCount `json:"invalid"`
	Blank   SourceCount `json:"blank"`

	DistinctBallots uint64 `json:"distinct_ballots"`
}

// CountBuckets partitions ballot groups into valid / invalid / blank and
// splits each bucket by source, counting distinct ballots rather than lines.
// A source other than "female" folds into male so the partition stays exact
// even for malformed rows.
func CountBuckets(groups []*BallotGroup) Counters {
	var c Counters
	for _, g := range groups {
		c.DistinctBallots++

		var bucket *SourceCount
		switch g.Status() {
		case StatusBlank:
			bucket = &c.Blank
		case StatusInvalid:
			bucket = &c.Invalid
		default:
			bucket = &c.Valid
		}

		if g.BallotSource == ledger.SourceFemale {
			bucket.Female++
		} else {
			bucket.Male++
		}
	}
	return c
}

// CountLines is a convenience wrapper grouping raw lines first.
func CountLines(lines []ledger.BallotLine) Counters {
	return CountBuckets(GroupLines(lines))
}

// Turnout relates ballots cast to the eligible voter roll.
type Turnout struct {
	Eligible   uint64  `json:"eligible"`
	Cast       uint64  `json:"cast"`
	CastMale   uint64  `json:"cast_male"`
	CastFemale uint64  `json:"cast_female"`
	Rate       float64 `json:"rate"`
}

// ComputeTurnout derives turnout from bucket counters. Rate is 0 when the
// roll is empty rather than NaN.
func ComputeTurnout(eligible uint64, counters Counters) Turnout {
	t := Turnout{
		Eligible:   eligible,
		Cast:       counters.DistinctBallots,
		CastMale:   counters.Valid.Male + counters.Invalid.Male + counters.Blank.Male,
		CastFemale: counters.Valid.Female + counters.Invalid.Female + counters.Blank.Female,
	}
	if eligible > 0 {
		t.Rate = float64(t.Cast) / float64(eligible)
	}
	return t
}
