package tally

import (
	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
)

// ReplayScores recomputes per-candidate score totals straight from ledger
// lines: sum of vote over lines whose ballot is typed valid, split by source.
// This is the in-memory twin of the reconciler's aggregate query and the
// ground truth the denormalized candidate counters are repaired against.
func ReplayScores(lines []ledger.BallotLine) map[int64]SourceCount {
	scores := make(map[int64]SourceCount)
	for _, line := range lines {
		if line.BallotType != ledger.BallotTypeValid || line.Vote == 0 {
			continue
		}
		sc := scores[line.CandidateID]
		if line.BallotSource == ledger.SourceFemale {
			sc.Female += uint64(line.Vote)
		} else {
			sc.Male += uint64(line.Vote)
		}
		scores[line.CandidateID] = sc
	}
	return scores
}
