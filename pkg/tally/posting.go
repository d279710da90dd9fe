package tally

import (
	"time"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/utils"
)

// BuildBallotLines fans one ballot out across the full roster: exactly one
// line per candidate, all sharing ballotID, ballotType, the counting right's
// source/station and postDate. A blank posting forces every vote to 0; an
// invalid posting preserves the checked state as-is.
func BuildBallotLines(
	ballotID uint64,
	candidates []roster.Candidate,
	checked map[int64]bool,
	ballotType string,
	right roster.CountingRight,
	postDate time.Time,
) []ledger.BallotLine {
	lines := make([]ledger.BallotLine, 0, len(candidates))
	for _, c := range candidates {
		marked := checked[c.ID] && ballotType != ledger.BallotTypeBlank
		lines = append(lines, ledger.BallotLine{
			BallotID:     ballotID,
			CandidateID:  c.ID,
			Vote:         utils.BoolToUInt8(marked),
			BallotType:   ballotType,
			BallotSource: right.Source,
			StationID:    right.StationID,
			Operator:     right.Operator,
			PostDate:     postDate,
		})
	}
	return lines
}

// ScoreIncrements returns the candidate ids whose denormalized score must be
// incremented for this ballot. Only lines of a valid ballot with vote = 1
// qualify: blank and invalid postings never touch scores, even when an
// invalid line carries a mark.
func ScoreIncrements(lines []ledger.BallotLine) []int64 {
	var ids []int64
	for _, line := range lines {
		if line.BallotType == ledger.BallotTypeValid && line.Vote == 1 {
			ids = append(ids, line.CandidateID)
		}
	}
	return ids
}
