// Package tally turns flat ballot-line rows into per-ballot classifications,
// aggregate counters and ranked live scores. Everything here is a pure
// function over a snapshot: recomputing on unchanged input yields identical
// output, and nothing reaches for storage, clocks or ambient session state.
package tally

import (
	"time"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
)

// Display status labels, in priority order Blank > Invalid > Valid.
const (
	StatusBlank   = "Blank"
	StatusInvalid = "Invalid"
	StatusValid   = "Valid"
)

// BallotGroup is every line of one physical ballot, in input order.
type BallotGroup struct {
	BallotID     uint64
	BallotType   string
	BallotSource string
	StationID    uint16
	Operator     string
	PostDate     time.Time
	Lines        []ledger.BallotLine

	votes map[int64]uint8
}

// Vote returns the recorded vote for a candidate and whether a line for that
// candidate exists in this group at all. The second return distinguishes an
// explicit vote=0 from "no data" (ballot posted before the candidate existed,
// or roster differences between cycles).
func (g *BallotGroup) Vote(candidateID int64) (uint8, bool) {
	v, ok := g.votes[candidateID]
	return v, ok
}

// IsValid reports whether the group was administratively typed valid.
func (g *BallotGroup) IsValid() bool {
	return g.BallotType == ledger.BallotTypeValid
}

// IsBlank reports whether every line carries vote == 0. Computed from vote
// content only: a group typed valid with all-zero votes is still blank.
func (g *BallotGroup) IsBlank() bool {
	for _, line := range g.Lines {
		if line.Vote != 0 {
			return false
		}
	}
	return true
}

// Status returns the display label. Blank wins over Invalid even when the
// stored type is invalid and all votes are zero; type only decides between
// Invalid and Valid for non-blank groups.
func (g *BallotGroup) Status() string {
	if g.IsBlank() {
		return StatusBlank
	}
	if !g.IsValid() {
		return StatusInvalid
	}
	return StatusValid
}

// GroupLines buckets lines by ballot_id, preserving first-seen ballot order
// and line order within each ballot. Ballot-level fields are taken from the
// first line of each group; all lines of one ballot share them by contract.
func GroupLines(lines []ledger.BallotLine) []*BallotGroup {
	byID := make(map[uint64]*BallotGroup, len(lines)/4+1)
	groups := make([]*BallotGroup, 0, len(lines)/4+1)

	for _, line := range lines {
		g, ok := byID[line.BallotID]
		if !ok {
			g = &BallotGroup{
				BallotID:     line.BallotID,
				BallotType:   line.BallotType,
				BallotSource: line.BallotSource,
				StationID:    line.StationID,
				Operator:     line.Operator,
				PostDate:     line.PostDate,
				votes:        make(map[int64]uint8, 8),
			}
			byID[line.BallotID] = g
			groups = append(groups, g)
		}
		g.Lines = append(g.Lines, line)
		g.votes[line.CandidateID] = line.Vote
	}

	return groups
}

// VoteCell is one candidate's display value within a classified ballot.
// Vote is nil when the ballot carries no line for the candidate.
type VoteCell struct {
	CandidateID int64  `json:"candidate_id"`
	FullName    string `json:"full_name"`
	Vote        *uint8 `json:"vote"`
}

// BallotView is the classification row rendered per ballot: its status label
// plus one cell per roster candidate.
type BallotView struct {
	BallotID     uint64     `json:"ballot_id"`
	Status       string     `json:"status"`
	BallotType   string     `json:"ballot_type"`
	BallotSource string     `json:"ballot_source"`
	StationID    uint16     `json:"station_id"`
	Operator     string     `json:"operator"`
	PostDate     time.Time  `json:"post_date"`
	Cells        []VoteCell `json:"cells"`
}

// BuildBallotViews classifies every ballot in lines against the given roster.
// Cells follow the roster's order; ballots follow first-seen input order.
func BuildBallotViews(lines []ledger.BallotLine, candidates []roster.Candidate) []BallotView {
	groups := GroupLines(lines)
	views := make([]BallotView, 0, len(groups))
	for _, g := range groups {
		views = append(views, buildView(g, candidates))
	}
	return views
}

// BuildBallotView classifies a single already-grouped ballot.
func BuildBallotView(g *BallotGroup, candidates []roster.Candidate) BallotView {
	return buildView(g, candidates)
}

func buildView(g *BallotGroup, candidates []roster.Candidate) BallotView {
	cells := make([]VoteCell, 0, len(candidates))
	for _, c := range candidates {
		cell := VoteCell{CandidateID: c.ID, FullName: c.FullName}
		if v, ok := g.Vote(c.ID); ok {
			vote := v
			cell.Vote = &vote
		}
		cells = append(cells, cell)
	}

	return BallotView{
		BallotID:     g.BallotID,
		Status:       g.Status(),
		BallotType:   g.BallotType,
		BallotSource: g.BallotSource,
		StationID:    g.StationID,
		Operator:     g.Operator,
		PostDate:     g.PostDate,
		Cells:        cells,
	}
}
