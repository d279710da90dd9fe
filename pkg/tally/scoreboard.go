package tally

import (
	"sort"

	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
)

// RankedCandidate is a candidate with its combined projection and its
// 1-based rank within the list.
type RankedCandidate struct {
	roster.Candidate
	Combined int64 `json:"combined"`
	Rank     int   `json:"rank"`
}

// ListScores is one list's ranked candidates on the live scoreboard.
type ListScores struct {
	ListID     int64             `json:"list_id"`
	ListName   string            `json:"list_name"`
	ListOrder  int32             `json:"list_order"`
	Candidates []RankedCandidate `json:"candidates"`
}

// Scoreboard projects score_from_female + score_from_male per candidate and
// ranks candidates within their list by descending combined total. Ties keep
// the original candidate order - no invented secondary key. Lists come out
// by list_order ascending; candidates for a list missing from lists are
// appended after the known lists, in first-seen order.
func Scoreboard(lists []roster.List, candidates []roster.Candidate) []ListScores {
	ordered := make([]roster.List, len(lists))
	copy(ordered, lists)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ListOrder < ordered[j].ListOrder
	})

	byID := make(map[int64]*ListScores, len(ordered))
	out := make([]*ListScores, 0, len(ordered))
	for _, l := range ordered {
		ls := &ListScores{ListID: l.ID, ListName: l.Name, ListOrder: l.ListOrder}
		byID[l.ID] = ls
		out = append(out, ls)
	}

	for _, c := range candidates {
		ls, ok := byID[c.ListID]
		if !ok {
			ls = &ListScores{ListID: c.ListID, ListName: c.ListName}
			byID[c.ListID] = ls
			out = append(out, ls)
		}
		ls.Candidates = append(ls.Candidates, RankedCandidate{
			Candidate: c,
			Combined:  c.CombinedScore(),
		})
	}

	for _, ls := range out {
		sort.SliceStable(ls.Candidates, func(i, j int) bool {
			return ls.Candidates[i].Combined > ls.Candidates[j].Combined
		})
		for i := range ls.Candidates {
			ls.Candidates[i].Rank = i + 1
		}
	}

	result := make([]ListScores, len(out))
	for i, ls := range out {
		result[i] = *ls
	}
	return result
}
