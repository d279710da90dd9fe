package tally

import (
	"testing"

	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScoreboard_RanksByCombinedDescending covers the canonical ranking case:
// input order X, Y, Z with combined 10, 30, 20 ranks as Y, Z, X.
func TestScoreboard_RanksByCombinedDescending(t *testing.T) {
	lists := []roster.List{{ID: 1, Name: "Unity", ListOrder: 1}}
	candidates := []roster.Candidate{
		{ID: 1, ListID: 1, FullName: "X", ScoreFromFemale: 4, ScoreFromMale: 6},   // 10
		{ID: 2, ListID: 1, FullName: "Y", ScoreFromFemale: 10, ScoreFromMale: 20}, // 30
		{ID: 3, ListID: 1, FullName: "Z", ScoreFromFemale: 20, ScoreFromMale: 0},  // 20
	}

	board := Scoreboard(lists, candidates)
	require.Len(t, board, 1)
	require.Len(t, board[0].Candidates, 3)

	ranked := board[0].Candidates
	assert.Equal(t, "Y", ranked[0].FullName)
	assert.Equal(t, "Z", ranked[1].FullName)
	assert.Equal(t, "X", ranked[2].FullName)

	assert.Equal(t, int64(30), ranked[0].Combined)
	assert.Equal(t, int64(20), ranked[1].Combined)
	assert.Equal(t, int64(10), ranked[2].Combined)

	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Equal(t, 3, ranked[2].Rank)
}

// TestScoreboard_CombinedSumsBothSources verifies combined is exactly
// female + male.
func TestScoreboard_CombinedSumsBothSources(t *testing.T) {
	board := Scoreboard(
		[]roster.List{{ID: 1, Name: "Unity", ListOrder: 1}},
		[]roster.Candidate{{ID: 1, ListID: 1, ScoreFromFemale: 7, ScoreFromMale: 5}},
	)
	require.Len(t, board, 1)
	require.Len(t, board[0].Candidates, 1)
	assert.Equal(t, int64(12), board[0].Candidates[0].Combined)
}

// TestScoreboard_TiesKeepInputOrder verifies equal combined totals preserve
// the original candidate order instead of inventing a secondary key.
func TestScoreboard_TiesKeepInputOrder(t *testing.T) {
	lists := []roster.List{{ID: 1, Name: "Unity", ListOrder: 1}}
	candidates := []roster.Candidate{
		{ID: 10, ListID: 1, FullName: "First", ScoreFromMale: 5},
		{ID: 11, ListID: 1, FullName: "Second", ScoreFromFemale: 5},
		{ID: 12, ListID: 1, FullName: "Third", ScoreFromMale: 2, ScoreFromFemale: 3},
	}

	board := Scoreboard(lists, candidates)
	require.Len(t, board, 1)

	ranked := board[0].Candidates
	require.Len(t, ranked, 3)
	assert.Equal(t, "First", ranked[0].FullName)
	assert.Equal(t, "Second", ranked[1].FullName)
	assert.Equal(t, "Third", ranked[2].FullName)
	assert.Equal(t, []int{1, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})
}

// TestScoreboard_ListsOrderedByListOrder verifies lists render by their
// configured order, not input or id order.
func TestScoreboard_ListsOrderedByListOrder(t *testing.T) {
	lists := []roster.List{
		{ID: 3, Name: "Gamma", ListOrder: 2},
		{ID: 1, Name: "Alpha", ListOrder: 3},
		{ID: 2, Name: "Beta", ListOrder: 1},
	}

	board := Scoreboard(lists, nil)
	require.Len(t, board, 3)
	assert.Equal(t, "Beta", board[0].ListName)
	assert.Equal(t, "Gamma", board[1].ListName)
	assert.Equal(t, "Alpha", board[2].ListName)
}

// TestScoreboard_RankingIsPerList verifies ranks restart within each list.
func TestScoreboard_RankingIsPerList(t *testing.T) {
	lists := []roster.List{
		{ID: 1, Name: "Alpha", ListOrder: 1},
		{ID: 2, Name: "Beta", ListOrder: 2},
	}
	candidates := []roster.Candidate{
		{ID: 1, ListID: 1, FullName: "A1", ScoreFromMale: 2},
		{ID: 2, ListID: 1, FullName: "A2", ScoreFromMale: 9},
		{ID: 3, ListID: 2, FullName: "B1", ScoreFromMale: 1},
		{ID: 4, ListID: 2, FullName: "B2", ScoreFromMale: 4},
	}

	board := Scoreboard(lists, candidates)
	require.Len(t, board, 2)

	assert.Equal(t, "A2", board[0].Candidates[0].FullName)
	assert.Equal(t, 1, board[0].Candidates[0].Rank)
	assert.Equal(t, "B2", board[1].Candidates[0].FullName)
	assert.Equal(t, 1, board[1].Candidates[0].Rank, "ranks restart per list")
}

// TestScoreboard_OrphanListAppended verifies candidates referencing a list
// missing from the list slice still render, after the known lists.
func TestScoreboard_OrphanListAppended(t *testing.T) {
	lists := []roster.List{{ID: 1, Name: "Known", ListOrder: 1}}
	candidates := []roster.Candidate{
		{ID: 1, ListID: 1, FullName: "K"},
		{ID: 2, ListID: 9, ListName: "Orphan", FullName: "O"},
	}

	board := Scoreboard(lists, candidates)
	require.Len(t, board, 2)
	assert.Equal(t, "Known", board[0].ListName)
	assert.Equal(t, int64(9), board[1].ListID)
	require.Len(t, board[1].Candidates, 1)
	assert.Equal(t, "O", board[1].Candidates[0].FullName)
}

// TestScoreboard_DoesNotMutateInput verifies the projection copies before
// sorting.
func TestScoreboard_DoesNotMutateInput(t *testing.T) {
	lists := []roster.List{
		{ID: 2, Name: "Second", ListOrder: 2},
		{ID: 1, Name: "First", ListOrder: 1},
	}

	Scoreboard(lists, nil)
	assert.Equal(t, int64(2), lists[0].ID, "caller's list slice must stay untouched")
}
