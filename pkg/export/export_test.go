package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/tally"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScoresWorkbook verifies both sheets exist and the ranked rows land in
// rank order with their combined totals.
func TestScoresWorkbook(t *testing.T) {
	board := tally.Scoreboard(
		[]roster.List{{ID: 1, Name: "Unity", ListOrder: 1}},
		[]roster.Candidate{
			{ID: 1, ListID: 1, FullName: "X", ScoreFromMale: 10},
			{ID: 2, ListID: 1, FullName: "Y", ScoreFromFemale: 30},
			{ID: 3, ListID: 1, FullName: "Z", ScoreFromMale: 20},
		},
	)
	counters := tally.Counters{
		Valid:           tally.SourceCount{Male: 3, Female: 4},
		Invalid:         tally.SourceCount{Male: 1},
		Blank:           tally.SourceCount{Female: 2},
		DistinctBallots: 10,
	}
	turnout := tally.ComputeTurnout(100, counters)

	f, err := ScoresWorkbook(board, counters, turnout)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()

	assert.Equal(t, []string{"Scores", "Counters"}, f.GetSheetList())

	rows, err := f.GetRows("Scores")
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus one row per candidate")
	assert.Equal(t, scoreHeaders, rows[0])

	// Ranked Y (30), Z (20), X (10).
	assert.Equal(t, []string{"Unity", "1", "Y", "30", "0", "30"}, rows[1])
	assert.Equal(t, []string{"Unity", "2", "Z", "0", "20", "20"}, rows[2])
	assert.Equal(t, []string{"Unity", "3", "X", "0", "10", "10"}, rows[3])

	counterRows, err := f.GetRows("Counters")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(counterRows), 5)
	assert.Equal(t, []string{"Valid", "3", "4", "7"}, counterRows[1])
	assert.Equal(t, []string{"Blank", "0", "2", "2"}, counterRows[3])
}

// TestScoresWorkbook_WritesToBuffer verifies the workbook serializes, which
// is what the export handler streams to the response.
func TestScoresWorkbook_WritesToBuffer(t *testing.T) {
	f, err := ScoresWorkbook(nil, tally.Counters{}, tally.Turnout{})
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)
	assert.Greater(t, buf.Len(), 0)
}

// TestWriteBallotLinesCSV verifies the header, row formatting and streaming
// order.
func TestWriteBallotLinesCSV(t *testing.T) {
	postDate := time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)
	lines := []ledger.BallotLine{
		{BallotID: 1, CandidateID: 100, Vote: 1, BallotType: ledger.BallotTypeValid, BallotSource: ledger.SourceFemale, StationID: 7, Operator: "op-7", PostDate: postDate},
		{BallotID: 1, CandidateID: 200, Vote: 0, BallotType: ledger.BallotTypeValid, BallotSource: ledger.SourceFemale, StationID: 7, Operator: "op-7", PostDate: postDate},
	}

	stream := func(fn func(ledger.BallotLine) error) error {
		for _, line := range lines {
			if err := fn(line); err != nil {
				return err
			}
		}
		return nil
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBallotLinesCSV(&buf, stream))

	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, got, 3)
	assert.Equal(t, strings.Join(csvHeader, ","), got[0])
	assert.Equal(t, "1,100,1,valid,female,7,op-7,2026-05-14T10:00:00Z", got[1])
	assert.Equal(t, "1,200,0,valid,female,7,op-7,2026-05-14T10:00:00Z", got[2])
}

// TestWriteBallotLinesCSV_Empty verifies an empty ledger still produces the
// header.
func TestWriteBallotLinesCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBallotLinesCSV(&buf, func(func(ledger.BallotLine) error) error { return nil }))
	assert.Equal(t, strings.Join(csvHeader, ",")+"\n", buf.String())
}
