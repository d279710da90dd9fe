package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/stretchr/testify/require"
)

// skipIfNoDB skips the test when TestMain could not connect.
func skipIfNoDB(t *testing.T) {
	t.Helper()
	if testLedger == nil || testRoster == nil {
		t.Skip("integration databases not configured (set CLICKHOUSE_ADDR and POSTGRES_URL)")
	}
}

// cleanStores truncates every table so each test starts empty.
func cleanStores(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	query := fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s.ballot_lines", testLedger.DatabaseName())
	require.NoError(t, testLedger.Exec(ctx, query))

	require.NoError(t, testRoster.Exec(ctx,
		`TRUNCATE counting_rights, candidates, voters, lists, operators, reconcile_runs RESTART IDENTITY CASCADE`))
}

// seedRoster creates one list with two candidates and returns the candidate
// ids in ballot-paper order.
func seedRoster(t *testing.T) []int64 {
	t.Helper()
	ctx := context.Background()

	list, err := testRoster.CreateList(ctx, "Unity", 1)
	require.NoError(t, err)

	ids := make([]int64, 0, 2)
	for i, name := range []string{"Amal Haddad", "Karim Aoun"} {
		voter, err := testRoster.CreateVoter(ctx, name, fmt.Sprintf("N-%02d", i+1), true)
		require.NoError(t, err)

		candidate, err := testRoster.CreateCandidate(ctx, voter.ID, list.ID, int32(i+1))
		require.NoError(t, err)
		ids = append(ids, candidate.ID)
	}
	return ids
}

// fanOutLines builds the batch of per-candidate lines one posted ballot
// becomes: every roster candidate gets a row sharing the ballot fields.
func fanOutLines(ballotID uint64, ballotType, source string, votes map[int64]uint8, candidateIDs []int64) []*ledger.BallotLine {
	postDate := time.Now().UTC().Truncate(time.Second)

	lines := make([]*ledger.BallotLine, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		lines = append(lines, &ledger.BallotLine{
			BallotID:     ballotID,
			CandidateID:  id,
			Vote:         votes[id],
			BallotType:   ballotType,
			BallotSource: source,
			StationID:    7,
			Operator:     "op1",
			PostDate:     postDate,
		})
	}
	return lines
}

// mustInsert posts one fanned-out ballot into the ledger.
func mustInsert(t *testing.T, ballotID uint64, ballotType, source string, votes map[int64]uint8, candidateIDs []int64) {
	t.Helper()
	require.NoError(t, testLedger.InsertBallotLines(context.Background(),
		fanOutLines(ballotID, ballotType, source, votes, candidateIDs)))
}
