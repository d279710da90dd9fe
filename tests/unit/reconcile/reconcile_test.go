package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/reconcile"
	"github.com/openscrutiny/tallyx/pkg/tally"
	"github.com/openscrutiny/tallyx/tests/unit/fakes"
)

func twoCandidateRoster() *fakes.RosterStore {
	return &fakes.RosterStore{
		Candidates: []roster.Candidate{
			{ID: 1, VoterID: 10, ListID: 100, CandidateOrder: 1, FullName: "Amal Haddad"},
			{ID: 2, VoterID: 11, ListID: 100, CandidateOrder: 2, FullName: "Karim Aoun"},
		},
	}
}

func TestRunRepairsDriftedCounters(t *testing.T) {
	ledgerStore := &fakes.LedgerStore{
		ReplayValue: map[int64]tally.SourceCount{
			1: {Male: 3, Female: 2},
			2: {Male: 1},
		},
		ValidBallots: 6,
	}
	rosterStore := twoCandidateRoster()
	// Candidate 1 lost a female increment, candidate 2 is correct.
	rosterStore.Scores = map[int64]roster.Score{
		1: {FromMale: 3, FromFemale: 1},
		2: {FromMale: 1},
	}

	rec := reconcile.New(zaptest.NewLogger(t), ledgerStore, rosterStore, nil)
	run, err := rec.Run(context.Background(), roster.TriggerStream)
	require.NoError(t, err)

	require.Equal(t, 1, rosterStore.SetScoresCalls)
	require.Equal(t, roster.Score{FromMale: 3, FromFemale: 2}, rosterStore.Scores[1])
	require.Equal(t, roster.Score{FromMale: 1}, rosterStore.Scores[2])

	require.Equal(t, roster.TriggerStream, run.Trigger)
	require.Equal(t, int64(1), run.CandidatesRepaired)
	require.Equal(t, int64(2), run.CandidatesChecked)
	require.Equal(t, uint64(6), run.BallotsReplayed)

	require.Len(t, run.Drift, 1)
	require.Equal(t, int64(1), run.Drift[0].CandidateID)
	require.Equal(t, ledger.SourceFemale, run.Drift[0].Source)
	require.Equal(t, int64(1), run.Drift[0].Counter)
	require.Equal(t, int64(2), run.Drift[0].Ledger)
	require.Equal(t, int64(1), run.Drift[0].Delta())
}

func TestRunFindsNoDrift(t *testing.T) {
	ledgerStore := &fakes.LedgerStore{
		ReplayValue: map[int64]tally.SourceCount{
			1: {Male: 2, Female: 2},
		},
		ValidBallots: 4,
	}
	rosterStore := twoCandidateRoster()
	rosterStore.Scores = map[int64]roster.Score{
		1: {FromMale: 2, FromFemale: 2},
		2: {},
	}

	rec := reconcile.New(zaptest.NewLogger(t), ledgerStore, rosterStore, nil)
	run, err := rec.Run(context.Background(), roster.TriggerCron)
	require.NoError(t, err)

	require.Zero(t, rosterStore.SetScoresCalls)
	require.Zero(t, run.CandidatesRepaired)
	require.Empty(t, run.Drift)

	// A clean pass still leaves an audit row.
	require.Len(t, rosterStore.Runs, 1)
	require.Equal(t, roster.TriggerCron, rosterStore.Runs[0].Trigger)
}

func TestRunZeroesCountersWithoutLedgerVotes(t *testing.T) {
	// Counter says 5 but the ledger replay has nothing for candidate 2, so
	// its true score is zero.
	ledgerStore := &fakes.LedgerStore{
		ReplayValue: map[int64]tally.SourceCount{1: {Male: 1}},
	}
	rosterStore := twoCandidateRoster()
	rosterStore.Scores = map[int64]roster.Score{
		1: {FromMale: 1},
		2: {FromMale: 5},
	}

	rec := reconcile.New(zaptest.NewLogger(t), ledgerStore, rosterStore, nil)
	run, err := rec.Run(context.Background(), roster.TriggerManual)
	require.NoError(t, err)

	require.Equal(t, int64(1), run.CandidatesRepaired)
	require.Equal(t, roster.Score{}, rosterStore.Scores[2])
}

func TestRunIgnoresLedgerVotesForRemovedCandidates(t *testing.T) {
	// Candidate 99 was deleted from the roster after earning ledger votes.
	// There is no counter row to repair; the run must not invent one.
	ledgerStore := &fakes.LedgerStore{
		ReplayValue: map[int64]tally.SourceCount{
			1:  {Male: 1},
			99: {Female: 4},
		},
	}
	rosterStore := twoCandidateRoster()
	rosterStore.Scores = map[int64]roster.Score{1: {FromMale: 1}}

	rec := reconcile.New(zaptest.NewLogger(t), ledgerStore, rosterStore, nil)
	run, err := rec.Run(context.Background(), roster.TriggerCron)
	require.NoError(t, err)

	require.Zero(t, rosterStore.SetScoresCalls)
	require.Zero(t, run.CandidatesRepaired)
	_, tracked := rosterStore.Scores[99]
	require.False(t, tracked)
}

func TestRunReadFailureLeavesNoTrace(t *testing.T) {
	ledgerStore := &fakes.LedgerStore{ReplayErr: errors.New("clickhouse down")}
	rosterStore := twoCandidateRoster()

	rec := reconcile.New(zaptest.NewLogger(t), ledgerStore, rosterStore, nil)
	_, err := rec.Run(context.Background(), roster.TriggerCron)
	require.Error(t, err)

	require.Zero(t, rosterStore.SetScoresCalls)
	require.Empty(t, rosterStore.Runs)
}

func TestRunRepairFailurePropagates(t *testing.T) {
	ledgerStore := &fakes.LedgerStore{
		ReplayValue: map[int64]tally.SourceCount{1: {Male: 2}},
	}
	rosterStore := twoCandidateRoster()
	rosterStore.Scores = map[int64]roster.Score{1: {FromMale: 1}}
	rosterStore.SetScoresErr = errors.New("postgres down")

	rec := reconcile.New(zaptest.NewLogger(t), ledgerStore, rosterStore, nil)
	_, err := rec.Run(context.Background(), roster.TriggerStream)
	require.Error(t, err)
	require.Empty(t, rosterStore.Runs)
}

func TestRunRecordsAudit(t *testing.T) {
	ledgerStore := &fakes.LedgerStore{
		ReplayValue:  map[int64]tally.SourceCount{},
		ValidBallots: 0,
	}
	rosterStore := twoCandidateRoster()

	rec := reconcile.New(zaptest.NewLogger(t), ledgerStore, rosterStore, nil)
	run, err := rec.Run(context.Background(), roster.TriggerManual)
	require.NoError(t, err)

	require.NotEqual(t, uuid.Nil, run.ID)
	require.Equal(t, roster.TriggerManual, run.Trigger)
	require.False(t, run.FinishedAt.Before(run.StartedAt))
	require.Equal(t, int64(2), run.CandidatesChecked)

	require.Len(t, rosterStore.Runs, 1)
	require.Equal(t, run.ID, rosterStore.Runs[0].ID)
}

func TestRunIsIdempotent(t *testing.T) {
	ledgerStore := &fakes.LedgerStore{
		ReplayValue: map[int64]tally.SourceCount{1: {Male: 2, Female: 1}},
	}
	rosterStore := twoCandidateRoster()
	rosterStore.Scores = map[int64]roster.Score{1: {FromMale: 7}}

	rec := reconcile.New(zaptest.NewLogger(t), ledgerStore, rosterStore, nil)

	first, err := rec.Run(context.Background(), roster.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.CandidatesRepaired)

	second, err := rec.Run(context.Background(), roster.TriggerManual)
	require.NoError(t, err)
	require.Zero(t, second.CandidatesRepaired)
	require.Equal(t, roster.Score{FromMale: 2, FromFemale: 1}, rosterStore.Scores[1])
}
