// Package reconcile repairs drift between the ballot ledger and the
// denormalized candidate score counters. The ledger is authoritative: a run
// replays valid ballots out of ClickHouse, compares the sums against the
// Postgres counters, rewrites whatever disagrees and leaves an audit row.
// Runs are idempotent; reconciling an already-consistent system repairs
// nothing.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/openscrutiny/tallyx/pkg/db"
	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/redis"
	"github.com/openscrutiny/tallyx/pkg/tally"
	"go.uber.org/zap"
)

// Reconciler wires the two stores and the event bus for repair runs.
// Events may be nil; publication is best-effort either way.
type Reconciler struct {
	Logger *zap.Logger
	Ledger db.LedgerStore
	Roster db.RosterStore
	Events *redis.Client

	pool pond.Pool
}

// New builds a Reconciler. The small pool only parallelizes the read phase
// of a run, which spans both databases.
func New(logger *zap.Logger, ledgerStore db.LedgerStore, rosterStore db.RosterStore, events *redis.Client) *Reconciler {
	return &Reconciler{
		Logger: logger,
		Ledger: ledgerStore,
		Roster: rosterStore,
		Events: events,
		pool:   pond.NewPool(4),
	}
}

// Run executes one reconciliation pass and records it. trigger names what
// started the run: cron, stream or manual.
func (r *Reconciler) Run(ctx context.Context, trigger string) (*roster.ReconcileRun, error) {
	started := time.Now().UTC()

	var (
		replayed     map[int64]tally.SourceCount
		current      map[int64]roster.Score
		validBallots uint64
	)

	group := r.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	group.SubmitErr(func() error {
		var err error
		replayed, err = r.Ledger.ReplayScores(groupCtx)
		return err
	})
	group.SubmitErr(func() error {
		var err error
		current, err = r.Roster.CandidateScores(groupCtx)
		return err
	})
	group.SubmitErr(func() error {
		var err error
		validBallots, err = r.Ledger.DistinctValidBallots(groupCtx)
		return err
	})

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("reconcile read phase: %w", err)
	}

	repairs, drift := diff(current, replayed)

	// Ledger lines can reference candidates removed from the roster; there
	// is no counter row to repair, only something to surface.
	for id := range replayed {
		if _, ok := current[id]; !ok {
			r.Logger.Warn("Ledger carries votes for a candidate missing from the roster",
				zap.Int64("candidate_id", id))
		}
	}

	if len(repairs) > 0 {
		if err := r.Roster.SetCandidateScores(ctx, repairs); err != nil {
			return nil, fmt.Errorf("reconcile repair phase: %w", err)
		}
		r.publishScoresUpdated(ctx, len(repairs))
	}

	run := &roster.ReconcileRun{
		ID:                 uuid.New(),
		Trigger:            trigger,
		StartedAt:          started,
		FinishedAt:         time.Now().UTC(),
		BallotsReplayed:    validBallots,
		CandidatesChecked:  int64(len(current)),
		CandidatesRepaired: int64(len(repairs)),
		Drift:              drift,
	}

	if err := r.Roster.InsertReconcileRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record reconcile run: %w", err)
	}

	if len(repairs) > 0 {
		r.Logger.Info("Reconciliation repaired drifted counters",
			zap.String("trigger", trigger),
			zap.String("run_id", run.ID.String()),
			zap.Int64("candidates_repaired", run.CandidatesRepaired),
			zap.Uint64("ballots_replayed", run.BallotsReplayed))
	} else {
		r.Logger.Debug("Reconciliation found no drift",
			zap.String("trigger", trigger),
			zap.String("run_id", run.ID.String()),
			zap.Int64("candidates_checked", run.CandidatesChecked))
	}

	return run, nil
}

// diff compares the counters against the replay. Candidates absent from the
// replay simply earned nothing yet; their expected score is zero.
func diff(current map[int64]roster.Score, replayed map[int64]tally.SourceCount) (map[int64]roster.Score, []roster.DriftEntry) {
	repairs := make(map[int64]roster.Score)
	var drift []roster.DriftEntry

	for id, have := range current {
		want := roster.Score{
			FromFemale: int64(replayed[id].Female),
			FromMale:   int64(replayed[id].Male),
		}
		if have == want {
			continue
		}

		if have.FromFemale != want.FromFemale {
			drift = append(drift, roster.DriftEntry{
				CandidateID: id,
				Source:      ledger.SourceFemale,
				Counter:     have.FromFemale,
				Ledger:      want.FromFemale,
			})
		}
		if have.FromMale != want.FromMale {
			drift = append(drift, roster.DriftEntry{
				CandidateID: id,
				Source:      ledger.SourceMale,
				Counter:     have.FromMale,
				Ledger:      want.FromMale,
			})
		}
		repairs[id] = want
	}

	sort.Slice(drift, func(i, j int) bool {
		if drift[i].CandidateID != drift[j].CandidateID {
			return drift[i].CandidateID < drift[j].CandidateID
		}
		return drift[i].Source < drift[j].Source
	})

	return repairs, drift
}

func (r *Reconciler) publishScoresUpdated(ctx context.Context, repaired int) {
	if r.Events == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"repaired": repaired,
		"at":       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	r.Events.Publish(ctx, redis.ChannelScoresUpdated, payload)
}
