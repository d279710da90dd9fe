// Package fakes provides in-memory doubles for the two store interfaces.
// Line-level reads run against whatever was inserted; the aggregate queries
// are fixture fields so tests state their expectations directly instead of
// re-deriving SQL semantics.
package fakes

import (
	"context"
	"sort"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/tally"
)

// LedgerStore is an in-memory stand-in for the ClickHouse ballot ledger.
type LedgerStore struct {
	Lines []ledger.BallotLine

	InsertCalls int
	InsertErr   error

	CountersValue tally.Counters
	CountersErr   error

	ReplayValue  map[int64]tally.SourceCount
	ReplayErr    error
	ValidBallots uint64

	HealthErr error
}

func (f *LedgerStore) DatabaseName() string { return "tallyx_test" }

func (f *LedgerStore) Health(context.Context) error { return f.HealthErr }

func (f *LedgerStore) InsertBallotLines(_ context.Context, lines []*ledger.BallotLine) error {
	f.InsertCalls++
	if f.InsertErr != nil {
		return f.InsertErr
	}
	for _, line := range lines {
		f.Lines = append(f.Lines, *line)
	}
	return nil
}

func (f *LedgerStore) GetBallotLines(_ context.Context, ballotID uint64) ([]ledger.BallotLine, error) {
	var out []ledger.BallotLine
	for _, line := range f.Lines {
		if line.BallotID == ballotID {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CandidateID < out[j].CandidateID })
	return out, nil
}

// ListBallotLines mirrors the production query: limit counts distinct
// ballots, newest first, lines within a ballot ordered by candidate.
func (f *LedgerStore) ListBallotLines(_ context.Context, before uint64, limit int) ([]ledger.BallotLine, error) {
	if limit <= 0 {
		limit = 50
	}
	cursor := before
	if cursor == 0 {
		cursor = ^uint64(0)
	}

	var ids []uint64
	seen := make(map[uint64]bool)
	for _, line := range f.Lines {
		if line.BallotID < cursor && !seen[line.BallotID] {
			seen[line.BallotID] = true
			ids = append(ids, line.BallotID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	keep := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	var out []ledger.BallotLine
	for _, line := range f.Lines {
		if keep[line.BallotID] {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BallotID != out[j].BallotID {
			return out[i].BallotID > out[j].BallotID
		}
		return out[i].CandidateID < out[j].CandidateID
	})
	return out, nil
}

func (f *LedgerStore) Counters(context.Context) (tally.Counters, error) {
	if f.CountersErr != nil {
		return tally.Counters{}, f.CountersErr
	}
	return f.CountersValue, nil
}

func (f *LedgerStore) ReplayScores(context.Context) (map[int64]tally.SourceCount, error) {
	if f.ReplayErr != nil {
		return nil, f.ReplayErr
	}
	return f.ReplayValue, nil
}

func (f *LedgerStore) DistinctBallots(context.Context) (uint64, error) {
	seen := make(map[uint64]bool)
	for _, line := range f.Lines {
		seen[line.BallotID] = true
	}
	return uint64(len(seen)), nil
}

func (f *LedgerStore) DistinctValidBallots(context.Context) (uint64, error) {
	return f.ValidBallots, nil
}

func (f *LedgerStore) StreamBallotLines(_ context.Context, fn func(ledger.BallotLine) error) error {
	for _, line := range f.Lines {
		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}

func (f *LedgerStore) Close() error { return nil }
