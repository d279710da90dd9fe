package db

import (
	"context"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
	"github.com/openscrutiny/tallyx/pkg/tally"
)

// LedgerStore describes the ballot-ledger operations the services depend on.
// The production implementation is the ClickHouse store; tests substitute an
// in-memory fake.
type LedgerStore interface {
	DatabaseName() string
	Health(ctx context.Context) error
	InsertBallotLines(ctx context.Context, lines []*ledger.BallotLine) error
	GetBallotLines(ctx context.Context, ballotID uint64) ([]ledger.BallotLine, error)
	ListBallotLines(ctx context.Context, before uint64, limit int) ([]ledger.BallotLine, error)
	Counters(ctx context.Context) (tally.Counters, error)
	ReplayScores(ctx context.Context) (map[int64]tally.SourceCount, error)
	DistinctBallots(ctx context.Context) (uint64, error)
	DistinctValidBallots(ctx context.Context) (uint64, error)
	StreamBallotLines(ctx context.Context, fn func(ledger.BallotLine) error) error
	Close() error
}

// RosterStore describes the PostgreSQL-side operations: roster CRUD,
// operator accounts, counting rights, denormalized score counters and the
// reconcile audit trail.
type RosterStore interface {
	Health(ctx context.Context) error

	CreateList(ctx context.Context, name string, listOrder int32) (*roster.List, error)
	GetList(ctx context.Context, id int64) (*roster.List, error)
	ListLists(ctx context.Context) ([]roster.List, error)
	UpdateList(ctx context.Context, list *roster.List) error
	DeleteList(ctx context.Context, id int64) error

	CreateVoter(ctx context.Context, fullName, nationalID string, eligible bool) (*roster.Voter, error)
	GetVoter(ctx context.Context, id int64) (*roster.Voter, error)
	ListVoters(ctx context.Context, offset, limit int) ([]roster.Voter, error)
	UpdateVoter(ctx context.Context, voter *roster.Voter) error
	DeleteVoter(ctx context.Context, id int64) error
	CountEligibleVoters(ctx context.Context) (uint64, error)

	CreateCandidate(ctx context.Context, voterID, listID int64, candidateOrder int32) (*roster.Candidate, error)
	GetCandidate(ctx context.Context, id int64) (*roster.Candidate, error)
	ListCandidates(ctx context.Context) ([]roster.Candidate, error)
	ListCandidatesByList(ctx context.Context, listID int64) ([]roster.Candidate, error)
	DeleteCandidate(ctx context.Context, id int64) error

	IncrementScores(ctx context.Context, source string, candidateIDs []int64) error
	CandidateScores(ctx context.Context) (map[int64]roster.Score, error)
	SetCandidateScores(ctx context.Context, scores map[int64]roster.Score) error

	CreateOperator(ctx context.Context, username string, passwordHash []byte, role string) (*roster.Operator, error)
	GetOperator(ctx context.Context, username string) (*roster.Operator, error)
	ListOperators(ctx context.Context) ([]roster.Operator, error)
	UpdateOperatorPassword(ctx context.Context, username string, passwordHash []byte) error
	DeleteOperator(ctx context.Context, username string) error

	GrantCountingRight(ctx context.Context, operator, source string, stationID uint16) (*roster.CountingRight, error)
	GetCountingRight(ctx context.Context, operator string) (*roster.CountingRight, error)
	ListCountingRights(ctx context.Context) ([]roster.CountingRight, error)
	RevokeCountingRight(ctx context.Context, operator string) error

	InsertReconcileRun(ctx context.Context, run *roster.ReconcileRun) error
	ListReconcileRuns(ctx context.Context, limit int) ([]roster.ReconcileRun, error)

	Close() error
}
