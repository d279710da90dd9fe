package fakes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/openscrutiny/tallyx/pkg/db/models/ledger"
	"github.com/openscrutiny/tallyx/pkg/db/models/roster"
)

// ErrNotFound is what every lookup miss returns.
var ErrNotFound = errors.New("not found")

// RosterStore is an in-memory stand-in for the Postgres roster store.
// Seed it through the exported slices or the Create helpers.
type RosterStore struct {
	Lists      []roster.List
	Voters     []roster.Voter
	Candidates []roster.Candidate
	Operators  []roster.Operator
	Rights     []roster.CountingRight
	Scores     map[int64]roster.Score
	Runs       []roster.ReconcileRun

	// Eligible overrides CountEligibleVoters; zero falls back to counting
	// the seeded voters.
	Eligible uint64

	IncrementCalls  int
	IncrementSource string
	IncrementIDs    []int64
	IncrementErr    error

	SetScoresCalls int
	SetScoresErr   error
	LastSetScores  map[int64]roster.Score

	CandidateScoresErr error
	InsertRunErr       error
	HealthErr          error

	nextID int64
}

func (f *RosterStore) Health(context.Context) error { return f.HealthErr }

func (f *RosterStore) next() int64 {
	f.nextID++
	return f.nextID
}

// --- Lists ---

func (f *RosterStore) CreateList(_ context.Context, name string, listOrder int32) (*roster.List, error) {
	for _, l := range f.Lists {
		if l.Name == name {
			return nil, fmt.Errorf("list %q already exists", name)
		}
	}
	list := roster.List{ID: f.next(), Name: name, ListOrder: listOrder}
	f.Lists = append(f.Lists, list)
	return &list, nil
}

func (f *RosterStore) GetList(_ context.Context, id int64) (*roster.List, error) {
	for _, l := range f.Lists {
		if l.ID == id {
			list := l
			return &list, nil
		}
	}
	return nil, ErrNotFound
}

func (f *RosterStore) ListLists(context.Context) ([]roster.List, error) {
	out := make([]roster.List, len(f.Lists))
	copy(out, f.Lists)
	sort.Slice(out, func(i, j int) bool { return out[i].ListOrder < out[j].ListOrder })
	return out, nil
}

func (f *RosterStore) UpdateList(_ context.Context, list *roster.List) error {
	for i := range f.Lists {
		if f.Lists[i].ID == list.ID {
			f.Lists[i] = *list
			return nil
		}
	}
	return ErrNotFound
}

func (f *RosterStore) DeleteList(_ context.Context, id int64) error {
	for _, c := range f.Candidates {
		if c.ListID == id {
			return fmt.Errorf("list %d still has candidates", id)
		}
	}
	for i := range f.Lists {
		if f.Lists[i].ID == id {
			f.Lists = append(f.Lists[:i], f.Lists[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// --- Voters ---

func (f *RosterStore) CreateVoter(_ context.Context, fullName, nationalID string, eligible bool) (*roster.Voter, error) {
	for _, v := range f.Voters {
		if v.NationalID == nationalID {
			return nil, fmt.Errorf("national id %q already registered", nationalID)
		}
	}
	voter := roster.Voter{
		ID:         f.next(),
		FullName:   fullName,
		NationalID: nationalID,
		Eligible:   eligible,
		CreatedAt:  time.Now().UTC(),
	}
	f.Voters = append(f.Voters, voter)
	return &voter, nil
}

func (f *RosterStore) GetVoter(_ context.Context, id int64) (*roster.Voter, error) {
	for _, v := range f.Voters {
		if v.ID == id {
			voter := v
			return &voter, nil
		}
	}
	return nil, ErrNotFound
}

func (f *RosterStore) ListVoters(_ context.Context, offset, limit int) ([]roster.Voter, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 || offset >= len(f.Voters) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.Voters) {
		end = len(f.Voters)
	}
	out := make([]roster.Voter, end-offset)
	copy(out, f.Voters[offset:end])
	return out, nil
}

func (f *RosterStore) UpdateVoter(_ context.Context, voter *roster.Voter) error {
	for i := range f.Voters {
		if f.Voters[i].ID == voter.ID {
			f.Voters[i] = *voter
			return nil
		}
	}
	return ErrNotFound
}

func (f *RosterStore) DeleteVoter(_ context.Context, id int64) error {
	for _, c := range f.Candidates {
		if c.VoterID == id {
			return fmt.Errorf("voter %d is a candidate", id)
		}
	}
	for i := range f.Voters {
		if f.Voters[i].ID == id {
			f.Voters = append(f.Voters[:i], f.Voters[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *RosterStore) CountEligibleVoters(context.Context) (uint64, error) {
	if f.Eligible > 0 {
		return f.Eligible, nil
	}
	var n uint64
	for _, v := range f.Voters {
		if v.Eligible {
			n++
		}
	}
	return n, nil
}

// --- Candidates ---

func (f *RosterStore) CreateCandidate(ctx context.Context, voterID, listID int64, candidateOrder int32) (*roster.Candidate, error) {
	voter, err := f.GetVoter(ctx, voterID)
	if err != nil {
		return nil, fmt.Errorf("voter %d: %w", voterID, err)
	}
	list, err := f.GetList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("list %d: %w", listID, err)
	}
	for _, c := range f.Candidates {
		if c.VoterID == voterID {
			return nil, fmt.Errorf("voter %d already a candidate", voterID)
		}
	}
	candidate := roster.Candidate{
		ID:             f.next(),
		VoterID:        voterID,
		ListID:         listID,
		CandidateOrder: candidateOrder,
		FullName:       voter.FullName,
		ListName:       list.Name,
	}
	f.Candidates = append(f.Candidates, candidate)
	return &candidate, nil
}

func (f *RosterStore) GetCandidate(_ context.Context, id int64) (*roster.Candidate, error) {
	for _, c := range f.Candidates {
		if c.ID == id {
			candidate := c
			f.attachScores(&candidate)
			return &candidate, nil
		}
	}
	return nil, ErrNotFound
}

// ListCandidates returns the roster in ballot-paper order: lists by
// list_order, candidates by candidate_order within their list.
func (f *RosterStore) ListCandidates(context.Context) ([]roster.Candidate, error) {
	listOrder := make(map[int64]int32, len(f.Lists))
	for _, l := range f.Lists {
		listOrder[l.ID] = l.ListOrder
	}

	out := make([]roster.Candidate, len(f.Candidates))
	copy(out, f.Candidates)
	sort.Slice(out, func(i, j int) bool {
		if listOrder[out[i].ListID] != listOrder[out[j].ListID] {
			return listOrder[out[i].ListID] < listOrder[out[j].ListID]
		}
		if out[i].CandidateOrder != out[j].CandidateOrder {
			return out[i].CandidateOrder < out[j].CandidateOrder
		}
		return out[i].ID < out[j].ID
	})
	for i := range out {
		f.attachScores(&out[i])
	}
	return out, nil
}

func (f *RosterStore) ListCandidatesByList(ctx context.Context, listID int64) ([]roster.Candidate, error) {
	all, _ := f.ListCandidates(ctx)
	var out []roster.Candidate
	for _, c := range all {
		if c.ListID == listID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *RosterStore) DeleteCandidate(_ context.Context, id int64) error {
	for i := range f.Candidates {
		if f.Candidates[i].ID == id {
			f.Candidates = append(f.Candidates[:i], f.Candidates[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *RosterStore) attachScores(c *roster.Candidate) {
	if s, ok := f.Scores[c.ID]; ok {
		c.ScoreFromFemale = s.FromFemale
		c.ScoreFromMale = s.FromMale
	}
}

// --- Scores ---

func (f *RosterStore) IncrementScores(_ context.Context, source string, candidateIDs []int64) error {
	f.IncrementCalls++
	f.IncrementSource = source
	f.IncrementIDs = append([]int64(nil), candidateIDs...)
	if f.IncrementErr != nil {
		return f.IncrementErr
	}
	if f.Scores == nil {
		f.Scores = make(map[int64]roster.Score)
	}
	for _, id := range candidateIDs {
		s := f.Scores[id]
		if source == ledger.SourceFemale {
			s.FromFemale++
		} else {
			s.FromMale++
		}
		f.Scores[id] = s
	}
	return nil
}

func (f *RosterStore) CandidateScores(context.Context) (map[int64]roster.Score, error) {
	if f.CandidateScoresErr != nil {
		return nil, f.CandidateScoresErr
	}
	out := make(map[int64]roster.Score, len(f.Candidates))
	for _, c := range f.Candidates {
		out[c.ID] = f.Scores[c.ID]
	}
	return out, nil
}

func (f *RosterStore) SetCandidateScores(_ context.Context, scores map[int64]roster.Score) error {
	f.SetScoresCalls++
	f.LastSetScores = scores
	if f.SetScoresErr != nil {
		return f.SetScoresErr
	}
	if f.Scores == nil {
		f.Scores = make(map[int64]roster.Score)
	}
	for id, s := range scores {
		f.Scores[id] = s
	}
	return nil
}

// --- Operators ---

func (f *RosterStore) CreateOperator(_ context.Context, username string, passwordHash []byte, role string) (*roster.Operator, error) {
	for _, op := range f.Operators {
		if op.Username == username {
			return nil, fmt.Errorf("operator %q already exists", username)
		}
	}
	op := roster.Operator{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	f.Operators = append(f.Operators, op)
	return &op, nil
}

func (f *RosterStore) GetOperator(_ context.Context, username string) (*roster.Operator, error) {
	for _, op := range f.Operators {
		if op.Username == username {
			found := op
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (f *RosterStore) ListOperators(context.Context) ([]roster.Operator, error) {
	out := make([]roster.Operator, len(f.Operators))
	copy(out, f.Operators)
	return out, nil
}

func (f *RosterStore) UpdateOperatorPassword(_ context.Context, username string, passwordHash []byte) error {
	for i := range f.Operators {
		if f.Operators[i].Username == username {
			f.Operators[i].PasswordHash = passwordHash
			return nil
		}
	}
	return ErrNotFound
}

func (f *RosterStore) DeleteOperator(_ context.Context, username string) error {
	for i := range f.Operators {
		if f.Operators[i].Username == username {
			f.Operators = append(f.Operators[:i], f.Operators[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// --- Counting rights ---

// GrantCountingRight upserts, like the production store: re-granting an
// operator replaces their source and station.
func (f *RosterStore) GrantCountingRight(_ context.Context, operator, source string, stationID uint16) (*roster.CountingRight, error) {
	if !ledger.ValidSource(source) {
		return nil, fmt.Errorf("unknown counting source %q", source)
	}
	right := roster.CountingRight{
		Operator:  operator,
		Source:    source,
		StationID: stationID,
		GrantedAt: time.Now().UTC(),
	}
	for i := range f.Rights {
		if f.Rights[i].Operator == operator {
			f.Rights[i] = right
			return &right, nil
		}
	}
	f.Rights = append(f.Rights, right)
	return &right, nil
}

func (f *RosterStore) GetCountingRight(_ context.Context, operator string) (*roster.CountingRight, error) {
	for _, r := range f.Rights {
		if r.Operator == operator {
			right := r
			return &right, nil
		}
	}
	return nil, ErrNotFound
}

func (f *RosterStore) ListCountingRights(context.Context) ([]roster.CountingRight, error) {
	out := make([]roster.CountingRight, len(f.Rights))
	copy(out, f.Rights)
	return out, nil
}

func (f *RosterStore) RevokeCountingRight(_ context.Context, operator string) error {
	for i := range f.Rights {
		if f.Rights[i].Operator == operator {
			f.Rights = append(f.Rights[:i], f.Rights[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// --- Reconcile audit ---

func (f *RosterStore) InsertReconcileRun(_ context.Context, run *roster.ReconcileRun) error {
	if f.InsertRunErr != nil {
		return f.InsertRunErr
	}
	f.Runs = append(f.Runs, *run)
	return nil
}

func (f *RosterStore) ListReconcileRuns(_ context.Context, limit int) ([]roster.ReconcileRun, error) {
	if limit <= 0 {
		limit = 20
	}
	out := make([]roster.ReconcileRun, len(f.Runs))
	copy(out, f.Runs)
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *RosterStore) Close() error { return nil }
